// Copyright (c) 2025 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package posix

import (
	"os"
	"strings"
)

// GetExecutableName returns the base name of os.Args[0] without a .exe
// suffix. Both slash styles are treated as separators so that a Windows path
// is handled on Unix and vice versa.
//
// Parameters:
//   - fallback: Name returned when os.Args[0] is unavailable
//
// Returns:
//   - string: Clean executable name suitable for CLI usage
func GetExecutableName(fallback string) string {
	if len(os.Args) == 0 {
		return fallback
	}
	return baseName(os.Args[0], fallback)
}

func baseName(arg0, fallback string) string {
	parts := strings.FieldsFunc(arg0, func(r rune) bool {
		return r == '/' || r == '\\'
	})
	if len(parts) == 0 {
		return fallback
	}

	name := strings.TrimSuffix(parts[len(parts)-1], ".exe")
	if name == "" {
		return fallback
	}
	return name
}
