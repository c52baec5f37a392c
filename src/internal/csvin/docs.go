// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

// Package csvin reads the comma separated input files fed to the bulk
// tools: one record per line, fields trimmed, comment and blank lines
// skipped, and an optional legacy character set decoded to UTF-8.
package csvin
