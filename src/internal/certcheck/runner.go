// Copyright (c) 2025 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package certcheck

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"

	"github.com/H0llyW00dzZ/privacyidea-scripts/src/internal/helper/gc"
)

// Runner executes an external command and returns its stdout. The output is
// returned even when the command fails, so callers can inspect partial
// results.
type Runner func(ctx context.Context, stdin io.Reader, name string, args ...string) ([]byte, error)

// ExecRunner runs the command with os/exec. A nil stdin is an empty input,
// the equivalent of "echo |" in a shell pipeline.
func ExecRunner(ctx context.Context, stdin io.Reader, name string, args ...string) ([]byte, error) {
	if stdin == nil {
		stdin = strings.NewReader("")
	}

	stdout := gc.Default.Get()
	defer gc.Default.Put(stdout)
	var stderr bytes.Buffer

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = stdin
	cmd.Stdout = stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	out := bytes.Clone(stdout.Bytes())
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return out, fmt.Errorf("%s: %w: %s", name, err, firstLine(msg))
		}
		return out, fmt.Errorf("%s: %w", name, err)
	}
	return out, nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
