// Copyright (c) 2025 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

// Package logger provides abstraction and implementation for logging operations.
// It defines the Logger interface for plain CLI output and the Leveled
// interface for severity-aware log sinks. CLILogger writes human-readable
// lines; HCLogger writes timestamped INFO/WARN/ERROR lines through go-hclog
// to the console or to an append-only log file.
package logger
