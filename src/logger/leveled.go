// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/hashicorp/go-hclog"
)

// TimeFormat mirrors the "asctime" layout operators already grep for in
// their privacyIDEA log files.
const TimeFormat = "2006-01-02 15:04:05,000"

// Leveled is a Logger that also knows about severities.
//
// The certificate checker, the event handler hooks and the migration tool
// log through it so that warnings and errors can be told apart in a log sink.
type Leveled interface {
	Logger
	Debugf(format string, v ...any)
	Infof(format string, v ...any)
	Warnf(format string, v ...any)
	Errorf(format string, v ...any)
}

// HCLogger implements Leveled on top of [hclog].
//
// HCLogger is safe for concurrent use by multiple goroutines.
//
// [hclog]: https://github.com/hashicorp/go-hclog
type HCLogger struct {
	mu     sync.Mutex
	opts   hclog.LoggerOptions
	hc     hclog.Logger
	closer io.Closer
}

// NewLeveled creates a leveled logger writing to w.
//
// Parameters:
//   - name: Logger name shown in every line (usually the command name)
//   - w: Destination; nil means stderr
//   - level: Minimum level ("debug", "info", "warn", "error"); empty means info
//
// Returns:
//   - *HCLogger: New leveled logger
func NewLeveled(name string, w io.Writer, level string) *HCLogger {
	if w == nil {
		w = os.Stderr
	}
	lvl := hclog.LevelFromString(strings.TrimSpace(level))
	if lvl == hclog.NoLevel {
		lvl = hclog.Info
	}
	opts := hclog.LoggerOptions{
		Name:       name,
		Level:      lvl,
		Output:     w,
		TimeFormat: TimeFormat,
	}
	return &HCLogger{opts: opts, hc: hclog.New(&opts)}
}

// NewFileLeveled creates a leveled logger that appends to the file at path.
// The file is created with mode 0640 when it does not exist yet.
//
// Returns:
//   - *HCLogger: Logger writing to the file; call Close when done
//   - error: Error if the file cannot be opened
func NewFileLeveled(name, path, level string) (*HCLogger, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o640)
	if err != nil {
		return nil, fmt.Errorf("logger: open log file %s: %w", path, err)
	}
	l := NewLeveled(name, f, level)
	l.closer = f
	return l, nil
}

func (l *HCLogger) logger() hclog.Logger {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.hc
}

// Printf logs at info level.
func (l *HCLogger) Printf(format string, v ...any) { l.logger().Info(fmt.Sprintf(format, v...)) }

// Println logs at info level using fmt.Sprintln spacing rules.
func (l *HCLogger) Println(v ...any) {
	l.logger().Info(strings.TrimSuffix(fmt.Sprintln(v...), "\n"))
}

// Debugf logs at debug level.
func (l *HCLogger) Debugf(format string, v ...any) { l.logger().Debug(fmt.Sprintf(format, v...)) }

// Infof logs at info level.
func (l *HCLogger) Infof(format string, v ...any) { l.logger().Info(fmt.Sprintf(format, v...)) }

// Warnf logs at warn level.
func (l *HCLogger) Warnf(format string, v ...any) { l.logger().Warn(fmt.Sprintf(format, v...)) }

// Errorf logs at error level.
func (l *HCLogger) Errorf(format string, v ...any) { l.logger().Error(fmt.Sprintf(format, v...)) }

// SetOutput rebuilds the underlying logger with a new destination.
// A file opened by NewFileLeveled is closed.
func (l *HCLogger) SetOutput(w io.Writer) {
	if w == nil {
		w = io.Discard
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closer != nil {
		_ = l.closer.Close()
		l.closer = nil
	}
	l.opts.Output = w
	l.hc = hclog.New(&l.opts)
}

// Close releases the log file, if any.
func (l *HCLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closer == nil {
		return nil
	}
	err := l.closer.Close()
	l.closer = nil
	return err
}
