// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package tokenops

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/H0llyW00dzZ/privacyidea-scripts/src/internal/csvin"
	"github.com/H0llyW00dzZ/privacyidea-scripts/src/internal/privacyidea"
	"github.com/H0llyW00dzZ/privacyidea-scripts/src/logger"
	"github.com/hashicorp/go-multierror"
)

// API is the subset of [privacyidea.Client] the procedures use.
type API interface {
	InitToken(ctx context.Context, params privacyidea.Params) (*privacyidea.InitResult, error)
	ListTokens(ctx context.Context, f privacyidea.TokenFilter) ([]privacyidea.Token, error)
	TokenOwner(ctx context.Context, serial string) (*privacyidea.Token, error)
	DeleteToken(ctx context.Context, serial string) error
	EnableToken(ctx context.Context, serial string) error
	DisableToken(ctx context.Context, serial string) error
	AssignToken(ctx context.Context, serial, user, realm, pin string) error
	AssignTokenIn(ctx context.Context, serial, user, realm, resolver string) error
	UnassignToken(ctx context.Context, serial string) error
	SetPin(ctx context.Context, serial, pin string) error
	ResetFailcount(ctx context.Context, serial string) error
	SetTokenInfo(ctx context.Context, serial, key, value string) error
	SetTokenOptions(ctx context.Context, serial string, options privacyidea.Params) error
	AttachToken(ctx context.Context, mt privacyidea.MachineToken) error
	DetachToken(ctx context.Context, mt privacyidea.MachineToken) error
	ListUsers(ctx context.Context, f privacyidea.UserFilter) ([]privacyidea.User, error)
	UserExists(ctx context.Context, username, realm, resolver string) (bool, error)
	CreateUser(ctx context.Context, resolver, realm string, attrs map[string]string) (string, error)
	UpdateUser(ctx context.Context, resolver, realm string, attrs map[string]string) error
	DefaultRealm(ctx context.Context) (string, error)
	ValidateCheck(ctx context.Context, user, realm, pass string) (bool, time.Duration, error)
}

var _ API = (*privacyidea.Client)(nil)

var (
	// ErrNoUsername is returned by hooks that need a user but got none.
	ErrNoUsername = errors.New("tokenops: no username specified")
	// ErrNotPermitted is returned when the caller may not run a procedure.
	ErrNotPermitted = errors.New("tokenops: not permitted")
	// ErrUnknownAction is returned for an unsupported delete-or-disable action.
	ErrUnknownAction = errors.New("tokenops: unknown action")
	// ErrTooManyTokens is returned when a user owns more tokens than a
	// procedure is willing to touch.
	ErrTooManyTokens = errors.New("tokenops: too many tokens")
)

// Ops runs the administration procedures against the platform API.
//
// Out receives the result lines the operator reads or pipes on (serials,
// passwords, progress). Err receives per-line failures of the bulk tools.
// Log receives the leveled messages the event handler hooks write to the
// platform log.
type Ops struct {
	API API
	Out io.Writer
	Err io.Writer
	Log logger.Leveled
	Now func() time.Time
}

// New creates an Ops writing to stdout and stderr.
func New(api API, log logger.Leveled) *Ops {
	if log == nil {
		log = logger.NewLeveled("pi-tools", nil, "info")
	}
	return &Ops{API: api, Out: os.Stdout, Err: os.Stderr, Log: log, Now: time.Now}
}

func (o *Ops) printf(format string, args ...any) {
	fmt.Fprintf(o.Out, format, args...)
}

func (o *Ops) eprintf(format string, args ...any) {
	fmt.Fprintf(o.Err, format, args...)
}

func (o *Ops) now() time.Time {
	if o.Now == nil {
		return time.Now()
	}
	return o.Now()
}

// lineError tags a per-line failure of a bulk tool.
type lineError struct {
	line int
	err  error
}

func (e *lineError) Error() string { return fmt.Sprintf("line %d: %v", e.line, e.err) }
func (e *lineError) Unwrap() error { return e.err }

// eachRecord feeds well-formed CSV records to fn. Malformed lines and
// errors returned by fn are reported on Err and collected; only a read
// error stops the pass.
func (o *Ops) eachRecord(r io.Reader, fn func(csvin.Record) error, opts ...csvin.Option) error {
	var result *multierror.Error
	err := csvin.NewReader(r, opts...).Each(
		func(rec csvin.Record) error {
			if err := fn(rec); err != nil {
				result = multierror.Append(result, &lineError{line: rec.Line, err: err})
			}
			return nil
		},
		func(merr *csvin.MalformedError) {
			o.eprintf("%s\n", merr.Error())
			result = multierror.Append(result, merr)
		},
	)
	if err != nil {
		result = multierror.Append(result, err)
	}
	return result.ErrorOrNil()
}

// apiMessage returns the platform's error message, or the error text.
func apiMessage(err error) string {
	var apiErr *privacyidea.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return err.Error()
}

// isNone reports the "none" placeholder the script handler passes for
// unset tags.
func isNone(s string) bool {
	return s == "" || strings.EqualFold(s, "none")
}

func boolParam(v bool) string {
	if v {
		return "true"
	}
	return "false"
}

// hasType reports whether typ is one of types, case-insensitively.
func hasType(types []string, typ string) bool {
	for _, t := range types {
		if strings.EqualFold(t, typ) {
			return true
		}
	}
	return false
}
