// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package migrate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/hashicorp/go-multierror"

	"github.com/H0llyW00dzZ/privacyidea-scripts/src/internal/privacyidea"
	"github.com/H0llyW00dzZ/privacyidea-scripts/src/internal/store"
	"github.com/H0llyW00dzZ/privacyidea-scripts/src/logger"
)

// SourceAPI looks up users and their tokens on the old instance.
type SourceAPI interface {
	ListUsers(ctx context.Context, f privacyidea.UserFilter) ([]privacyidea.User, error)
	ListTokens(ctx context.Context, f privacyidea.TokenFilter) ([]privacyidea.Token, error)
}

// TargetAPI creates users and assigns tokens on the new instance.
type TargetAPI interface {
	UserExists(ctx context.Context, username, realm, resolver string) (bool, error)
	CreateUser(ctx context.Context, resolver, realm string, attrs map[string]string) (string, error)
	AssignTokenIn(ctx context.Context, serial, user, realm, resolver string) error
}

// TokenReader loads token rows from the old database.
type TokenReader interface {
	TokenBySerial(ctx context.Context, serial string) (*store.Token, error)
}

// TokenWriter inserts token rows into the new database.
type TokenWriter interface {
	CopyToken(ctx context.Context, tok *store.Token, serial string) (int64, error)
}

var (
	_ SourceAPI   = (*privacyidea.Client)(nil)
	_ TargetAPI   = (*privacyidea.Client)(nil)
	_ TokenReader = (*store.Store)(nil)
	_ TokenWriter = (*store.Store)(nil)
)

// Migrator copies users and their tokens from one instance to another.
type Migrator struct {
	From   SourceAPI
	To     TargetAPI
	Source TokenReader
	Target TokenWriter
	Out    io.Writer
	Log    logger.Leveled
}

// Result counts what a run did.
type Result struct {
	Users    int
	Created  int
	Copied   int
	Existing int
	Assigned int
}

type plannedUser struct {
	name    string
	attrs   map[string]string
	serials []string
}

// Run migrates the users selected by cfg. Per-token and per-user failures
// are reported and collected; the run goes on with the next item.
func (m *Migrator) Run(ctx context.Context, cfg *Config) (Result, error) {
	var res Result
	out := m.Out
	if out == nil {
		out = os.Stdout
	}
	log := m.Log
	if log == nil {
		log = logger.NewLeveled("migrate-tokens", nil, "info")
	}

	userRule, err := cfg.Migrate.User.Rule().Compile()
	if err != nil {
		return res, err
	}
	var serialRule *Rewriter
	if cfg.Migrate.Serial != nil {
		if serialRule, err = cfg.Migrate.Serial.Compile(); err != nil {
			return res, err
		}
	}

	plan, err := m.plan(ctx, cfg, userRule)
	if err != nil {
		return res, err
	}

	var errs *multierror.Error
	realm, resolver := cfg.Assignments.ToRealm, cfg.Assignments.ToResolver
	for _, u := range plan {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		res.Users++

		for _, serial := range u.serials {
			newSerial := serialRule.Apply(serial)
			copied, err := m.copyToken(ctx, out, serial, newSerial)
			switch {
			case err != nil:
				log.Errorf("copy token %s: %v", serial, err)
				errs = multierror.Append(errs, err)
			case copied:
				log.Infof("copied token %s as %s", serial, newSerial)
				res.Copied++
			default:
				res.Existing++
			}
		}

		exists, err := m.To.UserExists(ctx, u.name, realm, resolver)
		if err != nil {
			errs = multierror.Append(errs, fmt.Errorf("lookup user %s: %w", u.name, err))
			continue
		}
		if exists {
			fmt.Fprintln(out, "User already exists!")
		} else {
			uid, err := m.To.CreateUser(ctx, resolver, realm, u.attrs)
			if err != nil {
				log.Errorf("create user %s: %v", u.name, err)
				errs = multierror.Append(errs, fmt.Errorf("create user %s: %w", u.name, err))
				continue
			}
			res.Created++
			fmt.Fprintf(out, "Created user %s\n", uid)
		}

		for _, serial := range u.serials {
			newSerial := serialRule.Apply(serial)
			fmt.Fprintf(out, "Assigning token %s to user %s.%s@%s\n", newSerial, u.name, resolver, realm)
			if err := m.To.AssignTokenIn(ctx, newSerial, u.name, realm, resolver); err != nil {
				fmt.Fprintln(out, "Error assigning token - probably the token is already assigned.")
				log.Debugf("assign %s to %s: %v", newSerial, u.name, err)
				continue
			}
			res.Assigned++
		}
	}
	return res, errs.ErrorOrNil()
}

// plan collects the matching users, their new names and token serials
// from the old instance before anything is written.
func (m *Migrator) plan(ctx context.Context, cfg *Config, rule *Rewriter) ([]plannedUser, error) {
	find := cfg.Migrate.User.Find
	users, err := m.From.ListUsers(ctx, privacyidea.UserFilter{
		Username: find["username"],
		Realm:    find["realm"],
		Resolver: find["resolver"],
	})
	if err != nil {
		return nil, fmt.Errorf("migrate: find users: %w", err)
	}

	var plan []plannedUser
	for _, user := range users {
		name := user.Username()
		if !rule.Match(name) {
			continue
		}
		p := plannedUser{
			name:  rule.Apply(name),
			attrs: map[string]string{},
		}
		for _, attr := range cfg.Migrate.User.Attributes {
			p.attrs[attr] = user.Get(attr)
		}
		p.attrs["username"] = p.name

		tokens, err := m.From.ListTokens(ctx, privacyidea.TokenFilter{User: name, Realm: find["realm"]})
		if err != nil {
			return nil, fmt.Errorf("migrate: tokens of %s: %w", name, err)
		}
		for _, tok := range tokens {
			p.serials = append(p.serials, tok.Serial)
		}
		plan = append(plan, p)
	}
	return plan, nil
}

func (m *Migrator) copyToken(ctx context.Context, out io.Writer, serial, newSerial string) (bool, error) {
	tok, err := m.Source.TokenBySerial(ctx, serial)
	if err != nil {
		return false, err
	}
	if _, err := m.Target.CopyToken(ctx, tok, newSerial); err != nil {
		if errors.Is(err, store.ErrSerialExists) {
			fmt.Fprintf(out, "New token %s already exists.\n", newSerial)
			return false, nil
		}
		return false, err
	}
	return true, nil
}
