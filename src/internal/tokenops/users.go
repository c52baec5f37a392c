// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package tokenops

import (
	"context"
	"fmt"

	"github.com/H0llyW00dzZ/privacyidea-scripts/src/internal/privacyidea"
	"github.com/hashicorp/go-multierror"
)

// UsersWithoutToken prints the users of realm (the default realm when
// empty) that own no token. With activeOnly, users whose tokens are all
// disabled are printed too.
func (o *Ops) UsersWithoutToken(ctx context.Context, realm string, activeOnly bool) error {
	if realm == "" {
		var err error
		if realm, err = o.API.DefaultRealm(ctx); err != nil {
			return err
		}
	}
	users, err := o.API.ListUsers(ctx, privacyidea.UserFilter{Realm: realm})
	if err != nil {
		return err
	}
	f := privacyidea.TokenFilter{Realm: realm}
	if activeOnly {
		f.Active = privacyidea.Bool(true)
	}
	for _, u := range users {
		f.User, f.Resolver = u.Username(), u.Get("resolver")
		toks, err := o.API.ListTokens(ctx, f)
		if err != nil {
			return err
		}
		if len(toks) == 0 {
			o.printf("%s\n", u.Username())
		}
	}
	return nil
}

// MoveOptions configures MoveTokens.
type MoveOptions struct {
	FromRealm    string
	FromResolver string
	ToRealm      string
	ToResolver   string
	DryRun       bool
}

// MoveTokens reassigns the tokens owned by users of FromResolver in
// FromRealm to the users with the same login in ToResolver and ToRealm.
func (o *Ops) MoveTokens(ctx context.Context, opts MoveOptions) error {
	toks, err := o.API.ListTokens(ctx, privacyidea.TokenFilter{Realm: opts.FromRealm, Resolver: opts.FromResolver})
	if err != nil {
		return err
	}
	var result *multierror.Error
	for _, tok := range toks {
		o.printf("Token %s assigned to %s@%s will be migrated to resolver %s in realm %s.\n",
			tok.Serial, tok.Username, opts.FromRealm, opts.ToResolver, opts.ToRealm)
		if !tok.Assigned() {
			continue
		}
		if !opts.DryRun {
			if err := o.API.UnassignToken(ctx, tok.Serial); err != nil {
				o.eprintf(" +-- Failed assigning token %s: %s.\n", tok.Serial, apiMessage(err))
				result = multierror.Append(result, err)
				continue
			}
			if err := o.API.AssignTokenIn(ctx, tok.Serial, tok.Username, opts.ToRealm, opts.ToResolver); err != nil {
				o.eprintf(" +-- Failed assigning token %s: %s.\n", tok.Serial, apiMessage(err))
				result = multierror.Append(result, err)
				continue
			}
		}
		o.printf(" +-- Assigned token %s to user %s.%s@%s.\n", tok.Serial, tok.Username, opts.ToResolver, opts.ToRealm)
	}
	return result.ErrorOrNil()
}

// MigrateUsersOptions configures MigrateUsers.
type MigrateUsersOptions struct {
	FromResolver string
	ToResolver   string
	Realm        string
}

// MigrateUsers hands every token owned by a user of FromResolver to the
// user with the same login in ToResolver.
func (o *Ops) MigrateUsers(ctx context.Context, opts MigrateUsersOptions) error {
	toks, err := o.API.ListTokens(ctx, privacyidea.TokenFilter{Resolver: opts.FromResolver})
	if err != nil {
		return err
	}
	var result *multierror.Error
	for _, tok := range toks {
		if !tok.Assigned() || tok.Username == "" {
			o.printf("%s: Could not find user for token in resolver %s\n", tok.Serial, opts.FromResolver)
			continue
		}
		old := fmt.Sprintf("<%s.%s@%s>", tok.Username, tok.Resolver, tok.UserRealm)
		ok, err := o.API.UserExists(ctx, tok.Username, opts.Realm, opts.ToResolver)
		if err != nil {
			result = multierror.Append(result, err)
			continue
		}
		if !ok {
			o.printf("%s: %s -> Could not find user with login %s in resolver %s\n",
				tok.Serial, old, tok.Username, opts.ToResolver)
			continue
		}
		o.printf("%s: %s -> <%s.%s@%s>\n", tok.Serial, old, tok.Username, opts.ToResolver, opts.Realm)
		if err := o.API.UnassignToken(ctx, tok.Serial); err != nil {
			result = multierror.Append(result, err)
			continue
		}
		if err := o.API.AssignTokenIn(ctx, tok.Serial, tok.Username, opts.Realm, opts.ToResolver); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

// OwnerMover rewrites token ownership directly in the platform database,
// keeping PIN and fail counter untouched.
type OwnerMover interface {
	MoveTokenOwner(ctx context.Context, serial, userID, resolver, realm string) error
}

// JoinOptions configures JoinResolvers.
type JoinOptions struct {
	SourceRealm    string
	TargetResolver string
	TargetRealm    string
}

// JoinResolvers copies the users of SourceRealm into TargetResolver and
// moves their tokens to the copies. Users already present in the target
// resolver are skipped.
func (o *Ops) JoinResolvers(ctx context.Context, owners OwnerMover, opts JoinOptions) error {
	users, err := o.API.ListUsers(ctx, privacyidea.UserFilter{Realm: opts.SourceRealm})
	if err != nil {
		return err
	}
	var result *multierror.Error
	for _, u := range users {
		username, sourceResolver := u.Username(), u.Get("resolver")
		exists, err := o.API.UserExists(ctx, username, "", opts.TargetResolver)
		if err != nil {
			result = multierror.Append(result, err)
			continue
		}
		if exists {
			o.eprintf("User with username %s already exists in resolver %s.\n", username, opts.TargetResolver)
			continue
		}

		attrs := u.Attributes("id", "userid", "resolver", "editable")
		attrs["group"] = sourceResolver
		id, err := o.API.CreateUser(ctx, opts.TargetResolver, "", attrs)
		if err != nil {
			o.eprintf("Failed to create user: %s.\n", apiMessage(err))
			result = multierror.Append(result, err)
			continue
		}
		o.printf("Created user %s in resolver %s.\n", username, opts.TargetResolver)

		toks, err := o.API.ListTokens(ctx, privacyidea.TokenFilter{
			User: username, Realm: opts.SourceRealm, Resolver: sourceResolver,
		})
		if err != nil {
			result = multierror.Append(result, err)
			continue
		}
		for _, tok := range toks {
			if err := owners.MoveTokenOwner(ctx, tok.Serial, id, opts.TargetResolver, opts.TargetRealm); err != nil {
				o.printf("Failed to unassign and assign token %s: %v.\n", tok.Serial, err)
				result = multierror.Append(result, err)
				continue
			}
			o.printf("Assigned token %s to %s@%s.\n", tok.Serial, username, opts.TargetRealm)
		}
	}
	return result.ErrorOrNil()
}
