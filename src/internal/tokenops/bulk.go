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
	"strconv"
	"strings"
	"time"

	"github.com/H0llyW00dzZ/privacyidea-scripts/src/internal/csvin"
	"github.com/H0llyW00dzZ/privacyidea-scripts/src/internal/privacyidea"
	"github.com/hashicorp/go-multierror"
)

var (
	// ErrUnsupportedSeed is returned for seeds that are neither SHA1 (40
	// hex digits) nor SHA256 (64 hex digits) sized.
	ErrUnsupportedSeed = errors.New("tokenops: unsupported seed length")
	// ErrUnknownKind is returned for a hard/soft column other than H or S.
	ErrUnknownKind = errors.New("tokenops: unknown Hard/Soft specifier")
	// ErrNoSerial is returned when a hardware token line has no serial.
	ErrNoSerial = errors.New("tokenops: no serial for hardware token")
)

// AssignTokens reads "serial, username" lines and assigns each token to
// the user in realm.
func (o *Ops) AssignTokens(ctx context.Context, r io.Reader, realm string) error {
	return o.eachRecord(r, func(rec csvin.Record) error {
		serial, username := rec.Field(0), rec.Field(1)
		o.printf("+ Processing user %s@%s.\n", username, realm)
		return o.assign(ctx, serial, username, realm, "")
	}, csvin.WithFields(2))
}

func (o *Ops) assign(ctx context.Context, serial, username, realm, pin string) error {
	o.printf(" +- Processing token %s\n", serial)
	if err := o.API.AssignToken(ctx, serial, username, realm, pin); err != nil {
		o.eprintf(" +-- Failed assigning token %s: %s.\n", serial, apiMessage(err))
		return err
	}
	o.printf(" +-- Assigned token to user %s@%s.\n", username, realm)
	return nil
}

// ReAssignTokens reads lines whose first column is a serial and third
// column a user name, and moves each token to that user in realm. Quotes
// around fields are ignored.
func (o *Ops) ReAssignTokens(ctx context.Context, r io.Reader, realm string) error {
	return o.eachRecord(r, func(rec csvin.Record) error {
		serial, username := rec.Field(0), rec.Field(2)
		o.printf("+ Processing user %s@%s.\n", username, realm)
		if err := o.API.UnassignToken(ctx, serial); err != nil {
			o.eprintf(" +-- Failed unassigning token %s: %s.\n", serial, apiMessage(err))
			return err
		}
		return o.assign(ctx, serial, username, realm, "")
	}, csvin.WithMinFields(3), csvin.WithCutset(" \t'\""))
}

// UserAssignOptions configures CreateUserAssignToken and
// CreateUserAssignRadius.
type UserAssignOptions struct {
	Resolver string
	Realm    string
	// Attributes name the user attributes filled from the two extra
	// columns of the RADIUS variant.
	Attributes [2]string
	// TokenType is enrolled for soft ("S") lines.
	TokenType        string
	RadiusIdentifier string
	// Source is stored as tokeninfo "source" on the RADIUS token.
	Source string
}

func (u UserAssignOptions) attributes() [2]string {
	if u.Attributes[0] == "" && u.Attributes[1] == "" {
		return [2]string{"attribute1", "attribute2"}
	}
	return u.Attributes
}

// CreateUserAssignToken reads "username, email, givenname, surname, serial,
// pin" lines, creates missing users and assigns the token with the PIN.
func (o *Ops) CreateUserAssignToken(ctx context.Context, r io.Reader, opts UserAssignOptions) error {
	return o.eachRecord(r, func(rec csvin.Record) error {
		username := rec.Field(0)
		o.printf("+ Processing user %s in %s/%s.\n", username, opts.Resolver, opts.Realm)
		if err := o.ensureUser(ctx, opts.Resolver, opts.Realm, map[string]string{
			"username":  username,
			"email":     rec.Field(1),
			"givenname": rec.Field(2),
			"surname":   rec.Field(3),
		}, false); err != nil {
			return err
		}
		return o.assign(ctx, rec.Field(4), username, opts.Realm, rec.Field(5))
	}, csvin.WithFields(6))
}

// CreateUserAssignRadius reads "username, email, givenname, surname, H|S,
// attr1, attr2, pin, serial, validity" lines. It creates or updates the
// user, assigns the hardware token (H) or enrolls a soft token (S), and
// finally adds a RADIUS token valid for the given number of days.
func (o *Ops) CreateUserAssignRadius(ctx context.Context, r io.Reader, opts UserAssignOptions) error {
	attrs := opts.attributes()
	tokenType := opts.TokenType
	if tokenType == "" {
		tokenType = "registration"
	}
	source := opts.Source
	if source == "" {
		source = "scriptsource/T"
	}

	return o.eachRecord(r, func(rec csvin.Record) error {
		username, kind := rec.Field(0), strings.ToUpper(rec.Field(4))
		pin, serial := rec.Field(7), rec.Field(8)
		user := username + "@" + opts.Realm
		o.printf("+ Processing user %s in %s/%s.\n", username, opts.Resolver, opts.Realm)

		if err := o.ensureUser(ctx, opts.Resolver, opts.Realm, map[string]string{
			"username":  username,
			"email":     rec.Field(1),
			"givenname": rec.Field(2),
			"surname":   rec.Field(3),
			attrs[0]:    rec.Field(5),
			attrs[1]:    rec.Field(6),
		}, true); err != nil {
			return err
		}

		var result *multierror.Error
		switch kind {
		case "H":
			if serial == "" {
				o.eprintf("+-- User %s is supposed to get a hardware token, but no serial defined!\n", user)
				result = multierror.Append(result, ErrNoSerial)
				break
			}
			if err := o.assign(ctx, serial, username, opts.Realm, pin); err != nil {
				result = multierror.Append(result, err)
			}
		case "S":
			o.printf(" +- Creating token of type %s.\n", tokenType)
			params := privacyidea.Params{"type": tokenType, "genkey": "1", "user": username, "realm": opts.Realm}
			if pin != "" {
				params["pin"] = pin
			}
			res, err := o.API.InitToken(ctx, params)
			if err != nil {
				o.eprintf(" +-- Failed to create token for user %s.\n", user)
				result = multierror.Append(result, err)
			} else if res.RegistrationCode != "" {
				o.printf(" +-- Created token %s with registration code %s.\n", res.Serial, res.RegistrationCode)
			}
		default:
			o.eprintf("+-- Unknown Hard/Soft specifier for user %s: %s\n", user, rec.Field(4))
			result = multierror.Append(result, fmt.Errorf("%w: %q", ErrUnknownKind, rec.Field(4)))
		}

		if err := o.createRadiusToken(ctx, username, opts, source, rec.Field(9)); err != nil {
			o.eprintf(" +-- Failed to create RADIUS token for user %s: %s.\n", user, apiMessage(err))
			result = multierror.Append(result, err)
		}
		return result.ErrorOrNil()
	}, csvin.WithFields(10))
}

func (o *Ops) createRadiusToken(ctx context.Context, username string, opts UserAssignOptions, source, validity string) error {
	o.printf(" +- Creating RADIUS token for user %s@%s.\n", username, opts.Realm)
	days, err := strconv.Atoi(validity)
	if err != nil {
		return fmt.Errorf("validity %q: %w", validity, err)
	}
	res, err := o.API.InitToken(ctx, privacyidea.Params{
		"type":              "radius",
		"genkey":            "1",
		"user":              username,
		"realm":             opts.Realm,
		"radius.identifier": opts.RadiusIdentifier,
		"radius.user":       username,
	})
	if err != nil {
		return err
	}
	now := o.now()
	info := [][2]string{
		{"source", source},
		{"imported", now.Format("2006-01-02T15:04")},
	}
	for _, kv := range info {
		if err := o.API.SetTokenInfo(ctx, res.Serial, kv[0], kv[1]); err != nil {
			return err
		}
	}
	end := now.Add(time.Duration(days) * 24 * time.Hour)
	return o.API.SetTokenOptions(ctx, res.Serial, privacyidea.Params{
		"validity_period_end": end.Format("2006-01-02T15:04-0700"),
	})
}

// SeedHash picks the HMAC hash for a hex seed by its length.
func SeedHash(seed string) (string, error) {
	switch len(seed) {
	case 40:
		return "sha1", nil
	case 64:
		return "sha256", nil
	default:
		return "", fmt.Errorf("%w: %d", ErrUnsupportedSeed, len(seed))
	}
}

// ImportTokens reads "serial, seed, counter, user" lines and enrolls each
// token as an imported hardware token in tokenRealm. An empty user column
// leaves the token unassigned.
func (o *Ops) ImportTokens(ctx context.Context, r io.Reader, tokenRealm string) error {
	return o.eachRecord(r, func(rec csvin.Record) error {
		serial, seed, counter, user := rec.Field(0), rec.Field(1), rec.Field(2), rec.Field(3)
		o.printf(" +- Processing token %s\n", serial)
		if err := o.importToken(ctx, serial, seed, counter, user, tokenRealm); err != nil {
			o.eprintf(" +-- Failed importing token %s: %s.\n", serial, apiMessage(err))
			return err
		}
		return nil
	}, csvin.WithFields(4))
}

func (o *Ops) importToken(ctx context.Context, serial, seed, counter, user, tokenRealm string) error {
	hash, err := SeedHash(seed)
	if err != nil {
		return err
	}
	params := privacyidea.Params{
		"serial":      serial,
		"otpkey":      seed,
		"hashlib":     hash,
		"description": "imported",
		"tokenkind":   "hardware",
	}
	if tokenRealm != "" {
		params["tokenrealms"] = tokenRealm
	}
	if user != "" {
		params["user"] = user
		params["realm"] = tokenRealm
	}
	if _, err := o.API.InitToken(ctx, params); err != nil {
		return err
	}
	count, err := strconv.Atoi(counter)
	if err != nil {
		return fmt.Errorf("counter %q: %w", counter, err)
	}
	if count > 0 {
		return o.API.SetTokenOptions(ctx, serial, privacyidea.Params{"count": strconv.Itoa(count)})
	}
	return nil
}
