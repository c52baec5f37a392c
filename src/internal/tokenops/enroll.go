// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package tokenops

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"maps"
	"strconv"
	"strings"

	"github.com/H0llyW00dzZ/privacyidea-scripts/src/internal/csvin"
	"github.com/H0llyW00dzZ/privacyidea-scripts/src/internal/privacyidea"
	"github.com/H0llyW00dzZ/privacyidea-scripts/src/internal/sms"
	"github.com/hashicorp/go-multierror"
	"github.com/mr-tron/base58"
)

// DefaultPasswordLength is the length of generated pw token passwords.
const DefaultPasswordLength = 10

// RandomPassword returns n characters of base58 drawn from crypto/rand.
func RandomPassword(n int) (string, error) {
	if n <= 0 {
		n = DefaultPasswordLength
	}
	var b strings.Builder
	for b.Len() < n {
		raw := make([]byte, n)
		if _, err := rand.Read(raw); err != nil {
			return "", fmt.Errorf("tokenops: random password: %w", err)
		}
		b.WriteString(base58.Encode(raw))
	}
	return b.String()[:n], nil
}

// CreateTokenOptions configures CreateToken.
type CreateTokenOptions struct {
	Type   string
	Length int
	Realm  string
	// Serial is used as is for a single token and as a prefix when Count
	// is greater than one.
	Serial string
	User   string
	Count  int
}

// CreateToken enrolls password tokens with random passwords and prints
// "serial: password" for each.
func (o *Ops) CreateToken(ctx context.Context, opts CreateTokenOptions) error {
	typ := opts.Type
	if typ == "" {
		typ = "pw"
	}
	length := opts.Length
	if length <= 0 {
		length = DefaultPasswordLength
	}
	count := max(opts.Count, 1)

	for i := 1; i <= count; i++ {
		password, err := RandomPassword(length)
		if err != nil {
			return err
		}
		params := privacyidea.Params{
			"type":   typ,
			"otpkey": password,
			"otplen": strconv.Itoa(length),
		}
		switch {
		case opts.Serial != "" && count == 1:
			params["serial"] = opts.Serial
		case opts.Serial != "":
			params["serial"] = fmt.Sprintf("%s%04d", opts.Serial, i)
		}
		if opts.User != "" {
			params["user"] = opts.User
			params["realm"] = opts.Realm
		} else if opts.Realm != "" {
			params["tokenrealms"] = opts.Realm
		}
		res, err := o.API.InitToken(ctx, params)
		if err != nil {
			return err
		}
		o.printf("%s: %s\n", res.Serial, password)
	}
	return nil
}

// tokenWithInfo reports whether one of toks carries value under key,
// comparing phone numbers in normalized form when region is set.
func tokenWithInfo(toks []privacyidea.Token, key, value, region string) bool {
	for _, tok := range toks {
		got := tok.Info[key]
		if got == "" {
			continue
		}
		if region != "" {
			if sms.NormalizePhone(got, region) == sms.NormalizePhone(value, region) {
				return true
			}
		} else if strings.EqualFold(got, value) {
			return true
		}
	}
	return false
}

// SMSTokenOptions configures CreateSMSTokens.
type SMSTokenOptions struct {
	Realm string
	// Region is the ISO country used for numbers without a country code.
	Region string
}

// CreateSMSTokens reads "username, phone" lines and enrolls an SMS token
// for every user that has none with that number.
func (o *Ops) CreateSMSTokens(ctx context.Context, r io.Reader, opts SMSTokenOptions) error {
	region := opts.Region
	if region == "" {
		region = sms.DefaultRegion
	}
	return o.eachRecord(r, func(rec csvin.Record) error {
		user, phone := rec.Field(0), sms.NormalizePhone(rec.Field(1), region)
		o.printf("Processing user: %s@%s with phone %s.\n", user, opts.Realm, phone)
		toks, err := o.API.ListTokens(ctx, privacyidea.TokenFilter{User: user, Realm: opts.Realm, Type: "sms"})
		if err != nil {
			o.printf("Error processing line %d: %v\n", rec.Line, err)
			return err
		}
		if tokenWithInfo(toks, "phone", phone, region) {
			return nil
		}
		if _, err := o.API.InitToken(ctx, privacyidea.Params{
			"type": "sms", "genkey": "1", "phone": phone, "user": user, "realm": opts.Realm,
		}); err != nil {
			o.printf("Error processing line %d: %v\n", rec.Line, err)
			return err
		}
		o.printf("Created SMS token for user: %s\n", user)
		return nil
	}, csvin.WithFields(2))
}

// AttributeOptions configures CreateSMSEmailFromAttributes.
type AttributeOptions struct {
	Realm      string
	MobileAttr string
	EmailAttr  string
	Region     string
}

// CreateSMSEmailFromAttributes enrolls SMS and email tokens from the
// mobile and email attributes of every user in the realm, skipping numbers
// and addresses that already have a token.
func (o *Ops) CreateSMSEmailFromAttributes(ctx context.Context, opts AttributeOptions) error {
	mobileAttr, emailAttr := opts.MobileAttr, opts.EmailAttr
	if mobileAttr == "" {
		mobileAttr = "mobile"
	}
	if emailAttr == "" {
		emailAttr = "email"
	}
	region := opts.Region
	if region == "" {
		region = sms.DefaultRegion
	}

	users, err := o.API.ListUsers(ctx, privacyidea.UserFilter{Realm: opts.Realm})
	if err != nil {
		return err
	}
	var result *multierror.Error
	for _, u := range users {
		name := u.Username()
		if mobile := u.Get(mobileAttr); mobile != "" {
			phone := sms.NormalizePhone(mobile, region)
			created, err := o.enrollUnlessPresent(ctx, name, opts.Realm, "sms", "phone", phone, region)
			if err != nil {
				result = multierror.Append(result, err)
			} else if created {
				o.printf("Created SMS token for user: %s\n", name)
			}
		}
		if email := u.Get(emailAttr); email != "" {
			created, err := o.enrollUnlessPresent(ctx, name, opts.Realm, "email", "email", email, "")
			if err != nil {
				result = multierror.Append(result, err)
			} else if created {
				o.printf("Created Email token for user: %s\n", name)
			}
		}
	}
	return result.ErrorOrNil()
}

func (o *Ops) enrollUnlessPresent(ctx context.Context, user, realm, typ, key, value, region string) (bool, error) {
	toks, err := o.API.ListTokens(ctx, privacyidea.TokenFilter{User: user, Realm: realm, Type: typ})
	if err != nil {
		return false, err
	}
	if tokenWithInfo(toks, key, value, region) {
		return false, nil
	}
	_, err = o.API.InitToken(ctx, privacyidea.Params{
		"type": typ, "genkey": "1", key: value, "user": user, "realm": realm,
	})
	if err != nil {
		return false, fmt.Errorf("%s token for %s@%s: %w", typ, user, realm, err)
	}
	return true, nil
}

// DefaultTokensOptions configures CreateDefaultTokens.
type DefaultTokensOptions struct {
	Realm string
	User  string
	// UserInfoKey and UserInfoValue restrict enrollment to users whose
	// attribute equals (or, for lists, contains) the value.
	UserInfoKey   string
	UserInfoValue string
	// TokenType overrides Types with a single type.
	TokenType string
	Types     []string
	// Params holds extra init parameters per token type.
	Params map[string]privacyidea.Params
}

// DefaultTokenParams are the per-type init parameters used when none are
// configured.
func DefaultTokenParams() map[string]privacyidea.Params {
	return map[string]privacyidea.Params{
		"sms":          {"dynamic_phone": "true"},
		"email":        {"dynamic_email": "true"},
		"registration": {"description": "initial token"},
	}
}

// CreateDefaultTokens enrolls the default token types for the users of a
// realm (or a single user). Users that already own a token of a type, or
// lack the attribute an email or SMS token needs, are skipped.
func (o *Ops) CreateDefaultTokens(ctx context.Context, opts DefaultTokensOptions) error {
	if isNone(opts.Realm) || strings.EqualFold(opts.User, "none") {
		return nil
	}
	types := opts.Types
	if opts.TokenType != "" {
		types = []string{opts.TokenType}
	}
	if len(types) == 0 {
		types = []string{"registration"}
	}
	extra := opts.Params
	if extra == nil {
		extra = DefaultTokenParams()
	}

	users, err := o.API.ListUsers(ctx, privacyidea.UserFilter{Realm: opts.Realm, Username: opts.User})
	if err != nil {
		return err
	}
	if opts.User != "" && len(users) == 0 {
		o.Log.Warnf("User %s does not exists in any resolver in realm %s", opts.User, opts.Realm)
		return nil
	}

	var result *multierror.Error
	for _, u := range users {
		name := u.Username()
		if opts.UserInfoKey != "" && !u.Has(opts.UserInfoKey, opts.UserInfoValue) {
			continue
		}
		for _, typ := range types {
			toks, err := o.API.ListTokens(ctx, privacyidea.TokenFilter{User: name, Realm: opts.Realm, Type: typ})
			if err != nil {
				result = multierror.Append(result, err)
				continue
			}
			if len(toks) > 0 {
				o.Log.Infof("User %s in realm %s already has a %s token. Not creating another one.", name, opts.Realm, typ)
				continue
			}
			if (typ == "email" && u.Get("email") == "") || (typ == "sms" && u.Get("mobile") == "") {
				o.Log.Warnf("User attribute missing for user %s@%s.Cannot create %s token.", name, opts.Realm, typ)
				continue
			}
			params := privacyidea.Params{"type": typ, "genkey": "1", "user": name, "realm": opts.Realm}
			maps.Copy(params, extra[typ])
			if _, err := o.API.InitToken(ctx, params); err != nil {
				o.Log.Errorf("Enrolling %s token for user %s in realm %s via API: %s", typ, name, opts.Realm, apiMessage(err))
				result = multierror.Append(result, err)
				continue
			}
			o.Log.Infof("Enrolled a primary %s token for user %s in realm %s", typ, name, opts.Realm)
		}
	}
	return result.ErrorOrNil()
}

// CreateTokensViaAPI reads one user name per line and enrolls a token of
// tokenType (registration when empty) for each, printing the serials.
func (o *Ops) CreateTokensViaAPI(ctx context.Context, r io.Reader, realm, tokenType string) error {
	if tokenType == "" {
		tokenType = "registration"
	}
	return o.eachRecord(r, func(rec csvin.Record) error {
		params := privacyidea.Params{"type": tokenType, "genkey": "1", "user": rec.Field(0)}
		if realm != "" {
			params["realm"] = realm
		}
		res, err := o.API.InitToken(ctx, params)
		if err != nil {
			o.eprintf("Failed to create token for user %s: %s\n", rec.Field(0), apiMessage(err))
			return err
		}
		o.printf("%s\n", res.Serial)
		return nil
	}, csvin.WithFields(1))
}

// MassCreateOptions configures MassCreateToken.
type MassCreateOptions struct {
	Resolver  string
	Realm     string
	TokenType string
}

// MassCreateToken reads "username, email, givenname, surname, pin" lines,
// creates missing users and enrolls a token with the PIN for each.
func (o *Ops) MassCreateToken(ctx context.Context, r io.Reader, opts MassCreateOptions) error {
	typ := opts.TokenType
	if typ == "" {
		typ = "hotp"
	}
	return o.eachRecord(r, func(rec csvin.Record) error {
		username, pin := rec.Field(0), rec.Field(4)
		o.printf("+ Processing user %s in %s/%s.\n", username, opts.Resolver, opts.Realm)
		if err := o.ensureUser(ctx, opts.Resolver, opts.Realm, map[string]string{
			"username":  username,
			"email":     rec.Field(1),
			"givenname": rec.Field(2),
			"surname":   rec.Field(3),
		}, false); err != nil {
			return err
		}
		res, err := o.API.InitToken(ctx, privacyidea.Params{
			"type": typ, "genkey": "1", "pin": pin, "user": username, "realm": opts.Realm,
		})
		if err != nil {
			o.eprintf(" +-- Failed to create token: %s\n", apiMessage(err))
			return err
		}
		o.printf(" +-- Created token %s.\n", res.Serial)
		return nil
	}, csvin.WithFields(5))
}

// ensureUser creates the user when it does not exist yet. With update set
// an existing user gets the attributes written.
func (o *Ops) ensureUser(ctx context.Context, resolver, realm string, attrs map[string]string, update bool) error {
	username := attrs["username"]
	exists, err := o.API.UserExists(ctx, username, realm, resolver)
	if err != nil {
		o.eprintf(" +-- Failed finding user: %s.\n", apiMessage(err))
		return err
	}
	if exists {
		if !update {
			return nil
		}
		o.printf(" +- Updating user %s in %s/%s.\n", username, resolver, realm)
		if err := o.API.UpdateUser(ctx, resolver, realm, attrs); err != nil {
			o.eprintf("+-- Failed to update user: %s.\n", apiMessage(err))
			return err
		}
		return nil
	}
	o.printf(" +- Creating user %s in %s/%s.\n", username, resolver, realm)
	create := maps.Clone(attrs)
	create["password"] = ""
	if _, err := o.API.CreateUser(ctx, resolver, realm, create); err != nil {
		o.eprintf("+-- Failed to create user: %s.\n", apiMessage(err))
		return err
	}
	return nil
}
