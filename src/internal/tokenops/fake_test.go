// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package tokenops_test

import (
	"bytes"
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/H0llyW00dzZ/privacyidea-scripts/src/internal/privacyidea"
	"github.com/H0llyW00dzZ/privacyidea-scripts/src/internal/tokenops"
	"github.com/H0llyW00dzZ/privacyidea-scripts/src/logger"
)

type fakeUser struct {
	realm    string
	resolver string
	attrs    privacyidea.User
}

// fakeAPI is an in-memory platform: tokens and users live in slices, every
// mutating call is appended to calls as a short human readable string.
type fakeAPI struct {
	tokens       []privacyidea.Token
	users        []fakeUser
	defaultRealm string
	calls        []string
	// fail maps "<op> <serial or user>" to the error the call returns.
	fail     map[string]error
	next     int
	nextUID  int
	validate []time.Duration
}

var _ tokenops.API = (*fakeAPI)(nil)

func (f *fakeAPI) failure(op, key string) error {
	if err, ok := f.fail[op+" "+key]; ok {
		return err
	}
	return nil
}

func (f *fakeAPI) record(format string, args ...any) {
	f.calls = append(f.calls, fmt.Sprintf(format, args...))
}

func (f *fakeAPI) find(serial string) *privacyidea.Token {
	for i := range f.tokens {
		if f.tokens[i].Serial == serial {
			return &f.tokens[i]
		}
	}
	return nil
}

func (f *fakeAPI) InitToken(_ context.Context, p privacyidea.Params) (*privacyidea.InitResult, error) {
	if err := f.failure("init", p["user"]); err != nil {
		return nil, err
	}
	serial := p["serial"]
	if serial == "" {
		f.next++
		serial = fmt.Sprintf("%s%04d", strings.ToUpper(p["type"]), f.next)
	}
	tok := privacyidea.Token{
		Serial:    serial,
		TokenType: p["type"],
		Active:    true,
		Username:  p["user"],
		UserRealm: p["realm"],
		Info:      map[string]string{},
	}
	for _, key := range []string{"phone", "email", "tokenkind"} {
		if v := p[key]; v != "" {
			tok.Info[key] = v
		}
	}
	f.tokens = append(f.tokens, tok)
	keys := make([]string, 0, len(p))
	for k, v := range p {
		if k == "otpkey" {
			v = "*"
		}
		keys = append(keys, k+"="+v)
	}
	slices.Sort(keys)
	f.record("init %s", strings.Join(keys, " "))
	res := &privacyidea.InitResult{Serial: serial}
	if p["type"] == "registration" {
		res.RegistrationCode = "code-" + serial
	}
	return res, nil
}

func (f *fakeAPI) ListTokens(_ context.Context, flt privacyidea.TokenFilter) ([]privacyidea.Token, error) {
	if err := f.failure("list", flt.User); err != nil {
		return nil, err
	}
	var out []privacyidea.Token
	for _, t := range f.tokens {
		switch {
		case flt.Serial != "" && t.Serial != flt.Serial,
			flt.Type != "" && !strings.EqualFold(t.TokenType, flt.Type),
			flt.User != "" && t.Username != flt.User,
			flt.Realm != "" && t.UserRealm != flt.Realm && !slices.Contains(t.Realms, flt.Realm),
			flt.Resolver != "" && t.Resolver != flt.Resolver,
			flt.RolloutState != "" && t.RolloutState != flt.RolloutState,
			flt.Assigned != nil && t.Assigned() != *flt.Assigned:
			continue
		}
		if flt.Match(t) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeAPI) TokenOwner(ctx context.Context, serial string) (*privacyidea.Token, error) {
	tok := f.find(serial)
	if tok == nil {
		return nil, fmt.Errorf("%w: %s", privacyidea.ErrTokenNotFound, serial)
	}
	cp := *tok
	return &cp, nil
}

func (f *fakeAPI) DeleteToken(_ context.Context, serial string) error {
	if err := f.failure("delete", serial); err != nil {
		return err
	}
	f.tokens = slices.DeleteFunc(f.tokens, func(t privacyidea.Token) bool { return t.Serial == serial })
	f.record("delete %s", serial)
	return nil
}

func (f *fakeAPI) setActive(serial string, active bool) {
	if tok := f.find(serial); tok != nil {
		tok.Active = active
	}
}

func (f *fakeAPI) EnableToken(_ context.Context, serial string) error {
	f.setActive(serial, true)
	f.record("enable %s", serial)
	return nil
}

func (f *fakeAPI) DisableToken(_ context.Context, serial string) error {
	f.setActive(serial, false)
	f.record("disable %s", serial)
	return nil
}

func (f *fakeAPI) AssignToken(_ context.Context, serial, user, realm, pin string) error {
	if err := f.failure("assign", serial); err != nil {
		return err
	}
	if tok := f.find(serial); tok != nil {
		tok.Username, tok.UserRealm = user, realm
	}
	if pin != "" {
		f.record("assign %s %s@%s pin=%s", serial, user, realm, pin)
		return nil
	}
	f.record("assign %s %s@%s", serial, user, realm)
	return nil
}

func (f *fakeAPI) AssignTokenIn(_ context.Context, serial, user, realm, resolver string) error {
	if err := f.failure("assign", serial); err != nil {
		return err
	}
	if tok := f.find(serial); tok != nil {
		tok.Username, tok.UserRealm, tok.Resolver = user, realm, resolver
	}
	f.record("assign %s %s.%s@%s", serial, user, resolver, realm)
	return nil
}

func (f *fakeAPI) UnassignToken(_ context.Context, serial string) error {
	if err := f.failure("unassign", serial); err != nil {
		return err
	}
	if tok := f.find(serial); tok != nil {
		tok.Username, tok.UserRealm, tok.Resolver, tok.UserID = "", "", "", ""
	}
	f.record("unassign %s", serial)
	return nil
}

func (f *fakeAPI) SetPin(_ context.Context, serial, pin string) error {
	f.record("setpin %s %s", serial, pin)
	return nil
}

func (f *fakeAPI) ResetFailcount(_ context.Context, serial string) error {
	f.record("reset %s", serial)
	return nil
}

func (f *fakeAPI) SetTokenInfo(_ context.Context, serial, key, value string) error {
	if tok := f.find(serial); tok != nil {
		if tok.Info == nil {
			tok.Info = map[string]string{}
		}
		tok.Info[key] = value
	}
	f.record("info %s %s=%s", serial, key, value)
	return nil
}

func (f *fakeAPI) SetTokenOptions(_ context.Context, serial string, options privacyidea.Params) error {
	keys := make([]string, 0, len(options))
	for k, v := range options {
		keys = append(keys, k+"="+v)
	}
	slices.Sort(keys)
	f.record("set %s %s", serial, strings.Join(keys, " "))
	return nil
}

func (f *fakeAPI) AttachToken(_ context.Context, mt privacyidea.MachineToken) error {
	f.record("attach %s %s host=%s user=%s", mt.Serial, mt.Application, mt.Hostname, mt.Options["user"])
	return nil
}

func (f *fakeAPI) DetachToken(_ context.Context, mt privacyidea.MachineToken) error {
	f.record("detach %s %s host=%s", mt.Serial, mt.Application, mt.Hostname)
	return nil
}

func (f *fakeAPI) ListUsers(_ context.Context, flt privacyidea.UserFilter) ([]privacyidea.User, error) {
	var out []privacyidea.User
	for _, u := range f.users {
		if (flt.Realm != "" && u.realm != flt.Realm) ||
			(flt.Resolver != "" && u.resolver != flt.Resolver) ||
			(flt.Username != "" && u.attrs.Username() != flt.Username) {
			continue
		}
		out = append(out, u.attrs)
	}
	return out, nil
}

func (f *fakeAPI) UserExists(ctx context.Context, username, realm, resolver string) (bool, error) {
	users, err := f.ListUsers(ctx, privacyidea.UserFilter{Realm: realm, Resolver: resolver, Username: username})
	return len(users) > 0, err
}

func (f *fakeAPI) CreateUser(_ context.Context, resolver, realm string, attrs map[string]string) (string, error) {
	if err := f.failure("createuser", attrs["username"]); err != nil {
		return "", err
	}
	f.nextUID++
	id := fmt.Sprint(f.nextUID)
	u := privacyidea.User{"userid": id, "resolver": resolver}
	for k, v := range attrs {
		u[k] = v
	}
	f.users = append(f.users, fakeUser{realm: realm, resolver: resolver, attrs: u})
	f.record("createuser %s %s@%s", attrs["username"], resolver, realm)
	return id, nil
}

func (f *fakeAPI) UpdateUser(_ context.Context, resolver, realm string, attrs map[string]string) error {
	f.record("updateuser %s %s@%s", attrs["username"], resolver, realm)
	return nil
}

func (f *fakeAPI) DefaultRealm(context.Context) (string, error) {
	if f.defaultRealm == "" {
		return "", privacyidea.ErrNoDefaultRealm
	}
	return f.defaultRealm, nil
}

func (f *fakeAPI) ValidateCheck(_ context.Context, user, realm, pass string) (bool, time.Duration, error) {
	if len(f.validate) == 0 {
		return false, 0, fmt.Errorf("no more validate responses")
	}
	d := f.validate[0]
	f.validate = f.validate[1:]
	return pass == "secret", d, nil
}

func newUser(realm, resolver string, attrs privacyidea.User) fakeUser {
	attrs["resolver"] = resolver
	return fakeUser{realm: realm, resolver: resolver, attrs: attrs}
}

type harness struct {
	api *fakeAPI
	ops *tokenops.Ops
	out *bytes.Buffer
	err *bytes.Buffer
	log *bytes.Buffer
}

var fixedNow = time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)

func newHarness(api *fakeAPI) *harness {
	h := &harness{api: api, out: &bytes.Buffer{}, err: &bytes.Buffer{}, log: &bytes.Buffer{}}
	h.ops = &tokenops.Ops{
		API: api,
		Out: h.out,
		Err: h.err,
		Log: logger.NewLeveled("pi-tools", h.log, "debug"),
		Now: func() time.Time { return fixedNow },
	}
	return h
}
