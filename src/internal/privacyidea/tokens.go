// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package privacyidea

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"net/http"
	"net/url"
	"strconv"
)

// ErrTokenNotFound is returned when a serial does not match any token.
var ErrTokenNotFound = errors.New("privacyidea: token not found")

// DefaultPageSize is used by ListTokens when the filter sets none.
const DefaultPageSize = 50

// Params are extra form parameters passed through unchanged.
type Params map[string]string

func (p Params) values() url.Values {
	v := make(url.Values, len(p))
	for k, val := range p {
		v.Set(k, val)
	}
	return v
}

// Token is one entry of a token list.
type Token struct {
	ID           int               `json:"id"`
	Serial       string            `json:"serial"`
	TokenType    string            `json:"tokentype"`
	Description  string            `json:"description"`
	Active       bool              `json:"active"`
	Revoked      bool              `json:"revoked"`
	Locked       bool              `json:"locked"`
	Username     string            `json:"username"`
	UserID       string            `json:"user_id"`
	UserRealm    string            `json:"user_realm"`
	Resolver     string            `json:"resolver"`
	Realms       []string          `json:"realms"`
	RolloutState string            `json:"rollout_state"`
	FailCount    int               `json:"failcount"`
	MaxFail      int               `json:"maxfail"`
	Count        int               `json:"count"`
	Info         map[string]string `json:"info"`
}

// Assigned reports whether the token has an owner.
func (t Token) Assigned() bool { return t.Username != "" || t.UserID != "" }

// TokenFilter selects tokens. Server side parameters are sent as query
// values; Active and Info are applied to the returned list.
type TokenFilter struct {
	Serial       string
	Type         string
	User         string
	Realm        string
	TokenRealm   string
	Resolver     string
	RolloutState string
	Assigned     *bool
	Active       *bool
	Info         map[string]string
	PageSize     int
}

// Bool returns a pointer to v for the optional filter fields.
func Bool(v bool) *bool { return &v }

func (f TokenFilter) query() url.Values {
	q := url.Values{}
	set := func(k, v string) {
		if v != "" {
			q.Set(k, v)
		}
	}
	set("serial", f.Serial)
	set("type", f.Type)
	set("user", f.User)
	set("realm", f.Realm)
	set("tokenrealm", f.TokenRealm)
	set("resolver", f.Resolver)
	set("rollout_state", f.RolloutState)
	if f.Assigned != nil {
		q.Set("assigned", strconv.FormatBool(*f.Assigned))
	}
	size := f.PageSize
	if size <= 0 {
		size = DefaultPageSize
	}
	q.Set("pagesize", strconv.Itoa(size))
	return q
}

// Match applies the client side parts of the filter.
func (f TokenFilter) Match(t Token) bool {
	if f.Active != nil && t.Active != *f.Active {
		return false
	}
	for k, v := range f.Info {
		if got, ok := t.Info[k]; !ok || got != v {
			return false
		}
	}
	return true
}

type tokenPage struct {
	Tokens []Token `json:"tokens"`
	Count  int     `json:"count"`
	Next   *int    `json:"next"`
}

// ListTokens returns every token matching f, following the pagination.
//
// Parameters:
//   - ctx: Request context
//   - f: Token filter
//
// Returns:
//   - []Token: Matching tokens in server order
//   - error: Error from the API
func (c *Client) ListTokens(ctx context.Context, f TokenFilter) ([]Token, error) {
	q := f.query()
	var out []Token
	for page := 1; ; {
		q.Set("page", strconv.Itoa(page))
		resp, err := c.do(ctx, http.MethodGet, "/token/", q)
		if err != nil {
			return nil, err
		}
		var p tokenPage
		if err := resp.Value(&p); err != nil {
			return nil, fmt.Errorf("privacyidea: decode token list: %w", err)
		}
		for _, t := range p.Tokens {
			if f.Match(t) {
				out = append(out, t)
			}
		}
		if p.Next == nil || *p.Next <= page {
			return out, nil
		}
		page = *p.Next
	}
}

// TokenOwner looks up the token with the given serial.
func (c *Client) TokenOwner(ctx context.Context, serial string) (*Token, error) {
	toks, err := c.ListTokens(ctx, TokenFilter{Serial: serial})
	if err != nil {
		return nil, err
	}
	if len(toks) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrTokenNotFound, serial)
	}
	return &toks[0], nil
}

// InitResult is the detail of a successful enrollment.
type InitResult struct {
	Serial           string
	RegistrationCode string
	OTPKey           string
	GoogleURL        string
}

// InitToken enrolls a token.
//
// Parameters:
//   - ctx: Request context
//   - params: Form parameters such as type, genkey, user, realm, serial
//
// Returns:
//   - *InitResult: Serial and, depending on the type, registration code or key
//   - error: Error from the API
func (c *Client) InitToken(ctx context.Context, params Params) (*InitResult, error) {
	resp, err := c.do(ctx, http.MethodPost, "/token/init", params.values())
	if err != nil {
		return nil, err
	}
	var detail struct {
		Serial           string `json:"serial"`
		RegistrationCode string `json:"registrationcode"`
		OTPKey           struct {
			Value string `json:"value"`
		} `json:"otpkey"`
		GoogleURL struct {
			Value string `json:"value"`
		} `json:"googleurl"`
	}
	if err := resp.DetailInto(&detail); err != nil {
		return nil, fmt.Errorf("privacyidea: decode init detail: %w", err)
	}
	return &InitResult{
		Serial:           detail.Serial,
		RegistrationCode: detail.RegistrationCode,
		OTPKey:           detail.OTPKey.Value,
		GoogleURL:        detail.GoogleURL.Value,
	}, nil
}

// DeleteToken removes a token.
func (c *Client) DeleteToken(ctx context.Context, serial string) error {
	_, err := c.do(ctx, http.MethodDelete, "/token", nil, serial)
	return err
}

// EnableToken activates a token.
func (c *Client) EnableToken(ctx context.Context, serial string) error {
	return c.serialCall(ctx, "/token/enable", serial, nil)
}

// DisableToken deactivates a token.
func (c *Client) DisableToken(ctx context.Context, serial string) error {
	return c.serialCall(ctx, "/token/disable", serial, nil)
}

// AssignToken gives a token to user@realm. An empty pin leaves the PIN
// unchanged.
func (c *Client) AssignToken(ctx context.Context, serial, user, realm, pin string) error {
	p := Params{"user": user, "realm": realm}
	if pin != "" {
		p["pin"] = pin
	}
	return c.serialCall(ctx, "/token/assign", serial, p)
}

// AssignTokenIn is AssignToken for a user of a specific resolver, for
// logins that exist in several resolvers of a realm.
func (c *Client) AssignTokenIn(ctx context.Context, serial, user, realm, resolver string) error {
	return c.serialCall(ctx, "/token/assign", serial, Params{"user": user, "realm": realm, "resolver": resolver})
}

// UnassignToken removes the owner of a token.
func (c *Client) UnassignToken(ctx context.Context, serial string) error {
	return c.serialCall(ctx, "/token/unassign", serial, nil)
}

// SetPin sets the OTP PIN of a token.
func (c *Client) SetPin(ctx context.Context, serial, pin string) error {
	return c.serialCall(ctx, "/token/setpin", serial, Params{"otppin": pin})
}

// ResetFailcount resets the fail counter of a token.
func (c *Client) ResetFailcount(ctx context.Context, serial string) error {
	return c.serialCall(ctx, "/token/reset", serial, nil)
}

// SetTokenInfo writes a single tokeninfo entry.
func (c *Client) SetTokenInfo(ctx context.Context, serial, key, value string) error {
	_, err := c.do(ctx, http.MethodPost, "/token/info", url.Values{"value": {value}}, serial, key)
	return err
}

// SetTokenOptions sets token attributes such as description, hashlib,
// count or validity_period_end.
func (c *Client) SetTokenOptions(ctx context.Context, serial string, options Params) error {
	return c.serialCall(ctx, "/token/set", serial, options)
}

func (c *Client) serialCall(ctx context.Context, path, serial string, extra Params) error {
	p := Params{"serial": serial}
	maps.Copy(p, extra)
	_, err := c.do(ctx, http.MethodPost, path, p.values())
	return err
}
