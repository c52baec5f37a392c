// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package privacyidea

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"sort"
	"time"
)

// ErrNoDefaultRealm is returned when the server has no default realm.
var ErrNoDefaultRealm = errors.New("privacyidea: no default realm defined")

// User is a user record as returned by /user/. Attribute values are usually
// strings; some resolvers return lists (e.g. several mobile numbers).
type User map[string]any

// Username returns the login name.
func (u User) Username() string { return u.Get("username") }

// Get returns the attribute as a string, taking the first element of a
// list value.
func (u User) Get(key string) string {
	vals := u.Values(key)
	if len(vals) == 0 {
		return ""
	}
	return vals[0]
}

// Values returns all values of an attribute.
func (u User) Values(key string) []string {
	switch v := u[key].(type) {
	case nil:
		return nil
	case string:
		if v == "" {
			return nil
		}
		return []string{v}
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if item != nil {
				out = append(out, fmt.Sprint(item))
			}
		}
		return out
	case []string:
		return v
	case float64:
		return []string{fmt.Sprintf("%v", v)}
	default:
		return []string{fmt.Sprint(v)}
	}
}

// Has reports whether the attribute equals value or, for list attributes,
// contains it.
func (u User) Has(key, value string) bool {
	return slices.Contains(u.Values(key), value)
}

// Attributes returns a copy of the string attributes without the keys
// given in drop.
func (u User) Attributes(drop ...string) map[string]string {
	out := make(map[string]string, len(u))
	for k := range u {
		if slices.Contains(drop, k) {
			continue
		}
		if v := u.Get(k); v != "" {
			out[k] = v
		}
	}
	return out
}

// UserFilter selects users.
type UserFilter struct {
	Realm    string
	Resolver string
	Username string
}

// ListUsers returns the users matching f.
func (c *Client) ListUsers(ctx context.Context, f UserFilter) ([]User, error) {
	q := url.Values{}
	if f.Realm != "" {
		q.Set("realm", f.Realm)
	}
	if f.Resolver != "" {
		q.Set("resolver", f.Resolver)
	}
	if f.Username != "" {
		q.Set("username", f.Username)
	}
	resp, err := c.do(ctx, http.MethodGet, "/user/", q)
	if err != nil {
		return nil, err
	}
	var users []User
	if err := resp.Value(&users); err != nil {
		return nil, fmt.Errorf("privacyidea: decode user list: %w", err)
	}
	return users, nil
}

// UserExists reports whether username is known in realm (and resolver,
// when given).
func (c *Client) UserExists(ctx context.Context, username, realm, resolver string) (bool, error) {
	users, err := c.ListUsers(ctx, UserFilter{Realm: realm, Resolver: resolver, Username: username})
	if err != nil {
		return false, err
	}
	for _, u := range users {
		if u.Username() == username {
			return true, nil
		}
	}
	return false, nil
}

// CreateUser adds a user to an editable resolver.
//
// Parameters:
//   - ctx: Request context
//   - resolver: Target resolver
//   - realm: Realm the resolver belongs to, may be empty
//   - attrs: Attributes including "username"
//
// Returns:
//   - string: ID of the new user as reported by the server
//   - error: Error from the API
func (c *Client) CreateUser(ctx context.Context, resolver, realm string, attrs map[string]string) (string, error) {
	v := userValues(resolver, realm, attrs)
	resp, err := c.do(ctx, http.MethodPost, "/user/", v)
	if err != nil {
		return "", err
	}
	var id any
	if err := resp.Value(&id); err != nil {
		return "", fmt.Errorf("privacyidea: decode user id: %w", err)
	}
	switch id := id.(type) {
	case nil:
		return "", nil
	case float64:
		return fmt.Sprintf("%d", int64(id)), nil
	default:
		return fmt.Sprint(id), nil
	}
}

// UpdateUser changes attributes of an existing user.
func (c *Client) UpdateUser(ctx context.Context, resolver, realm string, attrs map[string]string) error {
	_, err := c.do(ctx, http.MethodPut, "/user/", userValues(resolver, realm, attrs))
	return err
}

func userValues(resolver, realm string, attrs map[string]string) url.Values {
	v := url.Values{}
	for k, val := range attrs {
		v.Set(k, val)
	}
	v.Set("resolver", resolver)
	if realm != "" {
		v.Set("realm", realm)
	}
	return v
}

// DefaultRealm returns the name of the default realm.
func (c *Client) DefaultRealm(ctx context.Context) (string, error) {
	resp, err := c.do(ctx, http.MethodGet, "/defaultrealm", nil)
	if err != nil {
		return "", err
	}
	var realms map[string]any
	if err := resp.Value(&realms); err != nil {
		return "", fmt.Errorf("privacyidea: decode default realm: %w", err)
	}
	names := make([]string, 0, len(realms))
	for name := range realms {
		names = append(names, name)
	}
	if len(names) == 0 {
		return "", ErrNoDefaultRealm
	}
	sort.Strings(names)
	return names[0], nil
}

// ValidateCheck authenticates user with pass and reports the outcome and
// the round trip time.
func (c *Client) ValidateCheck(ctx context.Context, user, realm, pass string) (bool, time.Duration, error) {
	v := url.Values{"user": {user}, "pass": {pass}}
	if realm != "" {
		v.Set("realm", realm)
	}
	start := time.Now()
	resp, err := c.do(ctx, http.MethodPost, "/validate/check", v)
	elapsed := time.Since(start)
	if err != nil {
		return false, elapsed, err
	}
	var ok bool
	if err := resp.Value(&ok); err != nil {
		return false, elapsed, fmt.Errorf("privacyidea: decode validate result: %w", err)
	}
	return ok, elapsed, nil
}
