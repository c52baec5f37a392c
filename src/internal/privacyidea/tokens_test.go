// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package privacyidea_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/H0llyW00dzZ/privacyidea-scripts/src/internal/privacyidea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListTokens_Paging(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /token/", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "alice", q.Get("user"))
		assert.Equal(t, "corp", q.Get("realm"))
		assert.Equal(t, "2", q.Get("pagesize"))
		switch q.Get("page") {
		case "1":
			writeOK(w, map[string]any{
				"count": 3, "current": 1, "next": 2, "prev": nil,
				"tokens": []map[string]any{
					{"serial": "TOTP1", "tokentype": "totp", "active": true, "info": map[string]string{"tokenkind": "software"}},
					{"serial": "HOTP1", "tokentype": "hotp", "active": false},
				},
			}, nil)
		case "2":
			writeOK(w, map[string]any{
				"count": 3, "current": 2, "next": nil, "prev": 1,
				"tokens": []map[string]any{
					{"serial": "TOTP2", "tokentype": "totp", "active": true, "info": map[string]string{"tokenkind": "hardware"}},
				},
			}, nil)
		default:
			t.Errorf("unexpected page %q", q.Get("page"))
		}
	})
	c := newClient(t, mux)
	ctx := context.Background()

	tests := []struct {
		name   string
		filter privacyidea.TokenFilter
		want   []string
	}{
		{
			name:   "all",
			filter: privacyidea.TokenFilter{User: "alice", Realm: "corp", PageSize: 2},
			want:   []string{"TOTP1", "HOTP1", "TOTP2"},
		},
		{
			name:   "only active",
			filter: privacyidea.TokenFilter{User: "alice", Realm: "corp", PageSize: 2, Active: privacyidea.Bool(true)},
			want:   []string{"TOTP1", "TOTP2"},
		},
		{
			name:   "only inactive",
			filter: privacyidea.TokenFilter{User: "alice", Realm: "corp", PageSize: 2, Active: privacyidea.Bool(false)},
			want:   []string{"HOTP1"},
		},
		{
			name: "tokeninfo",
			filter: privacyidea.TokenFilter{
				User: "alice", Realm: "corp", PageSize: 2,
				Info: map[string]string{"tokenkind": "software"},
			},
			want: []string{"TOTP1"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			toks, err := c.ListTokens(ctx, tt.filter)
			require.NoError(t, err)
			var got []string
			for _, tok := range toks {
				got = append(got, tok.Serial)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestListTokens_Query(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /token/", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "sms", q.Get("type"))
		assert.Equal(t, "false", q.Get("assigned"))
		assert.Equal(t, "clientwait", q.Get("rollout_state"))
		assert.Equal(t, "ldap1", q.Get("resolver"))
		assert.Equal(t, "50", q.Get("pagesize"))
		assert.Empty(t, q.Get("user"))
		writeOK(w, map[string]any{"count": 0, "next": nil, "tokens": []any{}}, nil)
	})
	c := newClient(t, mux)

	toks, err := c.ListTokens(context.Background(), privacyidea.TokenFilter{
		Type:         "sms",
		Assigned:     privacyidea.Bool(false),
		RolloutState: "clientwait",
		Resolver:     "ldap1",
	})
	require.NoError(t, err)
	assert.Empty(t, toks)
}

func TestTokenOwner(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /token/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("serial") == "TAN1" {
			writeOK(w, map[string]any{"next": nil, "tokens": []map[string]any{
				{"serial": "TAN1", "tokentype": "tan", "username": "bob", "user_realm": "corp", "resolver": "ldap1", "user_id": "42"},
			}}, nil)
			return
		}
		writeOK(w, map[string]any{"next": nil, "tokens": []any{}}, nil)
	})
	c := newClient(t, mux)
	ctx := context.Background()

	tok, err := c.TokenOwner(ctx, "TAN1")
	require.NoError(t, err)
	assert.Equal(t, "bob", tok.Username)
	assert.Equal(t, "corp", tok.UserRealm)
	assert.True(t, tok.Assigned())

	_, err = c.TokenOwner(ctx, "MISSING")
	assert.ErrorIs(t, err, privacyidea.ErrTokenNotFound)
}

func TestInitToken(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /token/init", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))
		assert.Equal(t, "admin-jwt", r.Header.Get("Authorization"))
		assert.Equal(t, "registration", r.PostForm.Get("type"))
		assert.Equal(t, "1", r.PostForm.Get("genkey"))
		writeOK(w, true, map[string]any{
			"serial":           "REG0001",
			"registrationcode": "abcd-efgh",
			"googleurl":        map[string]any{"value": "otpauth://hotp/REG0001"},
		})
	})
	c := newClient(t, mux)

	res, err := c.InitToken(context.Background(), privacyidea.Params{
		"type": "registration", "genkey": "1", "user": "alice", "realm": "corp",
	})
	require.NoError(t, err)
	assert.Equal(t, "REG0001", res.Serial)
	assert.Equal(t, "abcd-efgh", res.RegistrationCode)
	assert.Equal(t, "otpauth://hotp/REG0001", res.GoogleURL)
}

func TestTokenLifecycleCalls(t *testing.T) {
	type call struct {
		method, path string
		form         map[string]string
	}
	var calls []call
	record := func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		form := map[string]string{}
		for k := range r.Form {
			form[k] = r.Form.Get(k)
		}
		calls = append(calls, call{r.Method, r.URL.Path, form})
		writeOK(w, 1, nil)
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/", record)
	c := newClient(t, mux)
	ctx := context.Background()

	require.NoError(t, c.EnableToken(ctx, "S1"))
	require.NoError(t, c.DisableToken(ctx, "S1"))
	require.NoError(t, c.AssignToken(ctx, "S1", "alice", "corp", ""))
	require.NoError(t, c.AssignToken(ctx, "S1", "alice", "corp", "0000"))
	require.NoError(t, c.AssignTokenIn(ctx, "S1", "alice", "corp", "ldap2"))
	require.NoError(t, c.UnassignToken(ctx, "S1"))
	require.NoError(t, c.SetPin(ctx, "S1", "1234"))
	require.NoError(t, c.ResetFailcount(ctx, "S1"))
	require.NoError(t, c.SetTokenInfo(ctx, "S1", "timestamp", "2026-01-02"))
	require.NoError(t, c.SetTokenOptions(ctx, "S1", privacyidea.Params{"validity_period_end": "2026-12-31T00:00+0000"}))
	require.NoError(t, c.DeleteToken(ctx, "S/1"))

	want := []call{
		{"POST", "/token/enable", map[string]string{"serial": "S1"}},
		{"POST", "/token/disable", map[string]string{"serial": "S1"}},
		{"POST", "/token/assign", map[string]string{"serial": "S1", "user": "alice", "realm": "corp"}},
		{"POST", "/token/assign", map[string]string{"serial": "S1", "user": "alice", "realm": "corp", "pin": "0000"}},
		{"POST", "/token/assign", map[string]string{"serial": "S1", "user": "alice", "realm": "corp", "resolver": "ldap2"}},
		{"POST", "/token/unassign", map[string]string{"serial": "S1"}},
		{"POST", "/token/setpin", map[string]string{"serial": "S1", "otppin": "1234"}},
		{"POST", "/token/reset", map[string]string{"serial": "S1"}},
		{"POST", "/token/info/S1/timestamp", map[string]string{"value": "2026-01-02"}},
		{"POST", "/token/set", map[string]string{"serial": "S1", "validity_period_end": "2026-12-31T00:00+0000"}},
		{"DELETE", "/token/S/1", map[string]string{}},
	}
	assert.Equal(t, want, calls)
}

func TestMachineTokens(t *testing.T) {
	var attach, detach http.Header
	var form map[string]string
	var detachPath string
	mux := http.NewServeMux()
	mux.HandleFunc("POST /machine/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		attach = r.Header
		form = map[string]string{}
		for k := range r.PostForm {
			form[k] = r.PostForm.Get(k)
		}
		writeOK(w, 1, nil)
	})
	mux.HandleFunc("DELETE /machine/token/", func(w http.ResponseWriter, r *http.Request) {
		detach = r.Header
		detachPath = r.URL.Path + "?" + r.URL.RawQuery
		writeOK(w, 1, nil)
	})
	c := newClient(t, mux)
	ctx := context.Background()

	mt := privacyidea.MachineToken{
		Serial:      "SSHKEY1",
		Application: privacyidea.ApplicationSSH,
		Hostname:    "test_host",
		Options:     privacyidea.Params{"user": "root"},
	}
	require.NoError(t, c.AttachToken(ctx, mt))
	require.NoError(t, c.DetachToken(ctx, mt))

	require.NotNil(t, attach)
	require.NotNil(t, detach)
	assert.Equal(t, map[string]string{
		"serial": "SSHKEY1", "application": "ssh", "hostname": "test_host", "user": "root",
	}, form)
	assert.Equal(t, "/machine/token/SSHKEY1/ssh?hostname=test_host", detachPath)
}
