// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package tokenops_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/H0llyW00dzZ/privacyidea-scripts/src/internal/privacyidea"
	"github.com/H0llyW00dzZ/privacyidea-scripts/src/internal/tokenops"
)

func TestMachineAndInfoHooks(t *testing.T) {
	h := newHarness(&fakeAPI{tokens: []privacyidea.Token{{Serial: "S1"}}})
	ctx := context.Background()

	require.NoError(t, h.ops.AddTokeninfoTimestamp(ctx, "S1"))
	require.NoError(t, h.ops.AssignSSHToken(ctx, "S1", "root", ""))
	require.NoError(t, h.ops.UnassignSSHToken(ctx, "S1", "bastion"))
	require.NoError(t, h.ops.AttachOffline(ctx, "S1"))
	require.NoError(t, h.ops.SetPin(ctx, "S1", ""))
	require.NoError(t, h.ops.SetPin(ctx, "S1", "9876"))

	assert.Equal(t, []string{
		"info S1 timestamp=2026-03-04T05:06:07.000000+0000",
		"attach S1 ssh host=test_host user=root",
		"detach S1 ssh host=bastion",
		"attach S1 offline host= user=",
		"setpin S1 1234",
		"setpin S1 9876",
	}, h.api.calls)
}

func TestReassignToken(t *testing.T) {
	h := newHarness(&fakeAPI{tokens: []privacyidea.Token{{Serial: "S1", Username: "bob", UserRealm: "old"}}})

	require.NoError(t, h.ops.ReassignToken(context.Background(), "S1", "bob", ""))
	assert.Equal(t, []string{"unassign S1", "assign S1 bob@new_realm"}, h.api.calls)

	h.api.fail = map[string]error{"assign S1": errors.New("boom")}
	err := h.ops.ReassignToken(context.Background(), "S1", "bob", "corp")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "assign S1 to bob@corp")
}

func TestCreateRegistration(t *testing.T) {
	h := newHarness(&fakeAPI{})

	require.NoError(t, h.ops.CreateRegistration(context.Background(), "alice", "corp"))
	assert.Equal(t, "REGISTRATION0001\ncode-REGISTRATION0001\n", h.out.String())
}

func TestTANHooks(t *testing.T) {
	api := &fakeAPI{tokens: []privacyidea.Token{
		{Serial: "HOTP1", TokenType: "hotp", Active: true, Username: "bob", UserRealm: "corp"},
		{Serial: "TAN1", TokenType: "tan", Active: false, Username: "bob", UserRealm: "corp"},
		{Serial: "TAN2", TokenType: "TAN", Active: false, Username: "bob", UserRealm: "corp"},
		{Serial: "TOTP1", TokenType: "totp", Active: false, Username: "bob", UserRealm: "corp"},
		{Serial: "TAN3", TokenType: "tan", Active: false, Username: "eve", UserRealm: "corp"},
		{Serial: "FREE", TokenType: "tan"},
	}}
	h := newHarness(api)
	ctx := context.Background()

	require.NoError(t, h.ops.EnableTAN(ctx, "HOTP1", tokenops.TANOptions{}))
	assert.Equal(t, []string{"enable TAN1", "enable TAN2"}, api.calls)

	api.calls = nil
	require.NoError(t, h.ops.DisableTAN(ctx, "bob", "corp", tokenops.TANOptions{Types: []string{"tan", "hotp"}}))
	assert.Equal(t, []string{"disable HOTP1", "disable TAN1", "disable TAN2"}, api.calls)

	api.calls = nil
	require.NoError(t, h.ops.EnableTAN(ctx, "FREE", tokenops.TANOptions{}))
	assert.Empty(t, api.calls)
	assert.Contains(t, h.log.String(), "Token FREE is not assigned to a user.")

	assert.ErrorIs(t, h.ops.EnableTAN(ctx, "NOPE", tokenops.TANOptions{}), privacyidea.ErrTokenNotFound)
}

func TestResetFailcounter(t *testing.T) {
	api := &fakeAPI{tokens: []privacyidea.Token{
		{Serial: "R1", TokenType: "remote", Username: "bob", UserRealm: "corp", Info: map[string]string{"remote.serial": "L1"}},
		{Serial: "R2", TokenType: "remote", Username: "bob", UserRealm: "corp"},
		{Serial: "H1", TokenType: "hotp", Username: "bob", UserRealm: "corp"},
	}}
	h := newHarness(api)

	require.NoError(t, h.ops.ResetFailcounter(context.Background(), "bob", "corp"))
	assert.Equal(t, []string{"reset R1", "reset L1", "reset R2"}, api.calls)
	assert.Equal(t,
		"Reset failcounter of remote token R1 and linked token L1\nReset failcounter of remote token R2\n",
		h.out.String())
}

func TestDeleteTOTP(t *testing.T) {
	totp := func(serial string) privacyidea.Token {
		return privacyidea.Token{Serial: serial, TokenType: "totp", Username: "bob", UserRealm: "corp"}
	}
	tests := []struct {
		name     string
		user     string
		limit    int
		tokens   []privacyidea.Token
		wantErr  error
		wantCall []string
	}{
		{
			name:    "no user",
			wantErr: tokenops.ErrNoUsername,
		},
		{
			name:    "too many",
			user:    "bob",
			limit:   1,
			tokens:  []privacyidea.Token{totp("T1"), totp("T2")},
			wantErr: tokenops.ErrTooManyTokens,
		},
		{
			name: "deletes only totp",
			user: "bob",
			tokens: []privacyidea.Token{
				totp("T1"),
				{Serial: "H1", TokenType: "hotp", Username: "bob", UserRealm: "corp"},
				totp("T2"),
			},
			wantCall: []string{"delete T1", "delete T2"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(&fakeAPI{tokens: tt.tokens})
			err := h.ops.DeleteTOTP(context.Background(), tt.user, "corp", tt.limit)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Empty(t, h.api.calls)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantCall, h.api.calls)
		})
	}
}

func TestDeleteOrDisableToken(t *testing.T) {
	tokens := func() []privacyidea.Token {
		return []privacyidea.Token{
			{Serial: "SMS1", TokenType: "sms", Active: true, Username: "bob", UserRealm: "corp"},
			{Serial: "SMS2", TokenType: "sms", Active: false, Username: "bob", UserRealm: "corp"},
			{Serial: "MAIL1", TokenType: "email", Active: true, Username: "bob", UserRealm: "corp"},
		}
	}
	logFile := filepath.Join(t.TempDir(), "actions.log")

	h := newHarness(&fakeAPI{tokens: tokens()})
	require.NoError(t, h.ops.DeleteOrDisableToken(context.Background(), "bob", "corp", tokenops.DeleteOrDisableOptions{
		Active:  privacyidea.Bool(true),
		LogFile: logFile,
	}))
	assert.Equal(t, []string{"disable SMS1"}, h.api.calls)

	h = newHarness(&fakeAPI{tokens: tokens()})
	require.NoError(t, h.ops.DeleteOrDisableToken(context.Background(), "bob", "corp", tokenops.DeleteOrDisableOptions{
		Types:   []string{"sms", "email"},
		Action:  "Delete",
		LogFile: logFile,
	}))
	assert.Equal(t, []string{"delete SMS1", "delete SMS2", "delete MAIL1"}, h.api.calls)

	data, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Equal(t, "2026-03-04T05:06, bob, corp, disable, SMS1\n"+
		"2026-03-04T05:06, bob, corp, delete, SMS1\n"+
		"2026-03-04T05:06, bob, corp, delete, SMS2\n"+
		"2026-03-04T05:06, bob, corp, delete, MAIL1\n", string(data))

	err = h.ops.DeleteOrDisableToken(context.Background(), "bob", "corp", tokenops.DeleteOrDisableOptions{Action: "revoke"})
	assert.ErrorIs(t, err, tokenops.ErrUnknownAction)
}

func TestRemoveOtherTokens(t *testing.T) {
	tokens := func() []privacyidea.Token {
		return []privacyidea.Token{
			{Serial: "KEEP", TokenType: "hotp", Active: true, Username: "bob", UserRealm: "corp"},
			{Serial: "H2", TokenType: "hotp", Active: true, Username: "bob", UserRealm: "corp"},
			{Serial: "H3", TokenType: "hotp", Active: false, Username: "bob", UserRealm: "corp"},
			{Serial: "T1", TokenType: "totp", Active: true, Username: "bob", UserRealm: "corp",
				Info: map[string]string{"tokenkind": "software"}},
			{Serial: "OTHER", TokenType: "hotp", Active: true, Username: "eve", UserRealm: "corp"},
		}
	}
	tests := []struct {
		name string
		opts tokenops.RemoveOptions
		want []string
	}{
		{name: "per user", opts: tokenops.RemoveOptions{Per: tokenops.PerUser}, want: []string{"delete H2", "delete H3", "delete T1"}},
		{name: "per type", opts: tokenops.RemoveOptions{Per: tokenops.PerType}, want: []string{"delete H2", "delete H3"}},
		{name: "only active", opts: tokenops.RemoveOptions{Per: tokenops.PerType, OnlyActive: true}, want: []string{"delete H2"}},
		{
			name: "tokeninfo",
			opts: tokenops.RemoveOptions{Per: tokenops.PerUser, TokenInfo: map[string]string{"tokenkind": "software"}},
			want: []string{"delete T1"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(&fakeAPI{tokens: tokens()})
			require.NoError(t, h.ops.RemoveOtherTokens(context.Background(), "KEEP", "bob", "corp", tt.opts))
			assert.Equal(t, tt.want, h.api.calls)
			assert.Contains(t, h.log.String(), "~ a hotp token with serial KEEP")
		})
	}

	h := newHarness(&fakeAPI{tokens: tokens()})
	err := h.ops.RemoveOtherTokens(context.Background(), "OTHER", "bob", "corp", tokenops.RemoveOptions{})
	require.NoError(t, err)
	assert.Empty(t, h.api.calls)
	assert.Contains(t, h.log.String(), "Token OTHER does not belong to bob@corp, nothing to remove.")
}

func TestRemoveUserTokens(t *testing.T) {
	api := &fakeAPI{
		tokens: []privacyidea.Token{
			{Serial: "H1", TokenType: "hotp", Username: "bob", UserRealm: "corp"},
			{Serial: "T1", TokenType: "totp", Username: "bob", UserRealm: "corp"},
			{Serial: "T2", TokenType: "totp", Username: "bob", UserRealm: "corp"},
		},
		fail: map[string]error{"delete T1": errors.New("locked")},
	}
	h := newHarness(api)

	err := h.ops.RemoveUserTokens(context.Background(), "bob", "corp", tokenops.RemoveOptions{Type: "totp"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "delete T1: locked")
	assert.Equal(t, []string{"delete T2"}, api.calls)
	assert.Contains(t, h.log.String(), "Starting script to remove tokens of type totp for user bob@corp.")

	api.calls, api.fail = nil, nil
	require.NoError(t, h.ops.RemoveUserTokens(context.Background(), "bob", "corp", tokenops.RemoveOptions{}))
	assert.Equal(t, []string{"delete H1", "delete T1"}, api.calls)
}

func TestCreateRemoteAndSpass(t *testing.T) {
	opts := tokenops.RemoteSpassOptions{
		ExcludeUsers: []string{"admin", "svc-.*"},
		LocalToken:   "remote",
		RemoteRealm:  "spassrealm",
		RemoteServer: "https://pi2.example.com",
	}

	h := newHarness(&fakeAPI{})
	require.NoError(t, h.ops.CreateRemoteAndSpass(context.Background(), "svc-backup", "corp", opts))
	assert.Equal(t, "We do not enroll token for user svc-backup.\n", h.out.String())
	assert.Empty(t, h.api.calls)

	h = newHarness(&fakeAPI{})
	require.NoError(t, h.ops.CreateRemoteAndSpass(context.Background(), "bob", "corp", opts))
	assert.Equal(t, []string{
		"init realm=spassrealm type=spass user=bob",
		"init realm=corp remote.realm=spassrealm remote.server=https://pi2.example.com remote.user=bob type=remote user=bob",
	}, h.api.calls)
	assert.Equal(t, "SPASS0001\nREMOTE0002\n", h.out.String())

	h = newHarness(&fakeAPI{})
	require.NoError(t, h.ops.CreateRemoteAndSpass(context.Background(), "bob", "corp", tokenops.RemoteSpassOptions{}))
	assert.Equal(t, []string{"init genkey=1 realm=corp type=registration user=bob"}, h.api.calls)

	h = newHarness(&fakeAPI{})
	err := h.ops.CreateRemoteAndSpass(context.Background(), "bob", "corp", tokenops.RemoteSpassOptions{ExcludeUsers: []string{"("}})
	assert.Error(t, err)
}

func TestCreateRemoteTokens(t *testing.T) {
	api := &fakeAPI{users: []fakeUser{
		newUser("corp", "ldap", privacyidea.User{"username": "alice"}),
		newUser("corp", "ldap", privacyidea.User{"username": "bob"}),
	}}
	h := newHarness(api)

	require.NoError(t, h.ops.CreateRemoteTokens(context.Background(), "HOTP9", tokenops.RemoteTokensOptions{
		Usernames:     []string{"alice", "ghost", "bob"},
		Realm:         "corp",
		ServerID:      "pi2",
		LocalCheckPIN: true,
	}))
	assert.Equal(t, []string{
		"init realm=corp remote.local_checkpin=true remote.serial=HOTP9 remote.server_id=pi2 type=remote user=alice",
		"init realm=corp remote.local_checkpin=true remote.serial=HOTP9 remote.server_id=pi2 type=remote user=bob",
	}, api.calls)
	assert.Equal(t, "User ghost does not exist.\n", h.err.String())
}

func TestCreatePrimaryToken(t *testing.T) {
	root := func() int { return 0 }
	nobody := func() int { return 1000 }

	newAPI := func() *fakeAPI {
		return &fakeAPI{
			users: []fakeUser{
				newUser("corp", "ldap", privacyidea.User{"username": "alice"}),
				newUser("corp", "ldap", privacyidea.User{"username": "bob"}),
			},
			tokens: []privacyidea.Token{
				{Serial: "E1", TokenType: "email", Active: true, Username: "alice", UserRealm: "corp"},
				{Serial: "E2", TokenType: "email", Active: false, Username: "bob", UserRealm: "corp"},
			},
		}
	}

	tests := []struct {
		name     string
		opts     tokenops.PrimaryOptions
		wantErr  error
		wantCall []string
	}{
		{
			name:    "not permitted",
			opts:    tokenops.PrimaryOptions{Realm: "corp", LoggedInUser: "helpdesk", LoggedInRole: "admin", AdminUser: "super", EUID: nobody},
			wantErr: tokenops.ErrNotPermitted,
		},
		{
			name: "realm none",
			opts: tokenops.PrimaryOptions{Realm: "none", EUID: root},
		},
		{
			name: "root, all users",
			opts: tokenops.PrimaryOptions{Realm: "corp", EUID: root},
			wantCall: []string{
				"init genkey=1 realm=corp type=email user=bob",
			},
		},
		{
			name: "admin, single user with params",
			opts: tokenops.PrimaryOptions{
				Realm: "corp", User: "alice", LoggedInUser: "superadmin", LoggedInRole: "admin", AdminUser: "super",
				Types:  []string{"email", "sms"},
				Params: map[string]privacyidea.Params{"sms": {"dynamic_phone": "1"}},
				EUID:   nobody,
			},
			wantCall: []string{
				"init dynamic_phone=1 genkey=1 realm=corp type=sms user=alice",
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(newAPI())
			err := h.ops.CreatePrimaryToken(context.Background(), tt.opts)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantCall, h.api.calls)
		})
	}
}
