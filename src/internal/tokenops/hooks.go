// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package tokenops

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"slices"
	"strings"

	"github.com/H0llyW00dzZ/privacyidea-scripts/src/internal/privacyidea"
	"github.com/hashicorp/go-multierror"
)

const (
	// TimestampKey is the tokeninfo key written by AddTokeninfoTimestamp.
	TimestampKey = "timestamp"
	// TimestampLayout matches Python's isoformat with microseconds and offset.
	TimestampLayout = "2006-01-02T15:04:05.000000-0700"
	// DefaultSSHHost is the machine the ssh hooks attach to.
	DefaultSSHHost = "test_host"
	// DefaultPIN is what SetPin sets when no PIN is configured.
	DefaultPIN = "1234"
	// DefaultNewRealm is the target realm of ReassignToken.
	DefaultNewRealm = "new_realm"
	// DefaultMaxTOTP is the most TOTP tokens DeleteTOTP will delete at once.
	DefaultMaxTOTP = 15
	// RemoteSerialKey links a remote token to its local counterpart.
	RemoteSerialKey = "remote.serial"
)

// AddTokeninfoTimestamp stores the current time in the tokeninfo of serial.
func (o *Ops) AddTokeninfoTimestamp(ctx context.Context, serial string) error {
	return o.API.SetTokenInfo(ctx, serial, TimestampKey, o.now().Format(TimestampLayout))
}

// AssignSSHToken attaches serial to host for the ssh application, logging
// in as user.
func (o *Ops) AssignSSHToken(ctx context.Context, serial, user, host string) error {
	if host == "" {
		host = DefaultSSHHost
	}
	return o.API.AttachToken(ctx, privacyidea.MachineToken{
		Serial:      serial,
		Application: privacyidea.ApplicationSSH,
		Hostname:    host,
		Options:     privacyidea.Params{"user": user},
	})
}

// UnassignSSHToken detaches serial from host for the ssh application.
func (o *Ops) UnassignSSHToken(ctx context.Context, serial, host string) error {
	if host == "" {
		host = DefaultSSHHost
	}
	return o.API.DetachToken(ctx, privacyidea.MachineToken{
		Serial:      serial,
		Application: privacyidea.ApplicationSSH,
		Hostname:    host,
	})
}

// AttachOffline attaches serial for the offline application.
func (o *Ops) AttachOffline(ctx context.Context, serial string) error {
	return o.API.AttachToken(ctx, privacyidea.MachineToken{
		Serial:      serial,
		Application: privacyidea.ApplicationOffline,
	})
}

// SetPin sets pin (DefaultPIN when empty) on serial.
func (o *Ops) SetPin(ctx context.Context, serial, pin string) error {
	if pin == "" {
		pin = DefaultPIN
	}
	return o.API.SetPin(ctx, serial, pin)
}

// ReassignToken moves serial to user in newRealm.
func (o *Ops) ReassignToken(ctx context.Context, serial, user, newRealm string) error {
	if newRealm == "" {
		newRealm = DefaultNewRealm
	}
	if err := o.API.UnassignToken(ctx, serial); err != nil {
		return fmt.Errorf("unassign %s: %w", serial, err)
	}
	if err := o.API.AssignToken(ctx, serial, user, newRealm, ""); err != nil {
		return fmt.Errorf("assign %s to %s@%s: %w", serial, user, newRealm, err)
	}
	return nil
}

// CreateRegistration enrolls a registration token and prints its serial
// and registration code on separate lines.
func (o *Ops) CreateRegistration(ctx context.Context, user, realm string) error {
	res, err := o.API.InitToken(ctx, privacyidea.Params{
		"type":   "registration",
		"genkey": "1",
		"user":   user,
		"realm":  realm,
	})
	if err != nil {
		return err
	}
	o.printf("%s\n%s\n", res.Serial, res.RegistrationCode)
	return nil
}

// TANOptions selects which token types EnableTAN and DisableTAN switch.
type TANOptions struct {
	Types []string
}

func (t TANOptions) types() []string {
	if len(t.Types) == 0 {
		return []string{"tan"}
	}
	return t.Types
}

// EnableTAN enables the inactive tokens of the configured types owned by
// the owner of serial.
func (o *Ops) EnableTAN(ctx context.Context, serial string, opts TANOptions) error {
	owner, err := o.API.TokenOwner(ctx, serial)
	if err != nil {
		return err
	}
	if !owner.Assigned() {
		o.Log.Infof("Token %s is not assigned to a user.", serial)
		return nil
	}
	toks, err := o.API.ListTokens(ctx, privacyidea.TokenFilter{
		User:   owner.Username,
		Realm:  owner.UserRealm,
		Active: privacyidea.Bool(false),
	})
	if err != nil {
		return err
	}
	for _, tok := range toks {
		if !hasType(opts.types(), tok.TokenType) {
			continue
		}
		if err := o.API.EnableToken(ctx, tok.Serial); err != nil {
			return err
		}
		o.printf("Enabled %s token %s for user %s.\n", tok.TokenType, tok.Serial, owner.Username)
	}
	return nil
}

// DisableTAN disables the active tokens of the configured types of
// user@realm.
func (o *Ops) DisableTAN(ctx context.Context, user, realm string, opts TANOptions) error {
	toks, err := o.API.ListTokens(ctx, privacyidea.TokenFilter{
		User:   user,
		Realm:  realm,
		Active: privacyidea.Bool(true),
	})
	if err != nil {
		return err
	}
	for _, tok := range toks {
		if !hasType(opts.types(), tok.TokenType) {
			continue
		}
		if err := o.API.DisableToken(ctx, tok.Serial); err != nil {
			return err
		}
		o.printf("Disabled %s token %s for user %s.\n", tok.TokenType, tok.Serial, user)
	}
	return nil
}

// ResetFailcounter resets the fail counter of every remote token of
// user@realm and of the local token each one points to.
func (o *Ops) ResetFailcounter(ctx context.Context, user, realm string) error {
	toks, err := o.API.ListTokens(ctx, privacyidea.TokenFilter{User: user, Realm: realm, Type: "remote"})
	if err != nil {
		return err
	}
	for _, tok := range toks {
		if err := o.API.ResetFailcount(ctx, tok.Serial); err != nil {
			return err
		}
		linked := tok.Info[RemoteSerialKey]
		if linked == "" {
			o.printf("Reset failcounter of remote token %s\n", tok.Serial)
			continue
		}
		if err := o.API.ResetFailcount(ctx, linked); err != nil {
			return err
		}
		o.printf("Reset failcounter of remote token %s and linked token %s\n", tok.Serial, linked)
	}
	return nil
}

// DeleteTOTP deletes all TOTP tokens of user@realm. Users with more than
// limit tokens (DefaultMaxTOTP when zero) are left alone.
func (o *Ops) DeleteTOTP(ctx context.Context, user, realm string, limit int) error {
	if user == "" {
		o.Log.Errorf("No username specified!")
		return ErrNoUsername
	}
	if limit <= 0 {
		limit = DefaultMaxTOTP
	}
	toks, err := o.API.ListTokens(ctx, privacyidea.TokenFilter{User: user, Realm: realm, Type: "totp"})
	if err != nil {
		return err
	}
	if len(toks) > limit {
		return fmt.Errorf("%w: user %s@%s has %d totp tokens, refusing to delete more than %d",
			ErrTooManyTokens, user, realm, len(toks), limit)
	}
	for _, tok := range toks {
		if err := o.API.DeleteToken(ctx, tok.Serial); err != nil {
			return err
		}
		o.printf("%s\n", tok.Serial)
	}
	return nil
}

// Token actions of DeleteOrDisableToken.
const (
	ActionDisable = "disable"
	ActionDelete  = "delete"
)

// DefaultActionLog is where DeleteOrDisableToken records what it did.
const DefaultActionLog = "/var/log/privacyidea/disabled-tokens.log"

// DeleteOrDisableOptions configures DeleteOrDisableToken.
type DeleteOrDisableOptions struct {
	Types        []string
	Active       *bool
	Action       string
	RolloutState string
	// LogFile receives one line per token; empty disables the record.
	LogFile string
}

// DeleteOrDisableToken deletes or disables the tokens of the configured
// types of user@realm and appends a record per token to the log file.
func (o *Ops) DeleteOrDisableToken(ctx context.Context, user, realm string, opts DeleteOrDisableOptions) error {
	action := strings.ToLower(opts.Action)
	if action == "" {
		action = ActionDisable
	}
	if action != ActionDisable && action != ActionDelete {
		return fmt.Errorf("%w: %q", ErrUnknownAction, opts.Action)
	}
	types := opts.Types
	if len(types) == 0 {
		types = []string{"sms"}
	}

	var record *os.File
	if opts.LogFile != "" {
		f, err := os.OpenFile(opts.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o640)
		if err != nil {
			return fmt.Errorf("open %s: %w", opts.LogFile, err)
		}
		defer f.Close()
		record = f
	}

	for _, typ := range types {
		toks, err := o.API.ListTokens(ctx, privacyidea.TokenFilter{
			User:         user,
			Realm:        realm,
			Type:         typ,
			Active:       opts.Active,
			RolloutState: opts.RolloutState,
		})
		if err != nil {
			return err
		}
		for _, tok := range toks {
			if action == ActionDelete {
				err = o.API.DeleteToken(ctx, tok.Serial)
			} else {
				err = o.API.DisableToken(ctx, tok.Serial)
			}
			if err != nil {
				return err
			}
			if record != nil {
				fmt.Fprintf(record, "%s, %s, %s, %s, %s\n",
					o.now().Format("2006-01-02T15:04"), user, realm, action, tok.Serial)
			}
		}
	}
	return nil
}

// Grouping for RemoveOtherTokens.
const (
	PerUser = "user"
	PerType = "type"
)

// RemoveOptions selects the tokens RemoveOtherTokens and RemoveUserTokens
// delete.
type RemoveOptions struct {
	// Per is PerUser (all other tokens) or PerType (other tokens of the
	// same type) for RemoveOtherTokens.
	Per string
	// Type limits RemoveUserTokens to one type; "all" or empty means any.
	Type       string
	OnlyActive bool
	TokenInfo  map[string]string
}

func (r RemoveOptions) filter(user, realm string) privacyidea.TokenFilter {
	f := privacyidea.TokenFilter{User: user, Realm: realm, Info: r.TokenInfo}
	if r.OnlyActive {
		f.Active = privacyidea.Bool(true)
	}
	return f
}

// RemoveOtherTokens deletes the tokens of user@realm other than serial.
// serial must belong to the user.
func (o *Ops) RemoveOtherTokens(ctx context.Context, serial, user, realm string, opts RemoveOptions) error {
	owned, err := o.API.ListTokens(ctx, privacyidea.TokenFilter{User: user, Realm: realm})
	if err != nil {
		return err
	}
	idx := slices.IndexFunc(owned, func(t privacyidea.Token) bool { return t.Serial == serial })
	if idx < 0 {
		o.Log.Infof("Token %s does not belong to %s@%s, nothing to remove.", serial, user, realm)
		return nil
	}
	keep := owned[idx]

	candidates, err := o.API.ListTokens(ctx, opts.filter(user, realm))
	if err != nil {
		return err
	}
	var result *multierror.Error
	for _, tok := range candidates {
		if tok.Serial == serial {
			continue
		}
		if opts.Per == PerType && !strings.EqualFold(tok.TokenType, keep.TokenType) {
			continue
		}
		if err := o.API.DeleteToken(ctx, tok.Serial); err != nil {
			result = multierror.Append(result, fmt.Errorf("delete %s: %w", tok.Serial, err))
			continue
		}
		o.Log.Infof("Removed %s token %s of user %s@%s.", tok.TokenType, tok.Serial, user, realm)
	}

	remaining, err := o.API.ListTokens(ctx, privacyidea.TokenFilter{User: user, Realm: realm})
	if err != nil {
		return multierror.Append(result, err).ErrorOrNil()
	}
	o.Log.Debugf("User %s@%s now has %d tokens:", user, realm, len(remaining))
	for _, tok := range remaining {
		o.Log.Debugf("~ a %s token with serial %s", tok.TokenType, tok.Serial)
	}
	return result.ErrorOrNil()
}

// RemoveUserTokens deletes the tokens of user@realm of the configured type.
func (o *Ops) RemoveUserTokens(ctx context.Context, user, realm string, opts RemoveOptions) error {
	typ := opts.Type
	if typ == "" {
		typ = "all"
	}
	o.Log.Infof("Starting script to remove tokens of type %s for user %s@%s.", typ, user, realm)
	f := opts.filter(user, realm)
	if !strings.EqualFold(typ, "all") {
		f.Type = typ
	}
	toks, err := o.API.ListTokens(ctx, f)
	if err != nil {
		return err
	}
	var result *multierror.Error
	for _, tok := range toks {
		if err := o.API.DeleteToken(ctx, tok.Serial); err != nil {
			result = multierror.Append(result, fmt.Errorf("delete %s: %w", tok.Serial, err))
			continue
		}
		o.Log.Infof("Removed %s token %s of user %s@%s.", tok.TokenType, tok.Serial, user, realm)
	}
	return result.ErrorOrNil()
}

// RemoteSpassOptions configures CreateRemoteAndSpass.
type RemoteSpassOptions struct {
	// ExcludeUsers are regular expressions matched at the start of the
	// user name.
	ExcludeUsers []string
	// LocalToken is the type enrolled in the user's realm. "remote"
	// creates a remote token forwarding to RemoteServer.
	LocalToken   string
	RemoteToken  string
	RemoteRealm  string
	RemoteServer string
}

// CreateRemoteAndSpass enrolls the local token for user@realm and, for a
// remote local token, the spass token in the remote realm it forwards to.
func (o *Ops) CreateRemoteAndSpass(ctx context.Context, user, realm string, opts RemoteSpassOptions) error {
	for _, pattern := range opts.ExcludeUsers {
		re, err := regexp.Compile("^(?:" + pattern + ")")
		if err != nil {
			return fmt.Errorf("exclude pattern %q: %w", pattern, err)
		}
		if re.MatchString(user) {
			o.printf("We do not enroll token for user %s.\n", user)
			return nil
		}
	}

	local := opts.LocalToken
	if local == "" {
		local = "registration"
	}
	params := privacyidea.Params{"type": local, "user": user, "realm": realm}
	if local == "remote" {
		remoteToken := opts.RemoteToken
		if remoteToken == "" {
			remoteToken = "spass"
		}
		remote, err := o.API.InitToken(ctx, privacyidea.Params{
			"type":  remoteToken,
			"user":  user,
			"realm": opts.RemoteRealm,
		})
		if err != nil {
			return fmt.Errorf("create %s token in realm %s: %w", remoteToken, opts.RemoteRealm, err)
		}
		o.printf("%s\n", remote.Serial)
		params["remote.server"] = opts.RemoteServer
		params["remote.user"] = user
		params["remote.realm"] = opts.RemoteRealm
	} else {
		params["genkey"] = "1"
	}

	res, err := o.API.InitToken(ctx, params)
	if err != nil {
		return err
	}
	o.printf("%s\n", res.Serial)
	return nil
}

// RemoteTokensOptions configures CreateRemoteTokens.
type RemoteTokensOptions struct {
	Usernames     []string
	Realm         string
	ServerID      string
	LocalCheckPIN bool
}

// CreateRemoteTokens creates, for each configured user, a remote token
// that forwards to serial.
func (o *Ops) CreateRemoteTokens(ctx context.Context, serial string, opts RemoteTokensOptions) error {
	var result *multierror.Error
	for _, username := range opts.Usernames {
		ok, err := o.API.UserExists(ctx, username, opts.Realm, "")
		if err != nil {
			result = multierror.Append(result, err)
			continue
		}
		if !ok {
			o.eprintf("User %s does not exist.\n", username)
			continue
		}
		res, err := o.API.InitToken(ctx, privacyidea.Params{
			"type":                  "remote",
			"user":                  username,
			"realm":                 opts.Realm,
			"remote.server_id":      opts.ServerID,
			"remote.local_checkpin": boolParam(opts.LocalCheckPIN),
			"remote.serial":         serial,
		})
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("user %s: %w", username, err))
			continue
		}
		o.printf("Created remote token %s for user %s.\n", res.Serial, username)
	}
	return result.ErrorOrNil()
}

// PrimaryOptions configures CreatePrimaryToken.
type PrimaryOptions struct {
	Realm string
	// User limits enrollment to one user; empty or "none" means every
	// user of the realm.
	User         string
	LoggedInUser string
	LoggedInRole string
	// AdminUser must be part of LoggedInUser for admin callers.
	AdminUser string
	Types     []string
	// Params holds extra init parameters per token type.
	Params map[string]privacyidea.Params
	// EUID reports the effective user id; nil means os.Geteuid.
	EUID func() int
}

// Permitted reports whether the caller may enroll primary tokens: root,
// or an admin whose login contains AdminUser.
func (p PrimaryOptions) Permitted() bool {
	euid := os.Geteuid
	if p.EUID != nil {
		euid = p.EUID
	}
	if euid() == 0 {
		return true
	}
	return p.LoggedInRole == "admin" && p.AdminUser != "" && strings.Contains(p.LoggedInUser, p.AdminUser)
}

// CreatePrimaryToken enrolls each configured type for users of the realm
// that have no active token of that type yet.
func (o *Ops) CreatePrimaryToken(ctx context.Context, opts PrimaryOptions) error {
	if !opts.Permitted() {
		o.Log.Warnf("User %s with role %s may not enroll primary tokens.", opts.LoggedInUser, opts.LoggedInRole)
		return ErrNotPermitted
	}
	if isNone(opts.Realm) {
		return nil
	}

	var users []string
	if isNone(opts.User) {
		list, err := o.API.ListUsers(ctx, privacyidea.UserFilter{Realm: opts.Realm})
		if err != nil {
			return err
		}
		for _, u := range list {
			users = append(users, u.Username())
		}
	} else {
		users = []string{opts.User}
	}

	types := opts.Types
	if len(types) == 0 {
		types = []string{"email"}
	}

	var result *multierror.Error
	for _, user := range users {
		for _, typ := range types {
			toks, err := o.API.ListTokens(ctx, privacyidea.TokenFilter{
				User: user, Realm: opts.Realm, Type: typ, Active: privacyidea.Bool(true),
			})
			if err != nil {
				result = multierror.Append(result, err)
				continue
			}
			if len(toks) > 0 {
				continue
			}
			params := privacyidea.Params{"type": typ, "genkey": "1", "user": user, "realm": opts.Realm}
			for k, v := range opts.Params[typ] {
				params[k] = v
			}
			if _, err := o.API.InitToken(ctx, params); err != nil {
				o.Log.Errorf("Enrolling a primary %s token for %s@%s failed: %s", typ, user, opts.Realm, apiMessage(err))
				result = multierror.Append(result, err)
				continue
			}
			o.Log.Infof("Enrolled a primary %s token for %s@%s", typ, user, opts.Realm)
		}
	}
	return result.ErrorOrNil()
}
