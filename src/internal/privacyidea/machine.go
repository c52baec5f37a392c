// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package privacyidea

import (
	"context"
	"net/http"
	"net/url"
)

// Machine token applications.
const (
	ApplicationSSH     = "ssh"
	ApplicationOffline = "offline"
)

// MachineToken describes a token to machine attachment.
type MachineToken struct {
	Serial      string
	Application string
	// Hostname is optional for the offline application.
	Hostname string
	// Options are application options, e.g. "user" for ssh.
	Options Params
}

// AttachToken attaches a token to a machine for an application.
func (c *Client) AttachToken(ctx context.Context, mt MachineToken) error {
	v := mt.Options.values()
	v.Set("serial", mt.Serial)
	v.Set("application", mt.Application)
	if mt.Hostname != "" {
		v.Set("hostname", mt.Hostname)
	}
	_, err := c.do(ctx, http.MethodPost, "/machine/token", v)
	return err
}

// DetachToken removes the attachment made by AttachToken.
func (c *Client) DetachToken(ctx context.Context, mt MachineToken) error {
	var q url.Values
	if mt.Hostname != "" {
		q = url.Values{"hostname": {mt.Hostname}}
	}
	_, err := c.do(ctx, http.MethodDelete, "/machine/token", q, mt.Serial, mt.Application)
	return err
}
