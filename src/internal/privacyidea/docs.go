// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

// Package privacyidea is a small client for the privacyIDEA REST API.
//
// It covers what the administration tools need: admin authentication,
// token enrollment and lifecycle calls, machine attachments for the ssh and
// offline applications, user management and /validate/check.
//
// Requests are form encoded. Responses are decoded with the jsonrpc helper
// and a result with status false is returned as *APIError.
//
// Example:
//
//	c, err := privacyidea.New(privacyidea.Config{URL: "https://pi.example.com"})
//	if err != nil {
//		return err
//	}
//	if err := c.Authenticate(ctx, "admin", password); err != nil {
//		return err
//	}
//	tokens, err := c.ListTokens(ctx, privacyidea.TokenFilter{User: "alice", Realm: "corp"})
package privacyidea
