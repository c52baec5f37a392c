// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

// Package tokenops implements the token administration procedures on top of
// the privacyIDEA REST API.
//
// There are two families. The event handler hooks (AddTokeninfoTimestamp,
// EnableTAN, CreatePrimaryToken and friends) act on a single serial or user
// passed by the platform's script handler and log through a [logger.Leveled].
// The bulk tools (AssignTokens, ImportTokens, CreateUserAssignRadius, ...)
// read CSV from an [io.Reader], keep going after a failed line and return
// every per-line failure aggregated in a [multierror.Error].
//
// Example:
//
//	client, err := privacyidea.New(privacyidea.Config{URL: "https://pi.example.com"})
//	if err != nil {
//		return err
//	}
//	if err := client.Authenticate(ctx, "admin", password); err != nil {
//		return err
//	}
//	ops := tokenops.New(client, nil)
//	return ops.AssignTokens(ctx, os.Stdin, "corp")
//
// [logger.Leveled]: https://pkg.go.dev/github.com/H0llyW00dzZ/privacyidea-scripts/src/logger#Leveled
// [multierror.Error]: https://pkg.go.dev/github.com/hashicorp/go-multierror#Error
package tokenops
