// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

// Package cli provides the Cobra command tree of pi-tools.
//
// Event handler hooks (create-registration, set-pin, delete-totp, ...)
// accept the --serial, --user, --realm, --logged_in_user and
// --logged_in_role arguments of the privacyIDEA script handler and ignore
// any other flag it passes. Bulk tools read comma separated lines from a
// file argument or stdin. check-certificates, migrate-tokens and boomalert
// are also built as standalone binaries from the same constructors.
//
// Every command loads its settings through [config.Load], so a value can
// come from pi-tools.yaml, a PITOOLS_* environment variable or a flag.
package cli
