// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

// Package store gives direct access to the token tables of a privacyIDEA
// database for the operations the REST API does not offer: copying a
// token with its encrypted key material and re-homing token ownership
// without resetting the PIN.
//
// MySQL/MariaDB, PostgreSQL and SQLite are supported through bun.
package store
