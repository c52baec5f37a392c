// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

// Package safeword converts a SafeWord LDIF export into the token import
// format. Seeds (sccKey) and counters (sccSeq) are stored ECB encrypted
// with AES or DES under the export key.
package safeword
