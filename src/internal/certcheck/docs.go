// Copyright (c) 2025 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

// Package certcheck monitors the expiry of the TLS certificates a
// privacyIDEA installation depends on.
//
// Two classes of certificates are checked in a single linear pass:
//
//   - Web server certificates, found by scanning Apache, httpd and nginx
//     configuration directories for SSLCertificateFile and ssl_certificate
//     directives.
//   - LDAP server certificates, found by exporting the resolver
//     configuration with "pi-manage config exporter" and connecting to every
//     LDAPURI. When a resolver sets TLS_VERIFY, its TLS_CA_FILE is checked
//     as well and used to verify the server certificate signature.
//
// For every certificate the remaining days are logged, and a warning is
// logged when they are at or below the threshold. Problems with individual
// items are logged and never abort the pass. The collected [Report] can be
// rendered as a table or as JSON.
//
// Basic usage:
//
//	checker := certcheck.New(certcheck.Options{
//		Days: 30,
//		Log:  logger.NewLeveled("check-certificates", os.Stderr, "info"),
//	})
//	report := checker.Run(ctx)
//	_ = report.WriteTable(os.Stdout)
package certcheck
