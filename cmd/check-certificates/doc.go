// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

// check-certificates warns about TLS certificates of a privacyIDEA host that
// are about to expire.
//
// It reads the certificates referenced by the apache, httpd and nginx site
// configurations and connects to every LDAP resolver exported by
// "pi-manage config exporter". Each certificate is logged with the number
// of days it remains valid. Certificate problems are logged; the exit code
// only reports usage errors.
//
// # Usage
//
//	check-certificates [--days N] [--web] [--ldap] [FLAGS]
//
// # Flags
//
//	    --days            warning threshold in days (default 30)
//	    --config-dir      scan only this directory, trying both config syntaxes
//	    --web, --ldap     certificate classes to check (default both)
//	    --exclude         LDAP resolver names to skip
//	    --fetcher         native or openssl (default native)
//	    --resolver-file   read the resolver export from a file
//	    --logging         append log lines to this file
//	    --table, --json   print a summary on stdout
//
// # Examples
//
// Daily cron job logging to a file:
//
//	check-certificates --days 21 --logging /var/log/privacyidea/certificates.log
package main
