// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

// pi-tools bundles the privacyIDEA administration scripts in one binary.
//
// # Installation
//
//	go install github.com/H0llyW00dzZ/privacyidea-scripts/cmd/pi-tools@latest
//
// # Usage
//
//	pi-tools COMMAND [FLAGS]
//
// # Global Flags
//
//	    --config     pi-tools.yaml to read (default: search /etc/privacyidea,
//	                 the user config dir and the working directory)
//	    --url        privacyIDEA server URL
//	    --admin      admin user name
//	    --token      API authorization token instead of admin credentials
//	    --insecure   do not verify the server TLS certificate
//	    --retries    retry failed HTTP requests this many times
//	    --log-level  debug, info, warn or error
//	    --logging    append log lines to this file instead of stderr
//
// # Examples
//
// Use a hook in a privacyIDEA script event handler:
//
//	pi-tools create-registration --user alice --realm corp
//
// Assign tokens listed in a CSV file:
//
//	pi-tools assign-token --realm corp < tokens.csv
//
// Check certificate expiry and print a summary table:
//
//	pi-tools check-certificates --days 14 --table
//
// Start a configuration file:
//
//	pi-tools config example > /etc/privacyidea/pi-tools.yaml
package main
