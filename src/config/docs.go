// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

// Package config loads the pi-tools configuration with viper.
//
// Sources are layered, later ones winning:
//
//  1. built-in defaults
//  2. pi-tools.yaml from /etc/privacyidea, the user config dir, the
//     working directory, or the file given with --config
//  3. PITOOLS_* environment variables (PITOOLS_SERVER_URL, ...)
//  4. command line flags
//
// Run "pi-tools config example" for a commented starting point.
package config
