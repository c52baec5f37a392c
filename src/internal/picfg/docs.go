// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

// Package picfg reads the platform's pi.cfg and turns its SQLAlchemy
// database URI into a database/sql driver name and DSN.
package picfg
