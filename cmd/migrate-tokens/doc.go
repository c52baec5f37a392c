// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

// migrate-tokens copies tokens from one privacyIDEA instance to another and
// assigns them to renamed users.
//
// Token rows are copied between the two databases named by the pi.cfg
// files of the migration config, so encrypted seeds and PIN hashes survive.
// Users are looked up and created through the REST API of each instance.
//
// # Usage
//
//	migrate-tokens -c migration.json
//	migrate-tokens -g [--format yaml] > migration.yaml
package main
