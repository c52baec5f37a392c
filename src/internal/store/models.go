// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package store

import "github.com/uptrace/bun"

// Token is a row of the token table. Secrets stay in their encrypted
// form; copying a row between databases only works when both sides share
// the same encryption key.
type Token struct {
	bun.BaseModel `bun:"table:token"`

	ID           int64  `bun:"id,pk,autoincrement"`
	Description  string `bun:"description"`
	Serial       string `bun:"serial,notnull,unique"`
	TokenType    string `bun:"tokentype"`
	UserPin      string `bun:"user_pin"`
	UserPinIV    string `bun:"user_pin_iv"`
	SoPin        string `bun:"so_pin"`
	SoPinIV      string `bun:"so_pin_iv"`
	PinSeed      string `bun:"pin_seed"`
	OTPLen       int    `bun:"otplen"`
	PinHash      string `bun:"pin_hash"`
	KeyEnc       string `bun:"key_enc"`
	KeyIV        string `bun:"key_iv"`
	MaxFail      int    `bun:"maxfail"`
	Active       bool   `bun:"active,notnull"`
	Revoked      bool   `bun:"revoked"`
	Locked       bool   `bun:"locked"`
	FailCount    int    `bun:"failcount"`
	Count        int    `bun:"count"`
	CountWindow  int    `bun:"count_window"`
	SyncWindow   int    `bun:"sync_window"`
	RolloutState string `bun:"rollout_state"`

	Infos []TokenInfo `bun:"rel:has-many,join:id=token_id"`
}

// TokenInfo is a row of the tokeninfo table.
type TokenInfo struct {
	bun.BaseModel `bun:"table:tokeninfo"`

	ID          int64  `bun:"id,pk,autoincrement"`
	Key         string `bun:"Key,notnull"`
	Value       string `bun:"Value"`
	Type        string `bun:"Type"`
	Description string `bun:"Description"`
	TokenID     int64  `bun:"token_id"`
}

// TokenOwner links a token to a user of a resolver in a realm.
type TokenOwner struct {
	bun.BaseModel `bun:"table:tokenowner"`

	ID       int64  `bun:"id,pk,autoincrement"`
	TokenID  int64  `bun:"token_id"`
	Resolver string `bun:"resolver"`
	UserID   string `bun:"user_id"`
	RealmID  int64  `bun:"realm_id"`
}

// Realm is a row of the realm table.
type Realm struct {
	bun.BaseModel `bun:"table:realm"`

	ID   int64  `bun:"id,pk,autoincrement"`
	Name string `bun:"name,notnull,unique"`
}

// sequences holds the PostgreSQL id sequence of each table.
var sequences = map[string]string{
	"token":      "token_seq",
	"tokeninfo":  "tokeninfo_seq",
	"tokenowner": "tokenowner_seq",
}
