// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package safeword_test

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/des"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"

	"github.com/H0llyW00dzZ/privacyidea-scripts/src/internal/safeword"
	"github.com/H0llyW00dzZ/privacyidea-scripts/src/logger"
)

var keys = safeword.Keys{
	AES: []byte("0123456789abcdef"),
	DES: []byte("8bytekey"),
}

func ecb(t *testing.T, block cipher.Block, plain string) string {
	t.Helper()
	bs := block.BlockSize()
	data := []byte(plain)
	if pad := len(data) % bs; pad != 0 {
		data = append(data, make([]byte, bs-pad)...)
	}
	out := make([]byte, len(data))
	for i := 0; i < len(data); i += bs {
		block.Encrypt(out[i:i+bs], data[i:i+bs])
	}
	return hex.EncodeToString(out)
}

func encrypt(t *testing.T, algo, plain string) string {
	t.Helper()
	var (
		block cipher.Block
		err   error
	)
	if algo == "AES" {
		block, err = aes.NewCipher(keys.AES)
	} else {
		block, err = des.NewCipher(keys.DES)
	}
	require.NoError(t, err)
	return algo + ":" + ecb(t, block, plain)
}

func TestDecrypt(t *testing.T) {
	seed := "3132333435363738393031323334353637383930"
	aesData := strings.TrimPrefix(encrypt(t, "AES", seed), "AES:")
	desData := strings.TrimPrefix(encrypt(t, "DES", "42"), "DES:")

	tests := []struct {
		name    string
		algo    string
		data    string
		keys    safeword.Keys
		want    string
		wantErr error
	}{
		{name: "aes", algo: "AES", data: aesData, keys: keys, want: seed},
		{name: "des lower case", algo: "des", data: desData, keys: keys, want: "42"},
		{name: "no aes key", algo: "aes", data: aesData, keys: safeword.Keys{DES: keys.DES}, wantErr: safeword.ErrNoKey},
		{name: "unknown", algo: "3des", data: desData, keys: keys, wantErr: safeword.ErrUnknownAlgorithm},
		{name: "short block", algo: "des", data: "abcd", keys: keys, wantErr: safeword.ErrBlockSize},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := safeword.Decrypt(tt.algo, tt.data, tt.keys)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := safeword.Decrypt("des", "zz", keys)
	assert.Error(t, err)
	_, err = safeword.Decrypt("aes", aesData, safeword.Keys{AES: []byte("short")})
	assert.Error(t, err)
}

func TestParse(t *testing.T) {
	seed1 := "3132333435363738393031323334353637383930"
	seed2 := strings.Repeat("ab", 32)
	tokenData1 := "sccTokenData: sccKey=(" + encrypt(t, "AES", seed1) + ");sccSeq=(" + encrypt(t, "DES", "17") + ");"
	// Fold the long line the way LDIF writers do.
	folded := tokenData1[:40] + "\n " + tokenData1[40:]

	ldif := strings.Join([]string{
		"dn: cn=alice,ou=users",
		"objectclass: SccUser",
		"sccUserId: alice",
		"sccAuthenticator: 1:SW0001",
		"",
		"dn: cn=SW0001,ou=tokens",
		"objectclass: SccDesAuthenticator",
		"sccAuthenticatorId: SW0001",
		folded,
		"",
		"dn: cn=SW0002,ou=tokens",
		"objectclass: SccDesAuthenticator",
		"sccAuthenticatorId: SW0002",
		"sccTokenData: sccKey=(" + encrypt(t, "DES", seed2) + ");",
		"",
		"dn: cn=SW0003,ou=tokens",
		"objectclass: SccDesAuthenticator",
		"sccAuthenticatorId: SW0003",
		"sccTokenData: nothing useful here",
		"",
	}, "\r\n")

	var logBuf bytes.Buffer
	log := logger.NewCLILogger()
	log.SetOutput(&logBuf)

	tokens, err := safeword.Parse(strings.NewReader(ldif), safeword.Options{Keys: keys, Log: log})
	require.NoError(t, err)
	assert.Equal(t, []safeword.Token{
		{Serial: "SW0001", Seed: seed1, Counter: "17", User: "alice"},
		{Serial: "SW0002", Seed: seed2, Counter: "0"},
	}, tokens)
	assert.Contains(t, logBuf.String(), "Could not find key for token! sccTokenData: nothing useful here")

	var out bytes.Buffer
	require.NoError(t, safeword.WriteCSV(&out, tokens))
	assert.Equal(t, "SW0001, "+seed1+", 17, alice\nSW0002, "+seed2+", 0, \n", out.String())
}

func TestParse_Latin1(t *testing.T) {
	ldif := "objectclass: SccUser\nsccUserId: jörg\nsccAuthenticator: 1:SW9\n" +
		"objectclass: SccDesAuthenticator\nsccAuthenticatorId: SW9\n" +
		"sccTokenData: sccKey=(" + encrypt(t, "DES", "seed") + ")\n"
	encoded, err := charmap.ISO8859_1.NewEncoder().String(ldif)
	require.NoError(t, err)

	tokens, err := safeword.Parse(strings.NewReader(encoded), safeword.Options{Keys: keys, Encoding: "latin1"})
	require.NoError(t, err)
	require.Len(t, tokens, 1)
	assert.Equal(t, "jörg", tokens[0].User)

	_, err = safeword.Parse(strings.NewReader(ldif), safeword.Options{Encoding: "klingon"})
	assert.Error(t, err)
}
