// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package safeword

import (
	"bufio"
	"crypto/aes"
	"crypto/cipher"
	"crypto/des" // #nosec G502 -- SafeWord exports are DES encrypted
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/H0llyW00dzZ/privacyidea-scripts/src/internal/csvin"
	"github.com/H0llyW00dzZ/privacyidea-scripts/src/logger"
)

var (
	// ErrNoKey is returned when the export uses an algorithm whose key was
	// not configured.
	ErrNoKey = errors.New("safeword: no key configured")
	// ErrUnknownAlgorithm is returned for an algorithm other than AES or DES.
	ErrUnknownAlgorithm = errors.New("safeword: unknown algorithm")
	// ErrBlockSize is returned for ciphertext that is not a whole number of
	// blocks.
	ErrBlockSize = errors.New("safeword: ciphertext is not a multiple of the block size")
)

const (
	userClass      = "objectclass: SccUser"
	userID         = "sccUserId:"
	userToken      = "sccAuthenticator: 1:"
	tokenClass     = "objectclass: SccDesAuthenticator"
	tokenID        = "sccAuthenticatorId:"
	tokenData      = "sccTokenData"
	defaultCounter = "0"
)

var (
	keyRe = regexp.MustCompile(`sccKey=\((.*?)\)`)
	seqRe = regexp.MustCompile(`sccSeq=\((.*?)\)`)
)

// Keys are the export encryption keys. AES must be 16, 24 or 32 bytes,
// DES 8 bytes.
type Keys struct {
	AES []byte
	DES []byte
}

// Token is one decrypted authenticator.
type Token struct {
	Serial  string
	Seed    string
	Counter string
	// User is the SafeWord user the token is assigned to, if any.
	User string
}

// Options configures Parse.
type Options struct {
	Keys Keys
	// Encoding is the character set of the export; empty means UTF-8.
	Encoding string
	// Log receives warnings about token entries that cannot be decrypted.
	Log logger.Logger
}

// Parse reads a SafeWord LDIF export and returns the tokens with decrypted
// seeds, in file order. Only the first authenticator of a user is taken as
// its assignment.
func Parse(r io.Reader, opts Options) ([]Token, error) {
	src, err := csvin.Decode(r, opts.Encoding)
	if err != nil {
		return nil, err
	}
	log := opts.Log
	if log == nil {
		log = logger.Discard
	}

	var (
		tokens   []Token
		assigned = map[string]string{}
		user     = map[string]string{}
		current  Token
	)
	handle := func(line string) {
		switch {
		case strings.HasPrefix(line, userClass):
			user = map[string]string{}
		case strings.HasPrefix(line, userID):
			user["user"] = strings.TrimSpace(line[len(userID):])
		case strings.HasPrefix(line, userToken):
			user["serial"] = strings.TrimSpace(line[len(userToken):])
		case strings.HasPrefix(line, tokenClass):
			current = Token{}
		case strings.HasPrefix(line, tokenID):
			current.Serial = strings.TrimSpace(line[len(tokenID):])
		case strings.HasPrefix(line, tokenData):
			m := keyRe.FindStringSubmatch(line)
			if m == nil {
				log.Printf("Could not find key for token! %s", line)
				break
			}
			seed, err := decryptField(m[1], opts.Keys)
			if err != nil {
				log.Printf("Could not decrypt key of token %s: %v", current.Serial, err)
				break
			}
			current.Seed = seed
			if m := seqRe.FindStringSubmatch(line); m != nil {
				counter, err := decryptField(m[1], opts.Keys)
				if err != nil {
					log.Printf("Could not decrypt counter of token %s: %v", current.Serial, err)
				} else {
					current.Counter = counter
				}
			}
		}

		if current.Serial != "" && current.Seed != "" {
			tokens = append(tokens, current)
			current = Token{}
		}
		if user["serial"] != "" && user["user"] != "" {
			assigned[user["serial"]] = user["user"]
		}
	}

	// LDIF folds long lines; a continuation line starts with one space.
	sc := bufio.NewScanner(src)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	var logical strings.Builder
	pending := false
	for sc.Scan() {
		line := strings.TrimSuffix(sc.Text(), "\r")
		if pending && strings.HasPrefix(line, " ") {
			logical.WriteString(line[1:])
			continue
		}
		if pending {
			handle(logical.String())
		}
		logical.Reset()
		logical.WriteString(line)
		pending = true
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("safeword: read export: %w", err)
	}
	if pending {
		handle(logical.String())
	}

	for i := range tokens {
		tokens[i].User = assigned[tokens[i].Serial]
		if tokens[i].Counter == "" {
			tokens[i].Counter = defaultCounter
		}
	}
	return tokens, nil
}

// decryptField decrypts an "algo:hexdata" value.
func decryptField(field string, keys Keys) (string, error) {
	algo, data, ok := strings.Cut(field, ":")
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownAlgorithm, field)
	}
	return Decrypt(algo, data, keys)
}

// Decrypt decrypts hex encoded ECB ciphertext with the key for algo ("aes"
// or "des", case-insensitive) and strips NUL padding.
func Decrypt(algo, hexData string, keys Keys) (string, error) {
	var (
		block cipher.Block
		err   error
	)
	switch strings.ToLower(strings.TrimSpace(algo)) {
	case "aes":
		if len(keys.AES) == 0 {
			return "", fmt.Errorf("%w: aes", ErrNoKey)
		}
		block, err = aes.NewCipher(keys.AES)
	case "des":
		if len(keys.DES) == 0 {
			return "", fmt.Errorf("%w: des", ErrNoKey)
		}
		block, err = des.NewCipher(keys.DES) // #nosec G405
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownAlgorithm, algo)
	}
	if err != nil {
		return "", fmt.Errorf("safeword: %s key: %w", algo, err)
	}

	data, err := hex.DecodeString(strings.TrimSpace(hexData))
	if err != nil {
		return "", fmt.Errorf("safeword: decode ciphertext: %w", err)
	}
	bs := block.BlockSize()
	if len(data)%bs != 0 {
		return "", fmt.Errorf("%w: %d bytes", ErrBlockSize, len(data))
	}
	out := make([]byte, len(data))
	for i := 0; i < len(data); i += bs {
		block.Decrypt(out[i:i+bs], data[i:i+bs])
	}
	return strings.Trim(string(out), "\x00"), nil
}

// WriteCSV writes "serial, seed, counter, user" lines as read by the token
// import tool.
func WriteCSV(w io.Writer, tokens []Token) error {
	for _, t := range tokens {
		if _, err := fmt.Fprintf(w, "%s, %s, %s, %s\n", t.Serial, t.Seed, t.Counter, t.User); err != nil {
			return err
		}
	}
	return nil
}
