// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package config

import (
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/term"
)

// ErrNoTerminal is returned when a password is needed but stdin is not a
// terminal to prompt on.
var ErrNoTerminal = errors.New("config: password required but stdin is not a terminal")

// PromptPassword asks for a password on in without echo. out receives the
// prompt.
func PromptPassword(in *os.File, out io.Writer, prompt string) (string, error) {
	fd := int(in.Fd())
	if !term.IsTerminal(fd) {
		return "", ErrNoTerminal
	}
	fmt.Fprint(out, prompt)
	pw, err := term.ReadPassword(fd)
	fmt.Fprintln(out)
	if err != nil {
		return "", fmt.Errorf("config: read password: %w", err)
	}
	return string(pw), nil
}

// Credentials returns the admin credentials, prompting for the password
// on a terminal when none is configured. ok is false when the server
// section carries an API token instead.
func (s Server) Credentials(in *os.File, out io.Writer) (username, password string, ok bool, err error) {
	if s.Token != "" {
		return "", "", false, nil
	}
	password = s.Password
	if password == "" {
		password, err = PromptPassword(in, out, fmt.Sprintf("Password for %s: ", s.Username))
		if err != nil {
			return "", "", false, err
		}
	}
	return s.Username, password, true, nil
}
