// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package mailbox

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
)

// ErrNoToken means the OAuth consent flow has not run yet. The setup
// command creates the token file.
var ErrNoToken = errors.New("no gmail token: run setup first")

// LoadOAuthConfig reads the downloaded OAuth client credentials and
// binds them to the read-only Gmail scope.
func LoadOAuthConfig(path string) (*oauth2.Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading oauth credentials %s: %w", path, err)
	}
	cfg, err := google.ConfigFromJSON(b, gmail.GmailReadonlyScope)
	if err != nil {
		return nil, fmt.Errorf("parsing oauth credentials %s: %w", path, err)
	}
	return cfg, nil
}

// TokenFromFile loads a cached OAuth token. A missing file returns
// ErrNoToken; a corrupt file is an ordinary error.
func TokenFromFile(path string) (*oauth2.Token, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNoToken
	}
	if err != nil {
		return nil, fmt.Errorf("reading gmail token %s: %w", path, err)
	}
	defer f.Close()

	var tok oauth2.Token
	if err := json.NewDecoder(f).Decode(&tok); err != nil {
		return nil, fmt.Errorf("parsing gmail token %s: %w", path, err)
	}
	return &tok, nil
}

// SaveToken writes the token where TokenFromFile will find it. The
// file is user-only: it grants mailbox access.
func SaveToken(path string, tok *oauth2.Token) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("creating token directory: %w", err)
		}
	}
	b, err := json.Marshal(tok)
	if err != nil {
		return fmt.Errorf("encoding gmail token: %w", err)
	}
	if err := os.WriteFile(path, b, 0o600); err != nil {
		return fmt.Errorf("writing gmail token %s: %w", path, err)
	}
	return nil
}
