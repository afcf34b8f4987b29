// Package tokenstore persists the OAuth token between runs.
package tokenstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/oauth2"
)

// ErrNotFound is returned by Load when no token has been stored.
var ErrNotFound = errors.New("no stored token")

// File stores a token as JSON at Path.
type File struct {
	Path string
}

// New returns a File store for path.
func New(path string) *File {
	return &File{Path: path}
}

// Load reads the stored token. A file without an access token is treated
// as absent.
func (f *File) Load() (*oauth2.Token, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read %s: %w", filepath.Base(f.Path), err)
	}

	var token oauth2.Token
	if err := json.Unmarshal(data, &token); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", filepath.Base(f.Path), err)
	}
	if strings.TrimSpace(token.AccessToken) == "" {
		return nil, ErrNotFound
	}
	return &token, nil
}

// Save writes token with mode 0600, creating the parent directory (0700).
func (f *File) Save(token *oauth2.Token) error {
	if token == nil || token.AccessToken == "" {
		return errors.New("refusing to store an empty token")
	}
	if err := os.MkdirAll(filepath.Dir(f.Path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(token, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(f.Path, data, 0600)
}

// Clear removes the stored token. Clearing an absent token is not an error.
func (f *File) Clear() error {
	if err := os.Remove(f.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// Exists reports whether a token file is present.
func (f *File) Exists() bool {
	_, err := os.Stat(f.Path)
	return err == nil
}
