// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package authn provides bearer-token authentication backed by a YAML file.
package authn

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/ResourceHub/pkg/extensions"
)

// hashPrefix marks a token stored as its SHA-256 hex digest.
const hashPrefix = "sha256:"

// validRoles are the roles a tokens file may grant.
var validRoles = []string{
	extensions.RoleAdmin,
	extensions.RoleManager,
	extensions.RoleRequester,
	extensions.RoleViewer,
	extensions.RoleAuditor,
}

// TokenEntry is one line of the tokens file.
//
// Token is either the literal bearer token or "sha256:<hex digest>".
type TokenEntry struct {
	Token  string   `yaml:"token"`
	UserID string   `yaml:"user_id"`
	Email  string   `yaml:"email"`
	Roles  []string `yaml:"roles"`
}

type tokensFile struct {
	Tokens []TokenEntry `yaml:"tokens"`
}

// FileTokenProvider implements extensions.AuthProvider from a YAML file of
// tokens.
//
// # Description
//
// Tokens are loaded at construction. Watch keeps the set current while the
// file is edited; a reload that fails to parse keeps the previous set.
//
// # File Format
//
//	tokens:
//	  - token: dev-admin-token
//	    user_id: alice
//	    email: alice@example.com
//	    roles: [admin]
//	  - token: sha256:9f86d081884c7d659a2feaa0c55ad015a3bf4f1b2b0b822cd15d6c15b0f00a08
//	    user_id: bob
//	    roles: [viewer]
//
// # Thread Safety
//
// Safe for concurrent use.
type FileTokenProvider struct {
	path string

	mu     sync.RWMutex
	plain  map[string]extensions.AuthInfo
	hashed map[string]extensions.AuthInfo
}

// NewFileTokenProvider loads path and returns a provider.
//
// # Inputs
//
//   - path: Tokens file. Must exist and parse.
//
// # Outputs
//
//   - *FileTokenProvider: Provider holding the loaded tokens.
//   - error: Non-nil if the file cannot be read or is invalid.
func NewFileTokenProvider(path string) (*FileTokenProvider, error) {
	p := &FileTokenProvider{path: path}
	if err := p.Reload(); err != nil {
		return nil, err
	}
	return p, nil
}

// Validate implements extensions.AuthProvider.
func (p *FileTokenProvider) Validate(_ context.Context, token string) (*extensions.AuthInfo, error) {
	if token == "" {
		return nil, extensions.ErrUnauthorized
	}
	sum := sha256.Sum256([]byte(token))

	p.mu.RLock()
	info, ok := p.plain[token]
	if !ok {
		info, ok = p.hashed[hex.EncodeToString(sum[:])]
	}
	p.mu.RUnlock()

	if !ok {
		return nil, extensions.ErrUnauthorized
	}
	info.Roles = slices.Clone(info.Roles)
	return &info, nil
}

// Len returns the number of loaded tokens.
func (p *FileTokenProvider) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.plain) + len(p.hashed)
}

// Reload re-reads the tokens file. On error the current set is kept.
func (p *FileTokenProvider) Reload() error {
	data, err := os.ReadFile(p.path)
	if err != nil {
		return fmt.Errorf("read tokens file: %w", err)
	}
	plain, hashed, err := parseTokens(data)
	if err != nil {
		return fmt.Errorf("tokens file %s: %w", p.path, err)
	}

	p.mu.Lock()
	p.plain, p.hashed = plain, hashed
	p.mu.Unlock()

	slog.Info("loaded tokens file", "path", p.path, "tokens", len(plain)+len(hashed))
	return nil
}

func parseTokens(data []byte) (map[string]extensions.AuthInfo, map[string]extensions.AuthInfo, error) {
	var f tokensFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, nil, fmt.Errorf("parse: %w", err)
	}
	// An empty file is usually a half-written save.
	if len(f.Tokens) == 0 {
		return nil, nil, errors.New("no tokens defined")
	}

	plain := map[string]extensions.AuthInfo{}
	hashed := map[string]extensions.AuthInfo{}
	for i, e := range f.Tokens {
		if e.Token == "" || e.UserID == "" {
			return nil, nil, fmt.Errorf("entry %d: token and user_id are required", i)
		}
		if len(e.Roles) == 0 {
			return nil, nil, fmt.Errorf("entry %d (%s): at least one role is required", i, e.UserID)
		}
		for _, r := range e.Roles {
			if !slices.Contains(validRoles, r) {
				return nil, nil, fmt.Errorf("entry %d (%s): unknown role %q", i, e.UserID, r)
			}
		}
		info := extensions.AuthInfo{UserID: e.UserID, Email: e.Email, Roles: e.Roles}

		if digest, ok := strings.CutPrefix(e.Token, hashPrefix); ok {
			digest = strings.ToLower(digest)
			if _, err := hex.DecodeString(digest); err != nil || len(digest) != sha256.Size*2 {
				return nil, nil, fmt.Errorf("entry %d (%s): malformed sha256 digest", i, e.UserID)
			}
			if _, dup := hashed[digest]; dup {
				return nil, nil, fmt.Errorf("entry %d (%s): duplicate token", i, e.UserID)
			}
			hashed[digest] = info
			continue
		}
		if _, dup := plain[e.Token]; dup {
			return nil, nil, fmt.Errorf("entry %d (%s): duplicate token", i, e.UserID)
		}
		plain[e.Token] = info
	}
	return plain, hashed, nil
}

// Watch reloads the tokens file whenever it changes. It blocks until ctx is
// cancelled and should be run in a goroutine.
//
// The parent directory is watched rather than the file itself, so editors
// that save by rename are picked up.
func (p *FileTokenProvider) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(p.path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	target := filepath.Clean(p.path)
	slog.Debug("watching tokens file", "path", target)

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if err := p.Reload(); err != nil {
				slog.Warn("tokens file reload failed, keeping previous tokens", "error", err)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			if errors.Is(err, fsnotify.ErrEventOverflow) {
				_ = p.Reload()
				continue
			}
			slog.Warn("tokens file watcher error", "error", err)

		case <-ctx.Done():
			return nil
		}
	}
}

// HashToken returns the "sha256:<hex>" form of token for use in a tokens
// file.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hashPrefix + hex.EncodeToString(sum[:])
}

var _ extensions.AuthProvider = (*FileTokenProvider)(nil)
