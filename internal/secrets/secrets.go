// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package secrets loads tokens and cookies from a directory of plain-text
// files. Each file holds one secret: the file name is the key and the
// trimmed contents are the value.
//
// Known key files: telegram-bot-token, and <source>-cookie for sources that
// refuse anonymous searches (for example taobao-cookie). A source config can
// name a different file with cookie_secret.
package secrets

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Load reads every regular, non-hidden file in dir into a map keyed by the
// lower-cased file name. Values are trimmed and blank files are skipped. A
// missing directory yields an empty map. Unreadable files are logged and
// skipped.
func Load(dir string) (map[string]string, error) {
	secrets := make(map[string]string)

	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return secrets, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading secrets directory %s: %w", dir, err)
	}

	for _, entry := range entries {
		name := entry.Name()
		if !entry.Type().IsRegular() || strings.HasPrefix(name, ".") {
			continue
		}
		value, err := readSecret(filepath.Join(dir, name))
		if err != nil {
			slog.Warn("secrets: could not read secret", "name", name, "error", err)
			continue
		}
		if value != "" {
			secrets[strings.ToLower(name)] = value
		}
	}
	return secrets, nil
}

func readSecret(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// Keys returns the sorted secret names, never their values.
func Keys(secrets map[string]string) []string {
	keys := make([]string, 0, len(secrets))
	for k := range secrets {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// CookieKey returns the secret name holding the cookie for source.
func CookieKey(source, override string) string {
	if override != "" {
		return strings.ToLower(override)
	}
	return strings.ToLower(strings.TrimSpace(source)) + "-cookie"
}
