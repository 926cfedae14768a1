// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package secrets loads credentials from a directory of plain-text files.
// Each file is one secret: the file name is the key and the trimmed
// contents are the value.
//
// Recognized keys: browser-ws-url (a remote Chrome DevTools endpoint) and
// proxy-url (the HTTP proxy for page and document requests).
package secrets

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/pdiddy/patent-harvester/internal/logger"
	"github.com/pdiddy/patent-harvester/pkg/types"
)

// Key names understood by Apply.
const (
	BrowserWSURL = "browser-ws-url"
	ProxyURL     = "proxy-url"
)

// Secrets maps key names to values.
type Secrets map[string]string

// Load reads all files in dir. A missing directory yields an empty set.
// Unreadable files are logged and skipped.
func Load(dir string, log logger.Logger) (Secrets, error) {
	if log == nil {
		log = logger.NewNop()
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return Secrets{}, nil
		}
		return nil, fmt.Errorf("reading secrets directory %s: %w", dir, err)
	}

	secrets := make(Secrets)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			log.Warn("could not read secret", logger.String("key", name), logger.Error(err))
			continue
		}

		if value := strings.TrimSpace(string(data)); value != "" {
			secrets[name] = value
		}
	}
	return secrets, nil
}

// Keys returns the loaded key names in sorted order.
func (s Secrets) Keys() []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Apply fills browser settings that are still empty from the secrets.
// Explicit configuration always wins.
func (s Secrets) Apply(cfg *types.BrowserConfig) {
	if v := s[BrowserWSURL]; v != "" && cfg.RemoteURL == "" {
		cfg.RemoteURL = v
	}
	if v := s[ProxyURL]; v != "" && cfg.ProxyURL == "" {
		cfg.ProxyURL = v
	}
}
