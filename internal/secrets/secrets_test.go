// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package secrets

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/patent-harvester/pkg/types"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name  string
		setup func(t *testing.T) string
		want  Secrets
	}{
		{
			name: "reads key files and trims whitespace",
			setup: func(t *testing.T) string {
				dir := t.TempDir()
				writeFile(t, dir, "browser-ws-url", "  ws://127.0.0.1:9222/devtools/browser/abc  \n")
				writeFile(t, dir, "proxy-url", "http://proxy.internal:3128\n")
				return dir
			},
			want: Secrets{
				"browser-ws-url": "ws://127.0.0.1:9222/devtools/browser/abc",
				"proxy-url":      "http://proxy.internal:3128",
			},
		},
		{
			name: "returns empty set for nonexistent directory",
			setup: func(t *testing.T) string {
				return filepath.Join(t.TempDir(), "does-not-exist")
			},
			want: Secrets{},
		},
		{
			name: "skips empty files",
			setup: func(t *testing.T) string {
				dir := t.TempDir()
				writeFile(t, dir, "proxy-url", "http://p:1")
				writeFile(t, dir, "empty-key", "")
				writeFile(t, dir, "whitespace-only", "   \n\t  ")
				return dir
			},
			want: Secrets{"proxy-url": "http://p:1"},
		},
		{
			name: "skips dotfiles and subdirectories",
			setup: func(t *testing.T) string {
				dir := t.TempDir()
				writeFile(t, dir, ".gitkeep", "")
				writeFile(t, dir, ".hidden-key", "secret")
				writeFile(t, dir, "browser-ws-url", "ws://x")
				require.NoError(t, os.Mkdir(filepath.Join(dir, "subdir"), 0o755))
				return dir
			},
			want: Secrets{"browser-ws-url": "ws://x"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Load(tt.setup(t), nil)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLoadUnreadableFile(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("root can read files without permission bits")
	}
	dir := t.TempDir()
	writeFile(t, dir, "proxy-url", "http://p:1")

	badPath := filepath.Join(dir, "browser-ws-url")
	require.NoError(t, os.WriteFile(badPath, []byte("ws://x"), 0o000))
	t.Cleanup(func() { os.Chmod(badPath, 0o644) })

	got, err := Load(dir, nil)
	require.NoError(t, err)
	assert.Equal(t, "http://p:1", got[ProxyURL])
	assert.NotContains(t, got, BrowserWSURL)
}

func TestApply(t *testing.T) {
	s := Secrets{BrowserWSURL: "ws://remote", ProxyURL: "http://proxy:1"}

	var cfg types.BrowserConfig
	s.Apply(&cfg)
	assert.Equal(t, "ws://remote", cfg.RemoteURL)
	assert.Equal(t, "http://proxy:1", cfg.ProxyURL)

	explicit := types.BrowserConfig{RemoteURL: "ws://flag"}
	s.Apply(&explicit)
	assert.Equal(t, "ws://flag", explicit.RemoteURL, "configured values win")
	assert.Equal(t, "http://proxy:1", explicit.ProxyURL)
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestKeys(t *testing.T) {
	s := Secrets{ProxyURL: "p", BrowserWSURL: "b", "api-key": "k"}
	assert.Equal(t, []string{"api-key", "browser-ws-url", "proxy-url"}, s.Keys())
	assert.Empty(t, Secrets{}.Keys())
}
