// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package document stores the supporting document of a patent: the PDF
// when the page links one, otherwise the rendered page markup.
package document

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/pdiddy/patent-harvester/internal/httputil"
)

// patentNumberPattern captures the publication number from a patent page
// link, e.g. ".../patent/US7654321B2/en" -> "US7654321B2".
var patentNumberPattern = regexp.MustCompile(`/patent/([A-Z]{2}[A-Z0-9]+)`)

// unsafeName matches characters not allowed in stored file names.
var unsafeName = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// Fetcher downloads documents over HTTP.
type Fetcher struct {
	client    *http.Client
	userAgent string
}

// NewFetcher returns a Fetcher using client.
func NewFetcher(client *http.Client, userAgent string) *Fetcher {
	if client == nil {
		client = http.DefaultClient
	}
	return &Fetcher{client: client, userAgent: userAgent}
}

// Download fetches rawURL into a fresh staging directory under tempRoot,
// then moves the single resulting file into destDir and returns its path.
// An existing file of the same name in destDir is kept and returned
// without downloading.
func (f *Fetcher) Download(ctx context.Context, rawURL, tempRoot, destDir string) (string, error) {
	name := FileName(rawURL)
	dest := filepath.Join(destDir, name)
	if _, err := os.Stat(dest); err == nil {
		return dest, nil
	}

	if err := os.MkdirAll(tempRoot, 0o755); err != nil {
		return "", fmt.Errorf("creating temp root: %w", err)
	}
	stage, err := os.MkdirTemp(tempRoot, "dl-*")
	if err != nil {
		return "", fmt.Errorf("creating staging directory: %w", err)
	}
	defer os.RemoveAll(stage)

	resp, err := httputil.Get(ctx, f.client, rawURL, f.userAgent)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	staged := filepath.Join(stage, name)
	out, err := os.Create(staged)
	if err != nil {
		return "", fmt.Errorf("creating staged file: %w", err)
	}
	_, copyErr := io.Copy(out, resp.Body)
	closeErr := out.Close()
	if copyErr != nil {
		return "", fmt.Errorf("writing download: %w", copyErr)
	}
	if closeErr != nil {
		return "", fmt.Errorf("closing staged file: %w", closeErr)
	}

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", fmt.Errorf("creating directory %s: %w", destDir, err)
	}
	if err := moveFile(staged, dest); err != nil {
		return "", err
	}
	return dest, nil
}

// SaveHTML writes markup to destDir/<stem>.html.
func SaveHTML(destDir, stem, markup string) (string, error) {
	stem = unsafeName.ReplaceAllString(stem, "_")
	if stem == "" || stem == "_" {
		stem = "page"
	}
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", fmt.Errorf("creating directory %s: %w", destDir, err)
	}
	dest := filepath.Join(destDir, stem+".html")
	if err := os.WriteFile(dest, []byte(markup), 0o644); err != nil {
		return "", fmt.Errorf("writing %s: %w", dest, err)
	}
	return dest, nil
}

// FileName derives a safe file name from the last path segment of rawURL.
func FileName(rawURL string) string {
	name := ""
	if u, err := url.Parse(rawURL); err == nil {
		name = path.Base(u.Path)
	}
	name = unsafeName.ReplaceAllString(name, "_")
	if name == "" || name == "." || name == "/" || name == "_" {
		return "document.pdf"
	}
	return name
}

// PatentNumber extracts the publication number from a patent page link.
func PatentNumber(link string) string {
	if m := patentNumberPattern.FindStringSubmatch(link); m != nil {
		return m[1]
	}
	return ""
}

// ShortPath returns the last three path segments of p joined by '/',
// e.g. "result/Ada/patents/US1.pdf" -> "Ada/patents/US1.pdf".
func ShortPath(p string) string {
	parts := strings.Split(filepath.ToSlash(filepath.Clean(p)), "/")
	if len(parts) > 3 {
		parts = parts[len(parts)-3:]
	}
	return strings.Join(parts, "/")
}

func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	// Rename fails across filesystems; fall back to copying.
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("opening %s: %w", src, err)
	}
	defer in.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".document-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	_, copyErr := io.Copy(tmp, in)
	closeErr := tmp.Close()
	if copyErr != nil || closeErr != nil {
		os.Remove(tmpPath)
		if copyErr == nil {
			copyErr = closeErr
		}
		return fmt.Errorf("copying %s: %w", src, copyErr)
	}
	if err := os.Rename(tmpPath, dst); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return os.Remove(src)
}
