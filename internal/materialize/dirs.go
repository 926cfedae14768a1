// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package materialize turns extracted patent records into the on-disk
// result tree: per-author directories, workbooks and the final archive.
package materialize

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// PatentsDirName is the per-author subdirectory holding documents.
const PatentsDirName = "patents"

var unsafeDirChars = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1f]+`)

// EnsureDir creates dir and its parents. An existing directory is fine.
func EnsureDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}
	return nil
}

// AuthorDirName maps an inventor name to a directory name: whitespace runs
// become "_" and path separators are dropped.
func AuthorDirName(name string) string {
	n := strings.Join(strings.Fields(name), "_")
	n = unsafeDirChars.ReplaceAllString(n, "")
	n = strings.Trim(n, ".")
	if n == "" {
		return "unknown"
	}
	return n
}

// UniqueAuthorDirNames maps names to directory names in order. A name
// whose directory name is already taken, ignoring case, gets the first free
// numeric suffix: Ann_Poe, Ann_Poe_2, Ann_Poe_3.
func UniqueAuthorDirNames(names []string) []string {
	taken := make(map[string]bool, len(names))
	out := make([]string, len(names))
	for i, name := range names {
		base := AuthorDirName(name)
		dir := base
		for n := 2; taken[strings.ToLower(dir)]; n++ {
			dir = fmt.Sprintf("%s_%d", base, n)
		}
		taken[strings.ToLower(dir)] = true
		out[i] = dir
	}
	return out
}

// MakeAuthorDirs creates <root>/<author>/patents and returns both paths.
func MakeAuthorDirs(root, name string) (authorDir, patentsDir string, err error) {
	authorDir = filepath.Join(root, AuthorDirName(name))
	patentsDir = filepath.Join(authorDir, PatentsDirName)
	if err := EnsureDir(patentsDir); err != nil {
		return "", "", err
	}
	return authorDir, patentsDir, nil
}

// PruneEmptyAuthorDirs removes every author directory under root whose
// patents directory holds no files. It returns the number removed.
func PruneEmptyAuthorDirs(root string) (int, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("reading %s: %w", root, err)
	}

	removed := 0
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		authorDir := filepath.Join(root, e.Name())
		empty, err := isEmptyDir(filepath.Join(authorDir, PatentsDirName))
		if err != nil {
			return removed, err
		}
		if !empty {
			continue
		}
		if err := os.RemoveAll(authorDir); err != nil {
			return removed, fmt.Errorf("removing %s: %w", authorDir, err)
		}
		removed++
	}
	return removed, nil
}

// isEmptyDir reports whether dir exists and contains no entries. A missing
// dir is not considered empty so unrelated directories survive pruning.
func isEmptyDir(dir string) (bool, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("reading %s: %w", dir, err)
	}
	return len(entries) == 0, nil
}
