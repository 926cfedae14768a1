// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package checkpoint persists the output of one harvest stage so a later
// stage, or a later run, can pick it up. The format follows the file
// extension: .json (default), .yaml/.yml, or .txt for plain link lists.
package checkpoint

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.yaml.in/yaml/v3"
)

// Stage checkpoint file stems, written in the links directory.
const (
	MainLinks = "main_links"
	Inventors = "inventors"
	Patents   = "patents"
	Records   = "records"
)

// Path returns dir/<stem>.<format>, defaulting to json.
func Path(dir, stem, format string) string {
	format = strings.TrimPrefix(strings.ToLower(format), ".")
	if format == "" {
		format = "json"
	}
	return filepath.Join(dir, stem+"."+format)
}

// Write serializes items to path, creating parent directories. The file is
// written to a temporary sibling and renamed so readers never see a
// partial checkpoint.
func Write[T any](path string, items []T) error {
	if items == nil {
		items = []T{}
	}

	var (
		data []byte
		err  error
	)
	switch ext(path) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(items)
	case ".txt":
		data, err = marshalLines(items)
	default:
		data, err = json.MarshalIndent(items, "", "    ")
	}
	if err != nil {
		return fmt.Errorf("encoding checkpoint %s: %w", path, err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating checkpoint directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".checkpoint-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	_, writeErr := tmp.Write(data)
	closeErr := tmp.Close()
	if writeErr != nil || closeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("writing checkpoint %s: %w", path, firstErr(writeErr, closeErr))
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming checkpoint %s: %w", path, err)
	}
	return nil
}

// Read loads the items stored at path by Write.
func Read[T any](path string) ([]T, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading checkpoint: %w", err)
	}

	var items []T
	switch ext(path) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &items)
	case ".txt":
		items, err = unmarshalLines[T](data)
	default:
		err = json.Unmarshal(data, &items)
	}
	if err != nil {
		return nil, fmt.Errorf("decoding checkpoint %s: %w", path, err)
	}
	return items, nil
}

// Exists reports whether a checkpoint file is present.
func Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// Line-delimited checkpoints hold one value per line and only support
// strings and records whose only content is a "link" field.
func marshalLines[T any](items []T) ([]byte, error) {
	var buf bytes.Buffer
	for _, item := range items {
		line, err := lineOf(item)
		if err != nil {
			return nil, err
		}
		buf.WriteString(line)
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}

func lineOf(item any) (string, error) {
	switch v := item.(type) {
	case string:
		return v, nil
	}
	var rec struct {
		Link string `json:"link"`
	}
	data, err := json.Marshal(item)
	if err != nil {
		return "", err
	}
	if err := json.Unmarshal(data, &rec); err != nil || rec.Link == "" {
		return "", fmt.Errorf("type %T cannot be written as a line checkpoint", item)
	}
	return rec.Link, nil
}

func unmarshalLines[T any](data []byte) ([]T, error) {
	var items []T
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		var item T
		switch p := any(&item).(type) {
		case *string:
			*p = line
		default:
			raw, _ := json.Marshal(map[string]string{"link": line})
			if err := json.Unmarshal(raw, &item); err != nil {
				return nil, fmt.Errorf("type %T cannot be read from a line checkpoint", item)
			}
			if _, err := lineOf(item); err != nil {
				return nil, err
			}
		}
		items = append(items, item)
	}
	return items, sc.Err()
}

func ext(path string) string {
	return strings.ToLower(filepath.Ext(path))
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
