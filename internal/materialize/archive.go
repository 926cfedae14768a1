// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package materialize

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// ErrEmptyDir is returned by ZipDir when there is nothing to archive.
var ErrEmptyDir = errors.New("directory has no files to archive")

// ArchiveName appends ".zip" to name unless it already ends with it.
func ArchiveName(name string) string {
	if strings.HasSuffix(strings.ToLower(name), ".zip") {
		return name
	}
	return name + ".zip"
}

// ZipDir writes srcDir recursively to archivePath and returns the archive
// size in bytes. Entries keep the source directory name as their first
// path element. An srcDir without files yields ErrEmptyDir and no archive.
func ZipDir(srcDir, archivePath string) (int64, error) {
	files, err := listFiles(srcDir)
	if err != nil {
		return 0, err
	}
	if len(files) == 0 {
		return 0, fmt.Errorf("%s: %w", srcDir, ErrEmptyDir)
	}

	if dir := filepath.Dir(archivePath); dir != "." {
		if err := EnsureDir(dir); err != nil {
			return 0, err
		}
	}
	tmp := archivePath + ".tmp"
	out, err := os.Create(tmp)
	if err != nil {
		return 0, fmt.Errorf("creating archive: %w", err)
	}

	zw := zip.NewWriter(out)
	base := filepath.Dir(filepath.Clean(srcDir))
	for _, path := range files {
		if err := addFile(zw, base, path); err != nil {
			zw.Close()
			out.Close()
			os.Remove(tmp)
			return 0, err
		}
	}
	if err := zw.Close(); err != nil {
		out.Close()
		os.Remove(tmp)
		return 0, fmt.Errorf("finishing archive: %w", err)
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return 0, fmt.Errorf("closing archive: %w", err)
	}
	if err := os.Rename(tmp, archivePath); err != nil {
		os.Remove(tmp)
		return 0, fmt.Errorf("placing archive: %w", err)
	}

	info, err := os.Stat(archivePath)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

func listFiles(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", root, err)
	}
	return files, nil
}

func addFile(zw *zip.Writer, base, path string) error {
	rel, err := filepath.Rel(base, path)
	if err != nil {
		return err
	}
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	hdr, err := zip.FileInfoHeader(info)
	if err != nil {
		return err
	}
	hdr.Name = filepath.ToSlash(rel)
	hdr.Method = zip.Deflate

	w, err := zw.CreateHeader(hdr)
	if err != nil {
		return fmt.Errorf("adding %s: %w", rel, err)
	}
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("compressing %s: %w", rel, err)
	}
	return nil
}
