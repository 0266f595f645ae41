package ingest

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ExtractPDFs unpacks every PDF in the archive at zipPath into dest, flattening
// directories. macOS resource forks (__MACOSX) and hidden files are skipped.
// It returns the extracted paths sorted by name.
func ExtractPDFs(zipPath, dest string) ([]string, error) {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return nil, fmt.Errorf("open zip: %w", err)
	}
	defer r.Close()

	if err := os.MkdirAll(dest, 0o755); err != nil {
		return nil, err
	}

	var out []string
	seen := map[string]int{}
	for _, f := range r.File {
		if f.FileInfo().IsDir() || strings.Contains(f.Name, "__MACOSX") {
			continue
		}
		base := filepath.Base(f.Name)
		if !allowedPath(base) {
			continue
		}
		if n := seen[base]; n > 0 {
			ext := filepath.Ext(base)
			base = fmt.Sprintf("%s_%d%s", strings.TrimSuffix(base, ext), n, ext)
		}
		seen[filepath.Base(f.Name)]++

		target := filepath.Join(dest, base)
		if err := copyEntry(f, target); err != nil {
			return nil, fmt.Errorf("extract %s: %w", f.Name, err)
		}
		out = append(out, target)
	}
	sort.Strings(out)
	return out, nil
}

func copyEntry(f *zip.File, target string) error {
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	w, err := os.Create(target)
	if err != nil {
		return err
	}
	if _, err := io.Copy(w, rc); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}
