package pack

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Pack bundles an extracted feature: the manifest, the directory it lives
// in, and the source files under it. Immutable once returned by extraction.
type Pack struct {
	Manifest *Manifest
	Root     string
	Files    []string
}

// Open loads the pack rooted at dir. Files are collected relative to the
// root, sorted, with the manifest itself excluded.
func Open(dir string) (*Pack, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	m, err := Load(filepath.Join(abs, ManifestFileName))
	if err != nil {
		return nil, err
	}
	files, err := collectFiles(abs)
	if err != nil {
		return nil, fmt.Errorf("listing pack files: %w", err)
	}
	return &Pack{Manifest: m, Root: abs, Files: files}, nil
}

func collectFiles(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") && p != root {
				return filepath.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		if rel == ManifestFileName {
			return nil
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

// ReadFile returns the contents of a pack-relative file.
func (p *Pack) ReadFile(rel string) (string, error) {
	data, err := os.ReadFile(filepath.Join(p.Root, filepath.FromSlash(rel)))
	if err != nil {
		return "", err
	}
	return string(data), nil
}
