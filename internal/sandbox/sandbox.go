// Package sandbox confines tool-initiated file access to a declared root.
// Every file tool resolves paths here before touching the filesystem, so a
// planner-supplied "../../etc/passwd" surfaces as a structured error in the
// conversation instead of an escape.
package sandbox

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrPathTraversal is returned when a path resolves outside the root.
var ErrPathTraversal = errors.New("path traversal not allowed")

// Sandbox confines path resolution to a single root directory.
type Sandbox struct {
	root string
}

// New creates a sandbox rooted at root. The root is made absolute and
// cleaned once so all later prefix checks compare canonical forms.
func New(root string) (*Sandbox, error) {
	if root == "" {
		return nil, fmt.Errorf("sandbox root cannot be empty")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve sandbox root: %w", err)
	}
	return &Sandbox{root: filepath.Clean(abs)}, nil
}

// Root returns the absolute sandbox root.
func (s *Sandbox) Root() string {
	return s.root
}

// Resolve maps a relative (or absolute) path into the sandbox and rejects
// anything that lands outside the root. The root itself is rejected; use
// ResolveAllowRoot for directory-level operations.
func (s *Sandbox) Resolve(path string) (string, error) {
	abs, err := s.resolve(path)
	if err != nil {
		return "", err
	}
	if abs == s.root {
		return "", fmt.Errorf("%w: %s", ErrPathTraversal, path)
	}
	return abs, nil
}

// ResolveAllowRoot is Resolve but permits resolving to the root itself.
func (s *Sandbox) ResolveAllowRoot(path string) (string, error) {
	return s.resolve(path)
}

func (s *Sandbox) resolve(path string) (string, error) {
	candidate := path
	if !filepath.IsAbs(candidate) {
		candidate = filepath.Join(s.root, candidate)
	}
	abs := filepath.Clean(candidate)

	if abs != s.root && !strings.HasPrefix(abs, s.root+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrPathTraversal, path)
	}
	return abs, nil
}

// Contains reports whether an already-absolute path lies under the root.
func (s *Sandbox) Contains(abs string) bool {
	abs = filepath.Clean(abs)
	return abs == s.root || strings.HasPrefix(abs, s.root+string(filepath.Separator))
}
