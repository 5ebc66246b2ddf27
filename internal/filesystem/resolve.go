package filesystem

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

var (
	// ErrOutsideRoot is returned when a client path resolves outside the media root.
	// The message never includes the offending path.
	ErrOutsideRoot = errors.New("path outside media root")

	// ErrSourceNotFound is returned when a resolved path does not exist (or vanished
	// between resolution and use).
	ErrSourceNotFound = errors.New("source not found")
)

// Resolver resolves client-supplied relative paths against a fixed root.
type Resolver struct {
	root string
}

// NewResolver canonicalizes root (absolute, symlinks resolved) and verifies that
// it is an existing directory.
func NewResolver(root string) (*Resolver, error) {
	if root == "" {
		return nil, errors.New("media root is empty")
	}

	canonical, err := canonicalRoot(root)
	if err != nil {
		return nil, fmt.Errorf("resolve media root %s: %w", root, err)
	}

	info, err := os.Stat(canonical)
	if err != nil {
		return nil, fmt.Errorf("stat media root %s: %w", canonical, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("media root %s is not a directory", canonical)
	}

	return &Resolver{root: canonical}, nil
}

// Root returns the canonical root directory.
func (r *Resolver) Root() string {
	return r.root
}

// Resolve returns the canonical absolute path for relative, or ErrOutsideRoot.
func (r *Resolver) Resolve(relative string) (string, error) {
	return resolveWithin(r.root, relative)
}

// Rel returns the slash-separated path of abs relative to the root ("" for the
// root itself). abs must already be a resolved path.
func (r *Resolver) Rel(abs string) (string, error) {
	if !IsWithin(r.root, abs) {
		return "", ErrOutsideRoot
	}
	rel, err := filepath.Rel(r.root, abs)
	if err != nil {
		return "", err
	}
	if rel == "." {
		return "", nil
	}
	return filepath.ToSlash(rel), nil
}

// Resolve joins relative onto root and canonicalizes the result. It fails with
// ErrOutsideRoot unless the result is root itself or a descendant of it.
func Resolve(root, relative string) (string, error) {
	canonical, err := canonicalRoot(root)
	if err != nil {
		return "", fmt.Errorf("resolve media root: %w", err)
	}
	return resolveWithin(canonical, relative)
}

func canonicalRoot(root string) (string, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", err
	}
	return filepath.EvalSymlinks(abs)
}

func resolveWithin(root, relative string) (string, error) {
	if strings.ContainsRune(relative, 0) {
		return "", ErrOutsideRoot
	}

	joined := filepath.Join(root, filepath.FromSlash(relative))

	// Lexical check first so an escaping path never touches the filesystem.
	if !IsWithin(root, joined) {
		return "", ErrOutsideRoot
	}

	resolved, err := evalExisting(joined)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrSourceNotFound, err)
	}

	if !IsWithin(root, resolved) {
		return "", ErrOutsideRoot
	}

	return resolved, nil
}

// evalExisting resolves symlinks on the longest existing prefix of p and
// re-appends the components that do not exist yet.
func evalExisting(p string) (string, error) {
	var missing []string
	current := p

	for {
		resolved, err := filepath.EvalSymlinks(current)
		if err == nil {
			parts := make([]string, 0, len(missing)+1)
			parts = append(parts, resolved)
			for i := len(missing) - 1; i >= 0; i-- {
				parts = append(parts, missing[i])
			}
			return filepath.Join(parts...), nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return "", err
		}

		parent := filepath.Dir(current)
		if parent == current {
			return p, nil
		}
		missing = append(missing, filepath.Base(current))
		current = parent
	}
}

// IsWithin reports whether p is root or lies beneath it. Both paths must be
// clean and absolute. The check is separator-aware: /media does not contain
// /media-archive.
func IsWithin(root, p string) bool {
	if p == root {
		return true
	}
	prefix := root
	if !strings.HasSuffix(prefix, string(filepath.Separator)) {
		prefix += string(filepath.Separator)
	}
	return strings.HasPrefix(p, prefix)
}
