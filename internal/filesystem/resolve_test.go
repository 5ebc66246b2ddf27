package filesystem

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

// newTestRoot creates <tmp>/media and <tmp>/media-archive and returns the
// resolver for the first one plus the canonical temp parent.
func newTestRoot(t *testing.T) (*Resolver, string) {
	t.Helper()

	parent, err := filepath.EvalSymlinks(t.TempDir())
	if err != nil {
		t.Fatalf("EvalSymlinks: %v", err)
	}

	for _, dir := range []string{"media/a", "media-archive", "outside"} {
		if err := os.MkdirAll(filepath.Join(parent, dir), 0o755); err != nil {
			t.Fatalf("MkdirAll %s: %v", dir, err)
		}
	}
	files := map[string]string{
		"media/a/b.mp4":            "video",
		"media/notes.txt":          "text",
		"media-archive/secret.mp4": "secret",
		"outside/passwd":           "root:x:0:0",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(parent, name), []byte(content), 0o644); err != nil {
			t.Fatalf("WriteFile %s: %v", name, err)
		}
	}

	r, err := NewResolver(filepath.Join(parent, "media"))
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}
	return r, parent
}

func TestResolve_WithinRoot(t *testing.T) {
	r, _ := newTestRoot(t)
	root := r.Root()

	tests := []struct {
		name     string
		relative string
		want     string
	}{
		{name: "empty is root", relative: "", want: root},
		{name: "dot is root", relative: ".", want: root},
		{name: "nested file", relative: "a/b.mp4", want: filepath.Join(root, "a", "b.mp4")},
		{name: "dot segments that stay inside", relative: "a/../a/./b.mp4", want: filepath.Join(root, "a", "b.mp4")},
		{name: "leading slash is relative to root", relative: "/a/b.mp4", want: filepath.Join(root, "a", "b.mp4")},
		{name: "missing file stays lexical", relative: "a/missing.mp4", want: filepath.Join(root, "a", "missing.mp4")},
		{name: "missing directory chain", relative: "x/y/z.mp4", want: filepath.Join(root, "x", "y", "z.mp4")},
		{name: "parent then back in", relative: "../media/notes.txt", want: filepath.Join(root, "notes.txt")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.Resolve(tt.relative)
			if err != nil {
				t.Fatalf("Resolve(%q) error: %v", tt.relative, err)
			}
			if got != tt.want {
				t.Errorf("Resolve(%q) = %q, want %q", tt.relative, got, tt.want)
			}
			if !IsWithin(root, got) {
				t.Errorf("Resolve(%q) = %q is not within root %q", tt.relative, got, root)
			}
		})
	}
}

func TestResolve_OutsideRoot(t *testing.T) {
	r, _ := newTestRoot(t)

	tests := []struct {
		name     string
		relative string
	}{
		{name: "classic traversal", relative: "../../etc/passwd"},
		{name: "single parent", relative: ".."},
		{name: "sibling sharing name prefix", relative: "../media-archive/secret.mp4"},
		{name: "sibling directory itself", relative: "../media-archive"},
		{name: "deep traversal", relative: "a/../../outside/passwd"},
		{name: "NUL byte", relative: "a/b.mp4\x00.jpg"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.Resolve(tt.relative)
			if !errors.Is(err, ErrOutsideRoot) {
				t.Fatalf("Resolve(%q) = %q, %v; want ErrOutsideRoot", tt.relative, got, err)
			}
			if got != "" {
				t.Errorf("expected empty path on rejection, got %q", got)
			}
		})
	}
}

func TestResolve_SymlinkEscape(t *testing.T) {
	r, parent := newTestRoot(t)
	root := r.Root()

	if err := os.Symlink(filepath.Join(parent, "outside"), filepath.Join(root, "escape")); err != nil {
		t.Skipf("symlinks not supported: %v", err)
	}
	if err := os.Symlink(filepath.Join(root, "a"), filepath.Join(root, "inner")); err != nil {
		t.Fatalf("Symlink: %v", err)
	}

	if _, err := r.Resolve("escape/passwd"); !errors.Is(err, ErrOutsideRoot) {
		t.Errorf("symlink escape: expected ErrOutsideRoot, got %v", err)
	}
	if _, err := r.Resolve("escape/does-not-exist"); !errors.Is(err, ErrOutsideRoot) {
		t.Errorf("symlink escape to missing file: expected ErrOutsideRoot, got %v", err)
	}

	got, err := r.Resolve("inner/b.mp4")
	if err != nil {
		t.Fatalf("in-root symlink: unexpected error %v", err)
	}
	if want := filepath.Join(root, "a", "b.mp4"); got != want {
		t.Errorf("in-root symlink resolved to %q, want %q", got, want)
	}
}

func TestResolve_ThroughRegularFile(t *testing.T) {
	r, _ := newTestRoot(t)

	_, err := r.Resolve("notes.txt/child")
	if !errors.Is(err, ErrSourceNotFound) {
		t.Errorf("expected ErrSourceNotFound, got %v", err)
	}
}

func TestResolve_PackageFunction(t *testing.T) {
	r, parent := newTestRoot(t)

	got, err := Resolve(filepath.Join(parent, "media"), "a/b.mp4")
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	if want := filepath.Join(r.Root(), "a", "b.mp4"); got != want {
		t.Errorf("Resolve = %q, want %q", got, want)
	}

	if _, err := Resolve(filepath.Join(parent, "media"), "../media-archive"); !errors.Is(err, ErrOutsideRoot) {
		t.Errorf("expected ErrOutsideRoot, got %v", err)
	}
}

func TestOutsideRootErrorDoesNotLeakPath(t *testing.T) {
	r, _ := newTestRoot(t)

	_, err := r.Resolve("../../etc/passwd")
	if err == nil {
		t.Fatal("expected error")
	}
	if err.Error() != ErrOutsideRoot.Error() {
		t.Errorf("error message should be the bare sentinel, got %q", err.Error())
	}
}

func TestNewResolver_Errors(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "file")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	tests := []struct {
		name string
		root string
	}{
		{name: "empty", root: ""},
		{name: "missing", root: filepath.Join(dir, "missing")},
		{name: "regular file", root: file},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewResolver(tt.root); err == nil {
				t.Errorf("NewResolver(%q) expected error", tt.root)
			}
		})
	}
}

func TestIsWithin(t *testing.T) {
	tests := []struct {
		root string
		path string
		want bool
	}{
		{"/media", "/media", true},
		{"/media", "/media/a", true},
		{"/media", "/media/a/b.mp4", true},
		{"/media", "/media-other", false},
		{"/media", "/media-archive/x", false},
		{"/media", "/med", false},
		{"/media", "/", false},
		{"/", "/anything", true},
		{"/", "/", true},
	}

	for _, tt := range tests {
		if got := IsWithin(tt.root, tt.path); got != tt.want {
			t.Errorf("IsWithin(%q, %q) = %v, want %v", tt.root, tt.path, got, tt.want)
		}
	}
}

func TestResolverRel(t *testing.T) {
	r, parent := newTestRoot(t)
	root := r.Root()

	tests := []struct {
		abs  string
		want string
	}{
		{root, ""},
		{filepath.Join(root, "a"), "a"},
		{filepath.Join(root, "a", "b.mp4"), "a/b.mp4"},
	}
	for _, tt := range tests {
		got, err := r.Rel(tt.abs)
		if err != nil {
			t.Fatalf("Rel(%q) error: %v", tt.abs, err)
		}
		if got != tt.want {
			t.Errorf("Rel(%q) = %q, want %q", tt.abs, got, tt.want)
		}
	}

	if _, err := r.Rel(filepath.Join(parent, "outside")); !errors.Is(err, ErrOutsideRoot) {
		t.Errorf("expected ErrOutsideRoot, got %v", err)
	}
}
