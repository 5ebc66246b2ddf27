package media

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"media-explorer/internal/filesystem"
	"media-explorer/internal/logging"
	"media-explorer/internal/mediatypes"
	"media-explorer/internal/metrics"
)

// ErrNotDirectory is returned when a listing is requested for a file.
var ErrNotDirectory = errors.New("not a directory")

// Entry is one listed item. Path is relative to the media root and uses
// forward slashes.
type Entry struct {
	Name string          `json:"name"`
	Type mediatypes.Kind `json:"type"`
	Path string          `json:"path"`
}

// DirectoryTree is the response of a directory listing. Every group is
// always present, possibly empty. OtherFiles is kept for clients that expect
// it and is always empty.
type DirectoryTree struct {
	Directories []Entry `json:"directories"`
	VideoFiles  []Entry `json:"videoFiles"`
	ImageFiles  []Entry `json:"imageFiles"`
	OtherFiles  []Entry `json:"otherFiles"`
}

// ListDirectory lists the directory at relative, grouping entries by kind.
// Hidden entries and files outside the allow-lists are omitted.
func ListDirectory(resolver *filesystem.Resolver, relative string) (tree *DirectoryTree, err error) {
	start := time.Now()
	defer func() {
		status := "success"
		switch {
		case errors.Is(err, filesystem.ErrSourceNotFound), errors.Is(err, ErrNotDirectory):
			status = "not_found"
		case err != nil:
			status = "error"
		}
		metrics.DirectoryListingsTotal.WithLabelValues(status).Inc()
		logging.Debug("ListDirectory %q: %s in %v", relative, status, time.Since(start))
	}()

	dirPath, err := resolver.Resolve(relative)
	if err != nil {
		return nil, err
	}

	info, err := filesystem.StatWithRetry(dirPath, filesystem.DefaultRetryConfig())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", filesystem.ErrSourceNotFound, err)
	}
	if !info.IsDir() {
		return nil, ErrNotDirectory
	}

	dirEntries, err := os.ReadDir(dirPath)
	if err != nil {
		return nil, fmt.Errorf("read directory: %w", err)
	}

	tree = &DirectoryTree{
		Directories: []Entry{},
		VideoFiles:  []Entry{},
		ImageFiles:  []Entry{},
		OtherFiles:  []Entry{},
	}

	for _, de := range dirEntries {
		name := de.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}

		isDir, ok := entryIsDir(dirPath, de)
		if !ok {
			continue
		}

		rel, err := resolver.Rel(filepath.Join(dirPath, name))
		if err != nil {
			continue
		}

		entry := Entry{Name: name, Type: mediatypes.ClassifyEntry(name, isDir), Path: rel}

		switch entry.Type {
		case mediatypes.KindDirectory:
			tree.Directories = append(tree.Directories, entry)
		case mediatypes.KindVideo:
			tree.VideoFiles = append(tree.VideoFiles, entry)
		case mediatypes.KindImage:
			tree.ImageFiles = append(tree.ImageFiles, entry)
		}
	}

	sortEntries(tree.Directories)
	sortEntries(tree.VideoFiles)
	sortEntries(tree.ImageFiles)

	metrics.DirectoryListingEntries.Observe(float64(len(tree.Directories) + len(tree.VideoFiles) + len(tree.ImageFiles)))

	return tree, nil
}

// entryIsDir follows symlinks so that linked folders list as directories.
// Broken links are skipped.
func entryIsDir(dirPath string, de fs.DirEntry) (isDir, ok bool) {
	if de.Type()&fs.ModeSymlink == 0 {
		return de.IsDir(), true
	}
	info, err := os.Stat(filepath.Join(dirPath, de.Name()))
	if err != nil {
		logging.Debug("Skipping broken symlink %s: %v", de.Name(), err)
		return false, false
	}
	return info.IsDir(), true
}

// sortEntries orders by name case-insensitively, falling back to byte order
// so the result is deterministic.
func sortEntries(entries []Entry) {
	sort.Slice(entries, func(i, j int) bool {
		a, b := strings.ToLower(entries[i].Name), strings.ToLower(entries[j].Name)
		if a != b {
			return a < b
		}
		return entries[i].Name < entries[j].Name
	})
}
