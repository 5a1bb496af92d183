// Package walker enumerates a scan's input directory (spec §4.6): depth-1,
// regular files only, sorted by basename.
package walker

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/silvanforge/keyhunter/internal/scanerr"
)

// Entry is one file selected for scanning.
type Entry struct {
	Path string // full path, for opening
	Name string // basename, used as file_hash
	Size int64
}

// List enumerates dir at depth exactly 1, keeping only regular files,
// sorted by basename byte-wise ascending. maxSize <= 0 means no size gate;
// otherwise any file whose size exceeds maxSize is skipped entirely.
// Entries whose metadata can't be read are skipped silently, per spec.
func List(dir string, maxSize int64) ([]Entry, error) {
	dirEntries, err := os.ReadDir(dir)
	if err != nil {
		return nil, &scanerr.IoError{Path: dir, Err: err}
	}

	entries := make([]Entry, 0, len(dirEntries))
	for _, de := range dirEntries {
		info, err := de.Info()
		if err != nil {
			continue
		}
		if !info.Mode().IsRegular() {
			continue
		}
		if maxSize > 0 && info.Size() > maxSize {
			continue
		}
		entries = append(entries, Entry{
			Path: filepath.Join(dir, de.Name()),
			Name: de.Name(),
			Size: info.Size(),
		})
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}
