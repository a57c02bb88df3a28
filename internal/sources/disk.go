package sources

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Disk walks a root directory and returns every regular file whose
// relative path matches Include (when non-empty) and none of Exclude
// (§6.4 "disk: root path + include/exclude glob patterns").
type Disk struct {
	Root    string
	Include []string
	Exclude []string
}

func NewDisk(root string, include, exclude []string) *Disk {
	return &Disk{Root: root, Include: include, Exclude: exclude}
}

func (d *Disk) List() ([]Entry, error) {
	root, err := filepath.Abs(d.Root)
	if err != nil {
		return nil, fmt.Errorf("sources: resolve root %q: %w", d.Root, err)
	}

	var out []Entry
	err = filepath.WalkDir(root, func(path string, entry os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		if len(d.Include) > 0 && !matchesAny(d.Include, rel) {
			return nil
		}
		if matchesAny(d.Exclude, rel) {
			return nil
		}

		out = append(out, Entry{
			RelPath:   rel,
			AbsPath:   path,
			Name:      entry.Name(),
			Extension: filepath.Ext(entry.Name()),
			Directory: filepath.ToSlash(filepath.Dir(rel)),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("sources: walk %q: %w", root, err)
	}
	return out, nil
}

func matchesAny(patterns []string, rel string) bool {
	for _, p := range patterns {
		p = strings.TrimPrefix(p, "./")
		if ok, _ := doublestar.Match(p, rel); ok {
			return true
		}
	}
	return false
}
