package sources

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"path"
)

// Archive unpacks a ZIP buffer into virtual-file entries, skipping
// directories and anything matching Exclude (defaulting to
// DefaultExcludes). Grounded on §6.4: "archive: ZIP buffer →
// [{path, content, metadata}] with default exclude list for build
// artifacts." There's no third-party zip reader anywhere in this
// codebase's dependency surface, so this is the one place that reaches for
// the standard library's archive/zip.
type Archive struct {
	Exclude []string
}

func NewArchive(exclude []string) *Archive {
	if exclude == nil {
		exclude = DefaultExcludes
	}
	return &Archive{Exclude: exclude}
}

func (a *Archive) Extract(buf []byte) ([]Entry, error) {
	r, err := zip.NewReader(bytes.NewReader(buf), int64(len(buf)))
	if err != nil {
		return nil, fmt.Errorf("sources: open archive: %w", err)
	}

	var out []Entry
	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			continue
		}
		rel := path.Clean(f.Name)
		if matchesAny(a.Exclude, rel) {
			continue
		}

		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("sources: read %q from archive: %w", f.Name, err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("sources: read %q from archive: %w", f.Name, err)
		}

		out = append(out, Entry{
			RelPath:   rel,
			Name:      path.Base(rel),
			Extension: path.Ext(rel),
			Directory: path.Dir(rel),
			Content:   string(data),
			IsVirtual: true,
		})
	}
	return out, nil
}
