// Package content is the uniform read-by-identity collaborator (§4.1):
// every other component reads file bytes through a Provider rather than
// touching the filesystem or the graph directly, so disk-backed and
// graph-resident ("virtual") files are interchangeable above this layer.
package content

import (
	"context"

	"github.com/corpusgraph/ingestor/internal/domain"
)

// FileRef is the minimal identity a Provider needs to resolve bytes: the
// File node's own uuid, its absolute path (empty for virtual files), and
// whether it's explicitly flagged virtual. Disk callers populate AbsPath;
// virtual callers populate UUID and leave AbsPath empty.
type FileRef struct {
	UUID      string
	AbsPath   string
	IsVirtual bool
}

// Provider reads file bytes by identity and hashes them with the same
// Hash16 scheme domain.Hash16 uses everywhere else in this codebase, so a
// hash computed here is directly comparable to a stored _rawContentHash.
type Provider interface {
	Read(ctx context.Context, ref FileRef) ([]byte, error)
	ReadWithHash(ctx context.Context, ref FileRef) ([]byte, string, error)
	Exists(ctx context.Context, ref FileRef) (bool, error)

	// ReadBatch reads many files at once. The disk variant parallelizes
	// reads; the virtual variant issues one graph query keyed by the uuid
	// set; the hybrid variant partitions by IsVirtual and merges results.
	ReadBatch(ctx context.Context, refs []FileRef) (content map[string][]byte, hashes map[string]string, errs map[string]error)
}

// IsVirtual decides file virtuality per §4.1: "a file is virtual iff any
// of: its isVirtual flag is set, it has no absolute path, or its path
// lives under a reserved virtual prefix."
func IsVirtual(isVirtualFlag bool, absPath string, virtualPrefix string) bool {
	if isVirtualFlag {
		return true
	}
	if absPath == "" {
		return true
	}
	if virtualPrefix != "" && hasPrefix(absPath, virtualPrefix) {
		return true
	}
	return false
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}

// HashBytes is a thin re-export so call sites in this package read
// naturally without importing domain directly for one function.
func HashBytes(b []byte) string { return domain.Hash16(b) }
