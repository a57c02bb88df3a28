package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// namespaceProject roots every deterministic uuid5 derivation in this
// module so that ids are stable across runs and across machines, but never
// collide with uuids minted by an unrelated system.
var namespaceProject = uuid.MustParse("6f2f8f2e-6e2f-4a36-9b8b-8e5a6a9f7a11")

// FileUUID is a pure function of (projectID, relativePath) — invariant 6 of
// §3.3: "File uuid is a pure function of (projectId, relative path)".
func FileUUID(projectID, relativePath string) string {
	return uuid.NewSHA1(namespaceProject, []byte("file|"+projectID+"|"+relativePath)).String()
}

// ScopeUUID deliberately excludes line numbers so that moving a function
// within a file does not change its identity, preserving its embeddings,
// hashes, and inbound edges (§9 Design Notes, invariant 6).
func ScopeUUID(fileUUID, name, scopeType, signatureHash string) string {
	key := strings.Join([]string{"scope", fileUUID, name, scopeType, signatureHash}, "|")
	return uuid.NewSHA1(namespaceProject, []byte(key)).String()
}

// DocumentUUID derives a stable id for document-variant nodes (markdown
// sections, code blocks, stylesheets, ...) from their file and a
// business-identity key supplied by the parser (e.g. heading path, or
// block index when no better key is available).
func DocumentUUID(fileUUID, kind, businessKey string) string {
	key := strings.Join([]string{"doc", fileUUID, kind, businessKey}, "|")
	return uuid.NewSHA1(namespaceProject, []byte(key)).String()
}

// DirectoryUUID derives a stable id for a directory path within a project.
func DirectoryUUID(projectID, path string) string {
	return uuid.NewSHA1(namespaceProject, []byte("dir|"+projectID+"|"+path)).String()
}

// EntityUUID matches §3.1: `entity:<type>:<normalized-name>`.
func EntityUUID(entityType, normalizedName string) string {
	return fmt.Sprintf("entity:%s:%s", entityType, normalizedName)
}

// NormalizeEntityName lowercases and collapses whitespace so that "Apple
// Inc." and "apple  inc." resolve to the same Entity node; punctuation is
// kept, so "apple inc" is a different name.
func NormalizeEntityName(name string) string {
	fields := strings.Fields(strings.ToLower(strings.TrimSpace(name)))
	return strings.Join(fields, " ")
}

// ChunkUUID matches §3.1: `<parentUuid>_chunk_<index>`.
func ChunkUUID(parentUUID string, index int) string {
	return fmt.Sprintf("%s_chunk_%d", parentUUID, index)
}

// Hash16 returns the first 16 hex characters of SHA-256(content), the hash
// form used throughout for content-addressed incremental work (§4.1).
func Hash16(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])[:16]
}

// HashText is Hash16 for a string view extractor's output.
func HashText(text string) string {
	return Hash16([]byte(text))
}
