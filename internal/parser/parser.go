// Package parser is the dispatcher collaborator of §4.5: each concrete
// parser accepts raw bytes for one file and returns a normalized
// ParsedGraph; Dispatch picks the right one by content-type detection and
// applies the binary-document-to-markdown promotion.
package parser

import (
	"context"
	"path/filepath"
	"strings"
)

// ParsedNode mirrors §4.5's node shape: labels, a uuid, and a property
// bag. Concrete parsers build these with the domain package's typed
// constructors and unwrap them here only to cross the parser/resolver
// boundary uniformly.
type ParsedNode struct {
	Labels     []string
	UUID       string
	Properties map[string]any
}

// ParsedRelationship mirrors §4.5: an edge that may already be resolved
// (To non-empty) or symbolic (TargetLabel/TargetProps describe what the
// Relationship Resolver should look for).
type ParsedRelationship struct {
	Type        string
	From        string
	To          string
	Properties  map[string]any
	TargetLabel string
	TargetProps map[string]any
}

// ParsedGraph is one file's normalized output (§4.5).
type ParsedGraph struct {
	Nodes         []ParsedNode
	Relationships []ParsedRelationship
	Metadata      map[string]any
}

// Options carries parser inputs that vary per file but aren't part of the
// byte content itself.
type Options struct {
	ProjectID string
	FileUUID  string
	RelPath   string
	AbsPath   string
}

// Parser is the contract every concrete format handler satisfies.
type Parser interface {
	// CanParse reports whether this parser claims the given file by
	// extension/content sniffing.
	CanParse(relPath string, content []byte) bool
	Parse(ctx context.Context, content []byte, opts Options) (ParsedGraph, error)
}

// Kind buckets registered parsers into the dispatch order §4.5 specifies:
// binary documents are promoted to markdown before the markdown parser
// ever sees them, so they're tried first.
type Kind int

const (
	KindBinaryDoc Kind = iota
	KindStructuredText
	KindSourceCode
	KindGeneric
)

type registration struct {
	kind   Kind
	parser Parser
}

// Dispatcher holds the registry and applies it in priority order.
type Dispatcher struct {
	registrations []registration
	generic       Parser
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{}
}

// Register adds a parser at the given priority kind. Within a kind,
// registration order is preserved; kinds are tried in the fixed order
// KindBinaryDoc, KindSourceCode, KindStructuredText, then KindGeneric last.
func (d *Dispatcher) Register(kind Kind, p Parser) {
	if kind == KindGeneric {
		d.generic = p
		return
	}
	d.registrations = append(d.registrations, registration{kind: kind, parser: p})
}

var kindOrder = []Kind{KindBinaryDoc, KindSourceCode, KindStructuredText}

func (d *Dispatcher) Dispatch(ctx context.Context, relPath string, content []byte, opts Options) (ParsedGraph, error) {
	for _, k := range kindOrder {
		for _, reg := range d.registrations {
			if reg.kind != k {
				continue
			}
			if reg.parser.CanParse(relPath, content) {
				return reg.parser.Parse(ctx, content, opts)
			}
		}
	}
	if d.generic != nil {
		return d.generic.Parse(ctx, content, opts)
	}
	return ParsedGraph{}, nil
}

// ExtByPath is a small shared helper: lowercase extension including the dot.
func ExtByPath(relPath string) string {
	return strings.ToLower(filepath.Ext(relPath))
}
