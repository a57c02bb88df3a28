// Package generic is the fallback parser of §4.5's dispatch order: any file
// no other parser claims becomes a single DocumentFile node holding the
// whole content, so every file in a corpus ends up represented in the
// graph even without format-specific structure.
package generic

import (
	"context"

	"github.com/corpusgraph/ingestor/internal/domain"
	"github.com/corpusgraph/ingestor/internal/parser"
)

type Parser struct{}

func New() *Parser { return &Parser{} }

func (p *Parser) CanParse(relPath string, content []byte) bool { return true }

func (p *Parser) Parse(ctx context.Context, content []byte, opts parser.Options) (parser.ParsedGraph, error) {
	spec := domain.DocumentSpec{
		ProjectID: opts.ProjectID, Label: "DocumentFile", FileUUID: opts.FileUUID,
		BusinessKey: opts.RelPath, Name: opts.RelPath, Content: string(content),
	}
	n := domain.NewDocument(spec)
	return parser.ParsedGraph{
		Nodes: []parser.ParsedNode{{Labels: n.Labels, UUID: n.UUID, Properties: n.Properties}},
		Relationships: []parser.ParsedRelationship{
			{Type: domain.EdgeDefinedIn, From: n.UUID, To: opts.FileUUID},
		},
	}, nil
}
