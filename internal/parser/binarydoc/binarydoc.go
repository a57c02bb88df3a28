// Package binarydoc converts binary document formats (currently PDF) into
// an intermediate markdown document with a per-page-boundary pageNum map,
// then hands that markdown off to the markdown parser — the "binary
// documents are first converted to markdown ... then parsed as markdown"
// promotion in §4.5.
package binarydoc

import (
	"bytes"
	"context"
	"fmt"

	"github.com/ledongthuc/pdf"

	"github.com/corpusgraph/ingestor/internal/parser"
	"github.com/corpusgraph/ingestor/internal/parser/markdown"
)

type Parser struct {
	markdown *markdown.Parser
}

func New() *Parser {
	return &Parser{markdown: markdown.New()}
}

func (p *Parser) CanParse(relPath string, content []byte) bool {
	return parser.ExtByPath(relPath) == ".pdf"
}

// Parse reads every page's plain text via ledongthuc/pdf, joins them with a
// "## Page N" heading per page so the markdown parser's section splitter
// naturally produces one MarkdownSection per page, and records the
// page-to-line mapping in the returned graph's Metadata under
// "pageNumByLine". The processor does not persist graph Metadata, so
// sections and chunks are written without a page number.
func (p *Parser) Parse(ctx context.Context, content []byte, opts parser.Options) (parser.ParsedGraph, error) {
	reader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return parser.ParsedGraph{}, fmt.Errorf("binarydoc: open pdf: %w", err)
	}

	var md bytes.Buffer
	pageNumByLine := map[int]int{}
	line := 1

	numPages := reader.NumPage()
	for pageIdx := 1; pageIdx <= numPages; pageIdx++ {
		page := reader.Page(pageIdx)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		heading := fmt.Sprintf("## Page %d\n\n", pageIdx)
		md.WriteString(heading)
		pageNumByLine[line] = pageIdx
		line++ // heading line
		line++ // blank line after heading

		md.WriteString(text)
		for _, b := range []byte(text) {
			if b == '\n' {
				line++
			}
		}
		md.WriteString("\n\n")
		line += 2
		pageNumByLine[line] = pageIdx
	}

	graph, err := p.markdown.Parse(ctx, md.Bytes(), opts)
	if err != nil {
		return parser.ParsedGraph{}, fmt.Errorf("binarydoc: convert pdf->markdown: %w", err)
	}
	if graph.Metadata == nil {
		graph.Metadata = map[string]any{}
	}
	graph.Metadata["pageNumByLine"] = pageNumByLine
	return graph, nil
}
