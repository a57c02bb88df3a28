// Package markdown parses Markdown (and the markdown intermediate form
// produced by the binarydoc parser for PDFs) into MarkdownDocument,
// MarkdownSection, and CodeBlock nodes (§4.5, §3.1), grounded on goldmark's
// AST walk idiom.
package markdown

import (
	"bytes"
	"context"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/corpusgraph/ingestor/internal/domain"
	"github.com/corpusgraph/ingestor/internal/parser"
)

// PageMap optionally supplies an absolute-line -> page-number mapping, set
// when the content originated from a PDF conversion (§4.5: "binary
// documents are first converted to markdown with a per-section pageNum map
// preserved for later chunking").
type PageMap map[int]int

type Parser struct {
	// md is the goldmark instance whose parser produces the AST that Parse
	// walks.
	md goldmark.Markdown
}

func New() *Parser {
	return &Parser{md: goldmark.New()}
}

func (p *Parser) CanParse(relPath string, content []byte) bool {
	ext := parser.ExtByPath(relPath)
	return ext == ".md" || ext == ".markdown" || ext == ".mdx"
}

type section struct {
	heading   string
	level     int
	startLine int
	endLine   int
	content   strings.Builder
	codeBlocks []codeBlock
	path       []string
}

type codeBlock struct {
	language  string
	content   string
	startLine int
	endLine   int
}

// Parse walks the goldmark AST, grouping content into sections by heading
// boundary. Section business keys are the heading path (joined by "/") so
// DocumentUUID stays stable across reparses that don't touch that heading.
func (p *Parser) Parse(ctx context.Context, content []byte, opts parser.Options) (parser.ParsedGraph, error) {
	reader := text.NewReader(content)
	doc := p.md.Parser().Parse(reader)

	lineOffsets := computeLineOffsets(content)

	var sections []*section
	var headingStack []string
	current := &section{heading: "", level: 0, path: append([]string(nil), headingStack...)}
	sections = append(sections, current)

	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.Heading:
			text := string(headingText(node, content))
			lvl := node.Level
			for len(headingStack) >= lvl {
				headingStack = headingStack[:len(headingStack)-1]
			}
			headingStack = append(headingStack, text)
			startLine := lineFromOffset(lineOffsets, segmentStart(node))
			current = &section{heading: text, level: lvl, startLine: startLine, path: append([]string(nil), headingStack...)}
			sections = append(sections, current)
		case *ast.FencedCodeBlock:
			lang := string(node.Language(content))
			var buf bytes.Buffer
			for i := 0; i < node.Lines().Len(); i++ {
				line := node.Lines().At(i)
				buf.Write(line.Value(content))
			}
			start := lineFromOffset(lineOffsets, segmentStart(node))
			end := lineFromOffset(lineOffsets, segmentEnd(node))
			current.codeBlocks = append(current.codeBlocks, codeBlock{language: lang, content: buf.String(), startLine: start, endLine: end})
			current.content.Write(buf.Bytes())
		case *ast.Paragraph:
			var buf bytes.Buffer
			for i := 0; i < node.Lines().Len(); i++ {
				line := node.Lines().At(i)
				buf.Write(line.Value(content))
			}
			current.content.Write(buf.Bytes())
			current.content.WriteByte('\n')
		}
		return ast.WalkContinue, nil
	})

	totalLines := len(lineOffsets)
	for i, s := range sections {
		if i+1 < len(sections) {
			s.endLine = sections[i+1].startLine - 1
		} else {
			s.endLine = totalLines
		}
	}

	graph := parser.ParsedGraph{Metadata: map[string]any{}}

	docSpec := domain.DocumentSpec{
		ProjectID: opts.ProjectID, Label: "MarkdownDocument", FileUUID: opts.FileUUID,
		BusinessKey: opts.RelPath, Name: opts.RelPath, Content: string(content),
		StartLine: 1, EndLine: totalLines,
	}
	docNode := domain.NewDocument(docSpec)
	graph.Nodes = append(graph.Nodes, toParsedNode(docNode))
	graph.Relationships = append(graph.Relationships, parser.ParsedRelationship{
		Type: domain.EdgeDefinedIn, From: docNode.UUID, To: opts.FileUUID,
	})

	for _, s := range sections {
		if strings.TrimSpace(s.content.String()) == "" && len(s.codeBlocks) == 0 && s.heading == "" {
			continue
		}
		businessKey := strings.Join(s.path, "/")
		if businessKey == "" {
			businessKey = "root"
		}
		secSpec := domain.DocumentSpec{
			ProjectID: opts.ProjectID, Label: "MarkdownSection", FileUUID: opts.FileUUID,
			BusinessKey: businessKey, Name: s.heading, Content: s.content.String(),
			StartLine: s.startLine, EndLine: s.endLine,
		}
		secNode := domain.NewDocument(secSpec)
		graph.Nodes = append(graph.Nodes, toParsedNode(secNode))
		graph.Relationships = append(graph.Relationships, parser.ParsedRelationship{
			Type: domain.EdgeHasSection, From: docNode.UUID, To: secNode.UUID,
		})

		for idx, cb := range s.codeBlocks {
			cbSpec := domain.DocumentSpec{
				ProjectID: opts.ProjectID, Label: "CodeBlock", FileUUID: opts.FileUUID,
				BusinessKey: businessKey + "#code" + itoa(idx), Name: cb.language, Content: cb.content,
				StartLine: cb.startLine, EndLine: cb.endLine,
			}
			cbNode := domain.NewDocument(cbSpec)
			cbNode.Set(domain.PropLanguage, cb.language)
			graph.Nodes = append(graph.Nodes, toParsedNode(cbNode))
			graph.Relationships = append(graph.Relationships, parser.ParsedRelationship{
				Type: domain.EdgeContainsCode, From: secNode.UUID, To: cbNode.UUID,
			})
		}
	}

	return graph, nil
}

func toParsedNode(n *domain.Node) parser.ParsedNode {
	return parser.ParsedNode{Labels: n.Labels, UUID: n.UUID, Properties: n.Properties}
}

func headingText(h *ast.Heading, source []byte) []byte {
	var buf bytes.Buffer
	for c := h.FirstChild(); c != nil; c = c.NextSibling() {
		if t, ok := c.(*ast.Text); ok {
			buf.Write(t.Segment.Value(source))
		}
	}
	return buf.Bytes()
}

func segmentStart(n ast.Node) int {
	if l, ok := n.(interface{ Lines() *text.Segments }); ok && l.Lines().Len() > 0 {
		return l.Lines().At(0).Start
	}
	return 0
}

func segmentEnd(n ast.Node) int {
	if l, ok := n.(interface{ Lines() *text.Segments }); ok && l.Lines().Len() > 0 {
		return l.Lines().At(l.Lines().Len() - 1).Stop
	}
	return 0
}

func computeLineOffsets(content []byte) []int {
	offsets := []int{0}
	for i, b := range content {
		if b == '\n' {
			offsets = append(offsets, i+1)
		}
	}
	return offsets
}

func lineFromOffset(offsets []int, pos int) int {
	lo, hi := 0, len(offsets)-1
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if offsets[mid] <= pos {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return lo + 1
}

func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	neg := i < 0
	if neg {
		i = -i
	}
	var buf [20]byte
	pos := len(buf)
	for i > 0 {
		pos--
		buf[pos] = byte('0' + i%10)
		i /= 10
	}
	if neg {
		pos--
		buf[pos] = '-'
	}
	return string(buf[pos:])
}
