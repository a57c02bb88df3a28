// Package markup parses HTML-family markup (WebDocument, VueSFC,
// SvelteComponent) with goquery and CSS (Stylesheet, CSSVariable) with
// gorilla/css's scanner, per §4.5/§3.1.
package markup

import (
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	cssscanner "github.com/gorilla/css/scanner"

	"github.com/corpusgraph/ingestor/internal/domain"
	"github.com/corpusgraph/ingestor/internal/parser"
)

type Parser struct{}

func New() *Parser { return &Parser{} }

func (p *Parser) CanParse(relPath string, content []byte) bool {
	switch parser.ExtByPath(relPath) {
	case ".html", ".htm", ".vue", ".svelte", ".css":
		return true
	}
	return false
}

func (p *Parser) Parse(ctx context.Context, content []byte, opts parser.Options) (parser.ParsedGraph, error) {
	ext := parser.ExtByPath(opts.RelPath)
	switch ext {
	case ".css":
		return p.parseCSS(content, opts)
	case ".vue":
		return p.parseComponent(content, opts, "VueSFC")
	case ".svelte":
		return p.parseComponent(content, opts, "SvelteComponent")
	default:
		return p.parseHTML(content, opts)
	}
}

func (p *Parser) parseHTML(content []byte, opts parser.Options) (parser.ParsedGraph, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(content)))
	if err != nil {
		return parser.ParsedGraph{}, fmt.Errorf("markup: parse html: %w", err)
	}
	title := strings.TrimSpace(doc.Find("title").First().Text())
	spec := domain.DocumentSpec{
		ProjectID: opts.ProjectID, Label: "WebDocument", FileUUID: opts.FileUUID,
		BusinessKey: opts.RelPath, Name: title, Content: strings.TrimSpace(doc.Text()),
	}
	docNode := domain.NewDocument(spec)
	graph := parser.ParsedGraph{
		Nodes:         []parser.ParsedNode{toParsedNode(docNode)},
		Relationships: []parser.ParsedRelationship{{Type: domain.EdgeDefinedIn, From: docNode.UUID, To: opts.FileUUID}},
	}

	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		if href == "" || strings.HasPrefix(href, "#") {
			return
		}
		graph.Relationships = append(graph.Relationships, parser.ParsedRelationship{
			Type: domain.EdgeLinksTo, From: docNode.UUID, TargetLabel: "ExternalURL",
			TargetProps: map[string]any{domain.PropName: href},
		})
	})
	doc.Find("img[src]").Each(func(_ int, s *goquery.Selection) {
		src, _ := s.Attr("src")
		if src == "" {
			return
		}
		graph.Relationships = append(graph.Relationships, parser.ParsedRelationship{
			Type: domain.EdgeReferencesImage, From: docNode.UUID, TargetLabel: "ExternalURL",
			TargetProps: map[string]any{domain.PropName: src},
		})
	})
	return graph, nil
}

// parseComponent handles Vue/Svelte single-file components: they're HTML
// documents whose <style> blocks should also feed the CSS parser so
// component-scoped CSSVariables surface the same way as a standalone
// stylesheet's.
func (p *Parser) parseComponent(content []byte, opts parser.Options, label string) (parser.ParsedGraph, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(content)))
	if err != nil {
		return parser.ParsedGraph{}, fmt.Errorf("markup: parse %s: %w", label, err)
	}
	spec := domain.DocumentSpec{
		ProjectID: opts.ProjectID, Label: label, FileUUID: opts.FileUUID,
		BusinessKey: opts.RelPath, Name: opts.RelPath, Content: string(content),
	}
	compNode := domain.NewDocument(spec)
	graph := parser.ParsedGraph{
		Nodes:         []parser.ParsedNode{toParsedNode(compNode)},
		Relationships: []parser.ParsedRelationship{{Type: domain.EdgeDefinedIn, From: compNode.UUID, To: opts.FileUUID}},
	}

	doc.Find("style").Each(func(i int, s *goquery.Selection) {
		styleGraph, err := p.parseCSS([]byte(s.Text()), opts)
		if err != nil {
			return
		}
		for _, n := range styleGraph.Nodes {
			graph.Nodes = append(graph.Nodes, n)
			graph.Relationships = append(graph.Relationships, parser.ParsedRelationship{
				Type: domain.EdgeHasSection, From: compNode.UUID, To: n.UUID,
			})
		}
	})
	return graph, nil
}

func (p *Parser) parseCSS(content []byte, opts parser.Options) (parser.ParsedGraph, error) {
	spec := domain.DocumentSpec{
		ProjectID: opts.ProjectID, Label: "Stylesheet", FileUUID: opts.FileUUID,
		BusinessKey: opts.RelPath, Name: opts.RelPath, Content: string(content),
	}
	sheetNode := domain.NewDocument(spec)
	graph := parser.ParsedGraph{
		Nodes:         []parser.ParsedNode{toParsedNode(sheetNode)},
		Relationships: []parser.ParsedRelationship{{Type: domain.EdgeDefinedIn, From: sheetNode.UUID, To: opts.FileUUID}},
	}

	s := cssscanner.New(string(content))
	var pendingVar string
	for {
		tok := s.Next()
		if tok.Type == cssscanner.TokenEOF || tok.Type == cssscanner.TokenError {
			break
		}
		switch tok.Type {
		case cssscanner.TokenIdent:
			if strings.HasPrefix(tok.Value, "--") {
				pendingVar = tok.Value
			}
		case cssscanner.TokenChar:
			if pendingVar != "" && tok.Value == ":" {
				// value token(s) follow; collected on next ident/string/hash.
				continue
			}
			if tok.Value == ";" {
				pendingVar = ""
			}
		case cssscanner.TokenHash, cssscanner.TokenString, cssscanner.TokenNumber, cssscanner.TokenDimension:
			if pendingVar != "" {
				varSpec := domain.DocumentSpec{
					ProjectID: opts.ProjectID, Label: "CSSVariable", FileUUID: opts.FileUUID,
					BusinessKey: opts.RelPath + "#" + pendingVar, Name: pendingVar, Content: tok.Value,
				}
				varNode := domain.NewDocument(varSpec)
				graph.Nodes = append(graph.Nodes, toParsedNode(varNode))
				graph.Relationships = append(graph.Relationships, parser.ParsedRelationship{
					Type: domain.EdgeHasSection, From: sheetNode.UUID, To: varNode.UUID,
				})
				pendingVar = ""
			}
		}
	}
	return graph, nil
}

func toParsedNode(n *domain.Node) parser.ParsedNode {
	return parser.ParsedNode{Labels: n.Labels, UUID: n.UUID, Properties: n.Properties}
}
