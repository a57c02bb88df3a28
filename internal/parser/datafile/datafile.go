// Package datafile parses structured data formats (JSON, YAML, XLSX) into
// DataFile/DataSection nodes (§4.5, §3.1). package.json is special-cased
// into a PackageJson node plus USES_LIBRARY edges so the dependency graph
// is queryable without a separate parser.
package datafile

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
	"gopkg.in/yaml.v3"

	"github.com/corpusgraph/ingestor/internal/domain"
	"github.com/corpusgraph/ingestor/internal/parser"
)

type Parser struct{}

func New() *Parser { return &Parser{} }

func (p *Parser) CanParse(relPath string, content []byte) bool {
	ext := parser.ExtByPath(relPath)
	switch ext {
	case ".json", ".yaml", ".yml", ".xlsx":
		return true
	}
	return false
}

func (p *Parser) Parse(ctx context.Context, content []byte, opts parser.Options) (parser.ParsedGraph, error) {
	ext := parser.ExtByPath(opts.RelPath)
	base := filepath.Base(opts.RelPath)

	if base == "package.json" && ext == ".json" {
		return p.parsePackageJSON(content, opts)
	}

	switch ext {
	case ".json":
		return p.parseJSONOrYAML(content, opts, "json")
	case ".yaml", ".yml":
		return p.parseJSONOrYAML(content, opts, "yaml")
	case ".xlsx":
		return p.parseExcel(content, opts)
	}
	return parser.ParsedGraph{}, fmt.Errorf("datafile: unsupported extension %s", ext)
}

func (p *Parser) parsePackageJSON(content []byte, opts parser.Options) (parser.ParsedGraph, error) {
	var raw map[string]any
	if err := json.Unmarshal(content, &raw); err != nil {
		return parser.ParsedGraph{}, fmt.Errorf("datafile: parse package.json: %w", err)
	}
	name, _ := raw["name"].(string)
	spec := domain.DocumentSpec{
		ProjectID: opts.ProjectID, Label: "PackageJson", FileUUID: opts.FileUUID,
		BusinessKey: opts.RelPath, Name: name, Content: string(content),
	}
	pkgNode := domain.NewDocument(spec)
	graph := parser.ParsedGraph{
		Nodes:         []parser.ParsedNode{toParsedNode(pkgNode)},
		Relationships: []parser.ParsedRelationship{{Type: domain.EdgeDefinedIn, From: pkgNode.UUID, To: opts.FileUUID}},
	}

	for _, depField := range []string{"dependencies", "devDependencies", "peerDependencies"} {
		deps, ok := raw[depField].(map[string]any)
		if !ok {
			continue
		}
		for depName, depVersion := range deps {
			version, _ := depVersion.(string)
			libSpec := domain.DocumentSpec{
				ProjectID: opts.ProjectID, Label: "ExternalLibrary", FileUUID: opts.FileUUID,
				BusinessKey: depName, Name: depName, Content: version,
			}
			libNode := domain.NewDocument(libSpec)
			graph.Nodes = append(graph.Nodes, toParsedNode(libNode))
			graph.Relationships = append(graph.Relationships, parser.ParsedRelationship{
				Type: domain.EdgeUsesLibrary, From: pkgNode.UUID, To: libNode.UUID,
			})
		}
	}
	return graph, nil
}

func (p *Parser) parseJSONOrYAML(content []byte, opts parser.Options, kind string) (parser.ParsedGraph, error) {
	var normalized any
	var err error
	if kind == "json" {
		err = json.Unmarshal(content, &normalized)
	} else {
		err = yaml.Unmarshal(content, &normalized)
	}
	if err != nil {
		return parser.ParsedGraph{}, fmt.Errorf("datafile: parse %s: %w", kind, err)
	}

	spec := domain.DocumentSpec{
		ProjectID: opts.ProjectID, Label: "DataFile", FileUUID: opts.FileUUID,
		BusinessKey: opts.RelPath, Name: opts.RelPath, Content: string(content),
	}
	fileNode := domain.NewDocument(spec)
	graph := parser.ParsedGraph{
		Nodes:         []parser.ParsedNode{toParsedNode(fileNode)},
		Relationships: []parser.ParsedRelationship{{Type: domain.EdgeDefinedIn, From: fileNode.UUID, To: opts.FileUUID}},
	}

	if obj, ok := normalized.(map[string]any); ok {
		for key, val := range obj {
			text, ok := summarize(val)
			if !ok {
				continue
			}
			secSpec := domain.DocumentSpec{
				ProjectID: opts.ProjectID, Label: "DataSection", FileUUID: opts.FileUUID,
				BusinessKey: key, Name: key, Content: text,
			}
			secNode := domain.NewDocument(secSpec)
			graph.Nodes = append(graph.Nodes, toParsedNode(secNode))
			graph.Relationships = append(graph.Relationships, parser.ParsedRelationship{
				Type: domain.EdgeHasSection, From: fileNode.UUID, To: secNode.UUID,
			})
		}
	}
	return graph, nil
}

func (p *Parser) parseExcel(content []byte, opts parser.Options) (parser.ParsedGraph, error) {
	wb, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return parser.ParsedGraph{}, fmt.Errorf("datafile: open xlsx: %w", err)
	}
	defer wb.Close()

	spec := domain.DocumentSpec{
		ProjectID: opts.ProjectID, Label: "DataFile", FileUUID: opts.FileUUID,
		BusinessKey: opts.RelPath, Name: opts.RelPath, Content: "",
	}
	fileNode := domain.NewDocument(spec)
	graph := parser.ParsedGraph{
		Nodes:         []parser.ParsedNode{toParsedNode(fileNode)},
		Relationships: []parser.ParsedRelationship{{Type: domain.EdgeDefinedIn, From: fileNode.UUID, To: opts.FileUUID}},
	}

	for _, sheet := range wb.GetSheetList() {
		rows, err := wb.GetRows(sheet)
		if err != nil {
			continue
		}
		var sb strings.Builder
		for _, row := range rows {
			sb.WriteString(strings.Join(row, "\t"))
			sb.WriteByte('\n')
		}
		secSpec := domain.DocumentSpec{
			ProjectID: opts.ProjectID, Label: "DataSection", FileUUID: opts.FileUUID,
			BusinessKey: sheet, Name: sheet, Content: sb.String(),
		}
		secNode := domain.NewDocument(secSpec)
		graph.Nodes = append(graph.Nodes, toParsedNode(secNode))
		graph.Relationships = append(graph.Relationships, parser.ParsedRelationship{
			Type: domain.EdgeHasSection, From: fileNode.UUID, To: secNode.UUID,
		})
	}
	return graph, nil
}

func summarize(v any) (string, bool) {
	switch vv := v.(type) {
	case string:
		return vv, true
	case map[string]any, []any:
		b, err := json.Marshal(vv)
		if err != nil {
			return "", false
		}
		return string(b), true
	case nil:
		return "", false
	default:
		return fmt.Sprintf("%v", vv), true
	}
}

func toParsedNode(n *domain.Node) parser.ParsedNode {
	return parser.ParsedNode{Labels: n.Labels, UUID: n.UUID, Properties: n.Properties}
}
