// Package sourcecode parses source files into Scope nodes (§3.1, §4.5)
// using go-tree-sitter grammars. Each supported language maps its own
// concrete-syntax-tree node types onto the Scope vocabulary (function,
// method, class, variable, ...); adding a language means adding an entry
// to languageByExt and a walker, not touching the dispatcher.
package sourcecode

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/javascript"

	"github.com/corpusgraph/ingestor/internal/domain"
	"github.com/corpusgraph/ingestor/internal/parser"
)

type language struct {
	grammar  *sitter.Language
	walker   func(root *sitter.Node, source []byte, emit func(scope))
	langName string
}

type scope struct {
	name       string
	scopeType  string
	startLine  int
	endLine    int
	content    string
	parameters []string
	returnType string
	heritage   []string
}

var languageByExt = map[string]language{
	".go": {grammar: golang.GetLanguage(), walker: walkGo, langName: "go"},
	".js": {grammar: javascript.GetLanguage(), walker: walkJS, langName: "javascript"},
	".jsx": {grammar: javascript.GetLanguage(), walker: walkJS, langName: "javascript"},
	".mjs": {grammar: javascript.GetLanguage(), walker: walkJS, langName: "javascript"},
}

type Parser struct{}

func New() *Parser { return &Parser{} }

func (p *Parser) CanParse(relPath string, content []byte) bool {
	_, ok := languageByExt[parser.ExtByPath(relPath)]
	return ok
}

func (p *Parser) Parse(ctx context.Context, content []byte, opts parser.Options) (parser.ParsedGraph, error) {
	lang, ok := languageByExt[parser.ExtByPath(opts.RelPath)]
	if !ok {
		return parser.ParsedGraph{}, nil
	}

	sp := sitter.NewParser()
	sp.SetLanguage(lang.grammar)
	tree, err := sp.ParseCtx(ctx, nil, content)
	if err != nil {
		return parser.ParsedGraph{}, err
	}
	root := tree.RootNode()

	graph := parser.ParsedGraph{Metadata: map[string]any{"language": lang.langName}}
	lang.walker(root, content, func(s scope) {
		sigHash := signatureHash(s.name, s.scopeType, s.parameters, s.returnType)
		spec := domain.ScopeSpec{
			ProjectID: opts.ProjectID, FileUUID: opts.FileUUID, Name: s.name, Content: s.content,
			StartLine: s.startLine, EndLine: s.endLine, Type: s.scopeType, Language: lang.langName,
			SignatureHash: sigHash, Parameters: s.parameters, ReturnType: s.returnType, Heritage: s.heritage,
		}
		n := domain.NewScope(spec)
		graph.Nodes = append(graph.Nodes, parser.ParsedNode{Labels: n.Labels, UUID: n.UUID, Properties: n.Properties})
		graph.Relationships = append(graph.Relationships, parser.ParsedRelationship{
			Type: domain.EdgeDefinedIn, From: n.UUID, To: opts.FileUUID,
		})
		for _, base := range s.heritage {
			graph.Relationships = append(graph.Relationships, parser.ParsedRelationship{
				Type: domain.EdgeInheritsFrom, From: n.UUID, TargetLabel: "Scope",
				TargetProps: map[string]any{domain.PropName: base},
			})
		}
	})
	return graph, nil
}

func signatureHash(name, scopeType string, params []string, returnType string) string {
	key := strings.Join(append([]string{name, scopeType, returnType}, params...), "|")
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])[:16]
}

func walkGo(root *sitter.Node, source []byte, emit func(scope)) {
	var visit func(n *sitter.Node)
	visit = func(n *sitter.Node) {
		switch n.Type() {
		case "function_declaration", "method_declaration":
			name := childByFieldText(n, "name", source)
			var params []string
			if paramsNode := n.ChildByFieldName("parameters"); paramsNode != nil {
				params = splitParamList(paramsNode.Content(source))
			}
			var returnType string
			if resultNode := n.ChildByFieldName("result"); resultNode != nil {
				returnType = strings.TrimSpace(resultNode.Content(source))
			}
			emit(scope{
				name: name, scopeType: "function",
				startLine: int(n.StartPoint().Row) + 1, endLine: int(n.EndPoint().Row) + 1,
				content: n.Content(source), parameters: params, returnType: returnType,
			})
		case "type_declaration":
			for i := 0; i < int(n.NamedChildCount()); i++ {
				spec := n.NamedChild(i)
				if spec.Type() != "type_spec" {
					continue
				}
				name := childByFieldText(spec, "name", source)
				emit(scope{
					name: name, scopeType: "type",
					startLine: int(n.StartPoint().Row) + 1, endLine: int(n.EndPoint().Row) + 1,
					content: n.Content(source),
				})
			}
		}
		for i := 0; i < int(n.NamedChildCount()); i++ {
			visit(n.NamedChild(i))
		}
	}
	visit(root)
}

func walkJS(root *sitter.Node, source []byte, emit func(scope)) {
	var visit func(n *sitter.Node)
	visit = func(n *sitter.Node) {
		switch n.Type() {
		case "function_declaration":
			name := childByFieldText(n, "name", source)
			var params []string
			if paramsNode := n.ChildByFieldName("parameters"); paramsNode != nil {
				params = splitParamList(paramsNode.Content(source))
			}
			emit(scope{
				name: name, scopeType: "function",
				startLine: int(n.StartPoint().Row) + 1, endLine: int(n.EndPoint().Row) + 1,
				content: n.Content(source), parameters: params,
			})
		case "class_declaration":
			name := childByFieldText(n, "name", source)
			var heritage []string
			if heritageNode := n.ChildByFieldName("superclass"); heritageNode != nil {
				heritage = []string{strings.TrimSpace(heritageNode.Content(source))}
			}
			emit(scope{
				name: name, scopeType: "class",
				startLine: int(n.StartPoint().Row) + 1, endLine: int(n.EndPoint().Row) + 1,
				content: n.Content(source), heritage: heritage,
			})
		case "method_definition":
			name := childByFieldText(n, "name", source)
			emit(scope{
				name: name, scopeType: "method",
				startLine: int(n.StartPoint().Row) + 1, endLine: int(n.EndPoint().Row) + 1,
				content: n.Content(source),
			})
		}
		for i := 0; i < int(n.NamedChildCount()); i++ {
			visit(n.NamedChild(i))
		}
	}
	visit(root)
}

func childByFieldText(n *sitter.Node, field string, source []byte) string {
	c := n.ChildByFieldName(field)
	if c == nil {
		return ""
	}
	return c.Content(source)
}

func splitParamList(raw string) []string {
	raw = strings.Trim(strings.TrimSpace(raw), "()")
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
