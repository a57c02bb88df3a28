package sourcecode

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corpusgraph/ingestor/internal/domain"
	"github.com/corpusgraph/ingestor/internal/parser"
)

func TestCanParse(t *testing.T) {
	p := New()
	assert.True(t, p.CanParse("main.go", nil))
	assert.True(t, p.CanParse("app.js", nil))
	assert.True(t, p.CanParse("app.jsx", nil))
	assert.False(t, p.CanParse("readme.md", nil))
}

func TestParseGo_FunctionsAndTypes(t *testing.T) {
	p := New()
	content := `package main

func Greet(name string) string {
	return "hi " + name
}

type Config struct {
	Name string
}
`
	graph, err := p.Parse(context.Background(), []byte(content), parser.Options{
		ProjectID: "proj-1", FileUUID: "file-1", RelPath: "main.go",
	})
	require.NoError(t, err)
	assert.Equal(t, "go", graph.Metadata["language"])

	var funcNode, typeNode *parser.ParsedNode
	for i, n := range graph.Nodes {
		switch n.Properties[domain.PropName] {
		case "Greet":
			funcNode = &graph.Nodes[i]
		case "Config":
			typeNode = &graph.Nodes[i]
		}
	}
	require.NotNil(t, funcNode)
	require.NotNil(t, typeNode)
	assert.Equal(t, "function", funcNode.Properties[domain.PropScopeType])
	assert.Equal(t, "type", typeNode.Properties[domain.PropScopeType])

	for _, n := range []*parser.ParsedNode{funcNode, typeNode} {
		var hasDefinedIn bool
		for _, r := range graph.Relationships {
			if r.Type == domain.EdgeDefinedIn && r.From == n.UUID && r.To == "file-1" {
				hasDefinedIn = true
			}
		}
		assert.True(t, hasDefinedIn)
	}
}

func TestParseJS_ClassWithHeritageEmitsInheritsFrom(t *testing.T) {
	p := New()
	content := `class Dog extends Animal {
	bark() {
		return "woof";
	}
}
`
	graph, err := p.Parse(context.Background(), []byte(content), parser.Options{
		ProjectID: "proj-1", FileUUID: "file-1", RelPath: "animals.js",
	})
	require.NoError(t, err)

	var classNode *parser.ParsedNode
	var methodCount int
	for i, n := range graph.Nodes {
		if n.Properties[domain.PropName] == "Dog" {
			classNode = &graph.Nodes[i]
		}
		if n.Properties[domain.PropScopeType] == "method" {
			methodCount++
		}
	}
	require.NotNil(t, classNode)
	assert.Equal(t, 1, methodCount)

	var hasInherits bool
	for _, r := range graph.Relationships {
		if r.Type == domain.EdgeInheritsFrom && r.From == classNode.UUID {
			hasInherits = true
			assert.Equal(t, "Animal", r.TargetProps[domain.PropName])
		}
	}
	assert.True(t, hasInherits)
}

func TestParse_UnsupportedExtensionReturnsEmptyGraph(t *testing.T) {
	p := New()
	graph, err := p.Parse(context.Background(), []byte("plain text"), parser.Options{RelPath: "notes.txt"})
	require.NoError(t, err)
	assert.Empty(t, graph.Nodes)
}
