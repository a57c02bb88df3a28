package datafile

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
	assert.True(t, p.CanParse("config.json", nil))
	assert.True(t, p.CanParse("config.yaml", nil))
	assert.True(t, p.CanParse("config.yml", nil))
	assert.True(t, p.CanParse("report.xlsx", nil))
	assert.False(t, p.CanParse("main.go", nil))
}

func TestParse_PackageJSON_ExtractsLibraries(t *testing.T) {
	p := New()
	content := `{"name":"myapp","dependencies":{"react":"18.0.0"},"devDependencies":{"vitest":"1.0.0"}}`
	graph, err := p.Parse(context.Background(), []byte(content), parser.Options{
		ProjectID: "proj-1", FileUUID: "file-1", RelPath: "package.json",
	})
	require.NoError(t, err)

	var pkgNode *parser.ParsedNode
	libCount := 0
	for i, n := range graph.Nodes {
		if contains(n.Labels, "PackageJson") {
			pkgNode = &graph.Nodes[i]
		}
		if contains(n.Labels, "ExternalLibrary") {
			libCount++
		}
	}
	require.NotNil(t, pkgNode)
	assert.Equal(t, "myapp", pkgNode.Properties[domain.PropName])
	assert.Equal(t, 2, libCount)

	usesLibraryCount := 0
	for _, r := range graph.Relationships {
		if r.Type == domain.EdgeUsesLibrary {
			usesLibraryCount++
			assert.Equal(t, pkgNode.UUID, r.From)
		}
	}
	assert.Equal(t, 2, usesLibraryCount)
}

func TestParse_JSON_CreatesSectionsPerTopLevelKey(t *testing.T) {
	p := New()
	content := `{"feature_a": {"enabled": true}, "feature_b": "on"}`
	graph, err := p.Parse(context.Background(), []byte(content), parser.Options{
		ProjectID: "proj-1", FileUUID: "file-1", RelPath: "config.json",
	})
	require.NoError(t, err)

	sectionCount := 0
	for _, n := range graph.Nodes {
		if contains(n.Labels, "DataSection") {
			sectionCount++
		}
	}
	assert.Equal(t, 2, sectionCount)
}

func TestParse_InvalidJSONErrors(t *testing.T) {
	p := New()
	_, err := p.Parse(context.Background(), []byte("{not json"), parser.Options{RelPath: "bad.json"})
	assert.Error(t, err)
}

func contains(ss []string, v string) bool {
	for _, s := range ss {
		if s == v {
			return true
		}
	}
	return false
}
