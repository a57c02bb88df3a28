package markup

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
	for _, ext := range []string{"page.html", "page.htm", "App.vue", "App.svelte", "styles.css"} {
		assert.True(t, p.CanParse(ext, nil), ext)
	}
	assert.False(t, p.CanParse("main.go", nil))
}

func TestParseHTML_ExtractsLinksAndImages(t *testing.T) {
	p := New()
	content := `<html><head><title>Home</title></head><body><a href="https://example.com">ex</a><img src="logo.png"></body></html>`
	graph, err := p.Parse(context.Background(), []byte(content), parser.Options{
		ProjectID: "proj-1", FileUUID: "file-1", RelPath: "index.html",
	})
	require.NoError(t, err)
	require.Len(t, graph.Nodes, 1)
	assert.Equal(t, "Home", graph.Nodes[0].Properties[domain.PropName])

	var hasLink, hasImage bool
	for _, r := range graph.Relationships {
		if r.Type == domain.EdgeLinksTo {
			hasLink = true
		}
		if r.Type == domain.EdgeReferencesImage {
			hasImage = true
		}
	}
	assert.True(t, hasLink)
	assert.True(t, hasImage)
}

func TestParseCSS_ExtractsVariables(t *testing.T) {
	p := New()
	content := `:root { --primary-color: #336699; }`
	graph, err := p.Parse(context.Background(), []byte(content), parser.Options{
		ProjectID: "proj-1", FileUUID: "file-1", RelPath: "theme.css",
	})
	require.NoError(t, err)

	var found bool
	for _, n := range graph.Nodes {
		if contains(n.Labels, "CSSVariable") {
			found = true
			assert.Equal(t, "--primary-color", n.Properties[domain.PropName])
		}
	}
	assert.True(t, found)
}

func TestParseComponent_CapturesStyleBlock(t *testing.T) {
	p := New()
	content := `<template><div/></template><style>:root { --x: 1px; }</style>`
	graph, err := p.Parse(context.Background(), []byte(content), parser.Options{
		ProjectID: "proj-1", FileUUID: "file-1", RelPath: "App.vue",
	})
	require.NoError(t, err)

	var hasVue, hasCSSVar bool
	for _, n := range graph.Nodes {
		if contains(n.Labels, "VueSFC") {
			hasVue = true
		}
		if contains(n.Labels, "CSSVariable") {
			hasCSSVar = true
		}
	}
	assert.True(t, hasVue)
	assert.True(t, hasCSSVar)
}

func contains(ss []string, v string) bool {
	for _, s := range ss {
		if s == v {
			return true
		}
	}
	return false
}
