package generic

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corpusgraph/ingestor/internal/domain"
	"github.com/corpusgraph/ingestor/internal/parser"
)

func TestParser_CanParseAnything(t *testing.T) {
	p := New()
	assert.True(t, p.CanParse("anything.xyz", []byte("x")))
	assert.True(t, p.CanParse("", nil))
}

func TestParser_ParseProducesOneDocumentFile(t *testing.T) {
	p := New()
	graph, err := p.Parse(context.Background(), []byte("hello world"), parser.Options{
		ProjectID: "proj-1", FileUUID: "file-1", RelPath: "notes.xyz",
	})
	require.NoError(t, err)
	require.Len(t, graph.Nodes, 1)
	assert.Contains(t, graph.Nodes[0].Labels, "DocumentFile")
	assert.Equal(t, "hello world", graph.Nodes[0].Properties[domain.PropContent])

	require.Len(t, graph.Relationships, 1)
	assert.Equal(t, domain.EdgeDefinedIn, graph.Relationships[0].Type)
	assert.Equal(t, graph.Nodes[0].UUID, graph.Relationships[0].From)
	assert.Equal(t, "file-1", graph.Relationships[0].To)
}
