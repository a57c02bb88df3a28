package markdown

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
	assert.True(t, p.CanParse("readme.md", nil))
	assert.True(t, p.CanParse("readme.mdx", nil))
	assert.False(t, p.CanParse("readme.txt", nil))
}

func TestParse_SectionsAndCodeBlocks(t *testing.T) {
	p := New()
	content := "# Title\n\nIntro text.\n\n## Usage\n\n```go\nfmt.Println(\"hi\")\n```\n"
	graph, err := p.Parse(context.Background(), []byte(content), parser.Options{
		ProjectID: "proj-1", FileUUID: "file-1", RelPath: "readme.md",
	})
	require.NoError(t, err)

	var docCount, sectionCount, codeBlockCount int
	for _, n := range graph.Nodes {
		switch {
		case contains(n.Labels, "MarkdownDocument"):
			docCount++
		case contains(n.Labels, "MarkdownSection"):
			sectionCount++
		case contains(n.Labels, "CodeBlock"):
			codeBlockCount++
			assert.Equal(t, "go", n.Properties[domain.PropName])
		}
	}
	assert.Equal(t, 1, docCount)
	assert.GreaterOrEqual(t, sectionCount, 2)
	assert.Equal(t, 1, codeBlockCount)
}

func TestParse_StableBusinessKeysAcrossReparse(t *testing.T) {
	p := New()
	content := "# Title\n\nUnder title.\n\n## Sub\n\nUnder sub.\n"
	opts := parser.Options{ProjectID: "proj-1", FileUUID: "file-1", RelPath: "readme.md"}

	first, err := p.Parse(context.Background(), []byte(content), opts)
	require.NoError(t, err)
	second, err := p.Parse(context.Background(), []byte(content), opts)
	require.NoError(t, err)

	require.Equal(t, len(first.Nodes), len(second.Nodes))
	for i := range first.Nodes {
		assert.Equal(t, first.Nodes[i].UUID, second.Nodes[i].UUID)
	}
}

func contains(ss []string, v string) bool {
	for _, s := range ss {
		if s == v {
			return true
		}
	}
	return false
}
