package embedding

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkText_ShortTextSingleChunk(t *testing.T) {
	chunks := ChunkText("one\ntwo\nthree", 1, ChunkOptions{MaxChars: 1500, MaxLines: 120, LineOverlap: 3})
	require.Len(t, chunks, 1)
	assert.Equal(t, 1, chunks[0].StartLine)
	assert.Equal(t, 3, chunks[0].EndLine)
}

func TestChunkText_SplitsAtCharBoundary(t *testing.T) {
	line := strings.Repeat("x", 100)
	lines := make([]string, 30)
	for i := range lines {
		lines[i] = line
	}
	text := strings.Join(lines, "\n")

	chunks := ChunkText(text, 1, ChunkOptions{MaxChars: 500, MaxLines: 120, LineOverlap: 2})
	require.Greater(t, len(chunks), 1)
	for _, c := range chunks {
		assert.LessOrEqual(t, len(c.Content), 600) // allows slight overshoot from the single-line-too-long guard
	}
}

func TestChunkText_OverlapCarriesLinesForward(t *testing.T) {
	lines := make([]string, 10)
	for i := range lines {
		lines[i] = "line"
	}
	text := strings.Join(lines, "\n")

	chunks := ChunkText(text, 1, ChunkOptions{MaxChars: 1000, MaxLines: 4, LineOverlap: 2})
	require.Greater(t, len(chunks), 1)
	assert.Less(t, chunks[1].StartLine, chunks[0].EndLine+1)
}

func TestShouldChunk(t *testing.T) {
	assert.False(t, ShouldChunk("short", ChunkOptions{MaxChars: 1500, MaxLines: 120}))
	assert.True(t, ShouldChunk(strings.Repeat("a", 2000), ChunkOptions{MaxChars: 1500, MaxLines: 120}))
}
