package binarydoc

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/corpusgraph/ingestor/internal/parser"
)

func TestCanParse(t *testing.T) {
	p := New()
	assert.True(t, p.CanParse("report.pdf", nil))
	assert.False(t, p.CanParse("report.docx", nil))
	assert.False(t, p.CanParse("readme.md", nil))
}

func TestParse_InvalidPDFErrors(t *testing.T) {
	p := New()
	_, err := p.Parse(context.Background(), []byte("not a pdf"), parser.Options{RelPath: "bad.pdf"})
	assert.Error(t, err)
}
