// Package embedding implements the Embedding Service (C7, §4.7): a
// per-label view table, a line-based chunker, and the collect/chunk-
// cleanup/batch-embed/persist phase pipeline that keeps every applicable
// embedding view on every `linked` node current.
package embedding

import (
	"strings"

	"github.com/corpusgraph/ingestor/internal/domain"
)

// View is one of the three semantic projections named in the glossary:
// name, content, description.
type View string

const (
	ViewName        View = "name"
	ViewContent     View = "content"
	ViewDescription View = "description"
)

// Extractor is a pure text extractor over a node's business fields for one
// view.
type Extractor func(n *domain.Node) string

// ViewSpec names the vector/hash properties a view writes plus its
// extractor. "The set of labels and which views apply is data, not code"
// (§4.7) — LabelViews below is that data.
type ViewSpec struct {
	View      View
	VectorKey string
	HashKey   string
	Extract   Extractor
}

func specFor(view View) ViewSpec {
	return ViewSpec{
		View:      view,
		VectorKey: domain.EmbeddingVectorProp(string(view)),
		HashKey:   domain.EmbeddingHashProp(string(view)),
		Extract:   extractorFor(view),
	}
}

func extractorFor(view View) Extractor {
	switch view {
	case ViewName:
		return func(n *domain.Node) string { return strings.TrimSpace(n.GetString(domain.PropName)) }
	case ViewContent:
		return func(n *domain.Node) string { return n.GetString(domain.PropContent) }
	case ViewDescription:
		return func(n *domain.Node) string { return strings.TrimSpace(n.GetString(domain.PropDescription)) }
	default:
		return func(n *domain.Node) string { return "" }
	}
}

// LabelViews is the configurable table of §4.7: which views apply to each
// label. Scope gets all three; CodeBlock and EmbeddingChunk (it IS a
// content fragment) only ever have a content view; ExternalLibrary only a
// name view; every other label gets name and content.
var LabelViews = map[string][]View{
	"Scope":            {ViewName, ViewContent, ViewDescription},
	"MarkdownDocument": {ViewName, ViewContent},
	"MarkdownSection":  {ViewName, ViewContent},
	"CodeBlock":        {ViewContent},
	"WebDocument":      {ViewName, ViewContent},
	"VueSFC":           {ViewName, ViewContent},
	"SvelteComponent":  {ViewName, ViewContent},
	"Stylesheet":       {ViewName, ViewContent},
	"CSSVariable":      {ViewName, ViewContent},
	"DataFile":         {ViewName, ViewContent},
	"DataSection":      {ViewName, ViewContent},
	"DocumentFile":     {ViewName, ViewContent},
	"PackageJson":      {ViewName, ViewContent},
	"ExternalLibrary":  {ViewName},
	"Entity":           {ViewName, ViewContent},
	"EmbeddingChunk":   {ViewContent},
}

// ViewSpecsForLabel returns the configured ViewSpecs for a label, or nil if
// the label has no applicable embedding views at all.
func ViewSpecsForLabel(label string) []ViewSpec {
	views, ok := LabelViews[label]
	if !ok {
		return nil
	}
	out := make([]ViewSpec, 0, len(views))
	for _, v := range views {
		out = append(out, specFor(v))
	}
	return out
}
