package embedding

import "strings"

// Chunk is one line-bounded, char-capped fragment of a view's text plus the
// absolute line span it covers in the owning node's original content.
type Chunk struct {
	Index     int
	Content   string
	StartChar int
	EndChar   int
	StartLine int
	EndLine   int
}

// ChunkOptions mirrors config.Chunking: how large a chunk may grow before
// it's cut, and how many trailing lines carry over into the next chunk so a
// symbol split across a boundary still has surrounding context on both
// sides.
type ChunkOptions struct {
	MaxChars        int
	MaxLines        int
	LineOverlap     int
	MinCharsToEmbed int
}

// Chunk splits text into line-bounded pieces, cutting a chunk once it would
// exceed MaxChars or MaxLines, and re-starting the next chunk LineOverlap
// lines before the cut point (§4.7 Phase 1: "content exceeding the
// threshold is split into EmbeddingChunk children with overlapping line
// windows so no symbol loses its surrounding context at a chunk boundary").
// startLine is the 1-based line number of text's first line within the
// parent's original content, so chunk line numbers stay absolute.
func ChunkText(text string, startLine int, opts ChunkOptions) []Chunk {
	if text == "" {
		return nil
	}
	lines := strings.Split(text, "\n")
	if len(lines) == 1 && len(text) <= opts.MaxChars {
		return []Chunk{{
			Index: 0, Content: text, StartChar: 0, EndChar: len(text),
			StartLine: startLine, EndLine: startLine,
		}}
	}

	var chunks []Chunk
	charOffset := 0
	i := 0
	for i < len(lines) {
		var b strings.Builder
		first := i
		lineCount := 0
		startOffset := charOffset
		for i < len(lines) {
			candidate := lines[i]
			extra := len(candidate)
			if b.Len() > 0 {
				extra++ // newline joiner
			}
			if b.Len() > 0 && (b.Len()+extra > opts.MaxChars || lineCount >= opts.MaxLines) {
				break
			}
			if b.Len() > 0 {
				b.WriteByte('\n')
			}
			b.WriteString(candidate)
			charOffset += len(candidate) + 1
			lineCount++
			i++
		}
		if lineCount == 0 {
			// single line longer than MaxChars: emit it whole rather than spin forever.
			b.WriteString(lines[i])
			charOffset += len(lines[i]) + 1
			lineCount = 1
			i++
		}
		chunks = append(chunks, Chunk{
			Index:     len(chunks),
			Content:   b.String(),
			StartChar: startOffset,
			EndChar:   startOffset + b.Len(),
			StartLine: startLine + first,
			EndLine:   startLine + first + lineCount - 1,
		})
		if i >= len(lines) {
			break
		}
		back := opts.LineOverlap
		if back >= lineCount {
			back = lineCount - 1
		}
		if back > 0 {
			i -= back
			charOffset -= overlapChars(lines, i, back)
		}
	}
	return chunks
}

func overlapChars(lines []string, from int, n int) int {
	total := 0
	for j := 0; j < n && from+j < len(lines); j++ {
		total += len(lines[from+j]) + 1
	}
	return total
}

// ShouldChunk decides whether a view's text exceeds the inline threshold
// and needs to be split into EmbeddingChunk children.
func ShouldChunk(text string, opts ChunkOptions) bool {
	if len(text) > opts.MaxChars {
		return true
	}
	return strings.Count(text, "\n")+1 > opts.MaxLines
}
