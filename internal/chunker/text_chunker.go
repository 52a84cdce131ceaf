package chunker

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"docsense/internal/domain"
)

// Boundary preference for cut points, strongest first.
var separators = []string{"\n\n", "\n", ". ", "! ", "? ", " "}

// TextChunker splits document text into overlapping character-budget chunks.
// Cuts prefer paragraph boundaries, then sentence ends, then spaces, and only
// fall back to a hard cut when a window contains none of those.
type TextChunker struct {
	chunkSize   int
	overlap     int
	minChunkLen int
}

func NewTextChunker(chunkSize, overlap int) *TextChunker {
	if chunkSize <= 0 {
		chunkSize = 1500
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= chunkSize {
		overlap = chunkSize / 4
	}
	return &TextChunker{
		chunkSize:   chunkSize,
		overlap:     overlap,
		minChunkLen: 20,
	}
}

// Chunk splits the document into chunks of at most chunkSize characters, each
// starting overlap characters before the end of the previous one. Chunks that
// trim down to fewer than minChunkLen characters carry no retrievable signal
// and are dropped, unless that would drop everything.
func (c *TextChunker) Chunk(document domain.Document) ([]domain.Chunk, error) {
	if strings.TrimSpace(document.Content) == "" {
		return nil, nil
	}
	raw := c.split(document.Content)

	var kept []string
	for _, part := range raw {
		trimmed := strings.TrimSpace(part)
		if len(trimmed) >= c.minChunkLen {
			kept = append(kept, trimmed)
		}
	}
	if len(kept) == 0 {
		for _, part := range raw {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				kept = append(kept, trimmed)
			}
		}
	}

	chunks := make([]domain.Chunk, len(kept))
	for i, text := range kept {
		chunks[i] = domain.Chunk{
			ID:      document.ID + ":" + strconv.Itoa(i),
			Source:  document.Name,
			Index:   i,
			Total:   len(kept),
			Content: text,
		}
	}
	return chunks, nil
}

func (c *TextChunker) split(text string) []string {
	var parts []string
	start := 0
	for start < len(text) {
		end := start + c.chunkSize
		if end >= len(text) {
			parts = append(parts, text[start:])
			break
		}
		cut := c.snap(text, start, end)
		parts = append(parts, text[start:cut])
		next := cut - c.overlap
		if next <= start {
			// Chunk shorter than the overlap; skip the rewind so the
			// walk still terminates.
			next = cut
		}
		start = next
	}
	return parts
}

// snap moves a hard cut back to the nearest preceding boundary. The cut never
// rewinds into the overlap region, so every chunk makes forward progress.
func (c *TextChunker) snap(text string, start, end int) int {
	window := text[start:end]
	for _, sep := range separators {
		if i := strings.LastIndex(window, sep); i > 0 {
			cut := start + i + len(sep)
			if cut > start+c.overlap {
				return cut
			}
		}
	}
	for end > start+1 && !utf8.RuneStart(text[end]) {
		end--
	}
	return end
}
