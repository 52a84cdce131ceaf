package chunker

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docsense/internal/domain"
)

func doc(content string) domain.Document {
	return domain.Document{ID: "d1", Name: "report.txt", Content: content}
}

func TestChunkEmptyInput(t *testing.T) {
	c := NewTextChunker(60, 10)
	chunks, err := c.Chunk(doc("   \n\t  "))
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestChunkParagraphBoundary(t *testing.T) {
	text := strings.Repeat("A", 50) + "\n\n" + strings.Repeat("B", 50)
	c := NewTextChunker(60, 10)
	chunks, err := c.Chunk(doc(text))
	require.NoError(t, err)
	require.Len(t, chunks, 2)

	assert.Equal(t, strings.Repeat("A", 50), chunks[0].Content)
	// The second chunk rewinds 10 characters from the paragraph cut, so it
	// picks up the tail of the A-run before carrying the full B-run.
	assert.True(t, strings.HasPrefix(chunks[1].Content, strings.Repeat("A", 8)))
	assert.Equal(t, 50, strings.Count(chunks[1].Content, "B"))
}

func TestChunkOverlapInvariant(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 150; i++ {
		sb.WriteByte(byte('a' + i%26))
	}
	text := sb.String()

	c := NewTextChunker(60, 10)
	chunks, err := c.Chunk(doc(text))
	require.NoError(t, err)
	require.Len(t, chunks, 3)

	for i := 0; i < len(chunks)-1; i++ {
		tail := chunks[i].Content[len(chunks[i].Content)-10:]
		head := chunks[i+1].Content[:10]
		assert.Equal(t, tail, head, "chunks %d and %d must share the overlap", i, i+1)
	}
}

func TestChunkCoverage(t *testing.T) {
	var tokens []string
	for i := 0; i < 80; i++ {
		tokens = append(tokens, fmt.Sprintf("tok%03d", i))
	}
	text := strings.Join(tokens, " ")

	c := NewTextChunker(100, 20)
	chunks, err := c.Chunk(doc(text))
	require.NoError(t, err)
	require.NotEmpty(t, chunks)

	for _, ch := range chunks {
		assert.LessOrEqual(t, len(ch.Content), 100)
	}
	for _, tok := range tokens {
		found := false
		for _, ch := range chunks {
			if strings.Contains(ch.Content, tok) {
				found = true
				break
			}
		}
		assert.True(t, found, "token %s lost during chunking", tok)
	}
}

func TestChunkDropsTrivialTail(t *testing.T) {
	text := strings.Repeat("x", 39) + "\n\ntiny"
	c := NewTextChunker(40, 5)
	chunks, err := c.Chunk(doc(text))
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, strings.Repeat("x", 39), chunks[0].Content)
}

func TestChunkKeepsShortOnlyInput(t *testing.T) {
	// A document made of nothing but short fragments must still produce
	// output rather than silently vanishing.
	c := NewTextChunker(400, 50)
	chunks, err := c.Chunk(doc("hi there."))
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "hi there.", chunks[0].Content)
}

func TestChunkMetadata(t *testing.T) {
	text := strings.Repeat("alpha beta gamma delta. ", 20)
	c := NewTextChunker(120, 20)
	chunks, err := c.Chunk(doc(text))
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)

	for i, ch := range chunks {
		assert.Equal(t, i, ch.Index)
		assert.Equal(t, len(chunks), ch.Total)
		assert.Equal(t, "report.txt", ch.Source)
		assert.Equal(t, fmt.Sprintf("d1:%d", i), ch.ID)
	}
}
