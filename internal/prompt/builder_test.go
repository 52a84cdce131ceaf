package prompt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docsense/internal/domain"
)

func candidate(source, content string) domain.Candidate {
	return domain.Candidate{
		Chunk:      domain.Chunk{Source: source, Content: content},
		Similarity: 0.8,
	}
}

func lastMessage(p Prompt) domain.Message {
	return p.Messages[len(p.Messages)-1]
}

func TestBuildRespectsContextBudget(t *testing.T) {
	b := NewBuilder(Config{ChunkCharLimit: 1500, ContextBudget: 2500})
	var cands []domain.Candidate
	for i := 0; i < 5; i++ {
		cands = append(cands, candidate("a.txt", strings.Repeat("x", 1000)))
	}

	p := b.Build(Request{
		Query:      "what happened",
		Intent:     domain.IntentNarrative,
		Candidates: cands,
	})

	assert.Equal(t, 2, p.ChunksUsed, "budget admits a strict prefix of the selection")
	user := lastMessage(p).Content
	assert.Contains(t, user, "[Source 1: a.txt]")
	assert.Contains(t, user, "[Source 2: a.txt]")
	assert.NotContains(t, user, "[Source 3")
}

func TestBuildTruncatesLongChunks(t *testing.T) {
	b := NewBuilder(Config{ChunkCharLimit: 100, ContextBudget: 8000})
	p := b.Build(Request{
		Query:      "q",
		Intent:     domain.IntentNarrative,
		Candidates: []domain.Candidate{candidate("big.txt", strings.Repeat("y", 5000))},
	})
	require.Equal(t, 1, p.ChunksUsed)
	user := lastMessage(p).Content
	assert.Contains(t, user, strings.Repeat("y", 100)+"...")
	assert.NotContains(t, user, strings.Repeat("y", 101))
}

func TestBuildIncludesOversizedFirstChunk(t *testing.T) {
	b := NewBuilder(Config{ChunkCharLimit: 5000, ContextBudget: 1000})
	p := b.Build(Request{
		Query:      "q",
		Intent:     domain.IntentNarrative,
		Candidates: []domain.Candidate{candidate("big.txt", strings.Repeat("z", 4000))},
	})

	require.Equal(t, 1, p.ChunksUsed, "a first chunk over budget is cut to fit, not dropped")
	assert.False(t, p.Fallback)
	user := lastMessage(p).Content
	assert.Contains(t, user, "[Source 1: big.txt]")
	assert.NotContains(t, user, strings.Repeat("z", 1001))
}

func TestBuildFallbackNeverSaysNoInformation(t *testing.T) {
	b := NewBuilder(Config{})
	p := b.Build(Request{
		Query:         "anything about compressors?",
		Intent:        domain.IntentNarrative,
		CorpusSummary: "The corpus covers separator maintenance and tank gauging.",
	})

	assert.True(t, p.Fallback)
	assert.Zero(t, p.ChunksUsed)
	for _, m := range p.Messages {
		assert.NotContains(t, strings.ToLower(m.Content), "no information found")
	}
	assert.Contains(t, lastMessage(p).Content, "Document sample")
	assert.Contains(t, lastMessage(p).Content, "separator maintenance")
}

func TestBuildFallbackWithoutSample(t *testing.T) {
	b := NewBuilder(Config{})
	p := b.Build(Request{Query: "q", Intent: domain.IntentNarrative})
	assert.True(t, p.Fallback)
	assert.NotEmpty(t, lastMessage(p).Content)
}

func TestBuildTabularInstructions(t *testing.T) {
	b := NewBuilder(Config{})
	p := b.Build(Request{
		Query:      "extract all pressures",
		Intent:     domain.IntentTabular,
		Candidates: []domain.Candidate{candidate("data.txt", "TAIMUR pressure 6 psig")},
	})
	system := p.Messages[0].Content
	assert.Contains(t, system, "pipe-delimited")
	assert.Contains(t, system, "NULL")
	assert.False(t, p.Fallback)
}

func TestBuildHistoryWindow(t *testing.T) {
	b := NewBuilder(Config{HistoryWindow: 4})
	var history []domain.Message
	for i := 0; i < 10; i++ {
		role := domain.RoleUser
		if i%2 == 1 {
			role = domain.RoleAssistant
		}
		history = append(history, domain.Message{Role: role, Content: strings.Repeat("m", i+1)})
	}

	p := b.Build(Request{
		Query:      "q",
		Intent:     domain.IntentNarrative,
		Candidates: []domain.Candidate{candidate("a.txt", "some relevant content here")},
		History:    history,
	})

	// system + 4 history + user
	require.Len(t, p.Messages, 6)
	assert.Equal(t, domain.RoleSystem, p.Messages[0].Role)
	assert.Equal(t, strings.Repeat("m", 7), p.Messages[1].Content)
	assert.Equal(t, domain.RoleUser, lastMessage(p).Role)
}

func TestBuildChat(t *testing.T) {
	b := NewBuilder(Config{})
	p := b.BuildChat("tell me a joke", []domain.Message{
		{Role: domain.RoleUser, Content: "hi"},
		{Role: domain.RoleAssistant, Content: "hello"},
	}, domain.DetailBrief)

	require.Len(t, p.Messages, 4)
	assert.Contains(t, p.Messages[0].Content, "chat mode")
	assert.Equal(t, "tell me a joke", lastMessage(p).Content)
	assert.False(t, p.Fallback)
}
