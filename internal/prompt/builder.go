// Package prompt assembles bounded-size message lists for the chat model
// from an intent, retrieved chunks and conversation history.
package prompt

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/log"

	"docsense/internal/domain"
)

const chunkSeparator = "\n\n---\n\n"

// Config bounds the assembled context. ChunkCharLimit caps a single chunk,
// ContextBudget caps the total (8000 chars is roughly 2000 tokens), and
// HistoryWindow is the number of prior messages carried into the prompt.
type Config struct {
	ChunkCharLimit int
	ContextBudget  int
	HistoryWindow  int
}

// Builder turns a classified query plus its retrieved context into the
// message list sent to the model.
type Builder struct {
	cfg Config
	log *log.Logger
}

// Request carries everything one build needs. CorpusSummary is a sample of
// the ingested corpus used when retrieval came back empty.
type Request struct {
	Query         string
	Intent        domain.Intent
	Detail        domain.DetailLevel
	Candidates    []domain.Candidate
	History       []domain.Message
	CorpusSummary string
}

// Prompt is the assembled message list. Fallback marks the degraded path
// taken when no chunks matched, so callers can render a lower-confidence
// treatment.
type Prompt struct {
	Messages   []domain.Message
	ChunksUsed int
	Fallback   bool
}

func NewBuilder(cfg Config) *Builder {
	if cfg.ChunkCharLimit <= 0 {
		cfg.ChunkCharLimit = 1500
	}
	if cfg.ContextBudget <= 0 {
		cfg.ContextBudget = 8000
	}
	if cfg.HistoryWindow <= 0 {
		cfg.HistoryWindow = 6
	}
	return &Builder{cfg: cfg, log: log.Default().With("component", "prompt")}
}

// Build assembles a document-mode prompt. With no candidates it routes
// through the corpus-sample fallback rather than producing a bare "no
// information" reply.
func (b *Builder) Build(req Request) Prompt {
	if len(req.Candidates) == 0 {
		return b.buildFallback(req)
	}

	var parts []string
	total := 0
	for i, cand := range req.Candidates {
		content := truncate(cand.Chunk.Content, b.cfg.ChunkCharLimit)
		labeled := fmt.Sprintf("[Source %d: %s]\n%s", i+1, cand.Chunk.Source, content)
		if total+len(labeled) > b.cfg.ContextBudget {
			if len(parts) == 0 {
				// A lone chunk bigger than the whole budget gets cut to
				// fit; an empty context must never reach the model here.
				labeled = truncate(labeled, b.cfg.ContextBudget)
				parts = append(parts, labeled)
				total += len(labeled)
			}
			break
		}
		parts = append(parts, labeled)
		total += len(labeled)
	}
	b.log.Info("context assembled",
		"included", len(parts),
		"dropped", len(req.Candidates)-len(parts),
		"chars", total)

	context := strings.Join(parts, chunkSeparator)

	var system, user string
	if req.Intent == domain.IntentTabular {
		system = tabularSystem
		user = fmt.Sprintf(tabularUser, context, req.Query)
	} else {
		system = narrativeBriefSystem
		user = fmt.Sprintf(narrativeBriefUser, context, req.Query)
		if req.Detail == domain.DetailDetailed {
			system = narrativeDetailedSystem
			user = fmt.Sprintf(narrativeDetailedUser, context, req.Query)
		}
	}

	return Prompt{
		Messages:   b.assemble(system, req.History, user),
		ChunksUsed: len(parts),
	}
}

// BuildChat assembles a plain conversational prompt with no document
// context. Chat mode has no access to the corpus and says so when asked.
func (b *Builder) BuildChat(query string, history []domain.Message, detail domain.DetailLevel) Prompt {
	system := chatBriefSystem
	if detail == domain.DetailDetailed {
		system = chatDetailedSystem
	}
	return Prompt{Messages: b.assemble(system, history, query)}
}

func (b *Builder) buildFallback(req Request) Prompt {
	b.log.Warn("no chunks matched, using corpus-sample fallback")

	sample := truncate(req.CorpusSummary, b.cfg.ContextBudget)
	var user string
	if sample != "" {
		user = fmt.Sprintf(fallbackUser, req.Query, sample)
	} else {
		user = fmt.Sprintf(fallbackBareUser, req.Query)
	}
	system := narrativeBriefSystem
	if req.Detail == domain.DetailDetailed {
		system = narrativeDetailedSystem
	}
	return Prompt{
		Messages: b.assemble(system, req.History, user),
		Fallback: true,
	}
}

func (b *Builder) assemble(system string, history []domain.Message, user string) []domain.Message {
	messages := []domain.Message{{Role: domain.RoleSystem, Content: system}}
	if n := len(history); n > b.cfg.HistoryWindow {
		history = history[n-b.cfg.HistoryWindow:]
	}
	messages = append(messages, history...)
	return append(messages, domain.Message{Role: domain.RoleUser, Content: user})
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && s[cut]&0xC0 == 0x80 {
		cut--
	}
	return s[:cut] + "..."
}
