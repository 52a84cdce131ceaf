// Package service orchestrates a question turn: classify, retrieve, build
// the prompt and stream the model response, with conversation histories
// updated once the turn finishes.
package service

import (
	"context"

	"github.com/charmbracelet/log"

	"docsense/internal/domain"
	"docsense/internal/intent"
	"docsense/internal/prompt"
	"docsense/internal/retriever"
	"docsense/internal/session"
)

// GenConfig holds the sampling parameters applied per detail level.
type GenConfig struct {
	Temperature       float32
	TopP              float32
	FrequencyPenalty  float32
	PresencePenalty   float32
	BriefMaxTokens    int
	DetailedMaxTokens int
}

func defaultGenConfig() GenConfig {
	return GenConfig{
		Temperature:       0.65,
		TopP:              0.9,
		FrequencyPenalty:  0.3,
		PresencePenalty:   0.3,
		BriefMaxTokens:    800,
		DetailedMaxTokens: 4096,
	}
}

// Answer is one in-flight response. Deltas closes when the response is
// complete; consume it fully before starting another turn.
type Answer struct {
	Intent     domain.Intent
	Detail     domain.DetailLevel
	Fallback   bool
	ChunksUsed int
	Sources    []string
	Deltas     <-chan domain.Delta
}

type Engine struct {
	classifier *intent.Classifier
	retriever  *retriever.Retriever
	builder    *prompt.Builder
	model      domain.ChatModel
	store      domain.VectorStore
	gen        GenConfig
	logger     *log.Logger
}

func NewEngine(classifier *intent.Classifier, retr *retriever.Retriever, builder *prompt.Builder,
	model domain.ChatModel, store domain.VectorStore, gen GenConfig) *Engine {
	if gen == (GenConfig{}) {
		gen = defaultGenConfig()
	}
	return &Engine{
		classifier: classifier,
		retriever:  retr,
		builder:    builder,
		model:      model,
		store:      store,
		gen:        gen,
		logger:     log.Default().With("component", "engine"),
	}
}

// Ask answers one user turn in the given mode. Casual queries are answered
// locally without touching retrieval or the model. History is appended only
// after the stream finishes; on a mid-stream failure the partial response
// is kept.
func (e *Engine) Ask(ctx context.Context, sess *session.Session, mode session.Mode, query string) (*Answer, error) {
	in := e.classifier.Classify(query)
	detail := e.classifier.DetailLevel(query)

	if in == domain.IntentCasual {
		return e.answerCasual(sess, mode, query), nil
	}
	if mode == session.ModeChat {
		return e.answerChat(ctx, sess, query, detail)
	}
	return e.answerDocument(ctx, sess, query, in, detail)
}

func (e *Engine) answerCasual(sess *session.Session, mode session.Mode, query string) *Answer {
	const reply = "Hello! Ask me about your documents, or switch to chat mode for general questions."
	out := make(chan domain.Delta, 1)
	out <- domain.Delta{Content: reply}
	close(out)
	hist := sess.History(mode)
	hist.Append(domain.RoleUser, query)
	hist.Append(domain.RoleAssistant, reply)
	return &Answer{Intent: domain.IntentCasual, Detail: domain.DetailBrief, Deltas: out}
}

func (e *Engine) answerChat(ctx context.Context, sess *session.Session, query string, detail domain.DetailLevel) (*Answer, error) {
	hist := sess.History(session.ModeChat)
	p := e.builder.BuildChat(query, hist.Messages(), detail)
	deltas, err := e.stream(ctx, p.Messages, detail, hist, query)
	if err != nil {
		return nil, err
	}
	return &Answer{Intent: domain.IntentNarrative, Detail: detail, Deltas: deltas}, nil
}

func (e *Engine) answerDocument(ctx context.Context, sess *session.Session, query string,
	in domain.Intent, detail domain.DetailLevel) (*Answer, error) {
	candidates := e.retriever.Retrieve(ctx, query)

	req := prompt.Request{
		Query:      query,
		Intent:     in,
		Detail:     detail,
		Candidates: candidates,
		History:    sess.History(session.ModeDocument).Messages(),
	}
	if len(candidates) == 0 {
		// Only offer the corpus sample when something is actually indexed.
		if n, err := e.store.Count(ctx); err == nil && n > 0 {
			req.CorpusSummary = sess.CorpusSummary()
		}
		e.logger.Info("no candidates above threshold, using fallback prompt")
	}
	p := e.builder.Build(req)

	hist := sess.History(session.ModeDocument)
	deltas, err := e.streamIntent(ctx, p.Messages, in, detail, hist, query)
	if err != nil {
		return nil, err
	}

	sources := make([]string, 0, p.ChunksUsed)
	seen := map[string]struct{}{}
	for _, c := range candidates[:min(p.ChunksUsed, len(candidates))] {
		if _, dup := seen[c.Chunk.Source]; dup {
			continue
		}
		seen[c.Chunk.Source] = struct{}{}
		sources = append(sources, c.Chunk.Source)
	}
	return &Answer{
		Intent:     in,
		Detail:     detail,
		Fallback:   p.Fallback,
		ChunksUsed: p.ChunksUsed,
		Sources:    sources,
		Deltas:     deltas,
	}, nil
}

func (e *Engine) stream(ctx context.Context, messages []domain.Message, detail domain.DetailLevel,
	hist *session.History, query string) (<-chan domain.Delta, error) {
	return e.streamIntent(ctx, messages, domain.IntentNarrative, detail, hist, query)
}

// streamIntent starts the model and forwards deltas, accumulating the
// response so the history can be appended when the stream closes.
func (e *Engine) streamIntent(ctx context.Context, messages []domain.Message, in domain.Intent,
	detail domain.DetailLevel, hist *session.History, query string) (<-chan domain.Delta, error) {
	opts := domain.GenOptions{
		MaxTokens:        e.gen.BriefMaxTokens,
		Temperature:      e.gen.Temperature,
		TopP:             e.gen.TopP,
		FrequencyPenalty: e.gen.FrequencyPenalty,
		PresencePenalty:  e.gen.PresencePenalty,
	}
	if detail == domain.DetailDetailed {
		opts.MaxTokens = e.gen.DetailedMaxTokens
	}

	src, err := e.model.Stream(ctx, messages, opts)
	if err != nil {
		return nil, err
	}

	out := make(chan domain.Delta)
	go func() {
		defer close(out)
		var full string
		// Runs before close(out): consumers see the history updated once
		// the channel is drained. An abandoned stream keeps its partial.
		defer func() {
			if in == domain.IntentTabular && full != "" {
				if ok, reason := intent.ValidateTabular(full); !ok {
					e.logger.Warn("tabular response failed validation", "reason", reason)
				}
			}
			hist.Append(domain.RoleUser, query)
			if full != "" {
				hist.Append(domain.RoleAssistant, full)
			}
		}()
		for d := range src {
			full += d.Content
			select {
			case out <- d:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}
