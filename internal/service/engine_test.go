package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docsense/internal/domain"
	"docsense/internal/intent"
	"docsense/internal/prompt"
	"docsense/internal/retriever"
	"docsense/internal/session"
)

type stubEmbedder struct{}

func (stubEmbedder) Name() string                                     { return "stub" }
func (stubEmbedder) Prepare(ctx context.Context, corpus []string) error { return nil }
func (stubEmbedder) Dimension() int                                   { return 2 }
func (stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return []float32{1, 0}, nil
}

type stubStore struct {
	candidates  []domain.Candidate
	count       int
	searchCalls int
}

func (s *stubStore) Init(ctx context.Context, dim int) error { return nil }
func (s *stubStore) Upsert(ctx context.Context, chunks []domain.Chunk, vectors [][]float32) error {
	return nil
}
func (s *stubStore) Search(ctx context.Context, vector []float32, topK int) ([]domain.Candidate, error) {
	s.searchCalls++
	return s.candidates, nil
}
func (s *stubStore) Clear(ctx context.Context) error      { return nil }
func (s *stubStore) Count(ctx context.Context) (int, error) { return s.count, nil }

type stubModel struct {
	deltas      []domain.Delta
	streamCalls int
	lastOpts    domain.GenOptions
	lastMsgs    []domain.Message
}

func (m *stubModel) Stream(ctx context.Context, messages []domain.Message, opts domain.GenOptions) (<-chan domain.Delta, error) {
	m.streamCalls++
	m.lastOpts = opts
	m.lastMsgs = messages
	out := make(chan domain.Delta, len(m.deltas))
	for _, d := range m.deltas {
		out <- d
	}
	close(out)
	return out, nil
}

func newTestEngine(store *stubStore, model *stubModel) *Engine {
	retr := retriever.New(stubEmbedder{}, store, retriever.Config{TopK: 3})
	return NewEngine(intent.NewClassifier(), retr, prompt.NewBuilder(prompt.Config{}), model, store, GenConfig{})
}

func drain(t *testing.T, a *Answer) string {
	t.Helper()
	var sb strings.Builder
	for d := range a.Deltas {
		require.NoError(t, d.Err)
		sb.WriteString(d.Content)
	}
	return sb.String()
}

func candidates(contents ...string) []domain.Candidate {
	out := make([]domain.Candidate, len(contents))
	for i, c := range contents {
		out[i] = domain.Candidate{
			Chunk:      domain.Chunk{ID: c, Source: "report.txt", Content: c},
			Similarity: 0.9 - float64(i)*0.1,
		}
	}
	return out
}

func TestCasualSkipsRetrievalAndModel(t *testing.T) {
	store := &stubStore{}
	model := &stubModel{}
	e := newTestEngine(store, model)
	sess := session.New()

	a, err := e.Ask(context.Background(), sess, session.ModeDocument, "thanks")
	require.NoError(t, err)
	assert.Equal(t, domain.IntentCasual, a.Intent)

	reply := drain(t, a)
	assert.NotEmpty(t, reply)
	assert.Zero(t, store.searchCalls, "casual queries never hit the vector store")
	assert.Zero(t, model.streamCalls, "casual queries never hit the model")
	assert.Equal(t, 2, sess.History(session.ModeDocument).Len())
}

func TestDocumentModeStreamsAndRecordsHistory(t *testing.T) {
	store := &stubStore{candidates: candidates("the separator pressure held at 120 psig overnight")}
	model := &stubModel{deltas: []domain.Delta{{Content: "The pressure "}, {Content: "held steady."}}}
	e := newTestEngine(store, model)
	sess := session.New()

	a, err := e.Ask(context.Background(), sess, session.ModeDocument, "what happened to the separator pressure?")
	require.NoError(t, err)
	assert.Equal(t, domain.IntentNarrative, a.Intent)
	assert.False(t, a.Fallback)
	assert.Equal(t, []string{"report.txt"}, a.Sources)

	got := drain(t, a)
	assert.Equal(t, "The pressure held steady.", got)

	hist := sess.History(session.ModeDocument).Messages()
	require.Len(t, hist, 2)
	assert.Equal(t, domain.RoleUser, hist[0].Role)
	assert.Equal(t, "The pressure held steady.", hist[1].Content)
	assert.Zero(t, sess.History(session.ModeChat).Len())
}

func TestFallbackUsesCorpusSummary(t *testing.T) {
	store := &stubStore{count: 12}
	model := &stubModel{deltas: []domain.Delta{{Content: "ok"}}}
	e := newTestEngine(store, model)
	sess := session.New()
	sess.SetCorpusSummary("The corpus covers compressor maintenance.")

	a, err := e.Ask(context.Background(), sess, session.ModeDocument, "what about turbines?")
	require.NoError(t, err)
	assert.True(t, a.Fallback)
	assert.Zero(t, a.ChunksUsed)
	drain(t, a)

	user := model.lastMsgs[len(model.lastMsgs)-1].Content
	assert.Contains(t, user, "compressor maintenance")
}

func TestChatModeIgnoresDocuments(t *testing.T) {
	store := &stubStore{candidates: candidates("indexed but irrelevant")}
	model := &stubModel{deltas: []domain.Delta{{Content: "hi!"}}}
	e := newTestEngine(store, model)
	sess := session.New()

	a, err := e.Ask(context.Background(), sess, session.ModeChat, "tell me something interesting about rivers")
	require.NoError(t, err)
	drain(t, a)

	assert.Zero(t, store.searchCalls)
	assert.Equal(t, 1, model.streamCalls)
	assert.Equal(t, 2, sess.History(session.ModeChat).Len())
	assert.Zero(t, sess.History(session.ModeDocument).Len())
}

func TestDetailLevelControlsMaxTokens(t *testing.T) {
	store := &stubStore{candidates: candidates("content")}
	model := &stubModel{deltas: []domain.Delta{{Content: "x"}}}
	e := newTestEngine(store, model)

	a, err := e.Ask(context.Background(), session.New(), session.ModeDocument,
		"give me a comprehensive detailed analysis of the trends")
	require.NoError(t, err)
	assert.Equal(t, domain.DetailDetailed, a.Detail)
	drain(t, a)
	assert.Equal(t, 4096, model.lastOpts.MaxTokens)

	model2 := &stubModel{deltas: []domain.Delta{{Content: "y"}}}
	e2 := newTestEngine(store, model2)
	a2, err := e2.Ask(context.Background(), session.New(), session.ModeDocument, "what is the pressure?")
	require.NoError(t, err)
	assert.Equal(t, domain.DetailBrief, a2.Detail)
	drain(t, a2)
	assert.Equal(t, 800, model2.lastOpts.MaxTokens)
	assert.InDelta(t, 0.65, model2.lastOpts.Temperature, 1e-6)
	assert.InDelta(t, 0.9, model2.lastOpts.TopP, 1e-6)
}

func TestAbandonedConsumerStillRecordsHistory(t *testing.T) {
	store := &stubStore{candidates: candidates("content")}
	model := &stubModel{deltas: []domain.Delta{{Content: "partial"}, {Content: " more"}}}
	e := newTestEngine(store, model)
	sess := session.New()

	ctx, cancel := context.WithCancel(context.Background())
	a, err := e.Ask(ctx, sess, session.ModeDocument, "what does the report say?")
	require.NoError(t, err)

	// Walk away without draining; the engine must still shut the stream
	// down and commit what it got.
	cancel()
	for range a.Deltas {
	}

	hist := sess.History(session.ModeDocument).Messages()
	require.Len(t, hist, 2)
	assert.True(t, strings.HasPrefix(hist[1].Content, "partial"))
}

func TestPartialResponseKeptOnStreamError(t *testing.T) {
	store := &stubStore{candidates: candidates("content")}
	model := &stubModel{deltas: []domain.Delta{
		{Content: "partial answer"},
		{Err: errors.New("connection reset")},
	}}
	e := newTestEngine(store, model)
	sess := session.New()

	a, err := e.Ask(context.Background(), sess, session.ModeDocument, "what does the report say?")
	require.NoError(t, err)

	var sawErr bool
	var got string
	for d := range a.Deltas {
		if d.Err != nil {
			sawErr = true
			continue
		}
		got += d.Content
	}
	assert.True(t, sawErr)
	assert.Equal(t, "partial answer", got)

	hist := sess.History(session.ModeDocument).Messages()
	require.Len(t, hist, 2)
	assert.Equal(t, "partial answer", hist[1].Content)
}
