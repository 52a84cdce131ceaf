package retriever

import (
	"context"
	"time"

	"github.com/charmbracelet/log"

	"docsense/internal/domain"
)

// Config tunes the two-stage retrieval: a wide fetch from the vector store
// followed by MMR selection down to TopK. The numeric defaults are product
// tuning values, not invariants.
type Config struct {
	TopK      int
	FetchK    int
	Lambda    float64
	Threshold float64
	Timeout   time.Duration
}

// Retriever embeds a query, pulls a candidate pool from the vector store and
// narrows it to a diverse top-k subset.
type Retriever struct {
	embedder domain.Embedder
	store    domain.VectorStore
	cfg      Config
	log      *log.Logger
}

func New(embedder domain.Embedder, store domain.VectorStore, cfg Config) *Retriever {
	if cfg.TopK <= 0 {
		cfg.TopK = 5
	}
	if cfg.FetchK <= 0 {
		cfg.FetchK = 2 * cfg.TopK
	}
	if cfg.Lambda <= 0 {
		cfg.Lambda = 0.65
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 4 * time.Second
	}
	return &Retriever{
		embedder: embedder,
		store:    store,
		cfg:      cfg,
		log:      log.Default().With("component", "retriever"),
	}
}

// Retrieve returns a diverse set of chunks relevant to the query. Failures,
// timeouts and degenerate embeddings all degrade to an empty result: the
// caller treats that as "no information available" and takes the fallback
// path, never as an error.
func (r *Retriever) Retrieve(ctx context.Context, query string) []domain.Candidate {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()
	start := time.Now()

	vec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		r.log.Warn("query embedding failed", "err", err)
		return nil
	}
	if isZeroVector(vec) {
		// Nothing to search with; similarity scores would be meaningless.
		r.log.Warn("degenerate query embedding, skipping vector search")
		return nil
	}

	candidates, err := r.store.Search(ctx, vec, r.cfg.FetchK)
	if err != nil {
		r.log.Warn("vector search failed", "err", err)
		return nil
	}
	if err := ctx.Err(); err != nil {
		r.log.Warn("retrieval timed out", "elapsed", time.Since(start))
		return nil
	}

	kept := candidates[:0]
	for _, cand := range candidates {
		if cand.Similarity >= r.cfg.Threshold {
			kept = append(kept, cand)
		}
	}

	selected := SelectMMR(kept, r.cfg.TopK, r.cfg.Lambda)
	r.log.Info("retrieval complete",
		"fetched", len(candidates),
		"selected", len(selected),
		"lambda", r.cfg.Lambda,
		"elapsed", time.Since(start))
	return selected
}

func isZeroVector(vec []float32) bool {
	for _, v := range vec {
		if v != 0 {
			return false
		}
	}
	return true
}
