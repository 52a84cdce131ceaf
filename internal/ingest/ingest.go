// Package ingest loads source files, chunks them and builds the vector
// index. Ingestion is all-or-nothing per corpus: when the file set changes
// the index is cleared and rebuilt, and when it has not changed the whole
// pass is skipped.
package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/charmbracelet/log"

	"docsense/internal/domain"
	"docsense/internal/session"
)

// FileError records one file that failed to load or chunk. A bad file
// never aborts the pass; the rest of the corpus still gets indexed.
type FileError struct {
	Name string
	Err  error
}

// Result reports what an ingestion pass did.
type Result struct {
	Fingerprint string
	Skipped     bool
	Documents   int
	Chunks      int
	Summary     string
	Failures    []FileError
}

type Ingestor struct {
	chunker    domain.Chunker
	embedder   domain.Embedder
	store      domain.VectorStore
	summarizer domain.Summarizer
	logger     *log.Logger

	summarySentences int
}

func New(chunker domain.Chunker, embedder domain.Embedder, store domain.VectorStore, summarizer domain.Summarizer) *Ingestor {
	return &Ingestor{
		chunker:          chunker,
		embedder:         embedder,
		store:            store,
		summarizer:       summarizer,
		logger:           log.Default().With("component", "ingest"),
		summarySentences: 8,
	}
}

// Ingest resolves the given paths or globs, compares the resulting file
// set against the session fingerprint and rebuilds the index when it
// differs. On success the session carries the new fingerprint and a corpus
// summary for the retrieval-fallback path.
func (in *Ingestor) Ingest(ctx context.Context, sess *session.Session, patterns []string) (*Result, error) {
	paths, err := expand(patterns)
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no ingestable files matched %v", patterns)
	}

	res := &Result{}
	var docs []domain.Document
	var infos []session.FileInfo
	for _, path := range paths {
		doc, info, err := load(path)
		if err != nil {
			in.logger.Warn("skipping file", "path", path, "err", err)
			res.Failures = append(res.Failures, FileError{Name: filepath.Base(path), Err: err})
			continue
		}
		docs = append(docs, doc)
		infos = append(infos, info)
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("all %d files failed to load", len(paths))
	}

	res.Fingerprint = session.Fingerprint(infos)
	res.Documents = len(docs)
	if res.Fingerprint == sess.Fingerprint() {
		in.logger.Info("corpus unchanged, skipping ingestion", "files", len(docs))
		res.Skipped = true
		res.Summary = sess.CorpusSummary()
		return res, nil
	}

	var chunks []domain.Chunk
	for _, doc := range docs {
		cs, err := in.chunker.Chunk(doc)
		if err != nil {
			res.Failures = append(res.Failures, FileError{Name: doc.Name, Err: err})
			continue
		}
		chunks = append(chunks, cs...)
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("no chunks produced from %d documents", len(docs))
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}
	if err := in.embedder.Prepare(ctx, texts); err != nil {
		return nil, fmt.Errorf("prepare embedder: %w", err)
	}

	// Embed before touching the store: remote embedders only learn their
	// dimension from the first response.
	vectors := make([][]float32, len(chunks))
	for i, c := range chunks {
		vec, err := in.embedder.Embed(ctx, c.Content)
		if err != nil {
			return nil, fmt.Errorf("embed chunk %s: %w", c.ID, err)
		}
		vectors[i] = vec
	}
	dimension := len(vectors[0])

	if err := in.store.Init(ctx, dimension); err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}
	if err := in.store.Clear(ctx); err != nil {
		return nil, fmt.Errorf("clear store: %w", err)
	}
	if err := in.store.Upsert(ctx, chunks, vectors); err != nil {
		return nil, fmt.Errorf("upsert chunks: %w", err)
	}

	summary := in.summarize(docs)
	sess.SetFingerprint(res.Fingerprint)
	sess.SetCorpusSummary(summary)

	res.Chunks = len(chunks)
	res.Summary = summary
	in.logger.Info("corpus indexed",
		"files", len(docs), "chunks", len(chunks), "dimension", dimension)
	return res, nil
}

func (in *Ingestor) summarize(docs []domain.Document) string {
	var sb strings.Builder
	for _, doc := range docs {
		sb.WriteString(doc.Content)
		sb.WriteString("\n\n")
	}
	summary, err := in.summarizer.Summarize(sb.String(), in.summarySentences)
	if err != nil {
		in.logger.Warn("corpus summary failed", "err", err)
		return ""
	}
	return summary
}

// expand resolves globs and directories to a sorted list of supported
// files. Sorting keeps the fingerprint order-independent of shell
// expansion order.
func expand(patterns []string) ([]string, error) {
	seen := map[string]struct{}{}
	var out []string
	add := func(path string) {
		if !supported(path) {
			return
		}
		if _, dup := seen[path]; dup {
			return
		}
		seen[path] = struct{}{}
		out = append(out, path)
	}

	for _, pattern := range patterns {
		if info, err := os.Stat(pattern); err == nil && info.IsDir() {
			entries, err := os.ReadDir(pattern)
			if err != nil {
				return nil, err
			}
			for _, e := range entries {
				if !e.IsDir() {
					add(filepath.Join(pattern, e.Name()))
				}
			}
			continue
		}
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("bad pattern %q: %w", pattern, err)
		}
		if matches == nil {
			add(pattern)
			continue
		}
		for _, m := range matches {
			add(m)
		}
	}
	sort.Strings(out)
	return out, nil
}

func supported(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt", ".md":
		return true
	}
	return false
}

func load(path string) (domain.Document, session.FileInfo, error) {
	info, err := os.Stat(path)
	if err != nil {
		return domain.Document{}, session.FileInfo{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.Document{}, session.FileInfo{}, err
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return domain.Document{}, session.FileInfo{}, fmt.Errorf("file %s is empty", path)
	}
	name := filepath.Base(path)
	doc := domain.Document{
		ID:      strings.TrimSuffix(name, filepath.Ext(name)),
		Name:    name,
		Path:    path,
		Content: string(data),
	}
	return doc, session.FileInfo{Name: name, Size: info.Size()}, nil
}
