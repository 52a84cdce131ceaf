package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"

	"docsense/internal/chunker"
	"docsense/internal/config"
	"docsense/internal/domain"
	embopenai "docsense/internal/embedding/openai"
	"docsense/internal/embedding/tfidf"
	"docsense/internal/ingest"
	"docsense/internal/intent"
	"docsense/internal/llm"
	"docsense/internal/prompt"
	"docsense/internal/retriever"
	"docsense/internal/service"
	"docsense/internal/session"
	"docsense/internal/summarizer"
	"docsense/internal/tui"
	"docsense/internal/vectorstore/memory"
	"docsense/internal/vectorstore/qdrant"
	"docsense/internal/vectorstore/sqlite"
)

func main() {
	_ = godotenv.Load()

	var cfgPath string
	var watch bool
	flag.StringVar(&cfgPath, "config", "", "Path to YAML config file (optional; uses ~/.config/docsense/config.yaml if not provided)")
	flag.BoolVar(&watch, "watch", false, "Re-ingest when files in the first input directory change")
	flag.Parse()
	inputs := flag.Args()
	if len(inputs) == 0 {
		fmt.Println("Usage: docsense [--config=config.yaml] [--watch] file-or-dir [more ...]")
		os.Exit(1)
	}

	var cfg *config.AppConfig
	var err error
	if cfgPath == "" {
		cfg, _, err = config.LoadDefault()
	} else {
		cfg, err = config.Load(cfgPath)
	}
	if err != nil {
		log.Fatal("failed to load config", "err", err)
	}

	emb := buildEmbedder(cfg)
	store := buildStore(cfg)
	ch := chunker.NewTextChunker(cfg.Chunker.ChunkSize, cfg.Chunker.Overlap)
	sum := summarizer.NewFrequency()

	model, err := llm.NewClient(llm.Config{
		BaseURL:    cfg.LLM.BaseURL,
		APIKeyEnv:  cfg.LLM.APIKeyEnv,
		Model:      cfg.LLM.Model,
		Timeout:    time.Duration(cfg.LLM.TimeoutSecs) * time.Second,
		MaxRetries: cfg.LLM.MaxRetries,
	})
	if err != nil {
		log.Fatal("llm init failed", "err", err)
	}

	ctx := context.Background()
	sess := session.New()
	ingestor := ingest.New(ch, emb, store, sum)
	res, err := ingestor.Ingest(ctx, sess, inputs)
	if err != nil {
		log.Fatal("ingest failed", "err", err)
	}
	status := fmt.Sprintf("Indexed %d files into %d chunks. Ask away.", res.Documents, res.Chunks)
	for _, f := range res.Failures {
		log.Warn("file skipped", "name", f.Name, "err", f.Err)
	}

	retr := retriever.New(emb, store, retriever.Config{
		TopK:      cfg.Retrieval.TopK,
		FetchK:    cfg.Retrieval.FetchK,
		Lambda:    cfg.Retrieval.Lambda,
		Threshold: cfg.Retrieval.Threshold,
		Timeout:   time.Duration(cfg.Retrieval.TimeoutSecs) * time.Second,
	})
	builder := prompt.NewBuilder(prompt.Config{
		ChunkCharLimit: cfg.Prompt.ChunkCharLimit,
		ContextBudget:  cfg.Prompt.ContextBudget,
		HistoryWindow:  cfg.Prompt.HistoryWindow,
	})
	engine := service.NewEngine(intent.NewClassifier(), retr, builder, model, store, service.GenConfig{
		Temperature:       cfg.LLM.Temperature,
		TopP:              cfg.LLM.TopP,
		FrequencyPenalty:  cfg.LLM.FrequencyPenalty,
		PresencePenalty:   cfg.LLM.PresencePenalty,
		BriefMaxTokens:    cfg.LLM.BriefMaxTokens,
		DetailedMaxTokens: cfg.LLM.DetailedMaxTokens,
	})

	m := tui.New(engine, sess, status)
	if watch {
		if changes, ok := watchChanges(ctx, cfg, inputs); ok {
			m = m.WithWatcher(ingestor, inputs, changes)
		}
	}

	if _, err := tea.NewProgram(m).Run(); err != nil {
		log.Fatal("tui failed", "err", err)
	}
}

func buildEmbedder(cfg *config.AppConfig) domain.Embedder {
	switch cfg.Embedder.Type {
	case "tfidf", "":
		return tfidf.NewEmbedder()
	case "openai":
		if cfg.Embedder.OpenAI == nil {
			log.Fatal("openai embedder config missing")
		}
		client, err := embopenai.NewClient(embopenai.Config{
			BaseURL:   cfg.Embedder.OpenAI.BaseURL,
			APIKeyEnv: cfg.Embedder.OpenAI.APIKeyEnv,
			Model:     cfg.Embedder.OpenAI.Model,
			Timeout:   time.Duration(cfg.Embedder.OpenAI.TimeoutSecs) * time.Second,
		})
		if err != nil {
			log.Fatal("openai embedder init failed", "err", err)
		}
		return client
	default:
		log.Fatal("unknown embedder", "type", cfg.Embedder.Type)
		return nil
	}
}

func buildStore(cfg *config.AppConfig) domain.VectorStore {
	switch cfg.VectorStore.Type {
	case "memory", "":
		return memory.NewStorage()
	case "sqlite":
		if cfg.VectorStore.SQLite == nil {
			log.Fatal("sqlite store config missing")
		}
		st, err := sqlite.NewStorage(cfg.VectorStore.SQLite.Path)
		if err != nil {
			log.Fatal("sqlite store init failed", "err", err)
		}
		return st
	case "qdrant":
		if cfg.VectorStore.Qdrant == nil {
			log.Fatal("qdrant store config missing")
		}
		return qdrant.NewStorage(qdrant.Config{
			URL:        cfg.VectorStore.Qdrant.URL,
			APIKey:     cfg.VectorStore.Qdrant.APIKey,
			Collection: cfg.VectorStore.Qdrant.Collection,
			Timeout:    time.Duration(cfg.VectorStore.Qdrant.TimeoutSecs) * time.Second,
		})
	default:
		log.Fatal("unknown vector store", "type", cfg.VectorStore.Type)
		return nil
	}
}

// watchChanges opens a change feed for the watched directory. Re-ingestion
// itself happens on the TUI update loop, keeping index rebuilds serialized
// with queries. The directory comes from config, falling back to the first
// input that is a directory.
func watchChanges(ctx context.Context, cfg *config.AppConfig, inputs []string) (<-chan struct{}, bool) {
	dir := cfg.Watch.Dir
	if dir == "" {
		for _, in := range inputs {
			if info, err := os.Stat(in); err == nil && info.IsDir() {
				dir = in
				break
			}
		}
	}
	if dir == "" {
		log.Warn("watch enabled but no directory to watch")
		return nil, false
	}
	changes, err := ingest.NewWatcher(dir).Watch(ctx)
	if err != nil {
		log.Warn("watcher failed to start", "dir", dir, "err", err)
		return nil, false
	}
	log.Info("watching for changes", "dir", dir)
	return changes, true
}
