// Package app wires configuration, providers, corpus indexing, the RAG
// engine, and the HTTP server into one lifecycle.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jdai-labs/marketbot/db"
	"github.com/jdai-labs/marketbot/internal/api"
	"github.com/jdai-labs/marketbot/internal/config"
	"github.com/jdai-labs/marketbot/internal/corpus"
	"github.com/jdai-labs/marketbot/internal/index"
	"github.com/jdai-labs/marketbot/internal/llm"
	"github.com/jdai-labs/marketbot/internal/observability"
	"github.com/jdai-labs/marketbot/internal/rag"
	"github.com/jdai-labs/marketbot/internal/retriever"
	"github.com/jdai-labs/marketbot/internal/session"
)

// embedBatchSize bounds how many chunk texts go to the embedder per call.
const embedBatchSize = 64

// janitorInterval is how often idle sessions are checked for eviction.
const janitorInterval = 5 * time.Minute

// App holds the wired application.
type App struct {
	Config   *config.Config
	Logger   *slog.Logger
	Engine   *rag.Engine
	Server   *api.Server
	Sessions *session.Store

	pool          *pgxpool.Pool
	otelShutdown  func(context.Context) error
	janitorCancel context.CancelFunc
}

// Setup creates and initializes the application: config validation, tracing,
// Genkit providers, corpus load, chunking, index build (snapshot-aware), and
// the engine plus HTTP server on top. The index build blocks; when Setup
// returns, the engine is ready.
func Setup(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *App, retErr error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	a := &App{Config: cfg, Logger: logger}

	// On error, release everything already initialized.
	defer func() {
		if retErr != nil {
			if err := a.Close(); err != nil {
				logger.Warn("cleanup during setup failure", "error", err)
			}
		}
	}()

	shutdown, err := observability.Setup(ctx, observability.Config{
		Endpoint:    cfg.OTLPEndpoint,
		ServiceName: cfg.ServiceName,
		Environment: cfg.Environment,
	})
	if err != nil {
		return nil, fmt.Errorf("setting up tracing: %w", err)
	}
	a.otelShutdown = shutdown

	g, err := llm.InitGenkit(ctx, cfg)
	if err != nil {
		return nil, err
	}
	embedder, err := llm.NewGenkitEmbedder(g, cfg)
	if err != nil {
		return nil, err
	}
	generator := llm.NewGenkitGenerator(g, cfg)

	searcher, err := a.buildIndex(ctx, embedder)
	if err != nil {
		return nil, err
	}

	a.Sessions = session.NewStore(logger.With("component", "session"))
	if cfg.SessionTTL > 0 {
		janitorCtx, cancel := context.WithCancel(context.Background())
		a.janitorCancel = cancel
		a.Sessions.StartJanitor(janitorCtx, janitorInterval, cfg.SessionTTL)
	}

	a.Engine = rag.New(rag.Config{
		Retriever:     retriever.New(embedder, searcher, logger.With("component", "retriever")),
		Generator:     generator,
		Sessions:      a.Sessions,
		Index:         searcher,
		Persona:       cfg.Persona,
		TopK:          cfg.TopK,
		HistoryWindow: cfg.HistoryWindow,
		Logger:        logger.With("component", "rag"),
	})
	a.Engine.SetReady()

	server, err := api.NewServer(api.ServerConfig{
		Logger:      logger.With("component", "api"),
		Engine:      a.Engine,
		CORSOrigins: cfg.CORSOrigins,
		TrustProxy:  cfg.TrustProxy,
		RateBurst:   cfg.RateBurst,
	})
	if err != nil {
		return nil, fmt.Errorf("creating API server: %w", err)
	}
	a.Server = server

	return a, nil
}

// buildIndex loads the corpus, chunks it, and produces a ready searcher for
// the configured backend. The memory backend reuses a snapshot when its
// corpus hash still matches; anything else forces a full re-embed.
func (a *App) buildIndex(ctx context.Context, embedder llm.Embedder) (retriever.Searcher, error) {
	cfg := a.Config

	loader := corpus.NewLoader(a.Logger.With("component", "corpus"))
	docs, err := loader.Load(cfg.DocumentsDir)
	if err != nil {
		return nil, fmt.Errorf("loading corpus: %w", err)
	}
	hash := corpus.Hash(docs)

	chunks, err := corpus.SplitAll(docs, cfg.ChunkSize, cfg.ChunkOverlap)
	if err != nil {
		return nil, fmt.Errorf("chunking corpus: %w", err)
	}
	a.Logger.Info("corpus chunked", "documents", len(docs), "chunks", len(chunks))

	if cfg.StorageBackend == config.StoragePostgres {
		return a.buildPostgresIndex(ctx, embedder, chunks)
	}
	return a.buildMemoryIndex(ctx, embedder, chunks, hash)
}

func (a *App) buildMemoryIndex(ctx context.Context, embedder llm.Embedder, chunks []corpus.Chunk, hash string) (retriever.Searcher, error) {
	cfg := a.Config

	if cfg.SnapshotPath != "" {
		m, err := index.LoadSnapshot(cfg.SnapshotPath, hash)
		switch {
		case err == nil:
			a.Logger.Info("index restored from snapshot",
				"path", cfg.SnapshotPath, "entries", m.Size())
			return index.MemorySearcher{M: m}, nil
		case errors.Is(err, index.ErrSnapshotStale):
			a.Logger.Info("snapshot stale, rebuilding index", "path", cfg.SnapshotPath)
		case errors.Is(err, os.ErrNotExist):
			a.Logger.Debug("no snapshot found, building index", "path", cfg.SnapshotPath)
		default:
			a.Logger.Warn("snapshot unreadable, rebuilding index",
				"path", cfg.SnapshotPath, "error", err)
		}
	}

	m := index.NewMemory()
	if err := embedInto(ctx, embedder, chunks, func(c corpus.Chunk, vec []float32) error {
		return m.Add(index.Entry{ChunkID: c.ID, DocumentID: c.DocumentID, Text: c.Text, Vector: vec})
	}); err != nil {
		return nil, err
	}

	if cfg.SnapshotPath != "" && m.Size() > 0 {
		if err := index.SaveSnapshot(cfg.SnapshotPath, hash, m); err != nil {
			// Snapshot is an optimization; serving can proceed without it.
			a.Logger.Warn("saving index snapshot failed", "path", cfg.SnapshotPath, "error", err)
		}
	}

	a.Logger.Info("index built", "entries", m.Size(), "dimension", m.Dimension())
	return index.MemorySearcher{M: m}, nil
}

func (a *App) buildPostgresIndex(ctx context.Context, embedder llm.Embedder, chunks []corpus.Chunk) (retriever.Searcher, error) {
	cfg := a.Config

	if err := db.Migrate(cfg.PostgresURL()); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.PostgresURL())
	if err != nil {
		return nil, fmt.Errorf("parsing connection config: %w", err)
	}
	poolCfg.MaxConns = 10
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute
	poolCfg.AfterConnect = index.RegisterVectorTypes

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}
	a.pool = pool

	idx, err := index.NewPostgres(ctx, pool)
	if err != nil {
		return nil, err
	}
	if err := embedInto(ctx, embedder, chunks, func(c corpus.Chunk, vec []float32) error {
		return idx.Add(ctx, index.Entry{ChunkID: c.ID, DocumentID: c.DocumentID, Text: c.Text, Vector: vec})
	}); err != nil {
		return nil, err
	}

	a.Logger.Info("pgvector index built", "entries", idx.Size(), "dimension", idx.Dimension())
	return idx, nil
}

// embedInto embeds chunk texts in batches and hands each chunk/vector pair
// to add, preserving chunk order so insertion-order tie-breaks stay stable.
func embedInto(ctx context.Context, embedder llm.Embedder, chunks []corpus.Chunk, add func(corpus.Chunk, []float32) error) error {
	for start := 0; start < len(chunks); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]

		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = c.Text
		}
		vectors, err := embedder.Embed(ctx, texts)
		if err != nil {
			return fmt.Errorf("embedding chunks %d-%d: %w", start, end-1, err)
		}
		if len(vectors) != len(batch) {
			return fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(batch))
		}
		for i, c := range batch {
			if err := add(c, vectors[i]); err != nil {
				return fmt.Errorf("indexing chunk %s: %w", c.ID, err)
			}
		}
	}
	return nil
}

// Close releases application resources: stops the session janitor, flushes
// pending trace spans, and closes the database pool. Safe on a partially
// initialized App.
func (a *App) Close() error {
	var errs []error

	if a.janitorCancel != nil {
		a.janitorCancel()
	}
	if a.otelShutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := a.otelShutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("flushing traces: %w", err))
		}
		cancel()
	}
	if a.pool != nil {
		a.pool.Close()
	}

	return errors.Join(errs...)
}
