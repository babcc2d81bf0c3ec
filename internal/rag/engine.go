// Package rag orchestrates the retrieval-augmented answer flow: validate,
// snapshot session history, retrieve context, render the prompt, generate,
// then commit the exchange.
package rag

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/jdai-labs/marketbot/internal/index"
	"github.com/jdai-labs/marketbot/internal/llm"
	"github.com/jdai-labs/marketbot/internal/session"
)

// Retriever is the context-lookup contract the engine consumes.
type Retriever interface {
	Retrieve(ctx context.Context, query string, k int) ([]index.Result, error)
}

// Sizer reports how many chunks the index holds. Satisfied by
// index.MemorySearcher and *index.Postgres.
type Sizer interface {
	Size() int
}

// Health reports engine readiness for the health operation.
type Health struct {
	Ready     bool `json:"ready"`
	IndexSize int  `json:"index_size"`
}

// Config wires an Engine.
type Config struct {
	Retriever Retriever
	Generator llm.Generator
	Sessions  *session.Store
	Index     Sizer

	// Persona overrides DefaultPersona when non-empty.
	Persona string

	// TopK chunks retrieved per question. <= 0 lets the retriever default.
	TopK int

	// HistoryWindow is the number of turns handed to the prompt.
	HistoryWindow int

	Logger *slog.Logger
}

// Engine answers questions grounded in the indexed corpus with per-session
// conversational context.
type Engine struct {
	retriever Retriever
	generator llm.Generator
	sessions  *session.Store
	indexSize Sizer
	persona   string
	topK      int
	window    int
	logger    *slog.Logger

	ready atomic.Bool
}

// New creates an Engine. It starts not ready; call SetReady once the index
// build has completed.
func New(cfg Config) *Engine {
	return &Engine{
		retriever: cfg.Retriever,
		generator: cfg.Generator,
		sessions:  cfg.Sessions,
		indexSize: cfg.Index,
		persona:   cfg.Persona,
		topK:      cfg.TopK,
		window:    cfg.HistoryWindow,
		logger:    cfg.Logger,
	}
}

// SetReady marks the startup index build complete.
func (e *Engine) SetReady() { e.ready.Store(true) }

// Answer runs one question through the pipeline and commits the exchange to
// the session. The session lock is never held across the retrieval or
// generation calls, and a failed generation commits nothing: no orphaned
// user turn.
func (e *Engine) Answer(ctx context.Context, sessionID, message string) (string, error) {
	if strings.TrimSpace(message) == "" {
		return "", fmt.Errorf("%w: empty message", ErrInvalidInput)
	}
	if !e.ready.Load() {
		return "", ErrIndexNotReady
	}

	st := e.sessions.GetOrCreate(sessionID)
	history := st.Window(e.window)

	chunks, err := e.retriever.Retrieve(ctx, message, e.topK)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrEmbedding, err)
	}

	prompt := RenderPrompt(PromptData{
		Persona: e.persona,
		Chunks:  chunks,
		History: history,
		Message: message,
	})

	start := time.Now()
	answer, err := e.generator.Generate(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrGeneration, err)
	}

	now := time.Now()
	st.AppendExchange(
		session.Turn{Role: session.RoleUser, Content: message, CreatedAt: now},
		session.Turn{Role: session.RoleAssistant, Content: answer, CreatedAt: now},
	)

	e.logger.Debug("answered",
		"session_id", sessionID,
		"chunks", len(chunks),
		"history_turns", len(history),
		"generation_ms", time.Since(start).Milliseconds())
	return answer, nil
}

// Reset discards the conversation for sessionID. Idempotent.
func (e *Engine) Reset(sessionID string) {
	e.sessions.Reset(sessionID)
}

// Health reports readiness and index size.
func (e *Engine) Health() Health {
	return Health{
		Ready:     e.ready.Load(),
		IndexSize: e.indexSize.Size(),
	}
}
