package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/core/api"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/compat_oai/openai"
	"github.com/firebase/genkit/go/plugins/googlegenai"

	"github.com/jdai-labs/marketbot/internal/config"
)

// InitGenkit initializes the Genkit runtime with the configured provider
// plugin. Credentials come from the provider's usual environment variables
// (GEMINI_API_KEY / OPENAI_API_KEY).
func InitGenkit(ctx context.Context, cfg *config.Config) (*genkit.Genkit, error) {
	var g *genkit.Genkit

	switch cfg.Provider {
	case config.ProviderOpenAI:
		g = genkit.Init(ctx, genkit.WithPlugins(&openai.OpenAI{}))
		if g == nil {
			return nil, errors.New("initializing genkit with openai provider")
		}
		slog.Info("initialized Genkit with openai provider", "model", cfg.ModelName)

	default: // gemini
		g = genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))
		if g == nil {
			return nil, errors.New("initializing genkit with gemini provider")
		}
		slog.Info("initialized Genkit with gemini provider", "model", cfg.ModelName)
	}

	return g, nil
}

// GenkitEmbedder adapts a Genkit ai.Embedder to the Embedder contract.
type GenkitEmbedder struct {
	embedder ai.Embedder
}

// NewGenkitEmbedder looks up the embedder registered by the provider plugin.
// Providers register embedders differently:
//   - gemini: GoogleAIEmbedder(g, modelName)
//   - openai: auto-registered in Init(), looked up by model name
func NewGenkitEmbedder(g *genkit.Genkit, cfg *config.Config) (*GenkitEmbedder, error) {
	var embedder ai.Embedder
	switch cfg.Provider {
	case config.ProviderOpenAI:
		embedder = genkit.LookupEmbedder(g, api.NewName("openai", cfg.EmbedderModel))
	default: // gemini
		embedder = googlegenai.GoogleAIEmbedder(g, cfg.EmbedderModel)
	}
	if embedder == nil {
		return nil, fmt.Errorf("embedder %q not registered for provider %q",
			cfg.EmbedderModel, cfg.Provider)
	}
	return &GenkitEmbedder{embedder: embedder}, nil
}

// Embed converts each text to a vector, preserving input order.
func (e *GenkitEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	docs := make([]*ai.Document, len(texts))
	for i, t := range texts {
		docs[i] = ai.DocumentFromText(t, nil)
	}

	resp, err := e.embedder.Embed(ctx, &ai.EmbedRequest{Input: docs})
	if err != nil {
		return nil, fmt.Errorf("embed failed: %w", err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("embed returned %d vectors for %d texts",
			len(resp.Embeddings), len(texts))
	}

	vectors := make([][]float32, len(resp.Embeddings))
	for i, emb := range resp.Embeddings {
		vectors[i] = emb.Embedding
	}
	return vectors, nil
}

// GenkitGenerator adapts Genkit text generation to the Generator contract.
type GenkitGenerator struct {
	g         *genkit.Genkit
	modelName string // provider-qualified, e.g. "googleai/gemini-2.5-flash"
}

// NewGenkitGenerator creates a generator for the configured model.
func NewGenkitGenerator(g *genkit.Genkit, cfg *config.Config) *GenkitGenerator {
	prefix := "googleai"
	if cfg.Provider == config.ProviderOpenAI {
		prefix = "openai"
	}
	return &GenkitGenerator{
		g:         g,
		modelName: prefix + "/" + cfg.ModelName,
	}
}

// Generate runs the model on the rendered prompt and returns its text.
func (gen *GenkitGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := genkit.Generate(ctx, gen.g,
		ai.WithModelName(gen.modelName),
		ai.WithMessages(ai.NewUserMessage(ai.NewTextPart(prompt))),
	)
	if err != nil {
		return "", fmt.Errorf("generate failed: %w", err)
	}
	return resp.Text(), nil
}
