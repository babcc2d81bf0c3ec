package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/jdai-labs/marketbot/internal/app"
	"github.com/jdai-labs/marketbot/internal/config"
)

// runAsk answers a single question and prints it to stdout. Each invocation
// is its own throwaway session; logs go to stderr so stdout stays clean for
// the answer.
func runAsk(cfg *config.Config, logger *slog.Logger, args []string) error {
	question := strings.TrimSpace(strings.Join(args, " "))
	if question == "" {
		return fmt.Errorf("usage: marketbot ask <question>")
	}

	ctx := context.Background()
	a, err := app.Setup(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("setting up application: %w", err)
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Warn("closing application", "error", err)
		}
	}()

	answer, err := a.Engine.Answer(ctx, uuid.New().String(), question)
	if err != nil {
		return fmt.Errorf("answering: %w", err)
	}

	fmt.Println(answer)
	return nil
}
