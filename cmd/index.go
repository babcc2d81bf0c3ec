package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jdai-labs/marketbot/internal/app"
	"github.com/jdai-labs/marketbot/internal/config"
)

// runIndex builds the index (writing the snapshot for the memory backend)
// and exits. Useful in deploy pipelines so the first serve starts warm.
func runIndex(cfg *config.Config, logger *slog.Logger) error {
	ctx := context.Background()

	a, err := app.Setup(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("building index: %w", err)
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Warn("closing application", "error", err)
		}
	}()

	h := a.Engine.Health()
	fmt.Printf("indexed %d chunks\n", h.IndexSize)
	return nil
}
