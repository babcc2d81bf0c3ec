// Package cmd contains the marketbot command-line entry points.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/jdai-labs/marketbot/internal/config"
	"github.com/jdai-labs/marketbot/internal/log"
)

// Version information (injected at build time via ldflags).
var (
	AppVersion = "0.1.0"
	BuildTime  = "unknown"
	GitCommit  = "unknown"
)

// Execute is the main entry point. It handles flag parsing and command
// routing; main.go stays a minimal shim.
func Execute() error {
	// Handle special flags before full initialization so --version and
	// --help work even if config is invalid.
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "version", "--version", "-v":
			return printVersionInfo()
		case "help", "--help", "-h":
			printHelp()
			return nil
		}
	}

	logger := log.New(log.Config{Level: log.LevelFromEnv()})
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	if err := checkRequiredEnv(cfg); err != nil {
		return err
	}

	command := "serve"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}

	switch command {
	case "serve":
		return runServe(cfg, logger)
	case "index":
		return runIndex(cfg, logger)
	case "ask":
		return runAsk(cfg, logger, os.Args[2:])
	default:
		printHelp()
		return fmt.Errorf("unknown command: %s", command)
	}
}

// checkRequiredEnv verifies the API key for the configured provider is set.
func checkRequiredEnv(cfg *config.Config) error {
	envVar := "GEMINI_API_KEY"
	if cfg.Provider == config.ProviderOpenAI {
		envVar = "OPENAI_API_KEY"
	}
	if os.Getenv(envVar) == "" {
		fmt.Fprintf(os.Stderr, "Error: %s environment variable not set\n\n", envVar)
		fmt.Fprintf(os.Stderr, "marketbot requires an API key for the %q provider:\n", cfg.Provider)
		fmt.Fprintf(os.Stderr, "  export %s=your-api-key\n", envVar)
		return fmt.Errorf("%s not set", envVar)
	}
	return nil
}

// printVersionInfo displays version information.
func printVersionInfo() error {
	fmt.Printf("marketbot v%s\n", AppVersion)
	fmt.Printf("Build: %s\n", BuildTime)
	fmt.Printf("Commit: %s\n", GitCommit)
	return nil
}

// printHelp displays the help message.
func printHelp() {
	fmt.Println("marketbot - retrieval-grounded marketing chatbot")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  marketbot serve         Start the HTTP API server (default)")
	fmt.Println("  marketbot index         Build the index snapshot and exit")
	fmt.Println("  marketbot ask <text>    Answer one question on the command line")
	fmt.Println("  marketbot --version     Show version information")
	fmt.Println("  marketbot --help        Show this help")
	fmt.Println()
	fmt.Println("Environment Variables:")
	fmt.Println("  GEMINI_API_KEY    API key for the gemini provider (default)")
	fmt.Println("  OPENAI_API_KEY    API key for the openai provider")
	fmt.Println("  MARKETBOT_*       Override any config key, e.g. MARKETBOT_TOP_K=8")
	fmt.Println("  DATABASE_URL      PostgreSQL URL for the postgres index backend")
	fmt.Println("  DEBUG             Enable debug logging")
	fmt.Println()
	fmt.Println("Configuration file: ~/.marketbot/config.yaml")
}
