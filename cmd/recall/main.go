// Command recall is a personal assistant that remembers facts about you
// across sessions.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/lexlapax/recall/pkg/assistant"
	"github.com/lexlapax/recall/pkg/config"
	"github.com/lexlapax/recall/pkg/log"
	"github.com/spf13/cobra"
)

var (
	configPath string
	confirm    bool
	stdinMode  bool
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "recall",
	Short: "A personal assistant with long-term fact memory",
	Long: titleStyle.Render("recall") + " - a personal assistant that remembers what you tell it\n\n" +
		"Facts about you are extracted from each exchange, stored with embeddings\n" +
		"and brought back into later conversations when they are relevant.",
	SilenceUsage: true,
	RunE:         run,
}

func init() {
	rootCmd.Flags().StringVar(&configPath, "config", "", "path to configuration file (defaults apply when empty)")
	rootCmd.Flags().BoolVar(&confirm, "confirm", false, "ask before storing each extracted fact")
	rootCmd.Flags().BoolVarP(&stdinMode, "stdin", "s", false, "read commands from stdin and exit when done")
	rootCmd.Flags().StringVar(&logLevel, "log-level", "", "override the configured log level (debug, info, warn, error)")
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, _ []string) error {
	if err := config.LoadDotEnv(); err != nil {
		return err
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if confirm {
		cfg.Extraction.Confirm = true
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}

	logger := log.Setup(log.Config{
		Level:  log.Level(cfg.Logging.Level),
		Format: log.Format(cfg.Logging.Format),
	})
	sessionID := uuid.New().String()
	ctx := log.WithLogger(cmd.Context(), log.WithSession(logger, sessionID))

	log.InfoContext(ctx, "Starting recall", "config", configPath, "session_id", sessionID)

	in := newInput(stdinMode)
	defer in.Close()

	a, err := assistant.NewFromConfig(ctx, cfg, assistant.WithConfirmer(newConfirmer(in)))
	if err != nil {
		log.ErrorContext(ctx, "Failed to initialize assistant", "error", err)
		return err
	}
	defer a.Close()

	sh := newShell(a, cfg, os.Stdout)
	sh.banner()
	return sh.loop(ctx, in)
}
