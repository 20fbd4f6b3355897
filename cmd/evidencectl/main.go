// Package main is the operator CLI for the clinical evidence engine: ad hoc
// searches, query analysis, corpus seeding and the MCP stdio server.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/kirillkom/clinical-evidence-engine/internal/bootstrap"
	"github.com/kirillkom/clinical-evidence-engine/internal/config"
	"github.com/kirillkom/clinical-evidence-engine/internal/observability/logging"
)

// version is set at build time via ldflags.
var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "evidencectl",
	Short: "Query and operate the clinical evidence engine",
	Long: `evidencectl runs the evidence pipeline in-process against the configured
retrieval backend, or sends searches to running workers over NATS.

Configuration comes from the environment (and .env when present). A YAML file
passed with --config overrides the reranker section.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		_ = godotenv.Load()
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "YAML overlay for reranker settings (default: $EVIDENCE_CONFIG)")
	rootCmd.PersistentFlags().String("log-level", "", "log level override (debug, info, warn, error)")
}

// loadConfig reads the environment and applies the --config overlay.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		return config.LoadWithOverlay()
	}
	cfg := config.Load()
	if err := cfg.ApplyFile(path); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// newLogger logs to stderr so stdout stays clean for results and stdio framing.
func newLogger(cmd *cobra.Command, cfg config.Config) *slog.Logger {
	level := cfg.LogLevel
	if override, _ := cmd.Flags().GetString("log-level"); override != "" {
		level = override
	}
	return logging.NewJSONLoggerTo(os.Stderr, "evidencectl", level)
}

func openApp(ctx context.Context, cmd *cobra.Command) (*bootstrap.App, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	app, err := bootstrap.New(ctx, cfg, newLogger(cmd, cfg), nil)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: %w", err)
	}
	return app, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
