package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Mdia92/bone-framework-kiroween-edition/pkg/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Run the HTTP API.

Routes:
  POST /api/incidents/generate-sop   {"rawContext": "..."}
  POST /api/onboarding/generate-plan {"role": "...", "tools": "...", "goals": "..."}
  POST /api/pipeline/run             {"content": "...", "context": {...}, "category": "..."}
  GET  /health, /ready, /metrics, /openapi.json, /docs`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	srv, err := server.NewBuilder(log, cfg).Build()
	if err != nil {
		return fmt.Errorf("building server: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := srv.Start(ctx); err != nil {
		return err
	}

	<-ctx.Done()

	log.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	return srv.Stop(shutdownCtx)
}
