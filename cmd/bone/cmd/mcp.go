package cmd

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/Mdia92/bone-framework-kiroween-edition/internal/version"
	"github.com/Mdia92/bone-framework-kiroween-edition/pkg/defaults"
	"github.com/Mdia92/bone-framework-kiroween-edition/pkg/resource"
	"github.com/Mdia92/bone-framework-kiroween-edition/pkg/tool"
	"github.com/Mdia92/bone-framework-kiroween-edition/templates"
)

var mcpOffline bool

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run an MCP server over stdio",
	Long: `Run a Model Context Protocol server on stdin/stdout exposing the
generate_incident_sop and generate_onboarding_plan tools, a getting-started
guide and previews of the offline templates as resources.

Logs go to stderr. When metrics are enabled they are served on the
configured metrics port.`,
	RunE: runMCP,
}

func init() {
	rootCmd.AddCommand(mcpCmd)

	mcpCmd.Flags().BoolVar(&mcpOffline, "offline", false, "skip the generation provider and use built-in templates")
}

func runMCP(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	svc, err := buildService(cfg, mcpOffline)
	if err != nil {
		return err
	}

	reg := tool.NewRegistry(log)
	tool.Register(log, reg, svc)

	tmpl, err := templates.NewRegistry(log)
	if err != nil {
		return err
	}

	resources := resource.NewRegistry(log)
	resource.RegisterTemplateResources(log, resources, tmpl)
	resource.RegisterGettingStartedResources(log, resources, reg)

	mcpServer := server.NewMCPServer(
		defaults.ServerName,
		version.Version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
		server.WithRecovery(),
	)
	reg.AddTo(mcpServer)
	resources.AddTo(mcpServer)

	if cfg.Observability.MetricsEnabled {
		stop := serveMetrics(cfg.Observability.MetricsPort)
		defer stop()
	}

	log.WithFields(logrus.Fields{
		"tools":     len(reg.List()),
		"resources": len(resources.ListStatic()),
	}).Info("Serving MCP over stdio")

	return server.ServeStdio(mcpServer)
}

// serveMetrics exposes /metrics on port in the background and returns a
// function that shuts it down.
func serveMetrics(port int) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              ":" + strconv.Itoa(port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("Metrics server error")
		}
	}()

	log.WithField("addr", srv.Addr).Info("Serving metrics")

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		_ = srv.Shutdown(ctx)
	}
}
