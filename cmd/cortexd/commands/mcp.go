package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/cortex-recall/pkg/config"
	"github.com/Sumatoshi-tech/cortex-recall/pkg/cortex"
	"github.com/Sumatoshi-tech/cortex-recall/pkg/mcp"
	"github.com/Sumatoshi-tech/cortex-recall/pkg/observability"
	"github.com/Sumatoshi-tech/cortex-recall/pkg/provider"
	"github.com/Sumatoshi-tech/cortex-recall/pkg/provider/ollama"
	"github.com/Sumatoshi-tech/cortex-recall/pkg/store/pgvectorstore"
	"github.com/Sumatoshi-tech/cortex-recall/pkg/store/sqlitestore"
	"github.com/Sumatoshi-tech/cortex-recall/pkg/version"
)

// NewMCPCommand creates the MCP server command.
func NewMCPCommand() *cobra.Command {
	var (
		debug      bool
		configPath string
	)

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Start the MCP tool server for AI agent integration",
		Long: `Start a Model Context Protocol (MCP) server on stdio transport.

The server exposes five tools over the already-indexed repository:
  - cortex_search: semantic search over code chunks
  - cortex_git_search: classified search over commit history
  - cortex_explain: combined code + history evidence for a question
  - cortex_assess: risk synthesis for a proposed change
  - cortex_file_profile: stability/ownership profile for one file`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cobraCmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadConfig(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			providers, err := initMCPObservability(debug)
			if err != nil {
				return fmt.Errorf("init observability: %w", err)
			}

			defer func() {
				shutdownErr := providers.Shutdown(context.Background())
				if shutdownErr != nil {
					providers.Logger.Warn("observability shutdown failed", "error", shutdownErr)
				}
			}()

			red, redErr := observability.NewREDMetrics(providers.Meter)
			if redErr != nil {
				return fmt.Errorf("build RED metrics: %w", redErr)
			}

			c, closeCortex, err := openCortex(cobraCmd.Context(), cfg, providers.Logger)
			if err != nil {
				return fmt.Errorf("open cortex: %w", err)
			}
			defer closeCortex()

			deps := mcp.ServerDeps{
				Cortex:  c,
				Logger:  providers.Logger,
				Metrics: red,
				Tracer:  providers.Tracer,
			}

			srv := mcp.NewServer(deps)

			return srv.Run(cobraCmd.Context())
		},
	}

	cmd.Flags().BoolVar(&debug, "debug", false, "Enable debug logging to stderr")
	cmd.Flags().StringVar(&configPath, "config", "", "Path to a config file (defaults searched if empty)")

	return cmd
}

// openCortex opens the configured Store and wraps it with a Cortex
// facade over an Ollama-backed embedding pool. Callers must invoke the
// returned close function once done.
func openCortex(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*cortex.Cortex, func(), error) {
	st, err := openStore(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	pool := provider.NewPool(ollama.New(), logger)

	c := cortex.New(st, pool)

	return c, func() { _ = c.Close() }, nil
}

func openStore(ctx context.Context, cfg *config.Config) (cortex.Store, error) {
	switch cfg.Store.Backend {
	case "pgvector":
		return pgvectorstore.Open(ctx, cfg.Store.DSN)
	default:
		return sqlitestore.Open(ctx, cfg.Store.Path)
	}
}

func initMCPObservability(debug bool) (observability.Providers, error) {
	obsCfg := observability.DefaultConfig()
	obsCfg.ServiceVersion = version.Version
	obsCfg.OTLPEndpoint = os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	obsCfg.OTLPHeaders = observability.ParseOTLPHeaders(os.Getenv("OTEL_EXPORTER_OTLP_HEADERS"))
	obsCfg.OTLPInsecure = os.Getenv("OTEL_EXPORTER_OTLP_INSECURE") == "true"
	obsCfg.Mode = observability.ModeMCP
	obsCfg.LogJSON = true

	if debug {
		obsCfg.LogLevel = slog.LevelDebug
		obsCfg.DebugTrace = true
	}

	return observability.Init(obsCfg)
}
