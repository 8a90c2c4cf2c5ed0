// extperm-mcp exposes the extension auditor as MCP tools so that an AI host
// can ask which installed extensions are risky and why.
//
// Add to an MCP host configuration:
//
//	{
//	  "mcpServers": {
//	    "extperm": {
//	      "command": "/path/to/extperm-mcp"
//	    }
//	  }
//	}
//
// To query a running extperm-server instead of the local browser profiles:
//
//	"args": ["--server", "http://localhost:8080"]
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/jmerrifield20/extperm/internal/config"
	"github.com/jmerrifield20/extperm/internal/mcpbridge"
	"github.com/jmerrifield20/extperm/pkg/client"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// version is overridden via -ldflags "-X main.version=...".
var version = "dev"

var (
	serverURL string
	token     string
	cfgFile   string
	insecure  bool
	cacheTTL  time.Duration
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "extperm-mcp",
	Short: "MCP bridge for the extension permission auditor",
	Long: `extperm-mcp is a stdio MCP server that exposes three tools to any
MCP-compatible AI host:

  audit_extensions    score every installed extension, optionally above a tier
  evaluate_extension  score an extension from its permission lists
  explain_permission  show a permission's weight and risk annotation

Without --server the bridge reads local browser profiles itself. With --server
it forwards every call to an extperm-server.

All logging goes to stderr so it does not interfere with the protocol.`,
	SilenceUsage: true,
	Args:         cobra.NoArgs,
	RunE:         run,
}

func init() {
	rootCmd.Flags().StringVar(&serverURL, "server", "", "extperm-server URL (default: audit local profiles)")
	rootCmd.Flags().StringVar(&token, "token", "", "Bearer token sent to --server")
	rootCmd.Flags().StringVar(&cfgFile, "config", "", "config file for local mode")
	rootCmd.Flags().BoolVar(&insecure, "insecure", false, "Skip TLS certificate verification (development only)")
	rootCmd.Flags().DurationVar(&cacheTTL, "cache-ttl", time.Minute, "Permission explanation cache TTL with --server (0 disables)")
}

func run(cmd *cobra.Command, _ []string) error {
	// zap's production config writes to stderr, leaving stdout to the protocol.
	logger, err := zap.NewProduction()
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	backend, err := newBackend(logger)
	if err != nil {
		return err
	}

	server := mcpbridge.NewServer(os.Stdout, mcpbridge.NewToolRegistry(backend), logger)
	server.SetVersion(version)

	logger.Info("extperm MCP bridge ready",
		zap.String("server", serverURL),
		zap.Strings("tools", []string{"audit_extensions", "evaluate_extension", "explain_permission"}),
	)
	return server.Serve(cmd.Context(), os.Stdin)
}

func newBackend(logger *zap.Logger) (mcpbridge.Backend, error) {
	if serverURL == "" {
		v := viper.GetViper()
		if err := config.Load(v, "extperm", cfgFile); err != nil {
			return nil, err
		}
		svc, err := config.NewAuditService(v, logger)
		if err != nil {
			return nil, fmt.Errorf("build audit service: %w", err)
		}
		logger.Info("auditing local inventory", zap.String("mode", v.GetString("inventory.mode")))
		return mcpbridge.NewServiceBackend(svc), nil
	}

	var opts []client.Option
	if token != "" {
		opts = append(opts, client.WithBearerToken(token))
	}
	if insecure {
		opts = append(opts, client.WithInsecureSkipVerify())
		logger.Warn("TLS verification disabled; do not use in production")
	}
	if cacheTTL > 0 {
		opts = append(opts, client.WithCacheTTL(cacheTTL))
	}

	c, err := client.New(serverURL, opts...)
	if err != nil {
		return nil, fmt.Errorf("create extperm client: %w", err)
	}
	return mcpbridge.NewClientBackend(c), nil
}
