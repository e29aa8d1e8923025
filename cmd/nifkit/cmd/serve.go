/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/ssargent/nifkit/pkg/api"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the REST API server",
	Long: `Serve inspect and convert over HTTP. Requests under /api/v1 must carry
the configured API key in the X-API-Key header; Prometheus metrics are
served at /metrics.

Examples:
  nifkit serve
  nifkit serve --port 9000 --bind 0.0.0.0 --api-key mysecretkey`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := container.Config()
		if cmd.Flags().Changed("port") {
			cfg.Server.Port, _ = cmd.Flags().GetInt("port")
		}
		if cmd.Flags().Changed("bind") {
			cfg.Server.Bind, _ = cmd.Flags().GetString("bind")
		}
		if cmd.Flags().Changed("api-key") {
			cfg.Server.APIKey, _ = cmd.Flags().GetString("api-key")
		}
		if err := cfg.Server.Validate(); err != nil {
			return errors.Wrap(err, "invalid server options")
		}
		if cfg.Server.APIKey == "" {
			warning(cmd.OutOrStdout(), "No API key configured; /api/v1 is open to every client")
		}

		c, err := container.Codec()
		if err != nil {
			return err
		}
		metrics, reg := container.Metrics()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		cmd.Printf("Starting nifkit server on %s\n", cfg.Server.Address())
		starter := container.GetServerFactory().CreateServerStarter()
		return starter.StartServer(ctx, c, api.ServerConfig{
			Address: cfg.Server.Address(),
			APIKey:  cfg.Server.APIKey,
		}, reg, metrics, container.Logger())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().IntP("port", "p", 8080, "Port to listen on")
	serveCmd.Flags().String("bind", "127.0.0.1", "Address to bind server to")
	serveCmd.Flags().String("api-key", "", "API key required in X-API-Key")
}
