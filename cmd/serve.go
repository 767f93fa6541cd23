package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/danielolaszy/prism/internal/config"
	"github.com/danielolaszy/prism/internal/logging"
	"github.com/danielolaszy/prism/internal/server"
)

const shutdownTimeout = 15 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the dashboard API server",
	Long: `Run the dashboard API server.

Users sign in with their Atlassian account. Each session keeps its own Jira
snapshot, refreshed in the background and pushed to the browser over
/api/events.

Required environment:
  CLIENT_ID, CLIENT_SECRET, REDIRECT_URI   Atlassian OAuth 2.0 app

Optional:
  OPENAI_API_KEY   enables the assistant (stub replies without it)
  PORT             listen port (default 5000)

Example:
  prism serve --addr :8080`,
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, err := cmd.Flags().GetString("addr")
		if err != nil {
			return err
		}
		if addr != "" {
			cfg.Server.Addr = addr
		}

		if err := config.ValidateOAuthConfig(cfg); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		flush := startTelemetry(ctx)
		defer flush()

		srv := server.New(cfg, server.Deps{})

		errCh := make(chan error, 1)
		go func() {
			errCh <- srv.Start()
		}()

		select {
		case err := <-errCh:
			srv.Close()
			return err
		case <-ctx.Done():
		}

		logging.Info("shutting down", "sessions", srv.Sessions().Len())

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shut down cleanly: %w", err)
		}
		return <-errCh
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", "", "listen address, overrides PORT (e.g. ':8080')")
}
