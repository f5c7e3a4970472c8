package cmd

import (
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"membership-backup/internal/errors"
	"membership-backup/internal/server"
)

var serveAddr string

// serveCmd runs the operator HTTP API
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the operator HTTP API",
	Long: `Start the operator HTTP API and block until interrupted.

The API exposes backup triggering, job status, run history, artifact
download, restore and a dashboard summary under /api/backups.

Examples:
  # Serve on the default address
  membership-backup serve --config config.yaml

  # Serve on an explicit address
  membership-backup serve --config config.yaml --addr :9090`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default :8085)")
	viper.BindPFlag("server.addr", serveCmd.Flags().Lookup("addr"))

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	eng, err := newEngine()
	if err != nil {
		return err
	}

	srv := server.New(eng.config.Server.Addr, eng.runner, eng.restorer, eng.markers, eng.logger)

	shutdown := errors.NewGracefulShutdownHandler()
	shutdown.RegisterShutdownFunc(eng.Close)
	shutdown.RegisterShutdownFunc(func() error {
		ctx, cancel := errors.CreateContextWithTimeout(30 * time.Second)
		defer cancel()
		return srv.Shutdown(ctx)
	})
	shutdown.Start()
	defer shutdown.Stop()

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}

	shutdown.WaitForShutdown()
	eng.logger.Info("Server stopped")
	return nil
}
