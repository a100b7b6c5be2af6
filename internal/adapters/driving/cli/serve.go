package cli

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/brightpath-labs/tutorcore/internal/adapters/driving/httpapi"
	"github.com/brightpath-labs/tutorcore/internal/logger"
)

var serveAddr string

// backendCheck validates external backends before serving. Set via
// SetBackendCheck; a failure degrades to a warning so the server still
// starts while a backend is briefly down.
var backendCheck func(context.Context) error

// SetBackendCheck injects the backend reachability probe run on serve.
func SetBackendCheck(check func(context.Context) error) {
	backendCheck = check
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API server",
	Long:  `Serves the ingestion and tutoring operations over a JSON HTTP API.`,
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8080", "listen address")
	rootCmd.AddCommand(serveCmd)
}

func runServe(_ *cobra.Command, _ []string) error {
	if ingestService == nil || tutorService == nil {
		return errors.New("services not configured")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if backendCheck != nil {
		checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if err := backendCheck(checkCtx); err != nil {
			logger.Warn("Backend check failed: %v", err)
		}
		cancel()
	}

	server := httpapi.NewServer(ingestService, tutorService, serveAddr)
	return server.Start(ctx)
}
