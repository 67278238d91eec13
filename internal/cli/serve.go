package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mrz1836/krypt/internal/api"
)

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level flag variables
var (
	// serveListen overrides api.listen.
	serveListen string
	// serveAllowRemote accepts non-loopback clients.
	serveAllowRemote bool
)

// serveCmd runs the HTTP API.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the JSON API",
	Long: `Run the JSON API over one coordinator until interrupted. Only loopback
clients are accepted unless --allow-remote is given.

Example:
  krypt serve
  krypt serve --listen 127.0.0.1:9000`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveListen, "listen", "", "listen address (default: api.listen)")
	serveCmd.Flags().BoolVar(&serveAllowRemote, "allow-remote", false, "accept clients that are not on loopback")
}

func runServe(cmd *cobra.Command, _ []string) error {
	listen := serveListen
	if listen == "" {
		listen = cfg.API.Listen
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	cmd.SetContext(ctx)

	return withSession(cmd, func(ctx context.Context, s *Session) error {
		initialize(ctx, cmd, s)

		router := api.NewRouter(&api.Config{
			Coordinator: s.Coordinator,
			Metrics:     registry,
			Logger:      logger.Zap(),
			AllowRemote: serveAllowRemote,
		})

		_ = commandFormatter(cmd).Printf("Listening on http://%s\n", listen)
		return api.Serve(ctx, listen, router, logger.Zap())
	})
}
