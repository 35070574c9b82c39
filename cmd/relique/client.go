package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/macarrie/relique/internal/api"
	"github.com/macarrie/relique/internal/backup"
	"github.com/macarrie/relique/internal/client"
	"github.com/macarrie/relique/internal/config"
	"github.com/macarrie/relique/internal/daemon"
	"github.com/macarrie/relique/internal/hooks"
	"github.com/macarrie/relique/internal/logging"
	"github.com/macarrie/relique/internal/tlsutil"
)

func newClientCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "client",
		Short: "Control relique client features",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "start",
		Short: "Start the relique client daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			runClient(cmd.Context(), flags)
			return nil
		},
	})
	return cmd
}

// runClient starts the client daemon. The client needs no job store:
// its backup configuration arrives over the wire from the server and
// lives in memory only.
func runClient(ctx context.Context, flags *rootFlags) {
	logger := logging.New("client", flags.debug)
	defer logger.Sync() //nolint:errcheck

	cfg, err := config.LoadClient(flags.configPath("client.toml"))
	if err != nil {
		logger.Error("Could not load relique client configuration", zap.Error(err))
		os.Exit(exitConfig)
	}

	if err := tlsutil.EnsureCertificate(cfg.SSLCert, cfg.SSLKey, []string{cfg.BindAddr, "localhost"}, logger); err != nil {
		logger.Error("Could not set up TLS certificate", zap.Error(err))
		os.Exit(exitSoftware)
	}

	runner := backup.NewRunner(cfg.StrictSSLCertificateCheck, hooks.NewRunner(0), logger)
	d := client.NewDaemon(runner, logger)

	router := client.NewRouter(d, logger)
	srv := api.NewServer(cfg.ListenAddr(), router)

	logger.Info("Starting relique client",
		zap.String("version", version),
		zap.String("bind_addr", cfg.BindAddr),
		zap.Int("port", cfg.Port),
	)
	if err := daemon.Run(ctx, d, srv, cfg.SSLCert, cfg.SSLKey, logger); err != nil {
		logger.Error("Could not start relique client", zap.Error(err))
		os.Exit(exitSoftware)
	}
}
