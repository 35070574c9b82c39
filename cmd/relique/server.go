package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/macarrie/relique/internal/api"
	"github.com/macarrie/relique/internal/backup"
	"github.com/macarrie/relique/internal/config"
	"github.com/macarrie/relique/internal/daemon"
	"github.com/macarrie/relique/internal/db"
	"github.com/macarrie/relique/internal/logging"
	"github.com/macarrie/relique/internal/repository"
	"github.com/macarrie/relique/internal/server"
	"github.com/macarrie/relique/internal/tlsutil"
	"github.com/macarrie/relique/internal/websocket"
)

func newServerCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "server",
		Short: "Control relique server features",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "start",
		Short: "Start the relique server daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			runServer(cmd.Context(), flags)
			return nil
		},
	})
	return cmd
}

// runServer loads the configuration, opens the job store and runs the
// server daemon until a signal stops it. Startup failures exit with
// the matching sysexits code instead of returning.
func runServer(ctx context.Context, flags *rootFlags) {
	logger := logging.New("server", flags.debug)
	defer logger.Sync() //nolint:errcheck

	cfg, checks, err := config.LoadServer(flags.configPath("server.toml"))
	if err != nil {
		logger.Error("Could not load relique server configuration", zap.Error(err))
		os.Exit(exitConfig)
	}
	logChecks(logger, checks)
	if config.HasCritical(checks) {
		logger.Error("Fatal configuration errors found. Exiting relique")
		os.Exit(exitConfig)
	}
	logger.Info("Configuration checks passed")

	if err := tlsutil.EnsureCertificate(cfg.SSLCert, cfg.SSLKey, []string{cfg.PublicAddress, "localhost"}, logger); err != nil {
		logger.Error("Could not set up TLS certificate", zap.Error(err))
		os.Exit(exitSoftware)
	}

	database, err := db.New(db.Config{
		Driver: cfg.Database.Driver,
		DSN:    cfg.Database.DSN,
		Logger: logger,
	})
	if err != nil {
		logger.Error("Could not get database connection pool", zap.Error(err))
		os.Exit(exitDataErr)
	}
	defer db.Close(database) //nolint:errcheck

	jobs := repository.NewJobRepository(database)
	storage := backup.NewStorage(cfg.BackupStoragePath, jobs, logger)

	hub := websocket.NewHub()
	hubCtx, stopHub := context.WithCancel(ctx)
	defer stopHub()
	go hub.Run(hubCtx)

	router := server.NewRouter(server.RouterConfig{
		Jobs:    jobs,
		Storage: storage,
		Hub:     hub,
		Logger:  logger,
	})
	srv := api.NewServer(cfg.ListenAddr(), router)
	d := server.NewDaemon(cfg, jobs, logger)

	logger.Info("Starting relique server",
		zap.String("version", version),
		zap.String("bind_addr", cfg.BindAddr),
		zap.Int("port", cfg.Port),
		zap.Stringer("config_version", cfg.ConfigVersion),
	)
	if err := daemon.Run(ctx, d, srv, cfg.SSLCert, cfg.SSLKey, logger); err != nil {
		logger.Error("Could not start relique server", zap.Error(err))
		os.Exit(exitSoftware)
	}
}

// logChecks reports every configuration finding at the level matching
// its severity.
func logChecks(logger *zap.Logger, checks []config.CheckError) {
	for _, check := range checks {
		fields := []zap.Field{
			zap.String("key", check.Key),
			zap.String("desc", check.Desc),
		}
		if check.Level == config.SeverityCritical {
			logger.Error("Configuration check failed", fields...)
		} else {
			logger.Warn("Configuration check warning", fields...)
		}
	}
}
