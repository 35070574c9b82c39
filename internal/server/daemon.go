// Package server implements the relique server daemon: the periodic
// configuration sync loop that pushes versioned configuration to client
// daemons, and the HTTP API serving the backup protocol, job queries
// and the live event stream.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/macarrie/relique/internal/api"
	"github.com/macarrie/relique/internal/config"
	"github.com/macarrie/relique/internal/daemon"
	"github.com/macarrie/relique/internal/metrics"
	"github.com/macarrie/relique/internal/repository"
	"github.com/macarrie/relique/internal/types"
)

// lowStorageThreshold is the used-space percentage above which the run
// loop warns about backup storage filling up.
const lowStorageThreshold = 90.0

// Daemon holds the server run-loop state. Configuration is guarded by
// a read/write lock: the loop and HTTP handlers take reader locks,
// configuration reloads take the writer lock.
type Daemon struct {
	mu     sync.RWMutex
	cfg    config.Config
	jobs   repository.JobRepository
	logger *zap.Logger
}

// NewDaemon creates the server daemon around a loaded configuration
// and the job store.
func NewDaemon(cfg config.Config, jobs repository.JobRepository, logger *zap.Logger) *Daemon {
	return &Daemon{
		cfg:    cfg,
		jobs:   jobs,
		logger: logger.Named("server"),
	}
}

// Config returns a snapshot of the current configuration.
func (d *Daemon) Config() config.Config {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.cfg
}

// LoopFunc runs one iteration of the server run loop: push the current
// configuration to every client whose reported version differs, then
// refresh the job and storage gauges.
func (d *Daemon) LoopFunc(ctx context.Context) (daemon.Stopping, error) {
	cfg := d.Config()

	if len(cfg.Clients) == 0 {
		d.logger.Info("No clients found in configuration")
	} else {
		d.syncClients(ctx, cfg)
	}

	d.reportActiveJobs(ctx)
	d.refreshStorageGauges(cfg.BackupStoragePath)

	return daemon.Continue, nil
}

// ReceivedSignal stops the daemon on any termination signal.
func (d *Daemon) ReceivedSignal(sig os.Signal) daemon.Stopping {
	return daemon.Stop
}

// Shutdown releases run-loop resources. The job store is owned by the
// command layer and closed there.
func (d *Daemon) Shutdown() error {
	d.logger.Info("Stopping relique server daemon")
	return nil
}

// syncClients performs the configuration version handshake with every
// known client. A client that cannot be reached is skipped until the
// next loop iteration; one that reports a different version (or none)
// receives the full configuration record.
func (d *Daemon) syncClients(ctx context.Context, cfg config.Config) {
	for i := range cfg.Clients {
		client := cfg.Clients[i]
		fields := []zap.Field{
			zap.String("client", client.Name),
			zap.String("address", client.Address),
		}

		version, err := d.fetchClientVersion(ctx, cfg, client)
		if err != nil {
			d.logger.Error("Could not get client version for client", append(fields, zap.Error(err))...)
			continue
		}

		if version.Matches(cfg.ConfigVersion) {
			d.logger.Debug("Client configuration is up to date", fields...)
			continue
		}

		d.logger.Info("Sending configuration to client",
			append(fields,
				zap.String("client_version", version.String()),
				zap.Stringer("server_version", cfg.ConfigVersion),
			)...)
		if err := d.pushConfig(ctx, cfg, client); err != nil {
			d.logger.Error("Could not send configuration to client", append(fields, zap.Error(err))...)
		}
	}
}

// reportActiveJobs lists the jobs currently marked active in the job
// store, refreshes the gauge and logs each job with its client.
func (d *Daemon) reportActiveJobs(ctx context.Context) {
	active, err := d.jobs.Active(ctx)
	if err != nil {
		d.logger.Error("Could not list active jobs", zap.Error(err))
		return
	}
	metrics.SetActiveJobs(len(active))

	d.logger.Info("Backup jobs currently active", zap.Int("count", len(active)))
	for _, job := range active {
		d.logger.Info("Active backup job",
			zap.String("job", job.UUID.String()),
			zap.String("client", job.Client.Name),
			zap.String("module", job.Module.Name),
			zap.Stringer("backup_type", job.BackupType),
		)
	}
}

// refreshStorageGauges updates the backup storage gauges and warns when
// the filesystem holding the backups runs low on space.
func (d *Daemon) refreshStorageGauges(path string) {
	usedPercent, err := metrics.UpdateStorage(path)
	if err != nil {
		d.logger.Debug("Could not read backup storage usage",
			zap.String("path", path),
			zap.Error(err))
		return
	}
	if usedPercent > lowStorageThreshold {
		d.logger.Warn("Backup storage is running low on space",
			zap.String("path", path),
			zap.Float64("used_percent", usedPercent))
	}
}

// fetchClientVersion asks a client daemon which configuration version
// it currently runs.
func (d *Daemon) fetchClientVersion(ctx context.Context, cfg config.Config, client types.Client) (types.ConfigVersion, error) {
	body, err := d.request(ctx, cfg, http.MethodGet, client, "/api/v1/config/version", nil)
	if err != nil {
		return types.ConfigVersion{}, err
	}

	var version types.ConfigVersion
	if err := json.Unmarshal(body, &version); err != nil {
		return types.ConfigVersion{}, fmt.Errorf("parse version reported by client: %w", err)
	}
	return version, nil
}

// pushConfig sends the full client record, schedules and version
// included, to the client daemon.
func (d *Daemon) pushConfig(ctx context.Context, cfg config.Config, client types.Client) error {
	_, err := d.request(ctx, cfg, http.MethodPost, client, "/api/v1/config", client)
	return err
}

// request performs one HTTP exchange with a client daemon API and
// returns the response body. Non-200 answers are turned into errors
// carrying the response body.
func (d *Daemon) request(ctx context.Context, cfg config.Config, method string, client types.Client, path string, payload any) ([]byte, error) {
	url := fmt.Sprintf("https://%s%s",
		net.JoinHostPort(client.Address, strconv.Itoa(client.APIPort())), path)

	var reqBody io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode request payload: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return nil, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	httpClient := api.NewHTTPClient(cfg.StrictSSLCertificateCheck, api.ControlTimeout)
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("client answered %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return body, nil
}
