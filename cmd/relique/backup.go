package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/macarrie/relique/internal/api"
	"github.com/macarrie/relique/internal/client"
	"github.com/macarrie/relique/internal/logging"
	"github.com/macarrie/relique/internal/types"
)

// backupStartFlags names which client and module to back up right now.
type backupStartFlags struct {
	client     string
	module     string
	backupType string
}

func newBackupCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Manual backup related commands",
	}
	cmd.AddCommand(newBackupStartCmd(flags))
	cmd.AddCommand(newBackupListCmd(flags))
	return cmd
}

func newBackupStartCmd(flags *rootFlags) *cobra.Command {
	start := &backupStartFlags{}
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start a manual backup",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBackupStart(flags, start)
		},
	}
	cmd.Flags().StringVar(&start.client, "client", "", "Client to back up")
	cmd.Flags().StringVarP(&start.module, "module", "m", "", "Backup module to use")
	cmd.Flags().StringVarP(&start.backupType, "type", "t", "", "Backup type (full, diff)")
	cmd.MarkFlagRequired("client") //nolint:errcheck
	cmd.MarkFlagRequired("module") //nolint:errcheck
	return cmd
}

func newBackupListCmd(flags *rootFlags) *cobra.Command {
	list := &jobsListFlags{}
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List backups",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runJobsList(flags, list)
		},
	}
	addJobsListFlags(cmd, list)
	return cmd
}

// runBackupStart resolves the target client from the server
// configuration and asks its daemon to launch a backup of the given
// module immediately.
func runBackupStart(flags *rootFlags, start *backupStartFlags) error {
	logger := logging.New("cli", flags.debug)
	cfg := mustLoadServerConfig(logger, flags)

	var target *types.Client
	for i := range cfg.Clients {
		if cfg.Clients[i].Name == start.client {
			target = &cfg.Clients[i]
			break
		}
	}
	if target == nil {
		logger.Error("Client not found in server configuration", zap.String("client", start.client))
		os.Exit(exitConfig)
	}

	params := client.StartBackupParams{Module: start.module}
	if start.backupType != "" {
		backupType, err := types.ParseBackupType(start.backupType)
		if err != nil {
			return err
		}
		params.BackupType = &backupType
	}

	job, err := postBackupStart(cfg.StrictSSLCertificateCheck, *target, params)
	if err != nil {
		return fmt.Errorf("could not start backup on client '%s': %w", target.Name, err)
	}

	fmt.Printf("Backup job queued on client '%s'\n", target.Name)
	fmt.Printf("Job:         %s\n", job.UUID)
	fmt.Printf("Module:      %s\n", job.Module.Name)
	fmt.Printf("Backup type: %s\n", job.BackupType)
	return nil
}

// postBackupStart calls the manual backup trigger on a client daemon
// and returns the queued job.
func postBackupStart(strictSSL bool, target types.Client, params client.StartBackupParams) (types.BackupJob, error) {
	payload, err := json.Marshal(params)
	if err != nil {
		return types.BackupJob{}, err
	}

	url := fmt.Sprintf("https://%s/api/v1/backup/start",
		net.JoinHostPort(target.Address, strconv.Itoa(target.APIPort())))
	httpClient := api.NewHTTPClient(strictSSL, api.ControlTimeout)
	resp, err := httpClient.Post(url, "application/json", bytes.NewReader(payload))
	if err != nil {
		return types.BackupJob{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return types.BackupJob{}, err
	}
	if resp.StatusCode != http.StatusOK {
		return types.BackupJob{}, fmt.Errorf("client answered %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var envelope struct {
		Data types.BackupJob `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return types.BackupJob{}, fmt.Errorf("parse client response: %w", err)
	}
	return envelope.Data, nil
}
