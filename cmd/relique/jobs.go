package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/macarrie/relique/internal/api"
	"github.com/macarrie/relique/internal/config"
	"github.com/macarrie/relique/internal/logging"
	"github.com/macarrie/relique/internal/types"
)

// jobsListFlags filters the jobs listing, mirroring the query
// parameters of GET /api/v1/jobs.
type jobsListFlags struct {
	client     string
	module     string
	backupType string
	limit      int
}

func newJobsCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "View backup/restore jobs details",
	}
	cmd.AddCommand(newJobsListCmd(flags))
	cmd.AddCommand(newJobsShowCmd(flags))
	return cmd
}

func newJobsListCmd(flags *rootFlags) *cobra.Command {
	list := &jobsListFlags{}
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List backup jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runJobsList(flags, list)
		},
	}
	addJobsListFlags(cmd, list)
	return cmd
}

func addJobsListFlags(cmd *cobra.Command, list *jobsListFlags) {
	cmd.Flags().StringVar(&list.client, "client", "", "Filter by client name")
	cmd.Flags().StringVarP(&list.module, "module", "m", "", "Filter by backup module name")
	cmd.Flags().StringVarP(&list.backupType, "type", "t", "", "Filter by backup type (full, diff)")
	cmd.Flags().IntVar(&list.limit, "limit", 0, "Maximum number of jobs to list")
}

func newJobsShowCmd(flags *rootFlags) *cobra.Command {
	var id string
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show details about a specific job",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runJobsShow(flags, id)
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "Job ID")
	cmd.MarkFlagRequired("id") //nolint:errcheck
	return cmd
}

func runJobsList(flags *rootFlags, list *jobsListFlags) error {
	logger := logging.New("cli", flags.debug)
	cfg := mustLoadServerConfig(logger, flags)
	mustPingServer(logger, cfg)

	query := url.Values{}
	if list.client != "" {
		query.Set("client", list.client)
	}
	if list.module != "" {
		query.Set("module", list.module)
	}
	if list.backupType != "" {
		if _, err := types.ParseBackupType(list.backupType); err != nil {
			return err
		}
		query.Set("type", list.backupType)
	}
	if list.limit > 0 {
		query.Set("limit", strconv.Itoa(list.limit))
	}

	path := "/api/v1/jobs"
	if len(query) > 0 {
		path += "?" + query.Encode()
	}

	var jobs []types.BackupJob
	if err := serverGet(cfg, path, &jobs); err != nil {
		return fmt.Errorf("could not get job list from server: %w", err)
	}

	printJobsTable(jobs)
	return nil
}

func runJobsShow(flags *rootFlags, id string) error {
	logger := logging.New("cli", flags.debug)

	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("invalid job id %q: %w", id, err)
	}

	cfg := mustLoadServerConfig(logger, flags)
	mustPingServer(logger, cfg)

	var job types.BackupJob
	if err := serverGet(cfg, "/api/v1/jobs/"+id, &job); err != nil {
		return fmt.Errorf("could not get job details from server: %w", err)
	}

	fmt.Printf("Job:         %s\n", job.UUID)
	fmt.Printf("Client:      %s\n", job.Client.Name)
	fmt.Printf("Module:      %s (%s)\n", job.Module.Name, job.Module.ModuleType)
	fmt.Printf("Backup type: %s\n", job.BackupType)
	fmt.Printf("Status:      %s\n", job.Status)
	return nil
}

func printJobsTable(jobs []types.BackupJob) {
	w := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
	fmt.Fprintln(w, "UUID\tCLIENT\tMODULE\tTYPE\tSTATUS")
	for _, job := range jobs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			job.UUID, job.Client.Name, job.Module.Name, job.BackupType, job.Status)
	}
	w.Flush() //nolint:errcheck
}

// mustLoadServerConfig loads the server configuration for a CLI
// one-shot. Configuration findings are not graded here: read commands
// only need the API coordinates.
func mustLoadServerConfig(logger *zap.Logger, flags *rootFlags) config.Config {
	cfg, _, err := config.LoadServer(flags.configPath("server.toml"))
	if err != nil {
		logger.Error("Could not load relique server configuration", zap.Error(err))
		os.Exit(exitConfig)
	}
	return cfg
}

// mustPingServer checks that the local relique server answers before a
// command starts talking to it, so connection problems surface as one
// clear message instead of a request error.
func mustPingServer(logger *zap.Logger, cfg config.Config) {
	if err := serverGet(cfg, "/api/v1/ping", nil); err != nil {
		logger.Error("Relique server must be running. Could not contact local relique server", zap.Error(err))
		os.Exit(exitSoftware)
	}
}

// serverGet performs a GET against the local relique server API and
// decodes the enveloped response payload into out when out is non-nil.
func serverGet(cfg config.Config, path string, out any) error {
	httpClient := api.NewHTTPClient(cfg.StrictSSLCertificateCheck, api.ControlTimeout)
	resp, err := httpClient.Get(fmt.Sprintf("https://localhost:%d%s", cfg.Port, path))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("server answered %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if out == nil {
		return nil
	}

	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return fmt.Errorf("parse server response: %w", err)
	}
	return json.Unmarshal(envelope.Data, out)
}
