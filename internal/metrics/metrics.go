// Package metrics exposes Prometheus instrumentation for the relique server:
// job lifecycle counters fed by the protocol handlers and backup storage
// gauges refreshed by the run loop. The /metrics endpoint serves the default
// registry via promhttp.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shirou/gopsutil/v4/disk"

	"github.com/macarrie/relique/internal/types"
)

var (
	jobsRegistered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relique_jobs_registered_total",
			Help: "Total number of backup jobs registered, by backup type",
		},
		[]string{"backup_type"},
	)

	jobStatusUpdates = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relique_job_status_updates_total",
			Help: "Total number of job status updates received, by final status",
		},
		[]string{"status"},
	)

	deltasApplied = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relique_deltas_applied_total",
			Help: "Total number of file deltas applied to backup storage",
		},
	)

	deltaBytes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relique_delta_bytes_total",
			Help: "Total size in bytes of file deltas received from clients",
		},
	)

	activeJobs = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "relique_active_jobs",
			Help: "Number of jobs currently in Active status",
		},
	)

	storageFreeBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "relique_storage_free_bytes",
			Help: "Free space on the filesystem holding backup storage",
		},
	)

	storageUsedPercent = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "relique_storage_used_percent",
			Help: "Used space percentage on the filesystem holding backup storage",
		},
	)
)

// JobRegistered records a successful job registration.
func JobRegistered(backupType types.BackupType) {
	jobsRegistered.WithLabelValues(backupType.String()).Inc()
}

// JobStatusUpdated records a job status update received from a client.
func JobStatusUpdated(status types.JobStatus) {
	jobStatusUpdates.WithLabelValues(status.String()).Inc()
}

// DeltaApplied records one applied delta of the given wire size.
func DeltaApplied(size int) {
	deltasApplied.Inc()
	deltaBytes.Add(float64(size))
}

// SetActiveJobs sets the active jobs gauge to the current DB count.
func SetActiveJobs(n int) {
	activeJobs.Set(float64(n))
}

// UpdateStorage refreshes the storage gauges from the filesystem holding
// path. Returns the used percentage so the caller can log a warning when
// space runs low.
func UpdateStorage(path string) (usedPercent float64, err error) {
	usage, err := disk.Usage(path)
	if err != nil {
		return 0, err
	}

	storageFreeBytes.Set(float64(usage.Free))
	storageUsedPercent.Set(usage.UsedPercent)
	return usage.UsedPercent, nil
}

// Handler returns the HTTP handler serving the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
