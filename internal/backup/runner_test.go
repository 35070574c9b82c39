package backup

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/macarrie/relique/internal/hooks"
	"github.com/macarrie/relique/internal/rsync"
	"github.com/macarrie/relique/internal/types"
)

// protocolServer fakes the relique server side of the delta protocol. Deltas
// are applied for real so tests can assert byte-identical reconstruction
// through the actual wire format.
type protocolServer struct {
	mu            sync.Mutex
	registered    []types.BackupJob
	finalStatuses []types.JobStatus
	sigRequests   []string
	contents      map[string][]byte

	refuseRegister bool
	failDeltaFor   string
}

func newProtocolServer() *protocolServer {
	return &protocolServer{contents: make(map[string][]byte)}
}

func (s *protocolServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/register"):
		s.handleRegister(w, r)
	case r.Method == http.MethodGet && strings.HasSuffix(r.URL.Path, "/signature"):
		s.handleSignature(w, r)
	case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/delta"):
		s.handleDelta(w, r)
	case r.Method == http.MethodPut && strings.HasSuffix(r.URL.Path, "/status"):
		s.handleStatus(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (s *protocolServer) handleRegister(w http.ResponseWriter, r *http.Request) {
	var job types.BackupJob
	if err := json.NewDecoder(r.Body).Decode(&job); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.refuseRegister {
		http.Error(w, "Job already registered in relique server", http.StatusConflict)
		return
	}
	s.registered = append(s.registered, job)
	w.Write([]byte("Job registered"))
}

func (s *protocolServer) handleSignature(w http.ResponseWriter, r *http.Request) {
	var file types.BackupFile
	if err := json.NewDecoder(r.Body).Decode(&file); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	s.sigRequests = append(s.sigRequests, file.Path)
	stored, hasStored := s.contents[file.Path]
	s.mu.Unlock()

	reference := os.DevNull
	if hasStored {
		tmp, err := os.CreateTemp("", "reference-*")
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		defer os.Remove(tmp.Name())
		if _, err := tmp.Write(stored); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		tmp.Close()
		reference = tmp.Name()
	}

	sig, err := rsync.Signature(reference)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(sig)
}

func (s *protocolServer) handleDelta(w http.ResponseWriter, r *http.Request) {
	var file types.BackupFile
	if err := json.NewDecoder(r.Body).Decode(&file); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	fail := s.failDeltaFor != "" && s.failDeltaFor == file.Path
	s.mu.Unlock()
	if fail {
		http.Error(w, "forced delta failure", http.StatusInternalServerError)
		return
	}

	var out bytes.Buffer
	if err := rsync.Patch(os.DevNull, file.Delta, &out); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	s.mu.Lock()
	s.contents[file.Path] = out.Bytes()
	s.mu.Unlock()
	w.Write([]byte("Delta applied"))
}

func (s *protocolServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	var status types.JobStatus
	if err := json.NewDecoder(r.Body).Decode(&status); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	s.finalStatuses = append(s.finalStatuses, status)
	s.mu.Unlock()
	w.Write([]byte("Job status updated"))
}

func (s *protocolServer) snapshot() ([]types.BackupJob, []types.JobStatus, []string, map[string][]byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	contents := make(map[string][]byte, len(s.contents))
	for k, v := range s.contents {
		contents[k] = v
	}
	return append([]types.BackupJob(nil), s.registered...),
		append([]types.JobStatus(nil), s.finalStatuses...),
		append([]string(nil), s.sigRequests...),
		contents
}

// runnerJob builds a job whose client snapshot points at the test server.
func runnerJob(t *testing.T, ts *httptest.Server, module types.Module) types.BackupJob {
	t.Helper()
	u, err := url.Parse(ts.URL)
	require.NoError(t, err)
	port, err := strconv.Atoi(u.Port())
	require.NoError(t, err)

	client := types.Client{
		Name:          "alpha",
		Address:       "10.0.0.3",
		ServerAddress: u.Hostname(),
		ServerPort:    port,
	}
	return types.NewBackupJob(client, module)
}

func newTestRunner(t *testing.T) *Runner {
	t.Helper()
	return NewRunner(false, hooks.NewRunner(0), zaptest.NewLogger(t))
}

func TestRunnerFullBackupRoundTrip(t *testing.T) {
	dataDir := t.TempDir()
	fileA := filepath.Join(dataDir, "a")
	fileB := filepath.Join(dataDir, "sub", "b")
	require.NoError(t, os.WriteFile(fileA, []byte("hello\n"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Dir(fileB), 0o755))
	require.NoError(t, os.WriteFile(fileB, bytes.Repeat([]byte("relique delta payload "), 500), 0o644))

	server := newProtocolServer()
	ts := httptest.NewTLSServer(server)
	defer ts.Close()

	module := types.Module{ModuleType: "generic", Name: "alpha-data", BackupPaths: []string{dataDir}}
	job := runnerJob(t, ts, module)
	handle := NewHandle(job)

	newTestRunner(t).Run(context.Background(), handle)

	assert.Equal(t, types.JobStatusDone, handle.Status())

	registered, statuses, sigRequests, contents := server.snapshot()
	require.Len(t, registered, 1)
	assert.Equal(t, job.UUID, registered[0].UUID)
	assert.Equal(t, types.JobStatusActive, registered[0].Status, "jobs register as active")
	assert.Equal(t, []types.JobStatus{types.JobStatusDone}, statuses)
	assert.ElementsMatch(t, []string{fileA, fileB}, sigRequests)

	wantA, _ := os.ReadFile(fileA)
	wantB, _ := os.ReadFile(fileB)
	assert.Equal(t, wantA, contents[fileA])
	assert.Equal(t, wantB, contents[fileB])
}

func TestRunnerPerFileFailureMarksIncomplete(t *testing.T) {
	dataDir := t.TempDir()
	fileA := filepath.Join(dataDir, "a")
	fileB := filepath.Join(dataDir, "b")
	require.NoError(t, os.WriteFile(fileA, []byte("first\n"), 0o644))
	require.NoError(t, os.WriteFile(fileB, []byte("second\n"), 0o644))

	server := newProtocolServer()
	server.failDeltaFor = fileA
	ts := httptest.NewTLSServer(server)
	defer ts.Close()

	module := types.Module{ModuleType: "generic", Name: "alpha-data", BackupPaths: []string{dataDir}}
	handle := NewHandle(runnerJob(t, ts, module))

	newTestRunner(t).Run(context.Background(), handle)

	assert.Equal(t, types.JobStatusIncomplete, handle.Status())

	_, statuses, _, contents := server.snapshot()
	assert.Equal(t, []types.JobStatus{types.JobStatusIncomplete}, statuses)
	assert.NotContains(t, contents, fileA)
	assert.Equal(t, []byte("second\n"), contents[fileB], "the sweep continues past a failed file")
}

func TestRunnerMissingBackupPathMarksIncomplete(t *testing.T) {
	server := newProtocolServer()
	ts := httptest.NewTLSServer(server)
	defer ts.Close()

	module := types.Module{
		ModuleType:  "generic",
		Name:        "alpha-data",
		BackupPaths: []string{filepath.Join(t.TempDir(), "does-not-exist")},
	}
	handle := NewHandle(runnerJob(t, ts, module))

	newTestRunner(t).Run(context.Background(), handle)

	assert.Equal(t, types.JobStatusIncomplete, handle.Status())
}

func TestRunnerRegisterRefusedEndsInError(t *testing.T) {
	dataDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dataDir, "a"), []byte("hello\n"), 0o644))

	server := newProtocolServer()
	server.refuseRegister = true
	ts := httptest.NewTLSServer(server)
	defer ts.Close()

	module := types.Module{ModuleType: "generic", Name: "alpha-data", BackupPaths: []string{dataDir}}
	handle := NewHandle(runnerJob(t, ts, module))

	newTestRunner(t).Run(context.Background(), handle)

	assert.Equal(t, types.JobStatusError, handle.Status())

	_, statuses, sigRequests, _ := server.snapshot()
	assert.Empty(t, statuses, "no status update for a job the server refused")
	assert.Empty(t, sigRequests, "no file sweep for a job the server refused")
}

func TestRunnerPreBackupScriptFailureEndsInError(t *testing.T) {
	dataDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dataDir, "a"), []byte("hello\n"), 0o644))

	server := newProtocolServer()
	ts := httptest.NewTLSServer(server)
	defer ts.Close()

	module := types.Module{
		ModuleType:      "generic",
		Name:            "alpha-data",
		BackupPaths:     []string{dataDir},
		PreBackupScript: "exit 1",
	}
	handle := NewHandle(runnerJob(t, ts, module))

	newTestRunner(t).Run(context.Background(), handle)

	assert.Equal(t, types.JobStatusError, handle.Status())

	registered, statuses, sigRequests, _ := server.snapshot()
	assert.Len(t, registered, 1, "the job registers before the pre backup script runs")
	assert.Equal(t, []types.JobStatus{types.JobStatusError}, statuses)
	assert.Empty(t, sigRequests, "a failed pre backup script aborts the sweep")
}

func TestRunnerPostBackupScriptFailureDemotesDone(t *testing.T) {
	dataDir := t.TempDir()
	fileA := filepath.Join(dataDir, "a")
	require.NoError(t, os.WriteFile(fileA, []byte("hello\n"), 0o644))

	server := newProtocolServer()
	ts := httptest.NewTLSServer(server)
	defer ts.Close()

	module := types.Module{
		ModuleType:       "generic",
		Name:             "alpha-data",
		BackupPaths:      []string{dataDir},
		PostBackupScript: "exit 1",
	}
	handle := NewHandle(runnerJob(t, ts, module))

	newTestRunner(t).Run(context.Background(), handle)

	assert.Equal(t, types.JobStatusIncomplete, handle.Status())

	_, statuses, _, contents := server.snapshot()
	assert.Equal(t, []types.JobStatus{types.JobStatusIncomplete}, statuses)
	assert.Equal(t, []byte("hello\n"), contents[fileA], "file data still reaches the server")
}
