//go:build unix

package runner_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PAXECT-Interface/paxect-harness/internal/config"
	"github.com/PAXECT-Interface/paxect-harness/internal/metrics"
	"github.com/PAXECT-Interface/paxect-harness/internal/probe"
	"github.com/PAXECT-Interface/paxect-harness/internal/result"
	"github.com/PAXECT-Interface/paxect-harness/internal/runner"
	"github.com/PAXECT-Interface/paxect-harness/internal/task"
)

type recorder struct {
	started []string
	done    []result.Status
	probes  []string
}

func (r *recorder) TaskStarted(spec *config.TaskSpec) { r.started = append(r.started, spec.Name) }
func (r *recorder) TaskDone(res result.TaskResult)    { r.done = append(r.done, res.Status) }
func (r *recorder) ProbesStarted(int)                 {}
func (r *recorder) ProbeDone(p result.EndpointProbe)  { r.probes = append(r.probes, p.Endpoint) }

func newSuite(t *testing.T, scripts map[string]string, names []string) (*runner.Suite, *config.Config) {
	t.Helper()
	dir := t.TempDir()
	for name, body := range scripts {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o755))
	}
	cfg := &config.Config{
		TasksDir:    dir,
		Interpreter: "sh",
		Shell:       "sh",
		Report:      config.Report{Path: filepath.Join(t.TempDir(), "report.json")},
	}
	for _, n := range names {
		cfg.Tasks = append(cfg.Tasks, config.TaskSpec{Name: n, Timeout: 500 * time.Millisecond})
	}
	s := &runner.Suite{
		Config: cfg,
		Tasks:  task.NewRunner(cfg, nil, zerolog.Nop()),
		Now:    func() time.Time { return time.Unix(1700000000, 0) },
		Log:    zerolog.Nop(),
	}
	return s, cfg
}

func TestRunAllOneResultPerTask(t *testing.T) {
	scripts := map[string]string{
		"ok.sh":     "exit 0",
		"fail.sh":   "exit 1",
		"noisy.sh":  "echo 'Error: ignored' >&2",
		"slow.sh":   "exec sleep 30",
		"ok_too.py": "echo fine",
	}
	names := []string{"ok.sh", "fail.sh", "absent.py", "noisy.sh", "slow.sh", "ok_too.py"}
	s, cfg := newSuite(t, scripts, names)
	rec := &recorder{}
	s.Progress = rec

	summary, err := s.RunAll(context.Background())
	require.NoError(t, err)

	want := []result.Status{
		result.StatusOK, result.StatusFail, result.StatusMissing,
		result.StatusFail, result.StatusTimeout, result.StatusOK,
	}
	require.Len(t, summary.Results, len(names))
	for i, r := range summary.Results {
		assert.Equal(t, names[i], r.Demo)
		assert.Equal(t, want[i], r.Status, r.Demo)
	}
	assert.Equal(t, 2, summary.OKCount)
	assert.Equal(t, 6, summary.Total)
	assert.Equal(t, names, rec.started)
	assert.Equal(t, want, rec.done)
	assert.Empty(t, summary.Observability)

	stored, err := result.ReadSummary(cfg.Report.Path)
	require.NoError(t, err)
	assert.Equal(t, int64(1700000000), stored.Timestamp)
	assert.Len(t, stored.Results, 6)
	assert.Equal(t, 2, stored.OKCount)
}

func TestRunAllZeroOK(t *testing.T) {
	s, cfg := newSuite(t, map[string]string{"bad.sh": "exit 7"}, []string{"bad.sh", "gone.py", "gone.sh"})
	summary, err := s.RunAll(context.Background())
	require.NoError(t, err)
	assert.Zero(t, summary.OKCount)

	stored, err := result.ReadSummary(cfg.Report.Path)
	require.NoError(t, err)
	assert.Len(t, stored.Results, 3)
	assert.Zero(t, stored.OKCount)
}

func TestRunAllProbesAndService(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/last" {
			http.Error(w, "nothing yet", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s, cfg := newSuite(t, map[string]string{"ok.sh": "exit 0"}, []string{"ok.sh"})
	cfg.Observability = config.Observability{BaseURL: srv.URL, Endpoints: []string{"ping", "ready", "metrics", "last"}}
	cfg.Metrics.Textfile = filepath.Join(t.TempDir(), "paxect.prom")
	s.Prober = probe.New(srv.URL, time.Second)
	s.Metrics = metrics.New()
	started, stopped := false, false
	s.Service = func(context.Context) (func(), error) {
		started = true
		return func() { stopped = true }, nil
	}
	rec := &recorder{}
	s.Progress = rec

	summary, err := s.RunAll(context.Background())
	require.NoError(t, err)
	assert.True(t, started)
	assert.True(t, stopped)
	require.Len(t, summary.Observability, 4)
	assert.Equal(t, []string{"ping", "ready", "metrics", "last"}, rec.probes)
	assert.True(t, summary.Observability[0].OK)
	assert.False(t, summary.Observability[3].OK)
	assert.NotEmpty(t, summary.Observability[3].Reason)
	assert.FileExists(t, cfg.Metrics.Textfile)
}

func TestRunAllUnreachableEndpointsDoNotFail(t *testing.T) {
	s, cfg := newSuite(t, map[string]string{"ok.sh": "exit 0"}, []string{"ok.sh"})
	cfg.Observability = config.Observability{BaseURL: "http://127.0.0.1:1", Endpoints: []string{"ping", "ready"}}
	s.Prober = probe.New(cfg.Observability.BaseURL, 200*time.Millisecond)

	summary, err := s.RunAll(context.Background())
	require.NoError(t, err)
	require.Len(t, summary.Observability, 2)
	for _, p := range summary.Observability {
		assert.False(t, p.OK)
		assert.NotEmpty(t, p.Reason)
	}
	assert.Equal(t, 1, summary.OKCount)
}

func TestRunAllWithoutProberKeepsEndpointEntries(t *testing.T) {
	s, cfg := newSuite(t, map[string]string{"ok.sh": "exit 0"}, []string{"ok.sh"})
	cfg.Observability.Endpoints = []string{"ping", "ready"}
	summary, err := s.RunAll(context.Background())
	require.NoError(t, err)
	require.Len(t, summary.Observability, 2)
	assert.Equal(t, "not probed", summary.Observability[1].Reason)
}

func TestRunAllReportWriteFailure(t *testing.T) {
	s, cfg := newSuite(t, map[string]string{"ok.sh": "exit 0"}, []string{"ok.sh"})
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))
	cfg.Report.Path = filepath.Join(blocker, "report.json")

	summary, err := s.RunAll(context.Background())
	require.Error(t, err)
	require.NotNil(t, summary)
	assert.Len(t, summary.Results, 1)
}
