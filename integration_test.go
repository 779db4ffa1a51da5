//go:build integration

package main

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/PAXECT-Interface/paxect-harness/cmd"
	"github.com/PAXECT-Interface/paxect-harness/internal/result"
)

// createFixtureSuite writes a demo directory with one script per outcome.
func createFixtureSuite(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	scripts := map[string]string{
		"pass.sh":  "echo all good\n",
		"fail.sh":  "exit 2\n",
		"noisy.sh": "echo 'Error: disk' >&2\n",
		"slow.sh":  "sleep 30\n",
	}
	for name, body := range scripts {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o755); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func TestHarnessIntegration(t *testing.T) {
	demos := createFixtureSuite(t)

	obs := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/last" {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprintln(w, "ok")
	}))
	defer obs.Close()

	reportPath := filepath.Join(t.TempDir(), "summary.json")
	cfgPath := filepath.Join(t.TempDir(), "paxect.yaml")
	cfg := fmt.Sprintf(`
tasks_dir: %s
task_timeout: 1s
tasks:
  - name: pass.sh
  - name: fail.sh
  - name: noisy.sh
  - name: slow.sh
  - name: absent.py
observability:
  base_url: %s
  endpoints: [ping, ready, metrics, last]
report:
  path: %s
`, demos, obs.URL, reportPath)
	if err := os.WriteFile(cfgPath, []byte(cfg), 0o644); err != nil {
		t.Fatal(err)
	}

	root := cmd.NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"--config", cfgPath, "run"})
	if err := root.Execute(); err != nil {
		t.Fatalf("run: %v\n%s", err, out.String())
	}

	summary, err := result.ReadSummary(reportPath)
	if err != nil {
		t.Fatalf("ReadSummary: %v", err)
	}
	want := []result.Status{
		result.StatusOK, result.StatusFail, result.StatusFail,
		result.StatusTimeout, result.StatusMissing,
	}
	if len(summary.Results) != len(want) {
		t.Fatalf("results: got %d, want %d", len(summary.Results), len(want))
	}
	for i, w := range want {
		if got := summary.Results[i].Status; got != w {
			t.Errorf("%s: got %q, want %q", summary.Results[i].Demo, got, w)
		}
	}
	if summary.Results[3].ElapsedS > 5 {
		t.Errorf("timeout task took %.2fs", summary.Results[3].ElapsedS)
	}

	if len(summary.Observability) != 4 {
		t.Fatalf("probes: got %d, want 4", len(summary.Observability))
	}
	for _, p := range summary.Observability[:3] {
		if !p.OK || p.StatusCode != http.StatusOK {
			t.Errorf("%s: got %+v, want 200 ok", p.Endpoint, p)
		}
	}
	if last := summary.Observability[3]; last.OK {
		t.Errorf("last: got ok, want failure for 503")
	}
	if summary.OKCount != 1 || summary.Total != 5 {
		t.Errorf("aggregate: got %d/%d, want 1/5", summary.OKCount, summary.Total)
	}
	if !bytes.Contains(out.Bytes(), []byte("[RESULT] 1/5 demos succeeded")) {
		t.Errorf("missing result line:\n%s", out.String())
	}
}

func TestContainerTaskIntegration(t *testing.T) {
	if os.Getenv("PAXECT_DOCKER_TESTS") == "" {
		t.Skip("set PAXECT_DOCKER_TESTS=1 to run container integration tests")
	}

	demos := t.TempDir()
	if err := os.WriteFile(filepath.Join(demos, "hello.sh"), []byte("echo hello\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	reportPath := filepath.Join(t.TempDir(), "summary.json")
	cfgPath := filepath.Join(t.TempDir(), "paxect.yaml")
	cfg := fmt.Sprintf(`
tasks_dir: %s
shell: sh
tasks:
  - name: hello.sh
    method: container
    image: alpine:latest
    timeout: 60s
report:
  path: %s
`, demos, reportPath)
	if err := os.WriteFile(cfgPath, []byte(cfg), 0o644); err != nil {
		t.Fatal(err)
	}

	root := cmd.NewRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetArgs([]string{"--config", cfgPath, "run", "--no-probe"})
	if err := root.Execute(); err != nil {
		t.Fatalf("run: %v", err)
	}
	summary, err := result.ReadSummary(reportPath)
	if err != nil {
		t.Fatalf("ReadSummary: %v", err)
	}
	if got := summary.Results[0].Status; got != result.StatusOK {
		t.Errorf("container task: got %q, want OK", got)
	}
}
