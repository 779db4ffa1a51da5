package docker_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/PAXECT-Interface/paxect-harness/internal/config"
	"github.com/PAXECT-Interface/paxect-harness/internal/docker"
	"github.com/PAXECT-Interface/paxect-harness/internal/result"
	"github.com/PAXECT-Interface/paxect-harness/internal/task"
)

func TestTaskCommand(t *testing.T) {
	tests := []struct {
		name string
		spec config.TaskSpec
		want []string
	}{
		{"python", config.TaskSpec{Name: "demo_01.py"}, []string{"python3", "/task/demo_01.py"}},
		{"shell", config.TaskSpec{Name: "smoke", Path: "scripts/demo_05.sh"}, []string{"sh", "/task/demo_05.sh"}},
		{"override", config.TaskSpec{Name: "demo.py", Interpreter: "pypy3"}, []string{"pypy3", "/task/demo.py"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := docker.TaskCommand(&tt.spec, "python3", "sh")
			if len(got) != len(tt.want) || got[0] != tt.want[0] || got[1] != tt.want[1] {
				t.Errorf("TaskCommand() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRunContainer(t *testing.T) {
	if os.Getenv("PAXECT_DOCKER_TESTS") == "" {
		t.Skip("set PAXECT_DOCKER_TESTS=1 to run Docker tests")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	res, err := docker.RunContainer(ctx, &docker.RunOpts{
		Image:   "alpine:latest",
		Command: []string{"sh", "-c", "echo out; echo 'Error: ignored' >&2"},
		Timeout: 30 * time.Second,
	})
	if err != nil {
		t.Fatalf("RunContainer: %v", err)
	}
	if res.ExitCode != 0 {
		t.Errorf("exit code: got %d, want 0", res.ExitCode)
	}
	if string(res.Stderr) != "Error: ignored\n" {
		t.Errorf("stderr: got %q", res.Stderr)
	}
	if string(res.Stdout) != "out\n" {
		t.Errorf("stdout: got %q", res.Stdout)
	}
}

func TestRunContainerTimeout(t *testing.T) {
	if os.Getenv("PAXECT_DOCKER_TESTS") == "" {
		t.Skip("set PAXECT_DOCKER_TESTS=1 to run Docker tests")
	}
	res, err := docker.RunContainer(context.Background(), &docker.RunOpts{
		Image:   "alpine:latest",
		Command: []string{"sleep", "300"},
		Timeout: 2 * time.Second,
	})
	if err != nil {
		t.Fatalf("RunContainer: %v", err)
	}
	if !res.TimedOut {
		t.Error("expected timeout")
	}
}

func TestTaskFuncThroughRunner(t *testing.T) {
	if os.Getenv("PAXECT_DOCKER_TESTS") == "" {
		t.Skip("set PAXECT_DOCKER_TESTS=1 to run Docker tests")
	}
	dir := t.TempDir()
	path := filepath.Join(dir, "demo.sh")
	os.WriteFile(path, []byte("echo hi\nexit 2\n"), 0o644)

	r := &task.Runner{Strict: true, Container: docker.TaskFunc("python3", "sh", nil)}
	spec := &config.TaskSpec{Name: "demo.sh", Method: config.MethodContainer, Image: "alpine:latest", Timeout: 30 * time.Second}
	res := r.Run(context.Background(), spec, path)
	if res.Status != result.StatusFail {
		t.Errorf("status: got %q, want FAIL", res.Status)
	}
}
