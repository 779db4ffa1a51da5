package task

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/rs/zerolog"

	"github.com/PAXECT-Interface/paxect-harness/internal/config"
	"github.com/PAXECT-Interface/paxect-harness/internal/result"
)

// WaitDelay bounds how long Wait keeps draining output pipes after the
// process group has been killed.
const WaitDelay = 2 * time.Second

// ContainerFunc runs a container task. It reports the same Outcome as a
// local child process.
type ContainerFunc func(ctx context.Context, spec *config.TaskSpec, hostPath string) Outcome

// Runner executes TaskSpecs as isolated child processes.
type Runner struct {
	Interpreter string
	Shell       string
	Strict      bool
	Env         []string

	// Container handles method "container". Nil reports an ERROR result.
	Container ContainerFunc

	// Command builds the child process. Defaults to exec.CommandContext.
	Command func(ctx context.Context, name string, args ...string) *exec.Cmd

	Log zerolog.Logger
}

// NewRunner builds a Runner from the harness config. env is appended to the
// inherited process environment.
func NewRunner(cfg *config.Config, env []string, log zerolog.Logger) *Runner {
	return &Runner{
		Interpreter: cfg.Interpreter,
		Shell:       cfg.Shell,
		Strict:      cfg.Strict(),
		Env:         env,
		Log:         log,
	}
}

// Run executes one task and always returns exactly one TaskResult.
func (r *Runner) Run(ctx context.Context, spec *config.TaskSpec, path string) result.TaskResult {
	start := time.Now()
	res := result.TaskResult{Demo: spec.Name}

	if _, err := os.Stat(path); err != nil {
		res.Status = result.StatusMissing
		res.Path = path
		res.ElapsedS = result.Elapsed(time.Since(start))
		r.Log.Debug().Str("demo", spec.Name).Str("path", path).Msg("task target missing")
		return res
	}

	var out Outcome
	if spec.ResolveMethod() == config.MethodContainer {
		if r.Container == nil {
			out.StartErr = errors.New("container runtime not configured")
		} else {
			out = r.Container(ctx, spec, path)
		}
	} else {
		out = r.runProcess(ctx, spec, path)
	}

	res.Status = Classify(out, r.Strict)
	res.ElapsedS = result.Elapsed(time.Since(start))
	r.Log.Debug().
		Str("demo", spec.Name).
		Str("status", string(res.Status)).
		Int("exit_code", out.ExitCode).
		Float64("elapsed_s", res.ElapsedS).
		Msg("task finished")
	return res
}

// Argv returns the command line for a local task.
func (r *Runner) Argv(spec *config.TaskSpec, path string) []string {
	switch spec.ResolveMethod() {
	case config.MethodShell:
		return []string{r.Shell, path}
	case config.MethodExec:
		return []string{path}
	default:
		interp := spec.Interpreter
		if interp == "" {
			interp = r.Interpreter
		}
		return []string{interp, path}
	}
}

func (r *Runner) runProcess(ctx context.Context, spec *config.TaskSpec, path string) Outcome {
	timeoutCtx, cancel := context.WithTimeout(ctx, spec.Timeout)
	defer cancel()

	argv := r.Argv(spec, path)
	newCmd := r.Command
	if newCmd == nil {
		newCmd = exec.CommandContext
	}
	cmd := newCmd(timeoutCtx, argv[0], argv[1:]...)
	cmd.Env = append(os.Environ(), r.Env...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	// Own process group so the timeout kill reaches grandchildren too.
	isolate(cmd)
	cmd.WaitDelay = WaitDelay

	if err := cmd.Start(); err != nil {
		return Outcome{StartErr: err}
	}
	waitErr := cmd.Wait()
	// Sweep anything the task left running in its group.
	reap(cmd)
	if errors.Is(waitErr, exec.ErrWaitDelay) {
		waitErr = nil
	}

	out := Outcome{Stderr: stderr.Bytes()}
	if err := timeoutCtx.Err(); err != nil {
		if ctx.Err() != nil {
			out.Cancelled = ctx.Err()
		} else {
			out.TimedOut = true
		}
		return out
	}
	if waitErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(waitErr, &exitErr) {
			out.StartErr = fmt.Errorf("waiting for %s: %w", spec.Name, waitErr)
			return out
		}
		out.ExitCode = exitErr.ExitCode()
	}
	return out
}
