package docker

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"path/filepath"
	"time"

	"github.com/moby/moby/api/pkg/stdcopy"
	"github.com/moby/moby/api/types/container"
	"github.com/moby/moby/api/types/mount"
	"github.com/moby/moby/client"

	"github.com/PAXECT-Interface/paxect-harness/internal/config"
	"github.com/PAXECT-Interface/paxect-harness/internal/task"
)

// TaskMountDir is where task files appear inside the container.
const TaskMountDir = "/task"

type RunOpts struct {
	Image   string
	Command []string
	Env     []string
	Timeout time.Duration
	Mounts  []Mount
}

type Mount struct {
	Source   string
	Target   string
	ReadOnly bool
}

type RunResult struct {
	ExitCode int
	TimedOut bool
	Duration time.Duration
	Stdout   []byte
	Stderr   []byte
}

// RunContainer runs opts.Command to completion or until opts.Timeout, killing
// the container on timeout. The container is removed on every path.
func RunContainer(ctx context.Context, opts *RunOpts) (*RunResult, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("creating docker client: %w", err)
	}
	defer cli.Close()

	mounts := make([]mount.Mount, 0, len(opts.Mounts))
	for _, m := range opts.Mounts {
		mounts = append(mounts, mount.Mount{
			Type:     mount.TypeBind,
			Source:   m.Source,
			Target:   m.Target,
			ReadOnly: m.ReadOnly,
		})
	}

	initTrue := true
	createResp, err := cli.ContainerCreate(ctx, client.ContainerCreateOptions{
		Config: &container.Config{
			Image:  opts.Image,
			Cmd:    opts.Command,
			Env:    opts.Env,
			Labels: map[string]string{"paxect-harness": "true"},
		},
		HostConfig: &container.HostConfig{
			Mounts: mounts,
			Init:   &initTrue,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("creating container: %w", err)
	}
	containerID := createResp.ID
	defer func() {
		cli.ContainerRemove(context.Background(), containerID, client.ContainerRemoveOptions{Force: true})
	}()

	start := time.Now()
	if _, err := cli.ContainerStart(ctx, containerID, client.ContainerStartOptions{}); err != nil {
		return nil, fmt.Errorf("starting container: %w", err)
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	waitResult := cli.ContainerWait(timeoutCtx, containerID, client.ContainerWaitOptions{
		Condition: container.WaitConditionNotRunning,
	})
	for {
		select {
		case err := <-waitResult.Error:
			if err != nil {
				cli.ContainerKill(context.Background(), containerID, client.ContainerKillOptions{Signal: "SIGKILL"})
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				if timeoutCtx.Err() == nil {
					return nil, fmt.Errorf("waiting for container: %w", err)
				}
				return &RunResult{
					ExitCode: 124,
					TimedOut: true,
					Duration: time.Since(start),
				}, nil
			}
		case status := <-waitResult.Result:
			res := &RunResult{
				ExitCode: int(status.StatusCode),
				Duration: time.Since(start),
			}
			res.Stdout, res.Stderr = collectLogs(cli, containerID)
			return res, nil
		}
	}
}

func collectLogs(cli *client.Client, containerID string) (stdout, stderr []byte) {
	logReader, err := cli.ContainerLogs(context.Background(), containerID, client.ContainerLogsOptions{ShowStdout: true, ShowStderr: true})
	if err != nil || logReader == nil {
		return nil, nil
	}
	defer logReader.Close()
	var outBuf, errBuf bytes.Buffer
	stdcopy.StdCopy(&outBuf, &errBuf, logReader)
	return outBuf.Bytes(), errBuf.Bytes()
}

// TaskCommand returns the in-container command line for a task file.
func TaskCommand(spec *config.TaskSpec, interpreter, shell string) []string {
	target := path.Join(TaskMountDir, filepath.Base(spec.Path))
	if spec.Path == "" {
		target = path.Join(TaskMountDir, filepath.Base(spec.Name))
	}
	if filepath.Ext(target) == ".sh" {
		return []string{shell, target}
	}
	if spec.Interpreter != "" {
		interpreter = spec.Interpreter
	}
	return []string{interpreter, target}
}

// TaskFunc adapts RunContainer to the task runner's container hook.
func TaskFunc(interpreter, shell string, env []string) task.ContainerFunc {
	return func(ctx context.Context, spec *config.TaskSpec, hostPath string) task.Outcome {
		abs, err := filepath.Abs(hostPath)
		if err != nil {
			return task.Outcome{StartErr: fmt.Errorf("resolving task path: %w", err)}
		}
		cmd := TaskCommand(spec, interpreter, shell)
		res, err := RunContainer(ctx, &RunOpts{
			Image:   spec.Image,
			Command: cmd,
			Env:     env,
			Timeout: spec.Timeout,
			Mounts:  []Mount{{Source: abs, Target: cmd[len(cmd)-1], ReadOnly: true}},
		})
		if err != nil {
			if ctx.Err() != nil {
				return task.Outcome{Cancelled: ctx.Err()}
			}
			return task.Outcome{StartErr: err}
		}
		return task.Outcome{TimedOut: res.TimedOut, ExitCode: res.ExitCode, Stderr: res.Stderr}
	}
}
