// Package service launches the optional observability process the probes
// talk to and tears it down afterwards.
package service

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
)

type Service struct {
	Addr    string
	cmd     *exec.Cmd
	logFile *os.File
	done    chan struct{}
}

type StartOpts struct {
	Command     []string
	EnvFile     string
	LogFile     string
	BaseURL     string
	WaitTimeout time.Duration
}

// Addr extracts host:port from a base URL, defaulting the port by scheme.
func Addr(baseURL string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("parsing base url: %w", err)
	}
	if u.Host == "" {
		return "", fmt.Errorf("base url %q has no host", baseURL)
	}
	if u.Port() != "" {
		return u.Host, nil
	}
	port := "80"
	if u.Scheme == "https" {
		port = "443"
	}
	return net.JoinHostPort(u.Hostname(), port), nil
}

// Start runs opts.Command and blocks until the base URL accepts TCP
// connections or opts.WaitTimeout passes.
func Start(ctx context.Context, opts *StartOpts) (*Service, error) {
	if len(opts.Command) == 0 {
		return nil, fmt.Errorf("no service command configured")
	}
	addr, err := Addr(opts.BaseURL)
	if err != nil {
		return nil, err
	}

	var out io.Writer = io.Discard
	var logFile *os.File
	if opts.LogFile != "" {
		os.MkdirAll(filepath.Dir(opts.LogFile), 0o755)
		logFile, err = os.Create(opts.LogFile)
		if err != nil {
			return nil, fmt.Errorf("creating log file: %w", err)
		}
		out = logFile
	}

	cmd := exec.CommandContext(ctx, opts.Command[0], opts.Command[1:]...)
	cmd.Stdout = out
	cmd.Stderr = out
	cmd.Env = os.Environ()
	if opts.EnvFile != "" {
		env, err := ReadEnvFile(opts.EnvFile)
		if err != nil {
			closeLog(logFile)
			return nil, fmt.Errorf("reading env file: %w", err)
		}
		cmd.Env = append(cmd.Env, env...)
	}

	if err := cmd.Start(); err != nil {
		closeLog(logFile)
		return nil, fmt.Errorf("starting %s: %w", opts.Command[0], err)
	}
	svc := &Service{Addr: addr, cmd: cmd, logFile: logFile, done: make(chan struct{})}
	go func() {
		cmd.Wait()
		close(svc.done)
	}()

	if err := svc.waitForAddr(opts.WaitTimeout); err != nil {
		svc.Stop()
		return nil, fmt.Errorf("%s did not come up: %w", opts.Command[0], err)
	}
	return svc, nil
}

func (s *Service) Stop() error {
	if s.cmd != nil && s.cmd.Process != nil {
		s.cmd.Process.Kill()
		<-s.done
	}
	closeLog(s.logFile)
	return nil
}

func (s *Service) waitForAddr(timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		conn, err := net.DialTimeout("tcp", s.Addr, time.Second)
		if err == nil {
			conn.Close()
			return nil
		}
		select {
		case <-s.done:
			return fmt.Errorf("process exited before %s was ready", s.Addr)
		case <-time.After(200 * time.Millisecond):
		}
	}
	return fmt.Errorf("%s not ready after %s", s.Addr, timeout)
}

// ReadEnvFile loads KEY=VALUE pairs in dotenv syntax as an environ slice.
func ReadEnvFile(path string) ([]string, error) {
	vars, err := godotenv.Read(path)
	if err != nil {
		return nil, err
	}
	env := make([]string, 0, len(vars))
	for k, v := range vars {
		env = append(env, k+"="+v)
	}
	return env, nil
}

func closeLog(f *os.File) {
	if f != nil {
		f.Close()
	}
}
