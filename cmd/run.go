package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/PAXECT-Interface/paxect-harness/internal/config"
	"github.com/PAXECT-Interface/paxect-harness/internal/docker"
	"github.com/PAXECT-Interface/paxect-harness/internal/metrics"
	"github.com/PAXECT-Interface/paxect-harness/internal/probe"
	"github.com/PAXECT-Interface/paxect-harness/internal/report"
	"github.com/PAXECT-Interface/paxect-harness/internal/result"
	"github.com/PAXECT-Interface/paxect-harness/internal/runner"
	"github.com/PAXECT-Interface/paxect-harness/internal/service"
	"github.com/PAXECT-Interface/paxect-harness/internal/task"
)

var (
	flagTasksDir   string
	flagReport     string
	flagBaseURL    string
	flagNoProbe    bool
	flagLenient    bool
	flagMetricFile string
)

var (
	okMark   = color.New(color.FgGreen).SprintFunc()
	failMark = color.New(color.FgRed).SprintFunc()
)

const rule = "----------------------------------------------------------------------"

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run every demo, probe the observability endpoints and write the summary",
		RunE:  runSuite,
	}
	cmd.Flags().StringVar(&flagTasksDir, "tasks-dir", "", "directory holding the demo scripts")
	cmd.Flags().StringVar(&flagReport, "report", "", "summary output path")
	cmd.Flags().StringVar(&flagBaseURL, "base-url", "", "observability base URL")
	cmd.Flags().BoolVar(&flagNoProbe, "no-probe", false, "skip the observability endpoint probes")
	cmd.Flags().BoolVar(&flagLenient, "lenient", false, "judge tasks by exit code only, ignoring stderr")
	cmd.Flags().StringVar(&flagMetricFile, "metrics-textfile", "", "write Prometheus metrics to this file")
	return cmd
}

func applyRunOverrides(cfg *config.Config) {
	if flagTasksDir != "" {
		cfg.TasksDir = flagTasksDir
	}
	if flagReport != "" {
		cfg.Report.Path = flagReport
	}
	if flagBaseURL != "" {
		cfg.Observability.BaseURL = strings.TrimRight(flagBaseURL, "/")
	}
	if flagLenient {
		strict := false
		cfg.StrictStderr = &strict
	}
	if flagMetricFile != "" {
		cfg.Metrics.Textfile = flagMetricFile
	}
}

func runSuite(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	applyRunOverrides(cfg)

	var env []string
	if cfg.EnvFile != "" {
		env, err = service.ReadEnvFile(cfg.EnvFile)
		if err != nil {
			return fmt.Errorf("reading env file: %w", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	tasks := task.NewRunner(cfg, env, appLog)
	tasks.Container = docker.TaskFunc(cfg.Interpreter, cfg.Shell, env)

	suite := &runner.Suite{
		Config:   cfg,
		Tasks:    tasks,
		Metrics:  metrics.New(),
		Progress: &consoleProgress{w: cmd.OutOrStdout()},
		Log:      appLog,
	}
	if !flagNoProbe {
		suite.Prober = probe.New(cfg.Observability.BaseURL, cfg.Observability.Timeout)
		if svc := cfg.Observability.Service; len(svc.Command) > 0 {
			suite.Service = startService(cfg)
		}
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, strings.Repeat("=", len(rule)))
	fmt.Fprintln(out, "  PAXECT Enterprise All-in-One")
	fmt.Fprintln(out, strings.Repeat("=", len(rule)))
	fmt.Fprintf(out, "\nRunning %d demos from: %s\n%s\n", len(cfg.Tasks), cfg.TasksDir, rule)

	summary, err := suite.RunAll(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "\n%s\n", strings.Repeat("=", len(rule)))
	fmt.Fprintf(out, "[RESULT] %s\n", report.Headline(summary))
	fmt.Fprintf(out, "[SAVED]  Report: %s\n", cfg.Report.Path)
	fmt.Fprintln(out, strings.Repeat("=", len(rule)))
	return nil
}

func startService(cfg *config.Config) runner.ServiceFunc {
	svc := cfg.Observability.Service
	return func(ctx context.Context) (func(), error) {
		s, err := service.Start(ctx, &service.StartOpts{
			Command:     svc.Command,
			EnvFile:     svc.EnvFile,
			LogFile:     svc.LogFile,
			BaseURL:     cfg.Observability.BaseURL,
			WaitTimeout: svc.WaitTimeout,
		})
		if err != nil {
			return nil, err
		}
		return func() { s.Stop() }, nil
	}
}

type consoleProgress struct {
	w io.Writer
}

func (p *consoleProgress) TaskStarted(spec *config.TaskSpec) {
	fmt.Fprintf(p.w, "[RUN] %-40s ", spec.Name)
}

func (p *consoleProgress) TaskDone(res result.TaskResult) {
	fmt.Fprintln(p.w, mark(res.Status.OK()), res.Status)
}

func (p *consoleProgress) ProbesStarted(int) {
	fmt.Fprintf(p.w, "%s\n\n[CHECK] Observability endpoints...\n", rule)
}

func (p *consoleProgress) ProbeDone(pr result.EndpointProbe) {
	fmt.Fprintf(p.w, "  %s /%-10s %s\n", mark(pr.OK), pr.Endpoint, pr.StatusText())
}

func mark(ok bool) string {
	if ok {
		return okMark("✓")
	}
	return failMark("✗")
}
