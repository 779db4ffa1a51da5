package runner

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/PAXECT-Interface/paxect-harness/internal/config"
	"github.com/PAXECT-Interface/paxect-harness/internal/metrics"
	"github.com/PAXECT-Interface/paxect-harness/internal/probe"
	"github.com/PAXECT-Interface/paxect-harness/internal/result"
	"github.com/PAXECT-Interface/paxect-harness/internal/task"
)

// Progress receives suite events as they happen. Console output lives in
// the cmd package; tests pass nil.
type Progress interface {
	TaskStarted(spec *config.TaskSpec)
	TaskDone(res result.TaskResult)
	ProbesStarted(n int)
	ProbeDone(p result.EndpointProbe)
}

// ServiceFunc brings up the observability service and returns its stop func.
type ServiceFunc func(ctx context.Context) (stop func(), err error)

type Suite struct {
	Config   *config.Config
	Tasks    *task.Runner
	Prober   *probe.Prober
	Service  ServiceFunc
	Metrics  *metrics.Metrics
	Progress Progress
	Now      func() time.Time
	Log      zerolog.Logger
}

// RunAll executes every task in order, then probes every endpoint, then
// writes one RunSummary. Task and probe failures are recorded, never
// returned; only a failed summary write is an error.
func (s *Suite) RunAll(ctx context.Context) (*result.RunSummary, error) {
	results := s.runTasks(ctx)
	probes := s.runProbes(ctx)

	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	summary := result.NewRunSummary(now(), results, probes)

	if err := result.WriteSummary(s.Config.Report.Path, summary); err != nil {
		return summary, fmt.Errorf("writing run summary: %w", err)
	}
	s.recordMetrics(summary)
	return summary, nil
}

func (s *Suite) runTasks(ctx context.Context) []result.TaskResult {
	results := make([]result.TaskResult, 0, len(s.Config.Tasks))
	for i := range s.Config.Tasks {
		spec := &s.Config.Tasks[i]
		if s.Progress != nil {
			s.Progress.TaskStarted(spec)
		}
		res := s.Tasks.Run(ctx, spec, s.Config.TaskPath(spec))
		results = append(results, res)
		if s.Progress != nil {
			s.Progress.TaskDone(res)
		}
	}
	return results
}

func (s *Suite) runProbes(ctx context.Context) []result.EndpointProbe {
	endpoints := s.Config.Observability.Endpoints
	if len(endpoints) == 0 || s.Prober == nil {
		return s.unprobed(endpoints)
	}
	if s.Service != nil {
		stop, err := s.Service(ctx)
		if err != nil {
			s.Log.Warn().Err(err).Msg("observability service did not start; probing anyway")
		} else {
			defer stop()
		}
	}
	if s.Progress != nil {
		s.Progress.ProbesStarted(len(endpoints))
	}
	probes := make([]result.EndpointProbe, 0, len(endpoints))
	for _, e := range endpoints {
		p := s.Prober.Probe(ctx, e)
		probes = append(probes, p)
		if s.Progress != nil {
			s.Progress.ProbeDone(p)
		}
	}
	return probes
}

// unprobed keeps one entry per configured endpoint when probing is disabled.
func (s *Suite) unprobed(endpoints []string) []result.EndpointProbe {
	probes := make([]result.EndpointProbe, 0, len(endpoints))
	for _, e := range endpoints {
		probes = append(probes, result.EndpointProbe{Endpoint: e, Reason: "not probed"})
	}
	return probes
}

func (s *Suite) recordMetrics(summary *result.RunSummary) {
	if s.Metrics == nil {
		return
	}
	s.Metrics.ObserveSummary(summary)
	if path := s.Config.Metrics.Textfile; path != "" {
		if err := s.Metrics.WriteTextfile(path); err != nil {
			s.Log.Warn().Err(err).Str("path", path).Msg("metrics textfile not written")
		}
	}
}
