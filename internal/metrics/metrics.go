package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/PAXECT-Interface/paxect-harness/internal/result"
	"github.com/PAXECT-Interface/paxect-harness/internal/selftune"
)

const namespace = "paxect"

// Metrics holds the harness collectors on a private registry so that a run
// can be exported as a node_exporter textfile.
type Metrics struct {
	Registry *prometheus.Registry

	taskElapsed  *prometheus.GaugeVec
	taskOK       *prometheus.GaugeVec
	tasksOK      prometheus.Gauge
	endpointUp   *prometheus.GaugeVec
	lastRun      prometheus.Gauge
	tuningValue  prometheus.Gauge
	tuningCycle  prometheus.Gauge
	cyclesByMode *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		taskElapsed: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "task_elapsed_seconds",
			Help:      "Wall-clock duration of the last run of each demo task.",
		}, []string{"demo", "status"}),
		taskOK: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "task_ok",
			Help:      "1 when the demo task was classified OK, else 0.",
		}, []string{"demo"}),
		tasksOK: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "tasks_ok",
			Help:      "Number of demo tasks classified OK in the last run.",
		}),
		endpointUp: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "endpoint_up",
			Help:      "1 when the observability endpoint answered with a non-error status.",
		}, []string{"endpoint"}),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time of the last harness run.",
		}),
		tuningValue: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "selftune",
			Name:      "tuning_value",
			Help:      "Current exploration probability of the selftune loop.",
		}),
		tuningCycle: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "selftune",
			Name:      "cycle",
			Help:      "Total selftune cycles run across invocations.",
		}),
		cyclesByMode: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "selftune",
			Name:      "cycles_total",
			Help:      "Selftune cycles run by this invocation, by mode and quality.",
		}, []string{"mode", "status"}),
	}
	m.Registry.MustRegister(
		m.taskElapsed, m.taskOK, m.tasksOK, m.endpointUp, m.lastRun,
		m.tuningValue, m.tuningCycle, m.cyclesByMode,
	)
	return m
}

func (m *Metrics) ObserveSummary(s *result.RunSummary) {
	for _, r := range s.Results {
		status := string(r.Status)
		if r.Status.IsError() {
			status = "ERROR"
		}
		m.taskElapsed.WithLabelValues(r.Demo, status).Set(r.ElapsedS)
		ok := 0.0
		if r.Status.OK() {
			ok = 1
		}
		m.taskOK.WithLabelValues(r.Demo).Set(ok)
	}
	for _, p := range s.Observability {
		up := 0.0
		if p.OK {
			up = 1
		}
		m.endpointUp.WithLabelValues(p.Endpoint).Set(up)
	}
	m.tasksOK.Set(float64(s.OKCount))
	m.lastRun.Set(float64(s.Timestamp))
}

func (m *Metrics) ObserveCycle(o selftune.CycleOutcome) {
	m.cyclesByMode.WithLabelValues(string(o.Mode), o.Status()).Inc()
	m.tuningValue.Set(o.TuningNext)
	m.tuningCycle.Set(float64(o.Cycle))
}

func (m *Metrics) ObserveState(st selftune.State) {
	m.tuningValue.Set(st.TuningValue)
	m.tuningCycle.Set(float64(st.Cycle))
}

// WriteTextfile exports the registry in the Prometheus text format.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.Registry); err != nil {
		return fmt.Errorf("writing metrics textfile: %w", err)
	}
	return nil
}
