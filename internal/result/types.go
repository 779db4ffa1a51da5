package result

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"
)

type Status string

const (
	StatusOK      Status = "OK"
	StatusFail    Status = "FAIL"
	StatusTimeout Status = "TIMEOUT"
	StatusMissing Status = "MISSING"
	statusError   Status = "ERROR"
)

// ErrorStatus builds the "ERROR: <message>" status for a task that could not
// be launched.
func ErrorStatus(err error) Status {
	return Status(fmt.Sprintf("%s: %v", statusError, err))
}

func (s Status) IsError() bool {
	return s == statusError || strings.HasPrefix(string(s), string(statusError)+":")
}

func (s Status) OK() bool { return s == StatusOK }

// TaskResult is the outcome of running one TaskSpec. Path is only reported
// for MISSING results.
type TaskResult struct {
	Demo     string  `json:"demo"`
	Status   Status  `json:"status"`
	ElapsedS float64 `json:"elapsed_s"`
	Path     string  `json:"path,omitempty"`
}

// Elapsed rounds a wall-clock duration to hundredths of a second.
func Elapsed(d time.Duration) float64 {
	return math.Round(d.Seconds()*100) / 100
}

// EndpointProbe is one observability check. On the wire "status" carries the
// HTTP status code when the endpoint answered and the failure reason otherwise.
type EndpointProbe struct {
	Endpoint   string
	OK         bool
	StatusCode int
	Reason     string
}

type probeWire struct {
	Endpoint string          `json:"endpoint"`
	Status   json.RawMessage `json:"status"`
	OK       bool            `json:"ok"`
}

func (p EndpointProbe) StatusText() string {
	if p.OK {
		return fmt.Sprintf("%d", p.StatusCode)
	}
	return p.Reason
}

func (p EndpointProbe) MarshalJSON() ([]byte, error) {
	var status any = p.Reason
	if p.OK {
		status = p.StatusCode
	}
	raw, err := json.Marshal(status)
	if err != nil {
		return nil, err
	}
	return json.Marshal(probeWire{Endpoint: p.Endpoint, Status: raw, OK: p.OK})
}

func (p *EndpointProbe) UnmarshalJSON(data []byte) error {
	var w probeWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*p = EndpointProbe{Endpoint: w.Endpoint, OK: w.OK}
	if len(w.Status) == 0 {
		return nil
	}
	if err := json.Unmarshal(w.Status, &p.StatusCode); err == nil {
		return nil
	}
	return json.Unmarshal(w.Status, &p.Reason)
}

// RunSummary aggregates one full harness run. Results and Observability
// always have one entry per configured task and endpoint.
type RunSummary struct {
	Timestamp     int64           `json:"timestamp"`
	Results       []TaskResult    `json:"results"`
	Observability []EndpointProbe `json:"observability"`
	OKCount       int             `json:"ok_count"`
	Total         int             `json:"total"`
}

// NewRunSummary assembles a summary and derives the OK aggregate.
func NewRunSummary(at time.Time, results []TaskResult, probes []EndpointProbe) *RunSummary {
	if results == nil {
		results = []TaskResult{}
	}
	if probes == nil {
		probes = []EndpointProbe{}
	}
	s := &RunSummary{
		Timestamp:     at.Unix(),
		Results:       results,
		Observability: probes,
		Total:         len(results),
	}
	s.OKCount = CountOK(results)
	return s
}

func CountOK(results []TaskResult) int {
	n := 0
	for _, r := range results {
		if r.Status.OK() {
			n++
		}
	}
	return n
}
