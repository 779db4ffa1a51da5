// Package probe performs best-effort HTTP checks against the observability
// endpoints of an already running PAXECT service.
package probe

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/PAXECT-Interface/paxect-harness/internal/result"
)

type Prober struct {
	BaseURL string
	Client  *http.Client
}

func New(baseURL string, timeout time.Duration) *Prober {
	return &Prober{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Client:  &http.Client{Timeout: timeout},
	}
}

func (p *Prober) URL(endpoint string) string {
	return p.BaseURL + "/" + strings.TrimLeft(endpoint, "/")
}

// Probe issues one GET. Any status below 400 counts as reachable; transport
// failures and error statuses come back as ok=false with a reason.
func (p *Prober) Probe(ctx context.Context, endpoint string) (probe result.EndpointProbe) {
	probe.Endpoint = endpoint
	defer func() {
		if r := recover(); r != nil {
			probe = result.EndpointProbe{Endpoint: endpoint, Reason: fmt.Sprintf("probe panic: %v", r)}
		}
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.URL(endpoint), nil)
	if err != nil {
		probe.Reason = err.Error()
		return probe
	}
	resp, err := p.Client.Do(req)
	if err != nil {
		probe.Reason = err.Error()
		return probe
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode >= http.StatusBadRequest {
		probe.Reason = "HTTP " + resp.Status
		return probe
	}
	probe.OK = true
	probe.StatusCode = resp.StatusCode
	return probe
}

// ProbeAll checks endpoints sequentially, one result per endpoint in order.
func (p *Prober) ProbeAll(ctx context.Context, endpoints []string) []result.EndpointProbe {
	out := make([]result.EndpointProbe, 0, len(endpoints))
	for _, e := range endpoints {
		out = append(out, p.Probe(ctx, e))
	}
	return out
}
