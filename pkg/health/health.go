// Package health implements Kubernetes-style liveness and readiness probes.
//
// Registered checks run on a shared background ticker. Thresholds mirror
// Kubernetes probe semantics: a check flips to unhealthy only after
// failureThreshold consecutive failures, and back to healthy after
// successThreshold consecutive successes, so a single slow database ping does
// not bounce the pod out of the endpoint list.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

// CheckFunc reports the health of one component. A nil return means healthy.
type CheckFunc func(ctx context.Context) error

const (
	defaultFailureThreshold = 3
	defaultSuccessThreshold = 1
)

// probe is one registered check plus its threshold state. All fields after
// mu are guarded by mu; the tick loop writes them, HTTP handlers read them.
type probe struct {
	name    string
	timeout time.Duration
	check   CheckFunc

	mu      sync.Mutex
	healthy bool
	lastErr error
	fails   int
	oks     int
}

func newProbe(name string, timeout time.Duration, check CheckFunc) *probe {
	return &probe{
		name:    name,
		timeout: timeout,
		check:   check,
		healthy: true, // assume healthy until proven otherwise
	}
}

// observe runs the check once and applies the thresholds.
func (p *probe) observe(ctx context.Context) {
	checkCtx, cancel := context.WithTimeout(ctx, p.timeout)
	err := p.check(checkCtx)
	cancel()

	p.mu.Lock()
	defer p.mu.Unlock()

	p.lastErr = err
	if err != nil {
		p.oks = 0
		if p.fails++; p.fails >= defaultFailureThreshold {
			p.healthy = false
		}
		return
	}
	p.fails = 0
	if p.oks++; p.oks >= defaultSuccessThreshold {
		p.healthy = true
	}
}

// state returns the probe's health flag and last error.
func (p *probe) state() (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.healthy, p.lastErr
}

// Health tracks liveness and readiness probes for a service.
type Health struct {
	mu        sync.Mutex
	ready     bool
	liveness  []*probe
	readiness []*probe
	cancel    context.CancelFunc
}

// New creates a Health in the not-ready state. Call SetReady(true) once
// initialization completes.
func New() *Health {
	return &Health{}
}

// AddLivenessCheck registers a check that decides whether the process is
// alive at all, e.g. a goroutine count ceiling.
func (h *Health) AddLivenessCheck(name string, timeout time.Duration, check CheckFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.liveness = append(h.liveness, newProbe(name, timeout, check))
}

// AddReadinessCheck registers a check that decides whether the service can
// accept traffic, e.g. database connectivity.
func (h *Health) AddReadinessCheck(name string, timeout time.Duration, check CheckFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.readiness = append(h.readiness, newProbe(name, timeout, check))
}

// Start launches the background tick loop. All probes run once immediately
// and then on every interval. Register all checks before calling Start.
func (h *Health) Start(ctx context.Context, interval time.Duration) {
	ctx, cancel := context.WithCancel(ctx)

	h.mu.Lock()
	h.cancel = cancel
	probes := make([]*probe, 0, len(h.liveness)+len(h.readiness))
	probes = append(probes, h.liveness...)
	probes = append(probes, h.readiness...)
	h.mu.Unlock()

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			for _, p := range probes {
				p.observe(ctx)
			}
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
}

// Stop cancels the background tick loop. Safe to call more than once.
func (h *Health) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cancel != nil {
		h.cancel()
		h.cancel = nil
	}
}

// SetReady flips the manual readiness gate. Graceful shutdown sets it to
// false first so load balancers drain the instance before the listener closes.
func (h *Health) SetReady(ready bool) {
	h.mu.Lock()
	h.ready = ready
	h.mu.Unlock()
}

// IsReady reports whether the service is manually marked ready and every
// readiness probe is passing.
func (h *Health) IsReady() bool {
	h.mu.Lock()
	ready := h.ready
	probes := h.readiness
	h.mu.Unlock()

	if !ready {
		return false
	}
	for _, p := range probes {
		if ok, _ := p.state(); !ok {
			return false
		}
	}
	return true
}

// statusResponse is the JSON body for both probe endpoints.
type statusResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// LiveEndpoint serves /livez: 200 while all liveness probes pass, otherwise
// 503 with the failing checks listed.
func (h *Health) LiveEndpoint(w http.ResponseWriter, _ *http.Request) {
	h.mu.Lock()
	probes := append([]*probe(nil), h.liveness...)
	h.mu.Unlock()

	writeStatus(w, failures(probes))
}

// ReadyEndpoint serves /readyz: 200 while the service is marked ready and all
// readiness probes pass, otherwise 503 with details.
func (h *Health) ReadyEndpoint(w http.ResponseWriter, _ *http.Request) {
	h.mu.Lock()
	ready := h.ready
	probes := append([]*probe(nil), h.readiness...)
	h.mu.Unlock()

	fs := failures(probes)
	if !ready {
		fs["_readiness"] = "service is not ready"
	}
	writeStatus(w, fs)
}

func failures(probes []*probe) map[string]string {
	fs := make(map[string]string)
	for _, p := range probes {
		ok, err := p.state()
		if ok {
			continue
		}
		if err != nil {
			fs[p.name] = err.Error()
		} else {
			fs[p.name] = "check is unhealthy"
		}
	}
	return fs
}

func writeStatus(w http.ResponseWriter, fs map[string]string) {
	w.Header().Set("Content-Type", "application/json")

	resp := statusResponse{Status: "ok"}
	code := http.StatusOK
	if len(fs) > 0 {
		resp.Status = "unhealthy"
		resp.Checks = fs
		code = http.StatusServiceUnavailable
	}

	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(resp)
}
