package health

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func passing() CheckFunc {
	return func(context.Context) error { return nil }
}

func failing(msg string) CheckFunc {
	return func(context.Context) error { return errors.New(msg) }
}

func decodeStatus(t *testing.T, w *httptest.ResponseRecorder) statusResponse {
	t.Helper()
	var resp statusResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestLiveEndpoint_StartsHealthy(t *testing.T) {
	h := New()
	h.AddLivenessCheck("a", time.Second, passing())
	h.AddLivenessCheck("b", time.Second, failing("down"))

	// Probes assume healthy until observed, so both pass before Start.
	w := httptest.NewRecorder()
	h.LiveEndpoint(w, httptest.NewRequest(http.MethodGet, "/livez", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", decodeStatus(t, w).Status)
}

func TestProbe_FailureThreshold(t *testing.T) {
	p := newProbe("db", time.Second, failing("connection refused"))

	// Below the threshold the probe stays healthy.
	for range defaultFailureThreshold - 1 {
		p.observe(context.Background())
	}
	ok, err := p.state()
	assert.True(t, ok)
	assert.EqualError(t, err, "connection refused")

	p.observe(context.Background())
	ok, _ = p.state()
	assert.False(t, ok)
}

func TestProbe_RecoversAfterSuccess(t *testing.T) {
	healthy := &atomic.Bool{}
	p := newProbe("db", time.Second, func(context.Context) error {
		if healthy.Load() {
			return nil
		}
		return errors.New("down")
	})

	for range defaultFailureThreshold {
		p.observe(context.Background())
	}
	ok, _ := p.state()
	require.False(t, ok)

	healthy.Store(true)
	for range defaultSuccessThreshold {
		p.observe(context.Background())
	}
	ok, err := p.state()
	assert.True(t, ok)
	assert.NoError(t, err)
}

func TestProbe_TimeoutApplies(t *testing.T) {
	p := newProbe("slow", 10*time.Millisecond, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	for range defaultFailureThreshold {
		p.observe(context.Background())
	}
	ok, err := p.state()
	assert.False(t, ok)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestLiveEndpoint_ReportsFailures(t *testing.T) {
	h := New()
	h.AddLivenessCheck("goroutines", time.Second, failing("too many goroutines"))

	for range defaultFailureThreshold {
		h.liveness[0].observe(context.Background())
	}

	w := httptest.NewRecorder()
	h.LiveEndpoint(w, httptest.NewRequest(http.MethodGet, "/livez", nil))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	resp := decodeStatus(t, w)
	assert.Equal(t, "unhealthy", resp.Status)
	assert.Equal(t, "too many goroutines", resp.Checks["goroutines"])
}

func TestReadyEndpoint_ManualGate(t *testing.T) {
	h := New()
	h.AddReadinessCheck("postgres", time.Second, passing())

	// Not marked ready yet.
	w := httptest.NewRecorder()
	h.ReadyEndpoint(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, decodeStatus(t, w).Checks, "_readiness")
	assert.False(t, h.IsReady())

	h.SetReady(true)
	w = httptest.NewRecorder()
	h.ReadyEndpoint(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, h.IsReady())

	// Draining during shutdown.
	h.SetReady(false)
	assert.False(t, h.IsReady())
}

func TestIsReady_FailedProbeBlocksReadiness(t *testing.T) {
	h := New()
	h.AddReadinessCheck("postgres", time.Second, failing("down"))
	h.SetReady(true)

	require.True(t, h.IsReady(), "probe starts healthy")

	for range defaultFailureThreshold {
		h.readiness[0].observe(context.Background())
	}
	assert.False(t, h.IsReady())
}

func TestStartStop_TickLoop(t *testing.T) {
	var calls atomic.Int32
	h := New()
	h.AddLivenessCheck("counter", time.Second, func(context.Context) error {
		calls.Add(1)
		return nil
	})

	h.Start(context.Background(), 5*time.Millisecond)
	assert.Eventually(t, func() bool {
		return calls.Load() >= 3
	}, time.Second, time.Millisecond)

	h.Stop()
	h.Stop() // idempotent

	stopped := calls.Load()
	time.Sleep(20 * time.Millisecond)
	assert.LessOrEqual(t, calls.Load(), stopped+1, "loop stopped ticking")
}

func TestGoroutineCountCheck(t *testing.T) {
	assert.NoError(t, GoroutineCountCheck(100000)(context.Background()))
	assert.Error(t, GoroutineCountCheck(0)(context.Background()))
}
