package health

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestProbeEndpoint_success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	checker := New(nil, Config{ProbeTimeout: 5 * time.Second}, zap.NewNop())
	if !checker.probeEndpoint(context.Background(), srv.URL) {
		t.Error("expected probe to succeed")
	}
}

func TestProbeEndpoint_fallsBackToGet(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	checker := New(nil, Config{ProbeTimeout: 5 * time.Second}, zap.NewNop())
	if !checker.probeEndpoint(context.Background(), srv.URL) {
		t.Error("expected GET fallback to succeed")
	}
}

func TestProbeEndpoint_failure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	checker := New(nil, Config{ProbeTimeout: 5 * time.Second}, zap.NewNop())
	if checker.probeEndpoint(context.Background(), srv.URL) {
		t.Error("expected probe to fail")
	}
}

func TestNew_appendsHealthzToBareHost(t *testing.T) {
	checker := New([]Target{
		{Name: "a", URL: "http://host:8081"},
		{Name: "b", URL: "http://host:8081/"},
		{Name: "c", URL: "http://host:8081/custom"},
	}, Config{}, zap.NewNop())

	want := []string{"http://host:8081/healthz", "http://host:8081/healthz", "http://host:8081/custom"}
	for i, s := range checker.Statuses() {
		if s.URL != want[i] {
			t.Errorf("target %s URL = %q, want %q", s.Name, s.URL, want[i])
		}
	}
}

func TestCheckAll_degradesAfterThreshold(t *testing.T) {
	var paths atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths.Store(r.URL.Path)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	checker := New([]Target{{Name: "inventory", URL: srv.URL}}, Config{
		ProbeTimeout:  5 * time.Second,
		FailThreshold: 3,
	}, zap.NewNop())

	var transitions []bool
	checker.SetTransition(func(_ Target, healthy bool) { transitions = append(transitions, healthy) })
	var failures int
	checker.SetMetricsRecord(func(success bool) {
		if !success {
			failures++
		}
	})

	for i := 0; i < 2; i++ {
		checker.CheckAll(context.Background())
	}
	if !checker.Ready() {
		t.Error("expected ready below the threshold")
	}

	checker.CheckAll(context.Background())
	if checker.Ready() {
		t.Error("expected not ready at the threshold")
	}
	if len(transitions) != 1 || transitions[0] {
		t.Errorf("expected one degraded transition, got %v", transitions)
	}
	if failures != 3 {
		t.Errorf("expected 3 failed probes recorded, got %d", failures)
	}
	if p, _ := paths.Load().(string); p != "/healthz" {
		t.Errorf("probed path = %q, want /healthz", p)
	}
}

func TestCheckAll_recoversOnSuccess(t *testing.T) {
	var failCount int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// HEAD and GET both fail during the outage.
		if atomic.AddInt32(&failCount, 1) <= 6 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	checker := New([]Target{{Name: "inventory", URL: srv.URL}}, Config{
		ProbeTimeout:  5 * time.Second,
		FailThreshold: 3,
	}, zap.NewNop())

	var transitions []bool
	checker.SetTransition(func(_ Target, healthy bool) { transitions = append(transitions, healthy) })

	for i := 0; i < 4; i++ {
		checker.CheckAll(context.Background())
	}

	if !checker.Ready() {
		t.Error("expected ready after recovery")
	}
	if len(transitions) != 2 || transitions[0] || !transitions[1] {
		t.Errorf("expected degraded then recovered, got %v", transitions)
	}
	st := checker.Statuses()[0]
	if !st.Healthy || st.FailCount != 0 || st.LastProbe.IsZero() {
		t.Errorf("unexpected status: %+v", st)
	}
}

func TestReady_noTargets(t *testing.T) {
	if !New(nil, Config{}, zap.NewNop()).Ready() {
		t.Error("a checker without targets should be ready")
	}
}
