package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cowboyjack911/pc-install-repairhub/internal/domain"
)

type stubPinger struct {
	err error
}

func (p stubPinger) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return p.err
}

type stubOutbox struct {
	domain.OutboxRepository
	stats domain.OutboxStats
	err   error
}

func (s stubOutbox) Stats(context.Context) (domain.OutboxStats, error) {
	return s.stats, s.err
}

func TestHealthHandler(t *testing.T) {
	handler := NewHandler("v1.0.0").WithCommit("abc123")
	handler.RegisterChecker("storage", NewPingChecker("storage", stubPinger{}))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", w.Code)
	}

	var response Response
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if response.Status != StatusHealthy {
		t.Errorf("expected status healthy, got %s", response.Status)
	}
	if response.Version != "v1.0.0" || response.Commit != "abc123" {
		t.Errorf("unexpected build info: %s %s", response.Version, response.Commit)
	}
	if len(response.Checks) != 1 {
		t.Errorf("expected 1 check, got %d", len(response.Checks))
	}
}

func TestHealthHandler_Unhealthy(t *testing.T) {
	handler := NewHandler("v1.0.0")
	handler.RegisterChecker("storage", NewPingChecker("storage", stubPinger{err: errors.New("connection refused")}))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected status 503, got %d", w.Code)
	}

	var response Response
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if response.Status != StatusUnhealthy {
		t.Errorf("expected status unhealthy, got %s", response.Status)
	}
	if response.Checks["storage"].Message != "connection refused" {
		t.Errorf("unexpected message: %q", response.Checks["storage"].Message)
	}
}

func TestHealthHandler_DegradedStillServes(t *testing.T) {
	handler := NewHandler("v1.0.0")
	handler.RegisterChecker("outbox", NewOutboxChecker(stubOutbox{
		stats: domain.OutboxStats{PendingCount: 50},
	}, 10, 0))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if w.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	handler.ReadinessHandler(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if w.Code != http.StatusOK {
		t.Errorf("expected ready with degraded outbox, got %d", w.Code)
	}
}

func TestLivenessHandler(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/livez", nil)
	w := httptest.NewRecorder()

	LivenessHandler(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", w.Code)
	}
	if w.Body.String() != "ok" {
		t.Errorf("expected body 'ok', got %s", w.Body.String())
	}
}

func TestReadinessHandler(t *testing.T) {
	tests := []struct {
		name     string
		pingErr  error
		wantCode int
		wantBody string
	}{
		{name: "ready", wantCode: http.StatusOK, wantBody: "ready"},
		{name: "storage down", pingErr: errors.New("down"), wantCode: http.StatusServiceUnavailable, wantBody: "not ready"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewHandler("v1.0.0")
			handler.RegisterChecker("storage", NewPingChecker("storage", stubPinger{err: tt.pingErr}))

			w := httptest.NewRecorder()
			handler.ReadinessHandler(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))

			if w.Code != tt.wantCode {
				t.Errorf("expected status %d, got %d", tt.wantCode, w.Code)
			}
			if w.Body.String() != tt.wantBody {
				t.Errorf("expected body %q, got %q", tt.wantBody, w.Body.String())
			}
		})
	}
}

func TestSimpleChecker(t *testing.T) {
	checker := NewSimpleChecker("test", func(context.Context) error {
		time.Sleep(10 * time.Millisecond)
		return nil
	})

	check := checker.Check(context.Background())

	if check.Status != StatusHealthy {
		t.Errorf("expected status healthy, got %s", check.Status)
	}
	if check.DurationMs < 10 {
		t.Errorf("expected duration >= 10ms, got %dms", check.DurationMs)
	}
}

func TestSimpleChecker_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	check := NewPingChecker("storage", stubPinger{}).Check(ctx)
	if check.Status != StatusUnhealthy {
		t.Errorf("expected unhealthy for cancelled context, got %s", check.Status)
	}
}

func TestOutboxChecker(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		repo       stubOutbox
		maxPending int
		maxAge     time.Duration
		want       Status
	}{
		{
			name: "empty backlog",
			repo: stubOutbox{},
			want: StatusHealthy,
		},
		{
			name:       "too many pending",
			repo:       stubOutbox{stats: domain.OutboxStats{PendingCount: 11}},
			maxPending: 10,
			want:       StatusDegraded,
		},
		{
			name: "oldest message too old",
			repo: stubOutbox{stats: domain.OutboxStats{
				PendingCount:    1,
				OldestPendingAt: now.Add(-10 * time.Minute),
			}},
			maxAge: 5 * time.Minute,
			want:   StatusDegraded,
		},
		{
			name: "stats error",
			repo: stubOutbox{err: errors.New("db is gone")},
			want: StatusUnhealthy,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checker := NewOutboxChecker(tt.repo, tt.maxPending, tt.maxAge)
			checker.now = func() time.Time { return now }

			check := checker.Check(context.Background())
			if check.Status != tt.want {
				t.Errorf("expected %s, got %s (%s)", tt.want, check.Status, check.Message)
			}
		})
	}
}
