package health

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/pcquote-api/internal/common"
)

var draining atomic.Bool

// SetReady flips readiness. The API marks itself not ready as soon as
// shutdown starts, before in-flight quote requests are drained.
func SetReady(ready bool) {
	draining.Store(!ready)
}

// Checker is what readiness depends on: the catalog database and the Redis
// instance holding quote sessions, rate limits and the task queue.
type Checker interface {
	PingDB(ctx context.Context, timeout time.Duration) error
	PingRedis(ctx context.Context, timeout time.Duration) error
}

// Probes implements Checker against the live pool and client.
type Probes struct {
	Pool  *pgxpool.Pool
	Redis *redis.Client
}

// PingDB implements Checker.
func (p Probes) PingDB(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return p.Pool.Ping(ctx)
}

// PingRedis implements Checker.
func (p Probes) PingRedis(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return p.Redis.Ping(ctx).Err()
}

// Report is the readiness body.
type Report struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Handler serves /health/live and /health/ready.
type Handler struct {
	Checker      Checker
	DBTimeout    time.Duration
	RedisTimeout time.Duration
}

// Live answers as long as the process serves HTTP.
func (h Handler) Live(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok"))
}

// Ready pings Postgres and Redis in parallel and answers 503 unless both
// respond within their timeouts.
func (h Handler) Ready(w http.ResponseWriter, r *http.Request) {
	if draining.Load() {
		common.JSON(w, http.StatusServiceUnavailable, Report{Status: "draining"})
		return
	}
	if h.Checker == nil {
		common.JSON(w, http.StatusServiceUnavailable, Report{Status: "unconfigured"})
		return
	}

	checks := map[string]func(context.Context, time.Duration) error{
		"postgres": h.Checker.PingDB,
		"redis":    h.Checker.PingRedis,
	}
	timeouts := map[string]time.Duration{
		"postgres": orDefault(h.DBTimeout, 500*time.Millisecond),
		"redis":    orDefault(h.RedisTimeout, 300*time.Millisecond),
	}

	var (
		mu     sync.Mutex
		wg     sync.WaitGroup
		report = Report{Status: "ready", Checks: make(map[string]string, len(checks))}
	)
	for name, ping := range checks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result := "ok"
			if err := ping(r.Context(), timeouts[name]); err != nil {
				result = err.Error()
			}
			mu.Lock()
			defer mu.Unlock()
			report.Checks[name] = result
			if result != "ok" {
				report.Status = "degraded"
			}
		}()
	}
	wg.Wait()

	code := http.StatusOK
	if report.Status != "ready" {
		code = http.StatusServiceUnavailable
	}
	common.JSON(w, code, report)
}

func orDefault(d, fallback time.Duration) time.Duration {
	if d <= 0 {
		return fallback
	}
	return d
}
