package metrics

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"confluence-engine/internal/model"
)

// HealthStatus represents the system health.
type HealthStatus struct {
	mu sync.RWMutex

	RedisConnected bool               `json:"redis_connected"`
	SQLiteOK       bool               `json:"sqlite_ok"`
	Halted         bool               `json:"halted"`
	GuardState     model.CapitalState `json:"guard_state"`
	LastCycleAt    time.Time          `json:"last_cycle_at"`
	Symbols        []string           `json:"symbols"`
	Timeframes     []string           `json:"timeframes"`

	// Liveness probe results
	RedisLatencyMs  float64   `json:"redis_latency_ms"`
	SQLiteLatencyMs float64   `json:"sqlite_latency_ms"`
	LastCheckAt     time.Time `json:"last_check_at"`
	StartedAt       time.Time `json:"started_at"`
}

// NewHealthStatus returns a default health status.
func NewHealthStatus() *HealthStatus {
	return &HealthStatus{
		GuardState: model.StateNormal,
		StartedAt:  time.Now(),
	}
}

func (h *HealthStatus) SetRedisConnected(v bool) {
	h.mu.Lock()
	h.RedisConnected = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetSQLiteOK(v bool) {
	h.mu.Lock()
	h.SQLiteOK = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetHalted(v bool) {
	h.mu.Lock()
	h.Halted = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetGuardState(s model.CapitalState) {
	h.mu.Lock()
	h.GuardState = s
	h.mu.Unlock()
}

func (h *HealthStatus) SetLastCycle(t time.Time) {
	h.mu.Lock()
	h.LastCycleAt = t
	h.mu.Unlock()
}

func (h *HealthStatus) SetUniverse(symbols []string, tfs []model.Timeframe) {
	labels := make([]string, len(tfs))
	for i, tf := range tfs {
		labels[i] = tf.String()
	}
	h.mu.Lock()
	h.Symbols = append([]string(nil), symbols...)
	h.Timeframes = labels
	h.mu.Unlock()
}

// CheckRedis pings Redis and records latency + connectivity.
func (h *HealthStatus) CheckRedis(ctx context.Context, rdb *goredis.Client) {
	start := time.Now()
	err := rdb.Ping(ctx).Err()
	latency := time.Since(start)

	h.mu.Lock()
	h.RedisConnected = err == nil
	h.RedisLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// CheckSQLite pings the journal database and records latency + health.
func (h *HealthStatus) CheckSQLite(ctx context.Context, db *sql.DB) {
	start := time.Now()
	err := db.PingContext(ctx)
	latency := time.Since(start)

	h.mu.Lock()
	h.SQLiteOK = err == nil
	h.SQLiteLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// StartLivenessChecker runs periodic dependency checks. Nil dependencies are skipped.
func (h *HealthStatus) StartLivenessChecker(ctx context.Context, rdb *goredis.Client, sqlDB *sql.DB, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
				if rdb != nil {
					h.CheckRedis(probeCtx, rdb)
				}
				if sqlDB != nil {
					h.CheckSQLite(probeCtx, sqlDB)
				}
				cancel()
			}
		}
	}()
}

// Snapshot returns a copy of the current health fields and the overall verdict.
func (h *HealthStatus) Snapshot() (status string, code int, body map[string]any) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	status = "healthy"
	code = http.StatusOK
	if !h.RedisConnected || !h.SQLiteOK {
		status = "degraded"
	}
	if h.Halted || (!h.RedisConnected && !h.SQLiteOK) {
		status = "unhealthy"
		code = http.StatusServiceUnavailable
	}

	lastCycle := ""
	if !h.LastCycleAt.IsZero() {
		lastCycle = h.LastCycleAt.Format(time.RFC3339)
	}

	body = map[string]any{
		"status":            status,
		"uptime":            time.Since(h.StartedAt).Round(time.Second).String(),
		"redis_connected":   h.RedisConnected,
		"redis_latency_ms":  h.RedisLatencyMs,
		"sqlite_ok":         h.SQLiteOK,
		"sqlite_latency_ms": h.SQLiteLatencyMs,
		"halted":            h.Halted,
		"guard_state":       h.GuardState,
		"last_cycle_at":     lastCycle,
		"symbols":           h.Symbols,
		"timeframes":        h.Timeframes,
		"last_check_at":     h.LastCheckAt.Format(time.RFC3339),
	}
	return status, code, body
}

// ServeHTTP handles the /healthz endpoint. A halted engine reports 503 so
// orchestrators can alert on it.
func (h *HealthStatus) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	_, code, body := h.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	if code != http.StatusOK {
		w.WriteHeader(code)
	}
	json.NewEncoder(w).Encode(body)
}
