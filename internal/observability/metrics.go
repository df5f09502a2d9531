package observability

import (
	"context"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/yungbote/markbook-backend/internal/platform/logger"
)

type MetricsConfig struct {
	Enabled        bool
	ScrapeInterval time.Duration
}

type Metrics struct {
	apiRequests   *CounterVec
	apiLatency    *HistogramVec
	apiInflight   *Gauge
	apiReqError   *Counter
	snapshotOps   *CounterVec
	snapshotBytes *HistogramVec
	storageUp     *GaugeVec
	sqlStats      *GaugeVec
	redisPing     *Gauge

	scrapeInterval time.Duration
}

var (
	initOnce sync.Once
	instance *Metrics
)

// InitMetrics builds the process-wide registry. It returns nil when
// metrics are disabled; every method is safe on a nil receiver.
func InitMetrics(cfg MetricsConfig) *Metrics {
	if !cfg.Enabled {
		return nil
	}
	initOnce.Do(func() {
		interval := cfg.ScrapeInterval
		if interval <= 0 {
			interval = 10 * time.Second
		}
		instance = &Metrics{
			apiRequests: NewCounterVec("mb_api_requests_total", "Total API requests by method/route/status.", []string{"method", "route", "status"}),
			apiLatency: NewHistogramVec(
				"mb_api_request_duration_seconds",
				"API request latency in seconds by method/route/status.",
				[]string{"method", "route", "status"},
				[]float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
			),
			apiInflight: NewGauge("mb_api_inflight_requests", "In-flight API requests."),
			apiReqError: NewCounter("mb_api_requests_error_total", "Total API requests with 5xx status."),
			snapshotOps: NewCounterVec("mb_snapshot_operations_total", "Snapshot gateway operations by op/outcome.", []string{"op", "outcome"}),
			snapshotBytes: NewHistogramVec(
				"mb_snapshot_size_bytes",
				"Size of saved and loaded snapshots in bytes by op.",
				[]string{"op"},
				[]float64{512, 1024, 4096, 16384, 65536, 262144, 1048576},
			),
			storageUp:      NewGaugeVec("mb_storage_up", "Whether the snapshot storage backend is configured (1) or not (0).", []string{"backend"}),
			sqlStats:       NewGaugeVec("mb_sql_pool", "SQL connection pool stats by stat.", []string{"stat"}),
			redisPing:      NewGauge("mb_redis_ping_seconds", "Last redis ping latency in seconds."),
			scrapeInterval: interval,
		}
	})
	return instance
}

func (m *Metrics) StartServer(ctx context.Context, log *logger.Logger, addr string) {
	if m == nil {
		return
	}
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           http.HandlerFunc(m.WriteHTTP),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = srv.Shutdown(shutdownCtx)
		cancel()
	}()
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			if log != nil {
				log.Error("metrics server failed", "error", err, "addr", addr)
			}
		}
	}()
}

func (m *Metrics) WriteHTTP(w http.ResponseWriter, r *http.Request) {
	if m == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	_ = m.WritePrometheus(w)
}

func (m *Metrics) WritePrometheus(w io.Writer) error {
	if m == nil {
		return nil
	}
	for _, c := range []interface{ WritePrometheus(io.Writer) error }{
		m.apiRequests, m.apiLatency, m.apiInflight, m.apiReqError,
		m.snapshotOps, m.snapshotBytes, m.storageUp, m.sqlStats, m.redisPing,
	} {
		if err := c.WritePrometheus(w); err != nil {
			return err
		}
	}
	return nil
}

func (m *Metrics) ObserveAPI(method, route, status string, dur time.Duration) {
	if m == nil {
		return
	}
	if method == "" {
		method = "UNKNOWN"
	}
	if route == "" {
		route = "unknown"
	}
	if status == "" {
		status = "0"
	}
	m.apiRequests.Inc(method, route, status)
	m.apiLatency.Observe(dur.Seconds(), method, route, status)
	if isServerErrorStatus(status) {
		m.apiReqError.Inc()
	}
}

func (m *Metrics) ApiInflightInc() {
	if m == nil {
		return
	}
	m.apiInflight.Inc()
}

func (m *Metrics) ApiInflightDec() {
	if m == nil {
		return
	}
	m.apiInflight.Dec()
}

// ObserveSnapshotOp counts one gateway call; outcome is "ok", "not_found",
// "invalid", "unconfigured" or "error".
func (m *Metrics) ObserveSnapshotOp(op, outcome string) {
	if m == nil {
		return
	}
	m.snapshotOps.Inc(op, outcome)
}

func (m *Metrics) ObserveSnapshotSize(op string, size int64) {
	if m == nil {
		return
	}
	m.snapshotBytes.Observe(float64(size), op)
}

func (m *Metrics) SetStorageUp(backend string, up bool) {
	if m == nil {
		return
	}
	v := 0.0
	if up {
		v = 1
	}
	m.storageUp.Set(v, backend)
}

func (m *Metrics) StartSQLCollector(ctx context.Context, log *logger.Logger, db *gorm.DB) {
	if m == nil || db == nil {
		return
	}
	go func() {
		ticker := time.NewTicker(m.scrapeInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				sqlDB, err := db.DB()
				if err != nil {
					if log != nil {
						log.Warn("metrics: sql stats unavailable", "error", err)
					}
					continue
				}
				stats := sqlDB.Stats()
				m.sqlStats.Set(float64(stats.OpenConnections), "open_connections")
				m.sqlStats.Set(float64(stats.InUse), "in_use")
				m.sqlStats.Set(float64(stats.Idle), "idle")
				m.sqlStats.Set(float64(stats.WaitCount), "wait_count")
				m.sqlStats.Set(stats.WaitDuration.Seconds(), "wait_duration_seconds")
			}
		}
	}()
}

func (m *Metrics) StartRedisCollector(ctx context.Context, log *logger.Logger, rdb redis.UniversalClient) {
	if m == nil || rdb == nil {
		return
	}
	go func() {
		ticker := time.NewTicker(m.scrapeInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				start := time.Now()
				if err := rdb.Ping(ctx).Err(); err != nil {
					m.storageUp.Set(0, "redis")
					if log != nil {
						log.Warn("metrics: redis ping failed", "error", err)
					}
					continue
				}
				m.storageUp.Set(1, "redis")
				m.redisPing.Set(time.Since(start).Seconds())
			}
		}
	}()
}
