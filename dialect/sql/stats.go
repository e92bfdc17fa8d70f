package sql

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/syssam/gqlmap/dialect"
)

// QueryStats holds query execution statistics.
type QueryStats struct {
	// TotalQueries is the total number of queries executed.
	TotalQueries atomic.Int64
	// TotalExecs is the total number of exec statements executed.
	TotalExecs atomic.Int64
	// TotalDuration is the total time spent executing queries.
	TotalDuration atomic.Int64 // nanoseconds
	// SlowQueries is the count of queries exceeding the slow threshold.
	SlowQueries atomic.Int64
	// Errors is the count of query errors.
	Errors atomic.Int64
}

// Stats returns a snapshot of the current statistics.
func (s *QueryStats) Stats() StatsSnapshot {
	return StatsSnapshot{
		TotalQueries:  s.TotalQueries.Load(),
		TotalExecs:    s.TotalExecs.Load(),
		TotalDuration: time.Duration(s.TotalDuration.Load()),
		SlowQueries:   s.SlowQueries.Load(),
		Errors:        s.Errors.Load(),
	}
}

// StatsSnapshot is a point-in-time snapshot of query statistics.
type StatsSnapshot struct {
	TotalQueries  int64
	TotalExecs    int64
	TotalDuration time.Duration
	SlowQueries   int64
	Errors        int64
}

// AvgQueryDuration returns the average statement duration.
func (s StatsSnapshot) AvgQueryDuration() time.Duration {
	total := s.TotalQueries + s.TotalExecs
	if total == 0 {
		return 0
	}
	return s.TotalDuration / time.Duration(total)
}

// String returns a human-readable summary of the statistics.
func (s StatsSnapshot) String() string {
	return fmt.Sprintf(
		"queries=%d execs=%d duration=%s avg=%s slow=%d errors=%d",
		s.TotalQueries, s.TotalExecs, s.TotalDuration, s.AvgQueryDuration(),
		s.SlowQueries, s.Errors,
	)
}

// Metrics are the Prometheus collectors fed by a StatsDriver.
type Metrics struct {
	Duration *prometheus.HistogramVec
	Errors   *prometheus.CounterVec
	Slow     prometheus.Counter
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		Duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "gqlmap",
			Subsystem: "sql",
			Name:      "statement_duration_seconds",
			Help:      "Duration of SQL statements issued by the store.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind"}),
		Errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gqlmap",
			Subsystem: "sql",
			Name:      "statement_errors_total",
			Help:      "SQL statements that returned an error.",
		}, []string{"kind"}),
		Slow: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "gqlmap",
			Subsystem: "sql",
			Name:      "slow_statements_total",
			Help:      "SQL statements slower than the configured threshold.",
		}),
	}
	for _, c := range []prometheus.Collector{m.Duration, m.Errors, m.Slow} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("dialect/sql: register metrics: %w", err)
		}
	}
	return m, nil
}

// StatsDriver wraps a dialect.Driver with query statistics collection.
type StatsDriver struct {
	dialect.Driver
	stats         *QueryStats
	metrics       *Metrics
	log           *zap.Logger
	slowThreshold time.Duration
	mu            sync.RWMutex
}

// StatsOption configures the StatsDriver.
type StatsOption func(*StatsDriver)

// WithSlowThreshold sets the threshold for slow query detection.
// Default is 100ms.
func WithSlowThreshold(d time.Duration) StatsOption {
	return func(s *StatsDriver) {
		s.slowThreshold = d
	}
}

// WithLogger logs slow statements at warn level and every statement at
// debug level.
func WithLogger(log *zap.Logger) StatsOption {
	return func(s *StatsDriver) {
		s.log = log
	}
}

// WithMetrics feeds the given Prometheus collectors.
func WithMetrics(m *Metrics) StatsOption {
	return func(s *StatsDriver) {
		s.metrics = m
	}
}

// NewStatsDriver wraps a Driver with statistics collection.
//
//	drv, _ := sql.Open(dialect.Postgres, dsn)
//	sd := sql.NewStatsDriver(drv,
//	    sql.WithSlowThreshold(200*time.Millisecond),
//	    sql.WithLogger(logger),
//	)
//	st := sqlstore.New(sd, catalog)
func NewStatsDriver(drv dialect.Driver, opts ...StatsOption) *StatsDriver {
	s := &StatsDriver{
		Driver:        drv,
		stats:         &QueryStats{},
		log:           zap.NewNop(),
		slowThreshold: 100 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// QueryStats returns the underlying QueryStats for reading statistics.
func (d *StatsDriver) QueryStats() *QueryStats {
	return d.stats
}

// SlowThreshold returns the current slow query threshold.
func (d *StatsDriver) SlowThreshold() time.Duration {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.slowThreshold
}

// SetSlowThreshold updates the slow query threshold.
func (d *StatsDriver) SetSlowThreshold(threshold time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.slowThreshold = threshold
}

// Query executes a query and records statistics.
func (d *StatsDriver) Query(ctx context.Context, query string, args, v any) error {
	start := time.Now()
	err := d.Driver.Query(ctx, query, args, v)
	d.record(query, args, start, err, true)
	return err
}

// Exec executes a statement and records statistics.
func (d *StatsDriver) Exec(ctx context.Context, query string, args, v any) error {
	start := time.Now()
	err := d.Driver.Exec(ctx, query, args, v)
	d.record(query, args, start, err, false)
	return err
}

func (d *StatsDriver) record(query string, args any, start time.Time, err error, isQuery bool) {
	duration := time.Since(start)
	kind := "exec"
	if isQuery {
		kind = "query"
		d.stats.TotalQueries.Add(1)
	} else {
		d.stats.TotalExecs.Add(1)
	}
	d.stats.TotalDuration.Add(int64(duration))
	if d.metrics != nil {
		d.metrics.Duration.WithLabelValues(kind).Observe(duration.Seconds())
	}
	if err != nil {
		d.stats.Errors.Add(1)
		if d.metrics != nil {
			d.metrics.Errors.WithLabelValues(kind).Inc()
		}
	}
	d.log.Debug("sql statement", zap.String("kind", kind), zap.String("query", query),
		zap.Any("args", args), zap.Duration("duration", duration), zap.Error(err))

	if duration > d.SlowThreshold() {
		d.stats.SlowQueries.Add(1)
		if d.metrics != nil {
			d.metrics.Slow.Inc()
		}
		d.log.Warn("slow query detected", zap.Duration("duration", duration),
			zap.String("query", query), zap.Any("args", args))
	}
}

// Tx starts a transaction that also records statistics.
func (d *StatsDriver) Tx(ctx context.Context) (dialect.Tx, error) {
	tx, err := d.Driver.Tx(ctx)
	if err != nil {
		return nil, err
	}
	return &StatsTx{Tx: tx, driver: d}, nil
}

// StatsTx wraps a transaction with statistics collection.
type StatsTx struct {
	dialect.Tx
	driver *StatsDriver
}

// Query executes a query within the transaction and records statistics.
func (tx *StatsTx) Query(ctx context.Context, query string, args, v any) error {
	start := time.Now()
	err := tx.Tx.Query(ctx, query, args, v)
	tx.driver.record(query, args, start, err, true)
	return err
}

// Exec executes a statement within the transaction and records statistics.
func (tx *StatsTx) Exec(ctx context.Context, query string, args, v any) error {
	start := time.Now()
	err := tx.Tx.Exec(ctx, query, args, v)
	tx.driver.record(query, args, start, err, false)
	return err
}

var (
	_ dialect.Driver = (*StatsDriver)(nil)
	_ dialect.Tx     = (*StatsTx)(nil)
)
