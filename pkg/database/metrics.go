package database

import (
	"errors"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
)

// PoolStater is satisfied by *pgxpool.Pool.
type PoolStater interface {
	Stat() *pgxpool.Stat
}

type poolMetric struct {
	desc      *prometheus.Desc
	valueType prometheus.ValueType
	value     func(*pgxpool.Stat) float64
}

// PoolStatsCollector exports pgxpool statistics on each scrape.
type PoolStatsCollector struct {
	pool    PoolStater
	service string
	metrics []poolMetric
}

func gauge(name, help string, fn func(*pgxpool.Stat) float64) poolMetric {
	return poolMetric{
		desc:      prometheus.NewDesc(name, help, []string{"service"}, nil),
		valueType: prometheus.GaugeValue,
		value:     fn,
	}
}

func counter(name, help string, fn func(*pgxpool.Stat) float64) poolMetric {
	m := gauge(name, help, fn)
	m.valueType = prometheus.CounterValue
	return m
}

// NewPoolStatsCollector creates a collector for pool, labelled by service.
func NewPoolStatsCollector(pool PoolStater, service string) *PoolStatsCollector {
	return &PoolStatsCollector{
		pool:    pool,
		service: service,
		metrics: []poolMetric{
			gauge("db_pool_acquired_connections", "Connections currently checked out of the pool.",
				func(s *pgxpool.Stat) float64 { return float64(s.AcquiredConns()) }),
			gauge("db_pool_idle_connections", "Connections currently idle in the pool.",
				func(s *pgxpool.Stat) float64 { return float64(s.IdleConns()) }),
			gauge("db_pool_total_connections", "Connections currently open, in any state.",
				func(s *pgxpool.Stat) float64 { return float64(s.TotalConns()) }),
			gauge("db_pool_max_connections", "Configured pool size limit.",
				func(s *pgxpool.Stat) float64 { return float64(s.MaxConns()) }),
			counter("db_pool_acquire_count_total", "Successful connection acquisitions.",
				func(s *pgxpool.Stat) float64 { return float64(s.AcquireCount()) }),
			counter("db_pool_acquire_duration_seconds_total", "Cumulative time spent waiting to acquire a connection.",
				func(s *pgxpool.Stat) float64 { return s.AcquireDuration().Seconds() }),
			counter("db_pool_empty_acquire_count_total", "Acquisitions that had to wait because the pool was empty.",
				func(s *pgxpool.Stat) float64 { return float64(s.EmptyAcquireCount()) }),
			counter("db_pool_canceled_acquire_count_total", "Acquisitions abandoned by the caller's context.",
				func(s *pgxpool.Stat) float64 { return float64(s.CanceledAcquireCount()) }),
		},
	}
}

// Describe implements prometheus.Collector.
func (c *PoolStatsCollector) Describe(ch chan<- *prometheus.Desc) {
	for _, m := range c.metrics {
		ch <- m.desc
	}
}

// Collect implements prometheus.Collector.
func (c *PoolStatsCollector) Collect(ch chan<- prometheus.Metric) {
	if c.pool == nil {
		return
	}
	stat := c.pool.Stat()
	for _, m := range c.metrics {
		ch <- prometheus.MustNewConstMetric(m.desc, m.valueType, m.value(stat), c.service)
	}
}

// RegisterPoolMetrics registers a pool collector with reg. Registering the
// same service twice is not an error.
func RegisterPoolMetrics(reg prometheus.Registerer, pool PoolStater, service string) error {
	err := reg.Register(NewPoolStatsCollector(pool, service))
	var already prometheus.AlreadyRegisteredError
	if errors.As(err, &already) {
		return nil
	}
	return err
}
