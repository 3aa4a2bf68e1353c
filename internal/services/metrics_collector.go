package services

import (
	"log"
	"sync"
	"time"

	"dcspace-backend/internal/metrics"
)

// PoolStats is a snapshot of database pool usage.
type PoolStats struct {
	Acquired int32
	Idle     int32
	Total    int32
}

// MetricsCollector periodically exports database pool usage as gauges.
type MetricsCollector struct {
	stats           func() PoolStats
	collectInterval time.Duration
	stopChan        chan struct{}
	wg              sync.WaitGroup
}

func NewMetricsCollector(stats func() PoolStats, interval time.Duration) *MetricsCollector {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &MetricsCollector{
		stats:           stats,
		collectInterval: interval,
		stopChan:        make(chan struct{}),
	}
}

// Start begins collecting in the background.
func (c *MetricsCollector) Start() {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ticker := time.NewTicker(c.collectInterval)
		defer ticker.Stop()

		c.Collect()
		for {
			select {
			case <-c.stopChan:
				return
			case <-ticker.C:
				c.Collect()
			}
		}
	}()
	log.Printf("[Metrics] Pool collector started (interval %s)", c.collectInterval)
}

// Stop halts collection and waits for the collector goroutine.
func (c *MetricsCollector) Stop() {
	close(c.stopChan)
	c.wg.Wait()
}

// Collect exports one snapshot.
func (c *MetricsCollector) Collect() {
	s := c.stats()
	metrics.DBPoolConnections.WithLabelValues("acquired").Set(float64(s.Acquired))
	metrics.DBPoolConnections.WithLabelValues("idle").Set(float64(s.Idle))
	metrics.DBPoolConnections.WithLabelValues("total").Set(float64(s.Total))
}
