package metrics

import "time"

// Source is whatever the room façade exposes for periodic metric
// collection. Declared here, implemented in pkg/room, so pkg/metrics
// never imports pkg/room (which itself imports pkg/metrics) — the same
// inversion pkg/dispatch uses for pkg/view's Batch.
type Source interface {
	ActiveWriters() int
	RemovedWriters() int
	ReplicationBacklog() map[string]int // core label -> backlog count
}

// Collector periodically samples a Source into the package's gauges, the
// way the teacher's collector samples the manager into cluster gauges.
type Collector struct {
	source Source
	stopCh chan struct{}
}

// NewCollector returns a Collector sampling source every tick.
func NewCollector(source Source) *Collector {
	return &Collector{source: source, stopCh: make(chan struct{})}
}

// Start begins the periodic sampling loop.
func (c *Collector) Start() {
	ticker := time.NewTicker(15 * time.Second)
	go func() {
		c.collect()
		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop stops the sampling loop.
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	WritersTotal.WithLabelValues("active").Set(float64(c.source.ActiveWriters()))
	WritersTotal.WithLabelValues("removed").Set(float64(c.source.RemovedWriters()))
	for core, backlog := range c.source.ReplicationBacklog() {
		ReplicationBacklog.WithLabelValues(core).Set(float64(backlog))
	}
}
