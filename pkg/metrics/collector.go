package metrics

import (
	"time"

	"github.com/penghs520/pgraph/pkg/graph"
	"github.com/penghs520/pgraph/pkg/query"
)

// LeaderReporter reports whether this node leads the cluster.
// Standalone deployments pass nil.
type LeaderReporter interface {
	IsLeader() bool
}

// Collector periodically publishes engine statistics.
type Collector struct {
	db     *graph.DB
	engine *query.Engine
	leader LeaderReporter
	stopCh chan struct{}
}

// NewCollector creates a new metrics collector.
func NewCollector(db *graph.DB, engine *query.Engine, leader LeaderReporter) *Collector {
	return &Collector{
		db:     db,
		engine: engine,
		leader: leader,
		stopCh: make(chan struct{}),
	}
}

// Start begins collecting metrics.
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

// Stop stops the collector.
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	stats := c.db.Stats()
	VerticesTotal.Set(float64(stats.Vertices))
	EdgesTotal.Set(float64(stats.Edges))
	VertexTypesTotal.Set(float64(stats.VertexTypes))
	EdgeTypesTotal.Set(float64(stats.EdgeTypes))
	VertexLRUEntries.Set(float64(stats.LRUEntries))
	VertexLRUHitRatio.Set(stats.HitRate())

	if c.engine != nil {
		PredicateErrorsTotal.Set(float64(c.engine.PredicateErrors()))
	}

	if c.leader != nil {
		if c.leader.IsLeader() {
			RaftLeader.Set(1)
		} else {
			RaftLeader.Set(0)
		}
	}
}
