package quadtree

import (
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	indexLabel   = "index"
	errTypeLabel = "error_type"
)

var (
	quadtreeObjects = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "quadtree_objects",
		Help: "The number of objects attached to a quad tree.",
	}, []string{indexLabel})

	quadtreeRelocations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quadtree_relocations",
		Help: "The number of objects that moved to another cell.",
	}, []string{indexLabel})

	quadtreeQueries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quadtree_queries",
		Help: "The number of visibility queries.",
	}, []string{indexLabel})

	quadtreeQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "quadtree_query_latency",
		Help:    "The time to run a visibility query.",
		Buckets: prometheus.ExponentialBuckets(0.000001, 4, 10),
	}, []string{indexLabel})

	quadtreeVisibleEntities = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "quadtree_visible_entities",
		Help:    "The number of entities returned by a visibility query.",
		Buckets: prometheus.ExponentialBuckets(1, 4, 10),
	}, []string{indexLabel})

	quadtreeCellsVisited = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quadtree_cells_visited",
		Help: "The number of cells whose residents were tested by visibility queries.",
	}, []string{indexLabel})

	quadtreeCellsPruned = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quadtree_cells_pruned",
		Help: "The number of cells skipped by visibility queries because of their aggregate mask.",
	}, []string{indexLabel})

	quadtreeObjectsTested = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quadtree_objects_tested",
		Help: "The number of objects tested by visibility queries.",
	}, []string{indexLabel})

	quadtreeErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quadtree_errors",
		Help: "The errors that occured while maintaining or querying a quad tree.",
	}, []string{indexLabel, errTypeLabel})
)

// Metrics of one index, resolved once so that queries do not build label
// maps.
type indexMetrics struct {
	name            string
	objects         prometheus.Gauge
	relocations     prometheus.Counter
	queries         prometheus.Counter
	queryLatency    prometheus.Observer
	visibleEntities prometheus.Observer
	cellsVisited    prometheus.Counter
	cellsPruned     prometheus.Counter
	objectsTested   prometheus.Counter
}

func newIndexMetrics(name string) *indexMetrics {
	labels := prometheus.Labels{indexLabel: name}

	return &indexMetrics{
		name:            name,
		objects:         quadtreeObjects.With(labels),
		relocations:     quadtreeRelocations.With(labels),
		queries:         quadtreeQueries.With(labels),
		queryLatency:    quadtreeQueryLatency.With(labels),
		visibleEntities: quadtreeVisibleEntities.With(labels),
		cellsVisited:    quadtreeCellsVisited.With(labels),
		cellsPruned:     quadtreeCellsPruned.With(labels),
		objectsTested:   quadtreeObjectsTested.With(labels),
	}
}

func (m *indexMetrics) instrumentQuery(latency time.Duration, visible, visited, pruned, tested int) {
	m.queries.Inc()
	m.queryLatency.Observe(latency.Seconds())
	m.visibleEntities.Observe(float64(visible))
	m.cellsVisited.Add(float64(visited))
	m.cellsPruned.Add(float64(pruned))
	m.objectsTested.Add(float64(tested))
}

func (m *indexMetrics) instrumentError(err error) {
	quadtreeErrors.
		With(prometheus.Labels{
			indexLabel:   m.name,
			errTypeLabel: errors.Type(err),
		}).
		Inc()
}
