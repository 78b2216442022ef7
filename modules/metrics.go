package modules

import (
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	errTypeLabel = "error_type"
	moduleLabel  = "module"
	phaseLabel   = "phase"
	sceneLabel   = "scene"

	updatePhase = "update"
	queryPhase  = "query"
)

var (
	moduleLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "module_latency",
		Help:    "The time spent by a module in a frame phase.",
		Buckets: prometheus.ExponentialBuckets(0.00001, 4, 10),
	}, []string{
		moduleLabel,
		phaseLabel,
	})

	moduleErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "module_errors",
		Help: "The errors returned by modules.",
	}, []string{
		moduleLabel,
		phaseLabel,
		errTypeLabel,
	})

	frameDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "frame_duration",
		Help:    "The time to run a whole frame.",
		Buckets: prometheus.ExponentialBuckets(0.0001, 2, 12),
	}, []string{sceneLabel})
)

func measureLatency(module Module, phase string, f func() error) error {
	start := time.Now()

	err := f()
	moduleLatency.With(prometheus.Labels{
		moduleLabel: module.Name(),
		phaseLabel:  phase,
	}).Observe(time.Since(start).Seconds())

	if err != nil {
		moduleErrors.With(prometheus.Labels{
			moduleLabel:  module.Name(),
			phaseLabel:   phase,
			errTypeLabel: errors.Type(err),
		}).Inc()
	}
	return err
}

func instrumentFrame(scene string, d time.Duration) {
	frameDuration.
		With(prometheus.Labels{sceneLabel: scene}).
		Observe(d.Seconds())
}
