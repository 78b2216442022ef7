package models

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	sceneLabel = "scene"
)

var (
	sceneCount = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "scene_count",
		Help: "The number of scenes.",
	}, []string{sceneLabel})

	sceneEntities = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "scene_entities",
		Help: "The number of entities in a scene.",
	}, []string{sceneLabel})

	sceneFrames = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scene_frames_total",
		Help: "The total number of frames stepped.",
	}, []string{sceneLabel})

	sceneFrameLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "scene_frame_latency",
		Help:    "The time to move the entities of a scene and refresh their quad tree membership.",
		Buckets: prometheus.ExponentialBuckets(0.00001, 4, 10),
	}, []string{sceneLabel})
)

func instrumentIncreaseSceneGauge(scene string) {
	sceneCount.
		With(prometheus.Labels{sceneLabel: scene}).
		Inc()
}

func instrumentDecreaseSceneGauge(scene string) {
	sceneCount.
		With(prometheus.Labels{sceneLabel: scene}).
		Dec()
}

func instrumentSetEntityGauge(scene string, n int) {
	sceneEntities.
		With(prometheus.Labels{sceneLabel: scene}).
		Set(float64(n))
}

func instrumentFrame(scene string, latency time.Duration) {
	labels := prometheus.Labels{sceneLabel: scene}
	sceneFrames.With(labels).Inc()
	sceneFrameLatency.With(labels).Observe(latency.Seconds())
}
