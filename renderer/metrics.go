package renderer

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/tingold/orb-render/log"
)

// metrics are the collectors of one renderer configuration. A nil *metrics
// records nothing.
type metrics struct {
	layersRendered  *prometheus.CounterVec
	layerFailures   *prometheus.CounterVec
	geometriesDrawn *prometheus.CounterVec
	renderDuration  *prometheus.HistogramVec
}

// newMetrics registers the renderer collectors with reg. Collectors already
// registered by another renderer are shared.
func newMetrics(reg prometheus.Registerer) *metrics {
	if reg == nil {
		return nil
	}
	m := &metrics{
		layersRendered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vrender_layers_rendered_total",
			Help: "Total number of layers rendered",
		}, []string{"layer"}),
		layerFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vrender_layer_failures_total",
			Help: "Total number of layer renders that failed",
		}, []string{"layer"}),
		geometriesDrawn: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vrender_geometries_drawn_total",
			Help: "Total number of simple geometries drawn",
		}, []string{"type"}),
		renderDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "vrender_layer_duration_ms",
			Help:    "Layer render duration in milliseconds",
			Buckets: []float64{1, 5, 10, 20, 50, 100, 200, 500, 1000},
		}, []string{"layer"}),
	}
	m.layersRendered = register(reg, m.layersRendered)
	m.layerFailures = register(reg, m.layerFailures)
	m.geometriesDrawn = register(reg, m.geometriesDrawn)
	m.renderDuration = register(reg, m.renderDuration)
	return m
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing
			}
		}
		log.Warn("metrics registration failed", zap.Error(err))
	}
	return c
}

func (m *metrics) layerDone(layer string, ok bool, ms float64) {
	if m == nil {
		return
	}
	if ok {
		m.layersRendered.WithLabelValues(layer).Inc()
	} else {
		m.layerFailures.WithLabelValues(layer).Inc()
	}
	m.renderDuration.WithLabelValues(layer).Observe(ms)
}

func (m *metrics) drawn(kind string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.geometriesDrawn.WithLabelValues(kind).Add(float64(n))
}
