package metrics

import (
	"context"
	"net/http"

	"docsis-exporter/internal/components/assert"
	"docsis-exporter/internal/components/telemetry"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	report_prometheus_set = "prometheus.set"
)

// Prometheus keeps one GaugeVec per family on its own registry.
type Prometheus struct {
	registry *prometheus.Registry
	gauges   map[string]*prometheus.GaugeVec
	tel      telemetry.API
}

// NewPrometheus registers every family along with the go runtime and
// process collectors.
func NewPrometheus(tel telemetry.API) *Prometheus {
	assert.NotNil(tel)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	gauges := make(map[string]*prometheus.GaugeVec, len(Families))
	for _, f := range Families {
		vec := prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: f.Name,
			Help: f.Help,
		}, f.Labels)
		registry.MustRegister(vec)
		gauges[f.Name] = vec
	}

	return &Prometheus{
		registry: registry,
		gauges:   gauges,
		tel:      telemetry.NewScopedAPI("metrics", tel),
	}
}

func (p *Prometheus) Registry() *prometheus.Registry {
	return p.registry
}

// Handler serves the registry in the prometheus exposition format.
func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{
		Registry: p.registry,
	})
}

func (p *Prometheus) Reset(families ...string) {
	for _, name := range families {
		vec, ok := p.gauges[name]
		if !ok {
			continue
		}
		vec.Reset()
	}
}

func (p *Prometheus) Set(_ context.Context, family string, value float64, labelValues ...string) {
	vec, ok := p.gauges[family]
	if !ok {
		p.tel.ReportBroken(report_prometheus_set, "unknown family", family)
		return
	}
	gauge, err := vec.GetMetricWithLabelValues(labelValues...)
	if err != nil {
		p.tel.ReportBroken(report_prometheus_set, err, family)
		return
	}
	gauge.Set(value)
}
