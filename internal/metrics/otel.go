package metrics

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"docsis-exporter/internal/components/assert"
	"docsis-exporter/internal/components/telemetry"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	report_otel_set = "otel.set"
)

type otelPoint struct {
	attrs attribute.Set
	value float64
}

// OTel exposes the families as observable gauges. Values are held in a
// snapshot that every collection reads, so a reset family disappears from
// the next export.
type OTel struct {
	mu           sync.Mutex
	points       map[string]map[string]otelPoint
	gauges       map[string]metric.Float64ObservableGauge
	registration metric.Registration
	tel          telemetry.API
}

func NewOTel(meter metric.Meter, tel telemetry.API) (*OTel, error) {
	assert.NotNil(meter)
	assert.NotNil(tel)

	o := &OTel{
		tel:    telemetry.NewScopedAPI("metrics", tel),
		points: make(map[string]map[string]otelPoint),
		gauges: make(map[string]metric.Float64ObservableGauge, len(Families)),
	}

	observables := make([]metric.Observable, 0, len(Families))
	for _, f := range Families {
		gauge, err := meter.Float64ObservableGauge(f.Name, metric.WithDescription(f.Help))
		if err != nil {
			return nil, fmt.Errorf("create gauge %s: %w", f.Name, err)
		}
		o.gauges[f.Name] = gauge
		observables = append(observables, gauge)
	}

	registration, err := meter.RegisterCallback(o.observe, observables...)
	if err != nil {
		return nil, err
	}
	o.registration = registration
	return o, nil
}

func (o *OTel) observe(_ context.Context, observer metric.Observer) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	for family, points := range o.points {
		gauge := o.gauges[family]
		for _, p := range points {
			observer.ObserveFloat64(gauge, p.value, metric.WithAttributeSet(p.attrs))
		}
	}
	return nil
}

func (o *OTel) Reset(families ...string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, name := range families {
		delete(o.points, name)
	}
}

func (o *OTel) Set(_ context.Context, family string, value float64, labelValues ...string) {
	f, ok := Lookup(family)
	if !ok {
		o.tel.ReportBroken(report_otel_set, "unknown family", family)
		return
	}
	if len(f.Labels) != len(labelValues) {
		o.tel.ReportBroken(
			report_otel_set,
			fmt.Errorf("expected %d label values, got %d", len(f.Labels), len(labelValues)),
			family,
		)
		return
	}

	kvs := make([]attribute.KeyValue, len(labelValues))
	for i, v := range labelValues {
		kvs[i] = attribute.String(f.Labels[i], v)
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	points, ok := o.points[family]
	if !ok {
		points = make(map[string]otelPoint)
		o.points[family] = points
	}
	points[strings.Join(labelValues, "\x00")] = otelPoint{
		attrs: attribute.NewSet(kvs...),
		value: value,
	}
}

// Close stops reporting the gauges.
func (o *OTel) Close() error {
	return o.registration.Unregister()
}
