package metrics

import (
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"docsis-exporter/internal/components/telemetry"
	"docsis-exporter/internal/docsis"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestCatalog(t *testing.T) {
	seen := map[string]bool{}
	for _, f := range Families {
		require.False(t, seen[f.Name], "duplicate family %s", f.Name)
		seen[f.Name] = true
		require.NotEmpty(t, f.Help, f.Name)
	}
	for _, m := range docsis.Metrics {
		f, ok := Lookup(ChannelFamily(m))
		require.True(t, ok)
		require.Equal(t, []string{LabelChannel}, f.Labels)
	}
	require.Equal(t, "modem_downstream_power", ChannelFamily(docsis.DownstreamPower))
	require.Len(t, ChannelFamilies, len(docsis.Metrics))
}

func TestPrometheusReplace(t *testing.T) {
	ctx := context.Background()
	tel := telemetry.NewTestAPI()
	sink := NewPrometheus(tel)
	family := ChannelFamily(docsis.DownstreamPower)

	sink.Set(ctx, family, 3.2, "1")
	sink.Set(ctx, family, -1.5, "2")
	require.Equal(t, 2, testutil.CollectAndCount(sink.gauges[family]))
	require.Equal(t, 3.2, testutil.ToFloat64(sink.gauges[family].WithLabelValues("1")))

	sink.Reset(ChannelFamilies...)
	sink.Set(ctx, family, 4.0, "1")
	require.Equal(t, 1, testutil.CollectAndCount(sink.gauges[family]))
	require.Equal(t, 4.0, testutil.ToFloat64(sink.gauges[family].WithLabelValues("1")))

	sink.Set(ctx, ScrapeOK, 1)
	require.Equal(t, 1.0, testutil.ToFloat64(sink.gauges[ScrapeOK]))
	require.Empty(t, tel.Reports("broken", ""))
}

func TestPrometheusMisuse(t *testing.T) {
	ctx := context.Background()
	tel := telemetry.NewTestAPI()
	sink := NewPrometheus(tel)

	sink.Set(ctx, "modem_nonexistent", 1)
	sink.Set(ctx, ScrapeOK, 1, "extra")
	require.Len(t, tel.Reports("broken", report_prometheus_set), 2)
}

func TestPrometheusHandler(t *testing.T) {
	sink := NewPrometheus(telemetry.NewTestAPI())
	sink.Set(context.Background(), ChannelFamily(docsis.OFDMSNR), 41.5, "33")

	server := httptest.NewServer(sink.Handler())
	defer server.Close()

	res, err := server.Client().Get(server.URL)
	require.NoError(t, err)
	defer res.Body.Close()
	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)

	require.Contains(t, string(body), `modem_ofdm_snr{channel="33"} 41.5`)
	require.Contains(t, string(body), "go_goroutines")
}

func collectGauge(t *testing.T, reader *sdkmetric.ManualReader, name string) map[string]float64 {
	t.Helper()

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := map[string]float64{}
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			if m.Name != name {
				continue
			}
			gauge, ok := m.Data.(metricdata.Gauge[float64])
			require.True(t, ok)
			for _, dp := range gauge.DataPoints {
				var labels []string
				for _, kv := range dp.Attributes.ToSlice() {
					labels = append(labels, string(kv.Key)+"="+kv.Value.AsString())
				}
				out[strings.Join(labels, ",")] = dp.Value
			}
		}
	}
	return out
}

func TestOTelReplace(t *testing.T) {
	ctx := context.Background()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer provider.Shutdown(ctx)

	tel := telemetry.NewTestAPI()
	sink, err := NewOTel(provider.Meter("docsis-exporter"), tel)
	require.NoError(t, err)
	defer sink.Close()

	family := ChannelFamily(docsis.UpstreamPower)
	sink.Set(ctx, family, 44.0, "1")
	sink.Set(ctx, family, 45.5, "2")
	sink.Set(ctx, EventCount, 3, "Critical (3)")
	require.Equal(t, map[string]float64{"channel=1": 44.0, "channel=2": 45.5}, collectGauge(t, reader, family))
	require.Equal(t, map[string]float64{"level=Critical (3)": 3}, collectGauge(t, reader, EventCount))

	sink.Reset(family)
	sink.Set(ctx, family, 46.0, "2")
	require.Equal(t, map[string]float64{"channel=2": 46.0}, collectGauge(t, reader, family))

	require.Empty(t, tel.Reports("broken", ""))

	// misuse is dropped and reported
	sink.Set(ctx, family, 1)
	sink.Set(ctx, "modem_unknown", 1)
	require.Equal(t, map[string]float64{"channel=2": 46.0}, collectGauge(t, reader, family))
	require.Len(t, tel.Reports("broken", report_otel_set), 2)
}

type recordingSink struct {
	resets []string
	sets   []string
}

func (r *recordingSink) Reset(families ...string) {
	r.resets = append(r.resets, families...)
}

func (r *recordingSink) Set(_ context.Context, family string, _ float64, labelValues ...string) {
	r.sets = append(r.sets, family+"/"+strings.Join(labelValues, ","))
}

func TestFanout(t *testing.T) {
	a := &recordingSink{}
	b := &recordingSink{}
	sink := Fanout{a, b}

	sink.Reset(Uptime)
	sink.Set(context.Background(), UptimeInfo, 1, "1 days 02h:00m:00s")

	for _, r := range []*recordingSink{a, b} {
		require.Equal(t, []string{Uptime}, r.resets)
		require.Equal(t, []string{UptimeInfo + "/1 days 02h:00m:00s"}, r.sets)
	}
}
