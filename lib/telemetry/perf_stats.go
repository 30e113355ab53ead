package telemetry

import (
	"context"
	"log/slog"
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/process"
	"go.opentelemetry.io/otel/metric"
)

type perfStats struct {
	cpu         metric.Float64Gauge
	rss         metric.Int64Gauge
	allocated   metric.Int64Gauge
	liveObjects metric.Int64Gauge
	goroutines  metric.Int64Gauge
	proc        *process.Process
}

func newPerfStats(meter metric.Meter) (perfStats, error) {
	var s perfStats
	var err error
	if s.cpu, err = meter.Float64Gauge("cpu_usage", metric.WithUnit("%")); err != nil {
		return s, err
	}
	if s.rss, err = meter.Int64Gauge("resident_mb", metric.WithUnit("MBy")); err != nil {
		return s, err
	}
	if s.allocated, err = meter.Int64Gauge("allocated_mb", metric.WithUnit("MBy")); err != nil {
		return s, err
	}
	if s.liveObjects, err = meter.Int64Gauge("live_objects"); err != nil {
		return s, err
	}
	if s.goroutines, err = meter.Int64Gauge("goroutine_count"); err != nil {
		return s, err
	}
	// the exporter itself, not the whole host
	s.proc, err = process.NewProcess(int32(os.Getpid()))
	return s, err
}

func (s perfStats) record(ctx context.Context) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	// 0 interval compares against the previous call
	cpuUsage, err := cpu.PercentWithContext(ctx, 0, false)
	if err == nil && len(cpuUsage) > 0 {
		s.cpu.Record(ctx, cpuUsage[0])
	} else if err != nil {
		slog.DebugContext(ctx, "failed to read cpu usage", "err", err)
	}
	mem, err := s.proc.MemoryInfoWithContext(ctx)
	if err == nil {
		s.rss.Record(ctx, int64(mem.RSS/1_000_000))
	} else {
		slog.DebugContext(ctx, "failed to read process memory", "err", err)
	}

	s.allocated.Record(ctx, int64(memStats.Alloc/1_000_000))
	s.liveObjects.Record(ctx, int64(memStats.Mallocs)-int64(memStats.Frees))
	s.goroutines.Record(ctx, int64(runtime.NumGoroutine()))
}

// InstrumentPerfStats records process statistics every interval until ctx
// is done.
func InstrumentPerfStats(ctx context.Context, meter metric.Meter, interval time.Duration) error {
	stats, err := newPerfStats(meter)
	if err != nil {
		return err
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				stats.record(ctx)
			case <-ctx.Done():
				return
			}
		}
	}()
	return nil
}
