// Package scrape runs the pipeline from the device's pages to the metrics
// and event sinks, once per tick.
package scrape

import (
	"context"
	"errors"
	"fmt"
	"time"

	"docsis-exporter/internal/components/assert"
	"docsis-exporter/internal/components/chrono"
	"docsis-exporter/internal/components/telemetry"
	"docsis-exporter/internal/docsis"
	"docsis-exporter/internal/events"
	"docsis-exporter/internal/fetch"
	"docsis-exporter/internal/metrics"
	"docsis-exporter/internal/sections"
	"docsis-exporter/internal/tables"
	"docsis-exporter/internal/values"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	report_scraper_scrape = "scraper.scrape"
	report_scraper_events = "scraper.events"
)

var tracer = otel.Tracer("docsis-exporter/scrape")

// Pages are the device paths scraped. An empty Status or Events path skips
// that page.
type Pages struct {
	Signal string
	Status string
	Events string
}

type Options struct {
	Fetcher    fetch.Fetcher
	Metrics    metrics.Sink
	Timestamps values.TimestampParser
	Pages      Pages
	// Events is nil when the event log is not persisted.
	Events *events.Deduplicator
	Time   chrono.TimeAPI
}

// Result is what a single scrape produced.
type Result struct {
	Started  time.Time
	Duration time.Duration
	Sections sections.Sections
	Samples  []docsis.Sample
	Status   docsis.Status
	// Events is nil when the event page was not scraped.
	Events *events.Outcome
	// Err joins every transport and persistence failure of the scrape.
	Err error
}

// Scraper sequences fetch, extraction, projection and publishing. Scrapes
// never overlap when driven through Run.
type Scraper struct {
	Options
	projector docsis.Projector
	tel       telemetry.API
}

func NewScraper(opts Options, tel telemetry.API) Scraper {
	assert.NotNil(opts.Fetcher)
	assert.NotNil(opts.Metrics)
	assert.NotNil(opts.Time)
	assert.NotNil(tel)
	assert.NotEmptyStr(opts.Pages.Signal)

	return Scraper{
		Options:   opts,
		projector: docsis.NewProjector(tel),
		tel:       telemetry.NewScopedAPI("scrape", tel),
	}
}

func (s Scraper) fetchRows(ctx context.Context, path string) ([]tables.Row, error) {
	ctx, span := tracer.Start(ctx, "fetch", trace.WithAttributes(attribute.String("path", path)))
	defer span.End()

	html, err := s.Fetcher.Fetch(ctx, path)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	rows, err := tables.Extract(html)
	if err != nil {
		err = fmt.Errorf("extract %s: %w", path, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Int("rows", len(rows)))
	return rows, nil
}

func (s Scraper) fetchEventTable(ctx context.Context, path string) ([]tables.Row, error) {
	ctx, span := tracer.Start(ctx, "fetch", trace.WithAttributes(attribute.String("path", path)))
	defer span.End()

	html, err := s.Fetcher.Fetch(ctx, path)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	tabs, err := tables.ExtractTables(html)
	if err != nil {
		err = fmt.Errorf("extract %s: %w", path, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if len(tabs) == 0 {
		s.tel.ReportWarning(report_scraper_events, "event page has no table", path)
		return nil, nil
	}
	return tabs[0].Rows, nil
}

// Scrape runs the whole pipeline once. Per-row and per-field problems are
// absorbed along the way, only failures to fetch a page or to persist
// events fail the scrape.
func (s Scraper) Scrape(ctx context.Context) Result {
	ctx, span := tracer.Start(ctx, "scrape")
	defer span.End()

	result := Result{Started: s.Time.Now()}
	var errs []error

	rows, err := s.fetchRows(ctx, s.Pages.Signal)
	if err != nil {
		errs = append(errs, err)
	} else {
		result.Sections = sections.Classify(rows)
		result.Samples = s.projector.Project(result.Sections)
	}
	s.publishSamples(ctx, result.Samples)
	span.SetAttributes(attribute.Int("samples", len(result.Samples)))

	if s.Pages.Status != "" {
		rows, err := s.fetchRows(ctx, s.Pages.Status)
		if err != nil {
			errs = append(errs, err)
		} else {
			result.Status = s.projector.ProjectStatus(rows, s.Timestamps)
		}
		s.publishStatus(ctx, result.Status)
	}

	if s.Events != nil && s.Pages.Events != "" {
		rows, err := s.fetchEventTable(ctx, s.Pages.Events)
		if err != nil {
			errs = append(errs, err)
			s.Metrics.Reset(metrics.EventFamilies...)
		} else {
			outcome, err := s.runEvents(ctx, rows)
			if err != nil {
				errs = append(errs, err)
			}
			result.Events = &outcome
			s.publishEvents(ctx, outcome, err)
		}
	}

	result.Err = errors.Join(errs...)
	finished := s.Time.Now()
	result.Duration = finished.Sub(result.Started)

	ok := 1.0
	if result.Err != nil {
		ok = 0
		s.tel.ReportBroken(report_scraper_scrape, result.Err)
		span.RecordError(result.Err)
		span.SetStatus(codes.Error, result.Err.Error())
	}
	s.Metrics.Set(ctx, metrics.ScrapeOK, ok)
	s.Metrics.Set(ctx, metrics.ScrapeDuration, result.Duration.Seconds())
	s.Metrics.Set(ctx, metrics.LastScrape, float64(finished.Unix()))
	s.tel.ReportCount(report_scraper_scrape, int64(len(result.Samples)))

	return result
}

func (s Scraper) runEvents(ctx context.Context, rows []tables.Row) (events.Outcome, error) {
	ctx, span := tracer.Start(ctx, "events")
	defer span.End()

	outcome, err := s.Events.Run(ctx, rows)
	span.SetAttributes(
		attribute.Int("appended", len(outcome.Appended)),
		attribute.Int64("watermark", outcome.Watermark),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return outcome, err
}

// publishSamples replaces every channel series, channels absent from this
// scrape are no longer reported.
func (s Scraper) publishSamples(ctx context.Context, samples []docsis.Sample) {
	s.Metrics.Reset(metrics.ChannelFamilies...)
	for _, sample := range samples {
		s.Metrics.Set(ctx, metrics.ChannelFamily(sample.Metric), sample.Value, sample.Channel)
	}
}

func (s Scraper) publishStatus(ctx context.Context, status docsis.Status) {
	s.Metrics.Reset(metrics.Uptime, metrics.UptimeInfo, metrics.SystemTime)
	if status.UptimeText != "" {
		s.Metrics.Set(ctx, metrics.UptimeInfo, 1, status.UptimeText)
	}
	if status.Uptime != nil {
		s.Metrics.Set(ctx, metrics.Uptime, status.Uptime.Seconds())
	}
	if status.SystemTime != nil {
		s.Metrics.Set(ctx, metrics.SystemTime, float64(status.SystemTime.Unix()))
	}
}

// publishEvents sets the window statistics, which are valid even when
// persisting failed. The watermark is left out when it could not be read.
func (s Scraper) publishEvents(ctx context.Context, outcome events.Outcome, err error) {
	s.Metrics.Reset(metrics.EventFamilies...)

	stats := outcome.Stats
	for level, count := range stats.LevelCounts {
		s.Metrics.Set(ctx, metrics.EventCount, float64(count), level)
	}
	setTime := func(family string, t time.Time) {
		if !t.IsZero() {
			s.Metrics.Set(ctx, family, float64(t.Unix()))
		}
	}
	setTime(metrics.EventLastTimestamp, stats.LastEvent)
	setTime(metrics.LoginLastSuccess, stats.LastLoginSuccess)
	setTime(metrics.LoginLastFailure, stats.LastLoginFailure)

	s.Metrics.Set(ctx, metrics.LoginSuccessCount, float64(stats.LoginSuccess))
	s.Metrics.Set(ctx, metrics.LoginFailureCount, float64(stats.LoginFailure))
	s.Metrics.Set(ctx, metrics.EventsAppended, float64(len(outcome.Appended)))

	var persistErr *events.PersistenceError
	if errors.As(err, &persistErr) && persistErr.Op == events.OpReadWatermark {
		return
	}
	s.Metrics.Set(ctx, metrics.EventWatermark, float64(outcome.Watermark))
}

// Run scrapes immediately and then on every interval until ctx is done.
func (s Scraper) Run(ctx context.Context, cron chrono.CronAPI, interval time.Duration) error {
	assert.NotNil(cron)

	s.Scrape(ctx)
	err := cron.Cron(chrono.Every(interval), func() {
		s.Scrape(ctx)
	})
	if err != nil {
		return fmt.Errorf("schedule scrape: %w", err)
	}

	<-ctx.Done()
	cron.Stop()
	return nil
}
