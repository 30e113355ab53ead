package commands

import (
	"database/sql"
	"errors"
	"fmt"
	"io"

	"docsis-exporter/internal/components/chrono"
	"docsis-exporter/internal/components/telemetry"
	"docsis-exporter/internal/events"
	"docsis-exporter/internal/fetch"
	"docsis-exporter/internal/metrics"
	"docsis-exporter/internal/scrape"
	"docsis-exporter/internal/store"
	"docsis-exporter/internal/values"
	"docsis-exporter/lib/restyutil"
)

// resources are the handles opened for a command, closed together.
type resources struct {
	closers []io.Closer
	dbs     map[string]*sql.DB
}

func (r *resources) Close() error {
	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		errs = append(errs, r.closers[i].Close())
	}
	return errors.Join(errs...)
}

// db opens each DSN once so the watermark and the events can share it.
func (r *resources) db(dsn string) (*sql.DB, error) {
	if r.dbs == nil {
		r.dbs = map[string]*sql.DB{}
	}
	if db, ok := r.dbs[dsn]; ok {
		return db, nil
	}
	db, err := store.OpenDB(dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dsn, err)
	}
	r.dbs[dsn] = db
	r.closers = append(r.closers, db)
	return db, nil
}

func (r *resources) watermark(cfg Config) (events.WatermarkStore, error) {
	if !store.IsDSN(cfg.Watermark) {
		return store.NewFileWatermark(cfg.Watermark), nil
	}
	db, err := r.db(cfg.Watermark)
	if err != nil {
		return nil, err
	}
	return store.NewSQLWatermark(db), nil
}

func (r *resources) eventSink(cfg Config) (events.Sink, error) {
	if store.IsDSN(cfg.EventSink) {
		db, err := r.db(cfg.EventSink)
		if err != nil {
			return nil, err
		}
		return store.NewSQLEvents(db), nil
	}
	sink, err := store.OpenJSONLines(cfg.EventSink)
	if err != nil {
		return nil, fmt.Errorf("open event sink %s: %w", cfg.EventSink, err)
	}
	r.closers = append(r.closers, sink)
	return sink, nil
}

func (r *resources) fetcher(cfg Config, tel telemetry.API) (fetch.Fetcher, error) {
	if cfg.LoginMode == loginModeBrowser {
		client, err := fetch.NewBrowserClient(fetch.BrowserOptions{
			BaseURL:          cfg.BaseURL,
			Username:         cfg.Username,
			Password:         cfg.Password,
			LoginPath:        cfg.Browser.LoginPath,
			UsernameSelector: cfg.Browser.UsernameSelector,
			PasswordSelector: cfg.Browser.PasswordSelector,
			SubmitSelector:   cfg.Browser.SubmitSelector,
			RemoteURL:        cfg.Browser.RemoteURL,
		}, tel)
		if err != nil {
			return nil, err
		}
		r.closers = append(r.closers, client)
		return client, nil
	}
	opts := fetch.HTTPOptions{
		BaseURL:           cfg.BaseURL,
		Username:          cfg.Username,
		Password:          cfg.Password,
		RequestsPerSecond: cfg.RequestsPerSecond,
		VerifyTLS:         cfg.VerifyTLS,
	}
	if cfg.DumpDir != "" {
		output, err := restyutil.NewFilesystemOutput(cfg.DumpDir)
		if err != nil {
			return nil, fmt.Errorf("dump dir %s: %w", cfg.DumpDir, err)
		}
		opts.Dump = output
	}
	return fetch.NewHTTPClient(opts, tel)
}

func timestampParser(cfg Config, clock chrono.TimeAPI) values.TimestampParser {
	return values.NewTimestampParser(clock.Location(), cfg.TimestampFormats...)
}

func newClock(cfg Config) (chrono.StandardTime, error) {
	clock, err := chrono.NewStandardTime(cfg.Timezone)
	if err != nil {
		return chrono.StandardTime{}, fmt.Errorf("timezone %q: %w", cfg.Timezone, err)
	}
	return clock, nil
}

// newScraper wires the whole pipeline for cfg.
func (r *resources) newScraper(cfg Config, sink metrics.Sink, tel telemetry.API) (scrape.Scraper, error) {
	if err := cfg.validateDevice(); err != nil {
		return scrape.Scraper{}, err
	}
	clock, err := newClock(cfg)
	if err != nil {
		return scrape.Scraper{}, err
	}
	fetcher, err := r.fetcher(cfg, tel)
	if err != nil {
		return scrape.Scraper{}, err
	}
	timestamps := timestampParser(cfg, clock)

	opts := scrape.Options{
		Fetcher:    fetcher,
		Metrics:    sink,
		Timestamps: timestamps,
		Pages: scrape.Pages{
			Signal: cfg.SignalPath,
			Status: cfg.StatusPath,
		},
		Time: clock,
	}
	if !cfg.DisableEvents {
		watermark, err := r.watermark(cfg)
		if err != nil {
			return scrape.Scraper{}, err
		}
		eventSink, err := r.eventSink(cfg)
		if err != nil {
			return scrape.Scraper{}, err
		}
		dedup := events.NewDeduplicator(watermark, eventSink, timestamps, cfg.EventSource, tel)
		opts.Events = &dedup
		opts.Pages.Events = cfg.EventPath
	}
	return scrape.NewScraper(opts, tel), nil
}
