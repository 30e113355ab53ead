// Package events turns the device event log into an append-only stream.
//
// The device only ever shows a sliding window of its most recent events. A
// persisted watermark (the unix time of the newest event ever appended)
// separates what was already emitted from what is new, so repeated scrapes
// of the same window append every event once. The watermark store has no
// locking: one exporter instance per store and sink.
package events

import (
	"context"
	"fmt"
	"slices"

	"docsis-exporter/internal/components/assert"
	"docsis-exporter/internal/components/telemetry"
	"docsis-exporter/internal/tables"
	"docsis-exporter/internal/values"
)

const (
	report_dedup_run       = "dedup.run"
	report_dedup_parse     = "dedup.parse"
	report_dedup_append    = "dedup.append"
	report_dedup_watermark = "dedup.watermark"

	// EventTag is the event field of every appended entry.
	EventTag = "modem_event"
)

// PersistenceError operations
const (
	OpReadWatermark  = "read watermark"
	OpWriteWatermark = "write watermark"
	OpAppend         = "append"
)

// WatermarkStore persists the watermark. Read returns 0 when nothing was ever
// written, Write must be atomic: a reader sees either the old or the new
// value.
type WatermarkStore interface {
	Read(ctx context.Context) (int64, error)
	Write(ctx context.Context, watermark int64) error
}

// Sink is the durable, append-only destination of entries. Append returns
// only once the entry is durable.
type Sink interface {
	Append(ctx context.Context, entry Entry) error
}

// PersistenceError is a failure to read or write the watermark or to append
// to the sink. Appended counts the entries that were durably written before
// the failure.
type PersistenceError struct {
	Op       string
	Appended int
	Err      error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("event persistence: %s (after %d appended): %v", e.Op, e.Appended, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// Outcome describes one run of the Deduplicator.
type Outcome struct {
	// Previous is the watermark in effect when the run started.
	Previous int64
	// Watermark is the watermark after the run.
	Watermark int64
	// Appended are the entries written this run, oldest first.
	Appended []Entry
	Parse    ParseResult
	Stats    Stats
}

// Deduplicator appends the events that are newer than the watermark.
type Deduplicator struct {
	store      WatermarkStore
	sink       Sink
	timestamps values.TimestampParser
	source     string
	tel        telemetry.API
}

func NewDeduplicator(store WatermarkStore, sink Sink, timestamps values.TimestampParser, source string, tel telemetry.API) Deduplicator {
	assert.NotNil(store)
	assert.NotNil(sink)
	assert.NotNil(tel)
	assert.NotEmptyStr(source)

	return Deduplicator{
		store:      store,
		sink:       sink,
		timestamps: timestamps,
		source:     source,
		tel:        telemetry.NewScopedAPI("events", tel),
	}
}

// Entry converts a record into the entry appended for it.
func (d Deduplicator) Entry(r Record) Entry {
	return Entry{
		Source:      d.source,
		Event:       EventTag,
		Time:        r.TimeText,
		Unix:        r.Unix(),
		Level:       r.Level,
		Description: r.Description,
	}
}

// Pending returns the records newer than watermark in the order they
// happened. The device lists newest first, so equal timestamps keep the
// reverse of the device order.
func Pending(records []Record, watermark int64) []Record {
	var pending []Record
	for i := len(records) - 1; i >= 0; i-- {
		if records[i].Unix() > watermark {
			pending = append(pending, records[i])
		}
	}
	slices.SortStableFunc(pending, func(a, b Record) int {
		switch {
		case a.Unix() < b.Unix():
			return -1
		case a.Unix() > b.Unix():
			return 1
		}
		return 0
	})
	return pending
}

// Run parses the event table rows and appends what is new.
//
// The watermark only moves forward and only over entries that are durable.
// When an append fails the watermark advances to the newest timestamp whose
// entries were all written, so the next run retries the rest. Stats are
// computed over every parsed record regardless of appends.
func (d Deduplicator) Run(ctx context.Context, rows []tables.Row) (Outcome, error) {
	var outcome Outcome

	outcome.Parse = ParseRecords(rows, d.timestamps)
	if outcome.Parse.Unparseable > 0 {
		d.tel.ReportWarning(report_dedup_parse, fmt.Errorf("%d rows with unreadable timestamps", outcome.Parse.Unparseable))
	}
	if outcome.Parse.Short > 0 {
		d.tel.ReportDebug(report_dedup_parse, "short rows", outcome.Parse.Short)
	}
	outcome.Stats = ComputeStats(outcome.Parse.Records)

	previous, err := d.store.Read(ctx)
	if err != nil {
		d.tel.ReportBroken(report_dedup_watermark, err, "read")
		return outcome, &PersistenceError{Op: OpReadWatermark, Err: err}
	}
	outcome.Previous = previous
	outcome.Watermark = previous

	pending := Pending(outcome.Parse.Records, previous)
	safe := previous
	for i, record := range pending {
		entry := d.Entry(record)
		err := d.sink.Append(ctx, entry)
		if err != nil {
			d.tel.ReportBroken(report_dedup_append, err, entry.Unix)
			// entries sharing the failed entry's timestamp may already be
			// written, but the ones not yet written would be hidden behind
			// that timestamp
			safe = previous
			for _, written := range pending[:i] {
				if written.Unix() < record.Unix() {
					safe = written.Unix()
				}
			}
			return d.finish(ctx, outcome, safe, &PersistenceError{Op: OpAppend, Appended: len(outcome.Appended), Err: err})
		}
		outcome.Appended = append(outcome.Appended, entry)
		safe = record.Unix()
	}

	d.tel.ReportCount(report_dedup_run, int64(len(outcome.Appended)))
	return d.finish(ctx, outcome, safe, nil)
}

// finish persists watermark if it moved forward.
func (d Deduplicator) finish(ctx context.Context, outcome Outcome, watermark int64, cause error) (Outcome, error) {
	if watermark <= outcome.Previous {
		return outcome, cause
	}

	err := d.store.Write(ctx, watermark)
	if err != nil {
		d.tel.ReportBroken(report_dedup_watermark, err, "write", watermark)
		writeErr := &PersistenceError{Op: OpWriteWatermark, Appended: len(outcome.Appended), Err: err}
		if cause != nil {
			return outcome, fmt.Errorf("%w; %w", cause, writeErr)
		}
		return outcome, writeErr
	}
	outcome.Watermark = watermark
	return outcome, cause
}
