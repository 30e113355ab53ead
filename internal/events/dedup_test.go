package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"docsis-exporter/internal/components/telemetry"
	"docsis-exporter/internal/tables"
	"docsis-exporter/internal/values"

	"github.com/stretchr/testify/require"
)

type memoryStore struct {
	value    int64
	writes   []int64
	readErr  error
	writeErr error
}

func (m *memoryStore) Read(context.Context) (int64, error) {
	if m.readErr != nil {
		return 0, m.readErr
	}
	return m.value, nil
}

func (m *memoryStore) Write(_ context.Context, watermark int64) error {
	if m.writeErr != nil {
		return m.writeErr
	}
	m.value = watermark
	m.writes = append(m.writes, watermark)
	return nil
}

type memorySink struct {
	entries []Entry
	// fails the append with this (1-based) index, 0 never fails
	failAt int
	calls  int
}

func (m *memorySink) Append(_ context.Context, entry Entry) error {
	m.calls++
	if m.calls == m.failAt {
		return errors.New("disk full")
	}
	m.entries = append(m.entries, entry)
	return nil
}

func unixOf(entries []Entry) []int64 {
	out := make([]int64, len(entries))
	for i, e := range entries {
		out[i] = e.Unix
	}
	return out
}

var utcTimestamps = values.NewTimestampParser(time.UTC)

// rows are newest first, like the device shows them
var eventRows = []tables.Row{
	{"Date Time", "Event Level", "Description"},
	{"01/01/1970 00:05:00", "Critical (3)", "No Ranging Response received - T3 time-out"},
	{"01/01/1970 00:03:20", "Notice (6)", "Login success from 192.168.100.10"},
	{"01/01/1970 00:01:40", "Warning (5)", "Login failed: invalid password"},
}

func newTestDeduplicator(store WatermarkStore, sink Sink) Deduplicator {
	return NewDeduplicator(store, sink, utcTimestamps, "modem", telemetry.NewTestAPI())
}

func TestRunIdempotent(t *testing.T) {
	store := &memoryStore{}
	sink := &memorySink{}
	dedup := newTestDeduplicator(store, sink)
	ctx := context.Background()

	outcome, err := dedup.Run(ctx, eventRows)
	require.NoError(t, err)
	require.Equal(t, int64(0), outcome.Previous)
	require.Equal(t, int64(300), outcome.Watermark)
	require.Equal(t, []int64{100, 200, 300}, unixOf(outcome.Appended))
	require.Equal(t, []int64{100, 200, 300}, unixOf(sink.entries))
	require.Equal(t, int64(300), store.value)

	require.Equal(t, Entry{
		Source:      "modem",
		Event:       EventTag,
		Time:        "01/01/1970 00:01:40",
		Unix:        100,
		Level:       "Warning (5)",
		Description: "Login failed: invalid password",
	}, sink.entries[0])

	outcome, err = dedup.Run(ctx, eventRows)
	require.NoError(t, err)
	require.Empty(t, outcome.Appended)
	require.Equal(t, int64(300), outcome.Watermark)
	require.Len(t, sink.entries, 3)
	require.Equal(t, []int64{300}, store.writes)
}

func TestRunOnlyNewer(t *testing.T) {
	store := &memoryStore{value: 200}
	sink := &memorySink{}

	outcome, err := newTestDeduplicator(store, sink).Run(context.Background(), eventRows)
	require.NoError(t, err)
	require.Equal(t, []int64{300}, unixOf(outcome.Appended))
	require.Equal(t, int64(300), store.value)

	// stats still cover the whole window
	require.Equal(t, 3, outcome.Stats.Total)
}

func TestRunSkipsUnusableRows(t *testing.T) {
	rows := []tables.Row{
		{"01/01/1970 00:05:00", "Critical (3)", "Cable modem reboot", "extra", "cells"},
		{"Time Not Established", "Critical (3)", "No Ranging Response received"},
		{"01/01/1970 00:04:00", "Notice (6)"},
		{"01/01/1970 00:03:00", "Notice (6)", "TLV-11 - unrecognized OID"},
	}
	sink := &memorySink{}

	outcome, err := newTestDeduplicator(&memoryStore{}, sink).Run(context.Background(), rows)
	require.NoError(t, err)
	require.Equal(t, 1, outcome.Parse.Unparseable)
	require.Equal(t, 1, outcome.Parse.Short)
	require.Equal(t, []int64{180, 300}, unixOf(sink.entries))
	require.Equal(t, "Cable modem reboot", sink.entries[1].Description)
	require.Equal(t, 2, outcome.Stats.Total)
}

func TestRunPartialFailure(t *testing.T) {
	rows := []tables.Row{
		{"01/01/1970 00:05:00", "Notice (6)", "d"},
		{"01/01/1970 00:03:20", "Notice (6)", "c"},
		{"01/01/1970 00:03:20", "Notice (6)", "b"},
		{"01/01/1970 00:01:40", "Notice (6)", "a"},
	}
	store := &memoryStore{}
	sink := &memorySink{failAt: 3}

	outcome, err := newTestDeduplicator(store, sink).Run(context.Background(), rows)

	var persistence *PersistenceError
	require.ErrorAs(t, err, &persistence)
	require.Equal(t, "append", persistence.Op)
	require.Equal(t, 2, persistence.Appended)
	require.Equal(t, []string{"a", "b"}, []string{sink.entries[0].Description, sink.entries[1].Description})
	// "c" shares the timestamp of "b" and was not written
	require.Equal(t, int64(100), outcome.Watermark)
	require.Equal(t, int64(100), store.value)

	sink.failAt = 0
	outcome, err = newTestDeduplicator(store, sink).Run(context.Background(), rows)
	require.NoError(t, err)
	require.Equal(t, []int64{200, 200, 300}, unixOf(outcome.Appended))
	require.Equal(t, int64(300), store.value)
}

func TestRunFirstAppendFails(t *testing.T) {
	store := &memoryStore{value: 50}
	sink := &memorySink{failAt: 1}

	outcome, err := newTestDeduplicator(store, sink).Run(context.Background(), eventRows)
	require.Error(t, err)
	require.Equal(t, int64(50), outcome.Watermark)
	require.Empty(t, store.writes)
}

func TestRunWatermarkReadFails(t *testing.T) {
	store := &memoryStore{readErr: errors.New("permission denied")}
	sink := &memorySink{}

	_, err := newTestDeduplicator(store, sink).Run(context.Background(), eventRows)

	var persistence *PersistenceError
	require.ErrorAs(t, err, &persistence)
	require.Equal(t, "read watermark", persistence.Op)
	require.Empty(t, sink.entries)
}

func TestRunWatermarkWriteFails(t *testing.T) {
	store := &memoryStore{writeErr: errors.New("read-only file system")}
	sink := &memorySink{}

	outcome, err := newTestDeduplicator(store, sink).Run(context.Background(), eventRows)

	var persistence *PersistenceError
	require.ErrorAs(t, err, &persistence)
	require.Equal(t, "write watermark", persistence.Op)
	require.Equal(t, 3, persistence.Appended)
	require.Equal(t, int64(0), outcome.Watermark)
}

func TestPendingOrder(t *testing.T) {
	at := func(sec int64, desc string) Record {
		return Record{Time: time.Unix(sec, 0), Description: desc}
	}
	// device order: newest first, out of order entries happen after clock syncs
	records := []Record{
		at(300, "e"),
		at(100, "b"),
		at(200, "d"),
		at(200, "c"),
		at(100, "a"),
		at(50, "old"),
	}

	pending := Pending(records, 50)

	var order []string
	for _, r := range pending {
		order = append(order, r.Description)
	}
	require.Equal(t, []string{"a", "b", "c", "d", "e"}, order)
	for i := 1; i < len(pending); i++ {
		require.LessOrEqual(t, pending[i-1].Unix(), pending[i].Unix())
	}
}

func TestComputeStats(t *testing.T) {
	parsed := ParseRecords(eventRows, utcTimestamps)
	stats := ComputeStats(parsed.Records)

	require.Equal(t, 3, stats.Total)
	require.Equal(t, map[string]int{"Critical (3)": 1, "Notice (6)": 1, "Warning (5)": 1}, stats.LevelCounts)
	require.Equal(t, int64(300), stats.LastEvent.Unix())
	require.Equal(t, 1, stats.LoginSuccess)
	require.Equal(t, int64(200), stats.LastLoginSuccess.Unix())
	require.Equal(t, 1, stats.LoginFailure)
	require.Equal(t, int64(100), stats.LastLoginFailure.Unix())

	unsuccessful := ComputeStats([]Record{{Time: time.Unix(10, 0), Level: "Notice", Description: "Admin Log In Unsuccessful"}})
	require.Equal(t, 0, unsuccessful.LoginSuccess)
	require.Equal(t, 1, unsuccessful.LoginFailure)

	empty := ComputeStats(nil)
	require.Equal(t, 0, empty.Total)
	require.True(t, empty.LastEvent.IsZero())
}
