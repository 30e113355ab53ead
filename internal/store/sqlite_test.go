package store

import (
	"context"
	"path/filepath"
	"testing"

	"docsis-exporter/internal/events"

	"github.com/stretchr/testify/require"
)

func TestIsDSN(t *testing.T) {
	require.True(t, IsDSN("sqlite:state.db"))
	require.True(t, IsDSN("libsql://exporter.turso.io"))
	require.True(t, IsDSN("http://127.0.0.1:8080"))
	require.False(t, IsDSN("/var/lib/exporter/watermark"))
	require.False(t, IsDSN("-"))
}

func TestSQLWatermark(t *testing.T) {
	ctx := context.Background()
	db, err := OpenDB("sqlite::memory:")
	require.NoError(t, err)
	defer db.Close()

	store := NewSQLWatermark(db)
	value, err := store.Read(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(0), value)

	require.NoError(t, store.Write(ctx, 100))
	require.NoError(t, store.Write(ctx, 250))
	value, err = store.Read(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(250), value)
}

func TestSQLEvents(t *testing.T) {
	ctx := context.Background()
	db, err := OpenDB("sqlite:" + filepath.Join(t.TempDir(), "exporter.db"))
	require.NoError(t, err)
	defer db.Close()

	sink := NewSQLEvents(db)
	entries := []events.Entry{
		{Source: "modem", Event: events.EventTag, Time: "a", Unix: 10, Level: "Notice (6)", Description: "one"},
		{Source: "modem", Event: events.EventTag, Time: "b", Unix: 20, Level: "Notice (6)", Description: "two"},
		{Source: "modem", Event: events.EventTag, Time: "b", Unix: 20, Level: "Notice (6)", Description: "three"},
	}
	for _, e := range entries {
		require.NoError(t, sink.Append(ctx, e))
	}
	// replaying is ignored
	require.NoError(t, sink.Append(ctx, entries[1]))

	stored, err := sink.List(ctx, 0, 10)
	require.NoError(t, err)
	require.Equal(t, entries, stored)

	stored, err = sink.List(ctx, 10, 1)
	require.NoError(t, err)
	require.Equal(t, entries[1:2], stored)
}

func TestOpenDBEmpty(t *testing.T) {
	_, err := OpenDB("")
	require.Error(t, err)
}
