package store

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"docsis-exporter/internal/events"

	"github.com/stretchr/testify/require"
)

func TestFileWatermark(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state", "watermark")
	store := NewFileWatermark(path)

	value, err := store.Read(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(0), value)

	require.NoError(t, store.Write(ctx, 1700000000))
	value, err = store.Read(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1700000000), value)

	require.NoError(t, store.Write(ctx, 1700000100))
	value, err = store.Read(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1700000100), value)

	matches, err := filepath.Glob(filepath.Join(filepath.Dir(path), "*.tmp-*"))
	require.NoError(t, err)
	require.Empty(t, matches)
}

func TestFileWatermarkCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "watermark")
	require.NoError(t, os.WriteFile(path, []byte("yesterday\n"), 0o644))

	_, err := NewFileWatermark(path).Read(context.Background())
	require.ErrorContains(t, err, "corrupt watermark")
}

func TestFileWatermarkBlank(t *testing.T) {
	path := filepath.Join(t.TempDir(), "watermark")
	require.NoError(t, os.WriteFile(path, []byte("  \n"), 0o644))

	value, err := NewFileWatermark(path).Read(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(0), value)
}

func TestJSONLines(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "events.jsonl")

	sink, err := OpenJSONLines(path)
	require.NoError(t, err)
	first := events.Entry{
		Source:      "modem",
		Event:       events.EventTag,
		Time:        "Tue Jan 02 2024 10:00:00",
		Unix:        1704189600,
		Level:       "Critical (3)",
		Description: "No Ranging Response received",
	}
	require.NoError(t, sink.Append(ctx, first))
	require.NoError(t, sink.Close())

	// reopening appends rather than truncating
	sink, err = OpenJSONLines(path)
	require.NoError(t, err)
	second := first
	second.Unix++
	require.NoError(t, sink.Append(ctx, second))
	require.NoError(t, sink.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
	require.Len(t, lines, 2)

	var decoded events.Entry
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &decoded))
	require.Equal(t, second, decoded)
	require.Contains(t, lines[0], `"desc":"No Ranging Response received"`)
	require.Contains(t, lines[0], `"ts_unix":1704189600`)
}

func TestJSONLinesWriter(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSONLines(&buf)
	require.NoError(t, sink.Append(context.Background(), events.Entry{Source: "modem", Event: events.EventTag}))
	require.NoError(t, sink.Close())
	require.True(t, strings.HasSuffix(buf.String(), "}\n"))
}
