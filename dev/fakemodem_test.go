package main

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"docsis-exporter/internal/components/telemetry"
	"docsis-exporter/internal/docsis"
	"docsis-exporter/internal/events"
	"docsis-exporter/internal/fetch"
	"docsis-exporter/internal/sections"
	"docsis-exporter/internal/tables"
	"docsis-exporter/internal/values"

	"github.com/stretchr/testify/require"
)

func TestFakeModemScrapes(t *testing.T) {
	server := httptest.NewServer(newFakeModem("admin", "dev").mux())
	defer server.Close()

	ctx := context.Background()
	tel := telemetry.NewTestAPI()
	client, err := fetch.NewHTTPClient(fetch.HTTPOptions{
		BaseURL:  server.URL,
		Username: "admin",
		Password: "dev",
	}, tel)
	require.NoError(t, err)

	html, err := client.Fetch(ctx, "/cmSignalData.htm")
	require.NoError(t, err)
	rows, err := tables.Extract(html)
	require.NoError(t, err)
	samples := docsis.NewProjector(tel).Project(sections.Classify(rows))
	// 8 downstream with 4 metrics, 4 upstream, 1 ofdm with 4 metrics
	require.Len(t, samples, 8*4+4+4)

	html, err = client.Fetch(ctx, "/cmeventlog.html")
	require.NoError(t, err)
	tabs, err := tables.ExtractTables(html)
	require.NoError(t, err)
	require.Len(t, tabs, 1)
	parsed := events.ParseRecords(tabs[0].Rows, values.NewTimestampParser(time.Local))
	require.Len(t, parsed.Records, 2)
	require.Zero(t, parsed.Unparseable)
}

func TestFakeModemRequiresAuth(t *testing.T) {
	server := httptest.NewServer(newFakeModem("admin", "dev").mux())
	defer server.Close()

	client, err := fetch.NewHTTPClient(fetch.HTTPOptions{BaseURL: server.URL, Password: "wrong"}, telemetry.NewTestAPI())
	require.NoError(t, err)
	_, err = client.Fetch(context.Background(), "/cmSignalData.htm")
	var transportErr *fetch.TransportError
	require.ErrorAs(t, err, &transportErr)
	require.Equal(t, 401, transportErr.Status)
}
