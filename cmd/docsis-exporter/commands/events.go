package commands

import (
	"fmt"
	"os"

	"docsis-exporter/internal/components/telemetry"
	"docsis-exporter/internal/events"
	"docsis-exporter/internal/store"
	"docsis-exporter/internal/tables"
	"docsis-exporter/lib/serviceutil"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var storedLimit int

func init() {
	eventsCmd.Flags().IntVar(&storedLimit, "stored", 0, "Instead of the device, print up to this many events from a sqlite event sink.")
	rootCmd.AddCommand(eventsCmd)
}

var eventsCmd = &cobra.Command{
	Use:   "events [--stored <n>]",
	Short: "Prints the device's event log marking what the next scrape would append, without appending.",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		cfg, err := loadConfig(configPath)
		if err != nil {
			serviceutil.Fatal("failed to read config", err)
		}

		res := &resources{}
		defer res.Close()

		if storedLimit > 0 {
			if !store.IsDSN(cfg.EventSink) {
				serviceutil.Fatal("cannot list stored events", fmt.Errorf("event sink %q is not a database", cfg.EventSink))
			}
			db, err := res.db(cfg.EventSink)
			if err != nil {
				serviceutil.Fatal("failed to open event sink", err)
			}
			entries, err := store.NewSQLEvents(db).List(ctx, 0, storedLimit)
			if err != nil {
				serviceutil.Fatal("failed to list events", err)
			}
			t := newTable()
			t.AppendHeader(table.Row{"Time", "Level", "Description"})
			for _, e := range entries {
				t.AppendRow(table.Row{e.Time, e.Level, e.Description})
			}
			t.Render()
			return
		}

		if err := cfg.validateDevice(); err != nil {
			serviceutil.Fatal("invalid config", err)
		}
		clock, err := newClock(cfg)
		if err != nil {
			serviceutil.Fatal("invalid config", err)
		}
		tel := telemetry.SlogAPI{}
		fetcher, err := res.fetcher(cfg, tel)
		if err != nil {
			serviceutil.Fatal("failed to initialize fetcher", err)
		}
		watermarkStore, err := res.watermark(cfg)
		if err != nil {
			serviceutil.Fatal("failed to open watermark", err)
		}

		html, err := fetcher.Fetch(ctx, cfg.EventPath)
		if err != nil {
			serviceutil.Fatal("failed to fetch event log", err)
		}
		tabs, err := tables.ExtractTables(html)
		if err != nil {
			serviceutil.Fatal("failed to read event log", err)
		}
		if len(tabs) == 0 {
			fmt.Fprintln(os.Stderr, "the event page has no table")
			return
		}

		parsed := events.ParseRecords(tabs[0].Rows, timestampParser(cfg, clock))
		watermark, err := watermarkStore.Read(ctx)
		if err != nil {
			serviceutil.Fatal("failed to read watermark", err)
		}

		t := newTable()
		t.AppendHeader(table.Row{"", "Time", "Level", "Description"})
		for _, r := range parsed.Records {
			marker := ""
			if r.Unix() > watermark {
				marker = "new"
			}
			t.AppendRow(table.Row{marker, r.TimeText, r.Level, r.Description})
		}
		t.AppendFooter(table.Row{
			"",
			fmt.Sprintf("watermark %s", formatUnix(watermark)),
			fmt.Sprintf("%d new", len(events.Pending(parsed.Records, watermark))),
			fmt.Sprintf("%d unreadable, %d short", parsed.Unparseable, parsed.Short),
		})
		t.Render()

		stats := events.ComputeStats(parsed.Records)
		levels := newTable()
		levels.AppendHeader(table.Row{"Level", "Events"})
		for level, count := range stats.LevelCounts {
			levels.AppendRow(table.Row{level, count})
		}
		levels.SortBy([]table.SortBy{{Name: "Level", Mode: table.Asc}})
		levels.AppendFooter(table.Row{"Logins ok / failed", fmt.Sprintf("%d / %d", stats.LoginSuccess, stats.LoginFailure)})
		levels.Render()
	},
}
