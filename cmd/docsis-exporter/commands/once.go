package commands

import (
	"fmt"
	"log/slog"
	"sort"

	"docsis-exporter/internal/components/telemetry"
	"docsis-exporter/internal/docsis"
	"docsis-exporter/internal/metrics"
	"docsis-exporter/internal/scrape"
	"docsis-exporter/lib/serviceutil"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(onceCmd)
}

var onceCmd = &cobra.Command{
	Use:   "once",
	Short: "Runs a single scrape, appending new events, and prints what was read.",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig(configPath)
		if err != nil {
			serviceutil.Fatal("failed to read config", err)
		}

		tel := telemetry.SlogAPI{}
		res := &resources{}
		defer res.Close()
		scraper, err := res.newScraper(cfg, metrics.NewPrometheus(tel), tel)
		if err != nil {
			serviceutil.Fatal("failed to initialize scraper", err)
		}

		result := scraper.Scrape(cmd.Context())
		printSamples(result.Samples)
		printStatus(result)
		if result.Events != nil {
			slog.Info(
				"events",
				"visible", len(result.Events.Parse.Records),
				"appended", len(result.Events.Appended),
				"watermark", formatUnix(result.Events.Watermark),
			)
		}
		slog.Info("scrape finished", "duration", result.Duration.String())

		if result.Err != nil {
			res.Close()
			serviceutil.Fatal("scrape failed", result.Err)
		}
	},
}

func printSamples(samples []docsis.Sample) {
	sorted := make([]docsis.Sample, len(samples))
	copy(sorted, samples)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Metric != sorted[j].Metric {
			return sorted[i].Metric < sorted[j].Metric
		}
		return sorted[i].Channel < sorted[j].Channel
	})

	t := newTable()
	t.AppendHeader(table.Row{"Metric", "Channel", "Value"})
	for _, s := range sorted {
		t.AppendRow(table.Row{metrics.ChannelFamily(s.Metric), s.Channel, s.Value})
	}
	t.AppendFooter(table.Row{"", "Samples", len(samples)})
	t.Render()
}

func printStatus(result scrape.Result) {
	t := newTable()
	t.AppendHeader(table.Row{"Status", "Value"})
	uptime := result.Status.UptimeText
	if result.Status.Uptime != nil {
		uptime = fmt.Sprintf("%s (%s)", uptime, result.Status.Uptime.String())
	}
	t.AppendRow(table.Row{"Uptime", uptime})
	systemTime := "unknown"
	if result.Status.SystemTime != nil {
		systemTime = formatUnix(result.Status.SystemTime.Unix())
	}
	t.AppendRow(table.Row{"System time", systemTime})
	t.AppendRow(table.Row{"Sections", len(result.Sections.Order)})
	t.Render()
}
