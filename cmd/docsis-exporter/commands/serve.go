package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"docsis-exporter/internal/components/chrono"
	"docsis-exporter/internal/components/telemetry"
	"docsis-exporter/internal/metrics"
	"docsis-exporter/lib/serviceutil"
	libtelemetry "docsis-exporter/lib/telemetry"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

const indexPage = `<html><head><title>docsis-exporter</title></head>
<body><h1>docsis-exporter</h1><p><a href="/metrics">Metrics</a></p></body></html>`

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Scrapes the device on an interval and serves the gauges on /metrics.",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()

		cfg, err := loadConfig(configPath)
		if err != nil {
			serviceutil.Fatal("failed to read config", err)
		}

		otlp, err := libtelemetry.SetupFromEnv(ctx, "docsis-exporter")
		if errors.Is(err, os.ErrNotExist) {
			slog.Debug("no telemetry.json5 found, not exporting otlp")
		} else if err != nil {
			serviceutil.Fatal("failed to setup telemetry", err)
		}
		defer otlp.Shutdown(context.Background())

		err = libtelemetry.InstrumentPerfStats(ctx, otel.Meter("docsis-exporter/perf"), 30*time.Second)
		if err != nil {
			serviceutil.Fatal("failed to instrument perf stats", err)
		}

		tel := telemetry.SlogAPI{}
		prom := metrics.NewPrometheus(tel)
		sink := metrics.Fanout{prom}
		if cfg.Otel {
			otelSink, err := metrics.NewOTel(otel.Meter("docsis-exporter"), tel)
			if err != nil {
				serviceutil.Fatal("failed to create otel gauges", err)
			}
			defer otelSink.Close()
			sink = append(sink, otelSink)
		}

		res := &resources{}
		defer res.Close()
		scraper, err := res.newScraper(cfg, sink, tel)
		if err != nil {
			serviceutil.Fatal("failed to initialize scraper", err)
		}

		mux := http.NewServeMux()
		mux.Handle("/metrics", prom.Handler())
		mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/" {
				http.NotFound(w, r)
				return
			}
			w.Header().Set("content-type", "text/html; charset=utf-8")
			fmt.Fprint(w, indexPage)
		})
		go func() {
			err := serviceutil.StartHttpServer(ctx, cfg.Port, mux)
			if err != nil {
				serviceutil.Fatal(fmt.Sprintf("failed to listen on port %d", cfg.Port), err)
			}
		}()

		cron := chrono.NewStandardCron(tel, time.UTC)
		slog.Info(
			"scraping",
			"device", cfg.BaseURL,
			"interval", cfg.interval().String(),
			"login_mode", cfg.LoginMode,
			"events", !cfg.DisableEvents,
		)
		err = scraper.Run(ctx, cron, cfg.interval())
		if err != nil {
			serviceutil.Fatal("failed to schedule scrapes", err)
		}
	},
}
