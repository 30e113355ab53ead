package commands

import (
	"fmt"
	"strconv"

	"docsis-exporter/lib/serviceutil"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	watermarkCmd.AddCommand(watermarkShowCmd)
	watermarkCmd.AddCommand(watermarkSetCmd)
	rootCmd.AddCommand(watermarkCmd)
}

var watermarkCmd = &cobra.Command{
	Use:   "watermark",
	Short: "Inspects or rewinds the time of the newest event appended.",
}

var watermarkShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Prints the current watermark.",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig(configPath)
		if err != nil {
			serviceutil.Fatal("failed to read config", err)
		}
		res := &resources{}
		defer res.Close()
		store, err := res.watermark(cfg)
		if err != nil {
			serviceutil.Fatal("failed to open watermark", err)
		}
		value, err := store.Read(cmd.Context())
		if err != nil {
			serviceutil.Fatal("failed to read watermark", err)
		}

		t := newTable()
		t.AppendHeader(table.Row{"Store", "Unix", "Time"})
		t.AppendRow(table.Row{cfg.Watermark, value, formatUnix(value)})
		t.Render()
	},
}

var watermarkSetCmd = &cobra.Command{
	Use:   "set <unix seconds>",
	Short: "Overwrites the watermark, events newer than it are appended again on the next scrape.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		value, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil || value < 0 {
			serviceutil.Fatal("invalid watermark", fmt.Errorf("%q is not a unix time", args[0]))
		}
		cfg, err := loadConfig(configPath)
		if err != nil {
			serviceutil.Fatal("failed to read config", err)
		}
		res := &resources{}
		defer res.Close()
		store, err := res.watermark(cfg)
		if err != nil {
			serviceutil.Fatal("failed to open watermark", err)
		}
		if err := store.Write(cmd.Context(), value); err != nil {
			serviceutil.Fatal("failed to write watermark", err)
		}
		fmt.Printf("watermark set to %d (%s)\n", value, formatUnix(value))
	},
}
