package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	devenv "docsis-exporter/dev/env"
	"docsis-exporter/internal/store"
	"docsis-exporter/lib/serviceutil"
	libtelemetry "docsis-exporter/lib/telemetry"
)

const devConfig = `{
	// written by go run ./dev, run the exporter with
	// go run ./cmd/docsis-exporter -c %[1]s serve
	base_url: "http://127.0.0.1:%[2]d",
	username: "admin",
	password: "dev",
	port: 8000,
	interval_seconds: 10,
	watermark: "sqlite:%[3]s",
	event_sink: "sqlite:%[3]s",
}
`

func create(recreate bool, modemPort int) error {
	_, err := os.Stat("go.mod")
	if os.IsNotExist(err) {
		return fmt.Errorf("the dev environment must be created in the repository root (the same directory as the 'go.mod' file)")
	}

	if recreate {
		err = os.RemoveAll("dev/.state")
		if err != nil && !os.IsNotExist(err) {
			return err
		}
	}

	dbPath, err := devenv.ResolvePath(filepath.Join("<dev_state>", "exporter.db"))
	if err != nil {
		return err
	}
	db, err := store.OpenDB("sqlite:" + dbPath)
	if err != nil {
		return err
	}
	db.Close()
	fmt.Println("state database at", dbPath)

	configPath, err := devenv.ResolvePath(filepath.Join("<dev_state>", "config.json5"))
	if err != nil {
		return err
	}
	_, err = os.Stat(configPath)
	if err == nil {
		fmt.Println("config already created at", configPath)
		return nil
	}
	err = os.WriteFile(configPath, []byte(fmt.Sprintf(devConfig, configPath, modemPort, dbPath)), 0o644)
	if err != nil {
		return err
	}
	fmt.Println("config at", configPath)
	return nil
}

func main() {
	recreate := flag.Bool("recreate", false, "recreate the dev environment from scratch")
	fakeModem := flag.Bool("fake-modem", false, "after creating the environment, serve a fake modem until interrupted")
	modemPort := flag.Int("modem-port", 8081, "the port the fake modem listens on")
	flag.Parse()

	libtelemetry.InitSlog(true)

	err := create(*recreate, *modemPort)
	if err != nil {
		slog.Error("failed to create dev environment", "err", err.Error())
		os.Exit(1)
	}
	slog.Info("dev environment created sucessfully!")

	if !*fakeModem {
		return
	}
	ctx := serviceutil.SignalContext()
	err = serviceutil.StartHttpServer(ctx, *modemPort, newFakeModem("admin", "dev").mux())
	if err != nil {
		serviceutil.Fatal("fake modem", err)
	}
}
