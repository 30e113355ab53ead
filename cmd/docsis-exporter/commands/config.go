package commands

import (
	"errors"
	"fmt"
	"os"
	"time"

	"docsis-exporter/lib/configutil"

	"dario.cat/mergo"
)

const (
	loginModeBasic   = "basic"
	loginModeBrowser = "browser"
)

type BrowserConfig struct {
	LoginPath        string `json:"login_path"`
	UsernameSelector string `json:"username_selector"`
	PasswordSelector string `json:"password_selector"`
	SubmitSelector   string `json:"submit_selector"`
	// RemoteURL is the devtools websocket of a running browser.
	RemoteURL string `json:"remote_url"`
}

type Config struct {
	BaseURL  string `json:"base_url"`
	Username string `json:"username"`
	Password string `json:"password"`

	Port            int `json:"port"`
	IntervalSeconds int `json:"interval_seconds"`
	// Timezone is the IANA zone the device's clock is in, empty means the
	// host's zone.
	Timezone string `json:"timezone"`

	SignalPath    string `json:"signal_path"`
	StatusPath    string `json:"status_path"`
	EventPath     string `json:"event_path"`
	DisableEvents bool   `json:"disable_events"`

	LoginMode         string        `json:"login_mode"`
	Browser           BrowserConfig `json:"browser"`
	RequestsPerSecond float64       `json:"requests_per_second"`
	VerifyTLS         bool          `json:"verify_tls"`

	// DumpDir receives a copy of every fetched page, for basic login only.
	DumpDir string `json:"dump_dir"`

	// Watermark and EventSink are file paths or sqlite:/libsql:// DSNs,
	// EventSink "-" is stdout.
	Watermark        string   `json:"watermark"`
	EventSink        string   `json:"event_sink"`
	EventSource      string   `json:"event_source"`
	TimestampFormats []string `json:"timestamp_formats"`

	// Otel also publishes the gauges through the OpenTelemetry meter
	// configured in telemetry.json5.
	Otel bool `json:"otel"`
}

func defaultConfig() Config {
	return Config{
		BaseURL:         "https://192.168.100.1",
		Username:        "admin",
		Port:            8000,
		IntervalSeconds: 30,
		SignalPath:      "/cmSignalData.htm",
		StatusPath:      "/cmconnectionstatus.html",
		EventPath:       "/cmeventlog.html",
		LoginMode:       loginModeBasic,
		Watermark:       "event_watermark",
		EventSink:       "-",
		EventSource:     "modem",
	}
}

// loadConfig reads the config file if there is one, fills unset fields
// with defaults and finally applies the environment.
func loadConfig(path string) (Config, error) {
	cfg, err := configutil.ReadConfig[Config](path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := mergo.Merge(&cfg, defaultConfig()); err != nil {
		return Config{}, err
	}

	configutil.OverrideString("MODEM_BASE_URL", &cfg.BaseURL)
	configutil.OverrideString("MODEM_USERNAME", &cfg.Username)
	configutil.OverrideString("MODEM_PASSWORD", &cfg.Password)
	if err := configutil.OverrideInt("EXPORTER_PORT", &cfg.Port); err != nil {
		return Config{}, err
	}
	if err := configutil.OverrideInt("SCRAPE_INTERVAL_SECONDS", &cfg.IntervalSeconds); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// validateDevice checks what is needed to talk to the device.
func (c Config) validateDevice() error {
	if c.Password == "" {
		return fmt.Errorf("MODEM_PASSWORD not set")
	}
	if c.LoginMode != loginModeBasic && c.LoginMode != loginModeBrowser {
		return fmt.Errorf("unknown login_mode %q, expected %q or %q", c.LoginMode, loginModeBasic, loginModeBrowser)
	}
	if c.IntervalSeconds <= 0 {
		return fmt.Errorf("scrape interval must be positive, got %d", c.IntervalSeconds)
	}
	return nil
}

func (c Config) interval() time.Duration {
	return time.Duration(c.IntervalSeconds) * time.Second
}
