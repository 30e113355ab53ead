// Package metrics publishes the gauges produced by a scrape.
//
// Every gauge is replaced wholesale: a scrape resets the families it owns
// before setting their new values, so a channel that disappears from the
// device stops being reported instead of keeping its last value forever.
package metrics

import (
	"context"

	"docsis-exporter/internal/docsis"
)

const namespace = "modem_"

// label names
const (
	LabelChannel = "channel"
	LabelLevel   = "level"
	LabelUptime  = "uptime"
)

// non-channel families
const (
	Uptime     = namespace + "uptime"
	UptimeInfo = namespace + "uptime_info"
	SystemTime = namespace + "system_time"

	ScrapeOK       = namespace + "scrape_ok"
	ScrapeDuration = namespace + "scrape_duration_seconds"
	LastScrape     = namespace + "last_scrape_timestamp"

	EventCount         = namespace + "event_count"
	EventLastTimestamp = namespace + "event_last_timestamp"
	LoginSuccessCount  = namespace + "login_success_count"
	LoginFailureCount  = namespace + "login_failure_count"
	LoginLastSuccess   = namespace + "login_last_success_timestamp"
	LoginLastFailure   = namespace + "login_last_failure_timestamp"
	EventsAppended     = namespace + "events_appended"
	EventWatermark     = namespace + "event_watermark"
)

// Family describes one gauge family.
type Family struct {
	Name   string
	Help   string
	Labels []string
}

// ChannelFamily is the family name a channel metric is published under.
func ChannelFamily(m docsis.Metric) string {
	return namespace + string(m)
}

var channelHelp = map[docsis.Metric]string{
	docsis.DownstreamPower:         "Downstream channel power (dBmV).",
	docsis.DownstreamSNR:           "Downstream channel SNR (dB).",
	docsis.DownstreamCorrected:     "Downstream corrected codewords as reported by the device.",
	docsis.DownstreamUncorrectable: "Downstream uncorrectable codewords as reported by the device.",
	docsis.UpstreamPower:           "Upstream channel power (dBmV).",
	docsis.OFDMPower:               "OFDM channel power (dBmV).",
	docsis.OFDMSNR:                 "OFDM channel SNR/MER (dB).",
	docsis.OFDMCorrectable:         "OFDM correctable codewords as reported by the device.",
	docsis.OFDMUncorrectable:       "OFDM uncorrectable codewords as reported by the device.",
}

// Families is every family a sink must know about.
var Families = buildFamilies()

// ChannelFamilies is the subset of Families holding per-channel samples.
var ChannelFamilies = channelFamilies()

// EventFamilies are the families derived from the event log.
var EventFamilies = []string{
	EventCount,
	EventLastTimestamp,
	LoginSuccessCount,
	LoginFailureCount,
	LoginLastSuccess,
	LoginLastFailure,
	EventsAppended,
	EventWatermark,
}

func channelFamilies() []string {
	out := make([]string, len(docsis.Metrics))
	for i, m := range docsis.Metrics {
		out[i] = ChannelFamily(m)
	}
	return out
}

func buildFamilies() []Family {
	var out []Family
	for _, m := range docsis.Metrics {
		out = append(out, Family{
			Name:   ChannelFamily(m),
			Help:   channelHelp[m],
			Labels: []string{LabelChannel},
		})
	}
	return append(
		out,
		Family{Name: Uptime, Help: "Device uptime in seconds."},
		Family{Name: UptimeInfo, Help: "Device uptime as displayed by the device.", Labels: []string{LabelUptime}},
		Family{Name: SystemTime, Help: "Device clock as unix seconds."},
		Family{Name: ScrapeOK, Help: "1 when the last scrape succeeded, 0 otherwise."},
		Family{Name: ScrapeDuration, Help: "Duration of the last scrape in seconds."},
		Family{Name: LastScrape, Help: "Unix time the last scrape finished."},
		Family{Name: EventCount, Help: "Events per level in the device's event window.", Labels: []string{LabelLevel}},
		Family{Name: EventLastTimestamp, Help: "Unix time of the newest event in the device's event window."},
		Family{Name: LoginSuccessCount, Help: "Successful logins in the device's event window."},
		Family{Name: LoginFailureCount, Help: "Failed logins in the device's event window."},
		Family{Name: LoginLastSuccess, Help: "Unix time of the newest successful login."},
		Family{Name: LoginLastFailure, Help: "Unix time of the newest failed login."},
		Family{Name: EventsAppended, Help: "Events appended to the event sink by the last scrape."},
		Family{Name: EventWatermark, Help: "Unix time of the newest event ever appended."},
	)
}

// Lookup returns the family with the given name.
func Lookup(name string) (Family, bool) {
	for _, f := range Families {
		if f.Name == name {
			return f, true
		}
	}
	return Family{}, false
}

// Sink receives gauge values. Label values are given in the order of the
// family's Labels.
//
// note: fault injection point
type Sink interface {
	// Reset forgets every series of the given families.
	Reset(families ...string)
	Set(ctx context.Context, family string, value float64, labelValues ...string)
}

// Fanout forwards to every sink it holds.
type Fanout []Sink

func (f Fanout) Reset(families ...string) {
	for _, s := range f {
		s.Reset(families...)
	}
}

func (f Fanout) Set(ctx context.Context, family string, value float64, labelValues ...string) {
	for _, s := range f {
		s.Set(ctx, family, value, labelValues...)
	}
}
