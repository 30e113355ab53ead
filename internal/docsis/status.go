package docsis

import (
	"strings"
	"time"

	"docsis-exporter/internal/tables"
	"docsis-exporter/internal/values"
	"docsis-exporter/lib/textutil"
)

const report_projector_status = "projector.status"

// Status is what the connection status page says about the device itself.
// A nil pointer means the page did not carry a readable value.
type Status struct {
	UptimeText string
	Uptime     *time.Duration
	SystemTime *time.Time
}

// ProjectStatus reads the key/value rows (exactly two cells) of the
// connection status page.
func (p Projector) ProjectStatus(rows []tables.Row, timestamps values.TimestampParser) Status {
	var status Status
	for _, row := range rows {
		if len(row) != 2 {
			continue
		}
		key := textutil.NormalizeHeader(row[0])
		value := strings.TrimSpace(row[1])

		if strings.Contains(key, "uptime") || strings.Contains(key, "up time") {
			status.UptimeText = value
			uptime, err := values.ParseUptime(value)
			if err != nil {
				p.tel.ReportDebug(report_projector_status, key, err)
				continue
			}
			status.Uptime = &uptime
			continue
		}
		if strings.Contains(key, "time") {
			systemTime, err := timestamps.Parse(value)
			if err != nil {
				p.tel.ReportDebug(report_projector_status, key, err)
				continue
			}
			status.SystemTime = &systemTime
		}
	}
	return status
}
