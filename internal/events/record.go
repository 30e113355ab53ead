package events

import (
	"strings"
	"time"

	"docsis-exporter/internal/tables"
	"docsis-exporter/internal/values"
)

// Record is one parsed row of the device event log.
type Record struct {
	Time        time.Time
	TimeText    string
	Level       string
	Description string
}

// Unix is the record's timestamp in unix seconds, the unit watermarks are
// kept in.
func (r Record) Unix() int64 {
	return r.Time.Unix()
}

// Entry is the structured line appended to the event sink for one record.
type Entry struct {
	Source      string `json:"source"`
	Event       string `json:"event"`
	Time        string `json:"ts"`
	Unix        int64  `json:"ts_unix"`
	Level       string `json:"level"`
	Description string `json:"desc"`
}

// ParseResult is the outcome of ParseRecords.
type ParseResult struct {
	// Records keeps the device's presentation order (newest first).
	Records []Record
	// Short counts rows with fewer than three cells.
	Short int
	// Unparseable counts rows whose timestamp could not be read, they can be
	// neither ordered nor deduplicated so they are excluded entirely.
	Unparseable int
}

// ParseRecords reads the rows of the event table. Cells beyond the third are
// ignored, a leading header row (first cell starting with "date") is skipped.
func ParseRecords(rows []tables.Row, timestamps values.TimestampParser) ParseResult {
	var result ParseResult
	for i, row := range rows {
		if i == 0 && len(row) > 0 && strings.HasPrefix(strings.ToLower(strings.TrimSpace(row[0])), "date") {
			continue
		}
		if len(row) < 3 {
			result.Short++
			continue
		}
		parsed, err := timestamps.Parse(row[0])
		if err != nil {
			result.Unparseable++
			continue
		}
		result.Records = append(result.Records, Record{
			Time:        parsed,
			TimeText:    row[0],
			Level:       row[1],
			Description: row[2],
		})
	}
	return result
}
