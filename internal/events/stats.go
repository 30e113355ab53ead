package events

import (
	"time"

	"docsis-exporter/lib/textutil"
)

var (
	loginMarkers   = []string{"login"}
	successMarkers = []string{"success"}
	failureMarkers = []string{"fail", "unsuccessful", "invalid", "denied"}
)

// Stats are point-in-time figures over the whole visible event window of one
// scrape. They are recomputed from scratch every scrape and do not depend on
// the watermark.
type Stats struct {
	Total        int
	LevelCounts  map[string]int
	LastEvent    time.Time
	LoginSuccess int
	LoginFailure int
	// zero when no such login is visible
	LastLoginSuccess time.Time
	LastLoginFailure time.Time
}

// ComputeStats tallies records. Login events are recognised by substring:
// a description mentioning a login, then whether it succeeded or failed.
func ComputeStats(records []Record) Stats {
	stats := Stats{LevelCounts: map[string]int{}}
	for _, r := range records {
		stats.Total++
		stats.LevelCounts[r.Level]++
		if r.Time.After(stats.LastEvent) {
			stats.LastEvent = r.Time
		}

		if !textutil.MatchName(r.Description, loginMarkers) {
			continue
		}
		switch {
		case textutil.MatchName(r.Description, failureMarkers):
			stats.LoginFailure++
			if r.Time.After(stats.LastLoginFailure) {
				stats.LastLoginFailure = r.Time
			}
		case textutil.MatchName(r.Description, successMarkers):
			stats.LoginSuccess++
			if r.Time.After(stats.LastLoginSuccess) {
				stats.LastLoginSuccess = r.Time
			}
		}
	}
	return stats
}
