// Package values turns the text of a table cell into numbers, timestamps and
// durations. Nothing here panics or logs: a value that cannot be read comes
// back as an error that wraps one of the sentinels below, so callers can skip
// just that field.
package values

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"docsis-exporter/lib/htmlutil"
)

var (
	ErrEmpty       = errors.New("empty value")
	ErrNoNumber    = errors.New("no numeric value")
	ErrNoTimestamp = errors.New("no matching timestamp layout")
	ErrNoUptime    = errors.New("no uptime value")
)

// ParseNumber keeps the digits of text, a leading sign and a decimal point,
// and parses what is left. Units and thousands separators are ignored: "-5
// dBmV" is -5, "1,234" is 1234. Text that is not one number, such as a
// second decimal point ("192.168.100.1") or a sign after the digits
// ("5-3"), fails with ErrNoNumber rather than being read as some other
// number.
func ParseNumber(text string) (float64, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0, ErrEmpty
	}

	var out strings.Builder
	negative := false
	seenSign := false
	seenDigit := false
	seenPoint := false
	for _, r := range text {
		switch {
		case r >= '0' && r <= '9':
			seenDigit = true
			out.WriteRune(r)
		case r == '.':
			if seenPoint {
				return 0, fmt.Errorf("%w: %q: more than one decimal point", ErrNoNumber, text)
			}
			seenPoint = true
			out.WriteRune(r)
		case r == '-' || r == '−' || r == '+':
			if seenDigit || seenPoint {
				return 0, fmt.Errorf("%w: %q: sign after the number", ErrNoNumber, text)
			}
			if seenSign {
				continue
			}
			seenSign = true
			negative = r != '+'
		}
	}
	if !seenDigit {
		return 0, fmt.Errorf("%w: %q", ErrNoNumber, text)
	}

	value, err := strconv.ParseFloat(out.String(), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q: %w", ErrNoNumber, text, err)
	}
	if negative {
		value = -value
	}
	return value, nil
}

// DefaultTimestampLayouts are the datetime formats modem firmware is known to
// print, "Tue Oct 14 2025 09:12:44" and "10/14/2025 09:12:44". Single digit
// days, months and hours are accepted.
var DefaultTimestampLayouts = []string{
	"Mon Jan 2 2006 15:04:05",
	"1/2/2006 15:04:05",
}

// TimestampParser parses device-local timestamps against a list of layouts.
type TimestampParser struct {
	Layouts  []string
	Location *time.Location
}

// NewTimestampParser creates a parser that tries the extra layouts after the
// default ones, a nil location means time.Local.
func NewTimestampParser(location *time.Location, extra ...string) TimestampParser {
	layouts := make([]string, 0, len(DefaultTimestampLayouts)+len(extra))
	layouts = append(layouts, DefaultTimestampLayouts...)
	layouts = append(layouts, extra...)
	if location == nil {
		location = time.Local
	}
	return TimestampParser{Layouts: layouts, Location: location}
}

// Parse returns the instant text denotes in the parser's location.
func (p TimestampParser) Parse(text string) (time.Time, error) {
	return ParseDeviceTimestamp(text, p.Location, p.Layouts...)
}

// ParseDeviceTimestamp tries every layout in order (DefaultTimestampLayouts
// when none are given) and returns the first successful parse.
func ParseDeviceTimestamp(text string, location *time.Location, layouts ...string) (time.Time, error) {
	text = htmlutil.CollapseWhitespace(text)
	if text == "" {
		return time.Time{}, ErrEmpty
	}
	if len(layouts) == 0 {
		layouts = DefaultTimestampLayouts
	}
	if location == nil {
		location = time.Local
	}

	for _, layout := range layouts {
		parsed, err := time.ParseInLocation(layout, text, location)
		if err == nil {
			return parsed, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrNoTimestamp, text)
}

var (
	uptimeClockRegex = regexp.MustCompile(`(\d+)\s*h\s*:\s*(\d+)\s*m\s*:\s*(\d+)\s*s`)
	uptimeDaysRegex  = regexp.MustCompile(`(?i)(\d+)\s*days?`)
)

// ParseUptime reads uptimes such as "12h:03m:44s" or "3 days 12h:03m:44s".
func ParseUptime(text string) (time.Duration, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0, ErrEmpty
	}
	clock := uptimeClockRegex.FindStringSubmatch(text)
	if len(clock) < 4 {
		return 0, fmt.Errorf("%w: %q", ErrNoUptime, text)
	}

	var total time.Duration
	units := []time.Duration{time.Hour, time.Minute, time.Second}
	for i, unit := range units {
		n, err := strconv.ParseInt(clock[i+1], 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q: %w", ErrNoUptime, text, err)
		}
		total += time.Duration(n) * unit
	}

	days := uptimeDaysRegex.FindStringSubmatch(text)
	if len(days) >= 2 {
		n, err := strconv.ParseInt(days[1], 10, 64)
		if err == nil {
			total += time.Duration(n) * 24 * time.Hour
		}
	}
	return total, nil
}
