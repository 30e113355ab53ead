package main

import (
	"fmt"
	"math/rand"
	"net/http"
	"strings"
	"sync"
	"time"
)

const deviceTime = "Mon Jan 02 2006 15:04:05"

// fakeModem serves pages shaped like a cable modem's management interface.
// Signal values jitter on every request and a new event is logged every
// minute, so repeated scrapes have something to deduplicate.
type fakeModem struct {
	username string
	password string
	started  time.Time

	mu     sync.Mutex
	events []string
	logged time.Time
}

func newFakeModem(username, password string) *fakeModem {
	now := time.Now()
	return &fakeModem{
		username: username,
		password: password,
		started:  now,
		logged:   now,
		events: []string{
			eventRow(now.Add(-2*time.Minute), "Critical (3)", "No Ranging Response received - T3 time-out"),
			eventRow(now.Add(-time.Minute), "Notice (6)", "Login Success"),
		},
	}
}

func eventRow(t time.Time, level, description string) string {
	return fmt.Sprintf("<tr><td>%s</td><td>%s</td><td>%s</td></tr>", t.Format(deviceTime), level, description)
}

func (m *fakeModem) mux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/cmSignalData.htm", m.auth(m.signal))
	mux.HandleFunc("/cmconnectionstatus.html", m.auth(m.status))
	mux.HandleFunc("/cmeventlog.html", m.auth(m.eventLog))
	return mux
}

func (m *fakeModem) auth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != m.username || pass != m.password {
			w.Header().Set("www-authenticate", `Basic realm="modem"`)
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

func jitter(base float64) string {
	return fmt.Sprintf("%.1f", base+rand.Float64()-0.5)
}

func (m *fakeModem) signal(w http.ResponseWriter, _ *http.Request) {
	var b strings.Builder
	b.WriteString("<html><body><table>\n<tr><th colspan=\"6\">Downstream Bonded Channels</th></tr>\n")
	b.WriteString("<tr><td>Channel ID</td><td>Lock Status</td><td>Power</td><td>SNR</td><td>Corrected</td><td>Uncorrectables</td></tr>\n")
	for ch := 1; ch <= 8; ch++ {
		fmt.Fprintf(
			&b,
			"<tr><td>%d</td><td>Locked</td><td>%s dBmV</td><td>%s dB</td><td>%d</td><td>%d</td></tr>\n",
			ch, jitter(1.5), jitter(39), rand.Intn(5000), rand.Intn(20),
		)
	}
	b.WriteString("</table>\n<table>\n<tr><th>Upstream Bonded Channels</th></tr>\n")
	b.WriteString("<tr><td>Channel</td><td>Channel ID</td><td>Lock Status</td><td>Power</td></tr>\n")
	for ch := 1; ch <= 4; ch++ {
		fmt.Fprintf(&b, "<tr><td>%d</td><td>%d</td><td>Locked</td><td>%s dBmV</td></tr>\n", ch, ch+16, jitter(44))
	}
	b.WriteString("</table>\n<table>\n<tr><th>OFDM Downstream Channels</th></tr>\n")
	b.WriteString("<tr><td>Channel ID</td><td>PLC Power</td><td>SNR/MER</td><td>Correctable Codewords</td><td>Uncorrectable Codewords</td></tr>\n")
	fmt.Fprintf(&b, "<tr><td>33</td><td>%s dBmV</td><td>%s dB</td><td>%d</td><td>%d</td></tr>\n", jitter(-3), jitter(41), rand.Intn(100000), rand.Intn(10))
	b.WriteString("</table></body></html>")
	w.Write([]byte(b.String()))
}

func (m *fakeModem) status(w http.ResponseWriter, _ *http.Request) {
	uptime := time.Since(m.started)
	days := int(uptime.Hours()) / 24
	fmt.Fprintf(
		w,
		"<table><tr><th colspan=\"2\">Status</th></tr><tr><td>Up Time</td><td>%d days %02dh:%02dm:%02ds</td></tr><tr><td>Current System Time</td><td>%s</td></tr></table>",
		days, int(uptime.Hours())%24, int(uptime.Minutes())%60, int(uptime.Seconds())%60,
		time.Now().Format(deviceTime),
	)
}

func (m *fakeModem) eventLog(w http.ResponseWriter, _ *http.Request) {
	m.mu.Lock()
	for time.Since(m.logged) >= time.Minute {
		m.logged = m.logged.Add(time.Minute)
		m.events = append(m.events, eventRow(m.logged, "Warning (5)", "MDD message timeout"))
	}
	// the device only keeps its most recent events
	if len(m.events) > 16 {
		m.events = m.events[len(m.events)-16:]
	}
	rows := make([]string, len(m.events))
	for i, row := range m.events {
		rows[len(rows)-1-i] = row
	}
	m.mu.Unlock()

	fmt.Fprintf(
		w,
		"<table><tr><th>Date Time</th><th>Event Level</th><th>Event Description</th></tr>%s</table>",
		strings.Join(rows, ""),
	)
}
