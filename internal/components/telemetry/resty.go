package telemetry

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	report_resty_exchange = "resty.exchange"
	report_resty_slow     = "resty.slow"
)

type exchangeKey struct{}

type exchange struct {
	id      uint64
	started time.Time
}

// InstrumentResty reports every exchange of client through tel. A transport
// failure is reported as broken, a response slower than slow as a warning
// (zero disables the warning), embedded web servers tend to crawl for a
// while before they stop answering.
func InstrumentResty(client *resty.Client, tel API, slow time.Duration) {
	var counter uint64

	client.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		ex := exchange{id: atomic.AddUint64(&counter, 1), started: time.Now()}
		tel.ReportDebug(report_resty_exchange, ex.id, req.Method, req.URL)
		req.SetContext(context.WithValue(req.Context(), exchangeKey{}, ex))
		return nil
	})

	client.OnAfterResponse(func(_ *resty.Client, res *resty.Response) error {
		ex, ok := res.Request.Context().Value(exchangeKey{}).(exchange)
		if !ok {
			return nil
		}
		elapsed := time.Since(ex.started)
		tel.ReportDebug(report_resty_exchange, ex.id, res.Status(), len(res.Body()), elapsed.String())
		if slow > 0 && elapsed > slow {
			tel.ReportWarning(report_resty_slow, res.Request.URL, elapsed.String())
		}
		return nil
	})

	client.OnError(func(req *resty.Request, err error) {
		var elapsed time.Duration
		if ex, ok := req.Context().Value(exchangeKey{}).(exchange); ok {
			elapsed = time.Since(ex.started)
		}
		tel.ReportBroken(report_resty_exchange, err, req.Method, req.URL, elapsed.String())
	})
}
