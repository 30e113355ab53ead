package fetch

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"strings"
	"time"

	"docsis-exporter/internal/components/assert"
	"docsis-exporter/internal/components/telemetry"
	"docsis-exporter/lib/restyutil"
	libtelemetry "docsis-exporter/lib/telemetry"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"
)

const (
	report_http_fetch = "http-client.fetch"
)

type HTTPOptions struct {
	BaseURL  string
	Username string
	Password string
	// Timeout bounds a single request, defaults to 10 seconds.
	Timeout time.Duration
	// RequestsPerSecond defaults to 2.
	RequestsPerSecond float64
	// VerifyTLS enables certificate verification. Devices serve
	// self-signed certificates so it is off unless asked for.
	VerifyTLS bool
	UserAgent string
	// MinBodyBytes is the shortest body accepted as a page, defaults to 32.
	MinBodyBytes int
	// Dump receives a copy of every exchange when set.
	Dump restyutil.Output
}

// HTTPClient fetches pages with HTTP basic auth.
type HTTPClient struct {
	http    *resty.Client
	tel     telemetry.API
	minBody int
}

func NewHTTPClient(opts HTTPOptions, tel telemetry.API) (*HTTPClient, error) {
	assert.NotNil(tel)
	tel = telemetry.NewScopedAPI("fetch", tel)

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		return nil, fmt.Errorf("base url must not be empty")
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.RequestsPerSecond <= 0 {
		opts.RequestsPerSecond = 2
	}
	if opts.MinBodyBytes <= 0 {
		opts.MinBodyBytes = 32
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "docsis-exporter"
	}

	client := resty.New()
	client.SetBaseURL(baseURL)
	client.SetHeader("user-agent", opts.UserAgent)
	client.SetTimeout(opts.Timeout)
	client.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: !opts.VerifyTLS})
	if opts.Username != "" || opts.Password != "" {
		client.SetBasicAuth(opts.Username, opts.Password)
	}

	// embedded web servers fall over easily, a scrape is three pages
	// so a burst of 3 never delays a single scrape
	rateLimiter := rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 3)
	client.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		return rateLimiter.Wait(req.Context())
	})

	telemetry.InstrumentResty(client, tel, opts.Timeout/2)
	libtelemetry.TraceResty(client, "docsis-exporter/fetch")
	restyutil.DumpMessages(client, opts.Dump)

	return &HTTPClient{http: client, tel: tel, minBody: opts.MinBodyBytes}, nil
}

func (c *HTTPClient) Fetch(ctx context.Context, path string) (string, error) {
	res, err := c.http.R().
		SetContext(ctx).
		Get(path)
	if err != nil {
		c.tel.ReportBroken(report_http_fetch, err, path)
		return "", &TransportError{Path: path, Err: err}
	}
	if res.StatusCode() != http.StatusOK {
		err := &TransportError{
			Path:   path,
			Status: res.StatusCode(),
			Err:    fmt.Errorf("unexpected status %q", res.Status()),
		}
		c.tel.ReportBroken(report_http_fetch, err, path)
		return "", err
	}
	body := res.String()
	if err := c.checkBody(body); err != nil {
		c.tel.ReportBroken(report_http_fetch, err, path, len(body))
		return "", &TransportError{Path: path, Status: res.StatusCode(), Err: err}
	}
	return body, nil
}

func (c *HTTPClient) checkBody(body string) error {
	trimmed := strings.TrimSpace(body)
	if trimmed == "" {
		return ErrEmptyBody
	}
	if len(trimmed) < c.minBody || !strings.Contains(trimmed, "<") {
		return ErrShortBody
	}
	return nil
}
