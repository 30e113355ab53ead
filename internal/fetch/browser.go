package fetch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"docsis-exporter/internal/components/assert"
	"docsis-exporter/internal/components/telemetry"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
)

const (
	report_browser_fetch  = "browser-client.fetch"
	report_browser_login  = "browser-client.login"
	report_browser_launch = "browser-client.launch"
)

type BrowserOptions struct {
	BaseURL  string
	Username string
	Password string
	// LoginPath is the page holding the login form, defaults to "/".
	LoginPath        string
	UsernameSelector string
	PasswordSelector string
	SubmitSelector   string
	// RemoteURL is the devtools websocket of an already running browser,
	// when empty a local headless chrome is launched.
	RemoteURL string
	// Timeout bounds the login and every page load, defaults to 30 seconds.
	Timeout time.Duration
}

func (o *BrowserOptions) defaults() {
	o.BaseURL = strings.TrimRight(o.BaseURL, "/")
	if o.LoginPath == "" {
		o.LoginPath = "/"
	}
	if o.UsernameSelector == "" {
		o.UsernameSelector = "#username"
	}
	if o.PasswordSelector == "" {
		o.PasswordSelector = "#password"
	}
	if o.SubmitSelector == "" {
		o.SubmitSelector = "#loginButton"
	}
	if o.Timeout <= 0 {
		o.Timeout = 30 * time.Second
	}
}

// BrowserClient fetches pages through a headless browser for devices whose
// login is a javascript form rather than HTTP auth. The browser is started
// on the first fetch and the session is reused until the device shows the
// login form again.
type BrowserClient struct {
	opts BrowserOptions
	tel  telemetry.API

	mu       sync.Mutex
	launcher *launcher.Launcher
	browser  *rod.Browser
	page     *rod.Page
	loggedIn bool
}

func NewBrowserClient(opts BrowserOptions, tel telemetry.API) (*BrowserClient, error) {
	assert.NotNil(tel)
	opts.defaults()
	if opts.BaseURL == "" {
		return nil, fmt.Errorf("base url must not be empty")
	}
	return &BrowserClient{
		opts: opts,
		tel:  telemetry.NewScopedAPI("fetch", tel),
	}, nil
}

func (c *BrowserClient) start() error {
	if c.page != nil {
		return nil
	}

	controlURL := c.opts.RemoteURL
	if controlURL == "" {
		l := launcher.New().
			Headless(true).
			Set("disable-blink-features", "AutomationControlled").
			Set("ignore-certificate-errors")
		u, err := l.Launch()
		if err != nil {
			return fmt.Errorf("launch browser: %w", err)
		}
		c.launcher = l
		controlURL = u
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		c.shutdown()
		return fmt.Errorf("connect browser: %w", err)
	}
	c.browser = browser
	if err := browser.IgnoreCertErrors(true); err != nil {
		c.tel.ReportWarning(report_browser_launch, "ignore cert errors", err)
	}

	page, err := stealth.Page(browser)
	if err != nil {
		c.shutdown()
		return fmt.Errorf("open page: %w", err)
	}
	c.page = page
	return nil
}

func (c *BrowserClient) navigate(page *rod.Page, path string) error {
	if err := page.Navigate(c.opts.BaseURL + path); err != nil {
		return err
	}
	return page.WaitLoad()
}

func (c *BrowserClient) login(page *rod.Page) error {
	if err := c.navigate(page, c.opts.LoginPath); err != nil {
		return fmt.Errorf("open login page: %w", err)
	}

	username, err := page.Element(c.opts.UsernameSelector)
	if err != nil {
		return fmt.Errorf("find username field: %w", err)
	}
	if err := username.Input(c.opts.Username); err != nil {
		return err
	}
	password, err := page.Element(c.opts.PasswordSelector)
	if err != nil {
		return fmt.Errorf("find password field: %w", err)
	}
	if err := password.Input(c.opts.Password); err != nil {
		return err
	}
	submit, err := page.Element(c.opts.SubmitSelector)
	if err != nil {
		return fmt.Errorf("find submit button: %w", err)
	}

	wait := page.WaitNavigation(proto.PageLifecycleEventNameNetworkAlmostIdle)
	if err := submit.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return err
	}
	wait()

	c.loggedIn = true
	return nil
}

func (c *BrowserClient) Fetch(ctx context.Context, path string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.start(); err != nil {
		c.tel.ReportBroken(report_browser_launch, err)
		return "", &TransportError{Path: path, Err: err}
	}

	ctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()
	page := c.page.Context(ctx)

	if !c.loggedIn {
		if err := c.login(page); err != nil {
			c.tel.ReportBroken(report_browser_login, err)
			return "", &TransportError{Path: path, Err: fmt.Errorf("login: %w", err)}
		}
	}

	html, err := c.load(page, path)
	if errors.Is(err, errSessionExpired) {
		c.tel.ReportDebug("session expired, logging in again", "path", path)
		c.loggedIn = false
		if err := c.login(page); err != nil {
			c.tel.ReportBroken(report_browser_login, err)
			return "", &TransportError{Path: path, Err: fmt.Errorf("login: %w", err)}
		}
		html, err = c.load(page, path)
	}
	if err != nil {
		c.tel.ReportBroken(report_browser_fetch, err, path)
		return "", &TransportError{Path: path, Err: err}
	}
	return html, nil
}

var errSessionExpired = errors.New("session expired")

func (c *BrowserClient) load(page *rod.Page, path string) (string, error) {
	if err := c.navigate(page, path); err != nil {
		return "", err
	}
	// the device answers every page with its login form once the session
	// is gone
	hasLogin, _, err := page.Has(c.opts.PasswordSelector)
	if err != nil {
		return "", err
	}
	if hasLogin {
		return "", errSessionExpired
	}
	html, err := page.HTML()
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(html) == "" {
		return "", ErrEmptyBody
	}
	return html, nil
}

func (c *BrowserClient) shutdown() error {
	var err error
	if c.browser != nil {
		err = c.browser.Close()
	}
	if c.launcher != nil {
		c.launcher.Kill()
		c.launcher.Cleanup()
	}
	c.page = nil
	c.browser = nil
	c.launcher = nil
	c.loggedIn = false
	return err
}

// Close stops the browser, a later Fetch starts a new one.
func (c *BrowserClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.shutdown()
}
