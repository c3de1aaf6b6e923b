package linkedin

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/storage"
	"github.com/chromedp/chromedp"

	"github.com/codeGROOVE-dev/dossier/pkg/session"
)

// Driver is the page-level browser surface the scraper needs. Implementations
// must honor context cancellation on every call; the scraper assumes a call
// that returns took effect.
type Driver interface {
	Navigate(ctx context.Context, url string) error
	Location(ctx context.Context) (string, error)
	Exists(ctx context.Context, selector string) (bool, error)
	Click(ctx context.Context, selector string) error
	SendKeys(ctx context.Context, selector, text string) error
	Text(ctx context.Context, selector string) (string, error)
	Texts(ctx context.Context, selector string) ([]string, error)
	Scroll(ctx context.Context, pixels int) error
	Cookies(ctx context.Context) ([]session.Cookie, error)
	SetCookies(ctx context.Context, cookies []session.Cookie) error
	Close(ctx context.Context) error
}

// chromeUserAgent must describe the engine actually running the page: a
// mismatched product string is itself an automation tell.
const chromeUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
	"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// stealthScript runs before any page script and removes the markers
// LinkedIn's client-side checks probe for.
const stealthScript = `
Object.defineProperty(navigator, 'webdriver', {get: () => undefined});
Object.defineProperty(navigator, 'languages', {get: () => ['en-US', 'en']});
Object.defineProperty(navigator, 'plugins', {get: () => [1, 2, 3, 4, 5]});
for (const key of Object.keys(window)) {
	if (key.startsWith('cdc_') || key.startsWith('$cdc_')) {
		delete window[key];
	}
}
`

// ChromeConfig controls the launched browser.
type ChromeConfig struct {
	Logger *slog.Logger
	// ExecPath points at an explicit browser binary. When empty, the
	// CHROME_PATH environment variable and then the usual install
	// locations are tried.
	ExecPath string
	Headful  bool
}

// Chrome drives a headless (or headful) Chrome via the DevTools protocol.
// Each Chrome owns one ephemeral browser process; Close releases it.
type Chrome struct {
	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc
	logger      *slog.Logger
}

// NewChrome launches a browser. The context bounds the browser's lifetime:
// when it ends the process is torn down regardless of Close.
func NewChrome(ctx context.Context, cfg ChromeConfig) (*Chrome, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", !cfg.Headful),
		// The default allocator advertises automation; LinkedIn's bot
		// checks look for exactly these switches.
		chromedp.Flag("enable-automation", false),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("disable-plugins-discovery", true),
		chromedp.Flag("disable-web-security", true),
		chromedp.Flag("disable-features", "VizDisplayCompositor"),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.WindowSize(1920, 1080),
		chromedp.UserAgent(chromeUserAgent),
	)
	switch {
	case cfg.ExecPath != "":
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	case os.Getenv("CHROME_PATH") != "":
		opts = append(opts, chromedp.ExecPath(os.Getenv("CHROME_PATH")))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	browserCtx, cancel := chromedp.NewContext(allocCtx)

	// Launch now so a missing binary fails fast, and arm the stealth script
	// before the first navigation.
	err := chromedp.Run(browserCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		_, err := page.AddScriptToEvaluateOnNewDocument(stealthScript).Do(ctx)
		return err
	}))
	if err != nil {
		cancel()
		allocCancel()
		return nil, fmt.Errorf("launch chrome: %w", err)
	}

	logger.DebugContext(ctx, "chrome launched", "headful", cfg.Headful)
	return &Chrome{ctx: browserCtx, cancel: cancel, allocCancel: allocCancel, logger: logger}, nil
}

// run executes browser actions under the caller's context without tying the
// browser's lifetime to it: cancellation aborts the in-flight actions, not
// the browser.
func (c *Chrome) run(ctx context.Context, actions ...chromedp.Action) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	runCtx, cancel := context.WithCancel(c.ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if err := chromedp.Run(runCtx, actions...); err != nil {
		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}
		return fmt.Errorf("browser action: %w", err)
	}
	return nil
}

// Navigate opens the URL and waits for the document to be ready.
func (c *Chrome) Navigate(ctx context.Context, url string) error {
	c.logger.DebugContext(ctx, "navigating", "url", url)
	return c.run(ctx, chromedp.Navigate(url), chromedp.WaitReady("body", chromedp.ByQuery))
}

// Location returns the current page URL.
func (c *Chrome) Location(ctx context.Context) (string, error) {
	var loc string
	err := c.run(ctx, chromedp.Location(&loc))
	return loc, err
}

// Exists reports whether the selector matches anything on the current page.
// It never waits for the element to appear.
func (c *Chrome) Exists(ctx context.Context, selector string) (bool, error) {
	var found bool
	expr := fmt.Sprintf("document.querySelector(%s) !== null", jsString(selector))
	err := c.run(ctx, chromedp.Evaluate(expr, &found))
	return found, err
}

// Click clicks the first visible element matching the selector.
func (c *Chrome) Click(ctx context.Context, selector string) error {
	return c.run(ctx, chromedp.Click(selector, chromedp.ByQuery))
}

// SendKeys types text into the element matching the selector, dispatching
// real key events. Callers control pacing by sending one rune at a time.
func (c *Chrome) SendKeys(ctx context.Context, selector, text string) error {
	return c.run(ctx, chromedp.SendKeys(selector, text, chromedp.ByQuery))
}

// Text returns the rendered text of the first element matching the selector,
// or "" when nothing matches.
func (c *Chrome) Text(ctx context.Context, selector string) (string, error) {
	var out string
	expr := fmt.Sprintf(`(() => { const el = document.querySelector(%s); return el ? el.innerText : ""; })()`,
		jsString(selector))
	err := c.run(ctx, chromedp.Evaluate(expr, &out))
	return out, err
}

// Texts returns the rendered text of every element matching the selector.
func (c *Chrome) Texts(ctx context.Context, selector string) ([]string, error) {
	var out []string
	expr := fmt.Sprintf("Array.from(document.querySelectorAll(%s), el => el.innerText)", jsString(selector))
	err := c.run(ctx, chromedp.Evaluate(expr, &out))
	return out, err
}

// Scroll scrolls the page down by the given number of pixels.
func (c *Chrome) Scroll(ctx context.Context, pixels int) error {
	return c.run(ctx, chromedp.Evaluate(fmt.Sprintf("window.scrollBy(0, %d)", pixels), nil))
}

// Cookies returns every cookie the browser currently holds.
func (c *Chrome) Cookies(ctx context.Context) ([]session.Cookie, error) {
	var out []session.Cookie
	err := c.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		cookies, err := storage.GetCookies().Do(ctx)
		if err != nil {
			return err
		}
		out = fromNetworkCookies(cookies)
		return nil
	}))
	if err != nil {
		return nil, err
	}
	return out, nil
}

// SetCookies installs cookies into the browser before navigation.
func (c *Chrome) SetCookies(ctx context.Context, cookies []session.Cookie) error {
	c.logger.DebugContext(ctx, "installing cookies", "count", len(cookies))
	return c.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		for _, ck := range cookies {
			p := network.SetCookie(ck.Name, ck.Value).
				WithDomain(ck.Domain).
				WithPath(ck.Path).
				WithHTTPOnly(ck.HTTPOnly).
				WithSecure(ck.Secure)
			if !ck.Expires.IsZero() {
				exp := cdp.TimeSinceEpoch(ck.Expires)
				p = p.WithExpires(&exp)
			}
			if err := p.Do(ctx); err != nil {
				return fmt.Errorf("set cookie %q: %w", ck.Name, err)
			}
		}
		return nil
	}))
}

// Close tears the browser down. The context is accepted for interface
// symmetry; teardown is local and does not block on the network.
func (c *Chrome) Close(_ context.Context) error {
	c.cancel()
	c.allocCancel()
	return nil
}

func fromNetworkCookies(cookies []*network.Cookie) []session.Cookie {
	out := make([]session.Cookie, 0, len(cookies))
	for _, ck := range cookies {
		sc := session.Cookie{
			Name:     ck.Name,
			Value:    ck.Value,
			Domain:   ck.Domain,
			Path:     ck.Path,
			HTTPOnly: ck.HTTPOnly,
			Secure:   ck.Secure,
		}
		// Session cookies report a negative expiry.
		if ck.Expires > 0 {
			sc.Expires = time.Unix(int64(ck.Expires), 0).UTC()
		}
		out = append(out, sc)
	}
	return out
}

// jsString returns s as a JavaScript string literal.
func jsString(s string) string {
	b, err := json.Marshal(s)
	if err != nil {
		return `""`
	}
	return string(b)
}
