package render

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"github.com/sitesnap/sitesnap/internal/config"
)

// screenshotQuality is the compression quality for full-page captures.
const screenshotQuality = 90

// statusCodeJS reads the HTTP status of the main document from the
// Navigation Timing API. Falls back to 200 on browsers that don't expose
// responseStatus.
const statusCodeJS = `window.performance?.getEntriesByType?.('navigation')?.[0]?.responseStatus || 200`

// errorProbeJS looks for a visible error banner on the login page. Returns
// the banner text or an empty string.
const errorProbeJS = `(() => {
	for (const sel of ['.error', '.alert', '.message-error']) {
		const el = document.querySelector(sel);
		if (el && el.textContent.trim()) {
			return el.textContent.trim();
		}
	}
	return '';
})()`

// Chrome renders pages in a headless Chromium instance via the DevTools
// protocol. It implements both Engine and Authenticator: the login flow and
// all page renders share one browser, so session cookies set during login
// are visible to every subsequent render.
type Chrome struct {
	baseURL  string
	loginURL string
	steps    []config.LoginStep

	headless     bool
	windowWidth  int
	windowHeight int
	userAgent    string
	pageTimeout  time.Duration
	settleDelay  time.Duration
	screenshots  bool
	fullPage     bool
	logger       *slog.Logger

	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
	closed        atomic.Bool
}

// Compile-time checks that Chrome satisfies both interfaces.
var (
	_ Engine        = (*Chrome)(nil)
	_ Authenticator = (*Chrome)(nil)
)

// ChromeOption configures a Chrome engine.
type ChromeOption func(*Chrome)

// WithHeadless controls whether the browser runs without a visible window.
func WithHeadless(enabled bool) ChromeOption {
	return func(c *Chrome) {
		c.headless = enabled
	}
}

// WithWindowSize sets the browser viewport.
func WithWindowSize(width, height int) ChromeOption {
	return func(c *Chrome) {
		c.windowWidth = width
		c.windowHeight = height
	}
}

// WithUserAgent sets the User-Agent sent with every request.
func WithUserAgent(ua string) ChromeOption {
	return func(c *Chrome) {
		c.userAgent = ua
	}
}

// WithPageTimeout bounds a single navigation.
func WithPageTimeout(d time.Duration) ChromeOption {
	return func(c *Chrome) {
		c.pageTimeout = d
	}
}

// WithSettleDelay sets the post-load pause before the DOM is serialized.
func WithSettleDelay(d time.Duration) ChromeOption {
	return func(c *Chrome) {
		c.settleDelay = d
	}
}

// WithScreenshots enables or disables screenshot capture.
func WithScreenshots(enabled bool) ChromeOption {
	return func(c *Chrome) {
		c.screenshots = enabled
	}
}

// WithFullPageScreenshots captures the entire scroll height instead of the
// viewport. Ignored when screenshots are disabled.
func WithFullPageScreenshots(enabled bool) ChromeOption {
	return func(c *Chrome) {
		c.fullPage = enabled
	}
}

// WithLogger sets the logger used for render diagnostics.
func WithLogger(logger *slog.Logger) ChromeOption {
	return func(c *Chrome) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewChrome creates a Chrome engine for the given target.
// baseURL is the crawl scope; loginURL is where the login form lives (the
// base URL is used when empty); steps is the resolved login sequence.
// Call Start before rendering and Close when done.
func NewChrome(baseURL, loginURL string, steps []config.LoginStep, opts ...ChromeOption) *Chrome {
	if loginURL == "" {
		loginURL = baseURL
	}
	c := &Chrome{
		baseURL:      baseURL,
		loginURL:     loginURL,
		steps:        steps,
		headless:     true,
		windowWidth:  config.DefaultWindowWidth,
		windowHeight: config.DefaultWindowHeight,
		userAgent:    config.DefaultUserAgent,
		pageTimeout:  config.DefaultPageTimeout,
		settleDelay:  config.DefaultSettleDelay,
		screenshots:  true,
		fullPage:     true,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start launches the browser process.
//
// The browser context deliberately hangs off context.Background rather than
// the caller's context: a cancelled crawl still drains in-flight renders
// for a grace period, and killing the browser at cancellation would abort
// them. Per-render contexts enforce caller cancellation instead.
func (c *Chrome) Start(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	opts := append(
		chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", c.headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent(c.userAgent),
		chromedp.WindowSize(c.windowWidth, c.windowHeight),
	)

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	// Run an empty task list so startup failures surface here rather than
	// on the first page.
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return fmt.Errorf("failed to start browser: %w", err)
	}

	c.allocCancel = allocCancel
	c.browserCtx = browserCtx
	c.browserCancel = browserCancel

	c.logger.Debug("browser started",
		"headless", c.headless,
		"window", fmt.Sprintf("%dx%d", c.windowWidth, c.windowHeight))
	return nil
}

// Close shuts down the browser. Safe to call more than once.
func (c *Chrome) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	if c.browserCancel != nil {
		c.browserCancel()
	}
	if c.allocCancel != nil {
		c.allocCancel()
	}
	c.logger.Debug("browser closed")
	return nil
}

// Login implements Authenticator. It navigates to the login page, runs the
// configured step sequence, and decides success by whether the browser
// navigated away from the form afterwards.
func (c *Chrome) Login(ctx context.Context) (*AuthState, error) {
	if c.closed.Load() {
		return nil, ErrEngineClosed
	}

	tabCtx, tabCancel := chromedp.NewContext(c.browserCtx)
	defer tabCancel()
	tctx, tcancel := context.WithTimeout(tabCtx, c.loginBudget())
	defer tcancel()
	stop := context.AfterFunc(ctx, tcancel)
	defer stop()

	var startURL string
	if err := chromedp.Run(tctx,
		network.Enable(),
		chromedp.Navigate(c.loginURL),
		chromedp.Sleep(c.settleDelay),
		chromedp.Location(&startURL),
	); err != nil {
		return nil, Classify(c.loginURL, err)
	}

	for i, step := range c.steps {
		if err := c.runStep(tctx, step); err != nil {
			return nil, fmt.Errorf("login step %d (%s): %w", i+1, step.Action, err)
		}
	}

	var landed string
	if err := chromedp.Run(tctx, chromedp.Location(&landed)); err != nil {
		return nil, Classify(c.loginURL, err)
	}

	if landed == startURL {
		// Still on the form. Surface the page's own error banner when it
		// has one; it usually names the real problem.
		var probe string
		if err := chromedp.Run(tctx, chromedp.Evaluate(errorProbeJS, &probe)); err == nil && probe != "" {
			return nil, fmt.Errorf("%w: %s", ErrLoginRejected, probe)
		}
		return nil, ErrLoginRejected
	}

	var rawCookies []*network.Cookie
	err := chromedp.Run(tctx, chromedp.ActionFunc(func(actx context.Context) error {
		cookies, err := network.GetCookies().WithURLs([]string{c.baseURL, landed}).Do(actx)
		if err != nil {
			return err
		}
		rawCookies = cookies
		return nil
	}))
	if err != nil {
		// Login worked; treat a cookie read failure as a degraded success.
		c.logger.Warn("failed to read cookies after login", "error", err)
	}

	state := &AuthState{
		LandedURL:     landed,
		Cookies:       cookiesFromDevtools(rawCookies),
		EstablishedAt: time.Now(),
	}
	c.logger.Debug("login sequence completed",
		"landed_url", state.LandedURL,
		"cookies", len(state.Cookies))
	return state, nil
}

// Render implements Engine. Each call opens a fresh tab against the shared
// browser so renders can run concurrently without sharing navigation state.
func (c *Chrome) Render(ctx context.Context, rawURL string) (*Result, error) {
	if c.closed.Load() {
		return nil, ErrEngineClosed
	}

	tabCtx, tabCancel := chromedp.NewContext(c.browserCtx)
	defer tabCancel()
	tctx, tcancel := context.WithTimeout(tabCtx, c.renderBudget())
	defer tcancel()
	stop := context.AfterFunc(ctx, tcancel)
	defer stop()

	var (
		html     string
		finalURL string
		status   int64
	)
	if err := chromedp.Run(tctx,
		chromedp.Navigate(rawURL),
		chromedp.Sleep(c.settleDelay),
		chromedp.Location(&finalURL),
		chromedp.Evaluate(statusCodeJS, &status),
		chromedp.OuterHTML("html", &html),
	); err != nil {
		return nil, Classify(rawURL, err)
	}

	if strings.TrimSpace(html) == "" {
		return nil, Classify(rawURL, ErrEmptyDocument)
	}

	result := &Result{
		FinalURL:   finalURL,
		StatusCode: int(status),
		HTML:       []byte(html),
	}

	if c.screenshots {
		shot, err := c.capture(tctx)
		if err != nil {
			// A page without its screenshot is still worth keeping.
			c.logger.Warn("screenshot capture failed", "url", rawURL, "error", err)
		} else {
			result.Screenshot = shot
		}
	}

	return result, nil
}

// runStep executes one login step in the given tab.
func (c *Chrome) runStep(ctx context.Context, step config.LoginStep) error {
	switch step.Action {
	case config.ActionWait:
		return chromedp.Run(ctx, chromedp.Sleep(step.Wait.Std()))

	case config.ActionFill, config.ActionClick:
		sel, err := c.firstPresent(ctx, step.Selectors)
		if err != nil {
			return Classify(c.loginURL, err)
		}
		if sel == "" {
			return fmt.Errorf("%w: no selector matched %v", ErrLoginRejected, step.Selectors)
		}
		if step.Action == config.ActionFill {
			return chromedp.Run(ctx, chromedp.SendKeys(sel, step.Value, chromedp.ByQuery))
		}
		return chromedp.Run(ctx, chromedp.Click(sel, chromedp.ByQuery))

	default:
		return fmt.Errorf("unknown login action %q", step.Action)
	}
}

// firstPresent returns the first selector that matches an element on the
// current page, or empty when none do.
func (c *Chrome) firstPresent(ctx context.Context, selectors []string) (string, error) {
	for _, sel := range selectors {
		var found bool
		expr := fmt.Sprintf("document.querySelector(%s) !== null", strconv.Quote(sel))
		if err := chromedp.Run(ctx, chromedp.Evaluate(expr, &found)); err != nil {
			return "", err
		}
		if found {
			return sel, nil
		}
	}
	return "", nil
}

// capture takes a screenshot, preferring a full-page capture and falling
// back to the viewport when that fails (very tall pages can exceed the
// compositor's limits).
func (c *Chrome) capture(ctx context.Context) ([]byte, error) {
	var buf []byte
	if c.fullPage {
		if err := chromedp.Run(ctx, chromedp.FullScreenshot(&buf, screenshotQuality)); err == nil {
			return buf, nil
		}
	}
	if err := chromedp.Run(ctx, chromedp.CaptureScreenshot(&buf)); err != nil {
		return nil, err
	}
	return buf, nil
}

// renderBudget is the wall-clock bound for one page render.
func (c *Chrome) renderBudget() time.Duration {
	return c.pageTimeout + c.settleDelay
}

// loginBudget is the wall-clock bound for the whole login flow: one
// navigation plus every scripted pause.
func (c *Chrome) loginBudget() time.Duration {
	budget := c.pageTimeout + c.settleDelay
	for _, step := range c.steps {
		if step.Action == config.ActionWait {
			budget += step.Wait.Std()
		}
	}
	return budget
}

// cookiesFromDevtools converts DevTools cookies to the package's Cookie type.
func cookiesFromDevtools(raw []*network.Cookie) []Cookie {
	if len(raw) == 0 {
		return nil
	}
	out := make([]Cookie, 0, len(raw))
	for _, rc := range raw {
		cookie := Cookie{
			Name:     rc.Name,
			Value:    rc.Value,
			Domain:   rc.Domain,
			Path:     rc.Path,
			Secure:   rc.Secure,
			HTTPOnly: rc.HTTPOnly,
		}
		// DevTools reports expiry as seconds since the epoch, negative for
		// session cookies.
		if rc.Expires > 0 {
			sec := int64(rc.Expires)
			nsec := int64((rc.Expires - float64(sec)) * float64(time.Second))
			cookie.Expires = time.Unix(sec, nsec).UTC()
		}
		out = append(out, cookie)
	}
	return out
}
