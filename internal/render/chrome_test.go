package render

import (
	"testing"
	"time"

	"github.com/chromedp/cdproto/network"

	"github.com/sitesnap/sitesnap/internal/config"
)

// TestNewChrome tests engine construction and option application.
func TestNewChrome(t *testing.T) {
	t.Parallel()

	t.Run("defaults", func(t *testing.T) {
		t.Parallel()

		c := NewChrome("https://app.example.com", "", nil)

		if c.loginURL != "https://app.example.com" {
			t.Errorf("expected login URL to default to base URL, got %q", c.loginURL)
		}
		if !c.headless {
			t.Error("expected headless by default")
		}
		if c.windowWidth != config.DefaultWindowWidth || c.windowHeight != config.DefaultWindowHeight {
			t.Errorf("unexpected window %dx%d", c.windowWidth, c.windowHeight)
		}
		if c.pageTimeout != config.DefaultPageTimeout {
			t.Errorf("unexpected page timeout %v", c.pageTimeout)
		}
		if !c.screenshots || !c.fullPage {
			t.Error("expected screenshots enabled by default")
		}
	})

	t.Run("options override defaults", func(t *testing.T) {
		t.Parallel()

		c := NewChrome("https://app.example.com", "https://app.example.com/signin", nil,
			WithHeadless(false),
			WithWindowSize(800, 600),
			WithUserAgent("test-agent"),
			WithPageTimeout(5*time.Second),
			WithSettleDelay(time.Second),
			WithScreenshots(false),
			WithFullPageScreenshots(false),
		)

		if c.loginURL != "https://app.example.com/signin" {
			t.Errorf("unexpected login URL %q", c.loginURL)
		}
		if c.headless {
			t.Error("expected headless disabled")
		}
		if c.windowWidth != 800 || c.windowHeight != 600 {
			t.Errorf("unexpected window %dx%d", c.windowWidth, c.windowHeight)
		}
		if c.userAgent != "test-agent" {
			t.Errorf("unexpected user agent %q", c.userAgent)
		}
		if c.pageTimeout != 5*time.Second {
			t.Errorf("unexpected page timeout %v", c.pageTimeout)
		}
		if c.settleDelay != time.Second {
			t.Errorf("unexpected settle delay %v", c.settleDelay)
		}
		if c.screenshots || c.fullPage {
			t.Error("expected screenshots disabled")
		}
	})

	t.Run("nil logger option keeps default", func(t *testing.T) {
		t.Parallel()

		c := NewChrome("https://app.example.com", "", nil, WithLogger(nil))
		if c.logger == nil {
			t.Error("expected a usable logger")
		}
	})
}

// TestChromeBudgets tests the wall-clock bounds derived from configuration.
func TestChromeBudgets(t *testing.T) {
	t.Parallel()

	t.Run("render budget covers navigation and settle", func(t *testing.T) {
		t.Parallel()

		c := NewChrome("https://app.example.com", "", nil,
			WithPageTimeout(10*time.Second),
			WithSettleDelay(2*time.Second),
		)

		if got := c.renderBudget(); got != 12*time.Second {
			t.Errorf("renderBudget() = %v, want 12s", got)
		}
	})

	t.Run("login budget includes scripted waits", func(t *testing.T) {
		t.Parallel()

		steps := []config.LoginStep{
			{Action: config.ActionFill, Selectors: []string{"input#u"}, Value: "alice"},
			{Action: config.ActionClick, Selectors: []string{"button#go"}},
			{Action: config.ActionWait, Wait: config.Duration(3 * time.Second)},
		}
		c := NewChrome("https://app.example.com", "", steps,
			WithPageTimeout(10*time.Second),
			WithSettleDelay(2*time.Second),
		)

		if got := c.loginBudget(); got != 15*time.Second {
			t.Errorf("loginBudget() = %v, want 15s", got)
		}
	})
}

// TestChromeClosed tests that a closed engine refuses work.
func TestChromeClosed(t *testing.T) {
	t.Parallel()

	c := NewChrome("https://app.example.com", "", nil)
	if err := c.Close(); err != nil {
		t.Fatalf("unexpected close error: %v", err)
	}

	if _, err := c.Render(t.Context(), "https://app.example.com"); err != ErrEngineClosed {
		t.Errorf("expected ErrEngineClosed from Render, got %v", err)
	}
	if _, err := c.Login(t.Context()); err != ErrEngineClosed {
		t.Errorf("expected ErrEngineClosed from Login, got %v", err)
	}

	// Closing again is a no-op.
	if err := c.Close(); err != nil {
		t.Errorf("unexpected error on second close: %v", err)
	}
}

// TestCookiesFromDevtools tests DevTools cookie conversion.
func TestCookiesFromDevtools(t *testing.T) {
	t.Parallel()

	t.Run("empty input yields nil", func(t *testing.T) {
		t.Parallel()

		if got := cookiesFromDevtools(nil); got != nil {
			t.Errorf("expected nil, got %v", got)
		}
	})

	t.Run("fields carry over", func(t *testing.T) {
		t.Parallel()

		expiry := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
		raw := []*network.Cookie{
			{
				Name:     "session",
				Value:    "abc",
				Domain:   "app.example.com",
				Path:     "/",
				Expires:  float64(expiry.Unix()),
				Secure:   true,
				HTTPOnly: true,
			},
			{
				Name:    "prefs",
				Value:   "dark",
				Domain:  "app.example.com",
				Path:    "/",
				Expires: -1, // session cookie
			},
		}

		cookies := cookiesFromDevtools(raw)
		if len(cookies) != 2 {
			t.Fatalf("expected 2 cookies, got %d", len(cookies))
		}

		session := cookies[0]
		if session.Name != "session" || session.Value != "abc" {
			t.Errorf("unexpected cookie %+v", session)
		}
		if !session.Secure || !session.HTTPOnly {
			t.Error("expected secure, http-only flags to carry over")
		}
		if !session.Expires.Equal(expiry) {
			t.Errorf("expires = %v, want %v", session.Expires, expiry)
		}
		if session.Session() {
			t.Error("expected persistent cookie")
		}

		prefs := cookies[1]
		if !prefs.Session() {
			t.Error("expected session cookie for negative expiry")
		}
		if !prefs.Expires.IsZero() {
			t.Errorf("expected zero expiry, got %v", prefs.Expires)
		}
	})
}
