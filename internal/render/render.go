package render

import (
	"context"
	"time"
)

// Result is the outcome of rendering a single page.
type Result struct {
	// FinalURL is the address the browser ended up at after redirects.
	FinalURL string

	// StatusCode is the HTTP status of the main document, or 0 when the
	// browser could not report one.
	StatusCode int

	// HTML is the serialized DOM after scripts have run.
	HTML []byte

	// Screenshot is the captured PNG. Nil when screenshots are disabled.
	Screenshot []byte
}

// Engine renders pages inside the authenticated browser.
//
// Render is safe for concurrent use; each call runs in its own tab.
type Engine interface {
	// Render navigates to rawURL, waits for the page to settle, and captures
	// the rendered document. Failures are reported as *RenderError so the
	// caller can distinguish retryable render problems from cancellation.
	Render(ctx context.Context, rawURL string) (*Result, error)

	// Close shuts down the browser and releases its resources.
	Close() error
}

// Authenticator performs the scripted login flow.
type Authenticator interface {
	// Login navigates to the login page, executes the configured step
	// sequence, and reports what the browser observed. A rejected login
	// (the page never navigated away) returns ErrLoginRejected; transient
	// browser failures return *RenderError.
	Login(ctx context.Context) (*AuthState, error)
}

// AuthState describes the browser state right after a successful login.
type AuthState struct {
	// LandedURL is where the browser ended up after the login sequence.
	LandedURL string

	// Cookies are the cookies visible for the target after login. The
	// session layer uses their expiries to estimate session lifetime.
	Cookies []Cookie

	// EstablishedAt is when the login completed.
	EstablishedAt time.Time
}

// Cookie is a browser cookie observed after login.
type Cookie struct {
	Name     string
	Value    string
	Domain   string
	Path     string
	Expires  time.Time // zero for session cookies
	Secure   bool
	HTTPOnly bool
}

// Session reports whether the cookie lives only for the browser session.
func (c Cookie) Session() bool {
	return c.Expires.IsZero()
}
