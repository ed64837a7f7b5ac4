package render

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for the render package.
var (
	// ErrLoginRejected is returned when the login sequence executed but the
	// browser never navigated away from the login form, which is how a
	// rejected credential presents itself.
	ErrLoginRejected = errors.New("login rejected: browser stayed on the login page")

	// ErrEmptyDocument is returned when navigation succeeded but the browser
	// produced no document to capture.
	ErrEmptyDocument = errors.New("empty document: browser returned no HTML")

	// ErrEngineClosed is returned when a render is attempted after Close.
	ErrEngineClosed = errors.New("render engine is closed")
)

// ErrorKind classifies a failed render for retry decisions.
type ErrorKind int

// Render failure kinds.
const (
	// KindTimeout means the page did not finish loading within the page
	// timeout.
	KindTimeout ErrorKind = iota

	// KindNetwork means the browser could not reach the server (DNS,
	// connection refused, reset).
	KindNetwork

	// KindNavigation means the browser reached the server but the
	// navigation itself failed (aborted load, bad response, empty document).
	KindNavigation
)

// String returns a human-readable name for the error kind.
func (k ErrorKind) String() string {
	switch k {
	case KindTimeout:
		return "timeout"
	case KindNetwork:
		return "network"
	case KindNavigation:
		return "navigation"
	default:
		return "unknown"
	}
}

// RenderError wraps a failed page render with a coarse classification.
// All kinds are transient: the same URL may well render on a retry.
type RenderError struct {
	// Kind is the failure classification.
	Kind ErrorKind
	// URL is the page that failed to render.
	URL string
	// Err is the underlying cause.
	Err error
}

// Error implements the error interface.
func (e *RenderError) Error() string {
	return fmt.Sprintf("render %s: %s failure: %v", e.URL, e.Kind, e.Err)
}

// Unwrap returns the underlying cause for errors.Is/As chains.
func (e *RenderError) Unwrap() error {
	return e.Err
}

// Transient reports whether retrying the render may succeed.
// Every classified render failure is considered transient; permanent
// conditions (cancellation, authentication loss) are never wrapped in a
// RenderError in the first place.
func (e *RenderError) Transient() bool {
	return true
}

// Classify wraps err in a *RenderError with the best-fitting kind.
// Context cancellation is passed through untouched so callers can tell a
// shut-down crawl apart from a flaky page.
func Classify(rawURL string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &RenderError{Kind: KindTimeout, URL: rawURL, Err: err}
	}

	msg := err.Error()
	switch {
	case strings.Contains(msg, "net::ERR_NAME") ||
		strings.Contains(msg, "net::ERR_CONNECTION") ||
		strings.Contains(msg, "net::ERR_ADDRESS") ||
		strings.Contains(msg, "net::ERR_INTERNET_DISCONNECTED") ||
		strings.Contains(msg, "net::ERR_PROXY"):
		return &RenderError{Kind: KindNetwork, URL: rawURL, Err: err}
	case strings.Contains(msg, "net::ERR_TIMED_OUT"):
		return &RenderError{Kind: KindTimeout, URL: rawURL, Err: err}
	default:
		return &RenderError{Kind: KindNavigation, URL: rawURL, Err: err}
	}
}
