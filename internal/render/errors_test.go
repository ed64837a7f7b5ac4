package render

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

// TestErrorKindString tests the ErrorKind String method.
func TestErrorKindString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		kind ErrorKind
		want string
	}{
		{KindTimeout, "timeout"},
		{KindNetwork, "network"},
		{KindNavigation, "navigation"},
		{ErrorKind(99), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			t.Parallel()

			if got := tt.kind.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

// TestRenderError tests the RenderError wrapper.
func TestRenderError(t *testing.T) {
	t.Parallel()

	t.Run("Error includes URL and kind", func(t *testing.T) {
		t.Parallel()

		cause := errors.New("boom")
		err := &RenderError{Kind: KindNetwork, URL: "https://app.example.com/a", Err: cause}

		msg := err.Error()
		if msg == "" {
			t.Fatal("expected non-empty message")
		}
		if !errors.Is(err, cause) {
			t.Error("expected Unwrap to expose the cause")
		}
	})

	t.Run("all kinds are transient", func(t *testing.T) {
		t.Parallel()

		for _, kind := range []ErrorKind{KindTimeout, KindNetwork, KindNavigation} {
			err := &RenderError{Kind: kind, URL: "https://app.example.com", Err: errors.New("x")}
			if !err.Transient() {
				t.Errorf("expected kind %s to be transient", kind)
			}
		}
	})
}

// TestClassify tests mapping of raw browser errors to render error kinds.
func TestClassify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		err      error
		wantKind ErrorKind
	}{
		{
			name:     "deadline exceeded maps to timeout",
			err:      context.DeadlineExceeded,
			wantKind: KindTimeout,
		},
		{
			name:     "wrapped deadline maps to timeout",
			err:      fmt.Errorf("run: %w", context.DeadlineExceeded),
			wantKind: KindTimeout,
		},
		{
			name:     "dns failure maps to network",
			err:      errors.New("page load error net::ERR_NAME_NOT_RESOLVED"),
			wantKind: KindNetwork,
		},
		{
			name:     "connection refused maps to network",
			err:      errors.New("page load error net::ERR_CONNECTION_REFUSED"),
			wantKind: KindNetwork,
		},
		{
			name:     "connection reset maps to network",
			err:      errors.New("page load error net::ERR_CONNECTION_RESET"),
			wantKind: KindNetwork,
		},
		{
			name:     "browser-level timeout maps to timeout",
			err:      errors.New("page load error net::ERR_TIMED_OUT"),
			wantKind: KindTimeout,
		},
		{
			name:     "aborted load maps to navigation",
			err:      errors.New("page load error net::ERR_ABORTED"),
			wantKind: KindNavigation,
		},
		{
			name:     "empty document maps to navigation",
			err:      ErrEmptyDocument,
			wantKind: KindNavigation,
		},
		{
			name:     "unknown error maps to navigation",
			err:      errors.New("something odd"),
			wantKind: KindNavigation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			classified := Classify("https://app.example.com/page", tt.err)

			var rerr *RenderError
			if !errors.As(classified, &rerr) {
				t.Fatalf("expected *RenderError, got %T", classified)
			}
			if rerr.Kind != tt.wantKind {
				t.Errorf("kind = %s, want %s", rerr.Kind, tt.wantKind)
			}
			if rerr.URL != "https://app.example.com/page" {
				t.Errorf("unexpected URL %q", rerr.URL)
			}
			if !errors.Is(classified, tt.err) {
				t.Error("expected classified error to wrap the cause")
			}
		})
	}

	t.Run("nil error passes through", func(t *testing.T) {
		t.Parallel()

		if got := Classify("https://app.example.com", nil); got != nil {
			t.Errorf("expected nil, got %v", got)
		}
	})

	t.Run("cancellation passes through unwrapped", func(t *testing.T) {
		t.Parallel()

		classified := Classify("https://app.example.com", context.Canceled)

		var rerr *RenderError
		if errors.As(classified, &rerr) {
			t.Fatal("expected cancellation not to be wrapped in RenderError")
		}
		if !errors.Is(classified, context.Canceled) {
			t.Error("expected context.Canceled to pass through")
		}
	})
}
