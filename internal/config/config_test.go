package config

import (
	"errors"
	"testing"
	"time"
)

// TestNewConfig verifies that NewConfig returns a Config with all expected default values.
// This test ensures that defaults are documented through tests and that changes
// to defaults are intentional (tests will fail if defaults change unexpectedly).
func TestNewConfig(t *testing.T) {
	t.Parallel()

	cfg := NewConfig()

	// Verify each default value explicitly
	// This serves as living documentation of the defaults
	t.Run("default MaxDepth is 3", func(t *testing.T) {
		t.Parallel()
		if cfg.MaxDepth != 3 {
			t.Errorf("expected MaxDepth to be 3, got %d", cfg.MaxDepth)
		}
	})

	t.Run("default Concurrency is 2", func(t *testing.T) {
		t.Parallel()
		if cfg.Concurrency != 2 {
			t.Errorf("expected Concurrency to be 2, got %d", cfg.Concurrency)
		}
	})

	t.Run("default CrawlDelay is 1.5 seconds", func(t *testing.T) {
		t.Parallel()
		if cfg.CrawlDelay != 1500*time.Millisecond {
			t.Errorf("expected CrawlDelay to be 1.5s, got %v", cfg.CrawlDelay)
		}
	})

	t.Run("default PageTimeout is 30 seconds", func(t *testing.T) {
		t.Parallel()
		if cfg.PageTimeout != 30*time.Second {
			t.Errorf("expected PageTimeout to be 30s, got %v", cfg.PageTimeout)
		}
	})

	t.Run("default retry budgets are 2", func(t *testing.T) {
		t.Parallel()
		if cfg.LoginRetries != 2 {
			t.Errorf("expected LoginRetries to be 2, got %d", cfg.LoginRetries)
		}
		if cfg.RenderRetries != 2 {
			t.Errorf("expected RenderRetries to be 2, got %d", cfg.RenderRetries)
		}
	})

	t.Run("default BackoffBase is 1 second", func(t *testing.T) {
		t.Parallel()
		if cfg.BackoffBase != time.Second {
			t.Errorf("expected BackoffBase to be 1s, got %v", cfg.BackoffBase)
		}
	})

	t.Run("default GracePeriod is 30 seconds", func(t *testing.T) {
		t.Parallel()
		if cfg.GracePeriod != 30*time.Second {
			t.Errorf("expected GracePeriod to be 30s, got %v", cfg.GracePeriod)
		}
	})

	t.Run("default SessionTTL is 30 minutes", func(t *testing.T) {
		t.Parallel()
		if cfg.SessionTTL != 30*time.Minute {
			t.Errorf("expected SessionTTL to be 30m, got %v", cfg.SessionTTL)
		}
	})

	t.Run("default window is 1920x1080", func(t *testing.T) {
		t.Parallel()
		if cfg.WindowWidth != 1920 || cfg.WindowHeight != 1080 {
			t.Errorf("expected 1920x1080 window, got %dx%d", cfg.WindowWidth, cfg.WindowHeight)
		}
	})

	t.Run("default browser toggles are on", func(t *testing.T) {
		t.Parallel()
		if !cfg.Headless {
			t.Error("expected Headless to be true")
		}
		if !cfg.Screenshots {
			t.Error("expected Screenshots to be true")
		}
		if !cfg.FullPageScreenshots {
			t.Error("expected FullPageScreenshots to be true")
		}
	})

	t.Run("default MaxPages is unlimited", func(t *testing.T) {
		t.Parallel()
		if cfg.MaxPages != 0 {
			t.Errorf("expected MaxPages to be 0, got %d", cfg.MaxPages)
		}
	})

	t.Run("default BatchSize is 1", func(t *testing.T) {
		t.Parallel()
		if cfg.BatchSize != 1 {
			t.Errorf("expected BatchSize to be 1, got %d", cfg.BatchSize)
		}
	})

	t.Run("default credential env vars are set", func(t *testing.T) {
		t.Parallel()
		if cfg.UsernameEnv != "SITESNAP_USERNAME" {
			t.Errorf("expected UsernameEnv SITESNAP_USERNAME, got %q", cfg.UsernameEnv)
		}
		if cfg.PasswordEnv != "SITESNAP_PASSWORD" {
			t.Errorf("expected PasswordEnv SITESNAP_PASSWORD, got %q", cfg.PasswordEnv)
		}
	})
}

// TestConfigValidate tests the Validate method with various configurations.
// Each test case is designed to test one specific validation rule.
func TestConfigValidate(t *testing.T) {
	t.Parallel()

	// validConfig returns a minimal valid configuration.
	// Tests can modify specific fields to test validation rules.
	validConfig := func() *Config {
		cfg := NewConfig()
		cfg.Targets = []string{"https://app.example.com"}
		cfg.Username = "alice"
		cfg.Password = "secret"
		return cfg
	}

	t.Run("valid config returns nil", func(t *testing.T) {
		t.Parallel()
		cfg := validConfig()
		if err := cfg.Validate(); err != nil {
			t.Errorf("expected no error, got %v", err)
		}
	})

	t.Run("multiple targets is valid", func(t *testing.T) {
		t.Parallel()
		cfg := validConfig()
		cfg.Targets = []string{"https://a.example.com", "http://b.example.com"}

		if err := cfg.Validate(); err != nil {
			t.Errorf("expected no error, got %v", err)
		}
	})

	t.Run("empty targets returns ErrNoTarget", func(t *testing.T) {
		t.Parallel()
		cfg := validConfig()
		cfg.Targets = nil

		if err := cfg.Validate(); !errors.Is(err, ErrNoTarget) {
			t.Errorf("expected ErrNoTarget, got %v", err)
		}
	})

	t.Run("relative target returns ErrInvalidBaseURL", func(t *testing.T) {
		t.Parallel()
		cfg := validConfig()
		cfg.Targets = []string{"/dashboard"}

		if err := cfg.Validate(); !errors.Is(err, ErrInvalidBaseURL) {
			t.Errorf("expected ErrInvalidBaseURL, got %v", err)
		}
	})

	t.Run("non-http scheme returns ErrInvalidBaseURL", func(t *testing.T) {
		t.Parallel()
		cfg := validConfig()
		cfg.Targets = []string{"ftp://app.example.com"}

		if err := cfg.Validate(); !errors.Is(err, ErrInvalidBaseURL) {
			t.Errorf("expected ErrInvalidBaseURL, got %v", err)
		}
	})

	t.Run("invalid login URL returns ErrInvalidBaseURL", func(t *testing.T) {
		t.Parallel()
		cfg := validConfig()
		cfg.LoginURL = "login"

		if err := cfg.Validate(); !errors.Is(err, ErrInvalidBaseURL) {
			t.Errorf("expected ErrInvalidBaseURL, got %v", err)
		}
	})

	t.Run("empty login URL is valid", func(t *testing.T) {
		t.Parallel()
		cfg := validConfig()
		cfg.LoginURL = ""

		if err := cfg.Validate(); err != nil {
			t.Errorf("expected no error, got %v", err)
		}
	})

	t.Run("negative max depth returns ErrInvalidMaxDepth", func(t *testing.T) {
		t.Parallel()
		cfg := validConfig()
		cfg.MaxDepth = -1

		if err := cfg.Validate(); !errors.Is(err, ErrInvalidMaxDepth) {
			t.Errorf("expected ErrInvalidMaxDepth, got %v", err)
		}
	})

	t.Run("zero max depth is valid", func(t *testing.T) {
		t.Parallel()
		cfg := validConfig()
		cfg.MaxDepth = 0

		if err := cfg.Validate(); err != nil {
			t.Errorf("expected no error, got %v", err)
		}
	})

	t.Run("zero concurrency returns ErrInvalidConcurrency", func(t *testing.T) {
		t.Parallel()
		cfg := validConfig()
		cfg.Concurrency = 0

		if err := cfg.Validate(); !errors.Is(err, ErrInvalidConcurrency) {
			t.Errorf("expected ErrInvalidConcurrency, got %v", err)
		}
	})

	t.Run("negative crawl delay returns ErrInvalidCrawlDelay", func(t *testing.T) {
		t.Parallel()
		cfg := validConfig()
		cfg.CrawlDelay = -time.Second

		if err := cfg.Validate(); !errors.Is(err, ErrInvalidCrawlDelay) {
			t.Errorf("expected ErrInvalidCrawlDelay, got %v", err)
		}
	})

	t.Run("zero crawl delay is valid", func(t *testing.T) {
		t.Parallel()
		cfg := validConfig()
		cfg.CrawlDelay = 0

		if err := cfg.Validate(); err != nil {
			t.Errorf("expected no error, got %v", err)
		}
	})

	t.Run("zero page timeout returns ErrInvalidPageTimeout", func(t *testing.T) {
		t.Parallel()
		cfg := validConfig()
		cfg.PageTimeout = 0

		if err := cfg.Validate(); !errors.Is(err, ErrInvalidPageTimeout) {
			t.Errorf("expected ErrInvalidPageTimeout, got %v", err)
		}
	})

	t.Run("negative render retries returns ErrInvalidRetries", func(t *testing.T) {
		t.Parallel()
		cfg := validConfig()
		cfg.RenderRetries = -1

		if err := cfg.Validate(); !errors.Is(err, ErrInvalidRetries) {
			t.Errorf("expected ErrInvalidRetries, got %v", err)
		}
	})

	t.Run("negative login retries returns ErrInvalidRetries", func(t *testing.T) {
		t.Parallel()
		cfg := validConfig()
		cfg.LoginRetries = -1

		if err := cfg.Validate(); !errors.Is(err, ErrInvalidRetries) {
			t.Errorf("expected ErrInvalidRetries, got %v", err)
		}
	})

	t.Run("zero backoff base returns ErrInvalidBackoffBase", func(t *testing.T) {
		t.Parallel()
		cfg := validConfig()
		cfg.BackoffBase = 0

		if err := cfg.Validate(); !errors.Is(err, ErrInvalidBackoffBase) {
			t.Errorf("expected ErrInvalidBackoffBase, got %v", err)
		}
	})

	t.Run("zero grace period returns ErrInvalidGracePeriod", func(t *testing.T) {
		t.Parallel()
		cfg := validConfig()
		cfg.GracePeriod = 0

		if err := cfg.Validate(); !errors.Is(err, ErrInvalidGracePeriod) {
			t.Errorf("expected ErrInvalidGracePeriod, got %v", err)
		}
	})

	t.Run("zero session ttl returns ErrInvalidSessionTTL", func(t *testing.T) {
		t.Parallel()
		cfg := validConfig()
		cfg.SessionTTL = 0

		if err := cfg.Validate(); !errors.Is(err, ErrInvalidSessionTTL) {
			t.Errorf("expected ErrInvalidSessionTTL, got %v", err)
		}
	})

	t.Run("negative max pages returns ErrInvalidMaxPages", func(t *testing.T) {
		t.Parallel()
		cfg := validConfig()
		cfg.MaxPages = -1

		if err := cfg.Validate(); !errors.Is(err, ErrInvalidMaxPages) {
			t.Errorf("expected ErrInvalidMaxPages, got %v", err)
		}
	})

	t.Run("zero window width returns ErrInvalidWindowSize", func(t *testing.T) {
		t.Parallel()
		cfg := validConfig()
		cfg.WindowWidth = 0

		if err := cfg.Validate(); !errors.Is(err, ErrInvalidWindowSize) {
			t.Errorf("expected ErrInvalidWindowSize, got %v", err)
		}
	})

	t.Run("zero batch size returns ErrInvalidBatchSize", func(t *testing.T) {
		t.Parallel()
		cfg := validConfig()
		cfg.BatchSize = 0

		if err := cfg.Validate(); !errors.Is(err, ErrInvalidBatchSize) {
			t.Errorf("expected ErrInvalidBatchSize, got %v", err)
		}
	})

	t.Run("json and markdown both enabled returns ErrConflictingReportFormats", func(t *testing.T) {
		t.Parallel()
		cfg := validConfig()
		cfg.JSONReport = true
		cfg.MarkdownReport = true

		if err := cfg.Validate(); !errors.Is(err, ErrConflictingReportFormats) {
			t.Errorf("expected ErrConflictingReportFormats, got %v", err)
		}
	})

	t.Run("json only is valid", func(t *testing.T) {
		t.Parallel()
		cfg := validConfig()
		cfg.JSONReport = true

		if err := cfg.Validate(); err != nil {
			t.Errorf("expected no error, got %v", err)
		}
	})

	t.Run("empty exclude pattern returns ErrInvalidExcludePattern", func(t *testing.T) {
		t.Parallel()
		cfg := validConfig()
		cfg.ExcludePatterns = []string{"/logout", ""}

		if err := cfg.Validate(); !errors.Is(err, ErrInvalidExcludePattern) {
			t.Errorf("expected ErrInvalidExcludePattern, got %v", err)
		}
	})

	t.Run("malformed glob returns ErrInvalidExcludePattern", func(t *testing.T) {
		t.Parallel()
		cfg := validConfig()
		cfg.ExcludePatterns = []string{"/admin/["}

		if err := cfg.Validate(); !errors.Is(err, ErrInvalidExcludePattern) {
			t.Errorf("expected ErrInvalidExcludePattern, got %v", err)
		}
	})

	t.Run("plain substring pattern is valid", func(t *testing.T) {
		t.Parallel()
		cfg := validConfig()
		cfg.ExcludePatterns = []string{"/logout", "/admin/*", "signout"}

		if err := cfg.Validate(); err != nil {
			t.Errorf("expected no error, got %v", err)
		}
	})

	t.Run("malformed login step returns ErrInvalidLoginStep", func(t *testing.T) {
		t.Parallel()
		cfg := validConfig()
		cfg.LoginSteps = []LoginStep{{Action: ActionFill}}

		if err := cfg.Validate(); !errors.Is(err, ErrInvalidLoginStep) {
			t.Errorf("expected ErrInvalidLoginStep, got %v", err)
		}
	})

	t.Run("missing username returns ErrNoCredentials", func(t *testing.T) {
		t.Parallel()
		cfg := validConfig()
		cfg.Username = ""

		if err := cfg.Validate(); !errors.Is(err, ErrNoCredentials) {
			t.Errorf("expected ErrNoCredentials, got %v", err)
		}
	})

	t.Run("missing password returns ErrNoCredentials", func(t *testing.T) {
		t.Parallel()
		cfg := validConfig()
		cfg.Password = ""

		if err := cfg.Validate(); !errors.Is(err, ErrNoCredentials) {
			t.Errorf("expected ErrNoCredentials, got %v", err)
		}
	})
}

// TestXDGDirs tests XDG directory functions.
func TestXDGDirs(t *testing.T) {
	t.Parallel()

	t.Run("XDGDataDir returns non-empty path", func(t *testing.T) {
		t.Parallel()

		dir := XDGDataDir()
		if dir == "" {
			t.Error("expected non-empty XDG data dir")
		}
	})

	t.Run("XDGConfigDir returns non-empty path", func(t *testing.T) {
		t.Parallel()

		dir := XDGConfigDir()
		if dir == "" {
			t.Error("expected non-empty XDG config dir")
		}
	})
}
