package config

import (
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
// These values are chosen for polite crawling of authenticated web
// applications rendered through a real browser engine.
const (
	// DefaultMaxDepth of 3 reaches the bulk of a typical application's
	// navigable surface (dashboard, section, detail) without wandering into
	// deep pagination chains. Larger apps may need this increased via flags.
	DefaultMaxDepth = 3

	// DefaultConcurrency of 2 keeps load on the target modest while still
	// overlapping render latency. Browser rendering is heavyweight; more
	// workers mostly burn memory rather than improve throughput.
	DefaultConcurrency = 2

	// DefaultCrawlDelay is the politeness pause each worker takes between
	// pages. 1.5 seconds is conservative for an application that is also
	// serving real users.
	DefaultCrawlDelay = 1500 * time.Millisecond

	// DefaultPageTimeout bounds a single navigation. 30 seconds covers slow
	// server-rendered pages and script-heavy apps; anything slower is treated
	// as a render timeout and retried.
	DefaultPageTimeout = 30 * time.Second

	// DefaultSettleDelay is the pause after the load event before the DOM is
	// serialized, giving client-side rendering a chance to finish.
	DefaultSettleDelay = 2 * time.Second

	// DefaultLoginSettle is the pause after submitting the login form before
	// checking whether authentication succeeded. Login redirects and session
	// bootstrapping commonly take a couple of seconds.
	DefaultLoginSettle = 3 * time.Second

	// DefaultLoginRetries is the number of additional login attempts after
	// the first failure. Two retries absorb transient network flakes while
	// still failing fast on genuinely bad credentials.
	DefaultLoginRetries = 2

	// DefaultRenderRetries is the number of additional render attempts per
	// page after the first failure. Render failures are usually transient
	// (timeouts, dropped connections), so a small budget recovers most pages.
	DefaultRenderRetries = 2

	// DefaultBackoffBase is the initial retry backoff. Each retry doubles it.
	DefaultBackoffBase = 1 * time.Second

	// DefaultGracePeriod bounds how long a cancelled run waits for in-flight
	// renders to finish before abandoning them.
	DefaultGracePeriod = 30 * time.Second

	// DefaultSessionTTL is the assumed session lifetime when the application
	// doesn't expose an explicit expiry. 30 minutes matches the most common
	// server-side session timeout.
	DefaultSessionTTL = 30 * time.Minute

	// DefaultBatchSize of 1 crawls multiple targets sequentially. Each target
	// owns a full browser instance, so concurrent targets are opt-in.
	DefaultBatchSize = 1

	// DefaultWindowWidth and DefaultWindowHeight give the browser a desktop
	// viewport so responsive layouts render their full navigation.
	DefaultWindowWidth  = 1920
	DefaultWindowHeight = 1080

	// DefaultMaxPages of 0 means no cap beyond the depth bound; the visited
	// set guarantees termination on finite sites.
	DefaultMaxPages = 0

	// DefaultStoreBuffer is the capacity of the storage sink queue. Workers
	// block when it fills, which bounds memory under a slow disk.
	DefaultStoreBuffer = 64

	// DefaultUserAgent identifies sitesnap in requests. A descriptive
	// User-Agent lets application operators recognize capture traffic.
	DefaultUserAgent = "sitesnap/1.0 (+https://github.com/sitesnap/sitesnap)"

	// DefaultOutputDir is where run directories are created.
	DefaultOutputDir = "output"

	// DefaultUsernameEnv and DefaultPasswordEnv are the environment variables
	// consulted for credentials when none are configured explicitly. Keeping
	// credentials in the environment keeps them out of config files.
	DefaultUsernameEnv = "SITESNAP_USERNAME"
	DefaultPasswordEnv = "SITESNAP_PASSWORD"

	// AppName is the application name used for XDG directory paths.
	AppName = "sitesnap"
)

// Config holds all configuration options for sitesnap.
// This struct is designed to be populated from CLI flags and passed through
// the application via dependency injection rather than global state.
//
// Design decision: We use a single flat struct instead of nested structs
// (e.g., CrawlConfig, ReportConfig) for simplicity. The number of options
// is manageable, and nesting would add complexity without significant benefit.
// If the configuration grows significantly, consider refactoring into sub-structs.
type Config struct {
	// Targets is the list of base URLs to crawl. Each target defines its own
	// scope: only URLs on the same scheme and host are followed.
	Targets []string

	// LoginURL is the page where the login form lives. When empty, the
	// target base URL is used.
	LoginURL string

	// Username and Password are the resolved credentials. They are filled
	// from the environment by ResolveCredentials and must never be logged.
	Username string
	Password string

	// UsernameEnv and PasswordEnv name the environment variables consulted
	// when Username/Password are empty.
	UsernameEnv string
	PasswordEnv string

	// EnvFile is an optional dotenv file loaded before credential resolution.
	EnvFile string

	// MaxDepth is the breadth-first depth bound. The seed is depth 0;
	// links found on a depth-N page are depth N+1. Fixed for the run.
	MaxDepth int

	// ExcludePatterns are URL path patterns skipped during crawling,
	// checked in order with the first match winning.
	ExcludePatterns []string

	// Concurrency is the fixed number of render workers.
	Concurrency int

	// CrawlDelay is the per-worker politeness pause between pages.
	CrawlDelay time.Duration

	// PageTimeout bounds a single page navigation and capture.
	PageTimeout time.Duration

	// SettleDelay is the post-load pause before serializing the DOM.
	SettleDelay time.Duration

	// LoginSettle is the pause after submitting the login form.
	LoginSettle time.Duration

	// LoginRetries is the number of additional login attempts after the
	// first failure. Exhausting them is fatal for the run.
	LoginRetries int

	// RenderRetries is the number of additional render attempts per page.
	// Exhausting them records the page as failed and the crawl continues.
	RenderRetries int

	// BackoffBase is the initial retry backoff; each retry doubles it.
	BackoffBase time.Duration

	// GracePeriod bounds the drain after cancellation.
	GracePeriod time.Duration

	// SessionTTL is the assumed session lifetime used by the validity
	// heuristic when no cookie expiry is observed.
	SessionTTL time.Duration

	// MaxPages optionally caps successful captures per run. 0 means no cap.
	MaxPages int

	// Headless controls whether the browser runs without a visible window.
	Headless bool

	// Screenshots enables screenshot capture alongside HTML.
	Screenshots bool

	// FullPageScreenshots captures the entire scroll height instead of the
	// viewport. Falls back to a viewport shot when full-page capture fails.
	FullPageScreenshots bool

	// WindowWidth and WindowHeight set the browser viewport.
	WindowWidth  int
	WindowHeight int

	// UserAgent is sent with every request the browser makes.
	UserAgent string

	// OutputDir is the root under which per-run directories are created.
	OutputDir string

	// Verbose enables detailed log output using slog.LevelDebug.
	// When false, only warnings and errors are logged.
	Verbose bool

	// BatchSize is the number of targets crawled concurrently when several
	// are given. Each concurrent target runs its own browser.
	BatchSize int

	// ConfigFilePath is the path to the configuration file. If empty, the
	// tool searches for .sitesnap.yaml in the current directory and then in
	// the user's home directory.
	ConfigFilePath string

	// SiteConfigs holds per-site configurations loaded from the config file.
	SiteConfigs *File

	// LoginSteps is the ordered login sequence. When empty, DefaultLoginSteps
	// supplies the common username/password/submit form strategy.
	LoginSteps []LoginStep

	// JSONReport enables JSON report output instead of the human-readable
	// format. Mutually exclusive with MarkdownReport.
	JSONReport bool

	// MarkdownReport enables Markdown report output instead of the
	// human-readable format. Mutually exclusive with JSONReport.
	MarkdownReport bool

	// ReportFile is the output file path for the report. When set, the
	// report is written there instead of stdout.
	ReportFile string

	// SaveToDB indicates whether to record runs in the capture database.
	SaveToDB bool

	// DBDir is the directory holding the SQLite capture database.
	// Defaults to the XDG data directory.
	DBDir string
}

// NewConfig creates a new Config with default values.
// All fields are set to safe, sensible defaults that work for most use cases.
// Users can override specific values after creation.
//
// Design decision: We use a constructor function instead of relying on
// zero values because many defaults are non-zero (e.g., timeouts, window
// size). This also serves as documentation of what the defaults are.
func NewConfig() *Config {
	return &Config{
		UsernameEnv:         DefaultUsernameEnv,
		PasswordEnv:         DefaultPasswordEnv,
		MaxDepth:            DefaultMaxDepth,
		Concurrency:         DefaultConcurrency,
		CrawlDelay:          DefaultCrawlDelay,
		PageTimeout:         DefaultPageTimeout,
		SettleDelay:         DefaultSettleDelay,
		LoginSettle:         DefaultLoginSettle,
		LoginRetries:        DefaultLoginRetries,
		RenderRetries:       DefaultRenderRetries,
		BackoffBase:         DefaultBackoffBase,
		GracePeriod:         DefaultGracePeriod,
		SessionTTL:          DefaultSessionTTL,
		MaxPages:            DefaultMaxPages,
		Headless:            true,
		Screenshots:         true,
		FullPageScreenshots: true,
		WindowWidth:         DefaultWindowWidth,
		WindowHeight:        DefaultWindowHeight,
		UserAgent:           DefaultUserAgent,
		OutputDir:           DefaultOutputDir,
		BatchSize:           DefaultBatchSize,
	}
}

// XDGDataDir returns the XDG data directory for sitesnap.
// This follows the XDG Base Directory Specification.
// On Linux: ~/.local/share/sitesnap
// On macOS: ~/Library/Application Support/sitesnap
// On Windows: %LOCALAPPDATA%\sitesnap
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for sitesnap.
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Validate checks if the configuration is valid.
// It returns a specific error describing what is invalid.
//
// Design decision: We validate at the config level rather than at each
// point of use to fail fast and provide clear error messages upfront.
// This is called once after CLI parsing, before the browser starts.
//
// We chose to return the first error found rather than collecting all errors
// because fixing one error often makes others irrelevant.
func (c *Config) Validate() error {
	// We must have at least one target to crawl
	if len(c.Targets) == 0 {
		return ErrNoTarget
	}

	// Every target must be an absolute http(s) URL; it defines the scope
	for _, target := range c.Targets {
		if err := validateScopeURL(target); err != nil {
			return fmt.Errorf("target %q: %w", target, err)
		}
	}

	// The login URL, when set, must be absolute too
	if c.LoginURL != "" {
		if err := validateScopeURL(c.LoginURL); err != nil {
			return fmt.Errorf("login URL %q: %w", c.LoginURL, err)
		}
	}

	// Depth 0 is legal (capture only the seed); negative is not
	if c.MaxDepth < 0 {
		return ErrInvalidMaxDepth
	}

	// Concurrency must be positive; zero workers would mean no crawling
	if c.Concurrency <= 0 {
		return ErrInvalidConcurrency
	}

	// CrawlDelay must be non-negative
	if c.CrawlDelay < 0 {
		return ErrInvalidCrawlDelay
	}

	// PageTimeout must be positive; zero would fail every navigation
	if c.PageTimeout <= 0 {
		return ErrInvalidPageTimeout
	}

	// SettleDelay must be non-negative
	if c.SettleDelay < 0 {
		return ErrInvalidSettleDelay
	}

	// Retry budgets must be non-negative; zero disables retries
	if c.LoginRetries < 0 || c.RenderRetries < 0 {
		return ErrInvalidRetries
	}

	// BackoffBase must be positive when retries are enabled
	if c.BackoffBase <= 0 {
		return ErrInvalidBackoffBase
	}

	// GracePeriod must be positive so a cancelled run still drains
	if c.GracePeriod <= 0 {
		return ErrInvalidGracePeriod
	}

	// SessionTTL must be positive for the validity heuristic to work
	if c.SessionTTL <= 0 {
		return ErrInvalidSessionTTL
	}

	// MaxPages must be non-negative; zero means unlimited
	if c.MaxPages < 0 {
		return ErrInvalidMaxPages
	}

	// The browser needs a real viewport
	if c.WindowWidth <= 0 || c.WindowHeight <= 0 {
		return ErrInvalidWindowSize
	}

	// BatchSize must be positive
	if c.BatchSize <= 0 {
		return ErrInvalidBatchSize
	}

	// JSONReport and MarkdownReport are mutually exclusive
	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}

	// Exclude patterns must be syntactically valid globs
	for _, pattern := range c.ExcludePatterns {
		if pattern == "" {
			return fmt.Errorf("%w: empty pattern", ErrInvalidExcludePattern)
		}
		if _, err := filepath.Match(pattern, "probe"); errors.Is(err, filepath.ErrBadPattern) {
			return fmt.Errorf("%w: %q", ErrInvalidExcludePattern, pattern)
		}
	}

	// Login steps must be well formed when configured
	for i, step := range c.LoginSteps {
		if err := step.Validate(); err != nil {
			return fmt.Errorf("login step %d: %w", i+1, err)
		}
	}

	// Credentials must be present once resolution has run
	if c.Username == "" || c.Password == "" {
		return ErrNoCredentials
	}

	return nil
}

// validateScopeURL checks that raw is an absolute http or https URL with a host.
func validateScopeURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidBaseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ErrInvalidBaseURL
	}
	if u.Host == "" {
		return ErrInvalidBaseURL
	}
	return nil
}
