package crawler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sitesnap/sitesnap/internal/config"
	"github.com/sitesnap/sitesnap/internal/model"
	"github.com/sitesnap/sitesnap/internal/render"
	"github.com/sitesnap/sitesnap/internal/session"
)

// defaultPollInterval is how long an idle worker waits before checking
// the frontier again. Short enough that drain detection is prompt, long
// enough that idle workers don't spin.
const defaultPollInterval = 100 * time.Millisecond

// Store persists finished captures. Implementations must tolerate
// concurrent Save calls from multiple workers.
type Store interface {
	Save(ctx context.Context, capture *model.CaptureResult) error
}

// Pool is the fixed-size pool of render workers that drives the crawl.
//
// Each worker loops: pop a task, make sure the session is valid, render
// the page, persist the capture, push discovered links one level deeper,
// and wait out the politeness delay. Transient render failures are
// retried with doubling backoff before the page is recorded as failed;
// the crawl itself continues either way.
//
// The pool never scales: concurrency is fixed at construction, matching
// the number of browser tabs the engine is expected to sustain.
type Pool struct {
	frontier   *Frontier
	classifier *Classifier
	sessions   *session.Manager
	engine     render.Engine
	store      Store
	report     *model.CrawlReport
	logger     *slog.Logger

	concurrency   int
	delay         time.Duration
	retries       int
	backoff       time.Duration
	maxPages      int
	loginHostPath string
	pollInterval  time.Duration

	visited  atomic.Int64
	failed   atomic.Int64
	stopped  atomic.Bool
	limitHit atomic.Bool
}

// PoolOption configures a Pool.
type PoolOption func(*Pool)

// WithWorkers sets the number of concurrent render workers.
func WithWorkers(n int) PoolOption {
	return func(p *Pool) {
		if n > 0 {
			p.concurrency = n
		}
	}
}

// WithDelay sets the per-worker politeness delay between tasks.
func WithDelay(d time.Duration) PoolOption {
	return func(p *Pool) {
		p.delay = d
	}
}

// WithRenderRetries sets how many extra render attempts follow a
// transient failure.
func WithRenderRetries(n int) PoolOption {
	return func(p *Pool) {
		if n >= 0 {
			p.retries = n
		}
	}
}

// WithRenderBackoff sets the delay before the first render retry. The
// delay doubles on each subsequent retry.
func WithRenderBackoff(d time.Duration) PoolOption {
	return func(p *Pool) {
		if d > 0 {
			p.backoff = d
		}
	}
}

// WithPageLimit caps the number of successful captures. 0 means no cap.
func WithPageLimit(n int) PoolOption {
	return func(p *Pool) {
		if n >= 0 {
			p.maxPages = n
		}
	}
}

// WithLoginURL tells the pool which page is the login page, so workers
// can detect an authentication redirect and refresh the session.
func WithLoginURL(rawURL string) PoolOption {
	return func(p *Pool) {
		p.loginHostPath = hostPath(rawURL)
	}
}

// WithPollInterval sets how long idle workers sleep between frontier
// checks. Used by tests to speed up drain detection.
func WithPollInterval(d time.Duration) PoolOption {
	return func(p *Pool) {
		if d > 0 {
			p.pollInterval = d
		}
	}
}

// NewPool creates a worker pool over the given frontier and engine.
func NewPool(frontier *Frontier, sessions *session.Manager, engine render.Engine, store Store, report *model.CrawlReport, logger *slog.Logger, opts ...PoolOption) *Pool {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Pool{
		frontier:     frontier,
		classifier:   frontier.classifier,
		sessions:     sessions,
		engine:       engine,
		store:        store,
		report:       report,
		logger:       logger,
		concurrency:  config.DefaultConcurrency,
		delay:        config.DefaultCrawlDelay,
		retries:      config.DefaultRenderRetries,
		backoff:      config.DefaultBackoffBase,
		pollInterval: defaultPollInterval,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run starts the workers and blocks until the frontier is drained, the
// context is cancelled, or a worker hits a fatal error. A fatal error
// from one worker cancels the others through the errgroup.
func (p *Pool) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for i := 1; i <= p.concurrency; i++ {
		g.Go(func() error {
			return p.worker(gctx, i)
		})
	}
	return g.Wait()
}

// StopDispatch makes workers finish their current task and exit instead
// of popping new ones. Used to drain the crawl on cancellation.
func (p *Pool) StopDispatch() {
	p.stopped.Store(true)
}

// PageLimitReached reports whether the successful-capture cap stopped
// the crawl.
func (p *Pool) PageLimitReached() bool {
	return p.limitHit.Load()
}

// Visited returns the number of successful captures so far.
func (p *Pool) Visited() int {
	return int(p.visited.Load())
}

// Failed returns the number of pages whose render attempts all failed.
func (p *Pool) Failed() int {
	return int(p.failed.Load())
}

func (p *Pool) worker(ctx context.Context, id int) error {
	logger := p.logger.With("worker", id)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if p.stopped.Load() || p.limitHit.Load() {
			return nil
		}

		task, ok := p.frontier.Pop()
		if !ok {
			if p.frontier.Drained() {
				return nil
			}
			if err := sleepContext(ctx, p.pollInterval); err != nil {
				return err
			}
			continue
		}

		err := p.process(ctx, logger, task)
		p.frontier.TaskDone()
		if err != nil {
			return err
		}

		if p.delay > 0 {
			if err := sleepContext(ctx, p.delay); err != nil {
				return err
			}
		}
	}
}

// process runs the full capture cycle for one task. It returns an error
// only for conditions that must stop the worker: context cancellation or
// a session refresh that exhausted its retries. Page-level failures are
// recorded on the capture and return nil so the crawl continues.
func (p *Pool) process(ctx context.Context, logger *slog.Logger, task model.CrawlTask) error {
	capture := model.NewCaptureResult(task)
	refreshed := false

	for attempt := 1; ; attempt++ {
		capture.Attempts = attempt

		// Coordinated with every other worker: when the session is stale,
		// exactly one re-login runs and the rest of the pool waits for it.
		if _, err := p.sessions.EnsureValid(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("session refresh during crawl: %w", err)
		}

		result, err := p.engine.Render(ctx, task.URL)
		if err != nil {
			if ctx.Err() != nil {
				// Abandoned mid-drain; the task is not recorded.
				return ctx.Err()
			}
			extra := attempt - 1
			var renderErr *render.RenderError
			if errors.As(err, &renderErr) && renderErr.Transient() && extra < p.retries {
				delay := p.backoff << extra
				logger.Warn("render failed, will retry",
					"url", task.URL,
					"kind", renderErr.Kind.String(),
					"attempt", attempt,
					"delay", delay,
					"error", err)
				if serr := sleepContext(ctx, delay); serr != nil {
					return serr
				}
				continue
			}
			capture.MarkFailed(err.Error())
			p.record(ctx, logger, capture)
			return nil
		}

		// A successful render that lands on the login page means the
		// session died under us before the expiry heuristic noticed.
		// Refresh once and re-render; a second landing is recorded as-is
		// rather than looping.
		if !refreshed && p.isLoginPage(result.FinalURL) {
			refreshed = true
			logger.Info("render landed on the login page, refreshing session", "url", task.URL)
			p.sessions.Invalidate()
			continue
		}

		p.finish(ctx, logger, task, capture, result)
		return nil
	}
}

// finish turns a successful render into a stored capture and feeds the
// frontier with the links one level deeper.
func (p *Pool) finish(ctx context.Context, logger *slog.Logger, task model.CrawlTask, capture *model.CaptureResult, result *render.Result) {
	if result.FinalURL != "" && result.FinalURL != task.URL {
		capture.FinalURL = result.FinalURL
	}
	capture.StatusCode = result.StatusCode
	capture.HTML = result.HTML
	capture.TruncateHTML()
	capture.ComputeHash()
	capture.Screenshot = result.Screenshot

	base := task.URL
	if result.FinalURL != "" {
		base = result.FinalURL
	}
	if parser, err := NewParser(base); err == nil {
		if parsed, perr := parser.Parse(bytes.NewReader(capture.HTML)); perr == nil {
			capture.Title = parsed.Title
			capture.Links = parsed.Links
		}
	}
	capture.MarkSuccess()

	// The classifier decides what happens to each link; pushing them all
	// keeps the exclusion counters honest.
	for _, link := range capture.Links {
		p.frontier.Push(link, task.Depth+1, task.URL)
	}

	logger.Info("page captured",
		"url", task.URL,
		"depth", task.Depth,
		"title", capture.Title,
		"status_code", capture.StatusCode,
		"links", len(capture.Links),
		"attempts", capture.Attempts)

	p.record(ctx, logger, capture)
}

// record persists a finished capture and updates the pool counters.
// Storage failures are logged, not fatal; the capture still reaches the
// report.
func (p *Pool) record(ctx context.Context, logger *slog.Logger, capture *model.CaptureResult) {
	if capture.Status == model.StatusSuccess {
		n := p.visited.Add(1)
		if p.maxPages > 0 && int(n) >= p.maxPages && !p.limitHit.Swap(true) {
			logger.Info("page limit reached, stopping dispatch", "limit", p.maxPages)
		}
	} else {
		p.failed.Add(1)
		logger.Warn("page failed",
			"url", capture.URL,
			"reason", capture.FailReason,
			"attempts", capture.Attempts)
	}

	if err := p.store.Save(ctx, capture); err != nil {
		logger.Warn("failed to persist capture", "url", capture.URL, "error", err)
	}
	p.report.AddPage(capture)
}

// isLoginPage reports whether the browser ended up on the login page.
// Only host and path are compared: login redirects routinely append
// query parameters like ?next=/dashboard.
func (p *Pool) isLoginPage(finalURL string) bool {
	if p.loginHostPath == "" || finalURL == "" {
		return false
	}
	normalized, err := p.classifier.Normalize(finalURL)
	if err != nil {
		return false
	}
	return hostPath(normalized) == p.loginHostPath
}

// hostPath reduces a URL to its lowercase host plus trimmed path.
func hostPath(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	canonicalize(u)
	return u.Host + u.Path
}

// sleepContext sleeps for d unless the context is cancelled first.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
