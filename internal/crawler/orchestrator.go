package crawler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/sitesnap/sitesnap/internal/config"
	"github.com/sitesnap/sitesnap/internal/model"
	"github.com/sitesnap/sitesnap/internal/render"
	"github.com/sitesnap/sitesnap/internal/session"
)

// Orchestrator runs one crawl from login to summary.
//
// It owns the phase machine (Init, Authenticating, Crawling, Draining,
// Done or Failed), wires the session manager, frontier, and worker pool
// together, and guarantees that every run terminates with a CrawlSummary
// no matter how it ends.
type Orchestrator struct {
	cfg      *config.Config
	sessions *session.Manager
	engine   render.Engine
	store    Store
	logger   *slog.Logger

	classifier *Classifier
	frontier   *Frontier
	pool       *Pool
	report     *model.CrawlReport
	seedURL    string

	grace     time.Duration
	outputDir string

	ran atomic.Bool

	mu    sync.Mutex
	phase model.Phase
}

// OrchestratorOption configures an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithGracePeriod sets how long in-flight renders may run after
// cancellation before they are abandoned.
func WithGracePeriod(d time.Duration) OrchestratorOption {
	return func(o *Orchestrator) {
		if d > 0 {
			o.grace = d
		}
	}
}

// WithOutputDir records the run directory in the summary. The storage
// sink owns the directory; the orchestrator only reports it.
func WithOutputDir(dir string) OrchestratorOption {
	return func(o *Orchestrator) {
		o.outputDir = dir
	}
}

// WithReport makes the orchestrator record the run into a caller-owned
// report instead of allocating its own. The pipeline uses this so the
// report it threads through its steps is the one the crawl fills in.
func WithReport(report *model.CrawlReport) OrchestratorOption {
	return func(o *Orchestrator) {
		if report != nil {
			o.report = report
		}
	}
}

// NewOrchestrator wires a crawl for the first target in the validated
// configuration. The session manager, render engine, and store are
// injected so tests can substitute fakes.
func NewOrchestrator(cfg *config.Config, sessions *session.Manager, engine render.Engine, store Store, logger *slog.Logger, opts ...OrchestratorOption) (*Orchestrator, error) {
	if cfg == nil || len(cfg.Targets) == 0 {
		return nil, errors.New("no crawl target configured")
	}
	if logger == nil {
		logger = slog.Default()
	}
	target := cfg.Targets[0]

	classifier, err := NewClassifier(target, cfg.MaxDepth, cfg.ExcludePatterns)
	if err != nil {
		return nil, err
	}
	seedURL, err := classifier.Normalize(target)
	if err != nil {
		return nil, err
	}

	o := &Orchestrator{
		cfg:      cfg,
		sessions: sessions,
		engine:   engine,
		store:    store,
		logger:   logger,

		classifier: classifier,
		seedURL:    seedURL,

		grace: cfg.GracePeriod,
		phase: model.PhaseInit,
	}
	for _, opt := range opts {
		opt(o)
	}

	if o.report == nil {
		o.report = model.NewCrawlReport(uuid.NewString(), classifier.Scope(), seedURL)
	} else {
		if o.report.RunID == "" {
			o.report.RunID = uuid.NewString()
		}
		o.report.BaseScope = classifier.Scope()
		o.report.StartURL = seedURL
	}
	o.report.LoginURL = cfg.LoginURL
	o.report.MaxDepth = cfg.MaxDepth
	o.report.Concurrency = cfg.Concurrency
	o.report.ExcludePatterns = cfg.ExcludePatterns

	o.frontier = NewFrontier(classifier, logger)
	o.pool = NewPool(o.frontier, sessions, engine, store, o.report, logger,
		WithWorkers(cfg.Concurrency),
		WithDelay(cfg.CrawlDelay),
		WithRenderRetries(cfg.RenderRetries),
		WithRenderBackoff(cfg.BackoffBase),
		WithPageLimit(cfg.MaxPages),
		WithLoginURL(o.loginDetectURL()))

	return o, nil
}

// loginDetectURL returns the URL workers should treat as "landed on the
// login page", or "" when detection must stay off. Detection is disabled
// when the login page is the seed itself: every crawl of the base URL
// would otherwise look like an expired session.
func (o *Orchestrator) loginDetectURL() string {
	if o.cfg.LoginURL == "" {
		return ""
	}
	login, err := o.classifier.Normalize(o.cfg.LoginURL)
	if err != nil || login == o.seedURL {
		return ""
	}
	return login
}

// Report returns the run's report. Populated as the crawl progresses;
// complete once Run returns.
func (o *Orchestrator) Report() *model.CrawlReport {
	return o.report
}

// Phase returns the current life cycle phase.
func (o *Orchestrator) Phase() model.Phase {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.phase
}

// Run executes the crawl: authenticate, seed, crawl until drained, and
// account. It blocks until the run reaches a terminal phase and always
// returns a report with a summary attached, even on failure.
//
// Cancelling ctx starts a graceful drain: no new tasks are dispatched,
// and in-flight renders get the grace period to finish before they are
// abandoned. Run may be called at most once.
func (o *Orchestrator) Run(ctx context.Context) (*model.CrawlReport, error) {
	if !o.ran.CompareAndSwap(false, true) {
		return o.report, errors.New("crawl already ran")
	}

	started := time.Now()
	o.report.StartedAt = started
	summary := &model.CrawlSummary{
		RunID:     o.report.RunID,
		BaseScope: o.report.BaseScope,
		StartedAt: started,
		OutputDir: o.outputDir,
	}

	o.transition(model.PhaseAuthenticating)
	if err := o.sessions.Establish(ctx); err != nil {
		o.transition(model.PhaseFailed)
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			summary.SetTermination(model.TerminationCancelled)
		} else {
			summary.SetTermination(model.TerminationAuthFailed)
		}
		o.finalize(summary, err)
		return o.report, err
	}

	o.transition(model.PhaseCrawling)
	if seed := o.frontier.Seed(o.seedURL); seed.Verdict != VerdictAccept {
		err := fmt.Errorf("seed URL %s rejected: %s", o.seedURL, seed.Verdict)
		o.transition(model.PhaseDraining)
		o.transition(model.PhaseDone)
		summary.SetTermination(model.TerminationFrontierExhausted)
		o.finalize(summary, err)
		return o.report, err
	}

	// Renders must be able to outlive caller cancellation for the grace
	// window, so the pool runs on its own context.
	workCtx, workCancel := context.WithCancel(context.Background())
	defer workCancel()

	stopWatch := context.AfterFunc(ctx, func() {
		o.logger.Info("cancellation received, draining in-flight tasks", "grace", o.grace)
		o.pool.StopDispatch()
	})
	defer stopWatch()

	done := make(chan error, 1)
	go func() {
		done <- o.pool.Run(workCtx)
	}()

	var (
		poolErr      error
		graceExpired bool
	)
	select {
	case poolErr = <-done:
		o.transition(model.PhaseDraining)
	case <-ctx.Done():
		o.transition(model.PhaseDraining)
		select {
		case poolErr = <-done:
		case <-time.After(o.grace):
			graceExpired = true
			o.logger.Warn("grace period expired, abandoning in-flight tasks", "grace", o.grace)
			workCancel()
			<-done
		}
	}
	o.transition(model.PhaseDone)

	stats := o.frontier.Stats()
	summary.PagesVisited = o.pool.Visited()
	summary.PagesFailed = o.pool.Failed()
	summary.PagesExcluded = stats.ExcludedTotal()
	summary.Duplicates = stats.Duplicates
	summary.ExcludedByReason = stats.Excluded
	summary.SessionRefreshes = o.sessions.Refreshes()

	var fatal error
	var authErr *session.AuthError
	switch {
	case graceExpired:
		summary.SetTermination(model.TerminationGraceExpired)
	case ctx.Err() != nil:
		summary.SetTermination(model.TerminationCancelled)
	case errors.As(poolErr, &authErr):
		summary.SetTermination(model.TerminationAuthFailed)
		fatal = poolErr
	case o.pool.PageLimitReached():
		summary.SetTermination(model.TerminationPageLimit)
	default:
		summary.SetTermination(model.TerminationFrontierExhausted)
	}

	o.finalize(summary, fatal)
	return o.report, fatal
}

// finalize stamps the terminal accounting onto the report.
func (o *Orchestrator) finalize(summary *model.CrawlSummary, err error) {
	summary.Duration = time.Since(summary.StartedAt)
	summary.SetPhase(o.Phase())
	if err != nil {
		o.report.SetError(err)
	}
	o.report.Finish(summary)

	o.logger.Info("crawl finished",
		"run_id", summary.RunID,
		"phase", summary.PhaseText,
		"termination", summary.TerminationText,
		"visited", summary.PagesVisited,
		"failed", summary.PagesFailed,
		"excluded", summary.PagesExcluded,
		"duplicates", summary.Duplicates,
		"refreshes", summary.SessionRefreshes,
		"duration", summary.Duration.Round(time.Millisecond).String())
}

// transition moves the phase machine forward. Illegal transitions are
// refused and logged; the phase table in the model package is the single
// source of truth for what is legal.
func (o *Orchestrator) transition(next model.Phase) {
	o.mu.Lock()
	current := o.phase
	if !current.CanTransition(next) {
		o.mu.Unlock()
		o.logger.Error("illegal phase transition refused",
			"from", current.String(), "to", next.String())
		return
	}
	o.phase = next
	o.mu.Unlock()

	o.logger.Info("phase transition", "from", current.String(), "to", next.String())
}
