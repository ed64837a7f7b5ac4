package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/sitesnap/sitesnap/internal/config"
	"github.com/sitesnap/sitesnap/internal/crawler"
	"github.com/sitesnap/sitesnap/internal/database"
	"github.com/sitesnap/sitesnap/internal/model"
	"github.com/sitesnap/sitesnap/internal/render"
	"github.com/sitesnap/sitesnap/internal/session"
	"github.com/sitesnap/sitesnap/internal/storage"
)

// RenderBackend is what the crawl step needs from a browser: page
// rendering for the workers and login for the session manager.
// render.Chrome implements both.
type RenderBackend interface {
	render.Engine
	render.Authenticator
}

// CaptureStore is what the crawl step needs from the storage layer.
// storage.FileStore implements it.
type CaptureStore interface {
	crawler.Store

	// RunDir returns the directory captures are written to.
	RunDir() string

	// Close flushes queued captures and writes the page index.
	Close() error
}

// EngineFactory builds and starts the render backend for one run.
// The context only covers startup; the backend outlives the call.
type EngineFactory func(ctx context.Context, cfg *config.Config, logger *slog.Logger) (RenderBackend, error)

// StoreFactory builds the capture store for one run.
type StoreFactory func(cfg *config.Config, runID string, logger *slog.Logger) (CaptureStore, error)

// defaultEngineFactory launches a Chrome browser configured for the run.
// Login does not happen here; the session manager drives it once the
// orchestrator starts.
func defaultEngineFactory(ctx context.Context, cfg *config.Config, logger *slog.Logger) (RenderBackend, error) {
	steps, err := cfg.ResolveLoginSteps()
	if err != nil {
		return nil, err
	}

	chrome := render.NewChrome(cfg.Targets[0], cfg.LoginURL, steps,
		render.WithHeadless(cfg.Headless),
		render.WithWindowSize(cfg.WindowWidth, cfg.WindowHeight),
		render.WithUserAgent(cfg.UserAgent),
		render.WithPageTimeout(cfg.PageTimeout),
		render.WithSettleDelay(cfg.SettleDelay),
		render.WithScreenshots(cfg.Screenshots),
		render.WithFullPageScreenshots(cfg.FullPageScreenshots),
		render.WithLogger(logger),
	)
	if err := chrome.Start(ctx); err != nil {
		return nil, err
	}
	return chrome, nil
}

// defaultStoreFactory creates the run directory under the configured
// output root.
func defaultStoreFactory(cfg *config.Config, runID string, logger *slog.Logger) (CaptureStore, error) {
	return storage.NewFileStore(cfg.OutputDir, runID, logger,
		storage.WithStartURL(cfg.Targets[0]))
}

// CrawlStep runs one full authenticated crawl: it launches the browser,
// establishes the session, drives the orchestrator, and streams captures
// into the run directory.
//
// Design decision: The whole crawl is a single step rather than separate
// login/crawl/store steps because:
// 1. Browser, session, and store share one lifetime; splitting them
//    would force cross-step state
// 2. The orchestrator already sequences the phases internally
// 3. One step keeps the report the single point of truth for the outcome
type CrawlStep struct {
	// cfg is the per-target configuration, already validated.
	cfg *config.Config

	// engineFactory builds the render backend. Tests substitute fakes here
	// so no browser is needed.
	engineFactory EngineFactory

	// storeFactory builds the capture store.
	storeFactory StoreFactory

	// logger for structured logging.
	logger *slog.Logger
}

// CrawlStepOption configures a CrawlStep.
type CrawlStepOption func(*CrawlStep)

// WithEngineFactory replaces the browser factory.
func WithEngineFactory(factory EngineFactory) CrawlStepOption {
	return func(s *CrawlStep) {
		if factory != nil {
			s.engineFactory = factory
		}
	}
}

// WithStoreFactory replaces the capture store factory.
func WithStoreFactory(factory StoreFactory) CrawlStepOption {
	return func(s *CrawlStep) {
		if factory != nil {
			s.storeFactory = factory
		}
	}
}

// WithCrawlLogger sets a custom logger for the crawl step.
func WithCrawlLogger(logger *slog.Logger) CrawlStepOption {
	return func(s *CrawlStep) {
		s.logger = logger
	}
}

// NewCrawlStep creates a new crawl step for the given configuration.
// The configuration must already be validated and hold exactly the one
// target this step crawls.
func NewCrawlStep(cfg *config.Config, opts ...CrawlStepOption) *CrawlStep {
	s := &CrawlStep{
		cfg:           cfg,
		engineFactory: defaultEngineFactory,
		storeFactory:  defaultStoreFactory,
		logger:        slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Name returns the step name.
func (s *CrawlStep) Name() string {
	return "crawl"
}

// Do executes the crawl step.
func (s *CrawlStep) Do(ctx context.Context, report *model.CrawlReport) error {
	if report.RunID == "" {
		report.RunID = uuid.NewString()
	}

	engine, err := s.engineFactory(ctx, s.cfg, s.logger)
	if err != nil {
		return fmt.Errorf("start render engine: %w", err)
	}
	defer func() {
		_ = engine.Close() //nolint:errcheck // Best effort cleanup
	}()

	store, err := s.storeFactory(s.cfg, report.RunID, s.logger)
	if err != nil {
		return fmt.Errorf("open capture store: %w", err)
	}

	sessions := session.NewManager(engine,
		session.WithTTL(s.cfg.SessionTTL),
		session.WithRetries(s.cfg.LoginRetries),
		session.WithBackoff(s.cfg.BackoffBase),
		session.WithLogger(s.logger),
	)

	orch, err := crawler.NewOrchestrator(s.cfg, sessions, engine, store, s.logger,
		crawler.WithReport(report),
		crawler.WithGracePeriod(s.cfg.GracePeriod),
		crawler.WithOutputDir(store.RunDir()),
	)
	if err != nil {
		_ = store.Close() //nolint:errcheck // Best effort cleanup
		return fmt.Errorf("wire crawl: %w", err)
	}

	_, runErr := orch.Run(ctx)

	// Close flushes queued captures and writes the page index. Capture
	// file paths in the report are not final until it returns, so this
	// must happen before the persist step sees the report.
	if closeErr := store.Close(); closeErr != nil {
		if runErr == nil {
			runErr = fmt.Errorf("finalize captures: %w", closeErr)
		} else {
			s.logger.Warn("capture store close failed", "error", closeErr)
		}
	}

	return runErr
}

// PersistStep records the finished run in the capture database so later
// `sitesnap compare` invocations can diff it against other runs.
//
// Design decision: Persistence is a separate step because:
// 1. It must run even when the crawl fails; the failure is part of history
// 2. The database handle is optional, so skipping persistence drops one
//    step instead of branching inside the crawl
// 3. Report output works the same with or without a database
type PersistStep struct {
	// db is the capture database. May be nil when persistence is disabled.
	db *database.CrawlDB

	// logger for structured logging.
	logger *slog.Logger
}

// PersistStepOption configures a PersistStep.
type PersistStepOption func(*PersistStep)

// WithPersistLogger sets a custom logger for the persist step.
func WithPersistLogger(logger *slog.Logger) PersistStepOption {
	return func(s *PersistStep) {
		s.logger = logger
	}
}

// NewPersistStep creates a new persistence step.
// A nil database turns the step into a no-op.
func NewPersistStep(db *database.CrawlDB, opts ...PersistStepOption) *PersistStep {
	s := &PersistStep{
		db:     db,
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Name returns the step name.
func (s *PersistStep) Name() string {
	return "persist"
}

// Do executes the persist step. A cancelled crawl still reaches this
// step, so the write runs on a context detached from cancellation.
func (s *PersistStep) Do(ctx context.Context, report *model.CrawlReport) error {
	if s.db == nil {
		s.logger.Debug("capture database disabled, skipping persist")
		return nil
	}

	if err := s.db.SaveRun(context.WithoutCancel(ctx), report); err != nil {
		return fmt.Errorf("save run %s: %w", report.RunID, err)
	}

	s.logger.Info("run recorded",
		"run_id", report.RunID,
		"base_scope", report.BaseScope,
		"pages", report.PageCount(),
	)
	return nil
}

// DefaultPipeline creates the standard pipeline for one target: crawl,
// then persist. This is what both the sequential and batch command paths
// execute.
//
// Design decision: We provide a default pipeline because:
// 1. The step wiring is identical for every target
// 2. Reduces boilerplate in the CLI
// 3. Ensures consistent ordering
//
// The pipeline continues on error so a crawl that fails or is cancelled
// still reaches the persist step; the failure stays recorded in the
// report. Extra options are applied after that default and may override it.
func DefaultPipeline(cfg *config.Config, db *database.CrawlDB, logger *slog.Logger, opts ...Option) *Pipeline {
	pipelineOpts := append([]Option{
		WithLogger(logger),
		WithContinueOnError(true),
	}, opts...)

	p := New(pipelineOpts...)
	p.AddSteps(
		NewCrawlStep(cfg, WithCrawlLogger(logger)),
		NewPersistStep(db, WithPersistLogger(logger)),
	)

	return p
}
