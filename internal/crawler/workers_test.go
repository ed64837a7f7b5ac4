package crawler

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sitesnap/sitesnap/internal/model"
	"github.com/sitesnap/sitesnap/internal/render"
	"github.com/sitesnap/sitesnap/internal/session"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// pageHTML builds a minimal page with the given title and anchors.
func pageHTML(title string, hrefs ...string) string {
	var sb strings.Builder
	sb.WriteString("<html><head><title>")
	sb.WriteString(title)
	sb.WriteString("</title></head><body>")
	for _, href := range hrefs {
		sb.WriteString(`<a href="`)
		sb.WriteString(href)
		sb.WriteString(`">link</a>`)
	}
	sb.WriteString("</body></html>")
	return sb.String()
}

// fakePage scripts the engine's behavior for one URL.
type fakePage struct {
	html        string
	finalURL    string
	status      int
	failures    int // first N renders fail with a transient error
	landOnLogin int // first N renders land on the login page
	delay       time.Duration
}

// fakeEngine is a render.Engine backed by a map of scripted pages.
type fakeEngine struct {
	mu       sync.Mutex
	pages    map[string]*fakePage
	calls    map[string]int
	loginURL string
}

func newFakeEngine(pages map[string]*fakePage) *fakeEngine {
	return &fakeEngine{
		pages:    pages,
		calls:    make(map[string]int),
		loginURL: "https://app.example.com/login?next=%2Fdashboard",
	}
}

func (e *fakeEngine) Render(ctx context.Context, rawURL string) (*render.Result, error) {
	e.mu.Lock()
	e.calls[rawURL]++
	n := e.calls[rawURL]
	page := e.pages[rawURL]
	e.mu.Unlock()

	if page == nil {
		return nil, render.Classify(rawURL, errors.New("net::ERR_NAME_NOT_RESOLVED"))
	}
	if page.delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(page.delay):
		}
	}
	if n <= page.failures {
		return nil, render.Classify(rawURL, errors.New("net::ERR_CONNECTION_REFUSED"))
	}
	if n <= page.failures+page.landOnLogin {
		return &render.Result{FinalURL: e.loginURL, StatusCode: 200, HTML: []byte(pageHTML("Sign in"))}, nil
	}

	final := page.finalURL
	if final == "" {
		final = rawURL
	}
	status := page.status
	if status == 0 {
		status = 200
	}
	return &render.Result{FinalURL: final, StatusCode: status, HTML: []byte(page.html)}, nil
}

func (e *fakeEngine) Close() error { return nil }

func (e *fakeEngine) renderCount(url string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls[url]
}

// authStub is a render.Authenticator that always succeeds (or always
// fails when failing is set) and counts logins.
type authStub struct {
	mu      sync.Mutex
	calls   int
	failing bool
	now     func() time.Time
}

func (a *authStub) Login(context.Context) (*render.AuthState, error) {
	a.mu.Lock()
	a.calls++
	failing := a.failing
	a.mu.Unlock()

	if failing {
		return nil, render.ErrLoginRejected
	}
	now := time.Now
	if a.now != nil {
		now = a.now
	}
	return &render.AuthState{
		LandedURL:     "https://app.example.com/home",
		EstablishedAt: now(),
	}, nil
}

func (a *authStub) callCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls
}

// fakeStore records saves in memory.
type fakeStore struct {
	mu    sync.Mutex
	saved []*model.CaptureResult
}

func (s *fakeStore) Save(_ context.Context, capture *model.CaptureResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved = append(s.saved, capture)
	return nil
}

func (s *fakeStore) saveCount(url string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.saved {
		if c.URL == url {
			n++
		}
	}
	return n
}

// poolFixture wires a pool over fakes with test-friendly timings.
type poolFixture struct {
	frontier *Frontier
	sessions *session.Manager
	auth     *authStub
	engine   *fakeEngine
	store    *fakeStore
	report   *model.CrawlReport
	pool     *Pool
}

func newPoolFixture(t *testing.T, pages map[string]*fakePage, patterns []string, maxDepth int, opts ...PoolOption) *poolFixture {
	t.Helper()

	classifier, err := NewClassifier("https://app.example.com", maxDepth, patterns)
	if err != nil {
		t.Fatalf("NewClassifier() error = %v", err)
	}

	f := &poolFixture{
		frontier: NewFrontier(classifier, discardLogger()),
		auth:     &authStub{},
		engine:   newFakeEngine(pages),
		store:    &fakeStore{},
		report:   model.NewCrawlReport("run-test", "https://app.example.com", "https://app.example.com/"),
	}
	f.sessions = session.NewManager(f.auth,
		session.WithBackoff(time.Millisecond),
		session.WithLogger(discardLogger()))

	base := []PoolOption{
		WithDelay(0),
		WithPollInterval(2 * time.Millisecond),
		WithRenderBackoff(time.Millisecond),
	}
	f.pool = NewPool(f.frontier, f.sessions, f.engine, f.store, f.report, discardLogger(),
		append(base, opts...)...)
	return f
}

func (f *poolFixture) establish(t *testing.T) {
	t.Helper()
	if err := f.sessions.Establish(context.Background()); err != nil {
		t.Fatalf("Establish() error = %v", err)
	}
}

func TestPoolDepthBound(t *testing.T) {
	t.Parallel()

	pages := map[string]*fakePage{
		"https://app.example.com/":  {html: pageHTML("Home", "/b", "/c")},
		"https://app.example.com/b": {html: pageHTML("B", "/d")},
		"https://app.example.com/c": {html: pageHTML("C")},
		"https://app.example.com/d": {html: pageHTML("D")},
	}
	f := newPoolFixture(t, pages, nil, 1, WithWorkers(2))
	f.establish(t)
	f.frontier.Seed("https://app.example.com/")

	if err := f.pool.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if got := f.pool.Visited(); got != 3 {
		t.Errorf("Visited() = %d, want 3", got)
	}
	if got := f.engine.renderCount("https://app.example.com/d"); got != 0 {
		t.Errorf("depth-2 page rendered %d times, want 0", got)
	}
	stats := f.frontier.Stats()
	if stats.Excluded["too_deep"] != 1 {
		t.Errorf("Excluded[too_deep] = %d, want 1", stats.Excluded["too_deep"])
	}
	if !f.frontier.Drained() {
		t.Error("frontier not drained after Run returned")
	}
}

func TestPoolExclusion(t *testing.T) {
	t.Parallel()

	pages := map[string]*fakePage{
		"https://app.example.com/":       {html: pageHTML("Home", "/logout", "/b")},
		"https://app.example.com/b":      {html: pageHTML("B")},
		"https://app.example.com/logout": {html: pageHTML("Logout")},
	}
	f := newPoolFixture(t, pages, []string{"/logout"}, 2, WithWorkers(2))
	f.establish(t)
	f.frontier.Seed("https://app.example.com/")

	if err := f.pool.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if got := f.engine.renderCount("https://app.example.com/logout"); got != 0 {
		t.Errorf("excluded page rendered %d times, want 0", got)
	}
	if got := f.frontier.Stats().Excluded["excluded"]; got != 1 {
		t.Errorf("Excluded[excluded] = %d, want 1", got)
	}
	if got := f.pool.Visited(); got != 2 {
		t.Errorf("Visited() = %d, want 2", got)
	}
	if got := f.store.saveCount("https://app.example.com/logout"); got != 0 {
		t.Errorf("excluded page saved %d times, want 0", got)
	}
}

func TestPoolRetriesTransientFailures(t *testing.T) {
	t.Parallel()

	pages := map[string]*fakePage{
		"https://app.example.com/":  {html: pageHTML("Home", "/b")},
		"https://app.example.com/b": {html: pageHTML("B"), failures: 2},
	}
	f := newPoolFixture(t, pages, nil, 1, WithWorkers(1), WithRenderRetries(2))
	f.establish(t)
	f.frontier.Seed("https://app.example.com/")

	if err := f.pool.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if got := f.engine.renderCount("https://app.example.com/b"); got != 3 {
		t.Errorf("renders of /b = %d, want 3 (two failures, one success)", got)
	}
	capture := f.report.FindPage("https://app.example.com/b")
	if capture == nil {
		t.Fatal("no capture recorded for /b")
	}
	if capture.Status != model.StatusSuccess {
		t.Errorf("capture status = %s, want SUCCESS", capture.Status)
	}
	if capture.Attempts != 3 {
		t.Errorf("capture attempts = %d, want 3", capture.Attempts)
	}
}

func TestPoolRecordsExhaustedFailures(t *testing.T) {
	t.Parallel()

	pages := map[string]*fakePage{
		"https://app.example.com/":  {html: pageHTML("Home", "/b", "/c")},
		"https://app.example.com/b": {html: pageHTML("B"), failures: 99},
		"https://app.example.com/c": {html: pageHTML("C")},
	}
	f := newPoolFixture(t, pages, nil, 1, WithWorkers(1), WithRenderRetries(2))
	f.establish(t)
	f.frontier.Seed("https://app.example.com/")

	if err := f.pool.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	capture := f.report.FindPage("https://app.example.com/b")
	if capture == nil {
		t.Fatal("no capture recorded for /b")
	}
	if capture.Status != model.StatusFailed {
		t.Errorf("capture status = %s, want FAILED", capture.Status)
	}
	if capture.FailReason == "" {
		t.Error("FailReason is empty for a failed capture")
	}
	if capture.Attempts != 3 {
		t.Errorf("capture attempts = %d, want 3", capture.Attempts)
	}

	// The crawl continued past the failing page.
	if got := f.pool.Visited(); got != 2 {
		t.Errorf("Visited() = %d, want 2", got)
	}
	if got := f.pool.Failed(); got != 1 {
		t.Errorf("Failed() = %d, want 1", got)
	}
}

func TestPoolSharedSessionRefresh(t *testing.T) {
	t.Parallel()

	pages := map[string]*fakePage{
		"https://app.example.com/a": {html: pageHTML("A")},
		"https://app.example.com/b": {html: pageHTML("B")},
		"https://app.example.com/c": {html: pageHTML("C")},
		"https://app.example.com/d": {html: pageHTML("D")},
	}

	classifier, err := NewClassifier("https://app.example.com", 2, nil)
	if err != nil {
		t.Fatalf("NewClassifier() error = %v", err)
	}
	frontier := NewFrontier(classifier, discardLogger())

	clock := struct {
		mu  sync.Mutex
		now time.Time
	}{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	nowFn := func() time.Time {
		clock.mu.Lock()
		defer clock.mu.Unlock()
		return clock.now
	}

	auth := &authStub{now: nowFn}
	sessions := session.NewManager(auth,
		session.WithTTL(10*time.Minute),
		session.WithClock(nowFn),
		session.WithBackoff(time.Millisecond),
		session.WithLogger(discardLogger()))
	if err := sessions.Establish(context.Background()); err != nil {
		t.Fatalf("Establish() error = %v", err)
	}

	engine := newFakeEngine(pages)
	store := &fakeStore{}
	report := model.NewCrawlReport("run-test", "https://app.example.com", "https://app.example.com/a")
	pool := NewPool(frontier, sessions, engine, store, report, discardLogger(),
		WithWorkers(4),
		WithDelay(0),
		WithPollInterval(2*time.Millisecond),
		WithRenderBackoff(time.Millisecond))

	for _, u := range []string{"a", "b", "c", "d"} {
		frontier.Push("https://app.example.com/"+u, 1, "")
	}

	// Expire the session before any worker starts: every worker will
	// notice at once, and exactly one re-login must run.
	clock.mu.Lock()
	clock.now = clock.now.Add(time.Hour)
	clock.mu.Unlock()

	if err := pool.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if got := auth.callCount(); got != 2 {
		t.Errorf("login calls = %d, want 2 (initial + one shared refresh)", got)
	}
	if got := sessions.Refreshes(); got != 1 {
		t.Errorf("Refreshes() = %d, want 1", got)
	}
	for _, u := range []string{"a", "b", "c", "d"} {
		full := "https://app.example.com/" + u
		if got := engine.renderCount(full); got != 1 {
			t.Errorf("renders of %s = %d, want 1", full, got)
		}
		if got := store.saveCount(full); got != 1 {
			t.Errorf("saves of %s = %d, want 1", full, got)
		}
	}
}

func TestPoolLoginRedirectRefresh(t *testing.T) {
	t.Parallel()

	pages := map[string]*fakePage{
		"https://app.example.com/":  {html: pageHTML("Home", "/b")},
		"https://app.example.com/b": {html: pageHTML("B"), landOnLogin: 1},
	}
	f := newPoolFixture(t, pages, nil, 1,
		WithWorkers(1),
		WithLoginURL("https://app.example.com/login"))
	f.establish(t)
	f.frontier.Seed("https://app.example.com/")

	if err := f.pool.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if got := f.engine.renderCount("https://app.example.com/b"); got != 2 {
		t.Errorf("renders of /b = %d, want 2 (login landing, then retry)", got)
	}
	if got := f.auth.callCount(); got != 2 {
		t.Errorf("login calls = %d, want 2 (initial + refresh after redirect)", got)
	}
	if got := f.sessions.Refreshes(); got != 1 {
		t.Errorf("Refreshes() = %d, want 1", got)
	}
	capture := f.report.FindPage("https://app.example.com/b")
	if capture == nil {
		t.Fatal("no capture recorded for /b")
	}
	if capture.Status != model.StatusSuccess {
		t.Errorf("capture status = %s, want SUCCESS after refresh", capture.Status)
	}
}

func TestPoolPageLimit(t *testing.T) {
	t.Parallel()

	pages := map[string]*fakePage{
		"https://app.example.com/":   {html: pageHTML("Home", "/p1", "/p2", "/p3", "/p4")},
		"https://app.example.com/p1": {html: pageHTML("P1")},
		"https://app.example.com/p2": {html: pageHTML("P2")},
		"https://app.example.com/p3": {html: pageHTML("P3")},
		"https://app.example.com/p4": {html: pageHTML("P4")},
	}
	f := newPoolFixture(t, pages, nil, 2, WithWorkers(1), WithPageLimit(2))
	f.establish(t)
	f.frontier.Seed("https://app.example.com/")

	if err := f.pool.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if got := f.pool.Visited(); got != 2 {
		t.Errorf("Visited() = %d, want 2", got)
	}
	if !f.pool.PageLimitReached() {
		t.Error("PageLimitReached() = false after hitting the cap")
	}
}

func TestPoolStopDispatch(t *testing.T) {
	t.Parallel()

	pages := map[string]*fakePage{
		"https://app.example.com/":  {html: pageHTML("Home", "/b", "/c"), delay: 50 * time.Millisecond},
		"https://app.example.com/b": {html: pageHTML("B")},
		"https://app.example.com/c": {html: pageHTML("C")},
	}
	f := newPoolFixture(t, pages, nil, 2, WithWorkers(1))
	f.establish(t)
	f.frontier.Seed("https://app.example.com/")

	done := make(chan error, 1)
	go func() {
		done <- f.pool.Run(context.Background())
	}()

	time.Sleep(10 * time.Millisecond)
	f.pool.StopDispatch()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("pool did not stop after StopDispatch")
	}

	// The in-flight seed finished; its links were never dispatched.
	if got := f.pool.Visited(); got != 1 {
		t.Errorf("Visited() = %d, want 1", got)
	}
	if got := f.engine.renderCount("https://app.example.com/b"); got != 0 {
		t.Errorf("renders of /b after stop = %d, want 0", got)
	}
}
