package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/sitesnap/sitesnap/internal/config"
	"github.com/sitesnap/sitesnap/internal/model"
)

// ErrStoreClosed is returned by Save once Close has begun. Late captures
// from abandoned workers hit this instead of being written.
var ErrStoreClosed = errors.New("capture store is closed")

// runDirLayout names run directories by start time; a short run ID
// suffix keeps batch runs started in the same second apart.
const runDirLayout = "2006-01-02_15-04-05"

const (
	htmlDirName  = "html"
	shotsDirName = "screenshots"
	indexName    = "page_index.json"
)

// FileStore persists the captures of one crawl run.
// See the package documentation for the directory layout and the
// ownership rules around Save and Close.
type FileStore struct {
	runID    string
	startURL string
	runDir   string
	logger   *slog.Logger

	queue chan *model.CaptureResult
	quit  chan struct{}
	done  chan struct{}

	closed atomic.Bool

	// Owned by the writer goroutine until done is closed.
	index    []IndexEntry
	failures int
	firstErr error
}

// Option configures a FileStore.
type Option func(*FileStore)

// WithBufferSize sets the capacity of the capture queue. Workers block
// on Save once the queue is full.
func WithBufferSize(n int) Option {
	return func(s *FileStore) {
		if n > 0 {
			s.queue = make(chan *model.CaptureResult, n)
		}
	}
}

// WithStartURL records the crawl's start URL in the page index.
func WithStartURL(rawURL string) Option {
	return func(s *FileStore) {
		s.startURL = rawURL
	}
}

// NewFileStore creates the run directory under root and starts the
// writer goroutine. The caller must Close the store to flush queued
// captures and write the page index.
func NewFileStore(root, runID string, logger *slog.Logger, opts ...Option) (*FileStore, error) {
	if logger == nil {
		logger = slog.Default()
	}

	suffix := runID
	if len(suffix) > 8 {
		suffix = suffix[:8]
	}
	runDir := filepath.Join(root, time.Now().Format(runDirLayout)+"_"+suffix)

	s := &FileStore{
		runID:  runID,
		runDir: runDir,
		logger: logger,
		queue:  make(chan *model.CaptureResult, config.DefaultStoreBuffer),
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	for _, dir := range []string{runDir, filepath.Join(runDir, htmlDirName), filepath.Join(runDir, shotsDirName)} {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create run directory: %w", err)
		}
	}

	go s.run()

	s.logger.Info("capture store ready", "run_dir", runDir)
	return s, nil
}

// RunDir returns the absolute run directory captures are written to.
func (s *FileStore) RunDir() string {
	return s.runDir
}

// Save queues the capture for persistence. It blocks when the queue is
// full, which backpressures the workers instead of dropping captures.
// The store owns the capture until Close returns.
func (s *FileStore) Save(ctx context.Context, capture *model.CaptureResult) error {
	if capture == nil {
		return nil
	}
	if s.closed.Load() {
		return ErrStoreClosed
	}

	// Cancellation only matters while blocked; a capture that fits the
	// queue is always accepted.
	select {
	case s.queue <- capture:
		return nil
	default:
	}

	select {
	case s.queue <- capture:
		return nil
	case <-s.quit:
		return ErrStoreClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close drains queued captures, writes the page index, and stops the
// writer. It is safe to call more than once; later calls return nil.
func (s *FileStore) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}

	close(s.quit)
	<-s.done

	if err := s.writeIndex(); err != nil {
		return err
	}
	if s.failures > 0 {
		return fmt.Errorf("%d capture write(s) failed: %w", s.failures, s.firstErr)
	}
	return nil
}

// run is the writer goroutine. It persists captures until quit closes,
// then drains whatever is still queued before exiting.
func (s *FileStore) run() {
	defer close(s.done)

	for {
		select {
		case capture := <-s.queue:
			s.persist(capture)
		case <-s.quit:
			for {
				select {
				case capture := <-s.queue:
					s.persist(capture)
				default:
					return
				}
			}
		}
	}
}

// persist writes the capture's bodies, records the index entry, and
// releases the in-memory bytes. Write failures are logged and counted;
// the entry is still indexed so the page's metadata survives.
func (s *FileStore) persist(capture *model.CaptureResult) {
	if len(capture.HTML) > 0 {
		name := safeFilename(capture.URL, ".html")
		if err := s.writeFile(filepath.Join(htmlDirName, name), capture.HTML); err != nil {
			s.recordFailure(capture.URL, err)
		} else {
			capture.HTMLFile = path.Join(htmlDirName, name)
		}
	}

	if len(capture.Screenshot) > 0 {
		name := safeFilename(capture.URL, ".png")
		if err := s.writeFile(filepath.Join(shotsDirName, name), capture.Screenshot); err != nil {
			s.recordFailure(capture.URL, err)
		} else {
			capture.ScreenshotFile = path.Join(shotsDirName, name)
		}
	}

	s.index = append(s.index, newIndexEntry(capture))
	capture.ReleaseBodies()

	s.logger.Debug("capture persisted",
		"url", capture.URL,
		"html_file", capture.HTMLFile,
		"screenshot_file", capture.ScreenshotFile)
}

// writeFile writes one artifact under the run directory. Captures of an
// authenticated session are kept owner-readable only.
func (s *FileStore) writeFile(relPath string, data []byte) error {
	target := filepath.Join(s.runDir, relPath)
	if err := os.WriteFile(target, data, 0o600); err != nil {
		return fmt.Errorf("failed to write capture file: %w", err)
	}
	return nil
}

func (s *FileStore) recordFailure(url string, err error) {
	s.failures++
	if s.firstErr == nil {
		s.firstErr = err
	}
	s.logger.Error("capture write failed", "url", url, "error", err)
}
