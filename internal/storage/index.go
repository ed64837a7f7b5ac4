package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sitesnap/sitesnap/internal/model"
)

// pageIndex is the serialized form of page_index.json: run metadata at
// the top, one entry per capture in completion order.
type pageIndex struct {
	RunID       string       `json:"run_id"`
	StartURL    string       `json:"start_url,omitempty"`
	GeneratedAt time.Time    `json:"generated_at"`
	PageCount   int          `json:"page_count"`
	Pages       []IndexEntry `json:"pages"`
}

// IndexEntry records where one capture landed on disk, plus enough
// metadata to browse a run without opening the database.
type IndexEntry struct {
	URL            string    `json:"url"`
	FinalURL       string    `json:"final_url,omitempty"`
	Title          string    `json:"title,omitempty"`
	Depth          int       `json:"depth"`
	Status         string    `json:"status"`
	StatusCode     int       `json:"status_code,omitempty"`
	FailReason     string    `json:"fail_reason,omitempty"`
	ContentHash    string    `json:"content_hash,omitempty"`
	HTMLFile       string    `json:"html_file,omitempty"`
	ScreenshotFile string    `json:"screenshot_file,omitempty"`
	CapturedAt     time.Time `json:"captured_at"`
}

func newIndexEntry(capture *model.CaptureResult) IndexEntry {
	return IndexEntry{
		URL:            capture.URL,
		FinalURL:       capture.FinalURL,
		Title:          capture.Title,
		Depth:          capture.Depth,
		Status:         capture.Status.String(),
		StatusCode:     capture.StatusCode,
		FailReason:     capture.FailReason,
		ContentHash:    capture.ContentHash,
		HTMLFile:       capture.HTMLFile,
		ScreenshotFile: capture.ScreenshotFile,
		CapturedAt:     capture.CapturedAt,
	}
}

// writeIndex renders page_index.json for the run. Called once from
// Close after the writer goroutine has exited.
func (s *FileStore) writeIndex() error {
	pages := s.index
	if pages == nil {
		pages = []IndexEntry{}
	}

	idx := pageIndex{
		RunID:       s.runID,
		StartURL:    s.startURL,
		GeneratedAt: time.Now(),
		PageCount:   len(pages),
		Pages:       pages,
	}

	data, err := json.MarshalIndent(idx, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal page index: %w", err)
	}

	target := filepath.Join(s.runDir, indexName)
	if err := os.WriteFile(target, data, 0o600); err != nil {
		return fmt.Errorf("failed to write page index: %w", err)
	}
	return nil
}
