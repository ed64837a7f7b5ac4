package model

// CrawlTask is a unit of crawl work: one URL to render at a known depth.
// Tasks are immutable values; the frontier hands out copies and nothing
// mutates a task after it is enqueued.
type CrawlTask struct {
	// URL is the normalized absolute URL to render.
	URL string `json:"url"`

	// Depth is the breadth-first distance from the seed (the seed is depth 0).
	Depth int `json:"depth"`

	// Referrer is the normalized URL of the page that discovered this one.
	// Empty for the seed.
	Referrer string `json:"referrer,omitempty"`
}
