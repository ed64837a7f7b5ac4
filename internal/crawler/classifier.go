package crawler

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
)

// Verdict is the classifier's decision for a discovered URL.
type Verdict int

const (
	// VerdictAccept means the URL is in scope and should be crawled.
	VerdictAccept Verdict = iota

	// VerdictDuplicate means the URL was already enqueued this run.
	// Produced by the frontier, never by the classifier itself.
	VerdictDuplicate

	// VerdictTooDeep means the URL lies beyond the depth bound.
	VerdictTooDeep

	// VerdictOutOfScope means the URL leaves the base scheme+host scope.
	VerdictOutOfScope

	// VerdictExcluded means an exclude pattern matched the URL path.
	VerdictExcluded

	// VerdictInvalid means the URL could not be parsed or uses a scheme
	// the crawler cannot render.
	VerdictInvalid
)

// String returns the serialized identifier for the verdict. The strings
// double as keys in the summary's exclusion breakdown.
func (v Verdict) String() string {
	switch v {
	case VerdictAccept:
		return "accept"
	case VerdictDuplicate:
		return "duplicate"
	case VerdictTooDeep:
		return "too_deep"
	case VerdictOutOfScope:
		return "out_of_scope"
	case VerdictExcluded:
		return "excluded"
	case VerdictInvalid:
		return "invalid"
	default:
		return "unknown"
	}
}

// Rejected reports whether the verdict excludes the URL from the crawl.
// Duplicates are not rejections: the URL was accepted the first time.
func (v Verdict) Rejected() bool {
	switch v {
	case VerdictTooDeep, VerdictOutOfScope, VerdictExcluded, VerdictInvalid:
		return true
	default:
		return false
	}
}

// Classification is the classifier's full answer for one URL.
type Classification struct {
	// URL is the normalized form. Empty when normalization never ran
	// (depth rejections) or failed (invalid URLs).
	URL string

	// Verdict is the decision.
	Verdict Verdict

	// Pattern is the exclude pattern that matched, for excluded URLs.
	Pattern string
}

// Classifier decides which discovered URLs belong to the crawl.
//
// It is pure: no I/O, no mutable state, safe for concurrent use. The
// frontier owns visit deduplication; the classifier only answers whether
// a URL is in scope.
//
// Rules apply in order: depth bound, origin scope, exclude patterns,
// normalize and accept. Normalization runs before the scope and pattern
// checks so they see the canonical form; the rule order above decides
// which rejection is reported when several apply.
type Classifier struct {
	scheme   string
	host     string
	base     *url.URL
	maxDepth int
	patterns []string
}

// NewClassifier builds a classifier scoped to the scheme+host of baseURL.
// Exclude patterns are matched against URL paths in the order given,
// first match wins.
func NewClassifier(baseURL string, maxDepth int, patterns []string) (*Classifier, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base URL %q: %w", baseURL, err)
	}
	c := &Classifier{maxDepth: maxDepth, patterns: patterns}
	canonicalize(base)
	if (base.Scheme != "http" && base.Scheme != "https") || base.Host == "" {
		return nil, fmt.Errorf("base URL %q is not an absolute http(s) URL", baseURL)
	}
	c.scheme = base.Scheme
	c.host = base.Host
	c.base = base
	return c, nil
}

// Scope returns the scheme://host boundary the classifier enforces.
func (c *Classifier) Scope() string {
	return c.scheme + "://" + c.host
}

// MaxDepth returns the configured depth bound.
func (c *Classifier) MaxDepth() int {
	return c.maxDepth
}

// Classify decides whether rawURL, discovered at the given depth, belongs
// to the crawl. The returned Classification carries the normalized URL
// whenever normalization succeeded, even for rejections.
func (c *Classifier) Classify(rawURL string, depth int) Classification {
	return c.classify(rawURL, depth, false)
}

// classify implements Classify. ignorePatterns is the seed's privilege:
// the operator explicitly asked for that URL, so exclude patterns do not
// apply to it. Scope and depth rules still do.
func (c *Classifier) classify(rawURL string, depth int, ignorePatterns bool) Classification {
	if depth > c.maxDepth {
		return Classification{Verdict: VerdictTooDeep}
	}

	u, err := c.normalize(rawURL)
	if err != nil {
		return Classification{Verdict: VerdictInvalid}
	}
	normalized := u.String()

	if u.Scheme != c.scheme || u.Host != c.host {
		return Classification{URL: normalized, Verdict: VerdictOutOfScope}
	}

	if !ignorePatterns {
		for _, pattern := range c.patterns {
			if matchPattern(pattern, u.Path) {
				return Classification{URL: normalized, Verdict: VerdictExcluded, Pattern: pattern}
			}
		}
	}

	return Classification{URL: normalized, Verdict: VerdictAccept}
}

// Normalize returns the canonical form of rawURL: resolved against the
// base scope when relative, fragment stripped, scheme and host lowercased,
// default ports dropped, query parameters sorted, trailing slashes
// trimmed, empty path replaced by "/".
func (c *Classifier) Normalize(rawURL string) (string, error) {
	u, err := c.normalize(rawURL)
	if err != nil {
		return "", err
	}
	return u.String(), nil
}

func (c *Classifier) normalize(rawURL string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return nil, fmt.Errorf("parse URL %q: %w", rawURL, err)
	}
	if !u.IsAbs() {
		u = c.base.ResolveReference(u)
	}
	canonicalize(u)
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported scheme %q in %q", u.Scheme, rawURL)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("missing host in %q", rawURL)
	}
	return u, nil
}

// canonicalize rewrites u into its canonical form in place.
func canonicalize(u *url.URL) {
	u.Scheme = strings.ToLower(u.Scheme)

	host := strings.ToLower(u.Hostname())
	if port := u.Port(); port != "" && !isDefaultPort(u.Scheme, port) {
		host += ":" + port
	}
	u.Host = host

	u.Fragment = ""
	u.RawFragment = ""
	u.ForceQuery = false
	if u.RawQuery != "" {
		// Encode sorts by key, giving one canonical parameter order.
		u.RawQuery = u.Query().Encode()
	}

	path := strings.TrimRight(u.Path, "/")
	if path == "" {
		path = "/"
	}
	u.Path = path
	u.RawPath = ""
}

func isDefaultPort(scheme, port string) bool {
	return (scheme == "http" && port == "80") || (scheme == "https" && port == "443")
}

// matchPattern checks if a URL path matches an exclude pattern.
// Patterns can use:
//   - * to match any sequence of non-separator characters
//   - ? to match any single character
//   - "/prefix/*" to cover a whole subtree
//   - "*.ext" to match by file extension anywhere in the tree
//   - a bare word without glob characters to match as a substring
//
// Examples:
//   - "/admin/*" matches "/admin/dashboard" and "/admin/users/5"
//   - "*.pdf" matches "/docs/file.pdf"
//   - "logout" matches "/logout", "/auth/logout", "/logout/confirm"
func matchPattern(pattern, path string) bool {
	if pattern == "" {
		return false
	}

	// Subtree patterns like "/admin/*" should cover nested paths too,
	// which filepath.Match alone won't do.
	if strings.HasSuffix(pattern, "/*") {
		prefix := strings.TrimSuffix(pattern, "/*")
		if path == prefix || strings.HasPrefix(path, prefix+"/") {
			return true
		}
	}

	// Extension patterns like "*.pdf" apply anywhere in the tree.
	if strings.HasPrefix(pattern, "*.") {
		if strings.HasSuffix(path, strings.TrimPrefix(pattern, "*")) {
			return true
		}
	}

	if matched, err := filepath.Match(pattern, path); err == nil && matched {
		return true
	}

	// Slash-free glob patterns also try the final path segment.
	if strings.Contains(pattern, "*") && !strings.Contains(pattern, "/") {
		if matched, err := filepath.Match(pattern, filepath.Base(path)); err == nil && matched {
			return true
		}
	}

	// Bare words fall back to substring matching, so "logout" covers
	// /logout, /auth/logout, and /logout/confirm alike.
	if !strings.ContainsAny(pattern, "*?[") {
		return strings.Contains(path, pattern)
	}

	return false
}
