package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"path"
	"strings"
)

// maxBaseLength caps the readable portion of generated filenames so URLs
// with very long final path segments stay within filesystem name limits.
const maxBaseLength = 80

// safeFilename derives a filesystem-safe name for the capture of rawURL.
// The last path segment is kept for readability ("index" when the path
// has none), a short prefix of the URL hash is appended so same-named
// pages under different paths never collide, and ext decides the suffix
// regardless of what the URL itself carries.
//
//	https://app.example.com/reports/daily -> daily_1a2b3c4d.html
//	https://app.example.com/              -> index_9f8e7d6c.html
func safeFilename(rawURL, ext string) string {
	base := "index"
	if u, err := url.Parse(rawURL); err == nil {
		if seg := path.Base(u.Path); seg != "" && seg != "/" && seg != "." {
			base = seg
		}
	}

	// The artifact type decides the extension; a segment like report.php
	// keeps only its stem.
	if i := strings.LastIndex(base, "."); i > 0 {
		base = base[:i]
	}

	base = sanitizeName(base)
	if len(base) > maxBaseLength {
		base = base[:maxBaseLength]
	}

	return base + "_" + urlHash(rawURL)[:8] + ext
}

// urlHash returns the hex SHA-256 of the normalized URL. The hash is
// content-independent so a page keeps its filename across runs.
func urlHash(rawURL string) string {
	sum := sha256.Sum256([]byte(rawURL))
	return hex.EncodeToString(sum[:])
}

// sanitizeName replaces every character outside [A-Za-z0-9._-] with '_'.
func sanitizeName(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z',
			r >= 'A' && r <= 'Z',
			r >= '0' && r <= '9',
			r == '.', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}
