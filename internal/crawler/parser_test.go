package crawler

import (
	"strings"
	"testing"
)

// TestParser tests HTML parsing functionality.
func TestParser(t *testing.T) {
	t.Parallel()

	t.Run("extracts title", func(t *testing.T) {
		t.Parallel()

		html := `<html><head><title>Team Dashboard</title></head><body></body></html>`
		parser, err := NewParser("https://app.example.com/page")
		if err != nil {
			t.Fatalf("failed to create parser: %v", err)
		}

		result, err := parser.Parse(strings.NewReader(html))
		if err != nil {
			t.Fatalf("failed to parse: %v", err)
		}

		if result.Title != "Team Dashboard" {
			t.Errorf("expected title 'Team Dashboard', got %q", result.Title)
		}
	})

	t.Run("collapses whitespace in the title", func(t *testing.T) {
		t.Parallel()

		html := "<html><head><title>\n\tTeam\n\tDashboard  </title></head></html>"
		parser, err := NewParser("https://app.example.com")
		if err != nil {
			t.Fatalf("failed to create parser: %v", err)
		}

		result, err := parser.Parse(strings.NewReader(html))
		if err != nil {
			t.Fatalf("failed to parse: %v", err)
		}

		if result.Title != "Team Dashboard" {
			t.Errorf("expected collapsed title, got %q", result.Title)
		}
	})

	t.Run("extracts links in document order", func(t *testing.T) {
		t.Parallel()

		html := `<html><body>
			<a href="/reports">Reports</a>
			<a href="https://app.example.com/settings">Settings</a>
			<a href="profile">Profile</a>
		</body></html>`

		parser, err := NewParser("https://app.example.com/dashboard")
		if err != nil {
			t.Fatalf("failed to create parser: %v", err)
		}

		result, err := parser.Parse(strings.NewReader(html))
		if err != nil {
			t.Fatalf("failed to parse: %v", err)
		}

		want := []string{
			"https://app.example.com/reports",
			"https://app.example.com/settings",
			"https://app.example.com/profile",
		}
		if len(result.Links) != len(want) {
			t.Fatalf("expected %d links, got %d: %v", len(want), len(result.Links), result.Links)
		}
		for i, link := range want {
			if result.Links[i] != link {
				t.Errorf("link %d = %q, want %q", i, result.Links[i], link)
			}
		}
	})

	t.Run("deduplicates repeated links at their first position", func(t *testing.T) {
		t.Parallel()

		html := `<html><body>
			<a href="/a">A</a>
			<a href="/b">B</a>
			<a href="/a">A again</a>
		</body></html>`

		parser, err := NewParser("https://app.example.com")
		if err != nil {
			t.Fatalf("failed to create parser: %v", err)
		}

		result, err := parser.Parse(strings.NewReader(html))
		if err != nil {
			t.Fatalf("failed to parse: %v", err)
		}

		want := []string{"https://app.example.com/a", "https://app.example.com/b"}
		if len(result.Links) != len(want) {
			t.Fatalf("expected %d links, got %d: %v", len(want), len(result.Links), result.Links)
		}
		for i, link := range want {
			if result.Links[i] != link {
				t.Errorf("link %d = %q, want %q", i, result.Links[i], link)
			}
		}
	})

	t.Run("handles special link types", func(t *testing.T) {
		t.Parallel()

		html := `<html><body>
			<a href="javascript:void(0)">JS Link</a>
			<a href="mailto:ops@example.com">Email</a>
			<a href="tel:+1234567890">Phone</a>
			<a href="#section">Anchor</a>
			<a href="about:blank">About</a>
			<a href="/valid">Valid</a>
		</body></html>`

		parser, err := NewParser("https://app.example.com")
		if err != nil {
			t.Fatalf("failed to create parser: %v", err)
		}

		result, err := parser.Parse(strings.NewReader(html))
		if err != nil {
			t.Fatalf("failed to parse: %v", err)
		}

		// Only /valid should be extracted
		if len(result.Links) != 1 {
			t.Errorf("expected 1 valid link, got %d: %v", len(result.Links), result.Links)
		}
	})

	t.Run("resolves relative links against the page URL", func(t *testing.T) {
		t.Parallel()

		html := `<html><body><a href="detail">Detail</a><a href="../up">Up</a></body></html>`
		parser, err := NewParser("https://app.example.com/reports/weekly")
		if err != nil {
			t.Fatalf("failed to create parser: %v", err)
		}

		result, err := parser.Parse(strings.NewReader(html))
		if err != nil {
			t.Fatalf("failed to parse: %v", err)
		}

		want := []string{
			"https://app.example.com/reports/detail",
			"https://app.example.com/up",
		}
		if len(result.Links) != len(want) {
			t.Fatalf("expected %d links, got %d: %v", len(want), len(result.Links), result.Links)
		}
		for i, link := range want {
			if result.Links[i] != link {
				t.Errorf("link %d = %q, want %q", i, result.Links[i], link)
			}
		}
	})

	t.Run("tolerates malformed HTML", func(t *testing.T) {
		t.Parallel()

		html := `<html><body><a href="/ok">unclosed <div><p>text<a href="/also-ok">second`
		parser, err := NewParser("https://app.example.com")
		if err != nil {
			t.Fatalf("failed to create parser: %v", err)
		}

		result, err := parser.Parse(strings.NewReader(html))
		if err != nil {
			t.Fatalf("failed to parse: %v", err)
		}

		if len(result.Links) != 2 {
			t.Errorf("expected 2 links from malformed HTML, got %d: %v", len(result.Links), result.Links)
		}
	})

	t.Run("empty document yields no links and no title", func(t *testing.T) {
		t.Parallel()

		parser, err := NewParser("https://app.example.com")
		if err != nil {
			t.Fatalf("failed to create parser: %v", err)
		}

		result, err := parser.Parse(strings.NewReader(""))
		if err != nil {
			t.Fatalf("failed to parse: %v", err)
		}

		if result.Title != "" {
			t.Errorf("expected empty title, got %q", result.Title)
		}
		if len(result.Links) != 0 {
			t.Errorf("expected no links, got %v", result.Links)
		}
	})
}
