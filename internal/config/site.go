package config

import (
	"fmt"
	"net/url"
)

// SiteConfig holds per-site configuration options.
// These override global defaults for specific hosts, letting one config
// file drive crawls of several applications with different login pages,
// credentials, and exclusions.
type SiteConfig struct {
	// LoginURL overrides where the login form is found.
	LoginURL string `yaml:"loginUrl,omitempty"`

	// UsernameEnv and PasswordEnv name the environment variables holding
	// this site's credentials.
	UsernameEnv string `yaml:"usernameEnv,omitempty"`
	PasswordEnv string `yaml:"passwordEnv,omitempty"`

	// Depth overrides the crawl depth bound for this site.
	Depth int `yaml:"depth,omitempty"`

	// ExcludePatterns replaces the global exclude patterns for this site.
	ExcludePatterns []string `yaml:"excludePatterns,omitempty"`

	// Delay overrides the politeness delay, e.g. "2s".
	Delay Duration `yaml:"delay,omitempty"`

	// MaxPages overrides the page cap. Zero keeps the global value.
	MaxPages int `yaml:"maxPages,omitempty"`

	// LoginSteps replaces the login sequence for this site.
	LoginSteps []LoginStep `yaml:"loginSteps,omitempty"`
}

// File represents the top-level structure of a .sitesnap.yaml config file.
//
// Example:
//
//	defaults:
//	  depth: 2
//	  excludePatterns:
//	    - "/logout"
//	sites:
//	  app.example.com:
//	    loginUrl: https://app.example.com/signin
//	    usernameEnv: APP_USER
//	    passwordEnv: APP_PASS
type File struct {
	// Sites maps a host name to its specific configuration.
	Sites map[string]SiteConfig `yaml:"sites,omitempty"`

	// Defaults applies to all sites unless overridden per site.
	Defaults SiteConfig `yaml:"defaults,omitempty"`
}

// GetSiteConfig returns the merged configuration for the given host.
// Site-specific values override defaults. A nil File yields a zero value,
// so callers don't need to special-case a missing config file.
func (f *File) GetSiteConfig(host string) SiteConfig {
	if f == nil {
		return SiteConfig{}
	}

	merged := f.Defaults
	site, ok := f.Sites[host]
	if !ok {
		return merged
	}

	if site.LoginURL != "" {
		merged.LoginURL = site.LoginURL
	}
	if site.UsernameEnv != "" {
		merged.UsernameEnv = site.UsernameEnv
	}
	if site.PasswordEnv != "" {
		merged.PasswordEnv = site.PasswordEnv
	}
	if site.Depth != 0 {
		merged.Depth = site.Depth
	}
	if len(site.ExcludePatterns) > 0 {
		merged.ExcludePatterns = site.ExcludePatterns
	}
	if site.Delay != 0 {
		merged.Delay = site.Delay
	}
	if site.MaxPages != 0 {
		merged.MaxPages = site.MaxPages
	}
	if len(site.LoginSteps) > 0 {
		merged.LoginSteps = site.LoginSteps
	}
	return merged
}

// ForTarget builds the effective configuration for one crawl target by
// applying any per-site overrides from the loaded config file. The returned
// Config is an independent copy; mutating it does not affect the original.
//
// When a site declares its own credential environment variables, they take
// precedence over globally supplied credentials.
func (c *Config) ForTarget(target string) (*Config, error) {
	u, err := url.Parse(target)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBaseURL, err)
	}

	run := *c
	run.Targets = []string{target}

	site := c.SiteConfigs.GetSiteConfig(u.Host)
	if site.LoginURL != "" {
		run.LoginURL = site.LoginURL
	}
	if site.Depth != 0 {
		run.MaxDepth = site.Depth
	}
	if len(site.ExcludePatterns) > 0 {
		run.ExcludePatterns = site.ExcludePatterns
	}
	if site.Delay != 0 {
		run.CrawlDelay = site.Delay.Std()
	}
	if site.MaxPages != 0 {
		run.MaxPages = site.MaxPages
	}
	if len(site.LoginSteps) > 0 {
		run.LoginSteps = site.LoginSteps
	}
	if site.UsernameEnv != "" {
		run.UsernameEnv = site.UsernameEnv
		run.Username = ""
	}
	if site.PasswordEnv != "" {
		run.PasswordEnv = site.PasswordEnv
		run.Password = ""
	}
	run.ResolveCredentials()

	return &run, nil
}
