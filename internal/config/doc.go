// Package config provides configuration management for sitesnap.
//
// Configuration is populated from CLI flags, an optional YAML file with
// per-site overrides, and environment variables for credentials. The
// package defines sensible defaults for polite authenticated crawling and
// validates the assembled configuration before any browser is started.
//
// Design decision: Configuration is passed explicitly through the
// application via dependency injection rather than accessed through
// global state because:
//  1. Explicit dependencies make testing straightforward
//  2. Per-target overrides produce independent Config copies safely
//  3. There is no hidden coupling between packages and flag parsing
//
// Credentials are never stored in the YAML file; the file names the
// environment variables that hold them, and resolution happens at startup
// after an optional dotenv load.
package config
