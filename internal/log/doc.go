// Package log provides secure logging functionality with automatic sanitization
// of sensitive information, built on top of the standard slog package.
//
// This package extends slog to provide:
//   - Automatic sanitization of sensitive values (credentials, cookies, tokens)
//   - Masking of secret query parameters in logged URLs
//   - Configurable log levels with verbose mode support
//   - Consistent log formatting across the application
//
// # Security Features
//
// The SecureHandler automatically sanitizes sensitive information in log output:
//   - Login credentials (username, password) and HTTP auth headers
//   - Secret values detected by pattern matching (JWTs, bearer tokens, keys)
//   - Session identifiers and authentication tokens
//   - Session tokens embedded in URL query strings; an authenticated crawl
//     logs URLs constantly, and those URLs may carry the session
//
// Even in verbose mode, sensitive values are masked to prevent accidental
// exposure of secrets in logs that may be shared or stored.
//
// # Usage
//
//	// Create a secure logger
//	logger := log.NewSecureLogger(os.Stderr, true) // verbose=true
//
//	// Use as a standard slog.Logger
//	logger.Info("page rendered",
//	    "cookie", "session=abc123",  // Will be sanitized
//	    "url", "https://app.example.com/dashboard",
//	)
//
//	// Set as default logger
//	slog.SetDefault(logger)
package log
