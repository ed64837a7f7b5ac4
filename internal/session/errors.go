package session

import "fmt"

// AuthError reports that the login flow failed on every allowed attempt.
//
// Authentication failure is fatal to the crawl: without a session every
// subsequent render would capture login pages, so the orchestrator stops
// the run instead of retrying page by page. Callers detect it with
// errors.As and read Attempts for the summary.
type AuthError struct {
	// Attempts is the total number of login attempts made, including
	// the first try.
	Attempts int

	// Err is the error from the last attempt.
	Err error
}

// Error implements the error interface.
func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication failed after %d attempts: %v", e.Attempts, e.Err)
}

// Unwrap returns the error from the last login attempt.
func (e *AuthError) Unwrap() error {
	return e.Err
}
