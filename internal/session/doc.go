// Package session maintains the authenticated browser session for a crawl.
//
// The Manager owns session lifecycle: it establishes the session through
// the login flow with bounded retries, estimates when the session will
// expire, and refreshes it on demand. Render workers call EnsureValid
// before every page; when the session has gone stale, exactly one refresh
// runs no matter how many workers notice at the same time.
//
// Design decision: Refresh coalescing uses singleflight rather than a
// plain mutex because:
//  1. Workers that arrive during a refresh wait for its result instead of
//     queueing up their own logins
//  2. The winner's error propagates to every waiter, so a failed refresh
//     fails all pending pages consistently
//  3. A fresh session swap is atomic; readers never observe a half-built
//     session
//
// Validity is a heuristic, not a probe: the manager assumes the session
// lives for the configured TTL, refined downward by the earliest session
// cookie expiry observed at login. A worker that still lands on the login
// page calls Invalidate to force the next refresh early.
package session
