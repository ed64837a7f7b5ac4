// Package render drives a real browser to log in to a target application
// and capture fully rendered pages.
//
// The package exposes two narrow interfaces: Authenticator performs the
// scripted login sequence, and Engine renders individual pages in the
// authenticated browser. Both are implemented by Chrome, which runs a
// headless Chromium instance through the DevTools protocol.
//
// Design decision: All page fetching goes through the browser rather than a
// plain HTTP client because:
//  1. The applications being captured render their content with JavaScript;
//     raw HTML from an HTTP GET is often an empty shell
//  2. Login flows set cookies through scripts and redirects that only a real
//     browser executes faithfully
//  3. Screenshots require a rendering engine anyway
//
// One browser process serves the whole crawl. Each page render opens a
// fresh tab against the shared browser so session cookies established by
// the login flow are visible everywhere, while tab-level state (pending
// navigations, dialogs) stays isolated per page.
package render
