// Package main provides the entry point for the sitesnap CLI.
//
// sitesnap logs in to an authenticated web application, crawls it up to a
// bounded depth, and captures rendered HTML and screenshots for each page.
//
// Usage:
//
//	sitesnap crawl https://app.example.com
//	sitesnap compare https://app.example.com
//
// See --help for all available options.
package main

// main is the entry point for sitesnap.
func main() {
	Execute()
}
