// Package main provides the entry point for the sitewalk CLI.
//
// Sitewalk drives a headless browser breadth-first across a site,
// recording per-page element inventories, screenshots, and the link
// graph between pages.
//
// Usage:
//
//	sitewalk crawl <seed-url>
//	sitewalk serve
//
// See --help for all available options.
package main

// main is the entry point for sitewalk.
func main() {
	Execute()
}
