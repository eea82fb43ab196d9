// Package scrape reads a running bridge's /metrics endpoint and reduces the
// Prometheus text exposition to the handful of numbers an operator checks.
//
// New(url) returns a Client; Client.Scrape(ctx) fetches and parses one
// sample. Parse can be used directly on any exposition stream. Families that
// are absent from the scrape read as zero.
package scrape
