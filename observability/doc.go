// Package observability provides the process-wide Tracer and MetricsCollector
// used to instrument orchestration passes. Both types are safe for concurrent
// use and are intended to be shared by all runners in a process via explicit
// injection rather than package-level globals. A Prometheus bridge exposes the
// collector's snapshot over HTTP for scraping.
package observability
