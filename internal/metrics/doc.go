// Package metrics exposes Prometheus collectors for the alarm clock.
//
// Collectors are package-level and registered once with the default
// registry. Handler serves them over HTTP and Timer measures tick latency.
package metrics
