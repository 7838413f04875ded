// Package metrics defines the sinks that observe a fleet run. Every sink
// records auction outcomes; optional recorder interfaces cover negotiations,
// deliveries, route changes and run summaries. Sinks are created from
// configuration through a registry and combined with NewMultiSink when more
// than one is configured.
package metrics
