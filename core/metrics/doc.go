// Package metrics defines the sinks that record sensor state changes for
// observability and history. Sinks like PromSink, InfluxSink, SQLiteSink and
// JSONLSink live in infra/metrics and register themselves with
// RegisterMetricsSink. NewMetricsSink returns a MultiSink automatically when
// multiple sinks are configured.
package metrics
