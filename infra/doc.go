// Package infra groups the adapters of the fleet: the zerolog logger, the
// Paho MQTT client, the Prometheus and InfluxDB metrics sinks, the KPI store
// and the Sentry reporter. They implement interfaces declared under core.
package infra
