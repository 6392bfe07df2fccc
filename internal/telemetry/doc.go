// Package telemetry wires the OpenTelemetry SDK for trace export. When
// telemetry is disabled no exporter is created and the global provider
// stays noop, so engine spans cost nothing.
package telemetry
