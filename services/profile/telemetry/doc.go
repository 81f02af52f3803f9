// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package telemetry is the incident-signal surface of the profile service.
//
// Every lookup leaves a trail an on-call engineer can follow: tags that name
// the active failure mode, breadcrumbs that mark a cache bypass, and captured
// exceptions for every failure. The Sink interface hides which backend
// receives them.
//
// # Backends
//
//   - NopSink: default when nothing is configured.
//   - OTelSink: tags become span attributes, breadcrumbs become span events,
//     exceptions are recorded on the active span and counted.
//   - SentrySink: forwards to the Sentry hub bound to the request context.
//   - Multi: fans out to several sinks.
//   - Recorder: in-memory sink for tests.
//
// # Provider Setup
//
// Init configures the global OpenTelemetry tracer and meter providers:
//
//	shutdown, err := telemetry.Init(ctx, telemetry.Config{ServiceName: telemetry.ServiceTag})
//	if err != nil {
//	    return fmt.Errorf("init telemetry: %w", err)
//	}
//	defer shutdown(context.Background())
//
// InitSentry does the same for Sentry and returns a NopSink when the DSN is
// empty.
//
// # Environment Variables
//
//   - OTEL_TRACES_EXPORTER: otlp, stdout, or none (default: none)
//   - OTEL_METRICS_EXPORTER: prometheus, stdout, or none (default: prometheus)
//   - OTEL_EXPORTER_OTLP_ENDPOINT: OTLP gRPC endpoint (default: localhost:4317)
//
// # Thread Safety
//
// All sinks are safe for concurrent use.
package telemetry
