// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package telemetry

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// OTelSink maps sink calls onto the span carried by the context.
//
// # Description
//
// Tags become span attributes, breadcrumbs become span events named after
// the breadcrumb message, and exceptions are recorded with RecordError and
// mark the span as failed. Calls made outside a recording span are dropped
// by the OTel API itself. Captured exceptions and breadcrumbs are also
// counted on the supplied meter so they show up on /metrics.
//
// # Thread Safety
//
// Safe for concurrent use.
type OTelSink struct {
	exceptions  metric.Int64Counter
	breadcrumbs metric.Int64Counter
}

var _ Sink = (*OTelSink)(nil)

// NewOTelSink creates an OTelSink whose counters are registered on meter.
//
// # Inputs
//
//   - meter: Meter used for the exception and breadcrumb counters.
//
// # Outputs
//
//   - *OTelSink: Ready sink.
//   - error: Non-nil when a counter cannot be created.
//
// # Examples
//
//	sink, err := telemetry.NewOTelSink(otel.Meter("mocksre"))
func NewOTelSink(meter metric.Meter) (*OTelSink, error) {
	exceptions, err := meter.Int64Counter(
		"mocksre_telemetry_exceptions",
		metric.WithDescription("Exceptions captured by the telemetry sink"),
		metric.WithUnit("{exception}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create exceptions counter: %w", err)
	}

	breadcrumbs, err := meter.Int64Counter(
		"mocksre_telemetry_breadcrumbs",
		metric.WithDescription("Breadcrumbs recorded by the telemetry sink"),
		metric.WithUnit("{breadcrumb}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create breadcrumbs counter: %w", err)
	}

	return &OTelSink{exceptions: exceptions, breadcrumbs: breadcrumbs}, nil
}

func (s *OTelSink) SetTag(ctx context.Context, key, value string) {
	trace.SpanFromContext(ctx).SetAttributes(attribute.String(key, value))
}

func (s *OTelSink) AddBreadcrumb(ctx context.Context, b Breadcrumb) {
	attrs := []attribute.KeyValue{
		attribute.String("breadcrumb.category", b.Category),
		attribute.String("breadcrumb.level", string(b.Level)),
	}
	attrs = append(attrs, dataAttributes(b.Data)...)
	trace.SpanFromContext(ctx).AddEvent(b.Message, trace.WithAttributes(attrs...))

	s.breadcrumbs.Add(ctx, 1, metric.WithAttributes(attribute.String("category", b.Category)))
}

func (s *OTelSink) CaptureException(ctx context.Context, err error) {
	if err == nil {
		return
	}
	span := trace.SpanFromContext(ctx)
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())

	s.exceptions.Add(ctx, 1, metric.WithAttributes(attribute.String("type", fmt.Sprintf("%T", err))))
}

// Flush is a no-op. Span export is flushed by the tracer provider shutdown.
func (s *OTelSink) Flush(time.Duration) bool { return true }

// dataAttributes converts breadcrumb data into span attributes prefixed with
// "breadcrumb.data.", in key order.
func dataAttributes(data map[string]any) []attribute.KeyValue {
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]attribute.KeyValue, 0, len(keys))
	for _, k := range keys {
		key := "breadcrumb.data." + k
		switch v := data[k].(type) {
		case string:
			out = append(out, attribute.String(key, v))
		case int:
			out = append(out, attribute.Int(key, v))
		case int64:
			out = append(out, attribute.Int64(key, v))
		case float64:
			out = append(out, attribute.Float64(key, v))
		case bool:
			out = append(out, attribute.Bool(key, v))
		default:
			out = append(out, attribute.String(key, fmt.Sprint(v)))
		}
	}
	return out
}
