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
	"sync"
	"time"
)

// Tag is one recorded SetTag call.
type Tag struct {
	Key   string
	Value string
}

// Recorder is an in-memory Sink used by tests across the service.
//
// Thread Safety: Safe for concurrent use.
type Recorder struct {
	mu          sync.Mutex
	tags        []Tag
	breadcrumbs []Breadcrumb
	exceptions  []error
}

var _ Sink = (*Recorder)(nil)

// NewRecorder returns an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) SetTag(_ context.Context, key, value string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tags = append(r.tags, Tag{Key: key, Value: value})
}

func (r *Recorder) AddBreadcrumb(_ context.Context, b Breadcrumb) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.breadcrumbs = append(r.breadcrumbs, b)
}

func (r *Recorder) CaptureException(_ context.Context, err error) {
	if err == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.exceptions = append(r.exceptions, err)
}

func (r *Recorder) Flush(time.Duration) bool { return true }

// Tags returns a copy of every recorded tag in call order.
func (r *Recorder) Tags() []Tag {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Tag(nil), r.tags...)
}

// TagValues returns the values recorded for key in call order.
func (r *Recorder) TagValues(key string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, t := range r.tags {
		if t.Key == key {
			out = append(out, t.Value)
		}
	}
	return out
}

// Breadcrumbs returns a copy of every recorded breadcrumb.
func (r *Recorder) Breadcrumbs() []Breadcrumb {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Breadcrumb(nil), r.breadcrumbs...)
}

// Exceptions returns a copy of every captured error.
func (r *Recorder) Exceptions() []error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]error(nil), r.exceptions...)
}

// Reset forgets everything recorded so far.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tags = nil
	r.breadcrumbs = nil
	r.exceptions = nil
}
