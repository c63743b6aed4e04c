// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package auditlog persists audit events and forwards them to the live
// activity feed.
package auditlog

import (
	"context"
	"fmt"

	"github.com/AleutianAI/ResourceHub/pkg/extensions"
	"github.com/AleutianAI/ResourceHub/services/resourcehub/observability"
	"github.com/AleutianAI/ResourceHub/services/resourcehub/store"
)

// Publisher receives every event after it has been persisted.
// *activity.Hub satisfies it.
type Publisher interface {
	Publish(e extensions.AuditEvent)
}

// Option configures a StoreLogger.
type Option func(*StoreLogger)

// WithPublisher forwards persisted events to p.
func WithPublisher(p Publisher) Option {
	return func(l *StoreLogger) { l.publisher = p }
}

// WithMetrics counts persisted and failed events on m.
func WithMetrics(m *observability.Metrics) Option {
	return func(l *StoreLogger) { l.metrics = m }
}

// StoreLogger is the extensions.AuditLogger backed by a store.AuditStore.
//
// # Description
//
// Log writes synchronously; an event is published to the activity feed
// only once it is durable, so subscribers never see an event that a later
// query would not return.
//
// # Thread Safety
//
// Safe for concurrent use if the underlying store is.
type StoreLogger struct {
	store     store.AuditStore
	publisher Publisher
	metrics   *observability.Metrics
}

var _ extensions.AuditLogger = (*StoreLogger)(nil)

// NewStoreLogger returns a logger writing to s.
func NewStoreLogger(s store.AuditStore, opts ...Option) *StoreLogger {
	l := &StoreLogger{store: s}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Log persists event and publishes it.
//
// # Inputs
//
//   - ctx: Request context.
//   - event: Event to record. ID and Timestamp are assigned if empty;
//     Outcome defaults to "success".
//
// # Outputs
//
//   - error: Wrapped store error. Nothing is published on failure.
func (l *StoreLogger) Log(ctx context.Context, event extensions.AuditEvent) error {
	if event.Outcome == "" {
		event.Outcome = extensions.OutcomeSuccess
	}
	if err := l.store.AppendAudit(ctx, &event); err != nil {
		l.metrics.RecordAuditWriteError()
		return fmt.Errorf("audit %s: %w", event.EventType, err)
	}
	l.metrics.RecordAuditEvent(event.EventType, event.Outcome)
	if l.publisher != nil {
		l.publisher.Publish(event)
	}
	return nil
}

// Query returns one page of matching events, newest first.
func (l *StoreLogger) Query(ctx context.Context, filter extensions.AuditFilter) ([]extensions.AuditEvent, error) {
	events, _, err := l.QueryPage(ctx, filter)
	return events, err
}

// QueryPage is Query plus the total number of matching events, ignoring
// Limit and Offset.
func (l *StoreLogger) QueryPage(ctx context.Context, filter extensions.AuditFilter) ([]extensions.AuditEvent, int, error) {
	events, total, err := l.store.QueryAudit(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("query audit: %w", err)
	}
	if events == nil {
		events = []extensions.AuditEvent{}
	}
	return events, total, nil
}

// Flush is a no-op; Log writes synchronously.
func (l *StoreLogger) Flush(ctx context.Context) error {
	return nil
}
