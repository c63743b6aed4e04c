// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package extensions

import (
	"context"
	"time"
)

// Audit outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeDenied  = "denied"
)

// Audit event types.
const (
	EventDataCreate      = "data.create"
	EventDataUpdate      = "data.update"
	EventDataDelete      = "data.delete"
	EventWorkflowSubmit  = "workflow.submit"
	EventWorkflowApprove = "workflow.approve"
	EventWorkflowReject  = "workflow.reject"
	EventWorkflowFulfill = "workflow.fulfill"
	EventWorkflowCancel  = "workflow.cancel"
	EventAuthzDenied     = "authz.denied"
	EventSystemSweep     = "system.sweep"
	EventSystemPurge     = "system.purge"
)

// WorkflowEventType returns the event type of a workflow action.
func WorkflowEventType(action string) string {
	return "workflow." + action
}

// AuditEvent represents a change or access decision recorded in the audit trail.
//
// # Event Categories
//
// Events are categorized by type for filtering:
//   - Data: "data.create", "data.update", "data.delete"
//   - Workflow: "workflow.submit", "workflow.approve", "workflow.reject",
//     "workflow.fulfill", "workflow.cancel"
//   - Authorization: "authz.denied"
//   - System: "system.sweep", "system.purge"
//
// Example:
//
//	event := AuditEvent{
//	    EventType:    "data.update",
//	    UserID:       authInfo.UserID,
//	    Action:       "update",
//	    ResourceType: "project",
//	    ResourceID:   project.ID,
//	    Outcome:      "success",
//	    Metadata: map[string]any{
//	        "fields": []string{"status", "end_date"},
//	    },
//	}
type AuditEvent struct {
	// ID is assigned by the logger when the event is persisted.
	ID string `json:"id"`

	// EventType categorizes the event for filtering.
	// Format: "category.action" (e.g., "data.create", "authz.denied")
	EventType string `json:"event_type"`

	// Timestamp is when the event occurred (always use UTC).
	// If zero, implementations should set to time.Now().UTC().
	Timestamp time.Time `json:"timestamp"`

	// UserID identifies who performed the action.
	// Use "system" or a job name for automated actions.
	UserID string `json:"user_id"`

	// Action describes what operation was attempted.
	Action string `json:"action"`

	// ResourceType is the category of resource involved.
	ResourceType string `json:"resource_type"`

	// ResourceID is the specific resource instance (optional).
	ResourceID string `json:"resource_id,omitempty"`

	// Outcome indicates the result of the action.
	// Values: "success", "failure", "denied"
	Outcome string `json:"outcome"`

	// Metadata holds additional event-specific data.
	//
	// Common metadata keys:
	//   - "fields": names of changed fields on update
	//   - "from", "to": workflow status transition
	//   - "error": error message if Outcome is "failure"
	//   - "request_id": correlation id of the HTTP request
	Metadata map[string]any `json:"metadata,omitempty"`
}

// AuditFilter defines criteria for querying audit events.
//
// All fields are optional - only non-zero values are used as filters.
// Multiple fields are combined with AND logic.
type AuditFilter struct {
	// EventTypes limits results to specific event types.
	EventTypes []string

	// UserID limits results to events from a specific user.
	UserID string

	// Action limits results to a specific action.
	Action string

	// StartTime is the earliest event timestamp to include (inclusive).
	StartTime time.Time

	// EndTime is the latest event timestamp to include (exclusive).
	EndTime time.Time

	// ResourceType limits results to events involving specific resource types.
	ResourceType string

	// ResourceID limits results to events involving a specific resource.
	ResourceID string

	// Outcome limits results to events with specific outcomes.
	Outcome string

	// Limit is the maximum number of events to return.
	// If zero, implementation-specific default is used.
	Limit int

	// Offset is the number of events to skip (for pagination).
	Offset int
}

// AuditLogger records and queries audit events.
//
// Thread Safety: Implementations must be safe for concurrent use.
type AuditLogger interface {
	// Log records an audit event. Implementations fill in ID and Timestamp
	// when they are empty.
	Log(ctx context.Context, event AuditEvent) error

	// Query returns events matching filter, newest first.
	Query(ctx context.Context, filter AuditFilter) ([]AuditEvent, error)

	// Flush forces any buffered events to durable storage.
	Flush(ctx context.Context) error
}

// NopAuditLogger discards all events.
type NopAuditLogger struct{}

// Log discards the event.
func (l *NopAuditLogger) Log(ctx context.Context, event AuditEvent) error {
	return nil
}

// Query returns an empty slice.
func (l *NopAuditLogger) Query(ctx context.Context, filter AuditFilter) ([]AuditEvent, error) {
	return []AuditEvent{}, nil
}

// Flush is a no-op.
func (l *NopAuditLogger) Flush(ctx context.Context) error {
	return nil
}

var _ AuditLogger = (*NopAuditLogger)(nil)
