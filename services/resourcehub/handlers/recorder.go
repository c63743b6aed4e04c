// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/ResourceHub/pkg/extensions"
	"github.com/AleutianAI/ResourceHub/services/resourcehub/datatypes"
	"github.com/AleutianAI/ResourceHub/services/resourcehub/middleware"
	"github.com/AleutianAI/ResourceHub/services/resourcehub/observability"
)

// Recorder writes the audit trail of mutating handlers and counts domain
// metrics.
//
// Audit failures never change the HTTP outcome of a change that has
// already been committed; they are logged and counted instead.
type Recorder struct {
	audit   extensions.AuditLogger
	metrics *observability.Metrics
	now     func() time.Time
}

// NewRecorder returns a Recorder. metrics may be nil.
func NewRecorder(audit extensions.AuditLogger, metrics *observability.Metrics) *Recorder {
	if audit == nil {
		audit = &extensions.NopAuditLogger{}
	}
	return &Recorder{audit: audit, metrics: metrics, now: func() time.Time { return time.Now().UTC() }}
}

// Now returns the current UTC time.
func (r *Recorder) Now() time.Time { return r.now() }

// Today returns the current UTC calendar date.
func (r *Recorder) Today() datatypes.Date { return datatypes.NewDate(r.now()) }

func (r *Recorder) log(c *gin.Context, e extensions.AuditEvent) {
	if user := middleware.GetAuthInfo(c); user != nil && e.UserID == "" {
		e.UserID = user.UserID
	}
	if e.Metadata == nil {
		e.Metadata = map[string]any{}
	}
	if id := middleware.GetRequestID(c); id != "" {
		e.Metadata["request_id"] = id
	}
	if err := r.audit.Log(c.Request.Context(), e); err != nil {
		slog.Error("failed to record audit event",
			"error", err,
			"event_type", e.EventType,
			"resource_type", e.ResourceType,
			"resource_id", e.ResourceID)
	}
}

// created records a data.create event.
func (r *Recorder) created(c *gin.Context, resourceType, id string, meta map[string]any) {
	r.metrics.RecordCreated(resourceType)
	r.log(c, extensions.AuditEvent{
		EventType:    extensions.EventDataCreate,
		Action:       extensions.ActionCreate,
		ResourceType: resourceType,
		ResourceID:   id,
		Outcome:      extensions.OutcomeSuccess,
		Metadata:     meta,
	})
}

// updated records a data.update event listing the changed fields.
func (r *Recorder) updated(c *gin.Context, resourceType, id string, fields []string) {
	r.log(c, extensions.AuditEvent{
		EventType:    extensions.EventDataUpdate,
		Action:       extensions.ActionUpdate,
		ResourceType: resourceType,
		ResourceID:   id,
		Outcome:      extensions.OutcomeSuccess,
		Metadata:     map[string]any{"fields": fields},
	})
}

// deleted records a data.delete event.
func (r *Recorder) deleted(c *gin.Context, resourceType, id string) {
	r.log(c, extensions.AuditEvent{
		EventType:    extensions.EventDataDelete,
		Action:       extensions.ActionDelete,
		ResourceType: resourceType,
		ResourceID:   id,
		Outcome:      extensions.OutcomeSuccess,
	})
}

// transitioned records a workflow event. err is the outcome of the attempt;
// rejected attempts are recorded as failures.
func (r *Recorder) transitioned(c *gin.Context, id, action string, from, to string, err error) {
	r.metrics.RecordTransition(action, err == nil)
	meta := map[string]any{"from": from}
	outcome := extensions.OutcomeSuccess
	if err != nil {
		outcome = extensions.OutcomeFailure
		meta["error"] = err.Error()
	} else {
		meta["to"] = to
	}
	r.log(c, extensions.AuditEvent{
		EventType:    extensions.WorkflowEventType(action),
		Action:       action,
		ResourceType: extensions.ResourceResourceRequest,
		ResourceID:   id,
		Outcome:      outcome,
		Metadata:     meta,
	})
}
