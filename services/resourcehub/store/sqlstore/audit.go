// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package sqlstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/AleutianAI/ResourceHub/pkg/extensions"
	"github.com/AleutianAI/ResourceHub/services/resourcehub/datatypes"
)

const auditColumns = "id, event_type, timestamp, user_id, action, resource_type, resource_id, outcome, metadata"

// AppendAudit implements store.AuditStore. Missing ID and Timestamp are
// filled in.
func (s *Store) AppendAudit(ctx context.Context, e *extensions.AuditEvent) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = s.now()
	}
	e.Timestamp = e.Timestamp.UTC()

	meta := []byte("{}")
	if len(e.Metadata) > 0 {
		var err error
		if meta, err = json.Marshal(e.Metadata); err != nil {
			return fmt.Errorf("append audit: encode metadata: %w", err)
		}
	}

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO audit_logs ("+auditColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)",
		e.ID, e.EventType, formatTime(e.Timestamp), e.UserID, e.Action,
		e.ResourceType, e.ResourceID, e.Outcome, string(meta))
	return s.wrap("append audit", err)
}

// QueryAudit implements store.AuditStore.
func (s *Store) QueryAudit(ctx context.Context, f extensions.AuditFilter) ([]extensions.AuditEvent, int, error) {
	w := &where{}
	if len(f.EventTypes) > 0 {
		types := make([]any, len(f.EventTypes))
		for i, t := range f.EventTypes {
			types[i] = t
		}
		w.in("event_type", types...)
	}
	if f.UserID != "" {
		w.add("user_id = ?", f.UserID)
	}
	if f.Action != "" {
		w.add("action = ?", f.Action)
	}
	if f.ResourceType != "" {
		w.add("resource_type = ?", f.ResourceType)
	}
	if f.ResourceID != "" {
		w.add("resource_id = ?", f.ResourceID)
	}
	if f.Outcome != "" {
		w.add("outcome = ?", f.Outcome)
	}
	if !f.StartTime.IsZero() {
		w.add("timestamp >= ?", formatTime(f.StartTime))
	}
	if !f.EndTime.IsZero() {
		w.add("timestamp < ?", formatTime(f.EndTime))
	}

	opts := datatypes.ListOptions{Limit: f.Limit, Offset: f.Offset, Sort: "timestamp", Order: datatypes.OrderDesc}
	var out []extensions.AuditEvent
	total, err := s.list(ctx, "audit_logs", auditColumns, w, map[string]string{"timestamp": "timestamp"}, opts,
		func(r rowScanner) error {
			var (
				e    extensions.AuditEvent
				ts   string
				meta string
			)
			if err := r.Scan(&e.ID, &e.EventType, &ts, &e.UserID, &e.Action,
				&e.ResourceType, &e.ResourceID, &e.Outcome, &meta); err != nil {
				return err
			}
			var err error
			if e.Timestamp, err = parseTime(ts); err != nil {
				return err
			}
			if meta != "" && meta != "{}" {
				if err := json.Unmarshal([]byte(meta), &e.Metadata); err != nil {
					return fmt.Errorf("decode metadata of %s: %w", e.ID, err)
				}
			}
			out = append(out, e)
			return nil
		})
	if err != nil {
		return nil, 0, s.wrap("query audit", err)
	}
	return out, total, nil
}

// PurgeAudit implements store.AuditStore.
func (s *Store) PurgeAudit(ctx context.Context, before time.Time) (int64, error) {
	n, err := execAffected(ctx, s.db, "DELETE FROM audit_logs WHERE timestamp < ?", formatTime(before))
	if err != nil {
		return 0, s.wrap("purge audit", err)
	}
	return n, nil
}
