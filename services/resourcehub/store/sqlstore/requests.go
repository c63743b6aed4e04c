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
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/AleutianAI/ResourceHub/services/resourcehub/datatypes"
	"github.com/AleutianAI/ResourceHub/services/resourcehub/store"
)

const requestColumns = "id, project_id, role_title, skills, allocation_pct, start_date, end_date, status, " +
	"requested_by, decided_by, decision_note, resource_id, created_at, updated_at"

var requestSortable = map[string]string{
	"role_title":     "role_title",
	"allocation_pct": "allocation_pct",
	"start_date":     "start_date",
	"end_date":       "end_date",
	"status":         "status",
	"created_at":     "created_at",
	"updated_at":     "updated_at",
}

func scanRequest(r rowScanner) (*datatypes.ResourceRequest, error) {
	var (
		rr               datatypes.ResourceRequest
		start, end       sql.NullString
		resourceID       sql.NullString
		created, updated string
	)
	if err := r.Scan(&rr.ID, &rr.ProjectID, &rr.RoleTitle, &rr.Skills, &rr.AllocationPct,
		&start, &end, &rr.Status, &rr.RequestedBy, &rr.DecidedBy, &rr.DecisionNote,
		&resourceID, &created, &updated); err != nil {
		return nil, err
	}
	rr.ResourceID = resourceID.String
	var err error
	if rr.StartDate, err = parseNullDate(start); err != nil {
		return nil, err
	}
	if rr.EndDate, err = parseNullDate(end); err != nil {
		return nil, err
	}
	if rr.CreatedAt, err = parseTime(created); err != nil {
		return nil, err
	}
	if rr.UpdatedAt, err = parseTime(updated); err != nil {
		return nil, err
	}
	return &rr, nil
}

// CreateResourceRequest implements store.ResourceRequestStore.
func (s *Store) CreateResourceRequest(ctx context.Context, rr *datatypes.ResourceRequest) error {
	if rr.ID == "" {
		rr.ID = uuid.NewString()
	}
	if rr.Status == "" {
		rr.Status = datatypes.RequestDraft
	}
	now := s.now()
	rr.CreatedAt, rr.UpdatedAt = now, now

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO resource_requests ("+requestColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		rr.ID, rr.ProjectID, rr.RoleTitle, rr.Skills, rr.AllocationPct,
		nullDate(rr.StartDate), nullDate(rr.EndDate), rr.Status, rr.RequestedBy,
		rr.DecidedBy, rr.DecisionNote, nullString(rr.ResourceID), formatTime(now), formatTime(now))
	return s.wrap("create resource request", err)
}

// GetResourceRequest implements store.ResourceRequestStore.
func (s *Store) GetResourceRequest(ctx context.Context, id string) (*datatypes.ResourceRequest, error) {
	rr, err := getRequest(ctx, s.db, id)
	if err != nil {
		return nil, s.wrap("get resource request", err)
	}
	return rr, nil
}

func getRequest(ctx context.Context, q queryer, id string) (*datatypes.ResourceRequest, error) {
	return scanRequest(q.QueryRowContext(ctx, "SELECT "+requestColumns+" FROM resource_requests WHERE id = ?", id))
}

// ListResourceRequests implements store.ResourceRequestStore.
func (s *Store) ListResourceRequests(ctx context.Context, f datatypes.ResourceRequestFilter, opts datatypes.ListOptions) ([]datatypes.ResourceRequest, int, error) {
	w := &where{}
	if f.ProjectID != "" {
		w.add("project_id = ?", f.ProjectID)
	}
	if f.Status != "" {
		w.add("status = ?", f.Status)
	}
	if f.RequestedBy != "" {
		w.add("requested_by = ?", f.RequestedBy)
	}
	if f.ResourceID != "" {
		w.add("resource_id = ?", f.ResourceID)
	}

	var out []datatypes.ResourceRequest
	total, err := s.list(ctx, "resource_requests", requestColumns, w, requestSortable, opts, func(r rowScanner) error {
		rr, err := scanRequest(r)
		if err != nil {
			return err
		}
		out = append(out, *rr)
		return nil
	})
	if err != nil {
		return nil, 0, s.wrap("list resource requests", err)
	}
	return out, total, nil
}

// UpdateResourceRequest implements store.ResourceRequestStore. Only the
// editable fields are written, and only while the stored row is a draft.
func (s *Store) UpdateResourceRequest(ctx context.Context, rr *datatypes.ResourceRequest) error {
	const op = "update resource request"
	rr.UpdatedAt = s.now()
	return s.wrap(op, s.withTx(ctx, func(tx *sql.Tx) error {
		n, err := execAffected(ctx, tx,
			`UPDATE resource_requests SET role_title = ?, skills = ?, allocation_pct = ?,
			 start_date = ?, end_date = ?, updated_at = ? WHERE id = ? AND status = ?`,
			rr.RoleTitle, rr.Skills, rr.AllocationPct, nullDate(rr.StartDate), nullDate(rr.EndDate),
			formatTime(rr.UpdatedAt), rr.ID, datatypes.RequestDraft)
		if err != nil {
			return err
		}
		if n > 0 {
			return nil
		}
		current, err := getRequest(ctx, tx, rr.ID)
		if err != nil {
			return err
		}
		return fmt.Errorf("%w: request is %s, only drafts can be edited", store.ErrConflict, current.Status)
	}))
}

// DeleteResourceRequest implements store.ResourceRequestStore.
func (s *Store) DeleteResourceRequest(ctx context.Context, id string) error {
	n, err := execAffected(ctx, s.db, "DELETE FROM resource_requests WHERE id = ?", id)
	if err != nil {
		return s.wrap("delete resource request", err)
	}
	if n == 0 {
		return s.wrap("delete resource request", store.ErrNotFound)
	}
	return nil
}

// TransitionResourceRequest implements store.ResourceRequestStore.
//
// The update is conditional on the stored status still being t.From, so of
// two concurrent transitions from the same state exactly one wins.
func (s *Store) TransitionResourceRequest(ctx context.Context, id string, t datatypes.Transition) (*datatypes.ResourceRequest, error) {
	const op = "transition resource request"
	if want, err := datatypes.NextStatus(t.From, t.Action); err != nil {
		return nil, s.wrap(op, err)
	} else if want != t.To {
		return nil, s.wrap(op, fmt.Errorf("%w: %s leads to %s, not %s", store.ErrInvalidTransition, t.Action, want, t.To))
	}

	sets := []string{"status = ?", "updated_at = ?"}
	args := []any{t.To, formatTime(s.now())}
	switch t.Action {
	case datatypes.TransitionApprove, datatypes.TransitionReject:
		sets = append(sets, "decided_by = ?", "decision_note = ?")
		args = append(args, t.Actor, t.Note)
	case datatypes.TransitionFulfill:
		if t.ResourceID == "" {
			return nil, s.wrap(op, fmt.Errorf("%w: fulfill needs a resource", store.ErrConflict))
		}
		sets = append(sets, "resource_id = ?")
		args = append(args, t.ResourceID)
		if t.Note != "" {
			sets = append(sets, "decision_note = ?")
			args = append(args, t.Note)
		}
	case datatypes.TransitionCancel:
		if t.Note != "" {
			sets = append(sets, "decision_note = ?")
			args = append(args, t.Note)
		}
	}
	args = append(args, id, t.From)

	var out *datatypes.ResourceRequest
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		n, err := execAffected(ctx, tx,
			"UPDATE resource_requests SET "+strings.Join(sets, ", ")+" WHERE id = ? AND status = ?", args...)
		if err != nil {
			return err
		}
		current, err := getRequest(ctx, tx, id)
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("%w: request is %s, not %s", store.ErrInvalidTransition, current.Status, t.From)
		}
		out = current
		return nil
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, s.wrap(op, store.ErrNotFound)
		}
		return nil, s.wrap(op, err)
	}
	return out, nil
}
