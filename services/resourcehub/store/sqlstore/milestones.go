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
	"time"

	"github.com/google/uuid"

	"github.com/AleutianAI/ResourceHub/services/resourcehub/datatypes"
	"github.com/AleutianAI/ResourceHub/services/resourcehub/store"
)

const milestoneColumns = "id, project_id, name, description, due_date, status, completed_at, created_at, updated_at"

var milestoneSortable = map[string]string{
	"name":       "name",
	"due_date":   "due_date",
	"status":     "status",
	"created_at": "created_at",
	"updated_at": "updated_at",
}

func scanMilestone(r rowScanner) (*datatypes.Milestone, error) {
	var (
		m                datatypes.Milestone
		due              string
		completed        sql.NullString
		created, updated string
	)
	if err := r.Scan(&m.ID, &m.ProjectID, &m.Name, &m.Description, &due, &m.Status,
		&completed, &created, &updated); err != nil {
		return nil, err
	}
	var err error
	if m.DueDate, err = datatypes.ParseDate(due); err != nil {
		return nil, err
	}
	if m.CompletedAt, err = parseNullTime(completed); err != nil {
		return nil, err
	}
	if m.CreatedAt, err = parseTime(created); err != nil {
		return nil, err
	}
	if m.UpdatedAt, err = parseTime(updated); err != nil {
		return nil, err
	}
	return &m, nil
}

// CreateMilestone implements store.MilestoneStore.
func (s *Store) CreateMilestone(ctx context.Context, m *datatypes.Milestone) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	now := s.now()
	m.CreatedAt, m.UpdatedAt = now, now

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO milestones ("+milestoneColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)",
		m.ID, m.ProjectID, m.Name, m.Description, m.DueDate.String(), m.Status,
		nullTime(m.CompletedAt), formatTime(now), formatTime(now))
	return s.wrap("create milestone", err)
}

// GetMilestone implements store.MilestoneStore.
func (s *Store) GetMilestone(ctx context.Context, id string) (*datatypes.Milestone, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+milestoneColumns+" FROM milestones WHERE id = ?", id)
	m, err := scanMilestone(row)
	if err != nil {
		return nil, s.wrap("get milestone", err)
	}
	return m, nil
}

// ListMilestones implements store.MilestoneStore.
func (s *Store) ListMilestones(ctx context.Context, f datatypes.MilestoneFilter, opts datatypes.ListOptions) ([]datatypes.Milestone, int, error) {
	w := &where{}
	if f.ProjectID != "" {
		w.add("project_id = ?", f.ProjectID)
	}
	if f.Status != "" {
		w.add("status = ?", f.Status)
	}
	if f.DueFrom != nil && !f.DueFrom.IsZero() {
		w.add("due_date >= ?", f.DueFrom.String())
	}
	if f.DueTo != nil && !f.DueTo.IsZero() {
		w.add("due_date <= ?", f.DueTo.String())
	}
	if f.OpenOnly {
		w.add("status <> ?", datatypes.MilestoneCompleted)
	}

	var out []datatypes.Milestone
	total, err := s.list(ctx, "milestones", milestoneColumns, w, milestoneSortable, opts, func(r rowScanner) error {
		m, err := scanMilestone(r)
		if err != nil {
			return err
		}
		out = append(out, *m)
		return nil
	})
	if err != nil {
		return nil, 0, s.wrap("list milestones", err)
	}
	return out, total, nil
}

// UpdateMilestone implements store.MilestoneStore.
func (s *Store) UpdateMilestone(ctx context.Context, m *datatypes.Milestone) error {
	m.UpdatedAt = s.now()
	n, err := execAffected(ctx, s.db,
		`UPDATE milestones SET name = ?, description = ?, due_date = ?, status = ?,
		 completed_at = ?, updated_at = ? WHERE id = ?`,
		m.Name, m.Description, m.DueDate.String(), m.Status, nullTime(m.CompletedAt),
		formatTime(m.UpdatedAt), m.ID)
	if err != nil {
		return s.wrap("update milestone", err)
	}
	if n == 0 {
		return s.wrap("update milestone", store.ErrNotFound)
	}
	return nil
}

// DeleteMilestone implements store.MilestoneStore.
func (s *Store) DeleteMilestone(ctx context.Context, id string) error {
	n, err := execAffected(ctx, s.db, "DELETE FROM milestones WHERE id = ?", id)
	if err != nil {
		return s.wrap("delete milestone", err)
	}
	if n == 0 {
		return s.wrap("delete milestone", store.ErrNotFound)
	}
	return nil
}

// MarkMissedMilestones implements store.MilestoneStore.
func (s *Store) MarkMissedMilestones(ctx context.Context, today datatypes.Date, now time.Time) ([]datatypes.Milestone, error) {
	const op = "mark missed milestones"
	var changed []datatypes.Milestone
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx,
			"SELECT "+milestoneColumns+" FROM milestones WHERE due_date < ? AND status IN (?, ?) ORDER BY due_date, id",
			today.String(), datatypes.MilestonePlanned, datatypes.MilestoneInProgress)
		if err != nil {
			return err
		}
		var due []datatypes.Milestone
		for rows.Next() {
			m, err := scanMilestone(rows)
			if err != nil {
				rows.Close()
				return err
			}
			due = append(due, *m)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}

		stamp := formatTime(now)
		for _, m := range due {
			n, err := execAffected(ctx, tx,
				"UPDATE milestones SET status = ?, updated_at = ? WHERE id = ? AND status = ?",
				datatypes.MilestoneMissed, stamp, m.ID, m.Status)
			if err != nil {
				return err
			}
			if n == 0 {
				continue
			}
			m.Status = datatypes.MilestoneMissed
			m.UpdatedAt = now.UTC()
			changed = append(changed, m)
		}
		return nil
	})
	if err != nil {
		return nil, s.wrap(op, err)
	}
	return changed, nil
}
