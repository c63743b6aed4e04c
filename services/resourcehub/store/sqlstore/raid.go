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

	"github.com/google/uuid"

	"github.com/AleutianAI/ResourceHub/services/resourcehub/datatypes"
	"github.com/AleutianAI/ResourceHub/services/resourcehub/store"
)

const raidColumns = "id, project_id, kind, title, description, owner, severity, likelihood, status, due_date, created_at, updated_at"

var raidSortable = map[string]string{
	"kind":       "kind",
	"title":      "title",
	"severity":   "severity",
	"status":     "status",
	"due_date":   "due_date",
	"created_at": "created_at",
	"updated_at": "updated_at",
}

// closedRAIDStatuses are excluded by RAIDFilter.OpenOnly and the dashboard.
var closedRAIDStatuses = []any{datatypes.RAIDMitigated, datatypes.RAIDClosed}

func scanRAIDItem(r rowScanner) (*datatypes.RAIDItem, error) {
	var (
		item             datatypes.RAIDItem
		due              sql.NullString
		created, updated string
	)
	if err := r.Scan(&item.ID, &item.ProjectID, &item.Kind, &item.Title, &item.Description,
		&item.Owner, &item.Severity, &item.Likelihood, &item.Status, &due, &created, &updated); err != nil {
		return nil, err
	}
	var err error
	if item.DueDate, err = parseNullDate(due); err != nil {
		return nil, err
	}
	if item.CreatedAt, err = parseTime(created); err != nil {
		return nil, err
	}
	if item.UpdatedAt, err = parseTime(updated); err != nil {
		return nil, err
	}
	return &item, nil
}

// CreateRAIDItem implements store.RAIDStore.
func (s *Store) CreateRAIDItem(ctx context.Context, item *datatypes.RAIDItem) error {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	now := s.now()
	item.CreatedAt, item.UpdatedAt = now, now

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO raid_items ("+raidColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		item.ID, item.ProjectID, item.Kind, item.Title, item.Description, item.Owner,
		item.Severity, item.Likelihood, item.Status, nullDate(item.DueDate),
		formatTime(now), formatTime(now))
	return s.wrap("create raid item", err)
}

// GetRAIDItem implements store.RAIDStore.
func (s *Store) GetRAIDItem(ctx context.Context, id string) (*datatypes.RAIDItem, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+raidColumns+" FROM raid_items WHERE id = ?", id)
	item, err := scanRAIDItem(row)
	if err != nil {
		return nil, s.wrap("get raid item", err)
	}
	return item, nil
}

// ListRAIDItems implements store.RAIDStore.
func (s *Store) ListRAIDItems(ctx context.Context, f datatypes.RAIDFilter, opts datatypes.ListOptions) ([]datatypes.RAIDItem, int, error) {
	w := &where{}
	if f.ProjectID != "" {
		w.add("project_id = ?", f.ProjectID)
	}
	if f.Kind != "" {
		w.add("kind = ?", f.Kind)
	}
	if f.Severity != "" {
		w.add("severity = ?", f.Severity)
	}
	if f.Status != "" {
		w.add("status = ?", f.Status)
	}
	if f.Owner != "" {
		w.add("owner = ?", f.Owner)
	}
	if f.OpenOnly {
		w.add("status NOT IN ("+placeholders(len(closedRAIDStatuses))+")", closedRAIDStatuses...)
	}

	var out []datatypes.RAIDItem
	total, err := s.list(ctx, "raid_items", raidColumns, w, raidSortable, opts, func(r rowScanner) error {
		item, err := scanRAIDItem(r)
		if err != nil {
			return err
		}
		out = append(out, *item)
		return nil
	})
	if err != nil {
		return nil, 0, s.wrap("list raid items", err)
	}
	return out, total, nil
}

// UpdateRAIDItem implements store.RAIDStore. Kind and project are fixed.
func (s *Store) UpdateRAIDItem(ctx context.Context, item *datatypes.RAIDItem) error {
	item.UpdatedAt = s.now()
	n, err := execAffected(ctx, s.db,
		`UPDATE raid_items SET title = ?, description = ?, owner = ?, severity = ?,
		 likelihood = ?, status = ?, due_date = ?, updated_at = ? WHERE id = ?`,
		item.Title, item.Description, item.Owner, item.Severity, item.Likelihood,
		item.Status, nullDate(item.DueDate), formatTime(item.UpdatedAt), item.ID)
	if err != nil {
		return s.wrap("update raid item", err)
	}
	if n == 0 {
		return s.wrap("update raid item", store.ErrNotFound)
	}
	return nil
}

// DeleteRAIDItem implements store.RAIDStore.
func (s *Store) DeleteRAIDItem(ctx context.Context, id string) error {
	n, err := execAffected(ctx, s.db, "DELETE FROM raid_items WHERE id = ?", id)
	if err != nil {
		return s.wrap("delete raid item", err)
	}
	if n == 0 {
		return s.wrap("delete raid item", store.ErrNotFound)
	}
	return nil
}
