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

	"github.com/google/uuid"

	"github.com/AleutianAI/ResourceHub/services/resourcehub/datatypes"
	"github.com/AleutianAI/ResourceHub/services/resourcehub/store"
)

const resourceColumns = "id, name, email, role_title, department, capacity_pct, active, created_at, updated_at"

var resourceSortable = map[string]string{
	"name":         "name",
	"email":        "email",
	"role_title":   "role_title",
	"department":   "department",
	"capacity_pct": "capacity_pct",
	"created_at":   "created_at",
	"updated_at":   "updated_at",
}

func scanResource(r rowScanner) (*datatypes.Resource, error) {
	var (
		res              datatypes.Resource
		created, updated string
	)
	if err := r.Scan(&res.ID, &res.Name, &res.Email, &res.RoleTitle, &res.Department,
		&res.CapacityPct, &res.Active, &created, &updated); err != nil {
		return nil, err
	}
	var err error
	if res.CreatedAt, err = parseTime(created); err != nil {
		return nil, err
	}
	if res.UpdatedAt, err = parseTime(updated); err != nil {
		return nil, err
	}
	return &res, nil
}

// CreateResource implements store.ResourceStore.
func (s *Store) CreateResource(ctx context.Context, r *datatypes.Resource) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	now := s.now()
	r.CreatedAt, r.UpdatedAt = now, now

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO resources ("+resourceColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)",
		r.ID, r.Name, r.Email, r.RoleTitle, r.Department, r.CapacityPct, r.Active,
		formatTime(now), formatTime(now))
	return s.wrap("create resource", err)
}

// GetResource implements store.ResourceStore.
func (s *Store) GetResource(ctx context.Context, id string) (*datatypes.Resource, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+resourceColumns+" FROM resources WHERE id = ?", id)
	r, err := scanResource(row)
	if err != nil {
		return nil, s.wrap("get resource", err)
	}
	return r, nil
}

// ListResources implements store.ResourceStore. Query matches name, email
// and role title.
func (s *Store) ListResources(ctx context.Context, f datatypes.ResourceFilter, opts datatypes.ListOptions) ([]datatypes.Resource, int, error) {
	w := &where{}
	if f.Department != "" {
		w.add("department = ?", f.Department)
	}
	if f.Active != nil {
		w.add("active = ?", *f.Active)
	}
	w.like(f.Query, "name", "email", "role_title")

	var out []datatypes.Resource
	total, err := s.list(ctx, "resources", resourceColumns, w, resourceSortable, opts, func(r rowScanner) error {
		res, err := scanResource(r)
		if err != nil {
			return err
		}
		out = append(out, *res)
		return nil
	})
	if err != nil {
		return nil, 0, s.wrap("list resources", err)
	}
	return out, total, nil
}

// UpdateResource implements store.ResourceStore.
func (s *Store) UpdateResource(ctx context.Context, r *datatypes.Resource) error {
	r.UpdatedAt = s.now()
	n, err := execAffected(ctx, s.db,
		`UPDATE resources SET name = ?, email = ?, role_title = ?, department = ?,
		 capacity_pct = ?, active = ?, updated_at = ? WHERE id = ?`,
		r.Name, r.Email, r.RoleTitle, r.Department, r.CapacityPct, r.Active,
		formatTime(r.UpdatedAt), r.ID)
	if err != nil {
		return s.wrap("update resource", err)
	}
	if n == 0 {
		return s.wrap("update resource", store.ErrNotFound)
	}
	return nil
}

// DeleteResource implements store.ResourceStore. A resource assigned to a
// fulfilled request cannot be deleted and yields store.ErrReferenced.
func (s *Store) DeleteResource(ctx context.Context, id string) error {
	n, err := execAffected(ctx, s.db, "DELETE FROM resources WHERE id = ?", id)
	if err != nil {
		return s.wrap("delete resource", err)
	}
	if n == 0 {
		return s.wrap("delete resource", store.ErrNotFound)
	}
	return nil
}
