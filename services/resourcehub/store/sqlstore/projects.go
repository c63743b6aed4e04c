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

const projectColumns = "id, code, name, description, status, owner, start_date, end_date, budget, created_at, updated_at"

var projectSortable = map[string]string{
	"code":       "code",
	"name":       "name",
	"status":     "status",
	"start_date": "start_date",
	"end_date":   "end_date",
	"budget":     "budget",
	"created_at": "created_at",
	"updated_at": "updated_at",
}

func scanProject(r rowScanner) (*datatypes.Project, error) {
	var (
		p                datatypes.Project
		start, end       sql.NullString
		created, updated string
	)
	if err := r.Scan(&p.ID, &p.Code, &p.Name, &p.Description, &p.Status, &p.Owner,
		&start, &end, &p.Budget, &created, &updated); err != nil {
		return nil, err
	}
	var err error
	if p.StartDate, err = parseNullDate(start); err != nil {
		return nil, err
	}
	if p.EndDate, err = parseNullDate(end); err != nil {
		return nil, err
	}
	if p.CreatedAt, err = parseTime(created); err != nil {
		return nil, err
	}
	if p.UpdatedAt, err = parseTime(updated); err != nil {
		return nil, err
	}
	return &p, nil
}

// CreateProject implements store.ProjectStore. An empty ID is assigned.
func (s *Store) CreateProject(ctx context.Context, p *datatypes.Project) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	now := s.now()
	p.CreatedAt, p.UpdatedAt = now, now

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO projects ("+projectColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		p.ID, p.Code, p.Name, p.Description, p.Status, p.Owner,
		nullDate(p.StartDate), nullDate(p.EndDate), p.Budget, formatTime(now), formatTime(now))
	return s.wrap("create project", err)
}

// GetProject implements store.ProjectStore.
func (s *Store) GetProject(ctx context.Context, id string) (*datatypes.Project, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+projectColumns+" FROM projects WHERE id = ?", id)
	p, err := scanProject(row)
	if err != nil {
		return nil, s.wrap("get project", err)
	}
	return p, nil
}

// ListProjects implements store.ProjectStore. Query matches code and name.
func (s *Store) ListProjects(ctx context.Context, f datatypes.ProjectFilter, opts datatypes.ListOptions) ([]datatypes.Project, int, error) {
	w := &where{}
	if f.Status != "" {
		w.add("status = ?", f.Status)
	}
	if f.Owner != "" {
		w.add("owner = ?", f.Owner)
	}
	w.like(f.Query, "code", "name")

	var out []datatypes.Project
	total, err := s.list(ctx, "projects", projectColumns, w, projectSortable, opts, func(r rowScanner) error {
		p, err := scanProject(r)
		if err != nil {
			return err
		}
		out = append(out, *p)
		return nil
	})
	if err != nil {
		return nil, 0, s.wrap("list projects", err)
	}
	return out, total, nil
}

// UpdateProject implements store.ProjectStore. Code and CreatedAt are
// immutable.
func (s *Store) UpdateProject(ctx context.Context, p *datatypes.Project) error {
	p.UpdatedAt = s.now()
	n, err := execAffected(ctx, s.db,
		`UPDATE projects SET name = ?, description = ?, status = ?, owner = ?,
		 start_date = ?, end_date = ?, budget = ?, updated_at = ? WHERE id = ?`,
		p.Name, p.Description, p.Status, p.Owner,
		nullDate(p.StartDate), nullDate(p.EndDate), p.Budget, formatTime(p.UpdatedAt), p.ID)
	if err != nil {
		return s.wrap("update project", err)
	}
	if n == 0 {
		return s.wrap("update project", store.ErrNotFound)
	}
	return nil
}

// DeleteProject implements store.ProjectStore. Milestones, RAID items and
// resource requests go with it.
func (s *Store) DeleteProject(ctx context.Context, id string) error {
	n, err := execAffected(ctx, s.db, "DELETE FROM projects WHERE id = ?", id)
	if err != nil {
		return s.wrap("delete project", err)
	}
	if n == 0 {
		return s.wrap("delete project", store.ErrNotFound)
	}
	return nil
}
