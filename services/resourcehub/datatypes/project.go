// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package datatypes

import "time"

// ProjectStatus is the lifecycle state of a project.
type ProjectStatus string

const (
	ProjectProposed  ProjectStatus = "proposed"
	ProjectActive    ProjectStatus = "active"
	ProjectOnHold    ProjectStatus = "on_hold"
	ProjectCompleted ProjectStatus = "completed"
	ProjectCancelled ProjectStatus = "cancelled"
)

// ProjectStatuses lists every project status in display order.
var ProjectStatuses = []ProjectStatus{
	ProjectProposed, ProjectActive, ProjectOnHold, ProjectCompleted, ProjectCancelled,
}

// Project is a unit of planned work that resources are requested for.
type Project struct {
	ID          string        `json:"id"`
	Code        string        `json:"code"`
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Status      ProjectStatus `json:"status"`
	Owner       string        `json:"owner"`
	StartDate   *Date         `json:"start_date"`
	EndDate     *Date         `json:"end_date"`
	Budget      float64       `json:"budget"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// CreateProjectRequest is the body of POST /v1/projects.
//
// Status defaults to "proposed" when omitted.
type CreateProjectRequest struct {
	Code        string        `json:"code" validate:"required,project_code"`
	Name        string        `json:"name" validate:"required,notblank,max=200"`
	Description string        `json:"description" validate:"max=4000"`
	Status      ProjectStatus `json:"status" validate:"omitempty,oneof=proposed active on_hold completed cancelled"`
	Owner       string        `json:"owner" validate:"max=200"`
	StartDate   *Date         `json:"start_date"`
	EndDate     *Date         `json:"end_date"`
	Budget      float64       `json:"budget" validate:"gte=0"`
}

// Validate checks field rules and the date range.
func (r *CreateProjectRequest) Validate() error {
	return validateStruct(r)
}

func (r CreateProjectRequest) dateRange() (*Date, *Date) { return r.StartDate, r.EndDate }

// ToProject builds a new Project from the request. ID and timestamps are
// left for the store to assign.
func (r *CreateProjectRequest) ToProject() *Project {
	status := r.Status
	if status == "" {
		status = ProjectProposed
	}
	return &Project{
		Code:        r.Code,
		Name:        r.Name,
		Description: r.Description,
		Status:      status,
		Owner:       r.Owner,
		StartDate:   r.StartDate,
		EndDate:     r.EndDate,
		Budget:      r.Budget,
	}
}

// UpdateProjectRequest is the body of PATCH /v1/projects/:id.
// Nil fields are left unchanged.
type UpdateProjectRequest struct {
	Name        *string        `json:"name" validate:"omitempty,notblank,max=200"`
	Description *string        `json:"description" validate:"omitempty,max=4000"`
	Status      *ProjectStatus `json:"status" validate:"omitempty,oneof=proposed active on_hold completed cancelled"`
	Owner       *string        `json:"owner" validate:"omitempty,max=200"`
	StartDate   *Date          `json:"start_date"`
	EndDate     *Date          `json:"end_date"`
	Budget      *float64       `json:"budget" validate:"omitempty,gte=0"`
}

// Validate checks field rules and, when both are supplied, the date range.
func (r *UpdateProjectRequest) Validate() error {
	return validateStruct(r)
}

func (r UpdateProjectRequest) dateRange() (*Date, *Date) { return r.StartDate, r.EndDate }

// Apply merges the request onto p and returns the names of changed fields.
func (r *UpdateProjectRequest) Apply(p *Project) []string {
	var changed []string
	if r.Name != nil && *r.Name != p.Name {
		p.Name = *r.Name
		changed = append(changed, "name")
	}
	if r.Description != nil && *r.Description != p.Description {
		p.Description = *r.Description
		changed = append(changed, "description")
	}
	if r.Status != nil && *r.Status != p.Status {
		p.Status = *r.Status
		changed = append(changed, "status")
	}
	if r.Owner != nil && *r.Owner != p.Owner {
		p.Owner = *r.Owner
		changed = append(changed, "owner")
	}
	if r.StartDate != nil && !sameDate(r.StartDate, p.StartDate) {
		p.StartDate = normalizeDate(r.StartDate)
		changed = append(changed, "start_date")
	}
	if r.EndDate != nil && !sameDate(r.EndDate, p.EndDate) {
		p.EndDate = normalizeDate(r.EndDate)
		changed = append(changed, "end_date")
	}
	if r.Budget != nil && *r.Budget != p.Budget {
		p.Budget = *r.Budget
		changed = append(changed, "budget")
	}
	return changed
}

// ProjectFilter narrows GET /v1/projects.
type ProjectFilter struct {
	Status ProjectStatus
	Owner  string
	Query  string
}

// sameDate compares optional dates; nil and zero are equal.
func sameDate(a, b *Date) bool {
	az := a == nil || a.IsZero()
	bz := b == nil || b.IsZero()
	if az || bz {
		return az == bz
	}
	return a.String() == b.String()
}

// normalizeDate maps an explicit JSON null (zero Date) to nil so the column
// is cleared.
func normalizeDate(d *Date) *Date {
	if d == nil || d.IsZero() {
		return nil
	}
	return d
}
