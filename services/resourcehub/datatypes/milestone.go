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

// MilestoneStatus is the progress state of a milestone.
type MilestoneStatus string

const (
	MilestonePlanned    MilestoneStatus = "planned"
	MilestoneInProgress MilestoneStatus = "in_progress"
	MilestoneCompleted  MilestoneStatus = "completed"
	MilestoneMissed     MilestoneStatus = "missed"
)

// MilestoneStatuses lists every milestone status.
var MilestoneStatuses = []MilestoneStatus{MilestonePlanned, MilestoneInProgress, MilestoneCompleted, MilestoneMissed}

// Milestone is a dated checkpoint within a project.
type Milestone struct {
	ID          string          `json:"id"`
	ProjectID   string          `json:"project_id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	DueDate     Date            `json:"due_date"`
	Status      MilestoneStatus `json:"status"`
	CompletedAt *time.Time      `json:"completed_at"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// CreateMilestoneRequest is the body of POST /v1/milestones.
type CreateMilestoneRequest struct {
	ProjectID   string          `json:"project_id" validate:"required,uuid"`
	Name        string          `json:"name" validate:"required,notblank,max=200"`
	Description string          `json:"description" validate:"max=4000"`
	DueDate     *Date           `json:"due_date" validate:"required"`
	Status      MilestoneStatus `json:"status" validate:"omitempty,oneof=planned in_progress completed missed"`
}

// Validate checks field rules.
func (r *CreateMilestoneRequest) Validate() error {
	if err := validateStruct(r); err != nil {
		return err
	}
	if r.DueDate.IsZero() {
		return &ValidationError{Fields: map[string]string{"due_date": "is required"}}
	}
	return nil
}

// ToMilestone builds a new Milestone. Status defaults to planned; a
// milestone created as completed is stamped with now.
func (r *CreateMilestoneRequest) ToMilestone(now time.Time) *Milestone {
	status := r.Status
	if status == "" {
		status = MilestonePlanned
	}
	m := &Milestone{
		ProjectID:   r.ProjectID,
		Name:        r.Name,
		Description: r.Description,
		DueDate:     *r.DueDate,
		Status:      status,
	}
	if status == MilestoneCompleted {
		m.CompletedAt = &now
	}
	return m
}

// UpdateMilestoneRequest is the body of PATCH /v1/milestones/:id.
type UpdateMilestoneRequest struct {
	Name        *string          `json:"name" validate:"omitempty,notblank,max=200"`
	Description *string          `json:"description" validate:"omitempty,max=4000"`
	DueDate     *Date            `json:"due_date"`
	Status      *MilestoneStatus `json:"status" validate:"omitempty,oneof=planned in_progress completed missed"`
}

// Validate checks field rules.
func (r *UpdateMilestoneRequest) Validate() error {
	return validateStruct(r)
}

// Apply merges the request onto m and returns the names of changed fields.
//
// Moving to completed stamps CompletedAt with now; moving away clears it.
func (r *UpdateMilestoneRequest) Apply(m *Milestone, now time.Time) []string {
	var changed []string
	if r.Name != nil && *r.Name != m.Name {
		m.Name = *r.Name
		changed = append(changed, "name")
	}
	if r.Description != nil && *r.Description != m.Description {
		m.Description = *r.Description
		changed = append(changed, "description")
	}
	if r.DueDate != nil && !r.DueDate.IsZero() && r.DueDate.String() != m.DueDate.String() {
		m.DueDate = *r.DueDate
		changed = append(changed, "due_date")
	}
	if r.Status != nil && *r.Status != m.Status {
		m.Status = *r.Status
		changed = append(changed, "status")
		if m.Status == MilestoneCompleted {
			m.CompletedAt = &now
		} else {
			m.CompletedAt = nil
		}
	}
	return changed
}

// MilestoneFilter narrows GET /v1/milestones. DueFrom and DueTo are
// inclusive.
type MilestoneFilter struct {
	ProjectID string
	Status    MilestoneStatus
	DueFrom   *Date
	DueTo     *Date
	// OpenOnly excludes completed milestones.
	OpenOnly bool
}
