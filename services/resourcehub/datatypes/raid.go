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

// RAIDKind distinguishes the four RAID log categories.
type RAIDKind string

const (
	RAIDRisk       RAIDKind = "risk"
	RAIDAssumption RAIDKind = "assumption"
	RAIDIssue      RAIDKind = "issue"
	RAIDDependency RAIDKind = "dependency"
)

// RAIDKinds lists every kind in log order.
var RAIDKinds = []RAIDKind{RAIDRisk, RAIDAssumption, RAIDIssue, RAIDDependency}

// Severity grades the impact of a RAID item.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Severities lists every severity from lowest to highest.
var Severities = []Severity{SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical}

// Likelihood grades how probable a risk is. Only risks carry one.
type Likelihood string

const (
	LikelihoodLow    Likelihood = "low"
	LikelihoodMedium Likelihood = "medium"
	LikelihoodHigh   Likelihood = "high"
)

// RAIDStatus is the handling state of a RAID item.
type RAIDStatus string

const (
	RAIDOpen       RAIDStatus = "open"
	RAIDInProgress RAIDStatus = "in_progress"
	RAIDMitigated  RAIDStatus = "mitigated"
	RAIDClosed     RAIDStatus = "closed"
)

// RAIDStatuses lists every RAID status.
var RAIDStatuses = []RAIDStatus{RAIDOpen, RAIDInProgress, RAIDMitigated, RAIDClosed}

// RAIDItem is one entry of a project's risks, assumptions, issues and
// dependencies log.
type RAIDItem struct {
	ID          string     `json:"id"`
	ProjectID   string     `json:"project_id"`
	Kind        RAIDKind   `json:"kind"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Owner       string     `json:"owner"`
	Severity    Severity   `json:"severity"`
	Likelihood  Likelihood `json:"likelihood,omitempty"`
	Status      RAIDStatus `json:"status"`
	DueDate     *Date      `json:"due_date"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// CreateRAIDItemRequest is the body of POST /v1/raid.
//
// Severity defaults to medium and Status to open. Likelihood is kept only
// for risks.
type CreateRAIDItemRequest struct {
	ProjectID   string     `json:"project_id" validate:"required,uuid"`
	Kind        RAIDKind   `json:"kind" validate:"required,oneof=risk assumption issue dependency"`
	Title       string     `json:"title" validate:"required,notblank,max=200"`
	Description string     `json:"description" validate:"max=4000"`
	Owner       string     `json:"owner" validate:"max=200"`
	Severity    Severity   `json:"severity" validate:"omitempty,oneof=low medium high critical"`
	Likelihood  Likelihood `json:"likelihood" validate:"omitempty,oneof=low medium high"`
	Status      RAIDStatus `json:"status" validate:"omitempty,oneof=open in_progress mitigated closed"`
	DueDate     *Date      `json:"due_date"`
}

// Validate checks field rules.
func (r *CreateRAIDItemRequest) Validate() error {
	return validateStruct(r)
}

// ToRAIDItem builds a new RAIDItem with defaults applied.
func (r *CreateRAIDItemRequest) ToRAIDItem() *RAIDItem {
	item := &RAIDItem{
		ProjectID:   r.ProjectID,
		Kind:        r.Kind,
		Title:       r.Title,
		Description: r.Description,
		Owner:       r.Owner,
		Severity:    r.Severity,
		Likelihood:  r.Likelihood,
		Status:      r.Status,
		DueDate:     normalizeDate(r.DueDate),
	}
	if item.Severity == "" {
		item.Severity = SeverityMedium
	}
	if item.Status == "" {
		item.Status = RAIDOpen
	}
	if item.Kind != RAIDRisk {
		item.Likelihood = ""
	}
	return item
}

// UpdateRAIDItemRequest is the body of PATCH /v1/raid/:id. Kind and project
// are fixed once created.
type UpdateRAIDItemRequest struct {
	Title       *string     `json:"title" validate:"omitempty,notblank,max=200"`
	Description *string     `json:"description" validate:"omitempty,max=4000"`
	Owner       *string     `json:"owner" validate:"omitempty,max=200"`
	Severity    *Severity   `json:"severity" validate:"omitempty,oneof=low medium high critical"`
	Likelihood  *Likelihood `json:"likelihood" validate:"omitempty,oneof=low medium high"`
	Status      *RAIDStatus `json:"status" validate:"omitempty,oneof=open in_progress mitigated closed"`
	DueDate     *Date       `json:"due_date"`
}

// Validate checks field rules.
func (r *UpdateRAIDItemRequest) Validate() error {
	return validateStruct(r)
}

// Apply merges the request onto item and returns the names of changed fields.
func (r *UpdateRAIDItemRequest) Apply(item *RAIDItem) []string {
	var changed []string
	if r.Title != nil && *r.Title != item.Title {
		item.Title = *r.Title
		changed = append(changed, "title")
	}
	if r.Description != nil && *r.Description != item.Description {
		item.Description = *r.Description
		changed = append(changed, "description")
	}
	if r.Owner != nil && *r.Owner != item.Owner {
		item.Owner = *r.Owner
		changed = append(changed, "owner")
	}
	if r.Severity != nil && *r.Severity != item.Severity {
		item.Severity = *r.Severity
		changed = append(changed, "severity")
	}
	if r.Likelihood != nil && item.Kind == RAIDRisk && *r.Likelihood != item.Likelihood {
		item.Likelihood = *r.Likelihood
		changed = append(changed, "likelihood")
	}
	if r.Status != nil && *r.Status != item.Status {
		item.Status = *r.Status
		changed = append(changed, "status")
	}
	if r.DueDate != nil && !sameDate(r.DueDate, item.DueDate) {
		item.DueDate = normalizeDate(r.DueDate)
		changed = append(changed, "due_date")
	}
	return changed
}

// RAIDFilter narrows GET /v1/raid.
type RAIDFilter struct {
	ProjectID string
	Kind      RAIDKind
	Severity  Severity
	Status    RAIDStatus
	Owner     string
	// OpenOnly excludes mitigated and closed items.
	OpenOnly bool
}
