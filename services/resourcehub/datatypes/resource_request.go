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

import (
	"errors"
	"fmt"
	"time"
)

// RequestStatus is the workflow state of a resource request.
type RequestStatus string

const (
	RequestDraft     RequestStatus = "draft"
	RequestSubmitted RequestStatus = "submitted"
	RequestApproved  RequestStatus = "approved"
	RequestRejected  RequestStatus = "rejected"
	RequestFulfilled RequestStatus = "fulfilled"
	RequestCancelled RequestStatus = "cancelled"
)

// RequestStatuses lists every request status in workflow order.
var RequestStatuses = []RequestStatus{
	RequestDraft, RequestSubmitted, RequestApproved, RequestRejected, RequestFulfilled, RequestCancelled,
}

// Workflow actions on a resource request.
const (
	TransitionSubmit  = "submit"
	TransitionApprove = "approve"
	TransitionReject  = "reject"
	TransitionFulfill = "fulfill"
	TransitionCancel  = "cancel"
)

// ErrInvalidTransition is returned when an action is not allowed from the
// request's current status.
var ErrInvalidTransition = errors.New("invalid status transition")

// transitions maps action -> allowed source statuses -> target status.
var transitions = map[string]struct {
	from []RequestStatus
	to   RequestStatus
}{
	TransitionSubmit:  {from: []RequestStatus{RequestDraft}, to: RequestSubmitted},
	TransitionApprove: {from: []RequestStatus{RequestSubmitted}, to: RequestApproved},
	TransitionReject:  {from: []RequestStatus{RequestSubmitted}, to: RequestRejected},
	TransitionFulfill: {from: []RequestStatus{RequestApproved}, to: RequestFulfilled},
	TransitionCancel:  {from: []RequestStatus{RequestDraft, RequestSubmitted, RequestApproved}, to: RequestCancelled},
}

// NextStatus returns the status reached by applying action to a request in
// status from.
func NextStatus(from RequestStatus, action string) (RequestStatus, error) {
	t, ok := transitions[action]
	if !ok {
		return "", fmt.Errorf("unknown action %q: %w", action, ErrInvalidTransition)
	}
	for _, s := range t.from {
		if s == from {
			return t.to, nil
		}
	}
	return "", fmt.Errorf("cannot %s a %s request: %w", action, from, ErrInvalidTransition)
}

// IsTransition reports whether action names a workflow transition.
func IsTransition(action string) bool {
	_, ok := transitions[action]
	return ok
}

// ResourceRequest asks for a person with a given role to be allocated to a
// project for a period.
type ResourceRequest struct {
	ID            string        `json:"id"`
	ProjectID     string        `json:"project_id"`
	RoleTitle     string        `json:"role_title"`
	Skills        string        `json:"skills"`
	AllocationPct int           `json:"allocation_pct"`
	StartDate     *Date         `json:"start_date"`
	EndDate       *Date         `json:"end_date"`
	Status        RequestStatus `json:"status"`
	RequestedBy   string        `json:"requested_by"`
	DecidedBy     string        `json:"decided_by,omitempty"`
	DecisionNote  string        `json:"decision_note,omitempty"`
	ResourceID    string        `json:"resource_id,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// CreateResourceRequestBody is the body of POST /v1/resource-requests.
// New requests always start in draft.
type CreateResourceRequestBody struct {
	ProjectID     string `json:"project_id" validate:"required,uuid"`
	RoleTitle     string `json:"role_title" validate:"required,notblank,max=200"`
	Skills        string `json:"skills" validate:"max=2000"`
	AllocationPct int    `json:"allocation_pct" validate:"required,min=1,max=100"`
	StartDate     *Date  `json:"start_date" validate:"required"`
	EndDate       *Date  `json:"end_date" validate:"required"`
}

// Validate checks field rules and the date range.
func (r *CreateResourceRequestBody) Validate() error {
	if err := validateStruct(r); err != nil {
		return err
	}
	missing := map[string]string{}
	if r.StartDate.IsZero() {
		missing["start_date"] = "is required"
	}
	if r.EndDate.IsZero() {
		missing["end_date"] = "is required"
	}
	if len(missing) > 0 {
		return &ValidationError{Fields: missing}
	}
	return nil
}

func (r CreateResourceRequestBody) dateRange() (*Date, *Date) { return r.StartDate, r.EndDate }

// ToResourceRequest builds a draft request owned by requestedBy.
func (r *CreateResourceRequestBody) ToResourceRequest(requestedBy string) *ResourceRequest {
	return &ResourceRequest{
		ProjectID:     r.ProjectID,
		RoleTitle:     r.RoleTitle,
		Skills:        r.Skills,
		AllocationPct: r.AllocationPct,
		StartDate:     r.StartDate,
		EndDate:       r.EndDate,
		Status:        RequestDraft,
		RequestedBy:   requestedBy,
	}
}

// UpdateResourceRequestBody is the body of PATCH /v1/resource-requests/:id.
// Only draft requests may be edited.
type UpdateResourceRequestBody struct {
	RoleTitle     *string `json:"role_title" validate:"omitempty,notblank,max=200"`
	Skills        *string `json:"skills" validate:"omitempty,max=2000"`
	AllocationPct *int    `json:"allocation_pct" validate:"omitempty,min=1,max=100"`
	StartDate     *Date   `json:"start_date"`
	EndDate       *Date   `json:"end_date"`
}

// Validate checks field rules and, when both are supplied, the date range.
func (r *UpdateResourceRequestBody) Validate() error {
	return validateStruct(r)
}

func (r UpdateResourceRequestBody) dateRange() (*Date, *Date) { return r.StartDate, r.EndDate }

// Apply merges the body onto rr and returns the names of changed fields.
func (r *UpdateResourceRequestBody) Apply(rr *ResourceRequest) []string {
	var changed []string
	if r.RoleTitle != nil && *r.RoleTitle != rr.RoleTitle {
		rr.RoleTitle = *r.RoleTitle
		changed = append(changed, "role_title")
	}
	if r.Skills != nil && *r.Skills != rr.Skills {
		rr.Skills = *r.Skills
		changed = append(changed, "skills")
	}
	if r.AllocationPct != nil && *r.AllocationPct != rr.AllocationPct {
		rr.AllocationPct = *r.AllocationPct
		changed = append(changed, "allocation_pct")
	}
	// Request dates are mandatory, so an empty value is ignored rather than
	// clearing the column.
	if r.StartDate != nil && !r.StartDate.IsZero() && !sameDate(r.StartDate, rr.StartDate) {
		rr.StartDate = r.StartDate
		changed = append(changed, "start_date")
	}
	if r.EndDate != nil && !r.EndDate.IsZero() && !sameDate(r.EndDate, rr.EndDate) {
		rr.EndDate = r.EndDate
		changed = append(changed, "end_date")
	}
	return changed
}

// TransitionBody is the optional body of a workflow action.
//
// ResourceID is required by fulfill and ignored otherwise.
type TransitionBody struct {
	Note       string `json:"note" validate:"max=2000"`
	ResourceID string `json:"resource_id" validate:"omitempty,uuid"`
}

// Validate checks field rules.
func (r *TransitionBody) Validate() error {
	return validateStruct(r)
}

// Transition is a validated workflow step handed to the store.
type Transition struct {
	Action     string
	From       RequestStatus
	To         RequestStatus
	Actor      string
	Note       string
	ResourceID string
}

// ResourceRequestFilter narrows GET /v1/resource-requests.
type ResourceRequestFilter struct {
	ProjectID   string
	Status      RequestStatus
	RequestedBy string
	ResourceID  string
}
