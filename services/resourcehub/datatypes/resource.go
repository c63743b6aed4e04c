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

// Resource is a person who can be allocated to fulfil resource requests.
type Resource struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	RoleTitle   string    `json:"role_title"`
	Department  string    `json:"department"`
	CapacityPct int       `json:"capacity_pct"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// CreateResourceBody is the body of POST /v1/resources.
//
// CapacityPct defaults to 100 and Active to true.
type CreateResourceBody struct {
	Name        string `json:"name" validate:"required,notblank,max=200"`
	Email       string `json:"email" validate:"required,email,max=320"`
	RoleTitle   string `json:"role_title" validate:"max=200"`
	Department  string `json:"department" validate:"max=200"`
	CapacityPct int    `json:"capacity_pct" validate:"omitempty,min=1,max=100"`
	Active      *bool  `json:"active"`
}

// Validate checks field rules.
func (r *CreateResourceBody) Validate() error {
	return validateStruct(r)
}

// ToResource builds a new Resource with defaults applied.
func (r *CreateResourceBody) ToResource() *Resource {
	capacity := r.CapacityPct
	if capacity == 0 {
		capacity = 100
	}
	active := true
	if r.Active != nil {
		active = *r.Active
	}
	return &Resource{
		Name:        r.Name,
		Email:       r.Email,
		RoleTitle:   r.RoleTitle,
		Department:  r.Department,
		CapacityPct: capacity,
		Active:      active,
	}
}

// UpdateResourceBody is the body of PATCH /v1/resources/:id.
type UpdateResourceBody struct {
	Name        *string `json:"name" validate:"omitempty,notblank,max=200"`
	Email       *string `json:"email" validate:"omitempty,email,max=320"`
	RoleTitle   *string `json:"role_title" validate:"omitempty,max=200"`
	Department  *string `json:"department" validate:"omitempty,max=200"`
	CapacityPct *int    `json:"capacity_pct" validate:"omitempty,min=1,max=100"`
	Active      *bool   `json:"active"`
}

// Validate checks field rules.
func (r *UpdateResourceBody) Validate() error {
	return validateStruct(r)
}

// Apply merges the request onto res and returns the names of changed fields.
func (r *UpdateResourceBody) Apply(res *Resource) []string {
	var changed []string
	if r.Name != nil && *r.Name != res.Name {
		res.Name = *r.Name
		changed = append(changed, "name")
	}
	if r.Email != nil && *r.Email != res.Email {
		res.Email = *r.Email
		changed = append(changed, "email")
	}
	if r.RoleTitle != nil && *r.RoleTitle != res.RoleTitle {
		res.RoleTitle = *r.RoleTitle
		changed = append(changed, "role_title")
	}
	if r.Department != nil && *r.Department != res.Department {
		res.Department = *r.Department
		changed = append(changed, "department")
	}
	if r.CapacityPct != nil && *r.CapacityPct != res.CapacityPct {
		res.CapacityPct = *r.CapacityPct
		changed = append(changed, "capacity_pct")
	}
	if r.Active != nil && *r.Active != res.Active {
		res.Active = *r.Active
		changed = append(changed, "active")
	}
	return changed
}

// ResourceFilter narrows GET /v1/resources.
type ResourceFilter struct {
	Department string
	Active     *bool
	Query      string
}
