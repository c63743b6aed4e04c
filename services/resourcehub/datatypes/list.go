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
	"strings"
	"time"
)

// Paging limits for list endpoints.
const (
	DefaultListLimit = 50
	MaxListLimit     = 200
)

// Sort orders.
const (
	OrderAsc  = "asc"
	OrderDesc = "desc"
)

// ListOptions controls paging and ordering of list queries.
//
// Sort is a field name; the store maps it onto a whitelisted column and
// falls back to created_at for anything it does not know.
type ListOptions struct {
	Limit  int
	Offset int
	Sort   string
	Order  string
}

// Normalize clamps Limit to [1, MaxListLimit], Offset to >= 0 and Order to
// asc/desc (default desc).
func (o ListOptions) Normalize() ListOptions {
	if o.Limit <= 0 {
		o.Limit = DefaultListLimit
	}
	if o.Limit > MaxListLimit {
		o.Limit = MaxListLimit
	}
	if o.Offset < 0 {
		o.Offset = 0
	}
	switch strings.ToLower(o.Order) {
	case OrderAsc:
		o.Order = OrderAsc
	default:
		o.Order = OrderDesc
	}
	return o
}

// ListResponse is the envelope of every list endpoint.
type ListResponse[T any] struct {
	Items  []T `json:"items"`
	Total  int `json:"total"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

// NewListResponse wraps items, replacing a nil slice with an empty one so
// clients always receive a JSON array.
func NewListResponse[T any](items []T, total int, opts ListOptions) ListResponse[T] {
	if items == nil {
		items = []T{}
	}
	return ListResponse[T]{Items: items, Total: total, Limit: opts.Limit, Offset: opts.Offset}
}

// DashboardSummary is the body of GET /v1/dashboard/summary.
type DashboardSummary struct {
	ProjectsByStatus   map[string]int `json:"projects_by_status"`
	RequestsByStatus   map[string]int `json:"requests_by_status"`
	OpenRAIDByKind     map[string]int `json:"open_raid_by_kind"`
	OpenRAIDBySeverity map[string]int `json:"open_raid_by_severity"`
	UpcomingMilestones []Milestone    `json:"upcoming_milestones"`
	OverdueMilestones  []Milestone    `json:"overdue_milestones"`
	GeneratedAt        time.Time      `json:"generated_at"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}
