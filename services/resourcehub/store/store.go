// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package store defines the persistence contract of ResourceHub.
//
// Implementations assign ids and timestamps on create, return ErrNotFound
// for missing rows and map driver constraint failures onto ErrConflict and
// ErrReferenced. The SQL implementation lives in store/sqlstore.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/AleutianAI/ResourceHub/pkg/extensions"
	"github.com/AleutianAI/ResourceHub/services/resourcehub/datatypes"
)

// Sentinel errors. Callers test them with errors.Is.
var (
	ErrNotFound = errors.New("not found")
	// ErrConflict covers unique violations and writes against a row whose
	// state no longer permits them.
	ErrConflict = errors.New("conflict")
	// ErrReferenced is returned when a delete is blocked by a foreign key.
	ErrReferenced = errors.New("referenced by other records")
	// ErrInvalidTransition is the workflow error shared with datatypes.
	ErrInvalidTransition = datatypes.ErrInvalidTransition
)

// ProjectStore persists projects. Deleting a project removes its
// milestones, RAID items and resource requests.
type ProjectStore interface {
	CreateProject(ctx context.Context, p *datatypes.Project) error
	GetProject(ctx context.Context, id string) (*datatypes.Project, error)
	ListProjects(ctx context.Context, f datatypes.ProjectFilter, opts datatypes.ListOptions) ([]datatypes.Project, int, error)
	UpdateProject(ctx context.Context, p *datatypes.Project) error
	DeleteProject(ctx context.Context, id string) error
}

// ResourceStore persists people that can be allocated.
type ResourceStore interface {
	CreateResource(ctx context.Context, r *datatypes.Resource) error
	GetResource(ctx context.Context, id string) (*datatypes.Resource, error)
	ListResources(ctx context.Context, f datatypes.ResourceFilter, opts datatypes.ListOptions) ([]datatypes.Resource, int, error)
	UpdateResource(ctx context.Context, r *datatypes.Resource) error
	DeleteResource(ctx context.Context, id string) error
}

// ResourceRequestStore persists resource requests and applies workflow
// transitions.
type ResourceRequestStore interface {
	CreateResourceRequest(ctx context.Context, rr *datatypes.ResourceRequest) error
	GetResourceRequest(ctx context.Context, id string) (*datatypes.ResourceRequest, error)
	ListResourceRequests(ctx context.Context, f datatypes.ResourceRequestFilter, opts datatypes.ListOptions) ([]datatypes.ResourceRequest, int, error)
	// UpdateResourceRequest succeeds only while the stored request is a
	// draft; otherwise it returns ErrConflict.
	UpdateResourceRequest(ctx context.Context, rr *datatypes.ResourceRequest) error
	DeleteResourceRequest(ctx context.Context, id string) error
	// TransitionResourceRequest moves request id from t.From to t.To. It
	// returns ErrInvalidTransition if the stored status is no longer t.From.
	TransitionResourceRequest(ctx context.Context, id string, t datatypes.Transition) (*datatypes.ResourceRequest, error)
}

// MilestoneStore persists milestones.
type MilestoneStore interface {
	CreateMilestone(ctx context.Context, m *datatypes.Milestone) error
	GetMilestone(ctx context.Context, id string) (*datatypes.Milestone, error)
	ListMilestones(ctx context.Context, f datatypes.MilestoneFilter, opts datatypes.ListOptions) ([]datatypes.Milestone, int, error)
	UpdateMilestone(ctx context.Context, m *datatypes.Milestone) error
	DeleteMilestone(ctx context.Context, id string) error
	// MarkMissedMilestones flips planned and in_progress milestones due
	// before today to missed and returns the rows it changed.
	MarkMissedMilestones(ctx context.Context, today datatypes.Date, now time.Time) ([]datatypes.Milestone, error)
}

// RAIDStore persists RAID log items.
type RAIDStore interface {
	CreateRAIDItem(ctx context.Context, item *datatypes.RAIDItem) error
	GetRAIDItem(ctx context.Context, id string) (*datatypes.RAIDItem, error)
	ListRAIDItems(ctx context.Context, f datatypes.RAIDFilter, opts datatypes.ListOptions) ([]datatypes.RAIDItem, int, error)
	UpdateRAIDItem(ctx context.Context, item *datatypes.RAIDItem) error
	DeleteRAIDItem(ctx context.Context, id string) error
}

// AuditStore is the append-only audit trail.
type AuditStore interface {
	AppendAudit(ctx context.Context, e *extensions.AuditEvent) error
	// QueryAudit returns matching events newest first and the total match
	// count ignoring Limit and Offset.
	QueryAudit(ctx context.Context, f extensions.AuditFilter) ([]extensions.AuditEvent, int, error)
	// PurgeAudit deletes events older than before and returns how many.
	PurgeAudit(ctx context.Context, before time.Time) (int64, error)
}

// DashboardStore serves the aggregate queries behind the dashboard.
type DashboardStore interface {
	CountProjectsByStatus(ctx context.Context) (map[string]int, error)
	CountRequestsByStatus(ctx context.Context) (map[string]int, error)
	// CountOpenRAID counts RAID items that are neither mitigated nor closed.
	CountOpenRAID(ctx context.Context) (byKind, bySeverity map[string]int, err error)
}

// Store is the full persistence surface used by the service.
type Store interface {
	ProjectStore
	ResourceStore
	ResourceRequestStore
	MilestoneStore
	RAIDStore
	AuditStore
	DashboardStore

	Ping(ctx context.Context) error
	Close() error
}
