// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/ResourceHub/pkg/extensions"
	"github.com/AleutianAI/ResourceHub/services/resourcehub/datatypes"
	"github.com/AleutianAI/ResourceHub/services/resourcehub/store"
)

// =============================================================================
// Project Handlers
// =============================================================================

// ListProjects handles GET /v1/projects.
//
// # Description
//
// Lists projects one page at a time. Filters combine with AND; an absent
// filter matches everything.
//
// # Inputs
//
//   - s: Project store.
//
// Query parameters:
//   - status: One of proposed, active, on_hold, completed, cancelled.
//   - owner: Exact owner match.
//   - q: Case-insensitive substring of name or code.
//   - limit, offset, sort, order: Paging and ordering. Unknown sort keys
//     fall back to created_at.
//
// # Outputs
//
//   - 200: datatypes.ListResponse[datatypes.Project].
//   - 400: Unknown status, non-numeric paging or an order other than asc
//     and desc.
//
// # Examples
//
//	GET /v1/projects?status=active&q=apollo&sort=name&order=asc
//
// # Limitations
//
//   - total is counted in a separate query and can drift from items under
//     concurrent writes.
func ListProjects(s store.ProjectStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		opts, err := parseListOptions(c)
		if err != nil {
			respondError(c, err)
			return
		}
		status, err := queryEnum(c, "status", datatypes.ProjectStatuses)
		if err != nil {
			respondError(c, err)
			return
		}
		f := datatypes.ProjectFilter{Status: status, Owner: c.Query("owner"), Query: c.Query("q")}

		items, total, err := s.ListProjects(c.Request.Context(), f, opts)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, datatypes.NewListResponse(items, total, opts))
	}
}

// CreateProject handles POST /v1/projects.
//
// # Description
//
// Validates the body, assigns the id and timestamps, stores the project
// and records a data.create audit event carrying the project code.
//
// # Inputs
//
//   - s: Project store.
//   - rec: Audit and metrics recorder.
//
// Request Body (datatypes.CreateProjectRequest):
//   - code, name: Required. code is unique across projects.
//   - status: Optional. Defaults to proposed.
//   - owner, description, start_date, end_date, budget: Optional.
//
// # Outputs
//
//   - 201: The stored datatypes.Project.
//   - 400: Missing fields, bad enum values or end_date before start_date.
//   - 409: code already in use.
//
// # Assumptions
//
//   - The route is mounted behind auth and project:create authorization.
func CreateProject(s store.ProjectStore, rec *Recorder) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body datatypes.CreateProjectRequest
		if err := bindBody(c, &body); err != nil {
			respondError(c, err)
			return
		}
		p := body.ToProject()
		if err := s.CreateProject(c.Request.Context(), p); err != nil {
			respondError(c, err)
			return
		}
		rec.created(c, extensions.ResourceProject, p.ID, map[string]any{"code": p.Code})
		c.JSON(http.StatusCreated, p)
	}
}

// GetProject handles GET /v1/projects/:id.
func GetProject(s store.ProjectStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := pathID(c)
		if err != nil {
			respondError(c, err)
			return
		}
		p, err := s.GetProject(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, p)
	}
}

// UpdateProject handles PATCH /v1/projects/:id.
//
// # Description
//
// Applies the fields present in the body over the stored project. An
// empty patch, or one that changes nothing, returns the project without
// writing or auditing. Otherwise the changed field names are audited as
// data.update.
//
// # Outputs
//
//   - 200: The project after the update.
//   - 400: Invalid fields, or merged dates with end_date before start_date.
//   - 404: Unknown id.
//   - 409: The new code collides with another project.
func UpdateProject(s store.ProjectStore, rec *Recorder) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := pathID(c)
		if err != nil {
			respondError(c, err)
			return
		}
		var body datatypes.UpdateProjectRequest
		if err := bindBody(c, &body); err != nil {
			respondError(c, err)
			return
		}
		p, err := s.GetProject(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		changed := body.Apply(p)
		if len(changed) == 0 {
			c.JSON(http.StatusOK, p)
			return
		}
		if err := datatypes.ValidateDateRange(p.StartDate, p.EndDate); err != nil {
			respondError(c, err)
			return
		}
		if err := s.UpdateProject(c.Request.Context(), p); err != nil {
			respondError(c, err)
			return
		}
		rec.updated(c, extensions.ResourceProject, p.ID, changed)
		c.JSON(http.StatusOK, p)
	}
}

// DeleteProject handles DELETE /v1/projects/:id.
//
// # Description
//
// Removes the project together with its milestones, RAID items and
// resource requests, then audits data.delete. Responds 204, or 404 for an
// unknown id.
func DeleteProject(s store.ProjectStore, rec *Recorder) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := pathID(c)
		if err != nil {
			respondError(c, err)
			return
		}
		if err := s.DeleteProject(c.Request.Context(), id); err != nil {
			respondError(c, err)
			return
		}
		rec.deleted(c, extensions.ResourceProject, id)
		c.Status(http.StatusNoContent)
	}
}

// ListProjectMilestones handles GET /v1/projects/:id/milestones.
func ListProjectMilestones(ps store.ProjectStore, ms store.MilestoneStore) gin.HandlerFunc {
	return projectSubList(ps, func(c *gin.Context, projectID string) {
		listMilestones(c, ms, projectID)
	})
}

// ListProjectRAIDItems handles GET /v1/projects/:id/raid.
func ListProjectRAIDItems(ps store.ProjectStore, rs store.RAIDStore) gin.HandlerFunc {
	return projectSubList(ps, func(c *gin.Context, projectID string) {
		listRAIDItems(c, rs, projectID)
	})
}

// ListProjectResourceRequests handles GET /v1/projects/:id/resource-requests.
func ListProjectResourceRequests(ps store.ProjectStore, rs store.ResourceRequestStore) gin.HandlerFunc {
	return projectSubList(ps, func(c *gin.Context, projectID string) {
		listResourceRequests(c, rs, projectID)
	})
}

// projectSubList resolves the project of a nested collection, answering
// 404 when it does not exist, before delegating to list.
func projectSubList(ps store.ProjectStore, list func(c *gin.Context, projectID string)) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := pathID(c)
		if err != nil {
			respondError(c, err)
			return
		}
		if _, err := ps.GetProject(c.Request.Context(), id); err != nil {
			respondError(c, err)
			return
		}
		list(c, id)
	}
}
