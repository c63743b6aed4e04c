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

// ListMilestones handles GET /v1/milestones.
//
// # Description
//
// Lists milestones across projects. due_from and due_to are inclusive
// YYYY-MM-DD bounds on the due date; open=true drops completed ones.
//
// # Inputs
//
//   - s: Milestone store.
//
// Query parameters:
//   - project_id, status, due_from, due_to, open.
//   - limit, offset, sort, order: Paging and ordering.
//
// # Outputs
//
//   - 200: datatypes.ListResponse[datatypes.Milestone].
//   - 400: Malformed UUID, date, boolean or status.
func ListMilestones(s store.MilestoneStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		projectID, err := queryUUID(c, "project_id")
		if err != nil {
			respondError(c, err)
			return
		}
		listMilestones(c, s, projectID)
	}
}

func listMilestones(c *gin.Context, s store.MilestoneStore, projectID string) {
	opts, err := parseListOptions(c)
	if err != nil {
		respondError(c, err)
		return
	}
	f := datatypes.MilestoneFilter{ProjectID: projectID}
	if f.Status, err = queryEnum(c, "status", datatypes.MilestoneStatuses); err != nil {
		respondError(c, err)
		return
	}
	if f.DueFrom, err = queryDate(c, "due_from"); err != nil {
		respondError(c, err)
		return
	}
	if f.DueTo, err = queryDate(c, "due_to"); err != nil {
		respondError(c, err)
		return
	}
	open, err := queryBool(c, "open")
	if err != nil {
		respondError(c, err)
		return
	}
	f.OpenOnly = open != nil && *open

	items, total, err := s.ListMilestones(c.Request.Context(), f, opts)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, datatypes.NewListResponse(items, total, opts))
}

// CreateMilestone handles POST /v1/milestones.
//
// # Description
//
// Creates a milestone under an existing project. Status defaults to
// planned; a milestone created as completed gets completed_at set to now.
//
// # Outputs
//
//   - 201: The stored datatypes.Milestone.
//   - 400: Field errors, including project_id "does not exist".
func CreateMilestone(ps store.ProjectStore, s store.MilestoneStore, rec *Recorder) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body datatypes.CreateMilestoneRequest
		if err := bindBody(c, &body); err != nil {
			respondError(c, err)
			return
		}
		if err := requireProject(c, ps, body.ProjectID); err != nil {
			respondError(c, err)
			return
		}
		m := body.ToMilestone(rec.Now())
		if err := s.CreateMilestone(c.Request.Context(), m); err != nil {
			respondError(c, err)
			return
		}
		rec.created(c, extensions.ResourceMilestone, m.ID, map[string]any{"project_id": m.ProjectID})
		c.JSON(http.StatusCreated, m)
	}
}

// GetMilestone handles GET /v1/milestones/:id.
func GetMilestone(s store.MilestoneStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := pathID(c)
		if err != nil {
			respondError(c, err)
			return
		}
		m, err := s.GetMilestone(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, m)
	}
}

// UpdateMilestone handles PATCH /v1/milestones/:id.
func UpdateMilestone(s store.MilestoneStore, rec *Recorder) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := pathID(c)
		if err != nil {
			respondError(c, err)
			return
		}
		var body datatypes.UpdateMilestoneRequest
		if err := bindBody(c, &body); err != nil {
			respondError(c, err)
			return
		}
		m, err := s.GetMilestone(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		changed := body.Apply(m, rec.Now())
		if len(changed) == 0 {
			c.JSON(http.StatusOK, m)
			return
		}
		if err := s.UpdateMilestone(c.Request.Context(), m); err != nil {
			respondError(c, err)
			return
		}
		rec.updated(c, extensions.ResourceMilestone, m.ID, changed)
		c.JSON(http.StatusOK, m)
	}
}

// DeleteMilestone handles DELETE /v1/milestones/:id.
func DeleteMilestone(s store.MilestoneStore, rec *Recorder) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := pathID(c)
		if err != nil {
			respondError(c, err)
			return
		}
		if err := s.DeleteMilestone(c.Request.Context(), id); err != nil {
			respondError(c, err)
			return
		}
		rec.deleted(c, extensions.ResourceMilestone, id)
		c.Status(http.StatusNoContent)
	}
}
