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

// ListRAIDItems handles GET /v1/raid.
//
// # Description
//
// Lists risks, assumptions, issues and dependencies. open=true keeps only
// items that are neither mitigated nor closed.
//
// # Inputs
//
//   - s: RAID store.
//
// Query parameters:
//   - project_id, kind, severity, status, owner, open.
//   - limit, offset, sort, order: Paging and ordering.
//
// # Outputs
//
//   - 200: datatypes.ListResponse[datatypes.RAIDItem].
//   - 400: Malformed UUID, boolean or enum value.
func ListRAIDItems(s store.RAIDStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		projectID, err := queryUUID(c, "project_id")
		if err != nil {
			respondError(c, err)
			return
		}
		listRAIDItems(c, s, projectID)
	}
}

func listRAIDItems(c *gin.Context, s store.RAIDStore, projectID string) {
	opts, err := parseListOptions(c)
	if err != nil {
		respondError(c, err)
		return
	}
	f := datatypes.RAIDFilter{ProjectID: projectID, Owner: c.Query("owner")}
	if f.Kind, err = queryEnum(c, "kind", datatypes.RAIDKinds); err != nil {
		respondError(c, err)
		return
	}
	if f.Severity, err = queryEnum(c, "severity", datatypes.Severities); err != nil {
		respondError(c, err)
		return
	}
	if f.Status, err = queryEnum(c, "status", datatypes.RAIDStatuses); err != nil {
		respondError(c, err)
		return
	}
	open, err := queryBool(c, "open")
	if err != nil {
		respondError(c, err)
		return
	}
	f.OpenOnly = open != nil && *open

	items, total, err := s.ListRAIDItems(c.Request.Context(), f, opts)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, datatypes.NewListResponse(items, total, opts))
}

// CreateRAIDItem handles POST /v1/raid. kind and title are required and
// project_id must exist; the audit event carries the kind.
func CreateRAIDItem(ps store.ProjectStore, s store.RAIDStore, rec *Recorder) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body datatypes.CreateRAIDItemRequest
		if err := bindBody(c, &body); err != nil {
			respondError(c, err)
			return
		}
		if err := requireProject(c, ps, body.ProjectID); err != nil {
			respondError(c, err)
			return
		}
		item := body.ToRAIDItem()
		if err := s.CreateRAIDItem(c.Request.Context(), item); err != nil {
			respondError(c, err)
			return
		}
		rec.created(c, extensions.ResourceRAIDItem, item.ID, map[string]any{
			"project_id": item.ProjectID,
			"kind":       string(item.Kind),
		})
		c.JSON(http.StatusCreated, item)
	}
}

// GetRAIDItem handles GET /v1/raid/:id.
func GetRAIDItem(s store.RAIDStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := pathID(c)
		if err != nil {
			respondError(c, err)
			return
		}
		item, err := s.GetRAIDItem(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, item)
	}
}

// UpdateRAIDItem handles PATCH /v1/raid/:id.
func UpdateRAIDItem(s store.RAIDStore, rec *Recorder) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := pathID(c)
		if err != nil {
			respondError(c, err)
			return
		}
		var body datatypes.UpdateRAIDItemRequest
		if err := bindBody(c, &body); err != nil {
			respondError(c, err)
			return
		}
		item, err := s.GetRAIDItem(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		changed := body.Apply(item)
		if len(changed) == 0 {
			c.JSON(http.StatusOK, item)
			return
		}
		if err := s.UpdateRAIDItem(c.Request.Context(), item); err != nil {
			respondError(c, err)
			return
		}
		rec.updated(c, extensions.ResourceRAIDItem, item.ID, changed)
		c.JSON(http.StatusOK, item)
	}
}

// DeleteRAIDItem handles DELETE /v1/raid/:id.
func DeleteRAIDItem(s store.RAIDStore, rec *Recorder) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := pathID(c)
		if err != nil {
			respondError(c, err)
			return
		}
		if err := s.DeleteRAIDItem(c.Request.Context(), id); err != nil {
			respondError(c, err)
			return
		}
		rec.deleted(c, extensions.ResourceRAIDItem, id)
		c.Status(http.StatusNoContent)
	}
}
