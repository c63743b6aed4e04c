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

// ListResources handles GET /v1/resources.
//
// Query: department, active, q (name or email substring), limit, offset,
// sort, order.
func ListResources(s store.ResourceStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		opts, err := parseListOptions(c)
		if err != nil {
			respondError(c, err)
			return
		}
		active, err := queryBool(c, "active")
		if err != nil {
			respondError(c, err)
			return
		}
		f := datatypes.ResourceFilter{Department: c.Query("department"), Active: active, Query: c.Query("q")}

		items, total, err := s.ListResources(c.Request.Context(), f, opts)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, datatypes.NewListResponse(items, total, opts))
	}
}

// CreateResource handles POST /v1/resources.
//
// # Description
//
// Registers a person who can fulfil requests. capacity_pct defaults to
// 100 and active to true.
//
// # Outputs
//
//   - 201: The stored datatypes.Resource.
//   - 400: Missing name, malformed email or capacity outside 1 to 100.
//   - 409: email already registered.
func CreateResource(s store.ResourceStore, rec *Recorder) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body datatypes.CreateResourceBody
		if err := bindBody(c, &body); err != nil {
			respondError(c, err)
			return
		}
		r := body.ToResource()
		if err := s.CreateResource(c.Request.Context(), r); err != nil {
			respondError(c, err)
			return
		}
		rec.created(c, extensions.ResourceResource, r.ID, map[string]any{"email": r.Email})
		c.JSON(http.StatusCreated, r)
	}
}

// GetResource handles GET /v1/resources/:id.
func GetResource(s store.ResourceStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := pathID(c)
		if err != nil {
			respondError(c, err)
			return
		}
		r, err := s.GetResource(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, r)
	}
}

// UpdateResource handles PATCH /v1/resources/:id.
func UpdateResource(s store.ResourceStore, rec *Recorder) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := pathID(c)
		if err != nil {
			respondError(c, err)
			return
		}
		var body datatypes.UpdateResourceBody
		if err := bindBody(c, &body); err != nil {
			respondError(c, err)
			return
		}
		r, err := s.GetResource(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		changed := body.Apply(r)
		if len(changed) == 0 {
			c.JSON(http.StatusOK, r)
			return
		}
		if err := s.UpdateResource(c.Request.Context(), r); err != nil {
			respondError(c, err)
			return
		}
		rec.updated(c, extensions.ResourceResource, r.ID, changed)
		c.JSON(http.StatusOK, r)
	}
}

// DeleteResource handles DELETE /v1/resources/:id. A resource assigned to
// a fulfilled request cannot be deleted (409); deactivate it instead.
func DeleteResource(s store.ResourceStore, rec *Recorder) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := pathID(c)
		if err != nil {
			respondError(c, err)
			return
		}
		if err := s.DeleteResource(c.Request.Context(), id); err != nil {
			respondError(c, err)
			return
		}
		rec.deleted(c, extensions.ResourceResource, id)
		c.Status(http.StatusNoContent)
	}
}
