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
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/ResourceHub/pkg/extensions"
	"github.com/AleutianAI/ResourceHub/services/resourcehub/datatypes"
	"github.com/AleutianAI/ResourceHub/services/resourcehub/store"
)

// =============================================================================
// Resource Request Handlers
// =============================================================================

// ListResourceRequests handles GET /v1/resource-requests.
//
// # Description
//
// Lists resource requests one page at a time. Every role that can read
// requests sees all of them; mine=true narrows the list to the caller.
//
// # Inputs
//
//   - s: Request store.
//
// Query parameters:
//   - project_id, resource_id: UUIDs.
//   - status: One of the workflow statuses.
//   - requested_by: Exact user id.
//   - mine: Boolean. When true it overrides requested_by with the caller.
//   - limit, offset, sort, order: Paging and ordering.
//
// # Outputs
//
//   - 200: datatypes.ListResponse[datatypes.ResourceRequest].
//   - 400: Malformed UUID, boolean, status or paging parameter.
func ListResourceRequests(s store.ResourceRequestStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		projectID, err := queryUUID(c, "project_id")
		if err != nil {
			respondError(c, err)
			return
		}
		listResourceRequests(c, s, projectID)
	}
}

func listResourceRequests(c *gin.Context, s store.ResourceRequestStore, projectID string) {
	opts, err := parseListOptions(c)
	if err != nil {
		respondError(c, err)
		return
	}
	status, err := queryEnum(c, "status", datatypes.RequestStatuses)
	if err != nil {
		respondError(c, err)
		return
	}
	resourceID, err := queryUUID(c, "resource_id")
	if err != nil {
		respondError(c, err)
		return
	}
	mine, err := queryBool(c, "mine")
	if err != nil {
		respondError(c, err)
		return
	}
	f := datatypes.ResourceRequestFilter{
		ProjectID:   projectID,
		Status:      status,
		RequestedBy: c.Query("requested_by"),
		ResourceID:  resourceID,
	}
	if mine != nil && *mine {
		user, err := currentUser(c)
		if err != nil {
			respondError(c, err)
			return
		}
		f.RequestedBy = user.UserID
	}

	items, total, err := s.ListResourceRequests(c.Request.Context(), f, opts)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, datatypes.NewListResponse(items, total, opts))
}

// CreateResourceRequest handles POST /v1/resource-requests.
//
// # Description
//
// Creates a draft request owned by the caller and audits data.create with
// the project id. Nothing is routed for approval until the owner submits.
//
// # Inputs
//
//   - ps: Project store, used to check project_id.
//   - s: Request store.
//   - rec: Audit and metrics recorder.
//
// Request Body (datatypes.CreateResourceRequestBody):
//   - project_id: Required. Must name an existing project.
//   - role_title: Required.
//   - allocation_pct: Required. 1 to 100.
//   - start_date, end_date: Required. end_date must not precede start_date.
//   - skills: Optional.
//
// # Outputs
//
//   - 201: The stored datatypes.ResourceRequest in status draft.
//   - 400: Field errors, including project_id "does not exist".
//
// # Examples
//
//	POST /v1/resource-requests
//	{"project_id":"...","role_title":"SRE","allocation_pct":50,
//	 "start_date":"2026-01-05","end_date":"2026-03-27"}
func CreateResourceRequest(ps store.ProjectStore, s store.ResourceRequestStore, rec *Recorder) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := currentUser(c)
		if err != nil {
			respondError(c, err)
			return
		}
		var body datatypes.CreateResourceRequestBody
		if err := bindBody(c, &body); err != nil {
			respondError(c, err)
			return
		}
		if err := requireProject(c, ps, body.ProjectID); err != nil {
			respondError(c, err)
			return
		}
		rr := body.ToResourceRequest(user.UserID)
		if err := s.CreateResourceRequest(c.Request.Context(), rr); err != nil {
			respondError(c, err)
			return
		}
		rec.created(c, extensions.ResourceResourceRequest, rr.ID, map[string]any{"project_id": rr.ProjectID})
		c.JSON(http.StatusCreated, rr)
	}
}

// GetResourceRequest handles GET /v1/resource-requests/:id.
func GetResourceRequest(s store.ResourceRequestStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := pathID(c)
		if err != nil {
			respondError(c, err)
			return
		}
		rr, err := s.GetResourceRequest(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, rr)
	}
}

// UpdateResourceRequest handles PATCH /v1/resource-requests/:id. Only
// drafts can be edited, and requesters can edit only their own.
func UpdateResourceRequest(s store.ResourceRequestStore, rec *Recorder) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := pathID(c)
		if err != nil {
			respondError(c, err)
			return
		}
		var body datatypes.UpdateResourceRequestBody
		if err := bindBody(c, &body); err != nil {
			respondError(c, err)
			return
		}
		rr, err := s.GetResourceRequest(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		if err := checkOwner(c, rec, rr, extensions.ActionUpdate); err != nil {
			respondError(c, err)
			return
		}
		if rr.Status != datatypes.RequestDraft {
			respondError(c, fmt.Errorf("%w: request is %s, only drafts can be edited", store.ErrConflict, rr.Status))
			return
		}
		changed := body.Apply(rr)
		if len(changed) == 0 {
			c.JSON(http.StatusOK, rr)
			return
		}
		if err := datatypes.ValidateDateRange(rr.StartDate, rr.EndDate); err != nil {
			respondError(c, err)
			return
		}
		if err := s.UpdateResourceRequest(c.Request.Context(), rr); err != nil {
			respondError(c, err)
			return
		}
		rec.updated(c, extensions.ResourceResourceRequest, rr.ID, changed)
		c.JSON(http.StatusOK, rr)
	}
}

// DeleteResourceRequest handles DELETE /v1/resource-requests/:id.
// Requesters can delete only their own drafts.
func DeleteResourceRequest(s store.ResourceRequestStore, rec *Recorder) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := pathID(c)
		if err != nil {
			respondError(c, err)
			return
		}
		rr, err := s.GetResourceRequest(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		if err := checkOwner(c, rec, rr, extensions.ActionDelete); err != nil {
			respondError(c, err)
			return
		}
		user, _ := currentUser(c)
		if !canManageRequests(user) && rr.Status != datatypes.RequestDraft {
			respondError(c, fmt.Errorf("%w: request is %s, only drafts can be deleted", store.ErrConflict, rr.Status))
			return
		}
		if err := s.DeleteResourceRequest(c.Request.Context(), id); err != nil {
			respondError(c, err)
			return
		}
		rec.deleted(c, extensions.ResourceResourceRequest, id)
		c.Status(http.StatusNoContent)
	}
}

// TransitionResourceRequest handles POST /v1/resource-requests/:id/<action>.
//
// # Description
//
// Applies one workflow action. The store performs the status change as a
// conditional update, so of two concurrent identical actions exactly one
// succeeds and the other gets 409. fulfill requires the id of an active
// resource in the body. Requesters may submit and cancel only their own
// requests.
//
// # Inputs
//
//   - rs: Request store.
//   - res: Resource store, used to check the fulfilling resource.
//   - rec: Audit recorder. Every attempt that reaches the workflow check is
//     recorded, including rejected ones.
//   - action: One of the datatypes.Transition* constants.
//
// Request Body (datatypes.TransitionBody, optional):
//   - note: Free text stored on the transition and in the audit event.
//   - resource_id: Required for fulfill.
//
// # Outputs
//
//   - 200: The request after the transition.
//   - 400: fulfill without an existing, active resource_id.
//   - 403: A requester acting on someone else's request.
//   - 404: Unknown id.
//   - 409: The action is not allowed from the current status, or a
//     concurrent transition won.
//
// # Examples
//
//	requests.POST("/:id/approve", TransitionResourceRequest(rs, res, rec, datatypes.TransitionApprove))
//
// # Limitations
//
//   - The fulfilling resource is checked before the transition commits
//     and could be deactivated in between.
func TransitionResourceRequest(rs store.ResourceRequestStore, res store.ResourceStore, rec *Recorder, action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := pathID(c)
		if err != nil {
			respondError(c, err)
			return
		}
		user, err := currentUser(c)
		if err != nil {
			respondError(c, err)
			return
		}
		var body datatypes.TransitionBody
		if err := bindOptionalBody(c, &body); err != nil {
			respondError(c, err)
			return
		}

		ctx := c.Request.Context()
		current, err := rs.GetResourceRequest(ctx, id)
		if err != nil {
			respondError(c, err)
			return
		}
		if err := checkOwner(c, rec, current, action); err != nil {
			respondError(c, err)
			return
		}

		to, err := datatypes.NextStatus(current.Status, action)
		if err != nil {
			rec.transitioned(c, id, action, string(current.Status), "", err)
			respondError(c, err)
			return
		}
		if action == datatypes.TransitionFulfill {
			if err := checkFulfillResource(c, res, body.ResourceID); err != nil {
				respondError(c, err)
				return
			}
		}

		t := datatypes.Transition{
			Action:     action,
			From:       current.Status,
			To:         to,
			Actor:      user.UserID,
			Note:       body.Note,
			ResourceID: body.ResourceID,
		}
		updated, err := rs.TransitionResourceRequest(ctx, id, t)
		if err != nil {
			if errors.Is(err, store.ErrInvalidTransition) {
				rec.transitioned(c, id, action, string(current.Status), "", err)
			}
			respondError(c, err)
			return
		}
		rec.transitioned(c, id, action, string(t.From), string(t.To), nil)
		c.JSON(http.StatusOK, updated)
	}
}

// checkFulfillResource requires resourceID to name an active resource.
func checkFulfillResource(c *gin.Context, res store.ResourceStore, resourceID string) error {
	if resourceID == "" {
		return fieldError("resource_id", "is required to fulfill a request")
	}
	r, err := res.GetResource(c.Request.Context(), resourceID)
	if errors.Is(err, store.ErrNotFound) {
		return fieldError("resource_id", "does not exist")
	}
	if err != nil {
		return err
	}
	if !r.Active {
		return fieldError("resource_id", "resource is not active")
	}
	return nil
}

// canManageRequests reports whether user may act on other users' requests.
func canManageRequests(user *extensions.AuthInfo) bool {
	return user.HasAnyRole(extensions.RoleAdmin, extensions.RoleManager)
}

// checkOwner denies requesters acting on a request they did not create.
// Managers and admins pass. A denial is audited like a role denial.
func checkOwner(c *gin.Context, rec *Recorder, rr *datatypes.ResourceRequest, action string) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	if canManageRequests(user) || rr.RequestedBy == user.UserID {
		return nil
	}
	rec.log(c, extensions.AuditEvent{
		EventType:    extensions.EventAuthzDenied,
		Action:       action,
		ResourceType: extensions.ResourceResourceRequest,
		ResourceID:   rr.ID,
		Outcome:      extensions.OutcomeDenied,
		Metadata:     map[string]any{"reason": "not the requester"},
	})
	return fmt.Errorf("%s does not own request %s: %w", user.UserID, rr.ID, extensions.ErrForbidden)
}
