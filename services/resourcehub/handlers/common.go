// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package handlers implements the ResourceHub REST endpoints as gin
// handler factories. Each factory closes over the narrow store interface
// it needs.
package handlers

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/AleutianAI/ResourceHub/pkg/extensions"
	"github.com/AleutianAI/ResourceHub/services/resourcehub/datatypes"
	"github.com/AleutianAI/ResourceHub/services/resourcehub/middleware"
	"github.com/AleutianAI/ResourceHub/services/resourcehub/store"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 1 << 20

// badRequestError carries a client-facing 400 message.
type badRequestError struct{ msg string }

func (e *badRequestError) Error() string { return e.msg }

func badRequest(msg string) error { return &badRequestError{msg: msg} }

// fieldError is a single-field validation failure.
func fieldError(field, msg string) error {
	return &datatypes.ValidationError{Fields: map[string]string{field: msg}}
}

// respondError writes the JSON error for err and aborts the request.
//
// Store sentinels map onto 404, 409 and the auth sentinels onto 401/403;
// validation and decode failures are 400. Anything else is logged and
// reported as a bare 500.
func respondError(c *gin.Context, err error) {
	var (
		verr *datatypes.ValidationError
		berr *badRequestError
	)
	switch {
	case errors.As(err, &verr):
		c.AbortWithStatusJSON(http.StatusBadRequest, datatypes.ErrorResponse{Error: "validation failed", Fields: verr.Fields})
	case errors.As(err, &berr):
		c.AbortWithStatusJSON(http.StatusBadRequest, datatypes.ErrorResponse{Error: berr.msg})
	case errors.Is(err, datatypes.ErrInvalidDateRange):
		c.AbortWithStatusJSON(http.StatusBadRequest, datatypes.ErrorResponse{
			Error:  "validation failed",
			Fields: map[string]string{"end_date": "must not be before start_date"},
		})
	case errors.Is(err, extensions.ErrUnauthorized):
		c.AbortWithStatusJSON(http.StatusUnauthorized, datatypes.ErrorResponse{Error: "unauthorized"})
	case errors.Is(err, extensions.ErrForbidden):
		c.AbortWithStatusJSON(http.StatusForbidden, datatypes.ErrorResponse{Error: "forbidden"})
	case errors.Is(err, store.ErrNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, datatypes.ErrorResponse{Error: "not found"})
	case errors.Is(err, store.ErrInvalidTransition),
		errors.Is(err, store.ErrConflict),
		errors.Is(err, store.ErrReferenced):
		c.AbortWithStatusJSON(http.StatusConflict, datatypes.ErrorResponse{Error: err.Error()})
	default:
		slog.Error("request failed",
			"error", err,
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"request_id", middleware.GetRequestID(c))
		_ = c.Error(err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, datatypes.ErrorResponse{Error: "internal server error"})
	}
}

// validatable is implemented by every request body type.
type validatable interface {
	Validate() error
}

// bindBody decodes the JSON body into v and runs its Validate method.
func bindBody(c *gin.Context, v validatable) error {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes)
	if err := c.ShouldBindJSON(v); err != nil {
		if errors.Is(err, io.EOF) {
			return badRequest("request body is required")
		}
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return badRequest("request body too large")
		}
		return badRequest("invalid JSON: " + err.Error())
	}
	return v.Validate()
}

// bindOptionalBody is bindBody that accepts an empty body.
func bindOptionalBody(c *gin.Context, v validatable) error {
	if c.Request.ContentLength == 0 {
		return v.Validate()
	}
	err := bindBody(c, v)
	var berr *badRequestError
	if errors.As(err, &berr) && berr.msg == "request body is required" {
		return v.Validate()
	}
	return err
}

// currentUser returns the authenticated user. Routes are always mounted
// behind the auth middleware, so nil means a wiring bug.
func currentUser(c *gin.Context) (*extensions.AuthInfo, error) {
	user := middleware.GetAuthInfo(c)
	if user == nil {
		return nil, extensions.ErrUnauthorized
	}
	return user, nil
}

// pathID returns the ":id" parameter. Malformed ids cannot exist and are
// reported as not found.
func pathID(c *gin.Context) (string, error) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		return "", fmt.Errorf("id %q: %w", id, store.ErrNotFound)
	}
	return id, nil
}

// requireProject turns a missing parent project into a field error on
// project_id.
func requireProject(c *gin.Context, ps store.ProjectStore, id string) error {
	if _, err := ps.GetProject(c.Request.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fieldError("project_id", "does not exist")
		}
		return err
	}
	return nil
}
