// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package middleware provides HTTP middleware for the ResourceHub service.
//
// This package contains middleware for authentication, role checks,
// request ids, logging, metrics, rate limiting and CORS. Authentication and
// authorization delegate to the extensions package providers.
//
// # Authentication Flow
//
//	Request
//	   │
//	   ▼
//	AuthMiddleware
//	   │
//	   ├─► Extract token from "Authorization: Bearer <token>"
//	   │
//	   ├─► provider.Validate(ctx, token)
//	   │
//	   └─► Store AuthInfo in context
//	           │
//	           ▼
//	       RequirePermission(action, resource_type)
//	           │
//	           ├─► authz.Authorize(ctx, req)
//	           │
//	           └─► 403 + "authz.denied" audit event, or Handler
//
// # Open Source Behavior
//
// When using NopAuthProvider (default), all requests are authenticated
// as "local-user" with admin privileges.
package middleware

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/ResourceHub/pkg/extensions"
)

// =============================================================================
// Context Keys
// =============================================================================

// authInfoKey is the context key for storing AuthInfo.
const authInfoKey = "resourcehub_auth_info"

// =============================================================================
// Context Helpers
// =============================================================================

// SetAuthInfo stores the authenticated user info in the Gin context.
//
// # Description
//
// Called by AuthMiddleware after successful authentication.
// The stored AuthInfo can be retrieved by handlers via GetAuthInfo.
//
// # Inputs
//
//   - c: Gin context. Must not be nil.
//   - info: Authenticated user information. May be nil.
//
// # Thread Safety
//
// Safe to call concurrently (Gin context is request-scoped).
func SetAuthInfo(c *gin.Context, info *extensions.AuthInfo) {
	c.Set(authInfoKey, info)
}

// GetAuthInfo retrieves the authenticated user info from the Gin context.
//
// # Outputs
//
//   - *extensions.AuthInfo: User info, or nil if not authenticated
//
// # Examples
//
//	authInfo := middleware.GetAuthInfo(c)
//	if authInfo == nil {
//	    c.JSON(401, gin.H{"error": "not authenticated"})
//	    return
//	}
func GetAuthInfo(c *gin.Context) *extensions.AuthInfo {
	if info, exists := c.Get(authInfoKey); exists {
		if authInfo, ok := info.(*extensions.AuthInfo); ok {
			return authInfo
		}
	}
	return nil
}

// =============================================================================
// Auth Middleware
// =============================================================================

// AuthMiddleware creates a Gin middleware that authenticates requests.
//
// # Description
//
// Extracts the bearer token from the Authorization header, validates it
// using the provided AuthProvider, and stores the resulting AuthInfo
// in the context for downstream handlers.
//
// If the header is missing or malformed, the token passed to Validate
// is the empty string. NopAuthProvider accepts this and returns local-user.
//
// # Inputs
//
//   - provider: AuthProvider to validate tokens. Must not be nil.
//
// # Limitations
//
//   - Only supports Bearer token authentication
//   - Does not cache validation results (validates every request)
//
// # Thread Safety
//
// Thread-safe. The returned middleware can be used concurrently.
func AuthMiddleware(provider extensions.AuthProvider) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractBearerToken(c)

		authInfo, err := provider.Validate(c.Request.Context(), token)
		if err != nil {
			if errors.Is(err, extensions.ErrUnauthorized) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
					"error": "unauthorized",
				})
				return
			}
			slog.Error("auth provider failed", "error", err, "request_id", GetRequestID(c))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "authentication failed",
			})
			return
		}
		if authInfo == nil || authInfo.UserID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "unauthorized",
			})
			return
		}

		SetAuthInfo(c, authInfo)
		c.Next()
	}
}

// =============================================================================
// Permission Middleware
// =============================================================================

// RequirePermission creates a Gin middleware that allows the request only
// when authz permits action on resourceType for the authenticated user.
//
// # Description
//
// Must run after AuthMiddleware. The ":id" path parameter, when present, is
// passed as the resource id. A denial aborts with 403 and records an
// "authz.denied" event through audit; failure to record it is logged and
// does not change the response.
//
// # Inputs
//
//   - authz: Decision provider. Must not be nil.
//   - audit: Logger for denied events. Must not be nil.
//   - action: One of the extensions.Action* constants.
//   - resourceType: One of the extensions.Resource* constants.
//
// # Examples
//
//	projects.POST("", middleware.RequirePermission(authz, audit,
//	    extensions.ActionCreate, extensions.ResourceProject), handlers.CreateProject(deps))
func RequirePermission(authz extensions.AuthzProvider, audit extensions.AuditLogger, action, resourceType string) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := GetAuthInfo(c)
		if user == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		req := extensions.AuthzRequest{
			User:         user,
			Action:       action,
			ResourceType: resourceType,
			ResourceID:   c.Param("id"),
		}
		err := authz.Authorize(c.Request.Context(), req)
		if err == nil {
			c.Next()
			return
		}

		if !errors.Is(err, extensions.ErrForbidden) {
			slog.Error("authz provider failed", "error", err, "request_id", GetRequestID(c))
		}
		event := extensions.AuditEvent{
			EventType:    extensions.EventAuthzDenied,
			UserID:       user.UserID,
			Action:       action,
			ResourceType: resourceType,
			ResourceID:   req.ResourceID,
			Outcome:      extensions.OutcomeDenied,
			Metadata: map[string]any{
				"method":     c.Request.Method,
				"path":       c.Request.URL.Path,
				"request_id": GetRequestID(c),
			},
		}
		if logErr := audit.Log(c.Request.Context(), event); logErr != nil {
			slog.Warn("failed to record denied access", "error", logErr, "user_id", user.UserID)
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
	}
}

// =============================================================================
// Helper Functions
// =============================================================================

// extractBearerToken extracts the token from the Authorization header.
//
// # Description
//
// Parses the Authorization header expecting format: "Bearer <token>"
// Returns empty string if header is missing or malformed.
// The "Bearer" prefix is case-insensitive per RFC 7235.
//
// # Examples
//
//	// Header: "Authorization: bearer ABC123"
//	token := extractBearerToken(c)
//	// token == "ABC123"
func extractBearerToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return ""
	}

	// Expected format: "Bearer <token>"
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}

	return strings.TrimSpace(parts[1])
}

// TokenFromQuery copies the query parameter param into the Authorization
// header when no header is present. It is meant for websocket handshakes,
// where browsers cannot set headers, and must run before AuthMiddleware.
func TokenFromQuery(param string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetHeader("Authorization") == "" {
			if token := c.Query(param); token != "" {
				c.Request.Header.Set("Authorization", "Bearer "+token)
			}
		}
		c.Next()
	}
}
