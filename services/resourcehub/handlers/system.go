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
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/ResourceHub/services/resourcehub/activity"
	"github.com/AleutianAI/ResourceHub/services/resourcehub/middleware"
)

// readyTimeout bounds the store ping of /ready.
const readyTimeout = 2 * time.Second

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthCheck handles GET /health. It reports liveness only.
func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Readiness handles GET /ready by pinging the store.
func Readiness(p Pinger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), readyTimeout)
		defer cancel()
		if err := p.Ping(ctx); err != nil {
			slog.Warn("readiness check failed", "error", err)
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": "database unreachable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	}
}

// Me handles GET /v1/me.
func Me(c *gin.Context) {
	user, err := currentUser(c)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// ActivityFeed handles GET /v1/activity/ws.
//
// # Description
//
// Upgrades to a websocket and streams audit events as they are recorded.
// The handler returns when the client goes away or the hub closes.
//
// # Inputs
//
//   - hub: Activity hub the connection subscribes to.
//
// Query parameters:
//   - resource_type, resource_id: Narrow the stream. Empty matches all.
//   - access_token: Bearer token for clients that cannot set headers on
//     the handshake (see middleware.TokenFromQuery).
//
// # Outputs
//
//   - 101: One JSON extensions.AuditEvent per text frame.
//
// # Limitations
//
//   - A subscriber that falls behind is dropped, not buffered.
func ActivityFeed(hub *activity.Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		f := activity.Filter{
			ResourceType: c.Query("resource_type"),
			ResourceID:   c.Query("resource_id"),
		}
		if err := hub.ServeWebSocket(c.Writer, c.Request, f); err != nil {
			slog.Debug("activity stream ended", "error", err, "request_id", middleware.GetRequestID(c))
		}
	}
}
