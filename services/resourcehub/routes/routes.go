// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/AleutianAI/ResourceHub/pkg/extensions"
	"github.com/AleutianAI/ResourceHub/services/resourcehub/activity"
	"github.com/AleutianAI/ResourceHub/services/resourcehub/datatypes"
	"github.com/AleutianAI/ResourceHub/services/resourcehub/handlers"
	"github.com/AleutianAI/ResourceHub/services/resourcehub/middleware"
	"github.com/AleutianAI/ResourceHub/services/resourcehub/observability"
	"github.com/AleutianAI/ResourceHub/services/resourcehub/store"
)

// Deps holds everything the routes close over.
type Deps struct {
	Store    store.Store
	Options  extensions.ServiceOptions
	Audit    handlers.AuditQuerier
	Recorder *handlers.Recorder
	Hub      *activity.Hub
	Gatherer prometheus.Gatherer
	Metrics  *observability.Metrics
	// Limiter throttles /v1 per client. nil disables rate limiting.
	Limiter *middleware.RateLimiter
}

// SetupRoutes registers every endpoint on router. Global middleware
// (recovery, request id, logging, metrics, tracing, CORS) is installed by
// the caller.
func SetupRoutes(router *gin.Engine, d Deps) {
	opts := d.Options.WithDefaults()
	s := d.Store
	rec := d.Recorder
	if rec == nil {
		rec = handlers.NewRecorder(opts.AuditLogger, d.Metrics)
	}
	allow := func(action, resourceType string) gin.HandlerFunc {
		return middleware.RequirePermission(opts.AuthzProvider, opts.AuditLogger, action, resourceType)
	}

	router.GET("/health", handlers.HealthCheck)
	router.GET("/ready", handlers.Readiness(s))
	if d.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))
	}

	guard := []gin.HandlerFunc{middleware.AuthMiddleware(opts.AuthProvider)}
	if d.Limiter != nil {
		guard = append(guard, middleware.RateLimit(d.Limiter, d.Metrics))
	}

	// API version 1 group
	v1 := router.Group("/v1", guard...)
	{
		v1.GET("/me", handlers.Me)

		projects := v1.Group("/projects")
		{
			projects.GET("", allow(extensions.ActionRead, extensions.ResourceProject), handlers.ListProjects(s))
			projects.POST("", allow(extensions.ActionCreate, extensions.ResourceProject), handlers.CreateProject(s, rec))
			projects.GET("/:id", allow(extensions.ActionRead, extensions.ResourceProject), handlers.GetProject(s))
			projects.PATCH("/:id", allow(extensions.ActionUpdate, extensions.ResourceProject), handlers.UpdateProject(s, rec))
			projects.DELETE("/:id", allow(extensions.ActionDelete, extensions.ResourceProject), handlers.DeleteProject(s, rec))
			projects.GET("/:id/milestones", allow(extensions.ActionRead, extensions.ResourceMilestone), handlers.ListProjectMilestones(s, s))
			projects.GET("/:id/raid", allow(extensions.ActionRead, extensions.ResourceRAIDItem), handlers.ListProjectRAIDItems(s, s))
			projects.GET("/:id/resource-requests", allow(extensions.ActionRead, extensions.ResourceResourceRequest), handlers.ListProjectResourceRequests(s, s))
		}

		resources := v1.Group("/resources")
		{
			resources.GET("", allow(extensions.ActionRead, extensions.ResourceResource), handlers.ListResources(s))
			resources.POST("", allow(extensions.ActionCreate, extensions.ResourceResource), handlers.CreateResource(s, rec))
			resources.GET("/:id", allow(extensions.ActionRead, extensions.ResourceResource), handlers.GetResource(s))
			resources.PATCH("/:id", allow(extensions.ActionUpdate, extensions.ResourceResource), handlers.UpdateResource(s, rec))
			resources.DELETE("/:id", allow(extensions.ActionDelete, extensions.ResourceResource), handlers.DeleteResource(s, rec))
		}

		requests := v1.Group("/resource-requests")
		{
			requests.GET("", allow(extensions.ActionRead, extensions.ResourceResourceRequest), handlers.ListResourceRequests(s))
			requests.POST("", allow(extensions.ActionCreate, extensions.ResourceResourceRequest), handlers.CreateResourceRequest(s, s, rec))
			requests.GET("/:id", allow(extensions.ActionRead, extensions.ResourceResourceRequest), handlers.GetResourceRequest(s))
			requests.PATCH("/:id", allow(extensions.ActionUpdate, extensions.ResourceResourceRequest), handlers.UpdateResourceRequest(s, rec))
			requests.DELETE("/:id", allow(extensions.ActionDelete, extensions.ResourceResourceRequest), handlers.DeleteResourceRequest(s, rec))
			// Workflow
			for _, action := range []string{
				datatypes.TransitionSubmit,
				datatypes.TransitionApprove,
				datatypes.TransitionReject,
				datatypes.TransitionFulfill,
				datatypes.TransitionCancel,
			} {
				requests.POST("/:id/"+action, allow(action, extensions.ResourceResourceRequest),
					handlers.TransitionResourceRequest(s, s, rec, action))
			}
		}

		milestones := v1.Group("/milestones")
		{
			milestones.GET("", allow(extensions.ActionRead, extensions.ResourceMilestone), handlers.ListMilestones(s))
			milestones.POST("", allow(extensions.ActionCreate, extensions.ResourceMilestone), handlers.CreateMilestone(s, s, rec))
			milestones.GET("/:id", allow(extensions.ActionRead, extensions.ResourceMilestone), handlers.GetMilestone(s))
			milestones.PATCH("/:id", allow(extensions.ActionUpdate, extensions.ResourceMilestone), handlers.UpdateMilestone(s, rec))
			milestones.DELETE("/:id", allow(extensions.ActionDelete, extensions.ResourceMilestone), handlers.DeleteMilestone(s, rec))
		}

		raid := v1.Group("/raid")
		{
			raid.GET("", allow(extensions.ActionRead, extensions.ResourceRAIDItem), handlers.ListRAIDItems(s))
			raid.POST("", allow(extensions.ActionCreate, extensions.ResourceRAIDItem), handlers.CreateRAIDItem(s, s, rec))
			raid.GET("/:id", allow(extensions.ActionRead, extensions.ResourceRAIDItem), handlers.GetRAIDItem(s))
			raid.PATCH("/:id", allow(extensions.ActionUpdate, extensions.ResourceRAIDItem), handlers.UpdateRAIDItem(s, rec))
			raid.DELETE("/:id", allow(extensions.ActionDelete, extensions.ResourceRAIDItem), handlers.DeleteRAIDItem(s, rec))
		}

		if d.Audit != nil {
			v1.GET("/audit-logs", allow(extensions.ActionRead, extensions.ResourceAuditLog), handlers.ListAuditLogs(d.Audit))
		}
		v1.GET("/dashboard/summary", allow(extensions.ActionRead, extensions.ResourceDashboard), handlers.DashboardSummary(s, s, rec))
	}

	// The activity feed accepts the token as a query parameter because
	// browsers cannot set headers on websocket handshakes.
	if d.Hub != nil {
		router.GET("/v1/activity/ws",
			middleware.TokenFromQuery("access_token"),
			middleware.AuthMiddleware(opts.AuthProvider),
			allow(extensions.ActionRead, extensions.ResourceActivity),
			handlers.ActivityFeed(d.Hub))
	}
}
