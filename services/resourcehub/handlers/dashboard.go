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
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/ResourceHub/services/resourcehub/datatypes"
	"github.com/AleutianAI/ResourceHub/services/resourcehub/store"
)

// UpcomingWindowDays is how far ahead the dashboard looks for due
// milestones.
const UpcomingWindowDays = 14

// DashboardSummary handles GET /v1/dashboard/summary.
//
// # Description
//
// Runs the five aggregates concurrently and fails as a whole if any of
// them fails. Upcoming milestones are open ones due between today and
// today+14 inclusive; overdue ones are open and due before today, which
// includes those the sweeper has already marked missed.
//
// # Inputs
//
//   - ds: Aggregate counts by status.
//   - ms: Milestone listings for the upcoming and overdue sections.
//   - rec: Supplies the clock, so "today" is the UTC date.
//
// # Outputs
//
//   - 200: datatypes.DashboardSummary with generated_at set.
//   - 500: Any aggregate failed.
//
// # Limitations
//
//   - Each milestone section is capped at datatypes.MaxListLimit entries.
//   - The aggregates do not share a transaction and may disagree slightly
//     under concurrent writes.
func DashboardSummary(ds store.DashboardStore, ms store.MilestoneStore, rec *Recorder) gin.HandlerFunc {
	return func(c *gin.Context) {
		now := rec.Now()
		today := datatypes.NewDate(now)
		summary := datatypes.DashboardSummary{GeneratedAt: now}
		milestoneOpts := datatypes.ListOptions{Limit: datatypes.MaxListLimit, Sort: "due_date", Order: datatypes.OrderAsc}

		g, ctx := errgroup.WithContext(c.Request.Context())
		g.Go(func() error {
			var err error
			summary.ProjectsByStatus, err = ds.CountProjectsByStatus(ctx)
			return err
		})
		g.Go(func() error {
			var err error
			summary.RequestsByStatus, err = ds.CountRequestsByStatus(ctx)
			return err
		})
		g.Go(func() error {
			var err error
			summary.OpenRAIDByKind, summary.OpenRAIDBySeverity, err = ds.CountOpenRAID(ctx)
			return err
		})
		g.Go(func() error {
			to := today.AddDays(UpcomingWindowDays)
			var err error
			summary.UpcomingMilestones, _, err = ms.ListMilestones(ctx,
				datatypes.MilestoneFilter{DueFrom: &today, DueTo: &to, OpenOnly: true}, milestoneOpts)
			return err
		})
		g.Go(func() error {
			yesterday := today.AddDays(-1)
			var err error
			summary.OverdueMilestones, _, err = ms.ListMilestones(ctx,
				datatypes.MilestoneFilter{DueTo: &yesterday, OpenOnly: true}, milestoneOpts)
			return err
		})
		if err := g.Wait(); err != nil {
			respondError(c, err)
			return
		}

		if summary.UpcomingMilestones == nil {
			summary.UpcomingMilestones = []datatypes.Milestone{}
		}
		if summary.OverdueMilestones == nil {
			summary.OverdueMilestones = []datatypes.Milestone{}
		}
		c.JSON(http.StatusOK, summary)
	}
}
