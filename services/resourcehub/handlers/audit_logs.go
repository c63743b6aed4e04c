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
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/ResourceHub/pkg/extensions"
	"github.com/AleutianAI/ResourceHub/services/resourcehub/datatypes"
)

// AuditQuerier pages through the audit trail. *auditlog.StoreLogger
// satisfies it.
type AuditQuerier interface {
	QueryPage(ctx context.Context, filter extensions.AuditFilter) ([]extensions.AuditEvent, int, error)
}

var auditOutcomes = []string{extensions.OutcomeSuccess, extensions.OutcomeFailure, extensions.OutcomeDenied}

// ListAuditLogs handles GET /v1/audit-logs.
//
// # Description
//
// Pages through the persisted audit trail, newest first. The sort key is
// fixed; sort and order do not apply.
//
// # Inputs
//
//   - q: Audit querier.
//
// Query parameters:
//   - user_id, resource_type, resource_id, action: Exact matches.
//   - outcome: success, failure or denied.
//   - event_type: Comma separated list, any of which may match.
//   - from: Inclusive lower bound, RFC 3339 or YYYY-MM-DD (midnight UTC).
//   - to: Exclusive upper bound. A bare YYYY-MM-DD includes that whole day.
//   - limit, offset: Paging.
//
// # Outputs
//
//   - 200: datatypes.ListResponse[extensions.AuditEvent].
//   - 400: Unknown outcome, unparseable time, to not after from, or bad
//     paging.
//
// # Examples
//
//	GET /v1/audit-logs?resource_id=...&from=2026-10-01&to=2026-10-14
//
// # Assumptions
//
//   - Only auditors and admins reach this handler.
func ListAuditLogs(q AuditQuerier) gin.HandlerFunc {
	return func(c *gin.Context) {
		opts, err := parseListOptions(c)
		if err != nil {
			respondError(c, err)
			return
		}
		outcome, err := queryEnum(c, "outcome", auditOutcomes)
		if err != nil {
			respondError(c, err)
			return
		}
		from, err := queryTime(c, "from", false)
		if err != nil {
			respondError(c, err)
			return
		}
		to, err := queryTime(c, "to", true)
		if err != nil {
			respondError(c, err)
			return
		}
		if !from.IsZero() && !to.IsZero() && !from.Before(to) {
			respondError(c, fieldError("to", "must be after from"))
			return
		}

		f := extensions.AuditFilter{
			UserID:       c.Query("user_id"),
			Action:       c.Query("action"),
			ResourceType: c.Query("resource_type"),
			ResourceID:   c.Query("resource_id"),
			Outcome:      outcome,
			StartTime:    from,
			EndTime:      to,
			Limit:        opts.Limit,
			Offset:       opts.Offset,
		}
		if raw := c.Query("event_type"); raw != "" {
			for _, t := range strings.Split(raw, ",") {
				if t = strings.TrimSpace(t); t != "" {
					f.EventTypes = append(f.EventTypes, t)
				}
			}
		}

		events, total, err := q.QueryPage(c.Request.Context(), f)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, datatypes.NewListResponse(events, total, opts))
	}
}
