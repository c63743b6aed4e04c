// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package extensions

import (
	"context"
	"fmt"
	"slices"
)

// Actions checked by RoleAuthzProvider.
const (
	ActionRead    = "read"
	ActionCreate  = "create"
	ActionUpdate  = "update"
	ActionDelete  = "delete"
	ActionSubmit  = "submit"
	ActionApprove = "approve"
	ActionReject  = "reject"
	ActionFulfill = "fulfill"
	ActionCancel  = "cancel"
)

// Resource types checked by RoleAuthzProvider.
const (
	ResourceProject         = "project"
	ResourceResource        = "resource"
	ResourceResourceRequest = "resource_request"
	ResourceMilestone       = "milestone"
	ResourceRAIDItem        = "raid_item"
	ResourceAuditLog        = "audit_log"
	ResourceDashboard       = "dashboard"
	ResourceActivity        = "activity"
)

const wildcard = "*"

// Policy maps role -> resource type -> permitted actions.
// "*" matches any resource type or action.
type Policy map[string]map[string][]string

var crud = []string{ActionRead, ActionCreate, ActionUpdate, ActionDelete}

// DefaultPolicy returns the built-in role table.
//
// # Description
//
// Returns a fresh Policy on every call, so callers may extend it:
//
//   - viewer: read planning data, requests and the dashboard
//   - requester: viewer plus drafting, submitting and cancelling requests
//   - manager: full write access to planning data plus request decisions
//   - auditor: audit trail and activity feed only
//   - admin: everything
//
// # Outputs
//
//   - Policy: The role table above.
//
// # Examples
//
//	policy := extensions.DefaultPolicy()
//	policy["pmo"] = map[string][]string{extensions.ResourceMilestone: {extensions.ActionRead, extensions.ActionUpdate}}
//	authz := extensions.NewRoleAuthzProvider(policy)
//
// # Limitations
//
//   - Ownership is not expressed here. Requesters acting only on their own
//     requests is enforced by the request handlers.
func DefaultPolicy() Policy {
	readOnly := []string{ActionRead}
	return Policy{
		RoleAdmin: {
			wildcard: {wildcard},
		},
		RoleManager: {
			ResourceProject:         crud,
			ResourceResource:        crud,
			ResourceMilestone:       crud,
			ResourceRAIDItem:        crud,
			ResourceResourceRequest: {wildcard},
			ResourceDashboard:       readOnly,
		},
		RoleRequester: {
			ResourceProject:   readOnly,
			ResourceResource:  readOnly,
			ResourceMilestone: readOnly,
			ResourceRAIDItem:  readOnly,
			ResourceDashboard: readOnly,
			ResourceResourceRequest: {
				ActionRead, ActionCreate, ActionUpdate, ActionDelete,
				ActionSubmit, ActionCancel,
			},
		},
		RoleViewer: {
			ResourceProject:         readOnly,
			ResourceResource:        readOnly,
			ResourceMilestone:       readOnly,
			ResourceRAIDItem:        readOnly,
			ResourceResourceRequest: readOnly,
			ResourceDashboard:       readOnly,
		},
		RoleAuditor: {
			ResourceAuditLog: readOnly,
			ResourceActivity: readOnly,
		},
	}
}

// RoleAuthzProvider authorizes requests against a static role Policy.
//
// # Thread Safety
//
// Safe for concurrent use. The policy is never mutated after construction.
type RoleAuthzProvider struct {
	policy Policy
}

// NewRoleAuthzProvider creates a provider for policy.
//
// # Description
//
// A nil policy uses DefaultPolicy. A non-nil policy replaces it entirely,
// including the admin entry.
//
// # Inputs
//
//   - policy: Role table. Not copied; do not modify it afterwards.
//
// # Outputs
//
//   - *RoleAuthzProvider: Ready for use as an AuthzProvider.
func NewRoleAuthzProvider(policy Policy) *RoleAuthzProvider {
	if policy == nil {
		policy = DefaultPolicy()
	}
	return &RoleAuthzProvider{policy: policy}
}

// Authorize returns nil if any of the user's roles permits the action.
//
// # Description
//
// Looks up each role of req.User and grants when either the exact resource
// type or "*" lists the action or "*". Unknown roles grant nothing.
//
// # Inputs
//
//   - req: User, Action and ResourceType are used. ResourceID is ignored.
//
// # Outputs
//
//   - error: nil when allowed. Otherwise an error wrapping ErrForbidden,
//     including when req.User is nil.
func (p *RoleAuthzProvider) Authorize(_ context.Context, req AuthzRequest) error {
	if req.User == nil {
		return fmt.Errorf("no authenticated user: %w", ErrForbidden)
	}
	for _, role := range req.User.Roles {
		if p.allows(role, req.ResourceType, req.Action) {
			return nil
		}
	}
	return fmt.Errorf("%s may not %s %s: %w", req.User.UserID, req.Action, req.ResourceType, ErrForbidden)
}

func (p *RoleAuthzProvider) allows(role, resourceType, action string) bool {
	grants, ok := p.policy[role]
	if !ok {
		return false
	}
	for _, key := range []string{resourceType, wildcard} {
		actions, ok := grants[key]
		if !ok {
			continue
		}
		if slices.Contains(actions, wildcard) || slices.Contains(actions, action) {
			return true
		}
	}
	return false
}

var _ AuthzProvider = (*RoleAuthzProvider)(nil)
