// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package extensions

import (
	"context"
	"errors"
	"slices"
)

// ErrUnauthorized is returned when authentication fails.
//
// Example:
//
//	if !validToken {
//	    return nil, fmt.Errorf("unknown token: %w", extensions.ErrUnauthorized)
//	}
var ErrUnauthorized = errors.New("unauthorized")

// ErrForbidden is returned by an AuthzProvider when an authenticated user
// is not permitted to perform an action.
var ErrForbidden = errors.New("forbidden")

// Role names understood by RoleAuthzProvider.
const (
	RoleAdmin     = "admin"
	RoleManager   = "manager"
	RoleRequester = "requester"
	RoleViewer    = "viewer"
	RoleAuditor   = "auditor"
)

// AuthInfo contains identity information returned after successful authentication.
//
// Required fields (always populated):
//   - UserID: Unique identifier for the user
//
// Optional fields (may be empty):
//   - Email: User's email address
//   - Roles: List of roles the user belongs to
//
// Example:
//
//	info := &AuthInfo{
//	    UserID: "user-123",
//	    Email:  "user@example.com",
//	    Roles:  []string{"manager"},
//	}
type AuthInfo struct {
	// UserID is the unique identifier for the authenticated user.
	// This is the only required field and must never be empty.
	UserID string `json:"user_id"`

	// Email is the user's email address.
	// May be empty if not provided by the auth provider.
	Email string `json:"email,omitempty"`

	// Roles contains the user's role memberships for authorization decisions.
	// Known roles: "admin", "manager", "requester", "viewer", "auditor"
	Roles []string `json:"roles"`
}

// HasRole checks if the user has a specific role.
//
// Example:
//
//	if authInfo.HasRole("manager") {
//	    // allow approvals
//	}
func (a *AuthInfo) HasRole(role string) bool {
	if a == nil {
		return false
	}
	return slices.Contains(a.Roles, role)
}

// HasAnyRole reports whether the user holds at least one of roles.
func (a *AuthInfo) HasAnyRole(roles ...string) bool {
	for _, r := range roles {
		if a.HasRole(r) {
			return true
		}
	}
	return false
}

// AuthProvider validates authentication tokens and returns user identity.
//
// Implementations:
//   - NopAuthProvider: accepts every request as a local admin
//   - authn.FileTokenProvider: static bearer tokens from a YAML file
//
// Thread Safety: Implementations must be safe for concurrent use.
type AuthProvider interface {
	// Validate checks if the token is valid and returns the user's identity.
	//
	// Returns:
	//   - *AuthInfo: User identity information if valid
	//   - error: ErrUnauthorized (or wrapped) if invalid, other errors for failures
	Validate(ctx context.Context, token string) (*AuthInfo, error)
}

// AuthzRequest describes an authorization check.
type AuthzRequest struct {
	// User is the authenticated user making the request.
	User *AuthInfo

	// Action is the operation being attempted.
	// Actions: "read", "create", "update", "delete", "submit", "approve",
	// "reject", "fulfill", "cancel"
	Action string

	// ResourceType is the category of resource being accessed.
	// Examples: "project", "resource_request", "audit_log"
	ResourceType string

	// ResourceID is the specific resource instance (optional).
	ResourceID string
}

// AuthzProvider checks whether a user may perform an action on a resource.
//
// Thread Safety: Implementations must be safe for concurrent use.
type AuthzProvider interface {
	// Authorize returns nil when the action is permitted and ErrForbidden
	// (or a wrapped form of it) when it is denied.
	Authorize(ctx context.Context, req AuthzRequest) error
}

// NopAuthProvider is the default AuthProvider for local development.
//
// All requests are authenticated as "local-user" with the admin role.
type NopAuthProvider struct{}

// Validate always succeeds and returns a local admin identity.
func (p *NopAuthProvider) Validate(_ context.Context, _ string) (*AuthInfo, error) {
	return &AuthInfo{
		UserID: "local-user",
		Email:  "",
		Roles:  []string{RoleAdmin},
	}, nil
}

// NopAuthzProvider permits every action.
type NopAuthzProvider struct{}

// Authorize always returns nil.
func (p *NopAuthzProvider) Authorize(_ context.Context, _ AuthzRequest) error {
	return nil
}

// Compile-time interface compliance checks.
var (
	_ AuthProvider  = (*NopAuthProvider)(nil)
	_ AuthzProvider = (*NopAuthzProvider)(nil)
)
