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
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/ResourceHub/pkg/extensions"
	"github.com/AleutianAI/ResourceHub/services/resourcehub/auditlog"
	"github.com/AleutianAI/ResourceHub/services/resourcehub/datatypes"
	"github.com/AleutianAI/ResourceHub/services/resourcehub/middleware"
	"github.com/AleutianAI/ResourceHub/services/resourcehub/store"
	"github.com/AleutianAI/ResourceHub/services/resourcehub/store/sqlstore"
)

// =============================================================================
// Test Setup
// =============================================================================

func init() {
	gin.SetMode(gin.TestMode)
}

const (
	userHeader  = "X-Test-User"
	rolesHeader = "X-Test-Roles"
)

// harness wires the handlers onto a real sqlite store. Role checks are
// left to the routes tests; here the caller identity comes from test
// headers.
type harness struct {
	t      *testing.T
	store  *sqlstore.Store
	audit  *auditlog.StoreLogger
	rec    *Recorder
	router *gin.Engine
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	ctx := context.Background()
	s, err := sqlstore.Open(ctx, sqlstore.Config{
		DSN:         filepath.Join(t.TempDir(), "handlers.db"),
		OpenTimeout: 5 * time.Second,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	_, err = s.Migrate(ctx)
	require.NoError(t, err)

	audit := auditlog.NewStoreLogger(s)
	h := &harness{t: t, store: s, audit: audit, rec: NewRecorder(audit, nil)}

	r := gin.New()
	r.Use(middleware.RequestID(), testAuth)
	r.GET("/health", HealthCheck)
	r.GET("/ready", Readiness(s))
	v1 := r.Group("/v1")
	v1.GET("/me", Me)
	v1.GET("/projects", ListProjects(s))
	v1.POST("/projects", CreateProject(s, h.rec))
	v1.GET("/projects/:id", GetProject(s))
	v1.PATCH("/projects/:id", UpdateProject(s, h.rec))
	v1.DELETE("/projects/:id", DeleteProject(s, h.rec))
	v1.GET("/projects/:id/milestones", ListProjectMilestones(s, s))
	v1.GET("/projects/:id/raid", ListProjectRAIDItems(s, s))
	v1.GET("/projects/:id/resource-requests", ListProjectResourceRequests(s, s))
	v1.GET("/resources", ListResources(s))
	v1.POST("/resources", CreateResource(s, h.rec))
	v1.GET("/resources/:id", GetResource(s))
	v1.PATCH("/resources/:id", UpdateResource(s, h.rec))
	v1.DELETE("/resources/:id", DeleteResource(s, h.rec))
	v1.GET("/resource-requests", ListResourceRequests(s))
	v1.POST("/resource-requests", CreateResourceRequest(s, s, h.rec))
	v1.GET("/resource-requests/:id", GetResourceRequest(s))
	v1.PATCH("/resource-requests/:id", UpdateResourceRequest(s, h.rec))
	v1.DELETE("/resource-requests/:id", DeleteResourceRequest(s, h.rec))
	for _, action := range []string{"submit", "approve", "reject", "fulfill", "cancel"} {
		v1.POST("/resource-requests/:id/"+action, TransitionResourceRequest(s, s, h.rec, action))
	}
	v1.GET("/milestones", ListMilestones(s))
	v1.POST("/milestones", CreateMilestone(s, s, h.rec))
	v1.GET("/milestones/:id", GetMilestone(s))
	v1.PATCH("/milestones/:id", UpdateMilestone(s, h.rec))
	v1.DELETE("/milestones/:id", DeleteMilestone(s, h.rec))
	v1.GET("/raid", ListRAIDItems(s))
	v1.POST("/raid", CreateRAIDItem(s, s, h.rec))
	v1.GET("/raid/:id", GetRAIDItem(s))
	v1.PATCH("/raid/:id", UpdateRAIDItem(s, h.rec))
	v1.DELETE("/raid/:id", DeleteRAIDItem(s, h.rec))
	v1.GET("/audit-logs", ListAuditLogs(audit))
	v1.GET("/dashboard/summary", DashboardSummary(s, s, h.rec))
	h.router = r
	return h
}

// testAuth reads the caller from test headers, defaulting to an admin.
func testAuth(c *gin.Context) {
	user := c.GetHeader(userHeader)
	if user == "" {
		user = "admin-user"
	}
	roles := []string{extensions.RoleAdmin}
	if raw := c.GetHeader(rolesHeader); raw != "" {
		roles = strings.Split(raw, ",")
	}
	middleware.SetAuthInfo(c, &extensions.AuthInfo{UserID: user, Roles: roles})
	c.Next()
}

type caller struct {
	user  string
	roles string
}

var (
	admin   = caller{"admin-user", "admin"}
	manager = caller{"carol", "manager"}
	alice   = caller{"alice", "requester"}
	bob     = caller{"bob", "requester"}
)

func (h *harness) do(as caller, method, path string, body any) *httptest.ResponseRecorder {
	h.t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(h.t, json.NewEncoder(&buf).Encode(b))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(userHeader, as.user)
	req.Header.Set(rolesHeader, as.roles)
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func (h *harness) createProject(code string) datatypes.Project {
	h.t.Helper()
	w := h.do(admin, "POST", "/v1/projects", map[string]any{
		"code": code, "name": "Project " + code, "status": "active",
		"start_date": "2025-01-01", "end_date": "2025-12-31",
	})
	require.Equal(h.t, http.StatusCreated, w.Code, w.Body.String())
	return decode[datatypes.Project](h.t, w)
}

func (h *harness) createResource(email string, active bool) datatypes.Resource {
	h.t.Helper()
	w := h.do(admin, "POST", "/v1/resources", map[string]any{"name": email, "email": email, "active": active})
	require.Equal(h.t, http.StatusCreated, w.Code, w.Body.String())
	return decode[datatypes.Resource](h.t, w)
}

func (h *harness) createRequest(as caller, projectID string) datatypes.ResourceRequest {
	h.t.Helper()
	w := h.do(as, "POST", "/v1/resource-requests", map[string]any{
		"project_id": projectID, "role_title": "Backend engineer", "allocation_pct": 50,
		"start_date": "2025-03-01", "end_date": "2025-06-30",
	})
	require.Equal(h.t, http.StatusCreated, w.Code, w.Body.String())
	return decode[datatypes.ResourceRequest](h.t, w)
}

func (h *harness) auditFor(resourceID string) []extensions.AuditEvent {
	h.t.Helper()
	events, _, err := h.audit.QueryPage(context.Background(), extensions.AuditFilter{ResourceID: resourceID})
	require.NoError(h.t, err)
	return events
}

// =============================================================================
// respondError and parameters
// =============================================================================

func TestRespondError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantError  string
	}{
		{"validation", &datatypes.ValidationError{Fields: map[string]string{"name": "is required"}}, 400, "validation failed"},
		{"bad request", badRequest("invalid JSON: x"), 400, "invalid JSON: x"},
		{"date range", fmt.Errorf("merge: %w", datatypes.ErrInvalidDateRange), 400, "validation failed"},
		{"unauthorized", extensions.ErrUnauthorized, 401, "unauthorized"},
		{"forbidden", fmt.Errorf("nope: %w", extensions.ErrForbidden), 403, "forbidden"},
		{"not found", fmt.Errorf("get project: %w", store.ErrNotFound), 404, "not found"},
		{"conflict", fmt.Errorf("create project: %w: code already exists", store.ErrConflict), 409, "create project: conflict: code already exists"},
		{"referenced", fmt.Errorf("delete resource: %w", store.ErrReferenced), 409, "delete resource: referenced by other records"},
		{"transition", fmt.Errorf("cannot approve a draft request: %w", store.ErrInvalidTransition), 409, "cannot approve a draft request: invalid status transition"},
		{"internal", errors.New("connection reset by peer"), 500, "internal server error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest("GET", "/", nil)

			respondError(c, tt.err)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.True(t, c.IsAborted())
			body := decode[datatypes.ErrorResponse](t, w)
			assert.Equal(t, tt.wantError, body.Error)
		})
	}
}

func TestParseListOptions(t *testing.T) {
	tests := []struct {
		query   string
		want    datatypes.ListOptions
		wantErr string
	}{
		{"", datatypes.ListOptions{Limit: 50, Order: "desc"}, ""},
		{"limit=10&offset=20&sort=name&order=ASC", datatypes.ListOptions{Limit: 10, Offset: 20, Sort: "name", Order: "asc"}, ""},
		{"limit=5000", datatypes.ListOptions{Limit: 200, Order: "desc"}, ""},
		{"limit=ten", datatypes.ListOptions{}, "limit"},
		{"offset=-1", datatypes.ListOptions{}, "offset"},
		{"order=sideways", datatypes.ListOptions{}, "order"},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			c, _ := gin.CreateTestContext(httptest.NewRecorder())
			c.Request = httptest.NewRequest("GET", "/?"+tt.query, nil)

			got, err := parseListOptions(c)
			if tt.wantErr != "" {
				var verr *datatypes.ValidationError
				require.ErrorAs(t, err, &verr)
				assert.Contains(t, verr.Fields, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestQueryTime(t *testing.T) {
	tests := []struct {
		name     string
		query    string
		endOfDay bool
		want     time.Time
		wantErr  bool
	}{
		{"absent", "", false, time.Time{}, false},
		{"timestamp", "2026-10-14T09:30:00+02:00", true, time.Date(2026, 10, 14, 7, 30, 0, 0, time.UTC), false},
		{"date as lower bound", "2026-10-14", false, time.Date(2026, 10, 14, 0, 0, 0, 0, time.UTC), false},
		{"date as upper bound covers the day", "2026-10-14", true, time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC), false},
		{"month end rolls over", "2026-10-31", true, time.Date(2026, 11, 1, 0, 0, 0, 0, time.UTC), false},
		{"garbage", "yesterday", true, time.Time{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := gin.CreateTestContext(httptest.NewRecorder())
			c.Request = httptest.NewRequest("GET", "/?at="+url.QueryEscape(tt.query), nil)

			got, err := queryTime(c, "at", tt.endOfDay)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got %s, want %s", got, tt.want)
		})
	}
}

// =============================================================================
// Projects
// =============================================================================

func TestProjects_CRUD(t *testing.T) {
	h := newHarness(t)
	p := h.createProject("ALPHA")
	assert.NotEmpty(t, p.ID)
	assert.Equal(t, datatypes.ProjectActive, p.Status)

	w := h.do(admin, "GET", "/v1/projects/"+p.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ALPHA", decode[datatypes.Project](t, w).Code)

	w = h.do(admin, "PATCH", "/v1/projects/"+p.ID, map[string]any{"name": "Alpha 2", "budget": 1500.5})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	updated := decode[datatypes.Project](t, w)
	assert.Equal(t, "Alpha 2", updated.Name)
	assert.Equal(t, 1500.5, updated.Budget)

	w = h.do(admin, "DELETE", "/v1/projects/"+p.ID, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = h.do(admin, "GET", "/v1/projects/"+p.ID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	events := h.auditFor(p.ID)
	require.Len(t, events, 3)
	assert.Equal(t, extensions.EventDataDelete, events[0].EventType)
	assert.Equal(t, extensions.EventDataUpdate, events[1].EventType)
	assert.ElementsMatch(t, []any{"name", "budget"}, events[1].Metadata["fields"])
	assert.Equal(t, extensions.EventDataCreate, events[2].EventType)
	assert.Equal(t, "admin-user", events[2].UserID)
	assert.NotEmpty(t, events[2].Metadata["request_id"])
}

func TestProjects_CreateRejects(t *testing.T) {
	h := newHarness(t)
	h.createProject("TAKEN")

	tests := []struct {
		name       string
		body       any
		wantStatus int
		wantField  string
	}{
		{"empty body", nil, 400, ""},
		{"malformed json", `{"code":`, 400, ""},
		{"bad code", map[string]any{"code": "lower", "name": "x"}, 400, "code"},
		{"missing name", map[string]any{"code": "NEWONE"}, 400, "name"},
		{"bad status", map[string]any{"code": "NEWONE", "name": "x", "status": "done"}, 400, "status"},
		{"bad date", map[string]any{"code": "NEWONE", "name": "x", "start_date": "01/02/2025"}, 400, ""},
		{"reversed dates", map[string]any{"code": "NEWONE", "name": "x", "start_date": "2025-05-01", "end_date": "2025-04-01"}, 400, "end_date"},
		{"duplicate code", map[string]any{"code": "TAKEN", "name": "x"}, 409, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := h.do(admin, "POST", "/v1/projects", tt.body)
			assert.Equal(t, tt.wantStatus, w.Code, w.Body.String())
			if tt.wantField != "" {
				assert.Contains(t, decode[datatypes.ErrorResponse](t, w).Fields, tt.wantField)
			}
		})
	}
}

func TestProjects_UpdateDateRange(t *testing.T) {
	h := newHarness(t)
	p := h.createProject("RANGE")

	// start_date after the stored end_date
	w := h.do(admin, "PATCH", "/v1/projects/"+p.ID, map[string]any{"start_date": "2026-01-01"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// clearing end_date makes the same start valid
	w = h.do(admin, "PATCH", "/v1/projects/"+p.ID, map[string]any{"start_date": "2026-01-01", "end_date": ""})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Nil(t, decode[datatypes.Project](t, w).EndDate)
}

func TestProjects_NoopUpdateIsNotAudited(t *testing.T) {
	h := newHarness(t)
	p := h.createProject("NOOP")

	w := h.do(admin, "PATCH", "/v1/projects/"+p.ID, map[string]any{"name": p.Name})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, h.auditFor(p.ID), 1)
}

func TestProjects_ListFilters(t *testing.T) {
	h := newHarness(t)
	h.createProject("ONE")
	h.createProject("TWO")
	w := h.do(admin, "POST", "/v1/projects", map[string]any{"code": "HOLD", "name": "Held", "status": "on_hold"})
	require.Equal(t, http.StatusCreated, w.Code)

	w = h.do(admin, "GET", "/v1/projects?status=active&sort=code&order=asc", nil)
	require.Equal(t, http.StatusOK, w.Code)
	page := decode[datatypes.ListResponse[datatypes.Project]](t, w)
	assert.Equal(t, 2, page.Total)
	require.Len(t, page.Items, 2)
	assert.Equal(t, "ONE", page.Items[0].Code)

	w = h.do(admin, "GET", "/v1/projects?limit=1", nil)
	page = decode[datatypes.ListResponse[datatypes.Project]](t, w)
	assert.Equal(t, 3, page.Total)
	assert.Len(t, page.Items, 1)
	assert.Equal(t, 1, page.Limit)

	w = h.do(admin, "GET", "/v1/projects?status=bogus", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = h.do(admin, "GET", "/v1/projects?q=zzz", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"items":[],"total":0,"limit":50,"offset":0}`, w.Body.String())
}

func TestProjects_NotFound(t *testing.T) {
	h := newHarness(t)
	for _, path := range []string{
		"/v1/projects/" + uuid.NewString(),
		"/v1/projects/not-a-uuid",
		"/v1/projects/" + uuid.NewString() + "/milestones",
		"/v1/projects/" + uuid.NewString() + "/raid",
		"/v1/projects/" + uuid.NewString() + "/resource-requests",
	} {
		w := h.do(admin, "GET", path, nil)
		assert.Equal(t, http.StatusNotFound, w.Code, path)
	}
	w := h.do(admin, "DELETE", "/v1/projects/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestProjects_DeleteCascades(t *testing.T) {
	h := newHarness(t)
	p := h.createProject("CASCADE")
	rr := h.createRequest(alice, p.ID)
	w := h.do(admin, "POST", "/v1/milestones", map[string]any{"project_id": p.ID, "name": "Kickoff", "due_date": "2025-02-01"})
	require.Equal(t, http.StatusCreated, w.Code)
	m := decode[datatypes.Milestone](t, w)

	require.Equal(t, http.StatusNoContent, h.do(admin, "DELETE", "/v1/projects/"+p.ID, nil).Code)

	assert.Equal(t, http.StatusNotFound, h.do(admin, "GET", "/v1/resource-requests/"+rr.ID, nil).Code)
	assert.Equal(t, http.StatusNotFound, h.do(admin, "GET", "/v1/milestones/"+m.ID, nil).Code)
}

// =============================================================================
// Resources
// =============================================================================

func TestResources_CRUD(t *testing.T) {
	h := newHarness(t)
	r := h.createResource("dana@example.com", true)
	assert.Equal(t, 100, r.CapacityPct)

	w := h.do(admin, "POST", "/v1/resources", map[string]any{"name": "Dup", "email": "dana@example.com"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = h.do(admin, "POST", "/v1/resources", map[string]any{"name": "Bad", "email": "not-an-email"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = h.do(admin, "PATCH", "/v1/resources/"+r.ID, map[string]any{"capacity_pct": 60, "department": "Platform"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 60, decode[datatypes.Resource](t, w).CapacityPct)

	h.createResource("eve@example.com", false)
	w = h.do(admin, "GET", "/v1/resources?active=true", nil)
	page := decode[datatypes.ListResponse[datatypes.Resource]](t, w)
	assert.Equal(t, 1, page.Total)

	assert.Equal(t, http.StatusBadRequest, h.do(admin, "GET", "/v1/resources?active=maybe", nil).Code)
	assert.Equal(t, http.StatusNoContent, h.do(admin, "DELETE", "/v1/resources/"+r.ID, nil).Code)
}

// =============================================================================
// Resource requests
// =============================================================================

func TestResourceRequests_CreateNeedsProject(t *testing.T) {
	h := newHarness(t)
	w := h.do(alice, "POST", "/v1/resource-requests", map[string]any{
		"project_id": uuid.NewString(), "role_title": "QA", "allocation_pct": 20,
		"start_date": "2025-03-01", "end_date": "2025-04-01",
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "does not exist", decode[datatypes.ErrorResponse](t, w).Fields["project_id"])
}

func TestResourceRequests_Workflow(t *testing.T) {
	h := newHarness(t)
	p := h.createProject("FLOW")
	rr := h.createRequest(alice, p.ID)
	assert.Equal(t, datatypes.RequestDraft, rr.Status)
	assert.Equal(t, "alice", rr.RequestedBy)
	base := "/v1/resource-requests/" + rr.ID

	// approve needs submitted
	w := h.do(manager, "POST", base+"/approve", nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = h.do(alice, "POST", base+"/submit", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, datatypes.RequestSubmitted, decode[datatypes.ResourceRequest](t, w).Status)

	// edits are locked after submit
	w = h.do(alice, "PATCH", base, map[string]any{"skills": "Go"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = h.do(manager, "POST", base+"/approve", map[string]any{"note": "go ahead"})
	require.Equal(t, http.StatusOK, w.Code)
	approved := decode[datatypes.ResourceRequest](t, w)
	assert.Equal(t, datatypes.RequestApproved, approved.Status)
	assert.Equal(t, "carol", approved.DecidedBy)
	assert.Equal(t, "go ahead", approved.DecisionNote)

	// fulfil needs an active resource
	w = h.do(manager, "POST", base+"/fulfill", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	inactive := h.createResource("gone@example.com", false)
	w = h.do(manager, "POST", base+"/fulfill", map[string]any{"resource_id": inactive.ID})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = h.do(manager, "POST", base+"/fulfill", map[string]any{"resource_id": uuid.NewString()})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	res := h.createResource("frank@example.com", true)
	w = h.do(manager, "POST", base+"/fulfill", map[string]any{"resource_id": res.ID})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	fulfilled := decode[datatypes.ResourceRequest](t, w)
	assert.Equal(t, datatypes.RequestFulfilled, fulfilled.Status)
	assert.Equal(t, res.ID, fulfilled.ResourceID)

	// terminal
	assert.Equal(t, http.StatusConflict, h.do(manager, "POST", base+"/cancel", nil).Code)
	// the assigned resource is now referenced
	assert.Equal(t, http.StatusConflict, h.do(admin, "DELETE", "/v1/resources/"+res.ID, nil).Code)

	var types []string
	for _, e := range h.auditFor(rr.ID) {
		types = append(types, e.EventType+"/"+e.Outcome)
	}
	assert.Equal(t, []string{
		"workflow.cancel/failure",
		"workflow.fulfill/success",
		"workflow.approve/success",
		"workflow.submit/success",
		"workflow.approve/failure",
		"data.create/success",
	}, types)
}

func TestResourceRequests_Ownership(t *testing.T) {
	h := newHarness(t)
	p := h.createProject("OWN")
	rr := h.createRequest(alice, p.ID)
	base := "/v1/resource-requests/" + rr.ID

	assert.Equal(t, http.StatusForbidden, h.do(bob, "PATCH", base, map[string]any{"skills": "Rust"}).Code)
	assert.Equal(t, http.StatusForbidden, h.do(bob, "POST", base+"/submit", nil).Code)
	assert.Equal(t, http.StatusForbidden, h.do(bob, "DELETE", base, nil).Code)

	denied, _, err := h.audit.QueryPage(context.Background(), extensions.AuditFilter{
		ResourceID: rr.ID, Outcome: extensions.OutcomeDenied,
	})
	require.NoError(t, err)
	assert.Len(t, denied, 3)
	assert.Equal(t, "bob", denied[0].UserID)

	w := h.do(alice, "PATCH", base, map[string]any{"skills": "Go, SQL"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Go, SQL", decode[datatypes.ResourceRequest](t, w).Skills)

	w = h.do(manager, "PATCH", base, map[string]any{"allocation_pct": 80})
	require.Equal(t, http.StatusOK, w.Code)

	w = h.do(alice, "PATCH", base, map[string]any{"allocation_pct": 150})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = h.do(alice, "PATCH", base, map[string]any{"end_date": "2025-01-01"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	assert.Equal(t, http.StatusNoContent, h.do(alice, "DELETE", base, nil).Code)
}

func TestResourceRequests_RequesterCannotDeleteSubmitted(t *testing.T) {
	h := newHarness(t)
	p := h.createProject("DELSUB")
	rr := h.createRequest(alice, p.ID)
	base := "/v1/resource-requests/" + rr.ID
	require.Equal(t, http.StatusOK, h.do(alice, "POST", base+"/submit", nil).Code)

	assert.Equal(t, http.StatusConflict, h.do(alice, "DELETE", base, nil).Code)
	assert.Equal(t, http.StatusOK, h.do(alice, "POST", base+"/cancel", map[string]any{"note": "not needed"}).Code)
	assert.Equal(t, http.StatusNoContent, h.do(manager, "DELETE", base, nil).Code)
}

func TestResourceRequests_List(t *testing.T) {
	h := newHarness(t)
	p1 := h.createProject("LISTA")
	p2 := h.createProject("LISTB")
	h.createRequest(alice, p1.ID)
	h.createRequest(bob, p1.ID)
	h.createRequest(alice, p2.ID)

	page := decode[datatypes.ListResponse[datatypes.ResourceRequest]](t, h.do(alice, "GET", "/v1/resource-requests?mine=true", nil))
	assert.Equal(t, 2, page.Total)

	page = decode[datatypes.ListResponse[datatypes.ResourceRequest]](t, h.do(alice, "GET", "/v1/projects/"+p1.ID+"/resource-requests", nil))
	assert.Equal(t, 2, page.Total)

	page = decode[datatypes.ListResponse[datatypes.ResourceRequest]](t, h.do(alice, "GET", "/v1/resource-requests?status=draft&requested_by=bob", nil))
	assert.Equal(t, 1, page.Total)

	assert.Equal(t, http.StatusBadRequest, h.do(alice, "GET", "/v1/resource-requests?project_id=nope", nil).Code)
}

// =============================================================================
// Milestones and RAID
// =============================================================================

func TestMilestones(t *testing.T) {
	h := newHarness(t)
	fixed := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	h.rec.now = func() time.Time { return fixed }
	p := h.createProject("MILES")

	w := h.do(admin, "POST", "/v1/milestones", map[string]any{"project_id": p.ID, "name": "Done", "due_date": "2025-05-01", "status": "completed"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	done := decode[datatypes.Milestone](t, w)
	require.NotNil(t, done.CompletedAt)
	assert.True(t, done.CompletedAt.Equal(fixed))

	w = h.do(admin, "POST", "/v1/milestones", map[string]any{"project_id": p.ID, "name": "No date"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = h.do(admin, "POST", "/v1/milestones", map[string]any{"project_id": p.ID, "name": "Beta", "due_date": "2025-07-01"})
	require.Equal(t, http.StatusCreated, w.Code)
	beta := decode[datatypes.Milestone](t, w)

	w = h.do(admin, "PATCH", "/v1/milestones/"+done.ID, map[string]any{"status": "in_progress"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Nil(t, decode[datatypes.Milestone](t, w).CompletedAt)

	page := decode[datatypes.ListResponse[datatypes.Milestone]](t,
		h.do(admin, "GET", "/v1/projects/"+p.ID+"/milestones?due_from=2025-06-15&due_to=2025-07-01", nil))
	require.Equal(t, 1, page.Total)
	assert.Equal(t, beta.ID, page.Items[0].ID)

	assert.Equal(t, http.StatusBadRequest, h.do(admin, "GET", "/v1/milestones?due_from=June", nil).Code)
	assert.Equal(t, http.StatusNoContent, h.do(admin, "DELETE", "/v1/milestones/"+beta.ID, nil).Code)
}

func TestRAIDItems(t *testing.T) {
	h := newHarness(t)
	p := h.createProject("RAID")

	w := h.do(admin, "POST", "/v1/raid", map[string]any{
		"project_id": p.ID, "kind": "issue", "title": "Vendor delay", "likelihood": "high",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	issue := decode[datatypes.RAIDItem](t, w)
	assert.Empty(t, issue.Likelihood, "likelihood only applies to risks")
	assert.Equal(t, datatypes.SeverityMedium, issue.Severity)
	assert.Equal(t, datatypes.RAIDOpen, issue.Status)

	w = h.do(admin, "POST", "/v1/raid", map[string]any{
		"project_id": p.ID, "kind": "risk", "title": "Key person leaves", "severity": "high", "likelihood": "low",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	w = h.do(admin, "PATCH", "/v1/raid/"+issue.ID, map[string]any{"status": "closed"})
	require.Equal(t, http.StatusOK, w.Code)

	page := decode[datatypes.ListResponse[datatypes.RAIDItem]](t, h.do(admin, "GET", "/v1/raid?open=true", nil))
	require.Equal(t, 1, page.Total)
	assert.Equal(t, datatypes.RAIDRisk, page.Items[0].Kind)

	assert.Equal(t, http.StatusBadRequest, h.do(admin, "GET", "/v1/raid?kind=rumour", nil).Code)
	assert.Equal(t, http.StatusBadRequest, h.do(admin, "POST", "/v1/raid", map[string]any{"project_id": p.ID, "kind": "rumour", "title": "x"}).Code)
	assert.Equal(t, http.StatusNoContent, h.do(admin, "DELETE", "/v1/raid/"+issue.ID, nil).Code)
}

// =============================================================================
// Audit logs, dashboard, system
// =============================================================================

func TestAuditLogs(t *testing.T) {
	h := newHarness(t)
	p := h.createProject("AUDIT")
	h.createResource("gil@example.com", true)

	page := decode[datatypes.ListResponse[extensions.AuditEvent]](t,
		h.do(admin, "GET", "/v1/audit-logs?resource_type=project&resource_id="+p.ID, nil))
	require.Equal(t, 1, page.Total)
	assert.Equal(t, extensions.EventDataCreate, page.Items[0].EventType)

	page = decode[datatypes.ListResponse[extensions.AuditEvent]](t,
		h.do(admin, "GET", "/v1/audit-logs?event_type=data.create,data.delete&limit=1", nil))
	assert.Equal(t, 2, page.Total)
	assert.Len(t, page.Items, 1)

	future := time.Now().Add(time.Hour).UTC().Format(time.RFC3339)
	page = decode[datatypes.ListResponse[extensions.AuditEvent]](t,
		h.do(admin, "GET", "/v1/audit-logs?from="+future, nil))
	assert.Equal(t, 0, page.Total)
	assert.NotNil(t, page.Items)

	today := time.Now().UTC().Format("2006-01-02")
	page = decode[datatypes.ListResponse[extensions.AuditEvent]](t,
		h.do(admin, "GET", "/v1/audit-logs?resource_id="+p.ID+"&from="+today+"&to="+today, nil))
	assert.Equal(t, 1, page.Total, "a date-only to includes events recorded that day")

	assert.Equal(t, http.StatusBadRequest, h.do(admin, "GET", "/v1/audit-logs?from=2025-02-01&to=2025-01-01", nil).Code)
	assert.Equal(t, http.StatusBadRequest, h.do(admin, "GET", "/v1/audit-logs?outcome=maybe", nil).Code)
	assert.Equal(t, http.StatusBadRequest, h.do(admin, "GET", "/v1/audit-logs?to=yesterday", nil).Code)
}

func TestDashboardSummary(t *testing.T) {
	h := newHarness(t)
	h.rec.now = func() time.Time { return time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC) }
	p := h.createProject("DASH")
	h.createRequest(alice, p.ID)

	for _, m := range []map[string]any{
		{"name": "soon", "due_date": "2025-06-05"},
		{"name": "today", "due_date": "2025-06-01"},
		{"name": "window edge", "due_date": "2025-06-15"},
		{"name": "later", "due_date": "2025-07-30"},
		{"name": "late", "due_date": "2025-05-20"},
		{"name": "late but done", "due_date": "2025-05-10", "status": "completed"},
	} {
		m["project_id"] = p.ID
		require.Equal(t, http.StatusCreated, h.do(admin, "POST", "/v1/milestones", m).Code)
	}
	require.Equal(t, http.StatusCreated, h.do(admin, "POST", "/v1/raid", map[string]any{
		"project_id": p.ID, "kind": "risk", "title": "r", "severity": "critical",
	}).Code)

	w := h.do(admin, "GET", "/v1/dashboard/summary", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	s := decode[datatypes.DashboardSummary](t, w)

	assert.Equal(t, 1, s.ProjectsByStatus["active"])
	assert.Equal(t, 1, s.RequestsByStatus["draft"])
	assert.Equal(t, 1, s.OpenRAIDByKind["risk"])
	assert.Equal(t, 1, s.OpenRAIDBySeverity["critical"])

	var upcoming, overdue []string
	for _, m := range s.UpcomingMilestones {
		upcoming = append(upcoming, m.Name)
	}
	for _, m := range s.OverdueMilestones {
		overdue = append(overdue, m.Name)
	}
	assert.Equal(t, []string{"today", "soon", "window edge"}, upcoming)
	assert.Equal(t, []string{"late"}, overdue)
}

func TestDashboardSummary_Empty(t *testing.T) {
	h := newHarness(t)
	w := h.do(admin, "GET", "/v1/dashboard/summary", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"upcoming_milestones":[]`)
	assert.Contains(t, w.Body.String(), `"overdue_milestones":[]`)
}

func TestHealthReadyMe(t *testing.T) {
	h := newHarness(t)

	assert.Equal(t, http.StatusOK, h.do(admin, "GET", "/health", nil).Code)
	assert.Equal(t, http.StatusOK, h.do(admin, "GET", "/ready", nil).Code)

	w := h.do(alice, "GET", "/v1/me", nil)
	require.Equal(t, http.StatusOK, w.Code)
	me := decode[extensions.AuthInfo](t, w)
	assert.Equal(t, "alice", me.UserID)
	assert.Equal(t, []string{"requester"}, me.Roles)

	require.NoError(t, h.store.Close())
	assert.Equal(t, http.StatusServiceUnavailable, h.do(admin, "GET", "/ready", nil).Code)
}
