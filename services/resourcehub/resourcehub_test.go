// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package resourcehub

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/ResourceHub/pkg/extensions"
	"github.com/AleutianAI/ResourceHub/services/resourcehub/store/sqlstore"
)

// =============================================================================
// Test Setup
// =============================================================================

func init() {
	// Set Gin to test mode to reduce noise in test output
	gin.SetMode(gin.TestMode)
}

func testConfig(t *testing.T) Config {
	t.Helper()
	return Config{
		GinMode:      gin.TestMode,
		Database:     sqlstore.Config{DSN: filepath.Join(t.TempDir(), "hub.db")},
		OTelExporter: ExporterNone,
	}
}

func get(t *testing.T, h http.Handler, path, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

// =============================================================================
// Config Tests
// =============================================================================

// TestApplyConfigDefaults_AllDefaults verifies default values are applied.
func TestApplyConfigDefaults_AllDefaults(t *testing.T) {
	// Arrange
	cfg := Config{}

	// Act
	result := applyConfigDefaults(cfg)

	// Assert
	assert.Equal(t, 8080, result.Port, "default port should be 8080")
	assert.Equal(t, gin.ReleaseMode, result.GinMode)
	assert.Equal(t, sqlstore.DriverSQLite, result.Database.Driver)
	assert.Equal(t, "resourcehub.db", result.Database.DSN)
	assert.Equal(t, ExporterNone, result.OTelExporter)
	assert.Equal(t, "localhost:4317", result.OTelEndpoint)
	assert.Equal(t, time.Hour, result.SweepInterval)
	assert.Equal(t, 15*time.Second, result.ShutdownTimeout)
	assert.Zero(t, result.AuditRetention, "zero retention keeps audit forever")
	assert.Zero(t, result.RateLimitBurst, "no burst without a rate")
}

// TestApplyConfigDefaults_PreservesCustomValues verifies custom values are not overwritten.
func TestApplyConfigDefaults_PreservesCustomValues(t *testing.T) {
	// Arrange
	cfg := Config{
		Port:            9000,
		GinMode:         gin.DebugMode,
		Database:        sqlstore.Config{Driver: sqlstore.DriverMySQL, DSN: "hub:pw@tcp(db:3306)/hub"},
		RateLimitRPS:    5,
		RateLimitBurst:  3,
		OTelExporter:    ExporterOTLP,
		OTelEndpoint:    "collector:4317",
		SweepInterval:   time.Minute,
		AuditRetention:  24 * time.Hour,
		ShutdownTimeout: time.Second,
	}

	// Act
	result := applyConfigDefaults(cfg)

	// Assert
	assert.Equal(t, cfg, result)
}

func TestApplyConfigDefaults_Burst(t *testing.T) {
	tests := []struct {
		name string
		rps  float64
		want int
	}{
		{"twice the rate", 5, 10},
		{"at least one", 0.2, 1},
		{"disabled", 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := applyConfigDefaults(Config{RateLimitRPS: tt.rps})
			assert.Equal(t, tt.want, result.RateLimitBurst)
		})
	}
}

func TestApplyConfigDefaults_MySQLKeepsEmptyDSN(t *testing.T) {
	result := applyConfigDefaults(Config{Database: sqlstore.Config{Driver: sqlstore.DriverMySQL}})
	assert.Empty(t, result.Database.DSN, "no sqlite file name for mysql")
}

// =============================================================================
// Service Tests
// =============================================================================

func TestNew_LocalMode(t *testing.T) {
	svc, err := New(context.Background(), testConfig(t), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Close() })

	assert.Equal(t, http.StatusOK, get(t, svc.Router(), "/health", "").Code)
	assert.Equal(t, http.StatusOK, get(t, svc.Router(), "/ready", "").Code)

	w := get(t, svc.Router(), "/v1/me", "")
	require.Equal(t, http.StatusOK, w.Code)
	var me extensions.AuthInfo
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &me))
	assert.Equal(t, "local-user", me.UserID)
	assert.Equal(t, []string{extensions.RoleAdmin}, me.Roles)

	assert.Contains(t, get(t, svc.Router(), "/metrics", "").Body.String(), "resourcehub_http_requests_total")
	assert.NotEmpty(t, get(t, svc.Router(), "/health", "").Header().Get("X-Request-ID"))
}

func TestNew_TokensFile(t *testing.T) {
	cfg := testConfig(t)
	cfg.TokensFile = filepath.Join(t.TempDir(), "tokens.yaml")
	require.NoError(t, os.WriteFile(cfg.TokensFile, []byte(`tokens:
  - token: viewer-token
    user_id: vic
    roles: [viewer]
`), 0o600))

	svc, err := New(context.Background(), cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Close() })

	assert.Equal(t, http.StatusUnauthorized, get(t, svc.Router(), "/v1/projects", "").Code)
	assert.Equal(t, http.StatusOK, get(t, svc.Router(), "/v1/projects", "viewer-token").Code)
	assert.Equal(t, http.StatusForbidden, get(t, svc.Router(), "/v1/audit-logs", "viewer-token").Code)
}

func TestNew_CustomProviders(t *testing.T) {
	opts := extensions.DefaultOptions().WithAuthz(&extensions.NopAuthzProvider{})
	svc, err := New(context.Background(), testConfig(t), &opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Close() })

	assert.Equal(t, http.StatusOK, get(t, svc.Router(), "/v1/projects", "").Code)
	assert.Equal(t, http.StatusNotFound, get(t, svc.Router(), "/v1/audit-logs", "").Code,
		"audit query is only served from the built-in store logger")
}

func TestNew_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{
			name:   "unknown exporter",
			mutate: func(c *Config) { c.OTelExporter = "zipkin" },
			errMsg: "unknown trace exporter",
		},
		{
			name:   "unknown driver",
			mutate: func(c *Config) { c.Database.Driver = "oracle" },
			errMsg: "failed to open database",
		},
		{
			name:   "missing tokens file",
			mutate: func(c *Config) { c.TokensFile = filepath.Join(os.TempDir(), "does-not-exist", "tokens.yaml") },
			errMsg: "failed to load tokens",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t)
			tt.mutate(&cfg)
			_, err := New(context.Background(), cfg, nil)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())
	return port
}

func TestRun_GracefulShutdown(t *testing.T) {
	cfg := testConfig(t)
	cfg.Port = freePort(t)
	svc, err := New(context.Background(), cfg, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()

	url := "http://127.0.0.1:" + strconv.Itoa(cfg.Port) + "/health"
	require.Eventually(t, func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRun_PortInUse(t *testing.T) {
	ln, err := net.Listen("tcp", ":0")
	require.NoError(t, err)
	defer ln.Close()

	cfg := testConfig(t)
	cfg.Port = ln.Addr().(*net.TCPAddr).Port
	svc, err := New(context.Background(), cfg, nil)
	require.NoError(t, err)

	err = svc.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "listen")
}

func TestOriginChecker(t *testing.T) {
	assert.Nil(t, originChecker(nil))

	check := originChecker([]string{"https://app.example.com"})
	req := httptest.NewRequest(http.MethodGet, "/v1/activity/ws", nil)
	assert.True(t, check(req), "no Origin header")
	req.Header.Set("Origin", "https://app.example.com")
	assert.True(t, check(req))
	req.Header.Set("Origin", "https://evil.example.com")
	assert.False(t, check(req))

	req.Header.Set("Origin", "https://anything.example.com")
	assert.True(t, originChecker([]string{"*"})(req))
}
