// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package resourcehub assembles the ResourceHub service: the SQL store,
// identity and audit extensions, the activity hub, the sweeper and the
// HTTP router.
//
// # Usage
//
// Local development (no tokens file, every caller is a local admin):
//
//	cfg := resourcehub.Config{Database: sqlstore.Config{DSN: "resourcehub.db"}}
//	svc, err := resourcehub.New(ctx, cfg, nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	log.Fatal(svc.Run(ctx))
//
// Custom identity (nil fields keep the built-in implementations):
//
//	opts := &extensions.ServiceOptions{AuthProvider: ssoProvider}
//	svc, err := resourcehub.New(ctx, cfg, opts)
package resourcehub

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/AleutianAI/ResourceHub/pkg/extensions"
	"github.com/AleutianAI/ResourceHub/services/resourcehub/activity"
	"github.com/AleutianAI/ResourceHub/services/resourcehub/auditlog"
	"github.com/AleutianAI/ResourceHub/services/resourcehub/authn"
	"github.com/AleutianAI/ResourceHub/services/resourcehub/handlers"
	"github.com/AleutianAI/ResourceHub/services/resourcehub/middleware"
	"github.com/AleutianAI/ResourceHub/services/resourcehub/observability"
	"github.com/AleutianAI/ResourceHub/services/resourcehub/routes"
	"github.com/AleutianAI/ResourceHub/services/resourcehub/store/sqlstore"
	"github.com/AleutianAI/ResourceHub/services/resourcehub/sweeper"
)

// ServiceName is reported to tracing and attached to log records.
const ServiceName = "resourcehub"

// =============================================================================
// Interface Definition
// =============================================================================

// Service defines the lifecycle of a ResourceHub instance.
//
// # Thread Safety
//
// Run blocks and must be called at most once per instance.
type Service interface {
	// Run serves HTTP and runs the sweeper until ctx is cancelled, then
	// drains in-flight requests and releases every resource. A nil error
	// means a clean shutdown.
	Run(ctx context.Context) error

	// Router returns the configured engine, primarily for tests.
	Router() *gin.Engine

	// Close releases resources without serving. Use it when Run is never
	// called.
	Close() error
}

// =============================================================================
// Configuration
// =============================================================================

// Config holds service settings. Zero values select defaults, except
// AuditRetention and RateLimitRPS where zero disables the feature.
type Config struct {
	// Port is the HTTP port. Default: 8080
	Port int

	// GinMode is "debug", "release" or "test". Default: release
	GinMode string

	// Database selects the driver and DSN. Default: sqlite "resourcehub.db"
	Database sqlstore.Config

	// TokensFile is a YAML file of bearer tokens, reloaded on change. If
	// empty, authentication is disabled and every caller is a local admin.
	TokensFile string

	// RateLimitRPS is the per-client request rate on /v1. Zero disables.
	RateLimitRPS float64

	// RateLimitBurst is the bucket size. Default: 2x RateLimitRPS, at least 1
	RateLimitBurst int

	// CORSOrigins lists allowed browser origins. "*" allows any.
	CORSOrigins []string

	// OTelExporter is "otlp", "stdout" or "none". Default: none
	OTelExporter string

	// OTelEndpoint is the OTLP gRPC collector. Default: localhost:4317
	OTelEndpoint string

	// SweepInterval is the sweeper period. Default: 1 hour
	SweepInterval time.Duration

	// AuditRetention is how long audit entries are kept. Zero keeps them
	// forever.
	AuditRetention time.Duration

	// DisableSweeper turns off the background sweeper.
	DisableSweeper bool

	// ShutdownTimeout bounds draining on shutdown. Default: 15s
	ShutdownTimeout time.Duration
}

// applyConfigDefaults fills in missing configuration values.
func applyConfigDefaults(cfg Config) Config {
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.GinMode == "" {
		cfg.GinMode = gin.ReleaseMode
	}
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = sqlstore.DriverSQLite
	}
	if cfg.Database.DSN == "" && cfg.Database.Driver == sqlstore.DriverSQLite {
		cfg.Database.DSN = "resourcehub.db"
	}
	if cfg.RateLimitRPS > 0 && cfg.RateLimitBurst <= 0 {
		cfg.RateLimitBurst = max(1, int(2*cfg.RateLimitRPS))
	}
	if cfg.OTelExporter == "" {
		cfg.OTelExporter = ExporterNone
	}
	if cfg.OTelEndpoint == "" {
		cfg.OTelEndpoint = "localhost:4317"
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = sweeper.DefaultConfig().Interval
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 15 * time.Second
	}
	return cfg
}

// =============================================================================
// Implementation
// =============================================================================

type service struct {
	config  Config
	opts    extensions.ServiceOptions
	router  *gin.Engine
	store   *sqlstore.Store
	hub     *activity.Hub
	metrics *observability.Metrics
	sweeper *sweeper.Sweeper

	tracerCleanup func(context.Context)
	stopWatch     context.CancelFunc
}

// New creates a Service. The database is opened and migrated before New
// returns. opts may be nil; nil fields are filled with the built-in token
// file authentication, role policy and store-backed audit log.
func New(ctx context.Context, cfg Config, opts *extensions.ServiceOptions) (Service, error) {
	s := &service{config: applyConfigDefaults(cfg)}
	if opts != nil {
		s.opts = *opts
	}
	gin.SetMode(s.config.GinMode)

	cleanup, err := initTracer(ctx, s.config.OTelExporter, s.config.OTelEndpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracer: %w", err)
	}
	s.tracerCleanup = cleanup

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	s.metrics = observability.NewMetrics(reg)

	s.store, err = sqlstore.Open(ctx, s.config.Database)
	if err != nil {
		s.cleanup()
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	applied, err := s.store.Migrate(ctx)
	if err != nil {
		s.cleanup()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	if len(applied) > 0 {
		slog.Info("applied migrations", "versions", applied)
	}

	s.hub = activity.NewHub(activity.Config{
		CheckOrigin: originChecker(s.config.CORSOrigins),
		OnDrop:      s.metrics.RecordActivityDrop,
	})
	s.metrics.RegisterActivitySubscribers(reg, s.hub.Len)

	storeAudit := auditlog.NewStoreLogger(s.store,
		auditlog.WithPublisher(s.hub),
		auditlog.WithMetrics(s.metrics))
	var auditQuery handlers.AuditQuerier
	if s.opts.AuditLogger == nil {
		s.opts.AuditLogger = storeAudit
		auditQuery = storeAudit
	}
	if s.opts.AuthzProvider == nil {
		s.opts.AuthzProvider = extensions.NewRoleAuthzProvider(nil)
	}
	if err := s.initAuth(); err != nil {
		s.cleanup()
		return nil, err
	}

	if !s.config.DisableSweeper {
		s.sweeper = sweeper.New(s.store, s.opts.AuditLogger, sweeper.Config{
			Interval:  s.config.SweepInterval,
			Retention: s.config.AuditRetention,
		}, sweeper.WithMetrics(s.metrics))
	}

	var limiter *middleware.RateLimiter
	if s.config.RateLimitRPS > 0 {
		limiter = middleware.NewRateLimiter(s.config.RateLimitRPS, s.config.RateLimitBurst)
	}

	s.router = gin.New()
	s.router.Use(
		middleware.Recovery(),
		middleware.RequestID(),
		otelgin.Middleware(ServiceName),
		middleware.Metrics(s.metrics),
		middleware.RequestLogger(),
		middleware.CORS(s.config.CORSOrigins),
	)
	routes.SetupRoutes(s.router, routes.Deps{
		Store:    s.store,
		Options:  s.opts,
		Audit:    auditQuery,
		Recorder: handlers.NewRecorder(s.opts.AuditLogger, s.metrics),
		Hub:      s.hub,
		Gatherer: reg,
		Metrics:  s.metrics,
		Limiter:  limiter,
	})
	return s, nil
}

// initAuth wires the tokens file unless the caller supplied a provider.
func (s *service) initAuth() error {
	if s.opts.AuthProvider != nil {
		return nil
	}
	if s.config.TokensFile == "" {
		slog.Warn("no tokens file configured, authentication is DISABLED and every caller is a local admin")
		s.opts.AuthProvider = &extensions.NopAuthProvider{}
		return nil
	}
	tokens, err := authn.NewFileTokenProvider(s.config.TokensFile)
	if err != nil {
		return fmt.Errorf("failed to load tokens: %w", err)
	}
	watchCtx, cancel := context.WithCancel(context.Background())
	s.stopWatch = cancel
	go func() {
		if err := tokens.Watch(watchCtx); err != nil {
			slog.Warn("tokens file will not be reloaded", "error", err)
		}
	}()
	slog.Info("token authentication enabled", "path", s.config.TokensFile, "tokens", tokens.Len())
	s.opts.AuthProvider = tokens
	return nil
}

// Run implements Service.
func (s *service) Run(ctx context.Context) error {
	defer s.cleanup()

	addr := ":" + strconv.Itoa(s.config.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	if s.sweeper != nil {
		s.sweeper.Start(ctx)
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("Starting ResourceHub server", "addr", ln.Addr().String(), "driver", s.store.Driver())
		serveErr <- srv.Serve(ln)
	}()

	select {
	case err := <-serveErr:
		return fmt.Errorf("server stopped: %w", err)
	case <-ctx.Done():
	}

	slog.Info("shutting down", "timeout", s.config.ShutdownTimeout.String())
	// Websocket connections are hijacked and not drained by Shutdown.
	s.hub.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	if err := <-serveErr; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	slog.Info("server stopped")
	return nil
}

// Router implements Service.
func (s *service) Router() *gin.Engine {
	return s.router
}

// Close implements Service.
func (s *service) Close() error {
	s.cleanup()
	return nil
}

// cleanup releases everything acquired by New. Safe to call on a partially
// initialized service.
func (s *service) cleanup() {
	if s.sweeper != nil {
		s.sweeper.Stop()
	}
	if s.stopWatch != nil {
		s.stopWatch()
	}
	if s.hub != nil {
		s.hub.Close()
	}
	if s.opts.AuditLogger != nil {
		if err := s.opts.AuditLogger.Flush(context.Background()); err != nil {
			slog.Warn("audit flush failed", "error", err)
		}
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			slog.Warn("database close error", "error", err)
		}
		s.store = nil
	}
	if s.tracerCleanup != nil {
		s.tracerCleanup(context.Background())
		s.tracerCleanup = nil
	}
}

// originChecker validates websocket Origin headers against the CORS list.
// Without a list only same-origin upgrades are accepted.
func originChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 {
		return nil
	}
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		set[o] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || set["*"] || set[origin]
	}
}

var _ Service = (*service)(nil)
