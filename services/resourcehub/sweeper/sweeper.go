// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package sweeper runs the periodic housekeeping of ResourceHub: overdue
// milestones are marked missed and audit entries past retention are purged.
package sweeper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/AleutianAI/ResourceHub/pkg/extensions"
	"github.com/AleutianAI/ResourceHub/services/resourcehub/datatypes"
	"github.com/AleutianAI/ResourceHub/services/resourcehub/observability"
	"github.com/AleutianAI/ResourceHub/services/resourcehub/store"
)

// SystemUser is the user id recorded on audit events written by the sweeper.
const SystemUser = "sweeper"

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock in UTC.
type SystemClock struct{}

// Now implements Clock.
func (SystemClock) Now() time.Time { return time.Now().UTC() }

// Store is the persistence the sweeper needs.
type Store interface {
	MarkMissedMilestones(ctx context.Context, today datatypes.Date, now time.Time) ([]datatypes.Milestone, error)
	PurgeAudit(ctx context.Context, before time.Time) (int64, error)
}

var _ Store = (store.Store)(nil)

// Config holds the sweeper settings.
//
// # Fields
//
//   - Interval: Time between cycles. Default: 1 hour.
//   - Retention: Age after which audit entries are purged. Zero disables
//     purging.
type Config struct {
	Interval  time.Duration
	Retention time.Duration
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		Interval:  time.Hour,
		Retention: 365 * 24 * time.Hour,
	}
}

// Result summarizes one cycle.
type Result struct {
	StartTime time.Time
	EndTime   time.Time
	// Missed lists the milestones flipped to missed.
	Missed []datatypes.Milestone
	// Purged is the number of audit entries removed.
	Purged int64
}

// Duration returns how long the cycle took.
func (r *Result) Duration() time.Duration { return r.EndTime.Sub(r.StartTime) }

// Sweeper manages the background goroutine that runs cleanup cycles.
//
// # Description
//
// Uses the ticker + done channel pattern. Each cycle marks open milestones
// whose due date has passed as missed, then purges audit entries older
// than Retention. Every change is written to the audit trail as the
// SystemUser.
//
// # Fields
//
//   - cycle: Serializes cycles between the loop and RunNow.
//   - mu: Protects running, done and stopped.
//   - done: Closed by Stop to end the current loop.
//   - stopped: Closed by the loop when it has returned.
//
// # Thread Safety
//
// All methods are safe for concurrent use. Cycles never overlap: RunNow
// waits for a running scheduled cycle and vice versa.
type Sweeper struct {
	store   Store
	audit   extensions.AuditLogger
	metrics *observability.Metrics
	clock   Clock
	config  Config

	cycle   sync.Mutex
	mu      sync.Mutex
	running bool
	done    chan struct{}
	stopped chan struct{}
}

// Option configures a Sweeper.
type Option func(*Sweeper)

// WithClock replaces the wall clock.
func WithClock(c Clock) Option { return func(s *Sweeper) { s.clock = c } }

// WithMetrics records cycle results on m.
func WithMetrics(m *observability.Metrics) Option { return func(s *Sweeper) { s.metrics = m } }

// New creates a sweeper.
//
// # Description
//
// Builds a stopped sweeper. A non-positive Interval is replaced by the
// default.
//
// # Inputs
//
//   - st: Store for milestones and the audit table.
//   - audit: Receives one event per change. May be nil, in which case
//     changes are only logged through slog.
//   - config: Interval and audit retention.
//   - opts: WithClock, WithMetrics.
//
// # Outputs
//
//   - *Sweeper: Ready to Start, or to drive with RunNow.
//
// # Examples
//
//	sw := sweeper.New(st, auditLogger, sweeper.Config{Interval: time.Hour},
//		sweeper.WithMetrics(metrics))
//	sw.Start(ctx)
//	defer sw.Stop()
//
// # Limitations
//
//   - Cycles are serialized within one Sweeper only. Separate instances
//     against the same database run concurrently.
func New(st Store, audit extensions.AuditLogger, config Config, opts ...Option) *Sweeper {
	if config.Interval <= 0 {
		config.Interval = DefaultConfig().Interval
	}
	if audit == nil {
		audit = &extensions.NopAuditLogger{}
	}
	s := &Sweeper{
		store:  st,
		audit:  audit,
		clock:  SystemClock{},
		config: config,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start begins the background cleanup loop.
//
// # Description
//
// Runs a cycle immediately and then every Interval until Stop is called or
// ctx is cancelled. Either way the sweeper returns to the stopped state
// and may be started again.
//
// # Inputs
//
//   - ctx: Cancels the loop and is passed to every cycle.
//
// # Limitations
//
//   - Calling Start on a running sweeper is a no-op.
//   - Cancelling ctx aborts the cycle in flight; Stop lets it finish.
//
// # Assumptions
//
//   - The caller calls Stop during graceful shutdown.
func (s *Sweeper) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true
	s.done = make(chan struct{})
	s.stopped = make(chan struct{})

	slog.Info("sweeper starting",
		"interval", s.config.Interval.String(),
		"audit_retention", s.config.Retention.String(),
	)
	go s.runLoop(ctx, s.done, s.stopped)
}

// Stop signals the loop to exit and waits for an in-progress cycle to
// finish. Safe to call multiple times and before Start.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.done)
	stopped := s.stopped
	s.mu.Unlock()

	<-stopped
	slog.Info("sweeper stopped")
}

// RunNow performs one cycle synchronously.
//
// # Description
//
// Waits for any cycle in progress, then marks missed milestones and purges
// expired audit entries. A failure in one step does not skip the other.
//
// # Outputs
//
//   - Result: What the cycle changed. Filled in as far as it got when err
//     is non-nil.
//   - error: The joined errors of both steps.
func (s *Sweeper) RunNow(ctx context.Context) (Result, error) {
	s.cycle.Lock()
	defer s.cycle.Unlock()

	result := Result{StartTime: s.clock.Now()}
	err := s.markMissed(ctx, &result)
	err = errors.Join(err, s.purgeAudit(ctx, &result))
	result.EndTime = s.clock.Now()

	s.metrics.RecordSweep(len(result.Missed), result.Purged, err)
	return result, err
}

func (s *Sweeper) runLoop(ctx context.Context, done <-chan struct{}, stopped chan<- struct{}) {
	defer close(stopped)
	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	s.execute(ctx)
	for {
		select {
		case <-ctx.Done():
			s.mu.Lock()
			// A later Start may already own s.done.
			if s.done == done {
				s.running = false
			}
			s.mu.Unlock()
			return
		case <-done:
			return
		case <-ticker.C:
			s.execute(ctx)
		}
	}
}

// execute runs a cycle from the loop. Errors are logged; the loop keeps
// going.
func (s *Sweeper) execute(ctx context.Context) {
	result, err := s.RunNow(ctx)
	if err != nil {
		slog.Error("sweeper cycle failed", "error", err)
		return
	}
	if len(result.Missed) > 0 || result.Purged > 0 {
		slog.Info("sweeper cycle completed",
			"milestones_missed", len(result.Missed),
			"audit_purged", result.Purged,
			"duration_ms", result.Duration().Milliseconds(),
		)
	} else {
		slog.Debug("sweeper cycle completed (nothing to do)")
	}
}

func (s *Sweeper) markMissed(ctx context.Context, result *Result) error {
	now := result.StartTime
	missed, err := s.store.MarkMissedMilestones(ctx, datatypes.NewDate(now), now)
	if err != nil {
		return fmt.Errorf("mark missed milestones: %w", err)
	}
	result.Missed = missed
	for _, m := range missed {
		s.log(ctx, extensions.AuditEvent{
			EventType:    extensions.EventSystemSweep,
			Action:       extensions.ActionUpdate,
			ResourceType: extensions.ResourceMilestone,
			ResourceID:   m.ID,
			Metadata: map[string]any{
				"fields":     []string{"status"},
				"to":         string(datatypes.MilestoneMissed),
				"due_date":   m.DueDate.String(),
				"project_id": m.ProjectID,
			},
		})
	}
	return nil
}

func (s *Sweeper) purgeAudit(ctx context.Context, result *Result) error {
	if s.config.Retention <= 0 {
		return nil
	}
	before := result.StartTime.Add(-s.config.Retention)
	n, err := s.store.PurgeAudit(ctx, before)
	if err != nil {
		return fmt.Errorf("purge audit: %w", err)
	}
	result.Purged = n
	if n > 0 {
		s.log(ctx, extensions.AuditEvent{
			EventType:    extensions.EventSystemPurge,
			Action:       extensions.ActionDelete,
			ResourceType: extensions.ResourceAuditLog,
			Metadata: map[string]any{
				"purged": n,
				"before": before.Format(time.RFC3339),
			},
		})
	}
	return nil
}

func (s *Sweeper) log(ctx context.Context, e extensions.AuditEvent) {
	e.UserID = SystemUser
	e.Outcome = extensions.OutcomeSuccess
	e.Timestamp = s.clock.Now()
	if err := s.audit.Log(ctx, e); err != nil {
		slog.Error("failed to record sweeper audit event", "error", err, "event_type", e.EventType)
	}
}
