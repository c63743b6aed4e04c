// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package auditlog

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/ResourceHub/pkg/extensions"
	"github.com/AleutianAI/ResourceHub/services/resourcehub/activity"
	"github.com/AleutianAI/ResourceHub/services/resourcehub/observability"
	"github.com/AleutianAI/ResourceHub/services/resourcehub/store/sqlstore"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []extensions.AuditEvent
}

func (p *recordingPublisher) Publish(e extensions.AuditEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
}

// failingStore rejects every append.
type failingStore struct{}

func (failingStore) AppendAudit(context.Context, *extensions.AuditEvent) error {
	return errors.New("disk full")
}

func (failingStore) QueryAudit(context.Context, extensions.AuditFilter) ([]extensions.AuditEvent, int, error) {
	return nil, 0, errors.New("disk full")
}

func (failingStore) PurgeAudit(context.Context, time.Time) (int64, error) {
	return 0, nil
}

func openStore(t *testing.T) *sqlstore.Store {
	t.Helper()
	ctx := context.Background()
	s, err := sqlstore.Open(ctx, sqlstore.Config{
		DSN:         filepath.Join(t.TempDir(), "audit.db"),
		OpenTimeout: 5 * time.Second,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	_, err = s.Migrate(ctx)
	require.NoError(t, err)
	return s
}

func TestStoreLogger_LogPersistsAndPublishes(t *testing.T) {
	ctx := context.Background()
	pub := &recordingPublisher{}
	m := observability.NewMetrics(prometheus.NewRegistry())
	l := NewStoreLogger(openStore(t), WithPublisher(pub), WithMetrics(m))

	err := l.Log(ctx, extensions.AuditEvent{
		EventType:    extensions.EventDataCreate,
		UserID:       "alice",
		Action:       extensions.ActionCreate,
		ResourceType: extensions.ResourceProject,
		ResourceID:   "p-1",
		Metadata:     map[string]any{"code": "ALPHA"},
	})
	require.NoError(t, err)

	require.Len(t, pub.events, 1)
	published := pub.events[0]
	assert.NotEmpty(t, published.ID)
	assert.False(t, published.Timestamp.IsZero())
	assert.Equal(t, extensions.OutcomeSuccess, published.Outcome)

	events, total, err := l.QueryPage(ctx, extensions.AuditFilter{ResourceID: "p-1"})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, events, 1)
	assert.Equal(t, published.ID, events[0].ID)
	assert.Equal(t, "ALPHA", events[0].Metadata["code"])

	assert.Equal(t, 1.0, testutil.ToFloat64(m.AuditEventsTotal.WithLabelValues(extensions.EventDataCreate, extensions.OutcomeSuccess)))
}

func TestStoreLogger_FailureIsNotPublished(t *testing.T) {
	pub := &recordingPublisher{}
	m := observability.NewMetrics(prometheus.NewRegistry())
	l := NewStoreLogger(failingStore{}, WithPublisher(pub), WithMetrics(m))

	err := l.Log(context.Background(), extensions.AuditEvent{EventType: extensions.EventDataDelete})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "data.delete")
	assert.Empty(t, pub.events)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AuditWriteErrorsTotal))

	_, err = l.Query(context.Background(), extensions.AuditFilter{})
	assert.Error(t, err)
}

func TestStoreLogger_QueryEmptyIsNotNil(t *testing.T) {
	l := NewStoreLogger(openStore(t))
	events, err := l.Query(context.Background(), extensions.AuditFilter{UserID: "nobody"})
	require.NoError(t, err)
	assert.NotNil(t, events)
	assert.Empty(t, events)
	assert.NoError(t, l.Flush(context.Background()))
}

func TestStoreLogger_FeedsActivityHub(t *testing.T) {
	hub := activity.NewHub(activity.Config{Buffer: 4})
	defer hub.Close()
	ch, unsub := hub.Subscribe(activity.Filter{ResourceType: extensions.ResourceMilestone})
	defer unsub()

	l := NewStoreLogger(openStore(t), WithPublisher(hub))
	require.NoError(t, l.Log(context.Background(), extensions.AuditEvent{
		EventType:    extensions.EventDataUpdate,
		UserID:       "bob",
		Action:       extensions.ActionUpdate,
		ResourceType: extensions.ResourceMilestone,
		ResourceID:   "m-1",
	}))

	select {
	case e := <-ch:
		assert.Equal(t, "m-1", e.ResourceID)
	case <-time.After(time.Second):
		t.Fatal("event not delivered to hub subscriber")
	}
}
