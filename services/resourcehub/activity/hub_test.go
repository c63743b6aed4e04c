// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package activity

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/AleutianAI/ResourceHub/pkg/extensions"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func event(resourceType, id string) extensions.AuditEvent {
	return extensions.AuditEvent{
		ID:           "evt-" + id,
		EventType:    extensions.EventDataCreate,
		UserID:       "alice",
		Action:       extensions.ActionCreate,
		ResourceType: resourceType,
		ResourceID:   id,
		Outcome:      extensions.OutcomeSuccess,
	}
}

func TestHub_PublishSubscribe(t *testing.T) {
	h := NewHub(Config{Buffer: 4})
	all, unsubAll := h.Subscribe(Filter{})
	defer unsubAll()
	projects, unsubProjects := h.Subscribe(Filter{ResourceType: extensions.ResourceProject})
	defer unsubProjects()

	h.Publish(event(extensions.ResourceProject, "p1"))
	h.Publish(event(extensions.ResourceMilestone, "m1"))

	assert.Equal(t, "p1", (<-all).ResourceID)
	assert.Equal(t, "m1", (<-all).ResourceID)
	assert.Equal(t, "p1", (<-projects).ResourceID)
	select {
	case e := <-projects:
		t.Fatalf("filtered subscriber got %s", e.ResourceType)
	default:
	}
}

func TestHub_DropsSlowSubscriber(t *testing.T) {
	var drops atomic.Int32
	h := NewHub(Config{Buffer: 2, OnDrop: func() { drops.Add(1) }})
	slow, unsubSlow := h.Subscribe(Filter{})
	defer unsubSlow()
	fast, unsubFast := h.Subscribe(Filter{})
	defer unsubFast()

	var got []string
	for _, id := range []string{"a", "b", "c"} {
		h.Publish(event(extensions.ResourceProject, id))
		got = append(got, (<-fast).ResourceID)
	}

	assert.Equal(t, []string{"a", "b", "c"}, got)
	assert.EqualValues(t, 1, drops.Load())
	assert.Equal(t, 1, h.Len())

	var drained int
	for range slow {
		drained++
	}
	assert.Equal(t, 2, drained, "slow subscriber keeps its buffered events, then sees close")
}

func TestHub_UnsubscribeIdempotent(t *testing.T) {
	h := NewHub(Config{})
	ch, unsub := h.Subscribe(Filter{})
	unsub()
	unsub()
	_, ok := <-ch
	assert.False(t, ok)
	assert.Equal(t, 0, h.Len())
}

func TestHub_Close(t *testing.T) {
	h := NewHub(Config{})
	ch, unsub := h.Subscribe(Filter{})
	defer unsub()

	h.Close()
	h.Close()
	_, ok := <-ch
	assert.False(t, ok)

	late, _ := h.Subscribe(Filter{})
	_, ok = <-late
	assert.False(t, ok, "subscribing after Close returns a closed channel")

	h.Publish(event(extensions.ResourceProject, "ignored"))
}

func TestHub_ConcurrentPublish(t *testing.T) {
	h := NewHub(Config{Buffer: 1000})
	ch, unsub := h.Subscribe(Filter{})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				h.Publish(event(extensions.ResourceProject, "x"))
			}
		}()
	}
	wg.Wait()
	unsub()

	var n int
	for range ch {
		n++
	}
	assert.Equal(t, 500, n)
}

func TestHub_ConcurrentPublishDropsOnce(t *testing.T) {
	var drops atomic.Int32
	h := NewHub(Config{Buffer: 1, OnDrop: func() { drops.Add(1) }})
	_, unsub := h.Subscribe(Filter{})
	defer unsub()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				h.Publish(event(extensions.ResourceProject, "x"))
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, drops.Load())
	assert.Equal(t, 0, h.Len())
}

// =============================================================================
// WebSocket
// =============================================================================

func dialHub(t *testing.T, h *Hub, query string) (*websocket.Conn, func()) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = h.ServeWebSocket(w, r, Filter{ResourceType: r.URL.Query().Get("resource_type")})
	}))
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?" + query
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	_ = resp.Body.Close()

	return conn, func() {
		_ = conn.Close()
		srv.Close()
	}
}

func TestServeWebSocket_StreamsEvents(t *testing.T) {
	h := NewHub(Config{})
	conn, cleanup := dialHub(t, h, "resource_type=project")
	defer cleanup()

	require.Eventually(t, func() bool { return h.Len() == 1 }, 2*time.Second, 10*time.Millisecond)

	h.Publish(event(extensions.ResourceMilestone, "skip"))
	h.Publish(event(extensions.ResourceProject, "p1"))

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got extensions.AuditEvent
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, "p1", got.ResourceID)
	assert.Equal(t, extensions.EventDataCreate, got.EventType)
}

func TestServeWebSocket_ClientDisconnectUnsubscribes(t *testing.T) {
	h := NewHub(Config{})
	conn, cleanup := dialHub(t, h, "")
	defer cleanup()

	require.Eventually(t, func() bool { return h.Len() == 1 }, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool { return h.Len() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestServeWebSocket_HubCloseSendsCloseFrame(t *testing.T) {
	h := NewHub(Config{})
	conn, cleanup := dialHub(t, h, "")
	defer cleanup()

	require.Eventually(t, func() bool { return h.Len() == 1 }, 2*time.Second, 10*time.Millisecond)
	h.Close()

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	var ce *websocket.CloseError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, websocket.CloseTryAgainLater, ce.Code)
}

func TestServeWebSocket_RejectsPlainHTTP(t *testing.T) {
	h := NewHub(Config{})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	err := h.ServeWebSocket(rec, req, Filter{})
	assert.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 0, h.Len())
}
