// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package activity fans audit events out to live subscribers, typically
// websocket clients of the activity feed.
package activity

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/AleutianAI/ResourceHub/pkg/extensions"
)

const (
	defaultBuffer       = 64
	defaultPingInterval = 30 * time.Second
	defaultWriteTimeout = 10 * time.Second
)

// Config configures a Hub. Zero values select defaults.
type Config struct {
	// Buffer is the per-subscriber queue length. A subscriber whose queue
	// is full when an event arrives is dropped.
	Buffer int
	// PingInterval is how often websocket clients are pinged. Clients
	// that miss two pings are disconnected.
	PingInterval time.Duration
	// WriteTimeout bounds every websocket write.
	WriteTimeout time.Duration
	// CheckOrigin validates the Origin header on upgrade. nil allows
	// same-origin requests only.
	CheckOrigin func(r *http.Request) bool
	// OnDrop is called whenever a slow subscriber is dropped.
	OnDrop func()
}

// Filter selects which events a subscriber receives. Empty fields match
// everything.
type Filter struct {
	ResourceType string
	ResourceID   string
}

func (f Filter) match(e *extensions.AuditEvent) bool {
	if f.ResourceType != "" && f.ResourceType != e.ResourceType {
		return false
	}
	if f.ResourceID != "" && f.ResourceID != e.ResourceID {
		return false
	}
	return true
}

type subscriber struct {
	ch     chan extensions.AuditEvent
	filter Filter
}

// Hub is an in-process publish/subscribe fan-out of audit events.
//
// Publish never blocks: each subscriber has a bounded queue and is dropped,
// with its channel closed, when the queue is full.
type Hub struct {
	cfg      Config
	upgrader websocket.Upgrader

	mu     sync.RWMutex
	subs   map[*subscriber]struct{}
	closed bool
}

// NewHub returns an empty hub.
//
// # Description
//
// Applies defaults to zero Config fields: a 64 event buffer, a 30s ping
// interval and a 10s write timeout.
//
// # Inputs
//
//   - cfg: Hub settings. CheckOrigin nil means same-origin only.
//
// # Outputs
//
//   - *Hub: Open and ready for Subscribe, Publish and ServeWebSocket.
//
// # Examples
//
//	hub := activity.NewHub(activity.Config{OnDrop: metrics.RecordActivityDrop})
//	defer hub.Close()
func NewHub(cfg Config) *Hub {
	if cfg.Buffer <= 0 {
		cfg.Buffer = defaultBuffer
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = defaultPingInterval
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = defaultWriteTimeout
	}
	return &Hub{
		cfg: cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     cfg.CheckOrigin,
		},
		subs: make(map[*subscriber]struct{}),
	}
}

// Subscribe registers a subscriber and returns its event channel and a
// function that unregisters it. The channel is closed when the subscriber
// is dropped, unsubscribed or the hub closes.
func (h *Hub) Subscribe(f Filter) (<-chan extensions.AuditEvent, func()) {
	s := &subscriber{ch: make(chan extensions.AuditEvent, h.cfg.Buffer), filter: f}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		close(s.ch)
		return s.ch, func() {}
	}
	h.subs[s] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return s.ch, func() {
		once.Do(func() { h.remove(s) })
	}
}

// remove unregisters s and closes its channel if it is still registered.
// It reports whether s was removed by this call.
func (h *Hub) remove(s *subscriber) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[s]; !ok {
		return false
	}
	delete(h.subs, s)
	close(s.ch)
	return true
}

// Publish delivers e to every matching subscriber without blocking.
//
// # Description
//
// Queues e on each subscriber whose Filter matches. A subscriber whose
// queue is full is removed and its channel closed, and OnDrop is called
// once for it.
//
// # Inputs
//
//   - e: Event to deliver. Delivered by value, so subscribers cannot
//     mutate each other's copy, but Metadata is a shared map.
//
// # Limitations
//
//   - No replay: events published while nobody is subscribed are lost.
//   - Ordering is per subscriber only.
//
// # Thread Safety
//
// Safe for concurrent use with every other Hub method. Publishing to a
// closed hub is a no-op.
func (h *Hub) Publish(e extensions.AuditEvent) {
	var slow []*subscriber

	h.mu.RLock()
	for s := range h.subs {
		if !s.filter.match(&e) {
			continue
		}
		select {
		case s.ch <- e:
		default:
			slow = append(slow, s)
		}
	}
	h.mu.RUnlock()

	for _, s := range slow {
		if !h.remove(s) {
			continue
		}
		slog.Warn("dropped slow activity subscriber", "buffer", h.cfg.Buffer)
		if h.cfg.OnDrop != nil {
			h.cfg.OnDrop()
		}
	}
}

// Len returns the number of current subscribers.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Close drops every subscriber. Later subscriptions receive an already
// closed channel. Close is idempotent.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for s := range h.subs {
		delete(h.subs, s)
		close(s.ch)
	}
}
