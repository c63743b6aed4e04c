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
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// closeReasonDropped is sent when the hub drops a slow client.
const closeReasonDropped = "subscriber dropped or server shutting down"

// ServeWebSocket upgrades the request and streams matching events as JSON
// text frames until the client disconnects or is dropped.
//
// The client is not expected to send anything; inbound frames other than
// control frames are read and discarded.
//
// # Outputs
//
//   - error: Non-nil when the upgrade fails, in which case an HTTP error
//     has already been written, or when a write to the client fails. A
//     clean client disconnect or hub shutdown returns nil.
//
// # Limitations
//
//   - A client that misses two pings is disconnected.
func (h *Hub) ServeWebSocket(w http.ResponseWriter, r *http.Request, f Filter) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written an HTTP error.
		return fmt.Errorf("websocket upgrade: %w", err)
	}

	events, unsubscribe := h.Subscribe(f)
	defer unsubscribe()

	pongWait := 2 * h.cfg.PingInterval
	clientGone := make(chan struct{})
	go func() {
		defer close(clientGone)
		conn.SetReadLimit(4096)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
	defer func() {
		_ = conn.Close()
		<-clientGone
	}()

	slog.Debug("activity client connected", "remote", r.RemoteAddr, "resource_type", f.ResourceType)

	ticker := time.NewTicker(h.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case e, ok := <-events:
			_ = conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteTimeout))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseTryAgainLater, closeReasonDropped))
				return nil
			}
			if err := conn.WriteJSON(e); err != nil {
				return fmt.Errorf("write event: %w", err)
			}

		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(h.cfg.WriteTimeout)); err != nil {
				return fmt.Errorf("ping: %w", err)
			}

		case <-clientGone:
			slog.Debug("activity client disconnected", "remote", r.RemoteAddr)
			return nil
		}
	}
}
