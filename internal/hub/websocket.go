// SPDX-FileCopyrightText: The BareTag Tracker Authors
//
// SPDX-License-Identifier: MIT

package hub

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/baretag/baretag-tracker/internal/logger"
)

const (
	pingInterval = 30 * time.Second
	writeTimeout = 5 * time.Second
)

// Handler upgrades HTTP requests to websocket connections attached to a Hub.
type Handler struct {
	hub            *Hub
	logger         *logger.Logger
	originPatterns []string
	pingInterval   time.Duration
}

// NewHandler returns a Handler for hub. Without origin patterns only same-origin clients are
// accepted.
func NewHandler(hub *Hub, log *logger.Logger, originPatterns ...string) *Handler {
	return &Handler{
		hub:            hub,
		logger:         log,
		originPatterns: originPatterns,
		pingInterval:   pingInterval,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.originPatterns,
	})
	if err != nil {
		h.logger.Warn("websocket accept failed", logger.Err(err))
		return
	}

	client := NewClient(uuid.NewString(), DefaultBufferSize)
	h.hub.Register(client)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	go h.writeLoop(ctx, conn, client)
	h.readLoop(ctx, conn, client)
}

func (h *Handler) readLoop(ctx context.Context, conn *websocket.Conn, client *Client) {
	defer func() {
		h.hub.Unregister(client)
		_ = conn.Close(websocket.StatusNormalClosure, "")
	}()

	for {
		msgType, data, err := conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != websocket.StatusNormalClosure && ctx.Err() == nil {
				h.logger.Debug("websocket read error", slog.String("client_id", client.ID), logger.Err(err))
			}
			return
		}
		if msgType != websocket.MessageText {
			continue
		}

		var msg Message
		if err = json.Unmarshal(data, &msg); err != nil {
			h.logger.Debug("invalid message format", slog.String("client_id", client.ID), logger.Err(err))
			continue
		}
		if msg.Type == MessagePing {
			pong, _ := json.Marshal(Message{Type: MessagePong})
			h.hub.SendTo(client, pong)
		}
	}
}

func (h *Handler) writeLoop(ctx context.Context, conn *websocket.Conn, client *Client) {
	ticker := time.NewTicker(h.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-client.Send:
			if !ok {
				_ = conn.Close(websocket.StatusGoingAway, "server shutting down")
				return
			}
			writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := conn.Write(writeCtx, websocket.MessageText, msg)
			cancel()
			if err != nil {
				return
			}
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := conn.Ping(pingCtx)
			cancel()
			if err != nil {
				return
			}
		}
	}
}
