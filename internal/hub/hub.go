// SPDX-FileCopyrightText: The BareTag Tracker Authors
//
// SPDX-License-Identifier: MIT

// Package hub pushes the latest tracking view to connected websocket clients.
package hub

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/baretag/baretag-tracker/internal/logger"
)

const (
	MessageView = "view"
	MessagePong = "pong"
	MessagePing = "ping"

	// DefaultBufferSize is the number of messages queued per client before new ones are dropped.
	DefaultBufferSize = 16
)

// Message is the envelope of every message exchanged with a client.
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Client is a single connected consumer. Send is closed once the client is unregistered.
type Client struct {
	ID   string
	Send chan []byte
}

func NewClient(id string, bufferSize int) *Client {
	return &Client{
		ID:   id,
		Send: make(chan []byte, bufferSize),
	}
}

// Hub fans out messages to all registered clients and remembers the last view so that new
// clients start with the current state.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	last    []byte
	closed  bool
	logger  *logger.Logger
}

func New(log *logger.Logger) *Hub {
	return &Hub{
		clients: make(map[*Client]struct{}),
		logger:  log,
	}
}

// Register adds client to the hub and queues the last view for it.
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		close(client.Send)
		return
	}
	h.clients[client] = struct{}{}
	if h.last != nil {
		h.send(client, h.last)
	}
	h.logger.Debug("client registered", slog.String("client_id", client.ID),
		slog.Int("total", len(h.clients)))
}

// Unregister removes client from the hub and closes its Send channel. Unknown clients are
// ignored.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	close(client.Send)
	h.logger.Debug("client unregistered", slog.String("client_id", client.ID),
		slog.Int("total", len(h.clients)))
}

// Broadcast encodes view and sends it to every client. Clients with a full buffer miss the
// message.
func (h *Hub) Broadcast(view any) error {
	payload, err := json.Marshal(view)
	if err != nil {
		return fmt.Errorf("failed to encode view: %w", err)
	}
	data, err := json.Marshal(Message{Type: MessageView, Payload: payload})
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.last = data
	for client := range h.clients {
		h.send(client, data)
	}
	return nil
}

// SendTo queues data for a single registered client. It reports false if the client is not
// registered or its buffer is full.
func (h *Hub) SendTo(client *Client, data []byte) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if _, ok := h.clients[client]; !ok {
		return false
	}
	select {
	case client.Send <- data:
		return true
	default:
		return false
	}
}

// ClientCount returns the number of registered clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close unregisters every client. Clients registering afterwards are closed right away.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		close(client.Send)
	}
	h.clients = make(map[*Client]struct{})
	h.closed = true
}

func (h *Hub) send(client *Client, data []byte) {
	select {
	case client.Send <- data:
	default:
		h.logger.Debug("client send buffer full", slog.String("client_id", client.ID))
	}
}
