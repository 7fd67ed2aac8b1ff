// SPDX-FileCopyrightText: The BareTag Tracker Authors
//
// SPDX-License-Identifier: MIT

// Package publisher forwards boundary crossings to a message broker.
package publisher

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/baretag/baretag-tracker/internal/config"
	"github.com/baretag/baretag-tracker/internal/geofence"
	"github.com/baretag/baretag-tracker/internal/logger"
)

// Publisher delivers boundary events to an external consumer.
type Publisher interface {
	PublishEvent(ctx context.Context, event geofence.Event) error
	Close() error
}

// Message is the wire format of a published event.
type Message struct {
	ID         string          `json:"id"`
	EntityID   string          `json:"entity_id"`
	EntityName string          `json:"entity_name"`
	Event      string          `json:"event"`
	Previous   string          `json:"previous"`
	Current    string          `json:"current"`
	Location   MessageLocation `json:"location"`
	Timestamp  int64           `json:"timestamp"`
}

type MessageLocation struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Encode converts event into its JSON wire format.
func Encode(event geofence.Event) ([]byte, error) {
	msg := Message{
		ID:         event.ID,
		EntityID:   event.EntityID,
		EntityName: event.EntityName,
		Event:      string(event.Kind),
		Previous:   event.Previous.String(),
		Current:    event.Current.String(),
		Location: MessageLocation{
			Latitude:  event.Position.Lat,
			Longitude: event.Position.Lon,
		},
		Timestamp: event.At.Unix(),
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to encode event: %w", err)
	}
	return body, nil
}

// New returns the publisher selected by the configuration. Without a publisher type a Nop
// publisher is returned.
func New(conf *config.Config, log *logger.Logger) (Publisher, error) {
	switch conf.Publisher.Type {
	case config.PublisherNone:
		return Nop{}, nil
	case config.PublisherAMQP:
		return NewAMQP(conf.Publisher.URL, log)
	case config.PublisherMQTT:
		return NewMQTT(conf.Publisher.URL, conf.Publisher.ClientID, conf.Publisher.Topic, log)
	default:
		return nil, fmt.Errorf("%w: %s", config.ErrUnknownPublisher, conf.Publisher.Type)
	}
}

// Nop discards every event.
type Nop struct{}

func (Nop) PublishEvent(context.Context, geofence.Event) error { return nil }

func (Nop) Close() error { return nil }
