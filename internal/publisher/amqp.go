// SPDX-FileCopyrightText: The BareTag Tracker Authors
//
// SPDX-License-Identifier: MIT

package publisher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/baretag/baretag-tracker/internal/geofence"
	"github.com/baretag/baretag-tracker/internal/logger"
)

const (
	ExchangeName = "baretag.events"
	exchangeKind = "fanout"
)

var _ Publisher = (*AMQP)(nil)

// amqpChannel is the part of an AMQP channel the publisher depends on.
type amqpChannel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool,
		msg amqp.Publishing) error
	Close() error
}

// AMQP publishes events to a durable fanout exchange.
type AMQP struct {
	ch     amqpChannel
	conn   io.Closer
	logger *logger.Logger
}

// NewAMQP connects to the broker at url and declares the event exchange.
func NewAMQP(url string, log *logger.Logger) (*AMQP, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open rabbitmq channel: %w", err)
	}
	pub, err := newAMQP(ch, conn, log)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	return pub, nil
}

func newAMQP(ch amqpChannel, conn io.Closer, log *logger.Logger) (*AMQP, error) {
	if err := ch.ExchangeDeclare(ExchangeName, exchangeKind, true, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}
	return &AMQP{ch: ch, conn: conn, logger: log}, nil
}

// PublishEvent sends event to the exchange as persistent JSON message.
func (p *AMQP) PublishEvent(ctx context.Context, event geofence.Event) error {
	body, err := Encode(event)
	if err != nil {
		return err
	}
	err = p.ch.PublishWithContext(ctx, ExchangeName, "", false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    event.ID,
		Timestamp:    event.At,
		Type:         string(event.Kind),
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	p.logger.Debug("event published", slog.String("exchange", ExchangeName),
		slog.String("entity_id", event.EntityID), slog.String("kind", string(event.Kind)))
	return nil
}

// Close closes the channel and the connection.
func (p *AMQP) Close() error {
	var errs []error
	if err := p.ch.Close(); err != nil {
		errs = append(errs, err)
	}
	if p.conn != nil {
		if err := p.conn.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
