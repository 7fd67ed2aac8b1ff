// SPDX-FileCopyrightText: The BareTag Tracker Authors
//
// SPDX-License-Identifier: MIT

package publisher

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/baretag/baretag-tracker/internal/geofence"
	"github.com/baretag/baretag-tracker/internal/logger"
)

const (
	mqttQoS           = 1
	disconnectQuiesce = 250
)

var _ Publisher = (*MQTT)(nil)

// topicEscaper replaces the characters an MQTT topic level must not contain.
var topicEscaper = strings.NewReplacer("+", "_", "#", "_", "/", "_", "\x00", "_")

// MQTT publishes every event to <topic>/<entity id>. Wildcards and separators in the id are
// replaced by underscores so every entity maps to exactly one topic level.
type MQTT struct {
	client mqtt.Client
	topic  string
	logger *logger.Logger
}

// NewMQTT connects to broker with the given client id.
func NewMQTT(broker, clientID, topic string, log *logger.Logger) (*MQTT, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to mqtt broker: %w", token.Error())
	}
	return newMQTT(client, topic, log), nil
}

func newMQTT(client mqtt.Client, topic string, log *logger.Logger) *MQTT {
	return &MQTT{
		client: client,
		topic:  strings.TrimSuffix(topic, "/"),
		logger: log,
	}
}

// PublishEvent sends event with QoS 1 and waits for the broker to acknowledge it or ctx to end.
func (p *MQTT) PublishEvent(ctx context.Context, event geofence.Event) error {
	body, err := Encode(event)
	if err != nil {
		return err
	}
	topic := p.topic + "/" + topicLevel(event.EntityID)
	token := p.client.Publish(topic, mqttQoS, false, body)
	select {
	case <-ctx.Done():
		return fmt.Errorf("failed to publish event to %s: %w", topic, ctx.Err())
	case <-token.Done():
	}
	if err = token.Error(); err != nil {
		return fmt.Errorf("failed to publish event to %s: %w", topic, err)
	}
	p.logger.Debug("event published", slog.String("topic", topic), slog.String("kind", string(event.Kind)))
	return nil
}

func topicLevel(id string) string {
	if id == "" {
		return "_"
	}
	return topicEscaper.Replace(id)
}

// Close disconnects from the broker.
func (p *MQTT) Close() error {
	p.client.Disconnect(disconnectQuiesce)
	return nil
}
