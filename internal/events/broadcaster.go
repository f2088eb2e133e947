// Package events publishes board activity to interested clients. Delivery is
// fire-and-forget: a publish failure is logged and never fails the write
// that triggered it.
package events

import (
	"context"
	"log"

	"firebase.google.com/go/v4/messaging"
)

// Event names emitted by the service board.
const (
	ServiceCreated = "service.created"
	ServiceMatched = "service.matched"
	ServiceUpdated = "service.updated"
	ServiceDeleted = "service.deleted"
)

// Broadcaster publishes a named event with a small string payload.
type Broadcaster interface {
	Publish(ctx context.Context, event string, payload map[string]string)
}

// FCMBroadcaster publishes events to a Firebase Cloud Messaging topic.
type FCMBroadcaster struct {
	client *messaging.Client
	topic  string
}

// NewFCMBroadcaster creates a broadcaster on the given topic.
func NewFCMBroadcaster(client *messaging.Client, topic string) *FCMBroadcaster {
	return &FCMBroadcaster{client: client, topic: topic}
}

// Publish sends the event as a data-only message. Errors are logged only.
func (b *FCMBroadcaster) Publish(ctx context.Context, event string, payload map[string]string) {
	data := make(map[string]string, len(payload)+1)
	for k, v := range payload {
		data[k] = v
	}
	data["event"] = event

	if _, err := b.client.Send(ctx, &messaging.Message{Topic: b.topic, Data: data}); err != nil {
		log.Printf("Failed to publish %s event: %v", event, err)
	}
}

// NopBroadcaster drops every event. Used when no messaging client is
// configured, e.g. local development without Firebase credentials.
type NopBroadcaster struct{}

// Publish discards the event.
func (NopBroadcaster) Publish(context.Context, string, map[string]string) {}
