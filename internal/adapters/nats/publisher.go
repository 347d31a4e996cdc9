package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/samirrijal/estatemap/internal/core/domain"
)

const (
	// SubjectPropertyEvents is where the listing service publishes lifecycle events
	// (property.events.approved, property.events.deleted, ...).
	SubjectPropertyEvents = "property.events.>"

	// SubjectMapUpdates is where map refresh notices go; WebSocket clients listen here.
	SubjectMapUpdates = "map.updates"
)

// Publisher implements ports.EventPublisher using NATS.
type Publisher struct {
	conn *nats.Conn
}

// NewPublisher connects to NATS and makes sure the property event stream exists.
func NewPublisher(url string) (*Publisher, error) {
	conn, err := Connect(url)
	if err != nil {
		return nil, err
	}

	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("jetstream: %w", err)
	}

	cfg := &nats.StreamConfig{
		Name:      "PROPERTY_EVENTS",
		Subjects:  []string{SubjectPropertyEvents},
		Retention: nats.InterestPolicy,
		MaxAge:    24 * time.Hour,
		Storage:   nats.FileStorage,
	}
	if _, err := js.AddStream(cfg); err != nil {
		// Stream may already exist, so try an update
		if _, err := js.UpdateStream(cfg); err != nil {
			conn.Close()
			return nil, fmt.Errorf("ensure stream %s: %w", cfg.Name, err)
		}
	}

	return &Publisher{conn: conn}, nil
}

// PublishMapUpdate broadcasts a refresh notice to live map clients.
// Core NATS is enough here: a missed notice only delays a client's refresh.
func (p *Publisher) PublishMapUpdate(ctx context.Context, update *domain.MapUpdate) error {
	data, err := json.Marshal(update)
	if err != nil {
		return err
	}
	return p.conn.Publish(SubjectMapUpdates, data)
}

// Conn exposes the underlying connection for the WebSocket relay and readiness checks.
func (p *Publisher) Conn() *nats.Conn {
	return p.conn
}

// Close drains and closes the connection.
func (p *Publisher) Close() {
	_ = p.conn.Drain()
}

// Connect opens a NATS connection that keeps reconnecting.
func Connect(url string) (*nats.Conn, error) {
	conn, err := nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	return conn, nil
}
