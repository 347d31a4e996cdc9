package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nats-io/nats.go"
	"github.com/samirrijal/estatemap/internal/core/domain"
	"github.com/samirrijal/estatemap/internal/core/ports"
	"github.com/samirrijal/estatemap/internal/pkg/metrics"
)

// Subscriber implements ports.EventSubscriber using NATS JetStream.
type Subscriber struct {
	js   nats.JetStreamContext
	subs []*nats.Subscription
}

var _ ports.EventSubscriber = (*Subscriber)(nil)

// NewSubscriber creates a subscriber on an existing connection.
func NewSubscriber(conn *nats.Conn) (*Subscriber, error) {
	js, err := conn.JetStream()
	if err != nil {
		return nil, fmt.Errorf("jetstream: %w", err)
	}
	return &Subscriber{js: js}, nil
}

// SubscribePropertyEvents delivers property lifecycle events to handler.
// The event kind defaults to the last subject token when the payload omits it.
func (s *Subscriber) SubscribePropertyEvents(ctx context.Context, handler func(ctx context.Context, event *domain.PropertyEvent) error) error {
	sub, err := s.js.Subscribe(SubjectPropertyEvents, func(msg *nats.Msg) {
		event, err := decodePropertyEvent(msg.Subject, msg.Data)
		if err != nil {
			metrics.PropertyEventsReceived.WithLabelValues("unknown", "malformed").Inc()
			// Redelivery cannot fix a bad payload.
			_ = msg.Term()
			return
		}
		if err := handler(ctx, event); err != nil {
			metrics.PropertyEventsReceived.WithLabelValues(string(event.Kind), "error").Inc()
			_ = msg.Nak()
			return
		}
		metrics.PropertyEventsReceived.WithLabelValues(string(event.Kind), "ok").Inc()
		_ = msg.Ack()
	},
		nats.Durable("estatemap-map-cache"),
		nats.ManualAck(),
		nats.MaxDeliver(3),
	)
	if err != nil {
		return err
	}
	s.subs = append(s.subs, sub)
	return nil
}

func decodePropertyEvent(subject string, data []byte) (*domain.PropertyEvent, error) {
	var event domain.PropertyEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, err
	}
	if event.Kind == "" {
		if i := strings.LastIndexByte(subject, '.'); i >= 0 {
			event.Kind = domain.PropertyEventKind(subject[i+1:])
		}
	}
	return &event, nil
}

// Close unsubscribes all subscriptions. The connection is owned by the caller.
func (s *Subscriber) Close() {
	for _, sub := range s.subs {
		_ = sub.Unsubscribe()
	}
}
