package notification

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"

	"ticket-queue-backend/internal/queue"
)

// publisher is the part of *nats.Conn the publisher uses.
type publisher interface {
	Publish(subject string, data []byte) error
}

// NATSPublisher forwards events to NATS on subject "<prefix>.<kind>", for
// example "queue.ticket.called".
type NATSPublisher struct {
	conn   publisher
	prefix string
	close  func()
}

// ConnectNATS dials the server and returns a publisher owning the connection.
func ConnectNATS(url, prefix string) (*NATSPublisher, error) {
	conn, err := nats.Connect(url, nats.Name("queued"), nats.MaxReconnects(-1))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	p := NewNATSPublisher(conn, prefix)
	p.close = func() {
		if err := conn.Drain(); err != nil {
			conn.Close()
		}
	}
	return p, nil
}

// NewNATSPublisher wraps an existing connection.
func NewNATSPublisher(conn publisher, prefix string) *NATSPublisher {
	return &NATSPublisher{conn: conn, prefix: prefix}
}

// Subject returns the subject an event kind is published on.
func (p *NATSPublisher) Subject(kind queue.EventKind) string {
	if p.prefix == "" {
		return string(kind)
	}
	return p.prefix + "." + string(kind)
}

func (p *NATSPublisher) Name() string { return "nats" }

func (p *NATSPublisher) Handle(_ context.Context, evt queue.Event) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("failed to encode %s event: %w", evt.Kind, err)
	}
	return p.conn.Publish(p.Subject(evt.Kind), data)
}

// Close flushes pending messages and closes a connection opened by ConnectNATS.
func (p *NATSPublisher) Close() {
	if p.close != nil {
		p.close()
	}
}
