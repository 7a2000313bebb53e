package natsbus

import (
	"context"
	"fmt"

	"github.com/nats-io/nats.go"
)

// conn is the part of *nats.Conn the publisher uses.
type conn interface {
	PublishMsg(m *nats.Msg) error
	FlushWithContext(ctx context.Context) error
	Drain() error
}

// Publisher sends run lifecycle events to a NATS subject.
type Publisher struct {
	nc      conn
	subject string
}

// Connect dials the NATS server and returns a Publisher bound to subject.
func Connect(url, subject string) (*Publisher, error) {
	nc, err := nats.Connect(url, nats.Name("mediascribe"))
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &Publisher{nc: nc, subject: subject}, nil
}

// Publish sends value with the key and headers carried as NATS headers.
func (p *Publisher) Publish(ctx context.Context, key string, value []byte, headers map[string]string) error {
	msg := nats.NewMsg(p.subject)
	msg.Data = value
	msg.Header.Set("key", key)
	for k, v := range headers {
		msg.Header.Set(k, v)
	}

	if err := p.nc.PublishMsg(msg); err != nil {
		return fmt.Errorf("publish to %s: %w", p.subject, err)
	}
	return p.nc.FlushWithContext(ctx)
}

// Close drains pending messages and closes the connection.
func (p *Publisher) Close(ctx context.Context) error {
	return p.nc.Drain()
}
