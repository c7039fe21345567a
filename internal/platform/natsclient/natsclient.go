// Package natsclient wraps a NATS connection for event publishing.
package natsclient

import (
	"context"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/vitalle-health/be-negotiations/internal/platform/errors"
)

// Config holds NATS connection settings.
type Config struct {
	URL  string
	Name string
}

// Client is a thin publish-only NATS wrapper.
type Client struct {
	conn *nats.Conn
}

// Connect dials the NATS server with sane reconnect settings.
func Connect(cfg Config) (*Client, error) {
	conn, err := nats.Connect(cfg.URL,
		nats.Name(cfg.Name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.Timeout(5*time.Second),
	)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to connect to NATS")
	}
	return &Client{conn: conn}, nil
}

// Publish sends data to a subject. The context bounds the flush.
func (c *Client) Publish(ctx context.Context, subject string, data []byte) error {
	if err := c.conn.Publish(subject, data); err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to publish NATS message")
	}

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(5 * time.Second)
	}
	if err := c.conn.FlushTimeout(time.Until(deadline)); err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to flush NATS message")
	}

	return nil
}

// Close drains and closes the connection.
func (c *Client) Close() {
	if c.conn != nil {
		_ = c.conn.Drain()
	}
}
