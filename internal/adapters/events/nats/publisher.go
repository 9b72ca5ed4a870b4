// Package nats publishes exchange records to a NATS subject as JSON.
package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	natsgo "github.com/nats-io/nats.go"

	"github.com/tjfontaine/relaypipe/internal/core/domain"
	"github.com/tjfontaine/relaypipe/internal/core/ports"
)

// DefaultSubject is used when Config.Subject is empty.
const DefaultSubject = "relaypipe.exchanges"

// Config configures a Publisher.
type Config struct {
	URL     string
	Subject string
	Name    string // client connection name
}

// Publisher implements ports.EventPublisher over core NATS.
type Publisher struct {
	nc      *natsgo.Conn
	subject string
	owned   bool
}

var _ ports.EventPublisher = (*Publisher)(nil)

// NewPublisher connects to cfg.URL. The connection is closed by Close.
func NewPublisher(cfg Config, logger *slog.Logger) (*Publisher, error) {
	if cfg.URL == "" {
		return nil, errors.New("nats url required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	name := cfg.Name
	if name == "" {
		name = "relaypipe"
	}

	nc, err := natsgo.Connect(cfg.URL,
		natsgo.Name(name),
		natsgo.Timeout(10*time.Second),
		natsgo.ReconnectWait(2*time.Second),
		natsgo.MaxReconnects(60),
		natsgo.DisconnectErrHandler(func(_ *natsgo.Conn, err error) {
			logger.Warn("nats disconnected", slog.Any("error", err))
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			logger.Info("nats reconnected", slog.String("url", nc.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}

	p := NewPublisherFromConn(nc, cfg.Subject)
	p.owned = true
	return p, nil
}

// NewPublisherFromConn publishes over an existing connection, which the
// caller keeps ownership of.
func NewPublisherFromConn(nc *natsgo.Conn, subject string) *Publisher {
	if subject == "" {
		subject = DefaultSubject
	}
	return &Publisher{nc: nc, subject: subject}
}

// Subject returns the subject exchanges are published to.
func (p *Publisher) Subject() string {
	return p.subject
}

// Publish encodes ex as JSON and publishes it.
func (p *Publisher) Publish(_ context.Context, ex *domain.Exchange) error {
	data, err := json.Marshal(ex)
	if err != nil {
		return fmt.Errorf("encode exchange: %w", err)
	}
	if err := p.nc.Publish(p.subject, data); err != nil {
		return fmt.Errorf("publish to %s: %w", p.subject, err)
	}
	return nil
}

// Close drains and closes the connection if the publisher opened it.
func (p *Publisher) Close() error {
	if !p.owned {
		return nil
	}
	return p.nc.Drain()
}
