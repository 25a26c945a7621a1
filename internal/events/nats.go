package events

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// NATSConfig holds connection settings for NATSBus.
type NATSConfig struct {
	URL            string
	Name           string
	MaxReconnects  int
	ReconnectWait  time.Duration
	ConnectTimeout time.Duration
	Logger         zerolog.Logger
}

// DefaultNATSConfig returns defaults for a local NATS server.
func DefaultNATSConfig() NATSConfig {
	return NATSConfig{
		URL:            nats.DefaultURL,
		Name:           "vietnam-explorer",
		MaxReconnects:  10,
		ReconnectWait:  2 * time.Second,
		ConnectTimeout: 5 * time.Second,
		Logger:         zerolog.Nop(),
	}
}

// NATSBus is a Bus backed by core NATS subjects, so that every API instance
// sees events published by any other.
type NATSBus struct {
	conn *nats.Conn
}

// ConnectNATS dials the NATS server described by cfg.
func ConnectNATS(cfg NATSConfig) (*NATSBus, error) {
	logger := cfg.Logger
	options := []nats.Option{
		nats.Name(cfg.Name),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.Timeout(cfg.ConnectTimeout),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn().Err(err).Msg("nats disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info().Str("url", nc.ConnectedUrl()).Msg("nats reconnected")
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			logger.Info().Msg("nats connection closed")
		}),
	}

	nc, err := nats.Connect(cfg.URL, options...)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}
	return &NATSBus{conn: nc}, nil
}

// NewNATSBus wraps an existing connection.
func NewNATSBus(conn *nats.Conn) *NATSBus {
	return &NATSBus{conn: conn}
}

// Publish publishes data on subject.
func (b *NATSBus) Publish(_ context.Context, subject string, data []byte) error {
	if err := b.conn.Publish(subject, data); err != nil {
		if errors.Is(err, nats.ErrConnectionClosed) {
			return ErrClosed
		}
		return fmt.Errorf("nats publish %s: %w", subject, err)
	}
	return nil
}

// Subscribe registers h for subject. h runs on the subscription's goroutine.
func (b *NATSBus) Subscribe(subject string, h Handler) (Subscription, error) {
	sub, err := b.conn.Subscribe(subject, func(msg *nats.Msg) {
		h(msg.Data)
	})
	if err != nil {
		if errors.Is(err, nats.ErrConnectionClosed) {
			return nil, ErrClosed
		}
		return nil, fmt.Errorf("nats subscribe %s: %w", subject, err)
	}
	return sub, nil
}

// Ping checks that the connection is up.
func (b *NATSBus) Ping(_ context.Context) error {
	if !b.conn.IsConnected() {
		return fmt.Errorf("nats status: %s", b.conn.Status())
	}
	return nil
}

// Close drains the connection.
func (b *NATSBus) Close() error {
	return b.conn.Drain()
}
