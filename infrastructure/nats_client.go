package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/nats-io/nats.go"
	log "github.com/sirupsen/logrus"
)

var errNotConnected = errors.New("nats: not connected")

// NATSConfig describes the server and the stream casino events land in
type NATSConfig struct {
	Servers string
	Name    string
	Stream  string
	// MaxAge bounds how long events stay in the stream. Zero keeps a week.
	MaxAge time.Duration
}

// NATSClient is a JetStream publisher bound to one stream
type NATSClient struct {
	cfg NATSConfig
	nc  *nats.Conn
	js  nats.JetStreamContext
}

// NewNATSClient creates an unconnected client
func NewNATSClient(cfg NATSConfig) *NATSClient {
	if cfg.MaxAge == 0 {
		cfg.MaxAge = 7 * 24 * time.Hour
	}
	return &NATSClient{cfg: cfg}
}

// Connect dials the servers and opens a JetStream context. The server keeps
// reconnecting on its own after the first successful dial.
func (c *NATSClient) Connect(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	nc, err := nats.Connect(c.cfg.Servers,
		nats.Name(c.cfg.Name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.WithFields(log.Fields{
				"servers": c.cfg.Servers,
				"error":   err,
			}).Warn("NATS connection lost, events are buffered until it returns")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.WithField("server", nc.ConnectedUrl()).Info("NATS reconnected")
		}),
	)
	if err != nil {
		return fmt.Errorf("failed to connect to NATS at %s: %w", c.cfg.Servers, err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return fmt.Errorf("failed to open JetStream: %w", err)
	}
	c.nc, c.js = nc, js

	log.WithFields(log.Fields{
		"server": nc.ConnectedUrl(),
		"stream": c.cfg.Stream,
	}).Info("Connected to NATS")
	return nil
}

// EnsureStream creates the event stream, or widens an existing one so it
// captures every subject given
func (c *NATSClient) EnsureStream(subjects []string) error {
	if c.js == nil {
		return errNotConnected
	}

	info, err := c.js.StreamInfo(c.cfg.Stream)
	switch {
	case errors.Is(err, nats.ErrStreamNotFound):
		_, err = c.js.AddStream(&nats.StreamConfig{
			Name:        c.cfg.Stream,
			Description: "Casino ledger, table and round events",
			Subjects:    subjects,
			Retention:   nats.LimitsPolicy,
			Storage:     nats.FileStorage,
			MaxAge:      c.cfg.MaxAge,
		})
		if err != nil {
			return fmt.Errorf("failed to create stream %s: %w", c.cfg.Stream, err)
		}
		log.WithFields(log.Fields{
			"stream":   c.cfg.Stream,
			"subjects": subjects,
		}).Info("Created event stream")
		return nil
	case err != nil:
		return fmt.Errorf("failed to look up stream %s: %w", c.cfg.Stream, err)
	}

	missing := false
	streamCfg := info.Config
	for _, subject := range subjects {
		if !slices.Contains(streamCfg.Subjects, subject) {
			streamCfg.Subjects = append(streamCfg.Subjects, subject)
			missing = true
		}
	}
	if !missing {
		return nil
	}
	if _, err := c.js.UpdateStream(&streamCfg); err != nil {
		return fmt.Errorf("failed to add subjects to stream %s: %w", c.cfg.Stream, err)
	}
	log.WithFields(log.Fields{
		"stream":   c.cfg.Stream,
		"subjects": streamCfg.Subjects,
	}).Info("Updated event stream subjects")
	return nil
}

// Publish stores data on subject and waits for the stream to acknowledge it
func (c *NATSClient) Publish(ctx context.Context, subject string, data []byte) error {
	if c.js == nil {
		return errNotConnected
	}
	ack, err := c.js.Publish(subject, data, nats.Context(ctx))
	if err != nil {
		return fmt.Errorf("failed to publish to %s: %w", subject, err)
	}
	log.WithFields(log.Fields{
		"subject":  subject,
		"sequence": ack.Sequence,
	}).Debug("Event stored")
	return nil
}

// IsConnected reports whether the connection is currently up
func (c *NATSClient) IsConnected() bool {
	return c.nc != nil && c.nc.IsConnected()
}

// Close flushes pending publishes and closes the connection
func (c *NATSClient) Close() error {
	if c.nc == nil {
		return nil
	}
	if err := c.nc.Drain(); err != nil {
		c.nc.Close()
		return fmt.Errorf("failed to drain NATS connection: %w", err)
	}
	return nil
}
