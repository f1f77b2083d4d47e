package notifyqueue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"alertstate/internal/config"

	"github.com/nats-io/nats.go"
)

const notifyStreamMaxAge = 24 * time.Hour

// NATSProducer publishes notification jobs into JetStream stream.
// Params: NATS connection and publish subject settings.
// Returns: queue producer implementation.
type NATSProducer struct {
	nc      *nats.Conn
	js      nats.JetStreamContext
	subject string
}

// NewNATSProducer creates JetStream producer for notification queue.
// Params: queue config from notify section.
// Returns: initialized producer or setup error.
func NewNATSProducer(cfg config.NotifyQueue) (*NATSProducer, error) {
	nc, err := nats.Connect(strings.Join(cfg.URL, ","))
	if err != nil {
		return nil, fmt.Errorf("connect notify queue nats: %w", err)
	}
	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream init for notify queue: %w", err)
	}
	if err := ensureStream(js, cfg); err != nil {
		nc.Close()
		return nil, err
	}
	return &NATSProducer{nc: nc, js: js, subject: cfg.Subject}, nil
}

// Enqueue publishes one notification job into queue stream.
// Params: context and queue job payload.
// Returns: publish error.
func (p *NATSProducer) Enqueue(ctx context.Context, job Job) error {
	body, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal notify queue job: %w", err)
	}
	msg := nats.NewMsg(p.subject)
	msg.Data = body
	if id := strings.TrimSpace(job.ID); id != "" {
		// JetStream drops repeated ids inside the duplicate window.
		msg.Header.Set(nats.MsgIdHdr, id)
	}
	if _, err := p.js.PublishMsg(msg, nats.Context(ctx)); err != nil {
		return fmt.Errorf("publish notify queue job: %w", err)
	}
	return nil
}

// Close closes producer NATS connection.
func (p *NATSProducer) Close() error {
	if p == nil || p.nc == nil {
		return nil
	}
	p.nc.Close()
	return nil
}

// ensureStream ensures the notify stream exists.
// Params: JetStream context and queue settings.
// Returns: stream lookup/create error.
func ensureStream(js nats.JetStreamContext, cfg config.NotifyQueue) error {
	_, err := js.StreamInfo(cfg.Stream)
	if err == nil {
		return nil
	}
	if !errors.Is(err, nats.ErrStreamNotFound) {
		return fmt.Errorf("stream info %q: %w", cfg.Stream, err)
	}
	if !cfg.AllowCreateStream {
		return fmt.Errorf("notify stream %q does not exist", cfg.Stream)
	}

	_, err = js.AddStream(&nats.StreamConfig{
		Name:       cfg.Stream,
		Subjects:   []string{cfg.Subject},
		Retention:  nats.WorkQueuePolicy,
		Storage:    nats.FileStorage,
		MaxAge:     notifyStreamMaxAge,
		Duplicates: time.Duration(cfg.DuplicateWindowS) * time.Second,
	})
	if err != nil {
		return fmt.Errorf("create stream %q: %w", cfg.Stream, err)
	}
	return nil
}
