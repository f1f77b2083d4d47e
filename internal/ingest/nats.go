package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"alertstate/internal/config"
	"alertstate/internal/domain"
	"alertstate/internal/metrics"

	"github.com/nats-io/nats.go"
)

const ingestStreamMaxAge = time.Hour

// NATSSubscriber consumes results via JetStream queue consumer and forwards to sink.
// Params: NATS connection, JetStream queue subscription, and result sink.
// Returns: NATS ingest lifecycle handle.
type NATSSubscriber struct {
	nc      *nats.Conn
	subs    []*nats.Subscription
	sink    ResultSink
	logger  *slog.Logger
	metrics *metrics.Metrics
	nack    time.Duration
}

// NewNATSSubscriber creates JetStream queue consumers for result ingestion.
// Params: ingest NATS config, sink, optional logger and metrics.
// Returns: started subscriber or initialization error.
func NewNATSSubscriber(cfg config.NATSIngestConfig, sink ResultSink, logger *slog.Logger, m *metrics.Metrics) (*NATSSubscriber, error) {
	nc, err := nats.Connect(strings.Join(cfg.URL, ","))
	if err != nil {
		return nil, fmt.Errorf("connect nats ingest: %w", err)
	}
	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream init for ingest: %w", err)
	}
	if err := ensureIngestStream(js, cfg.Stream, cfg.Subject); err != nil {
		nc.Close()
		return nil, err
	}

	subscriber := &NATSSubscriber{
		nc:      nc,
		sink:    sink,
		logger:  logger,
		metrics: m,
		nack:    time.Duration(cfg.NackDelayMS) * time.Millisecond,
	}
	subOpts := []nats.SubOpt{
		nats.BindStream(cfg.Stream),
		nats.Durable(cfg.ConsumerName),
		nats.ManualAck(),
		nats.AckExplicit(),
		nats.AckWait(time.Duration(cfg.AckWaitSec) * time.Second),
		nats.MaxDeliver(cfg.MaxDeliver),
		nats.MaxAckPending(cfg.MaxAckPending),
		nats.DeliverAll(),
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}
	for i := 0; i < workers; i++ {
		sub, err := js.QueueSubscribe(cfg.Subject, cfg.DeliverGroup, subscriber.handle, subOpts...)
		if err != nil {
			_ = subscriber.Close()
			return nil, fmt.Errorf("queue subscribe %q/%q: %w", cfg.Subject, cfg.DeliverGroup, err)
		}
		subscriber.subs = append(subscriber.subs, sub)
	}
	return subscriber, nil
}

// handle decodes one message and forwards it to the sink.
// Invalid payloads and unknown rules are acked; sink failures are redelivered.
func (s *NATSSubscriber) handle(message *nats.Msg) {
	submissions, err := DecodePayload(message.Data)
	if err != nil {
		s.warn("nats ingest decode failed", "subject", message.Subject, "error", err.Error())
		s.ackMessage(message, "decode")
		return
	}
	if s.metrics != nil {
		s.metrics.IngestBatchSize.Observe(float64(len(submissions)))
	}

	ctx := context.Background()
	if len(submissions) == 1 {
		err = s.sink.Push(ctx, submissions[0])
	} else {
		err = s.sink.PushBatch(ctx, submissions)
	}
	switch {
	case err == nil:
		s.ackMessage(message, "processed")
	case errors.Is(err, domain.ErrUnknownRule):
		s.warn("nats ingest dropped result", "subject", message.Subject, "error", err.Error())
		s.ackMessage(message, "unknown_rule")
	default:
		if s.logger != nil {
			s.logger.Error("nats ingest push failed", "subject", message.Subject, "error", err.Error())
		}
		s.nackMessage(message)
	}
}

// ackMessage acknowledges processed/invalid message and logs ack failures.
func (s *NATSSubscriber) ackMessage(message *nats.Msg, reason string) {
	if s.metrics != nil {
		s.metrics.IngestRequestsTotal.WithLabelValues("nats", reason).Inc()
	}
	if err := message.Ack(); err != nil {
		s.warn("nats ingest ack failed", "subject", message.Subject, "reason", reason, "error", err.Error())
	}
}

// nackMessage asks JetStream to redeliver message and logs nack failures.
func (s *NATSSubscriber) nackMessage(message *nats.Msg) {
	if s.metrics != nil {
		s.metrics.IngestRequestsTotal.WithLabelValues("nats", "retry").Inc()
	}
	var err error
	if s.nack > 0 {
		err = message.NakWithDelay(s.nack)
	} else {
		err = message.Nak()
	}
	if err != nil {
		s.warn("nats ingest nack failed", "subject", message.Subject, "error", err.Error())
	}
}

func (s *NATSSubscriber) warn(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Warn(msg, args...)
	}
}

// Close drains subscriptions and closes connection.
// Params: none.
// Returns: first drain error.
func (s *NATSSubscriber) Close() error {
	var firstErr error
	for _, sub := range s.subs {
		if err := sub.Drain(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	s.nc.Close()
	return firstErr
}

// ensureIngestStream creates the result stream when missing.
// Params: JetStream context, stream name and subject.
// Returns: stream lookup/create error.
func ensureIngestStream(js nats.JetStreamContext, stream, subject string) error {
	_, err := js.StreamInfo(stream)
	if err == nil {
		return nil
	}
	if !errors.Is(err, nats.ErrStreamNotFound) {
		return fmt.Errorf("stream info %q: %w", stream, err)
	}
	_, err = js.AddStream(&nats.StreamConfig{
		Name:      stream,
		Subjects:  []string{subject},
		Retention: nats.WorkQueuePolicy,
		Storage:   nats.FileStorage,
		MaxAge:    ingestStreamMaxAge,
	})
	if err != nil {
		return fmt.Errorf("create stream %q: %w", stream, err)
	}
	return nil
}
