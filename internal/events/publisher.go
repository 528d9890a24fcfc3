// Package events publishes validation outcomes to Kafka for downstream
// consumers (dashboard, notification router). Publishing is advisory: the
// pipeline's persisted row is the source of truth and a broker outage must
// never fail a validation run.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	"docgate/internal/platform/config"
	"docgate/internal/validation/models"
)

// ValidatedEvent is the wire form of one decision event.
type ValidatedEvent struct {
	Event          string                `json:"event"`
	DocumentID     string                `json:"document_id"`
	DocumentType   string                `json:"document_type"`
	OverallStatus  models.OverallStatus  `json:"overall_status"`
	CanAutoApprove bool                  `json:"can_auto_approve"`
	ReviewPriority models.ReviewPriority `json:"review_priority"`
	IsDuplicate    bool                  `json:"is_duplicate"`
	OccurredAt     time.Time             `json:"occurred_at"`
}

const eventName = "document.validated"

// Publisher produces decision events to a single topic, keyed by document so
// reruns for the same document stay ordered within a partition.
type Publisher struct {
	client *kgo.Client
	topic  string
	logger *slog.Logger
}

// Option configures the Publisher.
type Option func(*Publisher)

// WithLogger sets a logger for produce diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) { p.logger = logger }
}

// New connects to the brokers and ensures the topic exists. An existing topic
// is fine; any other admin failure is fatal so a misconfigured cluster is
// caught at startup.
func New(ctx context.Context, cfg config.Kafka, opts ...Option) (*Publisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("events: no brokers configured")
	}

	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.DefaultProduceTopic(cfg.Topic),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		return nil, fmt.Errorf("events: connect kafka: %w", err)
	}

	if err := ensureTopic(ctx, client, cfg.Topic); err != nil {
		client.Close()
		return nil, err
	}

	p := &Publisher{
		client: client,
		topic:  cfg.Topic,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// PublishValidated produces one decision event synchronously.
func (p *Publisher) PublishValidated(ctx context.Context, v *models.DocumentValidation) error {
	payload, err := json.Marshal(ValidatedEvent{
		Event:          eventName,
		DocumentID:     v.DocumentID.String(),
		DocumentType:   v.DocumentType,
		OverallStatus:  v.OverallStatus,
		CanAutoApprove: v.CanAutoApprove,
		ReviewPriority: v.ReviewPriority,
		IsDuplicate:    v.IsDuplicate,
		OccurredAt:     v.UpdatedAt,
	})
	if err != nil {
		return fmt.Errorf("events: marshal event: %w", err)
	}

	record := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(v.DocumentID.String()),
		Value: payload,
	}
	if err := p.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("events: produce %s: %w", eventName, err)
	}

	p.logger.DebugContext(ctx, "event published",
		"topic", p.topic,
		"document_id", v.DocumentID,
		"overall_status", v.OverallStatus,
	)
	return nil
}

// Close flushes pending produces and releases the client.
func (p *Publisher) Close() {
	p.client.Close()
}

func ensureTopic(ctx context.Context, client *kgo.Client, topic string) error {
	admin := kadm.NewClient(client)
	resp, err := admin.CreateTopics(ctx, 1, 1, nil, topic)
	if err != nil {
		return fmt.Errorf("events: create topic %s: %w", topic, err)
	}
	for _, res := range resp {
		if res.Err != nil && !errors.Is(res.Err, kerr.TopicAlreadyExists) {
			return fmt.Errorf("events: create topic %s: %w", topic, res.Err)
		}
	}
	return nil
}
