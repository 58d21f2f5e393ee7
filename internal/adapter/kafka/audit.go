// Package kafka publishes the disaster audit stream.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/disaster-response-api/internal/config"
	"github.com/couchcryptid/disaster-response-api/internal/domain"
	"github.com/couchcryptid/disaster-response-api/internal/observability"
)

// AuditEvent is one mutation of a disaster record, published for downstream
// consumers (compliance, analytics).
type AuditEvent struct {
	Action     string    `json:"action"` // create, update, delete, post
	DisasterID string    `json:"disaster_id"`
	UserID     string    `json:"user_id"`
	Detail     string    `json:"detail,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// AuditWriter produces audit events to the configured topic. Publishing is
// best-effort: a broker outage must never fail the API request that caused
// the event.
type AuditWriter struct {
	writer  *kafkago.Writer
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewAuditWriter creates a producer for the audit topic.
func NewAuditWriter(cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) *AuditWriter {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.AuditTopic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &AuditWriter{writer: w, logger: logger, metrics: metrics}
}

// Publish serializes and sends one audit event. Errors are logged and
// swallowed.
func (w *AuditWriter) Publish(ctx context.Context, event AuditEvent) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = domain.Now()
	}

	msg, err := serializeToMessage(event)
	if err != nil {
		w.logger.Error("audit event serialization failed", "action", event.Action, "error", err)
		w.metrics.AuditEvents.WithLabelValues(event.Action, "failed").Inc()
		return
	}

	if err := w.writer.WriteMessages(ctx, msg); err != nil {
		w.logger.Error("audit event publish failed", "action", event.Action, "disaster_id", event.DisasterID, "error", err)
		w.metrics.AuditEvents.WithLabelValues(event.Action, "failed").Inc()
		return
	}

	w.metrics.AuditEvents.WithLabelValues(event.Action, "published").Inc()
}

func (w *AuditWriter) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals an AuditEvent into a Kafka message keyed by
// disaster so per-disaster ordering holds within a partition.
func serializeToMessage(event AuditEvent) (kafkago.Message, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize audit event: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(event.DisasterID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "action", Value: []byte(event.Action)},
			{Key: "occurred_at", Value: []byte(event.OccurredAt.Format(time.RFC3339))},
		},
	}, nil
}
