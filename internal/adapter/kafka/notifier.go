package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/cloudburst-mgmt/summary-refresh-service/internal/config"
	"github.com/cloudburst-mgmt/summary-refresh-service/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

// Notifier publishes refresh-completed events to a Kafka topic.
// It implements refresh.Notifier.
type Notifier struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewNotifier creates a Kafka producer for the configured event topic.
func NewNotifier(cfg *config.Config, logger *slog.Logger) *Notifier {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaTopic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Notifier{writer: w, logger: logger}
}

// refreshedEvent is the published payload. Row-level data stays in the
// table; consumers re-read it on receipt.
type refreshedEvent struct {
	Source             string    `json:"source"`
	Rows               int       `json:"rows"`
	AsOf               string    `json:"as_of"`
	RefreshedAt        time.Time `json:"refreshed_at"`
	UnmatchedResources int       `json:"unmatched_resources"`
	UnmatchedAlerts    int       `json:"unmatched_alerts"`
}

// NotifyRefreshed publishes one event describing a completed refresh.
func (n *Notifier) NotifyRefreshed(ctx context.Context, sum domain.Summary, source string) error {
	msg, err := serializeToMessage(sum, source)
	if err != nil {
		return err
	}
	if err := n.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish refresh event: %w", err)
	}
	n.logger.Debug("refresh event published", "source", source, "rows", len(sum.Rows))
	return nil
}

func (n *Notifier) Close() error {
	return n.writer.Close()
}

// serializeToMessage marshals a completed summary into a Kafka message
// keyed by source, so per-source events stay ordered within a partition.
func serializeToMessage(sum domain.Summary, source string) (kafkago.Message, error) {
	event := refreshedEvent{
		Source:             source,
		Rows:               len(sum.Rows),
		AsOf:               sum.AsOf.Format(time.DateOnly),
		RefreshedAt:        sum.RefreshedAt,
		UnmatchedResources: sum.UnmatchedResources,
		UnmatchedAlerts:    sum.UnmatchedAlerts,
	}
	data, err := json.Marshal(event)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize refresh event: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(source),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "source", Value: []byte(source)},
			{Key: "refreshed_at", Value: []byte(sum.RefreshedAt.Format(time.RFC3339))},
		},
	}, nil
}
