package ratings

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	pkgkafka "github.com/tieenbuii/WEB-API/pkg/kafka"
	"github.com/tieenbuii/WEB-API/pkg/logger"
)

// EventReviewChanged is the event type of a review write.
const EventReviewChanged = "review.changed"

// Topic carries review change notifications.
var Topic = pkgkafka.Topic("review", "changed")

var dispatchFailures = promauto.NewCounter(
	prometheus.CounterOpts{
		Name: "ratings_dispatch_failures_total",
		Help: "Review change notifications that could not be published.",
	},
)

// ReviewChanged is the payload of a review.changed event.
type ReviewChanged struct {
	ProductID string `json:"product_id"`
}

// EventPublisher is satisfied by *pkgkafka.Producer.
type EventPublisher interface {
	Publish(ctx context.Context, topic string, event *pkgkafka.Event) error
}

// KafkaDispatcher hands recomputation to the ratings consumer. Publishing
// failures are logged and counted; the review write has already committed.
type KafkaDispatcher struct {
	publisher EventPublisher
	source    string
	logger    *slog.Logger
}

// NewKafkaDispatcher creates a dispatcher publishing as source.
func NewKafkaDispatcher(publisher EventPublisher, source string, logger *slog.Logger) *KafkaDispatcher {
	return &KafkaDispatcher{publisher: publisher, source: source, logger: logger}
}

func (d *KafkaDispatcher) Dispatch(ctx context.Context, productID string) error {
	event, err := pkgkafka.NewEvent(EventReviewChanged, "product", productID, d.source, ReviewChanged{ProductID: productID})
	if err != nil {
		return err
	}
	event.CorrelationID = logger.CorrelationIDFromContext(ctx)
	event.ActorID, _ = logger.CallerFromContext(ctx)

	if err := d.publisher.Publish(ctx, Topic, event); err != nil {
		dispatchFailures.Inc()
		d.logger.ErrorContext(ctx, "failed to publish review change",
			slog.String("product_id", productID),
			slog.String("error", err.Error()),
		)
	}
	return nil
}

// Handle is the consumer handler for review.changed events.
func (r *Recomputer) Handle(ctx context.Context, event *pkgkafka.Event) error {
	var data ReviewChanged
	if err := event.UnmarshalData(&data); err != nil || data.ProductID == "" {
		data.ProductID = event.DocumentID
	}
	if data.ProductID == "" {
		return fmt.Errorf("event %s names no product", event.EventID)
	}
	_, err := r.Recompute(ctx, data.ProductID)
	return err
}

// NewConsumer builds the review.changed consumer. Redelivered events are
// skipped through idem; messages that keep failing go to dlq when set.
func NewConsumer(cfg pkgkafka.ConsumerConfig, r *Recomputer, idem pkgkafka.IdempotencyStore, dlq pkgkafka.DeadLetterPublisher, logger *slog.Logger) *pkgkafka.Consumer {
	if cfg.Topic == "" {
		cfg.Topic = Topic
	}
	return newConsumer(nil, cfg, r, idem, dlq, logger)
}

func newConsumer(reader pkgkafka.MessageReader, cfg pkgkafka.ConsumerConfig, r *Recomputer, idem pkgkafka.IdempotencyStore, dlq pkgkafka.DeadLetterPublisher, logger *slog.Logger) *pkgkafka.Consumer {
	handler := r.Handle
	if idem != nil {
		handler = pkgkafka.IdempotentHandler(idem, r.Handle, logger)
	}
	var c *pkgkafka.Consumer
	if reader != nil {
		c = pkgkafka.NewConsumerWithReader(reader, cfg, handler, logger)
	} else {
		c = pkgkafka.NewConsumer(cfg, handler, logger)
	}
	if dlq != nil {
		c.WithDLQ(dlq)
	}
	return c
}
