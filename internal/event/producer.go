// Package event publishes entity domain events to Kafka.
package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tieenbuii/WEB-API/internal/domain"
	pkgkafka "github.com/tieenbuii/WEB-API/pkg/kafka"
	"github.com/tieenbuii/WEB-API/pkg/logger"
)

// Source identifies events emitted by this service.
const Source = "web-api"

// Writer is satisfied by *pkgkafka.Producer.
type Writer interface {
	Publish(ctx context.Context, topic string, event *pkgkafka.Event) error
}

// Producer publishes "ecommerce.<entity>.<action>" events.
type Producer struct {
	writer Writer
	logger *slog.Logger
}

// NewProducer creates a new entity event producer.
func NewProducer(writer Writer, logger *slog.Logger) *Producer {
	return &Producer{writer: writer, logger: logger}
}

// TopicFor returns the topic of an entity action.
func TopicFor(e domain.Entity, action string) string {
	return pkgkafka.Topic(string(e), action)
}

// Publish sends doc as the payload of an entity event. Users never carry
// their password hash in events.
func (p *Producer) Publish(ctx context.Context, e domain.Entity, action string, doc domain.Document) error {
	if e == domain.User {
		doc = doc.Without("password")
	}
	ev, err := pkgkafka.NewEvent(string(e)+"."+action, string(e), doc.ID(), Source, doc)
	if err != nil {
		return fmt.Errorf("build %s.%s event: %w", e, action, err)
	}
	ev.CorrelationID = logger.CorrelationIDFromContext(ctx)
	ev.ActorID, _ = logger.CallerFromContext(ctx)

	topic := TopicFor(e, action)
	if err := p.writer.Publish(ctx, topic, ev); err != nil {
		return err
	}
	p.logger.DebugContext(ctx, "entity event published",
		slog.String("topic", topic),
		slog.String("document_id", ev.DocumentID),
	)
	return nil
}

// Noop discards events. It is used when no brokers are configured.
type Noop struct{}

func (Noop) Publish(context.Context, domain.Entity, string, domain.Document) error { return nil }
