package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/3Health-View/backend/internal/domain"
	pkgkafka "github.com/3Health-View/backend/pkg/kafka"
	"github.com/3Health-View/backend/pkg/logger"
)

// Event types published by the backend.
const (
	TypeUserRegistered  = "user.registered"
	TypeDisplaySynced   = "display.synced"
	TypeUserDataRemoved = "user.data_removed"
)

// SourceBackend identifies events originating from this service.
const SourceBackend = "threehv-backend"

// UserRegisteredData is the payload for a user.registered event.
type UserRegisteredData struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// DisplaySyncedData is the payload for a display.synced event.
type DisplaySyncedData struct {
	Email     string `json:"email"`
	Trigger   string `json:"trigger"`
	Records   int    `json:"records"`
	LatestDay string `json:"latest_day,omitempty"`
}

// UserDataRemovedData is the payload for a user.data_removed event.
type UserDataRemovedData struct {
	Email   string           `json:"email"`
	Deleted map[string]int64 `json:"deleted"`
}

// Publisher sends an event envelope to a topic. *pkgkafka.Producer satisfies it.
type Publisher interface {
	Publish(ctx context.Context, topic string, event *pkgkafka.Event) error
}

// Producer publishes backend domain events. With a nil Publisher every
// event is dropped, which is how Kafka is switched off.
type Producer struct {
	pub    Publisher
	topic  string
	logger *slog.Logger
}

// NewProducer creates an event producer writing to topic.
func NewProducer(pub Publisher, topic string, logger *slog.Logger) *Producer {
	return &Producer{
		pub:    pub,
		topic:  topic,
		logger: logger,
	}
}

// PublishUserRegistered publishes a user.registered event.
func (p *Producer) PublishUserRegistered(ctx context.Context, user *domain.User) error {
	data := UserRegisteredData{
		ID:        user.ID,
		Email:     user.Email,
		FirstName: user.FirstName,
		LastName:  user.LastName,
	}
	return p.publish(ctx, TypeUserRegistered, user.Email, data)
}

// PublishDisplaySynced publishes a display.synced event after display rows
// were persisted. trigger names the endpoint that ran the sync.
func (p *Producer) PublishDisplaySynced(ctx context.Context, email, trigger string, records []domain.DisplayRecord) error {
	data := DisplaySyncedData{Email: email, Trigger: trigger, Records: len(records)}
	for _, r := range records {
		if r.Day > data.LatestDay {
			data.LatestDay = r.Day
		}
	}
	return p.publish(ctx, TypeDisplaySynced, email, data)
}

// PublishUserDataRemoved publishes a user.data_removed event with the number
// of rows deleted per collection.
func (p *Producer) PublishUserDataRemoved(ctx context.Context, email string, deleted map[domain.Collection]int64) error {
	data := UserDataRemovedData{Email: email, Deleted: make(map[string]int64, len(deleted))}
	for c, n := range deleted {
		data.Deleted[string(c)] = n
	}
	return p.publish(ctx, TypeUserDataRemoved, email, data)
}

func (p *Producer) publish(ctx context.Context, eventType, aggregateID string, data any) error {
	if p.pub == nil {
		return nil
	}

	event, err := pkgkafka.NewEvent(eventType, aggregateID, SourceBackend, data)
	if err != nil {
		return fmt.Errorf("create %s event: %w", eventType, err)
	}
	if id := logger.CorrelationIDFromContext(ctx); id != "" {
		event.WithCorrelationID(id)
	}

	if err := p.pub.Publish(ctx, p.topic, event); err != nil {
		return fmt.Errorf("publish %s event: %w", eventType, err)
	}

	p.logger.DebugContext(ctx, "published event",
		slog.String("event_type", eventType),
		slog.String("email", aggregateID),
	)

	return nil
}
