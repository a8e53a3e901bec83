package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/utafrali/servicehub/internal/domain"
	pkgkafka "github.com/utafrali/servicehub/pkg/kafka"
	"github.com/utafrali/servicehub/pkg/logger"
)

// Kafka topics for servicehub domain events.
var (
	TopicAddressCreated    = pkgkafka.Topic("address", "created")
	TopicAddressUpdated    = pkgkafka.Topic("address", "updated")
	TopicAddressDeleted    = pkgkafka.Topic("address", "deleted")
	TopicAccountRegistered = pkgkafka.Topic("account", "registered")
)

// Aggregate types.
const (
	AggregateTypeAddress = "address"
	AggregateTypeAccount = "account"
)

// SourceServiceHub identifies events originating from this service.
const SourceServiceHub = "servicehub"

// AddressData is the payload for address.created and address.updated.
type AddressData struct {
	ID        int64  `json:"id"`
	OwnerID   int64  `json:"owner_id"`
	OwnerKind string `json:"owner_kind"`
	Kind      string `json:"kind"`
	City      string `json:"city"`
	IsDefault bool   `json:"is_default"`
}

// AddressDeletedData is the payload for address.deleted. PromotedID is the
// address that became default as a consequence, if any.
type AddressDeletedData struct {
	ID         int64  `json:"id"`
	OwnerID    int64  `json:"owner_id"`
	OwnerKind  string `json:"owner_kind"`
	PromotedID int64  `json:"promoted_id,omitempty"`
}

// AccountRegisteredData is the payload for account.registered.
type AccountRegisteredData struct {
	ID    int64  `json:"id"`
	Kind  string `json:"kind"`
	Email string `json:"email"`
}

// Publisher is the part of pkg/kafka.Producer the event producer needs.
type Publisher interface {
	Publish(ctx context.Context, topic string, event *pkgkafka.Event) error
}

// Producer publishes servicehub domain events to Kafka.
type Producer struct {
	kafka  Publisher
	logger *slog.Logger
}

// NewProducer creates a new event producer.
func NewProducer(kafka Publisher, logger *slog.Logger) *Producer {
	return &Producer{
		kafka:  kafka,
		logger: logger,
	}
}

// PublishAddressCreated publishes an address.created event.
func (p *Producer) PublishAddressCreated(ctx context.Context, a *domain.Address) error {
	return p.publish(ctx, TopicAddressCreated, AggregateTypeAddress, a.Owner(), addressData(a))
}

// PublishAddressUpdated publishes an address.updated event.
func (p *Producer) PublishAddressUpdated(ctx context.Context, a *domain.Address) error {
	return p.publish(ctx, TopicAddressUpdated, AggregateTypeAddress, a.Owner(), addressData(a))
}

// PublishAddressDeleted publishes an address.deleted event.
func (p *Producer) PublishAddressDeleted(ctx context.Context, owner domain.Owner, id, promotedID int64) error {
	data := AddressDeletedData{
		ID:         id,
		OwnerID:    owner.ID,
		OwnerKind:  string(owner.Kind),
		PromotedID: promotedID,
	}
	return p.publish(ctx, TopicAddressDeleted, AggregateTypeAddress, owner, data)
}

// PublishAccountRegistered publishes an account.registered event.
func (p *Producer) PublishAccountRegistered(ctx context.Context, owner domain.Owner, email string) error {
	data := AccountRegisteredData{
		ID:    owner.ID,
		Kind:  string(owner.Kind),
		Email: email,
	}
	return p.publish(ctx, TopicAccountRegistered, AggregateTypeAccount, owner, data)
}

// publish sends data on topic keyed by owner, so one owner's events stay
// ordered on a partition.
func (p *Producer) publish(ctx context.Context, topic, aggregateType string, owner domain.Owner, data any) error {
	aggregateID := owner.String()
	event, err := pkgkafka.NewEvent(topic, aggregateID, aggregateType, SourceServiceHub, data)
	if err != nil {
		return fmt.Errorf("create %s event: %w", topic, err)
	}
	event.WithMetadata("account_kind", string(owner.Kind))
	if id := logger.CorrelationIDFromContext(ctx); id != "" {
		event.WithCorrelationID(id)
	}

	if err := p.kafka.Publish(ctx, topic, event); err != nil {
		return fmt.Errorf("publish %s event: %w", topic, err)
	}

	p.logger.DebugContext(ctx, "published event",
		slog.String("topic", topic),
		slog.String("aggregate_id", aggregateID),
		slog.String("event_id", event.EventID),
	)

	return nil
}

func addressData(a *domain.Address) AddressData {
	return AddressData{
		ID:        a.ID,
		OwnerID:   a.OwnerID,
		OwnerKind: string(a.OwnerKind),
		Kind:      a.Kind,
		City:      a.City,
		IsDefault: a.IsDefault,
	}
}

// Nop discards every event. It is wired when Kafka is disabled.
type Nop struct{}

func (Nop) PublishAddressCreated(context.Context, *domain.Address) error            { return nil }
func (Nop) PublishAddressUpdated(context.Context, *domain.Address) error            { return nil }
func (Nop) PublishAddressDeleted(context.Context, domain.Owner, int64, int64) error { return nil }
func (Nop) PublishAccountRegistered(context.Context, domain.Owner, string) error    { return nil }
