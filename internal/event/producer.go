package event

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	pkgkafka "github.com/Asdisarson/ss/pkg/kafka"
	"github.com/Asdisarson/ss/pkg/logger"
)

// Event types and topics written by the search service.
const (
	EventCatalogSynced = "catalog.synced"
	SourceSearch       = "catalog-search"
)

// TopicCatalogSynced carries one event per completed catalog sync.
var TopicCatalogSynced = pkgkafka.Topic("sync", "completed")

// CatalogSyncedData is the payload of a catalog.synced event.
type CatalogSyncedData struct {
	SyncedAt time.Time `json:"synced_at"`
	Products int       `json:"products"`
}

// Publisher sends an event to a topic. *pkgkafka.Producer implements it.
type Publisher interface {
	Publish(ctx context.Context, topic string, event *pkgkafka.Event) error
}

// Producer publishes catalog lifecycle events.
type Producer struct {
	publisher Publisher
	logger    *slog.Logger
}

// NewProducer creates a new catalog event producer.
func NewProducer(publisher Publisher, logger *slog.Logger) *Producer {
	return &Producer{
		publisher: publisher,
		logger:    logger,
	}
}

// CatalogSynced publishes a catalog.synced event.
func (p *Producer) CatalogSynced(ctx context.Context, syncedAt time.Time, products int) error {
	data := CatalogSyncedData{SyncedAt: syncedAt.UTC(), Products: products}

	event, err := pkgkafka.NewEvent(EventCatalogSynced, "catalog", SourceSearch, data)
	if err != nil {
		return fmt.Errorf("create catalog.synced event: %w", err)
	}

	if id := logger.CorrelationIDFromContext(ctx); id != "" {
		event.WithCorrelationID(id)
	}

	if err := p.publisher.Publish(ctx, TopicCatalogSynced, event); err != nil {
		return fmt.Errorf("publish catalog.synced event: %w", err)
	}

	p.logger.DebugContext(ctx, "published catalog.synced event",
		slog.Time("synced_at", data.SyncedAt),
		slog.Int("products", products),
	)
	return nil
}
