package event

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Asdisarson/ss/internal/service"
	pkgkafka "github.com/Asdisarson/ss/pkg/kafka"
)

// EventRefreshRequested asks the service to resync the catalog.
const EventRefreshRequested = "catalog.refresh_requested"

// TopicRefreshRequested is consumed by every search instance's group.
var TopicRefreshRequested = pkgkafka.Topic("refresh", "requested")

// RefreshRequestedData is the optional payload of a refresh request.
type RefreshRequestedData struct {
	RequestedBy string `json:"requested_by,omitempty"`
}

// Refresher runs a catalog sync.
type Refresher interface {
	Refresh(ctx context.Context) (time.Time, error)
}

// Consumer turns refresh requests into catalog syncs.
type Consumer struct {
	refresher Refresher
	logger    *slog.Logger
}

// NewConsumer creates a new refresh request consumer.
func NewConsumer(refresher Refresher, logger *slog.Logger) *Consumer {
	return &Consumer{
		refresher: refresher,
		logger:    logger,
	}
}

// HandleRefreshRequested runs a sync for a catalog.refresh_requested event.
// Other event types are ignored. A request that arrives while a sync is
// already running is dropped since that sync produces a fresh snapshot.
func (c *Consumer) HandleRefreshRequested(ctx context.Context, event *pkgkafka.Event) error {
	if event.EventType != EventRefreshRequested {
		c.logger.DebugContext(ctx, "ignoring event", slog.String("event_type", event.EventType))
		return nil
	}

	var data RefreshRequestedData
	if err := event.UnmarshalData(&data); err != nil {
		return fmt.Errorf("unmarshal catalog.refresh_requested data: %w", err)
	}

	c.logger.InfoContext(ctx, "processing catalog.refresh_requested event",
		slog.String("event_id", event.EventID),
		slog.String("requested_by", data.RequestedBy),
	)

	syncedAt, err := c.refresher.Refresh(ctx)
	if errors.Is(err, service.ErrSyncInProgress) {
		c.logger.InfoContext(ctx, "catalog sync already running, request dropped",
			slog.String("event_id", event.EventID),
		)
		return nil
	}
	if err != nil {
		return fmt.Errorf("refresh catalog for event %s: %w", event.EventID, err)
	}

	c.logger.InfoContext(ctx, "catalog refreshed from event",
		slog.String("event_id", event.EventID),
		slog.Time("synced_at", syncedAt),
	)
	return nil
}
