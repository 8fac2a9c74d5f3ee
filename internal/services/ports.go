package services

import (
	"context"
	"time"

	"boostmarket/internal/events"
	"boostmarket/internal/models"
	"boostmarket/internal/websocket"

	"go.uber.org/zap"
)

type WalletStore interface {
	Get(ctx context.Context, userID string) (models.MultiWallet, bool, error)
	Save(ctx context.Context, wallet models.MultiWallet) error
}

type LedgerStore interface {
	Append(ctx context.Context, userID string, entries ...models.Transaction) error
	ListByUser(ctx context.Context, userID string) ([]models.Transaction, error)
	SumByWallet(ctx context.Context, userID string) (map[string]int64, error)
}

type OrderStore interface {
	List(ctx context.Context) ([]models.Order, error)
	GetByID(ctx context.Context, orderID string) (models.Order, error)
	Save(ctx context.Context, order models.Order) error
}

type CatalogStore interface {
	List(ctx context.Context) ([]models.ServiceListing, error)
	GetByID(ctx context.Context, serviceID string) (models.ServiceListing, error)
	Save(ctx context.Context, listing models.ServiceListing) error
	SaveAll(ctx context.Context, listings []models.ServiceListing) error
}

type ExchangeStore interface {
	All(ctx context.Context) (map[string]models.ExchangeRate, error)
	GetActive(ctx context.Context, from, to models.Currency) (models.ExchangeRate, bool, error)
	SetRate(ctx context.Context, from, to models.Currency, rate, actorID string) (models.ExchangeRate, error)
}

type ExchangeQuoteStore interface {
	Create(ctx context.Context, quote models.ExchangeQuote) error
	GetByID(ctx context.Context, quoteID string) (models.ExchangeQuote, error)
	Consume(ctx context.Context, quoteID string, now time.Time) (bool, error)
}

type AuditStore interface {
	Log(ctx context.Context, actorID, action, entityType, entityID, data string) error
	List(ctx context.Context, limit, offset int) ([]models.AuditEntry, error)
}

// ListingLookup resolves the listing an order is placed against.
type ListingLookup interface {
	GetServiceListing(ctx context.Context, serviceID string) (models.ServiceListing, error)
}

type BalanceHub interface {
	BroadcastBalance(userID string, update websocket.BalanceUpdate)
}

type OrderHub interface {
	BroadcastOrder(userIDs []string, update websocket.OrderUpdate)
}

// publish is best effort: a broker outage never fails a committed operation.
func publish(ctx context.Context, publisher events.Publisher, logger *zap.Logger, event events.Event) {
	if publisher == nil {
		return
	}
	if err := publisher.Publish(ctx, event); err != nil {
		logger.Warn("event publish failed",
			zap.String("event_type", event.Type),
			zap.String("entity_id", event.EntityID),
			zap.Error(err),
		)
	}
}

func audit(ctx context.Context, store AuditStore, logger *zap.Logger, actorID, action, entityType, entityID, data string) {
	if store == nil {
		return
	}
	if err := store.Log(ctx, actorID, action, entityType, entityID, data); err != nil {
		logger.Warn("audit log write failed",
			zap.String("action", action),
			zap.String("entity_id", entityID),
			zap.Error(err),
		)
	}
}
