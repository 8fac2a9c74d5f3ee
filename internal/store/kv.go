package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// KV is the persistence port. Values are JSON documents addressed by key.
type KV interface {
	Get(ctx context.Context, key string) (json.RawMessage, bool, error)
	Set(ctx context.Context, key string, value json.RawMessage) error
	Remove(ctx context.Context, key string) error
}

const (
	ordersKey        = "orders"
	servicesKey      = "services"
	exchangeRatesKey = "exchange_rates"
	auditLogKey      = "audit_log"
)

func walletKey(userID string) string {
	return "wallet:" + userID
}

func transactionsKey(userID string) string {
	return "transactions:" + userID
}

func quoteKey(quoteID string) string {
	return "quote:" + quoteID
}

func getJSON(ctx context.Context, kv KV, key string, dest any) (bool, error) {
	raw, ok, err := kv.Get(ctx, key)
	if err != nil {
		return false, fmt.Errorf("get %s: %w", key, err)
	}
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

func setJSON(ctx context.Context, kv KV, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := kv.Set(ctx, key, raw); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

func nowUTC() time.Time {
	return time.Now().UTC()
}
