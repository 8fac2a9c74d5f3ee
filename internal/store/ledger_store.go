package store

import (
	"context"

	"boostmarket/internal/models"
)

// LedgerStore keeps the append-only transaction history per user.
type LedgerStore struct {
	kv KV
}

func NewLedgerStore(kv KV) *LedgerStore {
	return &LedgerStore{kv: kv}
}

func (s *LedgerStore) Append(ctx context.Context, userID string, entries ...models.Transaction) error {
	if len(entries) == 0 {
		return nil
	}
	existing, err := s.ListByUser(ctx, userID)
	if err != nil {
		return err
	}
	return setJSON(ctx, s.kv, transactionsKey(userID), append(existing, entries...))
}

func (s *LedgerStore) ListByUser(ctx context.Context, userID string) ([]models.Transaction, error) {
	var entries []models.Transaction
	if _, err := getJSON(ctx, s.kv, transactionsKey(userID), &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// SumByWallet returns the signed sum of entries per wallet id and sub-balance.
func (s *LedgerStore) SumByWallet(ctx context.Context, userID string) (map[string]int64, error) {
	entries, err := s.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	sums := make(map[string]int64)
	for _, entry := range entries {
		sums[LedgerBucket(entry.WalletID, entry.SubBalance)] += entry.Amount
	}
	return sums, nil
}

// LedgerBucket names the balance bucket an entry counts against.
func LedgerBucket(walletID string, sub models.SubBalance) string {
	if sub == "" {
		return walletID
	}
	return walletID + "/" + string(sub)
}
