package store

import (
	"context"
	"errors"
	"time"

	"boostmarket/internal/models"
)

var ErrQuoteNotFound = errors.New("quote not found")

type ExchangeQuoteStore struct {
	kv KV
}

func NewExchangeQuoteStore(kv KV) *ExchangeQuoteStore {
	return &ExchangeQuoteStore{kv: kv}
}

func (s *ExchangeQuoteStore) Create(ctx context.Context, quote models.ExchangeQuote) error {
	return setJSON(ctx, s.kv, quoteKey(quote.ID), quote)
}

func (s *ExchangeQuoteStore) GetByID(ctx context.Context, quoteID string) (models.ExchangeQuote, error) {
	var quote models.ExchangeQuote
	ok, err := getJSON(ctx, s.kv, quoteKey(quoteID), &quote)
	if err != nil {
		return models.ExchangeQuote{}, err
	}
	if !ok {
		return models.ExchangeQuote{}, ErrQuoteNotFound
	}
	return quote, nil
}

// Consume marks the quote used. It reports false when the quote was already consumed or expired.
func (s *ExchangeQuoteStore) Consume(ctx context.Context, quoteID string, now time.Time) (bool, error) {
	quote, err := s.GetByID(ctx, quoteID)
	if err != nil {
		return false, err
	}
	if quote.ConsumedAt != nil || !now.Before(quote.ExpiresAt) {
		return false, nil
	}
	quote.ConsumedAt = &now
	if err := setJSON(ctx, s.kv, quoteKey(quoteID), quote); err != nil {
		return false, err
	}
	return true, nil
}
