package store

import (
	"context"
	"time"

	"boostmarket/internal/models"
)

// ExchangeStore persists operator overrides of the configured exchange rates.
type ExchangeStore struct {
	kv KV
}

func NewExchangeStore(kv KV) *ExchangeStore {
	return &ExchangeStore{kv: kv}
}

func rateKey(from, to models.Currency) string {
	return string(from) + ":" + string(to)
}

func (s *ExchangeStore) All(ctx context.Context) (map[string]models.ExchangeRate, error) {
	rates := map[string]models.ExchangeRate{}
	if _, err := getJSON(ctx, s.kv, exchangeRatesKey, &rates); err != nil {
		return nil, err
	}
	return rates, nil
}

func (s *ExchangeStore) GetActive(ctx context.Context, from, to models.Currency) (models.ExchangeRate, bool, error) {
	rates, err := s.All(ctx)
	if err != nil {
		return models.ExchangeRate{}, false, err
	}
	rate, ok := rates[rateKey(from, to)]
	return rate, ok, nil
}

func (s *ExchangeStore) SetRate(ctx context.Context, from, to models.Currency, rate, actorID string) (models.ExchangeRate, error) {
	rates, err := s.All(ctx)
	if err != nil {
		return models.ExchangeRate{}, err
	}
	entry := models.ExchangeRate{
		From:      from,
		To:        to,
		Rate:      rate,
		SetBy:     actorID,
		UpdatedAt: time.Now().UTC(),
	}
	rates[rateKey(from, to)] = entry
	if err := setJSON(ctx, s.kv, exchangeRatesKey, rates); err != nil {
		return models.ExchangeRate{}, err
	}
	return entry, nil
}
