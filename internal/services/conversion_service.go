package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"boostmarket/internal/events"
	"boostmarket/internal/models"
	"boostmarket/internal/money"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const defaultQuoteTTL = 2 * time.Minute

type ConversionConfig struct {
	// Rates maps "from:to" to a decimal rate.
	Rates map[string]string
	// Fees maps a static destination currency to the fee rate on suspended gold conversions.
	Fees     map[string]string
	QuoteTTL time.Duration
}

type ConversionService struct {
	wallets   *WalletService
	rates     ExchangeStore
	quotes    ExchangeQuoteStore
	audit     AuditStore
	publisher events.Publisher
	logger    *zap.Logger
	defaults  map[string]decimal.Decimal
	fees      map[models.Currency]decimal.Decimal
	quoteTTL  time.Duration
	now       func() time.Time
}

func NewConversionService(wallets *WalletService, rates ExchangeStore, quotes ExchangeQuoteStore, audit AuditStore, publisher events.Publisher, logger *zap.Logger, cfg ConversionConfig) (*ConversionService, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	defaults := make(map[string]decimal.Decimal, len(cfg.Rates))
	for pair, raw := range cfg.Rates {
		from, to, ok := strings.Cut(pair, ":")
		if !ok {
			return nil, fmt.Errorf("exchange rate key %q must look like from:to", pair)
		}
		fromCurrency, err := models.ParseCurrency(from)
		if err != nil {
			return nil, err
		}
		toCurrency, err := models.ParseCurrency(to)
		if err != nil {
			return nil, err
		}
		rate, err := parsePositiveDecimal(raw)
		if err != nil {
			return nil, fmt.Errorf("exchange rate %s: %w", pair, err)
		}
		defaults[pairKey(fromCurrency, toCurrency)] = rate
	}
	fees := make(map[models.Currency]decimal.Decimal, len(cfg.Fees))
	for currency, raw := range cfg.Fees {
		c, err := models.ParseCurrency(currency)
		if err != nil {
			return nil, err
		}
		fee, err := decimal.NewFromString(strings.TrimSpace(raw))
		if err != nil || fee.IsNegative() || fee.GreaterThan(decimal.NewFromInt(1)) {
			return nil, fmt.Errorf("conversion fee %s must be between 0 and 1", currency)
		}
		fees[c] = fee
	}
	ttl := cfg.QuoteTTL
	if ttl <= 0 {
		ttl = defaultQuoteTTL
	}
	return &ConversionService{
		wallets:   wallets,
		rates:     rates,
		quotes:    quotes,
		audit:     audit,
		publisher: publisher,
		logger:    logger,
		defaults:  defaults,
		fees:      fees,
		quoteTTL:  ttl,
		now:       func() time.Time { return time.Now().UTC() },
	}, nil
}

func pairKey(from, to models.Currency) string {
	return string(from) + ":" + string(to)
}

func parsePositiveDecimal(raw string) (decimal.Decimal, error) {
	rate, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid decimal %q", raw)
	}
	if !rate.IsPositive() {
		return decimal.Zero, fmt.Errorf("rate must be positive, got %s", raw)
	}
	return rate, nil
}

// GetExchangeRate is directional. Stored overrides win over configured defaults.
func (s *ConversionService) GetExchangeRate(ctx context.Context, from, to models.Currency) (decimal.Decimal, error) {
	if !from.Valid() || !to.Valid() {
		return decimal.Zero, fmt.Errorf("%w: unknown currency", ErrValidationFailed)
	}
	if from == to {
		return decimal.NewFromInt(1), nil
	}
	if s.rates != nil {
		override, ok, err := s.rates.GetActive(ctx, from, to)
		if err != nil {
			return decimal.Zero, err
		}
		if ok {
			rate, err := parsePositiveDecimal(override.Rate)
			if err != nil {
				return decimal.Zero, fmt.Errorf("stored rate %s: %w", pairKey(from, to), err)
			}
			return rate, nil
		}
	}
	rate, ok := s.defaults[pairKey(from, to)]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrExchangeRateNotSet, pairKey(from, to))
	}
	return rate, nil
}

func (s *ConversionService) SetExchangeRate(ctx context.Context, actorID string, from, to models.Currency, raw string) (models.ExchangeRate, error) {
	if !from.Valid() || !to.Valid() {
		return models.ExchangeRate{}, fmt.Errorf("%w: unknown currency", ErrValidationFailed)
	}
	if from == to {
		return models.ExchangeRate{}, ErrInvalidExchangeRequest
	}
	rate, err := parsePositiveDecimal(raw)
	if err != nil {
		return models.ExchangeRate{}, fmt.Errorf("%w: %v", ErrValidationFailed, err)
	}
	stored, err := s.rates.SetRate(ctx, from, to, rate.String(), actorID)
	if err != nil {
		return models.ExchangeRate{}, err
	}
	data, _ := json.Marshal(map[string]string{"pair": pairKey(from, to), "rate": stored.Rate})
	audit(ctx, s.audit, s.logger, actorID, "set_exchange_rate", "exchange_rate", pairKey(from, to), string(data))
	s.logger.Info("exchange rate updated",
		zap.String("pair", pairKey(from, to)),
		zap.String("rate", stored.Rate),
		zap.String("actor_id", actorID),
	)
	return stored, nil
}

// Rates lists every known pair with its effective rate.
func (s *ConversionService) Rates(ctx context.Context) (map[string]string, error) {
	out := make(map[string]string, len(s.defaults))
	for pair, rate := range s.defaults {
		out[pair] = rate.String()
	}
	if s.rates == nil {
		return out, nil
	}
	overrides, err := s.rates.All(ctx)
	if err != nil {
		return nil, err
	}
	for pair, rate := range overrides {
		out[pair] = rate.Rate
	}
	return out, nil
}

// FeeRate is the fee taken when suspended gold is converted into currency.
func (s *ConversionService) FeeRate(currency models.Currency) decimal.Decimal {
	if fee, ok := s.fees[currency]; ok {
		return fee
	}
	return decimal.Zero
}

type QuoteRequest struct {
	UserID     string
	From       models.WalletRef
	To         models.WalletRef
	SubBalance models.SubBalance
	Amount     int64
}

type ConversionQuote struct {
	Rate           decimal.Decimal
	Gross          int64
	Fee            int64
	Net            int64
	FromSubBalance models.SubBalance
	ToSubBalance   models.SubBalance
}

func (s *ConversionService) normalize(req QuoteRequest) (QuoteRequest, error) {
	if req.Amount <= 0 {
		return req, ErrInvalidAmount
	}
	if err := req.From.Validate(); err != nil {
		return req, fmt.Errorf("%w: %v", ErrValidationFailed, err)
	}
	if err := req.To.Validate(); err != nil {
		return req, fmt.Errorf("%w: %v", ErrValidationFailed, err)
	}
	if req.From.Kind == models.WalletGold {
		if req.SubBalance == "" {
			req.SubBalance = models.SubBalanceWithdrawable
		}
		if !req.SubBalance.Valid() {
			return req, fmt.Errorf("%w: unknown sub-balance %q", ErrValidationFailed, req.SubBalance)
		}
	} else {
		req.SubBalance = ""
	}
	if req.From == req.To {
		return req, ErrSameWallet
	}
	return req, nil
}

// destinationSubBalance keeps suspended gold suspended when it moves between realms.
func destinationSubBalance(req QuoteRequest) models.SubBalance {
	if req.To.Kind != models.WalletGold {
		return ""
	}
	if req.From.Kind == models.WalletGold {
		return req.SubBalance
	}
	return models.SubBalanceWithdrawable
}

// Quote prices a conversion without touching balances.
func (s *ConversionService) Quote(ctx context.Context, req QuoteRequest) (ConversionQuote, error) {
	req, err := s.normalize(req)
	if err != nil {
		return ConversionQuote{}, err
	}
	return s.price(ctx, req)
}

func (s *ConversionService) price(ctx context.Context, req QuoteRequest) (ConversionQuote, error) {
	rate, err := s.GetExchangeRate(ctx, req.From.CurrencyOf(), req.To.CurrencyOf())
	if err != nil {
		return ConversionQuote{}, err
	}
	gross, err := money.ApplyRate(req.Amount, rate)
	if err != nil {
		return ConversionQuote{}, fmt.Errorf("%w: converted amount out of range", ErrInvalidAmount)
	}
	fee, net := int64(0), gross
	if req.From.Kind == models.WalletGold && req.SubBalance == models.SubBalanceSuspended && req.To.Kind == models.WalletStatic {
		fee, net, err = money.SplitFee(gross, s.FeeRate(req.To.Currency))
		if err != nil {
			return ConversionQuote{}, fmt.Errorf("%w: conversion fee out of range", ErrInvalidAmount)
		}
	}
	if net <= 0 {
		return ConversionQuote{}, fmt.Errorf("%w: amount too small to convert", ErrInvalidAmount)
	}
	return ConversionQuote{
		Rate:           rate,
		Gross:          gross,
		Fee:            fee,
		Net:            net,
		FromSubBalance: req.SubBalance,
		ToSubBalance:   destinationSubBalance(req),
	}, nil
}

// CreateQuote stores a priced quote that Execute can redeem once before it expires.
func (s *ConversionService) CreateQuote(ctx context.Context, req QuoteRequest) (models.ExchangeQuote, error) {
	req, err := s.normalize(req)
	if err != nil {
		return models.ExchangeQuote{}, err
	}
	priced, err := s.price(ctx, req)
	if err != nil {
		return models.ExchangeQuote{}, err
	}
	quote := models.ExchangeQuote{
		ID:         uuid.NewString(),
		UserID:     req.UserID,
		From:       req.From,
		To:         req.To,
		SubBalance: req.SubBalance,
		Amount:     req.Amount,
		Rate:       priced.Rate.String(),
		Gross:      priced.Gross,
		Fee:        priced.Fee,
		Net:        priced.Net,
		ExpiresAt:  s.now().Add(s.quoteTTL),
	}
	if err := s.quotes.Create(ctx, quote); err != nil {
		return models.ExchangeQuote{}, err
	}
	return quote, nil
}

type ConvertRequest struct {
	UserID     string
	From       models.WalletRef
	To         models.WalletRef
	SubBalance models.SubBalance
	Amount     int64
	QuoteID    string
}

type ConversionResult struct {
	Debit  models.Transaction
	Credit models.Transaction
	Quote  ConversionQuote
}

// Execute debits the source and credits the destination in one wallet write.
func (s *ConversionService) Execute(ctx context.Context, req ConvertRequest) (ConversionResult, error) {
	qreq, err := s.normalize(QuoteRequest{
		UserID:     req.UserID,
		From:       req.From,
		To:         req.To,
		SubBalance: req.SubBalance,
		Amount:     req.Amount,
	})
	if err != nil {
		return ConversionResult{}, err
	}

	unlock := s.wallets.locks.Lock(req.UserID)
	var priced ConversionQuote
	if req.QuoteID != "" {
		priced, err = s.redeemable(ctx, req.QuoteID, qreq)
	} else {
		priced, err = s.price(ctx, qreq)
	}
	if err != nil {
		unlock()
		return ConversionResult{}, err
	}
	description := fmt.Sprintf("Convert %s to %s", qreq.From, qreq.To)
	entries, after, err := s.wallets.mutateLocked(ctx, req.UserID, func(w *models.MultiWallet) ([]models.Transaction, error) {
		debit, err := s.wallets.applyDebit(w, Movement{
			UserID:      req.UserID,
			Wallet:      qreq.From,
			SubBalance:  priced.FromSubBalance,
			Amount:      qreq.Amount,
			Type:        models.TxConversion,
			Status:      models.TxStatusCompleted,
			QuoteID:     req.QuoteID,
			Description: description,
		})
		if err != nil {
			return nil, err
		}
		credit, err := s.wallets.applyCredit(w, Movement{
			UserID:      req.UserID,
			Wallet:      qreq.To,
			SubBalance:  priced.ToSubBalance,
			Amount:      priced.Net,
			Type:        models.TxConversion,
			Status:      models.TxStatusCompleted,
			QuoteID:     req.QuoteID,
			Description: description,
		})
		if err != nil {
			return nil, err
		}
		return []models.Transaction{debit, credit}, nil
	})
	if err == nil && req.QuoteID != "" {
		if _, consumeErr := s.quotes.Consume(ctx, req.QuoteID, s.now()); consumeErr != nil {
			s.logger.Error("quote consume failed after conversion",
				zap.String("quote_id", req.QuoteID),
				zap.Error(consumeErr),
			)
		}
	}
	unlock()
	if err != nil {
		return ConversionResult{}, err
	}
	s.wallets.broadcast(after, entries)

	data, _ := json.Marshal(map[string]string{
		"rate":     priced.Rate.String(),
		"fee":      money.FormatMinor(priced.Fee),
		"quote_id": req.QuoteID,
	})
	audit(ctx, s.audit, s.logger, req.UserID, "convert", "transaction", entries[0].ID, string(data))
	publish(ctx, s.publisher, s.logger, events.Event{
		Type:     events.TypeWalletConverted,
		EntityID: entries[0].ID,
		UserIDs:  []string{req.UserID},
		Data: map[string]string{
			"from":  qreq.From.String(),
			"to":    qreq.To.String(),
			"gross": money.FormatMinor(priced.Gross),
			"fee":   money.FormatMinor(priced.Fee),
			"net":   money.FormatMinor(priced.Net),
		},
	})
	return ConversionResult{Debit: entries[0], Credit: entries[1], Quote: priced}, nil
}

// redeemable checks a stored quote against the request and returns its locked-in pricing.
func (s *ConversionService) redeemable(ctx context.Context, quoteID string, req QuoteRequest) (ConversionQuote, error) {
	quote, err := s.quotes.GetByID(ctx, quoteID)
	if err != nil {
		return ConversionQuote{}, err
	}
	if quote.ConsumedAt != nil {
		return ConversionQuote{}, ErrQuoteConsumed
	}
	if !s.now().Before(quote.ExpiresAt) {
		return ConversionQuote{}, ErrQuoteExpired
	}
	if quote.UserID != req.UserID || quote.From != req.From || quote.To != req.To ||
		quote.SubBalance != req.SubBalance || quote.Amount != req.Amount {
		return ConversionQuote{}, ErrInvalidExchangeRequest
	}
	rate, err := decimal.NewFromString(quote.Rate)
	if err != nil {
		return ConversionQuote{}, ErrInvalidExchangeRequest
	}
	return ConversionQuote{
		Rate:           rate,
		Gross:          quote.Gross,
		Fee:            quote.Fee,
		Net:            quote.Net,
		FromSubBalance: req.SubBalance,
		ToSubBalance:   destinationSubBalance(req),
	}, nil
}
