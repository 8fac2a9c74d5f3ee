package handlers

import (
	"errors"
	"net/url"
	"strconv"
	"strings"

	"boostmarket/internal/models"
	"boostmarket/internal/money"

	"github.com/shopspring/decimal"
)

var (
	errInvalidAmount = errors.New("invalid amount")
	errInvalidRate   = errors.New("invalid rate")
	errInvalidWallet = errors.New("invalid wallet")
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

func parseAmountMinor(raw string) (int64, error) {
	amount, err := money.ParseMinor(raw)
	if err != nil || amount <= 0 {
		return 0, errInvalidAmount
	}
	return amount, nil
}

// parseOptionalMinor treats an empty string as zero.
func parseOptionalMinor(raw string) (int64, error) {
	if strings.TrimSpace(raw) == "" {
		return 0, nil
	}
	amount, err := money.ParseMinor(raw)
	if err != nil || amount < 0 {
		return 0, errInvalidAmount
	}
	return amount, nil
}

func parseRate(raw string) (decimal.Decimal, error) {
	rate, err := decimal.NewFromString(raw)
	if err != nil || rate.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero, errInvalidRate
	}
	if rate.Exponent() < -6 {
		return decimal.Zero, errInvalidRate
	}
	return rate, nil
}

type walletInput struct {
	Currency string `json:"currency"`
	RealmID  string `json:"realm_id"`
}

func (in walletInput) ref() (models.WalletRef, error) {
	currency, err := models.ParseCurrency(in.Currency)
	if err != nil {
		return models.WalletRef{}, errInvalidWallet
	}
	ref := models.StaticRef(currency)
	if currency == models.CurrencyGold {
		ref = models.GoldRef(strings.TrimSpace(in.RealmID))
	}
	if err := ref.Validate(); err != nil {
		return models.WalletRef{}, errInvalidWallet
	}
	return ref, nil
}

func parseSubBalance(raw string) (models.SubBalance, error) {
	if raw == "" {
		return "", nil
	}
	sub := models.SubBalance(strings.ToLower(strings.TrimSpace(raw)))
	if !sub.Valid() {
		return "", errInvalidWallet
	}
	return sub, nil
}

func parsePage(query url.Values) (limit, offset int) {
	limit = parseInt(query.Get("limit"), defaultPageSize)
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	offset = parseInt(query.Get("offset"), 0)
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func parseInt(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}
