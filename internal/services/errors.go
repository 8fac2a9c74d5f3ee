package services

import (
	"errors"

	"boostmarket/internal/store"
)

var (
	ErrInvalidAmount          = errors.New("invalid amount")
	ErrInsufficientFunds      = errors.New("insufficient funds")
	ErrWalletNotFound         = errors.New("wallet not found")
	ErrSameWallet             = errors.New("source and destination wallet are the same")
	ErrInvalidTransition      = errors.New("invalid order status transition")
	ErrNoWalletAvailable      = errors.New("no wallet available for earnings")
	ErrValidationFailed       = errors.New("validation failed")
	ErrExchangeRateNotSet     = errors.New("exchange rate not set")
	ErrQuoteExpired           = errors.New("quote expired")
	ErrQuoteConsumed          = errors.New("quote already used")
	ErrInvalidExchangeRequest = errors.New("invalid exchange request")
	ErrForbidden              = errors.New("action not allowed for this user")

	ErrOrderNotFound   = store.ErrOrderNotFound
	ErrServiceNotFound = store.ErrServiceNotFound
	ErrQuoteNotFound   = store.ErrQuoteNotFound
)
