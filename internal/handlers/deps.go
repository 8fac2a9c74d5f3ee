package handlers

import (
	"context"

	"boostmarket/internal/models"
	"boostmarket/internal/services"
)

type WalletService interface {
	GetOrCreate(ctx context.Context, userID string) (models.MultiWallet, error)
	ListGoldWallets(ctx context.Context, userID string) ([]models.GoldWallet, error)
	OpenGoldWallet(ctx context.Context, userID, realmID string) (models.GoldWallet, error)
	Deposit(ctx context.Context, req services.DepositRequest) (models.Transaction, error)
	Withdraw(ctx context.Context, req services.WithdrawRequest) (models.Transaction, error)
	Transactions(ctx context.Context, userID string) ([]models.Transaction, error)
	Reconcile(ctx context.Context, userID string) ([]services.BalanceCheck, error)
}

type ConversionService interface {
	CreateQuote(ctx context.Context, req services.QuoteRequest) (models.ExchangeQuote, error)
	Execute(ctx context.Context, req services.ConvertRequest) (services.ConversionResult, error)
	Rates(ctx context.Context) (map[string]string, error)
	SetExchangeRate(ctx context.Context, actorID string, from, to models.Currency, raw string) (models.ExchangeRate, error)
}

type CatalogService interface {
	Create(ctx context.Context, req services.CreateListingRequest) (models.ServiceListing, error)
	Get(ctx context.Context, serviceID string) (models.ServiceListing, error)
	SetStatus(ctx context.Context, req services.SetStatusRequest) (models.ServiceListing, error)
	Search(ctx context.Context, filter services.SearchFilter) ([]models.ServiceListing, error)
}

type OrderService interface {
	Purchase(ctx context.Context, req services.PurchaseRequest) (models.Order, error)
	Get(ctx context.Context, orderID string) (models.Order, error)
	List(ctx context.Context, filter services.OrderFilter) ([]models.Order, error)
	Assign(ctx context.Context, orderID, boosterID string) (models.Order, error)
	Start(ctx context.Context, orderID, boosterID string) (models.Order, error)
	SubmitEvidence(ctx context.Context, orderID string, input services.EvidenceInput) (models.Order, error)
	BeginReview(ctx context.Context, orderID, reviewerID string) (models.Order, error)
	ReviewEvidence(ctx context.Context, orderID string, decision services.ReviewDecision) (models.Order, error)
	Cancel(ctx context.Context, req services.CancelRequest) (models.Order, error)
	RetryEarnings(ctx context.Context, actorID, orderID string) (models.Order, error)
	ListReconciliation(ctx context.Context) ([]models.Order, error)
}

type AuditStore interface {
	List(ctx context.Context, limit, offset int) ([]models.AuditEntry, error)
}
