package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"boostmarket/internal/events"
	"boostmarket/internal/models"
	"boostmarket/internal/money"
	"boostmarket/internal/validator"
	"boostmarket/internal/websocket"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type OrderService struct {
	// mu guards the orders collection. It is always taken before any wallet lock.
	mu           sync.Mutex
	orders       OrderStore
	listings     ListingLookup
	wallets      *WalletService
	audit        AuditStore
	hub          OrderHub
	publisher    events.Publisher
	logger       *zap.Logger
	defaultRealm string
	now          func() time.Time
}

func NewOrderService(orders OrderStore, listings ListingLookup, wallets *WalletService, audit AuditStore, hub OrderHub, publisher events.Publisher, logger *zap.Logger, defaultRealm string) *OrderService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OrderService{
		orders:       orders,
		listings:     listings,
		wallets:      wallets,
		audit:        audit,
		hub:          hub,
		publisher:    publisher,
		logger:       logger,
		defaultRealm: defaultRealm,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

type PurchaseRequest struct {
	ServiceID string
	BuyerID   string
	Currency  models.Currency
	// Wallet is required for gold purchases; fiat purchases always pay from the static wallet.
	Wallet     *models.WalletRef
	SubBalance models.SubBalance
}

// Purchase debits the buyer and records a pending order. The debit is the escrow: if the order
// cannot be stored the buyer is refunded.
func (s *OrderService) Purchase(ctx context.Context, req PurchaseRequest) (models.Order, error) {
	if strings.TrimSpace(req.BuyerID) == "" {
		return models.Order{}, fmt.Errorf("%w: buyer is required", ErrValidationFailed)
	}
	if !req.Currency.Valid() {
		return models.Order{}, fmt.Errorf("%w: unknown currency %q", ErrValidationFailed, req.Currency)
	}
	listing, err := s.listings.GetServiceListing(ctx, req.ServiceID)
	if err != nil {
		return models.Order{}, err
	}
	if listing.Status != models.ListingActive {
		return models.Order{}, fmt.Errorf("%w: listing is not active", ErrValidationFailed)
	}
	price := listing.Prices.In(req.Currency)
	if price <= 0 {
		return models.Order{}, fmt.Errorf("%w: listing is not offered in %s", ErrValidationFailed, req.Currency)
	}
	recipient := listing.EarningsRecipient()
	if req.BuyerID == recipient || req.BuyerID == listing.CreatedBy {
		return models.Order{}, fmt.Errorf("%w: cannot buy your own listing", ErrValidationFailed)
	}
	ref, sub, err := fundingWallet(req)
	if err != nil {
		return models.Order{}, err
	}

	now := s.now()
	order := models.Order{
		ID:                  uuid.NewString(),
		ServiceID:           listing.ID,
		BuyerID:             req.BuyerID,
		EarningsRecipientID: recipient,
		PricePaid:           price,
		Currency:            req.Currency,
		Status:              models.OrderPending,
		Wallet:              &ref,
		SubBalance:          sub,
		CreatedAt:           now,
		UpdatedAt:           now,
	}

	s.mu.Lock()
	if _, err := s.wallets.Debit(ctx, Movement{
		UserID:      req.BuyerID,
		Wallet:      ref,
		SubBalance:  sub,
		Amount:      price,
		Type:        models.TxPurchase,
		OrderID:     order.ID,
		Description: "Purchase " + listing.Title,
	}); err != nil {
		s.mu.Unlock()
		return models.Order{}, err
	}
	if err := s.orders.Save(ctx, order); err != nil {
		s.mu.Unlock()
		s.compensate(ctx, order, err)
		return models.Order{}, fmt.Errorf("save order: %w", err)
	}
	s.mu.Unlock()

	audit(ctx, s.audit, s.logger, req.BuyerID, "purchase", "order", order.ID, listing.ID)
	s.logger.Info("order placed",
		zap.String("order_id", order.ID),
		zap.String("service_id", listing.ID),
		zap.String("currency", string(order.Currency)),
		zap.Int64("price", order.PricePaid),
	)
	s.notify(ctx, order, events.TypeOrderCreated)
	return order, nil
}

func fundingWallet(req PurchaseRequest) (models.WalletRef, models.SubBalance, error) {
	if req.Currency.IsStatic() {
		ref := models.StaticRef(req.Currency)
		if req.Wallet != nil && *req.Wallet != ref {
			return models.WalletRef{}, "", fmt.Errorf("%w: %s purchases pay from the %s wallet", ErrValidationFailed, req.Currency, req.Currency)
		}
		return ref, "", nil
	}
	if req.Wallet == nil || req.Wallet.Kind != models.WalletGold {
		return models.WalletRef{}, "", fmt.Errorf("%w: gold purchases need a realm wallet", ErrValidationFailed)
	}
	if err := req.Wallet.Validate(); err != nil {
		return models.WalletRef{}, "", fmt.Errorf("%w: %v", ErrValidationFailed, err)
	}
	sub := req.SubBalance
	if sub == "" {
		sub = models.SubBalanceWithdrawable
	}
	if !sub.Valid() {
		return models.WalletRef{}, "", fmt.Errorf("%w: unknown sub-balance %q", ErrValidationFailed, sub)
	}
	return *req.Wallet, sub, nil
}

func (s *OrderService) compensate(ctx context.Context, order models.Order, cause error) {
	_, err := s.wallets.Credit(ctx, Movement{
		UserID:      order.BuyerID,
		Wallet:      *order.Wallet,
		SubBalance:  order.SubBalance,
		Amount:      order.PricePaid,
		Type:        models.TxRefund,
		OrderID:     order.ID,
		Description: "Refund for failed order",
	})
	if err != nil {
		s.logger.Error("purchase refund failed",
			zap.String("order_id", order.ID),
			zap.String("buyer_id", order.BuyerID),
			zap.NamedError("cause", cause),
			zap.Error(err),
		)
		return
	}
	s.logger.Warn("purchase refunded after order save failure",
		zap.String("order_id", order.ID),
		zap.Error(cause),
	)
}

func (s *OrderService) Get(ctx context.Context, orderID string) (models.Order, error) {
	return s.orders.GetByID(ctx, orderID)
}

type OrderFilter struct {
	// UserID matches the buyer, the booster or the earnings recipient.
	UserID string
	Status models.OrderStatus
	Limit  int
	Offset int
}

// List returns matching orders newest first.
func (s *OrderService) List(ctx context.Context, filter OrderFilter) ([]models.Order, error) {
	all, err := s.orders.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]models.Order, 0, len(all))
	for i := len(all) - 1; i >= 0; i-- {
		order := all[i]
		if filter.Status != "" && order.Status != filter.Status {
			continue
		}
		if filter.UserID != "" && order.BuyerID != filter.UserID && order.BoosterID != filter.UserID && order.EarningsRecipientID != filter.UserID {
			continue
		}
		out = append(out, order)
	}
	return Paginate(out, filter.Limit, filter.Offset), nil
}

// transitionLocked moves an order from one of the from states after apply succeeds. The caller holds s.mu.
func (s *OrderService) transitionLocked(ctx context.Context, orderID string, to models.OrderStatus, from []models.OrderStatus, apply func(*models.Order) error) (models.Order, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return models.Order{}, err
	}
	allowed := false
	for _, status := range from {
		if order.Status == status {
			allowed = true
			break
		}
	}
	if !allowed {
		return models.Order{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, order.Status, to)
	}
	next := order
	if apply != nil {
		if err := apply(&next); err != nil {
			return models.Order{}, err
		}
	}
	next.Status = to
	next.UpdatedAt = s.now()
	if err := s.orders.Save(ctx, next); err != nil {
		return models.Order{}, err
	}
	return next, nil
}

func (s *OrderService) transition(ctx context.Context, orderID string, to models.OrderStatus, from []models.OrderStatus, apply func(*models.Order) error) (models.Order, error) {
	s.mu.Lock()
	order, err := s.transitionLocked(ctx, orderID, to, from, apply)
	s.mu.Unlock()
	if err != nil {
		return models.Order{}, err
	}
	s.notify(ctx, order, events.TypeOrderStatus)
	return order, nil
}

func (s *OrderService) Assign(ctx context.Context, orderID, boosterID string) (models.Order, error) {
	if strings.TrimSpace(boosterID) == "" {
		return models.Order{}, fmt.Errorf("%w: booster is required", ErrValidationFailed)
	}
	return s.transition(ctx, orderID, models.OrderAssigned, []models.OrderStatus{models.OrderPending}, func(o *models.Order) error {
		if o.BuyerID == boosterID {
			return fmt.Errorf("%w: buyer cannot boost their own order", ErrValidationFailed)
		}
		o.BoosterID = boosterID
		return nil
	})
}

func (s *OrderService) Start(ctx context.Context, orderID, boosterID string) (models.Order, error) {
	return s.transition(ctx, orderID, models.OrderInProgress, []models.OrderStatus{models.OrderAssigned}, func(o *models.Order) error {
		if o.BoosterID != boosterID {
			return ErrForbidden
		}
		return nil
	})
}

type EvidenceInput struct {
	UploadedBy string
	File       models.EvidenceFile
	Notes      string
}

// SubmitEvidence replaces any earlier evidence. Rejected orders can be resubmitted.
func (s *OrderService) SubmitEvidence(ctx context.Context, orderID string, input EvidenceInput) (models.Order, error) {
	if err := validator.ValidateEvidence(input.File, input.Notes); err != nil {
		return models.Order{}, fmt.Errorf("%w: %v", ErrValidationFailed, err)
	}
	from := []models.OrderStatus{models.OrderInProgress, models.OrderRejected}
	return s.transition(ctx, orderID, models.OrderEvidenceSubmitted, from, func(o *models.Order) error {
		if o.BoosterID != input.UploadedBy {
			return ErrForbidden
		}
		o.Evidence = &models.OrderEvidence{
			OrderID:    o.ID,
			File:       input.File,
			Notes:      input.Notes,
			UploadedBy: input.UploadedBy,
			UploadedAt: s.now(),
		}
		o.RejectionReason = ""
		return nil
	})
}

func (s *OrderService) BeginReview(ctx context.Context, orderID, reviewerID string) (models.Order, error) {
	if strings.TrimSpace(reviewerID) == "" {
		return models.Order{}, fmt.Errorf("%w: reviewer is required", ErrValidationFailed)
	}
	return s.transition(ctx, orderID, models.OrderUnderReview, []models.OrderStatus{models.OrderEvidenceSubmitted}, func(o *models.Order) error {
		o.ReviewedBy = reviewerID
		return nil
	})
}

type ReviewDecision struct {
	ReviewerID string
	Approve    bool
	Reason     string
}

// ReviewEvidence approves or rejects submitted evidence. Approval completes the order and pays
// the earnings recipient; a failed payout never rolls the completion back.
func (s *OrderService) ReviewEvidence(ctx context.Context, orderID string, decision ReviewDecision) (models.Order, error) {
	if strings.TrimSpace(decision.ReviewerID) == "" {
		return models.Order{}, fmt.Errorf("%w: reviewer is required", ErrValidationFailed)
	}
	from := []models.OrderStatus{models.OrderEvidenceSubmitted, models.OrderUnderReview}
	if !decision.Approve {
		if err := validator.ValidateRejection(decision.Reason); err != nil {
			return models.Order{}, fmt.Errorf("%w: %v", ErrValidationFailed, err)
		}
		order, err := s.transition(ctx, orderID, models.OrderRejected, from, func(o *models.Order) error {
			o.ReviewedBy = decision.ReviewerID
			o.RejectionReason = strings.TrimSpace(decision.Reason)
			return nil
		})
		if err == nil {
			audit(ctx, s.audit, s.logger, decision.ReviewerID, "reject_evidence", "order", orderID, order.RejectionReason)
		}
		return order, err
	}

	s.mu.Lock()
	order, err := s.transitionLocked(ctx, orderID, models.OrderCompleted, from, func(o *models.Order) error {
		completedAt := s.now()
		o.ReviewedBy = decision.ReviewerID
		o.RejectionReason = ""
		o.CompletedAt = &completedAt
		return nil
	})
	if err != nil {
		s.mu.Unlock()
		return models.Order{}, err
	}
	_ = s.settleLocked(ctx, &order)
	s.mu.Unlock()

	audit(ctx, s.audit, s.logger, decision.ReviewerID, "approve_evidence", "order", orderID, "")
	s.notify(ctx, order, events.TypeOrderStatus)
	return order, nil
}

type CancelRequest struct {
	OrderID string
	ActorID string
	AsAdmin bool
}

// Cancel refunds the buyer for orders that have not started.
func (s *OrderService) Cancel(ctx context.Context, req CancelRequest) (models.Order, error) {
	from := []models.OrderStatus{models.OrderPending, models.OrderAssigned}
	return s.transition(ctx, req.OrderID, models.OrderCancelled, from, func(o *models.Order) error {
		if !req.AsAdmin && o.BuyerID != req.ActorID {
			return ErrForbidden
		}
		if o.Wallet == nil {
			return fmt.Errorf("%w: order has no funding wallet", ErrWalletNotFound)
		}
		_, err := s.wallets.Credit(ctx, Movement{
			UserID:      o.BuyerID,
			Wallet:      *o.Wallet,
			SubBalance:  o.SubBalance,
			Amount:      o.PricePaid,
			Type:        models.TxRefund,
			OrderID:     o.ID,
			Description: "Refund for cancelled order",
		})
		return err
	})
}

// ResolveEarningsWallet picks where an order's earnings land: the recipient's static wallet for
// fiat, otherwise the order's realm, the recipient's first realm, then the default realm.
func (s *OrderService) ResolveEarningsWallet(ctx context.Context, order models.Order) (models.WalletRef, error) {
	if order.Currency.IsStatic() {
		return models.StaticRef(order.Currency), nil
	}
	if order.Wallet != nil && order.Wallet.Kind == models.WalletGold && order.Wallet.RealmID != "" {
		return models.GoldRef(order.Wallet.RealmID), nil
	}
	golds, err := s.wallets.ListGoldWallets(ctx, order.EarningsRecipientID)
	if err != nil {
		return models.WalletRef{}, err
	}
	if len(golds) > 0 {
		return models.GoldRef(golds[0].RealmID), nil
	}
	if s.defaultRealm != "" {
		return models.GoldRef(s.defaultRealm), nil
	}
	return models.WalletRef{}, ErrNoWalletAvailable
}

// settleLocked pays earnings once and records the outcome on the order. The caller holds s.mu.
func (s *OrderService) settleLocked(ctx context.Context, order *models.Order) error {
	if order.EarningsPaid {
		return nil
	}
	entry, err := s.distributeEarnings(ctx, *order)
	if err != nil {
		order.NeedsReconciliation = true
		order.ReconciliationError = err.Error()
		s.logger.Error("earnings distribution failed",
			zap.String("order_id", order.ID),
			zap.String("recipient_id", order.EarningsRecipientID),
			zap.Int64("amount", order.PricePaid),
			zap.Error(err),
		)
		publish(ctx, s.publisher, s.logger, events.Event{
			Type:     events.TypeEarningsFailed,
			EntityID: order.ID,
			UserIDs:  []string{order.EarningsRecipientID},
			Data:     map[string]string{"error": err.Error()},
		})
	} else {
		order.EarningsPaid = true
		order.EarningsTxID = entry.ID
		order.NeedsReconciliation = false
		order.ReconciliationError = ""
		publish(ctx, s.publisher, s.logger, events.Event{
			Type:     events.TypeEarningsPaid,
			EntityID: order.ID,
			UserIDs:  []string{order.EarningsRecipientID},
			Data: map[string]string{
				"wallet_id": entry.WalletID,
				"amount":    money.FormatMinor(order.PricePaid),
			},
		})
	}
	order.UpdatedAt = s.now()
	if saveErr := s.orders.Save(ctx, *order); saveErr != nil {
		s.logger.Error("order settlement state not saved",
			zap.String("order_id", order.ID),
			zap.Bool("earnings_paid", order.EarningsPaid),
			zap.Error(saveErr),
		)
		if err == nil {
			err = saveErr
		}
	}
	return err
}

func (s *OrderService) distributeEarnings(ctx context.Context, order models.Order) (models.Transaction, error) {
	if existing, ok, err := s.findEarning(ctx, order); err != nil || ok {
		return existing, err
	}
	ref, err := s.ResolveEarningsWallet(ctx, order)
	if err != nil {
		return models.Transaction{}, err
	}
	return s.wallets.Credit(ctx, Movement{
		UserID:      order.EarningsRecipientID,
		Wallet:      ref,
		SubBalance:  models.SubBalanceWithdrawable,
		Amount:      order.PricePaid,
		Type:        models.TxEarning,
		OrderID:     order.ID,
		Description: "Earnings for order " + order.ID,
	})
}

// findEarning looks for an earning already booked for the order whose flag was never saved.
func (s *OrderService) findEarning(ctx context.Context, order models.Order) (models.Transaction, bool, error) {
	entries, err := s.wallets.ledger.ListByUser(ctx, order.EarningsRecipientID)
	if err != nil {
		return models.Transaction{}, false, err
	}
	for _, entry := range entries {
		if entry.Type == models.TxEarning && entry.OrderID == order.ID {
			return entry, true, nil
		}
	}
	return models.Transaction{}, false, nil
}

// RetryEarnings re-attempts the payout of a completed order flagged for reconciliation.
func (s *OrderService) RetryEarnings(ctx context.Context, actorID, orderID string) (models.Order, error) {
	s.mu.Lock()
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		s.mu.Unlock()
		return models.Order{}, err
	}
	if order.Status != models.OrderCompleted || order.EarningsPaid {
		s.mu.Unlock()
		return models.Order{}, fmt.Errorf("%w: order %s has nothing to reconcile", ErrInvalidTransition, orderID)
	}
	settleErr := s.settleLocked(ctx, &order)
	s.mu.Unlock()

	audit(ctx, s.audit, s.logger, actorID, "retry_earnings", "order", orderID, order.ReconciliationError)
	if settleErr != nil {
		return order, settleErr
	}
	s.notify(ctx, order, events.TypeOrderStatus)
	return order, nil
}

// ListReconciliation returns completed orders whose earnings are still unpaid.
func (s *OrderService) ListReconciliation(ctx context.Context) ([]models.Order, error) {
	all, err := s.orders.List(ctx)
	if err != nil {
		return nil, err
	}
	var out []models.Order
	for _, order := range all {
		if order.NeedsReconciliation && !order.EarningsPaid {
			out = append(out, order)
		}
	}
	return out, nil
}

func (s *OrderService) notify(ctx context.Context, order models.Order, eventType string) {
	recipients := []string{order.BuyerID, order.BoosterID, order.EarningsRecipientID}
	if s.hub != nil {
		s.hub.BroadcastOrder(recipients, websocket.OrderUpdate{
			OrderID:   order.ID,
			Status:    string(order.Status),
			UpdatedAt: order.UpdatedAt,
		})
	}
	publish(ctx, s.publisher, s.logger, events.Event{
		Type:     eventType,
		EntityID: order.ID,
		UserIDs:  recipients,
		Data:     map[string]string{"status": string(order.Status)},
	})
}

// IsOrderParticipant reports whether userID may see the order.
func IsOrderParticipant(order models.Order, userID string) bool {
	return userID != "" && (order.BuyerID == userID || order.BoosterID == userID || order.EarningsRecipientID == userID)
}
