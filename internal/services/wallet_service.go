package services

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"boostmarket/internal/events"
	"boostmarket/internal/models"
	"boostmarket/internal/money"
	"boostmarket/internal/store"
	"boostmarket/internal/websocket"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

type WalletService struct {
	wallets   WalletStore
	ledger    LedgerStore
	audit     AuditStore
	hub       BalanceHub
	publisher events.Publisher
	logger    *zap.Logger
	locks     *keyedMutex
	// realms limits which gold realms may be credited or opened; empty allows any.
	realms map[string]struct{}
	now    func() time.Time
}

func NewWalletService(wallets WalletStore, ledger LedgerStore, audit AuditStore, hub BalanceHub, publisher events.Publisher, logger *zap.Logger) *WalletService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WalletService{
		wallets:   wallets,
		ledger:    ledger,
		audit:     audit,
		hub:       hub,
		publisher: publisher,
		logger:    logger,
		locks:     newKeyedMutex(),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// RestrictRealms limits gold credits and new gold wallets to the given realm ids.
// Existing wallets in other realms can still be debited.
func (s *WalletService) RestrictRealms(realms []string) {
	s.realms = make(map[string]struct{}, len(realms))
	for _, realm := range realms {
		if realm = strings.TrimSpace(realm); realm != "" {
			s.realms[realm] = struct{}{}
		}
	}
}

func (s *WalletService) checkRealm(realmID string) error {
	if len(s.realms) == 0 {
		return nil
	}
	if _, ok := s.realms[realmID]; !ok {
		return fmt.Errorf("%w: unknown realm %q", ErrValidationFailed, realmID)
	}
	return nil
}

// Movement describes a single credit or debit against one balance bucket.
type Movement struct {
	UserID        string
	Wallet        models.WalletRef
	SubBalance    models.SubBalance
	Amount        int64
	Type          models.TransactionType
	Status        models.TransactionStatus
	OrderID       string
	QuoteID       string
	PaymentMethod string
	Description   string
}

func (m Movement) validate() (Movement, error) {
	if strings.TrimSpace(m.UserID) == "" {
		return m, fmt.Errorf("%w: user id is required", ErrValidationFailed)
	}
	if m.Amount <= 0 {
		return m, ErrInvalidAmount
	}
	if err := m.Wallet.Validate(); err != nil {
		return m, fmt.Errorf("%w: %v", ErrValidationFailed, err)
	}
	if m.Wallet.Kind == models.WalletGold {
		if m.SubBalance == "" {
			m.SubBalance = models.SubBalanceWithdrawable
		}
		if !m.SubBalance.Valid() {
			return m, fmt.Errorf("%w: unknown sub-balance %q", ErrValidationFailed, m.SubBalance)
		}
	} else {
		m.SubBalance = ""
	}
	if m.Status == "" {
		m.Status = models.TxStatusCompleted
	}
	return m, nil
}

// GetOrCreate returns the user's wallet, persisting an empty one on first access.
func (s *WalletService) GetOrCreate(ctx context.Context, userID string) (models.MultiWallet, error) {
	if strings.TrimSpace(userID) == "" {
		return models.MultiWallet{}, fmt.Errorf("%w: user id is required", ErrValidationFailed)
	}
	unlock := s.locks.Lock(userID)
	defer unlock()
	return s.getOrCreateLocked(ctx, userID)
}

func (s *WalletService) getOrCreateLocked(ctx context.Context, userID string) (models.MultiWallet, error) {
	wallet, ok, err := s.wallets.Get(ctx, userID)
	if err != nil {
		return models.MultiWallet{}, err
	}
	if ok {
		for _, c := range models.StaticCurrencies {
			if _, exists := wallet.StaticWallets[c]; !exists {
				wallet.StaticWallets[c] = models.StaticWallet{Currency: c}
			}
		}
		return wallet, nil
	}
	wallet = models.NewMultiWallet(userID, s.now())
	if err := s.wallets.Save(ctx, wallet); err != nil {
		return models.MultiWallet{}, err
	}
	s.logger.Debug("wallet created", zap.String("user_id", userID))
	return wallet, nil
}

func (s *WalletService) Credit(ctx context.Context, m Movement) (models.Transaction, error) {
	m, err := m.validate()
	if err != nil {
		return models.Transaction{}, err
	}
	if m.Type == "" {
		m.Type = models.TxDeposit
	}
	entries, err := s.mutate(ctx, m.UserID, func(w *models.MultiWallet) ([]models.Transaction, error) {
		entry, err := s.applyCredit(w, m)
		if err != nil {
			return nil, err
		}
		return []models.Transaction{entry}, nil
	})
	if err != nil {
		return models.Transaction{}, err
	}
	return entries[0], nil
}

func (s *WalletService) Debit(ctx context.Context, m Movement) (models.Transaction, error) {
	m, err := m.validate()
	if err != nil {
		return models.Transaction{}, err
	}
	if m.Type == "" {
		m.Type = models.TxWithdrawal
	}
	entries, err := s.mutate(ctx, m.UserID, func(w *models.MultiWallet) ([]models.Transaction, error) {
		entry, err := s.applyDebit(w, m)
		if err != nil {
			return nil, err
		}
		return []models.Transaction{entry}, nil
	})
	if err != nil {
		return models.Transaction{}, err
	}
	return entries[0], nil
}

// mutate runs fn against a copy of the wallet under the user's lock and commits the result.
func (s *WalletService) mutate(ctx context.Context, userID string, fn func(w *models.MultiWallet) ([]models.Transaction, error)) ([]models.Transaction, error) {
	unlock := s.locks.Lock(userID)
	entries, after, err := s.mutateLocked(ctx, userID, fn)
	unlock()
	if err != nil {
		return nil, err
	}
	s.broadcast(after, entries)
	return entries, nil
}

func (s *WalletService) mutateLocked(ctx context.Context, userID string, fn func(w *models.MultiWallet) ([]models.Transaction, error)) ([]models.Transaction, models.MultiWallet, error) {
	before, err := s.getOrCreateLocked(ctx, userID)
	if err != nil {
		return nil, models.MultiWallet{}, err
	}
	next := before.Clone()
	entries, err := fn(&next)
	if err != nil {
		return nil, models.MultiWallet{}, err
	}
	next.UpdatedAt = s.now()
	if err := s.wallets.Save(ctx, next); err != nil {
		return nil, models.MultiWallet{}, err
	}
	if err := s.ledger.Append(ctx, userID, entries...); err != nil {
		if restoreErr := s.wallets.Save(ctx, before); restoreErr != nil {
			s.logger.Error("wallet restore failed after ledger error",
				zap.String("user_id", userID),
				zap.Error(restoreErr),
			)
		}
		return nil, models.MultiWallet{}, fmt.Errorf("append ledger: %w", err)
	}
	return entries, next, nil
}

func (s *WalletService) applyCredit(w *models.MultiWallet, m Movement) (models.Transaction, error) {
	if m.Wallet.Kind == models.WalletGold {
		gold, ok := w.GoldWallets[m.Wallet.RealmID]
		if !ok {
			if err := s.checkRealm(m.Wallet.RealmID); err != nil {
				return models.Transaction{}, err
			}
			gold = models.GoldWallet{RealmID: m.Wallet.RealmID, CreatedAt: s.now()}
		}
		bucket := &gold.WithdrawableGold
		if m.SubBalance == models.SubBalanceSuspended {
			bucket = &gold.SuspendedGold
		}
		if err := addMinor(bucket, m.Amount); err != nil {
			return models.Transaction{}, fmt.Errorf("%w: realm %s", err, m.Wallet.RealmID)
		}
		w.GoldWallets[m.Wallet.RealmID] = gold
	} else {
		static := w.StaticWallets[m.Wallet.Currency]
		static.Currency = m.Wallet.Currency
		if err := addMinor(&static.Balance, m.Amount); err != nil {
			return models.Transaction{}, fmt.Errorf("%w: %s", err, m.Wallet.Currency)
		}
		w.StaticWallets[m.Wallet.Currency] = static
	}
	return s.newEntry(m, m.Amount), nil
}

// addMinor adds amount to *balance unless the sum would overflow int64.
func addMinor(balance *int64, amount int64) error {
	if amount > math.MaxInt64-*balance {
		return fmt.Errorf("%w: balance would exceed the maximum", ErrInvalidAmount)
	}
	*balance += amount
	return nil
}

func (s *WalletService) applyDebit(w *models.MultiWallet, m Movement) (models.Transaction, error) {
	if m.Wallet.Kind == models.WalletGold {
		gold, ok := w.GoldWallets[m.Wallet.RealmID]
		if !ok {
			return models.Transaction{}, fmt.Errorf("%w: realm %s", ErrWalletNotFound, m.Wallet.RealmID)
		}
		if m.SubBalance == models.SubBalanceSuspended {
			if gold.SuspendedGold < m.Amount {
				return models.Transaction{}, ErrInsufficientFunds
			}
			gold.SuspendedGold -= m.Amount
		} else {
			if gold.WithdrawableGold < m.Amount {
				return models.Transaction{}, ErrInsufficientFunds
			}
			gold.WithdrawableGold -= m.Amount
		}
		w.GoldWallets[m.Wallet.RealmID] = gold
	} else {
		static, ok := w.StaticWallets[m.Wallet.Currency]
		if !ok {
			return models.Transaction{}, fmt.Errorf("%w: %s", ErrWalletNotFound, m.Wallet.Currency)
		}
		if static.Balance < m.Amount {
			return models.Transaction{}, ErrInsufficientFunds
		}
		static.Balance -= m.Amount
		w.StaticWallets[m.Wallet.Currency] = static
	}
	return s.newEntry(m, -m.Amount), nil
}

func (s *WalletService) newEntry(m Movement, signed int64) models.Transaction {
	return models.Transaction{
		ID:            ulid.Make().String(),
		UserID:        m.UserID,
		WalletID:      m.Wallet.WalletID(m.UserID),
		Wallet:        m.Wallet,
		SubBalance:    m.SubBalance,
		Type:          m.Type,
		Amount:        signed,
		Currency:      m.Wallet.CurrencyOf(),
		Status:        m.Status,
		OrderID:       m.OrderID,
		QuoteID:       m.QuoteID,
		PaymentMethod: m.PaymentMethod,
		Description:   m.Description,
		CreatedAt:     s.now(),
	}
}

func (s *WalletService) broadcast(w models.MultiWallet, entries []models.Transaction) {
	if s.hub == nil {
		return
	}
	seen := map[string]struct{}{}
	for _, entry := range entries {
		bucket := store.LedgerBucket(entry.WalletID, entry.SubBalance)
		if _, dup := seen[bucket]; dup {
			continue
		}
		seen[bucket] = struct{}{}
		balance, _ := w.Balance(entry.Wallet, entry.SubBalance)
		s.hub.BroadcastBalance(w.UserID, websocket.BalanceUpdate{
			WalletID:   entry.WalletID,
			Wallet:     entry.Wallet.String(),
			SubBalance: string(entry.SubBalance),
			Balance:    money.FormatMinor(balance),
			Currency:   string(entry.Currency),
		})
	}
}

// ListGoldWallets returns the user's gold wallets ordered by realm id.
func (s *WalletService) ListGoldWallets(ctx context.Context, userID string) ([]models.GoldWallet, error) {
	wallet, err := s.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}
	return sortedGoldWallets(wallet), nil
}

func sortedGoldWallets(w models.MultiWallet) []models.GoldWallet {
	out := make([]models.GoldWallet, 0, len(w.GoldWallets))
	for _, gold := range w.GoldWallets {
		out = append(out, gold)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RealmID < out[j].RealmID })
	return out
}

// OpenGoldWallet provisions an empty gold wallet for the realm. Opening an existing realm is a no-op.
func (s *WalletService) OpenGoldWallet(ctx context.Context, userID, realmID string) (models.GoldWallet, error) {
	ref := models.GoldRef(realmID)
	if err := ref.Validate(); err != nil {
		return models.GoldWallet{}, fmt.Errorf("%w: %v", ErrValidationFailed, err)
	}
	if strings.TrimSpace(userID) == "" {
		return models.GoldWallet{}, fmt.Errorf("%w: user id is required", ErrValidationFailed)
	}
	if err := s.checkRealm(realmID); err != nil {
		return models.GoldWallet{}, err
	}
	unlock := s.locks.Lock(userID)
	defer unlock()
	wallet, err := s.getOrCreateLocked(ctx, userID)
	if err != nil {
		return models.GoldWallet{}, err
	}
	if gold, ok := wallet.GoldWallets[realmID]; ok {
		return gold, nil
	}
	next := wallet.Clone()
	gold := models.GoldWallet{RealmID: realmID, CreatedAt: s.now()}
	next.GoldWallets[realmID] = gold
	next.UpdatedAt = s.now()
	if err := s.wallets.Save(ctx, next); err != nil {
		return models.GoldWallet{}, err
	}
	return gold, nil
}

type DepositRequest struct {
	UserID        string
	Wallet        models.WalletRef
	SubBalance    models.SubBalance
	Amount        int64
	PaymentMethod string
}

func (s *WalletService) Deposit(ctx context.Context, req DepositRequest) (models.Transaction, error) {
	entry, err := s.Credit(ctx, Movement{
		UserID:        req.UserID,
		Wallet:        req.Wallet,
		SubBalance:    req.SubBalance,
		Amount:        req.Amount,
		Type:          models.TxDeposit,
		PaymentMethod: req.PaymentMethod,
		Description:   "Deposit",
	})
	if err != nil {
		return models.Transaction{}, err
	}
	audit(ctx, s.audit, s.logger, req.UserID, "deposit", "transaction", entry.ID, entry.WalletID)
	return entry, nil
}

type WithdrawRequest struct {
	UserID        string
	Wallet        models.WalletRef
	SubBalance    models.SubBalance
	Amount        int64
	PaymentMethod string
}

// Withdraw debits immediately and records the entry as pending approval. Suspended gold cannot leave the marketplace.
func (s *WalletService) Withdraw(ctx context.Context, req WithdrawRequest) (models.Transaction, error) {
	if req.Wallet.Kind == models.WalletGold && req.SubBalance == models.SubBalanceSuspended {
		return models.Transaction{}, fmt.Errorf("%w: suspended gold is not withdrawable", ErrValidationFailed)
	}
	entry, err := s.Debit(ctx, Movement{
		UserID:        req.UserID,
		Wallet:        req.Wallet,
		SubBalance:    models.SubBalanceWithdrawable,
		Amount:        req.Amount,
		Type:          models.TxWithdrawal,
		Status:        models.TxStatusPendingApproval,
		PaymentMethod: req.PaymentMethod,
		Description:   "Withdrawal request",
	})
	if err != nil {
		return models.Transaction{}, err
	}
	audit(ctx, s.audit, s.logger, req.UserID, "withdraw", "transaction", entry.ID, entry.WalletID)
	publish(ctx, s.publisher, s.logger, events.Event{
		Type:     events.TypeWithdrawalRequested,
		EntityID: entry.ID,
		UserIDs:  []string{req.UserID},
		Data: map[string]string{
			"wallet_id": entry.WalletID,
			"amount":    money.FormatMinor(req.Amount),
			"currency":  string(entry.Currency),
		},
	})
	return entry, nil
}

// Transactions returns the user's ledger newest first.
func (s *WalletService) Transactions(ctx context.Context, userID string) ([]models.Transaction, error) {
	entries, err := s.ledger.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]models.Transaction, len(entries))
	for i, entry := range entries {
		out[len(entries)-1-i] = entry
	}
	return out, nil
}

type BalanceCheck struct {
	WalletID   string            `json:"wallet_id"`
	SubBalance models.SubBalance `json:"sub_balance,omitempty"`
	Stored     int64             `json:"stored"`
	LedgerSum  int64             `json:"ledger_sum"`
	Difference int64             `json:"difference"`
}

// Reconcile compares every stored balance bucket with the signed sum of its ledger entries.
func (s *WalletService) Reconcile(ctx context.Context, userID string) ([]BalanceCheck, error) {
	unlock := s.locks.Lock(userID)
	defer unlock()
	wallet, err := s.getOrCreateLocked(ctx, userID)
	if err != nil {
		return nil, err
	}
	sums, err := s.ledger.SumByWallet(ctx, userID)
	if err != nil {
		return nil, err
	}
	var checks []BalanceCheck
	add := func(ref models.WalletRef, sub models.SubBalance, stored int64) {
		walletID := ref.WalletID(userID)
		bucket := store.LedgerBucket(walletID, sub)
		sum := sums[bucket]
		delete(sums, bucket)
		checks = append(checks, BalanceCheck{
			WalletID:   walletID,
			SubBalance: sub,
			Stored:     stored,
			LedgerSum:  sum,
			Difference: stored - sum,
		})
	}
	for _, c := range models.StaticCurrencies {
		add(models.StaticRef(c), "", wallet.StaticWallets[c].Balance)
	}
	for _, gold := range sortedGoldWallets(wallet) {
		ref := models.GoldRef(gold.RealmID)
		add(ref, models.SubBalanceWithdrawable, gold.WithdrawableGold)
		add(ref, models.SubBalanceSuspended, gold.SuspendedGold)
	}
	orphans := make([]string, 0, len(sums))
	for bucket := range sums {
		orphans = append(orphans, bucket)
	}
	sort.Strings(orphans)
	for _, bucket := range orphans {
		walletID, sub, _ := strings.Cut(bucket, "/")
		checks = append(checks, BalanceCheck{
			WalletID:   walletID,
			SubBalance: models.SubBalance(sub),
			LedgerSum:  sums[bucket],
			Difference: -sums[bucket],
		})
	}
	return checks, nil
}
