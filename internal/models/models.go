package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

type Currency string

const (
	CurrencyGold  Currency = "gold"
	CurrencyUSD   Currency = "usd"
	CurrencyToman Currency = "toman"
)

// StaticCurrencies are the fiat currencies held outside any realm.
var StaticCurrencies = []Currency{CurrencyUSD, CurrencyToman}

func ParseCurrency(raw string) (Currency, error) {
	c := Currency(strings.ToLower(strings.TrimSpace(raw)))
	if !c.Valid() {
		return "", fmt.Errorf("unknown currency %q", raw)
	}
	return c, nil
}

func (c Currency) Valid() bool {
	return c == CurrencyGold || c == CurrencyUSD || c == CurrencyToman
}

func (c Currency) IsStatic() bool {
	return c == CurrencyUSD || c == CurrencyToman
}

type WalletKind string

const (
	WalletStatic WalletKind = "static"
	WalletGold   WalletKind = "gold"
)

type SubBalance string

const (
	SubBalanceWithdrawable SubBalance = "withdrawable"
	SubBalanceSuspended    SubBalance = "suspended"
)

func (s SubBalance) Valid() bool {
	return s == SubBalanceWithdrawable || s == SubBalanceSuspended
}

// WalletRef addresses one balance bucket family: a static wallet by currency or a gold wallet by realm.
type WalletRef struct {
	Kind     WalletKind `json:"kind"`
	Currency Currency   `json:"currency,omitempty"`
	RealmID  string     `json:"realm_id,omitempty"`
}

func StaticRef(currency Currency) WalletRef {
	return WalletRef{Kind: WalletStatic, Currency: currency}
}

func GoldRef(realmID string) WalletRef {
	return WalletRef{Kind: WalletGold, RealmID: realmID}
}

var ErrInvalidWalletRef = errors.New("invalid wallet reference")

func (r WalletRef) Validate() error {
	switch r.Kind {
	case WalletStatic:
		if !r.Currency.IsStatic() {
			return fmt.Errorf("%w: static wallet needs usd or toman", ErrInvalidWalletRef)
		}
	case WalletGold:
		if strings.TrimSpace(r.RealmID) == "" {
			return fmt.Errorf("%w: gold wallet needs a realm", ErrInvalidWalletRef)
		}
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidWalletRef, r.Kind)
	}
	return nil
}

func (r WalletRef) CurrencyOf() Currency {
	if r.Kind == WalletGold {
		return CurrencyGold
	}
	return r.Currency
}

// WalletID is the ledger identifier of the referenced wallet for the given owner.
func (r WalletRef) WalletID(userID string) string {
	if r.Kind == WalletGold {
		return userID + ":gold:" + r.RealmID
	}
	return userID + ":" + string(r.Currency)
}

func (r WalletRef) String() string {
	if r.Kind == WalletGold {
		return "gold:" + r.RealmID
	}
	return string(r.Currency)
}

type StaticWallet struct {
	Currency Currency `json:"currency"`
	Balance  int64    `json:"balance"`
}

type GoldWallet struct {
	RealmID          string    `json:"realm_id"`
	WithdrawableGold int64     `json:"withdrawable_gold"`
	SuspendedGold    int64     `json:"suspended_gold"`
	CreatedAt        time.Time `json:"created_at"`
}

func (g GoldWallet) Total() int64 {
	return g.WithdrawableGold + g.SuspendedGold
}

type MultiWallet struct {
	UserID        string                    `json:"user_id"`
	StaticWallets map[Currency]StaticWallet `json:"static_wallets"`
	GoldWallets   map[string]GoldWallet     `json:"gold_wallets"`
	CreatedAt     time.Time                 `json:"created_at"`
	UpdatedAt     time.Time                 `json:"updated_at"`
}

func NewMultiWallet(userID string, now time.Time) MultiWallet {
	w := MultiWallet{
		UserID:        userID,
		StaticWallets: make(map[Currency]StaticWallet, len(StaticCurrencies)),
		GoldWallets:   make(map[string]GoldWallet),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	for _, c := range StaticCurrencies {
		w.StaticWallets[c] = StaticWallet{Currency: c}
	}
	return w
}

// Clone returns a deep copy so callers can mutate without touching the original maps.
func (w MultiWallet) Clone() MultiWallet {
	out := w
	out.StaticWallets = make(map[Currency]StaticWallet, len(w.StaticWallets))
	for k, v := range w.StaticWallets {
		out.StaticWallets[k] = v
	}
	out.GoldWallets = make(map[string]GoldWallet, len(w.GoldWallets))
	for k, v := range w.GoldWallets {
		out.GoldWallets[k] = v
	}
	return out
}

// Balance returns the stored amount of one bucket and whether the bucket exists.
func (w MultiWallet) Balance(ref WalletRef, sub SubBalance) (int64, bool) {
	if ref.Kind == WalletGold {
		gold, ok := w.GoldWallets[ref.RealmID]
		if !ok {
			return 0, false
		}
		if sub == SubBalanceSuspended {
			return gold.SuspendedGold, true
		}
		return gold.WithdrawableGold, true
	}
	static, ok := w.StaticWallets[ref.Currency]
	return static.Balance, ok
}

type TransactionType string

const (
	TxDeposit    TransactionType = "deposit"
	TxWithdrawal TransactionType = "withdrawal"
	TxConversion TransactionType = "conversion"
	TxPurchase   TransactionType = "purchase"
	TxRefund     TransactionType = "refund"
	TxEarning    TransactionType = "earning"
)

type TransactionStatus string

const (
	TxStatusCompleted       TransactionStatus = "completed"
	TxStatusPendingApproval TransactionStatus = "pending_approval"
)

// Transaction is an immutable ledger entry. Amount is signed: debits are negative.
type Transaction struct {
	ID            string            `json:"id"`
	UserID        string            `json:"user_id"`
	WalletID      string            `json:"wallet_id"`
	Wallet        WalletRef         `json:"wallet"`
	SubBalance    SubBalance        `json:"sub_balance,omitempty"`
	Type          TransactionType   `json:"type"`
	Amount        int64             `json:"amount"`
	Currency      Currency          `json:"currency"`
	Status        TransactionStatus `json:"status"`
	OrderID       string            `json:"order_id,omitempty"`
	QuoteID       string            `json:"quote_id,omitempty"`
	PaymentMethod string            `json:"payment_method,omitempty"`
	Description   string            `json:"description,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
}

type WorkspaceType string

const (
	WorkspacePersonal WorkspaceType = "personal"
	WorkspaceTeam     WorkspaceType = "team"
)

type ListingStatus string

const (
	ListingActive   ListingStatus = "active"
	ListingInactive ListingStatus = "inactive"
	ListingArchived ListingStatus = "archived"
)

// Prices are set independently per currency; zero means not offered.
type Prices struct {
	Gold  int64 `json:"gold" yaml:"gold"`
	USD   int64 `json:"usd" yaml:"usd"`
	Toman int64 `json:"toman" yaml:"toman"`
}

func (p Prices) In(c Currency) int64 {
	switch c {
	case CurrencyGold:
		return p.Gold
	case CurrencyUSD:
		return p.USD
	case CurrencyToman:
		return p.Toman
	}
	return 0
}

type ServiceListing struct {
	ID               string        `json:"id" yaml:"id"`
	GameID           string        `json:"game_id" yaml:"game_id"`
	ServiceTypeID    string        `json:"service_type_id" yaml:"service_type_id"`
	Title            string        `json:"title" yaml:"title"`
	Description      string        `json:"description" yaml:"description"`
	Prices           Prices        `json:"prices" yaml:"prices"`
	WorkspaceType    WorkspaceType `json:"workspace_type" yaml:"workspace_type"`
	WorkspaceOwnerID string        `json:"workspace_owner_id" yaml:"workspace_owner_id"`
	CreatedBy        string        `json:"created_by" yaml:"created_by"`
	Status           ListingStatus `json:"status" yaml:"status"`
	CreatedAt        time.Time     `json:"created_at" yaml:"created_at"`
}

// EarningsRecipient is the workspace owner for team listings, the creator otherwise.
func (l ServiceListing) EarningsRecipient() string {
	if l.WorkspaceOwnerID != "" {
		return l.WorkspaceOwnerID
	}
	return l.CreatedBy
}

type OrderStatus string

const (
	OrderPending           OrderStatus = "pending"
	OrderAssigned          OrderStatus = "assigned"
	OrderInProgress        OrderStatus = "in_progress"
	OrderEvidenceSubmitted OrderStatus = "evidence_submitted"
	OrderUnderReview       OrderStatus = "under_review"
	OrderCompleted         OrderStatus = "completed"
	OrderRejected          OrderStatus = "rejected"
	OrderCancelled         OrderStatus = "cancelled"
)

type EvidenceFile struct {
	Name        string `json:"name"`
	Size        int64  `json:"size"`
	ContentType string `json:"content_type,omitempty"`
	Ref         string `json:"ref"`
}

type OrderEvidence struct {
	OrderID    string       `json:"order_id"`
	File       EvidenceFile `json:"file"`
	Notes      string       `json:"notes"`
	UploadedBy string       `json:"uploaded_by"`
	UploadedAt time.Time    `json:"uploaded_at"`
}

type Order struct {
	ID                  string         `json:"id"`
	ServiceID           string         `json:"service_id"`
	BuyerID             string         `json:"buyer_id"`
	BoosterID           string         `json:"booster_id,omitempty"`
	EarningsRecipientID string         `json:"earnings_recipient_id"`
	PricePaid           int64          `json:"price_paid"`
	Currency            Currency       `json:"currency"`
	Status              OrderStatus    `json:"status"`
	Wallet              *WalletRef     `json:"wallet,omitempty"`
	SubBalance          SubBalance     `json:"sub_balance,omitempty"`
	Evidence            *OrderEvidence `json:"evidence,omitempty"`
	RejectionReason     string         `json:"rejection_reason,omitempty"`
	ReviewedBy          string         `json:"reviewed_by,omitempty"`
	EarningsPaid        bool           `json:"earnings_paid"`
	EarningsTxID        string         `json:"earnings_tx_id,omitempty"`
	NeedsReconciliation bool           `json:"needs_reconciliation"`
	ReconciliationError string         `json:"reconciliation_error,omitempty"`
	CreatedAt           time.Time      `json:"created_at"`
	UpdatedAt           time.Time      `json:"updated_at"`
	CompletedAt         *time.Time     `json:"completed_at,omitempty"`
}

type ExchangeQuote struct {
	ID         string     `json:"id"`
	UserID     string     `json:"user_id"`
	From       WalletRef  `json:"from"`
	To         WalletRef  `json:"to"`
	SubBalance SubBalance `json:"sub_balance,omitempty"`
	Amount     int64      `json:"amount"`
	Rate       string     `json:"rate"`
	Gross      int64      `json:"gross"`
	Fee        int64      `json:"fee"`
	Net        int64      `json:"net"`
	ExpiresAt  time.Time  `json:"expires_at"`
	ConsumedAt *time.Time `json:"consumed_at,omitempty"`
}

type ExchangeRate struct {
	From      Currency  `json:"from"`
	To        Currency  `json:"to"`
	Rate      string    `json:"rate"`
	SetBy     string    `json:"set_by"`
	UpdatedAt time.Time `json:"updated_at"`
}

type AuditEntry struct {
	ID         string    `json:"id"`
	ActorID    string    `json:"actor_id"`
	Action     string    `json:"action"`
	EntityType string    `json:"entity_type"`
	EntityID   string    `json:"entity_id"`
	Data       string    `json:"data"`
	CreatedAt  time.Time `json:"created_at"`
}
