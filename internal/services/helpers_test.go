package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"boostmarket/internal/events"
	"boostmarket/internal/models"
	"boostmarket/internal/store"
	"boostmarket/internal/websocket"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type recordingHub struct {
	mu       sync.Mutex
	balances map[string][]websocket.BalanceUpdate
	orders   []websocket.OrderUpdate
}

func newRecordingHub() *recordingHub {
	return &recordingHub{balances: map[string][]websocket.BalanceUpdate{}}
}

func (h *recordingHub) BroadcastBalance(userID string, update websocket.BalanceUpdate) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.balances[userID] = append(h.balances[userID], update)
}

func (h *recordingHub) BroadcastOrder(_ []string, update websocket.OrderUpdate) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.orders = append(h.orders, update)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, event events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.err
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

// flakyLedger fails Append while failing is set.
type flakyLedger struct {
	*store.LedgerStore
	failing bool
}

func (l *flakyLedger) Append(ctx context.Context, userID string, entries ...models.Transaction) error {
	if l.failing {
		return errors.New("ledger unavailable")
	}
	return l.LedgerStore.Append(ctx, userID, entries...)
}

// flakyOrders fails Save while failing is set.
type flakyOrders struct {
	*store.OrderStore
	failing bool
}

func (o *flakyOrders) Save(ctx context.Context, order models.Order) error {
	if o.failing {
		return errors.New("orders unavailable")
	}
	return o.OrderStore.Save(ctx, order)
}

type fixture struct {
	kv         *store.MemoryKV
	ledger     *flakyLedger
	orderStore *flakyOrders
	audit      *store.AuditStore
	hub        *recordingHub
	publisher  *recordingPublisher
	logs       *observer.ObservedLogs
	wallets    *WalletService
	conversion *ConversionService
	catalog    *CatalogService
	orders     *OrderService
	clock      time.Time
}

type fixtureOption func(*fixtureConfig)

type fixtureConfig struct {
	defaultRealm string
	rates        map[string]string
	fees         map[string]string
}

func withDefaultRealm(realm string) fixtureOption {
	return func(c *fixtureConfig) { c.defaultRealm = realm }
}

func withRates(rates map[string]string) fixtureOption {
	return func(c *fixtureConfig) { c.rates = rates }
}

func newFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()
	cfg := fixtureConfig{
		rates: map[string]string{
			"gold:usd":   "10",
			"gold:toman": "20",
			"usd:toman":  "50000",
			"usd:gold":   "0.1",
		},
		fees: map[string]string{"usd": "0.05", "toman": "0.03"},
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	core, logs := observer.New(zapcore.DebugLevel)
	logger := zap.New(core)
	kv := store.NewMemoryKV()
	f := &fixture{
		kv:         kv,
		ledger:     &flakyLedger{LedgerStore: store.NewLedgerStore(kv)},
		orderStore: &flakyOrders{OrderStore: store.NewOrderStore(kv)},
		audit:      store.NewAuditStore(kv),
		hub:        newRecordingHub(),
		publisher:  &recordingPublisher{},
		logs:       logs,
		clock:      time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	now := func() time.Time { return f.clock }

	f.wallets = NewWalletService(store.NewWalletStore(kv), f.ledger, f.audit, f.hub, f.publisher, logger)
	f.wallets.now = now

	conversion, err := NewConversionService(f.wallets, store.NewExchangeStore(kv), store.NewExchangeQuoteStore(kv), f.audit, f.publisher, logger, ConversionConfig{
		Rates:    cfg.rates,
		Fees:     cfg.fees,
		QuoteTTL: time.Minute,
	})
	require.NoError(t, err)
	conversion.now = now
	f.conversion = conversion

	f.catalog = NewCatalogService(store.NewCatalogStore(kv), f.audit, logger)
	f.catalog.now = now

	f.orders = NewOrderService(f.orderStore, f.catalog, f.wallets, f.audit, f.hub, f.publisher, logger, cfg.defaultRealm)
	f.orders.now = now
	return f
}

func (f *fixture) advance(d time.Duration) {
	f.clock = f.clock.Add(d)
}

func (f *fixture) fund(t *testing.T, userID string, ref models.WalletRef, sub models.SubBalance, amount int64) {
	t.Helper()
	_, err := f.wallets.Credit(context.Background(), Movement{UserID: userID, Wallet: ref, SubBalance: sub, Amount: amount})
	require.NoError(t, err)
}

func (f *fixture) balance(t *testing.T, userID string, ref models.WalletRef, sub models.SubBalance) int64 {
	t.Helper()
	w, err := f.wallets.GetOrCreate(context.Background(), userID)
	require.NoError(t, err)
	amount, _ := w.Balance(ref, sub)
	return amount
}

// requireReconciled asserts every balance bucket matches its ledger sum.
func (f *fixture) requireReconciled(t *testing.T, userID string) {
	t.Helper()
	checks, err := f.wallets.Reconcile(context.Background(), userID)
	require.NoError(t, err)
	for _, check := range checks {
		require.Zerof(t, check.Difference, "bucket %s/%s out of balance", check.WalletID, check.SubBalance)
	}
}

func (f *fixture) listing(t *testing.T, creator string, prices models.Prices) models.ServiceListing {
	t.Helper()
	listing, err := f.catalog.Create(context.Background(), CreateListingRequest{
		CreatedBy:     creator,
		GameID:        "wow",
		ServiceTypeID: "leveling",
		Title:         "Leveling 1-60",
		Prices:        prices,
	})
	require.NoError(t, err)
	return listing
}
