package handlers

import (
	"sort"
	"time"

	"boostmarket/internal/models"
	"boostmarket/internal/money"
	"boostmarket/internal/services"
)

// Amounts leave the API as decimal strings.

type staticWalletView struct {
	Currency models.Currency `json:"currency"`
	Balance  string          `json:"balance"`
}

type goldWalletView struct {
	RealmID          string    `json:"realm_id"`
	WithdrawableGold string    `json:"withdrawable_gold"`
	SuspendedGold    string    `json:"suspended_gold"`
	Total            string    `json:"total"`
	CreatedAt        time.Time `json:"created_at"`
}

type walletView struct {
	UserID        string             `json:"user_id"`
	StaticWallets []staticWalletView `json:"static_wallets"`
	GoldWallets   []goldWalletView   `json:"gold_wallets"`
	UpdatedAt     time.Time          `json:"updated_at"`
}

func newGoldWalletView(gold models.GoldWallet) goldWalletView {
	return goldWalletView{
		RealmID:          gold.RealmID,
		WithdrawableGold: money.FormatMinor(gold.WithdrawableGold),
		SuspendedGold:    money.FormatMinor(gold.SuspendedGold),
		Total:            money.FormatMinor(gold.Total()),
		CreatedAt:        gold.CreatedAt,
	}
}

func newWalletView(w models.MultiWallet) walletView {
	view := walletView{
		UserID:        w.UserID,
		StaticWallets: make([]staticWalletView, 0, len(models.StaticCurrencies)),
		GoldWallets:   make([]goldWalletView, 0, len(w.GoldWallets)),
		UpdatedAt:     w.UpdatedAt,
	}
	for _, currency := range models.StaticCurrencies {
		view.StaticWallets = append(view.StaticWallets, staticWalletView{
			Currency: currency,
			Balance:  money.FormatMinor(w.StaticWallets[currency].Balance),
		})
	}
	for _, gold := range w.GoldWallets {
		view.GoldWallets = append(view.GoldWallets, newGoldWalletView(gold))
	}
	sort.Slice(view.GoldWallets, func(i, j int) bool { return view.GoldWallets[i].RealmID < view.GoldWallets[j].RealmID })
	return view
}

type transactionView struct {
	models.Transaction
	Amount string `json:"amount"`
}

func newTransactionView(tx models.Transaction) transactionView {
	return transactionView{Transaction: tx, Amount: money.FormatMinor(tx.Amount)}
}

func newTransactionViews(txs []models.Transaction) []transactionView {
	out := make([]transactionView, 0, len(txs))
	for _, tx := range txs {
		out = append(out, newTransactionView(tx))
	}
	return out
}

type quoteView struct {
	models.ExchangeQuote
	Amount string `json:"amount"`
	Gross  string `json:"gross"`
	Fee    string `json:"fee"`
	Net    string `json:"net"`
}

func newQuoteView(q models.ExchangeQuote) quoteView {
	return quoteView{
		ExchangeQuote: q,
		Amount:        money.FormatMinor(q.Amount),
		Gross:         money.FormatMinor(q.Gross),
		Fee:           money.FormatMinor(q.Fee),
		Net:           money.FormatMinor(q.Net),
	}
}

type conversionView struct {
	Debit  transactionView `json:"debit"`
	Credit transactionView `json:"credit"`
	Rate   string          `json:"rate"`
	Gross  string          `json:"gross"`
	Fee    string          `json:"fee"`
	Net    string          `json:"net"`
}

func newConversionView(result services.ConversionResult) conversionView {
	return conversionView{
		Debit:  newTransactionView(result.Debit),
		Credit: newTransactionView(result.Credit),
		Rate:   result.Quote.Rate.String(),
		Gross:  money.FormatMinor(result.Quote.Gross),
		Fee:    money.FormatMinor(result.Quote.Fee),
		Net:    money.FormatMinor(result.Quote.Net),
	}
}

type balanceCheckView struct {
	services.BalanceCheck
	Stored     string `json:"stored"`
	LedgerSum  string `json:"ledger_sum"`
	Difference string `json:"difference"`
}

type priceView struct {
	Gold  string `json:"gold,omitempty"`
	USD   string `json:"usd,omitempty"`
	Toman string `json:"toman,omitempty"`
}

func formatPrice(value int64) string {
	if value <= 0 {
		return ""
	}
	return money.FormatMinor(value)
}

type listingView struct {
	models.ServiceListing
	Prices priceView `json:"prices"`
}

func newListingView(l models.ServiceListing) listingView {
	return listingView{
		ServiceListing: l,
		Prices: priceView{
			Gold:  formatPrice(l.Prices.Gold),
			USD:   formatPrice(l.Prices.USD),
			Toman: formatPrice(l.Prices.Toman),
		},
	}
}

type orderView struct {
	models.Order
	PricePaid string `json:"price_paid"`
}

func newOrderView(o models.Order) orderView {
	return orderView{Order: o, PricePaid: money.FormatMinor(o.PricePaid)}
}

func newOrderViews(orders []models.Order) []orderView {
	out := make([]orderView, 0, len(orders))
	for _, order := range orders {
		out = append(out, newOrderView(order))
	}
	return out
}
