package handlers

import (
	"net/http"
	"strings"

	"boostmarket/internal/models"
	"boostmarket/internal/money"
	"boostmarket/internal/services"
)

func (h *Handler) GetWallet(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := caller(w, r)
	if !ok {
		return
	}
	wallet, err := h.wallets.GetOrCreate(r.Context(), userID)
	if err != nil {
		h.respondServiceError(w, r, err, "wallet_unavailable")
		return
	}
	respondJSON(w, http.StatusOK, newWalletView(wallet))
}

func (h *Handler) ListGoldWallets(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := caller(w, r)
	if !ok {
		return
	}
	wallets, err := h.wallets.ListGoldWallets(r.Context(), userID)
	if err != nil {
		h.respondServiceError(w, r, err, "wallet_unavailable")
		return
	}
	out := make([]goldWalletView, 0, len(wallets))
	for _, gold := range wallets {
		out = append(out, newGoldWalletView(gold))
	}
	respondJSON(w, http.StatusOK, out)
}

type openGoldWalletRequest struct {
	RealmID string `json:"realm_id"`
}

func (h *Handler) OpenGoldWallet(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := caller(w, r)
	if !ok {
		return
	}
	var req openGoldWalletRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if strings.TrimSpace(req.RealmID) == "" {
		respondError(w, http.StatusBadRequest, "realm_id is required")
		return
	}
	gold, err := h.wallets.OpenGoldWallet(r.Context(), userID, strings.TrimSpace(req.RealmID))
	if err != nil {
		h.respondServiceError(w, r, err, "open_wallet_failed")
		return
	}
	respondJSON(w, http.StatusCreated, newGoldWalletView(gold))
}

type movementRequest struct {
	walletInput
	SubBalance    string `json:"sub_balance"`
	Amount        string `json:"amount"`
	PaymentMethod string `json:"payment_method"`
}

func (req movementRequest) parse() (models.WalletRef, models.SubBalance, int64, string) {
	ref, err := req.ref()
	if err != nil {
		return models.WalletRef{}, "", 0, "invalid_wallet"
	}
	sub, err := parseSubBalance(req.SubBalance)
	if err != nil {
		return models.WalletRef{}, "", 0, "invalid_sub_balance"
	}
	amount, err := parseAmountMinor(req.Amount)
	if err != nil {
		return models.WalletRef{}, "", 0, "invalid_amount"
	}
	return ref, sub, amount, ""
}

func (h *Handler) Deposit(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := caller(w, r)
	if !ok {
		return
	}
	var req movementRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	ref, sub, amount, code := req.parse()
	if code != "" {
		respondError(w, http.StatusBadRequest, code)
		return
	}
	tx, err := h.wallets.Deposit(r.Context(), services.DepositRequest{
		UserID:        userID,
		Wallet:        ref,
		SubBalance:    sub,
		Amount:        amount,
		PaymentMethod: strings.TrimSpace(req.PaymentMethod),
	})
	if err != nil {
		h.respondServiceError(w, r, err, "deposit_failed")
		return
	}
	respondJSON(w, http.StatusCreated, newTransactionView(tx))
}

func (h *Handler) Withdraw(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := caller(w, r)
	if !ok {
		return
	}
	var req movementRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	ref, sub, amount, code := req.parse()
	if code != "" {
		respondError(w, http.StatusBadRequest, code)
		return
	}
	tx, err := h.wallets.Withdraw(r.Context(), services.WithdrawRequest{
		UserID:        userID,
		Wallet:        ref,
		SubBalance:    sub,
		Amount:        amount,
		PaymentMethod: strings.TrimSpace(req.PaymentMethod),
	})
	if err != nil {
		h.respondServiceError(w, r, err, "withdraw_failed")
		return
	}
	respondJSON(w, http.StatusAccepted, newTransactionView(tx))
}

type convertRequest struct {
	From       walletInput `json:"from"`
	To         walletInput `json:"to"`
	SubBalance string      `json:"sub_balance"`
	Amount     string      `json:"amount"`
	QuoteID    string      `json:"quote_id"`
}

func (req convertRequest) parse(userID string) (services.QuoteRequest, string) {
	from, err := req.From.ref()
	if err != nil {
		return services.QuoteRequest{}, "invalid_from_wallet"
	}
	to, err := req.To.ref()
	if err != nil {
		return services.QuoteRequest{}, "invalid_to_wallet"
	}
	sub, err := parseSubBalance(req.SubBalance)
	if err != nil {
		return services.QuoteRequest{}, "invalid_sub_balance"
	}
	amount, err := parseAmountMinor(req.Amount)
	if err != nil {
		return services.QuoteRequest{}, "invalid_amount"
	}
	return services.QuoteRequest{UserID: userID, From: from, To: to, SubBalance: sub, Amount: amount}, ""
}

func (h *Handler) ConvertQuote(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := caller(w, r)
	if !ok {
		return
	}
	var req convertRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	quoteReq, code := req.parse(userID)
	if code != "" {
		respondError(w, http.StatusBadRequest, code)
		return
	}
	quote, err := h.conversion.CreateQuote(r.Context(), quoteReq)
	if err != nil {
		h.respondServiceError(w, r, err, "quote_failed")
		return
	}
	respondJSON(w, http.StatusCreated, newQuoteView(quote))
}

func (h *Handler) Convert(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := caller(w, r)
	if !ok {
		return
	}
	var req convertRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	quoteReq, code := req.parse(userID)
	if code != "" {
		respondError(w, http.StatusBadRequest, code)
		return
	}
	result, err := h.conversion.Execute(r.Context(), services.ConvertRequest{
		UserID:     quoteReq.UserID,
		From:       quoteReq.From,
		To:         quoteReq.To,
		SubBalance: quoteReq.SubBalance,
		Amount:     quoteReq.Amount,
		QuoteID:    strings.TrimSpace(req.QuoteID),
	})
	if err != nil {
		h.respondServiceError(w, r, err, "conversion_failed")
		return
	}
	respondJSON(w, http.StatusCreated, newConversionView(result))
}

func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := caller(w, r)
	if !ok {
		return
	}
	query := r.URL.Query()
	txType := models.TransactionType(strings.ToLower(query.Get("type")))
	currency := models.Currency(strings.ToLower(query.Get("currency")))
	limit, offset := parsePage(query)

	txs, err := h.wallets.Transactions(r.Context(), userID)
	if err != nil {
		h.respondServiceError(w, r, err, "unable_to_fetch_transactions")
		return
	}
	filtered := make([]models.Transaction, 0, len(txs))
	for _, tx := range txs {
		if txType != "" && tx.Type != txType {
			continue
		}
		if currency != "" && tx.Currency != currency {
			continue
		}
		filtered = append(filtered, tx)
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"transactions": newTransactionViews(services.Paginate(filtered, limit, offset)),
		"total":        len(filtered),
	})
}

func (h *Handler) SelfCheck(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := caller(w, r)
	if !ok {
		return
	}
	checks, err := h.wallets.Reconcile(r.Context(), userID)
	if err != nil {
		h.respondServiceError(w, r, err, "self_check_failed")
		return
	}
	balanced := true
	out := make([]balanceCheckView, 0, len(checks))
	for _, check := range checks {
		if check.Difference != 0 {
			balanced = false
		}
		out = append(out, balanceCheckView{
			BalanceCheck: check,
			Stored:       money.FormatMinor(check.Stored),
			LedgerSum:    money.FormatMinor(check.LedgerSum),
			Difference:   money.FormatMinor(check.Difference),
		})
	}
	respondJSON(w, http.StatusOK, map[string]any{"balanced": balanced, "wallets": out})
}
