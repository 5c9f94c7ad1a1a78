package engine

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/papertrade/ledger-engine/internal/model"
	"github.com/papertrade/ledger-engine/internal/quote"
	"github.com/papertrade/ledger-engine/internal/risk"
	"github.com/papertrade/ledger-engine/internal/store"
	"github.com/papertrade/ledger-engine/internal/symbol"
)

// OrderRequest is the JSON body for POST /api/v1/orders.
type OrderRequest struct {
	AccountID string `json:"account_id"`
	Side      string `json:"side"`   // "buy" or "sell"
	Ticker    string `json:"ticker"` // e.g. "AAPL"
	Quantity  int64  `json:"quantity"`
}

// OrderResponse is the JSON body returned from POST /api/v1/orders.
type OrderResponse struct {
	Trade   *model.Trade    `json:"trade"`
	Cash    string          `json:"cash_balance"`
	Holding *model.Position `json:"position,omitempty"` // post-trade position, if any
}

// TradeStatusResponse is the JSON body for GET /api/v1/trades/{tradeID}/status.
type TradeStatusResponse struct {
	TradeID string `json:"trade_id"`
	Status  string `json:"status"`
}

// SubmitOrderHandler handles POST /api/v1/orders.
func (s *Service) SubmitOrderHandler(w http.ResponseWriter, r *http.Request) {
	var req OrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.AccountID == "" {
		writeError(w, "account_id is required", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	trade, err := s.SubmitOrder(ctx, req.AccountID, req.Side, req.Ticker, req.Quantity)
	if err != nil {
		writeError(w, err.Error(), statusFor(err))
		return
	}

	slog.Info("order executed",
		"trade_id", trade.ID,
		"account", trade.AccountID,
		"side", trade.Side,
		"ticker", trade.Ticker,
		"qty", trade.Quantity,
		"fill_price", trade.FillPrice.String(),
		"commission", trade.Commission.String(),
		"settles_on", trade.SettlesOn.Format("2006-01-02"),
	)

	resp := OrderResponse{Trade: trade}
	if acct, err := s.store.GetAccount(ctx, trade.AccountID); err == nil {
		resp.Cash = acct.CashBalance.String()
		if pos, ok := acct.Holdings[trade.Ticker]; ok {
			resp.Holding = &pos
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(resp)
}

// GetAccountHandler handles GET /api/v1/accounts/{accountID}.
func (s *Service) GetAccountHandler(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountID")

	acct, err := s.GetAccountSnapshot(r.Context(), accountID)
	if err != nil {
		writeError(w, err.Error(), statusFor(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(acct)
}

// ListTradesHandler handles GET /api/v1/accounts/{accountID}/trades.
func (s *Service) ListTradesHandler(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountID")

	trades, err := s.ListTrades(r.Context(), accountID)
	if err != nil {
		writeError(w, err.Error(), statusFor(err))
		return
	}
	if trades == nil {
		trades = []model.Trade{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(trades)
}

// GetTradeStatusHandler handles GET /api/v1/trades/{tradeID}/status.
func (s *Service) GetTradeStatusHandler(w http.ResponseWriter, r *http.Request) {
	tradeID := chi.URLParam(r, "tradeID")

	status, err := s.GetTradeStatus(r.Context(), tradeID)
	if err != nil {
		writeError(w, err.Error(), statusFor(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(TradeStatusResponse{TradeID: tradeID, Status: status})
}

// statusFor maps the failure taxonomy onto HTTP statuses: validation 400,
// business rules 422, missing entities 404, transient infrastructure 503.
func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrInvalidQuantity),
		errors.Is(err, ErrInvalidSide),
		errors.Is(err, symbol.ErrInvalidTicker):
		return http.StatusBadRequest
	case errors.Is(err, ErrInsufficientFunds),
		errors.Is(err, ErrInsufficientHoldings),
		errors.Is(err, risk.ErrPositionLimitExceeded),
		errors.Is(err, risk.ErrNotionalLimitExceeded):
		return http.StatusUnprocessableEntity
	case errors.Is(err, store.ErrAccountNotFound),
		errors.Is(err, store.ErrTradeNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrQuoteUnavailable), errors.Is(err, quote.ErrNoQuote):
		return http.StatusBadGateway
	case errors.Is(err, ErrConflictExhausted):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
