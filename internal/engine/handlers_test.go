package engine_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/papertrade/ledger-engine/internal/engine"
	"github.com/papertrade/ledger-engine/internal/model"
	"github.com/papertrade/ledger-engine/internal/quote"
)

// newRouter wires the service's handlers onto a chi router the way
// cmd/server does.
func newRouter(t *testing.T) (chi.Router, *engine.Service, *quote.MemoryFeed) {
	t.Helper()
	svc, _, feed := newTestEnv(t)

	r := chi.NewRouter()
	r.Post("/api/v1/orders", svc.SubmitOrderHandler)
	r.Get("/api/v1/accounts/{accountID}", svc.GetAccountHandler)
	r.Get("/api/v1/accounts/{accountID}/trades", svc.ListTradesHandler)
	r.Get("/api/v1/trades/{tradeID}/status", svc.GetTradeStatusHandler)
	return r, svc, feed
}

func doOrder(t *testing.T, router chi.Router, req engine.OrderRequest) *httptest.ResponseRecorder {
	t.Helper()
	body, _ := json.Marshal(req)
	httpReq := httptest.NewRequest("POST", "/api/v1/orders", bytes.NewReader(body))
	httpReq.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httpReq)
	return w
}

func TestSubmitOrderHandler_Buy(t *testing.T) {
	router, _, feed := newRouter(t)
	feed.SetPrice("AAPL", d(10))

	w := doOrder(t, router, engine.OrderRequest{
		AccountID: "u1",
		Side:      model.SideBuy,
		Ticker:    "aapl",
		Quantity:  100,
	})

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	var resp engine.OrderResponse
	json.Unmarshal(w.Body.Bytes(), &resp)

	if resp.Trade == nil || resp.Trade.ID == "" {
		t.Fatal("expected a trade with an id")
	}
	if resp.Trade.Ticker != "AAPL" {
		t.Errorf("ticker should be normalized, got %s", resp.Trade.Ticker)
	}
	if !resp.Trade.NetCashDelta.Equal(d(-1003)) {
		t.Errorf("net cash delta = %s, want -1003", resp.Trade.NetCashDelta)
	}
	if resp.Cash != "98997" {
		t.Errorf("cash_balance = %q, want 98997", resp.Cash)
	}
	if resp.Holding == nil || resp.Holding.Quantity != 100 {
		t.Errorf("position = %+v, want qty 100", resp.Holding)
	}
}

func TestSubmitOrderHandler_ValidationErrors(t *testing.T) {
	router, _, feed := newRouter(t)
	feed.SetPrice("AAPL", d(10))

	tests := []struct {
		name string
		req  engine.OrderRequest
		code int
	}{
		{"missing account", engine.OrderRequest{Side: model.SideBuy, Ticker: "AAPL", Quantity: 1}, http.StatusBadRequest},
		{"zero quantity", engine.OrderRequest{AccountID: "u1", Side: model.SideBuy, Ticker: "AAPL"}, http.StatusBadRequest},
		{"bad side", engine.OrderRequest{AccountID: "u1", Side: "hold", Ticker: "AAPL", Quantity: 1}, http.StatusBadRequest},
		{"bad ticker", engine.OrderRequest{AccountID: "u1", Side: model.SideBuy, Ticker: "123", Quantity: 1}, http.StatusBadRequest},
		{"no quote", engine.OrderRequest{AccountID: "u1", Side: model.SideBuy, Ticker: "ZZZZ", Quantity: 1}, http.StatusBadGateway},
	}
	for _, tt := range tests {
		if w := doOrder(t, router, tt.req); w.Code != tt.code {
			t.Errorf("%s: expected %d, got %d: %s", tt.name, tt.code, w.Code, w.Body.String())
		}
	}
}

func TestSubmitOrderHandler_BusinessRejections(t *testing.T) {
	router, svc, feed := newRouter(t)
	svc.SetStartingCash(d(100))
	feed.SetPrice("AAPL", d(10))

	if w := doOrder(t, router, engine.OrderRequest{
		AccountID: "u1", Side: model.SideBuy, Ticker: "AAPL", Quantity: 100,
	}); w.Code != http.StatusUnprocessableEntity {
		t.Errorf("insufficient funds: expected 422, got %d", w.Code)
	}
	if w := doOrder(t, router, engine.OrderRequest{
		AccountID: "u1", Side: model.SideSell, Ticker: "AAPL", Quantity: 1,
	}); w.Code != http.StatusUnprocessableEntity {
		t.Errorf("insufficient holdings: expected 422, got %d", w.Code)
	}
}

func TestGetAccountHandler_CreatesOnFirstUse(t *testing.T) {
	router, _, _ := newRouter(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/api/v1/accounts/newuser", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var a model.Account
	json.Unmarshal(w.Body.Bytes(), &a)
	if !a.CashBalance.Equal(d(100000)) {
		t.Errorf("starting cash = %s, want 100000", a.CashBalance)
	}
	if len(a.Holdings) != 0 {
		t.Errorf("new account should have no holdings, got %+v", a.Holdings)
	}
}

func TestListTradesHandler_AnnotatesStatus(t *testing.T) {
	router, svc, feed := newRouter(t)
	feed.SetPrice("AAPL", d(10))
	doOrder(t, router, engine.OrderRequest{AccountID: "u1", Side: model.SideBuy, Ticker: "AAPL", Quantity: 1})

	// Move the clock to the Monday after the Friday fill.
	svc.SetClock(func() time.Time {
		return time.Date(2025, 8, 18, 10, 0, 0, 0, time.UTC)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/api/v1/accounts/u1/trades", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var trades []model.Trade
	json.Unmarshal(w.Body.Bytes(), &trades)
	if len(trades) != 1 {
		t.Fatalf("expected 1 trade, got %d", len(trades))
	}
	if trades[0].Status != model.StatusSettled {
		t.Errorf("status = %s, want settled", trades[0].Status)
	}
}

func TestGetTradeStatusHandler(t *testing.T) {
	router, _, feed := newRouter(t)
	feed.SetPrice("AAPL", d(10))

	w := doOrder(t, router, engine.OrderRequest{AccountID: "u1", Side: model.SideBuy, Ticker: "AAPL", Quantity: 1})
	var resp engine.OrderResponse
	json.Unmarshal(w.Body.Bytes(), &resp)

	sw := httptest.NewRecorder()
	router.ServeHTTP(sw, httptest.NewRequest("GET", "/api/v1/trades/"+resp.Trade.ID+"/status", nil))
	if sw.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", sw.Code)
	}
	var status engine.TradeStatusResponse
	json.Unmarshal(sw.Body.Bytes(), &status)
	if status.Status != model.StatusPending {
		t.Errorf("status = %s, want pending", status.Status)
	}

	missing := httptest.NewRecorder()
	router.ServeHTTP(missing, httptest.NewRequest("GET", "/api/v1/trades/nope/status", nil))
	if missing.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown trade, got %d", missing.Code)
	}
}
