// Package api holds the dashboard-facing routes. Each handler is thin glue:
// validate input, forward through the outbound client, format the result.
// Anything that fails arrives at gwerror.Respond already classified.
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/tickerdesk/gateway/pkg/gwerror"
	"github.com/tickerdesk/gateway/pkg/upstream"
)

// Quote is a single symbol's latest price snapshot from the backend.
type Quote struct {
	Symbol    string  `json:"symbol"`
	Price     float64 `json:"price"`
	Change    float64 `json:"change"`
	UpdatedAt int64   `json:"updated_at"`
}

// WatchlistEntry is one tracked symbol.
type WatchlistEntry struct {
	Symbol string `json:"symbol"`
	Name   string `json:"name"`
}

// Position is one holding inside a portfolio.
type Position struct {
	Symbol   string  `json:"symbol"`
	Quantity float64 `json:"quantity"`
	AvgPrice float64 `json:"avg_price"`
}

// Portfolio is the account's current holdings.
type Portfolio struct {
	Positions   []Position `json:"positions"`
	CashBalance float64    `json:"cash_balance"`
}

// OrderRequest is the inbound shape for placing an order. The gateway checks
// presence and basic sanity only; real trade validation belongs to the
// backend.
type OrderRequest struct {
	Symbol     string  `json:"symbol"`
	Side       string  `json:"side"`
	Quantity   float64 `json:"quantity"`
	LimitPrice float64 `json:"limit_price,omitempty"`
}

// OrderAck is the backend's answer to a write on /api/orders.
type OrderAck struct {
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
}

// Handler serves the dashboard routes through the outbound client.
type Handler struct {
	client *upstream.Client
	log    *zap.Logger
}

func NewHandler(client *upstream.Client, log *zap.Logger) *Handler {
	return &Handler{client: client, log: log}
}

// RegisterRoutes mounts the dashboard endpoints.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/api/watchlist", h.handleWatchlist)
	r.Get("/api/quotes/{symbol}", h.handleQuote)
	r.Get("/api/portfolio", h.handlePortfolio)
	r.Post("/api/orders", h.handleCreateOrder)
	r.Delete("/api/orders/{id}", h.handleCancelOrder)
}

func (h *Handler) handleWatchlist(w http.ResponseWriter, r *http.Request) {
	entries, err := upstream.Get[[]WatchlistEntry](r.Context(), h.client, "/api/watchlist")
	if err != nil {
		gwerror.Respond(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, entries)
}

func (h *Handler) handleQuote(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")
	if !validSymbol(symbol) {
		gwerror.Respond(w, r, gwerror.WithDetails(gwerror.CodeValidation,
			"invalid symbol", map[string]any{"symbol": symbol}))
		return
	}

	// Quotes move fast; cache them well below the default TTL.
	quote, err := upstream.Get[Quote](r.Context(), h.client, "/api/quotes/"+symbol,
		upstream.WithTTL(5*time.Second))
	if err != nil {
		gwerror.Respond(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, quote)
}

func (h *Handler) handlePortfolio(w http.ResponseWriter, r *http.Request) {
	portfolio, err := upstream.Get[Portfolio](r.Context(), h.client, "/api/portfolio")
	if err != nil {
		gwerror.Respond(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, portfolio)
}

func (h *Handler) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var order OrderRequest
	if err := json.NewDecoder(r.Body).Decode(&order); err != nil {
		gwerror.Respond(w, r, gwerror.New(gwerror.CodeValidation, "invalid request body"))
		return
	}

	if details := validateOrder(order); details != nil {
		gwerror.Respond(w, r, gwerror.WithDetails(gwerror.CodeValidation,
			"invalid order", details))
		return
	}

	ack, err := upstream.Post[OrderAck](r.Context(), h.client, "/api/orders", order)
	if err != nil {
		gwerror.Respond(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, ack)
}

func (h *Handler) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		gwerror.Respond(w, r, gwerror.New(gwerror.CodeValidation, "order id required"))
		return
	}

	ack, err := upstream.Delete[OrderAck](r.Context(), h.client, "/api/orders/"+id, nil)
	if err != nil {
		gwerror.Respond(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, ack)
}

// validateOrder returns nil when the order is well-formed, otherwise a
// details map naming each bad field.
func validateOrder(order OrderRequest) map[string]any {
	details := make(map[string]any)
	if !validSymbol(order.Symbol) {
		details["symbol"] = "required"
	}
	if order.Side != "buy" && order.Side != "sell" {
		details["side"] = "must be buy or sell"
	}
	if order.Quantity <= 0 {
		details["quantity"] = "must be positive"
	}
	if len(details) == 0 {
		return nil
	}
	return details
}

func validSymbol(symbol string) bool {
	if symbol == "" || len(symbol) > 12 {
		return false
	}
	for _, c := range symbol {
		if (c < 'A' || c > 'Z') && (c < '0' || c > '9') && c != '.' {
			return false
		}
	}
	return true
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
