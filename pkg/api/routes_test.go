package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tickerdesk/gateway/pkg/cache"
	"github.com/tickerdesk/gateway/pkg/gwerror"
	"github.com/tickerdesk/gateway/pkg/requestid"
	"github.com/tickerdesk/gateway/pkg/upstream"
)

// newGateway wires a router around a test backend, the way main does.
func newGateway(t *testing.T, backend http.Handler) (*chi.Mux, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(backend)
	t.Cleanup(srv.Close)

	client, err := upstream.New(upstream.Config{
		BaseURL:    srv.URL,
		Timeout:    time.Second,
		MaxRetries: 0,
		BaseDelay:  time.Millisecond,
		DefaultTTL: time.Minute,
	}, cache.NewLocal(time.Minute, 0, time.Minute), zap.NewNop())
	require.NoError(t, err)

	r := chi.NewRouter()
	r.Use(requestid.Middleware)
	NewHandler(client, zap.NewNop()).RegisterRoutes(r)
	return r, srv
}

func TestWatchlistPassthrough(t *testing.T) {
	r, _ := newGateway(t, http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		require.Equal(t, "/api/watchlist", req.URL.Path)
		json.NewEncoder(w).Encode([]WatchlistEntry{{Symbol: "AAPL", Name: "Apple Inc."}})
	}))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/watchlist", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var entries []WatchlistEntry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "AAPL", entries[0].Symbol)
}

func TestQuoteRejectsInvalidSymbol(t *testing.T) {
	r, _ := newGateway(t, http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		t.Error("invalid symbols must never reach the backend")
	}))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/quotes/not-a-symbol", nil))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var gwErr gwerror.Error
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &gwErr))
	assert.Equal(t, gwerror.CodeValidation, gwErr.Code)
	assert.NotEmpty(t, gwErr.RequestID)
}

func TestQuoteFetchesSymbol(t *testing.T) {
	r, _ := newGateway(t, http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		require.Equal(t, "/api/quotes/MSFT", req.URL.Path)
		json.NewEncoder(w).Encode(Quote{Symbol: "MSFT", Price: 421.5})
	}))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/quotes/MSFT", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var quote Quote
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &quote))
	assert.Equal(t, 421.5, quote.Price)
}

func TestCreateOrderValidation(t *testing.T) {
	r, _ := newGateway(t, http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		t.Error("invalid orders must never reach the backend")
	}))

	body, _ := json.Marshal(OrderRequest{Symbol: "", Side: "hold", Quantity: -1})
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/orders", bytes.NewReader(body)))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var gwErr gwerror.Error
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &gwErr))
	assert.Equal(t, gwerror.CodeValidation, gwErr.Code)
	assert.Contains(t, gwErr.Details, "symbol")
	assert.Contains(t, gwErr.Details, "side")
	assert.Contains(t, gwErr.Details, "quantity")
}

func TestCreateOrderForwardsToBackend(t *testing.T) {
	r, _ := newGateway(t, http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		require.Equal(t, http.MethodPost, req.Method)
		var order OrderRequest
		require.NoError(t, json.NewDecoder(req.Body).Decode(&order))
		assert.Equal(t, "AAPL", order.Symbol)
		json.NewEncoder(w).Encode(OrderAck{OrderID: "ord-1", Status: "accepted"})
	}))

	body, _ := json.Marshal(OrderRequest{Symbol: "AAPL", Side: "buy", Quantity: 10})
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/orders", bytes.NewReader(body)))

	require.Equal(t, http.StatusCreated, rec.Code)
	var ack OrderAck
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ack))
	assert.Equal(t, "ord-1", ack.OrderID)
}

func TestCancelOrderForwardsToBackend(t *testing.T) {
	r, _ := newGateway(t, http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		require.Equal(t, http.MethodDelete, req.Method)
		require.Equal(t, "/api/orders/ord-9", req.URL.Path)
		json.NewEncoder(w).Encode(OrderAck{OrderID: "ord-9", Status: "cancelled"})
	}))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/orders/ord-9", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var ack OrderAck
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ack))
	assert.Equal(t, "cancelled", ack.Status)
}

func TestUpstreamErrorReachesCallerClassified(t *testing.T) {
	r, _ := newGateway(t, http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(map[string]string{"error": "order already filled"})
	}))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/orders/ord-9", nil))

	require.Equal(t, http.StatusConflict, rec.Code)
	var gwErr gwerror.Error
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &gwErr))
	assert.Equal(t, gwerror.CodeConflict, gwErr.Code)
	assert.Equal(t, "order already filled", gwErr.Message)
	assert.NotEmpty(t, gwErr.RequestID, "error bodies always carry the correlation id")
}
