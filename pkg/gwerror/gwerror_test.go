package gwerror

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tickerdesk/gateway/pkg/requestid"
)

func TestNewPinsStatusToCode(t *testing.T) {
	cases := []struct {
		code   Code
		status int
	}{
		{CodeValidation, http.StatusBadRequest},
		{CodeUnauthorized, http.StatusUnauthorized},
		{CodeForbidden, http.StatusForbidden},
		{CodeNotFound, http.StatusNotFound},
		{CodeConflict, http.StatusConflict},
		{CodeRateLimited, http.StatusTooManyRequests},
		{CodeInternal, http.StatusInternalServerError},
		{CodeGateway, http.StatusBadGateway},
		{CodeUnavailable, http.StatusServiceUnavailable},
		{CodeTimeout, http.StatusGatewayTimeout},
	}

	for _, tc := range cases {
		t.Run(string(tc.code), func(t *testing.T) {
			e := New(tc.code, "boom")
			assert.Equal(t, tc.status, e.Status)
			assert.Equal(t, tc.code, e.Code)
			assert.NotZero(t, e.Timestamp)
		})
	}
}

func TestNewCoercesUnknownCode(t *testing.T) {
	e := New(Code("MADE_UP"), "boom")
	assert.Equal(t, CodeInternal, e.Code)
	assert.Equal(t, http.StatusInternalServerError, e.Status)
}

func TestFromStatusMapsCleanStatuses(t *testing.T) {
	cases := map[int]Code{
		400: CodeValidation,
		401: CodeUnauthorized,
		403: CodeForbidden,
		404: CodeNotFound,
		409: CodeConflict,
		429: CodeRateLimited,
		502: CodeGateway,
		503: CodeUnavailable,
		504: CodeTimeout,
	}
	for status, want := range cases {
		e := FromStatus(status, "msg")
		assert.Equal(t, want, e.Code, "status %d", status)
		assert.Equal(t, status, e.Status)
	}
}

func TestFromStatusCoercesUnmappedStatuses(t *testing.T) {
	for _, status := range []int{418, 500, 501, 422} {
		e := FromStatus(status, "msg")
		assert.Equal(t, CodeInternal, e.Code, "status %d", status)
		assert.Equal(t, http.StatusInternalServerError, e.Status)
	}
}

func TestCoercePassesTypedErrorsThrough(t *testing.T) {
	orig := New(CodeNotFound, "missing")
	got := Coerce(orig)
	assert.Same(t, orig, got)

	wrapped := fmt.Errorf("handler: %w", orig)
	got = Coerce(wrapped)
	assert.Same(t, orig, got)
}

func TestCoerceHidesRawInternals(t *testing.T) {
	got := Coerce(errors.New("pq: connection string secret=hunter2"))
	assert.Equal(t, CodeInternal, got.Code)
	assert.Equal(t, "internal server error", got.Message)
}

func TestRespondRoundTrip(t *testing.T) {
	e := WithDetails(CodeConflict, "order already cancelled", map[string]any{"order_id": "42"})
	e.RequestID = "req-123"

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/orders/42", nil)
	Respond(rec, req, e)

	require.Equal(t, http.StatusConflict, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var parsed Error
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &parsed))
	assert.Equal(t, e.Code, parsed.Code)
	assert.Equal(t, e.Status, parsed.Status)
	assert.Equal(t, e.Message, parsed.Message)
	assert.Equal(t, e.RequestID, parsed.RequestID)
	assert.Equal(t, e.Timestamp, parsed.Timestamp)
	assert.Equal(t, "42", parsed.Details["order_id"])
}

func TestRespondAttachesRequestIDFromContext(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/watchlist", nil)
	req = req.WithContext(requestid.WithRequestID(req.Context(), "ctx-id"))

	Respond(rec, req, New(CodeGateway, "upstream unreachable"))

	var parsed Error
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &parsed))
	assert.Equal(t, "ctx-id", parsed.RequestID)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestRespondCoercesUntypedErrors(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	Respond(rec, req, errors.New("boom"))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	var parsed Error
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &parsed))
	assert.Equal(t, CodeInternal, parsed.Code)
	assert.NotContains(t, parsed.Message, "boom")
}
