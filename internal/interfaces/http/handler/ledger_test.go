package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/erp/profitledger/internal/domain/businessday"
	"github.com/erp/profitledger/internal/domain/ledger"
	"github.com/erp/profitledger/internal/domain/shared"
	"github.com/erp/profitledger/internal/interfaces/http/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedgerHandler_RebuildLedger(t *testing.T) {
	f := newFixture(t)
	f.seed(t)

	w, resp := f.do(t, http.MethodPost, "/rebuild-ledger?date_from=2024-01-06&date_to=2024-01-06", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	d := data(t, resp)
	assert.Equal(t, "ok", d["status"])
	assert.Equal(t, float64(2), d["recomputed"])
	assert.Equal(t, float64(1), d["sale_lines"])
	assert.Equal(t, "2024-01-06", d["date_from"])
	assert.Equal(t, float64(0), d["deficits"])
}

func TestLedgerHandler_RebuildAliases(t *testing.T) {
	f := newFixture(t)
	f.seed(t)

	w, resp := f.do(t, http.MethodPost, "/rebuild-ledger?start=2024-01-01&end=2024-01-31", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, float64(2), data(t, resp)["recomputed"])
}

func TestLedgerHandler_RebuildErrors(t *testing.T) {
	tests := []struct {
		name   string
		target string
		status int
		code   string
	}{
		{"missing dates", "/rebuild-ledger", http.StatusUnprocessableEntity, shared.CodeValidation},
		{"missing date_to", "/rebuild-ledger?date_from=2024-01-01", http.StatusUnprocessableEntity, shared.CodeValidation},
		{"malformed date", "/rebuild-ledger?date_from=2024-1-1&date_to=2024-01-02", http.StatusBadRequest, shared.CodeInvalidArgument},
		{"reversed range", "/rebuild-ledger?date_from=2024-01-05&date_to=2024-01-04", http.StatusBadRequest, shared.CodeInvalidRange},
		{"range too long", "/rebuild-ledger?date_from=2024-01-01&date_to=2025-01-01", http.StatusBadRequest, shared.CodeInvalidArgument},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			w, resp := f.do(t, http.MethodPost, tt.target, nil)

			assert.Equal(t, tt.status, w.Code)
			assert.False(t, resp.Success)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.code, resp.Error.Code)
			assert.Equal(t, w.Header().Get(middleware.HeaderRequestID), resp.Error.RequestID)
		})
	}
}

func TestLedgerHandler_RebuildLocked(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	release, err := f.locker.Lock(ctx, ledger.DateRange{From: businessday.Date(2024, 1, 1), To: businessday.Date(2024, 1, 31)})
	require.NoError(t, err)
	defer func() { _ = release(ctx) }()

	w, resp := f.do(t, http.MethodPost, "/rebuild-ledger?date_from=2024-01-10&date_to=2024-01-10", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	require.NotNil(t, resp.Error)
	assert.Equal(t, shared.CodeRangeLocked, resp.Error.Code)
}
