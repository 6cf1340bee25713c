package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/erp/profitledger/internal/application/ingest"
	ledgerapp "github.com/erp/profitledger/internal/application/ledger"
	reportapp "github.com/erp/profitledger/internal/application/report"
	"github.com/erp/profitledger/internal/domain/businessday"
	"github.com/erp/profitledger/internal/infrastructure/config"
	"github.com/erp/profitledger/internal/infrastructure/lock"
	"github.com/erp/profitledger/internal/infrastructure/persistence"
	"github.com/erp/profitledger/internal/interfaces/http/dto"
	"github.com/erp/profitledger/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fixture struct {
	engine *gin.Engine
	db     *persistence.Database
	store  *persistence.LedgerStore
	locker *lock.LocalRangeLocker
}

// newFixture serves every handler over in-memory SQLite. Business days run
// from midnight UTC so dates in the tests read as plain calendar days.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := persistence.NewDatabase(&config.DatabaseConfig{Driver: config.DriverSQLite, SQLitePath: ":memory:"}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.AutoMigrate())

	policy, err := businessday.NewPolicy("UTC", "00:00")
	require.NoError(t, err)

	log := zaptest.NewLogger(t)
	store := persistence.NewLedgerStore(db.DB)
	locker := lock.NewLocalRangeLocker()

	system := NewSystemHandler("profit-ledger", db)
	ledgerH := NewLedgerHandler(ledgerapp.NewService(store, locker, nil, log))
	reportH := NewReportHandler(reportapp.NewService(store, policy, log), "KZT")
	ingestH := NewIngestHandler(ingest.NewService(store, log))

	middleware.SetupValidator()
	engine := gin.New()
	engine.Use(middleware.RequestID())
	engine.GET("/health", system.Health)
	engine.GET("/db/ping", system.DBPing)
	engine.POST("/rebuild-ledger", ledgerH.RebuildLedger)
	engine.GET("/summary", reportH.Summary)
	engine.GET("/by-sku", reportH.BySKU)
	engine.GET("/deficits", reportH.Deficits)
	engine.GET("/stock", reportH.Stock)
	engine.GET("/orders/summary", reportH.OrderSummary)
	engine.POST("/orders/upsert-bulk", ingestH.UpsertOrdersBulk)
	engine.POST("/batches", ingestH.AddBatch)

	return &fixture{engine: engine, db: db, store: store, locker: locker}
}

func (f *fixture) do(t *testing.T, method, target string, body any) (*httptest.ResponseRecorder, dto.Response) {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)

	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return w, resp
}

// seed posts a batch of 5 at 10, a batch of 5 at 12 and one order of 8 units at 100.
func (f *fixture) seed(t *testing.T) {
	t.Helper()
	for _, b := range []string{
		`{"sku":"A","date":"2024-01-01","qty":5,"unit_cost":10}`,
		`{"sku":"A","date":"2024-01-05","qty":5,"unit_cost":"12"}`,
	} {
		w, _ := f.do(t, http.MethodPost, "/batches", b)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	}
	w, _ := f.do(t, http.MethodPost, "/orders/upsert-bulk", `{"orders":[
		{"id":"o-1","date":"2024-01-06T10:00:00Z","items":[{"sku":"A","qty":8,"unit_price":100}]}
	]}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func data(t *testing.T, resp dto.Response) map[string]any {
	t.Helper()
	m, ok := resp.Data.(map[string]any)
	require.True(t, ok, "data is %T", resp.Data)
	return m
}
