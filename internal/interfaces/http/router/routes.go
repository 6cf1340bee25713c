package router

import (
	"github.com/erp/profitledger/internal/interfaces/http/handler"
	"github.com/erp/profitledger/internal/interfaces/http/middleware"
)

// Handlers are the HTTP handlers served under /api/v1.
type Handlers struct {
	System *handler.SystemHandler
	Ledger *handler.LedgerHandler
	Report *handler.ReportHandler
	Ingest *handler.IngestHandler
}

// RegisterLedgerAPI registers the ledger routes. Mutating routes sit behind
// the API key guard, which is a no-op when apiKey is empty.
func RegisterLedgerAPI(r *Router, h Handlers, apiKey string) {
	system := NewDomainGroup("")
	system.GET("/health", h.System.Health)
	system.GET("/db/ping", h.System.DBPing)
	r.Register(system)

	reports := NewDomainGroup("")
	reports.GET("/summary", h.Report.Summary)
	reports.GET("/by-sku", h.Report.BySKU)
	reports.GET("/deficits", h.Report.Deficits)
	reports.GET("/stock", h.Report.Stock)
	reports.GET("/orders/summary", h.Report.OrderSummary)
	r.Register(reports)

	mutations := NewDomainGroup("").Use(middleware.APIKey(apiKey))
	mutations.POST("/rebuild-ledger", h.Ledger.RebuildLedger)
	mutations.POST("/orders/upsert-bulk", h.Ingest.UpsertOrdersBulk)
	mutations.POST("/batches", h.Ingest.AddBatch)
	r.Register(mutations)
}
