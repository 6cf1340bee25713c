package handler

import (
	ledgerapp "github.com/erp/profitledger/internal/application/ledger"
	"github.com/gin-gonic/gin"
)

// LedgerHandler triggers allocation rebuilds
type LedgerHandler struct {
	BaseHandler
	service *ledgerapp.Service
}

// NewLedgerHandler creates a new LedgerHandler
func NewLedgerHandler(service *ledgerapp.Service) *LedgerHandler {
	return &LedgerHandler{service: service}
}

// RebuildResponse is the rebuild payload
type RebuildResponse struct {
	Status string `json:"status"`
	ledgerapp.RebuildResult
}

// RebuildLedger recomputes allocations for ?date_from&date_to (or start/end).
// An overlapping rebuild in progress answers 409 RANGE_LOCKED.
func (h *LedgerHandler) RebuildLedger(c *gin.Context) {
	var q RangeQuery
	if !h.BindQuery(c, &q) {
		return
	}
	from, to, err := q.Dates()
	if err != nil {
		h.HandleError(c, err)
		return
	}

	result, err := h.service.Rebuild(c.Request.Context(), from, to)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, RebuildResponse{Status: "ok", RebuildResult: result})
}
