package handler

import (
	"github.com/erp/profitledger/internal/application/ingest"
	"github.com/gin-gonic/gin"
)

// IngestHandler accepts orders and cost batches
type IngestHandler struct {
	BaseHandler
	service *ingest.Service
}

// NewIngestHandler creates a new IngestHandler
func NewIngestHandler(service *ingest.Service) *IngestHandler {
	return &IngestHandler{service: service}
}

// UpsertOrdersRequest is the bulk upsert body
type UpsertOrdersRequest struct {
	Orders []ingest.OrderInput `json:"orders" binding:"required"`
}

// UpsertOrdersBulk inserts or replaces orders with their lines
func (h *IngestHandler) UpsertOrdersBulk(c *gin.Context) {
	var req UpsertOrdersRequest
	if !h.BindJSON(c, &req) {
		return
	}
	stats, err := h.service.UpsertOrders(c.Request.Context(), req.Orders)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, stats)
}

// AddBatch records a cost lot
func (h *IngestHandler) AddBatch(c *gin.Context) {
	var req ingest.BatchInput
	if !h.BindJSON(c, &req) {
		return
	}
	b, err := h.service.AddBatch(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, BatchResponse{
		ID:         b.ID,
		SKU:        b.SKU,
		IntakeDate: b.IntakeDate.Format("2006-01-02"),
		Qty:        b.QuantityIn,
		UnitCost:   b.UnitCost.String(),
		Note:       b.Note,
	})
}

// BatchResponse is a recorded cost lot
type BatchResponse struct {
	ID         int64  `json:"id"`
	SKU        string `json:"sku"`
	IntakeDate string `json:"date"`
	Qty        int64  `json:"qty"`
	UnitCost   string `json:"unit_cost"`
	Note       string `json:"note,omitempty"`
}
