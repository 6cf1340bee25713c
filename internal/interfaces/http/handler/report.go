package handler

import (
	"strconv"
	"strings"

	reportapp "github.com/erp/profitledger/internal/application/report"
	"github.com/erp/profitledger/internal/domain/businessday"
	"github.com/erp/profitledger/internal/domain/ledger"
	"github.com/erp/profitledger/internal/domain/report"
	"github.com/erp/profitledger/internal/domain/shared"
	"github.com/gin-gonic/gin"
)

// ReportHandler serves the profit, deficit and stock reports
type ReportHandler struct {
	BaseHandler
	service  *reportapp.Service
	currency string
}

// NewReportHandler creates a new ReportHandler. currency only tags responses.
func NewReportHandler(service *reportapp.Service, currency string) *ReportHandler {
	return &ReportHandler{service: service, currency: currency}
}

// PolicyQuery holds the per-request business-day overrides
type PolicyQuery struct {
	UseBD   string `form:"use_bd"`
	BDStart string `form:"bd_start"`
	TZ      string `form:"tz"`
}

// SummaryQuery holds /summary parameters
type SummaryQuery struct {
	RangeQuery
	PolicyQuery
	GroupBy string `form:"group_by"`
}

// OrderSummaryQuery holds /orders/summary parameters
type OrderSummaryQuery struct {
	RangeQuery
	PolicyQuery
}

// SummaryResponse is the /summary payload
type SummaryResponse struct {
	Currency string `json:"currency"`
	report.ProfitSummary
}

// BySKUResponse is the /by-sku payload
type BySKUResponse struct {
	Currency string          `json:"currency"`
	Rows     []report.SKURow `json:"rows"`
}

// StockResponse is the /stock payload
type StockResponse struct {
	Rows []report.StockRow `json:"rows"`
}

// Summary buckets profit by business day, week, month or total
func (h *ReportHandler) Summary(c *gin.Context) {
	var q SummaryQuery
	if !h.BindQuery(c, &q) {
		return
	}
	r, err := dateRange(q.RangeQuery)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	policy, err := h.policy(q.PolicyQuery)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	summary, err := h.service.Summarize(c.Request.Context(), reportapp.SummaryQuery{
		Range:   r,
		GroupBy: report.GroupBy(strings.TrimSpace(q.GroupBy)),
		Policy:  &policy,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, SummaryResponse{Currency: h.currency, ProfitSummary: summary})
}

// OrderSummary counts orders per business day, including empty days
func (h *ReportHandler) OrderSummary(c *gin.Context) {
	var q OrderSummaryQuery
	if !h.BindQuery(c, &q) {
		return
	}
	r, err := dateRange(q.RangeQuery)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	policy, err := h.policy(q.PolicyQuery)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	counts, err := h.service.OrderCounts(c.Request.Context(), r, &policy)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, counts)
}

func (h *ReportHandler) policy(q PolicyQuery) (businessday.Policy, error) {
	useBD, err := parseOptionalBool("use_bd", q.UseBD)
	if err != nil {
		return businessday.Policy{}, err
	}
	return h.service.PolicyFor(reportapp.PolicyOverride{
		UseBusinessDay: useBD,
		DayStart:       strings.TrimSpace(q.BDStart),
		Timezone:       strings.TrimSpace(q.TZ),
	})
}

// BySKU ranks SKUs by profit. limit defaults to 20.
func (h *ReportHandler) BySKU(c *gin.Context) {
	var q RangeQuery
	if !h.BindQuery(c, &q) {
		return
	}
	r, err := dateRange(q)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	limit := reportapp.DefaultSKULimit
	if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
		if limit, err = strconv.Atoi(raw); err != nil {
			h.HandleError(c, shared.InvalidArgumentError("invalid limit %q", raw))
			return
		}
	}

	rows, err := h.service.BySKU(c.Request.Context(), r, limit)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, BySKUResponse{Currency: h.currency, Rows: rows})
}

// Deficits reports uncovered sale quantity per SKU
func (h *ReportHandler) Deficits(c *gin.Context) {
	var q RangeQuery
	if !h.BindQuery(c, &q) {
		return
	}
	r, err := dateRange(q)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	out, err := h.service.Deficits(c.Request.Context(), r)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, out)
}

// Stock reports stock on hand. ?sku may repeat or hold a comma separated list.
func (h *ReportHandler) Stock(c *gin.Context) {
	rows, err := h.service.Stock(c.Request.Context(), splitList(c.QueryArray("sku")))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, StockResponse{Rows: rows})
}

func dateRange(q RangeQuery) (ledger.DateRange, error) {
	from, to, err := q.Dates()
	if err != nil {
		return ledger.DateRange{}, err
	}
	return ledger.NewDateRange(from, to)
}
