package handler

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"marketplace-ledger/internal/adapter/http/dto"
	"marketplace-ledger/internal/adapter/http/middleware"
	"marketplace-ledger/internal/core/ports"
	"marketplace-ledger/pkg/apperror"
	"marketplace-ledger/pkg/response"

	"github.com/gin-gonic/gin"
)

// PayoutHandler handles the admin payout endpoints.
type PayoutHandler struct {
	payoutSvc ports.PayoutService
}

// NewPayoutHandler creates a new PayoutHandler.
func NewPayoutHandler(payoutSvc ports.PayoutService) *PayoutHandler {
	return &PayoutHandler{payoutSvc: payoutSvc}
}

// ListPayable handles GET /api/v1/payouts/payable.
func (h *PayoutHandler) ListPayable(c *gin.Context) {
	wallets, err := h.payoutSvc.ListPayableMerchants(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]dto.PayableMerchantResponse, 0, len(wallets))
	for _, w := range wallets {
		items = append(items, dto.PayableMerchantResponse{
			MerchantID: w.OwnerID,
			Balance:    w.Balance,
			Currency:   w.Currency,
		})
	}
	response.OK(c, items)
}

// Export handles GET /api/v1/payouts/export. It streams the reconciliation
// preview as a CSV download for the manual bank transfer run.
func (h *PayoutHandler) Export(c *gin.Context) {
	wallets, err := h.payoutSvc.ListPayableMerchants(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	now := time.Now().UTC()
	rows := h.payoutSvc.BuildReconciliationExport(wallets, now)

	filename := fmt.Sprintf("payouts-%s.csv", now.Format("2006-01-02"))
	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Status(http.StatusOK)

	w := csv.NewWriter(c.Writer)
	_ = w.Write([]string{"merchant_id", "original_amount", "payout_commission", "final_amount", "date"})
	for _, row := range rows {
		_ = w.Write([]string{
			row.MerchantID,
			strconv.FormatInt(row.OriginalAmount, 10),
			strconv.FormatInt(row.PayoutCommission, 10),
			strconv.FormatInt(row.FinalAmount, 10),
			row.Date,
		})
	}
	w.Flush()
}

// Execute handles POST /api/v1/payouts/:merchantId.
func (h *PayoutHandler) Execute(c *gin.Context) {
	adminID := c.GetString(middleware.CtxActorID)

	result, err := h.payoutSvc.ExecutePayout(c.Request.Context(), c.Param("merchantId"), adminID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, result)
}

// ExecuteBulk handles POST /api/v1/payouts/bulk.
func (h *PayoutHandler) ExecuteBulk(c *gin.Context) {
	adminID := c.GetString(middleware.CtxActorID)

	var req dto.BulkPayoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	results := h.payoutSvc.ExecuteBulkPayout(c.Request.Context(), req.MerchantIDs, adminID)

	items := make([]dto.BulkPayoutEntryResponse, 0, len(results))
	for _, r := range results {
		entry := dto.BulkPayoutEntryResponse{MerchantID: r.MerchantID, Result: r.Result}
		if r.Err != nil {
			entry.Error = r.Err.Error()
		}
		items = append(items, entry)
	}
	response.OK(c, items)
}
