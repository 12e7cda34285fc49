package handler

import (
	"marketplace-ledger/internal/adapter/http/dto"
	"marketplace-ledger/internal/adapter/http/middleware"
	"marketplace-ledger/internal/core/ports"
	"marketplace-ledger/pkg/apperror"
	"marketplace-ledger/pkg/response"

	"github.com/gin-gonic/gin"
)

// ReportHandler handles the read-only wallet and ledger query endpoints.
type ReportHandler struct {
	reportingSvc ports.ReportingService
}

// NewReportHandler creates a new ReportHandler.
func NewReportHandler(reportingSvc ports.ReportingService) *ReportHandler {
	return &ReportHandler{reportingSvc: reportingSvc}
}

// canViewOwner reports whether the actor may read the given owner's wallet.
// Admins see everything; everyone else only their own wallet.
func canViewOwner(c *gin.Context, ownerID string) bool {
	if c.GetString(middleware.CtxActorRole) == ports.RoleAdmin {
		return true
	}
	return c.GetString(middleware.CtxActorID) == ownerID
}

// GetBalance handles GET /api/v1/wallets/:ownerId/balance.
func (h *ReportHandler) GetBalance(c *gin.Context) {
	ownerID := c.Param("ownerId")
	if !canViewOwner(c, ownerID) {
		response.Error(c, apperror.ErrForbidden())
		return
	}

	wallet, err := h.reportingSvc.GetBalance(c.Request.Context(), ownerID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.WalletBalanceResponse{
		OwnerID:  wallet.OwnerID,
		Balance:  wallet.Balance,
		Currency: wallet.Currency,
	})
}

// ListWalletTransactions handles GET /api/v1/wallets/:ownerId/transactions.
func (h *ReportHandler) ListWalletTransactions(c *gin.Context) {
	ownerID := c.Param("ownerId")
	if !canViewOwner(c, ownerID) {
		response.Error(c, apperror.ErrForbidden())
		return
	}

	txns, err := h.reportingSvc.ListWalletTransactions(c.Request.Context(), ownerID)
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]*dto.TransactionResponse, 0, len(txns))
	for i := range txns {
		items = append(items, dto.ToTransactionResponse(&txns[i]))
	}
	response.OK(c, items)
}

// ListOrderTransactions handles GET /api/v1/orders/:id/transactions.
func (h *ReportHandler) ListOrderTransactions(c *gin.Context) {
	txns, err := h.reportingSvc.ListOrderTransactions(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]*dto.TransactionResponse, 0, len(txns))
	for i := range txns {
		items = append(items, dto.ToTransactionResponse(&txns[i]))
	}
	response.OK(c, items)
}

// Summary handles GET /api/v1/reports/summary.
func (h *ReportHandler) Summary(c *gin.Context) {
	summary, err := h.reportingSvc.Summary(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, summary)
}
