package handler

import (
	"marketplace-ledger/internal/adapter/http/dto"
	"marketplace-ledger/internal/adapter/http/middleware"
	"marketplace-ledger/internal/core/ports"
	"marketplace-ledger/pkg/apperror"
	"marketplace-ledger/pkg/response"

	"github.com/gin-gonic/gin"
)

// EscrowHandler handles the order payment state machine endpoints.
type EscrowHandler struct {
	escrowSvc ports.EscrowService
}

// NewEscrowHandler creates a new EscrowHandler.
func NewEscrowHandler(escrowSvc ports.EscrowService) *EscrowHandler {
	return &EscrowHandler{escrowSvc: escrowSvc}
}

// Hold handles POST /api/v1/orders/:id/hold.
func (h *EscrowHandler) Hold(c *gin.Context) {
	actorID := c.GetString(middleware.CtxActorID)
	if actorID == "" {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	txn, err := h.escrowSvc.Hold(c.Request.Context(), c.Param("id"), actorID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.ToTransactionResponse(txn))
}

// Settle handles POST /api/v1/orders/:id/settle.
func (h *EscrowHandler) Settle(c *gin.Context) {
	actorID := c.GetString(middleware.CtxActorID)
	if actorID == "" {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	result, err := h.escrowSvc.Settle(c.Request.Context(), c.Param("id"), actorID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.SettlementResponse{
		OrderID:       result.OrderID,
		NetToMerchant: result.NetToMerchant,
		Commission:    result.Commission,
		SettlementTx:  dto.ToTransactionResponse(result.SettlementTx),
		CommissionTx:  dto.ToTransactionResponse(result.CommissionTx),
	})
}

// Cancel handles POST /api/v1/orders/:id/cancel.
func (h *EscrowHandler) Cancel(c *gin.Context) {
	actorID := c.GetString(middleware.CtxActorID)
	if actorID == "" {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.CancelOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	txn, err := h.escrowSvc.Cancel(c.Request.Context(), c.Param("id"), actorID, req.Reason)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.ToTransactionResponse(txn))
}
