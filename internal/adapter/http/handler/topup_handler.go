package handler

import (
	"marketplace-ledger/internal/adapter/http/dto"
	"marketplace-ledger/internal/adapter/http/middleware"
	"marketplace-ledger/internal/core/ports"
	"marketplace-ledger/pkg/apperror"
	"marketplace-ledger/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// TopupHandler handles the topup request/review endpoints.
type TopupHandler struct {
	topupSvc ports.TopupService
}

// NewTopupHandler creates a new TopupHandler.
func NewTopupHandler(topupSvc ports.TopupService) *TopupHandler {
	return &TopupHandler{topupSvc: topupSvc}
}

// Create handles POST /api/v1/topups. The request is always filed for the
// authenticated actor.
func (h *TopupHandler) Create(c *gin.Context) {
	actorID := c.GetString(middleware.CtxActorID)
	if actorID == "" {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.TopupCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	result, err := h.topupSvc.Request(c.Request.Context(), ports.TopupRequestInput{
		UserID:   actorID,
		Amount:   req.Amount,
		Currency: req.Currency,
		ProofURL: req.ProofURL,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.ToTopupResponse(result))
}

// ListPending handles GET /api/v1/topups/pending.
func (h *TopupHandler) ListPending(c *gin.Context) {
	reqs, err := h.topupSvc.ListPending(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]*dto.TopupResponse, 0, len(reqs))
	for i := range reqs {
		items = append(items, dto.ToTopupResponse(&reqs[i]))
	}
	response.OK(c, items)
}

// Approve handles POST /api/v1/topups/:id/approve.
func (h *TopupHandler) Approve(c *gin.Context) {
	adminID := c.GetString(middleware.CtxActorID)
	topupID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.Validation("invalid topup request id"))
		return
	}

	result, err := h.topupSvc.Approve(c.Request.Context(), topupID, adminID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.ToTopupResponse(result))
}

// Reject handles POST /api/v1/topups/:id/reject.
func (h *TopupHandler) Reject(c *gin.Context) {
	adminID := c.GetString(middleware.CtxActorID)
	topupID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.Validation("invalid topup request id"))
		return
	}

	var req dto.TopupRejectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	result, err := h.topupSvc.Reject(c.Request.Context(), topupID, adminID, req.Reason)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.ToTopupResponse(result))
}
