package dto

import (
	"marketplace-ledger/internal/core/domain"
	"marketplace-ledger/internal/core/ports"

	"github.com/google/uuid"
)

// CancelOrderRequest is the request body for order cancellation.
type CancelOrderRequest struct {
	Reason string `json:"reason" binding:"required,max=500"`
}

// TopupCreateRequest is the request body for a new topup request.
type TopupCreateRequest struct {
	Amount   int64   `json:"amount" binding:"required,gt=0"`
	Currency string  `json:"currency" binding:"omitempty,len=3"`
	ProofURL *string `json:"proof_url,omitempty" binding:"omitempty,url,max=500"`
}

// TopupRejectRequest is the request body for rejecting a topup request.
type TopupRejectRequest struct {
	Reason string `json:"reason" binding:"required,max=500"`
}

// BulkPayoutRequest is the request body for a bulk payout run.
type BulkPayoutRequest struct {
	MerchantIDs []string `json:"merchant_ids" binding:"required,min=1,dive,required"`
}

// TransactionResponse is the wire form of one ledger entry.
type TransactionResponse struct {
	ID           string            `json:"id"`
	Type         string            `json:"type"`
	FromWalletID *string           `json:"from_wallet_id,omitempty"`
	ToWalletID   *string           `json:"to_wallet_id,omitempty"`
	Amount       int64             `json:"amount"`
	Commission   int64             `json:"commission,omitempty"`
	OrderID      *string           `json:"order_id,omitempty"`
	Status       string            `json:"status"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	CreatedAt    string            `json:"created_at"`
}

// SettlementResponse reports the split applied at settlement.
type SettlementResponse struct {
	OrderID       string               `json:"order_id"`
	NetToMerchant int64                `json:"net_to_merchant"`
	Commission    int64                `json:"commission"`
	SettlementTx  *TransactionResponse `json:"settlement_tx"`
	CommissionTx  *TransactionResponse `json:"commission_tx,omitempty"`
}

// WalletBalanceResponse is the response for a balance query.
type WalletBalanceResponse struct {
	OwnerID  string `json:"owner_id"`
	Balance  int64  `json:"balance"`
	Currency string `json:"currency"`
}

// TopupResponse is the wire form of a topup request.
type TopupResponse struct {
	ID              string  `json:"id"`
	UserID          string  `json:"user_id"`
	Amount          int64   `json:"amount"`
	Currency        string  `json:"currency"`
	Status          string  `json:"status"`
	ProofURL        *string `json:"proof_url,omitempty"`
	RequestedAt     string  `json:"requested_at"`
	ApprovedBy      *string `json:"approved_by,omitempty"`
	ApprovedAt      *string `json:"approved_at,omitempty"`
	RejectionReason *string `json:"rejection_reason,omitempty"`
}

// PayableMerchantResponse is one merchant wallet awaiting payout.
type PayableMerchantResponse struct {
	MerchantID string `json:"merchant_id"`
	Balance    int64  `json:"balance"`
	Currency   string `json:"currency"`
}

// BulkPayoutEntryResponse is one merchant's outcome in a bulk payout run.
type BulkPayoutEntryResponse struct {
	MerchantID string              `json:"merchant_id"`
	Result     *ports.PayoutResult `json:"result,omitempty"`
	Error      string              `json:"error,omitempty"`
}

// ToTransactionResponse converts a domain transaction to its wire form.
func ToTransactionResponse(txn *domain.Transaction) *TransactionResponse {
	if txn == nil {
		return nil
	}
	return &TransactionResponse{
		ID:           txn.ID.String(),
		Type:         string(txn.Type),
		FromWalletID: uuidPtrToString(txn.FromWalletID),
		ToWalletID:   uuidPtrToString(txn.ToWalletID),
		Amount:       txn.Amount,
		Commission:   txn.Commission,
		OrderID:      txn.OrderID,
		Status:       string(txn.Status),
		Metadata:     txn.Metadata,
		CreatedAt:    txn.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}

// ToTopupResponse converts a domain topup request to its wire form.
func ToTopupResponse(req *domain.TopupRequest) *TopupResponse {
	if req == nil {
		return nil
	}
	resp := &TopupResponse{
		ID:              req.ID.String(),
		UserID:          req.UserID,
		Amount:          req.Amount,
		Currency:        req.Currency,
		Status:          string(req.Status),
		ProofURL:        req.ProofURL,
		RequestedAt:     req.RequestedAt.Format("2006-01-02T15:04:05Z07:00"),
		ApprovedBy:      req.ApprovedBy,
		RejectionReason: req.RejectionReason,
	}
	if req.ApprovedAt != nil {
		s := req.ApprovedAt.Format("2006-01-02T15:04:05Z07:00")
		resp.ApprovedAt = &s
	}
	return resp
}

func uuidPtrToString(id *uuid.UUID) *string {
	if id == nil {
		return nil
	}
	s := id.String()
	return &s
}
