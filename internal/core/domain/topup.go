package domain

import (
	"time"

	"github.com/google/uuid"
)

// TopupStatus is the lifecycle state of a topup request.
type TopupStatus string

const (
	TopupStatusPending  TopupStatus = "PENDING"
	TopupStatusApproved TopupStatus = "APPROVED"
	TopupStatusRejected TopupStatus = "REJECTED"
)

// TopupRequest is a customer-initiated balance credit awaiting manual admin
// review. Approval credits the customer wallet exactly once; rejection has no
// balance effect. Terminal states are immutable.
type TopupRequest struct {
	ID              uuid.UUID   `json:"id"`
	UserID          string      `json:"user_id"`
	Amount          int64       `json:"amount"`
	Currency        string      `json:"currency"`
	Status          TopupStatus `json:"status"`
	ProofURL        *string     `json:"proof_url,omitempty"`
	RequestedAt     time.Time   `json:"requested_at"`
	ApprovedBy      *string     `json:"approved_by,omitempty"`
	ApprovedAt      *time.Time  `json:"approved_at,omitempty"`
	RejectionReason *string     `json:"rejection_reason,omitempty"`
}

// IsPending returns true while the request can still be approved or rejected.
func (r *TopupRequest) IsPending() bool {
	return r.Status == TopupStatusPending
}
