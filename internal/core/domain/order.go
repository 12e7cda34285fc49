package domain

import (
	"time"

	"github.com/google/uuid"
)

// PaymentStatus is the escrow state machine on an order. The order record
// itself is produced by the storefront; this service exclusively owns the
// payment_status column and the hold transaction stamp.
type PaymentStatus string

const (
	PaymentStatusNone              PaymentStatus = "NONE"
	PaymentStatusPendingSettlement PaymentStatus = "PENDING_SETTLEMENT"
	PaymentStatusConfirmed         PaymentStatus = "CONFIRMED"
	PaymentStatusCancelled         PaymentStatus = "CANCELLED"
)

// Order is the external order record as seen by the escrow engine.
type Order struct {
	ID                string        `json:"id"`
	Amount            int64         `json:"amount"`
	MerchantID        string        `json:"merchant_id"`
	CustomerID        string        `json:"customer_id"`
	PaymentStatus     PaymentStatus `json:"payment_status"`
	HoldTransactionID *uuid.UUID    `json:"hold_transaction_id,omitempty"`
	CreatedAt         time.Time     `json:"created_at"`
	UpdatedAt         time.Time     `json:"updated_at"`
}

// IsFinal returns true once the order has settled or been refunded. Neither
// Settle nor Cancel may run against a final order.
func (o *Order) IsFinal() bool {
	return o.PaymentStatus == PaymentStatusConfirmed || o.PaymentStatus == PaymentStatusCancelled
}
