package domain

import (
	"time"

	"github.com/google/uuid"
)

// TransactionType labels the purpose of a balance movement.
type TransactionType string

const (
	TransactionTypeOrderHold        TransactionType = "ORDER_HOLD"
	TransactionTypeOrderSettlement  TransactionType = "ORDER_SETTLEMENT"
	TransactionTypeCommission       TransactionType = "COMMISSION"
	TransactionTypeRefund           TransactionType = "REFUND"
	TransactionTypeTopup            TransactionType = "TOPUP"
	TransactionTypePayoutCommission TransactionType = "PAYOUT_COMMISSION"
	TransactionTypePayoutTransfer   TransactionType = "PAYOUT_TRANSFER"
)

// TransactionStatus is the lifecycle state of a ledger entry. Entries are
// written only after both wallet sides are durably updated, so the ledger
// models no partial states.
type TransactionStatus string

const TransactionStatusCompleted TransactionStatus = "COMPLETED"

// Transaction is one immutable row in the append-only ledger. FromWalletID is
// nil for topups (funds enter the system); ToWalletID is nil for payout
// transfers (funds leave the system via an out-of-band bank transfer).
type Transaction struct {
	ID           uuid.UUID         `json:"id"`
	Type         TransactionType   `json:"type"`
	FromWalletID *uuid.UUID        `json:"from_wallet_id,omitempty"`
	ToWalletID   *uuid.UUID        `json:"to_wallet_id,omitempty"`
	Amount       int64             `json:"amount"`
	Commission   int64             `json:"commission"`
	OrderID      *string           `json:"order_id,omitempty"`
	Status       TransactionStatus `json:"status"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
}

// SignedAmountFor returns the signed contribution of this transaction to the
// given wallet's balance: negative when the wallet is the source, positive
// when it is the destination, zero otherwise. Replaying SignedAmountFor over
// all ledger rows from zero must reproduce the wallet's stored balance.
func (t *Transaction) SignedAmountFor(walletID uuid.UUID) int64 {
	var signed int64
	if t.FromWalletID != nil && *t.FromWalletID == walletID {
		signed -= t.Amount
	}
	if t.ToWalletID != nil && *t.ToWalletID == walletID {
		signed += t.Amount
	}
	return signed
}
