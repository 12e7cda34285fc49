package domain

import (
	"time"

	"github.com/google/uuid"
)

// OwnerKind classifies who a wallet belongs to.
type OwnerKind string

const (
	OwnerKindCustomer OwnerKind = "CUSTOMER"
	OwnerKindMerchant OwnerKind = "MERCHANT"
	OwnerKindPlatform OwnerKind = "PLATFORM"
	OwnerKindEscrow   OwnerKind = "ESCROW"
)

// Reserved owner ids for the two singleton wallets. Every order hold flows
// through the escrow wallet; every commission lands in the platform wallet.
const (
	PlatformOwnerID = "platform"
	EscrowOwnerID   = "escrow"
)

// DefaultCurrency is used when a wallet is created without an explicit currency.
const DefaultCurrency = "HNL"

// Wallet holds one party's balance in minor units. Exactly one wallet exists
// per owner id; the balance only changes through ledger-recorded operations.
type Wallet struct {
	ID        uuid.UUID `json:"id"`
	OwnerID   string    `json:"owner_id"`
	OwnerKind OwnerKind `json:"owner_kind"`
	Balance   int64     `json:"balance"`
	Currency  string    `json:"currency"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsSystem returns true for the escrow and platform singleton wallets.
// A failed debit on one of these is an invariant violation, not a user error.
func (w *Wallet) IsSystem() bool {
	return w.OwnerKind == OwnerKindPlatform || w.OwnerKind == OwnerKindEscrow
}
