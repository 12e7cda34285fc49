package ports

import (
	"context"
	"time"

	"marketplace-ledger/internal/core/domain"

	"github.com/google/uuid"
)

// EscrowService is the order payment state machine:
// none -> pending_settlement -> {confirmed | cancelled}.
type EscrowService interface {
	// Hold escrows the order amount from the customer wallet.
	Hold(ctx context.Context, orderID string, actorID string) (*domain.Transaction, error)
	// Settle releases escrowed funds to the merchant minus commission.
	Settle(ctx context.Context, orderID string, actorID string) (*SettlementResult, error)
	// Cancel refunds escrowed funds to the customer.
	Cancel(ctx context.Context, orderID string, actorID string, reason string) (*domain.Transaction, error)
}

// SettlementResult reports the split applied at settlement.
type SettlementResult struct {
	OrderID       string
	NetToMerchant int64
	Commission    int64
	SettlementTx  *domain.Transaction
	CommissionTx  *domain.Transaction
}

// TopupService is the customer-initiated, admin-approved balance credit flow.
type TopupService interface {
	Request(ctx context.Context, input TopupRequestInput) (*domain.TopupRequest, error)
	Approve(ctx context.Context, requestID uuid.UUID, adminID string) (*domain.TopupRequest, error)
	Reject(ctx context.Context, requestID uuid.UUID, adminID string, reason string) (*domain.TopupRequest, error)
	ListPending(ctx context.Context) ([]domain.TopupRequest, error)
}

// TopupRequestInput holds validated input for a new topup request.
type TopupRequestInput struct {
	UserID   string
	Amount   int64
	Currency string
	ProofURL *string
}

// PayoutService computes merchant payables and executes balance zeroing with
// commission retention. The final amount leaves the ledger entirely, modeling
// an out-of-band bank transfer.
type PayoutService interface {
	ListPayableMerchants(ctx context.Context) ([]domain.Wallet, error)
	// BuildReconciliationExport is pure: no mutation, used to produce the
	// downloadable artifact for manual bank transfers.
	BuildReconciliationExport(wallets []domain.Wallet, date time.Time) []ReconciliationRow
	ExecutePayout(ctx context.Context, merchantID string, adminID string) (*PayoutResult, error)
	// ExecuteBulkPayout runs ExecutePayout per merchant independently; one
	// merchant's failure never aborts the others.
	ExecuteBulkPayout(ctx context.Context, merchantIDs []string, adminID string) []BulkPayoutResult
}

// ReconciliationRow is one line of the payout reconciliation export.
type ReconciliationRow struct {
	MerchantID       string `json:"merchant_id"`
	OriginalAmount   int64  `json:"original_amount"`
	PayoutCommission int64  `json:"payout_commission"`
	FinalAmount      int64  `json:"final_amount"`
	Date             string `json:"date"`
}

// PayoutResult reports one executed payout.
type PayoutResult struct {
	MerchantID       string `json:"merchant_id"`
	OriginalAmount   int64  `json:"original_amount"`
	CommissionAmount int64  `json:"commission_amount"`
	FinalAmount      int64  `json:"final_amount"`
}

// BulkPayoutResult pairs one merchant's payout outcome with its own error so
// an admin can re-run only the failed subset.
type BulkPayoutResult struct {
	MerchantID string
	Result     *PayoutResult
	Err        error
}

// ReportingService is the read-only projection surface consumed by the admin
// dashboards and storefront UI.
type ReportingService interface {
	GetBalance(ctx context.Context, ownerID string) (*domain.Wallet, error)
	ListWalletTransactions(ctx context.Context, ownerID string) ([]domain.Transaction, error)
	ListOrderTransactions(ctx context.Context, orderID string) ([]domain.Transaction, error)
	Summary(ctx context.Context) (*LedgerSummary, error)
}

// LedgerSummary aggregates the ledger for admin reporting.
type LedgerSummary struct {
	EscrowTotal             int64           `json:"escrow_total"`
	PlatformCommissionTotal int64           `json:"platform_commission_total"`
	MerchantBalances        []domain.Wallet `json:"merchant_balances"`
}
