package ports

import (
	"context"
	"errors"
	"time"

	"marketplace-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Sentinel errors shared by every repository implementation so the service
// layer can map them onto the user-facing taxonomy.
var (
	// ErrInsufficientBalance is returned by ApplyDelta when a debit would
	// drive the wallet balance below zero.
	ErrInsufficientBalance = errors.New("insufficient wallet balance")

	// ErrStateConflict is returned by conditional status updates when the row
	// is no longer in the state the caller required.
	ErrStateConflict = errors.New("entity not in required state")
)

// WalletRepository defines persistence for wallets.
// Methods accepting pgx.Tx run inside transaction blocks so multi-wallet
// transitions commit atomically.
type WalletRepository interface {
	// GetOrCreate returns the wallet for ownerID, creating it with balance 0
	// on first reference. Idempotent under concurrent calls.
	GetOrCreate(ctx context.Context, ownerID string, kind domain.OwnerKind, currency string) (*domain.Wallet, error)
	GetByOwnerID(ctx context.Context, ownerID string) (*domain.Wallet, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Wallet, error)
	// ApplyDelta is the only balance mutation primitive: a single conditional
	// atomic increment. A negative delta that would underflow returns
	// ErrInsufficientBalance and leaves the balance untouched.
	ApplyDelta(ctx context.Context, tx pgx.Tx, walletID uuid.UUID, delta int64) (int64, error)
	// ListByKindWithBalance returns wallets of the given kind with balance > 0.
	ListByKindWithBalance(ctx context.Context, kind domain.OwnerKind) ([]domain.Wallet, error)
}

// TransactionRepository defines persistence for the append-only ledger.
// Rows are only ever inserted, never updated or deleted.
type TransactionRepository interface {
	Create(ctx context.Context, tx pgx.Tx, txn *domain.Transaction) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error)
	ListByWallet(ctx context.Context, walletID uuid.UUID) ([]domain.Transaction, error)
	ListByType(ctx context.Context, txType domain.TransactionType) ([]domain.Transaction, error)
	ListByOrder(ctx context.Context, orderID string) ([]domain.Transaction, error)
	// SumForWallet replays the signed ledger amounts for a wallet. Used to
	// verify the reconstructability invariant and for reporting.
	SumForWallet(ctx context.Context, walletID uuid.UUID) (int64, error)
	// SumAmountByTypes totals transaction amounts across the given types.
	SumAmountByTypes(ctx context.Context, types ...domain.TransactionType) (int64, error)
}

// OrderRepository defines the escrow engine's view of orders. Order records
// are produced by the storefront; this service owns payment_status and the
// hold transaction stamp exclusively.
type OrderRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Order, error)
	// GetByIDForUpdate locks the order row for the duration of the
	// transaction so concurrent transitions serialize on it.
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id string) (*domain.Order, error)
	// UpdatePaymentStatus moves the order from expected to next, optionally
	// stamping the hold transaction id. Returns ErrStateConflict when the
	// order is no longer in the expected state.
	UpdatePaymentStatus(ctx context.Context, tx pgx.Tx, id string, expected, next domain.PaymentStatus, holdTxID *uuid.UUID) error
}

// TopupRepository defines persistence for topup requests.
type TopupRepository interface {
	Create(ctx context.Context, req *domain.TopupRequest) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.TopupRequest, error)
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.TopupRequest, error)
	// MarkApproved / MarkRejected transition a pending request to its
	// terminal state. Both return ErrStateConflict when the request has
	// already been decided.
	MarkApproved(ctx context.Context, tx pgx.Tx, id uuid.UUID, adminID string, at time.Time) error
	MarkRejected(ctx context.Context, tx pgx.Tx, id uuid.UUID, adminID string, reason string) error
	ListByStatus(ctx context.Context, status domain.TopupStatus) ([]domain.TopupRequest, error)
}

// BalanceCache is the read-side cache for wallet balances. It is invalidated
// after every confirmed money movement and is never the source of truth.
type BalanceCache interface {
	Get(ctx context.Context, ownerID string) ([]byte, error) // nil, nil on miss
	Set(ctx context.Context, ownerID string, value []byte, ttl time.Duration) error
	Invalidate(ctx context.Context, ownerIDs ...string) error
}

// DBTransactor provides database transaction management.
type DBTransactor interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}
