package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"marketplace-ledger/internal/core/domain"
	"marketplace-ledger/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// WalletRepo implements ports.WalletRepository.
type WalletRepo struct {
	pool Pool
}

// NewWalletRepo creates a new WalletRepo.
func NewWalletRepo(pool Pool) *WalletRepo {
	return &WalletRepo{pool: pool}
}

const walletColumns = `id, owner_id, owner_kind, balance, currency, created_at, updated_at`

// GetOrCreate returns the wallet for ownerID, inserting a zero-balance wallet
// on first reference. The ON CONFLICT guard makes concurrent first references
// converge on a single row.
func (r *WalletRepo) GetOrCreate(ctx context.Context, ownerID string, kind domain.OwnerKind, currency string) (*domain.Wallet, error) {
	if currency == "" {
		currency = domain.DefaultCurrency
	}

	now := time.Now().UTC()
	insert := `INSERT INTO wallets (id, owner_id, owner_kind, balance, currency, created_at, updated_at)
		VALUES ($1, $2, $3, 0, $4, $5, $5)
		ON CONFLICT (owner_id) DO NOTHING`

	if _, err := r.pool.Exec(ctx, insert, uuid.New(), ownerID, kind, currency, now); err != nil {
		return nil, fmt.Errorf("insert wallet: %w", err)
	}

	w, err := r.GetByOwnerID(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if w == nil {
		return nil, fmt.Errorf("wallet vanished after get-or-create: %s", ownerID)
	}
	return w, nil
}

// GetByOwnerID fetches a wallet by owner id. Returns nil, nil when absent.
func (r *WalletRepo) GetByOwnerID(ctx context.Context, ownerID string) (*domain.Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE owner_id = $1`

	w := &domain.Wallet{}
	err := r.pool.QueryRow(ctx, query, ownerID).Scan(
		&w.ID, &w.OwnerID, &w.OwnerKind, &w.Balance, &w.Currency, &w.CreatedAt, &w.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get wallet by owner id: %w", err)
	}
	return w, nil
}

// GetByID fetches a wallet by its UUID. Returns nil, nil when absent.
func (r *WalletRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE id = $1`

	w := &domain.Wallet{}
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&w.ID, &w.OwnerID, &w.OwnerKind, &w.Balance, &w.Currency, &w.CreatedAt, &w.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get wallet by id: %w", err)
	}
	return w, nil
}

// ApplyDelta applies a signed delta as one conditional atomic increment. The
// balance check and the write happen in a single statement, so two concurrent
// debits can never both pass against a stale balance.
func (r *WalletRepo) ApplyDelta(ctx context.Context, tx pgx.Tx, walletID uuid.UUID, delta int64) (int64, error) {
	query := `UPDATE wallets SET balance = balance + $1, updated_at = NOW()
		WHERE id = $2 AND balance + $1 >= 0
		RETURNING balance`

	var newBalance int64
	err := tx.QueryRow(ctx, query, delta, walletID).Scan(&newBalance)
	if err == nil {
		return newBalance, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("apply wallet delta: %w", err)
	}

	// Zero rows: either the wallet is missing or the debit would underflow.
	var exists bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM wallets WHERE id = $1)`, walletID).Scan(&exists); err != nil {
		return 0, fmt.Errorf("check wallet exists: %w", err)
	}
	if !exists {
		return 0, fmt.Errorf("wallet not found: %s", walletID)
	}
	return 0, ports.ErrInsufficientBalance
}

// ListByKindWithBalance returns wallets of the given kind holding a positive balance.
func (r *WalletRepo) ListByKindWithBalance(ctx context.Context, kind domain.OwnerKind) ([]domain.Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE owner_kind = $1 AND balance > 0 ORDER BY owner_id`

	rows, err := r.pool.Query(ctx, query, kind)
	if err != nil {
		return nil, fmt.Errorf("list wallets by kind: %w", err)
	}
	defer rows.Close()

	var wallets []domain.Wallet
	for rows.Next() {
		var w domain.Wallet
		if err := rows.Scan(&w.ID, &w.OwnerID, &w.OwnerKind, &w.Balance, &w.Currency, &w.CreatedAt, &w.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan wallet: %w", err)
		}
		wallets = append(wallets, w)
	}
	return wallets, rows.Err()
}
