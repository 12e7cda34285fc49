package postgres

import (
	"context"
	"errors"
	"fmt"

	"marketplace-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// TransactionRepo implements ports.TransactionRepository. The transactions
// table is append-only: this repository exposes no update or delete path.
type TransactionRepo struct {
	pool Pool
}

// NewTransactionRepo creates a new TransactionRepo.
func NewTransactionRepo(pool Pool) *TransactionRepo {
	return &TransactionRepo{pool: pool}
}

const transactionColumns = `id, type, from_wallet_id, to_wallet_id, amount, commission, order_id, status, metadata, created_at`

// Create appends one ledger entry within the database transaction that also
// carries the wallet deltas it documents.
func (r *TransactionRepo) Create(ctx context.Context, tx pgx.Tx, t *domain.Transaction) error {
	query := `INSERT INTO transactions (id, type, from_wallet_id, to_wallet_id, amount, commission, order_id, status, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := tx.Exec(ctx, query,
		t.ID, t.Type, t.FromWalletID, t.ToWalletID,
		t.Amount, t.Commission, t.OrderID, t.Status, t.Metadata, t.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

// GetByID fetches a transaction by UUID. Returns nil, nil when absent.
func (r *TransactionRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1`

	t := &domain.Transaction{}
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&t.ID, &t.Type, &t.FromWalletID, &t.ToWalletID,
		&t.Amount, &t.Commission, &t.OrderID, &t.Status, &t.Metadata, &t.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get transaction by id: %w", err)
	}
	return t, nil
}

// ListByWallet returns every entry touching the wallet, oldest first.
func (r *TransactionRepo) ListByWallet(ctx context.Context, walletID uuid.UUID) ([]domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions
		WHERE from_wallet_id = $1 OR to_wallet_id = $1 ORDER BY created_at`

	return r.list(ctx, query, walletID)
}

// ListByType returns every entry of the given type, oldest first.
func (r *TransactionRepo) ListByType(ctx context.Context, txType domain.TransactionType) ([]domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE type = $1 ORDER BY created_at`

	return r.list(ctx, query, txType)
}

// ListByOrder returns every entry stamped with the order id, oldest first.
func (r *TransactionRepo) ListByOrder(ctx context.Context, orderID string) ([]domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE order_id = $1 ORDER BY created_at`

	return r.list(ctx, query, orderID)
}

// SumForWallet replays the signed ledger amounts for a wallet in one query.
// The result must equal the wallet's stored balance at all times.
func (r *TransactionRepo) SumForWallet(ctx context.Context, walletID uuid.UUID) (int64, error) {
	query := `SELECT COALESCE(SUM(
			CASE WHEN to_wallet_id = $1 THEN amount ELSE 0 END -
			CASE WHEN from_wallet_id = $1 THEN amount ELSE 0 END
		), 0)
		FROM transactions WHERE from_wallet_id = $1 OR to_wallet_id = $1`

	var sum int64
	if err := r.pool.QueryRow(ctx, query, walletID).Scan(&sum); err != nil {
		return 0, fmt.Errorf("sum transactions for wallet: %w", err)
	}
	return sum, nil
}

// SumAmountByTypes totals amounts across the given transaction types.
func (r *TransactionRepo) SumAmountByTypes(ctx context.Context, types ...domain.TransactionType) (int64, error) {
	query := `SELECT COALESCE(SUM(amount), 0) FROM transactions WHERE type = ANY($1)`

	typeStrings := make([]string, len(types))
	for i, t := range types {
		typeStrings[i] = string(t)
	}

	var sum int64
	if err := r.pool.QueryRow(ctx, query, typeStrings).Scan(&sum); err != nil {
		return 0, fmt.Errorf("sum transactions by type: %w", err)
	}
	return sum, nil
}

func (r *TransactionRepo) list(ctx context.Context, query string, args ...any) ([]domain.Transaction, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var txns []domain.Transaction
	for rows.Next() {
		var t domain.Transaction
		if err := rows.Scan(
			&t.ID, &t.Type, &t.FromWalletID, &t.ToWalletID,
			&t.Amount, &t.Commission, &t.OrderID, &t.Status, &t.Metadata, &t.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		txns = append(txns, t)
	}
	return txns, rows.Err()
}
