package postgres

import (
	"context"
	"errors"
	"fmt"

	"marketplace-ledger/internal/core/domain"
	"marketplace-ledger/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// OrderRepo implements ports.OrderRepository. Orders are created by the
// storefront; only payment_status and hold_transaction_id are written here.
type OrderRepo struct {
	pool Pool
}

// NewOrderRepo creates a new OrderRepo.
func NewOrderRepo(pool Pool) *OrderRepo {
	return &OrderRepo{pool: pool}
}

const orderColumns = `id, amount, merchant_id, customer_id, payment_status, hold_transaction_id, created_at, updated_at`

// GetByID fetches an order without locking. Returns nil, nil when absent.
func (r *OrderRepo) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	return scanOrder(r.pool.QueryRow(ctx, query, id))
}

// GetByIDForUpdate fetches an order with a row lock so concurrent payment
// transitions serialize on it. MUST be called within a transaction.
func (r *OrderRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id string) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1 FOR UPDATE`
	return scanOrder(tx.QueryRow(ctx, query, id))
}

// UpdatePaymentStatus conditionally moves the order between payment states.
// The expected-state guard in the WHERE clause makes the transition itself
// reject a stale caller even outside a row lock.
func (r *OrderRepo) UpdatePaymentStatus(ctx context.Context, tx pgx.Tx, id string, expected, next domain.PaymentStatus, holdTxID *uuid.UUID) error {
	query := `UPDATE orders SET payment_status = $1,
		hold_transaction_id = COALESCE($2, hold_transaction_id),
		updated_at = NOW()
		WHERE id = $3 AND payment_status = $4`

	tag, err := tx.Exec(ctx, query, next, holdTxID, id, expected)
	if err != nil {
		return fmt.Errorf("update order payment status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ports.ErrStateConflict
	}
	return nil
}

func scanOrder(row pgx.Row) (*domain.Order, error) {
	o := &domain.Order{}
	err := row.Scan(
		&o.ID, &o.Amount, &o.MerchantID, &o.CustomerID,
		&o.PaymentStatus, &o.HoldTransactionID, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan order: %w", err)
	}
	return o, nil
}
