package postgres

import (
	"context"
	"testing"
	"time"

	"marketplace-ledger/internal/core/domain"
	"marketplace-ledger/internal/core/ports"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestOrder(status domain.PaymentStatus) *domain.Order {
	return &domain.Order{
		ID:            "order-77",
		Amount:        300,
		MerchantID:    "merch-1",
		CustomerID:    "cust-1",
		PaymentStatus: status,
		CreatedAt:     time.Now().UTC().Truncate(time.Microsecond),
		UpdatedAt:     time.Now().UTC().Truncate(time.Microsecond),
	}
}

func orderCols() []string {
	return []string{"id", "amount", "merchant_id", "customer_id", "payment_status", "hold_transaction_id", "created_at", "updated_at"}
}

func orderRow(o *domain.Order) *pgxmock.Rows {
	return pgxmock.NewRows(orderCols()).AddRow(
		o.ID, o.Amount, o.MerchantID, o.CustomerID,
		o.PaymentStatus, o.HoldTransactionID, o.CreatedAt, o.UpdatedAt,
	)
}

func TestOrderRepo_GetByID(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewOrderRepo(mock)
	o := newTestOrder(domain.PaymentStatusNone)

	mock.ExpectQuery("SELECT .+ FROM orders WHERE id").
		WithArgs(o.ID).
		WillReturnRows(orderRow(o))

	result, err := repo.GetByID(context.Background(), o.ID)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, domain.PaymentStatusNone, result.PaymentStatus)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepo_GetByIDForUpdate(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewOrderRepo(mock)
	o := newTestOrder(domain.PaymentStatusPendingSettlement)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT .+ FROM orders WHERE id .+ FOR UPDATE").
		WithArgs(o.ID).
		WillReturnRows(orderRow(o))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	result, err := repo.GetByIDForUpdate(context.Background(), tx, o.ID)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, o.Amount, result.Amount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepo_UpdatePaymentStatus(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewOrderRepo(mock)
	holdTxID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE orders SET payment_status").
		WithArgs(domain.PaymentStatusPendingSettlement, &holdTxID, "order-77", domain.PaymentStatusNone).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	err = repo.UpdatePaymentStatus(context.Background(), tx, "order-77",
		domain.PaymentStatusNone, domain.PaymentStatusPendingSettlement, &holdTxID)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepo_UpdatePaymentStatus_StateConflict(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewOrderRepo(mock)

	mock.ExpectBegin()
	// Order already moved on: the guarded update touches zero rows.
	mock.ExpectExec("UPDATE orders SET payment_status").
		WithArgs(domain.PaymentStatusConfirmed, (*uuid.UUID)(nil), "order-77", domain.PaymentStatusPendingSettlement).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	err = repo.UpdatePaymentStatus(context.Background(), tx, "order-77",
		domain.PaymentStatusPendingSettlement, domain.PaymentStatusConfirmed, nil)
	assert.ErrorIs(t, err, ports.ErrStateConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}
