package postgres

import (
	"context"
	"testing"
	"time"

	"marketplace-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTransaction(from, to *uuid.UUID, amount int64) *domain.Transaction {
	orderID := "order-1"
	return &domain.Transaction{
		ID:           uuid.New(),
		Type:         domain.TransactionTypeOrderHold,
		FromWalletID: from,
		ToWalletID:   to,
		Amount:       amount,
		Commission:   0,
		OrderID:      &orderID,
		Status:       domain.TransactionStatusCompleted,
		Metadata:     map[string]string{"actor": "cust-1"},
		CreatedAt:    time.Now().UTC().Truncate(time.Microsecond),
	}
}

func transactionCols() []string {
	return []string{"id", "type", "from_wallet_id", "to_wallet_id", "amount", "commission", "order_id", "status", "metadata", "created_at"}
}

func transactionRow(t *domain.Transaction) *pgxmock.Rows {
	return pgxmock.NewRows(transactionCols()).AddRow(
		t.ID, t.Type, t.FromWalletID, t.ToWalletID,
		t.Amount, t.Commission, t.OrderID, t.Status, t.Metadata, t.CreatedAt,
	)
}

func TestTransactionRepo_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTransactionRepo(mock)
	from := uuid.New()
	to := uuid.New()
	txn := newTestTransaction(&from, &to, 300)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO transactions").
		WithArgs(txn.ID, txn.Type, txn.FromWalletID, txn.ToWalletID,
			txn.Amount, txn.Commission, txn.OrderID, txn.Status, txn.Metadata, txn.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	err = repo.Create(context.Background(), tx, txn)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepo_GetByID(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTransactionRepo(mock)
	to := uuid.New()
	txn := newTestTransaction(nil, &to, 500)
	txn.Type = domain.TransactionTypeTopup

	mock.ExpectQuery("SELECT .+ FROM transactions WHERE id").
		WithArgs(txn.ID).
		WillReturnRows(transactionRow(txn))

	result, err := repo.GetByID(context.Background(), txn.ID)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, domain.TransactionTypeTopup, result.Type)
	assert.Nil(t, result.FromWalletID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepo_GetByID_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTransactionRepo(mock)
	id := uuid.New()

	mock.ExpectQuery("SELECT .+ FROM transactions WHERE id").
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows(transactionCols()))

	result, err := repo.GetByID(context.Background(), id)
	require.NoError(t, err)
	assert.Nil(t, result)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepo_ListByWallet(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTransactionRepo(mock)
	walletID := uuid.New()
	other := uuid.New()
	txn1 := newTestTransaction(&walletID, &other, 300)
	txn2 := newTestTransaction(&other, &walletID, 150)

	mock.ExpectQuery("SELECT .+ FROM transactions").
		WithArgs(walletID).
		WillReturnRows(pgxmock.NewRows(transactionCols()).
			AddRow(txn1.ID, txn1.Type, txn1.FromWalletID, txn1.ToWalletID, txn1.Amount, txn1.Commission, txn1.OrderID, txn1.Status, txn1.Metadata, txn1.CreatedAt).
			AddRow(txn2.ID, txn2.Type, txn2.FromWalletID, txn2.ToWalletID, txn2.Amount, txn2.Commission, txn2.OrderID, txn2.Status, txn2.Metadata, txn2.CreatedAt))

	txns, err := repo.ListByWallet(context.Background(), walletID)
	require.NoError(t, err)
	require.Len(t, txns, 2)
	assert.Equal(t, int64(-300), txns[0].SignedAmountFor(walletID))
	assert.Equal(t, int64(150), txns[1].SignedAmountFor(walletID))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepo_SumForWallet(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTransactionRepo(mock)
	walletID := uuid.New()

	mock.ExpectQuery("SELECT COALESCE").
		WithArgs(walletID).
		WillReturnRows(pgxmock.NewRows([]string{"sum"}).AddRow(int64(700)))

	sum, err := repo.SumForWallet(context.Background(), walletID)
	require.NoError(t, err)
	assert.Equal(t, int64(700), sum)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepo_SumAmountByTypes(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTransactionRepo(mock)

	mock.ExpectQuery("SELECT COALESCE").
		WithArgs([]string{"COMMISSION", "PAYOUT_COMMISSION"}).
		WillReturnRows(pgxmock.NewRows([]string{"sum"}).AddRow(int64(186)))

	sum, err := repo.SumAmountByTypes(context.Background(),
		domain.TransactionTypeCommission, domain.TransactionTypePayoutCommission)
	require.NoError(t, err)
	assert.Equal(t, int64(186), sum)
	assert.NoError(t, mock.ExpectationsWereMet())
}
