package service

import (
	"context"
	"testing"

	"marketplace-ledger/internal/core/domain"
	"marketplace-ledger/internal/core/ports"
	"marketplace-ledger/internal/core/ports/mocks"
	"marketplace-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type escrowTestDeps struct {
	svc        *EscrowServiceImpl
	orderRepo  *mocks.MockOrderRepository
	walletRepo *mocks.MockWalletRepository
	txRepo     *mocks.MockTransactionRepository
	cache      *mocks.MockBalanceCache
	transactor *mocks.MockDBTransactor
	ctrl       *gomock.Controller
}

func setupEscrowService(t *testing.T) *escrowTestDeps {
	ctrl := gomock.NewController(t)
	d := &escrowTestDeps{
		orderRepo:  mocks.NewMockOrderRepository(ctrl),
		walletRepo: mocks.NewMockWalletRepository(ctrl),
		txRepo:     mocks.NewMockTransactionRepository(ctrl),
		cache:      mocks.NewMockBalanceCache(ctrl),
		transactor: mocks.NewMockDBTransactor(ctrl),
		ctrl:       ctrl,
	}
	resolver := domain.NewCommissionResolver(
		domain.CommissionPolicy{OrderFee: 0.10, PayoutFee: 0.05, CustomerFee: 0.02},
		map[string]domain.CommissionPolicy{
			"rest-42": {OrderFee: 0.12, PayoutFee: 0.15},
		},
	)
	d.svc = NewEscrowService(
		d.orderRepo, d.walletRepo, d.txRepo, resolver,
		d.cache, d.transactor, zerolog.Nop(),
	)
	return d
}

// mockTx implements pgx.Tx for testing
type mockTx struct{ pgx.Tx }

func (m *mockTx) Rollback(_ context.Context) error { return nil }
func (m *mockTx) Commit(_ context.Context) error   { return nil }

// ==================== Hold Tests ====================

func TestEscrowService_Hold_Success(t *testing.T) {
	d := setupEscrowService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	customerWalletID := uuid.New()
	escrowWalletID := uuid.New()
	tx := &mockTx{}

	order := &domain.Order{
		ID:            "ord-1",
		Amount:        300,
		MerchantID:    "rest-42",
		CustomerID:    "cust-1",
		PaymentStatus: domain.PaymentStatusNone,
	}

	d.orderRepo.EXPECT().GetByID(ctx, "ord-1").Return(order, nil)
	d.walletRepo.EXPECT().GetOrCreate(ctx, "cust-1", domain.OwnerKindCustomer, "").
		Return(&domain.Wallet{ID: customerWalletID, OwnerID: "cust-1", Balance: 1000}, nil)
	d.walletRepo.EXPECT().GetOrCreate(ctx, domain.EscrowOwnerID, domain.OwnerKindEscrow, "").
		Return(&domain.Wallet{ID: escrowWalletID, OwnerID: domain.EscrowOwnerID}, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.orderRepo.EXPECT().GetByIDForUpdate(ctx, tx, "ord-1").Return(order, nil)
	d.walletRepo.EXPECT().ApplyDelta(ctx, tx, customerWalletID, int64(-300)).Return(int64(700), nil)
	d.walletRepo.EXPECT().ApplyDelta(ctx, tx, escrowWalletID, int64(300)).Return(int64(300), nil)

	var recorded *domain.Transaction
	d.txRepo.EXPECT().Create(ctx, tx, gomock.Any()).
		DoAndReturn(func(_ context.Context, _ pgx.Tx, txn *domain.Transaction) error {
			recorded = txn
			return nil
		})
	d.orderRepo.EXPECT().UpdatePaymentStatus(ctx, tx, "ord-1",
		domain.PaymentStatusNone, domain.PaymentStatusPendingSettlement, gomock.Any()).Return(nil)
	d.cache.EXPECT().Invalidate(ctx, "cust-1", domain.EscrowOwnerID).Return(nil)

	txn, err := d.svc.Hold(ctx, "ord-1", "cust-1")
	require.NoError(t, err)
	require.NotNil(t, txn)
	assert.Equal(t, domain.TransactionTypeOrderHold, txn.Type)
	assert.Equal(t, int64(300), txn.Amount)
	assert.Equal(t, &customerWalletID, txn.FromWalletID)
	assert.Equal(t, &escrowWalletID, txn.ToWalletID)
	require.NotNil(t, txn.OrderID)
	assert.Equal(t, "ord-1", *txn.OrderID)
	assert.Same(t, txn, recorded)
}

func TestEscrowService_Hold_InsufficientFunds(t *testing.T) {
	d := setupEscrowService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	customerWalletID := uuid.New()
	tx := &mockTx{}

	order := &domain.Order{
		ID:            "ord-2",
		Amount:        500,
		MerchantID:    "rest-42",
		CustomerID:    "cust-2",
		PaymentStatus: domain.PaymentStatusNone,
	}

	d.orderRepo.EXPECT().GetByID(ctx, "ord-2").Return(order, nil)
	d.walletRepo.EXPECT().GetOrCreate(ctx, "cust-2", domain.OwnerKindCustomer, "").
		Return(&domain.Wallet{ID: customerWalletID, OwnerID: "cust-2", Balance: 200}, nil)
	d.walletRepo.EXPECT().GetOrCreate(ctx, domain.EscrowOwnerID, domain.OwnerKindEscrow, "").
		Return(&domain.Wallet{ID: uuid.New(), OwnerID: domain.EscrowOwnerID}, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.orderRepo.EXPECT().GetByIDForUpdate(ctx, tx, "ord-2").Return(order, nil)
	d.walletRepo.EXPECT().ApplyDelta(ctx, tx, customerWalletID, int64(-500)).
		Return(int64(0), ports.ErrInsufficientBalance)

	txn, err := d.svc.Hold(ctx, "ord-2", "cust-2")
	assert.Nil(t, txn)
	assertAppError(t, err, "LED_001")
}

func TestEscrowService_Hold_OrderNotFound(t *testing.T) {
	d := setupEscrowService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	d.orderRepo.EXPECT().GetByID(ctx, "nope").Return(nil, nil)

	txn, err := d.svc.Hold(ctx, "nope", "cust-1")
	assert.Nil(t, txn)
	assertAppError(t, err, "LED_004")
}

func TestEscrowService_Hold_AlreadyHeld(t *testing.T) {
	d := setupEscrowService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	d.orderRepo.EXPECT().GetByID(ctx, "ord-3").Return(&domain.Order{
		ID:            "ord-3",
		Amount:        100,
		CustomerID:    "cust-1",
		PaymentStatus: domain.PaymentStatusPendingSettlement,
	}, nil)

	txn, err := d.svc.Hold(ctx, "ord-3", "cust-1")
	assert.Nil(t, txn)
	assertAppError(t, err, "LED_002")
}

func TestEscrowService_Hold_LostRaceOnLock(t *testing.T) {
	d := setupEscrowService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	tx := &mockTx{}

	// The unlocked read sees the order as payable, but by the time the row
	// lock is acquired a concurrent hold has already won.
	stale := &domain.Order{
		ID:            "ord-4",
		Amount:        100,
		CustomerID:    "cust-1",
		PaymentStatus: domain.PaymentStatusNone,
	}
	held := &domain.Order{
		ID:            "ord-4",
		Amount:        100,
		CustomerID:    "cust-1",
		PaymentStatus: domain.PaymentStatusPendingSettlement,
	}

	d.orderRepo.EXPECT().GetByID(ctx, "ord-4").Return(stale, nil)
	d.walletRepo.EXPECT().GetOrCreate(ctx, "cust-1", domain.OwnerKindCustomer, "").
		Return(&domain.Wallet{ID: uuid.New(), OwnerID: "cust-1"}, nil)
	d.walletRepo.EXPECT().GetOrCreate(ctx, domain.EscrowOwnerID, domain.OwnerKindEscrow, "").
		Return(&domain.Wallet{ID: uuid.New(), OwnerID: domain.EscrowOwnerID}, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.orderRepo.EXPECT().GetByIDForUpdate(ctx, tx, "ord-4").Return(held, nil)

	txn, err := d.svc.Hold(ctx, "ord-4", "cust-1")
	assert.Nil(t, txn)
	assertAppError(t, err, "LED_002")
}

// ==================== Settle Tests ====================

func TestEscrowService_Settle_Success(t *testing.T) {
	d := setupEscrowService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	merchantWalletID := uuid.New()
	platformWalletID := uuid.New()
	escrowWalletID := uuid.New()
	tx := &mockTx{}

	// rest-42 carries a 12% order fee override: 300 * 0.12 = 36.
	order := &domain.Order{
		ID:            "ord-1",
		Amount:        300,
		MerchantID:    "rest-42",
		CustomerID:    "cust-1",
		PaymentStatus: domain.PaymentStatusPendingSettlement,
	}

	d.orderRepo.EXPECT().GetByID(ctx, "ord-1").Return(order, nil)
	d.walletRepo.EXPECT().GetOrCreate(ctx, "rest-42", domain.OwnerKindMerchant, "").
		Return(&domain.Wallet{ID: merchantWalletID, OwnerID: "rest-42"}, nil)
	d.walletRepo.EXPECT().GetOrCreate(ctx, domain.PlatformOwnerID, domain.OwnerKindPlatform, "").
		Return(&domain.Wallet{ID: platformWalletID, OwnerID: domain.PlatformOwnerID}, nil)
	d.walletRepo.EXPECT().GetOrCreate(ctx, domain.EscrowOwnerID, domain.OwnerKindEscrow, "").
		Return(&domain.Wallet{ID: escrowWalletID, OwnerID: domain.EscrowOwnerID, Balance: 300}, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.orderRepo.EXPECT().GetByIDForUpdate(ctx, tx, "ord-1").Return(order, nil)
	d.walletRepo.EXPECT().ApplyDelta(ctx, tx, escrowWalletID, int64(-300)).Return(int64(0), nil)
	d.walletRepo.EXPECT().ApplyDelta(ctx, tx, merchantWalletID, int64(264)).Return(int64(264), nil)
	d.walletRepo.EXPECT().ApplyDelta(ctx, tx, platformWalletID, int64(36)).Return(int64(36), nil)

	var recorded []*domain.Transaction
	d.txRepo.EXPECT().Create(ctx, tx, gomock.Any()).
		DoAndReturn(func(_ context.Context, _ pgx.Tx, txn *domain.Transaction) error {
			recorded = append(recorded, txn)
			return nil
		}).Times(2)
	d.orderRepo.EXPECT().UpdatePaymentStatus(ctx, tx, "ord-1",
		domain.PaymentStatusPendingSettlement, domain.PaymentStatusConfirmed, nil).Return(nil)
	d.cache.EXPECT().Invalidate(ctx, domain.EscrowOwnerID, "rest-42", domain.PlatformOwnerID).Return(nil)

	result, err := d.svc.Settle(ctx, "ord-1", "admin-1")
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, int64(264), result.NetToMerchant)
	assert.Equal(t, int64(36), result.Commission)
	require.Len(t, recorded, 2)
	assert.Equal(t, domain.TransactionTypeOrderSettlement, recorded[0].Type)
	assert.Equal(t, int64(264), recorded[0].Amount)
	assert.Equal(t, int64(36), recorded[0].Commission)
	assert.Equal(t, domain.TransactionTypeCommission, recorded[1].Type)
	assert.Equal(t, int64(36), recorded[1].Amount)
}

func TestEscrowService_Settle_NotHeld(t *testing.T) {
	d := setupEscrowService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	d.orderRepo.EXPECT().GetByID(ctx, "ord-5").Return(&domain.Order{
		ID:            "ord-5",
		Amount:        100,
		MerchantID:    "m-1",
		PaymentStatus: domain.PaymentStatusNone,
	}, nil)

	result, err := d.svc.Settle(ctx, "ord-5", "admin-1")
	assert.Nil(t, result)
	assertAppError(t, err, "LED_002")
}

func TestEscrowService_Settle_AlreadyConfirmed(t *testing.T) {
	d := setupEscrowService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	d.orderRepo.EXPECT().GetByID(ctx, "ord-6").Return(&domain.Order{
		ID:            "ord-6",
		Amount:        100,
		MerchantID:    "m-1",
		PaymentStatus: domain.PaymentStatusConfirmed,
	}, nil)

	result, err := d.svc.Settle(ctx, "ord-6", "admin-1")
	assert.Nil(t, result)
	assertAppError(t, err, "LED_002")
}

func TestEscrowService_Settle_DefaultPolicy(t *testing.T) {
	d := setupEscrowService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	merchantWalletID := uuid.New()
	platformWalletID := uuid.New()
	escrowWalletID := uuid.New()
	tx := &mockTx{}

	// No override for m-9: default 10% applies. 1000 * 0.10 = 100.
	order := &domain.Order{
		ID:            "ord-7",
		Amount:        1000,
		MerchantID:    "m-9",
		CustomerID:    "cust-1",
		PaymentStatus: domain.PaymentStatusPendingSettlement,
	}

	d.orderRepo.EXPECT().GetByID(ctx, "ord-7").Return(order, nil)
	d.walletRepo.EXPECT().GetOrCreate(ctx, "m-9", domain.OwnerKindMerchant, "").
		Return(&domain.Wallet{ID: merchantWalletID, OwnerID: "m-9"}, nil)
	d.walletRepo.EXPECT().GetOrCreate(ctx, domain.PlatformOwnerID, domain.OwnerKindPlatform, "").
		Return(&domain.Wallet{ID: platformWalletID, OwnerID: domain.PlatformOwnerID}, nil)
	d.walletRepo.EXPECT().GetOrCreate(ctx, domain.EscrowOwnerID, domain.OwnerKindEscrow, "").
		Return(&domain.Wallet{ID: escrowWalletID, OwnerID: domain.EscrowOwnerID, Balance: 1000}, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.orderRepo.EXPECT().GetByIDForUpdate(ctx, tx, "ord-7").Return(order, nil)
	d.walletRepo.EXPECT().ApplyDelta(ctx, tx, escrowWalletID, int64(-1000)).Return(int64(0), nil)
	d.walletRepo.EXPECT().ApplyDelta(ctx, tx, merchantWalletID, int64(900)).Return(int64(900), nil)
	d.walletRepo.EXPECT().ApplyDelta(ctx, tx, platformWalletID, int64(100)).Return(int64(100), nil)
	d.txRepo.EXPECT().Create(ctx, tx, gomock.Any()).Return(nil).Times(2)
	d.orderRepo.EXPECT().UpdatePaymentStatus(ctx, tx, "ord-7",
		domain.PaymentStatusPendingSettlement, domain.PaymentStatusConfirmed, nil).Return(nil)
	d.cache.EXPECT().Invalidate(ctx, domain.EscrowOwnerID, "m-9", domain.PlatformOwnerID).Return(nil)

	result, err := d.svc.Settle(ctx, "ord-7", "admin-1")
	require.NoError(t, err)
	assert.Equal(t, int64(900), result.NetToMerchant)
	assert.Equal(t, int64(100), result.Commission)
}

// ==================== Cancel Tests ====================

func TestEscrowService_Cancel_Success(t *testing.T) {
	d := setupEscrowService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	customerWalletID := uuid.New()
	escrowWalletID := uuid.New()
	tx := &mockTx{}

	order := &domain.Order{
		ID:            "ord-1",
		Amount:        150,
		MerchantID:    "m-1",
		CustomerID:    "cust-1",
		PaymentStatus: domain.PaymentStatusPendingSettlement,
	}

	d.orderRepo.EXPECT().GetByID(ctx, "ord-1").Return(order, nil)
	d.walletRepo.EXPECT().GetOrCreate(ctx, "cust-1", domain.OwnerKindCustomer, "").
		Return(&domain.Wallet{ID: customerWalletID, OwnerID: "cust-1"}, nil)
	d.walletRepo.EXPECT().GetOrCreate(ctx, domain.EscrowOwnerID, domain.OwnerKindEscrow, "").
		Return(&domain.Wallet{ID: escrowWalletID, OwnerID: domain.EscrowOwnerID, Balance: 150}, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.orderRepo.EXPECT().GetByIDForUpdate(ctx, tx, "ord-1").Return(order, nil)
	d.walletRepo.EXPECT().ApplyDelta(ctx, tx, escrowWalletID, int64(-150)).Return(int64(0), nil)
	d.walletRepo.EXPECT().ApplyDelta(ctx, tx, customerWalletID, int64(150)).Return(int64(150), nil)

	var recorded *domain.Transaction
	d.txRepo.EXPECT().Create(ctx, tx, gomock.Any()).
		DoAndReturn(func(_ context.Context, _ pgx.Tx, txn *domain.Transaction) error {
			recorded = txn
			return nil
		})
	d.orderRepo.EXPECT().UpdatePaymentStatus(ctx, tx, "ord-1",
		domain.PaymentStatusPendingSettlement, domain.PaymentStatusCancelled, nil).Return(nil)
	d.cache.EXPECT().Invalidate(ctx, domain.EscrowOwnerID, "cust-1").Return(nil)

	txn, err := d.svc.Cancel(ctx, "ord-1", "admin-1", "merchant unavailable")
	require.NoError(t, err)
	require.NotNil(t, txn)
	assert.Equal(t, domain.TransactionTypeRefund, txn.Type)
	assert.Equal(t, int64(150), txn.Amount)
	assert.Equal(t, "merchant unavailable", recorded.Metadata["reason"])
}

func TestEscrowService_Cancel_ConfirmedOrder(t *testing.T) {
	d := setupEscrowService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	d.orderRepo.EXPECT().GetByID(ctx, "ord-8").Return(&domain.Order{
		ID:            "ord-8",
		Amount:        100,
		CustomerID:    "cust-1",
		PaymentStatus: domain.PaymentStatusConfirmed,
	}, nil)

	txn, err := d.svc.Cancel(ctx, "ord-8", "admin-1", "late cancel")
	assert.Nil(t, txn)
	assertAppError(t, err, "LED_002")
}

// ==================== Helper ====================

func assertAppError(t *testing.T, err error, expectedCode string) {
	t.Helper()
	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, expectedCode, appErr.Code)
}
