package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"marketplace-ledger/internal/core/domain"
	"marketplace-ledger/internal/core/ports"
	"marketplace-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// EscrowServiceImpl implements ports.EscrowService: the three-phase order
// money flow (hold -> settle | cancel). Every transition runs inside one
// database transaction with the order row locked, so the state check, the
// wallet deltas and the ledger entries commit or roll back together.
type EscrowServiceImpl struct {
	orderRepo  ports.OrderRepository
	walletRepo ports.WalletRepository
	txRepo     ports.TransactionRepository
	commission *domain.CommissionResolver
	cache      ports.BalanceCache
	transactor ports.DBTransactor
	log        zerolog.Logger
}

// NewEscrowService creates a new EscrowServiceImpl.
func NewEscrowService(
	orderRepo ports.OrderRepository,
	walletRepo ports.WalletRepository,
	txRepo ports.TransactionRepository,
	commission *domain.CommissionResolver,
	cache ports.BalanceCache,
	transactor ports.DBTransactor,
	log zerolog.Logger,
) *EscrowServiceImpl {
	return &EscrowServiceImpl{
		orderRepo:  orderRepo,
		walletRepo: walletRepo,
		txRepo:     txRepo,
		commission: commission,
		cache:      cache,
		transactor: transactor,
		log:        log,
	}
}

// Hold escrows the order amount: customer -> escrow, order none -> pending_settlement.
func (s *EscrowServiceImpl) Hold(ctx context.Context, orderID string, actorID string) (*domain.Transaction, error) {
	order, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("load order: %w", err))
	}
	if order == nil {
		return nil, apperror.ErrNotFound("order")
	}
	if order.PaymentStatus != domain.PaymentStatusNone {
		return nil, apperror.ErrInvalidTransition("order already has a payment hold")
	}

	// Lazy wallet creation happens outside the transition transaction; a
	// zero-balance wallet row is harmless even if the hold later aborts.
	customerWallet, err := s.walletRepo.GetOrCreate(ctx, order.CustomerID, domain.OwnerKindCustomer, "")
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("customer wallet: %w", err))
	}
	escrowWallet, err := s.walletRepo.GetOrCreate(ctx, domain.EscrowOwnerID, domain.OwnerKindEscrow, "")
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("escrow wallet: %w", err))
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	locked, err := s.orderRepo.GetByIDForUpdate(ctx, dbTx, orderID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock order: %w", err))
	}
	if locked == nil {
		return nil, apperror.ErrNotFound("order")
	}
	if locked.PaymentStatus != domain.PaymentStatusNone {
		return nil, apperror.ErrInvalidTransition("order already has a payment hold")
	}

	if _, err := s.walletRepo.ApplyDelta(ctx, dbTx, customerWallet.ID, -locked.Amount); err != nil {
		if errors.Is(err, ports.ErrInsufficientBalance) {
			return nil, apperror.ErrInsufficientFunds()
		}
		return nil, apperror.InternalError(fmt.Errorf("debit customer: %w", err))
	}
	if _, err := s.walletRepo.ApplyDelta(ctx, dbTx, escrowWallet.ID, locked.Amount); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("credit escrow: %w", err))
	}

	txn := &domain.Transaction{
		ID:           uuid.New(),
		Type:         domain.TransactionTypeOrderHold,
		FromWalletID: &customerWallet.ID,
		ToWalletID:   &escrowWallet.ID,
		Amount:       locked.Amount,
		OrderID:      &locked.ID,
		Status:       domain.TransactionStatusCompleted,
		Metadata: map[string]string{
			"actor":       actorID,
			"merchant_id": locked.MerchantID,
		},
		CreatedAt: time.Now().UTC(),
	}
	if err := s.txRepo.Create(ctx, dbTx, txn); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("record hold: %w", err))
	}

	if err := s.orderRepo.UpdatePaymentStatus(ctx, dbTx, orderID,
		domain.PaymentStatusNone, domain.PaymentStatusPendingSettlement, &txn.ID); err != nil {
		if errors.Is(err, ports.ErrStateConflict) {
			return nil, apperror.ErrInvalidTransition("order already has a payment hold")
		}
		return nil, apperror.InternalError(fmt.Errorf("stamp order: %w", err))
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.invalidateBalances(ctx, order.CustomerID, domain.EscrowOwnerID)

	s.log.Info().
		Str("order_id", orderID).
		Str("customer_id", order.CustomerID).
		Int64("amount", locked.Amount).
		Str("tx_id", txn.ID.String()).
		Msg("order funds escrowed")

	return txn, nil
}

// Settle releases the escrowed amount: escrow -> merchant minus commission,
// escrow -> platform for the commission. The order becomes confirmed; final.
func (s *EscrowServiceImpl) Settle(ctx context.Context, orderID string, actorID string) (*ports.SettlementResult, error) {
	order, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("load order: %w", err))
	}
	if order == nil {
		return nil, apperror.ErrNotFound("order")
	}
	if order.PaymentStatus != domain.PaymentStatusPendingSettlement {
		return nil, apperror.ErrInvalidTransition("order is not awaiting settlement")
	}

	merchantWallet, err := s.walletRepo.GetOrCreate(ctx, order.MerchantID, domain.OwnerKindMerchant, "")
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("merchant wallet: %w", err))
	}
	platformWallet, err := s.walletRepo.GetOrCreate(ctx, domain.PlatformOwnerID, domain.OwnerKindPlatform, "")
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("platform wallet: %w", err))
	}
	escrowWallet, err := s.walletRepo.GetOrCreate(ctx, domain.EscrowOwnerID, domain.OwnerKindEscrow, "")
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("escrow wallet: %w", err))
	}

	policy := s.commission.Resolve(order.MerchantID)
	orderCommission := domain.CommissionAmount(order.Amount, policy.OrderFee)
	netToMerchant := order.Amount - orderCommission

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	locked, err := s.orderRepo.GetByIDForUpdate(ctx, dbTx, orderID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock order: %w", err))
	}
	if locked == nil {
		return nil, apperror.ErrNotFound("order")
	}
	if locked.PaymentStatus != domain.PaymentStatusPendingSettlement {
		return nil, apperror.ErrInvalidTransition("order is not awaiting settlement")
	}

	if _, err := s.walletRepo.ApplyDelta(ctx, dbTx, escrowWallet.ID, -locked.Amount); err != nil {
		if errors.Is(err, ports.ErrInsufficientBalance) {
			// The escrow wallet must always cover its pending orders.
			s.log.Error().
				Str("order_id", orderID).
				Int64("amount", locked.Amount).
				Msg("escrow wallet cannot cover held order")
			return nil, apperror.InternalError(fmt.Errorf("escrow underfunded for order %s", orderID))
		}
		return nil, apperror.InternalError(fmt.Errorf("debit escrow: %w", err))
	}
	if _, err := s.walletRepo.ApplyDelta(ctx, dbTx, merchantWallet.ID, netToMerchant); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("credit merchant: %w", err))
	}

	now := time.Now().UTC()
	rate := fmt.Sprintf("%g", policy.OrderFee)
	settlementTx := &domain.Transaction{
		ID:           uuid.New(),
		Type:         domain.TransactionTypeOrderSettlement,
		FromWalletID: &escrowWallet.ID,
		ToWalletID:   &merchantWallet.ID,
		Amount:       netToMerchant,
		Commission:   orderCommission,
		OrderID:      &locked.ID,
		Status:       domain.TransactionStatusCompleted,
		Metadata: map[string]string{
			"actor":       actorID,
			"merchant_id": locked.MerchantID,
			"order_fee":   rate,
		},
		CreatedAt: now,
	}
	if err := s.txRepo.Create(ctx, dbTx, settlementTx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("record settlement: %w", err))
	}

	var commissionTx *domain.Transaction
	if orderCommission > 0 {
		if _, err := s.walletRepo.ApplyDelta(ctx, dbTx, platformWallet.ID, orderCommission); err != nil {
			return nil, apperror.InternalError(fmt.Errorf("credit platform: %w", err))
		}
		commissionTx = &domain.Transaction{
			ID:           uuid.New(),
			Type:         domain.TransactionTypeCommission,
			FromWalletID: &escrowWallet.ID,
			ToWalletID:   &platformWallet.ID,
			Amount:       orderCommission,
			OrderID:      &locked.ID,
			Status:       domain.TransactionStatusCompleted,
			Metadata: map[string]string{
				"actor":       actorID,
				"merchant_id": locked.MerchantID,
				"order_fee":   rate,
			},
			CreatedAt: now,
		}
		if err := s.txRepo.Create(ctx, dbTx, commissionTx); err != nil {
			return nil, apperror.InternalError(fmt.Errorf("record commission: %w", err))
		}
	}

	if err := s.orderRepo.UpdatePaymentStatus(ctx, dbTx, orderID,
		domain.PaymentStatusPendingSettlement, domain.PaymentStatusConfirmed, nil); err != nil {
		if errors.Is(err, ports.ErrStateConflict) {
			return nil, apperror.ErrInvalidTransition("order is not awaiting settlement")
		}
		return nil, apperror.InternalError(fmt.Errorf("confirm order: %w", err))
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.invalidateBalances(ctx, domain.EscrowOwnerID, order.MerchantID, domain.PlatformOwnerID)

	s.log.Info().
		Str("order_id", orderID).
		Str("merchant_id", order.MerchantID).
		Int64("net_to_merchant", netToMerchant).
		Int64("commission", orderCommission).
		Msg("order settled")

	return &ports.SettlementResult{
		OrderID:       orderID,
		NetToMerchant: netToMerchant,
		Commission:    orderCommission,
		SettlementTx:  settlementTx,
		CommissionTx:  commissionTx,
	}, nil
}

// Cancel refunds the escrowed amount to the customer. The order becomes
// cancelled; final. Confirmed orders cannot be cancelled through this path.
func (s *EscrowServiceImpl) Cancel(ctx context.Context, orderID string, actorID string, reason string) (*domain.Transaction, error) {
	order, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("load order: %w", err))
	}
	if order == nil {
		return nil, apperror.ErrNotFound("order")
	}
	if order.PaymentStatus != domain.PaymentStatusPendingSettlement {
		return nil, apperror.ErrInvalidTransition("order is not awaiting settlement")
	}

	customerWallet, err := s.walletRepo.GetOrCreate(ctx, order.CustomerID, domain.OwnerKindCustomer, "")
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("customer wallet: %w", err))
	}
	escrowWallet, err := s.walletRepo.GetOrCreate(ctx, domain.EscrowOwnerID, domain.OwnerKindEscrow, "")
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("escrow wallet: %w", err))
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	locked, err := s.orderRepo.GetByIDForUpdate(ctx, dbTx, orderID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock order: %w", err))
	}
	if locked == nil {
		return nil, apperror.ErrNotFound("order")
	}
	if locked.PaymentStatus != domain.PaymentStatusPendingSettlement {
		return nil, apperror.ErrInvalidTransition("order is not awaiting settlement")
	}

	if _, err := s.walletRepo.ApplyDelta(ctx, dbTx, escrowWallet.ID, -locked.Amount); err != nil {
		if errors.Is(err, ports.ErrInsufficientBalance) {
			s.log.Error().
				Str("order_id", orderID).
				Int64("amount", locked.Amount).
				Msg("escrow wallet cannot cover held order")
			return nil, apperror.InternalError(fmt.Errorf("escrow underfunded for order %s", orderID))
		}
		return nil, apperror.InternalError(fmt.Errorf("debit escrow: %w", err))
	}
	if _, err := s.walletRepo.ApplyDelta(ctx, dbTx, customerWallet.ID, locked.Amount); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("refund customer: %w", err))
	}

	txn := &domain.Transaction{
		ID:           uuid.New(),
		Type:         domain.TransactionTypeRefund,
		FromWalletID: &escrowWallet.ID,
		ToWalletID:   &customerWallet.ID,
		Amount:       locked.Amount,
		OrderID:      &locked.ID,
		Status:       domain.TransactionStatusCompleted,
		Metadata: map[string]string{
			"actor":  actorID,
			"reason": reason,
		},
		CreatedAt: time.Now().UTC(),
	}
	if err := s.txRepo.Create(ctx, dbTx, txn); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("record refund: %w", err))
	}

	if err := s.orderRepo.UpdatePaymentStatus(ctx, dbTx, orderID,
		domain.PaymentStatusPendingSettlement, domain.PaymentStatusCancelled, nil); err != nil {
		if errors.Is(err, ports.ErrStateConflict) {
			return nil, apperror.ErrInvalidTransition("order is not awaiting settlement")
		}
		return nil, apperror.InternalError(fmt.Errorf("cancel order: %w", err))
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.invalidateBalances(ctx, domain.EscrowOwnerID, order.CustomerID)

	s.log.Info().
		Str("order_id", orderID).
		Str("customer_id", order.CustomerID).
		Int64("amount", locked.Amount).
		Str("reason", reason).
		Msg("order refunded")

	return txn, nil
}

// invalidateBalances drops cached balance snapshots after a commit. Cache
// failures only cost freshness, never correctness.
func (s *EscrowServiceImpl) invalidateBalances(ctx context.Context, ownerIDs ...string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, ownerIDs...); err != nil {
		s.log.Warn().Err(err).Strs("owners", ownerIDs).Msg("balance cache invalidation failed")
	}
}
