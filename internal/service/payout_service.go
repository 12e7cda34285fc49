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

// PayoutServiceImpl implements ports.PayoutService: the end-of-cycle sweep
// that empties merchant wallets, retaining the payout commission on the
// platform wallet and recording the remainder as an external transfer.
type PayoutServiceImpl struct {
	walletRepo ports.WalletRepository
	txRepo     ports.TransactionRepository
	commission *domain.CommissionResolver
	cache      ports.BalanceCache
	transactor ports.DBTransactor
	log        zerolog.Logger
}

// NewPayoutService creates a new PayoutServiceImpl.
func NewPayoutService(
	walletRepo ports.WalletRepository,
	txRepo ports.TransactionRepository,
	commission *domain.CommissionResolver,
	cache ports.BalanceCache,
	transactor ports.DBTransactor,
	log zerolog.Logger,
) *PayoutServiceImpl {
	return &PayoutServiceImpl{
		walletRepo: walletRepo,
		txRepo:     txRepo,
		commission: commission,
		cache:      cache,
		transactor: transactor,
		log:        log,
	}
}

// ListPayableMerchants returns merchant wallets holding a positive balance.
func (s *PayoutServiceImpl) ListPayableMerchants(ctx context.Context) ([]domain.Wallet, error) {
	wallets, err := s.walletRepo.ListByKindWithBalance(ctx, domain.OwnerKindMerchant)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("list merchant wallets: %w", err))
	}
	return wallets, nil
}

// BuildReconciliationExport computes the per-merchant payout preview for the
// given wallets without touching any balance.
func (s *PayoutServiceImpl) BuildReconciliationExport(wallets []domain.Wallet, date time.Time) []ports.ReconciliationRow {
	rows := make([]ports.ReconciliationRow, 0, len(wallets))
	day := date.Format("2006-01-02")
	for _, w := range wallets {
		policy := s.commission.Resolve(w.OwnerID)
		commission := domain.CommissionAmount(w.Balance, policy.PayoutFee)
		rows = append(rows, ports.ReconciliationRow{
			MerchantID:       w.OwnerID,
			OriginalAmount:   w.Balance,
			PayoutCommission: commission,
			FinalAmount:      w.Balance - commission,
			Date:             day,
		})
	}
	return rows
}

// ExecutePayout drains one merchant wallet: the payout commission moves to
// the platform wallet, the remainder leaves the ledger as a transfer record.
// Both ledger entries and both deltas commit atomically.
func (s *PayoutServiceImpl) ExecutePayout(ctx context.Context, merchantID string, adminID string) (*ports.PayoutResult, error) {
	wallet, err := s.walletRepo.GetByOwnerID(ctx, merchantID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("merchant wallet: %w", err))
	}
	if wallet == nil {
		return nil, apperror.ErrNotFound("merchant wallet")
	}
	if wallet.Balance <= 0 {
		return nil, apperror.ErrNothingToPayout()
	}

	platformWallet, err := s.walletRepo.GetOrCreate(ctx, domain.PlatformOwnerID, domain.OwnerKindPlatform, "")
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("platform wallet: %w", err))
	}

	original := wallet.Balance
	policy := s.commission.Resolve(merchantID)
	commission := domain.CommissionAmount(original, policy.PayoutFee)
	final := original - commission

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	// The conditional balance guard doubles as a concurrency check: if a
	// parallel payout drained the wallet first, the debit underflows and
	// this attempt reports nothing to pay out.
	if _, err := s.walletRepo.ApplyDelta(ctx, dbTx, wallet.ID, -original); err != nil {
		if errors.Is(err, ports.ErrInsufficientBalance) {
			return nil, apperror.ErrNothingToPayout()
		}
		return nil, apperror.InternalError(fmt.Errorf("debit merchant: %w", err))
	}

	now := time.Now().UTC()
	rate := fmt.Sprintf("%g", policy.PayoutFee)

	if commission > 0 {
		if _, err := s.walletRepo.ApplyDelta(ctx, dbTx, platformWallet.ID, commission); err != nil {
			return nil, apperror.InternalError(fmt.Errorf("credit platform: %w", err))
		}
		commissionTx := &domain.Transaction{
			ID:           uuid.New(),
			Type:         domain.TransactionTypePayoutCommission,
			FromWalletID: &wallet.ID,
			ToWalletID:   &platformWallet.ID,
			Amount:       commission,
			Status:       domain.TransactionStatusCompleted,
			Metadata: map[string]string{
				"merchant_id": merchantID,
				"admin_id":    adminID,
				"payout_fee":  rate,
			},
			CreatedAt: now,
		}
		if err := s.txRepo.Create(ctx, dbTx, commissionTx); err != nil {
			return nil, apperror.InternalError(fmt.Errorf("record payout commission: %w", err))
		}
	}

	if final > 0 {
		transferTx := &domain.Transaction{
			ID:           uuid.New(),
			Type:         domain.TransactionTypePayoutTransfer,
			FromWalletID: &wallet.ID,
			Amount:       final,
			Status:       domain.TransactionStatusCompleted,
			Metadata: map[string]string{
				"merchant_id": merchantID,
				"admin_id":    adminID,
			},
			CreatedAt: now,
		}
		if err := s.txRepo.Create(ctx, dbTx, transferTx); err != nil {
			return nil, apperror.InternalError(fmt.Errorf("record payout transfer: %w", err))
		}
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, merchantID, domain.PlatformOwnerID); err != nil {
			s.log.Warn().Err(err).Str("merchant_id", merchantID).Msg("balance cache invalidation failed")
		}
	}

	s.log.Info().
		Str("merchant_id", merchantID).
		Str("admin_id", adminID).
		Int64("original", original).
		Int64("commission", commission).
		Int64("final", final).
		Msg("merchant payout executed")

	return &ports.PayoutResult{
		MerchantID:       merchantID,
		OriginalAmount:   original,
		CommissionAmount: commission,
		FinalAmount:      final,
	}, nil
}

// ExecuteBulkPayout runs a payout for every given merchant independently;
// one merchant's failure never blocks the rest. The result slice keeps the
// input order and carries one entry per merchant, success or not.
func (s *PayoutServiceImpl) ExecuteBulkPayout(ctx context.Context, merchantIDs []string, adminID string) []ports.BulkPayoutResult {
	results := make([]ports.BulkPayoutResult, 0, len(merchantIDs))
	for _, merchantID := range merchantIDs {
		res, err := s.ExecutePayout(ctx, merchantID, adminID)
		if err != nil {
			s.log.Warn().Err(err).Str("merchant_id", merchantID).Msg("bulk payout entry failed")
			results = append(results, ports.BulkPayoutResult{MerchantID: merchantID, Err: err})
			continue
		}
		results = append(results, ports.BulkPayoutResult{MerchantID: merchantID, Result: res})
	}
	return results
}
