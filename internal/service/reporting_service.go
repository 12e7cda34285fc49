package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"marketplace-ledger/internal/core/domain"
	"marketplace-ledger/internal/core/ports"
	"marketplace-ledger/pkg/apperror"

	"github.com/rs/zerolog"
)

const balanceCacheTTL = 30 * time.Second

// ReportingServiceImpl implements ports.ReportingService: the read-only
// query surface over wallets and the ledger. Balance reads go through the
// cache; everything else hits the database directly.
type ReportingServiceImpl struct {
	walletRepo ports.WalletRepository
	txRepo     ports.TransactionRepository
	cache      ports.BalanceCache
	log        zerolog.Logger
}

// NewReportingService creates a new ReportingServiceImpl.
func NewReportingService(
	walletRepo ports.WalletRepository,
	txRepo ports.TransactionRepository,
	cache ports.BalanceCache,
	log zerolog.Logger,
) *ReportingServiceImpl {
	return &ReportingServiceImpl{
		walletRepo: walletRepo,
		txRepo:     txRepo,
		cache:      cache,
		log:        log,
	}
}

type cachedBalance struct {
	OwnerID  string `json:"owner_id"`
	Balance  int64  `json:"balance"`
	Currency string `json:"currency"`
}

// GetBalance returns the wallet for the given owner, serving from the cache
// when a fresh snapshot exists. The database remains the source of truth.
func (s *ReportingServiceImpl) GetBalance(ctx context.Context, ownerID string) (*domain.Wallet, error) {
	if s.cache != nil {
		if raw, err := s.cache.Get(ctx, ownerID); err != nil {
			s.log.Warn().Err(err).Str("owner_id", ownerID).Msg("balance cache read failed")
		} else if raw != nil {
			var cb cachedBalance
			if err := json.Unmarshal(raw, &cb); err == nil {
				return &domain.Wallet{OwnerID: cb.OwnerID, Balance: cb.Balance, Currency: cb.Currency}, nil
			}
		}
	}

	wallet, err := s.walletRepo.GetByOwnerID(ctx, ownerID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("load wallet: %w", err))
	}
	if wallet == nil {
		return nil, apperror.ErrNotFound("wallet")
	}

	if s.cache != nil {
		raw, err := json.Marshal(cachedBalance{OwnerID: wallet.OwnerID, Balance: wallet.Balance, Currency: wallet.Currency})
		if err == nil {
			if err := s.cache.Set(ctx, ownerID, raw, balanceCacheTTL); err != nil {
				s.log.Warn().Err(err).Str("owner_id", ownerID).Msg("balance cache write failed")
			}
		}
	}

	return wallet, nil
}

// ListWalletTransactions returns the ledger entries touching the owner's
// wallet, newest first.
func (s *ReportingServiceImpl) ListWalletTransactions(ctx context.Context, ownerID string) ([]domain.Transaction, error) {
	wallet, err := s.walletRepo.GetByOwnerID(ctx, ownerID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("load wallet: %w", err))
	}
	if wallet == nil {
		return nil, apperror.ErrNotFound("wallet")
	}

	txns, err := s.txRepo.ListByWallet(ctx, wallet.ID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("list wallet transactions: %w", err))
	}
	return txns, nil
}

// ListOrderTransactions returns every ledger entry tied to one order.
func (s *ReportingServiceImpl) ListOrderTransactions(ctx context.Context, orderID string) ([]domain.Transaction, error) {
	txns, err := s.txRepo.ListByOrder(ctx, orderID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("list order transactions: %w", err))
	}
	return txns, nil
}

// Summary aggregates the ledger for the admin dashboard: total funds held
// in escrow, total commission retained by the platform, and per-merchant
// balances awaiting payout.
func (s *ReportingServiceImpl) Summary(ctx context.Context) (*ports.LedgerSummary, error) {
	summary := &ports.LedgerSummary{}

	escrowWallet, err := s.walletRepo.GetByOwnerID(ctx, domain.EscrowOwnerID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("escrow wallet: %w", err))
	}
	if escrowWallet != nil {
		summary.EscrowTotal = escrowWallet.Balance
	}

	commissionTotal, err := s.txRepo.SumAmountByTypes(ctx,
		domain.TransactionTypeCommission, domain.TransactionTypePayoutCommission)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("sum commissions: %w", err))
	}
	summary.PlatformCommissionTotal = commissionTotal

	merchants, err := s.walletRepo.ListByKindWithBalance(ctx, domain.OwnerKindMerchant)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("list merchant wallets: %w", err))
	}
	summary.MerchantBalances = merchants

	return summary, nil
}
