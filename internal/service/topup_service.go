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

// TopupServiceImpl implements ports.TopupService: a two-step deposit flow.
// Users request a top-up; no money moves until an admin approves it, at
// which point the credit and the ledger entry commit atomically with the
// request's status flip.
type TopupServiceImpl struct {
	topupRepo  ports.TopupRepository
	walletRepo ports.WalletRepository
	txRepo     ports.TransactionRepository
	cache      ports.BalanceCache
	transactor ports.DBTransactor
	log        zerolog.Logger
}

// NewTopupService creates a new TopupServiceImpl.
func NewTopupService(
	topupRepo ports.TopupRepository,
	walletRepo ports.WalletRepository,
	txRepo ports.TransactionRepository,
	cache ports.BalanceCache,
	transactor ports.DBTransactor,
	log zerolog.Logger,
) *TopupServiceImpl {
	return &TopupServiceImpl{
		topupRepo:  topupRepo,
		walletRepo: walletRepo,
		txRepo:     txRepo,
		cache:      cache,
		transactor: transactor,
		log:        log,
	}
}

// Request records a pending top-up. Balances are untouched.
func (s *TopupServiceImpl) Request(ctx context.Context, input ports.TopupRequestInput) (*domain.TopupRequest, error) {
	if input.Amount <= 0 {
		return nil, apperror.ErrInvalidAmount()
	}
	if input.UserID == "" {
		return nil, apperror.Validation("user_id is required")
	}

	currency := input.Currency
	if currency == "" {
		currency = domain.DefaultCurrency
	}

	req := &domain.TopupRequest{
		ID:          uuid.New(),
		UserID:      input.UserID,
		Amount:      input.Amount,
		Currency:    currency,
		Status:      domain.TopupStatusPending,
		ProofURL:    input.ProofURL,
		RequestedAt: time.Now().UTC(),
	}
	if err := s.topupRepo.Create(ctx, req); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create topup request: %w", err))
	}

	s.log.Info().
		Str("topup_id", req.ID.String()).
		Str("user_id", req.UserID).
		Int64("amount", req.Amount).
		Msg("topup requested")

	return req, nil
}

// Approve credits the requester's wallet and marks the request approved in
// one transaction. A second approval of the same request fails with a state
// conflict instead of double-crediting.
func (s *TopupServiceImpl) Approve(ctx context.Context, topupID uuid.UUID, adminID string) (*domain.TopupRequest, error) {
	req, err := s.topupRepo.GetByID(ctx, topupID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("load topup request: %w", err))
	}
	if req == nil {
		return nil, apperror.ErrNotFound("topup request")
	}
	if !req.IsPending() {
		return nil, apperror.ErrInvalidTransition("topup request already resolved")
	}

	wallet, err := s.walletRepo.GetOrCreate(ctx, req.UserID, domain.OwnerKindCustomer, req.Currency)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("requester wallet: %w", err))
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	locked, err := s.topupRepo.GetByIDForUpdate(ctx, dbTx, topupID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock topup request: %w", err))
	}
	if locked == nil {
		return nil, apperror.ErrNotFound("topup request")
	}
	if !locked.IsPending() {
		return nil, apperror.ErrInvalidTransition("topup request already resolved")
	}

	if _, err := s.walletRepo.ApplyDelta(ctx, dbTx, wallet.ID, locked.Amount); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("credit wallet: %w", err))
	}

	txn := &domain.Transaction{
		ID:         uuid.New(),
		Type:       domain.TransactionTypeTopup,
		ToWalletID: &wallet.ID,
		Amount:     locked.Amount,
		Status:     domain.TransactionStatusCompleted,
		Metadata: map[string]string{
			"topup_id":    locked.ID.String(),
			"approved_by": adminID,
		},
		CreatedAt: time.Now().UTC(),
	}
	if err := s.txRepo.Create(ctx, dbTx, txn); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("record topup: %w", err))
	}

	approvedAt := time.Now().UTC()
	if err := s.topupRepo.MarkApproved(ctx, dbTx, topupID, adminID, approvedAt); err != nil {
		if errors.Is(err, ports.ErrStateConflict) {
			return nil, apperror.ErrInvalidTransition("topup request already resolved")
		}
		return nil, apperror.InternalError(fmt.Errorf("mark approved: %w", err))
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, locked.UserID); err != nil {
			s.log.Warn().Err(err).Str("user_id", locked.UserID).Msg("balance cache invalidation failed")
		}
	}

	s.log.Info().
		Str("topup_id", topupID.String()).
		Str("user_id", locked.UserID).
		Str("admin_id", adminID).
		Int64("amount", locked.Amount).
		Msg("topup approved")

	locked.Status = domain.TopupStatusApproved
	locked.ApprovedBy = &adminID
	locked.ApprovedAt = &approvedAt
	return locked, nil
}

// Reject resolves a pending request without moving money.
func (s *TopupServiceImpl) Reject(ctx context.Context, topupID uuid.UUID, adminID string, reason string) (*domain.TopupRequest, error) {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	locked, err := s.topupRepo.GetByIDForUpdate(ctx, dbTx, topupID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock topup request: %w", err))
	}
	if locked == nil {
		return nil, apperror.ErrNotFound("topup request")
	}
	if !locked.IsPending() {
		return nil, apperror.ErrInvalidTransition("topup request already resolved")
	}

	if err := s.topupRepo.MarkRejected(ctx, dbTx, topupID, adminID, reason); err != nil {
		if errors.Is(err, ports.ErrStateConflict) {
			return nil, apperror.ErrInvalidTransition("topup request already resolved")
		}
		return nil, apperror.InternalError(fmt.Errorf("mark rejected: %w", err))
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.log.Info().
		Str("topup_id", topupID.String()).
		Str("admin_id", adminID).
		Str("reason", reason).
		Msg("topup rejected")

	locked.Status = domain.TopupStatusRejected
	locked.ApprovedBy = &adminID
	locked.RejectionReason = &reason
	return locked, nil
}

// ListPending returns the admin review queue, oldest first.
func (s *TopupServiceImpl) ListPending(ctx context.Context) ([]domain.TopupRequest, error) {
	reqs, err := s.topupRepo.ListByStatus(ctx, domain.TopupStatusPending)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("list pending topups: %w", err))
	}
	return reqs, nil
}
