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

// TopupRepo implements ports.TopupRepository.
type TopupRepo struct {
	pool Pool
}

// NewTopupRepo creates a new TopupRepo.
func NewTopupRepo(pool Pool) *TopupRepo {
	return &TopupRepo{pool: pool}
}

const topupColumns = `id, user_id, amount, currency, status, proof_url, requested_at, approved_by, approved_at, rejection_reason`

// Create inserts a new pending topup request.
func (r *TopupRepo) Create(ctx context.Context, req *domain.TopupRequest) error {
	query := `INSERT INTO topup_requests (id, user_id, amount, currency, status, proof_url, requested_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.pool.Exec(ctx, query,
		req.ID, req.UserID, req.Amount, req.Currency, req.Status, req.ProofURL, req.RequestedAt,
	)
	if err != nil {
		return fmt.Errorf("insert topup request: %w", err)
	}
	return nil
}

// GetByID fetches a topup request without locking. Returns nil, nil when absent.
func (r *TopupRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.TopupRequest, error) {
	query := `SELECT ` + topupColumns + ` FROM topup_requests WHERE id = $1`
	return scanTopup(r.pool.QueryRow(ctx, query, id))
}

// GetByIDForUpdate fetches a topup request with a row lock so a concurrent
// approve and reject serialize. MUST be called within a transaction.
func (r *TopupRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.TopupRequest, error) {
	query := `SELECT ` + topupColumns + ` FROM topup_requests WHERE id = $1 FOR UPDATE`
	return scanTopup(tx.QueryRow(ctx, query, id))
}

// MarkApproved transitions a pending request to approved. The status guard
// makes a second approval fail with ErrStateConflict instead of re-crediting.
func (r *TopupRepo) MarkApproved(ctx context.Context, tx pgx.Tx, id uuid.UUID, adminID string, at time.Time) error {
	query := `UPDATE topup_requests SET status = $1, approved_by = $2, approved_at = $3
		WHERE id = $4 AND status = $5`

	tag, err := tx.Exec(ctx, query, domain.TopupStatusApproved, adminID, at, id, domain.TopupStatusPending)
	if err != nil {
		return fmt.Errorf("approve topup request: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ports.ErrStateConflict
	}
	return nil
}

// MarkRejected transitions a pending request to rejected with a reason.
func (r *TopupRepo) MarkRejected(ctx context.Context, tx pgx.Tx, id uuid.UUID, adminID string, reason string) error {
	query := `UPDATE topup_requests SET status = $1, approved_by = $2, rejection_reason = $3
		WHERE id = $4 AND status = $5`

	tag, err := tx.Exec(ctx, query, domain.TopupStatusRejected, adminID, reason, id, domain.TopupStatusPending)
	if err != nil {
		return fmt.Errorf("reject topup request: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ports.ErrStateConflict
	}
	return nil
}

// ListByStatus returns requests in the given status, oldest first.
func (r *TopupRepo) ListByStatus(ctx context.Context, status domain.TopupStatus) ([]domain.TopupRequest, error) {
	query := `SELECT ` + topupColumns + ` FROM topup_requests WHERE status = $1 ORDER BY requested_at`

	rows, err := r.pool.Query(ctx, query, status)
	if err != nil {
		return nil, fmt.Errorf("list topup requests: %w", err)
	}
	defer rows.Close()

	var reqs []domain.TopupRequest
	for rows.Next() {
		var req domain.TopupRequest
		if err := rows.Scan(
			&req.ID, &req.UserID, &req.Amount, &req.Currency, &req.Status,
			&req.ProofURL, &req.RequestedAt, &req.ApprovedBy, &req.ApprovedAt, &req.RejectionReason,
		); err != nil {
			return nil, fmt.Errorf("scan topup request: %w", err)
		}
		reqs = append(reqs, req)
	}
	return reqs, rows.Err()
}

func scanTopup(row pgx.Row) (*domain.TopupRequest, error) {
	req := &domain.TopupRequest{}
	err := row.Scan(
		&req.ID, &req.UserID, &req.Amount, &req.Currency, &req.Status,
		&req.ProofURL, &req.RequestedAt, &req.ApprovedBy, &req.ApprovedAt, &req.RejectionReason,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan topup request: %w", err)
	}
	return req, nil
}
