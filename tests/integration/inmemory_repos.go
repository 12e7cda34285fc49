package integration

import (
	"context"
	"sync"
	"time"

	"marketplace-ledger/internal/core/domain"
	"marketplace-ledger/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// In-memory repository implementations backing the integration tests. They
// reproduce the postgres adapters' contracts: ApplyDelta is a conditional
// atomic increment, status transitions are compare-and-set, and reads return
// nil, nil on miss.

// --- In-Memory Wallet Repo ---

type inMemoryWalletRepo struct {
	mu      sync.RWMutex
	byID    map[uuid.UUID]*domain.Wallet
	byOwner map[string]uuid.UUID
}

func newInMemoryWalletRepo() *inMemoryWalletRepo {
	return &inMemoryWalletRepo{
		byID:    make(map[uuid.UUID]*domain.Wallet),
		byOwner: make(map[string]uuid.UUID),
	}
}

func (r *inMemoryWalletRepo) GetOrCreate(ctx context.Context, ownerID string, kind domain.OwnerKind, currency string) (*domain.Wallet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if id, ok := r.byOwner[ownerID]; ok {
		cp := *r.byID[id]
		return &cp, nil
	}
	if currency == "" {
		currency = domain.DefaultCurrency
	}
	now := time.Now().UTC()
	w := &domain.Wallet{
		ID:        uuid.New(),
		OwnerID:   ownerID,
		OwnerKind: kind,
		Balance:   0,
		Currency:  currency,
		CreatedAt: now,
		UpdatedAt: now,
	}
	r.byID[w.ID] = w
	r.byOwner[ownerID] = w.ID
	cp := *w
	return &cp, nil
}

func (r *inMemoryWalletRepo) GetByOwnerID(ctx context.Context, ownerID string) (*domain.Wallet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byOwner[ownerID]
	if !ok {
		return nil, nil
	}
	cp := *r.byID[id]
	return &cp, nil
}

func (r *inMemoryWalletRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Wallet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	w, ok := r.byID[id]
	if !ok {
		return nil, nil
	}
	cp := *w
	return &cp, nil
}

func (r *inMemoryWalletRepo) ApplyDelta(ctx context.Context, tx pgx.Tx, walletID uuid.UUID, delta int64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.byID[walletID]
	if !ok {
		return 0, pgx.ErrNoRows
	}
	if w.Balance+delta < 0 {
		return 0, ports.ErrInsufficientBalance
	}
	w.Balance += delta
	w.UpdatedAt = time.Now().UTC()
	return w.Balance, nil
}

func (r *inMemoryWalletRepo) ListByKindWithBalance(ctx context.Context, kind domain.OwnerKind) ([]domain.Wallet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []domain.Wallet
	for _, w := range r.byID {
		if w.OwnerKind == kind && w.Balance > 0 {
			result = append(result, *w)
		}
	}
	return result, nil
}

// balanceOf is a test-side shortcut past the HTTP layer.
func (r *inMemoryWalletRepo) balanceOf(ownerID string) int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byOwner[ownerID]
	if !ok {
		return 0
	}
	return r.byID[id].Balance
}

// --- In-Memory Transaction Repo ---

type inMemoryTransactionRepo struct {
	mu      sync.RWMutex
	entries []*domain.Transaction
	byID    map[uuid.UUID]*domain.Transaction
}

func newInMemoryTransactionRepo() *inMemoryTransactionRepo {
	return &inMemoryTransactionRepo{byID: make(map[uuid.UUID]*domain.Transaction)}
}

func (r *inMemoryTransactionRepo) Create(ctx context.Context, tx pgx.Tx, txn *domain.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, txn)
	r.byID[txn.ID] = txn
	return nil
}

func (r *inMemoryTransactionRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.byID[id]
	if !ok {
		return nil, nil
	}
	return t, nil
}

func (r *inMemoryTransactionRepo) ListByWallet(ctx context.Context, walletID uuid.UUID) ([]domain.Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []domain.Transaction
	for _, t := range r.entries {
		if (t.FromWalletID != nil && *t.FromWalletID == walletID) ||
			(t.ToWalletID != nil && *t.ToWalletID == walletID) {
			result = append(result, *t)
		}
	}
	return result, nil
}

func (r *inMemoryTransactionRepo) ListByType(ctx context.Context, txType domain.TransactionType) ([]domain.Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []domain.Transaction
	for _, t := range r.entries {
		if t.Type == txType {
			result = append(result, *t)
		}
	}
	return result, nil
}

func (r *inMemoryTransactionRepo) ListByOrder(ctx context.Context, orderID string) ([]domain.Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []domain.Transaction
	for _, t := range r.entries {
		if t.OrderID != nil && *t.OrderID == orderID {
			result = append(result, *t)
		}
	}
	return result, nil
}

func (r *inMemoryTransactionRepo) SumForWallet(ctx context.Context, walletID uuid.UUID) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var sum int64
	for _, t := range r.entries {
		sum += t.SignedAmountFor(walletID)
	}
	return sum, nil
}

func (r *inMemoryTransactionRepo) SumAmountByTypes(ctx context.Context, types ...domain.TransactionType) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	wanted := make(map[domain.TransactionType]bool, len(types))
	for _, tt := range types {
		wanted[tt] = true
	}
	var sum int64
	for _, t := range r.entries {
		if wanted[t.Type] {
			sum += t.Amount
		}
	}
	return sum, nil
}

func (r *inMemoryTransactionRepo) all() []*domain.Transaction {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*domain.Transaction, len(r.entries))
	copy(out, r.entries)
	return out
}

// --- In-Memory Order Repo ---

type inMemoryOrderRepo struct {
	mu     sync.RWMutex
	orders map[string]*domain.Order
}

func newInMemoryOrderRepo() *inMemoryOrderRepo {
	return &inMemoryOrderRepo{orders: make(map[string]*domain.Order)}
}

// seed registers an order as the storefront would have created it.
func (r *inMemoryOrderRepo) seed(o *domain.Order) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if o.PaymentStatus == "" {
		o.PaymentStatus = domain.PaymentStatusNone
	}
	r.orders[o.ID] = o
}

func (r *inMemoryOrderRepo) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	o, ok := r.orders[id]
	if !ok {
		return nil, nil
	}
	cp := *o
	return &cp, nil
}

func (r *inMemoryOrderRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id string) (*domain.Order, error) {
	return r.GetByID(ctx, id)
}

func (r *inMemoryOrderRepo) UpdatePaymentStatus(ctx context.Context, tx pgx.Tx, id string, expected, next domain.PaymentStatus, holdTxID *uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok || o.PaymentStatus != expected {
		return ports.ErrStateConflict
	}
	o.PaymentStatus = next
	if holdTxID != nil {
		o.HoldTransactionID = holdTxID
	}
	o.UpdatedAt = time.Now().UTC()
	return nil
}

// --- In-Memory Topup Repo ---

type inMemoryTopupRepo struct {
	mu       sync.RWMutex
	requests map[uuid.UUID]*domain.TopupRequest
}

func newInMemoryTopupRepo() *inMemoryTopupRepo {
	return &inMemoryTopupRepo{requests: make(map[uuid.UUID]*domain.TopupRequest)}
}

func (r *inMemoryTopupRepo) Create(ctx context.Context, req *domain.TopupRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *req
	r.requests[req.ID] = &cp
	return nil
}

func (r *inMemoryTopupRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.TopupRequest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	req, ok := r.requests[id]
	if !ok {
		return nil, nil
	}
	cp := *req
	return &cp, nil
}

func (r *inMemoryTopupRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.TopupRequest, error) {
	return r.GetByID(ctx, id)
}

func (r *inMemoryTopupRepo) MarkApproved(ctx context.Context, tx pgx.Tx, id uuid.UUID, adminID string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	req, ok := r.requests[id]
	if !ok || !req.IsPending() {
		return ports.ErrStateConflict
	}
	req.Status = domain.TopupStatusApproved
	req.ApprovedBy = &adminID
	req.ApprovedAt = &at
	return nil
}

func (r *inMemoryTopupRepo) MarkRejected(ctx context.Context, tx pgx.Tx, id uuid.UUID, adminID string, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	req, ok := r.requests[id]
	if !ok || !req.IsPending() {
		return ports.ErrStateConflict
	}
	req.Status = domain.TopupStatusRejected
	req.ApprovedBy = &adminID
	req.RejectionReason = &reason
	return nil
}

func (r *inMemoryTopupRepo) ListByStatus(ctx context.Context, status domain.TopupStatus) ([]domain.TopupRequest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []domain.TopupRequest
	for _, req := range r.requests {
		if req.Status == status {
			result = append(result, *req)
		}
	}
	return result, nil
}

// --- In-Memory Transactor ---

// inMemoryTransactor serializes transaction blocks with a single mutex. This
// stands in for the row locks the postgres adapter takes: a concurrent
// transition blocks on Begin until the previous block commits or rolls back,
// so its in-transaction state re-check observes the committed outcome.
type inMemoryTransactor struct {
	mu sync.Mutex
}

func newInMemoryTransactor() *inMemoryTransactor {
	return &inMemoryTransactor{}
}

func (t *inMemoryTransactor) Begin(ctx context.Context) (pgx.Tx, error) {
	t.mu.Lock()
	return &memTx{release: func() { t.mu.Unlock() }}, nil
}

// memTx is a no-op pgx.Tx whose Commit/Rollback release the transactor mutex
// exactly once. Services call Rollback via defer even after a successful
// Commit, matching pgx semantics.
type memTx struct {
	once    sync.Once
	release func()
}

func (t *memTx) done() { t.once.Do(t.release) }

func (t *memTx) Begin(ctx context.Context) (pgx.Tx, error) { return t, nil }
func (t *memTx) Commit(ctx context.Context) error          { t.done(); return nil }
func (t *memTx) Rollback(ctx context.Context) error        { t.done(); return nil }
func (t *memTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	return 0, nil
}
func (t *memTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults { return nil }
func (t *memTx) LargeObjects() pgx.LargeObjects                               { return pgx.LargeObjects{} }
func (t *memTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	return nil, nil
}
func (t *memTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	return pgconn.NewCommandTag(""), nil
}
func (t *memTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, nil
}
func (t *memTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return nil
}
func (t *memTx) Conn() *pgx.Conn { return nil }
