package storage

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/rl1809/fund-engine/internal/core/domain"
	"github.com/rl1809/fund-engine/internal/port"
)

var (
	_ port.DatabaseRepository = (*MemoryAdapter)(nil)
	_ port.Tx                 = (*memoryTx)(nil)
)

// MemoryAdapter is a single-process store for development and tests. Each
// transaction works on a private copy of the state that replaces the shared
// one only when fn succeeds, so a failed transaction leaves nothing behind.
type MemoryAdapter struct {
	mu    sync.RWMutex
	state *memoryState
}

type memoryState struct {
	accounts      map[string]domain.Account
	funds         []domain.Fund
	subscriptions []domain.Subscription
	transactions  []domain.TransactionRecord
}

func NewMemoryAdapter() *MemoryAdapter {
	return &MemoryAdapter{state: &memoryState{accounts: make(map[string]domain.Account)}}
}

// PutAccount creates or replaces an account with the given opening balance.
func (m *MemoryAdapter) PutAccount(id string, balance domain.Amount) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC()
	m.state.accounts[id] = domain.Account{
		ID:             id,
		Balance:        balance,
		InitialBalance: balance,
		Active:         true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// SetAccountActive flips the active flag of an existing account.
func (m *MemoryAdapter) SetAccountActive(id string, active bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if acc, ok := m.state.accounts[id]; ok {
		acc.Active = active
		m.state.accounts[id] = acc
	}
}

// PutFund appends a fund to the catalog or replaces the entry with the same ID.
func (m *MemoryAdapter) PutFund(f domain.Fund) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.state.funds {
		if m.state.funds[i].ID == f.ID {
			f.Position = m.state.funds[i].Position
			m.state.funds[i] = f
			return
		}
	}
	f.Position = len(m.state.funds) + 1
	if f.CreatedAt.IsZero() {
		f.CreatedAt = time.Now().UTC()
	}
	m.state.funds = append(m.state.funds, f)
}

func (m *MemoryAdapter) WithTx(ctx context.Context, fn func(tx port.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	staged := m.state.clone()
	if err := fn(&memoryTx{memoryReader{staged}}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m.state = staged
	return nil
}

func (m *MemoryAdapter) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (m *MemoryAdapter) GetAccount(ctx context.Context, accountID string) (*domain.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return memoryReader{m.state}.GetAccount(ctx, accountID)
}

func (m *MemoryAdapter) GetFund(ctx context.Context, fundID string) (*domain.Fund, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return memoryReader{m.state}.GetFund(ctx, fundID)
}

func (m *MemoryAdapter) GetActiveSubscription(ctx context.Context, accountID, fundID string) (*domain.Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return memoryReader{m.state}.GetActiveSubscription(ctx, accountID, fundID)
}

func (m *MemoryAdapter) FindTransactionByIdempotencyKey(ctx context.Context, accountID, key string) (*domain.TransactionRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return memoryReader{m.state}.FindTransactionByIdempotencyKey(ctx, accountID, key)
}

func (m *MemoryAdapter) ListFunds(ctx context.Context) ([]domain.Fund, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.state.funds), nil
}

func (m *MemoryAdapter) ListActiveSubscriptions(ctx context.Context, accountID string) ([]domain.Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var subs []domain.Subscription
	for _, sub := range m.state.subscriptions {
		if sub.AccountID == accountID && sub.Active {
			subs = append(subs, sub)
		}
	}
	return subs, nil
}

func (m *MemoryAdapter) ListTransactions(ctx context.Context, accountID string) ([]domain.TransactionRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var records []domain.TransactionRecord
	for i := len(m.state.transactions) - 1; i >= 0; i-- {
		if rec := m.state.transactions[i]; rec.AccountID == accountID {
			records = append(records, rec)
		}
	}
	return records, nil
}

func (m *MemoryAdapter) ListAccountIDs(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]string, 0, len(m.state.accounts))
	for id := range m.state.accounts {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids, nil
}

func (s *memoryState) clone() *memoryState {
	accounts := make(map[string]domain.Account, len(s.accounts))
	for id, acc := range s.accounts {
		accounts[id] = acc
	}
	return &memoryState{
		accounts:      accounts,
		funds:         slices.Clone(s.funds),
		subscriptions: slices.Clone(s.subscriptions),
		transactions:  slices.Clone(s.transactions),
	}
}

type memoryReader struct {
	s *memoryState
}

func (r memoryReader) GetAccount(_ context.Context, accountID string) (*domain.Account, error) {
	acc, ok := r.s.accounts[accountID]
	if !ok {
		return nil, nil
	}
	return &acc, nil
}

func (r memoryReader) GetFund(_ context.Context, fundID string) (*domain.Fund, error) {
	for _, f := range r.s.funds {
		if f.ID == fundID {
			return &f, nil
		}
	}
	return nil, nil
}

func (r memoryReader) GetActiveSubscription(_ context.Context, accountID, fundID string) (*domain.Subscription, error) {
	for _, sub := range r.s.subscriptions {
		if sub.AccountID == accountID && sub.FundID == fundID && sub.Active {
			return &sub, nil
		}
	}
	return nil, nil
}

func (r memoryReader) FindTransactionByIdempotencyKey(_ context.Context, accountID, key string) (*domain.TransactionRecord, error) {
	for _, rec := range r.s.transactions {
		if rec.AccountID == accountID && rec.IdempotencyKey == key && key != "" {
			return &rec, nil
		}
	}
	return nil, nil
}

type memoryTx struct {
	memoryReader
}

func (t *memoryTx) LockAccount(ctx context.Context, accountID string) (*domain.Account, error) {
	return t.GetAccount(ctx, accountID)
}

func (t *memoryTx) CompareAndSetBalance(_ context.Context, accountID string, expected, next domain.Amount) (bool, error) {
	acc, ok := t.s.accounts[accountID]
	if !ok || !acc.Active || acc.Balance != expected {
		return false, nil
	}
	acc.Balance = next
	acc.Version++
	acc.UpdatedAt = time.Now().UTC()
	t.s.accounts[accountID] = acc
	return true, nil
}

func (t *memoryTx) InsertSubscription(ctx context.Context, sub domain.Subscription) error {
	existing, _ := t.GetActiveSubscription(ctx, sub.AccountID, sub.FundID)
	if existing != nil {
		return domain.ErrDuplicateSubscription
	}
	sub.Active = true
	t.s.subscriptions = append(t.s.subscriptions, sub)
	return nil
}

func (t *memoryTx) CloseSubscription(_ context.Context, accountID, fundID string, closedAt time.Time) (bool, error) {
	for i := range t.s.subscriptions {
		sub := &t.s.subscriptions[i]
		if sub.AccountID == accountID && sub.FundID == fundID && sub.Active {
			sub.Active = false
			sub.ClosedAt = &closedAt
			return true, nil
		}
	}
	return false, nil
}

func (t *memoryTx) InsertTransaction(ctx context.Context, rec domain.TransactionRecord) error {
	if rec.IdempotencyKey != "" {
		existing, _ := t.FindTransactionByIdempotencyKey(ctx, rec.AccountID, rec.IdempotencyKey)
		if existing != nil {
			return domain.ErrConcurrencyConflict
		}
	}
	t.s.transactions = append(t.s.transactions, rec)
	return nil
}
