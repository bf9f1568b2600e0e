package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/rl1809/fund-engine/internal/adapter/storage"
	"github.com/rl1809/fund-engine/internal/core/domain"
	"github.com/rl1809/fund-engine/internal/port"
)

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

var testFunds = []domain.Fund{
	{ID: "1", Name: "FPV_BTG_PACTUAL_RECAUDADORA", MinimumInvestment: 75000, Category: domain.FundCategoryFPV, Active: true},
	{ID: "2", Name: "FPV_BTG_PACTUAL_ECOPETROL", MinimumInvestment: 125000, Category: domain.FundCategoryFPV, Active: true},
	{ID: "3", Name: "DEUDAPRIVADA", MinimumInvestment: 50000, Category: domain.FundCategoryFIC, Active: true},
	{ID: "4", Name: "FDO-ACCIONES", MinimumInvestment: 250000, Category: domain.FundCategoryFIC, Active: true},
	{ID: "5", Name: "FPV_BTG_PACTUAL_DINAMICA", MinimumInvestment: 100000, Category: domain.FundCategoryFPV, Active: true},
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.Event
}

func (p *recordingPublisher) Publish(event domain.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *recordingPublisher) Events() []domain.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.Event(nil), p.events...)
}

type testEngine struct {
	store     *storage.MemoryAdapter
	cache     *storage.MemoryCache
	guard     *Guard
	catalog   *FundCatalog
	publisher *recordingPublisher
	coord     *Coordinator
}

func newTestStore(balance domain.Amount, accounts ...string) *storage.MemoryAdapter {
	store := storage.NewMemoryAdapter()
	for _, f := range testFunds {
		store.PutFund(f)
	}
	for _, id := range accounts {
		store.PutAccount(id, balance)
	}
	return store
}

func newTestEngine(t *testing.T, db port.DatabaseRepository) *testEngine {
	t.Helper()

	cache := storage.NewMemoryCache()
	guard := NewGuard(cache, GuardConfig{AcquireTimeout: 2 * time.Second, RetryInterval: time.Millisecond}, discardLogger)
	catalog := NewFundCatalog(db, time.Minute, discardLogger)
	pub := &recordingPublisher{}

	e := &testEngine{
		cache:     cache,
		guard:     guard,
		catalog:   catalog,
		publisher: pub,
		coord:     NewCoordinator(db, catalog, guard, pub, discardLogger),
	}
	if s, ok := db.(*storage.MemoryAdapter); ok {
		e.store = s
	}
	return e
}

// failingStore injects err into the ledger append of every transaction.
type failingStore struct {
	*storage.MemoryAdapter
	err error
}

func (f failingStore) WithTx(ctx context.Context, fn func(tx port.Tx) error) error {
	return f.MemoryAdapter.WithTx(ctx, func(tx port.Tx) error {
		return fn(failingTx{Tx: tx, err: f.err})
	})
}

type failingTx struct {
	port.Tx
	err error
}

func (f failingTx) InsertTransaction(context.Context, domain.TransactionRecord) error {
	return f.err
}

// countingSource counts catalog reloads.
type countingSource struct {
	mu    sync.Mutex
	funds []domain.Fund
	calls int
	err   error
}

func (s *countingSource) ListFunds(context.Context) ([]domain.Fund, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return append([]domain.Fund(nil), s.funds...), nil
}

func (s *countingSource) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

var errDiskFull = errors.New("disk full")
