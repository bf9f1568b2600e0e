package service

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/fund-engine/internal/core/domain"
)

func TestSubscribe_DebitsBalanceAndRecordsLedger(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, newTestStore(500000, "acc-1"))

	rec, err := e.coord.Subscribe(ctx, SubscribeRequest{AccountID: "acc-1", FundID: "1", Amount: 75000})
	require.NoError(t, err)

	assert.Equal(t, domain.TransactionKindSubscribe, rec.Kind)
	assert.Equal(t, domain.Amount(500000), rec.BalanceBefore)
	assert.Equal(t, domain.Amount(425000), rec.BalanceAfter)
	assert.Equal(t, "FPV_BTG_PACTUAL_RECAUDADORA", rec.FundName)
	assert.Equal(t, domain.TransactionStatusCompleted, rec.Status)

	view, err := e.coord.GetBalance(ctx, "acc-1")
	require.NoError(t, err)
	assert.Equal(t, domain.Amount(425000), view.Balance)
	assert.Equal(t, domain.Amount(75000), view.TotalInvested)
	require.Len(t, view.ActiveSubscriptions, 1)
	assert.Equal(t, "FPV_BTG_PACTUAL_RECAUDADORA", view.ActiveSubscriptions[0].FundName)

	events := e.publisher.Events()
	require.Len(t, events, 1)
	assert.Equal(t, domain.EventSubscriptionCreated, events[0].Type)
	assert.Equal(t, rec.ID, events[0].Payload.TransactionID)
}

func TestSubscribeThenCancel_RestoresBalance(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, newTestStore(500000, "acc-1"))

	_, err := e.coord.Subscribe(ctx, SubscribeRequest{AccountID: "acc-1", FundID: "1", Amount: 75000})
	require.NoError(t, err)

	rec, err := e.coord.Cancel(ctx, CancelRequest{AccountID: "acc-1", FundID: "1"})
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionKindCancel, rec.Kind)
	assert.Equal(t, domain.Amount(75000), rec.Amount)
	assert.Equal(t, domain.Amount(425000), rec.BalanceBefore)
	assert.Equal(t, domain.Amount(500000), rec.BalanceAfter)

	balance, err := e.coord.ledger.GetBalance(ctx, "acc-1")
	require.NoError(t, err)
	assert.Equal(t, domain.Amount(500000), balance)

	history, err := e.coord.ListTransactions(ctx, "acc-1")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, domain.TransactionKindCancel, history[0].Kind)
	assert.Equal(t, domain.TransactionKindSubscribe, history[1].Kind)

	// The pair can be subscribed again once the previous one is closed.
	_, err = e.coord.Subscribe(ctx, SubscribeRequest{AccountID: "acc-1", FundID: "1", Amount: 80000})
	require.NoError(t, err)
}

func TestSubscribe_MinimumInvestmentBoundary(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, newTestStore(500000, "acc-1", "acc-2"))

	_, err := e.coord.Subscribe(ctx, SubscribeRequest{AccountID: "acc-1", FundID: "3", Amount: 49999})
	require.ErrorIs(t, err, domain.ErrBelowMinimumInvestment)

	_, err = e.coord.Subscribe(ctx, SubscribeRequest{AccountID: "acc-2", FundID: "3", Amount: 50000})
	require.NoError(t, err)
}

func TestSubscribe_ExactBalanceThenInsufficient(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, newTestStore(250000, "acc-1"))

	rec, err := e.coord.Subscribe(ctx, SubscribeRequest{AccountID: "acc-1", FundID: "4", Amount: 250000})
	require.NoError(t, err)
	assert.Equal(t, domain.Amount(0), rec.BalanceAfter)

	_, err = e.coord.Subscribe(ctx, SubscribeRequest{AccountID: "acc-1", FundID: "3", Amount: 50000})
	require.ErrorIs(t, err, domain.ErrInsufficientFunds)
}

func TestSubscribe_Rejections(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(500000, "acc-1", "acc-closed")
	store.SetAccountActive("acc-closed", false)
	store.PutFund(domain.Fund{ID: "9", Name: "RETIRED", MinimumInvestment: 1000, Category: domain.FundCategoryFIC, Active: false})
	e := newTestEngine(t, store)

	_, err := e.coord.Subscribe(ctx, SubscribeRequest{AccountID: "acc-1", FundID: "1", Amount: 75000})
	require.NoError(t, err)

	tests := []struct {
		name    string
		req     SubscribeRequest
		wantErr error
	}{
		{"unknown fund", SubscribeRequest{AccountID: "acc-1", FundID: "99", Amount: 75000}, domain.ErrFundNotFound},
		{"inactive fund", SubscribeRequest{AccountID: "acc-1", FundID: "9", Amount: 5000}, domain.ErrFundInactive},
		{"duplicate", SubscribeRequest{AccountID: "acc-1", FundID: "1", Amount: 90000}, domain.ErrDuplicateSubscription},
		{"insufficient", SubscribeRequest{AccountID: "acc-1", FundID: "2", Amount: 900000}, domain.ErrInsufficientFunds},
		{"unknown account", SubscribeRequest{AccountID: "nobody", FundID: "2", Amount: 125000}, domain.ErrInvalidAccountReference},
		{"inactive account", SubscribeRequest{AccountID: "acc-closed", FundID: "2", Amount: 125000}, domain.ErrInvalidAccountReference},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.coord.Subscribe(ctx, tt.req)
			require.ErrorIs(t, err, tt.wantErr)
		})
	}

	balance, err := e.coord.ledger.GetBalance(ctx, "acc-1")
	require.NoError(t, err)
	assert.Equal(t, domain.Amount(425000), balance)

	history, err := e.coord.ListTransactions(ctx, "acc-1")
	require.NoError(t, err)
	assert.Len(t, history, 1)
	assert.Len(t, e.publisher.Events(), 1)
}

func TestCancel_Rejections(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, newTestStore(500000, "acc-1"))

	_, err := e.coord.Cancel(ctx, CancelRequest{AccountID: "acc-1", FundID: "1"})
	require.ErrorIs(t, err, domain.ErrSubscriptionNotFound)

	_, err = e.coord.Cancel(ctx, CancelRequest{AccountID: "acc-1", FundID: "99"})
	require.ErrorIs(t, err, domain.ErrFundNotFound)

	_, err = e.coord.Cancel(ctx, CancelRequest{AccountID: "nobody", FundID: "1"})
	require.ErrorIs(t, err, domain.ErrInvalidAccountReference)
}

func TestCancel_InactiveFundStillCancellable(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(500000, "acc-1")
	e := newTestEngine(t, store)

	_, err := e.coord.Subscribe(ctx, SubscribeRequest{AccountID: "acc-1", FundID: "5", Amount: 100000})
	require.NoError(t, err)

	retired := testFunds[4]
	retired.Active = false
	store.PutFund(retired)
	e.catalog.Invalidate()

	rec, err := e.coord.Cancel(ctx, CancelRequest{AccountID: "acc-1", FundID: "5"})
	require.NoError(t, err)
	assert.Equal(t, domain.Amount(500000), rec.BalanceAfter)
}

func TestSubscribe_RollbackOnLedgerFailure(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(500000, "acc-1")
	e := newTestEngine(t, failingStore{MemoryAdapter: store, err: errDiskFull})

	_, err := e.coord.Subscribe(ctx, SubscribeRequest{AccountID: "acc-1", FundID: "1", Amount: 75000})
	require.ErrorIs(t, err, domain.ErrPersistenceFailure)
	assert.NotContains(t, err.Error(), "disk full")

	acc, err := store.GetAccount(ctx, "acc-1")
	require.NoError(t, err)
	assert.Equal(t, domain.Amount(500000), acc.Balance)

	sub, err := store.GetActiveSubscription(ctx, "acc-1", "1")
	require.NoError(t, err)
	assert.Nil(t, sub)

	history, err := store.ListTransactions(ctx, "acc-1")
	require.NoError(t, err)
	assert.Empty(t, history)
	assert.Empty(t, e.publisher.Events())
}

func TestSubscribe_IdempotentReplay(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, newTestStore(500000, "acc-1"))

	req := SubscribeRequest{AccountID: "acc-1", FundID: "1", Amount: 75000, IdempotencyKey: "key-1"}
	first, err := e.coord.Subscribe(ctx, req)
	require.NoError(t, err)

	second, err := e.coord.Subscribe(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	balance, err := e.coord.ledger.GetBalance(ctx, "acc-1")
	require.NoError(t, err)
	assert.Equal(t, domain.Amount(425000), balance)
	assert.Len(t, e.publisher.Events(), 1)

	_, err = e.coord.Subscribe(ctx, SubscribeRequest{AccountID: "acc-1", FundID: "2", Amount: 125000, IdempotencyKey: "key-1"})
	require.ErrorIs(t, err, domain.ErrIdempotencyKeyReuse)

	_, err = e.coord.Cancel(ctx, CancelRequest{AccountID: "acc-1", FundID: "1", IdempotencyKey: "key-1"})
	require.ErrorIs(t, err, domain.ErrIdempotencyKeyReuse)
}

func TestCancel_IdempotentReplay(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, newTestStore(500000, "acc-1"))

	_, err := e.coord.Subscribe(ctx, SubscribeRequest{AccountID: "acc-1", FundID: "1", Amount: 75000})
	require.NoError(t, err)

	req := CancelRequest{AccountID: "acc-1", FundID: "1", IdempotencyKey: "c1"}
	first, err := e.coord.Cancel(ctx, req)
	require.NoError(t, err)

	second, err := e.coord.Cancel(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, domain.Amount(75000), second.Amount)

	balance, err := e.coord.ledger.GetBalance(ctx, "acc-1")
	require.NoError(t, err)
	assert.Equal(t, domain.Amount(500000), balance)

	history, err := e.coord.ListTransactions(ctx, "acc-1")
	require.NoError(t, err)
	assert.Len(t, history, 2)
	assert.Len(t, e.publisher.Events(), 2)
}

func TestSubscribe_ConcurrentNeverOverdraws(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, newTestStore(500000, "acc-1"))

	// The five minimums add up to 600000, so at least one must be turned away.
	var wg sync.WaitGroup
	var successes atomic.Int32
	for _, f := range testFunds {
		wg.Add(1)
		go func(f domain.Fund) {
			defer wg.Done()
			if _, err := e.coord.Subscribe(ctx, SubscribeRequest{AccountID: "acc-1", FundID: f.ID, Amount: f.MinimumInvestment}); err == nil {
				successes.Add(1)
			} else {
				assert.ErrorIs(t, err, domain.ErrInsufficientFunds)
			}
		}(f)
	}
	wg.Wait()
	assert.Less(t, int(successes.Load()), len(testFunds))

	view, err := e.coord.GetBalance(ctx, "acc-1")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, view.Balance, domain.Amount(0))
	assert.Equal(t, domain.Amount(500000), view.Balance+view.TotalInvested)
	assert.Len(t, view.ActiveSubscriptions, int(successes.Load()))
}

func TestSubscribe_ConcurrentSameFundSingleWinner(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, newTestStore(5000000, "acc-1"))

	const workers = 20
	var wg sync.WaitGroup
	var successes, duplicates atomic.Int32
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := e.coord.Subscribe(ctx, SubscribeRequest{
				AccountID:      "acc-1",
				FundID:         "1",
				Amount:         75000,
				IdempotencyKey: fmt.Sprintf("req-%d", i),
			})
			switch {
			case err == nil:
				successes.Add(1)
			case assert.ErrorIs(t, err, domain.ErrDuplicateSubscription):
				duplicates.Add(1)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), successes.Load())
	assert.Equal(t, int32(workers-1), duplicates.Load())

	balance, err := e.coord.ledger.GetBalance(ctx, "acc-1")
	require.NoError(t, err)
	assert.Equal(t, domain.Amount(5000000-75000), balance)
}

func TestSubscribe_BusyAccountIsConflict(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, newTestStore(500000, "acc-1"))
	e.guard.cfg.AcquireTimeout = 30 * time.Millisecond

	ok, err := e.cache.AcquireLock(ctx, lockKeyPrefix+"acc-1", "someone-else", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = e.coord.Subscribe(ctx, SubscribeRequest{AccountID: "acc-1", FundID: "1", Amount: 75000})
	require.ErrorIs(t, err, domain.ErrConcurrencyConflict)
	assert.True(t, domain.IsRetryable(err))

	balance, err := e.coord.ledger.GetBalance(ctx, "acc-1")
	require.NoError(t, err)
	assert.Equal(t, domain.Amount(500000), balance)

	require.NoError(t, e.cache.ReleaseLock(ctx, lockKeyPrefix+"acc-1", "someone-else"))
	_, err = e.coord.Subscribe(ctx, SubscribeRequest{AccountID: "acc-1", FundID: "1", Amount: 75000})
	require.NoError(t, err)
}

func TestSubscribe_ConservationAcrossSequence(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, newTestStore(1000000, "acc-1"))

	steps := []func() error{
		func() error { _, err := e.coord.Subscribe(ctx, SubscribeRequest{AccountID: "acc-1", FundID: "1", Amount: 75000}); return err },
		func() error { _, err := e.coord.Subscribe(ctx, SubscribeRequest{AccountID: "acc-1", FundID: "4", Amount: 300000}); return err },
		func() error { _, err := e.coord.Cancel(ctx, CancelRequest{AccountID: "acc-1", FundID: "1"}); return err },
		func() error { _, err := e.coord.Subscribe(ctx, SubscribeRequest{AccountID: "acc-1", FundID: "3", Amount: 60000}); return err },
		func() error { _, err := e.coord.Subscribe(ctx, SubscribeRequest{AccountID: "acc-1", FundID: "1", Amount: 90000}); return err },
	}
	for i, step := range steps {
		require.NoError(t, step(), "step %d", i)

		view, err := e.coord.GetBalance(ctx, "acc-1")
		require.NoError(t, err)
		assert.Equal(t, domain.Amount(1000000), view.Balance+view.TotalInvested, "step %d", i)
	}

	history, err := e.coord.ListTransactions(ctx, "acc-1")
	require.NoError(t, err)
	require.Len(t, history, len(steps))
	for _, rec := range history {
		assert.True(t, rec.Consistent(), rec.ID)
	}
}

func TestCoordinator_ListFundsAndGetFund(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(500000, "acc-1")
	store.PutFund(domain.Fund{ID: "9", Name: "RETIRED", MinimumInvestment: 1000, Category: domain.FundCategoryFIC})
	e := newTestEngine(t, store)

	funds, err := e.coord.ListFunds(ctx)
	require.NoError(t, err)
	require.Len(t, funds, len(testFunds))
	for i, f := range funds {
		assert.Equal(t, testFunds[i].ID, f.ID)
	}

	fund, err := e.coord.GetFund(ctx, "9")
	require.NoError(t, err)
	assert.False(t, fund.Active)

	_, err = e.coord.GetFund(ctx, "nope")
	require.ErrorIs(t, err, domain.ErrFundNotFound)
}

func TestCoordinator_ReadsRejectUnknownAccount(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, newTestStore(500000))

	_, err := e.coord.GetBalance(ctx, "ghost")
	require.ErrorIs(t, err, domain.ErrInvalidAccountReference)

	_, err = e.coord.ListTransactions(ctx, "ghost")
	require.ErrorIs(t, err, domain.ErrInvalidAccountReference)
}
