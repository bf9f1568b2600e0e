package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/fund-engine/internal/core/domain"
	"github.com/rl1809/fund-engine/internal/port"
)

func TestMemoryWithTx_RollbackLeavesStateUntouched(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryAdapter()
	store.PutAccount("acc-1", 500000)

	errBoom := errors.New("boom")
	err := store.WithTx(ctx, func(tx port.Tx) error {
		ok, err := tx.CompareAndSetBalance(ctx, "acc-1", 500000, 425000)
		require.NoError(t, err)
		require.True(t, ok)
		require.NoError(t, tx.InsertSubscription(ctx, domain.Subscription{ID: "s1", AccountID: "acc-1", FundID: "1", Amount: 75000}))
		return errBoom
	})
	require.ErrorIs(t, err, errBoom)

	acc, err := store.GetAccount(ctx, "acc-1")
	require.NoError(t, err)
	assert.Equal(t, domain.Amount(500000), acc.Balance)

	sub, err := store.GetActiveSubscription(ctx, "acc-1", "1")
	require.NoError(t, err)
	assert.Nil(t, sub)
}

func TestMemoryCompareAndSetBalance(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryAdapter()
	store.PutAccount("acc-1", 100)

	err := store.WithTx(ctx, func(tx port.Tx) error {
		ok, err := tx.CompareAndSetBalance(ctx, "acc-1", 99, 0)
		require.NoError(t, err)
		assert.False(t, ok)

		ok, err = tx.CompareAndSetBalance(ctx, "acc-1", 100, 40)
		require.NoError(t, err)
		assert.True(t, ok)
		return nil
	})
	require.NoError(t, err)

	acc, _ := store.GetAccount(ctx, "acc-1")
	assert.Equal(t, domain.Amount(40), acc.Balance)
	assert.Equal(t, 1, acc.Version)
}

func TestMemorySubscriptions_SoftClose(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryAdapter()

	insert := func(id string) error {
		return store.WithTx(ctx, func(tx port.Tx) error {
			return tx.InsertSubscription(ctx, domain.Subscription{ID: id, AccountID: "acc-1", FundID: "1", Amount: 10})
		})
	}

	require.NoError(t, insert("s1"))
	assert.ErrorIs(t, insert("s2"), domain.ErrDuplicateSubscription)

	require.NoError(t, store.WithTx(ctx, func(tx port.Tx) error {
		closed, err := tx.CloseSubscription(ctx, "acc-1", "1", time.Now())
		require.NoError(t, err)
		assert.True(t, closed)

		closed, err = tx.CloseSubscription(ctx, "acc-1", "1", time.Now())
		require.NoError(t, err)
		assert.False(t, closed)
		return nil
	}))

	require.NoError(t, insert("s3"))
	subs, err := store.ListActiveSubscriptions(ctx, "acc-1")
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, "s3", subs[0].ID)
}

func TestMemoryListTransactions_NewestFirst(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryAdapter()

	for _, id := range []string{"t1", "t2", "t3"} {
		rec := domain.TransactionRecord{ID: id, AccountID: "acc-1", IdempotencyKey: "key-" + id}
		require.NoError(t, store.WithTx(ctx, func(tx port.Tx) error { return tx.InsertTransaction(ctx, rec) }))
	}
	require.NoError(t, store.WithTx(ctx, func(tx port.Tx) error {
		return tx.InsertTransaction(ctx, domain.TransactionRecord{ID: "other", AccountID: "acc-2"})
	}))

	records, err := store.ListTransactions(ctx, "acc-1")
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, []string{"t3", "t2", "t1"}, []string{records[0].ID, records[1].ID, records[2].ID})

	err = store.WithTx(ctx, func(tx port.Tx) error {
		return tx.InsertTransaction(ctx, domain.TransactionRecord{ID: "dup", AccountID: "acc-1", IdempotencyKey: "key-t1"})
	})
	assert.ErrorIs(t, err, domain.ErrConcurrencyConflict)
}

func TestMemoryPutFund_KeepsInsertionOrder(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryAdapter()
	store.PutFund(domain.Fund{ID: "b", MinimumInvestment: 1, Active: true})
	store.PutFund(domain.Fund{ID: "a", MinimumInvestment: 1, Active: true})
	store.PutFund(domain.Fund{ID: "b", MinimumInvestment: 5, Active: false})

	funds, err := store.ListFunds(ctx)
	require.NoError(t, err)
	require.Len(t, funds, 2)
	assert.Equal(t, "b", funds[0].ID)
	assert.Equal(t, domain.Amount(5), funds[0].MinimumInvestment)
	assert.Equal(t, "a", funds[1].ID)
}

func TestMemoryWithTx_CanceledContext(t *testing.T) {
	store := NewMemoryAdapter()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := store.WithTx(ctx, func(tx port.Tx) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestDefaultFunds_SeedMemoryCatalog(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryAdapter()
	for _, f := range DefaultFunds() {
		require.True(t, f.Valid(), f.ID)
		store.PutFund(f)
	}

	funds, err := store.ListFunds(ctx)
	require.NoError(t, err)
	require.Len(t, funds, 5)
	assert.Equal(t, "FPV_BTG_PACTUAL_RECAUDADORA", funds[0].Name)
	assert.Equal(t, domain.Amount(7500000), funds[0].MinimumInvestment)
	assert.Equal(t, 5, funds[4].Position)
}
