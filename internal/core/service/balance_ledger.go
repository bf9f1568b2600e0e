package service

import (
	"context"
	"fmt"
	"math"

	"github.com/rl1809/fund-engine/internal/core/domain"
	"github.com/rl1809/fund-engine/internal/port"
)

// BalanceLedger owns the account balance. Balances only change through
// ApplyDelta, always inside the transaction that appends the ledger record.
type BalanceLedger struct {
	db port.Reader
}

func NewBalanceLedger(db port.Reader) *BalanceLedger {
	return &BalanceLedger{db: db}
}

// Account returns the account if it exists and is active.
func (l *BalanceLedger) Account(ctx context.Context, accountID string) (*domain.Account, error) {
	acc, err := l.db.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if acc == nil || !acc.Active {
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidAccountReference, accountID)
	}
	return acc, nil
}

func (l *BalanceLedger) GetBalance(ctx context.Context, accountID string) (domain.Amount, error) {
	acc, err := l.Account(ctx, accountID)
	if err != nil {
		return 0, err
	}
	return acc.Balance, nil
}

// ApplyDelta moves the balance from expectedPrior to expectedPrior+delta. It
// refuses to go negative and reports ErrConcurrencyConflict when the stored
// balance is no longer expectedPrior.
func (l *BalanceLedger) ApplyDelta(ctx context.Context, tx port.Tx, accountID string, delta, expectedPrior domain.Amount) (domain.Amount, error) {
	if delta > 0 && expectedPrior > math.MaxInt64-delta {
		return 0, fmt.Errorf("balance overflow for account %s", accountID)
	}

	next := expectedPrior + delta
	if next < 0 {
		return 0, fmt.Errorf("%w: balance %d, requested %d", domain.ErrInsufficientFunds, expectedPrior, -delta)
	}

	ok, err := tx.CompareAndSetBalance(ctx, accountID, expectedPrior, next)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, fmt.Errorf("%w: balance of account %s changed", domain.ErrConcurrencyConflict, accountID)
	}
	return next, nil
}
