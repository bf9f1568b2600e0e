package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/rl1809/fund-engine/internal/core/domain"
	"github.com/rl1809/fund-engine/internal/port"
)

type SubscribeRequest struct {
	AccountID      string
	FundID         string
	Amount         domain.Amount
	IdempotencyKey string
}

type CancelRequest struct {
	AccountID      string
	FundID         string
	IdempotencyKey string
}

type SubscriptionView struct {
	FundID    string
	FundName  string
	Amount    domain.Amount
	CreatedAt time.Time
}

type BalanceView struct {
	AccountID           string
	Balance             domain.Amount
	ActiveSubscriptions []SubscriptionView
	TotalInvested       domain.Amount
}

// Coordinator runs subscribe and cancel as single atomic units: the balance
// change, the subscription change and the ledger record commit together or not
// at all. Notifications are published only after commit.
type Coordinator struct {
	db        port.DatabaseRepository
	catalog   *FundCatalog
	ledger    *BalanceLedger
	registry  *SubscriptionRegistry
	guard     *Guard
	publisher port.EventPublisher
	logger    *slog.Logger
	now       func() time.Time
}

func NewCoordinator(db port.DatabaseRepository, catalog *FundCatalog, guard *Guard, publisher port.EventPublisher, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		db:        db,
		catalog:   catalog,
		ledger:    NewBalanceLedger(db),
		registry:  NewSubscriptionRegistry(db),
		guard:     guard,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

func (c *Coordinator) Subscribe(ctx context.Context, req SubscribeRequest) (*domain.TransactionRecord, error) {
	op := newOperation(domain.TransactionKindSubscribe, req.AccountID, req.FundID)

	rec, replayed, err := c.subscribe(ctx, op, req)
	if err != nil {
		return nil, c.abort(op, err)
	}
	c.commit(op, rec, replayed)
	return rec, nil
}

func (c *Coordinator) subscribe(ctx context.Context, op *Operation, req SubscribeRequest) (*domain.TransactionRecord, bool, error) {
	if prior, err := c.findReplay(ctx, c.db, req.AccountID, req.IdempotencyKey); err != nil || prior != nil {
		if err == nil {
			err = matchReplay(prior, domain.TransactionKindSubscribe, req.FundID, req.Amount)
		}
		return prior, err == nil, err
	}

	fund, err := c.catalog.Lookup(ctx, req.FundID)
	if err != nil {
		return nil, false, err
	}
	if !fund.Active {
		return nil, false, fmt.Errorf("%w: %s", domain.ErrFundInactive, fund.ID)
	}
	if req.Amount < fund.MinimumInvestment {
		return nil, false, fmt.Errorf("%w: %s requires %d", domain.ErrBelowMinimumInvestment, fund.Name, fund.MinimumInvestment)
	}

	acc, err := c.ledger.Account(ctx, req.AccountID)
	if err != nil {
		return nil, false, err
	}
	if existing, err := c.registry.GetActive(ctx, req.AccountID, req.FundID); err != nil {
		return nil, false, err
	} else if existing != nil {
		return nil, false, fmt.Errorf("%w: %s", domain.ErrDuplicateSubscription, fund.Name)
	}
	if acc.Balance < req.Amount {
		return nil, false, fmt.Errorf("%w: balance %d, requested %d", domain.ErrInsufficientFunds, acc.Balance, req.Amount)
	}

	if err := op.advance(StateValidated); err != nil {
		return nil, false, err
	}

	var (
		rec      domain.TransactionRecord
		replayed bool
	)
	err = c.guarded(ctx, req.AccountID, func() error {
		return c.db.WithTx(ctx, func(tx port.Tx) error {
			prior, err := c.findReplay(ctx, tx, req.AccountID, req.IdempotencyKey)
			if err != nil {
				return err
			}
			if prior != nil {
				if err := matchReplay(prior, domain.TransactionKindSubscribe, req.FundID, req.Amount); err != nil {
					return err
				}
				rec, replayed = *prior, true
				return nil
			}

			// Re-read under the lock; the checks above may be stale.
			locked, err := tx.LockAccount(ctx, req.AccountID)
			if err != nil {
				return err
			}
			if locked == nil || !locked.Active {
				return fmt.Errorf("%w: %s", domain.ErrInvalidAccountReference, req.AccountID)
			}
			if existing, err := tx.GetActiveSubscription(ctx, req.AccountID, req.FundID); err != nil {
				return err
			} else if existing != nil {
				return fmt.Errorf("%w: %s", domain.ErrDuplicateSubscription, fund.Name)
			}

			after, err := c.ledger.ApplyDelta(ctx, tx, req.AccountID, -req.Amount, locked.Balance)
			if err != nil {
				return err
			}
			if _, err := c.registry.Create(ctx, tx, req.AccountID, req.FundID, req.Amount); err != nil {
				return err
			}

			rec = domain.TransactionRecord{
				ID:             uuid.NewString(),
				AccountID:      req.AccountID,
				FundID:         fund.ID,
				FundName:       fund.Name,
				Kind:           domain.TransactionKindSubscribe,
				Amount:         req.Amount,
				BalanceBefore:  locked.Balance,
				BalanceAfter:   after,
				Status:         domain.TransactionStatusCompleted,
				IdempotencyKey: req.IdempotencyKey,
				CreatedAt:      c.now().UTC(),
			}
			if err := tx.InsertTransaction(ctx, rec); err != nil {
				return err
			}
			return op.advance(StateApplied)
		})
	})
	if err != nil {
		return nil, false, err
	}
	return &rec, replayed, nil
}

func (c *Coordinator) Cancel(ctx context.Context, req CancelRequest) (*domain.TransactionRecord, error) {
	op := newOperation(domain.TransactionKindCancel, req.AccountID, req.FundID)

	rec, replayed, err := c.cancel(ctx, op, req)
	if err != nil {
		return nil, c.abort(op, err)
	}
	c.commit(op, rec, replayed)
	return rec, nil
}

func (c *Coordinator) cancel(ctx context.Context, op *Operation, req CancelRequest) (*domain.TransactionRecord, bool, error) {
	if prior, err := c.findReplay(ctx, c.db, req.AccountID, req.IdempotencyKey); err != nil || prior != nil {
		if err == nil {
			err = matchReplay(prior, domain.TransactionKindCancel, req.FundID, 0)
		}
		return prior, err == nil, err
	}

	// Inactive funds stay cancellable so holders can always exit.
	fund, err := c.catalog.Lookup(ctx, req.FundID)
	if err != nil {
		return nil, false, err
	}
	if _, err := c.ledger.Account(ctx, req.AccountID); err != nil {
		return nil, false, err
	}
	if sub, err := c.registry.GetActive(ctx, req.AccountID, req.FundID); err != nil {
		return nil, false, err
	} else if sub == nil {
		return nil, false, fmt.Errorf("%w: %s", domain.ErrSubscriptionNotFound, fund.Name)
	}

	if err := op.advance(StateValidated); err != nil {
		return nil, false, err
	}

	var (
		rec      domain.TransactionRecord
		replayed bool
	)
	err = c.guarded(ctx, req.AccountID, func() error {
		return c.db.WithTx(ctx, func(tx port.Tx) error {
			prior, err := c.findReplay(ctx, tx, req.AccountID, req.IdempotencyKey)
			if err != nil {
				return err
			}
			if prior != nil {
				if err := matchReplay(prior, domain.TransactionKindCancel, req.FundID, 0); err != nil {
					return err
				}
				rec, replayed = *prior, true
				return nil
			}

			locked, err := tx.LockAccount(ctx, req.AccountID)
			if err != nil {
				return err
			}
			if locked == nil || !locked.Active {
				return fmt.Errorf("%w: %s", domain.ErrInvalidAccountReference, req.AccountID)
			}
			sub, err := tx.GetActiveSubscription(ctx, req.AccountID, req.FundID)
			if err != nil {
				return err
			}
			if sub == nil {
				return fmt.Errorf("%w: %s", domain.ErrSubscriptionNotFound, fund.Name)
			}

			after, err := c.ledger.ApplyDelta(ctx, tx, req.AccountID, sub.Amount, locked.Balance)
			if err != nil {
				return err
			}
			if err := c.registry.Close(ctx, tx, req.AccountID, req.FundID); err != nil {
				return err
			}

			rec = domain.TransactionRecord{
				ID:             uuid.NewString(),
				AccountID:      req.AccountID,
				FundID:         fund.ID,
				FundName:       fund.Name,
				Kind:           domain.TransactionKindCancel,
				Amount:         sub.Amount,
				BalanceBefore:  locked.Balance,
				BalanceAfter:   after,
				Status:         domain.TransactionStatusCompleted,
				IdempotencyKey: req.IdempotencyKey,
				CreatedAt:      c.now().UTC(),
			}
			if err := tx.InsertTransaction(ctx, rec); err != nil {
				return err
			}
			return op.advance(StateApplied)
		})
	})
	if err != nil {
		return nil, false, err
	}
	return &rec, replayed, nil
}

// GetBalance returns the balance with the active subscriptions that explain
// the difference to the initial balance.
func (c *Coordinator) GetBalance(ctx context.Context, accountID string) (*BalanceView, error) {
	acc, err := c.ledger.Account(ctx, accountID)
	if err != nil {
		return nil, c.readError("get balance", accountID, err)
	}
	subs, err := c.registry.ListActive(ctx, accountID)
	if err != nil {
		return nil, c.readError("get balance", accountID, err)
	}

	view := &BalanceView{
		AccountID:           acc.ID,
		Balance:             acc.Balance,
		ActiveSubscriptions: make([]SubscriptionView, 0, len(subs)),
	}
	for _, sub := range subs {
		name := ""
		if fund, err := c.catalog.Lookup(ctx, sub.FundID); err == nil {
			name = fund.Name
		}
		view.ActiveSubscriptions = append(view.ActiveSubscriptions, SubscriptionView{
			FundID:    sub.FundID,
			FundName:  name,
			Amount:    sub.Amount,
			CreatedAt: sub.CreatedAt,
		})
		view.TotalInvested += sub.Amount
	}
	return view, nil
}

// ListTransactions returns the account's ledger, newest first.
func (c *Coordinator) ListTransactions(ctx context.Context, accountID string) ([]domain.TransactionRecord, error) {
	if _, err := c.ledger.Account(ctx, accountID); err != nil {
		return nil, c.readError("list transactions", accountID, err)
	}
	recs, err := c.db.ListTransactions(ctx, accountID)
	if err != nil {
		return nil, c.readError("list transactions", accountID, err)
	}
	return recs, nil
}

// ListFunds returns the active catalog.
func (c *Coordinator) ListFunds(ctx context.Context) ([]domain.Fund, error) {
	funds, err := c.catalog.ListActive(ctx)
	if err != nil {
		return nil, c.readError("list funds", "", err)
	}
	return funds, nil
}

// GetFund returns a single catalog entry, active or not.
func (c *Coordinator) GetFund(ctx context.Context, fundID string) (domain.Fund, error) {
	fund, err := c.catalog.Lookup(ctx, fundID)
	if err != nil && !errors.Is(err, domain.ErrFundNotFound) {
		return domain.Fund{}, c.readError("get fund", "", err)
	}
	return fund, err
}

func (c *Coordinator) guarded(ctx context.Context, accountID string, fn func() error) error {
	release, err := c.guard.Acquire(ctx, accountID)
	if err != nil {
		return err
	}
	defer release()
	return fn()
}

func (c *Coordinator) findReplay(ctx context.Context, r port.Reader, accountID, key string) (*domain.TransactionRecord, error) {
	if key == "" {
		return nil, nil
	}
	return r.FindTransactionByIdempotencyKey(ctx, accountID, key)
}

// matchReplay rejects a reused key whose original request differs. Cancel
// amounts come from the subscription, so only subscribe compares the amount.
func matchReplay(prior *domain.TransactionRecord, kind domain.TransactionKind, fundID string, amount domain.Amount) error {
	if prior.Kind != kind || prior.FundID != fundID {
		return fmt.Errorf("%w: key %s", domain.ErrIdempotencyKeyReuse, prior.IdempotencyKey)
	}
	if kind == domain.TransactionKindSubscribe && prior.Amount != amount {
		return fmt.Errorf("%w: key %s", domain.ErrIdempotencyKeyReuse, prior.IdempotencyKey)
	}
	return nil
}

func (c *Coordinator) commit(op *Operation, rec *domain.TransactionRecord, replayed bool) {
	if replayed {
		op.State = StateCommitted
		c.logger.Info("idempotent replay",
			"operation_id", op.ID,
			"kind", op.Kind,
			"account_id", op.AccountID,
			"transaction_id", rec.ID,
		)
		return
	}

	if err := op.advance(StateCommitted); err != nil {
		c.logger.Error("operation state", "operation_id", op.ID, "error", err)
	}
	c.logger.Info("operation committed",
		"operation_id", op.ID,
		"kind", op.Kind,
		"account_id", op.AccountID,
		"fund_id", op.FundID,
		"transaction_id", rec.ID,
		"amount", rec.Amount,
		"balance_after", rec.BalanceAfter,
	)

	if c.publisher != nil {
		c.publisher.Publish(domain.NewTransactionEvent(*rec))
	}
}

// abort maps err to what the caller sees. Domain rejections pass through;
// anything else is logged and surfaced as ErrPersistenceFailure.
func (c *Coordinator) abort(op *Operation, err error) error {
	from := op.State
	op.abort(err)

	attrs := []any{
		"operation_id", op.ID,
		"kind", op.Kind,
		"account_id", op.AccountID,
		"fund_id", op.FundID,
		"from_state", from.String(),
		"error", err,
	}

	switch {
	case domain.IsValidation(err):
		c.logger.Info("operation rejected", attrs...)
		return err
	case domain.IsRetryable(err):
		c.logger.Warn("operation conflicted", attrs...)
		return err
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		c.logger.Warn("operation interrupted", attrs...)
		return err
	}

	c.logger.Error("operation aborted", attrs...)
	return fmt.Errorf("%w: %s operation %s", domain.ErrPersistenceFailure, op.Kind, op.ID)
}

func (c *Coordinator) readError(action, accountID string, err error) error {
	if domain.IsValidation(err) || errors.Is(err, context.Canceled) {
		return err
	}
	c.logger.Error(action+" failed", "account_id", accountID, "error", err)
	return fmt.Errorf("%w: %s", domain.ErrPersistenceFailure, action)
}
