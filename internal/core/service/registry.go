package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/rl1809/fund-engine/internal/core/domain"
	"github.com/rl1809/fund-engine/internal/port"
)

type SubscriptionStore interface {
	GetActiveSubscription(ctx context.Context, accountID, fundID string) (*domain.Subscription, error)
	ListActiveSubscriptions(ctx context.Context, accountID string) ([]domain.Subscription, error)
}

// SubscriptionRegistry keeps at most one active subscription per account and fund.
type SubscriptionRegistry struct {
	db  SubscriptionStore
	now func() time.Time
}

func NewSubscriptionRegistry(db SubscriptionStore) *SubscriptionRegistry {
	return &SubscriptionRegistry{db: db, now: time.Now}
}

func (r *SubscriptionRegistry) Create(ctx context.Context, tx port.Tx, accountID, fundID string, amount domain.Amount) (domain.Subscription, error) {
	sub := domain.Subscription{
		ID:        uuid.NewString(),
		AccountID: accountID,
		FundID:    fundID,
		Amount:    amount,
		Active:    true,
		CreatedAt: r.now().UTC(),
	}
	if err := tx.InsertSubscription(ctx, sub); err != nil {
		return domain.Subscription{}, err
	}
	return sub, nil
}

// Close soft-closes the active subscription; the row is kept as history.
func (r *SubscriptionRegistry) Close(ctx context.Context, tx port.Tx, accountID, fundID string) error {
	closed, err := tx.CloseSubscription(ctx, accountID, fundID, r.now().UTC())
	if err != nil {
		return err
	}
	if !closed {
		return fmt.Errorf("%w: account %s fund %s", domain.ErrSubscriptionNotFound, accountID, fundID)
	}
	return nil
}

// GetActive returns nil when the pair has no active subscription.
func (r *SubscriptionRegistry) GetActive(ctx context.Context, accountID, fundID string) (*domain.Subscription, error) {
	return r.db.GetActiveSubscription(ctx, accountID, fundID)
}

func (r *SubscriptionRegistry) ListActive(ctx context.Context, accountID string) ([]domain.Subscription, error) {
	return r.db.ListActiveSubscriptions(ctx, accountID)
}
