package port

import (
	"context"
	"time"

	"github.com/rl1809/fund-engine/internal/core/domain"
)

// Reader holds the point lookups shared by the repository and an open transaction.
// Lookups return (nil, nil) when the row does not exist.
type Reader interface {
	// GetAccount retrieves an account by ID
	GetAccount(ctx context.Context, accountID string) (*domain.Account, error)

	// GetFund retrieves a catalog entry by ID, active or not
	GetFund(ctx context.Context, fundID string) (*domain.Fund, error)

	// GetActiveSubscription returns the open subscription for the pair
	GetActiveSubscription(ctx context.Context, accountID, fundID string) (*domain.Subscription, error)

	// FindTransactionByIdempotencyKey returns the ledger row recorded under key
	FindTransactionByIdempotencyKey(ctx context.Context, accountID, key string) (*domain.TransactionRecord, error)
}

// Tx is a single commit/abort scope spanning balance, subscriptions and ledger.
type Tx interface {
	Reader

	// LockAccount reads the account and holds it exclusively until the tx ends
	LockAccount(ctx context.Context, accountID string) (*domain.Account, error)

	// CompareAndSetBalance writes next only if the stored balance still equals expected
	CompareAndSetBalance(ctx context.Context, accountID string, expected, next domain.Amount) (bool, error)

	// InsertSubscription opens a subscription, returns domain.ErrDuplicateSubscription
	// if an active one exists for the pair
	InsertSubscription(ctx context.Context, sub domain.Subscription) error

	// CloseSubscription soft-closes the active subscription for the pair
	CloseSubscription(ctx context.Context, accountID, fundID string, closedAt time.Time) (bool, error)

	// InsertTransaction appends an immutable ledger record
	InsertTransaction(ctx context.Context, rec domain.TransactionRecord) error
}

type DatabaseRepository interface {
	Reader

	// WithTx runs fn in one atomic scope; any error from fn rolls everything back
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// ListFunds returns every catalog entry in insertion order
	ListFunds(ctx context.Context) ([]domain.Fund, error)

	// ListActiveSubscriptions returns the open subscriptions of an account, oldest first
	ListActiveSubscriptions(ctx context.Context, accountID string) ([]domain.Subscription, error)

	// ListTransactions returns the ledger of an account, newest first
	ListTransactions(ctx context.Context, accountID string) ([]domain.TransactionRecord, error)

	// ListAccountIDs returns the IDs of all accounts, for reconciliation
	ListAccountIDs(ctx context.Context) ([]string, error)

	// Ping checks the store is reachable
	Ping(ctx context.Context) error
}
