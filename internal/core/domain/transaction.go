package domain

import "time"

type TransactionKind string

const (
	TransactionKindSubscribe TransactionKind = "subscribe"
	TransactionKindCancel    TransactionKind = "cancel"
)

type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "pending"
	TransactionStatusCompleted TransactionStatus = "completed"
	TransactionStatusFailed    TransactionStatus = "failed"
)

// TransactionRecord is an immutable ledger row. BalanceAfter always equals
// BalanceBefore minus Amount for subscriptions and plus Amount for cancellations.
type TransactionRecord struct {
	ID             string
	AccountID      string
	FundID         string
	FundName       string
	Kind           TransactionKind
	Amount         Amount
	BalanceBefore  Amount
	BalanceAfter   Amount
	Status         TransactionStatus
	IdempotencyKey string
	CreatedAt      time.Time
}

// Delta returns the signed balance change the record applied.
func (r TransactionRecord) Delta() Amount {
	if r.Kind == TransactionKindSubscribe {
		return -r.Amount
	}
	return r.Amount
}

// Consistent reports whether before/after match the recorded amount.
func (r TransactionRecord) Consistent() bool {
	return r.BalanceBefore+r.Delta() == r.BalanceAfter
}
