package domain

import "time"

type Subscription struct {
	ID        string
	AccountID string
	FundID    string
	Amount    Amount
	Active    bool
	CreatedAt time.Time
	ClosedAt  *time.Time
}
