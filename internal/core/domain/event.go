package domain

import "time"

type EventType string

const (
	EventSubscriptionCreated   EventType = "SubscriptionCreated"
	EventSubscriptionCancelled EventType = "SubscriptionCancelled"
)

type EventPayload struct {
	TransactionID string    `json:"transaction_id"`
	FundID        string    `json:"fund_id"`
	FundName      string    `json:"fund_name"`
	Amount        Amount    `json:"amount"`
	BalanceAfter  Amount    `json:"balance_after"`
	OccurredAt    time.Time `json:"occurred_at"`
}

type Event struct {
	AccountID string       `json:"account_id"`
	Type      EventType    `json:"event_type"`
	Payload   EventPayload `json:"payload"`
}

// NewTransactionEvent builds the notification for a committed ledger record.
func NewTransactionEvent(rec TransactionRecord) Event {
	eventType := EventSubscriptionCreated
	if rec.Kind == TransactionKindCancel {
		eventType = EventSubscriptionCancelled
	}
	return Event{
		AccountID: rec.AccountID,
		Type:      eventType,
		Payload: EventPayload{
			TransactionID: rec.ID,
			FundID:        rec.FundID,
			FundName:      rec.FundName,
			Amount:        rec.Amount,
			BalanceAfter:  rec.BalanceAfter,
			OccurredAt:    rec.CreatedAt,
		},
	}
}
