package service

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/rl1809/fund-engine/internal/core/domain"
)

type OperationState uint8

const (
	StateInitiated OperationState = iota
	StateValidated
	StateApplied
	StateCommitted
	StateAborted
)

func (s OperationState) String() string {
	switch s {
	case StateInitiated:
		return "INITIATED"
	case StateValidated:
		return "VALIDATED"
	case StateApplied:
		return "APPLIED"
	case StateCommitted:
		return "COMMITTED"
	case StateAborted:
		return "ABORTED"
	}
	return fmt.Sprintf("OperationState(%d)", uint8(s))
}

// Terminal reports whether no further transition is allowed.
func (s OperationState) Terminal() bool {
	return s == StateCommitted || s == StateAborted
}

// Operation tracks one subscribe or cancel request through
// INITIATED -> VALIDATED -> APPLIED -> COMMITTED, or ABORTED from any
// non-terminal state.
type Operation struct {
	ID        string
	Kind      domain.TransactionKind
	AccountID string
	FundID    string
	State     OperationState
	Err       error
}

func newOperation(kind domain.TransactionKind, accountID, fundID string) *Operation {
	return &Operation{
		ID:        uuid.NewString(),
		Kind:      kind,
		AccountID: accountID,
		FundID:    fundID,
		State:     StateInitiated,
	}
}

func (o *Operation) advance(next OperationState) error {
	if next == StateAborted || next != o.State+1 || o.State.Terminal() {
		return fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, o.State, next)
	}
	o.State = next
	return nil
}

func (o *Operation) abort(err error) {
	if o.State.Terminal() {
		return
	}
	o.State = StateAborted
	o.Err = err
}
