package service

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/fund-engine/internal/core/domain"
)

func TestOperation_HappyPath(t *testing.T) {
	op := newOperation(domain.TransactionKindSubscribe, "acc-1", "1")
	assert.Equal(t, StateInitiated, op.State)

	require.NoError(t, op.advance(StateValidated))
	require.NoError(t, op.advance(StateApplied))
	require.NoError(t, op.advance(StateCommitted))
	assert.True(t, op.State.Terminal())
}

func TestOperation_RejectsSkipsAndBackwards(t *testing.T) {
	op := newOperation(domain.TransactionKindCancel, "acc-1", "1")

	require.ErrorIs(t, op.advance(StateApplied), domain.ErrInvalidTransition)
	require.ErrorIs(t, op.advance(StateCommitted), domain.ErrInvalidTransition)
	require.ErrorIs(t, op.advance(StateAborted), domain.ErrInvalidTransition)

	require.NoError(t, op.advance(StateValidated))
	require.ErrorIs(t, op.advance(StateValidated), domain.ErrInvalidTransition)
	require.ErrorIs(t, op.advance(StateInitiated), domain.ErrInvalidTransition)
}

func TestOperation_AbortIsTerminal(t *testing.T) {
	op := newOperation(domain.TransactionKindSubscribe, "acc-1", "1")
	require.NoError(t, op.advance(StateValidated))

	cause := errors.New("boom")
	op.abort(cause)
	assert.Equal(t, StateAborted, op.State)
	assert.Equal(t, cause, op.Err)

	require.ErrorIs(t, op.advance(StateApplied), domain.ErrInvalidTransition)

	committed := newOperation(domain.TransactionKindSubscribe, "acc-1", "1")
	committed.State = StateCommitted
	committed.abort(cause)
	assert.Equal(t, StateCommitted, committed.State)
	assert.Nil(t, committed.Err)
}

func TestOperationState_String(t *testing.T) {
	assert.Equal(t, "APPLIED", StateApplied.String())
	assert.Equal(t, "OperationState(9)", OperationState(9).String())
}
