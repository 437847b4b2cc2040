package transaction

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	satchelerr "github.com/mrz1836/satchel/pkg/errors"
)

func TestStateString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "drafting", Drafting.String())
	assert.Equal(t, "awaiting confirmation", AwaitingConfirmation.String())
	assert.Equal(t, "cancelled", Cancelled.String())
	assert.Equal(t, "state(42)", State(42).String())

	assert.True(t, Confirmed.Terminal())
	assert.True(t, Failed.Terminal())
	assert.False(t, Submitted.Terminal())
}

func TestPendingTransferTransitions(t *testing.T) {
	t.Parallel()

	t.Run("confirm needs an estimate", func(t *testing.T) {
		t.Parallel()
		p := &PendingTransfer{state: Drafting}
		require.ErrorIs(t, p.Confirm(), satchelerr.ErrInvalidState)
	})

	t.Run("cancel a draft", func(t *testing.T) {
		t.Parallel()
		p := &PendingTransfer{state: Drafting}
		require.NoError(t, p.Cancel())
		assert.Equal(t, Cancelled, p.State())
		require.ErrorIs(t, p.Cancel(), satchelerr.ErrInvalidState)
	})

	t.Run("cancel an estimate", func(t *testing.T) {
		t.Parallel()
		p := &PendingTransfer{state: AwaitingConfirmation}
		require.NoError(t, p.Confirm())
		require.NoError(t, p.Cancel())
		require.ErrorIs(t, p.submit(), satchelerr.ErrInvalidState)
	})

	t.Run("submitted cannot be cancelled", func(t *testing.T) {
		t.Parallel()
		p := &PendingTransfer{state: AwaitingConfirmation, confirmed: true}
		require.NoError(t, p.submit())
		err := p.Cancel()
		require.ErrorIs(t, err, satchelerr.ErrInvalidState)
		assert.Contains(t, err.Error(), "submitted")
	})

	t.Run("finish", func(t *testing.T) {
		t.Parallel()
		p := &PendingTransfer{state: Submitted}
		p.finish(nil, satchelerr.ErrReverted)
		assert.Equal(t, Failed, p.State())
		require.ErrorIs(t, p.Err(), satchelerr.ErrReverted)
	})
}
