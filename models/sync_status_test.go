package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSyncStateValid(t *testing.T) {
	for _, valid := range []SyncState{
		SyncStatePending, SyncStateSyncing, SyncStateSynced,
		SyncStateFailed, SyncStateError, SyncStateSkipped,
	} {
		assert.True(t, valid.Valid(), "expected %s to be valid", valid)
	}
	assert.False(t, SyncState("done").Valid())
}

func TestSyncStateTerminal(t *testing.T) {
	assert.True(t, SyncStateFailed.Terminal())
	assert.True(t, SyncStateError.Terminal())
	assert.False(t, SyncStatePending.Terminal())
	assert.False(t, SyncStateSyncing.Terminal())
	assert.False(t, SyncStateSynced.Terminal())
	assert.False(t, SyncStateSkipped.Terminal())
}

func TestNeedsSync(t *testing.T) {
	const maxRetries = 3

	t.Run("MissingRowNeedsFirstSync", func(t *testing.T) {
		var row *SignatureSyncStatus
		assert.True(t, row.NeedsSync(maxRetries))
	})

	t.Run("PendingAlwaysNeedsSync", func(t *testing.T) {
		row := &SignatureSyncStatus{SyncState: SyncStatePending, SyncAttempts: 99}
		assert.True(t, row.NeedsSync(maxRetries))
	})

	t.Run("ErroredWaitsForIntervention", func(t *testing.T) {
		// data problems are not fixed by retrying, whatever the budget says
		row := &SignatureSyncStatus{SyncState: SyncStateError, SyncAttempts: 1}
		assert.False(t, row.NeedsSync(maxRetries))
	})

	t.Run("FailedRespectsBudget", func(t *testing.T) {
		row := &SignatureSyncStatus{SyncState: SyncStateFailed, SyncAttempts: 3}
		assert.False(t, row.NeedsSync(maxRetries))
	})

	t.Run("ConvergedStatesStay", func(t *testing.T) {
		for _, state := range []SyncState{SyncStateSynced, SyncStateSkipped, SyncStateSyncing} {
			row := &SignatureSyncStatus{SyncState: state}
			assert.False(t, row.NeedsSync(maxRetries), "state %s should not need sync", state)
		}
	})
}
