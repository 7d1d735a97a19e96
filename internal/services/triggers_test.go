package services

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/gangwalparul19/rupiya-sync/internal/logging"
	"github.com/gangwalparul19/rupiya-sync/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSyncTrigger_ReconnectRunsPass(t *testing.T) {
	f := newCoordinatorFixture(t, false)
	trigger := NewSyncTrigger(f.coordinator, f.monitor, time.Hour, logging.Logger)
	trigger.Start()
	defer trigger.Stop()

	id := f.enqueueAdd(t, "expenses")
	require.Empty(t, f.applier.appliedIDs())

	// Going back online drains the queue without waiting for a tick
	f.monitor.SetOnline(true)

	require.Eventually(t, func() bool {
		return f.coordinator.PendingCount() == 0
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{id}, f.applier.appliedIDs())
}

func TestSyncTrigger_BackgroundTickDrainsPending(t *testing.T) {
	f := newCoordinatorFixture(t, false)
	trigger := NewSyncTrigger(f.coordinator, f.monitor, 10*time.Millisecond, logging.Logger)

	id := f.enqueueAdd(t, "expenses")

	// The monitor flips online before the trigger subscribes, so only the
	// periodic tick can pick the operation up.
	f.monitor.SetOnline(true)
	trigger.Start()
	defer trigger.Stop()

	require.Eventually(t, func() bool {
		return f.coordinator.PendingCount() == 0
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{id}, f.applier.appliedIDs())
}

func TestSyncTrigger_Flush(t *testing.T) {
	f := newCoordinatorFixture(t, false)
	trigger := NewSyncTrigger(f.coordinator, f.monitor, time.Hour, logging.Logger)

	_, err := f.coordinator.RegisterOperation(context.Background(), models.KindUpdate, "budgets", "doc-1", json.RawMessage(`{"limit":50}`))
	require.NoError(t, err)

	// Flushing while offline skips without touching the queue
	summary := trigger.Flush(context.Background())
	assert.True(t, summary.Skipped)
	assert.Equal(t, 1, f.coordinator.PendingCount())

	f.monitor.SetOnline(true)
	summary = trigger.Flush(context.Background())
	assert.False(t, summary.Skipped)
	assert.Equal(t, 1, summary.Attempted)
	assert.Len(t, summary.Succeeded, 1)
	assert.Equal(t, 0, f.coordinator.PendingCount())
}
