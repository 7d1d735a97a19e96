package services

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gangwalparul19/rupiya-sync/internal/logging"
	"github.com/gangwalparul19/rupiya-sync/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingApplier captures every Apply call and answers with a canned result
type recordingApplier struct {
	mu      sync.Mutex
	applied []string
	err     error
}

func (a *recordingApplier) Apply(ctx context.Context, op *models.Operation) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.applied = append(a.applied, op.ID)
	return a.err
}

func (a *recordingApplier) appliedIDs() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, len(a.applied))
	copy(out, a.applied)
	return out
}

type coordinatorFixture struct {
	coordinator *SyncCoordinator
	store       *MemoryQueueStore
	monitor     *StaticMonitor
	applier     *recordingApplier
	metrics     *Metrics
}

func newCoordinatorFixture(t *testing.T, online bool) *coordinatorFixture {
	t.Helper()

	store := NewMemoryQueueStore()
	monitor := NewStaticMonitor(online)
	applier := &recordingApplier{}
	metrics := NewMetrics()
	limiter := NewRateLimiter(LimitProfile{MaxRequests: 1000, Window: time.Minute}, logging.Logger)

	coordinator := NewSyncCoordinator(store, limiter, applier, monitor, metrics, 3, logging.Logger)

	return &coordinatorFixture{
		coordinator: coordinator,
		store:       store,
		monitor:     monitor,
		applier:     applier,
		metrics:     metrics,
	}
}

func (f *coordinatorFixture) enqueueAdd(t *testing.T, collection string) string {
	t.Helper()
	id, err := f.coordinator.RegisterOperation(context.Background(), models.KindAdd, collection, "", json.RawMessage(`{"amount":10}`))
	require.NoError(t, err)
	return id
}

func TestSyncCoordinator_RegisterOperation_Offline(t *testing.T) {
	f := newCoordinatorFixture(t, false)

	id := f.enqueueAdd(t, "expenses")
	assert.NotEmpty(t, id)

	// No delivery attempted while offline
	assert.Empty(t, f.applier.appliedIDs())
	assert.Equal(t, 1, f.coordinator.PendingCount())

	// The record is mirrored to the durable store
	persisted, err := f.store.LoadAll(context.Background())
	require.NoError(t, err)
	require.Len(t, persisted, 1)
	assert.Equal(t, id, persisted[0].ID)
	assert.Equal(t, models.StatusPending, persisted[0].Status)
}

func TestSyncCoordinator_RegisterOperation_Invalid(t *testing.T) {
	f := newCoordinatorFixture(t, false)

	_, err := f.coordinator.RegisterOperation(context.Background(), models.KindAdd, "expenses", "doc-1", json.RawMessage(`{}`))
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrUnexpectedDocumentID)

	_, err = f.coordinator.RegisterOperation(context.Background(), "rename", "expenses", "", json.RawMessage(`{}`))
	assert.ErrorIs(t, err, models.ErrInvalidKind)

	// Rejected operations are never enqueued
	assert.Equal(t, 0, f.coordinator.PendingCount())
}

func TestSyncCoordinator_Pass_DrainsInOrder(t *testing.T) {
	f := newCoordinatorFixture(t, false)

	first := f.enqueueAdd(t, "expenses")
	second := f.enqueueAdd(t, "budgets")
	third := f.enqueueAdd(t, "expenses")

	f.monitor.SetOnline(true)
	summary := f.coordinator.AttemptSyncPass(context.Background())

	assert.False(t, summary.Skipped)
	assert.Equal(t, 3, summary.Attempted)
	assert.Equal(t, []string{first, second, third}, f.applier.appliedIDs())
	assert.Equal(t, []string{first, second, third}, summary.Succeeded)

	// Completed records are removed, not kept as history
	assert.Equal(t, 0, f.coordinator.PendingCount())
	assert.Empty(t, f.coordinator.FailedOperations())

	persisted, err := f.store.LoadAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, persisted)
}

func TestSyncCoordinator_Pass_SkippedWhileOffline(t *testing.T) {
	f := newCoordinatorFixture(t, false)
	f.enqueueAdd(t, "expenses")

	summary := f.coordinator.AttemptSyncPass(context.Background())

	assert.True(t, summary.Skipped)
	assert.Zero(t, summary.Attempted)
	assert.Empty(t, f.applier.appliedIDs())
	assert.Equal(t, 1, f.coordinator.PendingCount())
}

func TestSyncCoordinator_Pass_FailureExhaustsRetries(t *testing.T) {
	f := newCoordinatorFixture(t, false)
	f.applier.err = errors.New("network error")

	id := f.enqueueAdd(t, "expenses")
	f.monitor.SetOnline(true)

	var cbErr error
	var cbOp *models.Operation
	callbackFires := 0
	f.coordinator.RegisterCallback(id, Callbacks{
		OnError: func(op *models.Operation, err error) {
			callbackFires++
			cbOp = op
			cbErr = err
		},
	})

	// First two passes retry
	for pass := 1; pass <= 2; pass++ {
		f.coordinator.AttemptSyncPass(context.Background())
		pending := f.coordinator.PendingOperations()
		require.Len(t, pending, 1)
		assert.Equal(t, pass, pending[0].Attempts)
		assert.Equal(t, "network error", pending[0].LastError)
	}

	// Third failure is terminal
	f.coordinator.AttemptSyncPass(context.Background())

	assert.Equal(t, 0, f.coordinator.PendingCount())
	failed := f.coordinator.FailedOperations()
	require.Len(t, failed, 1)
	assert.Equal(t, id, failed[0].ID)
	assert.Equal(t, 3, failed[0].Attempts)
	assert.Equal(t, "network error", failed[0].LastError)

	require.Equal(t, 1, callbackFires)
	assert.Equal(t, id, cbOp.ID)
	assert.EqualError(t, cbErr, "network error")

	// A terminal record gets no further delivery attempts
	f.coordinator.AttemptSyncPass(context.Background())
	assert.Len(t, f.applier.appliedIDs(), 3)
	assert.Equal(t, 1, callbackFires)

	// Failed records stay queryable and persisted
	persisted, err := f.store.LoadAll(context.Background())
	require.NoError(t, err)
	require.Len(t, persisted, 1)
	assert.Equal(t, models.StatusFailed, persisted[0].Status)
}

func TestSyncCoordinator_SuccessCallback_FiresOnce(t *testing.T) {
	f := newCoordinatorFixture(t, false)

	id := f.enqueueAdd(t, "goals")
	fires := 0
	f.coordinator.RegisterCallback(id, Callbacks{
		OnSuccess: func(op *models.Operation) {
			fires++
			assert.Equal(t, models.StatusCompleted, op.Status)
		},
	})

	f.monitor.SetOnline(true)
	f.coordinator.AttemptSyncPass(context.Background())
	f.coordinator.AttemptSyncPass(context.Background())

	assert.Equal(t, 1, fires)
}

func TestSyncCoordinator_Pass_ThrottledStaysPending(t *testing.T) {
	store := NewMemoryQueueStore()
	monitor := NewStaticMonitor(false)
	applier := &recordingApplier{}
	limiter := NewRateLimiter(LimitProfile{MaxRequests: 1, Window: time.Minute}, logging.Logger)
	coordinator := NewSyncCoordinator(store, limiter, applier, monitor, NewMetrics(), 3, logging.Logger)

	first, err := coordinator.RegisterOperation(context.Background(), models.KindAdd, "expenses", "", json.RawMessage(`{"a":1}`))
	require.NoError(t, err)
	_, err = coordinator.RegisterOperation(context.Background(), models.KindAdd, "expenses", "", json.RawMessage(`{"a":2}`))
	require.NoError(t, err)

	monitor.SetOnline(true)
	summary := coordinator.AttemptSyncPass(context.Background())

	assert.Equal(t, 1, summary.Attempted)
	assert.Equal(t, 1, summary.Throttled)
	assert.Equal(t, []string{first}, applier.appliedIDs())

	// The throttled record is untouched and waits for a later pass
	pending := coordinator.PendingOperations()
	require.Len(t, pending, 1)
	assert.Zero(t, pending[0].Attempts)
	assert.Empty(t, pending[0].LastError)
}

func TestSyncCoordinator_Pass_Serialized(t *testing.T) {
	f := newCoordinatorFixture(t, true)

	entered := make(chan struct{})
	release := make(chan struct{})
	blocking := ApplierFunc(func(ctx context.Context, op *models.Operation) error {
		close(entered)
		<-release
		return nil
	})
	f.coordinator.applier = blocking

	_, err := f.coordinator.RegisterOperation(context.Background(), models.KindDelete, "expenses", "doc-1", nil)
	require.NoError(t, err)

	// RegisterOperation kicked off an async pass; wait until it holds the slot
	<-entered

	summary := f.coordinator.AttemptSyncPass(context.Background())
	assert.True(t, summary.Skipped)

	close(release)

	require.Eventually(t, func() bool {
		return f.coordinator.PendingCount() == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestSyncCoordinator_DegradedPersistence(t *testing.T) {
	f := newCoordinatorFixture(t, false)
	f.store.saveErr = errors.New("redis down")

	id := f.enqueueAdd(t, "expenses")
	assert.NotEmpty(t, id)

	// In-memory processing continues despite the store failure
	assert.Equal(t, 1, f.coordinator.PendingCount())
	assert.EqualValues(t, 1, f.metrics.PersistenceFailures())
	assert.False(t, f.coordinator.Stats().Persistent)

	f.monitor.SetOnline(true)
	summary := f.coordinator.AttemptSyncPass(context.Background())
	assert.Equal(t, []string{id}, summary.Succeeded)
	assert.Equal(t, 0, f.coordinator.PendingCount())

	// Durability comes back once the next snapshot write succeeds
	f.store.saveErr = nil
	f.enqueueAdd(t, "expenses")
	require.Eventually(t, func() bool {
		return f.coordinator.Stats().Persistent
	}, 2*time.Second, 10*time.Millisecond)
}

func TestSyncCoordinator_Load_RestoresPersistedQueue(t *testing.T) {
	store := NewMemoryQueueStore()
	op := models.NewOperation(models.KindAdd, "expenses", "", json.RawMessage(`{"amount":5}`))
	require.NoError(t, store.Append(context.Background(), op))

	monitor := NewStaticMonitor(false)
	limiter := NewRateLimiter(LimitProfile{MaxRequests: 100, Window: time.Minute}, logging.Logger)
	applier := &recordingApplier{}
	coordinator := NewSyncCoordinator(store, limiter, applier, monitor, NewMetrics(), 3, logging.Logger)

	require.NoError(t, coordinator.Load(context.Background()))
	assert.Equal(t, 1, coordinator.PendingCount())

	monitor.SetOnline(true)
	coordinator.AttemptSyncPass(context.Background())
	assert.Equal(t, []string{op.ID}, applier.appliedIDs())
}

func TestSyncCoordinator_Stats(t *testing.T) {
	f := newCoordinatorFixture(t, false)
	f.applier.err = errors.New("boom")

	f.enqueueAdd(t, "expenses")
	f.enqueueAdd(t, "budgets")

	stats := f.coordinator.Stats()
	assert.Equal(t, 2, stats.Pending)
	assert.Zero(t, stats.Failed)
	assert.False(t, stats.Online)
	assert.True(t, stats.Persistent)
	assert.True(t, stats.LastPass.IsZero())

	f.monitor.SetOnline(true)
	for i := 0; i < 3; i++ {
		f.coordinator.AttemptSyncPass(context.Background())
	}

	stats = f.coordinator.Stats()
	assert.Zero(t, stats.Pending)
	assert.Equal(t, 2, stats.Failed)
	assert.True(t, stats.Online)
	assert.False(t, stats.LastPass.IsZero())
}

func TestSyncCoordinator_ClearCompleted_PurgesFailed(t *testing.T) {
	f := newCoordinatorFixture(t, false)
	f.applier.err = errors.New("boom")

	f.enqueueAdd(t, "expenses")
	f.monitor.SetOnline(true)
	for i := 0; i < 3; i++ {
		f.coordinator.AttemptSyncPass(context.Background())
	}
	require.Len(t, f.coordinator.FailedOperations(), 1)

	f.coordinator.ClearCompleted(context.Background())

	assert.Empty(t, f.coordinator.FailedOperations())
	persisted, err := f.store.LoadAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, persisted)
}

func TestSyncCoordinator_ClearAll(t *testing.T) {
	f := newCoordinatorFixture(t, false)

	f.enqueueAdd(t, "expenses")
	f.enqueueAdd(t, "budgets")
	require.Equal(t, 2, f.coordinator.PendingCount())

	f.coordinator.ClearAll(context.Background())

	assert.Zero(t, f.coordinator.PendingCount())
	persisted, err := f.store.LoadAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, persisted)
}

func TestSyncCoordinator_ConcurrentRegisterPersistsEveryOperation(t *testing.T) {
	f := newCoordinatorFixture(t, false)

	const n = 25
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.coordinator.RegisterOperation(context.Background(), models.KindAdd, "expenses", "", json.RawMessage(`{"amount":10}`))
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	assert.Equal(t, n, f.coordinator.PendingCount())

	// Every accepted operation must be in the durable snapshot; a lost
	// record here would vanish on restart.
	persisted, err := f.store.LoadAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, persisted, n)
	assert.True(t, f.coordinator.Stats().Persistent)
}

func TestSyncCoordinator_RegisterDuringPassKeepsDurableRecord(t *testing.T) {
	f := newCoordinatorFixture(t, true)

	entered := make(chan struct{})
	release := make(chan struct{})
	f.coordinator.applier = ApplierFunc(func(ctx context.Context, op *models.Operation) error {
		close(entered)
		<-release
		return nil
	})

	first, err := f.coordinator.RegisterOperation(context.Background(), models.KindDelete, "expenses", "doc-1", nil)
	require.NoError(t, err)
	<-entered

	// Registered mid-pass; the pass's own persist must not erase it
	second := f.enqueueAdd(t, "budgets")
	f.monitor.SetOnline(false)
	close(release)

	require.Eventually(t, func() bool {
		return f.coordinator.PendingCount() == 1
	}, 2*time.Second, 10*time.Millisecond)

	persisted, err := f.store.LoadAll(context.Background())
	require.NoError(t, err)
	require.Len(t, persisted, 1)
	assert.Equal(t, second, persisted[0].ID)
	assert.NotEqual(t, first, persisted[0].ID)
}

func TestSyncCoordinator_MetricsTrackOutcomes(t *testing.T) {
	f := newCoordinatorFixture(t, false)

	f.enqueueAdd(t, "expenses")
	f.monitor.SetOnline(true)
	f.coordinator.AttemptSyncPass(context.Background())

	assert.EqualValues(t, 1, f.metrics.GetSyncOperations("expenses"))
	assert.Zero(t, f.metrics.GetSyncFailures("expenses"))
	assert.False(t, f.metrics.GetLastSyncTime("expenses").IsZero())
}
