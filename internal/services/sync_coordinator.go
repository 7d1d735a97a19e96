package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gangwalparul19/rupiya-sync/internal/logging"
	"github.com/gangwalparul19/rupiya-sync/internal/models"
	"github.com/gangwalparul19/rupiya-sync/internal/observability"
	"go.uber.org/zap"
)

// SyncCoordinator owns the offline mutation queue's lifecycle: it admits new
// operations, decides when to attempt delivery, applies the retry policy and
// reports outcomes. All collaborators are injected; callers hold a reference
// rather than relying on package-level state.
//
// The in-memory operation list is the working set; the QueueStore is its
// durable mirror. A store failure degrades durability for the session but
// never aborts in-memory processing.
type SyncCoordinator struct {
	store      QueueStore
	limiter    *RateLimiter
	applier    Applier
	monitor    ConnectivityMonitor
	metrics    *Metrics
	logger     *logging.SafeLogger
	maxRetries int

	mu         sync.Mutex
	ops        []*models.Operation
	callbacks  map[string]Callbacks
	persistent bool
	lastPass   atomic.Int64 // unix nanos of the last completed pass

	// storeMu serializes durable snapshot writes; without it a concurrent
	// persist could overwrite a just-registered operation's record.
	storeMu sync.Mutex

	passInFlight atomic.Bool
}

// NewSyncCoordinator wires a coordinator from its collaborators
func NewSyncCoordinator(store QueueStore, limiter *RateLimiter, applier Applier, monitor ConnectivityMonitor, metrics *Metrics, maxRetries int, logger *logging.SafeLogger) *SyncCoordinator {
	return &SyncCoordinator{
		store:      store,
		limiter:    limiter,
		applier:    applier,
		monitor:    monitor,
		metrics:    metrics,
		logger:     logger,
		maxRetries: maxRetries,
		callbacks:  make(map[string]Callbacks),
		persistent: true,
	}
}

// Load restores the working set from the durable store. Call once at startup
// before any RegisterOperation.
func (c *SyncCoordinator) Load(ctx context.Context) error {
	ops, err := c.store.LoadAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to load persisted queue: %w", err)
	}

	c.mu.Lock()
	c.ops = ops
	pending := 0
	for _, op := range ops {
		if op.Status == models.StatusPending {
			pending++
		}
	}
	c.mu.Unlock()

	c.logger.Info("queue restored from durable store",
		zap.Int("records", len(ops)),
		zap.Int("pending", pending))
	observability.QueuePending.Set(float64(pending))

	return nil
}

// RegisterOperation validates and enqueues a mutation, returning its ID for
// correlation. If the remote currently looks reachable, a sync pass is
// kicked off asynchronously; otherwise the record waits for a trigger.
func (c *SyncCoordinator) RegisterOperation(ctx context.Context, kind, collection, documentID string, payload json.RawMessage) (string, error) {
	op := models.NewOperation(kind, collection, documentID, payload)
	if err := op.Validate(); err != nil {
		return "", err
	}

	c.mu.Lock()
	c.ops = append(c.ops, op)
	pending := c.pendingCountLocked()
	c.mu.Unlock()

	// Mirror the whole working set rather than appending to the durable
	// snapshot; persist serializes against an in-flight pass, so neither
	// write can clobber the other's records.
	c.persist(ctx)

	c.metrics.RecordQueueDepth(collection, int64(pending))
	observability.QueuePending.Set(float64(pending))

	c.logger.Info("operation registered",
		zap.String("operation_id", op.ID),
		zap.String("kind", op.Kind),
		zap.String("collection", op.Collection),
		zap.Int("pending", pending))

	if c.monitor.IsOnline() {
		go c.AttemptSyncPass(context.Background())
	}

	return op.ID, nil
}

// RegisterCallback associates a one-shot notification pair with an operation
// ID. It has no effect once the operation reached a terminal state and its
// callback fired.
func (c *SyncCoordinator) RegisterCallback(id string, cb Callbacks) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.callbacks[id] = cb
}

// AttemptSyncPass runs one full pass over the pending operations in FIFO
// order. Passes are serialized: a pass started while another is in flight
// returns immediately with Skipped set. It never returns an error; per
// operation failures are recorded on the records themselves.
func (c *SyncCoordinator) AttemptSyncPass(ctx context.Context) PassSummary {
	summary := PassSummary{StartedAt: time.Now()}

	if !c.monitor.IsOnline() {
		c.logger.Debug("skipping sync pass: offline")
		summary.Skipped = true
		return summary
	}

	if !c.passInFlight.CompareAndSwap(false, true) {
		c.logger.Debug("skipping sync pass: another pass in flight")
		summary.Skipped = true
		return summary
	}
	defer c.passInFlight.Store(false)

	// Snapshot the pending set; operations registered mid-pass are picked up
	// on the next pass.
	c.mu.Lock()
	snapshot := make([]*models.Operation, 0, len(c.ops))
	for _, op := range c.ops {
		if op.Status == models.StatusPending {
			snapshot = append(snapshot, op)
		}
	}
	c.mu.Unlock()

	for _, op := range snapshot {
		decision := c.limiter.CheckLimit(op.Collection)
		if !decision.Allowed {
			// Not an error: the operation stays pending and waits for a
			// later pass; no busy-wait inside the pass.
			summary.Throttled++
			c.metrics.IncrementThrottled(op.Collection)
			c.logger.Debug("delivery throttled",
				zap.String("operation_id", op.ID),
				zap.String("collection", op.Collection),
				zap.Int("retry_after_seconds", decision.RetryAfterSeconds))
			continue
		}

		summary.Attempted++
		start := time.Now()
		err := c.applier.Apply(ctx, op)
		duration := time.Since(start)

		if err != nil {
			c.recordFailure(op, err, &summary)
		} else {
			c.recordSuccess(op, &summary)
		}

		c.logger.Debug("delivery attempt finished",
			zap.String("operation_id", op.ID),
			zap.String("collection", op.Collection),
			zap.Duration("duration", duration),
			zap.Error(err))
	}

	c.removeCompleted()
	c.persist(ctx)
	c.lastPass.Store(time.Now().UnixNano())

	c.logger.Info("sync pass finished",
		zap.Int("attempted", summary.Attempted),
		zap.Int("throttled", summary.Throttled),
		zap.Int("succeeded", len(summary.Succeeded)),
		zap.Int("failed", len(summary.Failed)))

	return summary
}

func (c *SyncCoordinator) recordSuccess(op *models.Operation, summary *PassSummary) {
	c.mu.Lock()
	op.Status = models.StatusCompleted
	cb, hadCallback := c.callbacks[op.ID]
	delete(c.callbacks, op.ID)
	c.mu.Unlock()

	summary.Succeeded = append(summary.Succeeded, op.ID)
	c.metrics.IncrementSyncOperations(op.Collection)
	observability.SyncAttempts.WithLabelValues(op.Collection, "success").Inc()

	if hadCallback && cb.OnSuccess != nil {
		cb.OnSuccess(op)
	}
}

func (c *SyncCoordinator) recordFailure(op *models.Operation, applyErr error, summary *PassSummary) {
	c.mu.Lock()
	op.Attempts++
	op.LastError = applyErr.Error()
	exhausted := op.Attempts >= c.maxRetries
	var cb Callbacks
	hadCallback := false
	if exhausted {
		op.Status = models.StatusFailed
		cb, hadCallback = c.callbacks[op.ID]
		delete(c.callbacks, op.ID)
	}
	c.mu.Unlock()

	c.metrics.IncrementSyncFailures(op.Collection)
	observability.SyncAttempts.WithLabelValues(op.Collection, "failure").Inc()

	if exhausted {
		summary.Failed = append(summary.Failed, op.ID)
		c.logger.Error("operation failed permanently",
			zap.String("operation_id", op.ID),
			zap.String("collection", op.Collection),
			zap.Int("attempts", op.Attempts),
			zap.String("last_error", op.LastError))
		observability.QueueFailed.Inc()

		if hadCallback && cb.OnError != nil {
			cb.OnError(op, applyErr)
		}
	} else {
		c.logger.Warn("delivery attempt failed, will retry",
			zap.String("operation_id", op.ID),
			zap.String("collection", op.Collection),
			zap.Int("attempts", op.Attempts),
			zap.Int("max_retries", c.maxRetries),
			zap.Error(applyErr))
	}
}

// removeCompleted drops completed records; they are not kept as history.
// Failed records stay queryable until the caller clears them.
func (c *SyncCoordinator) removeCompleted() {
	c.mu.Lock()
	defer c.mu.Unlock()

	kept := c.ops[:0]
	for _, op := range c.ops {
		if op.Status != models.StatusCompleted {
			kept = append(kept, op)
		}
	}
	c.ops = kept
}

// persist commits the current working set back to the durable store. The
// snapshot is taken and written under storeMu so concurrent persists cannot
// write stale snapshots over newer ones.
func (c *SyncCoordinator) persist(ctx context.Context) {
	c.storeMu.Lock()
	defer c.storeMu.Unlock()

	c.mu.Lock()
	snapshot := make([]*models.Operation, len(c.ops))
	copy(snapshot, c.ops)
	pending := c.pendingCountLocked()
	c.mu.Unlock()

	if err := c.store.Save(ctx, snapshot); err != nil {
		c.logger.Error("failed to persist queue snapshot", zap.Error(err))
		c.metrics.IncrementPersistenceFailures()
		observability.PersistenceFailures.Inc()

		c.mu.Lock()
		c.persistent = false
		c.mu.Unlock()
		return
	}

	c.mu.Lock()
	c.persistent = true
	c.mu.Unlock()

	observability.QueuePending.Set(float64(pending))
}

func (c *SyncCoordinator) pendingCountLocked() int {
	count := 0
	for _, op := range c.ops {
		if op.Status == models.StatusPending {
			count++
		}
	}
	return count
}

// PendingCount returns the number of operations awaiting delivery
func (c *SyncCoordinator) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pendingCountLocked()
}

// PendingOperations returns copies of the pending records in FIFO order
func (c *SyncCoordinator) PendingOperations() []models.Operation {
	return c.operationsByStatus(models.StatusPending)
}

// FailedOperations returns copies of the permanently failed records
func (c *SyncCoordinator) FailedOperations() []models.Operation {
	return c.operationsByStatus(models.StatusFailed)
}

func (c *SyncCoordinator) operationsByStatus(status string) []models.Operation {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []models.Operation
	for _, op := range c.ops {
		if op.Status == status {
			out = append(out, *op)
		}
	}
	return out
}

// Stats returns a read-only snapshot of queue state
func (c *SyncCoordinator) Stats() QueueStats {
	c.mu.Lock()
	pending := c.pendingCountLocked()
	failed := 0
	for _, op := range c.ops {
		if op.Status == models.StatusFailed {
			failed++
		}
	}
	persistent := c.persistent
	c.mu.Unlock()

	stats := QueueStats{
		Pending:    pending,
		Failed:     failed,
		Online:     c.monitor.IsOnline(),
		Persistent: persistent,
	}
	if nanos := c.lastPass.Load(); nanos != 0 {
		stats.LastPass = time.Unix(0, nanos)
	}
	return stats
}

// ClearCompleted purges terminal records, including failed ones the caller
// is done inspecting.
func (c *SyncCoordinator) ClearCompleted(ctx context.Context) {
	c.mu.Lock()
	kept := c.ops[:0]
	for _, op := range c.ops {
		if !op.IsTerminal() {
			kept = append(kept, op)
		} else {
			delete(c.callbacks, op.ID)
		}
	}
	c.ops = kept
	c.mu.Unlock()

	c.persist(ctx)
}

// ClearAll purges every record and callback, pending ones included
func (c *SyncCoordinator) ClearAll(ctx context.Context) {
	c.mu.Lock()
	c.ops = nil
	c.callbacks = make(map[string]Callbacks)
	c.mu.Unlock()

	c.persist(ctx)
	c.logger.Warn("queue cleared")
}
