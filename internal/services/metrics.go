package services

import (
	"sync"
	"sync/atomic"
	"time"
)

// Metrics holds in-process counters for the sync subsystem. The exported
// Prometheus collectors live in internal/observability; this struct backs
// the stats endpoints and tests.
type Metrics struct {
	queueDepth          map[string]int64
	syncOperations      map[string]int64
	syncFailures        map[string]int64
	throttledAttempts   map[string]int64
	persistenceFailures int64
	lastSyncTime        map[string]time.Time
	mu                  sync.RWMutex
}

// NewMetrics creates empty metrics
func NewMetrics() *Metrics {
	return &Metrics{
		queueDepth:        make(map[string]int64),
		syncOperations:    make(map[string]int64),
		syncFailures:      make(map[string]int64),
		throttledAttempts: make(map[string]int64),
		lastSyncTime:      make(map[string]time.Time),
	}
}

// RecordQueueDepth records the current queue depth for a collection
func (m *Metrics) RecordQueueDepth(collection string, depth int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queueDepth[collection] = depth
}

// GetQueueDepth returns the recorded queue depth for a collection
func (m *Metrics) GetQueueDepth(collection string) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.queueDepth[collection]
}

// IncrementSyncOperations counts a successfully delivered operation
func (m *Metrics) IncrementSyncOperations(collection string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.syncOperations[collection]++
	m.lastSyncTime[collection] = time.Now()
}

// IncrementSyncFailures counts a failed delivery attempt
func (m *Metrics) IncrementSyncFailures(collection string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.syncFailures[collection]++
}

// IncrementThrottled counts an attempt rejected by the rate limiter
func (m *Metrics) IncrementThrottled(collection string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.throttledAttempts[collection]++
}

// IncrementPersistenceFailures counts a queue store write that was rejected
func (m *Metrics) IncrementPersistenceFailures() {
	atomic.AddInt64(&m.persistenceFailures, 1)
}

// PersistenceFailures returns the persistence failure count
func (m *Metrics) PersistenceFailures() int64 {
	return atomic.LoadInt64(&m.persistenceFailures)
}

// GetSyncOperations returns the delivered count for a collection
func (m *Metrics) GetSyncOperations(collection string) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.syncOperations[collection]
}

// GetSyncFailures returns the failed attempt count for a collection
func (m *Metrics) GetSyncFailures(collection string) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.syncFailures[collection]
}

// GetThrottled returns the throttled attempt count for a collection
func (m *Metrics) GetThrottled(collection string) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.throttledAttempts[collection]
}

// GetLastSyncTime returns when a collection last had a successful delivery
func (m *Metrics) GetLastSyncTime(collection string) time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastSyncTime[collection]
}

// GetAllMetrics returns all counters as a flat map for monitoring endpoints
func (m *Metrics) GetAllMetrics() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	metrics := make(map[string]interface{})

	for collection, depth := range m.queueDepth {
		metrics["sync_queue_depth_"+collection] = depth
	}
	for collection, count := range m.syncOperations {
		metrics["sync_operations_total_"+collection] = count
	}
	for collection, count := range m.syncFailures {
		metrics["sync_failures_total_"+collection] = count
	}
	for collection, count := range m.throttledAttempts {
		metrics["sync_throttled_total_"+collection] = count
	}
	metrics["persistence_failures_total"] = atomic.LoadInt64(&m.persistenceFailures)

	return metrics
}
