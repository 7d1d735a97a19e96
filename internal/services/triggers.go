package services

import (
	"context"
	"time"

	"github.com/gangwalparul19/rupiya-sync/internal/logging"
	"go.uber.org/zap"
)

// SyncTrigger decides when sync passes run without owning any queue state.
// Three paths feed the coordinator: a reconnect transition from the
// connectivity monitor, a periodic background tick while work is pending,
// and explicit Flush calls. None of them blocks its caller.
type SyncTrigger struct {
	coordinator *SyncCoordinator
	monitor     ConnectivityMonitor
	interval    time.Duration
	stopChan    chan struct{}
	logger      *logging.SafeLogger
}

// NewSyncTrigger wires a trigger adapter; interval is the background pass
// cadence, the deferred-sync stand-in.
func NewSyncTrigger(coordinator *SyncCoordinator, monitor ConnectivityMonitor, interval time.Duration, logger *logging.SafeLogger) *SyncTrigger {
	return &SyncTrigger{
		coordinator: coordinator,
		monitor:     monitor,
		interval:    interval,
		stopChan:    make(chan struct{}),
		logger:      logger,
	}
}

// Start subscribes to connectivity transitions and launches the background
// tick loop. Call Stop to shut the loop down.
func (st *SyncTrigger) Start() {
	st.monitor.OnChange(func(online bool) {
		if !online {
			return
		}
		st.logger.Info("reconnect detected, triggering sync pass")
		st.coordinator.AttemptSyncPass(context.Background())
	})

	go st.run()

	st.logger.Info("sync trigger started",
		zap.Duration("interval", st.interval))
}

func (st *SyncTrigger) run() {
	ticker := time.NewTicker(st.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if st.coordinator.PendingCount() == 0 {
				continue
			}
			if !st.monitor.IsOnline() {
				continue
			}
			st.coordinator.AttemptSyncPass(context.Background())
		case <-st.stopChan:
			st.logger.Info("sync trigger stopped")
			return
		}
	}
}

// Stop stops the background tick loop
func (st *SyncTrigger) Stop() {
	close(st.stopChan)
}

// Flush runs a sync pass on behalf of an explicit caller request
func (st *SyncTrigger) Flush(ctx context.Context) PassSummary {
	st.logger.Info("manual flush requested")
	return st.coordinator.AttemptSyncPass(ctx)
}
