package services

import (
	"context"
	"sync"
	"time"

	"github.com/gangwalparul19/rupiya-sync/internal/logging"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

// ConnectivityMonitor reports whether the remote document store is reachable
// and notifies listeners when that changes. Listener invocations never block
// the monitor.
type ConnectivityMonitor interface {
	IsOnline() bool
	OnChange(fn func(online bool))
}

// ProbeFunc performs one reachability check against the remote
type ProbeFunc func(ctx context.Context) error

// MongoProbe builds a ProbeFunc that pings the MongoDB primary
func MongoProbe(client *mongo.Client) ProbeFunc {
	return func(ctx context.Context) error {
		return client.Ping(ctx, readpref.Primary())
	}
}

// ProbeMonitor checks reachability on a fixed interval and tracks an online
// flag. A probe failure flips the flag to offline; the next success flips it
// back and notifies listeners, which is what triggers a sync pass after an
// outage.
type ProbeMonitor struct {
	probe     ProbeFunc
	interval  time.Duration
	timeout   time.Duration
	online    bool
	listeners []func(online bool)
	mu        sync.RWMutex
	stopChan  chan struct{}
	logger    *logging.SafeLogger
}

// NewProbeMonitor creates a monitor; it reports offline until the first probe
func NewProbeMonitor(probe ProbeFunc, interval, timeout time.Duration, logger *logging.SafeLogger) *ProbeMonitor {
	return &ProbeMonitor{
		probe:    probe,
		interval: interval,
		timeout:  timeout,
		stopChan: make(chan struct{}),
		logger:   logger,
	}
}

// StartMonitoring probes immediately and then on every interval tick until
// Stop is called. Run in its own goroutine.
func (pm *ProbeMonitor) StartMonitoring() {
	pm.logger.Info("starting connectivity monitoring",
		zap.Duration("interval", pm.interval))

	pm.CheckNow()

	ticker := time.NewTicker(pm.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			pm.CheckNow()
		case <-pm.stopChan:
			pm.logger.Info("connectivity monitoring stopped")
			return
		}
	}
}

// Stop stops the monitoring loop
func (pm *ProbeMonitor) Stop() {
	close(pm.stopChan)
}

// CheckNow performs a single probe and updates the online flag
func (pm *ProbeMonitor) CheckNow() {
	ctx, cancel := context.WithTimeout(context.Background(), pm.timeout)
	defer cancel()

	err := pm.probe(ctx)
	pm.setOnline(err == nil, err)
}

// IsOnline returns the last observed reachability state
func (pm *ProbeMonitor) IsOnline() bool {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	return pm.online
}

// OnChange registers a listener for online/offline transitions
func (pm *ProbeMonitor) OnChange(fn func(online bool)) {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	pm.listeners = append(pm.listeners, fn)
}

func (pm *ProbeMonitor) setOnline(online bool, probeErr error) {
	pm.mu.Lock()
	if pm.online == online {
		pm.mu.Unlock()
		return
	}
	pm.online = online
	listeners := make([]func(bool), len(pm.listeners))
	copy(listeners, pm.listeners)
	pm.mu.Unlock()

	if online {
		pm.logger.Info("remote store reachable")
	} else {
		pm.logger.Warn("remote store unreachable", zap.Error(probeErr))
	}

	for _, fn := range listeners {
		go fn(online)
	}
}

// StaticMonitor is a ConnectivityMonitor with a manually controlled state.
// It stands in where no probe target exists and drives offline/online
// scenarios in tests.
type StaticMonitor struct {
	mu        sync.RWMutex
	online    bool
	listeners []func(online bool)
}

// NewStaticMonitor creates a monitor fixed at the given initial state
func NewStaticMonitor(online bool) *StaticMonitor {
	return &StaticMonitor{online: online}
}

// IsOnline returns the current state
func (sm *StaticMonitor) IsOnline() bool {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.online
}

// OnChange registers a listener for state transitions
func (sm *StaticMonitor) OnChange(fn func(online bool)) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.listeners = append(sm.listeners, fn)
}

// SetOnline flips the state, notifying listeners on a transition
func (sm *StaticMonitor) SetOnline(online bool) {
	sm.mu.Lock()
	if sm.online == online {
		sm.mu.Unlock()
		return
	}
	sm.online = online
	listeners := make([]func(bool), len(sm.listeners))
	copy(listeners, sm.listeners)
	sm.mu.Unlock()

	for _, fn := range listeners {
		fn(online)
	}
}
