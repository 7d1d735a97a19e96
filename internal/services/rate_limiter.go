package services

import (
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/gangwalparul19/rupiya-sync/internal/logging"
	"github.com/gangwalparul19/rupiya-sync/internal/observability"
	"go.uber.org/zap"
)

// LimitProfile configures the sliding window for a logical key
type LimitProfile struct {
	MaxRequests int
	Window      time.Duration
}

// Decision is the outcome of a single admission check
type Decision struct {
	Allowed           bool      `json:"allowed"`
	Remaining         int       `json:"remaining"`
	ResetTime         time.Time `json:"reset_time"`
	RetryAfterSeconds int       `json:"retry_after_seconds,omitempty"`
}

// RateLimitError signals a rejected admission for call sites that prefer to
// fail fast instead of branching on a Decision.
type RateLimitError struct {
	Key               string
	RetryAfterSeconds int
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded for %q, retry after %ds", e.Key, e.RetryAfterSeconds)
}

// RateLimiter implements sliding-window admission control per logical key.
// It keeps a pruned list of admitted-call timestamps per key, entirely in
// memory; state intentionally resets on process restart.
type RateLimiter struct {
	mu             sync.Mutex
	defaultProfile LimitProfile
	profiles       map[string]LimitProfile
	history        map[string][]time.Time
	now            func() time.Time
	stopChan       chan struct{}
	logger         *logging.SafeLogger
}

// NewRateLimiter creates a rate limiter with the given default profile
func NewRateLimiter(defaultProfile LimitProfile, logger *logging.SafeLogger) *RateLimiter {
	return &RateLimiter{
		defaultProfile: clampProfile(defaultProfile),
		profiles:       make(map[string]LimitProfile),
		history:        make(map[string][]time.Time),
		now:            time.Now,
		stopChan:       make(chan struct{}),
		logger:         logger,
	}
}

// SetProfile registers a named override, e.g. a tighter budget for the
// "documents" collection. Keys match the profile name exactly or by
// "name:" prefix; unknown keys use the default profile.
func (rl *RateLimiter) SetProfile(name string, profile LimitProfile) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.profiles[name] = clampProfile(profile)
}

// clampProfile normalizes a profile so admission checks stay total: a
// non-positive budget rejects everything and a non-positive window spans a
// single instant rather than underflowing the prune cutoff.
func clampProfile(p LimitProfile) LimitProfile {
	if p.MaxRequests < 0 {
		p.MaxRequests = 0
	}
	if p.Window < 0 {
		p.Window = 0
	}
	return p
}

// profileFor resolves the profile for a key; callers hold rl.mu
func (rl *RateLimiter) profileFor(key string) LimitProfile {
	if p, ok := rl.profiles[key]; ok {
		return p
	}
	for name, p := range rl.profiles {
		if strings.HasPrefix(key, name+":") {
			return p
		}
	}
	return rl.defaultProfile
}

// CheckLimit decides whether a call for the key is admitted right now. An
// admitted call's timestamp is recorded against the window; a rejected call
// leaves the window untouched.
func (rl *RateLimiter) CheckLimit(key string) Decision {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	profile := rl.profileFor(key)
	now := rl.now()
	windowStart := now.Add(-profile.Window)

	requests := rl.history[key]
	pruned := requests[:0]
	for _, ts := range requests {
		if ts.After(windowStart) {
			pruned = append(pruned, ts)
		}
	}

	if len(pruned) < profile.MaxRequests {
		pruned = append(pruned, now)
		rl.history[key] = pruned

		rl.logger.Debug("rate limiter allowed request",
			zap.String("key", key),
			zap.Int("remaining", profile.MaxRequests-len(pruned)))
		observability.RateLimitDecisions.WithLabelValues(key, "allowed").Inc()

		return Decision{
			Allowed:   true,
			Remaining: profile.MaxRequests - len(pruned),
			ResetTime: pruned[0].Add(profile.Window),
		}
	}

	rl.history[key] = pruned
	// A zero-budget profile has no admitted call to anchor the window on
	resetTime := now.Add(profile.Window)
	if len(pruned) > 0 {
		resetTime = pruned[0].Add(profile.Window)
	}
	retryAfter := int(math.Ceil(resetTime.Sub(now).Seconds()))
	if retryAfter < 1 {
		retryAfter = 1
	}

	rl.logger.Warn("rate limiter rejected request",
		zap.String("key", key),
		zap.Int("max_requests", profile.MaxRequests),
		zap.Duration("window", profile.Window),
		zap.Int("retry_after_seconds", retryAfter))
	observability.RateLimitDecisions.WithLabelValues(key, "rejected").Inc()

	return Decision{
		Allowed:           false,
		Remaining:         0,
		ResetTime:         resetTime,
		RetryAfterSeconds: retryAfter,
	}
}

// EnforceLimit is CheckLimit for call sites that want an error instead of a
// Decision; the returned *RateLimitError carries the retry-after hint.
func (rl *RateLimiter) EnforceLimit(key string) error {
	decision := rl.CheckLimit(key)
	if decision.Allowed {
		return nil
	}
	return &RateLimitError{Key: key, RetryAfterSeconds: decision.RetryAfterSeconds}
}

// Status returns the admitted-call count within the current window and the
// configured maximum for a key, without recording an attempt.
func (rl *RateLimiter) Status(key string) (int, int) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	profile := rl.profileFor(key)
	windowStart := rl.now().Add(-profile.Window)

	used := 0
	for _, ts := range rl.history[key] {
		if ts.After(windowStart) {
			used++
		}
	}
	return used, profile.MaxRequests
}

// Reset clears the history for a single key
func (rl *RateLimiter) Reset(key string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.history, key)
}

// ResetAll clears all per-key histories
func (rl *RateLimiter) ResetAll() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.history = make(map[string][]time.Time)
}

// Cleanup prunes expired timestamps and drops keys whose history emptied,
// bounding memory independently of CheckLimit traffic.
func (rl *RateLimiter) Cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	for key, requests := range rl.history {
		windowStart := now.Add(-rl.profileFor(key).Window)
		pruned := requests[:0]
		for _, ts := range requests {
			if ts.After(windowStart) {
				pruned = append(pruned, ts)
			}
		}
		if len(pruned) == 0 {
			delete(rl.history, key)
			rl.logger.Debug("rate limiter dropped idle key", zap.String("key", key))
		} else {
			rl.history[key] = pruned
		}
	}
}

// KeyCount returns the number of tracked keys
func (rl *RateLimiter) KeyCount() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.history)
}

// StartCleanup runs Cleanup on the given interval until StopCleanup is called
func (rl *RateLimiter) StartCleanup(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.Cleanup()
		case <-rl.stopChan:
			rl.logger.Info("rate limiter cleanup stopped")
			return
		}
	}
}

// StopCleanup stops the cleanup loop
func (rl *RateLimiter) StopCleanup() {
	close(rl.stopChan)
}
