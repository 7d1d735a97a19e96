package services

import (
	"time"

	"github.com/gangwalparul19/rupiya-sync/internal/models"
)

// PassSummary reports the outcome of one sync pass over the pending queue
type PassSummary struct {
	Attempted int       `json:"attempted"`
	Throttled int       `json:"throttled"`
	Succeeded []string  `json:"succeeded"`
	Failed    []string  `json:"failed"`
	StartedAt time.Time `json:"started_at"`
	Skipped   bool      `json:"skipped"`
}

// Callbacks holds the one-shot notification pair for an operation. Both
// fields are optional; each is invoked at most once and then discarded.
type Callbacks struct {
	OnSuccess func(op *models.Operation)
	OnError   func(op *models.Operation, err error)
}

// QueueStats is the read-only snapshot exposed for UI badges and monitoring
type QueueStats struct {
	Pending    int       `json:"pending"`
	Failed     int       `json:"failed"`
	Online     bool      `json:"online"`
	Persistent bool      `json:"persistent"`
	LastPass   time.Time `json:"last_pass,omitempty"`
}
