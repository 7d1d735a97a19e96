package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// OperationKind constants
const (
	KindAdd    = "add"
	KindUpdate = "update"
	KindDelete = "delete"
)

// OperationStatus constants
const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Operation represents a single queued mutation against the remote document
// store, together with its delivery state. Completed and failed are terminal;
// once reached, no further delivery attempts are made.
type Operation struct {
	ID         string          `json:"id"`
	Kind       string          `json:"kind"`
	Collection string          `json:"collection"`
	DocumentID string          `json:"document_id,omitempty"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	Status     string          `json:"status"`
	Attempts   int             `json:"attempts"`
	LastError  string          `json:"last_error,omitempty"`
}

// NewOperation constructs a pending operation with a fresh ID. The ID carries
// a millisecond timestamp so IDs sort roughly by enqueue time, plus a random
// suffix for uniqueness.
func NewOperation(kind, collection, documentID string, payload json.RawMessage) *Operation {
	return &Operation{
		ID:         fmt.Sprintf("%d-%s", time.Now().UnixMilli(), uuid.NewString()[:8]),
		Kind:       kind,
		Collection: collection,
		DocumentID: documentID,
		Payload:    payload,
		CreatedAt:  time.Now(),
		Status:     StatusPending,
		Attempts:   0,
	}
}

// Validate checks the kind/field combination invariant: an add carries a
// payload and no document ID, an update carries both, a delete carries only
// a document ID.
func (op *Operation) Validate() error {
	if op.Collection == "" {
		return ErrMissingCollection
	}

	switch op.Kind {
	case KindAdd:
		if len(op.Payload) == 0 {
			return ErrMissingPayload
		}
		if op.DocumentID != "" {
			return ErrUnexpectedDocumentID
		}
	case KindUpdate:
		if op.DocumentID == "" {
			return ErrMissingDocumentID
		}
		if len(op.Payload) == 0 {
			return ErrMissingPayload
		}
	case KindDelete:
		if op.DocumentID == "" {
			return ErrMissingDocumentID
		}
		if len(op.Payload) != 0 {
			return ErrUnexpectedPayload
		}
	default:
		return fmt.Errorf("%w: %q", ErrInvalidKind, op.Kind)
	}

	return nil
}

// IsTerminal reports whether the operation reached a terminal status
func (op *Operation) IsTerminal() bool {
	return op.Status == StatusCompleted || op.Status == StatusFailed
}
