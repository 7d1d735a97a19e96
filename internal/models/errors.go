package models

import "errors"

// Error constants for operation validation
var (
	ErrInvalidKind          = errors.New("invalid operation kind")
	ErrMissingCollection    = errors.New("collection is required")
	ErrMissingDocumentID    = errors.New("document ID is required for this kind")
	ErrUnexpectedDocumentID = errors.New("document ID not allowed for add operations")
	ErrMissingPayload       = errors.New("payload is required for this kind")
	ErrUnexpectedPayload    = errors.New("payload not allowed for delete operations")
)
