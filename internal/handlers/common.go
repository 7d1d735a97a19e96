package handlers

// ErrorResponse is the error body returned by all endpoints
type ErrorResponse struct {
	Error string `json:"error"`
}

// EnqueueRequest is the body accepted by the enqueue endpoint
type EnqueueRequest struct {
	Kind       string                 `json:"kind" binding:"required"`
	Collection string                 `json:"collection" binding:"required"`
	DocumentID string                 `json:"document_id"`
	Payload    map[string]interface{} `json:"payload"`
}

// EnqueueResponse returns the ID assigned to an accepted operation
type EnqueueResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}
