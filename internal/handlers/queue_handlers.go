package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gangwalparul19/rupiya-sync/internal/logging"
	"github.com/gangwalparul19/rupiya-sync/internal/models"
	"github.com/gangwalparul19/rupiya-sync/internal/services"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// QueueHandlers exposes the offline mutation queue over HTTP. The
// coordinator and trigger are injected; handlers hold no state of their own.
type QueueHandlers struct {
	coordinator *services.SyncCoordinator
	trigger     *services.SyncTrigger
	logger      *logging.SafeLogger
}

// NewQueueHandlers wires the queue endpoints
func NewQueueHandlers(coordinator *services.SyncCoordinator, trigger *services.SyncTrigger, logger *logging.SafeLogger) *QueueHandlers {
	return &QueueHandlers{
		coordinator: coordinator,
		trigger:     trigger,
		logger:      logger,
	}
}

// Enqueue godoc
// @Summary      Queue a mutation against a finance collection
// @Description  Accepts an add/update/delete operation for eventual delivery to the document store. The operation is persisted and retried until it completes or exhausts its retries.
// @Tags         queue
// @Accept       json
// @Produce      json
// @Param        operation body EnqueueRequest true "Operation to queue"
// @Success      202 {object} EnqueueResponse
// @Failure      400 {object} ErrorResponse "Invalid operation"
// @Router       /queue/operations [post]
func (h *QueueHandlers) Enqueue(c *gin.Context) {
	ctx, span := otel.Tracer("").Start(c.Request.Context(), "Enqueue")
	defer span.End()

	var req EnqueueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request body: " + err.Error()})
		return
	}

	var payload json.RawMessage
	if req.Payload != nil {
		data, err := json.Marshal(req.Payload)
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid payload: " + err.Error()})
			return
		}
		payload = data
	}

	span.SetAttributes(
		attribute.String("queue.kind", req.Kind),
		attribute.String("queue.collection", req.Collection),
	)

	id, err := h.coordinator.RegisterOperation(ctx, req.Kind, req.Collection, req.DocumentID, payload)
	if err != nil {
		if errors.Is(err, models.ErrInvalidKind) ||
			errors.Is(err, models.ErrMissingCollection) ||
			errors.Is(err, models.ErrMissingDocumentID) ||
			errors.Is(err, models.ErrUnexpectedDocumentID) ||
			errors.Is(err, models.ErrMissingPayload) ||
			errors.Is(err, models.ErrUnexpectedPayload) {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
			return
		}
		h.logger.Error("failed to register operation", zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to queue operation"})
		return
	}

	c.JSON(http.StatusAccepted, EnqueueResponse{ID: id, Status: models.StatusPending})
}

// ListPending godoc
// @Summary      List pending operations
// @Tags         queue
// @Produce      json
// @Success      200 {array} models.Operation
// @Router       /queue/operations [get]
func (h *QueueHandlers) ListPending(c *gin.Context) {
	ops := h.coordinator.PendingOperations()
	if ops == nil {
		ops = []models.Operation{}
	}
	c.JSON(http.StatusOK, ops)
}

// ListFailed godoc
// @Summary      List permanently failed operations
// @Description  Failed operations stay queryable until explicitly cleared.
// @Tags         queue
// @Produce      json
// @Success      200 {array} models.Operation
// @Router       /queue/failed [get]
func (h *QueueHandlers) ListFailed(c *gin.Context) {
	ops := h.coordinator.FailedOperations()
	if ops == nil {
		ops = []models.Operation{}
	}
	c.JSON(http.StatusOK, ops)
}

// Stats godoc
// @Summary      Queue statistics
// @Tags         queue
// @Produce      json
// @Success      200 {object} services.QueueStats
// @Router       /queue/stats [get]
func (h *QueueHandlers) Stats(c *gin.Context) {
	c.JSON(http.StatusOK, h.coordinator.Stats())
}

// Flush godoc
// @Summary      Run a sync pass now
// @Description  Drives pending operations toward the document store immediately instead of waiting for the next trigger.
// @Tags         queue
// @Produce      json
// @Success      200 {object} services.PassSummary
// @Router       /queue/flush [post]
func (h *QueueHandlers) Flush(c *gin.Context) {
	summary := h.trigger.Flush(c.Request.Context())
	c.JSON(http.StatusOK, summary)
}

// ClearCompleted godoc
// @Summary      Purge terminal operations
// @Tags         queue
// @Produce      json
// @Success      204
// @Router       /queue/completed [delete]
func (h *QueueHandlers) ClearCompleted(c *gin.Context) {
	h.coordinator.ClearCompleted(c.Request.Context())
	c.Status(http.StatusNoContent)
}

// ClearAll godoc
// @Summary      Purge the entire queue, pending operations included
// @Tags         queue
// @Produce      json
// @Success      204
// @Router       /queue [delete]
func (h *QueueHandlers) ClearAll(c *gin.Context) {
	h.coordinator.ClearAll(c.Request.Context())
	c.Status(http.StatusNoContent)
}
