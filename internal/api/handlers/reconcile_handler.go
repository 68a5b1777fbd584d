package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/oms-platform/reconciliation-service/internal/application"
	"github.com/oms-platform/reconciliation-service/internal/domain"
	"github.com/oms-platform/reconciliation-service/pkg/logging"
)

// ReconcileHandler handles reconciliation HTTP requests
type ReconcileHandler struct {
	scheduler *application.Scheduler
	logger    *logging.Logger
}

// NewReconcileHandler creates a new reconcile handler
func NewReconcileHandler(scheduler *application.Scheduler, logger *logging.Logger) *ReconcileHandler {
	return &ReconcileHandler{
		scheduler: scheduler,
		logger:    logger,
	}
}

// RegisterRoutes registers the reconciliation routes
func (h *ReconcileHandler) RegisterRoutes(r *gin.RouterGroup) {
	reconcile := r.Group("/reconcile")
	{
		reconcile.POST("/run", h.RunNow)
		reconcile.GET("/status", h.GetStatus)
	}
}

// RunRequest optionally narrows the carrier feed window.
type RunRequest struct {
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
}

// RunNow handles POST /reconcile/run
func (h *ReconcileHandler) RunNow(c *gin.Context) {
	var req RunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		// Allow empty body for a full-window run
		req = RunRequest{}
	}

	window := domain.FeedWindow{
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
	}

	result, err := h.scheduler.RunNow(c.Request.Context(), window)
	if err != nil {
		if errors.Is(err, application.ErrRunInProgress) {
			h.logger.Warn("Manual run rejected, run in progress")
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		h.logger.WithError(err).Error("Manual reconciliation run failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	h.logger.Info("Manual reconciliation run completed",
		"run_id", result.RunID,
		"updates", len(result.Updates),
	)
	c.JSON(http.StatusOK, result)
}

// GetStatus handles GET /reconcile/status
func (h *ReconcileHandler) GetStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.scheduler.Status())
}
