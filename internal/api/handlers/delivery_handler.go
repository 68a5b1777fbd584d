package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/oms-platform/reconciliation-service/internal/application"
	"github.com/oms-platform/reconciliation-service/internal/domain"
	"github.com/oms-platform/reconciliation-service/pkg/logging"
)

// DeliveryHandler handles delivery record HTTP requests
type DeliveryHandler struct {
	service    *application.ReconcileService
	deliveries domain.DeliveryRepository
	logger     *logging.Logger
}

// NewDeliveryHandler creates a new delivery handler
func NewDeliveryHandler(service *application.ReconcileService, deliveries domain.DeliveryRepository, logger *logging.Logger) *DeliveryHandler {
	return &DeliveryHandler{
		service:    service,
		deliveries: deliveries,
		logger:     logger,
	}
}

// RegisterRoutes registers the delivery routes
func (h *DeliveryHandler) RegisterRoutes(r *gin.RouterGroup) {
	deliveries := r.Group("/deliveries")
	{
		deliveries.GET("", h.ListDeliveries)
		deliveries.GET("/:rowId", h.GetDelivery)
		deliveries.POST("/:rowId/deliver", h.MarkDelivered)
	}
}

// ListDeliveries handles GET /deliveries
func (h *DeliveryHandler) ListDeliveries(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	records, err := h.deliveries.List(c.Request.Context(), limit, offset)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list deliveries")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"deliveries": records,
		"total":      len(records),
		"limit":      limit,
		"offset":     offset,
	})
}

// GetDelivery handles GET /deliveries/:rowId
func (h *DeliveryHandler) GetDelivery(c *gin.Context) {
	rowID := c.Param("rowId")

	record, err := h.deliveries.FindByRowID(c.Request.Context(), rowID)
	if err != nil {
		if errors.Is(err, domain.ErrDeliveryNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		h.logger.WithError(err).Error("Failed to get delivery", "row_id", rowID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, record)
}

// MarkDelivered handles POST /deliveries/:rowId/deliver
func (h *DeliveryHandler) MarkDelivered(c *gin.Context) {
	rowID := c.Param("rowId")

	if err := h.service.MarkDelivered(c.Request.Context(), rowID); err != nil {
		if errors.Is(err, domain.ErrDeliveryNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		h.logger.WithError(err).Error("Failed to mark delivery", "row_id", rowID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	h.logger.Info("Order marked delivered", "row_id", rowID)
	c.JSON(http.StatusOK, gin.H{"message": "Order marked delivered"})
}
