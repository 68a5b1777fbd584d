package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/oms-platform/reconciliation-service/internal/application"
	"github.com/oms-platform/reconciliation-service/internal/domain"
	"github.com/oms-platform/reconciliation-service/pkg/logging"
)

// StockHandler handles manual stock adjustment HTTP requests
type StockHandler struct {
	stock  *application.StockService
	logger *logging.Logger
}

// NewStockHandler creates a new stock handler
func NewStockHandler(stock *application.StockService, logger *logging.Logger) *StockHandler {
	return &StockHandler{
		stock:  stock,
		logger: logger,
	}
}

// RegisterRoutes registers the stock routes
func (h *StockHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/stock/decrement", h.DecrementStock)
	r.POST("/stock/increment", h.IncrementStock)
}

// StockItemRequest identifies one catalog variant and a quantity.
type StockItemRequest struct {
	Code     string `json:"code"`
	Name     string `json:"name"`
	Variant  string `json:"variant"`
	Quantity int    `json:"quantity"`
}

// StockBatchRequest is a batch of stock adjustments.
type StockBatchRequest struct {
	Items []StockItemRequest `json:"items" binding:"required,min=1"`
}

// StockItemResult reports the outcome for one item of the batch.
type StockItemResult struct {
	Code    string `json:"code,omitempty"`
	Name    string `json:"name,omitempty"`
	Variant string `json:"variant,omitempty"`
	Applied bool   `json:"applied"`
	Error   string `json:"error,omitempty"`
}

// DecrementStock handles POST /stock/decrement. Each item is guarded: a
// variant short on stock is reported and left untouched, and the remaining
// items still apply.
func (h *StockHandler) DecrementStock(c *gin.Context) {
	h.applyBatch(c, h.stock.DecrementGuarded)
}

// IncrementStock handles POST /stock/increment, reversing earlier decrements
// item by item.
func (h *StockHandler) IncrementStock(c *gin.Context) {
	h.applyBatch(c, h.stock.IncrementItem)
}

func (h *StockHandler) applyBatch(c *gin.Context, apply func(context.Context, domain.ExtractedProduct) error) {
	var req StockBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Invalid stock adjustment request", "error", err.Error())
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	results := make([]StockItemResult, 0, len(req.Items))
	failed := 0
	insufficient := false

	for _, item := range req.Items {
		extracted := domain.ExtractedProduct{
			Code:     item.Code,
			Name:     item.Name,
			Variant:  item.Variant,
			Quantity: item.Quantity,
		}
		if extracted.Variant == "" {
			extracted.Variant = domain.DefaultVariantName
		}
		if extracted.Quantity < 1 {
			extracted.Quantity = 1
		}

		result := StockItemResult{
			Code:    item.Code,
			Name:    item.Name,
			Variant: extracted.Variant,
		}

		if err := apply(c.Request.Context(), extracted); err != nil {
			result.Error = err.Error()
			failed++
			if errors.Is(err, domain.ErrInsufficientStock) {
				insufficient = true
			}
		} else {
			result.Applied = true
		}
		results = append(results, result)
	}

	status := http.StatusOK
	switch {
	case failed == 0:
	case insufficient:
		status = http.StatusConflict
	default:
		status = http.StatusUnprocessableEntity
	}

	c.JSON(status, gin.H{
		"results": results,
		"applied": len(req.Items) - failed,
		"failed":  failed,
	})
}
