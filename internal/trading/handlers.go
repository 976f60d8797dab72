package trading

import (
	"github.com/gin-gonic/gin"

	"github.com/finsuite/brokerage-api/internal/types"
	"github.com/finsuite/brokerage-api/pkg/response"
)

// GinHandlers contains HTTP handlers for order endpoints
type GinHandlers struct {
	service *Service
}

func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{service: service}
}

// CreateOrderHandler handles POST requests to create new orders.
// An Idempotency-Key header makes retries safe.
func (h *GinHandlers) CreateOrderHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateOrderRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		order, err := h.service.CreateOrder(req, c.GetHeader("Idempotency-Key"))
		response.Handle(c, order, err)
	}
}

func (h *GinHandlers) GetOrderHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		order, err := h.service.GetOrder(c.Param("order_id"))
		response.Handle(c, order, err)
	}
}

type updateOrderRequest struct {
	Status types.OrderStatus `json:"status" binding:"required"`
}

func (h *GinHandlers) UpdateOrderHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req updateOrderRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		order, err := h.service.UpdateOrder(c.Param("order_id"), req.Status)
		response.Handle(c, order, err)
	}
}

func (h *GinHandlers) ListOrdersHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if customerID := c.Query("customer_id"); customerID != "" {
			orders, err := h.service.ListWithBlockedBalance(customerID)
			response.Handle(c, orders, err)
			return
		}

		orders, err := h.service.ListOrders()
		response.Handle(c, orders, err)
	}
}

func (h *GinHandlers) TodayFilledHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		orders, err := h.service.TodayFilledOrders()
		response.Handle(c, orders, err)
	}
}

func (h *GinHandlers) StatsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		totalVolume, err := h.service.TotalTradeVolume()
		if err != nil {
			response.Handle(c, nil, err)
			return
		}
		todayVolume, err := h.service.TodayTradeVolume()
		if err != nil {
			response.Handle(c, nil, err)
			return
		}
		todayCount, err := h.service.TodayOrderCount()
		if err != nil {
			response.Handle(c, nil, err)
			return
		}
		lastFilled, err := h.service.LastFiveFilled()
		if err != nil {
			response.Handle(c, nil, err)
			return
		}
		topCodes, err := h.service.TopStockCodes()
		if err != nil {
			response.Handle(c, nil, err)
			return
		}

		response.Success(c, gin.H{
			"total_volume": totalVolume,
			"today_volume": todayVolume,
			"today_orders": todayCount,
			"last_filled":  lastFilled,
			"top_stocks":   topCodes,
		})
	}
}

func (h *GinHandlers) OwnedQuantityHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		owned, err := h.service.OwnedQuantity(c.Param("customer_id"), c.Param("stock_code"))
		response.Handle(c, gin.H{"stock_code": c.Param("stock_code"), "owned_quantity": owned}, err)
	}
}

func (h *GinHandlers) PortfolioByOrdersHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		positions, err := h.service.PortfolioByOrders(c.Param("customer_id"))
		response.Handle(c, positions, err)
	}
}
