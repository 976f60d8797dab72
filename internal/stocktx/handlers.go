package stocktx

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/finsuite/brokerage-api/internal/types"
	"github.com/finsuite/brokerage-api/pkg/response"
)

// GinHandlers contains HTTP handlers for stock transaction endpoints
type GinHandlers struct {
	service *Service
}

func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{service: service}
}

func (h *GinHandlers) GetTransactionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		tx, err := h.service.GetTransaction(c.Param("transaction_id"))
		response.Handle(c, tx, err)
	}
}

func (h *GinHandlers) ListByPortfolioHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		portfolioID := c.Param("portfolio_id")

		if side := c.Query("side"); side != "" {
			transactions, err := h.service.ListBySide(portfolioID, types.OrderSide(side))
			response.Handle(c, transactions, err)
			return
		}

		if from, to := c.Query("from"), c.Query("to"); from != "" && to != "" {
			fromAt, err := time.Parse(time.RFC3339, from)
			if err != nil {
				response.BadRequest(c, "invalid from timestamp")
				return
			}
			toAt, err := time.Parse(time.RFC3339, to)
			if err != nil {
				response.BadRequest(c, "invalid to timestamp")
				return
			}
			transactions, err := h.service.ListByDateRange(portfolioID, fromAt, toAt)
			response.Handle(c, transactions, err)
			return
		}

		transactions, err := h.service.ListByPortfolio(portfolioID)
		response.Handle(c, transactions, err)
	}
}

func (h *GinHandlers) ListByOrderHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		transactions, err := h.service.ListByOrder(c.Param("order_id"))
		response.Handle(c, transactions, err)
	}
}

func (h *GinHandlers) PositionsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		holdings, err := h.service.Positions(c.Param("portfolio_id"))
		response.Handle(c, holdings, err)
	}
}

type moveRequest struct {
	CustomerID      string `json:"customer_id" binding:"required"`
	StockCode       string `json:"stock_code" binding:"required"`
	FromPortfolioID string `json:"from_portfolio_id" binding:"required"`
	ToPortfolioID   string `json:"to_portfolio_id" binding:"required"`
}

func (h *GinHandlers) MovePortfolioHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req moveRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		err := h.service.MovePortfolio(req.CustomerID, req.StockCode, req.FromPortfolioID, req.ToPortfolioID)
		response.Handle(c, gin.H{"moved": err == nil}, err)
	}
}
