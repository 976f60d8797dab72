package wallet

import (
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/finsuite/brokerage-api/internal/types"
	"github.com/finsuite/brokerage-api/pkg/response"
)

// GinHandlers contains HTTP handlers for wallet endpoints
type GinHandlers struct {
	service *Service
}

func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{service: service}
}

type amountRequest struct {
	Amount decimal.Decimal `json:"amount" binding:"required"`
}

func (h *GinHandlers) CreateWalletHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateWalletRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		wallet, err := h.service.CreateWallet(req)
		response.Handle(c, wallet, err)
	}
}

func (h *GinHandlers) GetWalletHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		wallet, err := h.service.GetWallet(c.Param("customer_id"))
		response.Handle(c, wallet, err)
	}
}

func (h *GinHandlers) DepositHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req amountRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		wallet, err := h.service.Deposit(c.Param("customer_id"), req.Amount)
		response.Handle(c, wallet, err)
	}
}

func (h *GinHandlers) WithdrawHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req amountRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		wallet, err := h.service.Withdraw(c.Param("customer_id"), req.Amount)
		response.Handle(c, wallet, err)
	}
}

func (h *GinHandlers) CreditDividendHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req amountRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		wallet, err := h.service.AddBalance(c.Param("customer_id"), req.Amount, types.TxDividend)
		response.Handle(c, wallet, err)
	}
}

func (h *GinHandlers) LockWalletHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		wallet, err := h.service.LockWallet(c.Param("customer_id"))
		response.Handle(c, wallet, err)
	}
}

func (h *GinHandlers) UnlockWalletHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		wallet, err := h.service.UnlockWallet(c.Param("customer_id"))
		response.Handle(c, wallet, err)
	}
}

func (h *GinHandlers) UpdateLimitsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req UpdateLimitsRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		wallet, err := h.service.UpdateLimits(c.Param("customer_id"), req)
		response.Handle(c, wallet, err)
	}
}

func (h *GinHandlers) ResetDailyLimitsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		wallet, err := h.service.ResetDailyLimits(c.Param("customer_id"))
		response.Handle(c, wallet, err)
	}
}

func (h *GinHandlers) ResetMonthlyLimitsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		wallet, err := h.service.ResetMonthlyLimits(c.Param("customer_id"))
		response.Handle(c, wallet, err)
	}
}

func (h *GinHandlers) ListEntriesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		entries, err := h.service.ListEntries(c.Param("customer_id"))
		response.Handle(c, entries, err)
	}
}
