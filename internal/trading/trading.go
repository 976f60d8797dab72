// Package trading is the order processor: it validates incoming orders,
// fills or queues them, and runs the background sweeps that re-evaluate
// resting limit orders and cancel what is left open at the end of the
// session.
package trading

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/finsuite/brokerage-api/internal/customers"
	"github.com/finsuite/brokerage-api/internal/marketdata"
	"github.com/finsuite/brokerage-api/internal/position"
	"github.com/finsuite/brokerage-api/internal/stocktx"
	"github.com/finsuite/brokerage-api/internal/types"
	"github.com/finsuite/brokerage-api/internal/wallet"
)

// Service handles order creation, updates and the order query surface.
type Service struct {
	db           *Database
	wallets      *wallet.Service
	transactions *stocktx.Service
	positions    *position.Service
	customers    *customers.Service
	prices       marketdata.PriceSource
	window       *marketdata.Calendar
}

// SetOrderWindow restricts order submission to the calendar's collection
// window. Without one, orders are accepted around the clock.
func (s *Service) SetOrderWindow(calendar *marketdata.Calendar) {
	s.window = calendar
}

func NewService(gormDB *gorm.DB, wallets *wallet.Service, transactions *stocktx.Service, positions *position.Service, custSvc *customers.Service, prices marketdata.PriceSource) *Service {
	return &Service{
		db:           NewDatabase(gormDB),
		wallets:      wallets,
		transactions: transactions,
		positions:    positions,
		customers:    custSvc,
		prices:       prices,
	}
}

// CreateOrderRequest is the submission payload. Both categories require a
// price: for MARKET it is the execution price, for LIMIT the limit.
type CreateOrderRequest struct {
	CustomerID string              `json:"customer_id" binding:"required"`
	StockCode  string              `json:"stock_code" binding:"required"`
	Category   types.OrderCategory `json:"category" binding:"required"`
	Side       types.OrderSide     `json:"side"`
	Quantity   decimal.Decimal     `json:"quantity"`
	Price      decimal.Decimal     `json:"price"`
}

// CreateOrder validates and processes a new order. MARKET orders fill
// immediately at the supplied price. LIMIT orders fill at the limit price
// when the live market price satisfies the limit condition, otherwise they
// rest OPEN for the reconciliation sweep. A repeated idempotency key
// returns the previously created order.
func (s *Service) CreateOrder(req CreateOrderRequest, idempotencyKey string) (*types.Order, error) {
	if idempotencyKey != "" {
		record, err := s.db.GetIdempotencyRecord(idempotencyKey)
		if err == nil && record.ExpiresAt.After(time.Now()) {
			return s.db.GetOrder(record.ResourceID)
		}
	}

	if s.window != nil && !s.window.CanPlaceOrder() {
		return nil, fmt.Errorf("%w: outside the order collection window", types.ErrMarketClosed)
	}
	if _, err := s.customers.GetCustomer(req.CustomerID); err != nil {
		return nil, err
	}
	if !req.Category.Valid() {
		return nil, fmt.Errorf("%w: category %q", types.ErrInvalidOrder, req.Category)
	}
	if req.Price.Sign() <= 0 || req.Quantity.Sign() <= 0 {
		return nil, fmt.Errorf("%w: price and quantity must be positive", types.ErrInvalidOrder)
	}

	order := &types.Order{
		OrderID:     uuid.New().String(),
		CustomerID:  req.CustomerID,
		StockCode:   req.StockCode,
		Category:    req.Category,
		Side:        req.Side,
		Quantity:    req.Quantity,
		Price:       req.Price,
		TotalAmount: req.Price.Mul(req.Quantity),
		Status:      types.OrderOpen,
	}

	if !req.Side.Valid() {
		// Audit-first: the bad order is persisted as REJECTED with its
		// transaction record instead of being dropped.
		order.Status = types.OrderRejected
		if err := s.db.CreateOrderWithIdempotency(order, idempotencyKey); err != nil {
			return nil, err
		}
		s.writeAuditTransaction(order, req.Price)
		return order, nil
	}

	if req.Side == types.SideSell {
		held, err := s.positions.NetQuantity(req.CustomerID, req.StockCode)
		if err != nil {
			return nil, err
		}
		if held.LessThan(req.Quantity) {
			return nil, fmt.Errorf("%w: hold %s, selling %s %s",
				types.ErrInsufficientStock, held, req.Quantity, req.StockCode)
		}
	}

	switch req.Category {
	case types.CategoryMarket:
		s.fill(order, req.Price, types.OrderRejected)
	case types.CategoryLimit:
		if marketPrice, ok := s.prices.PriceOf(req.StockCode); ok && limitSatisfied(req.Side, marketPrice, req.Price) {
			// Execution happens at the limit price, not the market price.
			s.fill(order, req.Price, types.OrderRejected)
		}
	}

	if err := s.db.CreateOrderWithIdempotency(order, idempotencyKey); err != nil {
		return nil, err
	}
	if order.Status != types.OrderOpen {
		s.writeAuditTransaction(order, req.Price)
	}

	log.Info().
		Str("order_id", order.OrderID).
		Str("customer_id", order.CustomerID).
		Str("stock_code", order.StockCode).
		Str("status", string(order.Status)).
		Msg("order processed")
	return order, nil
}

// limitSatisfied reports whether the live market price allows a limit order
// to fill: BUY when the market trades at or below the limit, SELL at or
// above.
func limitSatisfied(side types.OrderSide, marketPrice, limitPrice decimal.Decimal) bool {
	if side == types.SideBuy {
		return marketPrice.LessThanOrEqual(limitPrice)
	}
	return marketPrice.GreaterThanOrEqual(limitPrice)
}

// fill runs the wallet ledger primitive for the order at executionPrice and
// sets the terminal status: FILLED on success, failStatus on a ledger
// error. Ledger errors are downgraded, never propagated; the order row is
// still written by the caller.
func (s *Service) fill(order *types.Order, executionPrice decimal.Decimal, failStatus types.OrderStatus) {
	amount := executionPrice.Mul(order.Quantity)
	rate, err := s.customers.CommissionRate(order.CustomerID)
	if err != nil {
		order.Status = failStatus
		return
	}
	commission := amount.Mul(rate)

	switch order.Side {
	case types.SideBuy:
		_, err = s.wallets.ProcessStockPurchase(order.CustomerID, amount, commission, decimal.Zero)
	case types.SideSell:
		_, err = s.wallets.ProcessStockSale(order.CustomerID, amount, commission, decimal.Zero)
	}
	if err != nil {
		log.Warn().Err(err).
			Str("order_id", order.OrderID).
			Msg("ledger rejected order fill")
		order.Status = failStatus
		return
	}

	order.TotalAmount = amount
	order.Status = types.OrderFilled
}

// writeAuditTransaction records the processed order in the stock
// transaction ledger. A failure here is logged; the order outcome stands.
func (s *Service) writeAuditTransaction(order *types.Order, executionPrice decimal.Decimal) {
	commission := decimal.Zero
	if order.Status == types.OrderFilled {
		if rate, err := s.customers.CommissionRate(order.CustomerID); err == nil {
			commission = order.TotalAmount.Mul(rate)
		}
	}
	if _, err := s.transactions.CreateFromOrder(order, executionPrice, commission, decimal.Zero); err != nil {
		log.Error().Err(err).
			Str("order_id", order.OrderID).
			Msg("failed to write stock transaction for order")
	}
}

// UpdateOrder honors exactly one transition, OPEN to CANCELED. Any other
// requested status is a no-op that returns the order unchanged.
func (s *Service) UpdateOrder(orderID string, newStatus types.OrderStatus) (*types.Order, error) {
	order, err := s.db.GetOrder(orderID)
	if err != nil {
		return nil, err
	}

	if newStatus == types.OrderCanceled && order.Status.CanTransitionTo(types.OrderCanceled) {
		order.Status = types.OrderCanceled
		if err := s.db.SaveOrder(order); err != nil {
			return nil, err
		}
		log.Info().Str("order_id", order.OrderID).Msg("order canceled")
	}
	return order, nil
}

func (s *Service) GetOrder(orderID string) (*types.Order, error) {
	return s.db.GetOrder(orderID)
}

func (s *Service) ListOrders() ([]types.Order, error) {
	return s.db.ListOrders()
}

func (s *Service) ListByCustomer(customerID string, newestFirst bool) ([]types.Order, error) {
	return s.db.ListByCustomer(customerID, newestFirst)
}

func (s *Service) TodayFilledOrders() ([]types.Order, error) {
	return s.db.FilledOrdersSince(startOfToday())
}

func (s *Service) LastFiveFilled() ([]types.Order, error) {
	return s.db.LastFilledOrders(5)
}

func (s *Service) TotalTradeVolume() (decimal.Decimal, error) {
	return s.db.FilledVolumeSince(time.Time{})
}

func (s *Service) TodayTradeVolume() (decimal.Decimal, error) {
	return s.db.FilledVolumeSince(startOfToday())
}

func (s *Service) TodayOrderCount() (int64, error) {
	return s.db.OrderCountSince(startOfToday())
}

// StockVolume is one row of the top-traded listing.
type StockVolume struct {
	StockCode string          `json:"stock_code"`
	Volume    decimal.Decimal `json:"volume"`
}

// TopStockCodes returns the ten stock codes with the highest cumulative
// filled volume.
func (s *Service) TopStockCodes() ([]StockVolume, error) {
	return s.db.TopStockCodesByVolume(10)
}

func startOfToday() time.Time {
	now := time.Now()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
}
