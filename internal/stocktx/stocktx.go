// Package stocktx owns the stock transaction lifecycle: the audit row
// written for every processed order, the portfolio move operation, the
// stock-side T+2 settlement sweep, and the current-price refresh job.
package stocktx

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/finsuite/brokerage-api/internal/marketdata"
	"github.com/finsuite/brokerage-api/internal/portfolio"
	"github.com/finsuite/brokerage-api/internal/position"
	"github.com/finsuite/brokerage-api/internal/types"
	"github.com/finsuite/brokerage-api/pkg/busdate"
)

type Service struct {
	db        *Database
	positions *position.Service
	prices    marketdata.PriceSource
	notifier  portfolio.Notifier
}

func NewService(gormDB *gorm.DB, positions *position.Service, prices marketdata.PriceSource, notifier portfolio.Notifier) *Service {
	return &Service{
		db:        NewDatabase(gormDB),
		positions: positions,
		prices:    prices,
		notifier:  notifier,
	}
}

// CreateFromOrder writes the audit record for a processed order. Filled
// orders produce a COMPLETED transaction carrying the T+2 settlement date;
// rejected and failed orders produce a FAILED one so the attempt is still
// on record. Open orders have no transaction until a later fill.
func (s *Service) CreateFromOrder(order *types.Order, executionPrice, commission, tax decimal.Decimal) (*types.StockTransaction, error) {
	portfolioID, err := s.db.DefaultPortfolioID(order.CustomerID)
	if err != nil {
		return nil, err
	}

	var status types.StockTransactionStatus
	switch order.Status {
	case types.OrderFilled:
		status = types.StockTxCompleted
	case types.OrderRejected, types.OrderFailed:
		status = types.StockTxFailed
	default:
		return nil, fmt.Errorf("%w: order %s is %s", types.ErrInvalidOrder, order.OrderID, order.Status)
	}

	if status == types.StockTxCompleted && order.Side == types.SideSell {
		net, err := s.positions.NetQuantity(order.CustomerID, order.StockCode)
		if err != nil {
			return nil, err
		}
		if net.LessThan(order.Quantity) {
			return nil, fmt.Errorf("%w: hold %s, selling %s %s",
				types.ErrInsufficientStock, net, order.Quantity, order.StockCode)
		}
	}

	currentPrice := executionPrice
	if price, ok := s.prices.PriceOf(order.StockCode); ok {
		currentPrice = price
	}

	now := time.Now()
	tx := &types.StockTransaction{
		TransactionID:  uuid.New().String(),
		PortfolioID:    portfolioID,
		OrderID:        order.OrderID,
		StockCode:      order.StockCode,
		Side:           order.Side,
		Status:         status,
		Quantity:       order.Quantity,
		Price:          order.Price,
		ExecutionPrice: executionPrice,
		CurrentPrice:   currentPrice,
		TotalAmount:    executionPrice.Mul(order.Quantity),
		Commission:     commission,
		Tax:            tax,
		TransactionAt:  now,
		SettlementAt:   busdate.SettlementTime(now),
	}

	if err := s.db.CreateTransaction(tx); err != nil {
		return nil, err
	}

	if status == types.StockTxCompleted {
		s.refreshValuation(portfolioID)
	}
	return tx, nil
}

// MovePortfolio reassigns every transaction in a stock code from one of the
// customer's portfolios to another and recomputes both valuations. Both
// portfolios must belong to the customer.
func (s *Service) MovePortfolio(customerID, stockCode, fromPortfolioID, toPortfolioID string) error {
	for _, portfolioID := range []string{fromPortfolioID, toPortfolioID} {
		owner, err := s.db.PortfolioOwner(portfolioID)
		if err != nil {
			return err
		}
		if owner != customerID {
			return fmt.Errorf("%w: portfolio %s does not belong to customer %s",
				types.ErrUnauthorizedOperation, portfolioID, customerID)
		}
	}

	moved, err := s.db.MoveTransactions(stockCode, fromPortfolioID, toPortfolioID)
	if err != nil {
		return err
	}

	log.Info().
		Str("stock_code", stockCode).
		Str("from", fromPortfolioID).
		Str("to", toPortfolioID).
		Int64("moved", moved).
		Msg("transactions moved between portfolios")

	s.refreshValuation(fromPortfolioID)
	s.refreshValuation(toPortfolioID)
	return nil
}

// ProcessSettlements advances every COMPLETED transaction whose settlement
// date has elapsed to SETTLED. Rows that fail are logged and skipped so one
// bad transaction cannot stall the sweep. Affected portfolios get their
// valuation recomputed once each.
func (s *Service) ProcessSettlements(now time.Time) error {
	logger := log.With().Str("component", "stock_settlement").Logger()

	transactions, err := s.db.GetSettleableTransactions(now)
	if err != nil {
		return err
	}
	if len(transactions) == 0 {
		return nil
	}

	logger.Info().Int("count", len(transactions)).Msg("settling stock transactions")

	touched := make(map[string]struct{})
	for i := range transactions {
		tx := &transactions[i]
		if !tx.Status.CanTransitionTo(types.StockTxSettled) {
			continue
		}
		tx.Status = types.StockTxSettled
		if err := s.db.SaveTransaction(tx); err != nil {
			logger.Error().Err(err).
				Str("transaction_id", tx.TransactionID).
				Msg("failed to settle stock transaction")
			continue
		}
		touched[tx.PortfolioID] = struct{}{}
	}

	for portfolioID := range touched {
		s.refreshValuation(portfolioID)
	}
	return nil
}

// refreshBatchSize bounds one current-price UPDATE so the refresh job never
// holds a long write lock.
const refreshBatchSize = 100

// RefreshPrices copies the latest market price into CurrentPrice on every
// transaction, one stock code at a time. Codes without a quote are skipped;
// a failed code is logged and does not stop the rest.
func (s *Service) RefreshPrices() error {
	logger := log.With().Str("component", "price_refresh").Logger()

	codes, err := s.db.DistinctStockCodes()
	if err != nil {
		return err
	}

	for _, code := range codes {
		price, ok := s.prices.PriceOf(code)
		if !ok {
			continue
		}
		if err := s.db.UpdateCurrentPrice(code, price, refreshBatchSize); err != nil {
			logger.Error().Err(err).Str("stock_code", code).Msg("failed to refresh price")
			continue
		}
	}
	return nil
}

func (s *Service) GetTransaction(transactionID string) (*types.StockTransaction, error) {
	return s.db.GetTransaction(transactionID)
}

func (s *Service) ListByPortfolio(portfolioID string) ([]types.StockTransaction, error) {
	return s.db.ListByPortfolio(portfolioID)
}

func (s *Service) ListByOrder(orderID string) ([]types.StockTransaction, error) {
	return s.db.ListByOrder(orderID)
}

func (s *Service) ListByDateRange(portfolioID string, from, to time.Time) ([]types.StockTransaction, error) {
	return s.db.ListByDateRange(portfolioID, from, to)
}

func (s *Service) ListBySide(portfolioID string, side types.OrderSide) ([]types.StockTransaction, error) {
	if !side.Valid() {
		return nil, fmt.Errorf("%w: side %q", types.ErrInvalidArgument, side)
	}
	return s.db.ListBySide(portfolioID, side)
}

// Positions returns the merged settled holdings for one portfolio.
func (s *Service) Positions(portfolioID string) ([]position.Holding, error) {
	return s.positions.SettledBuyPositions(portfolioID)
}

// Valuation errors are logged rather than returned: a recompute failure
// must not undo a fill or a settlement that already happened.
func (s *Service) refreshValuation(portfolioID string) {
	if err := s.notifier.PortfolioChanged(portfolioID); err != nil {
		log.Error().Err(err).Str("portfolio_id", portfolioID).Msg("failed to refresh portfolio valuation")
	}
}
