package stocktx

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/finsuite/brokerage-api/internal/database"
	"github.com/finsuite/brokerage-api/internal/marketdata"
	"github.com/finsuite/brokerage-api/internal/portfolio"
	"github.com/finsuite/brokerage-api/internal/position"
	"github.com/finsuite/brokerage-api/internal/types"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

type fixture struct {
	db          *gorm.DB
	prices      *marketdata.Cache
	service     *Service
	customerID  string
	portfolioID string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := database.NewDatabase(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)

	customerID := uuid.New().String()
	portfolioID := uuid.New().String()
	require.NoError(t, db.Create(&types.Customer{
		CustomerID: customerID,
		FullName:   "Test Customer",
		Email:      "test@example.com",
	}).Error)
	require.NoError(t, db.Create(&types.Portfolio{
		PortfolioID: portfolioID,
		CustomerID:  customerID,
		Name:        "Primary",
	}).Error)

	prices := marketdata.NewCache()
	positions := position.NewService(db)
	valuations := portfolio.NewService(db, positions)

	return &fixture{
		db:          db,
		prices:      prices,
		service:     NewService(db, positions, prices, valuations),
		customerID:  customerID,
		portfolioID: portfolioID,
	}
}

func (f *fixture) order(side types.OrderSide, status types.OrderStatus, stockCode, quantity, price string) *types.Order {
	qty := dec(quantity)
	p := dec(price)
	return &types.Order{
		OrderID:     uuid.New().String(),
		CustomerID:  f.customerID,
		StockCode:   stockCode,
		Category:    types.CategoryMarket,
		Side:        side,
		Quantity:    qty,
		Price:       p,
		TotalAmount: p.Mul(qty),
		Status:      status,
	}
}

func (f *fixture) settle(t *testing.T, tx *types.StockTransaction) {
	t.Helper()
	require.NoError(t, f.db.Model(&types.StockTransaction{}).
		Where("transaction_id = ?", tx.TransactionID).
		Updates(map[string]interface{}{
			"status":        types.StockTxSettled,
			"settlement_at": time.Now().Add(-time.Hour),
		}).Error)
}

func TestCreateFromOrderFilled(t *testing.T) {
	f := newFixture(t)
	f.prices.Set("ARCLK", dec("105"))

	order := f.order(types.SideBuy, types.OrderFilled, "ARCLK", "10", "100")
	tx, err := f.service.CreateFromOrder(order, dec("100"), dec("1"), dec("0"))
	require.NoError(t, err)

	assert.Equal(t, types.StockTxCompleted, tx.Status)
	assert.Equal(t, f.portfolioID, tx.PortfolioID)
	assert.True(t, tx.TotalAmount.Equal(dec("1000")))
	assert.True(t, tx.CurrentPrice.Equal(dec("105")), "current price from market data")
	assert.True(t, tx.SettlementAt.After(tx.TransactionAt))
}

func TestCreateFromOrderNoQuoteFallsBackToExecutionPrice(t *testing.T) {
	f := newFixture(t)

	order := f.order(types.SideBuy, types.OrderFilled, "THYAO", "5", "20")
	tx, err := f.service.CreateFromOrder(order, dec("20"), dec("0.1"), dec("0"))
	require.NoError(t, err)
	assert.True(t, tx.CurrentPrice.Equal(dec("20")))
}

func TestCreateFromOrderRejected(t *testing.T) {
	f := newFixture(t)

	order := f.order(types.SideBuy, types.OrderRejected, "ARCLK", "10", "100")
	tx, err := f.service.CreateFromOrder(order, dec("100"), dec("0"), dec("0"))
	require.NoError(t, err)
	assert.Equal(t, types.StockTxFailed, tx.Status)

	var count int64
	require.NoError(t, f.db.Model(&types.StockTransaction{}).
		Where("order_id = ?", order.OrderID).Count(&count).Error)
	assert.EqualValues(t, 1, count, "rejected order still leaves an audit row")
}

func TestCreateFromOrderOpenOrder(t *testing.T) {
	f := newFixture(t)

	order := f.order(types.SideBuy, types.OrderOpen, "ARCLK", "10", "100")
	_, err := f.service.CreateFromOrder(order, dec("100"), dec("0"), dec("0"))
	assert.ErrorIs(t, err, types.ErrInvalidOrder)
}

func TestCreateFromOrderOversell(t *testing.T) {
	f := newFixture(t)

	buy := f.order(types.SideBuy, types.OrderFilled, "ARCLK", "10", "100")
	buyTx, err := f.service.CreateFromOrder(buy, dec("100"), dec("1"), dec("0"))
	require.NoError(t, err)
	f.settle(t, buyTx)

	sell := f.order(types.SideSell, types.OrderFilled, "ARCLK", "15", "110")
	_, err = f.service.CreateFromOrder(sell, dec("110"), dec("1"), dec("0"))
	assert.ErrorIs(t, err, types.ErrInsufficientStock)

	var count int64
	require.NoError(t, f.db.Model(&types.StockTransaction{}).
		Where("order_id = ?", sell.OrderID).Count(&count).Error)
	assert.Zero(t, count, "no transaction row for a blocked oversell")
}

func TestProcessSettlements(t *testing.T) {
	f := newFixture(t)
	f.prices.Set("ARCLK", dec("110"))

	order := f.order(types.SideBuy, types.OrderFilled, "ARCLK", "10", "100")
	tx, err := f.service.CreateFromOrder(order, dec("100"), dec("1"), dec("0"))
	require.NoError(t, err)

	t.Run("not due before settlement date", func(t *testing.T) {
		require.NoError(t, f.service.ProcessSettlements(time.Now()))
		got, err := f.service.GetTransaction(tx.TransactionID)
		require.NoError(t, err)
		assert.Equal(t, types.StockTxCompleted, got.Status)
	})

	t.Run("settles once due", func(t *testing.T) {
		require.NoError(t, f.service.ProcessSettlements(tx.SettlementAt.Add(time.Minute)))
		got, err := f.service.GetTransaction(tx.TransactionID)
		require.NoError(t, err)
		assert.Equal(t, types.StockTxSettled, got.Status)

		var p types.Portfolio
		require.NoError(t, f.db.Where("portfolio_id = ?", f.portfolioID).First(&p).Error)
		assert.True(t, p.TotalValue.Equal(dec("1100")), "valuation recomputed after settlement, got %s", p.TotalValue)
	})

	t.Run("second run is a no-op", func(t *testing.T) {
		require.NoError(t, f.service.ProcessSettlements(tx.SettlementAt.Add(time.Minute)))
		got, err := f.service.GetTransaction(tx.TransactionID)
		require.NoError(t, err)
		assert.Equal(t, types.StockTxSettled, got.Status)
	})
}

func TestMovePortfolio(t *testing.T) {
	f := newFixture(t)

	secondPortfolioID := uuid.New().String()
	require.NoError(t, f.db.Create(&types.Portfolio{
		PortfolioID: secondPortfolioID,
		CustomerID:  f.customerID,
		Name:        "Growth",
	}).Error)

	order := f.order(types.SideBuy, types.OrderFilled, "ARCLK", "10", "100")
	tx, err := f.service.CreateFromOrder(order, dec("100"), dec("1"), dec("0"))
	require.NoError(t, err)

	t.Run("foreign portfolio rejected", func(t *testing.T) {
		otherCustomerID := uuid.New().String()
		otherPortfolioID := uuid.New().String()
		require.NoError(t, f.db.Create(&types.Customer{
			CustomerID: otherCustomerID,
			FullName:   "Other Customer",
			Email:      "other@example.com",
		}).Error)
		require.NoError(t, f.db.Create(&types.Portfolio{
			PortfolioID: otherPortfolioID,
			CustomerID:  otherCustomerID,
			Name:        "Primary",
		}).Error)

		err := f.service.MovePortfolio(f.customerID, "ARCLK", f.portfolioID, otherPortfolioID)
		assert.ErrorIs(t, err, types.ErrUnauthorizedOperation)
	})

	t.Run("moves within same customer", func(t *testing.T) {
		require.NoError(t, f.service.MovePortfolio(f.customerID, "ARCLK", f.portfolioID, secondPortfolioID))

		got, err := f.service.GetTransaction(tx.TransactionID)
		require.NoError(t, err)
		assert.Equal(t, secondPortfolioID, got.PortfolioID)
	})
}

func TestRefreshPrices(t *testing.T) {
	f := newFixture(t)

	for i := 0; i < 3; i++ {
		order := f.order(types.SideBuy, types.OrderFilled, "ARCLK", "1", "100")
		_, err := f.service.CreateFromOrder(order, dec("100"), dec("0"), dec("0"))
		require.NoError(t, err)
	}
	noQuote := f.order(types.SideBuy, types.OrderFilled, "THYAO", "1", "50")
	_, err := f.service.CreateFromOrder(noQuote, dec("50"), dec("0"), dec("0"))
	require.NoError(t, err)

	f.prices.Set("ARCLK", dec("123.45"))
	require.NoError(t, f.service.RefreshPrices())

	var updated []types.StockTransaction
	require.NoError(t, f.db.Where("stock_code = ?", "ARCLK").Find(&updated).Error)
	require.Len(t, updated, 3)
	for _, tx := range updated {
		assert.True(t, tx.CurrentPrice.Equal(dec("123.45")))
	}

	got, err := f.service.ListByPortfolio(f.portfolioID)
	require.NoError(t, err)
	for _, tx := range got {
		if tx.StockCode == "THYAO" {
			assert.True(t, tx.CurrentPrice.Equal(dec("50")), "unquoted code untouched")
		}
	}
}
