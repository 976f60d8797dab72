package portfolio

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
	"github.com/finsuite/brokerage-api/internal/position"
	"github.com/finsuite/brokerage-api/internal/types"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.NewDatabase(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	return db
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

type fixture struct {
	db          *gorm.DB
	customerID  string
	portfolioID string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := newTestDB(t)
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

	return &fixture{db: db, customerID: customerID, portfolioID: portfolioID}
}

func (f *fixture) addSettledBuy(t *testing.T, stockCode, quantity, price, commission, currentPrice string) {
	t.Helper()
	qty := dec(quantity)
	p := dec(price)
	require.NoError(t, f.db.Create(&types.StockTransaction{
		TransactionID:  uuid.New().String(),
		PortfolioID:    f.portfolioID,
		StockCode:      stockCode,
		Side:           types.SideBuy,
		Status:         types.StockTxSettled,
		Quantity:       qty,
		Price:          p,
		ExecutionPrice: p,
		CurrentPrice:   dec(currentPrice),
		TotalAmount:    p.Mul(qty),
		Commission:     dec(commission),
		TransactionAt:  time.Now(),
		SettlementAt:   time.Now(),
	}).Error)
}

func (f *fixture) loadPortfolio(t *testing.T) types.Portfolio {
	t.Helper()
	var p types.Portfolio
	require.NoError(t, f.db.Where("portfolio_id = ?", f.portfolioID).First(&p).Error)
	return p
}

func TestUpdateValuesUnknownPortfolio(t *testing.T) {
	f := newFixture(t)
	svc := NewService(f.db, position.NewService(f.db))

	err := svc.UpdateValues(uuid.New().String())
	assert.ErrorIs(t, err, types.ErrPortfolioNotFound)
}

func TestUpdateValuesEmptyPortfolio(t *testing.T) {
	f := newFixture(t)
	svc := NewService(f.db, position.NewService(f.db))

	require.NoError(t, svc.UpdateValues(f.portfolioID))

	p := f.loadPortfolio(t)
	assert.True(t, p.TotalValue.IsZero())
	assert.True(t, p.TotalCost.IsZero())
	assert.True(t, p.TotalProfitLoss.IsZero())
	assert.True(t, p.ProfitLossPercentage.IsZero())
}

func TestUpdateValues(t *testing.T) {
	f := newFixture(t)
	svc := NewService(f.db, position.NewService(f.db))

	// 10 shares at 100, current price 110, commission 1.
	f.addSettledBuy(t, "ARCLK", "10", "100", "1", "110")
	// 5 shares at 50, current price 40, commission 0.25.
	f.addSettledBuy(t, "THYAO", "5", "50", "0.25", "40")

	require.NoError(t, svc.UpdateValues(f.portfolioID))

	p := f.loadPortfolio(t)
	// Value: 10*110 + 5*40 = 1300. Cost: 1000+1 + 250+0.25 = 1251.25.
	assert.True(t, p.TotalValue.Equal(dec("1300")), "total value %s", p.TotalValue)
	assert.True(t, p.TotalCost.Equal(dec("1251.25")), "total cost %s", p.TotalCost)
	assert.True(t, p.TotalProfitLoss.Equal(dec("48.75")), "profit/loss %s", p.TotalProfitLoss)
	// 48.75 / 1251.25 rounded to 4 places, times 100.
	assert.True(t, p.ProfitLossPercentage.Equal(dec("3.9")), "percentage %s", p.ProfitLossPercentage)
}

func TestUpdateValuesClampsPercentage(t *testing.T) {
	f := newFixture(t)
	svc := NewService(f.db, position.NewService(f.db))

	// Tiny cost basis with a large current price pushes the raw percentage
	// far past the cap.
	f.addSettledBuy(t, "PENNY", "1000", "0.01", "0", "500")

	require.NoError(t, svc.UpdateValues(f.portfolioID))

	p := f.loadPortfolio(t)
	assert.True(t, p.ProfitLossPercentage.Equal(dec("999.99")), "percentage %s", p.ProfitLossPercentage)
}
