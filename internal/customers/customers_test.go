package customers

import (
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/finsuite/brokerage-api/internal/database"
	"github.com/finsuite/brokerage-api/internal/types"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.NewDatabase(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	return db
}

func TestCreateCustomerWithPrimaryPortfolio(t *testing.T) {
	svc := NewService(newTestDB(t))

	customer, err := svc.CreateCustomer("Test Customer", "test@example.com")
	require.NoError(t, err)

	portfolios, err := svc.ListPortfolios(customer.CustomerID)
	require.NoError(t, err)
	require.Len(t, portfolios, 1)
	assert.Equal(t, "Primary", portfolios[0].Name)
}

func TestGetCustomerNotFound(t *testing.T) {
	svc := NewService(newTestDB(t))

	_, err := svc.GetCustomer(uuid.New().String())
	assert.ErrorIs(t, err, types.ErrCustomerNotFound)
}

func TestCommissionRate(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db)

	customer, err := svc.CreateCustomer("Test Customer", "test@example.com")
	require.NoError(t, err)

	t.Run("house default", func(t *testing.T) {
		rate, err := svc.CommissionRate(customer.CustomerID)
		require.NoError(t, err)
		assert.True(t, rate.Equal(DefaultCommissionRate))
	})

	t.Run("negotiated override", func(t *testing.T) {
		override := decimal.RequireFromString("0.0005")
		require.NoError(t, db.Model(&types.Customer{}).
			Where("customer_id = ?", customer.CustomerID).
			Update("commission_rate", override).Error)

		rate, err := svc.CommissionRate(customer.CustomerID)
		require.NoError(t, err)
		assert.True(t, rate.Equal(override))
	})
}

func TestCreatePortfolio(t *testing.T) {
	svc := NewService(newTestDB(t))

	customer, err := svc.CreateCustomer("Test Customer", "test@example.com")
	require.NoError(t, err)

	_, err = svc.CreatePortfolio(customer.CustomerID, "Growth")
	require.NoError(t, err)

	portfolios, err := svc.ListPortfolios(customer.CustomerID)
	require.NoError(t, err)
	assert.Len(t, portfolios, 2)
}
