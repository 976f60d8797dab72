package wallet

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
	"github.com/finsuite/brokerage-api/internal/types"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.NewDatabase(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	return db
}

func newTestCustomer(t *testing.T, db *gorm.DB) string {
	t.Helper()
	customerID := uuid.New().String()
	require.NoError(t, db.Create(&types.Customer{
		CustomerID: customerID,
		FullName:   "Test Customer",
		Email:      "test@example.com",
	}).Error)
	return customerID
}

func newFundedWallet(t *testing.T, svc *Service, db *gorm.DB, balance decimal.Decimal) string {
	t.Helper()
	customerID := newTestCustomer(t, db)
	_, err := svc.CreateWallet(CreateWalletRequest{CustomerID: customerID})
	require.NoError(t, err)
	if balance.Sign() > 0 {
		_, err = svc.Deposit(customerID, balance)
		require.NoError(t, err)
	}
	return customerID
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func assertInvariant(t *testing.T, w *types.Wallet) {
	t.Helper()
	assert.True(t, w.InvariantHolds(),
		"balance %s != available %s + blocked %s", w.Balance, w.AvailableBalance, w.BlockedBalance)
}

func TestCreateWallet(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db)

	t.Run("unknown customer", func(t *testing.T) {
		_, err := svc.CreateWallet(CreateWalletRequest{CustomerID: uuid.New().String()})
		assert.ErrorIs(t, err, types.ErrCustomerNotFound)
	})

	t.Run("one wallet per customer", func(t *testing.T) {
		customerID := newTestCustomer(t, db)

		wallet, err := svc.CreateWallet(CreateWalletRequest{CustomerID: customerID})
		require.NoError(t, err)
		assert.Equal(t, types.WalletActive, wallet.Status)
		assert.True(t, wallet.Balance.IsZero())

		_, err = svc.CreateWallet(CreateWalletRequest{CustomerID: customerID})
		assert.ErrorIs(t, err, types.ErrWalletExists)
	})
}

func TestDepositWithdraw(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db)
	customerID := newFundedWallet(t, svc, db, dec("1000"))

	t.Run("deposit credits available", func(t *testing.T) {
		wallet, err := svc.Deposit(customerID, dec("250"))
		require.NoError(t, err)
		assert.True(t, wallet.Balance.Equal(dec("1250")))
		assert.True(t, wallet.AvailableBalance.Equal(dec("1250")))
		assertInvariant(t, wallet)
	})

	t.Run("withdraw debits available and tracks usage", func(t *testing.T) {
		wallet, err := svc.Withdraw(customerID, dec("200"))
		require.NoError(t, err)
		assert.True(t, wallet.Balance.Equal(dec("1050")))
		assert.Equal(t, 1, wallet.DailyTransactionCount)
		assert.True(t, wallet.DailyUsedAmount.Equal(dec("200")))
		assert.True(t, wallet.MonthlyUsedAmount.Equal(dec("200")))
		assertInvariant(t, wallet)
	})

	t.Run("withdraw beyond available", func(t *testing.T) {
		_, err := svc.Withdraw(customerID, dec("99999"))
		assert.ErrorIs(t, err, types.ErrInsufficientBalance)
	})

	t.Run("non-positive amount", func(t *testing.T) {
		_, err := svc.Deposit(customerID, decimal.Zero)
		assert.ErrorIs(t, err, types.ErrInvalidArgument)
	})
}

func TestLockedWallet(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db)
	customerID := newFundedWallet(t, svc, db, dec("1000"))

	_, err := svc.LockWallet(customerID)
	require.NoError(t, err)

	_, err = svc.Deposit(customerID, dec("10"))
	assert.ErrorIs(t, err, types.ErrWalletLocked)
	_, err = svc.ProcessStockPurchase(customerID, dec("100"), dec("1"), decimal.Zero)
	assert.ErrorIs(t, err, types.ErrWalletLocked)

	_, err = svc.UnlockWallet(customerID)
	require.NoError(t, err)
	_, err = svc.Deposit(customerID, dec("10"))
	assert.NoError(t, err)
}

func TestTransactionLimits(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db)
	customerID := newFundedWallet(t, svc, db, dec("10000"))

	daily := dec("500")
	maxCount := 2
	_, err := svc.UpdateLimits(customerID, UpdateLimitsRequest{
		DailyLimit:               &daily,
		MaxDailyTransactionCount: &maxCount,
	})
	require.NoError(t, err)

	t.Run("daily amount limit", func(t *testing.T) {
		_, err := svc.Withdraw(customerID, dec("600"))
		assert.ErrorIs(t, err, types.ErrLimitExceeded)
	})

	t.Run("count limit and reset", func(t *testing.T) {
		_, err := svc.Withdraw(customerID, dec("100"))
		require.NoError(t, err)
		_, err = svc.Withdraw(customerID, dec("100"))
		require.NoError(t, err)
		_, err = svc.Withdraw(customerID, dec("100"))
		assert.ErrorIs(t, err, types.ErrLimitExceeded)

		wallet, err := svc.ResetDailyLimits(customerID)
		require.NoError(t, err)
		assert.Equal(t, 0, wallet.DailyTransactionCount)
		assert.True(t, wallet.DailyUsedAmount.IsZero())

		_, err = svc.Withdraw(customerID, dec("100"))
		assert.NoError(t, err)
	})
}

func TestStockPurchaseThenSettlement(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db)
	customerID := newFundedWallet(t, svc, db, dec("1000"))

	wallet, err := svc.ProcessStockPurchase(customerID, dec("500"), dec("120"), decimal.Zero)
	require.NoError(t, err)
	assert.True(t, wallet.AvailableBalance.Equal(dec("380")))
	assert.True(t, wallet.BlockedBalance.Equal(dec("620")))
	assert.True(t, wallet.Balance.Equal(dec("1000")))
	assertInvariant(t, wallet)

	// The sweep only touches entries past their settlement point.
	require.NoError(t, svc.ProcessSettlements(time.Now()))
	wallet, err = svc.GetWallet(customerID)
	require.NoError(t, err)
	assert.True(t, wallet.BlockedBalance.Equal(dec("620")), "entry settled before its settlement date")

	require.NoError(t, svc.ProcessSettlements(time.Now().AddDate(0, 0, 7)))
	wallet, err = svc.GetWallet(customerID)
	require.NoError(t, err)
	assert.True(t, wallet.Balance.Equal(dec("380")))
	assert.True(t, wallet.AvailableBalance.Equal(dec("380")))
	assert.True(t, wallet.BlockedBalance.IsZero())
	assertInvariant(t, wallet)

	entries, err := svc.ListEntries(customerID)
	require.NoError(t, err)
	var purchase *types.WalletTransaction
	for i := range entries {
		if entries[i].Type == types.TxStockPurchase {
			purchase = &entries[i]
		}
	}
	require.NotNil(t, purchase)
	assert.Equal(t, types.TxSettled, purchase.Status)
}

func TestStockSaleThenSettlement(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db)
	customerID := newFundedWallet(t, svc, db, dec("100"))

	wallet, err := svc.ProcessStockSale(customerID, dec("600"), dec("10"), decimal.Zero)
	require.NoError(t, err)
	assert.True(t, wallet.Balance.Equal(dec("690")))
	assert.True(t, wallet.AvailableBalance.Equal(dec("100")))
	assert.True(t, wallet.BlockedBalance.Equal(dec("590")))
	assertInvariant(t, wallet)

	require.NoError(t, svc.ProcessSettlements(time.Now().AddDate(0, 0, 7)))
	wallet, err = svc.GetWallet(customerID)
	require.NoError(t, err)
	assert.True(t, wallet.Balance.Equal(dec("690")))
	assert.True(t, wallet.AvailableBalance.Equal(dec("690")))
	assert.True(t, wallet.BlockedBalance.IsZero())
	assertInvariant(t, wallet)
}

func TestMixedSettlement(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db)
	customerID := newFundedWallet(t, svc, db, dec("1000"))

	// Purchase of 510 total cost, then a sale netting 590.
	_, err := svc.ProcessStockPurchase(customerID, dec("500"), dec("10"), decimal.Zero)
	require.NoError(t, err)
	wallet, err := svc.ProcessStockSale(customerID, dec("600"), dec("10"), decimal.Zero)
	require.NoError(t, err)

	assert.True(t, wallet.Balance.Equal(dec("1590")))
	assert.True(t, wallet.AvailableBalance.Equal(dec("490")))
	assert.True(t, wallet.BlockedBalance.Equal(dec("1100")))
	assertInvariant(t, wallet)

	require.NoError(t, svc.ProcessSettlements(time.Now().AddDate(0, 0, 7)))
	wallet, err = svc.GetWallet(customerID)
	require.NoError(t, err)
	assert.True(t, wallet.Balance.Equal(dec("1080")))
	assert.True(t, wallet.AvailableBalance.Equal(dec("1080")))
	assert.True(t, wallet.BlockedBalance.IsZero())
	assertInvariant(t, wallet)
}

func TestSettlementIdempotence(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db)
	customerID := newFundedWallet(t, svc, db, dec("1000"))

	_, err := svc.ProcessStockPurchase(customerID, dec("500"), dec("120"), decimal.Zero)
	require.NoError(t, err)

	future := time.Now().AddDate(0, 0, 7)
	require.NoError(t, svc.ProcessSettlements(future))
	first, err := svc.GetWallet(customerID)
	require.NoError(t, err)

	// Re-running the sweep must be a no-op: settled entries are excluded by
	// the status filter.
	require.NoError(t, svc.ProcessSettlements(future))
	second, err := svc.GetWallet(customerID)
	require.NoError(t, err)

	assert.True(t, first.Balance.Equal(second.Balance))
	assert.True(t, first.AvailableBalance.Equal(second.AvailableBalance))
	assert.True(t, first.BlockedBalance.Equal(second.BlockedBalance))
	assertInvariant(t, second)
}

func TestPurchaseInsufficientAvailable(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db)
	customerID := newFundedWallet(t, svc, db, dec("100"))

	_, err := svc.ProcessStockPurchase(customerID, dec("500"), dec("5"), decimal.Zero)
	assert.ErrorIs(t, err, types.ErrInsufficientBalance)

	wallet, err := svc.GetWallet(customerID)
	require.NoError(t, err)
	assert.True(t, wallet.AvailableBalance.Equal(dec("100")))
	assert.True(t, wallet.BlockedBalance.IsZero())
	assertInvariant(t, wallet)
}

func TestDividendEntryStampedTPlusOne(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db)
	customerID := newFundedWallet(t, svc, db, decimal.Zero)

	wallet, err := svc.AddBalance(customerID, dec("42"), types.TxDividend)
	require.NoError(t, err)
	assert.True(t, wallet.AvailableBalance.Equal(dec("42")))
	assertInvariant(t, wallet)

	entries, err := svc.ListEntries(customerID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, types.TxDividend, entries[0].Type)
	require.NotNil(t, entries[0].SettlementAt)
	assert.True(t, entries[0].SettlementAt.After(time.Now()))

	// Dividend cash is spendable immediately; the sweep must not touch it.
	require.NoError(t, svc.ProcessSettlements(time.Now().AddDate(0, 0, 7)))
	after, err := svc.GetWallet(customerID)
	require.NoError(t, err)
	assert.True(t, after.AvailableBalance.Equal(dec("42")))
}

func TestCanPerform(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db)
	customerID := newFundedWallet(t, svc, db, dec("100"))

	assert.True(t, svc.CanPerform(customerID, dec("50")))
	assert.False(t, svc.CanPerform(customerID, dec("500")))
	assert.False(t, svc.CanPerform(uuid.New().String(), dec("1")))
}
