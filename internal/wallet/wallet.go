// Package wallet owns the cash side of the back office: the customer wallet,
// its available/blocked split, the ledger of balance-affecting entries, and
// the wallet half of the T+2 settlement sweep.
package wallet

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/finsuite/brokerage-api/internal/types"
	"github.com/finsuite/brokerage-api/pkg/busdate"
)

type Service struct {
	db    *Database
	locks *keyedMutex
}

func NewService(gormDB *gorm.DB) *Service {
	return &Service{
		db:    NewDatabase(gormDB),
		locks: newKeyedMutex(),
	}
}

// CreateWalletRequest carries the initial wallet configuration.
type CreateWalletRequest struct {
	CustomerID               string          `json:"customer_id" binding:"required"`
	Currency                 string          `json:"currency"`
	DailyLimit               decimal.Decimal `json:"daily_limit"`
	MonthlyLimit             decimal.Decimal `json:"monthly_limit"`
	MaxTransactionAmount     decimal.Decimal `json:"max_transaction_amount"`
	MinTransactionAmount     decimal.Decimal `json:"min_transaction_amount"`
	MaxDailyTransactionCount int             `json:"max_daily_transaction_count"`
}

// CreateWallet provisions the single wallet a customer holds.
func (s *Service) CreateWallet(req CreateWalletRequest) (*types.Wallet, error) {
	if err := s.db.CustomerExists(req.CustomerID); err != nil {
		return nil, err
	}
	if _, err := s.db.GetWalletByCustomerID(req.CustomerID); err == nil {
		return nil, types.ErrWalletExists
	}

	currency := req.Currency
	if currency == "" {
		currency = "TRY"
	}

	wallet := &types.Wallet{
		WalletID:                 uuid.New().String(),
		CustomerID:               req.CustomerID,
		Currency:                 currency,
		DailyLimit:               req.DailyLimit,
		MonthlyLimit:             req.MonthlyLimit,
		MaxTransactionAmount:     req.MaxTransactionAmount,
		MinTransactionAmount:     req.MinTransactionAmount,
		MaxDailyTransactionCount: req.MaxDailyTransactionCount,
		LastResetDate:            time.Now(),
		Status:                   types.WalletActive,
	}

	if err := s.db.CreateWallet(wallet); err != nil {
		return nil, err
	}
	return wallet, nil
}

// GetWallet returns a customer's wallet.
func (s *Service) GetWallet(customerID string) (*types.Wallet, error) {
	return s.db.GetWalletByCustomerID(customerID)
}

// Deposit credits cash into the wallet.
func (s *Service) Deposit(customerID string, amount decimal.Decimal) (*types.Wallet, error) {
	return s.AddBalance(customerID, amount, types.TxDeposit)
}

// Withdraw debits spendable cash from the wallet.
func (s *Service) Withdraw(customerID string, amount decimal.Decimal) (*types.Wallet, error) {
	return s.SubtractBalance(customerID, amount, types.TxWithdrawal)
}

// AddBalance credits amount to both total and available balance and appends
// a COMPLETED ledger entry of the given type. Dividends are stamped with a
// T+1 settlement date for reporting; the cash is spendable immediately.
func (s *Service) AddBalance(customerID string, amount decimal.Decimal, txType types.TransactionType) (*types.Wallet, error) {
	if amount.Sign() <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", types.ErrInvalidArgument)
	}

	unlock := s.locks.Lock(customerID)
	defer unlock()

	wallet, err := s.db.GetWalletByCustomerID(customerID)
	if err != nil {
		return nil, err
	}
	if err := validateWalletUsable(wallet); err != nil {
		return nil, err
	}

	wallet.Balance = wallet.Balance.Add(amount)
	wallet.AvailableBalance = wallet.AvailableBalance.Add(amount)

	entry := newEntry(wallet.WalletID, amount, txType, "EXTERNAL", "WALLET")
	if txType == types.TxDividend {
		settle := busdate.SettlementTimeAfter(time.Now(), 1)
		entry.SettlementAt = &settle
	}

	if err := s.db.SaveWalletWithEntry(wallet, entry); err != nil {
		return nil, err
	}
	return wallet, nil
}

// SubtractBalance debits amount from both total and available balance,
// enforcing sufficient available funds and the wallet's usage limits, and
// appends a COMPLETED ledger entry.
func (s *Service) SubtractBalance(customerID string, amount decimal.Decimal, txType types.TransactionType) (*types.Wallet, error) {
	if amount.Sign() <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", types.ErrInvalidArgument)
	}

	unlock := s.locks.Lock(customerID)
	defer unlock()

	wallet, err := s.db.GetWalletByCustomerID(customerID)
	if err != nil {
		return nil, err
	}
	if err := validateWalletUsable(wallet); err != nil {
		return nil, err
	}
	if amount.GreaterThan(wallet.AvailableBalance) {
		return nil, types.ErrInsufficientBalance
	}
	if err := validateLimits(wallet, amount); err != nil {
		return nil, err
	}

	wallet.Balance = wallet.Balance.Sub(amount)
	wallet.AvailableBalance = wallet.AvailableBalance.Sub(amount)
	trackUsage(wallet, amount)

	entry := newEntry(wallet.WalletID, amount, txType, "WALLET", "EXTERNAL")

	if err := s.db.SaveWalletWithEntry(wallet, entry); err != nil {
		return nil, err
	}
	return wallet, nil
}

// ProcessStockPurchase reserves the full cost of a buy fill: the cash moves
// from available to blocked and is debited for real only when the purchase
// entry settles at T+2.
func (s *Service) ProcessStockPurchase(customerID string, amount, commission, tax decimal.Decimal) (*types.Wallet, error) {
	cost := amount.Add(commission).Add(tax)
	if cost.Sign() <= 0 {
		return nil, fmt.Errorf("%w: purchase cost must be positive", types.ErrInvalidArgument)
	}

	unlock := s.locks.Lock(customerID)
	defer unlock()

	wallet, err := s.db.GetWalletByCustomerID(customerID)
	if err != nil {
		return nil, err
	}
	if err := validateWalletUsable(wallet); err != nil {
		return nil, err
	}
	if cost.GreaterThan(wallet.AvailableBalance) {
		return nil, types.ErrInsufficientBalance
	}
	if err := validateLimits(wallet, cost); err != nil {
		return nil, err
	}

	wallet.AvailableBalance = wallet.AvailableBalance.Sub(cost)
	wallet.BlockedBalance = wallet.BlockedBalance.Add(cost)
	trackUsage(wallet, cost)

	entry := newEntry(wallet.WalletID, cost, types.TxStockPurchase, "WALLET", "EXTERNAL")
	settle := busdate.SettlementTime(time.Now())
	entry.SettlementAt = &settle

	if err := s.db.SaveWalletWithEntry(wallet, entry); err != nil {
		return nil, err
	}
	return wallet, nil
}

// ProcessStockSale credits the net proceeds of a sell fill into the blocked
// balance; the cash becomes spendable when the sale entry settles at T+2.
func (s *Service) ProcessStockSale(customerID string, amount, commission, tax decimal.Decimal) (*types.Wallet, error) {
	proceeds := amount.Sub(commission).Sub(tax)
	if proceeds.Sign() <= 0 {
		return nil, fmt.Errorf("%w: sale proceeds must be positive", types.ErrInvalidArgument)
	}

	unlock := s.locks.Lock(customerID)
	defer unlock()

	wallet, err := s.db.GetWalletByCustomerID(customerID)
	if err != nil {
		return nil, err
	}
	if err := validateWalletUsable(wallet); err != nil {
		return nil, err
	}

	wallet.Balance = wallet.Balance.Add(proceeds)
	wallet.BlockedBalance = wallet.BlockedBalance.Add(proceeds)

	entry := newEntry(wallet.WalletID, proceeds, types.TxStockSale, "EXTERNAL", "WALLET")
	settle := busdate.SettlementTime(time.Now())
	entry.SettlementAt = &settle

	if err := s.db.SaveWalletWithEntry(wallet, entry); err != nil {
		return nil, err
	}
	return wallet, nil
}

// ProcessSettlements runs the wallet side of the T+2 settlement sweep:
// every COMPLETED STOCK_PURCHASE/STOCK_SALE entry whose settlement date has
// elapsed is finalized. Each entry is an independent unit of work; a failure
// on one entry is logged and does not abort the sweep.
func (s *Service) ProcessSettlements(now time.Time) error {
	logger := log.With().Str("component", "wallet_settlement").Logger()

	entries, err := s.db.GetSettleableEntries(now)
	if err != nil {
		return fmt.Errorf("failed to fetch settleable entries: %w", err)
	}

	logger.Info().Int("entry_count", len(entries)).Msg("processing wallet settlements")

	for i := range entries {
		if err := s.settleEntry(&entries[i]); err != nil {
			logger.Error().
				Err(err).
				Str("transaction_id", entries[i].TransactionID).
				Msg("failed to settle ledger entry")
			continue
		}
	}

	return nil
}

func (s *Service) settleEntry(entry *types.WalletTransaction) error {
	wallet, err := s.db.GetWalletByID(entry.WalletID)
	if err != nil {
		return err
	}

	unlock := s.locks.Lock(wallet.CustomerID)
	defer unlock()

	// Re-read under the lock; a concurrent sweep may have settled it.
	current, err := s.db.GetEntry(entry.TransactionID)
	if err != nil {
		return err
	}
	if !current.Status.CanTransitionTo(types.TxSettled) {
		return nil
	}
	wallet, err = s.db.GetWalletByID(entry.WalletID)
	if err != nil {
		return err
	}

	switch current.Type {
	case types.TxStockPurchase:
		// The reservation becomes a real debit.
		wallet.Balance = wallet.Balance.Sub(current.Amount)
		wallet.BlockedBalance = wallet.BlockedBalance.Sub(current.Amount)
	case types.TxStockSale:
		// The credited proceeds become spendable.
		wallet.AvailableBalance = wallet.AvailableBalance.Add(current.Amount)
		wallet.BlockedBalance = wallet.BlockedBalance.Sub(current.Amount)
	default:
		return nil
	}

	current.Status = types.TxSettled
	return s.db.SaveWalletWithUpdatedEntry(wallet, current)
}

// CancelEntry cancels a ledger entry that has not yet been applied or
// settled. Settled entries are final.
func (s *Service) CancelEntry(transactionID string) error {
	entry, err := s.db.GetEntry(transactionID)
	if err != nil {
		return err
	}
	if entry.Status != types.TxPending {
		return fmt.Errorf("%w: %s -> %s", types.ErrInvalidTransition, entry.Status, types.TxCancelled)
	}
	entry.Status = types.TxCancelled
	return s.db.SaveEntry(entry)
}

// ListEntries returns a wallet's ledger, newest first.
func (s *Service) ListEntries(customerID string) ([]types.WalletTransaction, error) {
	wallet, err := s.db.GetWalletByCustomerID(customerID)
	if err != nil {
		return nil, err
	}
	return s.db.ListEntries(wallet.WalletID)
}

// UpdateLimitsRequest carries partial limit updates; nil fields are left
// unchanged.
type UpdateLimitsRequest struct {
	DailyLimit               *decimal.Decimal    `json:"daily_limit"`
	MonthlyLimit             *decimal.Decimal    `json:"monthly_limit"`
	MaxTransactionAmount     *decimal.Decimal    `json:"max_transaction_amount"`
	MinTransactionAmount     *decimal.Decimal    `json:"min_transaction_amount"`
	MaxDailyTransactionCount *int                `json:"max_daily_transaction_count"`
	Locked                   *bool               `json:"locked"`
	Status                   *types.WalletStatus `json:"status"`
}

// UpdateLimits applies limit/locking administration to a wallet.
func (s *Service) UpdateLimits(customerID string, req UpdateLimitsRequest) (*types.Wallet, error) {
	unlock := s.locks.Lock(customerID)
	defer unlock()

	wallet, err := s.db.GetWalletByCustomerID(customerID)
	if err != nil {
		return nil, err
	}

	if req.DailyLimit != nil {
		wallet.DailyLimit = *req.DailyLimit
	}
	if req.MonthlyLimit != nil {
		wallet.MonthlyLimit = *req.MonthlyLimit
	}
	if req.MaxTransactionAmount != nil {
		wallet.MaxTransactionAmount = *req.MaxTransactionAmount
	}
	if req.MinTransactionAmount != nil {
		wallet.MinTransactionAmount = *req.MinTransactionAmount
	}
	if req.MaxDailyTransactionCount != nil {
		wallet.MaxDailyTransactionCount = *req.MaxDailyTransactionCount
	}
	if req.Locked != nil {
		wallet.Locked = *req.Locked
	}
	if req.Status != nil {
		wallet.Status = *req.Status
	}

	if err := s.db.SaveWallet(wallet); err != nil {
		return nil, err
	}
	return wallet, nil
}

// LockWallet blocks all balance-affecting operations on the wallet.
func (s *Service) LockWallet(customerID string) (*types.Wallet, error) {
	locked := true
	return s.UpdateLimits(customerID, UpdateLimitsRequest{Locked: &locked})
}

// UnlockWallet re-enables balance-affecting operations.
func (s *Service) UnlockWallet(customerID string) (*types.Wallet, error) {
	locked := false
	return s.UpdateLimits(customerID, UpdateLimitsRequest{Locked: &locked})
}

// ResetDailyLimits zeroes the daily usage counters and stamps the reset
// date.
func (s *Service) ResetDailyLimits(customerID string) (*types.Wallet, error) {
	unlock := s.locks.Lock(customerID)
	defer unlock()

	wallet, err := s.db.GetWalletByCustomerID(customerID)
	if err != nil {
		return nil, err
	}

	wallet.DailyTransactionCount = 0
	wallet.DailyUsedAmount = decimal.Zero
	wallet.LastResetDate = time.Now()

	if err := s.db.SaveWallet(wallet); err != nil {
		return nil, err
	}
	return wallet, nil
}

// ResetMonthlyLimits zeroes the monthly usage counter and stamps the reset
// date.
func (s *Service) ResetMonthlyLimits(customerID string) (*types.Wallet, error) {
	unlock := s.locks.Lock(customerID)
	defer unlock()

	wallet, err := s.db.GetWalletByCustomerID(customerID)
	if err != nil {
		return nil, err
	}

	wallet.MonthlyUsedAmount = decimal.Zero
	wallet.LastResetDate = time.Now()

	if err := s.db.SaveWallet(wallet); err != nil {
		return nil, err
	}
	return wallet, nil
}

// CanPerform reports whether a debit of amount would pass every wallet
// check, without mutating anything.
func (s *Service) CanPerform(customerID string, amount decimal.Decimal) bool {
	wallet, err := s.db.GetWalletByCustomerID(customerID)
	if err != nil {
		return false
	}
	if validateWalletUsable(wallet) != nil {
		return false
	}
	if amount.GreaterThan(wallet.AvailableBalance) {
		return false
	}
	return validateLimits(wallet, amount) == nil
}

func newEntry(walletID string, amount decimal.Decimal, txType types.TransactionType, source, destination string) *types.WalletTransaction {
	return &types.WalletTransaction{
		TransactionID: uuid.New().String(),
		WalletID:      walletID,
		Amount:        amount,
		Type:          txType,
		Status:        types.TxCompleted,
		Source:        source,
		Destination:   destination,
	}
}

func validateWalletUsable(wallet *types.Wallet) error {
	if wallet.Status != types.WalletActive {
		return types.ErrWalletNotActive
	}
	if wallet.Locked {
		return types.ErrWalletLocked
	}
	return nil
}

func validateLimits(wallet *types.Wallet, amount decimal.Decimal) error {
	if wallet.MaxTransactionAmount.Sign() > 0 && amount.GreaterThan(wallet.MaxTransactionAmount) {
		return fmt.Errorf("%w: amount above per-transaction maximum", types.ErrLimitExceeded)
	}
	if wallet.MinTransactionAmount.Sign() > 0 && amount.LessThan(wallet.MinTransactionAmount) {
		return fmt.Errorf("%w: amount below per-transaction minimum", types.ErrLimitExceeded)
	}
	if wallet.DailyLimit.Sign() > 0 && wallet.DailyUsedAmount.Add(amount).GreaterThan(wallet.DailyLimit) {
		return fmt.Errorf("%w: daily limit", types.ErrLimitExceeded)
	}
	if wallet.MonthlyLimit.Sign() > 0 && wallet.MonthlyUsedAmount.Add(amount).GreaterThan(wallet.MonthlyLimit) {
		return fmt.Errorf("%w: monthly limit", types.ErrLimitExceeded)
	}
	if wallet.MaxDailyTransactionCount > 0 && wallet.DailyTransactionCount >= wallet.MaxDailyTransactionCount {
		return fmt.Errorf("%w: daily transaction count", types.ErrLimitExceeded)
	}
	return nil
}

func trackUsage(wallet *types.Wallet, amount decimal.Decimal) {
	wallet.DailyTransactionCount++
	wallet.DailyUsedAmount = wallet.DailyUsedAmount.Add(amount)
	wallet.MonthlyUsedAmount = wallet.MonthlyUsedAmount.Add(amount)
}
