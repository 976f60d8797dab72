package wallet

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/finsuite/brokerage-api/internal/types"
)

type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

func (d *Database) CustomerExists(customerID string) error {
	var count int64
	if err := d.db.Model(&types.Customer{}).Where("customer_id = ?", customerID).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return types.ErrCustomerNotFound
	}
	return nil
}

func (d *Database) CreateWallet(wallet *types.Wallet) error {
	return d.db.Create(wallet).Error
}

func (d *Database) GetWalletByCustomerID(customerID string) (*types.Wallet, error) {
	var wallet types.Wallet
	if err := d.db.Where("customer_id = ?", customerID).First(&wallet).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, types.ErrWalletNotFound
		}
		return nil, err
	}
	return &wallet, nil
}

func (d *Database) GetWalletByID(walletID string) (*types.Wallet, error) {
	var wallet types.Wallet
	if err := d.db.Where("wallet_id = ?", walletID).First(&wallet).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, types.ErrWalletNotFound
		}
		return nil, err
	}
	return &wallet, nil
}

func (d *Database) SaveWallet(wallet *types.Wallet) error {
	return d.db.Save(wallet).Error
}

// SaveWalletWithEntry persists the mutated wallet and appends its ledger
// entry atomically.
func (d *Database) SaveWalletWithEntry(wallet *types.Wallet, entry *types.WalletTransaction) error {
	return d.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(wallet).Error; err != nil {
			return err
		}
		return tx.Create(entry).Error
	})
}

// SaveWalletWithUpdatedEntry persists the settled wallet together with the
// entry's status transition.
func (d *Database) SaveWalletWithUpdatedEntry(wallet *types.Wallet, entry *types.WalletTransaction) error {
	return d.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(wallet).Error; err != nil {
			return err
		}
		return tx.Save(entry).Error
	})
}

func (d *Database) GetEntry(transactionID string) (*types.WalletTransaction, error) {
	var entry types.WalletTransaction
	if err := d.db.Where("transaction_id = ?", transactionID).First(&entry).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, types.ErrTransactionNotFound
		}
		return nil, err
	}
	return &entry, nil
}

func (d *Database) SaveEntry(entry *types.WalletTransaction) error {
	return d.db.Save(entry).Error
}

// GetSettleableEntries returns COMPLETED stock purchase/sale entries whose
// settlement date has elapsed. Already-SETTLED entries are excluded by the
// status filter, which is what makes the sweep idempotent.
func (d *Database) GetSettleableEntries(now time.Time) ([]types.WalletTransaction, error) {
	var entries []types.WalletTransaction
	err := d.db.
		Where("type IN ?", []types.TransactionType{types.TxStockPurchase, types.TxStockSale}).
		Where("status = ?", types.TxCompleted).
		Where("settlement_at IS NOT NULL AND settlement_at <= ?", now).
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (d *Database) ListEntries(walletID string) ([]types.WalletTransaction, error) {
	var entries []types.WalletTransaction
	if err := d.db.Where("wallet_id = ?", walletID).Order("created_at DESC").Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}
