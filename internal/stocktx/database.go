package stocktx

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/finsuite/brokerage-api/internal/types"
)

type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

// DefaultPortfolioID resolves the customer's oldest portfolio, which
// receives transactions unless they are moved later.
func (d *Database) DefaultPortfolioID(customerID string) (string, error) {
	var portfolio types.Portfolio
	err := d.db.Where("customer_id = ?", customerID).
		Order("created_at ASC").
		First(&portfolio).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", types.ErrPortfolioNotFound
		}
		return "", err
	}
	return portfolio.PortfolioID, nil
}

func (d *Database) PortfolioOwner(portfolioID string) (string, error) {
	var portfolio types.Portfolio
	err := d.db.Where("portfolio_id = ?", portfolioID).First(&portfolio).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", types.ErrPortfolioNotFound
		}
		return "", err
	}
	return portfolio.CustomerID, nil
}

func (d *Database) CreateTransaction(tx *types.StockTransaction) error {
	return d.db.Create(tx).Error
}

func (d *Database) SaveTransaction(tx *types.StockTransaction) error {
	return d.db.Save(tx).Error
}

func (d *Database) GetTransaction(transactionID string) (*types.StockTransaction, error) {
	var tx types.StockTransaction
	err := d.db.Where("transaction_id = ?", transactionID).First(&tx).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, types.ErrTransactionNotFound
		}
		return nil, err
	}
	return &tx, nil
}

func (d *Database) MoveTransactions(stockCode, fromPortfolioID, toPortfolioID string) (int64, error) {
	result := d.db.Model(&types.StockTransaction{}).
		Where("portfolio_id = ? AND stock_code = ?", fromPortfolioID, stockCode).
		Update("portfolio_id", toPortfolioID)
	return result.RowsAffected, result.Error
}

func (d *Database) GetSettleableTransactions(now time.Time) ([]types.StockTransaction, error) {
	var transactions []types.StockTransaction
	err := d.db.Where("status = ? AND settlement_at <= ?", types.StockTxCompleted, now).
		Find(&transactions).Error
	return transactions, err
}

func (d *Database) DistinctStockCodes() ([]string, error) {
	var codes []string
	err := d.db.Model(&types.StockTransaction{}).
		Distinct("stock_code").
		Pluck("stock_code", &codes).Error
	return codes, err
}

// UpdateCurrentPrice rewrites CurrentPrice for one stock code in bounded
// batches keyed on the primary key.
func (d *Database) UpdateCurrentPrice(stockCode string, price decimal.Decimal, batchSize int) error {
	var ids []uint
	err := d.db.Model(&types.StockTransaction{}).
		Where("stock_code = ?", stockCode).
		Pluck("id", &ids).Error
	if err != nil {
		return err
	}

	for start := 0; start < len(ids); start += batchSize {
		end := start + batchSize
		if end > len(ids) {
			end = len(ids)
		}
		err := d.db.Model(&types.StockTransaction{}).
			Where("id IN ?", ids[start:end]).
			Update("current_price", price).Error
		if err != nil {
			return err
		}
	}
	return nil
}

func (d *Database) ListByPortfolio(portfolioID string) ([]types.StockTransaction, error) {
	var transactions []types.StockTransaction
	err := d.db.Where("portfolio_id = ?", portfolioID).
		Order("transaction_at DESC").
		Find(&transactions).Error
	return transactions, err
}

func (d *Database) ListByOrder(orderID string) ([]types.StockTransaction, error) {
	var transactions []types.StockTransaction
	err := d.db.Where("order_id = ?", orderID).
		Order("transaction_at DESC").
		Find(&transactions).Error
	return transactions, err
}

func (d *Database) ListByDateRange(portfolioID string, from, to time.Time) ([]types.StockTransaction, error) {
	var transactions []types.StockTransaction
	err := d.db.Where("portfolio_id = ? AND transaction_at BETWEEN ? AND ?", portfolioID, from, to).
		Order("transaction_at DESC").
		Find(&transactions).Error
	return transactions, err
}

func (d *Database) ListBySide(portfolioID string, side types.OrderSide) ([]types.StockTransaction, error) {
	var transactions []types.StockTransaction
	err := d.db.Where("portfolio_id = ? AND side = ?", portfolioID, side).
		Order("transaction_at DESC").
		Find(&transactions).Error
	return transactions, err
}
