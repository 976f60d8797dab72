package position

import (
	"errors"

	"gorm.io/gorm"

	"github.com/finsuite/brokerage-api/internal/types"
)

type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

var positionStatuses = []types.StockTransactionStatus{
	types.StockTxSettled,
	types.StockTxPartiallySold,
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

// GetSettledTransactions loads every position-counting transaction for a
// (customer, stock code) pair across all of the customer's portfolios.
func (d *Database) GetSettledTransactions(customerID, stockCode string) ([]types.StockTransaction, error) {
	var transactions []types.StockTransaction
	err := d.db.
		Joins("JOIN portfolios ON portfolios.portfolio_id = stock_transactions.portfolio_id").
		Where("portfolios.customer_id = ?", customerID).
		Where("stock_transactions.stock_code = ?", stockCode).
		Where("stock_transactions.status IN ?", positionStatuses).
		Find(&transactions).Error
	if err != nil {
		return nil, err
	}
	return transactions, nil
}

func (d *Database) GetSettledBuysByPortfolio(portfolioID string) ([]types.StockTransaction, error) {
	var transactions []types.StockTransaction
	err := d.db.
		Where("portfolio_id = ?", portfolioID).
		Where("side = ?", types.SideBuy).
		Where("status IN ?", positionStatuses).
		Order("created_at ASC").
		Find(&transactions).Error
	if err != nil {
		return nil, err
	}
	return transactions, nil
}

func (d *Database) DistinctStockCodes(customerID string) ([]string, error) {
	var codes []string
	err := d.db.Model(&types.StockTransaction{}).
		Joins("JOIN portfolios ON portfolios.portfolio_id = stock_transactions.portfolio_id").
		Where("portfolios.customer_id = ?", customerID).
		Where("stock_transactions.side = ?", types.SideBuy).
		Where("stock_transactions.status IN ?", positionStatuses).
		Distinct("stock_transactions.stock_code").
		Pluck("stock_transactions.stock_code", &codes).Error
	if err != nil {
		return nil, err
	}
	return codes, nil
}

func (d *Database) PortfolioOwner(portfolioID string) (string, error) {
	var portfolio types.Portfolio
	if err := d.db.Where("portfolio_id = ?", portfolioID).First(&portfolio).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", types.ErrPortfolioNotFound
		}
		return "", err
	}
	return portfolio.CustomerID, nil
}
