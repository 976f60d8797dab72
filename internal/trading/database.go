package trading

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/finsuite/brokerage-api/internal/types"
)

// idempotencyTTL bounds how long a key maps back to its original order.
const idempotencyTTL = 24 * time.Hour

type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

func (d *Database) GetOrder(orderID string) (*types.Order, error) {
	var order types.Order
	err := d.db.Where("order_id = ?", orderID).First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, types.ErrOrderNotFound
		}
		return nil, err
	}
	return &order, nil
}

func (d *Database) SaveOrder(order *types.Order) error {
	return d.db.Save(order).Error
}

// CreateOrderWithIdempotency writes the order and, when a key is supplied,
// its idempotency record in one transaction.
func (d *Database) CreateOrderWithIdempotency(order *types.Order, idempotencyKey string) error {
	return d.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(order).Error; err != nil {
			return err
		}
		if idempotencyKey == "" {
			return nil
		}
		return tx.Create(&types.IdempotencyRecord{
			IdempotencyKey: idempotencyKey,
			ResourceID:     order.OrderID,
			ResourceType:   "order",
			ExpiresAt:      time.Now().Add(idempotencyTTL),
		}).Error
	})
}

func (d *Database) GetIdempotencyRecord(idempotencyKey string) (*types.IdempotencyRecord, error) {
	var record types.IdempotencyRecord
	err := d.db.Where("idempotency_key = ?", idempotencyKey).First(&record).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (d *Database) ListOrders() ([]types.Order, error) {
	var orders []types.Order
	err := d.db.Find(&orders).Error
	return orders, err
}

func (d *Database) ListByCustomer(customerID string, newestFirst bool) ([]types.Order, error) {
	query := d.db.Where("customer_id = ?", customerID)
	if newestFirst {
		query = query.Order("created_at DESC")
	}
	var orders []types.Order
	err := query.Find(&orders).Error
	return orders, err
}

func (d *Database) ListOpenOrders() ([]types.Order, error) {
	var orders []types.Order
	err := d.db.Where("status = ?", types.OrderOpen).Find(&orders).Error
	return orders, err
}

func (d *Database) OpenOrdersSince(since time.Time) ([]types.Order, error) {
	var orders []types.Order
	err := d.db.Where("status = ? AND created_at >= ?", types.OrderOpen, since).
		Find(&orders).Error
	return orders, err
}

func (d *Database) FilledOrdersSince(since time.Time) ([]types.Order, error) {
	var orders []types.Order
	err := d.db.Where("status = ? AND created_at >= ?", types.OrderFilled, since).
		Order("created_at DESC").
		Find(&orders).Error
	return orders, err
}

func (d *Database) FilledOrdersByCustomer(customerID string) ([]types.Order, error) {
	var orders []types.Order
	err := d.db.Where("customer_id = ? AND status = ?", customerID, types.OrderFilled).
		Find(&orders).Error
	return orders, err
}

func (d *Database) FilledOrdersByCustomerAndStock(customerID, stockCode string) ([]types.Order, error) {
	var orders []types.Order
	err := d.db.Where("customer_id = ? AND stock_code = ? AND status = ?", customerID, stockCode, types.OrderFilled).
		Find(&orders).Error
	return orders, err
}

func (d *Database) LastFilledOrders(limit int) ([]types.Order, error) {
	var orders []types.Order
	err := d.db.Where("status = ?", types.OrderFilled).
		Order("created_at DESC").
		Limit(limit).
		Find(&orders).Error
	return orders, err
}

// FilledVolumeSince sums total amounts over filled orders created at or
// after the cutoff. A zero cutoff covers all time.
func (d *Database) FilledVolumeSince(since time.Time) (decimal.Decimal, error) {
	var result struct {
		Volume decimal.Decimal
	}
	err := d.db.Model(&types.Order{}).
		Select("COALESCE(SUM(total_amount), 0) AS volume").
		Where("status = ? AND created_at >= ?", types.OrderFilled, since).
		Scan(&result).Error
	return result.Volume, err
}

func (d *Database) OrderCountSince(since time.Time) (int64, error) {
	var count int64
	err := d.db.Model(&types.Order{}).
		Where("created_at >= ?", since).
		Count(&count).Error
	return count, err
}

func (d *Database) TopStockCodesByVolume(limit int) ([]StockVolume, error) {
	var rows []StockVolume
	err := d.db.Model(&types.Order{}).
		Select("stock_code, SUM(total_amount) AS volume").
		Where("status = ?", types.OrderFilled).
		Group("stock_code").
		Order("volume DESC").
		Limit(limit).
		Scan(&rows).Error
	return rows, err
}
