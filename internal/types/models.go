package types

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Customer is the reference entity owned by customer administration.
// Only the fields the back-office core reads are modeled here.
type Customer struct {
	gorm.Model     `json:"-"`
	CustomerID     string           `gorm:"uniqueIndex" json:"customer_id"`
	FullName       string           `json:"full_name"`
	Email          string           `json:"email"`
	CommissionRate *decimal.Decimal `gorm:"type:decimal(9,4)" json:"commission_rate,omitempty"`
}

// Portfolio belongs to exactly one customer and owns stock transactions.
// The total fields are derived and recomputed after every fill; they are
// never mutated independently.
type Portfolio struct {
	gorm.Model           `json:"-"`
	PortfolioID          string          `gorm:"uniqueIndex" json:"portfolio_id"`
	CustomerID           string          `gorm:"index" json:"customer_id"`
	Name                 string          `json:"name"`
	TotalValue           decimal.Decimal `gorm:"type:decimal(19,4)" json:"total_value"`
	TotalCost            decimal.Decimal `gorm:"type:decimal(19,4)" json:"total_cost"`
	TotalProfitLoss      decimal.Decimal `gorm:"type:decimal(19,4)" json:"total_profit_loss"`
	ProfitLossPercentage decimal.Decimal `gorm:"type:decimal(7,2)" json:"profit_loss_percentage"`
}

// Wallet holds a customer's cash. Invariant at every observable point:
// Balance == AvailableBalance + BlockedBalance.
type Wallet struct {
	gorm.Model               `json:"-"`
	WalletID                 string          `gorm:"uniqueIndex" json:"wallet_id"`
	CustomerID               string          `gorm:"uniqueIndex" json:"customer_id"`
	Currency                 string          `json:"currency"`
	Balance                  decimal.Decimal `gorm:"type:decimal(19,4)" json:"balance"`
	AvailableBalance         decimal.Decimal `gorm:"type:decimal(19,4)" json:"available_balance"`
	BlockedBalance           decimal.Decimal `gorm:"type:decimal(19,4)" json:"blocked_balance"`
	DailyLimit               decimal.Decimal `gorm:"type:decimal(19,4)" json:"daily_limit"`
	MonthlyLimit             decimal.Decimal `gorm:"type:decimal(19,4)" json:"monthly_limit"`
	DailyUsedAmount          decimal.Decimal `gorm:"type:decimal(19,4)" json:"daily_used_amount"`
	MonthlyUsedAmount        decimal.Decimal `gorm:"type:decimal(19,4)" json:"monthly_used_amount"`
	MaxTransactionAmount     decimal.Decimal `gorm:"type:decimal(19,4)" json:"max_transaction_amount"`
	MinTransactionAmount     decimal.Decimal `gorm:"type:decimal(19,4)" json:"min_transaction_amount"`
	DailyTransactionCount    int             `json:"daily_transaction_count"`
	MaxDailyTransactionCount int             `json:"max_daily_transaction_count"`
	LastResetDate            time.Time       `json:"last_reset_date"`
	Locked                   bool            `json:"locked"`
	Status                   WalletStatus    `json:"status"`
}

// InvariantHolds reports whether the available/blocked split still sums to
// the total balance.
func (w *Wallet) InvariantHolds() bool {
	return w.Balance.Equal(w.AvailableBalance.Add(w.BlockedBalance))
}

// WalletTransaction is a ledger entry appended alongside every
// balance-affecting operation. STOCK_PURCHASE and STOCK_SALE entries carry a
// T+2 settlement date and transition COMPLETED -> SETTLED via the sweep.
type WalletTransaction struct {
	gorm.Model    `json:"-"`
	TransactionID string            `gorm:"uniqueIndex" json:"transaction_id"`
	WalletID      string            `gorm:"index" json:"wallet_id"`
	Amount        decimal.Decimal   `gorm:"type:decimal(19,4)" json:"amount"`
	Type          TransactionType   `gorm:"index" json:"type"`
	Status        TransactionStatus `gorm:"index" json:"status"`
	Source        string            `json:"source"`
	Destination   string            `json:"destination"`
	SettlementAt  *time.Time        `json:"settlement_at,omitempty"`
}

// Order is a customer's instruction to trade. Quantity and Price are
// validated non-null and positive before any row is written.
type Order struct {
	gorm.Model  `json:"-"`
	OrderID     string          `gorm:"uniqueIndex" json:"order_id"`
	CustomerID  string          `gorm:"index" json:"customer_id"`
	StockCode   string          `gorm:"index" json:"stock_code"`
	Category    OrderCategory   `json:"category"`
	Side        OrderSide       `json:"side"`
	Quantity    decimal.Decimal `gorm:"type:decimal(19,4)" json:"quantity"`
	Price       decimal.Decimal `gorm:"type:decimal(19,4)" json:"price"`
	TotalAmount decimal.Decimal `gorm:"type:decimal(19,4)" json:"total_amount"`
	Status      OrderStatus     `gorm:"index" json:"status"`
}

// StockTransaction is the append-only audit record written once per
// processed order, successful or not. CurrentPrice is the only field
// mutated outside the creation/settlement path.
type StockTransaction struct {
	gorm.Model     `json:"-"`
	TransactionID  string                 `gorm:"uniqueIndex" json:"transaction_id"`
	PortfolioID    string                 `gorm:"index" json:"portfolio_id"`
	OrderID        string                 `gorm:"index" json:"order_id"`
	StockCode      string                 `gorm:"index" json:"stock_code"`
	Side           OrderSide              `json:"side"`
	Status         StockTransactionStatus `gorm:"index" json:"status"`
	Quantity       decimal.Decimal        `gorm:"type:decimal(19,4)" json:"quantity"`
	Price          decimal.Decimal        `gorm:"type:decimal(19,4)" json:"price"`
	ExecutionPrice decimal.Decimal        `gorm:"type:decimal(19,4)" json:"execution_price"`
	CurrentPrice   decimal.Decimal        `gorm:"type:decimal(19,4)" json:"current_price"`
	TotalAmount    decimal.Decimal        `gorm:"type:decimal(19,4)" json:"total_amount"`
	Commission     decimal.Decimal        `gorm:"type:decimal(19,4)" json:"commission"`
	Tax            decimal.Decimal        `gorm:"type:decimal(19,4)" json:"tax"`
	OtherFees      decimal.Decimal        `gorm:"type:decimal(19,4)" json:"other_fees"`
	TransactionAt  time.Time              `json:"transaction_at"`
	SettlementAt   time.Time              `json:"settlement_at"`
}

// IdempotencyRecord ties a client-supplied key to the resource it created so
// retried requests return the original resource instead of duplicating it.
type IdempotencyRecord struct {
	gorm.Model
	IdempotencyKey string    `gorm:"uniqueIndex" json:"idempotency_key"`
	ResourceID     string    `json:"resource_id"`
	ResourceType   string    `json:"resource_type"`
	ExpiresAt      time.Time `json:"expires_at"`
}
