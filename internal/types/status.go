package types

// OrderCategory distinguishes market orders, which execute immediately at
// the supplied reference price, from limit orders, which rest until the
// market crosses their limit.
type OrderCategory string

const (
	CategoryMarket OrderCategory = "MARKET"
	CategoryLimit  OrderCategory = "LIMIT"
)

func (c OrderCategory) Valid() bool {
	return c == CategoryMarket || c == CategoryLimit
}

type OrderSide string

const (
	SideBuy  OrderSide = "BUY"
	SideSell OrderSide = "SELL"
)

func (s OrderSide) Valid() bool {
	return s == SideBuy || s == SideSell
}

// OrderStatus is the closed order state machine. Terminal states have no
// outgoing transitions; anything not in the table is an illegal transition.
type OrderStatus string

const (
	OrderOpen     OrderStatus = "OPEN"
	OrderFilled   OrderStatus = "FILLED"
	OrderCanceled OrderStatus = "CANCELED"
	OrderRejected OrderStatus = "REJECTED"
	OrderFailed   OrderStatus = "FAILED"
)

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderOpen: {OrderFilled, OrderCanceled, OrderFailed},
}

func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

type WalletStatus string

const (
	WalletActive   WalletStatus = "ACTIVE"
	WalletInactive WalletStatus = "INACTIVE"
	WalletClosed   WalletStatus = "CLOSED"
)

type TransactionType string

const (
	TxDeposit       TransactionType = "DEPOSIT"
	TxWithdrawal    TransactionType = "WITHDRAWAL"
	TxStockPurchase TransactionType = "STOCK_PURCHASE"
	TxStockSale     TransactionType = "STOCK_SALE"
	TxDividend      TransactionType = "DIVIDEND"
)

// TransactionStatus is the wallet ledger entry state machine. Entries settle
// only from COMPLETED and cancel only while still unsettled.
type TransactionStatus string

const (
	TxPending   TransactionStatus = "PENDING"
	TxCompleted TransactionStatus = "COMPLETED"
	TxSettled   TransactionStatus = "SETTLED"
	TxCancelled TransactionStatus = "CANCELLED"
)

var transactionTransitions = map[TransactionStatus][]TransactionStatus{
	TxPending:   {TxCompleted, TxCancelled},
	TxCompleted: {TxSettled, TxCancelled},
}

func (s TransactionStatus) CanTransitionTo(next TransactionStatus) bool {
	for _, allowed := range transactionTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

type StockTransactionStatus string

const (
	StockTxCompleted     StockTransactionStatus = "COMPLETED"
	StockTxSettled       StockTransactionStatus = "SETTLED"
	StockTxPartiallySold StockTransactionStatus = "PARTIALLY_SOLD"
	StockTxFailed        StockTransactionStatus = "FAILED"
)

var stockTransactionTransitions = map[StockTransactionStatus][]StockTransactionStatus{
	StockTxCompleted: {StockTxSettled, StockTxFailed},
	StockTxSettled:   {StockTxPartiallySold},
}

func (s StockTransactionStatus) CanTransitionTo(next StockTransactionStatus) bool {
	for _, allowed := range stockTransactionTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Settleable reports whether a position in this status counts toward net
// holdings.
func (s StockTransactionStatus) CountsTowardPosition() bool {
	return s == StockTxSettled || s == StockTxPartiallySold
}
