package types

import "errors"

// Domain error taxonomy. Validation and not-found errors abort the single
// operation with no partial effect; ledger failures during order fill are
// downgraded by the order processor to a terminal order status instead.
var (
	ErrCustomerNotFound    = errors.New("customer not found")
	ErrOrderNotFound       = errors.New("order not found")
	ErrWalletNotFound      = errors.New("wallet not found")
	ErrPortfolioNotFound   = errors.New("portfolio not found")
	ErrTransactionNotFound = errors.New("transaction not found")

	ErrInvalidOrder    = errors.New("order price and quantity are required")
	ErrInvalidArgument = errors.New("invalid argument")

	ErrInsufficientBalance = errors.New("insufficient available balance")
	ErrInsufficientStock   = errors.New("insufficient stock quantity")

	ErrWalletExists    = errors.New("wallet already exists for customer")
	ErrWalletLocked    = errors.New("wallet is locked")
	ErrWalletNotActive = errors.New("wallet is not active")
	ErrLimitExceeded   = errors.New("wallet transaction limit exceeded")

	ErrUnauthorizedOperation = errors.New("operation not permitted for this customer")
	ErrInvalidTransition     = errors.New("illegal status transition")
	ErrMarketClosed          = errors.New("market is closed for order collection")
)

// NotFound reports whether err belongs to the not-found class of the
// taxonomy.
func NotFound(err error) bool {
	return errors.Is(err, ErrCustomerNotFound) ||
		errors.Is(err, ErrOrderNotFound) ||
		errors.Is(err, ErrWalletNotFound) ||
		errors.Is(err, ErrPortfolioNotFound) ||
		errors.Is(err, ErrTransactionNotFound)
}

// Invalid reports whether err belongs to the validation class.
func Invalid(err error) bool {
	return errors.Is(err, ErrInvalidOrder) ||
		errors.Is(err, ErrInvalidArgument) ||
		errors.Is(err, ErrInsufficientBalance) ||
		errors.Is(err, ErrInsufficientStock) ||
		errors.Is(err, ErrLimitExceeded) ||
		errors.Is(err, ErrWalletLocked) ||
		errors.Is(err, ErrWalletNotActive) ||
		errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, ErrMarketClosed)
}
