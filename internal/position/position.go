// Package position aggregates a customer's settled stock transactions
// across all portfolios into net holdings. It answers both the "current
// holdings" query and the oversell guard consulted before a sell fill.
package position

import (
	"fmt"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/finsuite/brokerage-api/internal/types"
)

type Service struct {
	db *Database
}

func NewService(gormDB *gorm.DB) *Service {
	return &Service{db: NewDatabase(gormDB)}
}

// NetQuantity returns the signed net holding for a (customer, stock code)
// pair: settled and partially-sold BUY quantities minus SELL quantities
// across every portfolio the customer owns. A customer with no qualifying
// transactions nets zero.
func (s *Service) NetQuantity(customerID, stockCode string) (decimal.Decimal, error) {
	if err := s.db.CustomerExists(customerID); err != nil {
		return decimal.Zero, err
	}

	transactions, err := s.db.GetSettledTransactions(customerID, stockCode)
	if err != nil {
		return decimal.Zero, err
	}

	net := decimal.Zero
	for _, tx := range transactions {
		switch tx.Side {
		case types.SideBuy:
			net = net.Add(tx.Quantity)
		case types.SideSell:
			net = net.Sub(tx.Quantity)
		}
	}
	return net, nil
}

// Holding is one merged position: every settled BUY lot for a stock code
// collapsed into a single synthetic record.
type Holding struct {
	StockCode    string          `json:"stock_code"`
	Quantity     decimal.Decimal `json:"quantity"`
	AveragePrice decimal.Decimal `json:"average_price"`
	CurrentPrice decimal.Decimal `json:"current_price"`
	TotalAmount  decimal.Decimal `json:"total_amount"`
	Commission   decimal.Decimal `json:"commission"`
	Tax          decimal.Decimal `json:"tax"`
	OtherFees    decimal.Decimal `json:"other_fees"`
}

// MergeTransactions combines same-stock-code BUY transactions into one
// synthetic holding. The average price is quantity-weighted from the BUY
// rows alone; the quantity is the customer's net settled position, so
// intervening sells shrink the denominator without touching the cost basis.
func (s *Service) MergeTransactions(transactions []types.StockTransaction) (*Holding, error) {
	if len(transactions) == 0 {
		return nil, fmt.Errorf("%w: transaction list is empty", types.ErrInvalidArgument)
	}

	base := transactions[0]
	customerID, err := s.db.PortfolioOwner(base.PortfolioID)
	if err != nil {
		return nil, err
	}

	netQuantity, err := s.NetQuantity(customerID, base.StockCode)
	if err != nil {
		return nil, err
	}

	holding := &Holding{
		StockCode:    base.StockCode,
		Quantity:     netQuantity,
		CurrentPrice: base.CurrentPrice,
	}

	buyCost := decimal.Zero
	for _, tx := range transactions {
		holding.TotalAmount = holding.TotalAmount.Add(tx.TotalAmount)
		holding.Commission = holding.Commission.Add(tx.Commission)
		holding.Tax = holding.Tax.Add(tx.Tax)
		holding.OtherFees = holding.OtherFees.Add(tx.OtherFees)
		buyCost = buyCost.Add(tx.Price.Mul(tx.Quantity))
	}

	if netQuantity.Sign() > 0 {
		holding.AveragePrice = buyCost.DivRound(netQuantity, 4)
	}
	return holding, nil
}

// SettledBuyPositions returns the merged BUY positions with a positive net
// quantity for one portfolio. Portfolio valuation is computed over this
// view.
func (s *Service) SettledBuyPositions(portfolioID string) ([]Holding, error) {
	transactions, err := s.db.GetSettledBuysByPortfolio(portfolioID)
	if err != nil {
		return nil, err
	}

	byCode := make(map[string][]types.StockTransaction)
	var codes []string
	for _, tx := range transactions {
		if _, seen := byCode[tx.StockCode]; !seen {
			codes = append(codes, tx.StockCode)
		}
		byCode[tx.StockCode] = append(byCode[tx.StockCode], tx)
	}

	var holdings []Holding
	for _, code := range codes {
		holding, err := s.MergeTransactions(byCode[code])
		if err != nil {
			return nil, err
		}
		if holding.Quantity.Sign() > 0 {
			holdings = append(holdings, *holding)
		}
	}
	return holdings, nil
}

// DistinctHoldingsCount returns the number of distinct stock codes in which
// the customer holds a positive net settled position.
func (s *Service) DistinctHoldingsCount(customerID string) (int, error) {
	if err := s.db.CustomerExists(customerID); err != nil {
		return 0, err
	}

	codes, err := s.db.DistinctStockCodes(customerID)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, code := range codes {
		net, err := s.NetQuantity(customerID, code)
		if err != nil {
			return 0, err
		}
		if net.Sign() > 0 {
			count++
		}
	}
	return count, nil
}
