package trading

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/finsuite/brokerage-api/internal/types"
	"github.com/finsuite/brokerage-api/pkg/busdate"
)

// AnnotatedOrder is an order listing row tagged with the cash still
// provisionally blocked by it. Only filled orders inside their settlement
// window report a non-zero blocked amount.
type AnnotatedOrder struct {
	types.Order
	BlockedAmount decimal.Decimal `json:"blocked_amount"`
}

// ListWithBlockedBalance lists a customer's orders newest first, annotating
// each FILLED order with its total amount while its T+2 settlement point
// has not yet passed.
func (s *Service) ListWithBlockedBalance(customerID string) ([]AnnotatedOrder, error) {
	orders, err := s.db.ListByCustomer(customerID, true)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	annotated := make([]AnnotatedOrder, 0, len(orders))
	for _, order := range orders {
		row := AnnotatedOrder{Order: order, BlockedAmount: decimal.Zero}
		if order.Status == types.OrderFilled && busdate.SettlementTime(order.CreatedAt).After(now) {
			row.BlockedAmount = order.TotalAmount
		}
		annotated = append(annotated, row)
	}
	return annotated, nil
}

// OwnedQuantity nets a customer's filled orders for one stock code: BUY
// fills add, SELL fills subtract. This is the order-history view; the
// settled position lives in the position package.
func (s *Service) OwnedQuantity(customerID, stockCode string) (decimal.Decimal, error) {
	orders, err := s.db.FilledOrdersByCustomerAndStock(customerID, stockCode)
	if err != nil {
		return decimal.Zero, err
	}

	owned := decimal.Zero
	for _, order := range orders {
		switch order.Side {
		case types.SideBuy:
			owned = owned.Add(order.Quantity)
		case types.SideSell:
			owned = owned.Sub(order.Quantity)
		}
	}
	return owned, nil
}

// OrderPosition is one stock code of the portfolio-by-orders view.
type OrderPosition struct {
	StockCode    string          `json:"stock_code"`
	NetQuantity  decimal.Decimal `json:"net_quantity"`
	AveragePrice decimal.Decimal `json:"average_price"`
}

// PortfolioByOrders groups a customer's filled orders by stock code. The
// average price is quantity-weighted over BUY fills only; sells shrink the
// net quantity without touching the cost basis.
func (s *Service) PortfolioByOrders(customerID string) ([]OrderPosition, error) {
	orders, err := s.db.FilledOrdersByCustomer(customerID)
	if err != nil {
		return nil, err
	}

	type accumulator struct {
		net     decimal.Decimal
		buyCost decimal.Decimal
		buyQty  decimal.Decimal
	}
	byCode := make(map[string]*accumulator)
	var codes []string
	for _, order := range orders {
		acc, seen := byCode[order.StockCode]
		if !seen {
			acc = &accumulator{}
			byCode[order.StockCode] = acc
			codes = append(codes, order.StockCode)
		}
		switch order.Side {
		case types.SideBuy:
			acc.net = acc.net.Add(order.Quantity)
			acc.buyCost = acc.buyCost.Add(order.Price.Mul(order.Quantity))
			acc.buyQty = acc.buyQty.Add(order.Quantity)
		case types.SideSell:
			acc.net = acc.net.Sub(order.Quantity)
		}
	}

	positions := make([]OrderPosition, 0, len(codes))
	for _, code := range codes {
		acc := byCode[code]
		pos := OrderPosition{StockCode: code, NetQuantity: acc.net}
		if acc.buyQty.Sign() > 0 {
			pos.AveragePrice = acc.buyCost.DivRound(acc.buyQty, 4)
		}
		positions = append(positions, pos)
	}
	return positions, nil
}
