// Package portfolio recomputes the derived valuation fields on a portfolio
// (total value, cost, profit/loss) from its merged settled positions. The
// fields are never mutated directly; every fill, move, and settlement
// triggers a recompute through the Notifier seam.
package portfolio

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/finsuite/brokerage-api/internal/position"
	"github.com/finsuite/brokerage-api/internal/types"
)

// Notifier is consumed by components that change a portfolio's contents and
// need its valuation recomputed.
type Notifier interface {
	PortfolioChanged(portfolioID string) error
}

// Valuation percentage is clamped so a near-zero cost basis cannot produce
// an absurd figure.
var (
	maxProfitLossPercentage = decimal.RequireFromString("999.99")
	minProfitLossPercentage = decimal.RequireFromString("-999.99")
)

type Service struct {
	db        *gorm.DB
	positions *position.Service
}

func NewService(gormDB *gorm.DB, positions *position.Service) *Service {
	return &Service{db: gormDB, positions: positions}
}

// PortfolioChanged implements Notifier.
func (s *Service) PortfolioChanged(portfolioID string) error {
	return s.UpdateValues(portfolioID)
}

// UpdateValues recomputes and persists the portfolio's derived totals:
// total value over current prices, total cost including fees, and the
// resulting profit/loss with its clamped percentage.
func (s *Service) UpdateValues(portfolioID string) error {
	var portfolio types.Portfolio
	if err := s.db.Where("portfolio_id = ?", portfolioID).First(&portfolio).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return types.ErrPortfolioNotFound
		}
		return err
	}

	holdings, err := s.positions.SettledBuyPositions(portfolioID)
	if err != nil {
		return fmt.Errorf("failed to load positions: %w", err)
	}

	totalValue := decimal.Zero
	totalCost := decimal.Zero
	for _, h := range holdings {
		totalValue = totalValue.Add(h.CurrentPrice.Mul(h.Quantity))
		totalCost = totalCost.Add(h.TotalAmount).Add(h.Commission).Add(h.Tax).Add(h.OtherFees)
	}

	profitLoss := totalValue.Sub(totalCost)

	percentage := decimal.Zero
	if totalCost.Sign() > 0 {
		percentage = profitLoss.DivRound(totalCost, 4).Mul(decimal.NewFromInt(100))
		if percentage.GreaterThan(maxProfitLossPercentage) {
			percentage = maxProfitLossPercentage
		} else if percentage.LessThan(minProfitLossPercentage) {
			percentage = minProfitLossPercentage
		}
	}

	portfolio.TotalValue = totalValue
	portfolio.TotalCost = totalCost
	portfolio.TotalProfitLoss = profitLoss
	portfolio.ProfitLossPercentage = percentage

	if err := s.db.Save(&portfolio).Error; err != nil {
		return err
	}

	log.Debug().
		Str("portfolio_id", portfolioID).
		Str("total_value", totalValue.String()).
		Str("total_cost", totalCost.String()).
		Str("profit_loss", profitLoss.String()).
		Msg("portfolio valuation updated")

	return nil
}
