package trading

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/finsuite/brokerage-api/internal/types"
)

// reconcileInterval is how often resting limit orders are re-evaluated
// against the live price.
const reconcileInterval = 32 * time.Second

// Reconciler is the background sweep over OPEN orders. Each pass fetches
// the live price per order and fills those whose limit condition now
// holds, at the order's own limit price.
type Reconciler struct {
	service  *Service
	interval time.Duration
}

func NewReconciler(service *Service) *Reconciler {
	return &Reconciler{service: service, interval: reconcileInterval}
}

func (r *Reconciler) Start(ctx context.Context) {
	logger := log.With().Str("component", "order_reconciler").Logger()
	logger.Info().Dur("interval", r.interval).Msg("starting order reconciler")

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("shutting down order reconciler")
			return
		case <-ticker.C:
			if err := r.ReconcileOnce(); err != nil {
				logger.Error().Err(err).Msg("reconciliation pass failed")
			}
		}
	}
}

// ReconcileOnce runs a single pass. Orders are processed independently: a
// missing quote leaves the order OPEN for the next pass, a ledger error
// marks that order FAILED, and neither stops the other orders in the pass.
func (r *Reconciler) ReconcileOnce() error {
	logger := log.With().Str("component", "order_reconciler").Logger()

	orders, err := r.service.db.ListOpenOrders()
	if err != nil {
		return err
	}

	for i := range orders {
		order := &orders[i]

		marketPrice, ok := r.service.prices.PriceOf(order.StockCode)
		if !ok {
			continue
		}
		if !limitSatisfied(order.Side, marketPrice, order.Price) {
			continue
		}

		r.service.fill(order, order.Price, types.OrderFailed)
		if err := r.service.db.SaveOrder(order); err != nil {
			logger.Error().Err(err).
				Str("order_id", order.OrderID).
				Msg("failed to persist reconciled order")
			continue
		}
		r.service.writeAuditTransaction(order, order.Price)

		logger.Info().
			Str("order_id", order.OrderID).
			Str("stock_code", order.StockCode).
			Str("status", string(order.Status)).
			Msg("resting order reconciled")
	}
	return nil
}
