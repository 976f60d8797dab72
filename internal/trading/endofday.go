package trading

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/finsuite/brokerage-api/internal/marketdata"
	"github.com/finsuite/brokerage-api/internal/types"
)

// The end-of-session sweep fires shortly after the session close so late
// prints have landed.
var endOfSessionAt = struct{ hour, minute int }{18, 5}

// EndOfSession cancels the orders still OPEN when the trading session
// closes. It is gated on the session calendar: if the market is somehow
// still reported open at sweep time, the pass is skipped.
type EndOfSession struct {
	service *Service
	gate    marketdata.SessionGate
}

func NewEndOfSession(service *Service, gate marketdata.SessionGate) *EndOfSession {
	return &EndOfSession{service: service, gate: gate}
}

func (e *EndOfSession) Start(ctx context.Context) {
	logger := log.With().Str("component", "end_of_session").Logger()
	logger.Info().Msg("starting end-of-session sweep")

	for {
		timer := time.NewTimer(time.Until(nextRun(time.Now())))
		select {
		case <-ctx.Done():
			timer.Stop()
			logger.Info().Msg("shutting down end-of-session sweep")
			return
		case <-timer.C:
			if err := e.SweepOnce(time.Now()); err != nil {
				logger.Error().Err(err).Msg("end-of-session sweep failed")
			}
		}
	}
}

// SweepOnce cancels today's remaining OPEN orders unless the session still
// reports open.
func (e *EndOfSession) SweepOnce(now time.Time) error {
	logger := log.With().Str("component", "end_of_session").Logger()

	if e.gate.IsOpen() {
		logger.Warn().Msg("market still open at sweep time, skipping")
		return nil
	}

	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	orders, err := e.service.db.OpenOrdersSince(startOfDay)
	if err != nil {
		return err
	}

	canceled := 0
	for i := range orders {
		order := &orders[i]
		if !order.Status.CanTransitionTo(types.OrderCanceled) {
			continue
		}
		order.Status = types.OrderCanceled
		if err := e.service.db.SaveOrder(order); err != nil {
			logger.Error().Err(err).
				Str("order_id", order.OrderID).
				Msg("failed to cancel order")
			continue
		}
		canceled++
	}

	logger.Info().Int("canceled", canceled).Msg("end-of-session sweep complete")
	return nil
}

func nextRun(now time.Time) time.Time {
	run := time.Date(now.Year(), now.Month(), now.Day(), endOfSessionAt.hour, endOfSessionAt.minute, 0, 0, now.Location())
	if !run.After(now) {
		run = run.AddDate(0, 0, 1)
	}
	return run
}
