// Package settlement runs the two T+2 settlement sweeps. The cash sweep
// finalizes wallet ledger entries, the stock sweep finalizes stock
// transactions; they act on disjoint state and run on independent tickers.
package settlement

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/finsuite/brokerage-api/internal/stocktx"
	"github.com/finsuite/brokerage-api/internal/wallet"
)

const sweepInterval = time.Minute

type Processor struct {
	wallets      *wallet.Service
	transactions *stocktx.Service
	interval     time.Duration
}

func NewProcessor(wallets *wallet.Service, transactions *stocktx.Service) *Processor {
	return &Processor{
		wallets:      wallets,
		transactions: transactions,
		interval:     sweepInterval,
	}
}

// Start launches both sweeps and blocks until the context is cancelled.
func (p *Processor) Start(ctx context.Context) {
	logger := log.With().Str("component", "settlement_processor").Logger()
	logger.Info().Dur("interval", p.interval).Msg("starting settlement processor")

	go p.run(ctx, "cash_settlement", func(now time.Time) error {
		return p.wallets.ProcessSettlements(now)
	})
	p.run(ctx, "stock_settlement", func(now time.Time) error {
		return p.transactions.ProcessSettlements(now)
	})
}

func (p *Processor) run(ctx context.Context, name string, sweep func(time.Time) error) {
	logger := log.With().Str("component", name).Logger()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("shutting down settlement sweep")
			return
		case <-ticker.C:
			if err := sweep(time.Now()); err != nil {
				logger.Error().Err(err).Msg("settlement sweep failed")
			}
		}
	}
}
