package stocktx

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

const refreshInterval = 5 * time.Minute

// Refresher periodically copies the latest market prices onto stored
// transactions so portfolio valuations stay close to the market.
type Refresher struct {
	service  *Service
	interval time.Duration
}

func NewRefresher(service *Service) *Refresher {
	return &Refresher{service: service, interval: refreshInterval}
}

func (r *Refresher) Start(ctx context.Context) {
	logger := log.With().Str("component", "price_refresh").Logger()
	logger.Info().Dur("interval", r.interval).Msg("starting price refresher")

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("shutting down price refresher")
			return
		case <-ticker.C:
			if err := r.service.RefreshPrices(); err != nil {
				logger.Error().Err(err).Msg("price refresh failed")
			}
		}
	}
}
