// Command simulation drives a full back-office day against an in-process
// service stack: customer onboarding, funding, a randomized order flow,
// limit-order reconciliation passes under moving prices, and the T+2
// settlement sweeps fast-forwarded to completion.
package main

import (
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/finsuite/brokerage-api/internal/customers"
	"github.com/finsuite/brokerage-api/internal/database"
	"github.com/finsuite/brokerage-api/internal/marketdata"
	"github.com/finsuite/brokerage-api/internal/portfolio"
	"github.com/finsuite/brokerage-api/internal/position"
	"github.com/finsuite/brokerage-api/internal/stocktx"
	"github.com/finsuite/brokerage-api/internal/trading"
	"github.com/finsuite/brokerage-api/internal/types"
	"github.com/finsuite/brokerage-api/internal/wallet"
	"github.com/finsuite/brokerage-api/pkg/busdate"
)

const (
	numCustomers    = 5
	ordersPerRound  = 20
	reconcileRounds = 4
	initialDeposit  = "250000"
)

var stockCodes = []string{"ARCLK", "THYAO", "GARAN", "ASELS", "KCHOL"}

// init configures the logger for the simulation with pretty printing and timestamp
func init() {
	output := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	}
	log.Logger = zerolog.New(output).With().Timestamp().Logger()
}

type simulation struct {
	prices       *marketdata.Cache
	customers    *customers.Service
	wallets      *wallet.Service
	trading      *trading.Service
	transactions *stocktx.Service
	reconciler   *trading.Reconciler

	customerIDs []string
	rng         *rand.Rand
}

func main() {
	dir, err := os.MkdirTemp("", "brokerage-sim")
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create working directory")
	}
	defer os.RemoveAll(dir)

	db, err := database.NewDatabase(filepath.Join(dir, "simulation.db"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize database")
	}

	prices := marketdata.NewCache()
	positionService := position.NewService(db)
	portfolioService := portfolio.NewService(db, positionService)
	customerService := customers.NewService(db)
	walletService := wallet.NewService(db)
	stockTxService := stocktx.NewService(db, positionService, prices, portfolioService)
	tradingService := trading.NewService(db, walletService, stockTxService, positionService, customerService, prices)

	sim := &simulation{
		prices:       prices,
		customers:    customerService,
		wallets:      walletService,
		trading:      tradingService,
		transactions: stockTxService,
		reconciler:   trading.NewReconciler(tradingService),
		rng:          rand.New(rand.NewSource(time.Now().UnixNano())),
	}

	sim.seedPrices()
	sim.onboardCustomers()
	sim.tradeRounds()
	sim.settleEverything(db)
	sim.printSummary()
}

func (s *simulation) seedPrices() {
	for _, code := range stockCodes {
		price := decimal.NewFromFloat(20 + s.rng.Float64()*180).Round(2)
		s.prices.Set(code, price)
	}
	log.Info().Int("stocks", len(stockCodes)).Msg("seeded market prices")
}

func (s *simulation) onboardCustomers() {
	for i := 0; i < numCustomers; i++ {
		customer, err := s.customers.CreateCustomer(
			fmt.Sprintf("Simulated Customer %d", i+1),
			fmt.Sprintf("customer%d@example.com", i+1),
		)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create customer")
		}
		if _, err := s.wallets.CreateWallet(wallet.CreateWalletRequest{CustomerID: customer.CustomerID}); err != nil {
			log.Fatal().Err(err).Msg("failed to create wallet")
		}
		if _, err := s.wallets.Deposit(customer.CustomerID, decimal.RequireFromString(initialDeposit)); err != nil {
			log.Fatal().Err(err).Msg("failed to fund wallet")
		}
		s.customerIDs = append(s.customerIDs, customer.CustomerID)
	}
	log.Info().Int("customers", numCustomers).Str("deposit", initialDeposit).Msg("customers onboarded and funded")
}

// tradeRounds interleaves order submission with price moves and
// reconciliation passes so resting limit orders get a chance to fill.
func (s *simulation) tradeRounds() {
	for round := 0; round < reconcileRounds; round++ {
		for i := 0; i < ordersPerRound; i++ {
			s.submitRandomOrder()
		}

		s.movePrices()
		if err := s.reconciler.ReconcileOnce(); err != nil {
			log.Error().Err(err).Msg("reconciliation pass failed")
		}
		log.Info().Int("round", round+1).Msg("trading round complete")
	}
}

func (s *simulation) submitRandomOrder() {
	customerID := s.customerIDs[s.rng.Intn(len(s.customerIDs))]
	stockCode := stockCodes[s.rng.Intn(len(stockCodes))]

	marketPrice, _ := s.prices.PriceOf(stockCode)
	// Reference price within a few percent of the market.
	offset := decimal.NewFromFloat(0.96 + s.rng.Float64()*0.08)
	price := marketPrice.Mul(offset).Round(2)

	category := types.CategoryMarket
	if s.rng.Intn(2) == 0 {
		category = types.CategoryLimit
	}
	side := types.SideBuy
	if s.rng.Intn(4) == 0 {
		side = types.SideSell
	}

	order, err := s.trading.CreateOrder(trading.CreateOrderRequest{
		CustomerID: customerID,
		StockCode:  stockCode,
		Category:   category,
		Side:       side,
		Quantity:   decimal.NewFromInt(int64(1 + s.rng.Intn(20))),
		Price:      price,
	}, "")
	if err != nil {
		log.Debug().Err(err).Str("side", string(side)).Msg("order not accepted")
		return
	}

	log.Debug().
		Str("order_id", order.OrderID).
		Str("stock_code", stockCode).
		Str("category", string(category)).
		Str("status", string(order.Status)).
		Msg("order submitted")
}

func (s *simulation) movePrices() {
	for code, price := range s.prices.Snapshot() {
		drift := decimal.NewFromFloat(0.97 + s.rng.Float64()*0.06)
		s.prices.Set(code, price.Mul(drift).Round(2))
	}
}

// settleEverything backdates settlement timestamps so both T+2 sweeps run
// to completion inside the simulation instead of two business days later.
func (s *simulation) settleEverything(db *gorm.DB) {
	past := busdate.SettlementTime(time.Now().AddDate(0, 0, -7))

	if err := db.Model(&types.WalletTransaction{}).
		Where("settlement_at IS NOT NULL").
		Update("settlement_at", past).Error; err != nil {
		log.Fatal().Err(err).Msg("failed to backdate ledger entries")
	}
	if err := db.Model(&types.StockTransaction{}).
		Where("settlement_at IS NOT NULL").
		Update("settlement_at", past).Error; err != nil {
		log.Fatal().Err(err).Msg("failed to backdate stock transactions")
	}

	if err := s.wallets.ProcessSettlements(time.Now()); err != nil {
		log.Fatal().Err(err).Msg("wallet settlement sweep failed")
	}
	if err := s.transactions.ProcessSettlements(time.Now()); err != nil {
		log.Fatal().Err(err).Msg("stock settlement sweep failed")
	}
	log.Info().Msg("settlement sweeps complete")
}

func (s *simulation) printSummary() {
	totalVolume, err := s.trading.TotalTradeVolume()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to compute total volume")
	}
	todayCount, err := s.trading.TodayOrderCount()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to count orders")
	}
	topStocks, err := s.trading.TopStockCodes()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to rank stocks")
	}

	log.Info().
		Str("total_volume", totalVolume.String()).
		Int64("orders", todayCount).
		Msg("simulation summary")
	for _, row := range topStocks {
		log.Info().Str("stock_code", row.StockCode).Str("volume", row.Volume.String()).Msg("traded volume")
	}

	for _, customerID := range s.customerIDs {
		w, err := s.wallets.GetWallet(customerID)
		if err != nil {
			continue
		}
		log.Info().
			Str("customer_id", customerID).
			Str("balance", w.Balance.String()).
			Str("available", w.AvailableBalance.String()).
			Str("blocked", w.BlockedBalance.String()).
			Bool("invariant", w.InvariantHolds()).
			Msg("final wallet state")
	}
}
