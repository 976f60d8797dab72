package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	"github.com/finsuite/brokerage-api/internal/auth"
	"github.com/finsuite/brokerage-api/internal/customers"
	"github.com/finsuite/brokerage-api/internal/database"
	"github.com/finsuite/brokerage-api/internal/marketdata"
	"github.com/finsuite/brokerage-api/internal/portfolio"
	"github.com/finsuite/brokerage-api/internal/position"
	"github.com/finsuite/brokerage-api/internal/settlement"
	"github.com/finsuite/brokerage-api/internal/stocktx"
	"github.com/finsuite/brokerage-api/internal/trading"
	"github.com/finsuite/brokerage-api/internal/wallet"
	"github.com/finsuite/brokerage-api/pkg/middleware"

	"github.com/gin-gonic/gin"
)

// init configures application logging. Development gets pretty console
// output; DEBUG=true raises the level.
func init() {
	_ = godotenv.Load()

	if os.Getenv("ENV") != "production" {
		output := zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}
		zlog.Logger = zerolog.New(output).With().Timestamp().Logger()
	}

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if os.Getenv("DEBUG") == "true" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
}

// main wires the back-office services, starts the background sweeps and
// serves the API with graceful shutdown.
func main() {
	db, err := database.NewDatabase(os.Getenv("DATABASE_PATH"))
	if err != nil {
		zlog.Fatal().Err(err).Msg("Failed to initialize database")
	}

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		zlog.Fatal().Msg("JWT_SECRET is required")
	}

	router := gin.Default()

	// Market data collaborators. Prices are pushed into the cache by the
	// simulation driver or an upstream feed; the calendar gates order
	// collection and the end-of-session sweep.
	prices := marketdata.NewCache()
	calendar := marketdata.NewCalendar()

	authService := auth.NewService(jwtSecret)
	authHandlers := auth.NewGinHandlers(authService)
	if apiKey, apiSecret := os.Getenv("API_KEY"), os.Getenv("API_SECRET"); apiKey != "" {
		authService.RegisterAPICredentials(apiKey, apiSecret)
	}

	customerService := customers.NewService(db)
	customerHandlers := customers.NewGinHandlers(customerService)

	walletService := wallet.NewService(db)
	walletHandlers := wallet.NewGinHandlers(walletService)

	positionService := position.NewService(db)
	portfolioService := portfolio.NewService(db, positionService)

	stockTxService := stocktx.NewService(db, positionService, prices, portfolioService)
	stockTxHandlers := stocktx.NewGinHandlers(stockTxService)

	tradingService := trading.NewService(db, walletService, stockTxService, positionService, customerService, prices)
	tradingService.SetOrderWindow(calendar)
	tradingHandlers := trading.NewGinHandlers(tradingService)

	// Background jobs: T+2 settlement sweeps, limit-order reconciliation,
	// price refresh, end-of-session cancellation.
	jobCtx, jobCancel := context.WithCancel(context.Background())
	defer jobCancel()

	go settlement.NewProcessor(walletService, stockTxService).Start(jobCtx)
	go trading.NewReconciler(tradingService).Start(jobCtx)
	go trading.NewEndOfSession(tradingService, calendar).Start(jobCtx)
	go stocktx.NewRefresher(stockTxService).Start(jobCtx)

	router.Use(middleware.RateLimit())

	setupRoutes(router, jwtSecret, authHandlers, customerHandlers, walletHandlers, tradingHandlers, stockTxHandlers)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zlog.Fatal().Err(err).Msg("listen")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zlog.Info().Msg("Shutting down server...")

	jobCancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	zlog.Info().Msg("Server exiting")
}

// setupRoutes groups the API surface: public auth, JWT-protected customer
// operations, and internal-only administration.
func setupRoutes(
	router *gin.Engine,
	jwtSecret string,
	authHandlers *auth.GinHandlers,
	customerHandlers *customers.GinHandlers,
	walletHandlers *wallet.GinHandlers,
	tradingHandlers *trading.GinHandlers,
	stockTxHandlers *stocktx.GinHandlers,
) {
	v1 := router.Group("/api/v1")
	{
		authRoutes := v1.Group("/auth")
		{
			authRoutes.POST("/token", authHandlers.GenerateTokenHandler())
		}

		customerRoutes := v1.Group("/customers")
		customerRoutes.Use(middleware.JWTAuth(jwtSecret))
		{
			customerRoutes.POST("", customerHandlers.CreateCustomerHandler())
			customerRoutes.GET("/:customer_id", customerHandlers.GetCustomerHandler())
			customerRoutes.GET("/:customer_id/portfolios", customerHandlers.ListPortfoliosHandler())
			customerRoutes.POST("/:customer_id/portfolios", customerHandlers.CreatePortfolioHandler())
			customerRoutes.GET("/:customer_id/owned/:stock_code", tradingHandlers.OwnedQuantityHandler())
			customerRoutes.GET("/:customer_id/positions", tradingHandlers.PortfolioByOrdersHandler())
		}

		orderRoutes := v1.Group("/orders")
		orderRoutes.Use(middleware.JWTAuth(jwtSecret))
		{
			orderRoutes.POST("", tradingHandlers.CreateOrderHandler())
			orderRoutes.GET("", tradingHandlers.ListOrdersHandler())
			orderRoutes.GET("/:order_id", tradingHandlers.GetOrderHandler())
			orderRoutes.PATCH("/:order_id", tradingHandlers.UpdateOrderHandler())
			orderRoutes.GET("/:order_id/transactions", stockTxHandlers.ListByOrderHandler())
		}

		reportRoutes := v1.Group("/reports")
		reportRoutes.Use(middleware.JWTAuth(jwtSecret))
		{
			reportRoutes.GET("/orders/today", tradingHandlers.TodayFilledHandler())
			reportRoutes.GET("/trading", tradingHandlers.StatsHandler())
		}

		walletRoutes := v1.Group("/wallets")
		walletRoutes.Use(middleware.JWTAuth(jwtSecret))
		{
			walletRoutes.POST("", walletHandlers.CreateWalletHandler())
			walletRoutes.GET("/:customer_id", walletHandlers.GetWalletHandler())
			walletRoutes.POST("/:customer_id/deposit", walletHandlers.DepositHandler())
			walletRoutes.POST("/:customer_id/withdraw", walletHandlers.WithdrawHandler())
			walletRoutes.GET("/:customer_id/transactions", walletHandlers.ListEntriesHandler())
		}

		txRoutes := v1.Group("/transactions")
		txRoutes.Use(middleware.JWTAuth(jwtSecret))
		{
			txRoutes.GET("/:transaction_id", stockTxHandlers.GetTransactionHandler())
		}

		portfolioRoutes := v1.Group("/portfolios")
		portfolioRoutes.Use(middleware.JWTAuth(jwtSecret))
		{
			portfolioRoutes.GET("/:portfolio_id/transactions", stockTxHandlers.ListByPortfolioHandler())
			portfolioRoutes.GET("/:portfolio_id/positions", stockTxHandlers.PositionsHandler())
		}

		// Internal routes (should be protected by internal network)
		internal := v1.Group("/internal")
		internal.Use(middleware.InternalAuth(jwtSecret))
		{
			internal.POST("/transactions/move", stockTxHandlers.MovePortfolioHandler())
			internal.POST("/wallets/:customer_id/dividend", walletHandlers.CreditDividendHandler())
			internal.POST("/wallets/:customer_id/lock", walletHandlers.LockWalletHandler())
			internal.POST("/wallets/:customer_id/unlock", walletHandlers.UnlockWalletHandler())
			internal.PATCH("/wallets/:customer_id/limits", walletHandlers.UpdateLimitsHandler())
			internal.POST("/wallets/:customer_id/reset-daily", walletHandlers.ResetDailyLimitsHandler())
			internal.POST("/wallets/:customer_id/reset-monthly", walletHandlers.ResetMonthlyLimitsHandler())
		}
	}
}
