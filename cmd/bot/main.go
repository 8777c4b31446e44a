// Бот треугольного арбитража на OKX.
//
// Последовательность старта:
//  1. конфигурация и логгер
//  2. база данных и схема
//  3. каталог инструментов по REST, построение треугольников
//  4. WebSocket фиды: маркет-данные (шарды) и приватный канал
//  5. циклы оценки и исполнения
//  6. HTTP сервер мониторинга
package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"triarb/internal/api"
	"triarb/internal/bot"
	"triarb/internal/config"
	"triarb/internal/market"
	"triarb/internal/okx"
	"triarb/internal/repository"
	"triarb/pkg/logger"
	"triarb/pkg/retry"
)

func main() {
	// .env опционален, в бою конфигурация приходит из окружения
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("starting triarb bot",
		zap.String("rest", cfg.OKX.RESTBase),
		zap.String("db", cfg.Database.DSNWithoutPassword()))

	if err := run(cfg, log); err != nil {
		log.Fatal("bot terminated", zap.Error(err))
	}
	log.Info("bot stopped")
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	creds, err := config.LoadCredentials(cfg.OKX.CredentialsFile)
	if err != nil {
		return fmt.Errorf("load credentials: %w", err)
	}
	okxCreds := okx.Credentials{
		APIKey:     creds.APIKey,
		Secret:     creds.Secret,
		Passphrase: creds.Passphrase,
	}

	db, err := initDatabase(ctx, cfg)
	if err != nil {
		return fmt.Errorf("init database: %w", err)
	}
	defer db.Close()

	if err := repository.InitSchema(db); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}

	instrumentRepo := repository.NewInstrumentRepository(db)
	triangleRepo := repository.NewTriangleRepository(db)
	opportunityRepo := repository.NewOpportunityRepository(db)
	balanceRepo := repository.NewBalanceRepository(db)
	orderRepo := repository.NewOrderRepository(db)

	// Ордера прошлого запуска уже не открыты - чистим перед стартом
	if err := orderRepo.DeleteAll(); err != nil {
		return fmt.Errorf("clear stale orders: %w", err)
	}

	// ============================================================
	// Каталог и треугольники
	// ============================================================

	rest := okx.NewRESTClient(cfg.OKX.RESTBase, okx.NewHTTPClient(okx.DefaultHTTPClientConfig()), log)

	retryCfg := retry.NetworkConfig()
	retryCfg.OnRetry = func(attempt int, err error, delay time.Duration) {
		log.Warn("fetch instruments failed, retrying",
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err))
	}
	instruments, err := retry.DoWithResult(ctx, func() ([]market.Instrument, error) {
		return rest.FetchInstruments(ctx)
	}, retryCfg)
	if err != nil {
		return fmt.Errorf("fetch instruments: %w", err)
	}
	log.Info("instrument catalog loaded", zap.Int("instruments", len(instruments)))

	if err := instrumentRepo.ReplaceAll(instruments); err != nil {
		return fmt.Errorf("persist instruments: %w", err)
	}

	catalog := market.NewCatalog(instruments)
	rules := market.GraphRules{
		Excluded:   market.NewCurrencySet(cfg.Trading.ExcludedCurrencies),
		Settlement: market.NewCurrencySet(cfg.Trading.SettlementCurrencies),
		Anchors:    market.NewCurrencySet(cfg.Trading.AnchorCurrencies),
		Bridge:     market.NewCurrencySet(cfg.Trading.BridgeCurrencies),
	}
	triangles := market.FilterTriangles(market.BuildTriangles(catalog, rules), rules)
	if len(triangles) == 0 {
		return fmt.Errorf("no tradable triangles in catalog of %d instruments", catalog.Len())
	}
	log.Info("triangles built", zap.Int("triangles", len(triangles)))

	if err := triangleRepo.ReplaceAll(triangles); err != nil {
		return fmt.Errorf("persist triangles: %w", err)
	}

	// ============================================================
	// WebSocket фиды
	// ============================================================

	book := market.NewPriceBook(0)
	account := market.NewAccountState()
	dispatcher := bot.NewDispatcher(book, account, balanceRepo, orderRepo, log)

	pairs := market.UniquePairs(triangles)
	shards := market.SplitPairs(pairs, cfg.OKX.MarketShards)
	log.Info("market subscriptions sharded",
		zap.Int("pairs", len(pairs)),
		zap.Int("shards", len(shards)))

	var feeds []*okx.Feed
	for i, shard := range shards {
		feeds = append(feeds, okx.NewFeed(okx.FeedConfig{
			Name:                   fmt.Sprintf("market-%d", i),
			URL:                    cfg.OKX.PublicWSURL,
			Subscriptions:          []interface{}{okx.SubscribeRequest(okx.ChannelBooks, shard)},
			InitialDelay:           cfg.OKX.ReconnectInitialDelay,
			MaxDelay:               cfg.OKX.ReconnectMaxDelay,
			ConnectTimeout:         cfg.OKX.ConnectTimeout,
			PingInterval:           cfg.OKX.PingInterval,
			PongTimeout:            cfg.OKX.PongTimeout,
			FailFastOnHandlerError: cfg.OKX.FailFastOnHandlerError,
		}, dispatcher.HandleMarket, log))
	}
	feeds = append(feeds, okx.NewFeed(okx.FeedConfig{
		Name:                   "private",
		URL:                    cfg.OKX.PrivateWSURL,
		Subscriptions:          []interface{}{okx.PrivateSubscribeRequest()},
		Credentials:            &okxCreds,
		InitialDelay:           cfg.OKX.ReconnectInitialDelay,
		MaxDelay:               cfg.OKX.ReconnectMaxDelay,
		ConnectTimeout:         cfg.OKX.ConnectTimeout,
		PingInterval:           cfg.OKX.PingInterval,
		PongTimeout:            cfg.OKX.PongTimeout,
		FailFastOnHandlerError: cfg.OKX.FailFastOnHandlerError,
	}, dispatcher.HandlePrivate, log))

	var wg sync.WaitGroup
	for _, f := range feeds {
		f := f
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := f.Run(ctx); err != nil && ctx.Err() == nil {
				log.Error("feed terminated", zap.Error(err))
				stop()
			}
		}()
	}

	// гейдж состояния фидов обновляется периодически
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				for _, f := range feeds {
					v := 0.0
					if f.State() == okx.FeedStateStreaming {
						v = 1.0
					}
					bot.FeedConnectionState.WithLabelValues(f.Name()).Set(v)
				}
			}
		}
	}()

	// ============================================================
	// Оценка и исполнение
	// ============================================================

	evaluator := bot.NewEvaluator(bot.EvaluatorConfig{
		InitialBalance:   cfg.Trading.InitialBalance,
		ProfitThreshold:  cfg.Trading.ProfitThreshold,
		RequiredNotional: cfg.Trading.RequiredNotional,
		Interval:         cfg.Trading.EvalInterval,
	}, triangles, book, triangleRepo, opportunityRepo, log)

	wg.Add(1)
	go func() {
		defer wg.Done()
		evaluator.Run(ctx)
	}()

	trader := okx.NewTrader(cfg.OKX.PrivateWSURL, okxCreds, cfg.OKX.ConnectTimeout, log)
	executor := bot.NewExecutor(bot.ExecutorConfig{
		OrderSize:        cfg.Trading.OrderSize,
		MinTradeSize:     cfg.Trading.MinTradeSize,
		TickSize:         cfg.Trading.TickSize,
		FeeRate:          cfg.Trading.FeeRate,
		IdlePollInterval: cfg.Trading.IdlePollInterval,
		FillPollInterval: cfg.Trading.FillPollInterval,
		FillTimeout:      cfg.Trading.FillTimeout,
		ErrorCooldown:    cfg.Trading.ErrorCooldown,
	}, evaluator, trader, account, book, rules.Settlement, log)

	wg.Add(1)
	go func() {
		defer wg.Done()
		executor.Run(ctx)
	}()

	// ============================================================
	// HTTP сервер
	// ============================================================

	feedStates := func() map[string]string {
		states := make(map[string]string, len(feeds))
		for _, f := range feeds {
			states[f.Name()] = f.State().String()
		}
		return states
	}
	handler := api.NewHandler(opportunityRepo, executor, account, feedStates, log)
	router := api.SetupRoutes(handler, log)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("http server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("http server failed", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn("http shutdown", zap.Error(err))
	}

	wg.Wait()
	return nil
}

// initDatabase открывает пул соединений PostgreSQL и проверяет связь.
func initDatabase(ctx context.Context, cfg *config.Config) (*sql.DB, error) {
	db, err := sql.Open(cfg.Database.Driver, cfg.Database.DSN())
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}
