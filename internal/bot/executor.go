package bot

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"triarb/internal/market"
	"triarb/pkg/utils"
)

// ExecutorConfig - параметры исполнения треугольника.
type ExecutorConfig struct {
	// OrderSize - размер ордера первой ноги в базовой валюте
	OrderSize float64

	// MinTradeSize - минимальный размер ордера биржи
	MinTradeSize float64

	// TickSize - шаг размера, размеры ордеров округляются вниз
	TickSize float64

	// FeeRate - комиссия тейкера, закладывается в размер второй
	// и третьей ноги
	FeeRate float64

	// IdlePollInterval - пауза между проверками наличия возможности
	IdlePollInterval time.Duration

	// FillPollInterval - период опроса открытых ордеров
	FillPollInterval time.Duration

	// FillTimeout ограничивает ожидание заполнения одной ноги
	FillTimeout time.Duration

	// ErrorCooldown - пауза после прерванного исполнения
	ErrorCooldown time.Duration
}

// OrderPlacer выставляет маркет-ордер и возвращает его идентификатор.
type OrderPlacer interface {
	PlaceMarketOrder(ctx context.Context, instID, side string, size float64) (string, error)
}

// BestProvider отдаёт лучшую возможность последнего прохода оценки.
type BestProvider interface {
	Best() (market.Opportunity, bool)
}

// Executor - движок последовательного исполнения трёх ног.
//
// Единственная горутина управления: в каждый момент исполняется не
// больше одного треугольника. Заполнение ноги детектируется по
// исчезновению ордера из набора открытых, наполняемого приватным
// каналом.
type Executor struct {
	cfg        ExecutorConfig
	best       BestProvider
	trader     OrderPlacer
	account    *market.AccountState
	book       QuoteStore
	settlement market.CurrencySet
	logger     *zap.Logger

	mu    sync.RWMutex
	state string
}

// NewExecutor создаёт движок исполнения. Книга цен может быть nil -
// тогда исполняются котировки момента квалификации; пустое множество
// валют расчёта отключает балансовую проверку первой ноги.
func NewExecutor(
	cfg ExecutorConfig,
	best BestProvider,
	trader OrderPlacer,
	account *market.AccountState,
	book QuoteStore,
	settlement market.CurrencySet,
	logger *zap.Logger,
) *Executor {
	return &Executor{
		cfg:        cfg,
		best:       best,
		trader:     trader,
		account:    account,
		book:       book,
		settlement: settlement,
		logger:     logger,
		state:      StateIdle,
	}
}

// State возвращает текущее состояние машины исполнения.
func (x *Executor) State() string {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.state
}

// transition выполняет переход машины состояний.
// Недопустимый переход - ошибка программирования, он фатален.
func (x *Executor) transition(to string) {
	x.mu.Lock()
	defer x.mu.Unlock()
	if !CanTransition(x.state, to) {
		x.logger.Panic("invalid state transition",
			zap.String("from", x.state),
			zap.String("to", to))
	}
	x.logger.Info("execution state",
		zap.String("from", x.state),
		zap.String("to", to))
	x.state = to
	RecordExecutorState(to)
}

// reset возвращает машину в idle после терминального состояния.
func (x *Executor) reset() {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.state = StateIdle
	RecordExecutorState(StateIdle)
}

// Run - цикл управления: ожидание возможности, исполнение, пауза.
func (x *Executor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(x.cfg.IdlePollInterval):
		}

		opp, ok := x.best.Best()
		if !ok {
			continue
		}

		// исполняются живые котировки, а не снимок момента квалификации
		if x.book != nil {
			fresh, ok := x.book.Snapshot(opp.Triangle)
			if !ok {
				x.logger.Warn("quotes vanished before execution",
					zap.String("triangle", opp.Triangle.Key()))
				continue
			}
			opp.Quotes = fresh
		}

		if !x.leg1Allowed(opp.Triangle) {
			continue
		}

		if err := x.Execute(ctx, opp); err != nil {
			if ctx.Err() != nil {
				return
			}
			x.logger.Error("execution aborted",
				zap.String("triangle", opp.Triangle.Key()),
				zap.Error(err))

			select {
			case <-ctx.Done():
				return
			case <-time.After(x.cfg.ErrorCooldown):
			}
		}
		x.reset()
	}
}

// leg1Allowed - балансовая проверка первой ноги: платёжная валюта
// должна быть валютой расчёта, а её доступного остатка должно хватить
// на ордер. Проверка чистая: машина состояний не трогается.
func (x *Executor) leg1Allowed(tri market.Triangle) bool {
	if len(x.settlement) == 0 {
		return true
	}
	quote := tri.Leg1.Quote
	if !x.settlement.Contains(quote) {
		x.logger.Info("skipping triangle: leg1 quote is not a settlement currency",
			zap.String("triangle", tri.Key()),
			zap.String("currency", quote))
		return false
	}
	if available := x.account.AvailableBalance(quote); available <= x.cfg.OrderSize {
		x.logger.Info("skipping triangle: insufficient balance for leg1",
			zap.String("currency", quote),
			zap.Float64("available", available),
			zap.Float64("required", x.cfg.OrderSize))
		return false
	}
	return true
}

// Execute исполняет один треугольник: покупка первой ноги, продажа
// второй и третьей. Размер второй ноги считается от размера первой
// по bid2 с вычетом комиссии, третьей - от второй обратно через bid2.
// Любая ошибка любой ноги прерывает исполнение; купленные остатки
// остаются на балансе.
func (x *Executor) Execute(ctx context.Context, opp market.Opportunity) error {
	tri := opp.Triangle
	x.logger.Info("executing triangle",
		zap.String("triangle", tri.Key()),
		zap.Float64("expected_final", opp.Final))

	// нога 1: покупка
	x.transition(StateLeg1Placed)
	if err := x.placeAndWait(ctx, "leg1", tri.Leg1.ID, "buy", x.cfg.OrderSize); err != nil {
		return x.abort(err)
	}
	x.transition(StateLeg1Filled)

	// нога 2: продажа, размер от первой ноги за вычетом комиссии
	leg2Size := utils.RoundToTickSize(x.cfg.OrderSize/opp.Quotes.Bid2*(1-x.cfg.FeeRate), x.cfg.TickSize)
	if leg2Size < x.cfg.MinTradeSize {
		return x.abort(fmt.Errorf("leg2 size %v below minimum %v", leg2Size, x.cfg.MinTradeSize))
	}
	x.transition(StateLeg2Placed)
	if err := x.placeAndWait(ctx, "leg2", tri.Leg2.ID, "sell", leg2Size); err != nil {
		return x.abort(err)
	}
	x.transition(StateLeg2Filled)

	// нога 3: продажа полученного объёма
	leg3Size := utils.RoundToTickSize(leg2Size*opp.Quotes.Bid2*(1-x.cfg.FeeRate), x.cfg.TickSize)
	if leg3Size < x.cfg.MinTradeSize {
		return x.abort(fmt.Errorf("leg3 size %v below minimum %v", leg3Size, x.cfg.MinTradeSize))
	}
	x.transition(StateLeg3Placed)
	if err := x.placeAndWait(ctx, "leg3", tri.Leg3.ID, "sell", leg3Size); err != nil {
		return x.abort(err)
	}

	x.transition(StateCompleted)
	ExecutionsTotal.WithLabelValues("completed").Inc()
	x.logger.Info("triangle completed", zap.String("triangle", tri.Key()))
	return nil
}

func (x *Executor) abort(err error) error {
	x.transition(StateAborted)
	ExecutionsTotal.WithLabelValues("aborted").Inc()
	return err
}

// placeAndWait выставляет ордер ноги и ждёт его заполнения.
func (x *Executor) placeAndWait(ctx context.Context, leg, instID, side string, size float64) error {
	orderID, err := x.trader.PlaceMarketOrder(ctx, instID, side, size)
	if err != nil {
		OrdersPlaced.WithLabelValues(leg, "rejected").Inc()
		return fmt.Errorf("place %s %s: %w", side, instID, err)
	}
	OrdersPlaced.WithLabelValues(leg, "accepted").Inc()

	start := time.Now()
	if err := x.waitFill(ctx, orderID); err != nil {
		return fmt.Errorf("wait fill %s (%s): %w", orderID, instID, err)
	}
	LegFillSeconds.WithLabelValues(leg).Observe(time.Since(start).Seconds())
	return nil
}

// waitFill опрашивает набор открытых ордеров до исчезновения ордера.
// Ожидание ограничено FillTimeout: зависший ордер прерывает
// исполнение вместо вечного цикла.
func (x *Executor) waitFill(ctx context.Context, orderID string) error {
	deadline := time.NewTimer(x.cfg.FillTimeout)
	defer deadline.Stop()
	ticker := time.NewTicker(x.cfg.FillPollInterval)
	defer ticker.Stop()

	for {
		if !x.account.HasOpenOrder(orderID) {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			return fmt.Errorf("order not filled within %v", x.cfg.FillTimeout)
		case <-ticker.C:
		}
	}
}
