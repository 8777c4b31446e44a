package bot

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"triarb/internal/market"
	"triarb/pkg/utils"
)

// EvaluatorConfig - параметры цикла оценки.
type EvaluatorConfig struct {
	// InitialBalance - условный стартовый объём цепочки конвертаций
	InitialBalance float64

	// ProfitThreshold - абсолютный порог: возможность квалифицируется,
	// когда финальный объём строго больше порога
	ProfitThreshold float64

	// RequiredNotional - минимальный notional на верхнем уровне книги
	// первой и второй ноги
	RequiredNotional float64

	// Interval между проходами оценки
	Interval time.Duration
}

// QuoteStore отдаёт согласованный срез котировок треугольника.
type QuoteStore interface {
	Snapshot(t market.Triangle) (market.LegQuotes, bool)
}

// TriangleQuoteWriter персистит котировки треугольника.
type TriangleQuoteWriter interface {
	UpdateQuotes(t market.Triangle, q market.LegQuotes) error
}

// OpportunityWriter персистит результат прохода оценки.
type OpportunityWriter interface {
	ReplaceAll(opportunities []market.Opportunity) error
}

// Evaluator периодически оценивает рабочий набор треугольников и
// публикует лучшую возможность для движка исполнения.
type Evaluator struct {
	cfg       EvaluatorConfig
	triangles []market.Triangle
	book      QuoteStore
	triRepo   TriangleQuoteWriter
	oppRepo   OpportunityWriter
	logger    *zap.Logger

	mu   sync.RWMutex
	best *market.Opportunity
}

// NewEvaluator создаёт оценщик. Репозитории могут быть nil - тогда
// результаты не персистятся.
func NewEvaluator(
	cfg EvaluatorConfig,
	triangles []market.Triangle,
	book QuoteStore,
	triRepo TriangleQuoteWriter,
	oppRepo OpportunityWriter,
	logger *zap.Logger,
) *Evaluator {
	TrianglesActive.Set(float64(len(triangles)))
	return &Evaluator{
		cfg:       cfg,
		triangles: triangles,
		book:      book,
		triRepo:   triRepo,
		oppRepo:   oppRepo,
		logger:    logger,
	}
}

// Best возвращает лучшую возможность последнего прохода.
func (e *Evaluator) Best() (market.Opportunity, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.best == nil {
		return market.Opportunity{}, false
	}
	return *e.best, true
}

// Run запускает цикл оценки до отмены контекста.
func (e *Evaluator) Run(ctx context.Context) {
	ticker := time.NewTicker(e.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.EvaluateOnce(time.Now())
		}
	}
}

// EvaluateOnce выполняет один проход по всем треугольникам.
//
// Треугольники без полного среза котировок пропускаются. Котировки
// оценённых треугольников персистятся; набор возможностей заменяется
// результатом прохода целиком - пустой проход очищает и таблицу,
// и опубликованную лучшую возможность.
func (e *Evaluator) EvaluateOnce(now time.Time) []market.Opportunity {
	EvaluationPasses.Inc()

	var opportunities []market.Opportunity
	for _, tri := range e.triangles {
		quotes, ok := e.book.Snapshot(tri)
		if !ok {
			RecordEvaluationOutcome("no_quotes")
			e.logger.Debug("triangle skipped: incomplete quotes",
				zap.String("triangle", tri.Key()))
			continue
		}

		if e.triRepo != nil {
			if err := e.triRepo.UpdateQuotes(tri, quotes); err != nil {
				e.logger.Warn("persist triangle quotes failed",
					zap.String("triangle", tri.Key()),
					zap.Error(err))
			}
		}

		opp, ok := EvaluateTriangle(tri, quotes, e.cfg, now)
		if !ok {
			RecordEvaluationOutcome("rejected")
			e.logger.Debug("triangle evaluated",
				zap.String("triangle", tri.Key()))
			continue
		}
		RecordEvaluationOutcome("qualified")
		e.logger.Info("triangle qualifies",
			zap.String("triangle", tri.Key()),
			zap.Float64("final", opp.Final),
			zap.Float64("profit", opp.Profit()),
			zap.Float64("profit_percent", utils.ProfitPercent(opp.Initial, opp.Final)))
		opportunities = append(opportunities, opp)
	}

	if e.oppRepo != nil {
		if err := e.oppRepo.ReplaceAll(opportunities); err != nil {
			e.logger.Warn("persist opportunities failed", zap.Error(err))
		}
	}

	e.publishBest(opportunities)
	return opportunities
}

func (e *Evaluator) publishBest(opportunities []market.Opportunity) {
	var best *market.Opportunity
	for i := range opportunities {
		if best == nil || opportunities[i].Profit() > best.Profit() {
			best = &opportunities[i]
		}
	}

	e.mu.Lock()
	e.best = best
	e.mu.Unlock()

	if best != nil {
		BestProfit.Set(best.Profit())
		e.logger.Info("best opportunity",
			zap.String("triangle", best.Triangle.Key()),
			zap.Float64("final", best.Final),
			zap.Float64("profit", best.Profit()),
			zap.Float64("profit_percent", utils.ProfitPercent(best.Initial, best.Final)))
	} else {
		BestProfit.Set(0)
	}
}

// EvaluateTriangle прогоняет условный объём через цепочку конвертаций
// и применяет ликвидностные гейты.
//
// Цепочка: step1 = initial / ask1 (покупка первой ноги),
// step2 = step1 * bid2 (продажа второй), final = step2 * bid3
// (продажа третьей). Гейты: верхний уровень ask первой ноги и bid
// второй должны нести объём не меньше RequiredNotional в пересчёте
// по своей цене; нулевые объёмы отсекаются. Возможность
// квалифицируется при final строго больше порога.
func EvaluateTriangle(tri market.Triangle, q market.LegQuotes, cfg EvaluatorConfig, now time.Time) (market.Opportunity, bool) {
	if q.Ask1 <= 0 || q.Bid2 <= 0 || q.Bid3 <= 0 {
		return market.Opportunity{}, false
	}
	if q.Ask1Volume <= 0 || q.Bid2Volume <= 0 {
		return market.Opportunity{}, false
	}
	if q.Ask1Volume < cfg.RequiredNotional/q.Ask1 {
		return market.Opportunity{}, false
	}
	if q.Bid2Volume < cfg.RequiredNotional/q.Bid2 {
		return market.Opportunity{}, false
	}

	step1 := cfg.InitialBalance / q.Ask1
	step2 := step1 * q.Bid2
	final := step2 * q.Bid3

	if final <= cfg.ProfitThreshold {
		return market.Opportunity{}, false
	}

	return market.Opportunity{
		Triangle:    tri,
		Quotes:      q,
		Initial:     cfg.InitialBalance,
		Step1:       step1,
		Step2:       step2,
		Final:       final,
		EvaluatedAt: now,
	}, true
}
