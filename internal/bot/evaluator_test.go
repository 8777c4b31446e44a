package bot

import (
	"testing"
	"time"

	"triarb/internal/market"
	"triarb/pkg/logger"
)

func testEvalConfig() EvaluatorConfig {
	return EvaluatorConfig{
		InitialBalance:   1000,
		ProfitThreshold:  1010,
		RequiredNotional: 200,
		Interval:         time.Second,
	}
}

func evalTriangle(t *testing.T) market.Triangle {
	t.Helper()
	p := func(id string) market.Instrument {
		inst, err := market.ParseInstrument(id)
		if err != nil {
			t.Fatalf("parse %s: %v", id, err)
		}
		return inst
	}
	return market.Triangle{Leg1: p("SOL-BTC"), Leg2: p("BTC-USDT"), Leg3: p("SOL-USDT")}
}

func TestEvaluateTriangle(t *testing.T) {
	cfg := testEvalConfig()

	tests := []struct {
		name      string
		quotes    market.LegQuotes
		wantOK    bool
		wantFinal float64
	}{
		{
			// 1000 / 0.0025 = 400000; * 1.2 = 480000; * 1 = 480000
			name: "profitable chain qualifies",
			quotes: market.LegQuotes{
				Ask1: 0.0025, Ask1Volume: 1e9,
				Bid2: 1.2, Bid2Volume: 1e9,
				Bid3: 1,
				Bid1: 0.002, Ask2: 1.3, Ask3: 1.1,
			},
			wantOK:    true,
			wantFinal: 480000,
		},
		{
			// 1000 / 1 * 0.99 * 1 = 990 - убыток, не квалифицируется
			name: "losing chain rejected",
			quotes: market.LegQuotes{
				Ask1: 1, Ask1Volume: 1e9,
				Bid2: 0.99, Bid2Volume: 1e9,
				Bid3: 1,
				Bid1: 0.9, Ask2: 1.0, Ask3: 1.1,
			},
			wantOK: false,
		},
		{
			// ровно на пороге - не квалифицируется (строгое сравнение)
			name: "exactly at threshold rejected",
			quotes: market.LegQuotes{
				Ask1: 1, Ask1Volume: 1e9,
				Bid2: 1.01, Bid2Volume: 1e9,
				Bid3: 1,
				Bid1: 0.9, Ask2: 1.1, Ask3: 1.1,
			},
			wantOK: false,
		},
		{
			// notional верхнего уровня ask1 меньше требуемого:
			// 100 * 1 = 100 < 200
			name: "thin leg1 ask rejected",
			quotes: market.LegQuotes{
				Ask1: 1, Ask1Volume: 100,
				Bid2: 1.2, Bid2Volume: 1e9,
				Bid3: 1,
			},
			wantOK: false,
		},
		{
			// bid2 несёт 150 * 1.2 = 180 < 200
			name: "thin leg2 bid rejected",
			quotes: market.LegQuotes{
				Ask1: 1, Ask1Volume: 1e9,
				Bid2: 1.2, Bid2Volume: 150,
				Bid3: 1,
			},
			wantOK: false,
		},
		{
			name: "zero ask volume rejected",
			quotes: market.LegQuotes{
				Ask1: 1, Ask1Volume: 0,
				Bid2: 1.2, Bid2Volume: 1e9,
				Bid3: 1,
			},
			wantOK: false,
		},
		{
			name: "zero price rejected",
			quotes: market.LegQuotes{
				Ask1: 0, Ask1Volume: 1e9,
				Bid2: 1.2, Bid2Volume: 1e9,
				Bid3: 1,
			},
			wantOK: false,
		},
	}

	tri := evalTriangle(t)
	now := time.Now()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opp, ok := EvaluateTriangle(tri, tt.quotes, cfg, now)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if opp.Final != tt.wantFinal {
				t.Errorf("final = %v, want %v", opp.Final, tt.wantFinal)
			}
			if opp.Initial != cfg.InitialBalance {
				t.Errorf("initial = %v, want %v", opp.Initial, cfg.InitialBalance)
			}
		})
	}
}

func TestEvaluatorPublishesBest(t *testing.T) {
	tri := evalTriangle(t)
	book := market.NewPriceBook(0)

	book.Update("SOL-BTC", market.QuoteUpdate{
		Bid: market.Float64Ptr(0.002), Ask: market.Float64Ptr(0.0025),
		AskVolume: market.Float64Ptr(1e9),
	})
	book.Update("BTC-USDT", market.QuoteUpdate{
		Bid: market.Float64Ptr(1.2), Ask: market.Float64Ptr(1.3),
		BidVolume: market.Float64Ptr(1e9),
	})
	book.Update("SOL-USDT", market.QuoteUpdate{
		Bid: market.Float64Ptr(1), Ask: market.Float64Ptr(1.1),
	})

	ev := NewEvaluator(testEvalConfig(), []market.Triangle{tri}, book, nil, nil, logger.NewNop())

	if _, ok := ev.Best(); ok {
		t.Error("best should be empty before first pass")
	}

	opps := ev.EvaluateOnce(time.Now())
	if len(opps) != 1 {
		t.Fatalf("expected 1 opportunity, got %d", len(opps))
	}

	best, ok := ev.Best()
	if !ok {
		t.Fatal("expected a published best opportunity")
	}
	if best.Final != 480000 {
		t.Errorf("best final = %v, want 480000", best.Final)
	}
}

func TestEvaluatorClearsBestWhenNothingQualifies(t *testing.T) {
	tri := evalTriangle(t)
	book := market.NewPriceBook(0)

	book.Update("SOL-BTC", market.QuoteUpdate{
		Bid: market.Float64Ptr(0.002), Ask: market.Float64Ptr(0.0025),
		AskVolume: market.Float64Ptr(1e9),
	})
	book.Update("BTC-USDT", market.QuoteUpdate{
		Bid: market.Float64Ptr(1.2), Ask: market.Float64Ptr(1.3),
		BidVolume: market.Float64Ptr(1e9),
	})
	book.Update("SOL-USDT", market.QuoteUpdate{
		Bid: market.Float64Ptr(1), Ask: market.Float64Ptr(1.1),
	})

	ev := NewEvaluator(testEvalConfig(), []market.Triangle{tri}, book, nil, nil, logger.NewNop())
	ev.EvaluateOnce(time.Now())
	if _, ok := ev.Best(); !ok {
		t.Fatal("expected best after profitable pass")
	}

	// рынок ушёл: цепочка стала убыточной
	book.Update("BTC-USDT", market.QuoteUpdate{Bid: market.Float64Ptr(0.000001)})
	ev.EvaluateOnce(time.Now())
	if _, ok := ev.Best(); ok {
		t.Error("best should be cleared after a pass with no qualifying triangles")
	}
}

func TestEvaluatorSkipsTrianglesWithoutQuotes(t *testing.T) {
	tri := evalTriangle(t)
	book := market.NewPriceBook(0) // пустая книга

	ev := NewEvaluator(testEvalConfig(), []market.Triangle{tri}, book, nil, nil, logger.NewNop())
	opps := ev.EvaluateOnce(time.Now())
	if len(opps) != 0 {
		t.Errorf("expected no opportunities without quotes, got %d", len(opps))
	}
}
