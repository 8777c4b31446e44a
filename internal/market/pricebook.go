package market

import (
	"hash/fnv"
	"sync"
)

// Quote - последний top-of-book по одному инструменту.
// Поля nullable до первого наблюдения.
type Quote struct {
	Bid       *float64
	Ask       *float64
	BidVolume *float64
	AskVolume *float64
}

// QuoteUpdate - частичное обновление котировки: nil-поле не трогает
// сохранённое значение (last-write-wins по каждому полю).
type QuoteUpdate struct {
	Bid       *float64
	Ask       *float64
	BidVolume *float64
	AskVolume *float64
}

// LegQuotes - согласованный срез котировок трёх ног треугольника.
// Возвращается только когда все обязательные поля наблюдались.
type LegQuotes struct {
	Bid1, Ask1, Ask1Volume float64
	Bid2, Ask2, Bid2Volume float64
	Bid3, Ask3             float64
}

// PriceBook - конкурентно обновляемая карта инструмент → котировка.
//
// Пишет единственный диспетчер маркет-данных, читают цикл оценки и
// движок исполнения. Шардирование по инструменту убирает contention
// между символами; четвёрка bid/ask/volume из одного сообщения
// применяется атомарно под одним локом шарда, чтобы читатель не
// увидел свежий bid рядом с устаревшим ask из того же сообщения.
type PriceBook struct {
	shards    []*priceShard
	numShards uint32
}

type priceShard struct {
	mu     sync.RWMutex
	quotes map[string]Quote
}

const defaultPriceShards = 16

// NewPriceBook создаёт книгу цен с указанным числом шардов.
// При numShards <= 0 используется значение по умолчанию.
func NewPriceBook(numShards int) *PriceBook {
	if numShards <= 0 {
		numShards = defaultPriceShards
	}

	shards := make([]*priceShard, numShards)
	for i := range shards {
		shards[i] = &priceShard{quotes: make(map[string]Quote)}
	}

	return &PriceBook{shards: shards, numShards: uint32(numShards)}
}

func (pb *PriceBook) shardFor(instID string) *priceShard {
	h := fnv.New32a()
	h.Write([]byte(instID))
	return pb.shards[h.Sum32()%pb.numShards]
}

// Update применяет частичное обновление котировки инструмента.
// Идемпотентный upsert: повторное применение того же обновления
// не меняет состояние.
func (pb *PriceBook) Update(instID string, upd QuoteUpdate) {
	shard := pb.shardFor(instID)

	shard.mu.Lock()
	defer shard.mu.Unlock()

	q := shard.quotes[instID]
	if upd.Bid != nil {
		v := *upd.Bid
		q.Bid = &v
	}
	if upd.Ask != nil {
		v := *upd.Ask
		q.Ask = &v
	}
	if upd.BidVolume != nil {
		v := *upd.BidVolume
		q.BidVolume = &v
	}
	if upd.AskVolume != nil {
		v := *upd.AskVolume
		q.AskVolume = &v
	}
	shard.quotes[instID] = q
}

// Get возвращает текущую котировку инструмента (копию).
func (pb *PriceBook) Get(instID string) (Quote, bool) {
	shard := pb.shardFor(instID)

	shard.mu.RLock()
	defer shard.mu.RUnlock()

	q, ok := shard.quotes[instID]
	return q, ok
}

// Snapshot возвращает котировки трёх ног треугольника, либо false,
// если хотя бы одно обязательное поле ещё не наблюдалось.
//
// Обязательные поля: bid/ask/askVolume первой ноги, bid/ask/bidVolume
// второй, bid/ask третьей (объёмы третьей ноги не участвуют в
// ликвидностных гейтах).
func (pb *PriceBook) Snapshot(t Triangle) (LegQuotes, bool) {
	q1, ok1 := pb.Get(t.Leg1.ID)
	q2, ok2 := pb.Get(t.Leg2.ID)
	q3, ok3 := pb.Get(t.Leg3.ID)
	if !ok1 || !ok2 || !ok3 {
		return LegQuotes{}, false
	}

	if q1.Bid == nil || q1.Ask == nil || q1.AskVolume == nil {
		return LegQuotes{}, false
	}
	if q2.Bid == nil || q2.Ask == nil || q2.BidVolume == nil {
		return LegQuotes{}, false
	}
	if q3.Bid == nil || q3.Ask == nil {
		return LegQuotes{}, false
	}

	return LegQuotes{
		Bid1: *q1.Bid, Ask1: *q1.Ask, Ask1Volume: *q1.AskVolume,
		Bid2: *q2.Bid, Ask2: *q2.Ask, Bid2Volume: *q2.BidVolume,
		Bid3: *q3.Bid, Ask3: *q3.Ask,
	}, true
}

// Float64Ptr - вспомогательная функция для построения QuoteUpdate.
func Float64Ptr(v float64) *float64 {
	return &v
}
