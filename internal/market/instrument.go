// Package market содержит доменную модель арбитража: каталог инструментов,
// валютные треугольники, книгу цен и состояние аккаунта.
package market

import (
	"fmt"
	"sort"
	"strings"
)

// Instrument - торговый инструмент (валютная пара) биржи.
// Неизменяем после загрузки каталога.
type Instrument struct {
	ID    string // идентификатор вида "BASE-QUOTE", например "BTC-USDT"
	Base  string
	Quote string
}

// ParseInstrument разбирает идентификатор "BASE-QUOTE".
func ParseInstrument(id string) (Instrument, error) {
	parts := strings.Split(id, "-")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return Instrument{}, fmt.Errorf("invalid instrument id %q", id)
	}
	return Instrument{ID: id, Base: parts[0], Quote: parts[1]}, nil
}

// Catalog - набор торгуемых инструментов биржи.
// Загружается один раз при старте и далее не меняется.
type Catalog struct {
	byID  map[string]Instrument
	pairs []string // отсортированные идентификаторы
}

// NewCatalog строит каталог из списка инструментов.
// Дубликаты по идентификатору схлопываются.
func NewCatalog(instruments []Instrument) *Catalog {
	byID := make(map[string]Instrument, len(instruments))
	for _, inst := range instruments {
		byID[inst.ID] = inst
	}

	pairs := make([]string, 0, len(byID))
	for id := range byID {
		pairs = append(pairs, id)
	}
	sort.Strings(pairs)

	return &Catalog{byID: byID, pairs: pairs}
}

// Has проверяет наличие инструмента в каталоге.
func (c *Catalog) Has(id string) bool {
	_, ok := c.byID[id]
	return ok
}

// Get возвращает инструмент по идентификатору.
func (c *Catalog) Get(id string) (Instrument, bool) {
	inst, ok := c.byID[id]
	return inst, ok
}

// Pairs возвращает отсортированный список идентификаторов.
func (c *Catalog) Pairs() []string {
	out := make([]string, len(c.pairs))
	copy(out, c.pairs)
	return out
}

// Len возвращает количество инструментов.
func (c *Catalog) Len() int {
	return len(c.byID)
}

// Instruments возвращает все инструменты в порядке идентификаторов.
func (c *Catalog) Instruments() []Instrument {
	out := make([]Instrument, 0, len(c.pairs))
	for _, id := range c.pairs {
		out = append(out, c.byID[id])
	}
	return out
}
