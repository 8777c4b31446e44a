package market

import "sort"

// Triangle - цикл из трёх инструментов, возвращающий к стартовой валюте.
// Неизменяем после фильтрации; несколько треугольников могут ссылаться
// на один инструмент.
type Triangle struct {
	Leg1 Instrument
	Leg2 Instrument
	Leg3 Instrument
}

// Key возвращает идентичность треугольника по тройке ног.
func (t Triangle) Key() string {
	return t.Leg1.ID + "|" + t.Leg2.ID + "|" + t.Leg3.ID
}

// Pairs возвращает идентификаторы трёх ног.
func (t Triangle) Pairs() [3]string {
	return [3]string{t.Leg1.ID, t.Leg2.ID, t.Leg3.ID}
}

// CurrencySet - множество валютных кодов.
type CurrencySet map[string]struct{}

// NewCurrencySet строит множество из списка кодов.
func NewCurrencySet(codes []string) CurrencySet {
	s := make(CurrencySet, len(codes))
	for _, c := range codes {
		s[c] = struct{}{}
	}
	return s
}

// Contains проверяет вхождение валюты.
func (s CurrencySet) Contains(code string) bool {
	_, ok := s[code]
	return ok
}

// GraphRules - правила построения и фильтрации треугольников.
type GraphRules struct {
	// Excluded - исключённые (фиатные) валюты: треугольник с такой
	// валютой на любой ноге отбрасывается
	Excluded CurrencySet

	// Settlement - валюты расчёта (финальные конвертации)
	Settlement CurrencySet

	// Anchors - валюты, которыми треугольник должен замыкаться
	// на этапе генерации
	Anchors CurrencySet

	// Bridge - крупные активы, допустимые как обе валюты средней ноги
	Bridge CurrencySet
}

// BuildTriangles генерирует все валютные треугольники из каталога.
//
// Для каждой упорядоченной тройки различных валют (a, b, c) тройка
// принимается, если инструменты связывают a↔b, b↔c и c↔a, валюта c
// входит в Anchors, и ни одна из валют не исключена. Каждая нога
// разрешается в ту ориентацию (X-Y или Y-X), которая реально есть
// в каталоге.
//
// Результат детерминирован: валюты обходятся в отсортированном
// порядке, дубликаты по тройке ног исключаются. Сложность O(C³)
// по числу валют - приемлемо, валют десятки.
func BuildTriangles(catalog *Catalog, rules GraphRules) []Triangle {
	adjacency := make(map[string]CurrencySet)
	currencySet := make(CurrencySet)

	for _, inst := range catalog.Instruments() {
		if rules.Excluded.Contains(inst.Base) || rules.Excluded.Contains(inst.Quote) {
			continue
		}
		currencySet[inst.Base] = struct{}{}
		currencySet[inst.Quote] = struct{}{}

		if adjacency[inst.Base] == nil {
			adjacency[inst.Base] = make(CurrencySet)
		}
		if adjacency[inst.Quote] == nil {
			adjacency[inst.Quote] = make(CurrencySet)
		}
		adjacency[inst.Base][inst.Quote] = struct{}{}
		adjacency[inst.Quote][inst.Base] = struct{}{}
	}

	currencies := make([]string, 0, len(currencySet))
	for c := range currencySet {
		currencies = append(currencies, c)
	}
	sort.Strings(currencies)

	var triangles []Triangle
	seen := make(map[string]struct{})

	for _, a := range currencies {
		for _, b := range currencies {
			if b == a {
				continue
			}
			if !adjacency[a].Contains(b) {
				continue
			}
			for _, c := range currencies {
				if c == a || c == b {
					continue
				}
				if !rules.Anchors.Contains(c) {
					continue
				}
				if !adjacency[b].Contains(c) || !adjacency[c].Contains(a) {
					continue
				}

				leg1, ok := resolveLeg(catalog, a, b)
				if !ok {
					continue
				}
				leg2, ok := resolveLeg(catalog, b, c)
				if !ok {
					continue
				}
				leg3, ok := resolveLeg(catalog, c, a)
				if !ok {
					continue
				}

				tri := Triangle{Leg1: leg1, Leg2: leg2, Leg3: leg3}
				if _, dup := seen[tri.Key()]; dup {
					continue
				}
				seen[tri.Key()] = struct{}{}
				triangles = append(triangles, tri)
			}
		}
	}

	return triangles
}

// resolveLeg находит в каталоге инструмент, связывающий две валюты,
// в той ориентации, которая реально существует.
func resolveLeg(catalog *Catalog, x, y string) (Instrument, bool) {
	if inst, ok := catalog.Get(x + "-" + y); ok {
		return inst, true
	}
	if inst, ok := catalog.Get(y + "-" + x); ok {
		return inst, true
	}
	return Instrument{}, false
}

// FilterTriangles применяет бизнес-правила ко второму проходу.
//
// Треугольник остаётся, если:
//   - хотя бы одна нога затрагивает валюту расчёта И обе валюты
//     третьей ноги являются валютами расчёта, ИЛИ
//   - обе валюты второй ноги входят в набор bridge-активов.
//
// Треугольник с исключённой валютой на любой ноге отбрасывается
// безусловно. Двухэтапная схема намеренная: генерация даёт связность
// графа с замыканием на валюту расчёта, фильтрация - бизнес-пригодность
// (ликвидность и удобство расчёта).
func FilterTriangles(triangles []Triangle, rules GraphRules) []Triangle {
	valid := make([]Triangle, 0, len(triangles))

	for _, t := range triangles {
		currencies := [6]string{
			t.Leg1.Base, t.Leg1.Quote,
			t.Leg2.Base, t.Leg2.Quote,
			t.Leg3.Base, t.Leg3.Quote,
		}

		excluded := false
		touchesSettlement := false
		for _, c := range currencies {
			if rules.Excluded.Contains(c) {
				excluded = true
				break
			}
			if rules.Settlement.Contains(c) {
				touchesSettlement = true
			}
		}
		if excluded {
			continue
		}

		lastLegSettlement := rules.Settlement.Contains(t.Leg3.Base) &&
			rules.Settlement.Contains(t.Leg3.Quote)

		secondLegBridge := rules.Bridge.Contains(t.Leg2.Base) &&
			rules.Bridge.Contains(t.Leg2.Quote)

		if (touchesSettlement && lastLegSettlement) || secondLegBridge {
			valid = append(valid, t)
		}
	}

	return valid
}

// UniquePairs возвращает отсортированный список уникальных инструментов,
// задействованных в треугольниках. Используется для подписки на
// маркет-данные.
func UniquePairs(triangles []Triangle) []string {
	set := make(map[string]struct{})
	for _, t := range triangles {
		set[t.Leg1.ID] = struct{}{}
		set[t.Leg2.ID] = struct{}{}
		set[t.Leg3.ID] = struct{}{}
	}

	pairs := make([]string, 0, len(set))
	for p := range set {
		pairs = append(pairs, p)
	}
	sort.Strings(pairs)
	return pairs
}

// SplitPairs разбивает список пар на n частей для шардирования
// подписок между несколькими WebSocket соединениями.
func SplitPairs(pairs []string, n int) [][]string {
	if n < 1 {
		n = 1
	}
	if len(pairs) == 0 {
		return nil
	}

	chunkSize := (len(pairs) + n - 1) / n
	var chunks [][]string
	for i := 0; i < len(pairs); i += chunkSize {
		end := i + chunkSize
		if end > len(pairs) {
			end = len(pairs)
		}
		chunks = append(chunks, pairs[i:end])
	}
	return chunks
}
