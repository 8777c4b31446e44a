package market

import "time"

// Opportunity - оценённый треугольник: цепочка конвертаций условного
// начального объёма через три ноги.
type Opportunity struct {
	Triangle Triangle
	Quotes   LegQuotes

	// Цепочка конвертаций
	Initial float64 // условный стартовый объём в валюте расчёта
	Step1   float64 // после покупки первой ноги: Initial / Ask1
	Step2   float64 // после продажи второй ноги: Step1 * Bid2
	Final   float64 // после продажи третьей ноги: Step2 * Bid3

	EvaluatedAt time.Time
}

// Profit возвращает абсолютную прибыль цепочки.
func (o Opportunity) Profit() float64 {
	return o.Final - o.Initial
}
