package utils

import "math"

// math.go - математические утилиты для торговых расчётов

// RoundToTickSize округляет объём ордера ВНИЗ до ближайшего кратного tickSize.
//
// Округление вниз гарантирует, что ордер не превысит доступные средства.
// Если tickSize <= 0, возвращает исходное значение.
//
// Примеры:
//   - RoundToTickSize(0.123456, 0.0001) = 0.1234
//   - RoundToTickSize(1.999, 0.01) = 1.99
func RoundToTickSize(value, tickSize float64) float64 {
	if tickSize <= 0 {
		return value
	}
	return math.Floor(value/tickSize) * tickSize
}

// ProfitPercent рассчитывает доходность в процентах от стартового баланса.
//
// Возвращает 0 если initial <= 0 (защита от деления на ноль).
func ProfitPercent(initial, final float64) float64 {
	if initial <= 0 {
		return 0
	}
	return (final - initial) / initial * 100
}
