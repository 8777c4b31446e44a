// Package bot содержит торговое ядро: оценку треугольников и
// последовательное исполнение трёх ног.
package bot

// Состояния исполнения треугольника
const (
	StateIdle       = "idle"
	StateLeg1Placed = "leg1_placed"
	StateLeg1Filled = "leg1_filled"
	StateLeg2Placed = "leg2_placed"
	StateLeg2Filled = "leg2_filled"
	StateLeg3Placed = "leg3_placed"
	StateCompleted  = "completed"
	StateAborted    = "aborted"
)

// ValidTransitions определяет допустимые переходы между состояниями.
// Ноги исполняются строго последовательно; aborted достижим из любого
// нетерминального состояния, кроме idle.
var ValidTransitions = map[string][]string{
	StateIdle:       {StateLeg1Placed},
	StateLeg1Placed: {StateLeg1Filled, StateAborted},
	StateLeg1Filled: {StateLeg2Placed, StateAborted},
	StateLeg2Placed: {StateLeg2Filled, StateAborted},
	StateLeg2Filled: {StateLeg3Placed, StateAborted},
	StateLeg3Placed: {StateCompleted, StateAborted},
	StateCompleted:  {},
	StateAborted:    {},
}

// CanTransition проверяет допустимость перехода
func CanTransition(from, to string) bool {
	allowed, ok := ValidTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// IsTerminal возвращает true для конечных состояний исполнения
func IsTerminal(s string) bool {
	return s == StateCompleted || s == StateAborted
}

// StateInfo возвращает описание состояния
func StateInfo(s string) string {
	switch s {
	case StateIdle:
		return "Ожидание возможности"
	case StateLeg1Placed:
		return "Ордер первой ноги выставлен"
	case StateLeg1Filled:
		return "Первая нога заполнена"
	case StateLeg2Placed:
		return "Ордер второй ноги выставлен"
	case StateLeg2Filled:
		return "Вторая нога заполнена"
	case StateLeg3Placed:
		return "Ордер третьей ноги выставлен"
	case StateCompleted:
		return "Треугольник исполнен"
	case StateAborted:
		return "Исполнение прервано"
	default:
		return "Неизвестное состояние"
	}
}
