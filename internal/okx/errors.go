package okx

import "fmt"

// APIError - ошибка уровня API биржи: ненулевой код в теле ответа
// при исправном транспорте.
type APIError struct {
	Op   string // операция: "order", "instruments", "login"
	Code string
	Msg  string
	Err  error
}

func (e *APIError) Error() string {
	if e.Msg != "" {
		return fmt.Sprintf("okx %s: code=%s msg=%s", e.Op, e.Code, e.Msg)
	}
	return fmt.Sprintf("okx %s: code=%s", e.Op, e.Code)
}

func (e *APIError) Unwrap() error {
	return e.Err
}
