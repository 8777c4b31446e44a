package market

import (
	"sync"
	"time"
)

// Balance - баланс одной валюты на аккаунте.
type Balance struct {
	Currency  string
	Available float64
	Frozen    float64
	UpdatedAt time.Time
}

// OpenOrder - открытый ордер, отражённый из приватного канала биржи.
type OpenOrder struct {
	OrderID      string
	InstrumentID string
	Side         string
	Price        float64
	Size         float64
	CreatedAt    time.Time
}

// AccountState - отражение состояния аккаунта биржи: балансы и открытые
// ордера. Пишет диспетчер приватного канала, читает движок исполнения
// (детекция заполнения ордера по исчезновению его из набора открытых).
type AccountState struct {
	mu       sync.RWMutex
	balances map[string]Balance
	orders   map[string]OpenOrder
}

// NewAccountState создаёт пустое состояние аккаунта.
func NewAccountState() *AccountState {
	return &AccountState{
		balances: make(map[string]Balance),
		orders:   make(map[string]OpenOrder),
	}
}

// UpsertBalance перезаписывает баланс валюты. Идемпотентен.
func (a *AccountState) UpsertBalance(b Balance) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.balances[b.Currency] = b
}

// AvailableBalance возвращает доступный баланс валюты,
// 0 - если валюта не наблюдалась.
func (a *AccountState) AvailableBalance(currency string) float64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.balances[currency].Available
}

// Balances возвращает копию всех известных балансов.
func (a *AccountState) Balances() []Balance {
	a.mu.RLock()
	defer a.mu.RUnlock()

	out := make([]Balance, 0, len(a.balances))
	for _, b := range a.balances {
		out = append(out, b)
	}
	return out
}

// RecordOpenOrder запоминает открытый ордер. Повторное событие по тому же
// идентификатору перезаписывает запись.
func (a *AccountState) RecordOpenOrder(o OpenOrder) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.orders[o.OrderID] = o
}

// ClearOrder удаляет ордер из набора открытых (заполнен или отменён).
// Удаление несуществующего ордера - no-op.
func (a *AccountState) ClearOrder(orderID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.orders, orderID)
}

// HasOpenOrder проверяет, числится ли ордер открытым.
func (a *AccountState) HasOpenOrder(orderID string) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	_, ok := a.orders[orderID]
	return ok
}

// OpenOrders возвращает копию набора открытых ордеров.
func (a *AccountState) OpenOrders() []OpenOrder {
	a.mu.RLock()
	defer a.mu.RUnlock()

	out := make([]OpenOrder, 0, len(a.orders))
	for _, o := range a.orders {
		out = append(out, o)
	}
	return out
}
