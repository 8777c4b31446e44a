package repository

import (
	"database/sql"

	"triarb/internal/market"
)

// OrderRepository - работа с таблицей open_orders.
// Таблица отражает текущий набор открытых ордеров: live-события
// добавляют запись, заполнение или отмена удаляют её.
type OrderRepository struct {
	db *sql.DB
}

// NewOrderRepository создает новый экземпляр репозитория
func NewOrderRepository(db *sql.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// Upsert записывает открытый ордер
func (r *OrderRepository) Upsert(o market.OpenOrder) error {
	query := `
		INSERT INTO open_orders (order_id, inst_id, side, price, size, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (order_id)
		DO UPDATE SET inst_id = $2, side = $3, price = $4, size = $5`

	_, err := r.db.Exec(query, o.OrderID, o.InstrumentID, o.Side, o.Price, o.Size, o.CreatedAt)
	return err
}

// Delete удаляет ордер из набора открытых.
// Отсутствие записи не является ошибкой: событие о заполнении могло
// прийти раньше live-события.
func (r *OrderRepository) Delete(orderID string) error {
	_, err := r.db.Exec(`DELETE FROM open_orders WHERE order_id = $1`, orderID)
	return err
}

// DeleteAll очищает набор открытых ордеров.
// Вызывается при старте: записи прошлого запуска устарели.
func (r *OrderRepository) DeleteAll() error {
	_, err := r.db.Exec(`DELETE FROM open_orders`)
	return err
}

// GetAll возвращает все открытые ордера
func (r *OrderRepository) GetAll() ([]market.OpenOrder, error) {
	query := `
		SELECT order_id, inst_id, side, price, size, created_at
		FROM open_orders
		ORDER BY created_at`

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []market.OpenOrder
	for rows.Next() {
		var o market.OpenOrder
		if err := rows.Scan(&o.OrderID, &o.InstrumentID, &o.Side, &o.Price, &o.Size, &o.CreatedAt); err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return orders, nil
}
