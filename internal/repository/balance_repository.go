package repository

import (
	"database/sql"
	"time"

	"triarb/internal/market"
)

// BalanceRepository - работа с таблицей balances
type BalanceRepository struct {
	db *sql.DB
}

// NewBalanceRepository создает новый экземпляр репозитория
func NewBalanceRepository(db *sql.DB) *BalanceRepository {
	return &BalanceRepository{db: db}
}

// Upsert перезаписывает баланс валюты
func (r *BalanceRepository) Upsert(b market.Balance) error {
	query := `
		INSERT INTO balances (currency, available, frozen, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (currency)
		DO UPDATE SET available = $2, frozen = $3, updated_at = $4`

	_, err := r.db.Exec(query, b.Currency, b.Available, b.Frozen, time.Now())
	return err
}

// GetAll возвращает все известные балансы
func (r *BalanceRepository) GetAll() ([]market.Balance, error) {
	query := `
		SELECT currency, available, frozen, updated_at
		FROM balances
		ORDER BY currency`

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var balances []market.Balance
	for rows.Next() {
		var b market.Balance
		if err := rows.Scan(&b.Currency, &b.Available, &b.Frozen, &b.UpdatedAt); err != nil {
			return nil, err
		}
		balances = append(balances, b)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return balances, nil
}
