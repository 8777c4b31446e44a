package repository

import (
	"database/sql"
	"time"

	"triarb/internal/market"
)

// InstrumentRepository - работа с таблицей instruments
type InstrumentRepository struct {
	db *sql.DB
}

// NewInstrumentRepository создает новый экземпляр репозитория
func NewInstrumentRepository(db *sql.DB) *InstrumentRepository {
	return &InstrumentRepository{db: db}
}

// ReplaceAll заменяет каталог инструментов целиком.
// Вызывается после загрузки каталога при старте.
func (r *InstrumentRepository) ReplaceAll(instruments []market.Instrument) error {
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM instruments`); err != nil {
		return err
	}

	query := `
		INSERT INTO instruments (inst_id, base_ccy, quote_ccy, updated_at)
		VALUES ($1, $2, $3, $4)`

	now := time.Now()
	for _, inst := range instruments {
		if _, err := tx.Exec(query, inst.ID, inst.Base, inst.Quote, now); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// Count возвращает количество инструментов
func (r *InstrumentRepository) Count() (int, error) {
	var count int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM instruments`).Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}
