package repository

import (
	"database/sql"
	"errors"
	"time"

	"triarb/internal/market"
)

// Ошибки репозитория треугольников
var (
	ErrTriangleNotFound = errors.New("triangle not found")
)

// TriangleRepository - работа с таблицей triangles
type TriangleRepository struct {
	db *sql.DB
}

// NewTriangleRepository создает новый экземпляр репозитория
func NewTriangleRepository(db *sql.DB) *TriangleRepository {
	return &TriangleRepository{db: db}
}

// ReplaceAll заменяет набор треугольников целиком.
// Котировки обнуляются: они наполняются заново из фидов.
func (r *TriangleRepository) ReplaceAll(triangles []market.Triangle) error {
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM triangles`); err != nil {
		return err
	}

	query := `
		INSERT INTO triangles (pair1, pair2, pair3)
		VALUES ($1, $2, $3)`

	for _, t := range triangles {
		if _, err := tx.Exec(query, t.Leg1.ID, t.Leg2.ID, t.Leg3.ID); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// UpdateQuotes обновляет котировки треугольника по тройке его ног.
func (r *TriangleRepository) UpdateQuotes(t market.Triangle, q market.LegQuotes) error {
	query := `
		UPDATE triangles
		SET bid1 = $1, ask1 = $2, ask1_vol = $3,
		    bid2 = $4, ask2 = $5, bid2_vol = $6,
		    bid3 = $7, ask3 = $8, updated_at = $9
		WHERE pair1 = $10 AND pair2 = $11 AND pair3 = $12`

	result, err := r.db.Exec(query,
		q.Bid1, q.Ask1, q.Ask1Volume,
		q.Bid2, q.Ask2, q.Bid2Volume,
		q.Bid3, q.Ask3, time.Now(),
		t.Leg1.ID, t.Leg2.ID, t.Leg3.ID,
	)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrTriangleNotFound
	}

	return nil
}

// Count возвращает количество треугольников
func (r *TriangleRepository) Count() (int, error) {
	var count int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM triangles`).Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}
