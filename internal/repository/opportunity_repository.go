package repository

import (
	"database/sql"
	"errors"
	"time"

	"triarb/internal/market"
)

// Ошибки репозитория возможностей
var (
	ErrOpportunityNotFound = errors.New("opportunity not found")
)

// OpportunityRecord - строка таблицы opportunities: три ноги с ценами
// на момент квалификации и итоговый результат цепочки.
type OpportunityRecord struct {
	ID          int       `json:"id"`
	Pair1       string    `json:"pair1"`
	Pair2       string    `json:"pair2"`
	Pair3       string    `json:"pair3"`
	Bid1        float64   `json:"bid1"`
	Ask1        float64   `json:"ask1"`
	Bid2        float64   `json:"bid2"`
	Ask2        float64   `json:"ask2"`
	Bid3        float64   `json:"bid3"`
	Ask3        float64   `json:"ask3"`
	Initial     float64   `json:"initial"`
	Final       float64   `json:"final"`
	Profit      float64   `json:"profit"`
	EvaluatedAt time.Time `json:"evaluated_at"`
}

// OpportunityRepository - работа с таблицей opportunities
type OpportunityRepository struct {
	db *sql.DB
}

// NewOpportunityRepository создает новый экземпляр репозитория
func NewOpportunityRepository(db *sql.DB) *OpportunityRepository {
	return &OpportunityRepository{db: db}
}

// ReplaceAll заменяет набор возможностей результатом последнего
// прохода оценки. Пустой проход очищает таблицу.
func (r *OpportunityRepository) ReplaceAll(opportunities []market.Opportunity) error {
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM opportunities`); err != nil {
		return err
	}

	query := `
		INSERT INTO opportunities (pair1, pair2, pair3,
			bid1, ask1, bid2, ask2, bid3, ask3,
			initial, final, profit, evaluated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	for _, o := range opportunities {
		pairs := o.Triangle.Pairs()
		q := o.Quotes
		_, err := tx.Exec(query,
			pairs[0], pairs[1], pairs[2],
			q.Bid1, q.Ask1, q.Bid2, q.Ask2, q.Bid3, q.Ask3,
			o.Initial, o.Final, o.Profit(), o.EvaluatedAt,
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// GetAll возвращает возможности последнего прохода, лучшие первыми
func (r *OpportunityRepository) GetAll() ([]*OpportunityRecord, error) {
	query := `
		SELECT id, pair1, pair2, pair3,
			bid1, ask1, bid2, ask2, bid3, ask3,
			initial, final, profit, evaluated_at
		FROM opportunities
		ORDER BY profit DESC`

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*OpportunityRecord
	for rows.Next() {
		rec := &OpportunityRecord{}
		err := rows.Scan(
			&rec.ID,
			&rec.Pair1,
			&rec.Pair2,
			&rec.Pair3,
			&rec.Bid1,
			&rec.Ask1,
			&rec.Bid2,
			&rec.Ask2,
			&rec.Bid3,
			&rec.Ask3,
			&rec.Initial,
			&rec.Final,
			&rec.Profit,
			&rec.EvaluatedAt,
		)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return records, nil
}

// GetBest возвращает самую прибыльную возможность последнего прохода
func (r *OpportunityRepository) GetBest() (*OpportunityRecord, error) {
	query := `
		SELECT id, pair1, pair2, pair3,
			bid1, ask1, bid2, ask2, bid3, ask3,
			initial, final, profit, evaluated_at
		FROM opportunities
		ORDER BY profit DESC
		LIMIT 1`

	rec := &OpportunityRecord{}
	err := r.db.QueryRow(query).Scan(
		&rec.ID,
		&rec.Pair1,
		&rec.Pair2,
		&rec.Pair3,
		&rec.Bid1,
		&rec.Ask1,
		&rec.Bid2,
		&rec.Ask2,
		&rec.Bid3,
		&rec.Ask3,
		&rec.Initial,
		&rec.Final,
		&rec.Profit,
		&rec.EvaluatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOpportunityNotFound
		}
		return nil, err
	}

	return rec, nil
}
