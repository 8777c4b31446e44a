// Package repository - доступ к PostgreSQL: каталог инструментов,
// треугольники, возможности, балансы и открытые ордера.
package repository

import "database/sql"

// schemaStatements создают таблицы при первом запуске.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS instruments (
		inst_id    VARCHAR(32) PRIMARY KEY,
		base_ccy   VARCHAR(16) NOT NULL,
		quote_ccy  VARCHAR(16) NOT NULL,
		updated_at TIMESTAMP NOT NULL DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS triangles (
		id         SERIAL PRIMARY KEY,
		pair1      VARCHAR(32) NOT NULL,
		pair2      VARCHAR(32) NOT NULL,
		pair3      VARCHAR(32) NOT NULL,
		bid1       DOUBLE PRECISION,
		ask1       DOUBLE PRECISION,
		ask1_vol   DOUBLE PRECISION,
		bid2       DOUBLE PRECISION,
		ask2       DOUBLE PRECISION,
		bid2_vol   DOUBLE PRECISION,
		bid3       DOUBLE PRECISION,
		ask3       DOUBLE PRECISION,
		updated_at TIMESTAMP,
		UNIQUE (pair1, pair2, pair3)
	)`,

	`CREATE TABLE IF NOT EXISTS opportunities (
		id           SERIAL PRIMARY KEY,
		pair1        VARCHAR(32) NOT NULL,
		pair2        VARCHAR(32) NOT NULL,
		pair3        VARCHAR(32) NOT NULL,
		bid1         DOUBLE PRECISION NOT NULL,
		ask1         DOUBLE PRECISION NOT NULL,
		bid2         DOUBLE PRECISION NOT NULL,
		ask2         DOUBLE PRECISION NOT NULL,
		bid3         DOUBLE PRECISION NOT NULL,
		ask3         DOUBLE PRECISION NOT NULL,
		initial      DOUBLE PRECISION NOT NULL,
		final        DOUBLE PRECISION NOT NULL,
		profit       DOUBLE PRECISION NOT NULL,
		evaluated_at TIMESTAMP NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS balances (
		currency   VARCHAR(16) PRIMARY KEY,
		available  DOUBLE PRECISION NOT NULL,
		frozen     DOUBLE PRECISION NOT NULL DEFAULT 0,
		updated_at TIMESTAMP NOT NULL DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS open_orders (
		order_id   VARCHAR(64) PRIMARY KEY,
		inst_id    VARCHAR(32) NOT NULL,
		side       VARCHAR(8) NOT NULL,
		price      DOUBLE PRECISION NOT NULL,
		size       DOUBLE PRECISION NOT NULL,
		created_at TIMESTAMP NOT NULL
	)`,
}

// InitSchema создаёт таблицы, если их ещё нет.
func InitSchema(db *sql.DB) error {
	for _, stmt := range schemaStatements {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}
