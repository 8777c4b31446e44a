package repository

import (
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"triarb/internal/market"
)

func mustInstrument(t *testing.T, id string) market.Instrument {
	t.Helper()
	inst, err := market.ParseInstrument(id)
	if err != nil {
		t.Fatalf("parse instrument %s: %v", id, err)
	}
	return inst
}

func mustTriangle(t *testing.T, l1, l2, l3 string) market.Triangle {
	t.Helper()
	return market.Triangle{
		Leg1: mustInstrument(t, l1),
		Leg2: mustInstrument(t, l2),
		Leg3: mustInstrument(t, l3),
	}
}

// ============================================================
// InstrumentRepository Tests
// ============================================================

func TestInstrumentRepositoryReplaceAll(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM instruments`).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(`INSERT INTO instruments`).
		WithArgs("BTC-USDT", "BTC", "USDT", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO instruments`).
		WithArgs("SOL-USDT", "SOL", "USDT", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	repo := NewInstrumentRepository(db)
	err = repo.ReplaceAll([]market.Instrument{
		mustInstrument(t, "BTC-USDT"),
		mustInstrument(t, "SOL-USDT"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestInstrumentRepositoryReplaceAllRollsBackOnError(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM instruments`).
		WillReturnError(errors.New("db down"))
	mock.ExpectRollback()

	repo := NewInstrumentRepository(db)
	if err := repo.ReplaceAll([]market.Instrument{mustInstrument(t, "BTC-USDT")}); err == nil {
		t.Error("expected error, got nil")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

// ============================================================
// TriangleRepository Tests
// ============================================================

func TestTriangleRepositoryUpdateQuotes(t *testing.T) {
	tri := mustTriangle(t, "SOL-BTC", "BTC-USDT", "SOL-USDT")
	quotes := market.LegQuotes{
		Bid1: 0.0017, Ask1: 0.0018, Ask1Volume: 300,
		Bid2: 50000, Ask2: 50001, Bid2Volume: 2,
		Bid3: 90, Ask3: 91,
	}

	tests := []struct {
		name        string
		mockSetup   func(mock sqlmock.Sqlmock)
		expectError error
	}{
		{
			name: "success",
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(`UPDATE triangles`).
					WithArgs(
						0.0017, 0.0018, 300.0,
						50000.0, 50001.0, 2.0,
						90.0, 91.0, sqlmock.AnyArg(),
						"SOL-BTC", "BTC-USDT", "SOL-USDT",
					).
					WillReturnResult(sqlmock.NewResult(0, 1))
			},
		},
		{
			name: "triangle missing",
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(`UPDATE triangles`).
					WillReturnResult(sqlmock.NewResult(0, 0))
			},
			expectError: ErrTriangleNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			if err != nil {
				t.Fatalf("failed to create mock: %v", err)
			}
			defer db.Close()

			tt.mockSetup(mock)

			repo := NewTriangleRepository(db)
			err = repo.UpdateQuotes(tri, quotes)

			if tt.expectError != nil {
				if !errors.Is(err, tt.expectError) {
					t.Errorf("expected %v, got %v", tt.expectError, err)
				}
			} else if err != nil {
				t.Errorf("unexpected error: %v", err)
			}

			if err := mock.ExpectationsWereMet(); err != nil {
				t.Errorf("unmet expectations: %v", err)
			}
		})
	}
}

// ============================================================
// OpportunityRepository Tests
// ============================================================

func TestOpportunityRepositoryReplaceAll(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	now := time.Now()
	opp := market.Opportunity{
		Triangle: mustTriangle(t, "SOL-BTC", "BTC-USDT", "SOL-USDT"),
		Quotes: market.LegQuotes{
			Bid1: 0.002, Ask1: 0.0025, Ask1Volume: 1e6,
			Bid2: 1.2, Ask2: 1.3, Bid2Volume: 1e6,
			Bid3: 1, Ask3: 1.1,
		},
		Initial:     1000,
		Final:       1015,
		EvaluatedAt: now,
	}

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM opportunities`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO opportunities`).
		WithArgs("SOL-BTC", "BTC-USDT", "SOL-USDT",
			0.002, 0.0025, 1.2, 1.3, 1.0, 1.1,
			1000.0, 1015.0, 15.0, now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	repo := NewOpportunityRepository(db)
	if err := repo.ReplaceAll([]market.Opportunity{opp}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestOpportunityRepositoryGetBest(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name        string
		mockSetup   func(mock sqlmock.Sqlmock)
		expectError error
	}{
		{
			name: "success",
			mockSetup: func(mock sqlmock.Sqlmock) {
				rows := sqlmock.NewRows([]string{
					"id", "pair1", "pair2", "pair3",
					"bid1", "ask1", "bid2", "ask2", "bid3", "ask3",
					"initial", "final", "profit", "evaluated_at",
				}).AddRow(1, "SOL-BTC", "BTC-USDT", "SOL-USDT",
					0.002, 0.0025, 1.2, 1.3, 1.0, 1.1,
					1000.0, 1015.0, 15.0, now)
				mock.ExpectQuery(`SELECT .+ FROM opportunities ORDER BY profit DESC`).
					WillReturnRows(rows)
			},
		},
		{
			name: "empty table",
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`SELECT .+ FROM opportunities ORDER BY profit DESC`).
					WillReturnRows(sqlmock.NewRows([]string{
						"id", "pair1", "pair2", "pair3",
						"bid1", "ask1", "bid2", "ask2", "bid3", "ask3",
						"initial", "final", "profit", "evaluated_at",
					}))
			},
			expectError: ErrOpportunityNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			if err != nil {
				t.Fatalf("failed to create mock: %v", err)
			}
			defer db.Close()

			tt.mockSetup(mock)

			repo := NewOpportunityRepository(db)
			best, err := repo.GetBest()

			if tt.expectError != nil {
				if !errors.Is(err, tt.expectError) {
					t.Errorf("expected %v, got %v", tt.expectError, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if best.Profit != 15.0 {
				t.Errorf("profit = %v, want 15", best.Profit)
			}
			if best.Ask1 != 0.0025 || best.Bid2 != 1.2 || best.Bid3 != 1.0 {
				t.Errorf("leg prices not restored: %+v", best)
			}
		})
	}
}

// ============================================================
// BalanceRepository Tests
// ============================================================

func TestBalanceRepositoryUpsert(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	mock.ExpectExec(`INSERT INTO balances`).
		WithArgs("USDT", 1500.5, 10.0, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	repo := NewBalanceRepository(db)
	err = repo.Upsert(market.Balance{Currency: "USDT", Available: 1500.5, Frozen: 10})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

// ============================================================
// OrderRepository Tests
// ============================================================

func TestOrderRepositoryUpsertAndDelete(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	created := time.Now()
	mock.ExpectExec(`INSERT INTO open_orders`).
		WithArgs("555", "BTC-USDT", "buy", 50000.0, 5.0, created).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM open_orders WHERE order_id`).
		WithArgs("555").
		WillReturnResult(sqlmock.NewResult(0, 1))

	repo := NewOrderRepository(db)
	err = repo.Upsert(market.OpenOrder{
		OrderID:      "555",
		InstrumentID: "BTC-USDT",
		Side:         "buy",
		Price:        50000,
		Size:         5,
		CreatedAt:    created,
	})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := repo.Delete("555"); err != nil {
		t.Fatalf("delete: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestOrderRepositoryDeleteMissingIsNoError(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	mock.ExpectExec(`DELETE FROM open_orders WHERE order_id`).
		WithArgs("999").
		WillReturnResult(sqlmock.NewResult(0, 0))

	repo := NewOrderRepository(db)
	if err := repo.Delete("999"); err != nil {
		t.Errorf("delete of missing order should not error, got %v", err)
	}
}

func TestOrderRepositoryDeleteAll(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	mock.ExpectExec(`DELETE FROM open_orders`).
		WillReturnResult(sqlmock.NewResult(0, 3))

	repo := NewOrderRepository(db)
	if err := repo.DeleteAll(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}
