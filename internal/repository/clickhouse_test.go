package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"VoltX/internal/domain/models"
)

func TestCandleRepositoryLatestReturnsAscending(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"open_time", "open", "high", "low", "close", "volume"}).
		AddRow(t0.Add(time.Minute), 2.0, 2.5, 1.5, 2.2, 10.0).
		AddRow(t0, 1.0, 1.5, 0.5, 1.2, 5.0)
	mock.ExpectQuery(`SELECT open_time, open, high, low, close, volume`).
		WithArgs("BTCUSDT", "1m", 2).
		WillReturnRows(rows)

	repo := NewCandleRepository(db, "voltx.candles")
	got, err := repo.GetLatestNCandles(context.Background(), "BTCUSDT", 2, models.TF1m)
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if len(got) != 2 || !got[0].OpenTime.Equal(t0) || got[1].Close != 2.2 || !got[0].Closed || got[0].Timeframe != models.TF1m {
		t.Fatalf("unexpected candles %+v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestCandleRepositoryStoreSkipsOpenCandles(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectExec(`INSERT INTO voltx.candles`).
		WithArgs("BTCUSDT", "1m", t0, 1.0, 2.0, 0.5, 1.5, 3.0).
		WillReturnResult(sqlmock.NewResult(0, 1))

	repo := NewCandleRepository(db, "voltx.candles")
	err = repo.StoreCandles(context.Background(), []models.Candle{
		{Symbol: "BTCUSDT", Timeframe: models.TF1m, OpenTime: t0, Open: 1, High: 2, Low: 0.5, Close: 1.5, Volume: 3, Closed: true},
		{Symbol: "BTCUSDT", Timeframe: models.TF1m, OpenTime: t0.Add(time.Minute), Open: 1, High: 2, Low: 0.5, Close: 1.5, Volume: 3},
	})
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestTradeJournalRecord(t *testing.T) {
	tests := []struct {
		name        string
		mockSetup   func(mock sqlmock.Sqlmock)
		expectError bool
	}{
		{
			name: "success",
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(`INSERT INTO voltx.trades`).
					WithArgs("p1", "BTCUSDT", "VBS", "CLOSED", 1.5, 100.0, 104.0, "TRAILING_STOP", 4.0, 0.03, sqlmock.AnyArg(), sqlmock.AnyArg()).
					WillReturnResult(sqlmock.NewResult(0, 1))
			},
		},
		{
			name: "database error",
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(`INSERT INTO voltx.trades`).WillReturnError(errors.New("database error"))
			},
			expectError: true,
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

			j := NewTradeJournal(db, "voltx.trades")
			err = j.Record(context.Background(), models.Position{
				ID: "p1", Symbol: "BTCUSDT", Strategy: models.StrategyVBS, State: models.PositionClosed,
				Size: 2, FilledQty: 1.5, EntryPrice: 100, ExitPrice: 104, ExitReason: models.ReasonTrailingStop,
				RealizedPnlPct: 4, Weight: 0.03,
			})
			if (err != nil) != tt.expectError {
				t.Fatalf("expected error=%v, got %v", tt.expectError, err)
			}
			if err := mock.ExpectationsWereMet(); err != nil {
				t.Errorf("unfulfilled expectations: %v", err)
			}
		})
	}
}

func TestTradeJournalRecent(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	closed := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", "symbol", "strategy", "state", "size", "entry_price", "exit_price", "exit_reason", "pnl_pct", "weight", "opened_at", "closed_at"}).
		AddRow("p1", "ETHUSDT", "DIP", "CLOSED", 2.0, 50.0, 52.5, "TAKE_PROFIT", 5.0, 0.02, closed.Add(-time.Hour), closed)
	mock.ExpectQuery(`SELECT id, symbol`).WithArgs("ETHUSDT", 10).WillReturnRows(rows)

	j := NewTradeJournal(db, "voltx.trades")
	got, err := j.Recent(context.Background(), "ETHUSDT", 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(got) != 1 || got[0].Strategy != models.StrategyDip || got[0].ExitReason != models.ReasonTakeProfit || !got[0].ClosedAt.Equal(closed) {
		t.Fatalf("unexpected positions %+v", got)
	}
}
