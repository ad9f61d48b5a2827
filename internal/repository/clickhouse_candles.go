package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"VoltX/internal/domain/models"
	domrepo "VoltX/internal/domain/repository"
	applogger "VoltX/pkg/logger"
)

// CandleRepository stores and reads OHLCV bars in ClickHouse. All timeframes
// share one ReplacingMergeTree table keyed by (symbol, tf, open_time).
type CandleRepository struct {
	db    *sql.DB
	table string
	l     *applogger.Logger
}

var (
	_ domrepo.CandleHistory = (*CandleRepository)(nil)
	_ domrepo.CandleStore   = (*CandleRepository)(nil)
)

func NewCandleRepository(db *sql.DB, table string) *CandleRepository {
	return &CandleRepository{db: db, table: table, l: applogger.Nop()}
}

// SetLogger injects a structured logger.
func (s *CandleRepository) SetLogger(l *applogger.Logger) {
	if l != nil {
		s.l = l
	}
}

// CandleSchema returns the DDL for the candles table.
func CandleSchema(table string) string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
        symbol LowCardinality(String),
        tf LowCardinality(String),
        open_time DateTime64(3, 'UTC'),
        open Float64,
        high Float64,
        low Float64,
        close Float64,
        volume Float64
    ) ENGINE = ReplacingMergeTree ORDER BY (symbol, tf, open_time)`, table)
}

// GetLatestNCandles returns up to n closed candles, oldest first.
func (s *CandleRepository) GetLatestNCandles(ctx context.Context, symbol string, n int, tf models.Timeframe) ([]models.Candle, error) {
	start := time.Now()
	const qtpl = `
        SELECT open_time, open, high, low, close, volume
        FROM %s FINAL
        WHERE symbol = ? AND tf = ?
        ORDER BY open_time DESC
        LIMIT ?
    `
	q := fmt.Sprintf(qtpl, s.table)
	rows, err := s.db.QueryContext(ctx, q, symbol, string(tf), n)
	if err != nil {
		s.l.Error("clickhouse latest_candles query error",
			applogger.String("symbol", symbol),
			applogger.String("tf", string(tf)),
			applogger.Int("limit", n),
			applogger.Error(err),
		)
		return nil, fmt.Errorf("get latest candles: %w", err)
	}
	defer rows.Close()

	tmp := make([]models.Candle, 0, n)
	for rows.Next() {
		c := models.Candle{Symbol: symbol, Timeframe: tf, Closed: true}
		if err := rows.Scan(&c.OpenTime, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume); err != nil {
			return nil, fmt.Errorf("scan candle: %w", err)
		}
		c.OpenTime = c.OpenTime.UTC()
		tmp = append(tmp, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	// reverse to ASC
	for i, j := 0, len(tmp)-1; i < j; i, j = i+1, j-1 {
		tmp[i], tmp[j] = tmp[j], tmp[i]
	}
	s.l.Debug("clickhouse latest_candles ok",
		applogger.String("symbol", symbol),
		applogger.String("tf", string(tf)),
		applogger.Int("rows", len(tmp)),
		applogger.Duration("duration", time.Since(start)),
	)
	return tmp, nil
}

// StoreCandles inserts closed candles using multi-row VALUES to reduce round-trips.
func (s *CandleRepository) StoreCandles(ctx context.Context, candles []models.Candle) error {
	const chunkSize = 2000
	for start := 0; start < len(candles); start += chunkSize {
		end := start + chunkSize
		if end > len(candles) {
			end = len(candles)
		}
		values := make([]string, 0, end-start)
		args := make([]interface{}, 0, (end-start)*8)
		for _, c := range candles[start:end] {
			if c.Symbol == "" || c.OpenTime.IsZero() || !c.Closed {
				continue
			}
			values = append(values, "(?, ?, ?, ?, ?, ?, ?, ?)")
			args = append(args, c.Symbol, string(c.Timeframe), c.OpenTime.UTC(), c.Open, c.High, c.Low, c.Close, c.Volume)
		}
		if len(values) == 0 {
			continue
		}
		q := fmt.Sprintf("INSERT INTO %s (symbol, tf, open_time, open, high, low, close, volume) VALUES %s", s.table, strings.Join(values, ","))
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			return fmt.Errorf("insert candles: %w", err)
		}
	}
	return nil
}

func (s *CandleRepository) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close is a no-op; the connection pool belongs to the ClickHouse client.
func (s *CandleRepository) Close() error { return nil }
