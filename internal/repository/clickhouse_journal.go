package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"VoltX/internal/domain/models"
	domrepo "VoltX/internal/domain/repository"
)

// TradeJournal records terminal positions in ClickHouse.
type TradeJournal struct {
	db    *sql.DB
	table string
}

var _ domrepo.TradeJournal = (*TradeJournal)(nil)

func NewTradeJournal(db *sql.DB, table string) *TradeJournal {
	return &TradeJournal{db: db, table: table}
}

// JournalSchema returns the DDL for the trade journal table.
func JournalSchema(table string) string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
        id String,
        symbol LowCardinality(String),
        strategy LowCardinality(String),
        state LowCardinality(String),
        size Float64,
        entry_price Float64,
        exit_price Float64,
        exit_reason String,
        pnl_pct Float64,
        weight Float64,
        opened_at DateTime64(3, 'UTC'),
        closed_at DateTime64(3, 'UTC')
    ) ENGINE = MergeTree ORDER BY (symbol, closed_at)`, table)
}

const journalColumns = "id, symbol, strategy, state, size, entry_price, exit_price, exit_reason, pnl_pct, weight, opened_at, closed_at"

func (j *TradeJournal) Record(ctx context.Context, p models.Position) error {
	q := fmt.Sprintf("INSERT INTO %s (%s) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)", j.table, journalColumns)
	size := p.FilledQty
	if size <= 0 {
		size = p.Size
	}
	_, err := j.db.ExecContext(ctx, q,
		p.ID,
		p.Symbol,
		string(p.Strategy),
		string(p.State),
		size,
		p.EntryPrice,
		p.ExitPrice,
		string(p.ExitReason),
		p.RealizedPnlPct,
		p.Weight,
		p.OpenedAt.UTC(),
		p.ClosedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("journal insert %s: %w", p.ID, err)
	}
	return nil
}

// Recent returns the newest closed positions for symbol, newest first.
func (j *TradeJournal) Recent(ctx context.Context, symbol string, limit int) ([]models.Position, error) {
	q := fmt.Sprintf("SELECT %s FROM %s WHERE symbol = ? ORDER BY closed_at DESC LIMIT ?", journalColumns, j.table)
	rows, err := j.db.QueryContext(ctx, q, symbol, limit)
	if err != nil {
		return nil, fmt.Errorf("journal query: %w", err)
	}
	defer rows.Close()

	var out []models.Position
	for rows.Next() {
		var (
			p                       models.Position
			strategy, state, reason string
			opened, closed          time.Time
		)
		if err := rows.Scan(&p.ID, &p.Symbol, &strategy, &state, &p.FilledQty, &p.EntryPrice, &p.ExitPrice, &reason, &p.RealizedPnlPct, &p.Weight, &opened, &closed); err != nil {
			return nil, fmt.Errorf("journal scan: %w", err)
		}
		p.Strategy = models.Strategy(strategy)
		p.State = models.PositionState(state)
		p.ExitReason = models.ReasonCode(reason)
		p.Size = p.FilledQty
		p.OpenedAt = opened.UTC()
		p.ClosedAt = closed.UTC()
		out = append(out, p)
	}
	return out, rows.Err()
}

func (j *TradeJournal) Close() error { return nil }
