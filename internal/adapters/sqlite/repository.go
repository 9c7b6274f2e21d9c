package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"marketReplay/internal/domain"
	"marketReplay/internal/ports"

	"github.com/mattn/go-sqlite3" // SQLite driver
)

var _ ports.ResultRepository = (*Repository)(nil)

// Repository implements ports.ResultRepository using SQLite.
type Repository struct {
	db     *sql.DB
	logger ports.Logger
}

// Config holds configuration for the SQLite repository.
type Config struct {
	DBPath string
	Logger ports.Logger
}

// NewRepository creates a new SQLite repository instance.
func NewRepository(cfg Config) (*Repository, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for SQLite repository")
	}
	dbPath := cfg.DBPath
	if dbPath == "" {
		dbPath = "./data/backtests.db"
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		err = fmt.Errorf("failed to create data directory '%s': %w", filepath.Dir(dbPath), err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		err = fmt.Errorf("failed to open database at '%s': %w: %v", dbPath, ports.ErrDBConnection, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		err = fmt.Errorf("failed to ping database at '%s': %w: %v", dbPath, ports.ErrDBConnection, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	repo := &Repository{db: db, logger: cfg.Logger}
	if err := repo.initializeSchema(context.Background()); err != nil {
		db.Close()
		err = fmt.Errorf("failed to initialize database schema: %w", err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}
	cfg.Logger.Info(context.Background(), "SQLite result store ready", map[string]interface{}{"path": dbPath})

	return repo, nil
}

func (r *Repository) initializeSchema(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		started_at TIMESTAMP NOT NULL,
		finished_at TIMESTAMP NOT NULL,
		main_symbol TEXT NOT NULL,
		main_timeframe TEXT NOT NULL,
		starting_cash REAL NOT NULL,
		ending_cash REAL NOT NULL,
		ending_equity REAL NOT NULL,
		iterations INTEGER NOT NULL,
		metrics TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS positions (
		run_id TEXT NOT NULL REFERENCES runs (id),
		id INTEGER NOT NULL,
		account_id INTEGER NOT NULL,
		symbol TEXT NOT NULL,
		type TEXT NOT NULL,
		status TEXT NOT NULL,
		order_qty REAL NOT NULL,
		order_price REAL NOT NULL,
		order_type TEXT NOT NULL,
		order_duration TEXT NOT NULL,
		order_time INTEGER NOT NULL,
		qty REAL NOT NULL,
		cost REAL NOT NULL,
		entry_price REAL NOT NULL,
		entry_time INTEGER NOT NULL,
		exit_price REAL NOT NULL,
		exit_time INTEGER NOT NULL,
		exit_profit REAL NOT NULL,
		cancel_time INTEGER NOT NULL,
		close_reason TEXT NULL,
		stop_loss REAL NULL,
		take_profit REAL NULL,
		trailing_stop REAL NULL,
		PRIMARY KEY (run_id, id)
	);

	CREATE TABLE IF NOT EXISTS trades (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL REFERENCES runs (id),
		position_id INTEGER NOT NULL,
		symbol TEXT NOT NULL,
		type TEXT NOT NULL,
		entry_price REAL NOT NULL,
		exit_price REAL NOT NULL,
		quantity REAL NOT NULL,
		cost REAL NOT NULL,
		pnl REAL NOT NULL,
		entry_time TIMESTAMP NOT NULL,
		exit_time TIMESTAMP NOT NULL,
		close_reason TEXT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_trades_run_entry_time ON trades (run_id, entry_time);
	`
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to execute schema initialization: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (r *Repository) Close() error {
	if r.db != nil {
		r.logger.Info(context.Background(), "Closing SQLite database connection")
		return r.db.Close()
	}
	return nil
}

// SaveRun inserts the run summary. A second run with the same id fails with
// ports.ErrDuplicateEntry.
func (r *Repository) SaveRun(ctx context.Context, run *domain.Run) error {
	const query = `
	INSERT INTO runs (id, started_at, finished_at, main_symbol, main_timeframe,
	                  starting_cash, ending_cash, ending_equity, iterations, metrics)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		run.ID, run.StartedAt.UTC(), run.FinishedAt.UTC(), run.MainSeries.Symbol, string(run.MainSeries.Timeframe),
		run.StartingCash, run.EndingCash, run.EndingEquity, run.Iterations, run.MetricsJSON)
	if err != nil {
		if isConstraintError(err) {
			return fmt.Errorf("run %s: %w", run.ID, ports.ErrDuplicateEntry)
		}
		return fmt.Errorf("failed to insert run %s: %w: %v", run.ID, ports.ErrQueryFailed, err)
	}
	r.logger.Debug(ctx, "Run saved", map[string]interface{}{"runId": run.ID})
	return nil
}

// SavePositions inserts the positions of a run in one transaction.
func (r *Repository) SavePositions(ctx context.Context, runID string, positions []*domain.Position) error {
	const query = `
	INSERT INTO positions (run_id, id, account_id, symbol, type, status,
	                       order_qty, order_price, order_type, order_duration, order_time,
	                       qty, cost, entry_price, entry_time, exit_price, exit_time, exit_profit, cancel_time,
	                       close_reason, stop_loss, take_profit, trailing_stop)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	return r.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, query)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, p := range positions {
			_, err := stmt.ExecContext(ctx,
				runID, p.ID, p.AccountID, p.Symbol, string(p.Type), string(p.Status),
				p.OrderQty, p.OrderPrice, string(p.OrderType), string(p.OrderDuration), p.OrderTime,
				p.Qty, p.Cost, p.EntryPrice, p.EntryTime, p.ExitPrice, p.ExitTime, p.ExitProfit, p.CancelTime,
				nullString(string(p.CloseReason)), nullFloat(p.StopLoss), nullFloat(p.TakeProfit), nullFloat(p.TrailingStop))
			if err != nil {
				if isConstraintError(err) {
					return fmt.Errorf("position %d of run %s: %w", p.ID, runID, ports.ErrDuplicateEntry)
				}
				return fmt.Errorf("failed to insert position %d: %w", p.ID, err)
			}
		}
		return nil
	})
}

// SaveTrades inserts the trades of a run in one transaction and assigns
// their ids.
func (r *Repository) SaveTrades(ctx context.Context, runID string, trades []*domain.Trade) error {
	const query = `
	INSERT INTO trades (run_id, position_id, symbol, type, entry_price, exit_price, quantity,
	                    cost, pnl, entry_time, exit_time, close_reason)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	return r.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, query)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, t := range trades {
			result, err := stmt.ExecContext(ctx,
				runID, t.PositionID, t.Symbol, string(t.Type), t.EntryPrice, t.ExitPrice, t.Quantity,
				t.Cost, t.PNL, t.EntryTime.UTC(), t.ExitTime.UTC(), nullString(string(t.CloseReason)))
			if err != nil {
				return fmt.Errorf("failed to insert trade for position %d: %w", t.PositionID, err)
			}
			id, err := result.LastInsertId()
			if err != nil {
				return fmt.Errorf("failed to get last insert ID for trade %d: %w", t.PositionID, err)
			}
			t.ID = id
		}
		return nil
	})
}

// FindRuns retrieves all runs, most recent first.
func (r *Repository) FindRuns(ctx context.Context) ([]*domain.Run, error) {
	const query = `
	SELECT id, started_at, finished_at, main_symbol, main_timeframe,
	       starting_cash, ending_cash, ending_equity, iterations, metrics
	FROM runs
	ORDER BY started_at DESC, id`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w: %v", ports.ErrQueryFailed, err)
	}
	defer rows.Close()

	runs := make([]*domain.Run, 0)
	for rows.Next() {
		run := &domain.Run{}
		var timeframe string
		if err := rows.Scan(&run.ID, &run.StartedAt, &run.FinishedAt, &run.MainSeries.Symbol, &timeframe,
			&run.StartingCash, &run.EndingCash, &run.EndingEquity, &run.Iterations, &run.MetricsJSON); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		run.MainSeries.Timeframe = domain.Timeframe(timeframe)
		runs = append(runs, run)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating run rows: %w", err)
	}
	return runs, nil
}

// FindTradesByRun retrieves the trades of one run ordered by entry time.
func (r *Repository) FindTradesByRun(ctx context.Context, runID string) ([]*domain.Trade, error) {
	const query = `
	SELECT id, position_id, symbol, type, entry_price, exit_price, quantity, cost, pnl,
	       entry_time, exit_time, close_reason
	FROM trades
	WHERE run_id = ?
	ORDER BY entry_time, position_id`

	rows, err := r.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query trades of run %s: %w: %v", runID, ports.ErrQueryFailed, err)
	}
	defer rows.Close()

	trades := make([]*domain.Trade, 0)
	for rows.Next() {
		trade, err := scanTrade(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan trade during FindTradesByRun: %w", err)
		}
		trades = append(trades, trade)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating trade rows: %w", err)
	}
	return trades, nil
}

// FindPositionsByRun retrieves the positions of one run ordered by id.
func (r *Repository) FindPositionsByRun(ctx context.Context, runID string) ([]*domain.Position, error) {
	const query = `
	SELECT id, account_id, symbol, type, status, order_qty, order_price, order_type, order_duration, order_time,
	       qty, cost, entry_price, entry_time, exit_price, exit_time, exit_profit, cancel_time,
	       close_reason, stop_loss, take_profit, trailing_stop
	FROM positions
	WHERE run_id = ?
	ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query positions of run %s: %w: %v", runID, ports.ErrQueryFailed, err)
	}
	defer rows.Close()

	positions := make([]*domain.Position, 0)
	for rows.Next() {
		pos, err := scanPosition(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan position during FindPositionsByRun: %w", err)
		}
		positions = append(positions, pos)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating position rows: %w", err)
	}
	return positions, nil
}

func (r *Repository) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w: %v", ports.ErrDBConnection, err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// --- Helper Scan Functions ---

// scanner defines an interface compatible with *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanPosition(s scanner) (*domain.Position, error) {
	p := &domain.Position{}
	var typ, status, orderType, orderDuration string
	var closeReason sql.NullString
	var stopLoss, takeProfit, trailingStop sql.NullFloat64
	err := s.Scan(
		&p.ID, &p.AccountID, &p.Symbol, &typ, &status, &p.OrderQty, &p.OrderPrice, &orderType, &orderDuration, &p.OrderTime,
		&p.Qty, &p.Cost, &p.EntryPrice, &p.EntryTime, &p.ExitPrice, &p.ExitTime, &p.ExitProfit, &p.CancelTime,
		&closeReason, &stopLoss, &takeProfit, &trailingStop)
	if err != nil {
		return nil, err
	}
	p.Type = domain.PositionType(typ)
	p.Status = domain.PositionStatus(status)
	p.OrderType = domain.OrderType(orderType)
	p.OrderDuration = domain.OrderDuration(orderDuration)
	if closeReason.Valid {
		p.CloseReason = domain.CloseReason(closeReason.String)
	}
	p.StopLoss = floatPtr(stopLoss)
	p.TakeProfit = floatPtr(takeProfit)
	p.TrailingStop = floatPtr(trailingStop)
	return p, nil
}

func scanTrade(s scanner) (*domain.Trade, error) {
	th := &domain.Trade{}
	var typ string
	var closeReason sql.NullString
	err := s.Scan(
		&th.ID, &th.PositionID, &th.Symbol, &typ, &th.EntryPrice, &th.ExitPrice, &th.Quantity, &th.Cost, &th.PNL,
		&th.EntryTime, &th.ExitTime, &closeReason)
	if err != nil {
		return nil, err
	}
	th.Type = domain.PositionType(typ)
	th.EntryTime = th.EntryTime.UTC()
	th.ExitTime = th.ExitTime.UTC()
	if closeReason.Valid {
		th.CloseReason = domain.CloseReason(closeReason.String)
	} else {
		th.CloseReason = domain.CloseReasonUnknown // Default if NULL
	}
	return th, nil
}

func isConstraintError(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	return domain.Price(v.Float64)
}
