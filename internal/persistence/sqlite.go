package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tathienbao/tradecore/internal/portfolio"
	"github.com/tathienbao/tradecore/internal/types"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite repository.
func NewSQLiteRepository(path string) (*SQLiteRepository, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Test connection
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	repo := &SQLiteRepository{db: db}

	// Run migrations
	if err := repo.Migrate(context.Background()); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return repo, nil
}

// Migrate runs database migrations.
func (r *SQLiteRepository) Migrate(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS ledger_snapshots (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp DATETIME NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_ledger_timestamp ON ledger_snapshots(timestamp)`,

		`CREATE TABLE IF NOT EXISTS ledger_balances (
			snapshot_id INTEGER NOT NULL REFERENCES ledger_snapshots(id) ON DELETE CASCADE,
			ticker TEXT NOT NULL,
			size TEXT NOT NULL,
			entry_price TEXT NOT NULL,
			PRIMARY KEY (snapshot_id, ticker)
		)`,

		`CREATE TABLE IF NOT EXISTS orders (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			order_id TEXT UNIQUE NOT NULL,
			symbol TEXT NOT NULL,
			side INTEGER NOT NULL,
			purpose TEXT NOT NULL,
			price TEXT NOT NULL,
			size TEXT NOT NULL,
			filled TEXT NOT NULL DEFAULT '0',
			status INTEGER NOT NULL,
			created_at DATETIME NOT NULL,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_orders_order_id ON orders(order_id)`,
		`CREATE INDEX IF NOT EXISTS idx_orders_status ON orders(status)`,

		`CREATE TABLE IF NOT EXISTS arbitrage_executions (
			id TEXT PRIMARY KEY,
			cycle TEXT NOT NULL,
			direction TEXT NOT NULL,
			value TEXT NOT NULL,
			origin_size TEXT NOT NULL,
			expected_size TEXT NOT NULL,
			order_ids TEXT NOT NULL DEFAULT '',
			executed_at DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_arbitrage_executed_at ON arbitrage_executions(executed_at)`,

		`CREATE TABLE IF NOT EXISTS engine_state (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			last_updated DATETIME NOT NULL,
			cycles INTEGER NOT NULL DEFAULT 0,
			stops_triggered INTEGER NOT NULL DEFAULT 0,
			order_timeouts INTEGER NOT NULL DEFAULT 0,
			cooldown_until DATETIME
		)`,
	}

	for _, migration := range migrations {
		if _, err := r.db.ExecContext(ctx, migration); err != nil {
			return fmt.Errorf("execute migration: %w", err)
		}
	}

	return nil
}

// SaveLedgerSnapshot saves every balance of a snapshot in one transaction.
func (r *SQLiteRepository) SaveLedgerSnapshot(ctx context.Context, snapshot LedgerSnapshot) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `INSERT INTO ledger_snapshots (timestamp) VALUES (?)`, snapshot.Timestamp)
	if err != nil {
		return fmt.Errorf("insert ledger snapshot: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("snapshot id: %w", err)
	}

	for _, b := range snapshot.Balances {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO ledger_balances (snapshot_id, ticker, size, entry_price) VALUES (?, ?, ?, ?)`,
			id, b.Ticker, b.Size.String(), b.EntryPrice.String(),
		)
		if err != nil {
			return fmt.Errorf("insert balance %s: %w", b.Ticker, err)
		}
	}

	return tx.Commit()
}

// GetLatestLedgerSnapshot returns the most recent snapshot, or nil if none exists.
func (r *SQLiteRepository) GetLatestLedgerSnapshot(ctx context.Context) (*LedgerSnapshot, error) {
	var snapshot LedgerSnapshot
	err := r.db.QueryRowContext(ctx,
		`SELECT id, timestamp FROM ledger_snapshots ORDER BY timestamp DESC, id DESC LIMIT 1`,
	).Scan(&snapshot.ID, &snapshot.Timestamp)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query ledger snapshot: %w", err)
	}

	balances, err := r.balances(ctx, snapshot.ID)
	if err != nil {
		return nil, err
	}
	snapshot.Balances = balances

	return &snapshot, nil
}

// GetLedgerHistory returns snapshots in a time range.
func (r *SQLiteRepository) GetLedgerHistory(ctx context.Context, from, to time.Time) ([]LedgerSnapshot, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, timestamp FROM ledger_snapshots WHERE timestamp BETWEEN ? AND ? ORDER BY timestamp, id`,
		from, to,
	)
	if err != nil {
		return nil, fmt.Errorf("query ledger history: %w", err)
	}

	var snapshots []LedgerSnapshot
	for rows.Next() {
		var s LedgerSnapshot
		if err := rows.Scan(&s.ID, &s.Timestamp); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan row: %w", err)
		}
		snapshots = append(snapshots, s)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, err
	}
	_ = rows.Close()

	for i := range snapshots {
		balances, err := r.balances(ctx, snapshots[i].ID)
		if err != nil {
			return nil, err
		}
		snapshots[i].Balances = balances
	}

	return snapshots, nil
}

func (r *SQLiteRepository) balances(ctx context.Context, snapshotID int64) ([]portfolio.Balance, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT ticker, size, entry_price FROM ledger_balances WHERE snapshot_id = ? ORDER BY ticker`,
		snapshotID,
	)
	if err != nil {
		return nil, fmt.Errorf("query balances: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var balances []portfolio.Balance
	for rows.Next() {
		var b portfolio.Balance
		var size, price string

		if err := rows.Scan(&b.Ticker, &size, &price); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}

		b.Size, _ = decimal.NewFromString(size)
		b.EntryPrice, _ = decimal.NewFromString(price)

		balances = append(balances, b)
	}

	return balances, rows.Err()
}

// SaveOrder inserts an order or replaces its mutable fields.
func (r *SQLiteRepository) SaveOrder(ctx context.Context, order OrderRecord) error {
	query := `INSERT INTO orders
		(order_id, symbol, side, purpose, price, size, filled, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(order_id) DO UPDATE SET
			filled = excluded.filled,
			status = excluded.status,
			updated_at = CURRENT_TIMESTAMP`

	createdAt := order.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err := r.db.ExecContext(ctx, query,
		order.OrderID,
		order.Symbol,
		order.Side,
		order.Purpose,
		order.Price.String(),
		order.Size.String(),
		order.Filled.String(),
		order.Status,
		createdAt,
	)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	return nil
}

const orderColumns = `id, order_id, symbol, side, purpose, price, size, filled, status, created_at, updated_at`

// GetOrder returns one order, or nil if it is unknown.
func (r *SQLiteRepository) GetOrder(ctx context.Context, orderID string) (*OrderRecord, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE order_id = ?`, orderID)
	if err != nil {
		return nil, fmt.Errorf("query order: %w", err)
	}
	defer func() { _ = rows.Close() }()

	orders, err := scanOrders(rows)
	if err != nil || len(orders) == 0 {
		return nil, err
	}
	return &orders[0], nil
}

// GetPendingOrders returns orders with non-final status.
func (r *SQLiteRepository) GetPendingOrders(ctx context.Context) ([]OrderRecord, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE status < ? ORDER BY created_at`

	rows, err := r.db.QueryContext(ctx, query, types.OrderStatusFilled)
	if err != nil {
		return nil, fmt.Errorf("query pending orders: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanOrders(rows)
}

func scanOrders(rows *sql.Rows) ([]OrderRecord, error) {
	var orders []OrderRecord
	for rows.Next() {
		var o OrderRecord
		var price, size, filled string

		if err := rows.Scan(&o.ID, &o.OrderID, &o.Symbol, &o.Side, &o.Purpose, &price, &size, &filled, &o.Status, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}

		o.Price, _ = decimal.NewFromString(price)
		o.Size, _ = decimal.NewFromString(size)
		o.Filled, _ = decimal.NewFromString(filled)

		orders = append(orders, o)
	}

	return orders, rows.Err()
}

// UpdateOrderStatus updates an order's status and filled size.
func (r *SQLiteRepository) UpdateOrderStatus(ctx context.Context, orderID string, status types.OrderStatus, filled decimal.Decimal) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE orders SET status = ?, filled = ?, updated_at = CURRENT_TIMESTAMP WHERE order_id = ?`,
		status, filled.String(), orderID,
	)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: order %s", types.ErrStateNotFound, orderID)
	}

	return nil
}

// SaveArbitrageExecution saves an executed cycle.
func (r *SQLiteRepository) SaveArbitrageExecution(ctx context.Context, exec ArbitrageRecord) error {
	query := `INSERT INTO arbitrage_executions
		(id, cycle, direction, value, origin_size, expected_size, order_ids, executed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		exec.ID,
		exec.Cycle,
		exec.Direction,
		exec.Value.String(),
		exec.OriginSize.String(),
		exec.ExpectedSize.String(),
		joinIDs(exec.OrderIDs),
		exec.ExecutedAt,
	)
	if err != nil {
		return fmt.Errorf("insert arbitrage execution: %w", err)
	}

	return nil
}

// GetArbitrageExecutions returns executions in a time range, newest first.
func (r *SQLiteRepository) GetArbitrageExecutions(ctx context.Context, from, to time.Time) ([]ArbitrageRecord, error) {
	query := `SELECT id, cycle, direction, value, origin_size, expected_size, order_ids, executed_at
		FROM arbitrage_executions WHERE executed_at BETWEEN ? AND ? ORDER BY executed_at DESC`

	rows, err := r.db.QueryContext(ctx, query, from, to)
	if err != nil {
		return nil, fmt.Errorf("query arbitrage executions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var execs []ArbitrageRecord
	for rows.Next() {
		var e ArbitrageRecord
		var value, origin, expected, ids string

		if err := rows.Scan(&e.ID, &e.Cycle, &e.Direction, &value, &origin, &expected, &ids, &e.ExecutedAt); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}

		e.Value, _ = decimal.NewFromString(value)
		e.OriginSize, _ = decimal.NewFromString(origin)
		e.ExpectedSize, _ = decimal.NewFromString(expected)
		e.OrderIDs = splitIDs(ids)

		execs = append(execs, e)
	}

	return execs, rows.Err()
}

// SaveState saves the engine state.
func (r *SQLiteRepository) SaveState(ctx context.Context, state EngineState) error {
	query := `INSERT OR REPLACE INTO engine_state
		(id, last_updated, cycles, stops_triggered, order_timeouts, cooldown_until)
		VALUES (1, ?, ?, ?, ?, ?)`

	var cooldown sql.NullTime
	if !state.CooldownUntil.IsZero() {
		cooldown = sql.NullTime{Time: state.CooldownUntil, Valid: true}
	}

	_, err := r.db.ExecContext(ctx, query,
		state.LastUpdated,
		state.Cycles,
		state.StopsTriggered,
		state.OrderTimeouts,
		cooldown,
	)
	if err != nil {
		return fmt.Errorf("save state: %w", err)
	}

	return nil
}

// GetState returns the saved engine state, or nil if none was saved.
func (r *SQLiteRepository) GetState(ctx context.Context) (*EngineState, error) {
	query := `SELECT id, last_updated, cycles, stops_triggered, order_timeouts, cooldown_until
		FROM engine_state WHERE id = 1`

	var state EngineState
	var cooldown sql.NullTime

	err := r.db.QueryRowContext(ctx, query).Scan(
		&state.ID,
		&state.LastUpdated,
		&state.Cycles,
		&state.StopsTriggered,
		&state.OrderTimeouts,
		&cooldown,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query state: %w", err)
	}

	if cooldown.Valid {
		state.CooldownUntil = cooldown.Time
	}

	return &state, nil
}

// Close closes the database connection.
func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}
