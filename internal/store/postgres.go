package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/papertrade/ledger-engine/internal/metrics"
	"github.com/papertrade/ledger-engine/internal/model"
)

// PostgresStore implements Store using PostgreSQL as the source of truth.
// All monetary values are stored as NUMERIC for exact decimal precision.
// Accounts carry a version column; ExecuteTrade commits with a
// compare-and-swap on that version, so a concurrent commit on the same
// account surfaces ErrConflict instead of clobbering state.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) CreateAccount(ctx context.Context, id string, startingCash decimal.Decimal) error {
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO accounts (id, cash_balance, version, created_at)
		 VALUES ($1, $2::NUMERIC, 0, $3)
		 ON CONFLICT (id) DO NOTHING`,
		id, startingCash.String(), time.Now().UTC(),
	)
	if err == nil && tag.RowsAffected() == 1 {
		metrics.OpenAccounts.Inc()
	}
	return err
}

func (s *PostgresStore) GetAccount(ctx context.Context, id string) (*model.Account, error) {
	acct, _, err := s.readAccount(ctx, s.pool, id)
	return acct, err
}

// querier covers both pgxpool.Pool and pgx.Tx.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (s *PostgresStore) readAccount(ctx context.Context, q querier, id string) (*model.Account, uint64, error) {
	var a model.Account
	var cash string
	var version uint64

	err := q.QueryRow(ctx,
		`SELECT id, cash_balance::TEXT, version, created_at
		 FROM accounts WHERE id = $1`, id).
		Scan(&a.ID, &cash, &version, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, 0, ErrAccountNotFound
	}
	if err != nil {
		return nil, 0, fmt.Errorf("get account %s: %w", id, err)
	}
	a.CashBalance, _ = decimal.NewFromString(cash)
	a.Holdings = make(map[string]model.Position)

	rows, err := q.Query(ctx,
		`SELECT ticker, quantity, average_cost::TEXT
		 FROM account_positions WHERE account_id = $1`, id)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	for rows.Next() {
		var p model.Position
		var avg string
		if err := rows.Scan(&p.Ticker, &p.Quantity, &avg); err != nil {
			return nil, 0, err
		}
		p.AverageCost, _ = decimal.NewFromString(avg)
		a.Holdings[p.Ticker] = p
	}
	return &a, version, rows.Err()
}

func (s *PostgresStore) ExecuteTrade(ctx context.Context, accountID string, fn TxFunc) (*model.Trade, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	acct, version, err := s.readAccount(ctx, tx, accountID)
	if err != nil {
		return nil, err
	}

	trade, err := fn(acct)
	if err != nil {
		return nil, err
	}

	// Compare-and-swap on the version read above. Zero rows means another
	// transaction committed first.
	tag, err := tx.Exec(ctx,
		`UPDATE accounts SET cash_balance = $2::NUMERIC, version = version + 1
		 WHERE id = $1 AND version = $3`,
		accountID, acct.CashBalance.String(), version,
	)
	if err != nil {
		return nil, mapConflict(err)
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrConflict
	}

	// Rewrite holdings to match the mutated account.
	if _, err := tx.Exec(ctx,
		`DELETE FROM account_positions WHERE account_id = $1`, accountID); err != nil {
		return nil, mapConflict(err)
	}
	for _, p := range acct.Holdings {
		if _, err := tx.Exec(ctx,
			`INSERT INTO account_positions (account_id, ticker, quantity, average_cost)
			 VALUES ($1, $2, $3, $4::NUMERIC)`,
			accountID, p.Ticker, p.Quantity, p.AverageCost.String()); err != nil {
			return nil, mapConflict(err)
		}
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO trades (id, account_id, side, ticker, quantity, fill_price,
		                     commission, gross_amount, net_cash_delta, realized_pnl,
		                     created_at, settles_on, status)
		 VALUES ($1, $2, $3, $4, $5, $6::NUMERIC, $7::NUMERIC, $8::NUMERIC,
		         $9::NUMERIC, $10::NUMERIC, $11, $12, $13)`,
		trade.ID, trade.AccountID, trade.Side, trade.Ticker, trade.Quantity,
		trade.FillPrice.String(), trade.Commission.String(), trade.GrossAmount.String(),
		trade.NetCashDelta.String(), trade.RealizedPnL.String(),
		trade.CreatedAt, trade.SettlesOn, trade.Status); err != nil {
		return nil, mapConflict(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, mapConflict(err)
	}
	return trade, nil
}

// mapConflict translates serialization failures into ErrConflict so the
// executor's retry loop treats them uniformly with version mismatches.
func mapConflict(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// 40001 serialization_failure, 40P01 deadlock_detected
		if pgErr.Code == "40001" || pgErr.Code == "40P01" {
			return ErrConflict
		}
	}
	return err
}

const tradeColumns = `id, account_id, side, ticker, quantity, fill_price::TEXT,
	commission::TEXT, gross_amount::TEXT, net_cash_delta::TEXT, realized_pnl::TEXT,
	created_at, settles_on, status`

func (s *PostgresStore) GetTrade(ctx context.Context, id string) (*model.Trade, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+tradeColumns+` FROM trades WHERE id = $1`, id)
	t, err := scanTrade(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrTradeNotFound
	}
	return t, err
}

func (s *PostgresStore) TradesByAccount(ctx context.Context, accountID string) ([]model.Trade, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+tradeColumns+` FROM trades
		 WHERE account_id = $1 ORDER BY created_at`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTrades(rows)
}

func (s *PostgresStore) TradesDue(ctx context.Context, asOf time.Time) ([]model.Trade, error) {
	day := time.Date(asOf.Year(), asOf.Month(), asOf.Day(), 0, 0, 0, 0, time.UTC)
	rows, err := s.pool.Query(ctx,
		`SELECT `+tradeColumns+` FROM trades
		 WHERE status = 'pending' AND settles_on <= $1 ORDER BY created_at`, day)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTrades(rows)
}

func (s *PostgresStore) MarkSettled(ctx context.Context, tradeID string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE trades SET status = 'settled' WHERE id = $1 AND status = 'pending'`,
		tradeID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		// Distinguish already-final from missing.
		var exists bool
		if err := s.pool.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM trades WHERE id = $1)`, tradeID).
			Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return ErrTradeNotFound
		}
	}
	return nil
}

func scanTrade(row pgx.Row) (*model.Trade, error) {
	var t model.Trade
	var fill, fee, gross, net, pnl string
	if err := row.Scan(&t.ID, &t.AccountID, &t.Side, &t.Ticker, &t.Quantity,
		&fill, &fee, &gross, &net, &pnl,
		&t.CreatedAt, &t.SettlesOn, &t.Status); err != nil {
		return nil, err
	}
	t.FillPrice, _ = decimal.NewFromString(fill)
	t.Commission, _ = decimal.NewFromString(fee)
	t.GrossAmount, _ = decimal.NewFromString(gross)
	t.NetCashDelta, _ = decimal.NewFromString(net)
	t.RealizedPnL, _ = decimal.NewFromString(pnl)
	t.SettlesOn = t.SettlesOn.UTC()
	return &t, nil
}

func scanTrades(rows pgx.Rows) ([]model.Trade, error) {
	var trades []model.Trade
	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			return nil, err
		}
		trades = append(trades, *t)
	}
	return trades, rows.Err()
}
