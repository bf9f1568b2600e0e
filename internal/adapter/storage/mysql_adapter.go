package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/rl1809/fund-engine/internal/core/domain"
	"github.com/rl1809/fund-engine/internal/port"
)

const errDuplicateEntry = 1062

var (
	_ port.DatabaseRepository = (*MySQLAdapter)(nil)
	_ port.Tx                 = (*mysqlTx)(nil)
)

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type MySQLAdapter struct {
	db *sql.DB
	mysqlReader
}

func NewMySQLAdapter(db *sql.DB) *MySQLAdapter {
	return &MySQLAdapter{db: db, mysqlReader: mysqlReader{q: db}}
}

func (m *MySQLAdapter) WithTx(ctx context.Context, fn func(tx port.Tx) error) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&mysqlTx{mysqlReader: mysqlReader{q: tx}}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (m *MySQLAdapter) Ping(ctx context.Context) error {
	return m.db.PingContext(ctx)
}

func (m *MySQLAdapter) ListFunds(ctx context.Context) ([]domain.Fund, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT id, name, minimum_investment, category, active, position, created_at
		FROM funds ORDER BY position ASC`)
	if err != nil {
		return nil, fmt.Errorf("query funds: %w", err)
	}
	defer rows.Close()

	var funds []domain.Fund
	for rows.Next() {
		var f domain.Fund
		if err := rows.Scan(&f.ID, &f.Name, &f.MinimumInvestment, &f.Category, &f.Active, &f.Position, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan fund: %w", err)
		}
		funds = append(funds, f)
	}
	return funds, rows.Err()
}

func (m *MySQLAdapter) ListActiveSubscriptions(ctx context.Context, accountID string) ([]domain.Subscription, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT id, account_id, fund_id, amount, active, created_at, closed_at
		FROM subscriptions
		WHERE account_id = ? AND active = TRUE
		ORDER BY created_at ASC`, accountID,
	)
	if err != nil {
		return nil, fmt.Errorf("query subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []domain.Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, *sub)
	}
	return subs, rows.Err()
}

func (m *MySQLAdapter) ListTransactions(ctx context.Context, accountID string) ([]domain.TransactionRecord, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE account_id = ?
		ORDER BY seq DESC`, accountID,
	)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	var records []domain.TransactionRecord
	for rows.Next() {
		rec, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

func (m *MySQLAdapter) ListAccountIDs(ctx context.Context) ([]string, error) {
	rows, err := m.db.QueryContext(ctx, `SELECT id FROM accounts ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query accounts: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan account id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

type mysqlReader struct {
	q queryer
}

const accountColumns = `id, balance, initial_balance, version, active, created_at, updated_at`

func (r mysqlReader) GetAccount(ctx context.Context, accountID string) (*domain.Account, error) {
	return r.getAccount(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = ?`, accountID)
}

func (r mysqlReader) getAccount(ctx context.Context, query, accountID string) (*domain.Account, error) {
	var acc domain.Account
	err := r.q.QueryRowContext(ctx, query, accountID).Scan(
		&acc.ID, &acc.Balance, &acc.InitialBalance, &acc.Version, &acc.Active, &acc.CreatedAt, &acc.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query account: %w", err)
	}
	return &acc, nil
}

func (r mysqlReader) GetFund(ctx context.Context, fundID string) (*domain.Fund, error) {
	var f domain.Fund
	err := r.q.QueryRowContext(ctx, `
		SELECT id, name, minimum_investment, category, active, position, created_at
		FROM funds WHERE id = ?`, fundID,
	).Scan(&f.ID, &f.Name, &f.MinimumInvestment, &f.Category, &f.Active, &f.Position, &f.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query fund: %w", err)
	}
	return &f, nil
}

func (r mysqlReader) GetActiveSubscription(ctx context.Context, accountID, fundID string) (*domain.Subscription, error) {
	row := r.q.QueryRowContext(ctx, `
		SELECT id, account_id, fund_id, amount, active, created_at, closed_at
		FROM subscriptions
		WHERE account_id = ? AND fund_id = ? AND active = TRUE`, accountID, fundID,
	)
	sub, err := scanSubscription(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return sub, err
}

func (r mysqlReader) FindTransactionByIdempotencyKey(ctx context.Context, accountID, key string) (*domain.TransactionRecord, error) {
	row := r.q.QueryRowContext(ctx, `
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE account_id = ? AND idempotency_key = ?`, accountID, key,
	)
	rec, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return rec, err
}

type mysqlTx struct {
	mysqlReader
}

func (t *mysqlTx) LockAccount(ctx context.Context, accountID string) (*domain.Account, error) {
	return t.getAccount(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = ? FOR UPDATE`, accountID)
}

func (t *mysqlTx) CompareAndSetBalance(ctx context.Context, accountID string, expected, next domain.Amount) (bool, error) {
	result, err := t.q.ExecContext(ctx, `
		UPDATE accounts
		SET balance = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND balance = ? AND active = TRUE`,
		next, time.Now().UTC(), accountID, expected,
	)
	if err != nil {
		return false, fmt.Errorf("update balance: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update balance: %w", err)
	}
	return rows == 1, nil
}

func (t *mysqlTx) InsertSubscription(ctx context.Context, sub domain.Subscription) error {
	_, err := t.q.ExecContext(ctx, `
		INSERT INTO subscriptions (id, account_id, fund_id, amount, active, active_guard, created_at)
		VALUES (?, ?, ?, ?, TRUE, 1, ?)`,
		sub.ID, sub.AccountID, sub.FundID, sub.Amount, sub.CreatedAt,
	)
	if isDuplicateKey(err) {
		return domain.ErrDuplicateSubscription
	}
	if err != nil {
		return fmt.Errorf("insert subscription: %w", err)
	}
	return nil
}

func (t *mysqlTx) CloseSubscription(ctx context.Context, accountID, fundID string, closedAt time.Time) (bool, error) {
	result, err := t.q.ExecContext(ctx, `
		UPDATE subscriptions
		SET active = FALSE, active_guard = NULL, closed_at = ?
		WHERE account_id = ? AND fund_id = ? AND active = TRUE`,
		closedAt, accountID, fundID,
	)
	if err != nil {
		return false, fmt.Errorf("close subscription: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("close subscription: %w", err)
	}
	return rows == 1, nil
}

func (t *mysqlTx) InsertTransaction(ctx context.Context, rec domain.TransactionRecord) error {
	var key sql.NullString
	if rec.IdempotencyKey != "" {
		key = sql.NullString{String: rec.IdempotencyKey, Valid: true}
	}

	_, err := t.q.ExecContext(ctx, `
		INSERT INTO transactions (id, account_id, fund_id, fund_name, kind, amount,
			balance_before, balance_after, status, idempotency_key, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.AccountID, rec.FundID, rec.FundName, rec.Kind, rec.Amount,
		rec.BalanceBefore, rec.BalanceAfter, rec.Status, key, rec.CreatedAt,
	)
	if isDuplicateKey(err) {
		return fmt.Errorf("idempotency key %q already recorded: %w", rec.IdempotencyKey, domain.ErrConcurrencyConflict)
	}
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

const transactionColumns = `id, account_id, fund_id, fund_name, kind, amount,
	balance_before, balance_after, status, idempotency_key, created_at`

func scanTransaction(s scanner) (*domain.TransactionRecord, error) {
	var rec domain.TransactionRecord
	var key sql.NullString
	err := s.Scan(
		&rec.ID, &rec.AccountID, &rec.FundID, &rec.FundName, &rec.Kind, &rec.Amount,
		&rec.BalanceBefore, &rec.BalanceAfter, &rec.Status, &key, &rec.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scan transaction: %w", err)
	}
	rec.IdempotencyKey = key.String
	return &rec, nil
}

func scanSubscription(s scanner) (*domain.Subscription, error) {
	var sub domain.Subscription
	var closedAt sql.NullTime
	err := s.Scan(&sub.ID, &sub.AccountID, &sub.FundID, &sub.Amount, &sub.Active, &sub.CreatedAt, &closedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scan subscription: %w", err)
	}
	if closedAt.Valid {
		t := closedAt.Time
		sub.ClosedAt = &t
	}
	return &sub, nil
}

func isDuplicateKey(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == errDuplicateEntry
}
