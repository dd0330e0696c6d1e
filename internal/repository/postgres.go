package repository

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/mmeshcher/reward-ledger/internal/model"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const (
	accountColumns    = `id, display_name, balance, referred_by, created_at`
	taskColumns       = `id, title, reward, link`
	withdrawalColumns = `id, account_id, amount, status, created_at, approved_at`
)

var defaultRetryDelays = []time.Duration{1 * time.Second, 3 * time.Second, 5 * time.Second}

// PostgresStore предоставляет доступ к хранилищу данных в PostgreSQL.
type PostgresStore struct {
	pool        *pgxpool.Pool
	db          *sql.DB
	retryDelays []time.Duration
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore создаёт пул соединений и применяет миграции схемы.
func NewPostgresStore(dsn string) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	db := stdlib.OpenDBFromPool(pool)
	if err := runMigrations(ctx, db); err != nil {
		db.Close()
		pool.Close()
		return nil, err
	}

	s := newPostgresStore(db)
	s.pool = pool
	return s, nil
}

func newPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db, retryDelays: defaultRetryDelays}
}

func runMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrationsFS)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

// Close закрывает соединения с БД.
func (s *PostgresStore) Close() error {
	err := s.db.Close()
	if s.pool != nil {
		s.pool.Close()
	}
	return err
}

// WithTx выполняет fn в транзакции и повторяет её при конфликте сериализации или обрыве соединения.
func (s *PostgresStore) WithTx(ctx context.Context, fn func(tx Tx) error) error {
	return s.withRetry(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback()

		if err := fn(&pgTx{tx: tx}); err != nil {
			return err
		}

		if err := tx.Commit(); err != nil {
			return &commitError{err: err}
		}
		return nil
	})
}

// commitError оборачивает ошибку COMMIT. После обрыва соединения исход транзакции неизвестен,
// поэтому повторять её можно только при явном отказе сервера.
type commitError struct {
	err error
}

func (e *commitError) Error() string { return "commit tx: " + e.err.Error() }

func (e *commitError) Unwrap() error { return e.err }

func (s *PostgresStore) withRetry(ctx context.Context, fn func() error) error {
	var err error
	for i := 0; i <= len(s.retryDelays); i++ {
		err = fn()
		if err == nil || !isRetryable(err) || i == len(s.retryDelays) {
			return err
		}

		timer := time.NewTimer(s.retryDelays[i])
		select {
		case <-ctx.Done():
			timer.Stop()
			return err
		case <-timer.C:
		}
	}
	return err
}

func isRetryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgerrcode.SerializationFailure || pgErr.Code == pgerrcode.DeadlockDetected
	}

	var commitErr *commitError
	if errors.As(err, &commitErr) {
		return false
	}

	return isConnectionError(err)
}

func isConnectionError(err error) bool {
	return strings.Contains(err.Error(), "connection refused") ||
		strings.Contains(err.Error(), "broken pipe") ||
		strings.Contains(err.Error(), "connection reset by peer")
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (model.Account, error) {
	var (
		acc        model.Account
		referredBy sql.NullInt64
	)
	if err := row.Scan(&acc.ID, &acc.DisplayName, &acc.Balance, &referredBy, &acc.CreatedAt); err != nil {
		return model.Account{}, err
	}
	if referredBy.Valid {
		ref := referredBy.Int64
		acc.ReferredBy = &ref
	}
	return acc, nil
}

func scanTask(row rowScanner) (model.Task, error) {
	var t model.Task
	err := row.Scan(&t.ID, &t.Title, &t.Reward, &t.Link)
	return t, err
}

func scanWithdrawal(row rowScanner) (model.Withdrawal, error) {
	var (
		w          model.Withdrawal
		status     string
		approvedAt sql.NullTime
	)
	if err := row.Scan(&w.ID, &w.AccountID, &w.Amount, &status, &w.CreatedAt, &approvedAt); err != nil {
		return model.Withdrawal{}, err
	}
	w.Status = model.WithdrawalStatus(status)
	if approvedAt.Valid {
		at := approvedAt.Time
		w.ApprovedAt = &at
	}
	return w, nil
}

type pgTx struct {
	tx *sql.Tx
}

func (t *pgTx) GetAccount(ctx context.Context, id int64) (model.Account, error) {
	return t.selectAccount(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id)
}

func (t *pgTx) LockAccount(ctx context.Context, id int64) (model.Account, error) {
	return t.selectAccount(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1 FOR UPDATE`, id)
}

func (t *pgTx) selectAccount(ctx context.Context, query string, id int64) (model.Account, error) {
	acc, err := scanAccount(t.tx.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Account{}, ErrAccountNotFound
		}
		return model.Account{}, fmt.Errorf("get account: %w", err)
	}
	return acc, nil
}

func (t *pgTx) CreateAccount(ctx context.Context, acc model.Account) (model.Account, bool, error) {
	var referredBy sql.NullInt64
	if acc.ReferredBy != nil {
		referredBy = sql.NullInt64{Int64: *acc.ReferredBy, Valid: true}
	}

	created, err := scanAccount(t.tx.QueryRowContext(ctx,
		`INSERT INTO accounts (id, display_name, balance, referred_by)
		 VALUES ($1, $2, 0, $3)
		 ON CONFLICT (id) DO NOTHING
		 RETURNING `+accountColumns,
		acc.ID, acc.DisplayName, referredBy,
	))
	if err == nil {
		return created, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return model.Account{}, false, fmt.Errorf("insert account: %w", err)
	}

	existing, err := t.GetAccount(ctx, acc.ID)
	if err != nil {
		return model.Account{}, false, err
	}
	return existing, false, nil
}

func (t *pgTx) AdjustBalance(ctx context.Context, id int64, delta int64) (model.Account, error) {
	acc, err := scanAccount(t.tx.QueryRowContext(ctx,
		`UPDATE accounts
		 SET balance = balance + $2
		 WHERE id = $1 AND balance + $2 >= 0
		 RETURNING `+accountColumns,
		id, delta,
	))
	if err == nil {
		return acc, nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.CheckViolation {
		return model.Account{}, ErrInsufficientBalance
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return model.Account{}, fmt.Errorf("update balance: %w", err)
	}

	var exists bool
	err = t.tx.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM accounts WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return model.Account{}, fmt.Errorf("check account: %w", err)
	}
	if !exists {
		return model.Account{}, ErrAccountNotFound
	}
	return model.Account{}, ErrInsufficientBalance
}

func (t *pgTx) ListAccounts(ctx context.Context) ([]model.Account, error) {
	rows, err := t.tx.QueryContext(ctx, `SELECT `+accountColumns+` FROM accounts ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("select accounts: %w", err)
	}
	defer rows.Close()

	var res []model.Account
	for rows.Next() {
		acc, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		res = append(res, acc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return res, nil
}

func (t *pgTx) LockTasks(ctx context.Context) error {
	if _, err := t.tx.ExecContext(ctx, `LOCK TABLE tasks IN SHARE ROW EXCLUSIVE MODE`); err != nil {
		return fmt.Errorf("lock tasks: %w", err)
	}
	return nil
}

func (t *pgTx) CountTasks(ctx context.Context) (int64, error) {
	var n int64
	if err := t.tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM tasks`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count tasks: %w", err)
	}
	return n, nil
}

func (t *pgTx) GetTask(ctx context.Context, id int64) (model.Task, error) {
	task, err := scanTask(t.tx.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Task{}, ErrTaskNotFound
		}
		return model.Task{}, fmt.Errorf("get task: %w", err)
	}
	return task, nil
}

func (t *pgTx) ListTasks(ctx context.Context) ([]model.Task, error) {
	rows, err := t.tx.QueryContext(ctx, `SELECT `+taskColumns+` FROM tasks ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("select tasks: %w", err)
	}
	defer rows.Close()

	var res []model.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		res = append(res, task)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return res, nil
}

func (t *pgTx) InsertTask(ctx context.Context, title string, reward int64, link string) (model.Task, error) {
	if err := t.LockTasks(ctx); err != nil {
		return model.Task{}, err
	}

	task, err := scanTask(t.tx.QueryRowContext(ctx,
		`INSERT INTO tasks (id, title, reward, link)
		 SELECT COALESCE(MAX(id), 0) + 1, $1, $2, $3 FROM tasks
		 RETURNING `+taskColumns,
		title, reward, link,
	))
	if err != nil {
		return model.Task{}, fmt.Errorf("insert task: %w", err)
	}
	return task, nil
}

func (t *pgTx) InsertWithdrawal(ctx context.Context, accountID, amount int64) (model.Withdrawal, error) {
	w, err := scanWithdrawal(t.tx.QueryRowContext(ctx,
		`INSERT INTO withdrawals (account_id, amount, status)
		 VALUES ($1, $2, $3)
		 RETURNING `+withdrawalColumns,
		accountID, amount, string(model.WithdrawalPending),
	))
	if err != nil {
		return model.Withdrawal{}, fmt.Errorf("insert withdrawal: %w", err)
	}
	return w, nil
}

func (t *pgTx) GetWithdrawal(ctx context.Context, id int64) (model.Withdrawal, error) {
	return t.selectWithdrawal(ctx, `SELECT `+withdrawalColumns+` FROM withdrawals WHERE id = $1`, id)
}

func (t *pgTx) LockWithdrawal(ctx context.Context, id int64) (model.Withdrawal, error) {
	return t.selectWithdrawal(ctx, `SELECT `+withdrawalColumns+` FROM withdrawals WHERE id = $1 FOR UPDATE`, id)
}

func (t *pgTx) selectWithdrawal(ctx context.Context, query string, id int64) (model.Withdrawal, error) {
	w, err := scanWithdrawal(t.tx.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Withdrawal{}, ErrWithdrawalNotFound
		}
		return model.Withdrawal{}, fmt.Errorf("get withdrawal: %w", err)
	}
	return w, nil
}

func (t *pgTx) MarkWithdrawalApproved(ctx context.Context, id int64, at time.Time) (model.Withdrawal, error) {
	w, err := scanWithdrawal(t.tx.QueryRowContext(ctx,
		`UPDATE withdrawals SET status = $2, approved_at = $3 WHERE id = $1 RETURNING `+withdrawalColumns,
		id, string(model.WithdrawalApproved), at,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Withdrawal{}, ErrWithdrawalNotFound
		}
		return model.Withdrawal{}, fmt.Errorf("approve withdrawal: %w", err)
	}
	return w, nil
}

func (t *pgTx) PendingWithdrawalTotal(ctx context.Context, accountID int64) (int64, error) {
	var total int64
	err := t.tx.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(amount), 0) FROM withdrawals WHERE account_id = $1 AND status = $2`,
		accountID, string(model.WithdrawalPending),
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("sum pending withdrawals: %w", err)
	}
	return total, nil
}

func (t *pgTx) ListWithdrawals(ctx context.Context) ([]model.Withdrawal, error) {
	rows, err := t.tx.QueryContext(ctx, `SELECT `+withdrawalColumns+` FROM withdrawals ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("select withdrawals: %w", err)
	}
	defer rows.Close()

	var res []model.Withdrawal
	for rows.Next() {
		w, err := scanWithdrawal(rows)
		if err != nil {
			return nil, fmt.Errorf("scan withdrawal: %w", err)
		}
		res = append(res, w)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return res, nil
}
