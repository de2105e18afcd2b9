// Package storage persists expenses in SQLite. Every query that touches
// expense rows carries a user_id filter; there is deliberately no way to
// read or mutate a row without naming its owner.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"spendlog/internal/core"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when no expense matches (id, owner). Callers
// surface it as 404 regardless of whether the row exists under another
// owner, so existence is never disclosed across users.
var ErrNotFound = errors.New("expense not found")

type Repository struct {
	db *sql.DB
}

func NewRepository(dbPath string) (*Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Repository{db: db}, nil
}

func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable. Used by readiness checks.
func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// ListExpenses returns every expense owned by userID, newest first.
func (r *Repository) ListExpenses(ctx context.Context, userID string) ([]core.Expense, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, title, amount_cents, created_at
		 FROM expenses WHERE user_id = ? ORDER BY id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	defer rows.Close()

	expenses := []core.Expense{}
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		expenses = append(expenses, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expenses: %w", err)
	}
	return expenses, nil
}

// TotalCents returns the exact sum of all amounts owned by userID.
// The sum runs over integer cents in SQL, so there is no float drift.
func (r *Repository) TotalCents(ctx context.Context, userID string) (int64, error) {
	var total int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(amount_cents), 0) FROM expenses WHERE user_id = ?`,
		userID).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("sum expenses: %w", err)
	}
	return total, nil
}

func (r *Repository) GetExpense(ctx context.Context, userID string, id int64) (core.Expense, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, title, amount_cents, created_at
		 FROM expenses WHERE id = ? AND user_id = ?`, id, userID)
	e, err := scanExpense(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Expense{}, ErrNotFound
	}
	if err != nil {
		return core.Expense{}, fmt.Errorf("get expense: %w", err)
	}
	return e, nil
}

// CreateExpense inserts a new row and returns it with the assigned id.
// Ids come from an AUTOINCREMENT column, so they are assigned once and
// never reused after deletion.
func (r *Repository) CreateExpense(ctx context.Context, userID, title string, amount core.Money) (core.Expense, error) {
	createdAt := time.Now().UTC()
	row := r.db.QueryRowContext(ctx,
		`INSERT INTO expenses (user_id, title, amount_cents, created_at)
		 VALUES (?, ?, ?, ?)
		 RETURNING id, user_id, title, amount_cents, created_at`,
		userID, title, amount.Cents, createdAt)
	e, err := scanExpense(row)
	if err != nil {
		return core.Expense{}, fmt.Errorf("create expense: %w", err)
	}

	slog.InfoContext(ctx, "Expense created",
		"id", e.ID,
		"title", e.Title,
		"amount_cents", e.Amount.Cents)
	return e, nil
}

// UpdateExpense applies title and amount to the row matching (id, owner).
func (r *Repository) UpdateExpense(ctx context.Context, userID string, id int64, title string, amount core.Money) (core.Expense, error) {
	row := r.db.QueryRowContext(ctx,
		`UPDATE expenses SET title = ?, amount_cents = ?
		 WHERE id = ? AND user_id = ?
		 RETURNING id, user_id, title, amount_cents, created_at`,
		title, amount.Cents, id, userID)
	e, err := scanExpense(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Expense{}, ErrNotFound
	}
	if err != nil {
		return core.Expense{}, fmt.Errorf("update expense: %w", err)
	}

	slog.InfoContext(ctx, "Expense updated",
		"id", e.ID,
		"title", e.Title,
		"amount_cents", e.Amount.Cents)
	return e, nil
}

// DeleteExpense removes the row matching (id, owner). Deletion is
// physical; a second delete of the same id reports ErrNotFound.
func (r *Repository) DeleteExpense(ctx context.Context, userID string, id int64) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM expenses WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete expense rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}

	slog.InfoContext(ctx, "Expense deleted", "id", id)
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanExpense(row rowScanner) (core.Expense, error) {
	var e core.Expense
	var cents int64
	if err := row.Scan(&e.ID, &e.UserID, &e.Title, &cents, &e.CreatedAt); err != nil {
		return core.Expense{}, err
	}
	e.Amount = core.Money{Cents: cents}
	return e, nil
}
