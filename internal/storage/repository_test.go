package storage

import (
	"context"
	"path/filepath"
	"testing"

	"spendlog/internal/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	repo, err := NewRepository(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err, "failed to open test database")
	t.Cleanup(func() { repo.Close() })
	return repo
}

func mustCreate(t *testing.T, repo *Repository, userID, title string, cents int64) core.Expense {
	t.Helper()
	e, err := repo.CreateExpense(context.Background(), userID, title, core.Money{Cents: cents})
	require.NoError(t, err)
	return e
}

func TestCreateAndGetExpense(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	created := mustCreate(t, repo, "user-a", "Rent", 100000)
	assert.Positive(t, created.ID)
	assert.Equal(t, "user-a", created.UserID)
	assert.Equal(t, "Rent", created.Title)
	assert.Equal(t, "1000.00", created.Amount.String())

	got, err := repo.GetExpense(ctx, "user-a", created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, created.Title, got.Title)
	assert.Equal(t, created.Amount.String(), got.Amount.String())
}

func TestIDsAreMonotonicAndNeverReused(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	first := mustCreate(t, repo, "user-a", "First", 100)
	second := mustCreate(t, repo, "user-a", "Second", 200)
	assert.Greater(t, second.ID, first.ID)

	require.NoError(t, repo.DeleteExpense(ctx, "user-a", second.ID))

	third := mustCreate(t, repo, "user-a", "Third", 300)
	assert.Greater(t, third.ID, second.ID, "id of a deleted row must not be reassigned")
}

func TestListScopedToOwner(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	mustCreate(t, repo, "user-a", "Groceries", 5000)
	mustCreate(t, repo, "user-a", "Car Payment", 40000)
	mustCreate(t, repo, "user-b", "Someone else's", 999)

	list, err := repo.ListExpenses(ctx, "user-a")
	require.NoError(t, err)
	require.Len(t, list, 2)
	// Newest first.
	assert.Equal(t, "Car Payment", list[0].Title)
	assert.Equal(t, "Groceries", list[1].Title)
	for _, e := range list {
		assert.Equal(t, "user-a", e.UserID)
	}

	empty, err := repo.ListExpenses(ctx, "user-c")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestTotalCentsIsExact(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	// Three times 0.01 must be exactly 0.03.
	for i := 0; i < 3; i++ {
		mustCreate(t, repo, "user-a", "Penny", 1)
	}
	total, err := repo.TotalCents(ctx, "user-a")
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Equal(t, "0.03", core.Money{Cents: total}.String())

	// An empty account sums to zero, not an error.
	total, err = repo.TotalCents(ctx, "user-b")
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestGetNeverCrossesOwners(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	secret := mustCreate(t, repo, "user-b", "Secret purchase", 12345)

	// A guessed id belonging to another user is indistinguishable from a
	// missing row.
	_, err := repo.GetExpense(ctx, "user-a", secret.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = repo.GetExpense(ctx, "user-a", secret.ID+1000)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateExpense(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	created := mustCreate(t, repo, "user-a", "Rent", 100000)

	updated, err := repo.UpdateExpense(ctx, "user-a", created.ID, "Rent (new lease)", core.Money{Cents: 110000})
	require.NoError(t, err)
	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, "Rent (new lease)", updated.Title)
	assert.Equal(t, "1100.00", updated.Amount.String())

	// Updating under the wrong owner must not touch the row.
	_, err = repo.UpdateExpense(ctx, "user-b", created.ID, "Hijacked", core.Money{Cents: 1})
	assert.ErrorIs(t, err, ErrNotFound)

	got, err := repo.GetExpense(ctx, "user-a", created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Rent (new lease)", got.Title)
}

func TestDeleteExpense(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	created := mustCreate(t, repo, "user-a", "Groceries", 5000)

	// Wrong owner cannot delete.
	assert.ErrorIs(t, repo.DeleteExpense(ctx, "user-b", created.ID), ErrNotFound)

	require.NoError(t, repo.DeleteExpense(ctx, "user-a", created.ID))

	// Second delete reports not-found, not a crash.
	assert.ErrorIs(t, repo.DeleteExpense(ctx, "user-a", created.ID), ErrNotFound)

	_, err := repo.GetExpense(ctx, "user-a", created.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}
