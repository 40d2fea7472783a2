package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tracklight/tracklight-api/internal/models"
)

func TestCategoryRepositoryListInClassificationOrder(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewCategoryRepository(db)

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{"id", "name", "color", "priority", "parent_id", "rules", "created_at", "updated_at"}).
		AddRow("work", "Work", "#336699", 10, nil, []byte(`[{"kind":"CONTAINS","pattern":"meeting"}]`), now, now).
		AddRow("personal", "Personal", "#993366", 5, nil, []byte(`[]`), now, now)

	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY priority DESC, name ASC")).
		WillReturnRows(rows)

	categories, err := repo.List(context.Background())
	require.NoError(t, err)
	require.Len(t, categories, 2)
	assert.Equal(t, "work", categories[0].ID)
	require.Len(t, categories[0].Rules, 1)
	assert.Equal(t, models.RuleContains, categories[0].Rules[0].Kind)
	assert.Equal(t, "meeting", categories[0].Rules[0].Pattern)
	assert.Empty(t, categories[1].Rules)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCategoryRepositoryCreateMintsID(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewCategoryRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO categories")).
		WithArgs(sqlmock.AnyArg(), "Work", "#336699", 10, nil, sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	category := &models.Category{Name: "Work", Color: "#336699", Priority: 10}
	err := repo.Create(context.Background(), category)
	require.NoError(t, err)
	assert.NotEmpty(t, category.ID)
	assert.False(t, category.CreatedAt.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCategoryRepositoryUpdateWritesRules(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewCategoryRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE categories SET")).
		WithArgs("Work", "#336699", 20, nil, sqlmock.AnyArg(), sqlmock.AnyArg(), "work").
		WillReturnResult(sqlmock.NewResult(0, 1))

	category := &models.Category{
		ID:       "work",
		Name:     "Work",
		Color:    "#336699",
		Priority: 20,
		Rules:    models.RuleList{{Kind: models.RuleEquals, Pattern: "Standup"}},
	}
	err := repo.Update(context.Background(), category)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCategoryRepositoryCountChildren(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewCategoryRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM categories WHERE parent_id = $1")).
		WithArgs("work").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

	count, err := repo.CountChildren(context.Background(), "work")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCategoryRepositoryDelete(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewCategoryRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM categories WHERE id = $1")).
		WithArgs("work").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Delete(context.Background(), "work")
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
