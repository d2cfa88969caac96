package store

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/mikepea/linkshelf/pkg/linkshelf/errx"
	"github.com/mikepea/linkshelf/pkg/linkshelf/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, models.AutoMigrate(db))
	return db
}

func seedCategories(t *testing.T, s *Store[models.Category], n int) []models.Category {
	out := make([]models.Category, n)
	for i := range out {
		out[i] = models.Category{Name: fmt.Sprintf("category-%02d", i)}
		require.NoError(t, s.Create(context.Background(), &out[i]))
	}
	return out
}

func TestGetAndNotFound(t *testing.T) {
	ctx := context.Background()
	s := New[models.Category](setupTestDB(t), "Category")
	created := seedCategories(t, s, 1)[0]

	got, err := s.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "category-00", got.Name)

	_, err = s.Get(ctx, 999)
	require.Error(t, err)
	assert.Equal(t, errx.NotFound, errx.KindOf(err))
	assert.Equal(t, "Category not found", errx.Message(err))
}

func TestCreateDuplicateIsConflict(t *testing.T) {
	s := New[models.Category](setupTestDB(t), "Category")
	seedCategories(t, s, 1)

	err := s.Create(context.Background(), &models.Category{Name: "category-00"})
	require.Error(t, err)
	assert.Equal(t, errx.Conflict, errx.KindOf(err))
}

func TestListPagination(t *testing.T) {
	ctx := context.Background()
	s := New[models.Category](setupTestDB(t), "Category")
	seedCategories(t, s, 10)

	tests := []struct {
		page      Page
		wantItems int
	}{
		{Page{Number: 1, Size: 6}, 6},
		{Page{Number: 2, Size: 6}, 4},
		{Page{Number: 3, Size: 6}, 0},
		{Page{}, 10},
	}

	for _, tt := range tests {
		items, total, err := s.List(ctx, ListOptions{Page: tt.page, Order: "name ASC"})
		require.NoError(t, err)
		assert.Equal(t, int64(10), total, "page %+v", tt.page)
		assert.Len(t, items, tt.wantItems, "page %+v", tt.page)
		assert.NotNil(t, items)
	}

	items, _, err := s.List(ctx, ListOptions{Page: Page{Number: 2, Size: 3}, Order: "name ASC"})
	require.NoError(t, err)
	assert.Equal(t, "category-03", items[0].Name)
}

func TestListWithScopes(t *testing.T) {
	ctx := context.Background()
	s := New[models.Category](setupTestDB(t), "Category")
	seedCategories(t, s, 5)

	byName := func(db *gorm.DB) *gorm.DB { return db.Where("name IN ?", []string{"category-01", "category-03"}) }
	items, total, err := s.List(ctx, ListOptions{Scopes: []Scope{byName}})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, items, 2)

	none := func(db *gorm.DB) *gorm.DB { return db.Where("name = ?", "missing") }
	items, total, err = s.List(ctx, ListOptions{Scopes: []Scope{none}, Page: Page{Number: 1, Size: 10}})
	require.NoError(t, err)
	assert.Equal(t, int64(0), total)
	assert.Empty(t, items)
	assert.NotNil(t, items)

	n, err := s.Count(ctx, byName)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestUpdate(t *testing.T) {
	ctx := context.Background()
	s := New[models.Category](setupTestDB(t), "Category")
	created := seedCategories(t, s, 2)

	updated, err := s.Update(ctx, created[0].ID, map[string]any{"name": "Editors"})
	require.NoError(t, err)
	assert.Equal(t, "Editors", updated.Name)

	_, err = s.Update(ctx, 999, map[string]any{"name": "x"})
	assert.Equal(t, errx.NotFound, errx.KindOf(err))

	_, err = s.Update(ctx, created[1].ID, map[string]any{"name": "Editors"})
	assert.Equal(t, errx.Conflict, errx.KindOf(err))

	unchanged, err := s.Update(ctx, created[1].ID, nil)
	require.NoError(t, err)
	assert.Equal(t, "category-01", unchanged.Name)
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	s := New[models.Category](setupTestDB(t), "Category")
	created := seedCategories(t, s, 1)[0]

	require.NoError(t, s.Delete(ctx, created.ID))
	err := s.Delete(ctx, created.ID)
	assert.Equal(t, errx.NotFound, errx.KindOf(err))
}

func TestWithTxRollsBack(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	s := New[models.Category](db, "Category")

	err := db.Transaction(func(tx *gorm.DB) error {
		if err := s.WithTx(tx).Create(ctx, &models.Category{Name: "temporary"}); err != nil {
			return err
		}
		return errors.New("abort")
	})
	require.Error(t, err)

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestGetWithPreload(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	topics := New[models.Topic](db, "Topic")

	topic := models.Topic{UserID: 1, Name: "Go"}
	require.NoError(t, topics.Create(ctx, &topic))
	require.NoError(t, db.Create(&models.URL{TopicID: topic.ID, Title: "Go", URL: "https://go.dev"}).Error)

	got, err := topics.Get(ctx, topic.ID, "URLs")
	require.NoError(t, err)
	assert.Len(t, got.URLs, 1)
}

func TestTranslate(t *testing.T) {
	assert.Nil(t, Translate("op", "Thing", nil))
	assert.Equal(t, errx.Timeout, errx.KindOf(Translate("op", "Thing", context.DeadlineExceeded)))
	assert.Equal(t, errx.Internal, errx.KindOf(Translate("op", "Thing", errors.New("disk full"))))

	already := errx.E("inner", errx.Forbidden, errors.New("no"))
	assert.Equal(t, already, Translate("op", "Thing", already))
}
