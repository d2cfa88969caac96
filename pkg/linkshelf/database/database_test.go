package database

import (
	"path/filepath"
	"testing"

	"github.com/mikepea/linkshelf/pkg/linkshelf/config"
	"github.com/mikepea/linkshelf/pkg/linkshelf/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLiteDSN(t *testing.T) {
	assert.Equal(t, ":memory:", sqliteDSN(":memory:"))
	assert.Equal(t, "app.db?"+sqlitePragmas, sqliteDSN("app.db"))
	assert.Equal(t, "file:app.db?cache=shared&"+sqlitePragmas, sqliteDSN("file:app.db?cache=shared"))
	assert.Equal(t, "app.db?_foreign_keys=off", sqliteDSN("app.db?_foreign_keys=off"))
}

func TestOpenSQLiteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "linkshelf.db")

	db, err := Open(config.DatabaseConfig{Driver: "sqlite", DSN: path}, nil)
	require.NoError(t, err)
	require.NoError(t, models.AutoMigrate(db))

	category := models.Category{Name: "Editors"}
	require.NoError(t, db.Create(&category).Error)

	var count int64
	db.Model(&models.Category{}).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := Open(config.DatabaseConfig{Driver: "oracle", DSN: "x"}, nil)
	assert.Error(t, err)
}
