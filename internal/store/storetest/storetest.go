// Package storetest builds local stores on a private in-memory SQLite
// database for tests in other packages.
package storetest

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"requisition-sync/internal/db"
	"requisition-sync/internal/store"
)

// NewDB opens and migrates an isolated in-memory database.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	gormDB, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := gormDB.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, db.Migrate(gormDB))
	return gormDB
}

// New returns stores backed by a fresh in-memory database.
func New(t testing.TB) *store.Stores {
	t.Helper()
	return store.NewStores(NewDB(t), time.Minute)
}
