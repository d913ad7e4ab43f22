//go:build integration

package database

import (
	"context"
	"testing"
	"time"

	"libris/internal/config"
	"libris/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupPostgres(t *testing.T) *gorm.DB {
	t.Helper()
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("libris"),
		postgres.WithUsername("libris"),
		postgres.WithPassword("libris"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	dsn, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := gorm.Open(gormpostgres.Open(dsn), &gorm.Config{Logger: logger.Discard})
	require.NoError(t, err)
	return db
}

func TestPostgres_HybridSchemaAndUniqueMapping(t *testing.T) {
	db := setupPostgres(t)
	ctx := context.Background()

	require.NoError(t, ApplySchema(ctx, db, &config.Config{DBSchemaMode: "hybrid", Env: "development"}))

	status, err := GetSchemaStatus(ctx, db, &config.Config{DBSchemaMode: "sql", Env: "production"})
	require.NoError(t, err)
	assert.Empty(t, status.PendingMigrations)

	u := models.User{Email: "a@example.com", Username: "a", Password: "x", IsActive: true}
	require.NoError(t, db.Create(&u).Error)

	dup := models.User{Email: "a@example.com", Username: "b", Password: "x", IsActive: true}
	err = db.Create(&dup).Error
	col, ok := UniqueViolation(err)
	assert.True(t, ok)
	assert.Equal(t, "email", col)

	isbn := "12345"
	err = db.Create(&models.Book{Title: "t", AuthorID: u.ID, ISBN: &isbn, YearPublished: 2000, Pages: 1, IsPublic: true}).Error
	assert.Error(t, err, "isbn check constraint rejects non 13-digit values")

	require.NoError(t, RollbackMigration(ctx, db, 1))
	assert.False(t, db.Migrator().HasTable("books"))
}
