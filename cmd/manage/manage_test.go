package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"libris/internal/auth"
	"libris/internal/config"
	"libris/internal/database"
	"libris/internal/models"
	"libris/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const cliPassword = "Copper-Reading-Lamp-73"

func run(t *testing.T, db *gorm.DB, args ...string) (string, error) {
	t.Helper()
	return runWithInput(t, db, "", args...)
}

func runWithInput(t *testing.T, db *gorm.DB, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	a := &app{
		in:  strings.NewReader(stdin),
		out: &out,
		connect: func(context.Context) (*gorm.DB, *config.Config, error) {
			return db, &config.Config{Env: "test", DBSchemaMode: "auto"}, nil
		},
	}
	root := newRootCmd(a)
	root.SetArgs(args)
	root.SetErr(&bytes.Buffer{})
	err := root.Execute()
	return out.String(), err
}

func TestCreateUser(t *testing.T) {
	db := testutil.NewTestDB(t)

	out, err := run(t, db, "createuser",
		"--email", "Reader@Example.com", "--username", "reader", "--password", cliPassword, "--staff")
	require.NoError(t, err)
	assert.Contains(t, out, "created user")

	var user models.User
	require.NoError(t, db.Where("username = ?", "reader").First(&user).Error)
	assert.Equal(t, "reader@example.com", user.Email)
	assert.True(t, user.IsStaff)
	assert.False(t, user.IsSuperuser)
	assert.True(t, auth.CheckPassword(user.Password, cliPassword))

	_, err = run(t, db, "createuser",
		"--email", "reader@example.com", "--username", "other", "--password", cliPassword)
	assert.Error(t, err)
}

func TestCreateUserNoInput(t *testing.T) {
	db := testutil.NewTestDB(t)
	_, err := run(t, db, "createuser", "--email", "a@example.com", "--noinput")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--username")

	var n int64
	require.NoError(t, db.Model(&models.User{}).Count(&n).Error)
	assert.Zero(t, n)
}

func TestCreateUserPrompts(t *testing.T) {
	db := testutil.NewTestDB(t)

	out, err := runWithInput(t, db, "prompted\n"+cliPassword+"\n",
		"createuser", "--email", "prompted@example.com", "--phone", "555-0100")
	require.NoError(t, err)
	assert.Contains(t, out, "Username: ")
	assert.Contains(t, out, "Password: ")

	var user models.User
	require.NoError(t, db.Where("email = ?", "prompted@example.com").First(&user).Error)
	assert.Equal(t, "prompted", user.Username)
	assert.Equal(t, "555-0100", user.PhoneNumber)
}

func TestCreateUserBlankPrompt(t *testing.T) {
	db := testutil.NewTestDB(t)
	_, err := runWithInput(t, db, "\n", "createuser", "--email", "blank@example.com")
	assert.Error(t, err)
}

func TestCreateSuperuser(t *testing.T) {
	db := testutil.NewTestDB(t)

	out, err := run(t, db, "createsuperuser",
		"--email", "admin@example.com", "--username", "admin", "--password", cliPassword)
	require.NoError(t, err)
	assert.Contains(t, out, "created superuser")

	out, err = run(t, db, "createsuperuser",
		"--email", "admin@example.com", "--username", "admin", "--password", "Second-Reading-Lamp-19")
	require.NoError(t, err)
	assert.Contains(t, out, "updated superuser")

	var user models.User
	require.NoError(t, db.Where("email = ?", "admin@example.com").First(&user).Error)
	assert.True(t, user.IsSuperuser)
	assert.True(t, auth.CheckPassword(user.Password, "Second-Reading-Lamp-19"))
}

func TestSeedCommand(t *testing.T) {
	db := testutil.NewTestDB(t)

	out, err := run(t, db, "seed", "--users", "2", "--books", "3", "--news", "1", "--items", "1", "--seed", "11")
	require.NoError(t, err)
	assert.Contains(t, out, "seeded 2 users")

	var books int64
	require.NoError(t, db.Model(&models.Book{}).Count(&books).Error)
	assert.EqualValues(t, 3, books)

	out, err = run(t, db, "seed", "--users", "1", "--books", "5", "--dry-run")
	require.NoError(t, err)
	assert.Contains(t, out, "would seed")
	require.NoError(t, db.Model(&models.Book{}).Count(&books).Error)
	assert.EqualValues(t, 3, books)
}

func TestMigrateStatusAutoMode(t *testing.T) {
	db := testutil.NewTestDB(t)
	out, err := run(t, db, "migrate", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "auto")
	assert.Contains(t, out, "pending")
}

func TestMigrateOnSQLite(t *testing.T) {
	db := testutil.NewTestDB(t)

	out, err := run(t, db, "migrate", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "sqlite")

	_, err = run(t, db, "migrate", "up")
	require.Error(t, err)
	assert.ErrorIs(t, err, database.ErrSQLMigrationsUnsupported)

	out, err = run(t, db, "migrate", "auto")
	require.NoError(t, err)
	assert.Contains(t, out, "automigrations applied")
}

func TestMigrateRollbackRejectsBadVersion(t *testing.T) {
	db := testutil.NewTestDB(t)
	_, err := run(t, db, "migrate", "rollback", "abc")
	assert.Error(t, err)
}
