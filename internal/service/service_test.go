package service

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"libris/internal/auth"
	"libris/internal/models"
	"libris/internal/repository"
	"libris/internal/storage"
	"libris/internal/testutil"
	"libris/internal/validation"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const goodPassword = "Str0ng-Passphrase!"

func ptr[T any](v T) *T { return &v }

type fixture struct {
	db    *gorm.DB
	auth  *AuthService
	users *UserService
	books *BookService
	news  *NewsService
	items *ItemService
	genre *GenreService
	media *storage.Media
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.NewTestDB(t)
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	sessions := auth.NewSessionManager(auth.NewRedisSessionStore(client), "service-test-secret-0123456789abcdef", time.Hour)
	media := storage.NewMedia(t.TempDir(), "/media/", 1, 200)
	policy := validation.DefaultPasswordPolicy()

	return &fixture{
		db:    db,
		auth:  NewAuthService(db, sessions, policy),
		users: NewUserService(db, media, policy),
		books: NewBookService(db, media),
		news:  NewNewsService(db, media),
		items: NewItemService(db),
		genre: NewGenreService(db),
		media: media,
	}
}

func (f *fixture) register(t *testing.T, name string) models.Actor {
	t.Helper()
	user, _, err := f.auth.Register(context.Background(), RegisterInput{
		Email: name + "@example.com", Username: name, Password: goodPassword, PasswordConfirm: goodPassword,
	})
	require.NoError(t, err)
	return models.ActorFor(user)
}

func (f *fixture) staff(t *testing.T, name string) models.Actor {
	t.Helper()
	user, err := f.users.Provision(context.Background(), AccountInput{
		Email: name + "@example.com", Username: name, Password: goodPassword, IsStaff: true,
	})
	require.NoError(t, err)
	return models.ActorFor(user)
}

func requireCode(t *testing.T, err error, code string) *models.AppError {
	t.Helper()
	var appErr *models.AppError
	require.True(t, errors.As(err, &appErr), "expected AppError, got %v", err)
	assert.Equal(t, code, appErr.Code)
	return appErr
}

func TestAuthService_Register(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	user, token, err := f.auth.Register(ctx, RegisterInput{
		Email: "  Reader@Example.COM ", Username: "reader", Password: goodPassword, PasswordConfirm: goodPassword,
	})
	require.NoError(t, err)
	assert.Equal(t, "reader@example.com", user.Email)
	assert.True(t, user.IsActive)
	assert.NotEqual(t, goodPassword, user.Password)
	assert.Len(t, token.Key, auth.TokenKeyLength)

	tests := []struct {
		name  string
		in    RegisterInput
		field string
	}{
		{"mismatched confirmation", RegisterInput{Email: "a@example.com", Username: "a", Password: goodPassword, PasswordConfirm: "different"}, "password_confirm"},
		{"reused email", RegisterInput{Email: "reader@example.com", Username: "other", Password: goodPassword, PasswordConfirm: goodPassword}, "email"},
		{"reused username", RegisterInput{Email: "new@example.com", Username: "reader", Password: goodPassword, PasswordConfirm: goodPassword}, "username"},
		{"malformed email", RegisterInput{Email: "nope", Username: "b", Password: goodPassword, PasswordConfirm: goodPassword}, "email"},
		{"short password", RegisterInput{Email: "c@example.com", Username: "c", Password: "x1", PasswordConfirm: "x1"}, "password"},
		{"numeric password", RegisterInput{Email: "d@example.com", Username: "d", Password: "83749201734", PasswordConfirm: "83749201734"}, "password"},
		{"missing username", RegisterInput{Email: "e@example.com", Password: goodPassword, PasswordConfirm: goodPassword}, "username"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := f.auth.Register(ctx, tt.in)
			appErr := requireCode(t, err, models.CodeValidation)
			assert.NotEmpty(t, appErr.Field(tt.field))
		})
	}

	var users, tokens int64
	f.db.Model(&models.User{}).Count(&users)
	f.db.Model(&models.AuthToken{}).Count(&tokens)
	assert.Equal(t, int64(1), users, "rejected registrations persist nothing")
	assert.Equal(t, int64(1), tokens)
}

func TestAuthService_LoginLogout(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	actor := f.register(t, "reader")

	_, _, err := f.auth.Login(ctx, "reader@example.com", "wrong-password")
	requireCode(t, err, models.CodeUnauthorized)

	_, _, err = f.auth.Login(ctx, "", "")
	appErr := requireCode(t, err, models.CodeValidation)
	assert.NotEmpty(t, appErr.Field("email"))
	assert.NotEmpty(t, appErr.Field("password"))

	user, token, err := f.auth.Login(ctx, "READER@example.com", goodPassword)
	require.NoError(t, err)
	require.NotNil(t, user.LastLogin)

	again, token2, err := f.auth.Login(ctx, "reader@example.com", goodPassword)
	require.NoError(t, err)
	assert.Equal(t, user.ID, again.ID)
	assert.Equal(t, token.Key, token2.Key, "login reuses the existing token")

	cookie, _, err := f.auth.StartSession(ctx, user)
	require.NoError(t, err)

	require.NoError(t, f.auth.Logout(ctx, actor, cookie))
	_, err = repository.NewTokenRepository(f.db).GetByKey(ctx, token.Key)
	requireCode(t, err, models.CodeNotFound)

	require.NoError(t, f.auth.Logout(ctx, actor, ""), "logout without a token succeeds")
	requireCode(t, f.auth.Logout(ctx, models.Actor{}, ""), models.CodeUnauthorized)

	_, token3, err := f.auth.Login(ctx, "reader@example.com", goodPassword)
	require.NoError(t, err)
	assert.NotEqual(t, token.Key, token3.Key, "a new token is minted after logout")
}

func TestAuthService_InactiveUserCannotLogin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.staff(t, "admin")
	actor := f.register(t, "reader")

	_, err := f.users.SetActive(ctx, admin, actor.ID(), false)
	require.NoError(t, err)

	_, _, err = f.auth.Login(ctx, "reader@example.com", goodPassword)
	requireCode(t, err, models.CodeUnauthorized)
}

func TestAuthService_SignInMintsNoToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	actor := f.register(t, "reader")
	require.NoError(t, f.auth.Logout(ctx, actor, ""))

	user, err := f.auth.SignIn(ctx, "Reader@Example.com", goodPassword)
	require.NoError(t, err)
	require.NotNil(t, user.LastLogin)

	_, err = repository.NewTokenRepository(f.db).GetByUserID(ctx, user.ID)
	requireCode(t, err, models.CodeNotFound)

	_, err = f.auth.SignIn(ctx, "reader@example.com", "wrong")
	requireCode(t, err, models.CodeUnauthorized)
}

func TestBookService(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.register(t, "owner")
	other := f.register(t, "other")
	admin := f.staff(t, "admin")

	fantasy, err := f.genre.Create(ctx, admin, GenreInput{Title: ptr("Fantasy")})
	require.NoError(t, err)

	book, err := f.books.Create(ctx, owner, BookInput{
		Title: ptr("The Hobbit"), ISBN: ptr("9780261102217"), YearPublished: ptr(1937), Pages: ptr(310),
		GenreIDs: &[]uint{fantasy.ID},
		Cover:    &storage.Upload{Filename: "c.png", Content: testutil.PNG(t, 10, 10)},
	})
	require.NoError(t, err)
	assert.Equal(t, owner.ID(), book.AuthorID)
	assert.True(t, book.IsPublic)
	assert.Equal(t, 0, book.AgeLimit)
	require.Len(t, book.Genres, 1)
	assert.NotEmpty(t, book.CoverImage)

	t.Run("anonymous create is unauthorized", func(t *testing.T) {
		_, err := f.books.Create(ctx, models.Actor{}, BookInput{Title: ptr("x"), YearPublished: ptr(1), Pages: ptr(1)})
		requireCode(t, err, models.CodeUnauthorized)
	})

	t.Run("invalid isbn persists nothing", func(t *testing.T) {
		for _, isbn := range []string{"123", "97802611022170", "97802611022ab"} {
			_, err := f.books.Create(ctx, owner, BookInput{Title: ptr("Bad"), ISBN: ptr(isbn), YearPublished: ptr(2000), Pages: ptr(10)})
			assert.NotEmpty(t, requireCode(t, err, models.CodeValidation).Field("isbn"))
		}
		var count int64
		f.db.Model(&models.Book{}).Where("title = ?", "Bad").Count(&count)
		assert.Zero(t, count)
	})

	t.Run("duplicate isbn", func(t *testing.T) {
		_, err := f.books.Create(ctx, other, BookInput{Title: ptr("Copy"), ISBN: ptr("9780261102217"), YearPublished: ptr(2000), Pages: ptr(10)})
		assert.NotEmpty(t, requireCode(t, err, models.CodeValidation).Field("isbn"))
	})

	t.Run("field rules", func(t *testing.T) {
		_, err := f.books.Create(ctx, owner, BookInput{
			Title: ptr(""), Pages: ptr(0), Price: ptr(int64(-1)), AgeLimit: ptr(7), GenreIDs: &[]uint{999},
		})
		appErr := requireCode(t, err, models.CodeValidation)
		for _, field := range []string{"title", "year_published", "pages", "price", "age_limit", "genres"} {
			assert.NotEmpty(t, appErr.Field(field), field)
		}
	})

	t.Run("non-owner cannot update or delete", func(t *testing.T) {
		_, err := f.books.Update(ctx, other, book.ID, BookInput{Title: ptr("Mine now")}, true)
		requireCode(t, err, models.CodeForbidden)
		requireCode(t, f.books.Delete(ctx, other, book.ID), models.CodeForbidden)
	})

	t.Run("owner partial update", func(t *testing.T) {
		updated, err := f.books.Update(ctx, owner, book.ID, BookInput{Pages: ptr(320), IsPublic: ptr(false), GenreIDs: &[]uint{}}, true)
		require.NoError(t, err)
		assert.Equal(t, 320, updated.Pages)
		assert.Equal(t, "The Hobbit", updated.Title)
		assert.False(t, updated.IsPublic)
		assert.Empty(t, updated.Genres)
	})

	t.Run("full update needs required fields", func(t *testing.T) {
		_, err := f.books.Update(ctx, owner, book.ID, BookInput{Title: ptr("Only title")}, false)
		appErr := requireCode(t, err, models.CodeValidation)
		assert.NotEmpty(t, appErr.Field("pages"))
	})

	t.Run("favorite", func(t *testing.T) {
		_, err := f.books.Favorite(ctx, models.Actor{}, book.ID)
		requireCode(t, err, models.CodeUnauthorized)
		_, err = f.books.Favorite(ctx, other, 9999)
		requireCode(t, err, models.CodeNotFound)
		got, err := f.books.Favorite(ctx, other, book.ID)
		require.NoError(t, err)
		assert.Equal(t, book.ID, got.ID)
	})

	t.Run("recent", func(t *testing.T) {
		for i := 0; i < 6; i++ {
			_, err := f.books.Create(ctx, owner, BookInput{Title: ptr("Vol"), YearPublished: ptr(2000 + i), Pages: ptr(1)})
			require.NoError(t, err)
		}
		recent, err := f.books.Recent(ctx)
		require.NoError(t, err)
		assert.Len(t, recent, RecentBooksLimit)
	})

	t.Run("staff delete", func(t *testing.T) {
		require.NoError(t, f.books.Delete(ctx, admin, book.ID))
		_, err := f.books.Get(ctx, book.ID)
		requireCode(t, err, models.CodeNotFound)
	})
}

func TestNewsService_Visibility(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.register(t, "alice")
	bob := f.register(t, "bob")
	admin := f.staff(t, "admin")

	published, err := f.news.Create(ctx, alice, NewsInput{Title: ptr("Hello"), Content: ptr("world")})
	require.NoError(t, err)
	assert.True(t, published.IsPublished, "news is published by default")
	assert.Equal(t, "alice", published.Author.Username)

	draft, err := f.news.Create(ctx, alice, NewsInput{Title: ptr("Draft"), Content: ptr("wip"), IsPublished: ptr(false)})
	require.NoError(t, err)

	anon, _, err := f.news.List(ctx, models.Actor{}, Page{Limit: 10})
	require.NoError(t, err)
	for _, n := range anon {
		assert.True(t, n.IsPublished)
	}
	assert.Len(t, anon, 1)

	bobs, _, err := f.news.List(ctx, bob, Page{Limit: 10})
	require.NoError(t, err)
	for _, n := range bobs {
		assert.True(t, n.IsPublished || n.AuthorID == bob.ID())
	}

	alices, _, err := f.news.List(ctx, alice, Page{Limit: 10})
	require.NoError(t, err)
	assert.Len(t, alices, 2)

	all, total, err := f.news.List(ctx, admin, Page{Limit: 10})
	require.NoError(t, err)
	assert.Len(t, all, 2)
	assert.Equal(t, int64(2), total)

	_, err = f.news.Get(ctx, bob, draft.ID)
	requireCode(t, err, models.CodeNotFound)
	_, err = f.news.Update(ctx, bob, draft.ID, NewsInput{Title: ptr("x")}, true)
	requireCode(t, err, models.CodeNotFound)
	_, err = f.news.Update(ctx, bob, published.ID, NewsInput{Title: ptr("x")}, true)
	requireCode(t, err, models.CodeForbidden)

	_, err = f.news.Create(ctx, alice, NewsInput{Title: ptr("No content")})
	assert.NotEmpty(t, requireCode(t, err, models.CodeValidation).Field("content"))

	updated, err := f.news.Update(ctx, alice, draft.ID, NewsInput{IsPublished: ptr(true)}, true)
	require.NoError(t, err)
	assert.True(t, updated.IsPublished)

	require.NoError(t, f.news.Delete(ctx, admin, draft.ID))
}

func TestCatalogServices_StaffOnlyMutation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.register(t, "user")
	admin := f.staff(t, "admin")

	_, err := f.items.Create(ctx, models.Actor{}, ItemInput{Name: ptr("Lamp")})
	requireCode(t, err, models.CodeUnauthorized)
	_, err = f.items.Create(ctx, user, ItemInput{Name: ptr("Lamp")})
	requireCode(t, err, models.CodeForbidden)

	item, err := f.items.Create(ctx, admin, ItemInput{Name: ptr("Lamp")})
	require.NoError(t, err)
	_, err = f.items.Update(ctx, user, item.ID, ItemInput{Name: ptr("Desk")}, true)
	requireCode(t, err, models.CodeForbidden)
	requireCode(t, f.items.Delete(ctx, user, item.ID), models.CodeForbidden)

	submitted, err := f.items.Submit(ctx, user, ItemInput{Name: ptr("From form"), Description: ptr("d")})
	require.NoError(t, err)
	assert.Equal(t, "From form", submitted.Name)

	_, err = f.genre.Create(ctx, user, GenreInput{Title: ptr("Poetry")})
	requireCode(t, err, models.CodeForbidden)
	g, err := f.genre.Create(ctx, admin, GenreInput{Title: ptr("Poetry")})
	require.NoError(t, err)
	_, err = f.genre.Create(ctx, admin, GenreInput{Title: ptr("Poetry")})
	assert.NotEmpty(t, requireCode(t, err, models.CodeValidation).Field("title"))
	require.NoError(t, f.genre.Delete(ctx, admin, g.ID))
}

func TestUserService(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.register(t, "alice")
	bob := f.register(t, "bob")
	admin := f.staff(t, "admin")

	t.Run("me resolves to the caller", func(t *testing.T) {
		me, err := f.users.Get(ctx, alice, MeRef)
		require.NoError(t, err)
		assert.Equal(t, alice.ID(), me.ID)

		_, err = f.users.Get(ctx, models.Actor{}, MeRef)
		requireCode(t, err, models.CodeUnauthorized)
	})

	t.Run("other users are hidden from non-staff", func(t *testing.T) {
		_, err := f.users.Get(ctx, alice, itoa(bob.ID()))
		requireCode(t, err, models.CodeNotFound)
		_, err = f.users.Update(ctx, alice, itoa(bob.ID()), UserInput{Bio: ptr("hi")}, true)
		requireCode(t, err, models.CodeNotFound)

		got, err := f.users.Get(ctx, admin, itoa(bob.ID()))
		require.NoError(t, err)
		assert.Equal(t, "bob", got.Username)
	})

	t.Run("list and delete are staff only", func(t *testing.T) {
		_, _, err := f.users.List(ctx, alice, Page{Limit: 10})
		requireCode(t, err, models.CodeForbidden)
		requireCode(t, f.users.Delete(ctx, alice, itoa(bob.ID())), models.CodeForbidden)

		users, total, err := f.users.List(ctx, admin, Page{Limit: 10})
		require.NoError(t, err)
		assert.Equal(t, int64(3), total)
		assert.Len(t, users, 3)
	})

	t.Run("partial update of self", func(t *testing.T) {
		updated, err := f.users.Update(ctx, alice, MeRef, UserInput{
			Bio:    ptr("reader of books"),
			Avatar: &storage.Upload{Filename: "a.png", Content: testutil.PNG(t, 8, 8)},
		}, true)
		require.NoError(t, err)
		assert.Equal(t, "reader of books", updated.Bio)
		assert.NotEmpty(t, updated.Avatar)

		_, err = f.users.Update(ctx, alice, MeRef, UserInput{Username: ptr("bob")}, true)
		assert.NotEmpty(t, requireCode(t, err, models.CodeValidation).Field("username"))

		_, err = f.users.Update(ctx, alice, MeRef, UserInput{Bio: ptr("x")}, false)
		assert.NotEmpty(t, requireCode(t, err, models.CodeValidation).Field("email"))
	})

	t.Run("staff create", func(t *testing.T) {
		_, err := f.users.Create(ctx, alice, AccountInput{Email: "x@example.com", Username: "x", Password: goodPassword})
		requireCode(t, err, models.CodeForbidden)

		created, err := f.users.Create(ctx, admin, AccountInput{Email: "x@example.com", Username: "x", Password: goodPassword, IsSuperuser: true})
		require.NoError(t, err)
		assert.False(t, created.IsSuperuser, "only superusers may mint superusers")
	})

	t.Run("roles", func(t *testing.T) {
		promoted, err := f.users.SetRole(ctx, admin, bob.ID(), true)
		require.NoError(t, err)
		assert.True(t, promoted.IsStaff)

		_, err = f.users.SetRole(ctx, admin, admin.ID(), false)
		requireCode(t, err, models.CodeValidation)

		_, err = f.users.SetRole(ctx, alice, bob.ID(), false)
		requireCode(t, err, models.CodeForbidden)
	})

	t.Run("staff delete", func(t *testing.T) {
		requireCode(t, f.users.Delete(ctx, admin, itoa(admin.ID())), models.CodeValidation)
		require.NoError(t, f.users.Delete(ctx, admin, itoa(alice.ID())))
		_, err := repository.NewUserRepository(f.db).GetByID(ctx, alice.ID())
		requireCode(t, err, models.CodeNotFound)
	})
}

func TestUserService_EnsureSuperuser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "reader")

	user, created, err := f.users.EnsureSuperuser(ctx, AccountInput{Email: "root@example.com", Username: "root", Password: goodPassword})
	require.NoError(t, err)
	assert.True(t, created)
	assert.True(t, user.IsSuperuser)
	assert.True(t, user.IsStaff)

	promoted, created, err := f.users.EnsureSuperuser(ctx, AccountInput{Email: "reader@example.com", Password: "An0ther-Passphrase"})
	require.NoError(t, err)
	assert.False(t, created)
	assert.True(t, promoted.IsSuperuser)

	_, _, err = f.auth.Login(ctx, "reader@example.com", "An0ther-Passphrase")
	require.NoError(t, err)

	_, _, err = f.users.EnsureSuperuser(ctx, AccountInput{Email: "reader@example.com", Password: ""})
	requireCode(t, err, models.CodeValidation)
}

func itoa(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}

// staleTokens hides existing tokens from GetByUserID, as a login racing
// another first login sees the table before the other commit lands.
type staleTokens struct {
	repository.TokenRepository
}

func (staleTokens) GetByUserID(_ context.Context, userID uint) (*models.AuthToken, error) {
	return nil, models.NewNotFoundError("Token", userID)
}

func TestEnsureTokenLosesRaceQuietly(t *testing.T) {
	db := testutil.NewTestDB(t)
	ctx := context.Background()
	user := &models.User{Email: "racer@example.com", Username: "racer", Password: "x", IsActive: true}
	require.NoError(t, db.Create(user).Error)

	tokens := repository.NewTokenRepository(db)
	winner, err := ensureToken(ctx, tokens, user.ID)
	require.NoError(t, err)

	got, err := ensureToken(ctx, staleTokens{tokens}, user.ID)
	require.NoError(t, err)
	assert.Equal(t, winner.Key, got.Key)

	var n int64
	require.NoError(t, db.Model(&models.AuthToken{}).Where("user_id = ?", user.ID).Count(&n).Error)
	assert.EqualValues(t, 1, n)
}
