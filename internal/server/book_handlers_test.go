package server

import (
	"fmt"
	"net/http"
	"strings"
	"testing"

	"libris/internal/models"
	"libris/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBookLifecycle(t *testing.T) {
	env := newTestEnv(t, false)
	owner := env.register("owner")
	other := env.register("other")
	staff := env.register("keeper")
	env.makeStaff(staff.ID, false)

	fantasy := env.createGenre(staff.Token, "Fantasy")
	poetry := env.createGenre(staff.Token, "Poetry")

	resp := env.createBook(owner.Token, "The Hobbit", map[string]any{
		"writer":    "J. R. R. Tolkien",
		"isbn":      "9780261103344",
		"genres":    []uint{poetry, fantasy},
		"age_limit": 6,
		"price":     1299,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	book := decode[bookResponse](t, resp)
	assert.Equal(t, owner.ID, book.Author)
	assert.Equal(t, "owner", book.AuthorUsername)
	assert.ElementsMatch(t, []uint{fantasy, poetry}, book.Genres)
	assert.True(t, book.IsPublic)
	require.NotNil(t, book.ISBN)
	assert.Equal(t, "9780261103344", *book.ISBN)
	assert.Nil(t, book.CoverImage)

	path := fmt.Sprintf("/api/books/%d/", book.ID)

	t.Run("anyone reads", func(t *testing.T) {
		resp := env.json(http.MethodGet, path, "", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "The Hobbit", decode[bookResponse](t, resp).Title)
	})

	t.Run("non-owner cannot modify", func(t *testing.T) {
		resp := env.json(http.MethodPatch, path, other.Token, map[string]any{"title": "Mine now"})
		require.Equal(t, http.StatusForbidden, resp.StatusCode)
		assert.Equal(t, "You do not have permission to perform this action.", decode[models.ErrorResponse](t, resp).Error)

		resp = env.json(http.MethodDelete, path, other.Token, nil)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	t.Run("anonymous cannot modify", func(t *testing.T) {
		resp := env.json(http.MethodPatch, path, "", map[string]any{"title": "x"})
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		assert.Equal(t, "Authentication credentials were not provided.", decode[models.ErrorResponse](t, resp).Error)
	})

	t.Run("owner patches", func(t *testing.T) {
		resp := env.json(http.MethodPatch, path, owner.Token, map[string]any{"pages": 310, "genres": []uint{fantasy}})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		updated := decode[bookResponse](t, resp)
		assert.Equal(t, 310, updated.Pages)
		assert.Equal(t, "The Hobbit", updated.Title)
		assert.Equal(t, []uint{fantasy}, updated.Genres)
	})

	t.Run("put requires the full record", func(t *testing.T) {
		resp := env.json(http.MethodPut, path, owner.Token, map[string]any{"title": "Only a title"})
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
		fields := decode[models.ErrorResponse](t, resp).Fields
		assert.Contains(t, fields, "year_published")
		assert.Contains(t, fields, "pages")
	})

	t.Run("staff may modify any book", func(t *testing.T) {
		resp := env.json(http.MethodPatch, path, staff.Token, map[string]any{"is_public": false})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.False(t, decode[bookResponse](t, resp).IsPublic)
	})

	t.Run("owner deletes", func(t *testing.T) {
		resp := env.json(http.MethodDelete, path, owner.Token, nil)
		require.Equal(t, http.StatusNoContent, resp.StatusCode)

		resp = env.json(http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestBookValidation(t *testing.T) {
	env := newTestEnv(t, false)
	user := env.register("writer")

	resp := env.createBook(user.Token, "Short ISBN", map[string]any{"isbn": "12345"})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, []string{"ISBN must contain exactly 13 digits."}, decode[models.ErrorResponse](t, resp).Fields["isbn"])

	resp = env.createBook(user.Token, "First", map[string]any{"isbn": "9781234567897"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = env.createBook(user.Token, "Second", map[string]any{"isbn": "9781234567897"})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, decode[models.ErrorResponse](t, resp).Fields, "isbn")

	resp = env.createBook(user.Token, "Bad refs", map[string]any{"genres": []uint{999}, "age_limit": 7, "pages": 0})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	fields := decode[models.ErrorResponse](t, resp).Fields
	assert.Equal(t, []string{`Invalid pk "999" - object does not exist.`}, fields["genres"])
	assert.Contains(t, fields, "age_limit")
	assert.Contains(t, fields, "pages")

	resp = env.createBook(user.Token, "Wrong type", map[string]any{"year_published": "soon"})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, decode[models.ErrorResponse](t, resp).Fields, "year_published")
}

func TestFreeBookHasNoPrice(t *testing.T) {
	env := newTestEnv(t, false)
	user := env.register("giver")

	resp := env.createBook(user.Token, "Gift", map[string]any{"is_free": true, "price": 500})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	book := decode[bookResponse](t, resp)
	assert.True(t, book.IsFree)
	assert.Zero(t, book.Price)

	path := fmt.Sprintf("/api/books/%d/", book.ID)
	resp = env.json(http.MethodPatch, path, user.Token, map[string]any{"price": 300})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Zero(t, decode[bookResponse](t, resp).Price)

	resp = env.json(http.MethodPatch, path, user.Token, map[string]any{"is_free": false, "price": 300})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	book = decode[bookResponse](t, resp)
	assert.False(t, book.IsFree)
	assert.EqualValues(t, 300, book.Price)

	// Marking a priced book free clears the price.
	resp = env.json(http.MethodPatch, path, user.Token, map[string]any{"is_free": true})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Zero(t, decode[bookResponse](t, resp).Price)

	var stored models.Book
	require.NoError(t, env.db.First(&stored, book.ID).Error)
	assert.Zero(t, stored.Price)
}

func TestBookIDMustBeNumeric(t *testing.T) {
	env := newTestEnv(t, false)
	for _, path := range []string{"/api/books/abc/", "/api/books/0/", "/api/books/9999/"} {
		resp := env.json(http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode, path)
	}
}

func TestBookPagination(t *testing.T) {
	env := newTestEnv(t, false)
	user := env.register("prolific")
	for i := 1; i <= 12; i++ {
		resp := env.createBook(user.Token, fmt.Sprintf("Volume %02d", i), nil)
		require.Equal(t, http.StatusCreated, resp.StatusCode)
	}

	resp := env.json(http.MethodGet, "/api/books/", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	first := decode[struct {
		Count    int64          `json:"count"`
		Next     *string        `json:"next"`
		Previous *string        `json:"previous"`
		Results  []bookResponse `json:"results"`
	}](t, resp)
	assert.EqualValues(t, 12, first.Count)
	assert.Len(t, first.Results, 10)
	assert.Equal(t, "Volume 12", first.Results[0].Title)
	require.NotNil(t, first.Next)
	assert.Equal(t, "http://example.com/api/books/?page=2", *first.Next)
	assert.Nil(t, first.Previous)

	resp = env.json(http.MethodGet, "/api/books/?page=2", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	second := decode[struct {
		Next     *string        `json:"next"`
		Previous *string        `json:"previous"`
		Results  []bookResponse `json:"results"`
	}](t, resp)
	assert.Len(t, second.Results, 2)
	assert.Nil(t, second.Next)
	require.NotNil(t, second.Previous)
	assert.Equal(t, "http://example.com/api/books/", *second.Previous)

	for _, page := range []string{"3", "0", "abc", "-1", "9223372036854775807", "922337203685477581", "99999999999999999999"} {
		resp = env.json(http.MethodGet, "/api/books/?page="+page, "", nil)
		require.Equal(t, http.StatusNotFound, resp.StatusCode, page)
		assert.Equal(t, "Invalid page.", decode[models.ErrorResponse](t, resp).Error)
	}
}

func TestEmptyListFirstPage(t *testing.T) {
	env := newTestEnv(t, false)
	resp := env.json(http.MethodGet, "/api/books/", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode[map[string]any](t, resp)
	assert.EqualValues(t, 0, body["count"])
	assert.Nil(t, body["next"])
	assert.Nil(t, body["previous"])
	assert.Empty(t, body["results"])
}

func TestRecentBooks(t *testing.T) {
	env := newTestEnv(t, false)
	user := env.register("recent")
	for i := 1; i <= 7; i++ {
		require.Equal(t, http.StatusCreated, env.createBook(user.Token, fmt.Sprintf("Book %d", i), nil).StatusCode)
	}

	resp := env.json(http.MethodGet, "/api/books/recent/", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	books := decode[[]bookResponse](t, resp)
	require.Len(t, books, 5)
	assert.Equal(t, "Book 7", books[0].Title)
	assert.Equal(t, "Book 3", books[4].Title)
}

func TestFavoriteBook(t *testing.T) {
	env := newTestEnv(t, false)
	user := env.register("fan")
	resp := env.createBook(user.Token, "Dune", nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	book := decode[bookResponse](t, resp)
	path := fmt.Sprintf("/api/books/%d/favorite/", book.ID)

	resp = env.json(http.MethodPost, path, "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = env.json(http.MethodPost, path, user.Token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode[map[string]any](t, resp)
	assert.Equal(t, "favorited", body["status"])
	assert.EqualValues(t, book.ID, body["book"])

	resp = env.json(http.MethodPost, "/api/books/4242/favorite/", user.Token, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestBookCoverUpload(t *testing.T) {
	env := newTestEnv(t, false)
	user := env.register("artist")

	body, contentType := testutil.Multipart(t, map[string][]string{
		"title":          {"Illustrated"},
		"year_published": {"1999"},
		"pages":          {"48"},
		"is_free":        {"on"},
	}, testutil.MultipartFile{Field: "cover_image", Filename: "cover.png", Content: testutil.PNG(t, 128, 96)})

	resp := env.do(request{method: http.MethodPost, path: "/api/books/", body: body, contentType: contentType, token: user.Token})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	book := decode[bookResponse](t, resp)
	assert.True(t, book.IsFree)
	require.NotNil(t, book.CoverImage)
	assert.True(t, strings.HasPrefix(*book.CoverImage, "books/covers/"))
	assert.True(t, strings.HasSuffix(*book.CoverImage, ".png"))
	require.NotNil(t, book.CoverImageURL)
	assert.Equal(t, "http://example.com/media/"+*book.CoverImage, *book.CoverImageURL)

	// The stored file is served under MEDIA_URL.
	resp = env.do(request{method: http.MethodGet, path: "/media/" + *book.CoverImage})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	t.Run("rejects non-images", func(t *testing.T) {
		body, contentType := testutil.Multipart(t, map[string][]string{
			"title":          {"Broken"},
			"year_published": {"1999"},
			"pages":          {"48"},
		}, testutil.MultipartFile{Field: "cover_image", Filename: "cover.png", Content: []byte("not an image at all")})
		resp := env.do(request{method: http.MethodPost, path: "/api/books/", body: body, contentType: contentType, token: user.Token})
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Contains(t, decode[models.ErrorResponse](t, resp).Fields, "cover_image")
	})
}
