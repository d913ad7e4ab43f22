package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cachedBook struct {
	ID    uint   `json:"id"`
	Title string `json:"title"`
}

func setupMiniredis(t *testing.T) *miniredis.Miniredis {
	t.Helper()
	mr := miniredis.RunT(t)
	SetClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { SetClient(nil) })
	return mr
}

func TestAside_MissThenHit(t *testing.T) {
	mr := setupMiniredis(t)
	ctx := context.Background()

	calls := 0
	fetch := func(dest *cachedBook) func() error {
		return func() error {
			calls++
			*dest = cachedBook{ID: 7, Title: "Dune"}
			return nil
		}
	}

	var first cachedBook
	require.NoError(t, Aside(ctx, BookKey(7), &first, BookTTL, fetch(&first)))
	assert.Equal(t, "Dune", first.Title)
	assert.True(t, mr.Exists("book:7"))

	var second cachedBook
	require.NoError(t, Aside(ctx, BookKey(7), &second, BookTTL, fetch(&second)))
	assert.Equal(t, first, second)
	assert.Equal(t, 1, calls)

	mr.FastForward(BookTTL + time.Second)
	var third cachedBook
	require.NoError(t, Aside(ctx, BookKey(7), &third, BookTTL, fetch(&third)))
	assert.Equal(t, 2, calls)
}

func TestAside_FetchErrorIsNotCached(t *testing.T) {
	mr := setupMiniredis(t)
	boom := errors.New("boom")

	var dest cachedBook
	err := Aside(context.Background(), BookKey(1), &dest, BookTTL, func() error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.False(t, mr.Exists("book:1"))
}

func TestAside_WithoutRedisCallsFetch(t *testing.T) {
	SetClient(nil)

	calls := 0
	var dest cachedBook
	for i := 0; i < 2; i++ {
		require.NoError(t, Aside(context.Background(), BookKey(1), &dest, BookTTL, func() error {
			calls++
			return nil
		}))
	}
	assert.Equal(t, 2, calls)
}

func TestAside_CorruptEntryIsRefetched(t *testing.T) {
	mr := setupMiniredis(t)
	require.NoError(t, mr.Set("book:3", "{not json"))

	var dest cachedBook
	require.NoError(t, Aside(context.Background(), BookKey(3), &dest, BookTTL, func() error {
		dest = cachedBook{ID: 3, Title: "Solaris"}
		return nil
	}))
	assert.Equal(t, "Solaris", dest.Title)

	raw, err := mr.Get("book:3")
	require.NoError(t, err)
	assert.Contains(t, raw, "Solaris")
}

func TestInvalidateBook(t *testing.T) {
	mr := setupMiniredis(t)
	require.NoError(t, mr.Set(BookKey(5), "{}"))
	require.NoError(t, mr.Set(RecentBooksKey, "[]"))

	InvalidateBook(context.Background(), 5)

	assert.False(t, mr.Exists(BookKey(5)))
	assert.False(t, mr.Exists(RecentBooksKey))
}

func TestKeyFamily(t *testing.T) {
	assert.Equal(t, "book", keyFamily("book:12"))
	assert.Equal(t, "books", keyFamily("books:recent"))
	assert.Equal(t, "plain", keyFamily("plain"))
}
