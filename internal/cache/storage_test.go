package cache

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ fiber.Storage = (*Storage)(nil)

func TestStorage(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	s := NewStorage(rdb, "csrf:")

	got, err := s.Get("missing")
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, s.Set("abc", []byte("1"), time.Minute))
	got, err = s.Get("abc")
	require.NoError(t, err)
	assert.Equal(t, []byte("1"), got)
	assert.True(t, mr.Exists("csrf:abc"))
	assert.Equal(t, time.Minute, mr.TTL("csrf:abc"))

	require.NoError(t, s.Delete("abc"))
	assert.False(t, mr.Exists("csrf:abc"))

	require.NoError(t, mr.Set("book:1", "kept"))
	require.NoError(t, s.Set("x", []byte("1"), 0))
	require.NoError(t, s.Set("y", []byte("2"), 0))
	require.NoError(t, s.Reset())
	assert.False(t, mr.Exists("csrf:x"))
	assert.False(t, mr.Exists("csrf:y"))
	assert.True(t, mr.Exists("book:1"))
	assert.NoError(t, s.Close())
}
