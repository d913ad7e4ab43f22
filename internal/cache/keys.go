package cache

import (
	"context"
	"fmt"
	"time"
)

const (
	BookKeyPrefix  = "book:%d"
	RecentBooksKey = "books:recent"
)

const (
	BookTTL        = 10 * time.Minute
	RecentBooksTTL = time.Minute
)

func BookKey(bookID uint) string {
	return fmt.Sprintf(BookKeyPrefix, bookID)
}

// Invalidate deletes keys; it is a no-op without Redis.
func Invalidate(ctx context.Context, keys ...string) {
	if client == nil || len(keys) == 0 {
		return
	}
	client.Del(ctx, keys...)
}

// InvalidateBook drops the cached book and the recent-books list it may appear in.
func InvalidateBook(ctx context.Context, bookID uint) {
	Invalidate(ctx, BookKey(bookID), RecentBooksKey)
}
