package seed

import (
	"context"
	"fmt"
	"log"

	"libris/internal/auth"
	"libris/internal/models"

	"gorm.io/gorm"
)

// DemoPassword is the password of every seeded user.
const DemoPassword = "libris-demo-password"

// Genres are the fixed genres every seed run ensures.
var Genres = []string{
	"Adventure", "Biography", "Classics", "Fantasy", "History",
	"Horror", "Mystery", "Poetry", "Romance", "Science Fiction",
}

// Options configures a seed run.
type Options struct {
	Users int
	Books int
	News  int
	Items int
	// Clean empties the content and user tables first.
	Clean bool
	// DryRun builds every record without writing to the database.
	DryRun  bool
	MaxDays int
	// RandSeed makes generated data reproducible when non-zero.
	RandSeed int64
}

// DefaultOptions is the preset used by the seed command.
func DefaultOptions() Options {
	return Options{Users: 10, Books: 40, News: 20, Items: 15}
}

// Summary counts the records a seed run created.
type Summary struct {
	Users  int
	Genres int
	Books  int
	News   int
	Items  int
}

func (s Summary) String() string {
	return fmt.Sprintf("%d users, %d genres, %d books, %d news, %d items", s.Users, s.Genres, s.Books, s.News, s.Items)
}

// Seed populates the database with demo data. Genres already present are
// reused; everything else is created fresh.
func Seed(ctx context.Context, db *gorm.DB, opts Options) (Summary, error) {
	var sum Summary
	log.Printf("seeding %d users, %d books, %d news and %d items", opts.Users, opts.Books, opts.News, opts.Items)

	if opts.Users <= 0 && (opts.Books > 0 || opts.News > 0) {
		return sum, fmt.Errorf("books and news need at least one user")
	}

	if opts.Clean && !opts.DryRun {
		if err := Clean(ctx, db); err != nil {
			return sum, fmt.Errorf("clean: %w", err)
		}
	}

	hash, err := auth.HashPassword(DemoPassword)
	if err != nil {
		return sum, err
	}

	run := func(tx *gorm.DB) error {
		f := NewFactory(tx, opts)

		users := make([]*models.User, 0, opts.Users)
		for i := 0; i < opts.Users; i++ {
			u, err := f.CreateUser(hash)
			if err != nil {
				return fmt.Errorf("create user: %w", err)
			}
			users = append(users, u)
		}
		sum.Users = len(users)

		genres, err := ensureGenres(tx, f, opts.DryRun)
		if err != nil {
			return err
		}
		sum.Genres = len(genres)

		for i := 0; i < opts.Books; i++ {
			if _, err := f.CreateBook(users[i%len(users)], genres); err != nil {
				return fmt.Errorf("create book: %w", err)
			}
			sum.Books++
		}
		for i := 0; i < opts.News; i++ {
			if _, err := f.CreateNews(users[i%len(users)]); err != nil {
				return fmt.Errorf("create news: %w", err)
			}
			sum.News++
		}
		for i := 0; i < opts.Items; i++ {
			if _, err := f.CreateItem(); err != nil {
				return fmt.Errorf("create item: %w", err)
			}
			sum.Items++
		}
		return nil
	}

	if opts.DryRun {
		err = run(db)
	} else {
		err = db.WithContext(ctx).Transaction(run)
	}
	if err != nil {
		return Summary{}, err
	}

	log.Printf("seeding complete: %s", sum)
	return sum, nil
}

func ensureGenres(tx *gorm.DB, f *Factory, dryRun bool) ([]models.Genre, error) {
	genres := make([]models.Genre, 0, len(Genres))
	for _, title := range Genres {
		if !dryRun {
			var existing models.Genre
			err := tx.Where("title = ?", title).Limit(1).Find(&existing).Error
			if err != nil {
				return nil, fmt.Errorf("find genre %s: %w", title, err)
			}
			if existing.ID != 0 {
				genres = append(genres, existing)
				continue
			}
		}
		g, err := f.CreateGenre(title)
		if err != nil {
			return nil, fmt.Errorf("create genre %s: %w", title, err)
		}
		genres = append(genres, *g)
	}
	return genres, nil
}

// Clean deletes all users and content. Tables are emptied children first so
// it works without cascading truncation.
func Clean(ctx context.Context, db *gorm.DB) error {
	log.Println("clearing existing data")
	tables := []string{"book_genres", "books", "news", "items", "genres", "sessions", "auth_tokens", "users"}
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, table := range tables {
			if err := tx.Exec("DELETE FROM " + table).Error; err != nil {
				return fmt.Errorf("clear %s: %w", table, err)
			}
		}
		return nil
	})
}
