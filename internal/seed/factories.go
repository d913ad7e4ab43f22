// Package seed provides helpers to create demo data for the application
// database. These helpers are intended for development and testing only.
package seed

import (
	"fmt"
	"log"
	"strings"
	"time"

	"libris/internal/models"

	"github.com/brianvoe/gofakeit/v6"
	"gorm.io/gorm"
)

// Factory builds domain entities and persists them to the database.
// It is a thin helper used by Seed and tests.
type Factory struct {
	db    *gorm.DB
	opts  Options
	faker *gofakeit.Faker
	// synthetic ID counter when running in DryRun mode
	nextID uint
}

// NewFactory creates a Factory bound to db. A zero opts.RandSeed picks a
// time-based seed.
func NewFactory(db *gorm.DB, opts Options) *Factory {
	seed := opts.RandSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Factory{db: db, opts: opts, faker: gofakeit.New(seed), nextID: 1000}
}

func (f *Factory) persist(kind string, value any, setID func(uint)) error {
	if f.opts.DryRun {
		f.nextID++
		setID(f.nextID)
		log.Printf("[dry-run] create %s (no DB write)", kind)
		return nil
	}
	return f.db.Create(value).Error
}

// BuildUser returns an unsaved active user whose password hash is passwordHash.
func (f *Factory) BuildUser(passwordHash string, overrides ...func(*models.User)) *models.User {
	first, last := f.faker.FirstName(), f.faker.LastName()
	birth := f.faker.DateRange(time.Date(1950, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2008, 1, 1, 0, 0, 0, 0, time.UTC))
	user := &models.User{
		Username:    fmt.Sprintf("%s%d", strings.ToLower(f.faker.Username()), f.faker.Number(100, 999)),
		FirstName:   first,
		LastName:    last,
		Password:    passwordHash,
		BirthDate:   &birth,
		PhoneNumber: f.faker.Numerify("+1##########"),
		Address:     f.faker.Street() + ", " + f.faker.City(),
		Bio:         f.faker.Sentence(10),
		IsActive:    true,
	}
	user.Email = user.Username + "@example.com"
	for _, override := range overrides {
		override(user)
	}
	return user
}

// CreateUser builds and persists a user.
func (f *Factory) CreateUser(passwordHash string, overrides ...func(*models.User)) (*models.User, error) {
	user := f.BuildUser(passwordHash, overrides...)
	if err := f.persist("user", user, func(id uint) { user.ID = id }); err != nil {
		return nil, err
	}
	return user, nil
}

// CreateGenre persists a genre with the given title.
func (f *Factory) CreateGenre(title string) (*models.Genre, error) {
	genre := &models.Genre{Title: title}
	if err := f.persist("genre", genre, func(id uint) { genre.ID = id }); err != nil {
		return nil, err
	}
	return genre, nil
}

// BuildBook returns an unsaved book owned by author, tagged with up to two
// of genres.
func (f *Factory) BuildBook(author *models.User, genres []models.Genre, overrides ...func(*models.Book)) *models.Book {
	isbn := f.faker.Numerify("978##########")
	free := f.faker.Number(0, 4) == 0
	book := &models.Book{
		Title:         f.faker.BookTitle(),
		AuthorID:      author.ID,
		Writer:        f.faker.BookAuthor(),
		Description:   f.faker.Paragraph(1, 3, 12, " "),
		ISBN:          &isbn,
		YearPublished: f.faker.Number(1850, time.Now().Year()),
		Pages:         f.faker.Number(48, 900),
		AgeLimit:      models.AgeLimits[f.faker.Number(0, len(models.AgeLimits)-1)],
		IsFree:        free,
		IsPublic:      f.faker.Number(0, 9) > 0,
		CreatedAt:     f.createdAt(),
	}
	if !free {
		book.Price = int64(f.faker.Number(299, 4999))
	}
	if n := len(genres); n > 0 {
		book.Genres = append(book.Genres, genres[f.faker.Number(0, n-1)])
		if second := genres[f.faker.Number(0, n-1)]; second.ID != book.Genres[0].ID {
			book.Genres = append(book.Genres, second)
		}
	}
	for _, override := range overrides {
		override(book)
	}
	return book
}

// CreateBook builds and persists a book with its genre links.
func (f *Factory) CreateBook(author *models.User, genres []models.Genre, overrides ...func(*models.Book)) (*models.Book, error) {
	book := f.BuildBook(author, genres, overrides...)
	if err := f.persist("book", book, func(id uint) { book.ID = id }); err != nil {
		return nil, err
	}
	return book, nil
}

// CreateNews builds and persists a news post by author. Roughly one in
// five posts is left unpublished.
func (f *Factory) CreateNews(author *models.User, overrides ...func(*models.News)) (*models.News, error) {
	news := &models.News{
		Title:       f.faker.Sentence(6),
		Content:     f.faker.Paragraph(2, 4, 14, "\n\n"),
		AuthorID:    author.ID,
		IsPublished: f.faker.Number(0, 4) > 0,
		CreatedAt:   f.createdAt(),
	}
	for _, override := range overrides {
		override(news)
	}
	if err := f.persist("news", news, func(id uint) { news.ID = id }); err != nil {
		return nil, err
	}
	return news, nil
}

// CreateItem builds and persists a catalogue item.
func (f *Factory) CreateItem(overrides ...func(*models.Item)) (*models.Item, error) {
	item := &models.Item{
		Name:        strings.TrimSpace(f.faker.Adjective() + " " + f.faker.Noun()),
		Description: f.faker.Sentence(12),
		CreatedAt:   f.createdAt(),
	}
	for _, override := range overrides {
		override(item)
	}
	if err := f.persist("item", item, func(id uint) { item.ID = id }); err != nil {
		return nil, err
	}
	return item, nil
}

// createdAt spreads timestamps over the last MaxDays days.
func (f *Factory) createdAt() time.Time {
	maxDays := f.opts.MaxDays
	if maxDays <= 0 {
		maxDays = 90
	}
	back := time.Duration(f.faker.Number(0, maxDays*24*60)) * time.Minute
	return time.Now().Add(-back)
}
