package repository

import (
	"context"

	"libris/internal/cache"
	"libris/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// BookRepository defines persistence operations for books.
type BookRepository interface {
	GetByID(ctx context.Context, id uint) (*models.Book, error)
	List(ctx context.Context, page Page) ([]models.Book, int64, error)
	Recent(ctx context.Context, n int) ([]models.Book, error)
	ISBNTaken(ctx context.Context, isbn string, excludeID uint) (bool, error)
	Create(ctx context.Context, book *models.Book) error
	Update(ctx context.Context, book *models.Book, replaceGenres bool) error
	Delete(ctx context.Context, id uint) error
}

type bookRepository struct {
	db *gorm.DB
}

func NewBookRepository(db *gorm.DB) BookRepository {
	return &bookRepository{db: db}
}

func withBookRelations(db *gorm.DB) *gorm.DB {
	return db.Preload("Author").Preload("Genres", func(db *gorm.DB) *gorm.DB {
		return db.Order("genres.title ASC")
	})
}

func (r *bookRepository) GetByID(ctx context.Context, id uint) (*models.Book, error) {
	var book models.Book
	err := cache.Aside(ctx, cache.BookKey(id), &book, cache.BookTTL, func() error {
		err := withBookRelations(readDB(r.db).WithContext(ctx)).First(&book, id).Error
		return translate(err, "Book", id)
	})
	if err != nil {
		return nil, err
	}
	return &book, nil
}

func (r *bookRepository) List(ctx context.Context, page Page) ([]models.Book, int64, error) {
	db := readDB(r.db).WithContext(ctx)

	var total int64
	if err := db.Model(&models.Book{}).Count(&total).Error; err != nil {
		return nil, 0, models.NewInternalError(err)
	}

	var books []models.Book
	q := withBookRelations(db).Order("created_at DESC, id DESC")
	if err := page.apply(q).Find(&books).Error; err != nil {
		return nil, 0, models.NewInternalError(err)
	}
	return books, total, nil
}

// Recent returns the n newest books.
func (r *bookRepository) Recent(ctx context.Context, n int) ([]models.Book, error) {
	var books []models.Book
	err := cache.Aside(ctx, cache.RecentBooksKey, &books, cache.RecentBooksTTL, func() error {
		err := withBookRelations(readDB(r.db).WithContext(ctx)).
			Order("created_at DESC, id DESC").
			Limit(n).
			Find(&books).Error
		if err != nil {
			return models.NewInternalError(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(books) > n {
		books = books[:n]
	}
	return books, nil
}

func (r *bookRepository) ISBNTaken(ctx context.Context, isbn string, excludeID uint) (bool, error) {
	var count int64
	q := r.db.WithContext(ctx).Model(&models.Book{}).Where("isbn = ?", isbn)
	if excludeID != 0 {
		q = q.Where("id <> ?", excludeID)
	}
	if err := q.Count(&count).Error; err != nil {
		return false, models.NewInternalError(err)
	}
	return count > 0, nil
}

// Create inserts the book and links book.Genres, which must already exist.
func (r *bookRepository) Create(ctx context.Context, book *models.Book) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(book).Error; err != nil {
			return translate(err, "Book", book.Title)
		}
		if len(book.Genres) > 0 {
			if err := tx.Model(book).Omit("Genres.*").Association("Genres").Append(book.Genres); err != nil {
				return models.NewInternalError(err)
			}
		}
		return nil
	})
	if err == nil {
		cache.Invalidate(ctx, cache.RecentBooksKey)
	}
	return err
}

// Update saves scalar columns and, when replaceGenres is set, swaps the genre links.
func (r *bookRepository) Update(ctx context.Context, book *models.Book, replaceGenres bool) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Save(book).Error; err != nil {
			return translate(err, "Book", book.ID)
		}
		if !replaceGenres {
			return nil
		}
		assoc := tx.Model(book).Omit("Genres.*").Association("Genres")
		var err error
		if len(book.Genres) == 0 {
			err = assoc.Clear()
		} else {
			err = assoc.Replace(book.Genres)
		}
		if err != nil {
			return models.NewInternalError(err)
		}
		return nil
	})
	if err == nil {
		cache.InvalidateBook(ctx, book.ID)
	}
	return err
}

func (r *bookRepository) Delete(ctx context.Context, id uint) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		book := models.Book{ID: id}
		if err := tx.Model(&book).Association("Genres").Clear(); err != nil {
			return models.NewInternalError(err)
		}
		res := tx.Delete(&models.Book{}, id)
		if res.Error != nil {
			return models.NewInternalError(res.Error)
		}
		if res.RowsAffected == 0 {
			return models.NewNotFoundError("Book", id)
		}
		return nil
	})
	if err == nil {
		cache.InvalidateBook(ctx, id)
	}
	return err
}
