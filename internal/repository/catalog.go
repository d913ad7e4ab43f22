package repository

import (
	"context"

	"libris/internal/cache"
	"libris/internal/models"

	"gorm.io/gorm"
)

// ItemRepository defines persistence operations for items.
type ItemRepository interface {
	GetByID(ctx context.Context, id uint) (*models.Item, error)
	List(ctx context.Context, page Page) ([]models.Item, int64, error)
	Create(ctx context.Context, item *models.Item) error
	Update(ctx context.Context, item *models.Item) error
	Delete(ctx context.Context, id uint) error
}

// GenreRepository defines persistence operations for genres.
type GenreRepository interface {
	GetByID(ctx context.Context, id uint) (*models.Genre, error)
	GetByIDs(ctx context.Context, ids []uint) ([]models.Genre, error)
	TitleTaken(ctx context.Context, title string, excludeID uint) (bool, error)
	List(ctx context.Context, page Page) ([]models.Genre, int64, error)
	Create(ctx context.Context, genre *models.Genre) error
	Update(ctx context.Context, genre *models.Genre) error
	Delete(ctx context.Context, id uint) error
}

type itemRepository struct {
	db *gorm.DB
}

func NewItemRepository(db *gorm.DB) ItemRepository {
	return &itemRepository{db: db}
}

func (r *itemRepository) GetByID(ctx context.Context, id uint) (*models.Item, error) {
	var item models.Item
	if err := readDB(r.db).WithContext(ctx).First(&item, id).Error; err != nil {
		return nil, translate(err, "Item", id)
	}
	return &item, nil
}

func (r *itemRepository) List(ctx context.Context, page Page) ([]models.Item, int64, error) {
	db := readDB(r.db).WithContext(ctx)

	var total int64
	if err := db.Model(&models.Item{}).Count(&total).Error; err != nil {
		return nil, 0, models.NewInternalError(err)
	}
	var items []models.Item
	if err := page.apply(db.Order("created_at DESC, id DESC")).Find(&items).Error; err != nil {
		return nil, 0, models.NewInternalError(err)
	}
	return items, total, nil
}

func (r *itemRepository) Create(ctx context.Context, item *models.Item) error {
	return translate(r.db.WithContext(ctx).Create(item).Error, "Item", item.Name)
}

func (r *itemRepository) Update(ctx context.Context, item *models.Item) error {
	return translate(r.db.WithContext(ctx).Save(item).Error, "Item", item.ID)
}

func (r *itemRepository) Delete(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&models.Item{}, id)
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Item", id)
	}
	return nil
}

type genreRepository struct {
	db *gorm.DB
}

func NewGenreRepository(db *gorm.DB) GenreRepository {
	return &genreRepository{db: db}
}

func (r *genreRepository) GetByID(ctx context.Context, id uint) (*models.Genre, error) {
	var genre models.Genre
	if err := readDB(r.db).WithContext(ctx).First(&genre, id).Error; err != nil {
		return nil, translate(err, "Genre", id)
	}
	return &genre, nil
}

// GetByIDs returns the genres found among ids, ordered by title.
func (r *genreRepository) GetByIDs(ctx context.Context, ids []uint) ([]models.Genre, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var genres []models.Genre
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Order("title ASC").Find(&genres).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return genres, nil
}

func (r *genreRepository) TitleTaken(ctx context.Context, title string, excludeID uint) (bool, error) {
	var count int64
	q := r.db.WithContext(ctx).Model(&models.Genre{}).Where("title = ?", title)
	if excludeID != 0 {
		q = q.Where("id <> ?", excludeID)
	}
	if err := q.Count(&count).Error; err != nil {
		return false, models.NewInternalError(err)
	}
	return count > 0, nil
}

func (r *genreRepository) List(ctx context.Context, page Page) ([]models.Genre, int64, error) {
	db := readDB(r.db).WithContext(ctx)

	var total int64
	if err := db.Model(&models.Genre{}).Count(&total).Error; err != nil {
		return nil, 0, models.NewInternalError(err)
	}
	var genres []models.Genre
	if err := page.apply(db.Order("title ASC, id ASC")).Find(&genres).Error; err != nil {
		return nil, 0, models.NewInternalError(err)
	}
	return genres, total, nil
}

func (r *genreRepository) Create(ctx context.Context, genre *models.Genre) error {
	return translate(r.db.WithContext(ctx).Create(genre).Error, "Genre", genre.Title)
}

func (r *genreRepository) Update(ctx context.Context, genre *models.Genre) error {
	if err := r.db.WithContext(ctx).Save(genre).Error; err != nil {
		return translate(err, "Genre", genre.ID)
	}
	r.invalidateBooks(ctx, genre.ID)
	return nil
}

// invalidateBooks drops cached books that embed genre id.
func (r *genreRepository) invalidateBooks(ctx context.Context, genreID uint) {
	var bookIDs []uint
	if err := r.db.WithContext(ctx).Table("book_genres").Where("genre_id = ?", genreID).Pluck("book_id", &bookIDs).Error; err != nil {
		return
	}
	for _, id := range bookIDs {
		cache.InvalidateBook(ctx, id)
	}
}

// Delete removes the genre and its book links.
func (r *genreRepository) Delete(ctx context.Context, id uint) error {
	r.invalidateBooks(ctx, id)
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("DELETE FROM book_genres WHERE genre_id = ?", id).Error; err != nil {
			return models.NewInternalError(err)
		}
		res := tx.Delete(&models.Genre{}, id)
		if res.Error != nil {
			return models.NewInternalError(res.Error)
		}
		if res.RowsAffected == 0 {
			return models.NewNotFoundError("Genre", id)
		}
		return nil
	})
}
