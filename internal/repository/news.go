package repository

import (
	"context"

	"libris/internal/models"

	"gorm.io/gorm"
)

// NewsVisibility restricts which news rows a query may return.
// Everything returns all rows; otherwise published rows plus those
// authored by ViewerID (0 for anonymous viewers).
type NewsVisibility struct {
	Everything bool
	ViewerID   uint
}

func (v NewsVisibility) apply(q *gorm.DB) *gorm.DB {
	switch {
	case v.Everything:
		return q
	case v.ViewerID == 0:
		return q.Where("news.is_published = ?", true)
	default:
		return q.Where("(news.is_published = ? OR news.author_id = ?)", true, v.ViewerID)
	}
}

// NewsRepository defines persistence operations for news posts.
type NewsRepository interface {
	GetVisible(ctx context.Context, id uint, vis NewsVisibility) (*models.News, error)
	List(ctx context.Context, vis NewsVisibility, page Page) ([]models.News, int64, error)
	Create(ctx context.Context, news *models.News) error
	Update(ctx context.Context, news *models.News) error
	Delete(ctx context.Context, id uint) error
}

type newsRepository struct {
	db *gorm.DB
}

func NewNewsRepository(db *gorm.DB) NewsRepository {
	return &newsRepository{db: db}
}

// GetVisible loads news id; rows outside vis are reported as not found.
func (r *newsRepository) GetVisible(ctx context.Context, id uint, vis NewsVisibility) (*models.News, error) {
	var news models.News
	err := vis.apply(r.db.WithContext(ctx).Preload("Author")).First(&news, id).Error
	if err != nil {
		return nil, translate(err, "News", id)
	}
	return &news, nil
}

func (r *newsRepository) List(ctx context.Context, vis NewsVisibility, page Page) ([]models.News, int64, error) {
	db := readDB(r.db).WithContext(ctx)

	var total int64
	if err := vis.apply(db.Model(&models.News{})).Count(&total).Error; err != nil {
		return nil, 0, models.NewInternalError(err)
	}

	var items []models.News
	q := vis.apply(db.Preload("Author")).Order("news.created_at DESC, news.id DESC")
	if err := page.apply(q).Find(&items).Error; err != nil {
		return nil, 0, models.NewInternalError(err)
	}
	return items, total, nil
}

func (r *newsRepository) Create(ctx context.Context, news *models.News) error {
	return translate(r.db.WithContext(ctx).Omit("Author").Create(news).Error, "News", news.Title)
}

func (r *newsRepository) Update(ctx context.Context, news *models.News) error {
	return translate(r.db.WithContext(ctx).Omit("Author").Save(news).Error, "News", news.ID)
}

func (r *newsRepository) Delete(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&models.News{}, id)
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("News", id)
	}
	return nil
}
