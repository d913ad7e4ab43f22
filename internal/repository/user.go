package repository

import (
	"context"
	"time"

	"libris/internal/cache"
	"libris/internal/models"

	"gorm.io/gorm"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id uint) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	EmailTaken(ctx context.Context, email string, excludeID uint) (bool, error)
	UsernameTaken(ctx context.Context, username string, excludeID uint) (bool, error)
	Create(ctx context.Context, user *models.User) error
	Update(ctx context.Context, user *models.User) error
	TouchLastLogin(ctx context.Context, id uint, at time.Time) error
	Delete(ctx context.Context, id uint) error
	List(ctx context.Context, page Page) ([]models.User, int64, error)
	ListStaff(ctx context.Context) ([]models.User, error)
}

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository returns a new UserRepository implementation.
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) GetByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, translate(err, "User", id)
	}
	return &user, nil
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		return nil, translate(err, "User", email)
	}
	return &user, nil
}

func (r *userRepository) taken(ctx context.Context, column, value string, excludeID uint) (bool, error) {
	var count int64
	q := r.db.WithContext(ctx).Model(&models.User{}).Where(column+" = ?", value)
	if excludeID != 0 {
		q = q.Where("id <> ?", excludeID)
	}
	if err := q.Count(&count).Error; err != nil {
		return false, models.NewInternalError(err)
	}
	return count > 0, nil
}

func (r *userRepository) EmailTaken(ctx context.Context, email string, excludeID uint) (bool, error) {
	return r.taken(ctx, "email", email, excludeID)
}

func (r *userRepository) UsernameTaken(ctx context.Context, username string, excludeID uint) (bool, error) {
	return r.taken(ctx, "username", username, excludeID)
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	return translate(r.db.WithContext(ctx).Create(user).Error, "User", user.Email)
}

// Update saves the user. Cached books embed their author, so the user's
// books are dropped from the cache.
func (r *userRepository) Update(ctx context.Context, user *models.User) error {
	if err := r.db.WithContext(ctx).Save(user).Error; err != nil {
		return translate(err, "User", user.ID)
	}
	r.invalidateBooks(ctx, r.authoredBookIDs(ctx, user.ID))
	return nil
}

func (r *userRepository) authoredBookIDs(ctx context.Context, userID uint) []uint {
	var bookIDs []uint
	if err := r.db.WithContext(ctx).Model(&models.Book{}).Where("author_id = ?", userID).Pluck("id", &bookIDs).Error; err != nil {
		return nil
	}
	return bookIDs
}

func (r *userRepository) invalidateBooks(ctx context.Context, bookIDs []uint) {
	for _, id := range bookIDs {
		cache.InvalidateBook(ctx, id)
	}
}

func (r *userRepository) TouchLastLogin(ctx context.Context, id uint, at time.Time) error {
	res := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Update("last_login", at)
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("User", id)
	}
	return nil
}

// Delete removes the user with its token and sessions. Owned books and news
// go with it through ON DELETE CASCADE.
func (r *userRepository) Delete(ctx context.Context, id uint) error {
	bookIDs := r.authoredBookIDs(ctx, id)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", id).Delete(&models.AuthToken{}).Error; err != nil {
			return models.NewInternalError(err)
		}
		if err := tx.Where("user_id = ?", id).Delete(&models.Session{}).Error; err != nil {
			return models.NewInternalError(err)
		}
		res := tx.Delete(&models.User{}, id)
		if res.Error != nil {
			return models.NewInternalError(res.Error)
		}
		if res.RowsAffected == 0 {
			return models.NewNotFoundError("User", id)
		}
		return nil
	})
	if err == nil {
		r.invalidateBooks(ctx, bookIDs)
	}
	return err
}

func (r *userRepository) List(ctx context.Context, page Page) ([]models.User, int64, error) {
	db := readDB(r.db).WithContext(ctx)

	var total int64
	if err := db.Model(&models.User{}).Count(&total).Error; err != nil {
		return nil, 0, models.NewInternalError(err)
	}

	var users []models.User
	if err := page.apply(db.Order("date_joined DESC, id DESC")).Find(&users).Error; err != nil {
		return nil, 0, models.NewInternalError(err)
	}
	return users, total, nil
}

func (r *userRepository) ListStaff(ctx context.Context) ([]models.User, error) {
	var users []models.User
	err := readDB(r.db).WithContext(ctx).
		Where("is_staff = ? OR is_superuser = ?", true, true).
		Order("id ASC").
		Find(&users).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return users, nil
}
