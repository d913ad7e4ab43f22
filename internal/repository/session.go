package repository

import (
	"context"
	"time"

	"libris/internal/models"

	"gorm.io/gorm"
)

// SessionRepository stores server-side sessions in the database.
type SessionRepository interface {
	Create(ctx context.Context, session *models.Session) error
	GetActive(ctx context.Context, key string, now time.Time) (*models.Session, error)
	Delete(ctx context.Context, key string) error
	DeleteByUserID(ctx context.Context, userID uint) error
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}

type sessionRepository struct {
	db *gorm.DB
}

func NewSessionRepository(db *gorm.DB) SessionRepository {
	return &sessionRepository{db: db}
}

func (r *sessionRepository) Create(ctx context.Context, session *models.Session) error {
	return translate(r.db.WithContext(ctx).Omit("User").Create(session).Error, "Session", "<redacted>")
}

// GetActive returns the session only if it has not expired at now.
func (r *sessionRepository) GetActive(ctx context.Context, key string, now time.Time) (*models.Session, error) {
	var session models.Session
	err := r.db.WithContext(ctx).
		Where("key = ? AND expires_at > ?", key, now).
		First(&session).Error
	if err != nil {
		return nil, translate(err, "Session", "<redacted>")
	}
	return &session, nil
}

func (r *sessionRepository) Delete(ctx context.Context, key string) error {
	if err := r.db.WithContext(ctx).Where("key = ?", key).Delete(&models.Session{}).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *sessionRepository) DeleteByUserID(ctx context.Context, userID uint) error {
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.Session{}).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *sessionRepository) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Where("expires_at <= ?", now).Delete(&models.Session{})
	if res.Error != nil {
		return 0, models.NewInternalError(res.Error)
	}
	return res.RowsAffected, nil
}
