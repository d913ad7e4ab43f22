package repository

import (
	"context"

	"libris/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TokenRepository persists the single API token each user may hold.
type TokenRepository interface {
	GetByKey(ctx context.Context, key string) (*models.AuthToken, error)
	GetByUserID(ctx context.Context, userID uint) (*models.AuthToken, error)
	Create(ctx context.Context, token *models.AuthToken) error
	GetOrCreate(ctx context.Context, token *models.AuthToken) (*models.AuthToken, error)
	DeleteByUserID(ctx context.Context, userID uint) (bool, error)
}

type tokenRepository struct {
	db *gorm.DB
}

func NewTokenRepository(db *gorm.DB) TokenRepository {
	return &tokenRepository{db: db}
}

// GetByKey loads the token together with its user.
func (r *tokenRepository) GetByKey(ctx context.Context, key string) (*models.AuthToken, error) {
	var token models.AuthToken
	if err := r.db.WithContext(ctx).Preload("User").Where("key = ?", key).First(&token).Error; err != nil {
		return nil, translate(err, "Token", "<redacted>")
	}
	return &token, nil
}

func (r *tokenRepository) GetByUserID(ctx context.Context, userID uint) (*models.AuthToken, error) {
	var token models.AuthToken
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&token).Error; err != nil {
		return nil, translate(err, "Token", userID)
	}
	return &token, nil
}

func (r *tokenRepository) Create(ctx context.Context, token *models.AuthToken) error {
	return translate(r.db.WithContext(ctx).Omit("User").Create(token).Error, "Token", token.UserID)
}

// GetOrCreate inserts token unless its user already holds one, and returns
// the token the user ends up with. A concurrent insert for the same user
// loses quietly instead of failing on the user_id constraint.
func (r *tokenRepository) GetOrCreate(ctx context.Context, token *models.AuthToken) (*models.AuthToken, error) {
	res := r.db.WithContext(ctx).
		Omit("User").
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "user_id"}}, DoNothing: true}).
		Create(token)
	if res.Error != nil {
		return nil, translate(res.Error, "Token", token.UserID)
	}
	if res.RowsAffected == 1 {
		return token, nil
	}
	return r.GetByUserID(ctx, token.UserID)
}

// DeleteByUserID reports whether a token existed.
func (r *tokenRepository) DeleteByUserID(ctx context.Context, userID uint) (bool, error) {
	res := r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.AuthToken{})
	if res.Error != nil {
		return false, models.NewInternalError(res.Error)
	}
	return res.RowsAffected > 0, nil
}
