// Package repository implements the data access layer for the application.
package repository

import (
	"errors"

	"libris/internal/database"
	"libris/internal/models"

	"gorm.io/gorm"
)

// readDB prefers the configured read replica.
func readDB(primary *gorm.DB) *gorm.DB {
	if db := database.GetReadDB(); db != nil {
		return db
	}
	return primary
}

// translate maps driver errors onto AppErrors: missing rows become NotFound,
// unique violations become field errors, anything else is internal.
func translate(err error, resource string, id any) error {
	if err == nil {
		return nil
	}
	var appErr *models.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.NewNotFoundError(resource, id)
	}
	if column, ok := database.UniqueViolation(err); ok {
		if column == "" {
			return models.NewValidationError(resource + " already exists")
		}
		return models.NewDuplicateError(resource, column)
	}
	return models.NewInternalError(err)
}

// Page bounds a list query.
type Page struct {
	Limit  int
	Offset int
}

func (p Page) apply(q *gorm.DB) *gorm.DB {
	if p.Limit > 0 {
		q = q.Limit(p.Limit)
	}
	if p.Offset > 0 {
		q = q.Offset(p.Offset)
	}
	return q
}
