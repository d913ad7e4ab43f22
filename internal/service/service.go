// Package service holds the business rules of the API. Every operation takes
// the acting user explicitly and returns models.AppError values.
package service

import (
	"errors"

	"libris/internal/models"
	"libris/internal/repository"
	"libris/internal/storage"
)

const (
	msgNotAuthenticated = "Authentication credentials were not provided."
	msgForbidden        = "You do not have permission to perform this action."
	msgRequired         = "This field is required."
)

// RecentBooksLimit is the number of books returned by BookService.Recent.
const RecentBooksLimit = 5

// Page bounds a list call; it is passed straight to the repositories.
type Page = repository.Page

// authorize converts a permission decision into the matching error:
// anonymous actors get 401, authenticated ones 403.
func authorize(allowed bool, actor models.Actor) error {
	if allowed {
		return nil
	}
	if !actor.Authenticated() {
		return models.NewUnauthorizedError(msgNotAuthenticated)
	}
	return models.NewForbiddenError(msgForbidden)
}

func requireActor(actor models.Actor) error {
	return authorize(actor.Authenticated(), actor)
}

// isNotFound reports whether err is a NOT_FOUND AppError.
func isNotFound(err error) bool {
	var appErr *models.AppError
	return errors.As(err, &appErr) && appErr.Code == models.CodeNotFound
}

// storeImage saves up under dir when present, recording failures against
// field. It returns the new relative path, or "" when nothing was uploaded.
func storeImage(media *storage.Media, dir, field string, up *storage.Upload, fe models.FieldErrors) string {
	if up == nil || media == nil {
		return ""
	}
	rel, err := media.SaveImage(dir, *up)
	if err != nil {
		fe.Add(field, err.Error())
		return ""
	}
	return rel
}

// replaceImage removes old after a successful swap to a new file.
func replaceImage(media *storage.Media, old, updated string) {
	if media == nil || old == "" || old == updated {
		return
	}
	_ = media.Delete(old)
}

func textField(fe models.FieldErrors, field string, v *string, required bool, max int, validate func(string, int) error) {
	if v == nil {
		if required {
			fe.Add(field, msgRequired)
		}
		return
	}
	if err := validate(*v, max); err != nil {
		fe.Add(field, err.Error())
	}
}
