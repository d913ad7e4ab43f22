package service

import (
	"context"
	"strings"
	"time"

	"libris/internal/auth"
	"libris/internal/models"
	"libris/internal/repository"
	"libris/internal/validation"
)

// AccountInput carries the fields needed to open an account.
type AccountInput struct {
	Email           string
	Username        string
	Password        string
	PasswordConfirm *string
	FirstName       string
	LastName        string
	PhoneNumber     string
	BirthDate       *time.Time
	IsStaff         bool
	IsSuperuser     bool
}

func (in *AccountInput) normalize() {
	in.Email = validation.NormalizeEmail(in.Email)
	in.Username = strings.TrimSpace(in.Username)
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	in.PhoneNumber = strings.TrimSpace(in.PhoneNumber)
}

func (in AccountInput) attributes() validation.UserAttributes {
	return validation.UserAttributes{
		Username:  in.Username,
		Email:     in.Email,
		FirstName: in.FirstName,
		LastName:  in.LastName,
	}
}

// validateAccount checks a new account against the format rules, the
// password policy and the existing users. A non-nil PasswordConfirm must
// match Password.
func validateAccount(ctx context.Context, users repository.UserRepository, policy validation.PasswordPolicy, in AccountInput) error {
	fe := models.FieldErrors{}

	if err := validation.ValidateEmail(in.Email); err != nil {
		fe.Add("email", err.Error())
	} else if taken, err := users.EmailTaken(ctx, in.Email, 0); err != nil {
		return err
	} else if taken {
		fe.Add("email", models.NewDuplicateError("User", "email").Fields["email"][0])
	}

	if err := validation.ValidateUsername(in.Username); err != nil {
		fe.Add("username", err.Error())
	} else if taken, err := users.UsernameTaken(ctx, in.Username, 0); err != nil {
		return err
	} else if taken {
		fe.Add("username", models.NewDuplicateError("User", "username").Fields["username"][0])
	}

	if err := validation.ValidateMaxLength(in.PhoneNumber, 20); err != nil {
		fe.Add("phone_number", err.Error())
	}

	if in.Password == "" {
		fe.Add("password", msgRequired)
	} else {
		for _, problem := range policy.Check(in.Password, in.attributes()) {
			fe.Add("password", problem)
		}
	}

	if in.PasswordConfirm != nil {
		switch {
		case *in.PasswordConfirm == "":
			fe.Add("password_confirm", msgRequired)
		case *in.PasswordConfirm != in.Password:
			fe.Add("password_confirm", "Passwords do not match.")
		}
	}

	return fe.Err()
}

func newUserRecord(in AccountInput) (*models.User, error) {
	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return &models.User{
		Email:       in.Email,
		Username:    in.Username,
		Password:    hash,
		FirstName:   in.FirstName,
		LastName:    in.LastName,
		PhoneNumber: in.PhoneNumber,
		BirthDate:   in.BirthDate,
		IsActive:    true,
		IsStaff:     in.IsStaff || in.IsSuperuser,
		IsSuperuser: in.IsSuperuser,
	}, nil
}

func mintToken(ctx context.Context, tokens repository.TokenRepository, userID uint) (*models.AuthToken, error) {
	key, err := auth.GenerateTokenKey()
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	token := &models.AuthToken{Key: key, UserID: userID}
	if err := tokens.Create(ctx, token); err != nil {
		return nil, err
	}
	return token, nil
}

// ensureToken returns the user's token, minting one when there is none.
func ensureToken(ctx context.Context, tokens repository.TokenRepository, userID uint) (*models.AuthToken, error) {
	existing, err := tokens.GetByUserID(ctx, userID)
	if err == nil {
		return existing, nil
	}
	if !isNotFound(err) {
		return nil, err
	}
	key, err := auth.GenerateTokenKey()
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return tokens.GetOrCreate(ctx, &models.AuthToken{Key: key, UserID: userID})
}
