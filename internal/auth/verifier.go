package auth

import (
	"context"
	"errors"
	"strings"

	"libris/internal/middleware"
	"libris/internal/models"
	"libris/internal/repository"
)

var (
	// ErrNoCredentials means the verifier found nothing it understands and
	// the next verifier should be tried.
	ErrNoCredentials = errors.New("no credentials")
	// ErrInvalidCredentials means credentials were supplied but rejected.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// Credentials carries the raw authentication material of a request.
type Credentials struct {
	Authorization string
	SessionCookie string
}

// Verifier turns one kind of credential into a user.
type Verifier interface {
	Verify(ctx context.Context, cred Credentials) (*models.User, error)
}

// TokenVerifier accepts "Token <key>" and "Bearer <key>" headers.
// Any header it cannot honour is rejected outright.
type TokenVerifier struct {
	tokens repository.TokenRepository
}

func NewTokenVerifier(tokens repository.TokenRepository) *TokenVerifier {
	return &TokenVerifier{tokens: tokens}
}

// ParseAuthorization extracts the key from an Authorization header value.
func ParseAuthorization(header string) (string, bool) {
	parts := strings.Fields(header)
	if len(parts) != 2 {
		return "", false
	}
	switch strings.ToLower(parts[0]) {
	case "token", "bearer":
		return parts[1], true
	default:
		return "", false
	}
}

func (v *TokenVerifier) Verify(ctx context.Context, cred Credentials) (*models.User, error) {
	if strings.TrimSpace(cred.Authorization) == "" {
		return nil, ErrNoCredentials
	}
	key, ok := ParseAuthorization(cred.Authorization)
	if !ok {
		return nil, ErrInvalidCredentials
	}

	token, err := v.tokens.GetByKey(ctx, key)
	if err != nil {
		var appErr *models.AppError
		if errors.As(err, &appErr) && appErr.Code == models.CodeNotFound {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if token.User == nil || !token.User.IsActive {
		return nil, ErrInvalidCredentials
	}
	return token.User, nil
}

// SessionVerifier accepts the session cookie. A stale or forged cookie is
// treated as absent so the request continues anonymously.
type SessionVerifier struct {
	sessions *SessionManager
	users    repository.UserRepository
}

func NewSessionVerifier(sessions *SessionManager, users repository.UserRepository) *SessionVerifier {
	return &SessionVerifier{sessions: sessions, users: users}
}

func (v *SessionVerifier) Verify(ctx context.Context, cred Credentials) (*models.User, error) {
	if cred.SessionCookie == "" {
		return nil, ErrNoCredentials
	}

	userID, err := v.sessions.Resolve(ctx, cred.SessionCookie)
	if err != nil {
		if !errors.Is(err, ErrSessionNotFound) && !errors.Is(err, ErrInvalidSession) {
			middleware.Logger.WarnContext(ctx, "session lookup failed", "error", err)
		}
		return nil, ErrNoCredentials
	}

	user, err := v.users.GetByID(ctx, userID)
	if err != nil {
		var appErr *models.AppError
		if errors.As(err, &appErr) && appErr.Code == models.CodeNotFound {
			return nil, ErrNoCredentials
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, ErrNoCredentials
	}
	return user, nil
}

// Resolver runs verifiers in order and returns the first identity found.
type Resolver struct {
	verifiers []Verifier
}

func NewResolver(verifiers ...Verifier) *Resolver {
	return &Resolver{verifiers: verifiers}
}

// Resolve returns the anonymous actor when no verifier recognises the
// credentials, and an error when one of them rejects them.
func (r *Resolver) Resolve(ctx context.Context, cred Credentials) (models.Actor, error) {
	for _, v := range r.verifiers {
		user, err := v.Verify(ctx, cred)
		switch {
		case err == nil:
			return models.ActorFor(user), nil
		case errors.Is(err, ErrNoCredentials):
			continue
		default:
			return models.Actor{}, err
		}
	}
	return models.Actor{}, nil
}
