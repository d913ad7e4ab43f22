package service

import (
	"context"
	"time"

	"libris/internal/auth"
	"libris/internal/middleware"
	"libris/internal/models"
	"libris/internal/observability"
	"libris/internal/repository"
	"libris/internal/validation"

	"gorm.io/gorm"
)

const msgBadCredentials = "Invalid email or password."

// AuthService registers users and opens and closes their sessions.
type AuthService struct {
	db       *gorm.DB
	users    repository.UserRepository
	tokens   repository.TokenRepository
	sessions *auth.SessionManager
	policy   validation.PasswordPolicy
	now      func() time.Time
}

func NewAuthService(db *gorm.DB, sessions *auth.SessionManager, policy validation.PasswordPolicy) *AuthService {
	return &AuthService{
		db:       db,
		users:    repository.NewUserRepository(db),
		tokens:   repository.NewTokenRepository(db),
		sessions: sessions,
		policy:   policy,
		now:      time.Now,
	}
}

// RegisterInput is the self-service sign-up payload.
type RegisterInput struct {
	Email           string
	Username        string
	Password        string
	PasswordConfirm string
	FirstName       string
	LastName        string
	BirthDate       *time.Time
}

// Register creates an active account and its API token in one transaction.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (user *models.User, token *models.AuthToken, err error) {
	ctx, finish := observability.StartServiceSpan(ctx, "AuthService", "Register")
	defer func() { finish(err) }()

	confirm := in.PasswordConfirm
	account := AccountInput{
		Email:           in.Email,
		Username:        in.Username,
		Password:        in.Password,
		PasswordConfirm: &confirm,
		FirstName:       in.FirstName,
		LastName:        in.LastName,
		BirthDate:       in.BirthDate,
	}
	account.normalize()

	if err = validateAccount(ctx, s.users, s.policy, account); err != nil {
		observability.AuthEvents.WithLabelValues("register", "rejected").Inc()
		return nil, nil, err
	}

	user, err = newUserRecord(account)
	if err != nil {
		return nil, nil, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := repository.NewUserRepository(tx).Create(ctx, user); err != nil {
			return err
		}
		t, err := mintToken(ctx, repository.NewTokenRepository(tx), user.ID)
		if err != nil {
			return err
		}
		token = t
		return nil
	})
	if err != nil {
		observability.AuthEvents.WithLabelValues("register", "rejected").Inc()
		return nil, nil, err
	}

	observability.AuthEvents.WithLabelValues("register", "success").Inc()
	middleware.Logger.InfoContext(ctx, "user registered", "user_id", user.ID)
	return user, token, nil
}

// Authenticate checks an email and password pair without side effects.
func (s *AuthService) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	fe := models.FieldErrors{}
	email = validation.NormalizeEmail(email)
	if email == "" {
		fe.Add("email", msgRequired)
	}
	if password == "" {
		fe.Add("password", msgRequired)
	}
	if err := fe.Err(); err != nil {
		return nil, err
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if isNotFound(err) {
			return nil, models.NewUnauthorizedError(msgBadCredentials)
		}
		return nil, err
	}
	if !user.IsActive || !auth.CheckPassword(user.Password, password) {
		return nil, models.NewUnauthorizedError(msgBadCredentials)
	}
	return user, nil
}

// Login authenticates the user, stamps last_login and returns their API
// token, creating it when the user has none.
func (s *AuthService) Login(ctx context.Context, email, password string) (user *models.User, token *models.AuthToken, err error) {
	ctx, finish := observability.StartServiceSpan(ctx, "AuthService", "Login")
	defer func() { finish(err) }()

	user, err = s.Authenticate(ctx, email, password)
	if err != nil {
		observability.AuthEvents.WithLabelValues("login", "failure").Inc()
		return nil, nil, err
	}

	now := s.now().UTC()
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := repository.NewUserRepository(tx).TouchLastLogin(ctx, user.ID, now); err != nil {
			return err
		}
		var err error
		token, err = ensureToken(ctx, repository.NewTokenRepository(tx), user.ID)
		return err
	})
	if err != nil {
		return nil, nil, err
	}

	user.LastLogin = &now
	observability.AuthEvents.WithLabelValues("login", "success").Inc()
	return user, token, nil
}

// SignIn authenticates a browser login: last_login is stamped but no API
// token is minted.
func (s *AuthService) SignIn(ctx context.Context, email, password string) (*models.User, error) {
	user, err := s.Authenticate(ctx, email, password)
	if err != nil {
		observability.AuthEvents.WithLabelValues("login", "failure").Inc()
		return nil, err
	}
	now := s.now().UTC()
	if err := s.users.TouchLastLogin(ctx, user.ID, now); err != nil {
		return nil, err
	}
	user.LastLogin = &now
	observability.AuthEvents.WithLabelValues("login", "success").Inc()
	return user, nil
}

// StartSession issues a session cookie for user.
func (s *AuthService) StartSession(ctx context.Context, user *models.User) (string, time.Time, error) {
	value, expires, err := s.sessions.Issue(ctx, user.ID)
	if err != nil {
		return "", time.Time{}, models.NewInternalError(err)
	}
	return value, expires, nil
}

// EndSession destroys the session behind cookie, if any.
func (s *AuthService) EndSession(ctx context.Context, cookie string) {
	if err := s.sessions.Destroy(ctx, cookie); err != nil {
		middleware.Logger.WarnContext(ctx, "session destroy failed", "error", err)
	}
}

// Logout revokes the actor's API token and ends the given session. A user
// without a token is not an error.
func (s *AuthService) Logout(ctx context.Context, actor models.Actor, sessionCookie string) error {
	if err := requireActor(actor); err != nil {
		return err
	}
	if _, err := s.tokens.DeleteByUserID(ctx, actor.ID()); err != nil {
		return err
	}
	s.EndSession(ctx, sessionCookie)
	observability.AuthEvents.WithLabelValues("logout", "success").Inc()
	return nil
}
