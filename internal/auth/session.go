package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"libris/internal/models"
	"libris/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const sessionIssuer = "libris"

var (
	// ErrSessionNotFound is returned by a SessionStore for unknown or expired keys.
	ErrSessionNotFound = errors.New("session not found")
	// ErrInvalidSession is returned when a cookie fails signature or claim checks.
	ErrInvalidSession = errors.New("invalid session")
)

// SessionStore keeps the server side of a login session.
type SessionStore interface {
	Save(ctx context.Context, key string, userID uint, ttl time.Duration) error
	Load(ctx context.Context, key string) (uint, error)
	Delete(ctx context.Context, key string) error
}

// RedisSessionStore keeps sessions under session:<key> with a TTL.
type RedisSessionStore struct {
	client *redis.Client
}

func NewRedisSessionStore(client *redis.Client) *RedisSessionStore {
	return &RedisSessionStore{client: client}
}

func redisSessionKey(key string) string { return "session:" + key }

func (s *RedisSessionStore) Save(ctx context.Context, key string, userID uint, ttl time.Duration) error {
	if err := s.client.Set(ctx, redisSessionKey(key), strconv.FormatUint(uint64(userID), 10), ttl).Err(); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (s *RedisSessionStore) Load(ctx context.Context, key string) (uint, error) {
	raw, err := s.client.Get(ctx, redisSessionKey(key)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, ErrSessionNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("load session: %w", err)
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, ErrSessionNotFound
	}
	return uint(id), nil
}

func (s *RedisSessionStore) Delete(ctx context.Context, key string) error {
	return s.client.Del(ctx, redisSessionKey(key)).Err()
}

// DBSessionStore keeps sessions in the sessions table.
type DBSessionStore struct {
	repo repository.SessionRepository
	now  func() time.Time
}

func NewDBSessionStore(repo repository.SessionRepository) *DBSessionStore {
	return &DBSessionStore{repo: repo, now: time.Now}
}

func (s *DBSessionStore) Save(ctx context.Context, key string, userID uint, ttl time.Duration) error {
	return s.repo.Create(ctx, &models.Session{Key: key, UserID: userID, ExpiresAt: s.now().Add(ttl)})
}

func (s *DBSessionStore) Load(ctx context.Context, key string) (uint, error) {
	session, err := s.repo.GetActive(ctx, key, s.now())
	if err != nil {
		var appErr *models.AppError
		if errors.As(err, &appErr) && appErr.Code == models.CodeNotFound {
			return 0, ErrSessionNotFound
		}
		return 0, err
	}
	return session.UserID, nil
}

func (s *DBSessionStore) Delete(ctx context.Context, key string) error {
	return s.repo.Delete(ctx, key)
}

// SessionManager issues and resolves session cookies. A cookie is an HS256
// JWT whose jti names the server-side session and whose sub is the user id.
type SessionManager struct {
	store  SessionStore
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewSessionManager(store SessionStore, secret string, ttl time.Duration) *SessionManager {
	return &SessionManager{store: store, secret: []byte(secret), ttl: ttl, now: time.Now}
}

// TTL is the lifetime of newly issued sessions.
func (m *SessionManager) TTL() time.Duration { return m.ttl }

// Issue starts a session for userID and returns the cookie value and its expiry.
func (m *SessionManager) Issue(ctx context.Context, userID uint) (string, time.Time, error) {
	now := m.now()
	expires := now.Add(m.ttl)
	key := uuid.NewString()

	claims := jwt.RegisteredClaims{
		Issuer:    sessionIssuer,
		Subject:   strconv.FormatUint(uint64(userID), 10),
		ID:        key,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expires),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign session: %w", err)
	}

	if err := m.store.Save(ctx, key, userID, m.ttl); err != nil {
		return "", time.Time{}, err
	}
	return signed, expires, nil
}

func (m *SessionManager) parse(value string, opts ...jwt.ParserOption) (*jwt.RegisteredClaims, error) {
	opts = append(opts,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(sessionIssuer),
		jwt.WithTimeFunc(m.now),
	)
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(value, claims, func(*jwt.Token) (any, error) {
		return m.secret, nil
	}, opts...)
	if err != nil || !token.Valid || claims.ID == "" {
		return nil, ErrInvalidSession
	}
	return claims, nil
}

// Resolve returns the user id behind a cookie value.
func (m *SessionManager) Resolve(ctx context.Context, value string) (uint, error) {
	claims, err := m.parse(value)
	if err != nil {
		return 0, err
	}
	sub, err := strconv.ParseUint(claims.Subject, 10, 64)
	if err != nil {
		return 0, ErrInvalidSession
	}

	userID, err := m.store.Load(ctx, claims.ID)
	if err != nil {
		return 0, err
	}
	if userID != uint(sub) {
		return 0, ErrInvalidSession
	}
	return userID, nil
}

// Destroy ends the session named by value. Unparseable or already expired
// cookies are not an error.
func (m *SessionManager) Destroy(ctx context.Context, value string) error {
	if value == "" {
		return nil
	}
	claims, err := m.parse(value, jwt.WithoutClaimsValidation())
	if err != nil {
		return nil
	}
	return m.store.Delete(ctx, claims.ID)
}
