package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/geocoder89/storefront/internal/domain/user"
)

var (
	ErrDuplicateUser      = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrMissingToken       = errors.New("missing bearer token")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrInvalidRefresh     = errors.New("invalid refresh token")
	ErrExpiredRefresh     = errors.New("refresh token expired")
)

type UserStore interface {
	CreateUser(ctx context.Context, u user.User) (user.User, error)
	GetByEmail(ctx context.Context, email string) (user.User, error)
	GetByID(ctx context.Context, id string) (user.User, error)
}

type PasswordHasher interface {
	HashPassword(plain string) (string, error)
	CheckPassword(hash, plain string) error
}

// Session is the server-side record of an issued refresh token.
type Session struct {
	ID         string
	UserID     string
	TokenHash  string
	ExpiresAt  time.Time
	RevokedAt  *time.Time
	ReplacedBy *string
	CreatedAt  time.Time
}

type SessionStore interface {
	CreateSession(ctx context.Context, s Session) error
	// RotateSession locks the session row, runs check against it, then revokes it
	// and inserts next, all-or-nothing. A missing session yields ErrInvalidRefresh.
	RotateSession(ctx context.Context, id string, check func(Session) error, next Session) error
	RevokeSession(ctx context.Context, id string) error
}

type Result struct {
	AccessToken      string
	RefreshToken     string
	RefreshExpiresAt time.Time
	User             user.Summary
}

type Gateway struct {
	users     UserStore
	sessions  SessionStore
	hasher    PasswordHasher
	tokens    *Manager
	dummyHash string
}

func NewGateway(users UserStore, sessions SessionStore, hasher PasswordHasher, tokens *Manager) (*Gateway, error) {
	// compared against on unknown emails so both failure paths cost one bcrypt check
	dummy, err := hasher.HashPassword("storefront-dummy-password")
	if err != nil {
		return nil, fmt.Errorf("prepare dummy hash: %w", err)
	}

	return &Gateway{
		users:     users,
		sessions:  sessions,
		hasher:    hasher,
		tokens:    tokens,
		dummyHash: dummy,
	}, nil
}

func (g *Gateway) Register(ctx context.Context, email, password, name string) (Result, error) {
	_, err := g.users.GetByEmail(ctx, email)
	if err == nil {
		return Result{}, ErrDuplicateUser
	}
	if !errors.Is(err, user.ErrNotFound) {
		return Result{}, fmt.Errorf("lookup user: %w", err)
	}

	hash, err := g.hasher.HashPassword(password)
	if err != nil {
		return Result{}, fmt.Errorf("hash password: %w", err)
	}

	u, err := g.users.CreateUser(ctx, user.New(email, hash, name, user.RoleCustomer))
	if err != nil {
		// lost a race with a concurrent registration for the same email
		if errors.Is(err, user.ErrEmailTaken) {
			return Result{}, ErrDuplicateUser
		}
		return Result{}, fmt.Errorf("create user: %w", err)
	}

	return g.issue(ctx, u)
}

func (g *Gateway) Login(ctx context.Context, email, password string) (Result, error) {
	u, err := g.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			_ = g.hasher.CheckPassword(g.dummyHash, password)
			return Result{}, ErrInvalidCredentials
		}
		return Result{}, fmt.Errorf("lookup user: %w", err)
	}

	if err := g.hasher.CheckPassword(u.PasswordHash, password); err != nil {
		return Result{}, ErrInvalidCredentials
	}

	return g.issue(ctx, u)
}

// Authenticate resolves an Authorization header value to verified access claims.
func (g *Gateway) Authenticate(authorizationHeader string) (*Claims, error) {
	raw, ok := bearerToken(authorizationHeader)
	if !ok {
		return nil, ErrMissingToken
	}

	claims, err := g.tokens.VerifyAccessToken(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	return claims, nil
}

func (g *Gateway) Refresh(ctx context.Context, rawRefresh string) (Result, error) {
	claims, err := g.tokens.VerifyRefreshToken(rawRefresh)
	if err != nil {
		return Result{}, ErrInvalidRefresh
	}

	u, err := g.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return Result{}, ErrInvalidRefresh
		}
		return Result{}, fmt.Errorf("lookup user: %w", err)
	}

	newRaw, newJTI, newExpiresAt, err := g.tokens.GenerateRefreshToken(u.ID, u.Role)
	if err != nil {
		return Result{}, fmt.Errorf("generate refresh token: %w", err)
	}

	presentedHash := g.tokens.HashRefreshToken(rawRefresh)

	check := func(s Session) error {
		if s.RevokedAt != nil {
			return ErrInvalidRefresh
		}
		if time.Now().UTC().After(s.ExpiresAt) {
			return ErrExpiredRefresh
		}
		// prevents token substitution
		if s.TokenHash != presentedHash || s.UserID != u.ID {
			return ErrInvalidRefresh
		}
		return nil
	}

	next := Session{
		ID:        newJTI,
		UserID:    u.ID,
		TokenHash: g.tokens.HashRefreshToken(newRaw),
		ExpiresAt: newExpiresAt,
		CreatedAt: time.Now().UTC(),
	}

	if err := g.sessions.RotateSession(ctx, claims.JTI, check, next); err != nil {
		return Result{}, err
	}

	access, err := g.tokens.GenerateAccessToken(u.ID, u.Role)
	if err != nil {
		return Result{}, fmt.Errorf("generate access token: %w", err)
	}

	return Result{
		AccessToken:      access,
		RefreshToken:     newRaw,
		RefreshExpiresAt: newExpiresAt,
		User:             u.Summary(),
	}, nil
}

// Logout revokes the presented refresh token. Unknown or invalid tokens are a no-op.
func (g *Gateway) Logout(ctx context.Context, rawRefresh string) error {
	claims, err := g.tokens.VerifyRefreshToken(rawRefresh)
	if err != nil {
		return nil
	}
	return g.sessions.RevokeSession(ctx, claims.JTI)
}

func (g *Gateway) Me(ctx context.Context, userID string) (user.Summary, error) {
	u, err := g.users.GetByID(ctx, userID)
	if err != nil {
		return user.Summary{}, err
	}
	return u.Summary(), nil
}

func (g *Gateway) issue(ctx context.Context, u user.User) (Result, error) {
	access, err := g.tokens.GenerateAccessToken(u.ID, u.Role)
	if err != nil {
		return Result{}, fmt.Errorf("generate access token: %w", err)
	}

	raw, jti, expiresAt, err := g.tokens.GenerateRefreshToken(u.ID, u.Role)
	if err != nil {
		return Result{}, fmt.Errorf("generate refresh token: %w", err)
	}

	err = g.sessions.CreateSession(ctx, Session{
		ID:        jti,
		UserID:    u.ID,
		TokenHash: g.tokens.HashRefreshToken(raw),
		ExpiresAt: expiresAt,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		return Result{}, fmt.Errorf("create session: %w", err)
	}

	return Result{
		AccessToken:      access,
		RefreshToken:     raw,
		RefreshExpiresAt: expiresAt,
		User:             u.Summary(),
	}, nil
}

func bearerToken(header string) (string, bool) {
	scheme, raw, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}

	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	return raw, true
}
