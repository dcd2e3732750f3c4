package services

import (
	"context"
	"errors"
	"log/slog"
	"net/mail"
	"strings"
	"sync"
	"time"

	"github.com/ahmetcoskunkizilkaya/enrollment-api/internal/dto"
	"github.com/ahmetcoskunkizilkaya/enrollment-api/internal/models"
	"github.com/ahmetcoskunkizilkaya/enrollment-api/internal/store"
	"github.com/ahmetcoskunkizilkaya/enrollment-api/internal/token"
	"golang.org/x/crypto/bcrypt"
)

const (
	minPasswordLength = 8
	// bcrypt ignores input past 72 bytes
	maxPasswordLength = 72
)

// UserStore is the credential store the auth service depends on.
type UserStore interface {
	Create(ctx context.Context, user *models.User) error
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id uint) (*models.User, error)
}

// TokenLedger records refresh tokens that are still allowed to mint access tokens.
type TokenLedger interface {
	Store(ctx context.Context, token string, userID uint) error
	Find(ctx context.Context, token string) (*models.RefreshToken, error)
	Delete(ctx context.Context, token string) (int64, error)
}

// Session is the credential pair handed to the transport after login.
type Session struct {
	AccessToken  string
	RefreshToken string
	User         dto.UserResponse
}

type AuthService struct {
	users  UserStore
	ledger TokenLedger
	codec  *token.Codec
	cost   int

	dummyOnce sync.Once
	dummyHash []byte
}

type Option func(*AuthService)

// WithPasswordCost overrides the bcrypt cost.
func WithPasswordCost(cost int) Option {
	return func(s *AuthService) { s.cost = cost }
}

func NewAuthService(users UserStore, ledger TokenLedger, codec *token.Codec, opts ...Option) *AuthService {
	s := &AuthService{
		users:  users,
		ledger: ledger,
		codec:  codec,
		cost:   bcrypt.DefaultCost,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *AuthService) AccessTTL() time.Duration  { return s.codec.AccessTTL() }
func (s *AuthService) RefreshTTL() time.Duration { return s.codec.RefreshTTL() }

// Register creates a user. The existence pre-check gives a fast answer; the
// store's unique index decides concurrent registrations.
func (s *AuthService) Register(ctx context.Context, req *dto.RegisterRequest) (*dto.UserResponse, error) {
	username := strings.TrimSpace(req.Username)
	email := normalizeEmail(req.Email)
	role := req.Role
	if role == "" {
		role = models.RoleStudent
	}

	if username == "" || email == "" || req.Password == "" {
		return nil, invalid("username, email and password are required")
	}
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		return nil, invalid("invalid email address")
	}
	if len(req.Password) < minPasswordLength || len(req.Password) > maxPasswordLength {
		return nil, invalid("password must be between 8 and 72 characters")
	}
	if !models.ValidRole(role) {
		return nil, invalid("role must be student or teacher")
	}

	if _, err := s.users.FindByEmail(ctx, email); err == nil {
		return nil, ErrEmailTaken
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, internal("registration failed", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.cost)
	if err != nil {
		return nil, internal("registration failed", err)
	}

	user := models.User{
		Username: username,
		Email:    email,
		Password: string(hash),
		Role:     role,
	}
	if err := s.users.Create(ctx, &user); err != nil {
		if errors.Is(err, store.ErrDuplicateEmail) {
			return nil, ErrEmailTaken
		}
		return nil, internal("registration failed", err)
	}

	slog.Info("user registered", "user_id", user.ID, "role", user.Role)
	resp := toUserResponse(&user)
	return &resp, nil
}

// Login checks credentials and opens a new session. Unknown email and wrong
// password yield the same error. Each login gets its own ledger entry.
func (s *AuthService) Login(ctx context.Context, req *dto.LoginRequest) (*Session, error) {
	user, err := s.users.FindByEmail(ctx, normalizeEmail(req.Email))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// keep response time close to the wrong-password path
			_ = bcrypt.CompareHashAndPassword(s.fallbackHash(), []byte(req.Password))
			return nil, ErrInvalidCredentials
		}
		return nil, internal("login failed", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	subject := token.Subject{ID: user.ID, Role: user.Role}
	access, err := s.codec.SignAccess(subject)
	if err != nil {
		return nil, internal("login failed", err)
	}
	refresh, err := s.codec.SignRefresh(subject)
	if err != nil {
		return nil, internal("login failed", err)
	}

	if err := s.ledger.Store(ctx, refresh, user.ID); err != nil {
		return nil, internal("login failed", err)
	}

	slog.Info("user logged in", "user_id", user.ID)
	return &Session{
		AccessToken:  access,
		RefreshToken: refresh,
		User:         toUserResponse(user),
	}, nil
}

// Refresh exchanges a live refresh token for a new access token. The refresh
// token itself is not rotated. A token that no longer verifies is removed from
// the ledger; a verified token missing from the ledger has been revoked.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (string, error) {
	if refreshToken == "" {
		return "", ErrTokenRequired
	}

	claims, err := s.codec.Verify(refreshToken, token.Refresh)
	if err != nil {
		if _, delErr := s.ledger.Delete(ctx, refreshToken); delErr != nil {
			slog.Error("failed to drop dead refresh token", "action", "refresh", "error", delErr)
		}
		slog.Warn("refresh token rejected", "action", "refresh", "error", err)
		return "", ErrInvalidRefreshToken
	}

	if _, err := s.ledger.Find(ctx, refreshToken); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			slog.Warn("refresh token not in ledger", "action", "refresh", "user_id", claims.UserID)
			return "", ErrInvalidRefreshToken
		}
		return "", internal("refresh failed", err)
	}

	access, err := s.codec.SignAccess(claims.Identity())
	if err != nil {
		return "", internal("refresh failed", err)
	}
	return access, nil
}

// Logout revokes one session. Revoking an absent session is ErrSessionNotFound.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return ErrTokenRequired
	}

	n, err := s.ledger.Delete(ctx, refreshToken)
	if err != nil {
		return internal("logout failed", err)
	}
	if n == 0 {
		return ErrSessionNotFound
	}
	return nil
}

func (s *AuthService) Profile(ctx context.Context, userID uint) (*dto.UserResponse, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, internal("failed to load profile", err)
	}
	resp := toUserResponse(user)
	return &resp, nil
}

func (s *AuthService) fallbackHash() []byte {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = bcrypt.GenerateFromPassword([]byte("fallback-password"), s.cost)
	})
	return s.dummyHash
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func toUserResponse(user *models.User) dto.UserResponse {
	return dto.UserResponse{
		ID:       user.ID,
		Username: user.Username,
		Email:    user.Email,
		Role:     user.Role,
	}
}
