package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/codequest-dev/codequest/internal/domain"
)

// Repository defines the interface for auth data access.
type Repository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	UpdatePassword(ctx context.Context, id uuid.UUID, hash string) error
	UpdateStreak(ctx context.Context, id uuid.UUID, streak int, lastActive time.Time) error

	CreateToken(ctx context.Context, token *domain.AuthToken) error
	GetToken(ctx context.Context, token string) (*domain.AuthToken, error)
	DeleteToken(ctx context.Context, token string) error
	DeleteExpiredTokens(ctx context.Context) (int64, error)
}

// Service handles registration, login, and token validation.
type Service struct {
	repo       Repository
	tokenTTL   time.Duration
	bcryptCost int
}

// NewService creates a new auth service.
func NewService(repo Repository, tokenTTL time.Duration, bcryptCost int) *Service {
	if bcryptCost == 0 {
		bcryptCost = bcrypt.DefaultCost
	}
	return &Service{
		repo:       repo,
		tokenTTL:   tokenTTL,
		bcryptCost: bcryptCost,
	}
}

// RegisterRequest contains registration data.
type RegisterRequest struct {
	Username string
	Email    string
	Mobile   string
	Password string
}

// Validate checks the request fields before any storage work happens.
func (r *RegisterRequest) Validate() error {
	if len(strings.TrimSpace(r.Username)) < 3 {
		return fmt.Errorf("%w: username must be at least 3 characters", domain.ErrInvalidInput)
	}
	if !strings.Contains(r.Email, "@") {
		return fmt.Errorf("%w: invalid email address", domain.ErrInvalidInput)
	}
	if len(r.Password) < 8 {
		return fmt.Errorf("%w: password must be at least 8 characters", domain.ErrInvalidInput)
	}
	return nil
}

// Register creates a new user account. New accounts start at level 1 with
// zero XP and no streak.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*domain.User, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &domain.User{
		ID:           uuid.New(),
		Username:     strings.TrimSpace(req.Username),
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		Mobile:       strings.TrimSpace(req.Mobile),
		PasswordHash: string(hashed),
		Level:        1,
		CreatedAt:    time.Now(),
	}

	if err := s.repo.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// LoginRequest contains login credentials. Identifier may be a username or
// an email address.
type LoginRequest struct {
	Identifier string
	Password   string
}

// LoginResponse contains the authenticated user and their bearer token.
type LoginResponse struct {
	User      *domain.User
	Token     string
	ExpiresAt time.Time
}

// Login authenticates a user and issues an opaque bearer token. Unknown
// identifier and wrong password are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	user, err := s.lookup(ctx, req.Identifier)
	if err != nil {
		return nil, domain.ErrInvalidPassword
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, domain.ErrInvalidPassword
	}

	token, err := generateToken(32)
	if err != nil {
		return nil, fmt.Errorf("generate token: %w", err)
	}

	at := &domain.AuthToken{
		ID:        uuid.New(),
		UserID:    user.ID,
		Token:     token,
		ExpiresAt: time.Now().Add(s.tokenTTL),
		CreatedAt: time.Now(),
	}
	if err := s.repo.CreateToken(ctx, at); err != nil {
		return nil, err
	}

	// Logging in counts as activity: the streak follows the same daily
	// rule as solving, and last_active feeds the activity stats.
	now := time.Now()
	streak := domain.NextStreak(user.Streak, user.LastActive, now)
	if err := s.repo.UpdateStreak(ctx, user.ID, streak, now); err != nil {
		return nil, fmt.Errorf("update streak: %w", err)
	}
	user.Streak = streak
	user.LastActive = &now

	return &LoginResponse{User: user, Token: token, ExpiresAt: at.ExpiresAt}, nil
}

// Logout revokes a bearer token.
func (s *Service) Logout(ctx context.Context, token string) error {
	return s.repo.DeleteToken(ctx, token)
}

// Authenticate resolves a bearer token to its user. Expired tokens are
// deleted on sight.
func (s *Service) Authenticate(ctx context.Context, token string) (*domain.User, error) {
	at, err := s.repo.GetToken(ctx, token)
	if err != nil {
		return nil, domain.ErrUnauthorized
	}

	if at.IsExpired() {
		_ = s.repo.DeleteToken(ctx, token)
		return nil, domain.ErrTokenExpired
	}

	user, err := s.repo.GetByID(ctx, at.UserID)
	if err != nil {
		return nil, err
	}
	return user, nil
}

// ChangePassword verifies the current password and replaces it.
func (s *Service) ChangePassword(ctx context.Context, userID uuid.UUID, current, next string) error {
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(current)); err != nil {
		return domain.ErrInvalidPassword
	}

	if len(next) < 8 {
		return fmt.Errorf("%w: password must be at least 8 characters", domain.ErrInvalidInput)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(next), s.bcryptCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	return s.repo.UpdatePassword(ctx, userID, string(hashed))
}

// CleanupExpiredTokens purges expired tokens, returning how many went.
func (s *Service) CleanupExpiredTokens(ctx context.Context) (int64, error) {
	return s.repo.DeleteExpiredTokens(ctx)
}

func (s *Service) lookup(ctx context.Context, identifier string) (*domain.User, error) {
	identifier = strings.TrimSpace(identifier)
	if strings.Contains(identifier, "@") {
		user, err := s.repo.GetByEmail(ctx, strings.ToLower(identifier))
		if err == nil {
			return user, nil
		}
		if !errors.Is(err, domain.ErrUserNotFound) {
			return nil, err
		}
	}
	return s.repo.GetByUsername(ctx, identifier)
}

// generateToken creates a cryptographically secure random token.
func generateToken(length int) (string, error) {
	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(bytes), nil
}
