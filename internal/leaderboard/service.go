package leaderboard

import (
	"context"

	"github.com/google/uuid"

	"github.com/codequest-dev/codequest/internal/domain"
)

// DefaultLimit is how many entries the board shows when unspecified.
const DefaultLimit = 50

// MaxLimit caps how many entries one request may ask for.
const MaxLimit = 100

// Store computes rankings. Both queries must come from the same ranking,
// so a user's rank on their profile always agrees with the board.
type Store interface {
	Top(ctx context.Context, limit int) ([]*domain.UserWithStats, error)
	RankFor(ctx context.Context, userID uuid.UUID) (*domain.UserWithStats, error)
}

// Service serves the XP leaderboard.
type Service struct {
	store Store
}

// NewService creates a leaderboard service.
func NewService(store Store) *Service {
	return &Service{store: store}
}

// Top returns the highest-ranked users, clamping the requested size.
func (s *Service) Top(ctx context.Context, limit int) ([]*domain.UserWithStats, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	return s.store.Top(ctx, limit)
}

// RankFor returns one user's entry, wherever they place.
func (s *Service) RankFor(ctx context.Context, userID uuid.UUID) (*domain.UserWithStats, error) {
	return s.store.RankFor(ctx, userID)
}
