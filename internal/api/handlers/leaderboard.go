package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/codequest-dev/codequest/internal/api/middleware"
	"github.com/codequest-dev/codequest/internal/domain"
)

// LeaderboardService ranks users by lifetime XP.
type LeaderboardService interface {
	Top(ctx context.Context, limit int) ([]*domain.UserWithStats, error)
	RankFor(ctx context.Context, userID uuid.UUID) (*domain.UserWithStats, error)
}

// LeaderboardHandler serves the XP leaderboard.
type LeaderboardHandler struct {
	leaderboard LeaderboardService
}

func NewLeaderboardHandler(l LeaderboardService) *LeaderboardHandler {
	return &LeaderboardHandler{leaderboard: l}
}

// LeaderboardEntry is one ranked row. Ties share a rank.
type LeaderboardEntry struct {
	Rank        int    `json:"rank"`
	Username    string `json:"username"`
	Level       int    `json:"level"`
	TotalXP     int    `json:"total_xp"`
	Streak      int    `json:"streak"`
	SolvedCount int    `json:"solved_count"`
	IsMe        bool   `json:"is_me,omitempty"`
}

func toLeaderboardEntry(u *domain.UserWithStats, callerID uuid.UUID) LeaderboardEntry {
	return LeaderboardEntry{
		Rank:        u.Rank,
		Username:    u.Username,
		Level:       u.Level,
		TotalXP:     u.TotalXP,
		Streak:      u.Streak,
		SolvedCount: u.SolvedCount,
		IsMe:        u.ID == callerID,
	}
}

// Get returns the top of the leaderboard. Authenticated callers also
// get their own rank, even when they fall outside the returned page.
func (h *LeaderboardHandler) Get(w http.ResponseWriter, r *http.Request) {
	user, authed := middleware.GetUser(r.Context())

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			BadRequest(w, r, "invalid limit")
			return
		}
		limit = n
	}

	top, err := h.leaderboard.Top(r.Context(), limit)
	if err != nil {
		WriteDomainError(w, r, err)
		return
	}

	callerID := uuid.Nil
	if authed {
		callerID = user.ID
	}
	entries := make([]LeaderboardEntry, 0, len(top))
	for _, u := range top {
		entries = append(entries, toLeaderboardEntry(u, callerID))
	}

	var mine *LeaderboardEntry
	if authed {
		me, err := h.leaderboard.RankFor(r.Context(), user.ID)
		if err != nil {
			WriteDomainError(w, r, err)
			return
		}
		entry := toLeaderboardEntry(me, user.ID)
		mine = &entry
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"entries": entries,
		"me":      mine,
	})
}
