package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/codequest-dev/codequest/internal/api/middleware"
	"github.com/codequest-dev/codequest/internal/domain"
)

// AchievementCatalog is the read side of the achievement store.
type AchievementCatalog interface {
	ListAll(ctx context.Context) ([]*domain.Achievement, error)
	ListUnlocked(ctx context.Context, userID uuid.UUID) ([]*domain.UserAchievement, error)
}

// AchievementHandler serves the achievement catalog and unlock state.
type AchievementHandler struct {
	achievements AchievementCatalog
}

func NewAchievementHandler(achievements AchievementCatalog) *AchievementHandler {
	return &AchievementHandler{achievements: achievements}
}

// AchievementResponse is the public representation of an achievement.
// The unlock condition stays server-side.
type AchievementResponse struct {
	ID          string                 `json:"id"`
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Icon        string                 `json:"icon"`
	Type        domain.AchievementType `json:"type"`
	XPReward    int                    `json:"xp_reward"`
	SortOrder   int                    `json:"sort_order"`
	UnlockedAt  *time.Time             `json:"unlocked_at,omitempty"`
}

func toAchievementResponse(a *domain.Achievement) AchievementResponse {
	return AchievementResponse{
		ID:          a.ID.String(),
		Name:        a.Name,
		Description: a.Description,
		Icon:        a.Icon,
		Type:        a.Type,
		XPReward:    a.XPReward,
		SortOrder:   a.SortOrder,
	}
}

// List returns every achievement. For authenticated callers the ones
// they have unlocked carry their unlock time.
func (h *AchievementHandler) List(w http.ResponseWriter, r *http.Request) {
	user, authed := middleware.GetUser(r.Context())

	all, err := h.achievements.ListAll(r.Context())
	if err != nil {
		WriteDomainError(w, r, err)
		return
	}

	unlockedAt := map[uuid.UUID]time.Time{}
	if authed {
		unlocked, err := h.achievements.ListUnlocked(r.Context(), user.ID)
		if err != nil {
			WriteDomainError(w, r, err)
			return
		}
		for _, ua := range unlocked {
			unlockedAt[ua.AchievementID] = ua.UnlockedAt
		}
	}

	out := make([]AchievementResponse, 0, len(all))
	for _, a := range all {
		resp := toAchievementResponse(a)
		if at, ok := unlockedAt[a.ID]; ok {
			resp.UnlockedAt = &at
		}
		out = append(out, resp)
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"achievements": out,
		"unlocked":     len(unlockedAt),
		"total":        len(all),
	})
}
