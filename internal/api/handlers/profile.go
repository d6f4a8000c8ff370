package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/codequest-dev/codequest/internal/api/middleware"
	"github.com/codequest-dev/codequest/internal/domain"
)

// StatsReader summarizes a user's puzzle progress.
type StatsReader interface {
	Stats(ctx context.Context, userID uuid.UUID) (*domain.ProgressStats, error)
}

// ProfileStore is the user-facing slice of the user store.
type ProfileStore interface {
	UpdateProfile(ctx context.Context, id uuid.UUID, email, mobile string) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
}

// MessageReader is the user-facing slice of the admin message store.
type MessageReader interface {
	ListForUser(ctx context.Context, userID uuid.UUID) ([]*domain.AdminMessage, error)
	MarkRead(ctx context.Context, id, userID uuid.UUID) error
	UnreadCount(ctx context.Context, userID uuid.UUID) (int, error)
}

// ProfileHandler serves the caller's profile, stats and inbox.
type ProfileHandler struct {
	users       ProfileStore
	stats       StatsReader
	progress    ProgressReader
	leaderboard LeaderboardService
	messages    MessageReader
}

func NewProfileHandler(users ProfileStore, stats StatsReader, progress ProgressReader, leaderboard LeaderboardService, messages MessageReader) *ProfileHandler {
	return &ProfileHandler{users: users, stats: stats, progress: progress, leaderboard: leaderboard, messages: messages}
}

// ProfileResponse is the caller's own profile with derived figures.
type ProfileResponse struct {
	User          UserResponse `json:"user"`
	Solved        int          `json:"solved"`
	TotalPuzzles  int          `json:"total_puzzles"`
	Rank          int          `json:"rank"`
	XPToNextLevel int          `json:"xp_to_next_level"`
	UnreadCount   int          `json:"unread_count"`
}

// Get returns the caller's profile.
func (h *ProfileHandler) Get(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		Unauthorized(w, r, "not authenticated")
		return
	}

	stats, err := h.stats.Stats(r.Context(), user.ID)
	if err != nil {
		WriteDomainError(w, r, err)
		return
	}
	ranked, err := h.leaderboard.RankFor(r.Context(), user.ID)
	if err != nil {
		WriteDomainError(w, r, err)
		return
	}
	unread, err := h.messages.UnreadCount(r.Context(), user.ID)
	if err != nil {
		WriteDomainError(w, r, err)
		return
	}

	WriteJSON(w, http.StatusOK, ProfileResponse{
		User:          toUserResponse(user),
		Solved:        stats.Solved,
		TotalPuzzles:  stats.Total,
		Rank:          ranked.Rank,
		XPToNextLevel: domain.XPPerLevel - user.CurrentXP,
		UnreadCount:   unread,
	})
}

// UpdateProfileRequest is the request body for a profile update.
type UpdateProfileRequest struct {
	Email  string `json:"email"`
	Mobile string `json:"mobile"`
}

// Update changes the caller's contact details.
func (h *ProfileHandler) Update(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		Unauthorized(w, r, "not authenticated")
		return
	}

	var req UpdateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, r, "invalid request body")
		return
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" {
		email = user.Email
	} else if !strings.Contains(email, "@") {
		BadRequest(w, r, "invalid email address")
		return
	}
	mobile := strings.TrimSpace(req.Mobile)
	if mobile == "" {
		mobile = user.Mobile
	}

	if err := h.users.UpdateProfile(r.Context(), user.ID, email, mobile); err != nil {
		WriteDomainError(w, r, err)
		return
	}

	updated, err := h.users.GetByID(r.Context(), user.ID)
	if err != nil {
		WriteDomainError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, toUserResponse(updated))
}

// ProgressEntry is one per-puzzle progress record in the caller's list.
type ProgressEntry struct {
	PuzzleID string `json:"puzzle_id"`
	ProgressResponse
}

// Progress returns every progress record the caller has.
func (h *ProfileHandler) Progress(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		Unauthorized(w, r, "not authenticated")
		return
	}

	records, err := h.progress.ListByUser(r.Context(), user.ID)
	if err != nil {
		WriteDomainError(w, r, err)
		return
	}

	out := make([]ProgressEntry, 0, len(records))
	for _, rec := range records {
		out = append(out, ProgressEntry{
			PuzzleID:         rec.PuzzleID.String(),
			ProgressResponse: *toProgressResponse(rec),
		})
	}
	WriteJSON(w, http.StatusOK, map[string]any{"progress": out})
}

// MessageResponse is one inbox entry.
type MessageResponse struct {
	ID      string               `json:"id"`
	Message string               `json:"message"`
	Status  domain.MessageStatus `json:"status"`
	SentAt  time.Time            `json:"sent_at"`
}

// Messages returns the caller's inbox, newest first.
func (h *ProfileHandler) Messages(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		Unauthorized(w, r, "not authenticated")
		return
	}

	messages, err := h.messages.ListForUser(r.Context(), user.ID)
	if err != nil {
		WriteDomainError(w, r, err)
		return
	}

	out := make([]MessageResponse, 0, len(messages))
	for _, m := range messages {
		out = append(out, MessageResponse{
			ID:      m.ID.String(),
			Message: m.Message,
			Status:  m.Status,
			SentAt:  m.SentAt,
		})
	}
	WriteJSON(w, http.StatusOK, map[string]any{"messages": out})
}

// MarkMessageRead marks one of the caller's messages as read.
func (h *ProfileHandler) MarkMessageRead(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		Unauthorized(w, r, "not authenticated")
		return
	}

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, r, "invalid message id")
		return
	}

	if err := h.messages.MarkRead(r.Context(), id, user.ID); err != nil {
		WriteDomainError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "read"})
}
