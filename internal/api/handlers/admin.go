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

// PuzzleAdmin is the write side of the puzzle content store.
type PuzzleAdmin interface {
	CreateCategory(ctx context.Context, c *domain.Category) error
	UpdateCategory(ctx context.Context, c *domain.Category) error
	DeleteCategory(ctx context.Context, id uuid.UUID) error
	Create(ctx context.Context, p *domain.Puzzle) error
	Update(ctx context.Context, p *domain.Puzzle) error
	Delete(ctx context.Context, id uuid.UUID) error
	Get(ctx context.Context, id uuid.UUID) (*domain.Puzzle, error)
	List(ctx context.Context, categoryID *uuid.UUID) ([]*domain.Puzzle, error)
	Count(ctx context.Context) (int, error)
}

// AchievementAdmin is the write side of the achievement store.
type AchievementAdmin interface {
	Create(ctx context.Context, a *domain.Achievement) error
	Update(ctx context.Context, a *domain.Achievement) error
	Delete(ctx context.Context, id uuid.UUID) error
	Get(ctx context.Context, id uuid.UUID) (*domain.Achievement, error)
	Unlock(ctx context.Context, userID, achievementID uuid.UUID) (bool, error)
}

// UserAdmin is the admin slice of the user store.
type UserAdmin interface {
	List(ctx context.Context) ([]*domain.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	AwardXP(ctx context.Context, id uuid.UUID, amount int) (*domain.User, error)
	SetAdmin(ctx context.Context, id uuid.UUID, isAdmin bool) error
	Count(ctx context.Context) (int, error)
	CountActiveSince(ctx context.Context, since time.Time) (int, error)
}

// ProgressAdmin summarizes submission activity for the stats endpoint.
type ProgressAdmin interface {
	CountCompletionsSince(ctx context.Context, since time.Time) (int, error)
}

// MessageAdmin creates and reviews admin messages.
type MessageAdmin interface {
	Create(ctx context.Context, m *domain.AdminMessage) error
	ListRecent(ctx context.Context, limit int) ([]*domain.AdminMessage, error)
}

// AdminHandler serves content management and user administration.
type AdminHandler struct {
	puzzles      PuzzleAdmin
	achievements AchievementAdmin
	users        UserAdmin
	progress     ProgressAdmin
	messages     MessageAdmin
}

func NewAdminHandler(puzzles PuzzleAdmin, achievements AchievementAdmin, users UserAdmin, progress ProgressAdmin, messages MessageAdmin) *AdminHandler {
	return &AdminHandler{puzzles: puzzles, achievements: achievements, users: users, progress: progress, messages: messages}
}

// CategoryRequest is the admin create/update body for a category.
type CategoryRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
	Color       string `json:"color"`
	SortOrder   int    `json:"sort_order"`
}

// CreateCategory adds a new puzzle category.
func (h *AdminHandler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var req CategoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, r, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		BadRequest(w, r, "name is required")
		return
	}

	category := &domain.Category{
		ID:          uuid.New(),
		Name:        req.Name,
		Description: req.Description,
		Icon:        req.Icon,
		Color:       req.Color,
		SortOrder:   req.SortOrder,
	}
	if err := h.puzzles.CreateCategory(r.Context(), category); err != nil {
		WriteDomainError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusCreated, toCategoryResponse(category))
}

// UpdateCategory modifies an existing category.
func (h *AdminHandler) UpdateCategory(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, r, "invalid category id")
		return
	}

	var req CategoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, r, "invalid request body")
		return
	}

	category := &domain.Category{
		ID:          id,
		Name:        req.Name,
		Description: req.Description,
		Icon:        req.Icon,
		Color:       req.Color,
		SortOrder:   req.SortOrder,
	}
	if err := h.puzzles.UpdateCategory(r.Context(), category); err != nil {
		WriteDomainError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, toCategoryResponse(category))
}

// DeleteCategory removes a category.
func (h *AdminHandler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, r, "invalid category id")
		return
	}
	if err := h.puzzles.DeleteCategory(r.Context(), id); err != nil {
		WriteDomainError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// PuzzleRequest is the admin create/update body for a puzzle. It carries
// the full content, hidden cases and solutions included.
type PuzzleRequest struct {
	Title            string            `json:"title"`
	Description      string            `json:"description"`
	Difficulty       domain.Difficulty `json:"difficulty"`
	CategoryID       string            `json:"category_id"`
	Points           int               `json:"points"`
	Stars            int               `json:"stars"`
	ProblemStatement string            `json:"problem_statement"`
	Examples         []domain.Example  `json:"examples"`
	Constraints      string            `json:"constraints"`
	Hints            []string          `json:"hints"`
	StarterCode      map[string]string `json:"starter_code"`
	Solution         map[string]string `json:"solution"`
	TestCases        []domain.TestCase `json:"test_cases"`
	SortOrder        int               `json:"sort_order"`
	UnlockLevel      int               `json:"unlock_level"`
}

func (req *PuzzleRequest) toPuzzle(id uuid.UUID) (*domain.Puzzle, string) {
	if strings.TrimSpace(req.Title) == "" {
		return nil, "title is required"
	}
	if !req.Difficulty.IsValid() {
		return nil, "difficulty must be easy, medium or hard"
	}
	categoryID, err := uuid.Parse(req.CategoryID)
	if err != nil {
		return nil, "invalid category id"
	}
	if len(req.TestCases) == 0 {
		return nil, "at least one test case is required"
	}
	if req.Points <= 0 {
		return nil, "points must be positive"
	}

	return &domain.Puzzle{
		ID:               id,
		Title:            req.Title,
		Description:      req.Description,
		Difficulty:       req.Difficulty,
		CategoryID:       categoryID,
		Points:           req.Points,
		Stars:            req.Stars,
		ProblemStatement: req.ProblemStatement,
		Examples:         req.Examples,
		Constraints:      req.Constraints,
		Hints:            req.Hints,
		StarterCode:      req.StarterCode,
		Solution:         req.Solution,
		TestCases:        req.TestCases,
		SortOrder:        req.SortOrder,
		UnlockLevel:      req.UnlockLevel,
	}, ""
}

// CreatePuzzle adds a new puzzle.
func (h *AdminHandler) CreatePuzzle(w http.ResponseWriter, r *http.Request) {
	var req PuzzleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, r, "invalid request body")
		return
	}

	puzzle, msg := req.toPuzzle(uuid.New())
	if msg != "" {
		BadRequest(w, r, msg)
		return
	}
	if err := h.puzzles.Create(r.Context(), puzzle); err != nil {
		WriteDomainError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusCreated, map[string]string{"id": puzzle.ID.String()})
}

// UpdatePuzzle replaces a puzzle's content.
func (h *AdminHandler) UpdatePuzzle(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, r, "invalid puzzle id")
		return
	}

	var req PuzzleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, r, "invalid request body")
		return
	}

	puzzle, msg := req.toPuzzle(id)
	if msg != "" {
		BadRequest(w, r, msg)
		return
	}
	if err := h.puzzles.Update(r.Context(), puzzle); err != nil {
		WriteDomainError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"id": puzzle.ID.String()})
}

// DeletePuzzle removes a puzzle.
func (h *AdminHandler) DeletePuzzle(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, r, "invalid puzzle id")
		return
	}
	if err := h.puzzles.Delete(r.Context(), id); err != nil {
		WriteDomainError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// GetPuzzle returns a puzzle with nothing stripped, for editing.
// ListPuzzles returns every puzzle with full content, hidden test
// cases and reference solutions included. Admin eyes only.
func (h *AdminHandler) ListPuzzles(w http.ResponseWriter, r *http.Request) {
	var categoryID *uuid.UUID
	if raw := r.URL.Query().Get("category"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			BadRequest(w, r, "invalid category id")
			return
		}
		categoryID = &id
	}
	puzzles, err := h.puzzles.List(r.Context(), categoryID)
	if err != nil {
		WriteDomainError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"puzzles": puzzles})
}

func (h *AdminHandler) GetPuzzle(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, r, "invalid puzzle id")
		return
	}
	puzzle, err := h.puzzles.Get(r.Context(), id)
	if err != nil {
		WriteDomainError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, puzzle)
}

// AchievementRequest is the admin create/update body for an achievement.
type AchievementRequest struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Icon        string                 `json:"icon"`
	Type        domain.AchievementType `json:"type"`
	Condition   domain.Condition       `json:"condition"`
	XPReward    int                    `json:"xp_reward"`
	SortOrder   int                    `json:"sort_order"`
}

func (req *AchievementRequest) toAchievement(id uuid.UUID) (*domain.Achievement, string) {
	if strings.TrimSpace(req.Name) == "" {
		return nil, "name is required"
	}
	switch req.Type {
	case domain.AchievementPuzzle, domain.AchievementStreak, domain.AchievementMilestone, domain.AchievementSpecial:
	default:
		return nil, "unknown achievement type"
	}
	if req.Type != domain.AchievementSpecial && req.Condition.Metric == "" {
		return nil, "condition metric is required"
	}

	return &domain.Achievement{
		ID:          id,
		Name:        req.Name,
		Description: req.Description,
		Icon:        req.Icon,
		Type:        req.Type,
		Condition:   req.Condition,
		XPReward:    req.XPReward,
		SortOrder:   req.SortOrder,
	}, ""
}

// CreateAchievement adds a new achievement.
func (h *AdminHandler) CreateAchievement(w http.ResponseWriter, r *http.Request) {
	var req AchievementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, r, "invalid request body")
		return
	}

	achievement, msg := req.toAchievement(uuid.New())
	if msg != "" {
		BadRequest(w, r, msg)
		return
	}
	if err := h.achievements.Create(r.Context(), achievement); err != nil {
		WriteDomainError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusCreated, toAchievementResponse(achievement))
}

// UpdateAchievement modifies an achievement.
func (h *AdminHandler) UpdateAchievement(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, r, "invalid achievement id")
		return
	}

	var req AchievementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, r, "invalid request body")
		return
	}

	achievement, msg := req.toAchievement(id)
	if msg != "" {
		BadRequest(w, r, msg)
		return
	}
	if err := h.achievements.Update(r.Context(), achievement); err != nil {
		WriteDomainError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, toAchievementResponse(achievement))
}

// DeleteAchievement removes an achievement.
func (h *AdminHandler) DeleteAchievement(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, r, "invalid achievement id")
		return
	}
	if err := h.achievements.Delete(r.Context(), id); err != nil {
		WriteDomainError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// GrantAchievement manually unlocks an achievement for a user. This is
// how special-typed achievements are awarded.
func (h *AdminHandler) GrantAchievement(w http.ResponseWriter, r *http.Request) {
	achievementID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, r, "invalid achievement id")
		return
	}
	userID, err := uuid.Parse(r.PathValue("userID"))
	if err != nil {
		BadRequest(w, r, "invalid user id")
		return
	}

	achievement, err := h.achievements.Get(r.Context(), achievementID)
	if err != nil {
		WriteDomainError(w, r, err)
		return
	}
	if _, err := h.users.GetByID(r.Context(), userID); err != nil {
		WriteDomainError(w, r, err)
		return
	}

	inserted, err := h.achievements.Unlock(r.Context(), userID, achievementID)
	if err != nil {
		WriteDomainError(w, r, err)
		return
	}
	if !inserted {
		Conflict(w, r, "achievement already unlocked")
		return
	}

	if achievement.XPReward > 0 {
		if _, err := h.users.AwardXP(r.Context(), userID, achievement.XPReward); err != nil {
			WriteDomainError(w, r, err)
			return
		}
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "granted"})
}

// ListUsers returns all registered users.
func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.List(r.Context())
	if err != nil {
		WriteDomainError(w, r, err)
		return
	}

	out := make([]UserResponse, 0, len(users))
	for _, u := range users {
		out = append(out, toUserResponse(u))
	}
	WriteJSON(w, http.StatusOK, map[string]any{"users": out})
}

// PromoteUser grants admin rights to a user.
func (h *AdminHandler) PromoteUser(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, r, "invalid user id")
		return
	}
	if err := h.users.SetAdmin(r.Context(), id, true); err != nil {
		WriteDomainError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "promoted"})
}

// StatsResponse is a snapshot of platform activity.
type StatsResponse struct {
	Users          int `json:"users"`
	Puzzles        int `json:"puzzles"`
	SolutionsToday int `json:"solutions_today"`
	ActiveThisWeek int `json:"active_this_week"`
}

// Stats returns platform-wide counters for the admin dashboard.
func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	now := time.Now()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	users, err := h.users.Count(ctx)
	if err != nil {
		WriteDomainError(w, r, err)
		return
	}
	puzzles, err := h.puzzles.Count(ctx)
	if err != nil {
		WriteDomainError(w, r, err)
		return
	}
	solutionsToday, err := h.progress.CountCompletionsSince(ctx, midnight)
	if err != nil {
		WriteDomainError(w, r, err)
		return
	}
	activeWeek, err := h.users.CountActiveSince(ctx, now.AddDate(0, 0, -7))
	if err != nil {
		WriteDomainError(w, r, err)
		return
	}

	WriteJSON(w, http.StatusOK, StatsResponse{
		Users:          users,
		Puzzles:        puzzles,
		SolutionsToday: solutionsToday,
		ActiveThisWeek: activeWeek,
	})
}

// ListMessages returns recently sent admin messages.
func (h *AdminHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
	messages, err := h.messages.ListRecent(r.Context(), 100)
	if err != nil {
		WriteDomainError(w, r, err)
		return
	}

	type sentMessage struct {
		ID       string               `json:"id"`
		ToUserID string               `json:"to_user_id"`
		Message  string               `json:"message"`
		Status   domain.MessageStatus `json:"status"`
		SentAt   time.Time            `json:"sent_at"`
	}
	out := make([]sentMessage, 0, len(messages))
	for _, m := range messages {
		out = append(out, sentMessage{
			ID:       m.ID.String(),
			ToUserID: m.ToUserID.String(),
			Message:  m.Message,
			Status:   m.Status,
			SentAt:   m.SentAt,
		})
	}
	WriteJSON(w, http.StatusOK, map[string]any{"messages": out})
}

// SendMessageRequest is the request body for an admin message.
type SendMessageRequest struct {
	ToUserID string `json:"to_user_id"`
	Message  string `json:"message"`
}

// SendMessage delivers a one-way message to a user's inbox.
func (h *AdminHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	admin, ok := middleware.GetUser(r.Context())
	if !ok {
		Unauthorized(w, r, "not authenticated")
		return
	}

	var req SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, r, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		BadRequest(w, r, "message is required")
		return
	}
	toUserID, err := uuid.Parse(req.ToUserID)
	if err != nil {
		BadRequest(w, r, "invalid user id")
		return
	}

	if _, err := h.users.GetByID(r.Context(), toUserID); err != nil {
		WriteDomainError(w, r, err)
		return
	}

	message := &domain.AdminMessage{
		ID:          uuid.New(),
		FromAdminID: admin.ID,
		ToUserID:    toUserID,
		Message:     req.Message,
		Status:      domain.MessageSent,
		SentAt:      time.Now(),
	}
	if err := h.messages.Create(r.Context(), message); err != nil {
		WriteDomainError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusCreated, map[string]string{"id": message.ID.String()})
}
