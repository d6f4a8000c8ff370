package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/codequest-dev/codequest/internal/api/middleware"
	"github.com/codequest-dev/codequest/internal/domain"
)

// PuzzleCatalog is the read side of the puzzle content store.
type PuzzleCatalog interface {
	ListCategories(ctx context.Context) ([]*domain.Category, error)
	GetCategory(ctx context.Context, id uuid.UUID) (*domain.Category, error)
	List(ctx context.Context, categoryID *uuid.UUID) ([]*domain.Puzzle, error)
	Get(ctx context.Context, id uuid.UUID) (*domain.Puzzle, error)
}

// ProgressReader looks up the caller's progress records.
type ProgressReader interface {
	Get(ctx context.Context, userID, puzzleID uuid.UUID) (*domain.UserProgress, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*domain.UserProgress, error)
}

// PuzzleHandler serves the puzzle catalog.
type PuzzleHandler struct {
	puzzles  PuzzleCatalog
	progress ProgressReader
}

func NewPuzzleHandler(puzzles PuzzleCatalog, progress ProgressReader) *PuzzleHandler {
	return &PuzzleHandler{puzzles: puzzles, progress: progress}
}

// CategoryResponse is the public representation of a category.
type CategoryResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
	Color       string `json:"color"`
	SortOrder   int    `json:"sort_order"`
}

// PuzzleSummary is a catalog listing entry. It carries no statement,
// test cases or solutions.
type PuzzleSummary struct {
	ID          string            `json:"id"`
	Title       string            `json:"title"`
	Description string            `json:"description"`
	Difficulty  domain.Difficulty `json:"difficulty"`
	CategoryID  string            `json:"category_id"`
	Points      int               `json:"points"`
	Stars       int               `json:"stars"`
	UnlockLevel int               `json:"unlock_level"`
	IsUnlocked  bool              `json:"is_unlocked"`
	Status      string            `json:"status,omitempty"`
	Attempts    int               `json:"attempts"`
}

// PuzzleDetail is the full puzzle view for solving. Hidden test cases
// and reference solutions are stripped before it leaves the server.
type PuzzleDetail struct {
	PuzzleSummary
	ProblemStatement string            `json:"problem_statement"`
	Examples         []domain.Example  `json:"examples"`
	Constraints      string            `json:"constraints"`
	HintCount        int               `json:"hint_count"`
	StarterCode      map[string]string `json:"starter_code"`
	VisibleTestCases []domain.TestCase `json:"visible_test_cases"`
	Progress         *ProgressResponse `json:"progress,omitempty"`
}

// ProgressResponse is the public representation of a progress record.
type ProgressResponse struct {
	Status        domain.ProgressStatus `json:"status"`
	BestSolution  string                `json:"best_solution,omitempty"`
	Language      string                `json:"language,omitempty"`
	HintsUsed     int                   `json:"hints_used"`
	Attempts      int                   `json:"attempts"`
	TimeSpentSecs int                   `json:"time_spent_secs"`
	CompletedAt   *time.Time            `json:"completed_at,omitempty"`
}

func toCategoryResponse(c *domain.Category) CategoryResponse {
	return CategoryResponse{
		ID:          c.ID.String(),
		Name:        c.Name,
		Description: c.Description,
		Icon:        c.Icon,
		Color:       c.Color,
		SortOrder:   c.SortOrder,
	}
}

func toProgressResponse(p *domain.UserProgress) *ProgressResponse {
	if p == nil {
		return nil
	}
	return &ProgressResponse{
		Status:        p.Status,
		BestSolution:  p.BestSolution,
		Language:      p.Language,
		HintsUsed:     p.HintsUsed,
		Attempts:      p.Attempts,
		TimeSpentSecs: p.TimeSpentSecs,
		CompletedAt:   p.CompletedAt,
	}
}

func toPuzzleSummary(p *domain.Puzzle, prog *domain.UserProgress, level int) PuzzleSummary {
	s := PuzzleSummary{
		ID:          p.ID.String(),
		Title:       p.Title,
		Description: p.Description,
		Difficulty:  p.Difficulty,
		CategoryID:  p.CategoryID.String(),
		Points:      p.Points,
		Stars:       p.Stars,
		UnlockLevel: p.UnlockLevel,
		IsUnlocked:  level >= p.UnlockLevel,
	}
	// Status stays empty without a progress record, so anonymous
	// listings carry no per-user state at all.
	if prog != nil {
		s.Status = string(prog.Status)
		s.Attempts = prog.Attempts
	}
	return s
}

// ListCategories returns all categories in display order.
func (h *PuzzleHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.puzzles.ListCategories(r.Context())
	if err != nil {
		WriteDomainError(w, r, err)
		return
	}

	out := make([]CategoryResponse, 0, len(categories))
	for _, c := range categories {
		out = append(out, toCategoryResponse(c))
	}
	WriteJSON(w, http.StatusOK, map[string]any{"categories": out})
}

// List returns the puzzle catalog, optionally filtered by category.
// Authenticated callers get their progress and unlock state woven in;
// anonymous callers see the catalog as a fresh level-1 user would.
func (h *PuzzleHandler) List(w http.ResponseWriter, r *http.Request) {
	user, authed := middleware.GetUser(r.Context())

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

	level := 1
	byPuzzle := map[uuid.UUID]*domain.UserProgress{}
	if authed {
		level = user.Level
		records, err := h.progress.ListByUser(r.Context(), user.ID)
		if err != nil {
			WriteDomainError(w, r, err)
			return
		}
		for _, rec := range records {
			byPuzzle[rec.PuzzleID] = rec
		}
	}

	out := make([]PuzzleSummary, 0, len(puzzles))
	for _, p := range puzzles {
		out = append(out, toPuzzleSummary(p, byPuzzle[p.ID], level))
	}
	WriteJSON(w, http.StatusOK, map[string]any{"puzzles": out})
}

// Get returns one puzzle ready for solving. Hidden test case data and
// reference solutions never appear in the response.
func (h *PuzzleHandler) Get(w http.ResponseWriter, r *http.Request) {
	user, authed := middleware.GetUser(r.Context())

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

	level := 1
	var prog *domain.UserProgress
	if authed {
		level = user.Level
		prog, err = h.progress.Get(r.Context(), user.ID, puzzle.ID)
		if err != nil && !errors.Is(err, domain.ErrProgressNotFound) {
			WriteDomainError(w, r, err)
			return
		}
	}

	detail := PuzzleDetail{
		PuzzleSummary:    toPuzzleSummary(puzzle, prog, level),
		ProblemStatement: puzzle.ProblemStatement,
		Examples:         puzzle.Examples,
		Constraints:      puzzle.Constraints,
		HintCount:        len(puzzle.Hints),
		StarterCode:      puzzle.StarterCode,
		VisibleTestCases: puzzle.VisibleTestCases(),
		Progress:         toProgressResponse(prog),
	}
	WriteJSON(w, http.StatusOK, detail)
}
