package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/codequest-dev/codequest/internal/api/middleware"
	"github.com/codequest-dev/codequest/internal/domain"
	"github.com/codequest-dev/codequest/internal/grader"
	"github.com/codequest-dev/codequest/internal/progression"
)

// ProgressionService grades submissions and tracks progress.
type ProgressionService interface {
	Run(ctx context.Context, user *domain.User, puzzleID uuid.UUID, language, code string) (*progression.RunResult, error)
	Submit(ctx context.Context, user *domain.User, puzzleID uuid.UUID, language, code string) (*progression.SubmitResult, error)
	UseHint(ctx context.Context, user *domain.User, puzzleID uuid.UUID) error
}

// SessionCache persists editor autosave snapshots.
type SessionCache interface {
	Save(ctx context.Context, sess *domain.EditorSession) error
	Get(ctx context.Context, userID, puzzleID uuid.UUID) (*domain.EditorSession, error)
	Delete(ctx context.Context, userID, puzzleID uuid.UUID) error
}

// CodeHandler serves code execution, submission, hints and editor
// session autosave.
type CodeHandler struct {
	progression ProgressionService
	puzzles     PuzzleCatalog
	progress    ProgressReader
	sessions    SessionCache
}

func NewCodeHandler(p ProgressionService, puzzles PuzzleCatalog, progress ProgressReader, sessions SessionCache) *CodeHandler {
	return &CodeHandler{progression: p, puzzles: puzzles, progress: progress, sessions: sessions}
}

// CodeRequest is the request body for run and submit.
type CodeRequest struct {
	Language string `json:"language"`
	Code     string `json:"code"`
}

// TestResultResponse is one graded test case. Input and expected output
// are blank for hidden cases.
type TestResultResponse struct {
	Index    int    `json:"index"`
	Passed   bool   `json:"passed"`
	Hidden   bool   `json:"hidden"`
	Input    string `json:"input,omitempty"`
	Expected string `json:"expected,omitempty"`
	Actual   string `json:"actual,omitempty"`
	Error    string `json:"error,omitempty"`
	TimedOut bool   `json:"timed_out,omitempty"`
}

// GradeResponse is a graded run or submission.
type GradeResponse struct {
	Passed       bool                 `json:"passed"`
	CompileError string               `json:"compile_error,omitempty"`
	PassedCount  int                  `json:"passed_count"`
	TotalCount   int                  `json:"total_count"`
	Tests        []TestResultResponse `json:"tests"`
}

// SubmitResponse extends a grade with progression outcomes.
type SubmitResponse struct {
	GradeResponse
	FirstCompletion bool                  `json:"first_completion"`
	XPAwarded       int                   `json:"xp_awarded"`
	User            *UserResponse         `json:"user,omitempty"`
	NewAchievements []AchievementResponse `json:"new_achievements"`
}

func toGradeResponse(res *grader.Result) GradeResponse {
	out := GradeResponse{
		Passed:       res.Passed,
		CompileError: res.CompileError,
		PassedCount:  res.PassedCount,
		TotalCount:   res.TotalCount,
		Tests:        make([]TestResultResponse, 0, len(res.Tests)),
	}
	for _, t := range res.Tests {
		tr := TestResultResponse{
			Index:    t.Index,
			Passed:   t.Passed,
			Hidden:   t.Hidden,
			Error:    t.Error,
			TimedOut: t.TimedOut,
		}
		// Hidden cases report pass/fail only.
		if !t.Hidden {
			tr.Input = t.Input
			tr.Expected = t.Expected
			tr.Actual = t.Actual
		}
		out.Tests = append(out.Tests, tr)
	}
	return out
}

func (h *CodeHandler) decodeCodeRequest(w http.ResponseWriter, r *http.Request) (*domain.User, uuid.UUID, *CodeRequest, bool) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		Unauthorized(w, r, "not authenticated")
		return nil, uuid.Nil, nil, false
	}

	puzzleID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, r, "invalid puzzle id")
		return nil, uuid.Nil, nil, false
	}

	var req CodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, r, "invalid request body")
		return nil, uuid.Nil, nil, false
	}
	return user, puzzleID, &req, true
}

// Run grades the caller's code against the puzzle's visible test cases.
func (h *CodeHandler) Run(w http.ResponseWriter, r *http.Request) {
	user, puzzleID, req, ok := h.decodeCodeRequest(w, r)
	if !ok {
		return
	}

	result, err := h.progression.Run(r.Context(), user, puzzleID, req.Language, req.Code)
	if err != nil {
		WriteDomainError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, toGradeResponse(result.Grade))
}

// Submit grades the caller's code against all test cases and records
// the outcome.
func (h *CodeHandler) Submit(w http.ResponseWriter, r *http.Request) {
	user, puzzleID, req, ok := h.decodeCodeRequest(w, r)
	if !ok {
		return
	}

	result, err := h.progression.Submit(r.Context(), user, puzzleID, req.Language, req.Code)
	if err != nil {
		WriteDomainError(w, r, err)
		return
	}

	if result.Grade != nil && result.Grade.Passed {
		// The accepted solution is in user_progress now; the
		// autosave draft has nothing left to recover.
		if err := h.sessions.Delete(r.Context(), user.ID, puzzleID); err != nil {
			slog.Warn("clear editor session", "error", err, "puzzle_id", puzzleID)
		}
	}

	resp := SubmitResponse{
		GradeResponse:   toGradeResponse(result.Grade),
		FirstCompletion: result.FirstCompletion,
		XPAwarded:       result.XPAwarded,
		NewAchievements: make([]AchievementResponse, 0, len(result.NewAchievements)),
	}
	if result.User != nil {
		u := toUserResponse(result.User)
		resp.User = &u
	}
	for _, a := range result.NewAchievements {
		resp.NewAchievements = append(resp.NewAchievements, toAchievementResponse(a))
	}
	WriteJSON(w, http.StatusOK, resp)
}

// HintResponse carries every hint revealed so far.
type HintResponse struct {
	Hints     []string `json:"hints"`
	HintsUsed int      `json:"hints_used"`
	Total     int      `json:"total"`
}

// Hint reveals the next hint and counts it against the caller's record.
func (h *CodeHandler) Hint(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		Unauthorized(w, r, "not authenticated")
		return
	}

	puzzleID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, r, "invalid puzzle id")
		return
	}

	puzzle, err := h.puzzles.Get(r.Context(), puzzleID)
	if err != nil {
		WriteDomainError(w, r, err)
		return
	}

	if err := h.progression.UseHint(r.Context(), user, puzzleID); err != nil {
		WriteDomainError(w, r, err)
		return
	}

	used := 1
	if prog, err := h.progress.Get(r.Context(), user.ID, puzzleID); err == nil {
		used = prog.HintsUsed
	}
	revealed := min(used, len(puzzle.Hints))

	WriteJSON(w, http.StatusOK, HintResponse{
		Hints:     puzzle.Hints[:revealed],
		HintsUsed: used,
		Total:     len(puzzle.Hints),
	})
}

// SessionRequest is the autosave request body.
type SessionRequest struct {
	Language string `json:"language"`
	Code     string `json:"code"`
}

// SessionResponse is an editor autosave snapshot.
type SessionResponse struct {
	PuzzleID  string    `json:"puzzle_id"`
	Language  string    `json:"language"`
	Code      string    `json:"code"`
	StartedAt time.Time `json:"started_at"`
	LastSaved time.Time `json:"last_saved"`
}

// SaveSession stores the caller's editor state for a puzzle.
func (h *CodeHandler) SaveSession(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		Unauthorized(w, r, "not authenticated")
		return
	}

	puzzleID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, r, "invalid puzzle id")
		return
	}

	var req SessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, r, "invalid request body")
		return
	}

	sess := &domain.EditorSession{
		UserID:   user.ID,
		PuzzleID: puzzleID,
		Code:     req.Code,
		Language: req.Language,
	}
	if err := h.sessions.Save(r.Context(), sess); err != nil {
		WriteDomainError(w, r, err)
		return
	}

	WriteJSON(w, http.StatusOK, SessionResponse{
		PuzzleID:  sess.PuzzleID.String(),
		Language:  sess.Language,
		Code:      sess.Code,
		StartedAt: sess.StartedAt,
		LastSaved: sess.LastSaved,
	})
}

// GetSession returns the caller's saved editor state for a puzzle.
func (h *CodeHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		Unauthorized(w, r, "not authenticated")
		return
	}

	puzzleID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, r, "invalid puzzle id")
		return
	}

	sess, err := h.sessions.Get(r.Context(), user.ID, puzzleID)
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			NotFound(w, r, "editor session")
			return
		}
		WriteDomainError(w, r, err)
		return
	}

	WriteJSON(w, http.StatusOK, SessionResponse{
		PuzzleID:  sess.PuzzleID.String(),
		Language:  sess.Language,
		Code:      sess.Code,
		StartedAt: sess.StartedAt,
		LastSaved: sess.LastSaved,
	})
}
