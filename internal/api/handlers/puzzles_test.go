package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/codequest-dev/codequest/internal/api/middleware"
	"github.com/codequest-dev/codequest/internal/domain"
)

type fakeCatalog struct {
	categories []*domain.Category
	puzzles    map[uuid.UUID]*domain.Puzzle
}

func (f *fakeCatalog) ListCategories(ctx context.Context) ([]*domain.Category, error) {
	return f.categories, nil
}

func (f *fakeCatalog) GetCategory(ctx context.Context, id uuid.UUID) (*domain.Category, error) {
	for _, c := range f.categories {
		if c.ID == id {
			return c, nil
		}
	}
	return nil, domain.ErrCategoryNotFound
}

func (f *fakeCatalog) List(ctx context.Context, categoryID *uuid.UUID) ([]*domain.Puzzle, error) {
	out := make([]*domain.Puzzle, 0, len(f.puzzles))
	for _, p := range f.puzzles {
		if categoryID == nil || p.CategoryID == *categoryID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeCatalog) Get(ctx context.Context, id uuid.UUID) (*domain.Puzzle, error) {
	p, ok := f.puzzles[id]
	if !ok {
		return nil, domain.ErrPuzzleNotFound
	}
	return p, nil
}

type fakeProgress struct {
	records map[uuid.UUID]*domain.UserProgress // by puzzle ID
}

func (f *fakeProgress) Get(ctx context.Context, userID, puzzleID uuid.UUID) (*domain.UserProgress, error) {
	rec, ok := f.records[puzzleID]
	if !ok {
		return nil, domain.ErrProgressNotFound
	}
	return rec, nil
}

func (f *fakeProgress) ListByUser(ctx context.Context, userID uuid.UUID) ([]*domain.UserProgress, error) {
	out := make([]*domain.UserProgress, 0, len(f.records))
	for _, rec := range f.records {
		out = append(out, rec)
	}
	return out, nil
}

func testPuzzle() *domain.Puzzle {
	return &domain.Puzzle{
		ID:               uuid.New(),
		Title:            "Two Sum",
		Difficulty:       domain.DifficultyEasy,
		CategoryID:       uuid.New(),
		Points:           100,
		ProblemStatement: "Add two numbers.",
		Hints:            []string{"think about addition", "use +"},
		StarterCode:      map[string]string{"go": "func solve(input string) string { return \"\" }"},
		Solution:         map[string]string{"go": "the secret reference solution"},
		TestCases: []domain.TestCase{
			{Input: "1 2", Expected: "3"},
			{Input: "40 2", Expected: "42", Hidden: true},
		},
		UnlockLevel: 1,
	}
}

func TestGetPuzzleHidesSecrets(t *testing.T) {
	puzzle := testPuzzle()
	catalog := &fakeCatalog{puzzles: map[uuid.UUID]*domain.Puzzle{puzzle.ID: puzzle}}
	h := NewPuzzleHandler(catalog, &fakeProgress{records: map[uuid.UUID]*domain.UserProgress{}})

	user := &domain.User{ID: uuid.New(), Level: 1}
	req := httptest.NewRequest(http.MethodGet, "/api/v1/puzzles/"+puzzle.ID.String(), nil)
	req.SetPathValue("id", puzzle.ID.String())
	req = req.WithContext(middleware.WithUser(req.Context(), user))
	rec := httptest.NewRecorder()
	h.Get(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusOK, rec.Body.String())
	}

	body := rec.Body.String()
	if strings.Contains(body, "secret reference solution") {
		t.Error("response must not contain the reference solution")
	}
	if strings.Contains(body, "40 2") {
		t.Error("response must not contain hidden test case input")
	}
	if strings.Contains(body, "think about addition") {
		t.Error("response must not contain hint text; only the count")
	}

	var detail PuzzleDetail
	if err := json.Unmarshal(rec.Body.Bytes(), &detail); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(detail.VisibleTestCases) != 1 {
		t.Errorf("visible test cases = %d, want 1", len(detail.VisibleTestCases))
	}
	if detail.HintCount != 2 {
		t.Errorf("hint_count = %d, want 2", detail.HintCount)
	}
	if detail.StarterCode["go"] == "" {
		t.Error("starter code should be present")
	}
}

func TestGetPuzzleNotFound(t *testing.T) {
	h := NewPuzzleHandler(&fakeCatalog{puzzles: map[uuid.UUID]*domain.Puzzle{}}, &fakeProgress{})

	user := &domain.User{ID: uuid.New(), Level: 1}
	id := uuid.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/puzzles/"+id.String(), nil)
	req.SetPathValue("id", id.String())
	req = req.WithContext(middleware.WithUser(req.Context(), user))
	rec := httptest.NewRecorder()
	h.Get(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestListPuzzlesAnnotatesProgress(t *testing.T) {
	solved := testPuzzle()
	locked := testPuzzle()
	locked.UnlockLevel = 5
	catalog := &fakeCatalog{puzzles: map[uuid.UUID]*domain.Puzzle{
		solved.ID: solved,
		locked.ID: locked,
	}}
	progress := &fakeProgress{records: map[uuid.UUID]*domain.UserProgress{
		solved.ID: {PuzzleID: solved.ID, Status: domain.StatusCompleted, Attempts: 3},
	}}
	h := NewPuzzleHandler(catalog, progress)

	user := &domain.User{ID: uuid.New(), Level: 2}
	req := httptest.NewRequest(http.MethodGet, "/api/v1/puzzles", nil)
	req = req.WithContext(middleware.WithUser(req.Context(), user))
	rec := httptest.NewRecorder()
	h.List(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var resp struct {
		Puzzles []PuzzleSummary `json:"puzzles"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Puzzles) != 2 {
		t.Fatalf("puzzles = %d, want 2", len(resp.Puzzles))
	}

	byID := make(map[string]PuzzleSummary)
	for _, p := range resp.Puzzles {
		byID[p.ID] = p
	}
	if got := byID[solved.ID.String()]; got.Status != string(domain.StatusCompleted) || got.Attempts != 3 {
		t.Errorf("solved puzzle status = %q attempts = %d, want completed/3", got.Status, got.Attempts)
	}
	if got := byID[locked.ID.String()]; got.IsUnlocked {
		t.Error("level 5 puzzle should be locked for a level 2 user")
	}
}

func TestListPuzzlesAnonymous(t *testing.T) {
	open := testPuzzle()
	gated := testPuzzle()
	gated.UnlockLevel = 3
	catalog := &fakeCatalog{puzzles: map[uuid.UUID]*domain.Puzzle{
		open.ID:  open,
		gated.ID: gated,
	}}
	h := NewPuzzleHandler(catalog, &fakeProgress{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/puzzles", nil)
	rec := httptest.NewRecorder()
	h.List(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	var resp struct {
		Puzzles []PuzzleSummary `json:"puzzles"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	byID := make(map[string]PuzzleSummary)
	for _, p := range resp.Puzzles {
		byID[p.ID] = p
	}
	if got := byID[open.ID.String()]; !got.IsUnlocked {
		t.Error("level 1 puzzle should be unlocked for anonymous browsing")
	}
	if got := byID[gated.ID.String()]; got.IsUnlocked {
		t.Error("level 3 puzzle should be locked for anonymous browsing")
	}
	if got := byID[open.ID.String()]; got.Status != "" || got.Attempts != 0 {
		t.Errorf("anonymous listing carries progress: status=%q attempts=%d", got.Status, got.Attempts)
	}
}

func TestGetPuzzleAnonymousOmitsProgress(t *testing.T) {
	puzzle := testPuzzle()
	catalog := &fakeCatalog{puzzles: map[uuid.UUID]*domain.Puzzle{puzzle.ID: puzzle}}
	progress := &fakeProgress{records: map[uuid.UUID]*domain.UserProgress{
		puzzle.ID: {PuzzleID: puzzle.ID, Status: domain.StatusCompleted, Attempts: 2},
	}}
	h := NewPuzzleHandler(catalog, progress)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/puzzles/"+puzzle.ID.String(), nil)
	req.SetPathValue("id", puzzle.ID.String())
	rec := httptest.NewRecorder()
	h.Get(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusOK, rec.Body.String())
	}
	var detail PuzzleDetail
	if err := json.Unmarshal(rec.Body.Bytes(), &detail); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if detail.Progress != nil {
		t.Error("anonymous detail must not carry another user's progress")
	}
}

func TestListCategories(t *testing.T) {
	catalog := &fakeCatalog{categories: []*domain.Category{
		{ID: uuid.New(), Name: "Arrays", SortOrder: 1},
		{ID: uuid.New(), Name: "Strings", SortOrder: 2},
	}}
	h := NewPuzzleHandler(catalog, &fakeProgress{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/categories", nil)
	rec := httptest.NewRecorder()
	h.ListCategories(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	var resp struct {
		Categories []CategoryResponse `json:"categories"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Categories) != 2 {
		t.Errorf("categories = %d, want 2", len(resp.Categories))
	}
}
