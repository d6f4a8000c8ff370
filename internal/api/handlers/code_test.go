package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/codequest-dev/codequest/internal/api/middleware"
	"github.com/codequest-dev/codequest/internal/domain"
	"github.com/codequest-dev/codequest/internal/grader"
	"github.com/codequest-dev/codequest/internal/progression"
)

type fakeProgressionService struct {
	runResult    *progression.RunResult
	submitResult *progression.SubmitResult
	err          error
	hintErr      error
	hintCalls    int
}

func (f *fakeProgressionService) Run(ctx context.Context, user *domain.User, puzzleID uuid.UUID, language, code string) (*progression.RunResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.runResult, nil
}

func (f *fakeProgressionService) Submit(ctx context.Context, user *domain.User, puzzleID uuid.UUID, language, code string) (*progression.SubmitResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.submitResult, nil
}

func (f *fakeProgressionService) UseHint(ctx context.Context, user *domain.User, puzzleID uuid.UUID) error {
	f.hintCalls++
	return f.hintErr
}

type fakeSessionCache struct {
	sessions map[string]*domain.EditorSession
}

func sessKey(userID, puzzleID uuid.UUID) string {
	return userID.String() + "/" + puzzleID.String()
}

func (f *fakeSessionCache) Save(ctx context.Context, sess *domain.EditorSession) error {
	now := time.Now()
	sess.LastSaved = now
	if existing, ok := f.sessions[sessKey(sess.UserID, sess.PuzzleID)]; ok {
		sess.StartedAt = existing.StartedAt
	} else {
		sess.StartedAt = now
	}
	f.sessions[sessKey(sess.UserID, sess.PuzzleID)] = sess
	return nil
}

func (f *fakeSessionCache) Get(ctx context.Context, userID, puzzleID uuid.UUID) (*domain.EditorSession, error) {
	sess, ok := f.sessions[sessKey(userID, puzzleID)]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return sess, nil
}

func (f *fakeSessionCache) Delete(ctx context.Context, userID, puzzleID uuid.UUID) error {
	delete(f.sessions, sessKey(userID, puzzleID))
	return nil
}

func codeRequest(t *testing.T, method, path string, puzzleID uuid.UUID, body string) (*httptest.ResponseRecorder, *http.Request) {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("{}")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.SetPathValue("id", puzzleID.String())
	user := &domain.User{ID: uuid.New(), Level: 1}
	req = req.WithContext(middleware.WithUser(req.Context(), user))
	return httptest.NewRecorder(), req
}

func TestRunReturnsGrade(t *testing.T) {
	svc := &fakeProgressionService{
		runResult: &progression.RunResult{Grade: &grader.Result{
			Passed:      true,
			PassedCount: 2,
			TotalCount:  2,
			Tests: []grader.TestResult{
				{Index: 0, Passed: true, Input: "1 2", Expected: "3", Actual: "3"},
				{Index: 1, Passed: true, Input: "0 0", Expected: "0", Actual: "0"},
			},
		}},
	}
	h := NewCodeHandler(svc, &fakeCatalog{}, &fakeProgress{}, &fakeSessionCache{sessions: map[string]*domain.EditorSession{}})

	rec, req := codeRequest(t, http.MethodPost, "/run", uuid.New(), `{"language":"go","code":"..."}`)
	h.Run(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusOK, rec.Body.String())
	}
	var resp GradeResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.Passed || resp.PassedCount != 2 {
		t.Errorf("passed = %v count = %d, want true/2", resp.Passed, resp.PassedCount)
	}
}

func TestSubmitRedactsHiddenCases(t *testing.T) {
	svc := &fakeProgressionService{
		submitResult: &progression.SubmitResult{
			Grade: &grader.Result{
				Passed:      false,
				PassedCount: 1,
				TotalCount:  2,
				Tests: []grader.TestResult{
					{Index: 0, Passed: true, Input: "1 2", Expected: "3", Actual: "3"},
					{Index: 1, Passed: false, Hidden: true, Input: "40 2", Expected: "42", Actual: "41"},
				},
			},
		},
	}
	h := NewCodeHandler(svc, &fakeCatalog{}, &fakeProgress{}, &fakeSessionCache{sessions: map[string]*domain.EditorSession{}})

	rec, req := codeRequest(t, http.MethodPost, "/submit", uuid.New(), `{"language":"go","code":"..."}`)
	h.Submit(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	body := rec.Body.String()
	if strings.Contains(body, "40 2") || strings.Contains(body, "41") {
		t.Error("hidden case data leaked into the response")
	}

	var resp SubmitResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Tests) != 2 {
		t.Fatalf("tests = %d, want 2", len(resp.Tests))
	}
	hidden := resp.Tests[1]
	if !hidden.Hidden || hidden.Passed {
		t.Errorf("hidden case should report hidden and failed, got %+v", hidden)
	}
	if hidden.Input != "" || hidden.Expected != "" || hidden.Actual != "" {
		t.Error("hidden case must report pass/fail only")
	}
}

func TestSubmitFirstCompletionPayload(t *testing.T) {
	user := &domain.User{ID: uuid.New(), Level: 2, TotalXP: 1100, CurrentXP: 100}
	svc := &fakeProgressionService{
		submitResult: &progression.SubmitResult{
			Grade:           &grader.Result{Passed: true, PassedCount: 1, TotalCount: 1},
			FirstCompletion: true,
			XPAwarded:       100,
			User:            user,
			NewAchievements: []*domain.Achievement{
				{ID: uuid.New(), Name: "First Steps", XPReward: 50},
			},
		},
	}
	h := NewCodeHandler(svc, &fakeCatalog{}, &fakeProgress{}, &fakeSessionCache{sessions: map[string]*domain.EditorSession{}})

	rec, req := codeRequest(t, http.MethodPost, "/submit", uuid.New(), `{"language":"go","code":"..."}`)
	h.Submit(rec, req)

	var resp SubmitResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.FirstCompletion || resp.XPAwarded != 100 {
		t.Errorf("first = %v xp = %d, want true/100", resp.FirstCompletion, resp.XPAwarded)
	}
	if resp.User == nil || resp.User.TotalXP != 1100 {
		t.Error("expected the updated user in the response")
	}
	if len(resp.NewAchievements) != 1 || resp.NewAchievements[0].Name != "First Steps" {
		t.Errorf("new achievements = %+v, want First Steps", resp.NewAchievements)
	}
}

func TestSubmitExecutionUnavailable(t *testing.T) {
	svc := &fakeProgressionService{err: domain.ErrExecutionUnavailable}
	h := NewCodeHandler(svc, &fakeCatalog{}, &fakeProgress{}, &fakeSessionCache{sessions: map[string]*domain.EditorSession{}})

	rec, req := codeRequest(t, http.MethodPost, "/submit", uuid.New(), `{"language":"go","code":"..."}`)
	h.Submit(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
}

func TestSubmitLockedPuzzle(t *testing.T) {
	svc := &fakeProgressionService{err: domain.ErrPuzzleLocked}
	h := NewCodeHandler(svc, &fakeCatalog{}, &fakeProgress{}, &fakeSessionCache{sessions: map[string]*domain.EditorSession{}})

	rec, req := codeRequest(t, http.MethodPost, "/submit", uuid.New(), `{"language":"go","code":"..."}`)
	h.Submit(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusForbidden)
	}
}

func TestHintRevealsProgressively(t *testing.T) {
	puzzle := testPuzzle()
	catalog := &fakeCatalog{puzzles: map[uuid.UUID]*domain.Puzzle{puzzle.ID: puzzle}}
	progressStore := &fakeProgress{records: map[uuid.UUID]*domain.UserProgress{
		puzzle.ID: {PuzzleID: puzzle.ID, HintsUsed: 1},
	}}
	svc := &fakeProgressionService{}
	h := NewCodeHandler(svc, catalog, progressStore, &fakeSessionCache{sessions: map[string]*domain.EditorSession{}})

	rec, req := codeRequest(t, http.MethodPost, "/hint", puzzle.ID, "")
	h.Hint(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusOK, rec.Body.String())
	}
	if svc.hintCalls != 1 {
		t.Errorf("hint calls = %d, want 1", svc.hintCalls)
	}

	var resp HintResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Hints) != 1 || resp.Hints[0] != "think about addition" {
		t.Errorf("hints = %v, want the first hint only", resp.Hints)
	}
	if resp.Total != 2 {
		t.Errorf("total = %d, want 2", resp.Total)
	}
}

func TestSessionSaveAndGet(t *testing.T) {
	cache := &fakeSessionCache{sessions: map[string]*domain.EditorSession{}}
	h := NewCodeHandler(&fakeProgressionService{}, &fakeCatalog{}, &fakeProgress{}, cache)

	puzzleID := uuid.New()
	user := &domain.User{ID: uuid.New(), Level: 1}

	save := httptest.NewRequest(http.MethodPut, "/session", strings.NewReader(`{"language":"go","code":"draft"}`))
	save.SetPathValue("id", puzzleID.String())
	save = save.WithContext(middleware.WithUser(save.Context(), user))
	rec := httptest.NewRecorder()
	h.SaveSession(rec, save)
	if rec.Code != http.StatusOK {
		t.Fatalf("save status = %d, want %d", rec.Code, http.StatusOK)
	}

	get := httptest.NewRequest(http.MethodGet, "/session", nil)
	get.SetPathValue("id", puzzleID.String())
	get = get.WithContext(middleware.WithUser(get.Context(), user))
	rec = httptest.NewRecorder()
	h.GetSession(rec, get)
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d, want %d", rec.Code, http.StatusOK)
	}

	var resp SessionResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Code != "draft" || resp.Language != "go" {
		t.Errorf("session = %q/%q, want draft/go", resp.Code, resp.Language)
	}
}

func TestGetSessionMissing(t *testing.T) {
	cache := &fakeSessionCache{sessions: map[string]*domain.EditorSession{}}
	h := NewCodeHandler(&fakeProgressionService{}, &fakeCatalog{}, &fakeProgress{}, cache)

	rec, req := codeRequest(t, http.MethodGet, "/session", uuid.New(), "")
	h.GetSession(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}
