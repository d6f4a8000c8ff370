package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/codequest-dev/codequest/internal/api/handlers"
	"github.com/codequest-dev/codequest/internal/api/middleware"
)

// Router wraps the HTTP multiplexer with middleware and handlers
type Router struct {
	mux          *http.ServeMux
	app          *App
	rateLimits   *middleware.RateLimitConfig
	auth         *handlers.AuthHandler
	puzzles      *handlers.PuzzleHandler
	code         *handlers.CodeHandler
	achievements *handlers.AchievementHandler
	leaderboard  *handlers.LeaderboardHandler
	profile      *handlers.ProfileHandler
	admin        *handlers.AdminHandler
}

// NewRouter creates a new API router with all routes configured
func NewRouter(app *App) http.Handler {
	r := &Router{
		mux:        http.NewServeMux(),
		app:        app,
		rateLimits: middleware.DefaultRateLimitConfig(),
	}

	// Initialize handlers
	r.auth = handlers.NewAuthHandler(app.Auth)
	r.puzzles = handlers.NewPuzzleHandler(app.Puzzles, app.Progress)
	r.code = handlers.NewCodeHandler(app.Progression, app.Puzzles, app.Progress, app.Sessions)
	r.achievements = handlers.NewAchievementHandler(app.Achievements)
	r.leaderboard = handlers.NewLeaderboardHandler(app.Leaderboard)
	r.profile = handlers.NewProfileHandler(app.Users, app.Progression, app.Progress, app.Leaderboard, app.Messages)
	r.admin = handlers.NewAdminHandler(app.Puzzles, app.Achievements, app.Users, app.Progress, app.Messages)

	r.registerRoutes()

	return r.buildMiddlewareChain(r.mux)
}

func (r *Router) registerRoutes() {
	// Health check
	r.mux.HandleFunc("GET /health", r.handleHealth)
	r.mux.HandleFunc("GET /ready", r.handleReady)

	// Auth (no auth required except logout/me/password)
	r.mux.HandleFunc("POST /api/v1/auth/register", r.auth.Register)
	r.mux.HandleFunc("POST /api/v1/auth/login", r.auth.Login)
	r.mux.HandleFunc("POST /api/v1/auth/logout", r.requireAuth(r.auth.Logout))
	r.mux.HandleFunc("GET /api/v1/auth/me", r.requireAuth(r.auth.Me))
	r.mux.HandleFunc("POST /api/v1/auth/password", r.requireAuth(r.auth.ChangePassword))

	// Puzzle catalog
	r.mux.HandleFunc("GET /api/v1/categories", r.optionalAuth(r.puzzles.ListCategories))
	r.mux.HandleFunc("GET /api/v1/puzzles", r.optionalAuth(r.puzzles.List))
	r.mux.HandleFunc("GET /api/v1/puzzles/{id}", r.optionalAuth(r.puzzles.Get))

	// Code execution. Sandboxed runs get the tighter rate limit.
	expensive := middleware.ExpensiveRateLimit(r.rateLimits)
	r.mux.Handle("POST /api/v1/puzzles/{id}/run",
		expensive(http.HandlerFunc(r.requireAuth(r.code.Run))))
	r.mux.Handle("POST /api/v1/puzzles/{id}/submit",
		expensive(http.HandlerFunc(r.requireAuth(r.code.Submit))))
	r.mux.HandleFunc("POST /api/v1/puzzles/{id}/hint", r.requireAuth(r.code.Hint))

	// Editor session autosave
	r.mux.HandleFunc("PUT /api/v1/puzzles/{id}/session", r.requireAuth(r.code.SaveSession))
	r.mux.HandleFunc("GET /api/v1/puzzles/{id}/session", r.requireAuth(r.code.GetSession))

	// Gamification
	r.mux.HandleFunc("GET /api/v1/achievements", r.optionalAuth(r.achievements.List))
	r.mux.HandleFunc("GET /api/v1/leaderboard", r.optionalAuth(r.leaderboard.Get))

	// Profile and inbox
	r.mux.HandleFunc("GET /api/v1/profile", r.requireAuth(r.profile.Get))
	r.mux.HandleFunc("PUT /api/v1/profile", r.requireAuth(r.profile.Update))
	r.mux.HandleFunc("GET /api/v1/progress", r.requireAuth(r.profile.Progress))
	r.mux.HandleFunc("GET /api/v1/messages", r.requireAuth(r.profile.Messages))
	r.mux.HandleFunc("POST /api/v1/messages/{id}/read", r.requireAuth(r.profile.MarkMessageRead))

	// Admin
	r.mux.HandleFunc("POST /api/v1/admin/categories", r.requireAdmin(r.admin.CreateCategory))
	r.mux.HandleFunc("PUT /api/v1/admin/categories/{id}", r.requireAdmin(r.admin.UpdateCategory))
	r.mux.HandleFunc("DELETE /api/v1/admin/categories/{id}", r.requireAdmin(r.admin.DeleteCategory))
	r.mux.HandleFunc("POST /api/v1/admin/puzzles", r.requireAdmin(r.admin.CreatePuzzle))
	r.mux.HandleFunc("GET /api/v1/admin/puzzles", r.requireAdmin(r.admin.ListPuzzles))
	r.mux.HandleFunc("GET /api/v1/admin/puzzles/{id}", r.requireAdmin(r.admin.GetPuzzle))
	r.mux.HandleFunc("PUT /api/v1/admin/puzzles/{id}", r.requireAdmin(r.admin.UpdatePuzzle))
	r.mux.HandleFunc("DELETE /api/v1/admin/puzzles/{id}", r.requireAdmin(r.admin.DeletePuzzle))
	r.mux.HandleFunc("POST /api/v1/admin/achievements", r.requireAdmin(r.admin.CreateAchievement))
	r.mux.HandleFunc("PUT /api/v1/admin/achievements/{id}", r.requireAdmin(r.admin.UpdateAchievement))
	r.mux.HandleFunc("DELETE /api/v1/admin/achievements/{id}", r.requireAdmin(r.admin.DeleteAchievement))
	r.mux.HandleFunc("POST /api/v1/admin/achievements/{id}/grant/{userID}", r.requireAdmin(r.admin.GrantAchievement))
	r.mux.HandleFunc("GET /api/v1/admin/users", r.requireAdmin(r.admin.ListUsers))
	r.mux.HandleFunc("POST /api/v1/admin/users/{id}/promote", r.requireAdmin(r.admin.PromoteUser))
	r.mux.HandleFunc("GET /api/v1/admin/stats", r.requireAdmin(r.admin.Stats))
	r.mux.HandleFunc("POST /api/v1/admin/messages", r.requireAdmin(r.admin.SendMessage))
	r.mux.HandleFunc("GET /api/v1/admin/messages", r.requireAdmin(r.admin.ListMessages))
}

func (r *Router) buildMiddlewareChain(handler http.Handler) http.Handler {
	// Apply middleware in reverse order (last applied = first executed)
	handler = middleware.Recovery(handler)
	handler = middleware.Logger(handler)
	handler = middleware.RateLimit(r.rateLimits)(handler)
	handler = middleware.RequestID(handler)
	handler = middleware.CORS(handler)

	return handler
}

// requireAuth wraps a handler with bearer token authentication
func (r *Router) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		token := handlers.BearerToken(req)
		if token == "" {
			handlers.Unauthorized(w, req, "authentication required")
			return
		}

		user, err := r.app.Auth.Authenticate(req.Context(), token)
		if err != nil {
			slog.Warn("invalid token",
				"error", err,
				"request_id", middleware.GetRequestID(req.Context()),
			)
			handlers.Unauthorized(w, req, "invalid or expired token")
			return
		}

		ctx := middleware.WithUser(req.Context(), user)
		next(w, req.WithContext(ctx))
	}
}

// optionalAuth resolves the caller's bearer token when one is
// presented but lets anonymous requests through. A presented token
// that fails to resolve is still rejected, so a client with a stale
// token learns about it instead of silently browsing logged out.
func (r *Router) optionalAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		token := handlers.BearerToken(req)
		if token == "" {
			next(w, req)
			return
		}

		user, err := r.app.Auth.Authenticate(req.Context(), token)
		if err != nil {
			handlers.Unauthorized(w, req, "invalid or expired token")
			return
		}

		ctx := middleware.WithUser(req.Context(), user)
		next(w, req.WithContext(ctx))
	}
}

// requireAdmin wraps a handler with authentication plus an admin check
func (r *Router) requireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return r.requireAuth(func(w http.ResponseWriter, req *http.Request) {
		user, ok := middleware.GetUser(req.Context())
		if !ok || !user.IsAdmin {
			handlers.Forbidden(w, req, "admin access required")
			return
		}
		next(w, req)
	})
}

// Health check handlers
func (r *Router) handleHealth(w http.ResponseWriter, req *http.Request) {
	r.jsonResponse(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (r *Router) handleReady(w http.ResponseWriter, req *http.Request) {
	checks := map[string]string{
		"database": "healthy",
		"redis":    "healthy",
	}
	ready := true

	if err := r.app.DB.Ping(req.Context()); err != nil {
		slog.Error("database health check failed",
			"error", err,
			"request_id", middleware.GetRequestID(req.Context()),
		)
		checks["database"] = "unhealthy"
		ready = false
	}
	if err := r.app.Redis.Ping(req.Context()).Err(); err != nil {
		slog.Error("redis health check failed",
			"error", err,
			"request_id", middleware.GetRequestID(req.Context()),
		)
		checks["redis"] = "unhealthy"
		ready = false
	}

	status := http.StatusOK
	state := "ready"
	if !ready {
		status = http.StatusServiceUnavailable
		state = "not ready"
	}
	r.jsonResponse(w, status, map[string]any{
		"status": state,
		"checks": checks,
	})
}

// Helper for JSON responses
func (r *Router) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}
