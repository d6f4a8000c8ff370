package domain

import "errors"

// -----------------------------------------------------------------------------
// Domain Errors
// These errors represent domain-level failures and are used by repositories
// and services to communicate domain-specific error conditions.
// -----------------------------------------------------------------------------

// User errors
var (
	ErrUserNotFound    = errors.New("user not found")
	ErrUsernameTaken   = errors.New("username already taken")
	ErrEmailTaken      = errors.New("email already registered")
	ErrInvalidPassword = errors.New("invalid password")
)

// Token errors
var (
	ErrTokenNotFound = errors.New("token not found")
	ErrTokenExpired  = errors.New("token expired")
)

// Content errors
var (
	ErrCategoryNotFound    = errors.New("category not found")
	ErrPuzzleNotFound      = errors.New("puzzle not found")
	ErrAchievementNotFound = errors.New("achievement not found")
	ErrProgressNotFound    = errors.New("progress not found")
	ErrSessionNotFound     = errors.New("editor session not found")
	ErrMessageNotFound     = errors.New("message not found")
)

// Grading errors
var (
	ErrUnsupportedLanguage  = errors.New("unsupported language")
	ErrEmptyCode            = errors.New("code must not be empty")
	ErrExecutionUnavailable = errors.New("execution unavailable, try again")
	ErrPuzzleLocked         = errors.New("puzzle is locked at your level")
)

// General errors
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrInvalidInput = errors.New("invalid input")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
)
