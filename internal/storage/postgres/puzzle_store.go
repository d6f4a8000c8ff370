package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/codequest-dev/codequest/internal/domain"
)

// PuzzleStore implements puzzle and category persistence backed by Postgres.
type PuzzleStore struct {
	pool *pgxpool.Pool
}

// NewPuzzleStore creates a new Postgres-backed puzzle store.
func NewPuzzleStore(pool *pgxpool.Pool) *PuzzleStore {
	return &PuzzleStore{pool: pool}
}

const puzzleColumns = `id, title, description, difficulty, category_id, points, stars,
	problem_statement, examples, constraints, hints, starter_code, solution,
	test_cases, sort_order, unlock_level`

// CreateCategory inserts a new category.
func (s *PuzzleStore) CreateCategory(ctx context.Context, c *domain.Category) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO categories (id, name, description, icon, color, sort_order)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		c.ID, c.Name, c.Description, c.Icon, c.Color, c.SortOrder)
	if err != nil {
		return fmt.Errorf("insert category: %w", err)
	}
	return nil
}

// UpdateCategory replaces a category's fields.
func (s *PuzzleStore) UpdateCategory(ctx context.Context, c *domain.Category) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE categories SET name = $1, description = $2, icon = $3,
			color = $4, sort_order = $5
		WHERE id = $6`,
		c.Name, c.Description, c.Icon, c.Color, c.SortOrder, c.ID)
	if err != nil {
		return fmt.Errorf("update category: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrCategoryNotFound
	}
	return nil
}

// GetCategory retrieves a category by ID.
func (s *PuzzleStore) GetCategory(ctx context.Context, id uuid.UUID) (*domain.Category, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, name, description, icon, color, sort_order
		FROM categories WHERE id = $1`, id)

	var c domain.Category
	err := row.Scan(&c.ID, &c.Name, &c.Description, &c.Icon, &c.Color, &c.SortOrder)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrCategoryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan category: %w", err)
	}
	return &c, nil
}

// ListCategories returns all categories in display order.
func (s *PuzzleStore) ListCategories(ctx context.Context) ([]*domain.Category, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, description, icon, color, sort_order
		FROM categories ORDER BY sort_order, name`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var cats []*domain.Category
	for rows.Next() {
		var c domain.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Description, &c.Icon,
			&c.Color, &c.SortOrder); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		cats = append(cats, &c)
	}
	return cats, rows.Err()
}

// DeleteCategory removes a category. Puzzles referencing it block deletion.
func (s *PuzzleStore) DeleteCategory(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, "DELETE FROM categories WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrCategoryNotFound
	}
	return nil
}

// Create inserts a new puzzle.
func (s *PuzzleStore) Create(ctx context.Context, p *domain.Puzzle) error {
	examples, hints, starter, solution, tests, err := marshalPuzzleJSON(p)
	if err != nil {
		return err
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO puzzles (id, title, description, difficulty, category_id,
			points, stars, problem_statement, examples, constraints, hints,
			starter_code, solution, test_cases, sort_order, unlock_level)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		p.ID, p.Title, p.Description, string(p.Difficulty), p.CategoryID,
		p.Points, p.Stars, p.ProblemStatement, examples, p.Constraints,
		hints, starter, solution, tests, p.SortOrder, p.UnlockLevel)
	if err != nil {
		return fmt.Errorf("insert puzzle: %w", err)
	}
	return nil
}

// Update replaces a puzzle's fields.
func (s *PuzzleStore) Update(ctx context.Context, p *domain.Puzzle) error {
	examples, hints, starter, solution, tests, err := marshalPuzzleJSON(p)
	if err != nil {
		return err
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE puzzles SET title = $1, description = $2, difficulty = $3,
			category_id = $4, points = $5, stars = $6, problem_statement = $7,
			examples = $8, constraints = $9, hints = $10, starter_code = $11,
			solution = $12, test_cases = $13, sort_order = $14, unlock_level = $15
		WHERE id = $16`,
		p.Title, p.Description, string(p.Difficulty), p.CategoryID, p.Points,
		p.Stars, p.ProblemStatement, examples, p.Constraints, hints, starter,
		solution, tests, p.SortOrder, p.UnlockLevel, p.ID)
	if err != nil {
		return fmt.Errorf("update puzzle: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrPuzzleNotFound
	}
	return nil
}

// Get retrieves a puzzle by ID, including hidden test cases and solutions.
func (s *PuzzleStore) Get(ctx context.Context, id uuid.UUID) (*domain.Puzzle, error) {
	row := s.pool.QueryRow(ctx,
		"SELECT "+puzzleColumns+" FROM puzzles WHERE id = $1", id)
	return scanPuzzle(row)
}

// List returns all puzzles, optionally restricted to one category, in
// display order.
func (s *PuzzleStore) List(ctx context.Context, categoryID *uuid.UUID) ([]*domain.Puzzle, error) {
	query := "SELECT " + puzzleColumns + " FROM puzzles"
	args := []any{}
	if categoryID != nil {
		query += " WHERE category_id = $1"
		args = append(args, *categoryID)
	}
	query += " ORDER BY sort_order, title"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list puzzles: %w", err)
	}
	defer rows.Close()

	var puzzles []*domain.Puzzle
	for rows.Next() {
		p, err := scanPuzzle(rows)
		if err != nil {
			return nil, err
		}
		puzzles = append(puzzles, p)
	}
	return puzzles, rows.Err()
}

// Count returns the number of puzzles in the catalog.
func (s *PuzzleStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM puzzles").Scan(&n); err != nil {
		return 0, fmt.Errorf("count puzzles: %w", err)
	}
	return n, nil
}

// Delete removes a puzzle and its cascaded progress rows.
func (s *PuzzleStore) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, "DELETE FROM puzzles WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete puzzle: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrPuzzleNotFound
	}
	return nil
}

func marshalPuzzleJSON(p *domain.Puzzle) (examples, hints, starter, solution, tests []byte, err error) {
	if examples, err = json.Marshal(p.Examples); err != nil {
		return nil, nil, nil, nil, nil, fmt.Errorf("marshal examples: %w", err)
	}
	if hints, err = json.Marshal(p.Hints); err != nil {
		return nil, nil, nil, nil, nil, fmt.Errorf("marshal hints: %w", err)
	}
	if starter, err = json.Marshal(p.StarterCode); err != nil {
		return nil, nil, nil, nil, nil, fmt.Errorf("marshal starter_code: %w", err)
	}
	if solution, err = json.Marshal(p.Solution); err != nil {
		return nil, nil, nil, nil, nil, fmt.Errorf("marshal solution: %w", err)
	}
	if tests, err = json.Marshal(p.TestCases); err != nil {
		return nil, nil, nil, nil, nil, fmt.Errorf("marshal test_cases: %w", err)
	}
	return examples, hints, starter, solution, tests, nil
}

func scanPuzzle(row pgx.Row) (*domain.Puzzle, error) {
	var (
		p          domain.Puzzle
		difficulty string
		examples   []byte
		hints      []byte
		starter    []byte
		solution   []byte
		tests      []byte
	)
	err := row.Scan(&p.ID, &p.Title, &p.Description, &difficulty, &p.CategoryID,
		&p.Points, &p.Stars, &p.ProblemStatement, &examples, &p.Constraints,
		&hints, &starter, &solution, &tests, &p.SortOrder, &p.UnlockLevel)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrPuzzleNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan puzzle: %w", err)
	}

	p.Difficulty = domain.Difficulty(difficulty)
	if err := json.Unmarshal(examples, &p.Examples); err != nil {
		return nil, fmt.Errorf("unmarshal examples: %w", err)
	}
	if err := json.Unmarshal(hints, &p.Hints); err != nil {
		return nil, fmt.Errorf("unmarshal hints: %w", err)
	}
	if err := json.Unmarshal(starter, &p.StarterCode); err != nil {
		return nil, fmt.Errorf("unmarshal starter_code: %w", err)
	}
	if err := json.Unmarshal(solution, &p.Solution); err != nil {
		return nil, fmt.Errorf("unmarshal solution: %w", err)
	}
	if err := json.Unmarshal(tests, &p.TestCases); err != nil {
		return nil, fmt.Errorf("unmarshal test_cases: %w", err)
	}
	return &p, nil
}
