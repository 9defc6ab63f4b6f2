package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/sakif/todo-app/internal/apperror"
	"github.com/sakif/todo-app/internal/model"
	"github.com/sakif/todo-app/internal/repository"
)

var _ repository.CategoryRepository = (*DB)(nil)

// CreateCategory inserts a category and sets its generated ID.
// A duplicate name is reported as apperror.ErrConflict.
func (db *DB) CreateCategory(ctx context.Context, category *model.Category) error {
	result, err := db.conn.ExecContext(ctx,
		`INSERT INTO categories (name) VALUES (?)`,
		category.Name,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.ConflictMessage(fmt.Sprintf("category %q already exists", category.Name))
		}
		return fmt.Errorf("sqlite: creating category: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("sqlite: reading category id: %w", err)
	}
	category.ID = id
	return nil
}

func (db *DB) GetCategory(ctx context.Context, id int64) (*model.Category, error) {
	var c model.Category
	err := db.conn.QueryRowContext(ctx,
		`SELECT id, name FROM categories WHERE id = ?`, id,
	).Scan(&c.ID, &c.Name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("category", id)
		}
		return nil, fmt.Errorf("sqlite: getting category %d: %w", id, err)
	}
	return &c, nil
}

// ListCategories returns every category ordered by ID, so the seeded
// defaults come first.
func (db *DB) ListCategories(ctx context.Context) ([]model.Category, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT id, name FROM categories ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing categories: %w", err)
	}
	defer rows.Close()

	categories := []model.Category{}
	for rows.Next() {
		var c model.Category
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, fmt.Errorf("sqlite: scanning category row: %w", err)
		}
		categories = append(categories, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating categories: %w", err)
	}
	return categories, nil
}

func (db *DB) UpdateCategory(ctx context.Context, category *model.Category) error {
	result, err := db.conn.ExecContext(ctx,
		`UPDATE categories SET name = ? WHERE id = ?`,
		category.Name, category.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.ConflictMessage(fmt.Sprintf("category %q already exists", category.Name))
		}
		return fmt.Errorf("sqlite: updating category %d: %w", category.ID, err)
	}
	return expectOneRow(result, "category", category.ID)
}

// DeleteCategory removes a category. Categories still referenced by todos
// cannot be deleted; that case is reported as apperror.ErrConflict and the
// row is kept.
func (db *DB) DeleteCategory(ctx context.Context, id int64) error {
	result, err := db.conn.ExecContext(ctx, `DELETE FROM categories WHERE id = ?`, id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return apperror.ConflictMessage(fmt.Sprintf("category %d still has todos", id))
		}
		return fmt.Errorf("sqlite: deleting category %d: %w", id, err)
	}
	return expectOneRow(result, "category", id)
}

func (db *DB) CountCategories(ctx context.Context) (int, error) {
	var n int
	if err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM categories`).Scan(&n); err != nil {
		return 0, fmt.Errorf("sqlite: counting categories: %w", err)
	}
	return n, nil
}

// expectOneRow turns "0 rows affected" into apperror.ErrNotFound.
func expectOneRow(result sql.Result, resource string, id int64) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if n == 0 {
		return apperror.NotFound(resource, id)
	}
	return nil
}
