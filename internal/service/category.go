package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/sakif/todo-app/internal/apperror"
	"github.com/sakif/todo-app/internal/model"
	"github.com/sakif/todo-app/internal/repository"
)

// CategoryService manages the shared category list. Categories are not
// owned by anyone: the API lists them publicly, the admin panel edits them.
type CategoryService struct {
	repo   repository.CategoryRepository
	logger *slog.Logger
}

func NewCategoryService(repo repository.CategoryRepository, logger *slog.Logger) *CategoryService {
	return &CategoryService{repo: repo, logger: logger}
}

func (s *CategoryService) List(ctx context.Context) ([]model.Category, error) {
	categories, err := s.repo.ListCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing categories: %w", err)
	}
	return categories, nil
}

func (s *CategoryService) Get(ctx context.Context, id int64) (*model.Category, error) {
	return s.repo.GetCategory(ctx, id)
}

// Create adds a category. Duplicate names are ErrConflict.
func (s *CategoryService) Create(ctx context.Context, name string) (*model.Category, error) {
	name, err := validateCategoryName(name)
	if err != nil {
		return nil, err
	}

	category := &model.Category{Name: name}
	if err := s.repo.CreateCategory(ctx, category); err != nil {
		return nil, fmt.Errorf("creating category: %w", err)
	}
	s.logger.Info("category created", slog.Int64("id", category.ID), slog.String("name", name))
	return category, nil
}

// Rename changes a category's name.
func (s *CategoryService) Rename(ctx context.Context, id int64, name string) (*model.Category, error) {
	name, err := validateCategoryName(name)
	if err != nil {
		return nil, err
	}

	category := &model.Category{ID: id, Name: name}
	if err := s.repo.UpdateCategory(ctx, category); err != nil {
		return nil, fmt.Errorf("renaming category %d: %w", id, err)
	}
	s.logger.Info("category renamed", slog.Int64("id", id), slog.String("name", name))
	return category, nil
}

// Delete removes a category. A category still referenced by any todo is
// ErrConflict and nothing is removed.
func (s *CategoryService) Delete(ctx context.Context, id int64) error {
	if err := s.repo.DeleteCategory(ctx, id); err != nil {
		return fmt.Errorf("deleting category %d: %w", id, err)
	}
	s.logger.Info("category deleted", slog.Int64("id", id))
	return nil
}

// SeedDefaults inserts model.DefaultCategories when no category exists yet.
// It reports how many were created.
func (s *CategoryService) SeedDefaults(ctx context.Context) (int, error) {
	n, err := s.repo.CountCategories(ctx)
	if err != nil {
		return 0, fmt.Errorf("counting categories: %w", err)
	}
	if n > 0 {
		return 0, nil
	}

	for _, name := range model.DefaultCategories {
		if err := s.repo.CreateCategory(ctx, &model.Category{Name: name}); err != nil {
			return 0, fmt.Errorf("seeding category %q: %w", name, err)
		}
	}
	s.logger.Info("default categories seeded", slog.Int("count", len(model.DefaultCategories)))
	return len(model.DefaultCategories), nil
}

func validateCategoryName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", apperror.ValidationFailed("name", "category name is required")
	}
	if utf8.RuneCountInString(name) > MaxCategoryNameLength {
		return "", apperror.ValidationFailed("name",
			fmt.Sprintf("category name must be %d characters or less", MaxCategoryNameLength))
	}
	return name, nil
}
