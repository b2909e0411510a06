package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mkorlev/packshop/internal/domain/models"
)

var (
	ErrCategoryNotFound    = errors.New("category not found")
	ErrSubcategoryNotFound = errors.New("subcategory not found")
)

// CategoryStorage описывает методы для работы с деревом категорий.
type CategoryStorage interface {
	// ListTree возвращает все категории с вложенными подкатегориями,
	// отсортированные по порядку сортировки.
	ListTree(ctx context.Context) ([]*models.Category, error)
	GetByID(ctx context.Context, id int64) (*models.Category, error)
	Create(ctx context.Context, category *models.Category) (int64, error)
	Update(ctx context.Context, category *models.Category) error
	Delete(ctx context.Context, id int64) error
	CreateSubcategory(ctx context.Context, sub *models.Subcategory) (int64, error)
	GetSubcategoryByID(ctx context.Context, id int64) (*models.Subcategory, error)
	UpdateSubcategory(ctx context.Context, sub *models.Subcategory) error
	DeleteSubcategory(ctx context.Context, id int64) error
}

// categoryRepository — конкретная реализация CategoryStorage.
type categoryRepository struct {
	db *sql.DB
}

// NewCategoryRepository создаёт новый репозиторий категорий.
func NewCategoryRepository(db *sql.DB) CategoryStorage {
	return &categoryRepository{db: db}
}

func (r *categoryRepository) ListTree(ctx context.Context) ([]*models.Category, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id, name, sort_order FROM categories ORDER BY sort_order, id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var categories []*models.Category
	byID := make(map[int64]*models.Category)
	for rows.Next() {
		category := &models.Category{Subcategories: []*models.Subcategory{}}
		if err := rows.Scan(&category.ID, &category.Name, &category.SortOrder); err != nil {
			return nil, err
		}
		categories = append(categories, category)
		byID[category.ID] = category
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	subRows, err := r.db.QueryContext(ctx,
		"SELECT id, category_id, name, sort_order FROM subcategories ORDER BY sort_order, id")
	if err != nil {
		return nil, err
	}
	defer subRows.Close()

	for subRows.Next() {
		sub := &models.Subcategory{}
		if err := subRows.Scan(&sub.ID, &sub.CategoryID, &sub.Name, &sub.SortOrder); err != nil {
			return nil, err
		}
		if parent, ok := byID[sub.CategoryID]; ok {
			parent.Subcategories = append(parent.Subcategories, sub)
		}
	}
	if err := subRows.Err(); err != nil {
		return nil, err
	}
	return categories, nil
}

func (r *categoryRepository) GetByID(ctx context.Context, id int64) (*models.Category, error) {
	category := &models.Category{Subcategories: []*models.Subcategory{}}
	row := r.db.QueryRowContext(ctx, "SELECT id, name, sort_order FROM categories WHERE id = $1", id)
	if err := row.Scan(&category.ID, &category.Name, &category.SortOrder); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCategoryNotFound
		}
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx,
		"SELECT id, category_id, name, sort_order FROM subcategories WHERE category_id = $1 ORDER BY sort_order, id", id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		sub := &models.Subcategory{}
		if err := rows.Scan(&sub.ID, &sub.CategoryID, &sub.Name, &sub.SortOrder); err != nil {
			return nil, err
		}
		category.Subcategories = append(category.Subcategories, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return category, nil
}

func (r *categoryRepository) Create(ctx context.Context, category *models.Category) (int64, error) {
	var id int64
	err := r.db.QueryRowContext(ctx,
		"INSERT INTO categories (name, sort_order) VALUES ($1, $2) RETURNING id",
		category.Name, category.SortOrder,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to create category: %w", err)
	}
	return id, nil
}

func (r *categoryRepository) Update(ctx context.Context, category *models.Category) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE categories SET name = $1, sort_order = $2 WHERE id = $3",
		category.Name, category.SortOrder, category.ID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrCategoryNotFound
	}
	return nil
}

// Delete удаляет категорию вместе с её подкатегориями.
// Проверка, что на категорию не ссылаются товары, выполняется сервисом.
func (r *categoryRepository) Delete(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM subcategories WHERE category_id = $1", id); err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, "DELETE FROM categories WHERE id = $1", id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrCategoryNotFound
	}
	return nil
}

func (r *categoryRepository) CreateSubcategory(ctx context.Context, sub *models.Subcategory) (int64, error) {
	var id int64
	err := r.db.QueryRowContext(ctx,
		"INSERT INTO subcategories (category_id, name, sort_order) VALUES ($1, $2, $3) RETURNING id",
		sub.CategoryID, sub.Name, sub.SortOrder,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to create subcategory: %w", err)
	}
	return id, nil
}

func (r *categoryRepository) GetSubcategoryByID(ctx context.Context, id int64) (*models.Subcategory, error) {
	sub := &models.Subcategory{}
	row := r.db.QueryRowContext(ctx,
		"SELECT id, category_id, name, sort_order FROM subcategories WHERE id = $1", id)
	if err := row.Scan(&sub.ID, &sub.CategoryID, &sub.Name, &sub.SortOrder); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSubcategoryNotFound
		}
		return nil, err
	}
	return sub, nil
}

func (r *categoryRepository) UpdateSubcategory(ctx context.Context, sub *models.Subcategory) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE subcategories SET name = $1, sort_order = $2 WHERE id = $3",
		sub.Name, sub.SortOrder, sub.ID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrSubcategoryNotFound
	}
	return nil
}

func (r *categoryRepository) DeleteSubcategory(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM subcategories WHERE id = $1", id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrSubcategoryNotFound
	}
	return nil
}
