package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mkorlev/packshop/internal/domain/models"
	"github.com/mkorlev/packshop/internal/storage"
)

// Ошибки удаления узлов каталога, на которые ещё ссылаются товары
var (
	ErrCategoryNotEmpty    = errors.New("category has products")
	ErrSubcategoryNotEmpty = errors.New("subcategory has products")
)

// CatalogService определяет операции над деревом категорий.
type CatalogService interface {
	GetTree(ctx context.Context) ([]*models.Category, error)
	GetCategory(ctx context.Context, id int64) (*models.Category, error)
	CreateCategory(ctx context.Context, name string, sortOrder int) (*models.Category, error)
	UpdateCategory(ctx context.Context, id int64, name string, sortOrder int) (*models.Category, error)
	DeleteCategory(ctx context.Context, id int64) error
	CreateSubcategory(ctx context.Context, categoryID int64, name string, sortOrder int) (*models.Subcategory, error)
	UpdateSubcategory(ctx context.Context, id int64, name string, sortOrder int) (*models.Subcategory, error)
	DeleteSubcategory(ctx context.Context, id int64) error
}

// catalogService — конкретная реализация CatalogService.
type catalogService struct {
	log          *slog.Logger
	categoryRepo storage.CategoryStorage
	productRepo  storage.ProductStorage
}

func NewCatalogService(log *slog.Logger, categoryRepo storage.CategoryStorage, productRepo storage.ProductStorage) CatalogService {
	return &catalogService{log: log, categoryRepo: categoryRepo, productRepo: productRepo}
}

func (s *catalogService) GetTree(ctx context.Context) ([]*models.Category, error) {
	const op = "service.CatalogService.GetTree"
	categories, err := s.categoryRepo.ListTree(ctx)
	if err != nil {
		s.log.Error("failed to load category tree", slog.String("op", op), slog.Any("error", err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return categories, nil
}

func (s *catalogService) GetCategory(ctx context.Context, id int64) (*models.Category, error) {
	const op = "service.CatalogService.GetCategory"
	category, err := s.categoryRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrCategoryNotFound) {
			return nil, err
		}
		s.log.Error("failed to get category", slog.String("op", op), slog.Any("error", err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return category, nil
}

func (s *catalogService) CreateCategory(ctx context.Context, name string, sortOrder int) (*models.Category, error) {
	const op = "service.CatalogService.CreateCategory"
	logger := s.log.With(slog.String("op", op), slog.String("name", name))

	category := &models.Category{Name: name, SortOrder: sortOrder, Subcategories: []*models.Subcategory{}}
	id, err := s.categoryRepo.Create(ctx, category)
	if err != nil {
		logger.Error("failed to create category", slog.Any("error", err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	category.ID = id
	logger.Info("category created", slog.Int64("categoryID", id))
	return category, nil
}

func (s *catalogService) UpdateCategory(ctx context.Context, id int64, name string, sortOrder int) (*models.Category, error) {
	const op = "service.CatalogService.UpdateCategory"
	logger := s.log.With(slog.String("op", op), slog.Int64("categoryID", id))

	category := &models.Category{ID: id, Name: name, SortOrder: sortOrder}
	if err := s.categoryRepo.Update(ctx, category); err != nil {
		if errors.Is(err, storage.ErrCategoryNotFound) {
			return nil, err
		}
		logger.Error("failed to update category", slog.Any("error", err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return s.categoryRepo.GetByID(ctx, id)
}

// DeleteCategory удаляет категорию, только если в ней нет товаров.
func (s *catalogService) DeleteCategory(ctx context.Context, id int64) error {
	const op = "service.CatalogService.DeleteCategory"
	logger := s.log.With(slog.String("op", op), slog.Int64("categoryID", id))

	count, err := s.productRepo.CountByCategory(ctx, id)
	if err != nil {
		logger.Error("failed to count category products", slog.Any("error", err))
		return fmt.Errorf("%s: %w", op, err)
	}
	if count > 0 {
		return ErrCategoryNotEmpty
	}
	if err := s.categoryRepo.Delete(ctx, id); err != nil {
		if errors.Is(err, storage.ErrCategoryNotFound) {
			return err
		}
		logger.Error("failed to delete category", slog.Any("error", err))
		return fmt.Errorf("%s: %w", op, err)
	}
	logger.Info("category deleted")
	return nil
}

func (s *catalogService) CreateSubcategory(ctx context.Context, categoryID int64, name string, sortOrder int) (*models.Subcategory, error) {
	const op = "service.CatalogService.CreateSubcategory"
	logger := s.log.With(slog.String("op", op), slog.Int64("categoryID", categoryID))

	// Родительская категория должна существовать
	if _, err := s.categoryRepo.GetByID(ctx, categoryID); err != nil {
		if errors.Is(err, storage.ErrCategoryNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	sub := &models.Subcategory{CategoryID: categoryID, Name: name, SortOrder: sortOrder}
	id, err := s.categoryRepo.CreateSubcategory(ctx, sub)
	if err != nil {
		logger.Error("failed to create subcategory", slog.Any("error", err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	sub.ID = id
	logger.Info("subcategory created", slog.Int64("subcategoryID", id))
	return sub, nil
}

func (s *catalogService) UpdateSubcategory(ctx context.Context, id int64, name string, sortOrder int) (*models.Subcategory, error) {
	const op = "service.CatalogService.UpdateSubcategory"
	logger := s.log.With(slog.String("op", op), slog.Int64("subcategoryID", id))

	sub := &models.Subcategory{ID: id, Name: name, SortOrder: sortOrder}
	if err := s.categoryRepo.UpdateSubcategory(ctx, sub); err != nil {
		if errors.Is(err, storage.ErrSubcategoryNotFound) {
			return nil, err
		}
		logger.Error("failed to update subcategory", slog.Any("error", err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return s.categoryRepo.GetSubcategoryByID(ctx, id)
}

// DeleteSubcategory удаляет подкатегорию, только если в ней нет товаров.
func (s *catalogService) DeleteSubcategory(ctx context.Context, id int64) error {
	const op = "service.CatalogService.DeleteSubcategory"
	logger := s.log.With(slog.String("op", op), slog.Int64("subcategoryID", id))

	count, err := s.productRepo.CountBySubcategory(ctx, id)
	if err != nil {
		logger.Error("failed to count subcategory products", slog.Any("error", err))
		return fmt.Errorf("%s: %w", op, err)
	}
	if count > 0 {
		return ErrSubcategoryNotEmpty
	}
	if err := s.categoryRepo.DeleteSubcategory(ctx, id); err != nil {
		if errors.Is(err, storage.ErrSubcategoryNotFound) {
			return err
		}
		logger.Error("failed to delete subcategory", slog.Any("error", err))
		return fmt.Errorf("%s: %w", op, err)
	}
	logger.Info("subcategory deleted")
	return nil
}
