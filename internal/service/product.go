package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mkorlev/packshop/internal/domain/models"
	"github.com/mkorlev/packshop/internal/storage"
)

// ProductList — страница каталога с параметрами пагинации.
type ProductList struct {
	Items []*models.Product `json:"items"`
	Total int               `json:"total"`
	Page  int               `json:"page"`
	Limit int               `json:"limit"`
	Pages int               `json:"pages"`
}

// ProductService определяет операции над товарами каталога.
type ProductService interface {
	List(ctx context.Context, filter storage.ProductFilter) (*ProductList, error)
	// GetByID возвращает только активный товар — для публичной карточки.
	GetByID(ctx context.Context, id int64) (*models.Product, error)
	Create(ctx context.Context, product *models.Product, imageFileIDs []string) (*models.Product, error)
	Update(ctx context.Context, product *models.Product) (*models.Product, error)
	// Delete деактивирует товар, если на него ссылаются заказы,
	// и удаляет физически в противном случае. Деактивация — единственный
	// путь убрать товар из продажи, не ломая исторические заказы.
	Delete(ctx context.Context, id int64) error
}

// productService — конкретная реализация ProductService.
type productService struct {
	log         *slog.Logger
	productRepo storage.ProductStorage
}

func NewProductService(log *slog.Logger, productRepo storage.ProductStorage) ProductService {
	return &productService{log: log, productRepo: productRepo}
}

func (s *productService) List(ctx context.Context, filter storage.ProductFilter) (*ProductList, error) {
	const op = "service.ProductService.List"

	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit < 1 {
		filter.Limit = 20
	}
	if filter.Limit > 100 {
		filter.Limit = 100
	}

	products, total, err := s.productRepo.List(ctx, filter)
	if err != nil {
		s.log.Error("failed to list products", slog.String("op", op), slog.Any("error", err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := s.attachImages(ctx, products); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	pages := 1
	if total > 0 {
		pages = (total + filter.Limit - 1) / filter.Limit
	}
	if products == nil {
		products = []*models.Product{}
	}
	return &ProductList{
		Items: products,
		Total: total,
		Page:  filter.Page,
		Limit: filter.Limit,
		Pages: pages,
	}, nil
}

func (s *productService) GetByID(ctx context.Context, id int64) (*models.Product, error) {
	const op = "service.ProductService.GetByID"
	product, err := s.productRepo.GetActiveByID(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrProductNotFound) {
			return nil, err
		}
		s.log.Error("failed to get product", slog.String("op", op), slog.Any("error", err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := s.attachImages(ctx, []*models.Product{product}); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return product, nil
}

func (s *productService) Create(ctx context.Context, product *models.Product, imageFileIDs []string) (*models.Product, error) {
	const op = "service.ProductService.Create"
	logger := s.log.With(slog.String("op", op), slog.String("name", product.Name))

	// Первая картинка дублируется в старое одиночное поле для совместимости
	if len(imageFileIDs) > 0 && product.ImageFileID == nil {
		product.ImageFileID = &imageFileIDs[0]
	}

	id, err := s.productRepo.Create(ctx, product)
	if err != nil {
		logger.Error("failed to create product", slog.Any("error", err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if len(imageFileIDs) > 0 {
		if err := s.productRepo.AddImages(ctx, id, imageFileIDs); err != nil {
			logger.Error("failed to add product images", slog.Any("error", err))
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}
	logger.Info("product created", slog.Int64("productID", id))

	created, err := s.productRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := s.attachImages(ctx, []*models.Product{created}); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return created, nil
}

func (s *productService) Update(ctx context.Context, product *models.Product) (*models.Product, error) {
	const op = "service.ProductService.Update"
	logger := s.log.With(slog.String("op", op), slog.Int64("productID", product.ID))

	if err := s.productRepo.Update(ctx, product); err != nil {
		if errors.Is(err, storage.ErrProductNotFound) {
			return nil, err
		}
		logger.Error("failed to update product", slog.Any("error", err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	updated, err := s.productRepo.GetByID(ctx, product.ID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := s.attachImages(ctx, []*models.Product{updated}); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return updated, nil
}

func (s *productService) Delete(ctx context.Context, id int64) error {
	const op = "service.ProductService.Delete"
	logger := s.log.With(slog.String("op", op), slog.Int64("productID", id))

	referenced, err := s.productRepo.HasOrderItems(ctx, id)
	if err != nil {
		logger.Error("failed to check order references", slog.Any("error", err))
		return fmt.Errorf("%s: %w", op, err)
	}
	if referenced {
		if err := s.productRepo.SetActive(ctx, id, false); err != nil {
			if errors.Is(err, storage.ErrProductNotFound) {
				return err
			}
			logger.Error("failed to deactivate product", slog.Any("error", err))
			return fmt.Errorf("%s: %w", op, err)
		}
		logger.Info("product deactivated (referenced by orders)")
		return nil
	}
	if err := s.productRepo.Delete(ctx, id); err != nil {
		if errors.Is(err, storage.ErrProductNotFound) {
			return err
		}
		logger.Error("failed to delete product", slog.Any("error", err))
		return fmt.Errorf("%s: %w", op, err)
	}
	logger.Info("product deleted")
	return nil
}

func (s *productService) attachImages(ctx context.Context, products []*models.Product) error {
	if len(products) == 0 {
		return nil
	}
	ids := make([]int64, 0, len(products))
	for _, p := range products {
		ids = append(ids, p.ID)
	}
	images, err := s.productRepo.ListImages(ctx, ids)
	if err != nil {
		return err
	}
	for _, p := range products {
		p.Images = images[p.ID]
		if p.Images == nil {
			p.Images = []*models.ProductImage{}
		}
	}
	return nil
}
