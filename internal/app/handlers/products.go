package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/mkorlev/packshop/internal/domain/models"
	"github.com/mkorlev/packshop/internal/service"
	"github.com/mkorlev/packshop/internal/storage"
	"github.com/shopspring/decimal"
)

// ProductRequest представляет входной JSON создания/обновления товара
type ProductRequest struct {
	CategoryID    int64           `json:"category_id" validate:"required"`
	SubcategoryID *int64          `json:"subcategory_id"`
	Name          string          `json:"name" validate:"required"`
	Description   string          `json:"description"`
	PricePerUnit  decimal.Decimal `json:"price_per_unit" validate:"required"`
	PiecesPerPack int             `json:"pieces_per_pack" validate:"gte=1"`
	MinOrderPacks int             `json:"min_order_packs" validate:"gte=1"`
	ImageURL      *string         `json:"image_url"`
	ImageFileID   *string         `json:"image_file_id"`
	InStock       *int            `json:"in_stock"`
	Active        *bool           `json:"active"`
	Images        []string        `json:"images"` // file_id дополнительных изображений
}

func (r ProductRequest) toModel() *models.Product {
	product := &models.Product{
		CategoryID:    r.CategoryID,
		SubcategoryID: r.SubcategoryID,
		Name:          r.Name,
		Description:   r.Description,
		PricePerUnit:  r.PricePerUnit,
		PiecesPerPack: r.PiecesPerPack,
		MinOrderPacks: r.MinOrderPacks,
		ImageURL:      r.ImageURL,
		ImageFileID:   r.ImageFileID,
		InStock:       r.InStock,
		Active:        true,
	}
	if r.Active != nil {
		product.Active = *r.Active
	}
	if product.PiecesPerPack == 0 {
		product.PiecesPerPack = 1
	}
	if product.MinOrderPacks == 0 {
		product.MinOrderPacks = 1
	}
	return product
}

func parseProductFilter(r *http.Request) storage.ProductFilter {
	q := r.URL.Query()
	filter := storage.ProductFilter{
		Search:     q.Get("q"),
		Sort:       q.Get("sort"),
		ActiveOnly: true,
	}
	if v, err := strconv.ParseInt(q.Get("category"), 10, 64); err == nil {
		filter.CategoryID = &v
	}
	if v, err := strconv.ParseInt(q.Get("subcategory"), 10, 64); err == nil {
		filter.SubcategoryID = &v
	}
	filter.Page, _ = strconv.Atoi(q.Get("page"))
	filter.Limit, _ = strconv.Atoi(q.Get("limit"))
	return filter
}

// ProductsHandler обрабатывает запрос GET /api/products
// с фильтрацией, сортировкой и пагинацией.
func ProductsHandler(log *slog.Logger, productService service.ProductService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.ProductsHandler"
		logger := log.With(slog.String("op", op))

		list, err := productService.List(r.Context(), parseProductFilter(r))
		if err != nil {
			logger.Error("failed to list products", slog.Any("error", err))
			http.Error(w, "internal server error", http.StatusInternalServerError)
			return
		}
		writeJSON(logger, w, http.StatusOK, list)
	}
}

// ProductHandler обрабатывает запрос GET /api/products/{id}
func ProductHandler(log *slog.Logger, productService service.ProductService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.ProductHandler"
		logger := log.With(slog.String("op", op))

		id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil {
			http.Error(w, "invalid product id", http.StatusBadRequest)
			return
		}

		product, err := productService.GetByID(r.Context(), id)
		if err != nil {
			if errors.Is(err, storage.ErrProductNotFound) {
				http.Error(w, "Товар не найден", http.StatusNotFound)
				return
			}
			logger.Error("failed to get product", slog.Any("error", err))
			http.Error(w, "internal server error", http.StatusInternalServerError)
			return
		}
		writeJSON(logger, w, http.StatusOK, product)
	}
}

// CreateProductHandler обрабатывает запрос POST /api/products (только админ)
func CreateProductHandler(log *slog.Logger, productService service.ProductService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.CreateProductHandler"
		logger := log.With(slog.String("op", op))

		var req ProductRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			logger.Error("invalid request: decoding error", slog.Any("error", err))
			http.Error(w, "invalid request", http.StatusBadRequest)
			return
		}
		if err := validate.Struct(req); err != nil {
			logger.Error("invalid request: validation error", slog.Any("error", err))
			http.Error(w, "validation error", http.StatusBadRequest)
			return
		}
		if req.PricePerUnit.LessThanOrEqual(decimal.Zero) {
			http.Error(w, "price_per_unit must be positive", http.StatusBadRequest)
			return
		}

		product, err := productService.Create(r.Context(), req.toModel(), req.Images)
		if err != nil {
			logger.Error("failed to create product", slog.Any("error", err))
			http.Error(w, "internal server error", http.StatusInternalServerError)
			return
		}
		writeJSON(logger, w, http.StatusOK, product)
	}
}

// UpdateProductHandler обрабатывает запрос PUT /api/products/{id} (только админ)
func UpdateProductHandler(log *slog.Logger, productService service.ProductService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.UpdateProductHandler"
		logger := log.With(slog.String("op", op))

		id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil {
			http.Error(w, "invalid product id", http.StatusBadRequest)
			return
		}

		var req ProductRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			logger.Error("invalid request: decoding error", slog.Any("error", err))
			http.Error(w, "invalid request", http.StatusBadRequest)
			return
		}
		if err := validate.Struct(req); err != nil {
			logger.Error("invalid request: validation error", slog.Any("error", err))
			http.Error(w, "validation error", http.StatusBadRequest)
			return
		}

		product := req.toModel()
		product.ID = id
		updated, err := productService.Update(r.Context(), product)
		if err != nil {
			if errors.Is(err, storage.ErrProductNotFound) {
				http.Error(w, "Товар не найден", http.StatusNotFound)
				return
			}
			logger.Error("failed to update product", slog.Any("error", err))
			http.Error(w, "internal server error", http.StatusInternalServerError)
			return
		}
		writeJSON(logger, w, http.StatusOK, updated)
	}
}

// DeleteProductHandler обрабатывает запрос DELETE /api/products/{id} (только админ)
func DeleteProductHandler(log *slog.Logger, productService service.ProductService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.DeleteProductHandler"
		logger := log.With(slog.String("op", op))

		id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil {
			http.Error(w, "invalid product id", http.StatusBadRequest)
			return
		}

		if err := productService.Delete(r.Context(), id); err != nil {
			if errors.Is(err, storage.ErrProductNotFound) {
				http.Error(w, "Товар не найден", http.StatusNotFound)
				return
			}
			logger.Error("failed to delete product", slog.Any("error", err))
			http.Error(w, "internal server error", http.StatusInternalServerError)
			return
		}
		writeJSON(logger, w, http.StatusOK, MessageResponse{Message: "Товар удалён"})
	}
}
