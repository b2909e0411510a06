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
)

// CategoryRequest представляет входной JSON создания/обновления категории
type CategoryRequest struct {
	Name      string `json:"name" validate:"required"`
	SortOrder int    `json:"order"`
}

// CategoryTreeResponse — дерево категорий с подкатегориями
type CategoryTreeResponse struct {
	Categories []*models.Category `json:"categories"`
}

// CategoriesHandler обрабатывает запрос GET /api/categories
func CategoriesHandler(log *slog.Logger, catalogService service.CatalogService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.CategoriesHandler"
		logger := log.With(slog.String("op", op))

		categories, err := catalogService.GetTree(r.Context())
		if err != nil {
			logger.Error("failed to get categories", slog.Any("error", err))
			http.Error(w, "internal server error", http.StatusInternalServerError)
			return
		}
		if categories == nil {
			categories = []*models.Category{}
		}
		writeJSON(logger, w, http.StatusOK, CategoryTreeResponse{Categories: categories})
	}
}

// CategoryHandler обрабатывает запрос GET /api/categories/{id}
func CategoryHandler(log *slog.Logger, catalogService service.CatalogService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.CategoryHandler"
		logger := log.With(slog.String("op", op))

		id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil {
			http.Error(w, "invalid category id", http.StatusBadRequest)
			return
		}

		category, err := catalogService.GetCategory(r.Context(), id)
		if err != nil {
			if errors.Is(err, storage.ErrCategoryNotFound) {
				http.Error(w, "Категория не найдена", http.StatusNotFound)
				return
			}
			logger.Error("failed to get category", slog.Any("error", err))
			http.Error(w, "internal server error", http.StatusInternalServerError)
			return
		}
		writeJSON(logger, w, http.StatusOK, category)
	}
}

// CreateCategoryHandler обрабатывает запрос POST /api/categories (только админ)
func CreateCategoryHandler(log *slog.Logger, catalogService service.CatalogService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.CreateCategoryHandler"
		logger := log.With(slog.String("op", op))

		var req CategoryRequest
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

		category, err := catalogService.CreateCategory(r.Context(), req.Name, req.SortOrder)
		if err != nil {
			logger.Error("failed to create category", slog.Any("error", err))
			http.Error(w, "internal server error", http.StatusInternalServerError)
			return
		}
		writeJSON(logger, w, http.StatusOK, category)
	}
}

// UpdateCategoryHandler обрабатывает запрос PUT /api/categories/{id} (только админ)
func UpdateCategoryHandler(log *slog.Logger, catalogService service.CatalogService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.UpdateCategoryHandler"
		logger := log.With(slog.String("op", op))

		id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil {
			http.Error(w, "invalid category id", http.StatusBadRequest)
			return
		}

		var req CategoryRequest
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

		category, err := catalogService.UpdateCategory(r.Context(), id, req.Name, req.SortOrder)
		if err != nil {
			if errors.Is(err, storage.ErrCategoryNotFound) {
				http.Error(w, "Категория не найдена", http.StatusNotFound)
				return
			}
			logger.Error("failed to update category", slog.Any("error", err))
			http.Error(w, "internal server error", http.StatusInternalServerError)
			return
		}
		writeJSON(logger, w, http.StatusOK, category)
	}
}

// DeleteCategoryHandler обрабатывает запрос DELETE /api/categories/{id} (только админ)
func DeleteCategoryHandler(log *slog.Logger, catalogService service.CatalogService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.DeleteCategoryHandler"
		logger := log.With(slog.String("op", op))

		id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil {
			http.Error(w, "invalid category id", http.StatusBadRequest)
			return
		}

		if err := catalogService.DeleteCategory(r.Context(), id); err != nil {
			switch {
			case errors.Is(err, storage.ErrCategoryNotFound):
				http.Error(w, "Категория не найдена", http.StatusNotFound)
			case errors.Is(err, service.ErrCategoryNotEmpty):
				http.Error(w, "Нельзя удалить категорию с товарами", http.StatusConflict)
			default:
				logger.Error("failed to delete category", slog.Any("error", err))
				http.Error(w, "internal server error", http.StatusInternalServerError)
			}
			return
		}
		writeJSON(logger, w, http.StatusOK, MessageResponse{Message: "Категория удалена"})
	}
}

// SubcategoryRequest представляет входной JSON создания подкатегории
type SubcategoryRequest struct {
	Name      string `json:"name" validate:"required"`
	SortOrder int    `json:"order"`
}

// CreateSubcategoryHandler обрабатывает запрос POST /api/categories/{id}/subcategories (только админ)
func CreateSubcategoryHandler(log *slog.Logger, catalogService service.CatalogService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.CreateSubcategoryHandler"
		logger := log.With(slog.String("op", op))

		categoryID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil {
			http.Error(w, "invalid category id", http.StatusBadRequest)
			return
		}

		var req SubcategoryRequest
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

		sub, err := catalogService.CreateSubcategory(r.Context(), categoryID, req.Name, req.SortOrder)
		if err != nil {
			if errors.Is(err, storage.ErrCategoryNotFound) {
				http.Error(w, "Категория не найдена", http.StatusNotFound)
				return
			}
			logger.Error("failed to create subcategory", slog.Any("error", err))
			http.Error(w, "internal server error", http.StatusInternalServerError)
			return
		}
		writeJSON(logger, w, http.StatusOK, sub)
	}
}

// UpdateSubcategoryHandler обрабатывает запрос PUT /api/subcategories/{id} (только админ)
func UpdateSubcategoryHandler(log *slog.Logger, catalogService service.CatalogService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.UpdateSubcategoryHandler"
		logger := log.With(slog.String("op", op))

		id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil {
			http.Error(w, "invalid subcategory id", http.StatusBadRequest)
			return
		}

		var req SubcategoryRequest
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

		sub, err := catalogService.UpdateSubcategory(r.Context(), id, req.Name, req.SortOrder)
		if err != nil {
			if errors.Is(err, storage.ErrSubcategoryNotFound) {
				http.Error(w, "Подкатегория не найдена", http.StatusNotFound)
				return
			}
			logger.Error("failed to update subcategory", slog.Any("error", err))
			http.Error(w, "internal server error", http.StatusInternalServerError)
			return
		}
		writeJSON(logger, w, http.StatusOK, sub)
	}
}

// DeleteSubcategoryHandler обрабатывает запрос DELETE /api/subcategories/{id} (только админ)
func DeleteSubcategoryHandler(log *slog.Logger, catalogService service.CatalogService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.DeleteSubcategoryHandler"
		logger := log.With(slog.String("op", op))

		id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil {
			http.Error(w, "invalid subcategory id", http.StatusBadRequest)
			return
		}

		if err := catalogService.DeleteSubcategory(r.Context(), id); err != nil {
			switch {
			case errors.Is(err, storage.ErrSubcategoryNotFound):
				http.Error(w, "Подкатегория не найдена", http.StatusNotFound)
			case errors.Is(err, service.ErrSubcategoryNotEmpty):
				http.Error(w, "Нельзя удалить подкатегорию с товарами", http.StatusConflict)
			default:
				logger.Error("failed to delete subcategory", slog.Any("error", err))
				http.Error(w, "internal server error", http.StatusInternalServerError)
			}
			return
		}
		writeJSON(logger, w, http.StatusOK, MessageResponse{Message: "Подкатегория удалена"})
	}
}
