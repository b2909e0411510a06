package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/mkorlev/packshop/internal/domain/models"
	"github.com/mkorlev/packshop/internal/service"
)

var validate = validator.New()

// CartValidateRequest представляет входной JSON проверки корзины.
// Пустая корзина допустима: ответ valid=true с нулевой суммой.
type CartValidateRequest struct {
	Items []CartItemRequest `json:"items" validate:"dive"`
}

type CartItemRequest struct {
	ProductID     int64 `json:"product_id" validate:"required"`
	QuantityPacks int   `json:"quantity_packs" validate:"required,gte=1"`
}

func (r CartValidateRequest) lines() []models.CartLine {
	lines := make([]models.CartLine, 0, len(r.Items))
	for _, item := range r.Items {
		lines = append(lines, models.CartLine{ProductID: item.ProductID, QuantityPacks: item.QuantityPacks})
	}
	return lines
}

// ValidateCartHandler обрабатывает запрос POST /api/cart/validate.
// Результат носит рекомендательный характер — при оформлении заказа
// проверка выполняется повторно на сервере.
func ValidateCartHandler(log *slog.Logger, cartService service.CartService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.ValidateCartHandler"
		logger := log.With(slog.String("op", op))

		var req CartValidateRequest
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

		result, err := cartService.Validate(r.Context(), req.lines())
		if err != nil {
			logger.Error("cart validation failed", slog.Any("error", err))
			http.Error(w, "internal server error", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(result); err != nil {
			logger.Error("failed to encode response", slog.Any("error", err))
			http.Error(w, "internal server error", http.StatusInternalServerError)
			return
		}
	}
}
