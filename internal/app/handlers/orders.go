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

// OrderCreateRequest представляет входной JSON оформления заказа
type OrderCreateRequest struct {
	CustomerName         string            `json:"customer_name" validate:"required,min=1"`
	CustomerOrganization *string           `json:"customer_organization"`
	CustomerPhone        string            `json:"customer_phone" validate:"required,min=5"`
	TelegramUserID       int64             `json:"telegram_user_id" validate:"required"`
	Items                []CartItemRequest `json:"items" validate:"required,min=1,dive"`
}

// orderErrorResponse — тело ответа при отказе в оформлении
type orderErrorResponse struct {
	Message string              `json:"message"`
	Errors  []service.LineError `json:"errors,omitempty"`
}

// OrderListResponse — список заказов
type OrderListResponse struct {
	Orders []*models.Order `json:"orders"`
}

// CreateOrderHandler обрабатывает запрос POST /api/orders.
// Невалидная корзина — 400 с построчными ошибками, гонка по остатку — 409.
func CreateOrderHandler(log *slog.Logger, orderService service.OrderService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.CreateOrderHandler"
		logger := log.With(slog.String("op", op))

		var req OrderCreateRequest
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

		customer := models.CustomerInfo{
			TelegramUserID: req.TelegramUserID,
			Name:           req.CustomerName,
			Organization:   req.CustomerOrganization,
			Phone:          req.CustomerPhone,
		}
		lines := CartValidateRequest{Items: req.Items}.lines()

		order, err := orderService.Create(r.Context(), customer, lines)
		if err != nil {
			var cartErr *service.CartInvalidError
			var stockErr *service.InsufficientStockError
			switch {
			case errors.As(err, &cartErr):
				logger.Warn("order rejected: invalid cart", slog.Int("errors", len(cartErr.Errors)))
				writeJSON(logger, w, http.StatusBadRequest, orderErrorResponse{
					Message: "Ошибка валидации корзины",
					Errors:  cartErr.Errors,
				})
			case errors.As(err, &stockErr):
				logger.Warn("order rejected: stock changed during commit",
					slog.Int64("productID", stockErr.ProductID), slog.Int("available", stockErr.Available))
				writeJSON(logger, w, http.StatusConflict, orderErrorResponse{
					Message: "Недостаточно товара на складе",
					Errors: []service.LineError{{
						ProductID:   stockErr.ProductID,
						ProductName: stockErr.ProductName,
						Code:        service.ErrCodeInsufficientStock,
						Message:     "Недостаточно товара. Доступно: " + strconv.Itoa(stockErr.Available) + " пачек",
					}},
				})
			default:
				logger.Error("failed to create order", slog.Any("error", err))
				http.Error(w, "internal server error", http.StatusInternalServerError)
			}
			return
		}

		writeJSON(logger, w, http.StatusOK, order)
	}
}

// MyOrdersHandler обрабатывает запрос GET /api/orders/me?telegram_user_id=...
func MyOrdersHandler(log *slog.Logger, orderService service.OrderService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.MyOrdersHandler"
		logger := log.With(slog.String("op", op))

		telegramUserID, err := strconv.ParseInt(r.URL.Query().Get("telegram_user_id"), 10, 64)
		if err != nil {
			logger.Error("invalid telegram_user_id parameter")
			http.Error(w, "telegram_user_id parameter is required", http.StatusBadRequest)
			return
		}

		orders, err := orderService.GetByUser(r.Context(), telegramUserID)
		if err != nil {
			logger.Error("failed to get orders", slog.Any("error", err))
			http.Error(w, "internal server error", http.StatusInternalServerError)
			return
		}
		if orders == nil {
			orders = []*models.Order{}
		}
		writeJSON(logger, w, http.StatusOK, OrderListResponse{Orders: orders})
	}
}

// OrderHandler обрабатывает запрос GET /api/orders/{id}
func OrderHandler(log *slog.Logger, orderService service.OrderService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.OrderHandler"
		logger := log.With(slog.String("op", op))

		id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil {
			http.Error(w, "invalid order id", http.StatusBadRequest)
			return
		}

		order, err := orderService.GetByID(r.Context(), id)
		if err != nil {
			if errors.Is(err, storage.ErrOrderNotFound) {
				http.Error(w, "Заказ не найден", http.StatusNotFound)
				return
			}
			logger.Error("failed to get order", slog.Any("error", err))
			http.Error(w, "internal server error", http.StatusInternalServerError)
			return
		}
		writeJSON(logger, w, http.StatusOK, order)
	}
}

// OrdersHandler обрабатывает запрос GET /api/orders?status=... (только админ)
func OrdersHandler(log *slog.Logger, orderService service.OrderService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.OrdersHandler"
		logger := log.With(slog.String("op", op))

		orders, err := orderService.List(r.Context(), r.URL.Query().Get("status"))
		if err != nil {
			if errors.Is(err, service.ErrInvalidOrderStatus) {
				http.Error(w, "invalid status filter", http.StatusBadRequest)
				return
			}
			logger.Error("failed to list orders", slog.Any("error", err))
			http.Error(w, "internal server error", http.StatusInternalServerError)
			return
		}
		if orders == nil {
			orders = []*models.Order{}
		}
		writeJSON(logger, w, http.StatusOK, OrderListResponse{Orders: orders})
	}
}

// OrderStatusHandler обрабатывает запрос PUT /api/orders/{id}/status?status=... (только админ)
func OrderStatusHandler(log *slog.Logger, orderService service.OrderService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.OrderStatusHandler"
		logger := log.With(slog.String("op", op))

		id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil {
			http.Error(w, "invalid order id", http.StatusBadRequest)
			return
		}
		status := r.URL.Query().Get("status")

		if err := orderService.UpdateStatus(r.Context(), id, status); err != nil {
			switch {
			case errors.Is(err, service.ErrInvalidOrderStatus):
				http.Error(w, "Неверный статус. Допустимые: new, accepted, rejected, completed", http.StatusBadRequest)
			case errors.Is(err, storage.ErrOrderNotFound):
				http.Error(w, "Заказ не найден", http.StatusNotFound)
			default:
				logger.Error("failed to update order status", slog.Any("error", err))
				http.Error(w, "internal server error", http.StatusInternalServerError)
			}
			return
		}

		writeJSON(logger, w, http.StatusOK, MessageResponse{
			Message: "Статус заказа #" + strconv.FormatInt(id, 10) + " изменён на '" + status + "'",
		})
	}
}

// MessageResponse — простой ответ с сообщением
type MessageResponse struct {
	Message string `json:"message"`
	ID      *int64 `json:"id,omitempty"`
}

func writeJSON(logger *slog.Logger, w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("failed to encode response", slog.Any("error", err))
	}
}
