package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mkorlev/packshop/internal/domain/models"
	"github.com/mkorlev/packshop/internal/lib/metrics"
	"github.com/mkorlev/packshop/internal/storage"
	"github.com/shopspring/decimal"
)

// CartInvalidError агрегирует построчные ошибки при оформлении заказа.
// Возвращается до создания каких-либо записей.
type CartInvalidError struct {
	Errors []LineError
}

func (e *CartInvalidError) Error() string {
	return fmt.Sprintf("cart validation failed: %d invalid lines", len(e.Errors))
}

// InsufficientStockError — авторитетный отказ по остатку внутри транзакции:
// между предварительной проверкой и оформлением остаток успел измениться.
type InsufficientStockError struct {
	ProductID   int64
	ProductName string
	Available   int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %d (%s): %d packs available",
		e.ProductID, e.ProductName, e.Available)
}

// OrderService определяет операции над заказами.
type OrderService interface {
	// Create оформляет заказ: валидирует корзину и атомарно создаёт заказ
	// со строками, списывая остатки. Операция не идемпотентна — повторный
	// вызов с теми же данными создаст второй заказ.
	Create(ctx context.Context, customer models.CustomerInfo, lines []models.CartLine) (*models.Order, error)
	GetByID(ctx context.Context, id int64) (*models.Order, error)
	GetByUser(ctx context.Context, telegramUserID int64) ([]*models.Order, error)
	List(ctx context.Context, status string) ([]*models.Order, error)
	UpdateStatus(ctx context.Context, id int64, status string) error
}

var ErrInvalidOrderStatus = errors.New("invalid order status")

// orderService — конкретная реализация OrderService.
type orderService struct {
	log         *slog.Logger
	db          *sql.DB
	productRepo storage.ProductStorage
	orderRepo   storage.OrderStorage
	cart        CartService
	notifier    OrderNotifier
}

func NewOrderService(log *slog.Logger, db *sql.DB, productRepo storage.ProductStorage,
	orderRepo storage.OrderStorage, cart CartService, notifier OrderNotifier) OrderService {
	return &orderService{
		log:         log,
		db:          db,
		productRepo: productRepo,
		orderRepo:   orderRepo,
		cart:        cart,
		notifier:    notifier,
	}
}

// Create оформляет заказ.
// Сначала корзина проверяется по текущему состоянию каталога (быстрый отказ),
// затем внутри одной транзакции каждый товар читается повторно с блокировкой
// строки, проверки прогоняются ещё раз и остатки списываются. Любая ошибка
// откатывает транзакцию целиком: ни заказа, ни строк, ни списаний.
func (s *orderService) Create(ctx context.Context, customer models.CustomerInfo, lines []models.CartLine) (*models.Order, error) {
	const op = "service.OrderService.Create"
	logger := s.log.With(slog.String("op", op), slog.Int64("telegramUserID", customer.TelegramUserID))
	logger.Info("starting order checkout")

	// Предварительная валидация — до открытия транзакции
	validation, err := s.cart.Validate(ctx, lines)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !validation.Valid {
		logger.Warn("cart rejected by validation", slog.Int("errors", len(validation.Errors)))
		return nil, &CartInvalidError{Errors: validation.Errors}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		logger.Error("failed to begin transaction", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to begin transaction: %w", op, err)
	}

	// Повторная, авторитетная проверка внутри транзакции: строки товаров
	// блокируются, снимки цены и фасовки фиксируются для строк заказа
	items := make([]*models.OrderItem, 0, len(lines))
	products := make([]*models.Product, 0, len(lines))
	// остаток с учётом уже списанных строк этого же заказа:
	// при дублях одного товара снимок из-под блокировки устаревает
	remaining := make(map[int64]int)
	total := decimal.Zero
	for _, line := range lines {
		product, err := s.productRepo.LockByIDTx(ctx, tx, line.ProductID)
		if err != nil {
			rollback(logger, tx)
			if errors.Is(err, storage.ErrProductNotFound) {
				return nil, &CartInvalidError{Errors: []LineError{notFoundLineError(line.ProductID)}}
			}
			logger.Error("failed to lock product", slog.Int64("productID", line.ProductID), slog.Any("error", err))
			return nil, fmt.Errorf("%s: failed to lock product %d: %w", op, line.ProductID, err)
		}
		if !product.Active {
			rollback(logger, tx)
			return nil, &CartInvalidError{Errors: []LineError{notFoundLineError(line.ProductID)}}
		}

		if lineErr := checkLine(product, line.QuantityPacks); lineErr != nil {
			rollback(logger, tx)
			if lineErr.Code == ErrCodeInsufficientStock {
				logger.Warn("stock changed between validation and commit",
					slog.Int64("productID", product.ID), slog.Int("requested", line.QuantityPacks))
				return nil, &InsufficientStockError{
					ProductID:   product.ID,
					ProductName: product.Name,
					Available:   *product.InStock,
				}
			}
			return nil, &CartInvalidError{Errors: []LineError{*lineErr}}
		}

		subtotal := lineSubtotal(product, line.QuantityPacks)
		products = append(products, product)
		if product.StockTracked() {
			if _, ok := remaining[product.ID]; !ok {
				remaining[product.ID] = *product.InStock
			}
		}
		items = append(items, &models.OrderItem{
			ProductID:      product.ID,
			ProductName:    product.Name,
			QuantityPacks:  line.QuantityPacks,
			QuantityPieces: line.QuantityPacks * product.PiecesPerPack,
			PricePerUnit:   product.PricePerUnit,
			Subtotal:       subtotal,
		})
		total = total.Add(subtotal)
	}

	// Итог заказа считается из тех же снимков, что и строки,
	// поэтому total_amount всегда равен сумме subtotal
	order := &models.Order{
		TelegramUserID:       customer.TelegramUserID,
		CustomerName:         customer.Name,
		CustomerOrganization: customer.Organization,
		CustomerPhone:        customer.Phone,
		TotalAmount:          total.Round(2),
		Status:               models.OrderStatusNew,
	}
	orderID, err := s.orderRepo.CreateOrder(ctx, tx, order)
	if err != nil {
		rollback(logger, tx)
		logger.Error("failed to create order", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to create order: %w", op, err)
	}

	for i, item := range items {
		item.OrderID = orderID
		if _, err := s.orderRepo.CreateOrderItem(ctx, tx, item); err != nil {
			rollback(logger, tx)
			logger.Error("failed to create order item", slog.Any("error", err))
			return nil, fmt.Errorf("%s: failed to create order item: %w", op, err)
		}
		if !products[i].StockTracked() {
			continue
		}
		// Строка уже заблокирована FOR UPDATE; условие в UPDATE остаётся
		// последней линией защиты от ухода остатка в минус
		if err := s.productRepo.DecrementStock(ctx, tx, item.ProductID, item.QuantityPacks); err != nil {
			rollback(logger, tx)
			if errors.Is(err, storage.ErrInsufficientStock) {
				return nil, &InsufficientStockError{
					ProductID:   item.ProductID,
					ProductName: item.ProductName,
					Available:   remaining[item.ProductID],
				}
			}
			logger.Error("failed to decrement stock", slog.Int64("productID", item.ProductID), slog.Any("error", err))
			return nil, fmt.Errorf("%s: failed to decrement stock for product %d: %w", op, item.ProductID, err)
		}
		remaining[item.ProductID] -= item.QuantityPacks
	}

	if err := tx.Commit(); err != nil {
		logger.Error("failed to commit transaction", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to commit transaction: %w", op, err)
	}

	metrics.OrdersCreated.Inc()
	logger.Info("order created", slog.Int64("orderID", orderID), slog.String("total", order.TotalAmount.String()))

	created, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		logger.Error("failed to load created order", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to load created order: %w", op, err)
	}

	// Уведомление админов не влияет на результат оформления
	if s.notifier != nil {
		go s.notifier.NotifyNewOrder(created)
	}
	return created, nil
}

func (s *orderService) GetByID(ctx context.Context, id int64) (*models.Order, error) {
	const op = "service.OrderService.GetByID"
	order, err := s.orderRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrOrderNotFound) {
			return nil, err
		}
		s.log.Error("failed to get order", slog.String("op", op), slog.Any("error", err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return order, nil
}

func (s *orderService) GetByUser(ctx context.Context, telegramUserID int64) ([]*models.Order, error) {
	const op = "service.OrderService.GetByUser"
	orders, err := s.orderRepo.GetByUserID(ctx, telegramUserID)
	if err != nil {
		s.log.Error("failed to get user orders", slog.String("op", op), slog.Any("error", err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return orders, nil
}

func (s *orderService) List(ctx context.Context, status string) ([]*models.Order, error) {
	const op = "service.OrderService.List"
	if status != "" && !models.ValidOrderStatus(status) {
		return nil, ErrInvalidOrderStatus
	}
	orders, err := s.orderRepo.List(ctx, status)
	if err != nil {
		s.log.Error("failed to list orders", slog.String("op", op), slog.Any("error", err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return orders, nil
}

func (s *orderService) UpdateStatus(ctx context.Context, id int64, status string) error {
	const op = "service.OrderService.UpdateStatus"
	logger := s.log.With(slog.String("op", op), slog.Int64("orderID", id), slog.String("status", status))

	if !models.ValidOrderStatus(status) {
		return ErrInvalidOrderStatus
	}
	if err := s.orderRepo.UpdateStatus(ctx, id, status); err != nil {
		if errors.Is(err, storage.ErrOrderNotFound) {
			return err
		}
		logger.Error("failed to update order status", slog.Any("error", err))
		return fmt.Errorf("%s: %w", op, err)
	}
	logger.Info("order status updated")
	return nil
}

// rollback откатывает транзакцию, логируя вторичную ошибку отката
func rollback(logger *slog.Logger, tx *sql.Tx) {
	if err := tx.Rollback(); err != nil {
		logger.Error("transaction rollback failed", slog.Any("error", err))
	}
}
