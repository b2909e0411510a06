package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mkorlev/packshop/internal/domain/models"
	"github.com/mkorlev/packshop/internal/lib/metrics"
	"github.com/mkorlev/packshop/internal/storage"
	"github.com/shopspring/decimal"
)

// Коды построчных ошибок валидации корзины
const (
	ErrCodeProductNotFound   = "PRODUCT_NOT_FOUND"
	ErrCodeBelowMinimumOrder = "BELOW_MINIMUM_ORDER"
	ErrCodeInsufficientStock = "INSUFFICIENT_STOCK"
)

const unknownProductName = "Неизвестный товар"

// LineError — ошибка по одной строке корзины.
type LineError struct {
	ProductID   int64  `json:"product_id"`
	ProductName string `json:"product_name"`
	Code        string `json:"code"`
	Message     string `json:"error"`
}

// ValidationResult — итог проверки корзины: либо сумма, либо список ошибок.
type ValidationResult struct {
	Valid       bool            `json:"valid"`
	Errors      []LineError     `json:"errors"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}

// CartService определяет интерфейс валидации корзины.
type CartService interface {
	Validate(ctx context.Context, lines []models.CartLine) (*ValidationResult, error)
}

// cartService — конкретная реализация CartService.
type cartService struct {
	log         *slog.Logger
	productRepo storage.ProductStorage
}

func NewCartService(log *slog.Logger, productRepo storage.ProductStorage) CartService {
	return &cartService{log: log, productRepo: productRepo}
}

// checkLine проверяет одну строку корзины против снимка товара.
// Возвращает nil, если строка проходит все проверки.
// Одна и та же функция используется и при предварительной валидации,
// и внутри транзакции оформления заказа — правила не должны расходиться.
func checkLine(product *models.Product, packs int) *LineError {
	if packs < product.MinOrderPacks {
		return &LineError{
			ProductID:   product.ID,
			ProductName: product.Name,
			Code:        ErrCodeBelowMinimumOrder,
			Message:     fmt.Sprintf("Минимальный заказ: %d пачек", product.MinOrderPacks),
		}
	}
	if product.StockTracked() && packs > *product.InStock {
		return &LineError{
			ProductID:   product.ID,
			ProductName: product.Name,
			Code:        ErrCodeInsufficientStock,
			Message:     fmt.Sprintf("Недостаточно товара. Доступно: %d пачек", *product.InStock),
		}
	}
	return nil
}

// lineSubtotal считает стоимость строки: пачки * штук в пачке * цена за штуку.
// Арифметика на decimal точная, округление выполняется один раз на итоговой сумме.
func lineSubtotal(product *models.Product, packs int) decimal.Decimal {
	pieces := int64(packs) * int64(product.PiecesPerPack)
	return product.PricePerUnit.Mul(decimal.NewFromInt(pieces))
}

func notFoundLineError(productID int64) LineError {
	return LineError{
		ProductID:   productID,
		ProductName: unknownProductName,
		Code:        ErrCodeProductNotFound,
		Message:     "Товар не найден или недоступен",
	}
}

// Validate проверяет строки корзины независимо друг от друга, в порядке подачи.
// Ошибка в одной строке не прерывает проверку остальных. Функция чисто читающая:
// состояние каталога не меняется, вызывать можно сколько угодно раз.
// Результат носит рекомендательный характер — авторитетная проверка выполняется
// повторно внутри транзакции оформления заказа.
func (s *cartService) Validate(ctx context.Context, lines []models.CartLine) (*ValidationResult, error) {
	const op = "service.CartService.Validate"
	logger := s.log.With(slog.String("op", op), slog.Int("lines", len(lines)))

	result := &ValidationResult{Errors: []LineError{}, TotalAmount: decimal.Zero}
	total := decimal.Zero

	for _, line := range lines {
		product, err := s.productRepo.GetActiveByID(ctx, line.ProductID)
		if err != nil {
			if errors.Is(err, storage.ErrProductNotFound) {
				result.Errors = append(result.Errors, notFoundLineError(line.ProductID))
				continue
			}
			logger.Error("failed to get product", slog.Int64("productID", line.ProductID), slog.Any("error", err))
			return nil, fmt.Errorf("%s: failed to get product %d: %w", op, line.ProductID, err)
		}

		if lineErr := checkLine(product, line.QuantityPacks); lineErr != nil {
			result.Errors = append(result.Errors, *lineErr)
			continue
		}

		total = total.Add(lineSubtotal(product, line.QuantityPacks))
	}

	// Ошибочные строки дают нулевой вклад, сумма считается по прошедшим строкам
	result.Valid = len(result.Errors) == 0
	result.TotalAmount = total.Round(2)

	metrics.CartValidations.Inc()
	if !result.Valid {
		metrics.CartValidationFailures.Inc()
		logger.Info("cart validation failed", slog.Int("errors", len(result.Errors)))
	}
	return result, nil
}
