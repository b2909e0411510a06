package service_test

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"testing"

	"github.com/mkorlev/packshop/internal/domain/models"
	"github.com/mkorlev/packshop/internal/service"
	"github.com/mkorlev/packshop/internal/storage"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

// fakeProductRepo — фиктивная реализация ProductStorage для тестов сервисов.
type fakeProductRepo struct {
	products map[int64]*models.Product
	// остаток, который увидит блокирующее чтение внутри транзакции —
	// так эмулируется изменение склада между валидацией и коммитом
	stockAtLock map[int64]int
	decrements  []decrementCall
	lookups     int
}

type decrementCall struct {
	productID int64
	packs     int
}

var _ storage.ProductStorage = (*fakeProductRepo)(nil)

func newFakeProductRepo(products ...*models.Product) *fakeProductRepo {
	repo := &fakeProductRepo{
		products:    make(map[int64]*models.Product),
		stockAtLock: make(map[int64]int),
	}
	for _, p := range products {
		repo.products[p.ID] = p
	}
	return repo
}

func (f *fakeProductRepo) GetByID(ctx context.Context, id int64) (*models.Product, error) {
	product, ok := f.products[id]
	if !ok {
		return nil, storage.ErrProductNotFound
	}
	return product, nil
}

func (f *fakeProductRepo) GetActiveByID(ctx context.Context, id int64) (*models.Product, error) {
	f.lookups++
	product, ok := f.products[id]
	if !ok || !product.Active {
		return nil, storage.ErrProductNotFound
	}
	return product, nil
}

func (f *fakeProductRepo) List(ctx context.Context, filter storage.ProductFilter) ([]*models.Product, int, error) {
	return nil, 0, nil
}

func (f *fakeProductRepo) Create(ctx context.Context, product *models.Product) (int64, error) {
	return 0, nil
}

func (f *fakeProductRepo) Update(ctx context.Context, product *models.Product) error { return nil }
func (f *fakeProductRepo) Delete(ctx context.Context, id int64) error                { return nil }
func (f *fakeProductRepo) SetActive(ctx context.Context, id int64, active bool) error {
	return nil
}
func (f *fakeProductRepo) HasOrderItems(ctx context.Context, id int64) (bool, error) {
	return false, nil
}
func (f *fakeProductRepo) CountByCategory(ctx context.Context, categoryID int64) (int, error) {
	count := 0
	for _, p := range f.products {
		if p.CategoryID == categoryID {
			count++
		}
	}
	return count, nil
}
func (f *fakeProductRepo) CountBySubcategory(ctx context.Context, subcategoryID int64) (int, error) {
	count := 0
	for _, p := range f.products {
		if p.SubcategoryID != nil && *p.SubcategoryID == subcategoryID {
			count++
		}
	}
	return count, nil
}
func (f *fakeProductRepo) AddImages(ctx context.Context, productID int64, fileIDs []string) error {
	return nil
}
func (f *fakeProductRepo) ListImages(ctx context.Context, productIDs []int64) (map[int64][]*models.ProductImage, error) {
	return map[int64][]*models.ProductImage{}, nil
}

func (f *fakeProductRepo) LockByIDTx(ctx context.Context, tx *sql.Tx, id int64) (*models.Product, error) {
	product, ok := f.products[id]
	if !ok {
		return nil, storage.ErrProductNotFound
	}
	if stock, ok := f.stockAtLock[id]; ok {
		clone := *product
		clone.InStock = &stock
		return &clone, nil
	}
	return product, nil
}

func (f *fakeProductRepo) DecrementStock(ctx context.Context, tx *sql.Tx, id int64, packs int) error {
	product, ok := f.products[id]
	if !ok || product.InStock == nil || *product.InStock < packs {
		return storage.ErrInsufficientStock
	}
	*product.InStock -= packs
	f.decrements = append(f.decrements, decrementCall{productID: id, packs: packs})
	return nil
}

func intPtr(v int) *int { return &v }

// типовой товар: 100₽ за штуку, 6 штук в пачке,
// минимальный заказ 1 пачка, 10 пачек на складе
func testProduct() *models.Product {
	return &models.Product{
		ID:            1,
		Name:          "Тетрадь 48л",
		PricePerUnit:  decimal.NewFromInt(100),
		PiecesPerPack: 6,
		MinOrderPacks: 1,
		InStock:       intPtr(10),
		Active:        true,
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, nil))
}

func TestCartValidate_Success(t *testing.T) {
	repo := newFakeProductRepo(testProduct())
	cartSvc := service.NewCartService(testLogger(), repo)

	result, err := cartSvc.Validate(context.Background(), []models.CartLine{
		{ProductID: 1, QuantityPacks: 2},
	})
	assert.NoError(t, err)
	assert.True(t, result.Valid)
	assert.Empty(t, result.Errors)
	// 2 пачки * 6 штук * 100₽
	assert.Equal(t, "1200.00", result.TotalAmount.StringFixed(2))
}

func TestCartValidate_InsufficientStock(t *testing.T) {
	repo := newFakeProductRepo(testProduct())
	cartSvc := service.NewCartService(testLogger(), repo)

	result, err := cartSvc.Validate(context.Background(), []models.CartLine{
		{ProductID: 1, QuantityPacks: 11},
	})
	assert.NoError(t, err)
	assert.False(t, result.Valid)
	assert.Len(t, result.Errors, 1)
	assert.Equal(t, service.ErrCodeInsufficientStock, result.Errors[0].Code)
	assert.Contains(t, result.Errors[0].Message, "10", "error should mention available packs")
	// ошибочная строка даёт нулевой вклад в сумму
	assert.Equal(t, "0.00", result.TotalAmount.StringFixed(2))
}

func TestCartValidate_BelowMinimumOrder(t *testing.T) {
	product := testProduct()
	product.MinOrderPacks = 5
	repo := newFakeProductRepo(product)
	cartSvc := service.NewCartService(testLogger(), repo)

	result, err := cartSvc.Validate(context.Background(), []models.CartLine{
		{ProductID: 1, QuantityPacks: 3},
	})
	assert.NoError(t, err)
	assert.False(t, result.Valid)
	assert.Len(t, result.Errors, 1)
	assert.Equal(t, service.ErrCodeBelowMinimumOrder, result.Errors[0].Code)
	assert.Contains(t, result.Errors[0].Message, "5")
}

func TestCartValidate_UnknownAndInactiveProduct(t *testing.T) {
	inactive := testProduct()
	inactive.ID = 2
	inactive.Active = false
	repo := newFakeProductRepo(testProduct(), inactive)
	cartSvc := service.NewCartService(testLogger(), repo)

	result, err := cartSvc.Validate(context.Background(), []models.CartLine{
		{ProductID: 99, QuantityPacks: 1}, // не существует
		{ProductID: 2, QuantityPacks: 1},  // деактивирован
		{ProductID: 1, QuantityPacks: 1},  // нормальная строка
	})
	assert.NoError(t, err)
	assert.False(t, result.Valid)
	assert.Len(t, result.Errors, 2, "each bad line gets its own error")
	assert.Equal(t, service.ErrCodeProductNotFound, result.Errors[0].Code)
	assert.Equal(t, int64(99), result.Errors[0].ProductID)
	assert.Equal(t, service.ErrCodeProductNotFound, result.Errors[1].Code)
	assert.Equal(t, int64(2), result.Errors[1].ProductID)
	// прошедшая строка всё равно посчитана
	assert.Equal(t, "600.00", result.TotalAmount.StringFixed(2))
}

func TestCartValidate_DuplicateLinesNotCoalesced(t *testing.T) {
	repo := newFakeProductRepo(testProduct())
	cartSvc := service.NewCartService(testLogger(), repo)

	// дубликаты — отдельные строки, каждая проверяется сама по себе
	result, err := cartSvc.Validate(context.Background(), []models.CartLine{
		{ProductID: 1, QuantityPacks: 2},
		{ProductID: 1, QuantityPacks: 3},
	})
	assert.NoError(t, err)
	assert.True(t, result.Valid)
	assert.Equal(t, "3000.00", result.TotalAmount.StringFixed(2))
}

func TestCartValidate_Pure(t *testing.T) {
	repo := newFakeProductRepo(testProduct())
	cartSvc := service.NewCartService(testLogger(), repo)
	lines := []models.CartLine{{ProductID: 1, QuantityPacks: 2}}

	first, err := cartSvc.Validate(context.Background(), lines)
	assert.NoError(t, err)
	second, err := cartSvc.Validate(context.Background(), lines)
	assert.NoError(t, err)

	// повторная валидация при неизменном каталоге даёт тот же результат
	assert.Equal(t, first.Valid, second.Valid)
	assert.True(t, first.TotalAmount.Equal(second.TotalAmount))
	// остатки не трогаются
	assert.Empty(t, repo.decrements)
	assert.Equal(t, 10, *repo.products[1].InStock)
}

func TestCartValidate_UnlimitedStock(t *testing.T) {
	product := testProduct()
	product.InStock = nil // остаток не отслеживается
	repo := newFakeProductRepo(product)
	cartSvc := service.NewCartService(testLogger(), repo)

	result, err := cartSvc.Validate(context.Background(), []models.CartLine{
		{ProductID: 1, QuantityPacks: 1000},
	})
	assert.NoError(t, err)
	assert.True(t, result.Valid)
	assert.Equal(t, fmt.Sprintf("%d.00", 1000*6*100), result.TotalAmount.StringFixed(2))
}
