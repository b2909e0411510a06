package storage_test

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/mkorlev/packshop/internal/domain/models"
	"github.com/mkorlev/packshop/internal/storage"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

var productTestColumns = []string{
	"id", "category_id", "subcategory_id", "name", "description", "price_per_unit",
	"pieces_per_pack", "min_order_packs", "image_url", "image_file_id", "in_stock",
	"active", "created_at", "updated_at",
}

func productRow(id int64, name string, price string, inStock any, active bool) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows(productTestColumns).
		AddRow(id, int64(1), nil, name, "описание", price, 6, 1, nil, nil, inStock, active, now, now)
}

func TestGetActiveProductByID_Success(t *testing.T) {
	// Создаем sqlmock для эмуляции базы данных.
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	repo := storage.NewProductRepository(db)
	ctx := context.Background()
	productID := int64(1)

	// Подготавливаем ожидаемую строку товара.
	mock.ExpectQuery("FROM products WHERE id = \\$1 AND active = TRUE").
		WithArgs(productID).
		WillReturnRows(productRow(productID, "Тетрадь 48л", "100.00", 10, true))

	product, err := repo.GetActiveByID(ctx, productID)
	assert.NoError(t, err)
	assert.Equal(t, productID, product.ID)
	assert.Equal(t, "Тетрадь 48л", product.Name)
	assert.True(t, product.PricePerUnit.Equal(decimal.NewFromInt(100)))
	assert.Equal(t, 6, product.PiecesPerPack)
	assert.True(t, product.StockTracked())
	assert.Equal(t, 10, *product.InStock)

	// Проверяем, что все ожидания sqlmock выполнены.
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetActiveProductByID_NoRows(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	repo := storage.NewProductRepository(db)
	ctx := context.Background()

	// Эмулируем ситуацию, когда запрос возвращает 0 строк.
	mock.ExpectQuery("FROM products WHERE id = \\$1 AND active = TRUE").
		WithArgs(int64(42)).
		WillReturnRows(sqlmock.NewRows(productTestColumns))

	product, err := repo.GetActiveByID(ctx, int64(42))
	assert.ErrorIs(t, err, storage.ErrProductNotFound)
	assert.Nil(t, product)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetProductByID_UnlimitedStock(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	repo := storage.NewProductRepository(db)
	ctx := context.Background()

	// NULL в in_stock означает неотслеживаемый остаток.
	mock.ExpectQuery("FROM products WHERE id = \\$1").
		WithArgs(int64(7)).
		WillReturnRows(productRow(7, "Скрепки", "5.50", nil, true))

	product, err := repo.GetByID(ctx, int64(7))
	assert.NoError(t, err)
	assert.False(t, product.StockTracked())
	assert.Nil(t, product.InStock)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDecrementStock_Success(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	repo := storage.NewProductRepository(db)
	ctx := context.Background()

	mock.ExpectBegin()
	// Условие in_stock >= $1 не даёт остатку уйти в минус.
	mock.ExpectExec(regexp.QuoteMeta(
		"UPDATE products SET in_stock = in_stock - $1, updated_at = NOW() WHERE id = $2 AND in_stock >= $1")).
		WithArgs(2, int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	tx, err := db.Begin()
	assert.NoError(t, err)

	err = repo.DecrementStock(ctx, tx, int64(1), 2)
	assert.NoError(t, err)
	assert.NoError(t, tx.Commit())

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDecrementStock_Insufficient(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	repo := storage.NewProductRepository(db)
	ctx := context.Background()

	mock.ExpectBegin()
	// 0 затронутых строк — остатка не хватает.
	mock.ExpectExec(regexp.QuoteMeta(
		"UPDATE products SET in_stock = in_stock - $1, updated_at = NOW() WHERE id = $2 AND in_stock >= $1")).
		WithArgs(99, int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	tx, err := db.Begin()
	assert.NoError(t, err)

	err = repo.DecrementStock(ctx, tx, int64(1), 99)
	assert.ErrorIs(t, err, storage.ErrInsufficientStock)
	assert.NoError(t, tx.Rollback())

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLockProductByIDTx_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	repo := storage.NewProductRepository(db)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectQuery("FROM products WHERE id = \\$1 FOR UPDATE NOWAIT").
		WithArgs(int64(404)).
		WillReturnRows(sqlmock.NewRows(productTestColumns))
	mock.ExpectRollback()

	tx, err := db.Begin()
	assert.NoError(t, err)

	product, err := repo.LockByIDTx(ctx, tx, int64(404))
	assert.ErrorIs(t, err, storage.ErrProductNotFound)
	assert.Nil(t, product)
	assert.NoError(t, tx.Rollback())

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateOrder_Success(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	repo := storage.NewOrderRepository(db)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO orders").
		WithArgs(int64(555), "Иван Петров", nil, "+79001234567", sqlmock.AnyArg(), "new").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(3)))
	mock.ExpectQuery("INSERT INTO order_items").
		WithArgs(int64(3), int64(1), 2, 12, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(1)))
	mock.ExpectCommit()

	tx, err := db.Begin()
	assert.NoError(t, err)

	orderID, err := repo.CreateOrder(ctx, tx, &models.Order{
		TelegramUserID: 555,
		CustomerName:   "Иван Петров",
		CustomerPhone:  "+79001234567",
		TotalAmount:    decimal.RequireFromString("1200.00"),
		Status:         models.OrderStatusNew,
	})
	assert.NoError(t, err)
	assert.Equal(t, int64(3), orderID)

	itemID, err := repo.CreateOrderItem(ctx, tx, &models.OrderItem{
		OrderID:        orderID,
		ProductID:      1,
		QuantityPacks:  2,
		QuantityPieces: 12,
		PricePerUnit:   decimal.NewFromInt(100),
		Subtotal:       decimal.RequireFromString("1200.00"),
	})
	assert.NoError(t, err)
	assert.Equal(t, int64(1), itemID)
	assert.NoError(t, tx.Commit())

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetOrderByID_WithDeletedProduct(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	repo := storage.NewOrderRepository(db)
	ctx := context.Background()
	now := time.Now()

	orderRows := sqlmock.NewRows([]string{
		"id", "telegram_user_id", "customer_name", "customer_organization",
		"customer_phone", "total_amount", "status", "created_at",
	}).AddRow(int64(3), int64(555), "Иван Петров", nil, "+79001234567", "1200.00", "new", now)

	mock.ExpectQuery("FROM orders WHERE id = \\$1").
		WithArgs(int64(3)).WillReturnRows(orderRows)

	// Товар удалён — JOIN подставляет имя-заглушку вместо NULL.
	itemRows := sqlmock.NewRows([]string{
		"id", "order_id", "product_id", "name",
		"quantity_packs", "quantity_pieces", "price_per_unit", "subtotal",
	}).AddRow(int64(1), int64(3), int64(1), "Удалённый товар", 2, 12, "100.00", "1200.00")

	mock.ExpectQuery("FROM order_items oi").
		WillReturnRows(itemRows)

	order, err := repo.GetByID(ctx, int64(3))
	assert.NoError(t, err)
	assert.Equal(t, int64(3), order.ID)
	assert.Equal(t, "1200.00", order.TotalAmount.StringFixed(2))
	assert.Len(t, order.Items, 1)
	assert.Equal(t, "Удалённый товар", order.Items[0].ProductName)
	assert.Equal(t, 12, order.Items[0].QuantityPieces)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetOrderByID_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	repo := storage.NewOrderRepository(db)
	ctx := context.Background()

	mock.ExpectQuery("FROM orders WHERE id = \\$1").
		WithArgs(int64(404)).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "telegram_user_id", "customer_name", "customer_organization",
			"customer_phone", "total_amount", "status", "created_at",
		}))

	order, err := repo.GetByID(ctx, int64(404))
	assert.ErrorIs(t, err, storage.ErrOrderNotFound)
	assert.Nil(t, order)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateOrderStatus(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	repo := storage.NewOrderRepository(db)
	ctx := context.Background()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE orders SET status = $1 WHERE id = $2")).
		WithArgs("accepted", int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = repo.UpdateStatus(ctx, int64(3), "accepted")
	assert.NoError(t, err)

	// Обновление несуществующего заказа возвращает ErrOrderNotFound.
	mock.ExpectExec(regexp.QuoteMeta("UPDATE orders SET status = $1 WHERE id = $2")).
		WithArgs("accepted", int64(404)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err = repo.UpdateStatus(ctx, int64(404), "accepted")
	assert.ErrorIs(t, err, storage.ErrOrderNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCategoryListTree(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	repo := storage.NewCategoryRepository(db)
	ctx := context.Background()

	mock.ExpectQuery("FROM categories").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "sort_order"}).
			AddRow(int64(1), "Канцелярия", 0).
			AddRow(int64(2), "Бумага", 1))

	mock.ExpectQuery("FROM subcategories").
		WillReturnRows(sqlmock.NewRows([]string{"id", "category_id", "name", "sort_order"}).
			AddRow(int64(10), int64(1), "Ручки", 0).
			AddRow(int64(11), int64(1), "Карандаши", 1))

	tree, err := repo.ListTree(ctx)
	assert.NoError(t, err)
	assert.Len(t, tree, 2)
	assert.Equal(t, "Канцелярия", tree[0].Name)
	assert.Len(t, tree[0].Subcategories, 2)
	assert.Equal(t, "Ручки", tree[0].Subcategories[0].Name)
	assert.Empty(t, tree[1].Subcategories)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateSubcategory(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	repo := storage.NewCategoryRepository(db)
	ctx := context.Background()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE subcategories SET name = $1, sort_order = $2 WHERE id = $3")).
		WithArgs("Ручки гелевые", 2, int64(10)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = repo.UpdateSubcategory(ctx, &models.Subcategory{ID: 10, Name: "Ручки гелевые", SortOrder: 2})
	assert.NoError(t, err)

	// Обновление несуществующей подкатегории.
	mock.ExpectExec(regexp.QuoteMeta("UPDATE subcategories SET name = $1, sort_order = $2 WHERE id = $3")).
		WithArgs("Нет", 0, int64(404)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err = repo.UpdateSubcategory(ctx, &models.Subcategory{ID: 404, Name: "Нет"})
	assert.ErrorIs(t, err, storage.ErrSubcategoryNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLockProductByIDTx_QueryError(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	repo := storage.NewProductRepository(db)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectQuery("FROM products WHERE id = \\$1 FOR UPDATE NOWAIT").
		WithArgs(int64(1)).
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	tx, err := db.Begin()
	assert.NoError(t, err)

	product, err := repo.LockByIDTx(ctx, tx, int64(1))
	assert.Error(t, err)
	assert.Nil(t, product)
	assert.NoError(t, tx.Rollback())

	assert.NoError(t, mock.ExpectationsWereMet())
}
