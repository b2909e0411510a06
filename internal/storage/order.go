package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/mkorlev/packshop/internal/domain/models"
)

var ErrOrderNotFound = errors.New("order not found")

// Подстановка для строк заказа, ссылающихся на удалённый товар
const deletedProductName = "Удалённый товар"

// OrderStorage описывает методы для работы с заказами.
type OrderStorage interface {
	// CreateOrder вставляет новый заказ внутри транзакции и возвращает его id.
	CreateOrder(ctx context.Context, tx *sql.Tx, order *models.Order) (int64, error)
	// CreateOrderItem вставляет строку заказа внутри той же транзакции.
	CreateOrderItem(ctx context.Context, tx *sql.Tx, item *models.OrderItem) (int64, error)
	// GetByID возвращает заказ со строками; имя товара подставляется через JOIN.
	GetByID(ctx context.Context, id int64) (*models.Order, error)
	GetByUserID(ctx context.Context, telegramUserID int64) ([]*models.Order, error)
	// List возвращает все заказы, опционально отфильтрованные по статусу.
	List(ctx context.Context, status string) ([]*models.Order, error)
	UpdateStatus(ctx context.Context, id int64, status string) error
}

// orderRepository — конкретная реализация OrderStorage.
type orderRepository struct {
	db *sql.DB
}

// NewOrderRepository создаёт новый репозиторий заказов.
func NewOrderRepository(db *sql.DB) OrderStorage {
	return &orderRepository{db: db}
}

func (r *orderRepository) CreateOrder(ctx context.Context, tx *sql.Tx, order *models.Order) (int64, error) {
	var id int64
	err := tx.QueryRowContext(ctx, `
		INSERT INTO orders (telegram_user_id, customer_name, customer_organization, customer_phone, total_amount, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		RETURNING id`,
		order.TelegramUserID, order.CustomerName, order.CustomerOrganization,
		order.CustomerPhone, order.TotalAmount, order.Status,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to create order: %w", err)
	}
	return id, nil
}

func (r *orderRepository) CreateOrderItem(ctx context.Context, tx *sql.Tx, item *models.OrderItem) (int64, error) {
	var id int64
	err := tx.QueryRowContext(ctx, `
		INSERT INTO order_items (order_id, product_id, quantity_packs, quantity_pieces, price_per_unit, subtotal)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		item.OrderID, item.ProductID, item.QuantityPacks, item.QuantityPieces,
		item.PricePerUnit, item.Subtotal,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to create order item: %w", err)
	}
	return id, nil
}

const orderColumns = "id, telegram_user_id, customer_name, customer_organization, customer_phone, total_amount, status, created_at"

func scanOrder(row interface{ Scan(dest ...any) error }) (*models.Order, error) {
	order := &models.Order{Items: []*models.OrderItem{}}
	err := row.Scan(
		&order.ID, &order.TelegramUserID, &order.CustomerName, &order.CustomerOrganization,
		&order.CustomerPhone, &order.TotalAmount, &order.Status, &order.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return order, nil
}

func (r *orderRepository) GetByID(ctx context.Context, id int64) (*models.Order, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+orderColumns+" FROM orders WHERE id = $1", id)
	order, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	if err := r.loadItems(ctx, []*models.Order{order}); err != nil {
		return nil, err
	}
	return order, nil
}

func (r *orderRepository) GetByUserID(ctx context.Context, telegramUserID int64) ([]*models.Order, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+orderColumns+" FROM orders WHERE telegram_user_id = $1 ORDER BY created_at DESC",
		telegramUserID)
	if err != nil {
		return nil, err
	}
	return r.collectOrders(ctx, rows)
}

func (r *orderRepository) List(ctx context.Context, status string) ([]*models.Order, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if status != "" {
		rows, err = r.db.QueryContext(ctx,
			"SELECT "+orderColumns+" FROM orders WHERE status = $1 ORDER BY created_at DESC", status)
	} else {
		rows, err = r.db.QueryContext(ctx,
			"SELECT "+orderColumns+" FROM orders ORDER BY created_at DESC")
	}
	if err != nil {
		return nil, err
	}
	return r.collectOrders(ctx, rows)
}

func (r *orderRepository) collectOrders(ctx context.Context, rows *sql.Rows) ([]*models.Order, error) {
	defer rows.Close()

	var orders []*models.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := r.loadItems(ctx, orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// loadItems подгружает строки сразу для набора заказов одним запросом.
// Имя товара берётся JOIN-ом на момент чтения, а не из сохранённого поля.
func (r *orderRepository) loadItems(ctx context.Context, orders []*models.Order) error {
	if len(orders) == 0 {
		return nil
	}
	ids := make([]int64, 0, len(orders))
	byID := make(map[int64]*models.Order, len(orders))
	for _, order := range orders {
		ids = append(ids, order.ID)
		byID[order.ID] = order
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT oi.id, oi.order_id, oi.product_id, COALESCE(p.name, $2),
		       oi.quantity_packs, oi.quantity_pieces, oi.price_per_unit, oi.subtotal
		FROM order_items oi
		LEFT JOIN products p ON p.id = oi.product_id
		WHERE oi.order_id = ANY($1)
		ORDER BY oi.id`,
		pq.Array(ids), deletedProductName)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		item := &models.OrderItem{}
		err := rows.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.ProductName,
			&item.QuantityPacks, &item.QuantityPieces, &item.PricePerUnit, &item.Subtotal)
		if err != nil {
			return err
		}
		if order, ok := byID[item.OrderID]; ok {
			order.Items = append(order.Items, item)
		}
	}
	return rows.Err()
}

func (r *orderRepository) UpdateStatus(ctx context.Context, id int64, status string) error {
	res, err := r.db.ExecContext(ctx, "UPDATE orders SET status = $1 WHERE id = $2", status, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrOrderNotFound
	}
	return nil
}
