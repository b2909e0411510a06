package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"
	"github.com/mkorlev/packshop/internal/domain/models"
)

var (
	ErrProductNotFound   = errors.New("product not found")
	ErrInsufficientStock = errors.New("insufficient stock")
)

// ProductFilter описывает параметры выборки товаров для публичного каталога
type ProductFilter struct {
	CategoryID    *int64
	SubcategoryID *int64
	Search        string
	Sort          string // price_asc, price_desc, name_asc, name_desc, newest, oldest
	Page          int
	Limit         int
	ActiveOnly    bool
}

// ProductStorage описывает методы для работы с таблицей товаров.
type ProductStorage interface {
	GetByID(ctx context.Context, id int64) (*models.Product, error)
	// GetActiveByID возвращает только активный товар — именно такой lookup
	// использует валидация корзины.
	GetActiveByID(ctx context.Context, id int64) (*models.Product, error)
	List(ctx context.Context, filter ProductFilter) ([]*models.Product, int, error)
	Create(ctx context.Context, product *models.Product) (int64, error)
	Update(ctx context.Context, product *models.Product) error
	Delete(ctx context.Context, id int64) error
	SetActive(ctx context.Context, id int64, active bool) error
	HasOrderItems(ctx context.Context, id int64) (bool, error)
	CountByCategory(ctx context.Context, categoryID int64) (int, error)
	CountBySubcategory(ctx context.Context, subcategoryID int64) (int, error)
	AddImages(ctx context.Context, productID int64, fileIDs []string) error
	ListImages(ctx context.Context, productIDs []int64) (map[int64][]*models.ProductImage, error)
	// LockByIDTx читает товар с блокировкой строки — используется комиттером
	// заказа, чтобы пересчёт и списание остатка были атомарны.
	LockByIDTx(ctx context.Context, tx *sql.Tx, id int64) (*models.Product, error)
	// DecrementStock списывает пачки со склада внутри транзакции.
	// Остаток не может уйти в минус.
	DecrementStock(ctx context.Context, tx *sql.Tx, id int64, packs int) error
}

// productRepository — конкретная реализация ProductStorage.
type productRepository struct {
	db *sql.DB
}

// NewProductRepository создаёт новый репозиторий товаров.
func NewProductRepository(db *sql.DB) ProductStorage {
	return &productRepository{db: db}
}

const productColumns = `id, category_id, subcategory_id, name, description, price_per_unit,
	pieces_per_pack, min_order_packs, image_url, image_file_id, in_stock, active, created_at, updated_at`

func scanProduct(row interface{ Scan(dest ...any) error }) (*models.Product, error) {
	p := &models.Product{}
	var description sql.NullString
	err := row.Scan(
		&p.ID, &p.CategoryID, &p.SubcategoryID, &p.Name, &description, &p.PricePerUnit,
		&p.PiecesPerPack, &p.MinOrderPacks, &p.ImageURL, &p.ImageFileID, &p.InStock,
		&p.Active, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.Description = description.String
	return p, nil
}

func (r *productRepository) GetByID(ctx context.Context, id int64) (*models.Product, error) {
	query := "SELECT " + productColumns + " FROM products WHERE id = $1"
	product, err := scanProduct(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, err
	}
	return product, nil
}

func (r *productRepository) GetActiveByID(ctx context.Context, id int64) (*models.Product, error) {
	query := "SELECT " + productColumns + " FROM products WHERE id = $1 AND active = TRUE"
	product, err := scanProduct(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, err
	}
	return product, nil
}

// сортировки каталога; ключ приходит из query-параметра
var productSortClauses = map[string]string{
	"price_asc":  "price_per_unit ASC",
	"price_desc": "price_per_unit DESC",
	"name_asc":   "name ASC",
	"name_desc":  "name DESC",
	"newest":     "created_at DESC",
	"oldest":     "created_at ASC",
}

// List возвращает страницу товаров и общее количество под фильтр.
func (r *productRepository) List(ctx context.Context, filter ProductFilter) ([]*models.Product, int, error) {
	var conds []string
	var args []any

	if filter.ActiveOnly {
		conds = append(conds, "active = TRUE")
	}
	if filter.CategoryID != nil {
		args = append(args, *filter.CategoryID)
		conds = append(conds, fmt.Sprintf("category_id = $%d", len(args)))
	}
	if filter.SubcategoryID != nil {
		args = append(args, *filter.SubcategoryID)
		conds = append(conds, fmt.Sprintf("subcategory_id = $%d", len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		conds = append(conds, fmt.Sprintf("(name ILIKE $%d OR description ILIKE $%d)", len(args), len(args)))
	}

	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM products"+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	orderBy, ok := productSortClauses[filter.Sort]
	if !ok {
		orderBy = "created_at DESC"
	}

	args = append(args, filter.Limit, (filter.Page-1)*filter.Limit)
	query := fmt.Sprintf("SELECT %s FROM products%s ORDER BY %s LIMIT $%d OFFSET $%d",
		productColumns, where, orderBy, len(args)-1, len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var products []*models.Product
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, 0, err
		}
		products = append(products, product)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return products, total, nil
}

func (r *productRepository) Create(ctx context.Context, p *models.Product) (int64, error) {
	var id int64
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO products (category_id, subcategory_id, name, description, price_per_unit,
			pieces_per_pack, min_order_packs, image_url, image_file_id, in_stock, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW(), NOW())
		RETURNING id`,
		p.CategoryID, p.SubcategoryID, p.Name, p.Description, p.PricePerUnit,
		p.PiecesPerPack, p.MinOrderPacks, p.ImageURL, p.ImageFileID, p.InStock, p.Active,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to create product: %w", err)
	}
	return id, nil
}

func (r *productRepository) Update(ctx context.Context, p *models.Product) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE products SET category_id = $1, subcategory_id = $2, name = $3, description = $4,
			price_per_unit = $5, pieces_per_pack = $6, min_order_packs = $7, image_url = $8,
			image_file_id = $9, in_stock = $10, active = $11, updated_at = NOW()
		WHERE id = $12`,
		p.CategoryID, p.SubcategoryID, p.Name, p.Description, p.PricePerUnit,
		p.PiecesPerPack, p.MinOrderPacks, p.ImageURL, p.ImageFileID, p.InStock, p.Active, p.ID,
	)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrProductNotFound
	}
	return nil
}

func (r *productRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM products WHERE id = $1", id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrProductNotFound
	}
	return nil
}

func (r *productRepository) SetActive(ctx context.Context, id int64, active bool) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE products SET active = $1, updated_at = NOW() WHERE id = $2", active, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrProductNotFound
	}
	return nil
}

func (r *productRepository) HasOrderItems(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM order_items WHERE product_id = $1)", id).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

func (r *productRepository) CountByCategory(ctx context.Context, categoryID int64) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM products WHERE category_id = $1", categoryID).Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (r *productRepository) CountBySubcategory(ctx context.Context, subcategoryID int64) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM products WHERE subcategory_id = $1", subcategoryID).Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (r *productRepository) AddImages(ctx context.Context, productID int64, fileIDs []string) error {
	for i, fileID := range fileIDs {
		_, err := r.db.ExecContext(ctx,
			"INSERT INTO product_images (product_id, file_id, is_main, created_at) VALUES ($1, $2, $3, NOW())",
			productID, fileID, i == 0)
		if err != nil {
			return fmt.Errorf("failed to add product image: %w", err)
		}
	}
	return nil
}

// ListImages загружает изображения сразу для набора товаров одним запросом.
func (r *productRepository) ListImages(ctx context.Context, productIDs []int64) (map[int64][]*models.ProductImage, error) {
	images := make(map[int64][]*models.ProductImage)
	if len(productIDs) == 0 {
		return images, nil
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, product_id, file_id, image_url, is_main, created_at
		FROM product_images WHERE product_id = ANY($1) ORDER BY is_main DESC, id`,
		pq.Array(productIDs))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		img := &models.ProductImage{}
		if err := rows.Scan(&img.ID, &img.ProductID, &img.FileID, &img.ImageURL, &img.IsMain, &img.CreatedAt); err != nil {
			return nil, err
		}
		images[img.ProductID] = append(images[img.ProductID], img)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return images, nil
}

func (r *productRepository) LockByIDTx(ctx context.Context, tx *sql.Tx, id int64) (*models.Product, error) {
	query := "SELECT " + productColumns + " FROM products WHERE id = $1 FOR UPDATE NOWAIT"
	product, err := scanProduct(tx.QueryRowContext(ctx, query, id))
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok {
			if pqErr.Code == "55P03" { // lock
				return nil, fmt.Errorf("product row is locked, please try again: %w", err)
			}
		}
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, err
	}
	return product, nil
}

func (r *productRepository) DecrementStock(ctx context.Context, tx *sql.Tx, id int64, packs int) error {
	res, err := tx.ExecContext(ctx,
		"UPDATE products SET in_stock = in_stock - $1, updated_at = NOW() WHERE id = $2 AND in_stock >= $1",
		packs, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrInsufficientStock
	}
	return nil
}
