package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product представляет товар каталога с оптовой логикой:
// цена указывается за штуку, но продажа идёт целыми пачками
type Product struct {
	ID            int64           `json:"id"`
	CategoryID    int64           `json:"category_id"`
	SubcategoryID *int64          `json:"subcategory_id,omitempty"`
	Name          string          `json:"name"`
	Description   string          `json:"description,omitempty"`
	PricePerUnit  decimal.Decimal `json:"price_per_unit"` // цена за одну штуку
	PiecesPerPack int             `json:"pieces_per_pack"`
	MinOrderPacks int             `json:"min_order_packs"`
	ImageURL      *string         `json:"image_url,omitempty"`
	ImageFileID   *string         `json:"image_file_id,omitempty"`
	InStock       *int            `json:"in_stock"` // nil — остаток не отслеживается (не ограничен)
	Active        bool            `json:"active"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
	Images        []*ProductImage `json:"images"`
}

// StockTracked сообщает, отслеживается ли остаток товара
func (p *Product) StockTracked() bool {
	return p.InStock != nil
}

// ProductImage представляет дополнительное изображение товара
type ProductImage struct {
	ID        int64     `json:"id"`
	ProductID int64     `json:"-"`
	FileID    *string   `json:"file_id"`
	ImageURL  *string   `json:"image_url"`
	IsMain    bool      `json:"is_main"`
	CreatedAt time.Time `json:"-"`
}
