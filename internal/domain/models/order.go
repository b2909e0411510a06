package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Статусы заказа, меняются администратором после оформления
const (
	OrderStatusNew       = "new"
	OrderStatusAccepted  = "accepted"
	OrderStatusRejected  = "rejected"
	OrderStatusCompleted = "completed"
)

// ValidOrderStatus проверяет, что статус входит в список допустимых
func ValidOrderStatus(status string) bool {
	switch status {
	case OrderStatusNew, OrderStatusAccepted, OrderStatusRejected, OrderStatusCompleted:
		return true
	}
	return false
}

// Order представляет оформленный заказ покупателя
type Order struct {
	ID                   int64           `json:"id"`
	TelegramUserID       int64           `json:"telegram_user_id"`
	CustomerName         string          `json:"customer_name"`
	CustomerOrganization *string         `json:"customer_organization,omitempty"`
	CustomerPhone        string          `json:"customer_phone"`
	TotalAmount          decimal.Decimal `json:"total_amount"`
	Status               string          `json:"status"`
	CreatedAt            time.Time       `json:"created_at"`
	Items                []*OrderItem    `json:"items"`
}

// OrderItem представляет строку заказа. Цена и количество штук — снимок
// состояния товара на момент оформления, последующие изменения товара
// на исторические заказы не влияют
type OrderItem struct {
	ID             int64           `json:"id"`
	OrderID        int64           `json:"-"`
	ProductID      int64           `json:"product_id"`
	ProductName    string          `json:"product_name"` // имя товара; подставляется через JOIN при чтении
	QuantityPacks  int             `json:"quantity_packs"`
	QuantityPieces int             `json:"quantity_pieces"`
	PricePerUnit   decimal.Decimal `json:"price_per_unit"`
	Subtotal       decimal.Decimal `json:"subtotal"`
}

// CartLine — строка корзины: товар и запрошенное количество пачек
type CartLine struct {
	ProductID     int64 `json:"product_id"`
	QuantityPacks int   `json:"quantity_packs"`
}

// CustomerInfo — контактные данные покупателя при оформлении заказа
type CustomerInfo struct {
	TelegramUserID int64
	Name           string
	Organization   *string
	Phone          string
}
