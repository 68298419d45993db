package models

import "time"

// Order mirrors the store's order table. This service only reads orders and
// advances their status through AddHistory; everything else belongs to the
// host order system.
type Order struct {
	ID            uint      `gorm:"primaryKey;column:order_id" json:"order_id"`
	OrderStatusID int       `gorm:"not null;index" json:"order_status_id"`
	Total         float64   `gorm:"not null" json:"total"`
	CurrencyCode  string    `gorm:"size:3;not null" json:"currency_code"`
	CurrencyValue float64   `gorm:"default:1" json:"currency_value"`
	CustomerID    uint      `gorm:"index" json:"customer_id"`
	Email         string    `gorm:"size:96" json:"email"`
	FirstName     string    `gorm:"size:32" json:"firstname"`
	LastName      string    `gorm:"size:32" json:"lastname"`
	StoreID       int       `json:"store_id"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (Order) TableName() string {
	return "orders"
}

// OrderHistory is the append-only audit of order status changes. A row is
// written every time a payment event advances the order.
type OrderHistory struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	OrderID       uint      `gorm:"not null;index" json:"order_id"`
	OrderStatusID int       `gorm:"not null" json:"order_status_id"`
	Comment       string    `gorm:"type:text" json:"comment"`
	Notify        bool      `gorm:"not null;default:false" json:"notify"`
	CreatedAt     time.Time `json:"created_at"`
}

func (OrderHistory) TableName() string {
	return "order_histories"
}
