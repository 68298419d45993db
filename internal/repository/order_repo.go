package repository

import (
	"voltxt/internal/models"

	"gorm.io/gorm"
)

type OrderRepository struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

func (r *OrderRepository) GetByID(id uint) (*models.Order, error) {
	var o models.Order
	if err := r.db.First(&o, id).Error; err != nil {
		return nil, err
	}
	return &o, nil
}

// AddHistory appends an order-history entry and advances the order's status
// in the same transaction.
func (r *OrderRepository) AddHistory(orderID uint, statusID int, comment string, notify bool) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&models.OrderHistory{
			OrderID:       orderID,
			OrderStatusID: statusID,
			Comment:       comment,
			Notify:        notify,
		}).Error; err != nil {
			return err
		}
		return tx.Model(&models.Order{}).Where("order_id = ?", orderID).
			Update("order_status_id", statusID).Error
	})
}

func (r *OrderRepository) HistoryCount(orderID uint) (int64, error) {
	var count int64
	err := r.db.Model(&models.OrderHistory{}).Where("order_id = ?", orderID).Count(&count).Error
	return count, err
}
