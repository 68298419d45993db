package repository

import (
	"voltxt/internal/models"

	"gorm.io/gorm"
)

type WebhookRepository struct {
	db *gorm.DB
}

func NewWebhookRepository(db *gorm.DB) *WebhookRepository {
	return &WebhookRepository{db: db}
}

// Log appends an entry to the webhook ledger. Entries are immutable.
func (r *WebhookRepository) Log(orderID uint, sessionID, eventType string, payload []byte) error {
	return r.db.Create(&models.WebhookLog{
		OrderID:   orderID,
		SessionID: sessionID,
		EventType: eventType,
		Payload:   string(payload),
		Processed: true,
	}).Error
}

func (r *WebhookRepository) ListByOrder(orderID uint) ([]models.WebhookLog, error) {
	var logs []models.WebhookLog
	err := r.db.Where("order_id = ?", orderID).Order("created_at ASC").Find(&logs).Error
	return logs, err
}
