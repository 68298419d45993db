package models

import "time"

// WebhookLog is the append-only ledger of inbound Voltxt notifications. A row
// is written for every delivery, including duplicates skipped by the
// idempotency gate; rows are never updated.
type WebhookLog struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	OrderID   uint      `gorm:"not null;index" json:"order_id"`
	SessionID string    `gorm:"size:255;index" json:"session_id"`
	EventType string    `gorm:"size:50;not null;index" json:"event_type"`
	Payload   string    `gorm:"type:text;not null" json:"payload"`
	Processed bool      `gorm:"not null;default:false;index" json:"processed"`
	CreatedAt time.Time `json:"created_at"`
}

func (WebhookLog) TableName() string {
	return "voltxt_webhooks"
}
