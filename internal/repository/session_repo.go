package repository

import (
	"time"

	"voltxt/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type SessionRepository struct {
	db *gorm.DB
}

func NewSessionRepository(db *gorm.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Upsert writes the session row for its order, replacing any previous session.
// One row exists per order; the superseded session's events remain in the
// webhook ledger.
func (r *SessionRepository) Upsert(s *models.PaymentSession) error {
	return r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "order_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"session_id", "amount", "currency", "network", "status",
			"payment_url", "deposit_address", "amount_sol", "expiry_date", "updated_at",
		}),
	}).Create(s).Error
}

// GetActive returns the newest session for the order that is still awaiting
// payment and unexpired, or nil when there is none.
func (r *SessionRepository) GetActive(orderID uint, now time.Time) (*models.PaymentSession, error) {
	var s models.PaymentSession
	err := r.db.
		Where("order_id = ?", orderID).
		Where("status IN ?", []string{models.SessionPending, models.SessionPaymentDetected}).
		Where("expiry_date > ?", now).
		Order("created_at DESC").
		First(&s).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

func (r *SessionRepository) GetBySessionID(sessionID string) (*models.PaymentSession, error) {
	var s models.PaymentSession
	if err := r.db.Where("session_id = ?", sessionID).First(&s).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *SessionRepository) UpdateStatus(sessionID, status string) error {
	return r.db.Model(&models.PaymentSession{}).
		Where("session_id = ?", sessionID).
		Update("status", status).Error
}

// RecordPayment stores the confirmed transaction on the session and marks it
// completed.
func (r *SessionRepository) RecordPayment(sessionID, paymentTxID string, amountReceived float64) error {
	return r.db.Model(&models.PaymentSession{}).
		Where("session_id = ?", sessionID).
		Updates(map[string]any{
			"payment_tx_id":   paymentTxID,
			"amount_received": amountReceived,
			"status":          models.SessionCompleted,
		}).Error
}
