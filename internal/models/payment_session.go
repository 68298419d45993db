package models

import (
	"math"
	"time"
)

// PaymentSession status values. The session lifecycle is local to the gateway
// integration and independent of the order's status.
const (
	SessionPending         = "pending"
	SessionPaymentDetected = "payment_detected"
	SessionUnderpaid       = "underpaid"
	SessionCompleted       = "completed"
	SessionCancelled       = "cancelled"
	SessionExpired         = "expired"
)

// PaymentSession is one Voltxt payment attempt for an order. order_id is
// unique, so creating a fresh session for an order supersedes the previous row
// (the webhook ledger keeps the full history).
type PaymentSession struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	OrderID        uint       `gorm:"not null;uniqueIndex" json:"order_id"`
	SessionID      string     `gorm:"size:255;not null;uniqueIndex" json:"session_id"`
	Amount         float64    `gorm:"not null" json:"amount"`
	Currency       string     `gorm:"size:3;not null" json:"currency"`
	Network        string     `gorm:"size:10;not null;default:'testnet'" json:"network"`
	Status         string     `gorm:"size:20;not null;default:'pending';index" json:"status"`
	PaymentURL     string     `gorm:"type:text" json:"payment_url"`
	DepositAddress string     `gorm:"size:255" json:"deposit_address"`
	AmountSol      float64    `json:"amount_sol"`
	AmountReceived *float64   `json:"amount_received"`
	PaymentTxID    string     `gorm:"size:255" json:"payment_tx_id"`
	ExpiryDate     *time.Time `gorm:"index" json:"expiry_date"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

func (PaymentSession) TableName() string {
	return "voltxt_sessions"
}

// UsableFor reports whether the session can be handed back to the shopper
// instead of creating a new one: still pending, not expired, and matching the
// order's current total and currency (a later cart edit invalidates it).
func (s *PaymentSession) UsableFor(total float64, currency string, now time.Time) bool {
	if s.Status != SessionPending {
		return false
	}
	if s.ExpiryDate == nil || !s.ExpiryDate.After(now) {
		return false
	}
	if math.Abs(s.Amount-total) >= 0.01 {
		return false
	}
	return s.Currency == currency
}
