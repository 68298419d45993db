package service

import (
	"encoding/json"
	"fmt"
	"log"
	"regexp"
	"strconv"
	"sync"

	"voltxt/internal/models"
	"voltxt/internal/repository"

	"gorm.io/gorm"
)

// WebhookEvent is a decoded Voltxt notification. The provider echoes the
// session-creation external id back in external_invoice_id/external_payment_id,
// which is the primary order join key; metadata.order_id is the fallback.
type WebhookEvent struct {
	EventType            string          `json:"event_type"`
	SessionID            string          `json:"session_id"`
	ExternalInvoiceID    string          `json:"external_invoice_id"`
	ExternalPaymentID    string          `json:"external_payment_id"`
	Status               string          `json:"status"`
	PaymentTxID          string          `json:"payment_tx_id"`
	AutoProcessTxID      string          `json:"auto_process_tx_id"`
	AmountReceivedCrypto *float64        `json:"amount_received_crypto"`
	InvoiceNumber        string          `json:"invoice_number"`
	Metadata             webhookMetadata `json:"metadata"`
}

type webhookMetadata struct {
	OrderID json.Number `json:"order_id"`
}

// ResolvedSessionID prefers the explicit session_id, falling back to the
// echoed invoice id.
func (e *WebhookEvent) ResolvedSessionID() string {
	if e.SessionID != "" {
		return e.SessionID
	}
	return e.ExternalInvoiceID
}

// paymentReference is the field carrying the idempotency token.
func (e *WebhookEvent) paymentReference() string {
	if e.ExternalInvoiceID != "" {
		return e.ExternalInvoiceID
	}
	return e.ExternalPaymentID
}

func (e *WebhookEvent) amountReceived() float64 {
	if e.AmountReceivedCrypto == nil {
		return 0
	}
	return *e.AmountReceivedCrypto
}

// eventClass is the tagged classification of an incoming event_type. Every
// switch over it handles eventUnknown explicitly, so a new provider event
// degrades to log-only instead of a silent half-transition.
type eventClass int

const (
	eventUnknown eventClass = iota
	eventCompleted
	eventCancelled
	eventExpired
	eventDetected
	eventUnderpaid
)

func classifyEvent(eventType string) eventClass {
	switch eventType {
	case "payment_completed", "payment_received":
		return eventCompleted
	case "payment_cancelled":
		return eventCancelled
	case "invoice_expired", "payment_expired":
		return eventExpired
	case "payment_detected":
		return eventDetected
	case "underpaid":
		return eventUnderpaid
	default:
		return eventUnknown
	}
}

// orderLocks serializes reconciliation per order id so two notifications for
// the same order cannot both observe a non-final status. The map is bounded by
// the number of distinct orders seen since start.
type orderLocks struct {
	mu    sync.Mutex
	locks map[uint]*sync.Mutex
}

func (l *orderLocks) acquire(orderID uint) *sync.Mutex {
	l.mu.Lock()
	m, ok := l.locks[orderID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[orderID] = m
	}
	l.mu.Unlock()
	m.Lock()
	return m
}

// Reconciler applies provider notifications to orders and sessions. It is the
// only writer of payment-driven order transitions, and it guarantees each
// order is finalized at most once no matter how often a webhook is delivered.
type Reconciler struct {
	orders   *repository.OrderRepository
	sessions *repository.SessionRepository
	webhooks *repository.WebhookRepository
	settings *SettingsService
	prefix   string
	refRe    *regexp.Regexp
	locks    orderLocks
}

func NewReconciler(
	orders *repository.OrderRepository,
	sessions *repository.SessionRepository,
	webhooks *repository.WebhookRepository,
	settings *SettingsService,
	externalIDPrefix string,
) *Reconciler {
	return &Reconciler{
		orders:   orders,
		sessions: sessions,
		webhooks: webhooks,
		settings: settings,
		prefix:   externalIDPrefix,
		refRe:    regexp.MustCompile(regexp.QuoteMeta(externalIDPrefix) + `_(\d+)_`),
		locks:    orderLocks{locks: make(map[uint]*sync.Mutex)},
	}
}

// Process reconciles one decoded notification. raw is the verbatim request
// body, persisted to the webhook ledger. A returned error means the provider
// should retry (the caller maps it to a 5xx); retries are safe because a
// finalized order only ever gets more ledger rows.
func (r *Reconciler) Process(evt *WebhookEvent, raw []byte) error {
	orderID := r.resolveOrderID(evt)
	if orderID == 0 {
		return &OrderResolutionError{Reference: evt.paymentReference()}
	}

	lock := r.locks.acquire(orderID)
	defer lock.Unlock()

	order, err := r.orders.GetByID(orderID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return &OrderResolutionError{OrderID: orderID}
		}
		return err
	}

	cfg := r.settings.Current()
	sessionID := evt.ResolvedSessionID()

	// Idempotency gate: once an order is in a terminal status, later
	// deliveries only extend the ledger.
	if cfg.IsTerminal(order.OrderStatusID) {
		if cfg.Debug {
			log.Printf("[Voltxt webhook] order %d already processed (status %d), skipping %s",
				orderID, order.OrderStatusID, evt.EventType)
		}
		return r.webhooks.Log(orderID, sessionID, evt.EventType, raw)
	}

	switch classifyEvent(evt.EventType) {
	case eventCompleted:
		txID := evt.AutoProcessTxID
		if txID == "" {
			txID = evt.PaymentTxID
		}
		if txID == "" {
			return ErrMissingTransactionID
		}
		comment := fmt.Sprintf("Voltxt payment completed. Transaction ID: %s. Amount received: %v SOL.",
			txID, evt.amountReceived())
		if err := r.orders.AddHistory(orderID, cfg.CompletedStatusID, comment, true); err != nil {
			return err
		}
		if err := r.sessions.RecordPayment(sessionID, txID, evt.amountReceived()); err != nil {
			return err
		}

	case eventCancelled:
		comment := fmt.Sprintf("Voltxt payment for session %s was cancelled by the customer.", sessionID)
		if err := r.orders.AddHistory(orderID, cfg.CancelledStatusID, comment, true); err != nil {
			return err
		}
		if err := r.sessions.UpdateStatus(sessionID, models.SessionCancelled); err != nil {
			return err
		}

	case eventExpired:
		comment := fmt.Sprintf("Voltxt payment session %s expired.", sessionID)
		if err := r.orders.AddHistory(orderID, cfg.FailedStatusID, comment, true); err != nil {
			return err
		}
		if err := r.sessions.UpdateStatus(sessionID, models.SessionExpired); err != nil {
			return err
		}

	case eventDetected:
		// Informational, not terminal: the order stays payable and the
		// webhook for the final outcome is still expected.
		comment := fmt.Sprintf("Voltxt payment detected for session %s. Awaiting blockchain confirmation.", sessionID)
		if err := r.orders.AddHistory(orderID, cfg.PendingStatusID, comment, false); err != nil {
			return err
		}
		if err := r.sessions.UpdateStatus(sessionID, models.SessionPaymentDetected); err != nil {
			return err
		}

	case eventUnderpaid:
		comment := fmt.Sprintf("Voltxt payment for order was underpaid. Expected: %.2f %s, Received: %v SOL. Order marked as failed.",
			order.Total, order.CurrencyCode, evt.amountReceived())
		if err := r.orders.AddHistory(orderID, cfg.FailedStatusID, comment, true); err != nil {
			return err
		}
		if err := r.sessions.UpdateStatus(sessionID, models.SessionUnderpaid); err != nil {
			return err
		}

	case eventUnknown:
		if cfg.Debug {
			log.Printf("[Voltxt webhook] unhandled event type %q for order %d", evt.EventType, orderID)
		}
	}

	return r.webhooks.Log(orderID, sessionID, evt.EventType, raw)
}

// resolveOrderID extracts the order id from the echoed idempotency token
// (<prefix>_<order_id>_<ts>) or, failing that, from metadata.order_id.
func (r *Reconciler) resolveOrderID(evt *WebhookEvent) uint {
	if ref := evt.paymentReference(); ref != "" {
		if m := r.refRe.FindStringSubmatch(ref); m != nil {
			if id, err := strconv.ParseUint(m[1], 10, 64); err == nil && id > 0 {
				return uint(id)
			}
		}
	}
	if evt.Metadata.OrderID != "" {
		if id, err := evt.Metadata.OrderID.Int64(); err == nil && id > 0 {
			return uint(id)
		}
	}
	return 0
}
