package service

import (
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"voltxt/internal/models"
	"voltxt/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type reconcilerFixture struct {
	db         *gorm.DB
	orders     *repository.OrderRepository
	sessions   *repository.SessionRepository
	webhooks   *repository.WebhookRepository
	reconciler *Reconciler
}

func newReconcilerFixture(t *testing.T) *reconcilerFixture {
	t.Helper()
	db := newTestDB(t)
	orders := repository.NewOrderRepository(db)
	sessions := repository.NewSessionRepository(db)
	webhooks := repository.NewWebhookRepository(db)
	return &reconcilerFixture{
		db:         db,
		orders:     orders,
		sessions:   sessions,
		webhooks:   webhooks,
		reconciler: NewReconciler(orders, sessions, webhooks, newTestSettings(t, db), "store"),
	}
}

func (f *reconcilerFixture) process(t *testing.T, payload string) error {
	t.Helper()
	var evt WebhookEvent
	require.NoError(t, json.Unmarshal([]byte(payload), &evt))
	return f.reconciler.Process(&evt, []byte(payload))
}

func (f *reconcilerFixture) orderStatus(t *testing.T, orderID uint) int {
	t.Helper()
	order, err := f.orders.GetByID(orderID)
	require.NoError(t, err)
	return order.OrderStatusID
}

func (f *reconcilerFixture) historyCount(t *testing.T, orderID uint) int64 {
	t.Helper()
	n, err := f.orders.HistoryCount(orderID)
	require.NoError(t, err)
	return n
}

func (f *reconcilerFixture) ledger(t *testing.T, orderID uint) []models.WebhookLog {
	t.Helper()
	logs, err := f.webhooks.ListByOrder(orderID)
	require.NoError(t, err)
	return logs
}

func TestReconciler_PaymentCompleted(t *testing.T) {
	f := newReconcilerFixture(t)
	seedOrder(t, f.db, 42, 1, 100, "USD")
	require.NoError(t, f.sessions.Upsert(&models.PaymentSession{
		OrderID: 42, SessionID: "sess1", Amount: 100, Currency: "USD",
		Network: "testnet", Status: models.SessionPending,
	}))

	payload := `{"event_type":"payment_completed","session_id":"sess1","external_invoice_id":"store_42_1700000000","payment_tx_id":"tx123","amount_received_crypto":1.5}`
	require.NoError(t, f.process(t, payload))

	assert.Equal(t, 2, f.orderStatus(t, 42))

	var history []models.OrderHistory
	require.NoError(t, f.db.Where("order_id = ?", 42).Find(&history).Error)
	require.Len(t, history, 1)
	assert.Contains(t, history[0].Comment, "tx123")
	assert.Contains(t, history[0].Comment, "1.5 SOL")
	assert.True(t, history[0].Notify)

	session, err := f.sessions.GetBySessionID("sess1")
	require.NoError(t, err)
	assert.Equal(t, models.SessionCompleted, session.Status)
	assert.Equal(t, "tx123", session.PaymentTxID)
	require.NotNil(t, session.AmountReceived)
	assert.Equal(t, 1.5, *session.AmountReceived)

	logs := f.ledger(t, 42)
	require.Len(t, logs, 1)
	assert.Equal(t, "payment_completed", logs[0].EventType)
	assert.Equal(t, payload, logs[0].Payload)
}

func TestReconciler_PrefersAutoProcessTxID(t *testing.T) {
	f := newReconcilerFixture(t)
	seedOrder(t, f.db, 7, 1, 50, "USD")

	payload := `{"event_type":"payment_received","external_invoice_id":"store_7_1700000000","payment_tx_id":"manual-tx","auto_process_tx_id":"auto-tx"}`
	require.NoError(t, f.process(t, payload))

	var history models.OrderHistory
	require.NoError(t, f.db.Where("order_id = ?", 7).First(&history).Error)
	assert.Contains(t, history.Comment, "auto-tx")
	assert.NotContains(t, history.Comment, "manual-tx")
}

func TestReconciler_MissingTransactionID(t *testing.T) {
	f := newReconcilerFixture(t)
	seedOrder(t, f.db, 8, 1, 50, "USD")

	payload := `{"event_type":"payment_completed","external_invoice_id":"store_8_1700000000"}`
	err := f.process(t, payload)
	require.ErrorIs(t, err, ErrMissingTransactionID)

	// Nothing moved, so the provider's retry gets a clean slate.
	assert.Equal(t, 1, f.orderStatus(t, 8))
	assert.Equal(t, int64(0), f.historyCount(t, 8))
	assert.Empty(t, f.ledger(t, 8))
}

func TestReconciler_DuplicateDeliveryIsLedgerOnly(t *testing.T) {
	f := newReconcilerFixture(t)
	seedOrder(t, f.db, 42, 1, 100, "USD")

	payload := `{"event_type":"payment_completed","external_invoice_id":"store_42_1700000000","payment_tx_id":"tx123"}`
	require.NoError(t, f.process(t, payload))
	require.NoError(t, f.process(t, payload))
	require.NoError(t, f.process(t, payload))

	assert.Equal(t, 2, f.orderStatus(t, 42))
	assert.Equal(t, int64(1), f.historyCount(t, 42), "a finalized order must not gain history rows")
	assert.Len(t, f.ledger(t, 42), 3, "every delivery lands in the ledger")
}

func TestReconciler_ConcurrentDeliveries(t *testing.T) {
	f := newReconcilerFixture(t)
	seedOrder(t, f.db, 42, 1, 100, "USD")

	payload := `{"event_type":"payment_completed","external_invoice_id":"store_42_1700000000","payment_tx_id":"tx123"}`
	const n = 8
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			var evt WebhookEvent
			if err := json.Unmarshal([]byte(payload), &evt); err != nil {
				errs[i] = err
				return
			}
			errs[i] = f.reconciler.Process(&evt, []byte(payload))
		}(i)
	}
	wg.Wait()
	for i, err := range errs {
		require.NoError(t, err, "delivery %d", i)
	}

	assert.Equal(t, int64(1), f.historyCount(t, 42))
	assert.Len(t, f.ledger(t, 42), n)
}

func TestReconciler_Cancelled(t *testing.T) {
	f := newReconcilerFixture(t)
	seedOrder(t, f.db, 9, 1, 25, "EUR")
	require.NoError(t, f.sessions.Upsert(&models.PaymentSession{
		OrderID: 9, SessionID: "sess9", Amount: 25, Currency: "EUR",
		Network: "testnet", Status: models.SessionPending,
	}))

	payload := `{"event_type":"payment_cancelled","session_id":"sess9","external_invoice_id":"store_9_1700000000"}`
	require.NoError(t, f.process(t, payload))

	assert.Equal(t, 7, f.orderStatus(t, 9))
	session, err := f.sessions.GetBySessionID("sess9")
	require.NoError(t, err)
	assert.Equal(t, models.SessionCancelled, session.Status)
}

func TestReconciler_Expired(t *testing.T) {
	for _, eventType := range []string{"invoice_expired", "payment_expired"} {
		t.Run(eventType, func(t *testing.T) {
			f := newReconcilerFixture(t)
			seedOrder(t, f.db, 10, 1, 25, "EUR")

			payload := fmt.Sprintf(`{"event_type":"%s","external_invoice_id":"store_10_1700000000"}`, eventType)
			require.NoError(t, f.process(t, payload))
			assert.Equal(t, 10, f.orderStatus(t, 10))
		})
	}
}

func TestReconciler_PaymentDetected(t *testing.T) {
	f := newReconcilerFixture(t)
	seedOrder(t, f.db, 11, 1, 25, "EUR")
	require.NoError(t, f.sessions.Upsert(&models.PaymentSession{
		OrderID: 11, SessionID: "sess11", Amount: 25, Currency: "EUR",
		Network: "testnet", Status: models.SessionPending,
	}))

	payload := `{"event_type":"payment_detected","session_id":"sess11","external_invoice_id":"store_11_1700000000"}`
	require.NoError(t, f.process(t, payload))

	// Detection is informational: the order stays payable and the customer is
	// not notified.
	assert.Equal(t, 1, f.orderStatus(t, 11))
	var history models.OrderHistory
	require.NoError(t, f.db.Where("order_id = ?", 11).First(&history).Error)
	assert.False(t, history.Notify)
	assert.Contains(t, history.Comment, "Awaiting blockchain confirmation")

	session, err := f.sessions.GetBySessionID("sess11")
	require.NoError(t, err)
	assert.Equal(t, models.SessionPaymentDetected, session.Status)

	// The final outcome still lands afterwards.
	final := `{"event_type":"payment_completed","session_id":"sess11","external_invoice_id":"store_11_1700000000","payment_tx_id":"tx11"}`
	require.NoError(t, f.process(t, final))
	assert.Equal(t, 2, f.orderStatus(t, 11))
}

func TestReconciler_Underpaid(t *testing.T) {
	f := newReconcilerFixture(t)
	seedOrder(t, f.db, 12, 1, 99.5, "USD")

	payload := `{"event_type":"underpaid","external_invoice_id":"store_12_1700000000","amount_received_crypto":0.4}`
	require.NoError(t, f.process(t, payload))

	assert.Equal(t, 10, f.orderStatus(t, 12))
	var history models.OrderHistory
	require.NoError(t, f.db.Where("order_id = ?", 12).First(&history).Error)
	assert.Contains(t, history.Comment, "Expected: 99.50 USD")
	assert.Contains(t, history.Comment, "Received: 0.4 SOL")
}

func TestReconciler_UnknownEventIsLedgerOnly(t *testing.T) {
	f := newReconcilerFixture(t)
	seedOrder(t, f.db, 13, 1, 25, "USD")

	for _, eventType := range []string{"overpaid", "something_new"} {
		payload := fmt.Sprintf(`{"event_type":"%s","external_invoice_id":"store_13_1700000000"}`, eventType)
		require.NoError(t, f.process(t, payload))
	}

	assert.Equal(t, 1, f.orderStatus(t, 13))
	assert.Equal(t, int64(0), f.historyCount(t, 13))
	assert.Len(t, f.ledger(t, 13), 2)
}

func TestReconciler_OrderResolution(t *testing.T) {
	f := newReconcilerFixture(t)
	seedOrder(t, f.db, 482, 1, 25, "USD")
	seedOrder(t, f.db, 91, 1, 25, "USD")

	t.Run("from external payment id", func(t *testing.T) {
		payload := `{"event_type":"payment_cancelled","external_payment_id":"store_482_1700000001"}`
		require.NoError(t, f.process(t, payload))
		assert.Equal(t, 7, f.orderStatus(t, 482))
	})

	t.Run("from metadata fallback", func(t *testing.T) {
		payload := `{"event_type":"payment_cancelled","external_invoice_id":"unrelated-token","metadata":{"order_id":91}}`
		require.NoError(t, f.process(t, payload))
		assert.Equal(t, 7, f.orderStatus(t, 91))
	})

	t.Run("reference wins over metadata", func(t *testing.T) {
		var evt WebhookEvent
		payload := `{"event_type":"ignored","external_invoice_id":"store_482_1700000002","metadata":{"order_id":91}}`
		require.NoError(t, json.Unmarshal([]byte(payload), &evt))
		assert.Equal(t, uint(482), f.reconciler.resolveOrderID(&evt))
	})

	t.Run("unresolvable", func(t *testing.T) {
		payload := `{"event_type":"payment_completed","payment_tx_id":"tx"}`
		err := f.process(t, payload)
		var resErr *OrderResolutionError
		require.ErrorAs(t, err, &resErr)
	})

	t.Run("resolved but missing order", func(t *testing.T) {
		payload := `{"event_type":"payment_completed","external_invoice_id":"store_99999_1700000000","payment_tx_id":"tx"}`
		err := f.process(t, payload)
		var resErr *OrderResolutionError
		require.ErrorAs(t, err, &resErr)
		assert.Equal(t, uint(99999), resErr.OrderID)
	})
}

func TestClassifyEvent(t *testing.T) {
	assert.Equal(t, eventCompleted, classifyEvent("payment_completed"))
	assert.Equal(t, eventCompleted, classifyEvent("payment_received"))
	assert.Equal(t, eventCancelled, classifyEvent("payment_cancelled"))
	assert.Equal(t, eventExpired, classifyEvent("invoice_expired"))
	assert.Equal(t, eventExpired, classifyEvent("payment_expired"))
	assert.Equal(t, eventDetected, classifyEvent("payment_detected"))
	assert.Equal(t, eventUnderpaid, classifyEvent("underpaid"))
	assert.Equal(t, eventUnknown, classifyEvent("overpaid"))
	assert.Equal(t, eventUnknown, classifyEvent(""))
}
