package service

import (
	"context"
	"testing"
	"time"

	"voltxt/config"
	"voltxt/internal/models"
	"voltxt/internal/repository"
	"voltxt/pkg/voltxt"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// fakeGateway records calls and plays back canned results.
type fakeGateway struct {
	initiateRes   *voltxt.Result
	initiateCalls int
	lastData      voltxt.PaymentData
}

func (f *fakeGateway) TestConnection(ctx context.Context, extra map[string]any) *voltxt.Result {
	return &voltxt.Result{Success: true}
}

func (f *fakeGateway) InitiatePayment(ctx context.Context, data voltxt.PaymentData) *voltxt.Result {
	f.initiateCalls++
	f.lastData = data
	return f.initiateRes
}

func (f *fakeGateway) GetPaymentStatus(ctx context.Context, sessionID string) *voltxt.Result {
	return &voltxt.Result{Success: true}
}

func (f *fakeGateway) CancelPaymentSession(ctx context.Context, sessionID string) *voltxt.Result {
	return &voltxt.Result{Success: true}
}

type sessionFixture struct {
	db       *gorm.DB
	gateway  *fakeGateway
	sessions *repository.SessionRepository
	svc      *SessionService
	now      time.Time
}

func newSessionFixture(t *testing.T) *sessionFixture {
	t.Helper()
	db := newTestDB(t)
	f := &sessionFixture{
		db:       db,
		gateway:  &fakeGateway{},
		sessions: repository.NewSessionRepository(db),
		now:      time.Date(2026, 1, 2, 12, 0, 0, 0, time.UTC),
	}
	f.gateway.initiateRes = &voltxt.Result{
		Success: true,
		Data: map[string]any{
			"session_id":      "sess-new",
			"payment_url":     "https://pay.voltxt.io/sess-new",
			"deposit_address": "So1anaAddr",
			"amount_sol":      1.25,
			"expiry_date":     f.now.Add(24 * time.Hour).Format(time.RFC3339),
		},
	}
	store := config.StoreConfig{
		Name:             "Go Store",
		BaseURL:          "https://store.example.com",
		ExternalIDPrefix: "store",
	}
	f.svc = NewSessionService(
		repository.NewOrderRepository(db),
		f.sessions,
		newTestSettings(t, db),
		store,
		func(apiKey, network string) (Gateway, error) { return f.gateway, nil },
	)
	f.svc.now = func() time.Time { return f.now }
	return f
}

func TestSessionService_OrderNotFound(t *testing.T) {
	f := newSessionFixture(t)
	_, err := f.svc.GetOrCreateSession(context.Background(), 999)
	assert.ErrorIs(t, err, ErrOrderNotFound)
	assert.Zero(t, f.gateway.initiateCalls)
}

func TestSessionService_UnsupportedCurrency(t *testing.T) {
	f := newSessionFixture(t)
	seedOrder(t, f.db, 1, 1, 100, "KES")
	_, err := f.svc.GetOrCreateSession(context.Background(), 1)
	assert.ErrorIs(t, err, ErrUnsupportedCurrency)
	assert.Zero(t, f.gateway.initiateCalls)
}

func TestSessionService_CreatesSession(t *testing.T) {
	f := newSessionFixture(t)
	seedOrder(t, f.db, 42, 1, 100.456, "USD")

	cs, err := f.svc.GetOrCreateSession(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, "sess-new", cs.SessionID)
	assert.Equal(t, "https://pay.voltxt.io/sess-new", cs.PaymentURL)
	assert.False(t, cs.Reused)

	data := f.gateway.lastData
	assert.Equal(t, "store_42_1767355200", data.ExternalPaymentID)
	assert.Equal(t, 100.46, data.Amount)
	assert.Equal(t, "USD", data.FiatCurrency)
	assert.Equal(t, 24, data.ExpiryHours)
	assert.Equal(t, "shopper@example.com", data.CustomerEmail)
	assert.Equal(t, "Ada Lovelace", data.CustomerName)
	assert.Equal(t, "https://store.example.com/api/v1/webhooks/voltxt", data.CallbackURL)
	assert.Contains(t, data.SuccessURL, voltxt.PlaceholderSessionID)
	assert.Contains(t, data.CancelURL, "voltxt_cancelled=1")

	session, err := f.sessions.GetBySessionID("sess-new")
	require.NoError(t, err)
	assert.Equal(t, uint(42), session.OrderID)
	assert.Equal(t, models.SessionPending, session.Status)
	assert.Equal(t, "So1anaAddr", session.DepositAddress)
	assert.Equal(t, 1.25, session.AmountSol)
	require.NotNil(t, session.ExpiryDate)
}

func TestSessionService_ReusesUsableSession(t *testing.T) {
	f := newSessionFixture(t)
	seedOrder(t, f.db, 42, 1, 100, "USD")

	first, err := f.svc.GetOrCreateSession(context.Background(), 42)
	require.NoError(t, err)

	second, err := f.svc.GetOrCreateSession(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, first.SessionID, second.SessionID)
	assert.True(t, second.Reused)
	assert.Equal(t, 1, f.gateway.initiateCalls, "a usable session must not touch the gateway")
}

func TestSessionService_AmountChangeForcesNewSession(t *testing.T) {
	f := newSessionFixture(t)
	seedOrder(t, f.db, 42, 1, 100, "USD")

	_, err := f.svc.GetOrCreateSession(context.Background(), 42)
	require.NoError(t, err)

	// Cart edited after the session was created.
	require.NoError(t, f.db.Model(&models.Order{}).Where("order_id = ?", 42).
		Update("total", 120.0).Error)
	f.gateway.initiateRes.Data["session_id"] = "sess-second"

	cs, err := f.svc.GetOrCreateSession(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, "sess-second", cs.SessionID)
	assert.False(t, cs.Reused)
	assert.Equal(t, 2, f.gateway.initiateCalls)
}

func TestSessionService_SubCentDriftStillReused(t *testing.T) {
	f := newSessionFixture(t)
	seedOrder(t, f.db, 42, 1, 100, "USD")

	_, err := f.svc.GetOrCreateSession(context.Background(), 42)
	require.NoError(t, err)

	require.NoError(t, f.db.Model(&models.Order{}).Where("order_id = ?", 42).
		Update("total", 100.005).Error)

	cs, err := f.svc.GetOrCreateSession(context.Background(), 42)
	require.NoError(t, err)
	assert.True(t, cs.Reused)
	assert.Equal(t, 1, f.gateway.initiateCalls)
}

func TestSessionService_ExpiredSessionIsReplaced(t *testing.T) {
	f := newSessionFixture(t)
	seedOrder(t, f.db, 42, 1, 100, "USD")

	_, err := f.svc.GetOrCreateSession(context.Background(), 42)
	require.NoError(t, err)

	f.now = f.now.Add(25 * time.Hour)
	f.gateway.initiateRes.Data["session_id"] = "sess-second"
	f.gateway.initiateRes.Data["expiry_date"] = f.now.Add(24 * time.Hour).Format(time.RFC3339)

	cs, err := f.svc.GetOrCreateSession(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, "sess-second", cs.SessionID)
	assert.Equal(t, 2, f.gateway.initiateCalls)
}

func TestSessionService_GatewayFailure(t *testing.T) {
	f := newSessionFixture(t)
	seedOrder(t, f.db, 42, 1, 100, "USD")
	f.gateway.initiateRes = &voltxt.Result{
		Success:   false,
		Error:     "Invalid API credentials (Unauthorized)",
		ErrorCode: "HTTP_ERROR_401",
	}

	_, err := f.svc.GetOrCreateSession(context.Background(), 42)
	assert.ErrorIs(t, err, ErrPaymentInitFailed)

	var count int64
	require.NoError(t, f.db.Model(&models.PaymentSession{}).Count(&count).Error)
	assert.Zero(t, count, "a failed initiation must not leave a session row")
}

func TestSessionService_IncompleteGatewayResponse(t *testing.T) {
	f := newSessionFixture(t)
	seedOrder(t, f.db, 42, 1, 100, "USD")
	f.gateway.initiateRes = &voltxt.Result{
		Success: true,
		Data:    map[string]any{"session_id": "sess-new"}, // no payment_url
	}

	_, err := f.svc.GetOrCreateSession(context.Background(), 42)
	assert.ErrorIs(t, err, ErrPaymentInitFailed)
}

func TestParseExpiry(t *testing.T) {
	assert.Nil(t, parseExpiry(""))
	assert.Nil(t, parseExpiry("not-a-date"))
	for _, s := range []string{
		"2026-01-03T12:00:00Z",
		"2026-01-03 12:00:00",
		"2026-01-03T12:00:00",
	} {
		ts := parseExpiry(s)
		require.NotNil(t, ts, s)
		assert.Equal(t, 2026, ts.Year())
	}
}
