package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"voltxt/config"
	"voltxt/internal/models"
	"voltxt/internal/repository"
	"voltxt/pkg/voltxt"

	"gorm.io/gorm"
)

// Gateway is the slice of the Voltxt client the services need; tests swap in
// fakes.
type Gateway interface {
	TestConnection(ctx context.Context, extra map[string]any) *voltxt.Result
	InitiatePayment(ctx context.Context, data voltxt.PaymentData) *voltxt.Result
	GetPaymentStatus(ctx context.Context, sessionID string) *voltxt.Result
	CancelPaymentSession(ctx context.Context, sessionID string) *voltxt.Result
}

// GatewayFactory builds a client for the merchant's current credentials.
// Credentials can change at runtime through the admin API, so the client is
// constructed per use rather than held.
type GatewayFactory func(apiKey, network string) (Gateway, error)

// DefaultGatewayFactory returns real Voltxt clients.
func DefaultGatewayFactory(opts ...voltxt.Option) GatewayFactory {
	return func(apiKey, network string) (Gateway, error) {
		return voltxt.NewClient(apiKey, network, opts...)
	}
}

// CheckoutSession is what the storefront needs to send the shopper to the
// payment page.
type CheckoutSession struct {
	PaymentURL string `json:"payment_url"`
	SessionID  string `json:"session_id"`
	Reused     bool   `json:"-"`
}

// SessionService owns the payment-session lifecycle: reuse a usable session
// or create a fresh one against the gateway. It never writes order history;
// session creation is not a payment event.
type SessionService struct {
	orders   *repository.OrderRepository
	sessions *repository.SessionRepository
	settings *SettingsService
	store    config.StoreConfig
	gateway  GatewayFactory
	now      func() time.Time
}

func NewSessionService(
	orders *repository.OrderRepository,
	sessions *repository.SessionRepository,
	settings *SettingsService,
	store config.StoreConfig,
	gateway GatewayFactory,
) *SessionService {
	return &SessionService{
		orders:   orders,
		sessions: sessions,
		settings: settings,
		store:    store,
		gateway:  gateway,
		now:      time.Now,
	}
}

// GetOrCreateSession returns the payment URL and session id for an order,
// reusing the active session when it is still usable (pending, unexpired,
// amount and currency matching the order). Repeated calls while a session is
// usable return the same session id without touching the gateway.
func (s *SessionService) GetOrCreateSession(ctx context.Context, orderID uint) (*CheckoutSession, error) {
	order, err := s.orders.GetByID(orderID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	if !voltxt.IsSupportedCurrency(order.CurrencyCode) {
		return nil, ErrUnsupportedCurrency
	}

	now := s.now()
	active, err := s.sessions.GetActive(orderID, now)
	if err != nil {
		return nil, err
	}
	if active != nil && active.UsableFor(order.Total, order.CurrencyCode, now) {
		return &CheckoutSession{PaymentURL: active.PaymentURL, SessionID: active.SessionID, Reused: true}, nil
	}

	cfg := s.settings.Current()
	gw, err := s.gateway(cfg.APIKey, cfg.Network)
	if err != nil {
		log.Printf("[Voltxt] gateway client: %v", err)
		return nil, ErrPaymentInitFailed
	}

	urls := voltxt.BuildCallbackURLs(s.store.BaseURL, orderID)
	data := voltxt.PaymentData{
		// The external payment id doubles as the idempotency token and the
		// webhook's order join key: <prefix>_<order_id>_<unix>.
		ExternalPaymentID: fmt.Sprintf("%s_%d_%d", s.store.ExternalIDPrefix, orderID, now.Unix()),
		Amount:            voltxt.FormatAmount(order.Total, order.CurrencyCode),
		FiatCurrency:      order.CurrencyCode,
		ExpiryHours:       cfg.ExpiryHours,
		Description:       fmt.Sprintf("Payment for order #%d", orderID),
		CustomerEmail:     order.Email,
		CustomerName:      customerName(order),
		CallbackURL:       urls.WebhookURL,
		SuccessURL:        urls.SuccessURL,
		CancelURL:         urls.CancelURL,
		Metadata: map[string]any{
			"order_id":    order.ID,
			"customer_id": order.CustomerID,
			"store_id":    s.store.StoreID,
			"platform":    "go",
		},
	}

	res := gw.InitiatePayment(ctx, data)
	if !res.Success {
		log.Printf("[Voltxt] initiate payment failed for order %d: %s (%s, http %d)",
			orderID, res.Error, res.ErrorCode, res.HTTPStatus)
		return nil, ErrPaymentInitFailed
	}

	session := &models.PaymentSession{
		OrderID:        orderID,
		SessionID:      res.Str("session_id"),
		Amount:         order.Total,
		Currency:       order.CurrencyCode,
		Network:        cfg.Network,
		Status:         models.SessionPending,
		PaymentURL:     res.Str("payment_url"),
		DepositAddress: res.Str("deposit_address"),
		AmountSol:      res.Float("amount_sol"),
		ExpiryDate:     parseExpiry(res.Str("expiry_date")),
	}
	if session.SessionID == "" || session.PaymentURL == "" {
		log.Printf("[Voltxt] initiate payment for order %d returned incomplete data: %v", orderID, res.Data)
		return nil, ErrPaymentInitFailed
	}
	if err := s.sessions.Upsert(session); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	if cfg.Debug {
		log.Printf("[Voltxt] session %s created for order %d (expires %v)", session.SessionID, orderID, session.ExpiryDate)
	}
	return &CheckoutSession{PaymentURL: session.PaymentURL, SessionID: session.SessionID}, nil
}

func customerName(o *models.Order) string {
	name := o.FirstName
	if o.LastName != "" {
		if name != "" {
			name += " "
		}
		name += o.LastName
	}
	return name
}

func parseExpiry(s string) *time.Time {
	if s == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}
