package service

import (
	"voltxt/internal/repository"

	"gorm.io/gorm"
)

// Storefront pages the resolver can send a returning shopper to.
const (
	PageHome     = "/"
	PageSuccess  = "/checkout/success"
	PageFailure  = "/checkout/failure"
	PageCheckout = "/checkout"
)

// Redirect is a navigation decision: where to send the browser and, for the
// checkout page, which error banner to show.
type Redirect struct {
	Location string
	Message  string
}

// RedirectResolver maps a shopper's return from the Voltxt payment page to a
// storefront page. It is read-only: the webhook is the only thing that moves
// orders, so the browser round-trip must produce a sensible page whether the
// webhook has landed yet or not.
type RedirectResolver struct {
	orders   *repository.OrderRepository
	settings *SettingsService
}

func NewRedirectResolver(orders *repository.OrderRepository, settings *SettingsService) *RedirectResolver {
	return &RedirectResolver{orders: orders, settings: settings}
}

// Resolve decides the redirect for a return-URL hit. statusHint is the
// payment-status token from the URL; it is advisory only, the order's actual
// status wins when the order is already final.
func (r *RedirectResolver) Resolve(orderID uint, statusHint string, cancelled bool) Redirect {
	if orderID == 0 {
		return Redirect{Location: PageHome}
	}
	order, err := r.orders.GetByID(orderID)
	if err != nil {
		if err != gorm.ErrRecordNotFound {
			return Redirect{Location: PageCheckout, Message: "Payment status unknown. Please contact support if payment was completed."}
		}
		return Redirect{Location: PageHome}
	}

	if cancelled {
		statusHint = "cancelled"
	}

	cfg := r.settings.Current()
	switch order.OrderStatusID {
	case cfg.CompletedStatusID:
		return Redirect{Location: PageSuccess}
	case cfg.FailedStatusID, cfg.CancelledStatusID:
		return Redirect{Location: PageFailure}
	}

	switch statusHint {
	case "completed", "pending", "payment_detected":
		return Redirect{Location: PageSuccess}
	case "cancelled":
		return Redirect{Location: PageCheckout, Message: "Payment was cancelled. You can try again or choose a different payment method."}
	case "expired":
		return Redirect{Location: PageCheckout, Message: "Payment session has expired. Please try again."}
	default:
		return Redirect{Location: PageCheckout, Message: "Payment status unknown. Please contact support if payment was completed."}
	}
}
