package voltxt

import (
	"fmt"
	"strings"
)

// Placeholders the Voltxt payment page substitutes before redirecting the
// payer. They must appear literally in the URLs sent at session creation.
const (
	PlaceholderSessionID     = "[session_id]"
	PlaceholderPaymentStatus = "[payment_status]"
	PlaceholderPaymentTxID   = "[payment_tx_id]"
)

// CallbackURLs is the set of store endpoints handed to Voltxt with a payment
// session. WebhookURL receives server-to-server notifications; the others are
// browser redirects.
type CallbackURLs struct {
	WebhookURL  string
	CallbackURL string
	SuccessURL  string
	CancelURL   string
}

// BuildCallbackURLs derives the standard callback set for an order from the
// store's public base URL.
func BuildCallbackURLs(baseURL string, orderID uint) CallbackURLs {
	base := strings.TrimRight(baseURL, "/")
	return CallbackURLs{
		WebhookURL: base + "/api/v1/webhooks/voltxt",
		CallbackURL: fmt.Sprintf("%s/api/v1/payments/voltxt/callback?order_id=%d&voltxt_session_id=%s&voltxt_payment_status=%s&voltxt_payment_tx=%s",
			base, orderID, PlaceholderSessionID, PlaceholderPaymentStatus, PlaceholderPaymentTxID),
		SuccessURL: fmt.Sprintf("%s/api/v1/payments/voltxt/callback?order_id=%d&voltxt_session_id=%s&voltxt_payment_status=%s&voltxt_payment_tx=%s",
			base, orderID, PlaceholderSessionID, PlaceholderPaymentStatus, PlaceholderPaymentTxID),
		CancelURL: fmt.Sprintf("%s/api/v1/payments/voltxt/callback?order_id=%d&voltxt_cancelled=1&voltxt_session_id=%s",
			base, orderID, PlaceholderSessionID),
	}
}
