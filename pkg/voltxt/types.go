package voltxt

import (
	"math"
	"strings"
)

// Result is the normalized outcome of a Voltxt API call. Exactly one of the
// success or error halves is meaningful: on Success, Data and Message are set;
// otherwise Error, ErrorCode and HTTPStatus describe the failure (HTTPStatus
// is 0 when the request never produced an HTTP response).
type Result struct {
	Success    bool
	Data       map[string]any
	Message    string
	Error      string
	ErrorCode  string
	HTTPStatus int
	RawBody    string // truncated raw body, only set for non-JSON responses
}

// Str returns a string field from Data, or "" when absent.
func (r *Result) Str(key string) string {
	if r.Data == nil {
		return ""
	}
	s, _ := r.Data[key].(string)
	return s
}

// Float returns a numeric field from Data, or 0 when absent.
func (r *Result) Float(key string) float64 {
	if r.Data == nil {
		return 0
	}
	f, _ := r.Data[key].(float64)
	return f
}

// PaymentData is the request body for InitiatePayment. ExternalPaymentID is
// the caller-chosen idempotency token; Voltxt echoes it back in webhooks so it
// doubles as the order join key.
type PaymentData struct {
	ExternalPaymentID string
	Amount            float64
	FiatCurrency      string
	ExpiryHours       int
	Description       string
	CustomerEmail     string
	CustomerName      string
	CallbackURL       string
	SuccessURL        string
	CancelURL         string
	Metadata          map[string]any
}

func (d PaymentData) payload() map[string]any {
	p := map[string]any{
		"external_payment_id": d.ExternalPaymentID,
		"amount_type":         "fiat",
		"amount":              d.Amount,
		"fiat_currency":       d.FiatCurrency,
		"expiry_hours":        d.ExpiryHours,
		"description":         d.Description,
		"customer_email":      d.CustomerEmail,
		"customer_name":       d.CustomerName,
		"callback_url":        d.CallbackURL,
		"success_url":         d.SuccessURL,
		"cancel_url":          d.CancelURL,
	}
	if d.Metadata != nil {
		p["metadata"] = d.Metadata
	}
	return p
}

// SupportedCurrencies lists the fiat currencies Voltxt accepts for
// amount_type=fiat sessions.
var SupportedCurrencies = []string{
	"USD", "EUR", "GBP", "AUD", "CAD", "JPY", "NZD", "CHF", "SGD", "HKD", "CNY", "INR", "BRL",
}

// IsSupportedCurrency reports whether code is an accepted fiat currency.
func IsSupportedCurrency(code string) bool {
	for _, c := range SupportedCurrencies {
		if c == code {
			return true
		}
	}
	return false
}

// FormatAmount rounds an amount to the decimal precision the API expects:
// 9 places for SOL (lamports), 2 for fiat.
func FormatAmount(amount float64, currency string) float64 {
	pow := math.Pow10(2)
	if strings.ToUpper(currency) == "SOL" {
		pow = math.Pow10(9)
	}
	return math.Round(amount*pow) / pow
}
