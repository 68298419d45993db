package service

import (
	"errors"
	"fmt"
)

var (
	// ErrOrderNotFound means the referenced order does not exist in the store.
	ErrOrderNotFound = errors.New("order not found")

	// ErrPaymentInitFailed is the only session-creation error shown to the
	// shopper; the underlying gateway detail goes to the log.
	ErrPaymentInitFailed = errors.New("payment initialization failed")

	// ErrUnsupportedCurrency means the order's currency is not accepted by the
	// gateway.
	ErrUnsupportedCurrency = errors.New("currency not supported by payment gateway")

	// ErrMissingTransactionID rejects a completed-payment webhook that carries
	// no transaction id; the provider is expected to retry with one.
	ErrMissingTransactionID = errors.New("transaction id required for completed payment")
)

// OrderResolutionError means a webhook could not be tied to an order, either
// because no identifier matched or the order does not exist.
type OrderResolutionError struct {
	Reference string
	OrderID   uint
}

func (e *OrderResolutionError) Error() string {
	if e.OrderID != 0 {
		return fmt.Sprintf("webhook references unknown order %d", e.OrderID)
	}
	return fmt.Sprintf("could not extract order id from webhook (reference %q)", e.Reference)
}
