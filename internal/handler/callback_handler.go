package handler

import (
	"net/http"
	"net/url"
	"strconv"

	"voltxt/internal/service"

	"github.com/gin-gonic/gin"
)

// CallbackHandler handles the shopper's browser returning from the Voltxt
// payment page. It only redirects; the webhook is what moves orders.
type CallbackHandler struct {
	resolver *service.RedirectResolver
}

func NewCallbackHandler(resolver *service.RedirectResolver) *CallbackHandler {
	return &CallbackHandler{resolver: resolver}
}

func (h *CallbackHandler) Handle(c *gin.Context) {
	orderID, _ := strconv.ParseUint(c.Query("order_id"), 10, 64)
	statusHint := c.Query("voltxt_payment_status")
	_, cancelled := c.GetQuery("voltxt_cancelled")

	redirect := h.resolver.Resolve(uint(orderID), statusHint, cancelled)
	location := redirect.Location
	if redirect.Message != "" {
		location += "?error=" + url.QueryEscape(redirect.Message)
	}
	c.Redirect(http.StatusFound, location)
}
