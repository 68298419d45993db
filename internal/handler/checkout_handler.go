package handler

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"

	"voltxt/internal/service"

	"github.com/gin-gonic/gin"
)

type CheckoutHandler struct {
	sessions *service.SessionService
}

func NewCheckoutHandler(sessions *service.SessionService) *CheckoutHandler {
	return &CheckoutHandler{sessions: sessions}
}

// CreateSession is the AJAX endpoint the checkout page polls for a payment
// URL. Reuse of a still-usable session means polling never piles up sessions.
func (h *CheckoutHandler) CreateSession(c *gin.Context) {
	var req struct {
		OrderID uint `json:"order_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid order information. Please contact support."})
		return
	}

	session, err := h.sessions.GetOrCreateSession(c.Request.Context(), req.OrderID)
	if err != nil {
		h.writeSessionError(c, err)
		return
	}

	message := "Payment session created successfully"
	if session.Reused {
		message = "Using existing payment session"
	}
	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"payment_url": session.PaymentURL,
		"session_id":  session.SessionID,
		"message":     message,
	})
}

// Confirm sends the shopper's browser straight to the payment page, creating
// a session first if needed.
func (h *CheckoutHandler) Confirm(c *gin.Context) {
	orderID, _ := strconv.ParseUint(c.Query("order_id"), 10, 64)
	if orderID == 0 {
		c.Redirect(http.StatusFound, service.PageCheckout+"?error="+url.QueryEscape("Invalid order information. Please contact support."))
		return
	}

	session, err := h.sessions.GetOrCreateSession(c.Request.Context(), uint(orderID))
	if err != nil {
		msg := "Payment initialization failed. Please try again or contact support."
		if errors.Is(err, service.ErrOrderNotFound) {
			msg = "Invalid order information. Please contact support."
		}
		c.Redirect(http.StatusFound, service.PageCheckout+"?error="+url.QueryEscape(msg))
		return
	}
	c.Redirect(http.StatusFound, session.PaymentURL)
}

func (h *CheckoutHandler) writeSessionError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrOrderNotFound):
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "Invalid order information. Please contact support."})
	case errors.Is(err, service.ErrUnsupportedCurrency):
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "This currency is not supported for Solana payments."})
	default:
		// Gateway detail never reaches the shopper.
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Payment initialization failed. Please try again or contact support."})
	}
}
