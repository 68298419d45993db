package handler

import (
	"net/http"
	"strconv"
	"strings"

	"voltxt/config"
	"voltxt/internal/auth"
	"voltxt/internal/repository"
	"voltxt/internal/service"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
)

// AdminHandler exposes the merchant configuration surface: login, gateway
// settings, connection test, and session inspection.
type AdminHandler struct {
	cfg      *config.Config
	settings *service.SettingsService
	gateway  service.GatewayFactory
	webhooks *repository.WebhookRepository
}

func NewAdminHandler(cfg *config.Config, settings *service.SettingsService, gateway service.GatewayFactory, webhooks *repository.WebhookRepository) *AdminHandler {
	return &AdminHandler{cfg: cfg, settings: settings, gateway: gateway, webhooks: webhooks}
}

func (h *AdminHandler) Login(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Email != h.cfg.Admin.Email ||
		bcrypt.CompareHashAndPassword([]byte(h.cfg.Admin.PasswordHash), []byte(req.Password)) != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}
	token, err := auth.GenerateToken(&h.cfg.JWT, req.Email, "admin")
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token generation failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token})
}

func (h *AdminHandler) GetSettings(c *gin.Context) {
	c.JSON(http.StatusOK, h.settings.Current())
}

func (h *AdminHandler) UpdateSettings(c *gin.Context) {
	var req service.GatewaySettings
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.settings.Update(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Settings saved"})
}

// TestConnection validates a key/network pair against the Voltxt backend
// without saving it, so the merchant can verify credentials before enabling
// the gateway.
func (h *AdminHandler) TestConnection(c *gin.Context) {
	var req struct {
		APIKey  string `json:"api_key"`
		Network string `json:"network"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}
	req.APIKey = strings.TrimSpace(req.APIKey)
	if req.Network == "" {
		req.Network = "testnet"
	}

	gw, err := h.gateway(req.APIKey, req.Network)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}
	res := gw.TestConnection(c.Request.Context(), map[string]any{
		"store_name": h.cfg.Store.Name,
	})
	if !res.Success {
		c.JSON(http.StatusOK, gin.H{"success": false, "error": res.Error})
		return
	}

	store, _ := res.Data["store"].(map[string]any)
	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"store_name": store["name"],
		"network":    store["network"],
		"has_wallet": store["has_destination_wallet"],
		"message":    "Connection successful",
	})
}

// SessionStatus proxies a synchronous status lookup through the gateway.
func (h *AdminHandler) SessionStatus(c *gin.Context) {
	gw, err := h.currentGateway(c)
	if err != nil {
		return
	}
	res := gw.GetPaymentStatus(c.Request.Context(), c.Param("session_id"))
	h.relay(c, res.Success, gin.H{
		"success": res.Success, "data": res.Data, "error": res.Error, "error_code": res.ErrorCode,
	})
}

// CancelSession cancels a pending session at the gateway.
func (h *AdminHandler) CancelSession(c *gin.Context) {
	gw, err := h.currentGateway(c)
	if err != nil {
		return
	}
	res := gw.CancelPaymentSession(c.Request.Context(), c.Param("session_id"))
	h.relay(c, res.Success, gin.H{
		"success": res.Success, "data": res.Data, "error": res.Error, "error_code": res.ErrorCode,
	})
}

// OrderWebhooks returns the webhook ledger for an order, newest last.
func (h *AdminHandler) OrderWebhooks(c *gin.Context) {
	orderID, err := strconv.ParseUint(c.Param("order_id"), 10, 64)
	if err != nil || orderID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid order id"})
		return
	}
	logs, err := h.webhooks.ListByOrder(uint(orderID))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load webhook log"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"webhooks": logs})
}

func (h *AdminHandler) currentGateway(c *gin.Context) (service.Gateway, error) {
	cfg := h.settings.Current()
	gw, err := h.gateway(cfg.APIKey, cfg.Network)
	if err != nil {
		c.JSON(http.StatusConflict, gin.H{"success": false, "error": "gateway is not configured: " + err.Error()})
		return nil, err
	}
	return gw, nil
}

func (h *AdminHandler) relay(c *gin.Context, ok bool, body gin.H) {
	status := http.StatusOK
	if !ok {
		status = http.StatusBadGateway
	}
	c.JSON(status, body)
}
