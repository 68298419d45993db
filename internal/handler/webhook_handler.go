package handler

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log"
	"net/http"

	"voltxt/internal/service"

	"github.com/gin-gonic/gin"
)

// WebhookHandler receives Voltxt's server-to-server notifications. The HTTP
// status is the provider's retry signal: 2xx acknowledges, 4xx drops the
// delivery as malformed, 5xx asks for a retry.
type WebhookHandler struct {
	reconciler *service.Reconciler
	settings   *service.SettingsService
}

func NewWebhookHandler(reconciler *service.Reconciler, settings *service.SettingsService) *WebhookHandler {
	return &WebhookHandler{reconciler: reconciler, settings: settings}
}

func (h *WebhookHandler) Handle(c *gin.Context) {
	raw, err := c.GetRawData()
	if err != nil || len(raw) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Empty payload"})
		return
	}

	cfg := h.settings.Current()
	if cfg.WebhookSecret != "" {
		if !verifySignature(raw, c.GetHeader("X-Voltxt-Signature"), cfg.WebhookSecret) {
			c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "Invalid signature"})
			return
		}
	} else if cfg.Debug {
		// Without a shared secret the endpoint accepts any caller's POST;
		// the idempotency gate is the only protection against replays.
		log.Printf("[Voltxt webhook] signature verification disabled (no webhook secret configured)")
	}

	var evt service.WebhookEvent
	if err := json.Unmarshal(raw, &evt); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid JSON"})
		return
	}

	if err := h.reconciler.Process(&evt, raw); err != nil {
		if cfg.Debug {
			log.Printf("[Voltxt webhook] error: %v", err)
		}
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// verifySignature checks an HMAC-SHA256 hex digest of the raw body in
// constant time.
func verifySignature(raw []byte, signature, secret string) bool {
	if signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(raw)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
