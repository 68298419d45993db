package router

import (
	"time"

	"voltxt/config"
	"voltxt/internal/handler"
	"voltxt/internal/middleware"
	"voltxt/internal/repository"
	"voltxt/internal/service"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

func Setup(cfg *config.Config, db *gorm.DB, gateway service.GatewayFactory) (*gin.Engine, error) {
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RateLimit(middleware.NewInMemoryRateLimiter(100, 60*time.Second)))

	// Repositories
	orderRepo := repository.NewOrderRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	webhookRepo := repository.NewWebhookRepository(db)
	settingRepo := repository.NewSettingRepository(db)

	// Services
	settingsSvc, err := service.NewSettingsService(settingRepo, &cfg.Voltxt)
	if err != nil {
		return nil, err
	}
	sessionSvc := service.NewSessionService(orderRepo, sessionRepo, settingsSvc, cfg.Store, gateway)
	reconciler := service.NewReconciler(orderRepo, sessionRepo, webhookRepo, settingsSvc, cfg.Store.ExternalIDPrefix)
	resolver := service.NewRedirectResolver(orderRepo, settingsSvc)

	// Handlers
	checkoutHandler := handler.NewCheckoutHandler(sessionSvc)
	webhookHandler := handler.NewWebhookHandler(reconciler, settingsSvc)
	callbackHandler := handler.NewCallbackHandler(resolver)
	adminHandler := handler.NewAdminHandler(cfg, settingsSvc, gateway, webhookRepo)

	authMw := middleware.AuthRequired(&cfg.JWT)

	api := r.Group("/api/v1")
	{
		api.POST("/checkout/session", checkoutHandler.CreateSession)
		api.GET("/checkout/confirm", checkoutHandler.Confirm)

		api.POST("/webhooks/voltxt", webhookHandler.Handle)
		api.GET("/payments/voltxt/callback", callbackHandler.Handle)

		admin := api.Group("/admin")
		{
			admin.POST("/login", adminHandler.Login)

			secured := admin.Group("")
			secured.Use(authMw, middleware.RequireRole("admin"))
			{
				secured.GET("/settings", adminHandler.GetSettings)
				secured.PUT("/settings", adminHandler.UpdateSettings)
				secured.POST("/test-connection", adminHandler.TestConnection)
				secured.GET("/sessions/:session_id/status", adminHandler.SessionStatus)
				secured.POST("/sessions/:session_id/cancel", adminHandler.CancelSession)
				secured.GET("/orders/:order_id/webhooks", adminHandler.OrderWebhooks)
			}
		}
	}

	return r, nil
}
