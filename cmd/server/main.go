package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"voltxt/config"
	"voltxt/internal/database"
	"voltxt/internal/router"
	"voltxt/internal/service"
	"voltxt/pkg/voltxt"
)

func main() {
	cfg := config.Load()
	db, err := database.NewDB(&cfg.Database)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	if err := database.AutoMigrate(db); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	gateway := service.DefaultGatewayFactory(
		voltxt.WithTimeout(cfg.Voltxt.RequestTimeout),
		voltxt.WithAudit(func(method, endpoint string, request any, response *voltxt.Result) {
			log.Printf("[Voltxt API] %s %s success=%t code=%s http=%d",
				method, endpoint, response.Success, response.ErrorCode, response.HTTPStatus)
		}),
	)

	engine, err := router.Setup(cfg, db, gateway)
	if err != nil {
		log.Fatalf("router: %v", err)
	}
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      engine,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	go func() {
		log.Printf("server listening on :%s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("server shutdown:", err)
	}
	log.Println("server stopped")
}
