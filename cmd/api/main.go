package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/lottoplay/momo-backend/api/routes"
	"github.com/lottoplay/momo-backend/internal/config"
	"github.com/lottoplay/momo-backend/internal/handlers"
	mongorepo "github.com/lottoplay/momo-backend/internal/repositories/mongodb"
	"github.com/lottoplay/momo-backend/internal/services"
	"github.com/lottoplay/momo-backend/pkg/momo"
	"github.com/lottoplay/momo-backend/pkg/mongodb"
)

func main() {
	// .env is optional; real deployments configure through the environment
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("Could not load .env file: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	mongoClient, err := mongodb.NewClient(cfg.MongoDB.URI)
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer func() {
		if err := mongoClient.Disconnect(context.Background()); err != nil {
			log.Printf("Error disconnecting from MongoDB: %v", err)
		}
	}()

	db := mongoClient.Database(cfg.MongoDB.Database)

	// Repositories
	txnRepo := mongorepo.NewPaymentTransactionRepository(db)
	userRepo := mongorepo.NewUserRepository(db)

	// Gateway client
	gateway := momo.NewClient(cfg.Momo.BaseURL, cfg.Momo.APIKey, cfg.Momo.APISecret, cfg.Momo.MockAPI)

	// Services
	paymentService := services.NewPaymentService(txnRepo, userRepo, gateway)
	reconciliationService := services.NewReconciliationService(txnRepo, gateway, cfg.Reconciliation)
	statusPoller := services.NewStatusPoller(paymentService, cfg.Poller)

	// Handlers
	paymentHandler := handlers.NewPaymentHandler(paymentService, reconciliationService, statusPoller, cfg)

	router := routes.SetupRouter(cfg, db, routes.HandlerDependencies{
		PaymentHandler: paymentHandler,
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}

	log.Printf("Server starting on port %s", cfg.Server.Port)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown: ", err)
	}

	log.Println("Server exiting")
}
