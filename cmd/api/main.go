package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"database/sql"

	"github.com/androcoderr/finance-app/internal/analysis"
	"github.com/androcoderr/finance-app/internal/anomaly"
	"github.com/androcoderr/finance-app/internal/config"
	"github.com/androcoderr/finance-app/internal/handler"
	"github.com/androcoderr/finance-app/internal/integrations/rates"
	"github.com/androcoderr/finance-app/internal/middleware"
	"github.com/androcoderr/finance-app/internal/repository"
	"github.com/androcoderr/finance-app/internal/service"
	"github.com/androcoderr/finance-app/internal/utils/email"
	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

func main() {
	_ = godotenv.Load()

	// Initialize logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logLevel, err := logrus.ParseLevel(os.Getenv("LOG_LEVEL"))
	if err != nil {
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	// Load configuration
	cfg, err := config.NewConfig()
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}

	// Initialize database
	db, err := sql.Open("postgres", cfg.DBConn)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		logger.Fatalf("Failed to ping database: %v", err)
	}

	// Initialize layers
	repo := repository.NewRepository(db)
	detector := anomaly.NewDetector(logger)
	svc := service.NewService(repo, detector, logger, cfg)

	params, err := analysis.NewParamStore(cfg.ModelsDir)
	if err != nil {
		logger.Fatalf("Failed to initialize model store: %v", err)
	}
	cache := analysis.NewResultCache()
	trainer := analysis.NewTrainer(repo, params, logger)
	engine := analysis.NewEngine(repo, params, cache, logger)
	worker := analysis.NewWorker(repo, params, trainer, engine, logger)
	worker.Start()
	defer worker.Stop()

	mailSender := email.NewSender(cfg, logger)
	scheduler := service.NewScheduler(svc, mailSender, logger)
	if err := scheduler.Start(); err != nil {
		logger.Fatalf("Failed to start scheduler: %v", err)
	}
	defer scheduler.Stop()

	ratesClient := rates.NewClient(cfg, logger)
	h := handler.NewHandler(svc, worker, cache, ratesClient, logger)

	// Setup router
	r := mux.NewRouter()
	// Public routes
	r.HandleFunc("/register", h.Register).Methods("POST")
	r.HandleFunc("/login", h.Login).Methods("POST")
	r.HandleFunc("/key-rate", h.KeyRate).Methods("GET")

	// Protected routes
	authRouter := r.PathPrefix("/").Subrouter()
	authRouter.Use(middleware.AuthMiddleware(cfg))
	authRouter.HandleFunc("/transactions", h.CreateTransaction).Methods("POST")
	authRouter.HandleFunc("/transactions", h.ListTransactions).Methods("GET")
	authRouter.HandleFunc("/transactions/{id}", h.UpdateTransaction).Methods("PUT")
	authRouter.HandleFunc("/transactions/{id}", h.DeleteTransaction).Methods("DELETE")
	authRouter.HandleFunc("/goals", h.CreateGoal).Methods("POST")
	authRouter.HandleFunc("/goals", h.ListGoals).Methods("GET")
	authRouter.HandleFunc("/goals/{id}", h.UpdateGoal).Methods("PUT")
	authRouter.HandleFunc("/goals/{id}", h.DeleteGoal).Methods("DELETE")
	authRouter.HandleFunc("/goals/{id}/dates", h.AddGoalDate).Methods("POST")
	authRouter.HandleFunc("/recurring", h.CreateRecurring).Methods("POST")
	authRouter.HandleFunc("/recurring", h.ListRecurring).Methods("GET")
	authRouter.HandleFunc("/recurring/{id}", h.UpdateRecurring).Methods("PUT")
	authRouter.HandleFunc("/recurring/{id}", h.DeleteRecurring).Methods("DELETE")
	authRouter.HandleFunc("/bills", h.CreateBill).Methods("POST")
	authRouter.HandleFunc("/bills", h.ListBills).Methods("GET")
	authRouter.HandleFunc("/bills/{id}", h.DeleteBill).Methods("DELETE")
	authRouter.HandleFunc("/bills/{id}/payments", h.PayBill).Methods("POST")
	authRouter.HandleFunc("/categories", h.ListCategories).Methods("GET")
	authRouter.HandleFunc("/categories", h.CreateCategory).Methods("POST")
	authRouter.HandleFunc("/analytics/income-expense", h.IncomeExpenseStats).Methods("GET")
	authRouter.HandleFunc("/analytics/forecast", h.BalanceForecast).Methods("GET")
	authRouter.HandleFunc("/analysis-requests", h.RequestBudgetAnalysis).Methods("POST")
	authRouter.HandleFunc("/analysis-requests/{goal_id}", h.BudgetAnalysisResult).Methods("GET")
	authRouter.HandleFunc("/anomaly/check", h.CheckAnomaly).Methods("POST")

	// Start server
	addr := fmt.Sprintf(":%s", cfg.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		logger.Infof("Starting server on %s", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Errorf("Server shutdown failed: %v", err)
	}
}
