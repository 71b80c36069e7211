package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"fleetpilot-backend/internal/agentauth"
	"fleetpilot-backend/internal/cache"
	"fleetpilot-backend/internal/escalation"
	"fleetpilot-backend/internal/executor"
	"fleetpilot-backend/internal/handlers"
	"fleetpilot-backend/internal/ingest"
	"fleetpilot-backend/internal/natsbus"
	"fleetpilot-backend/internal/orchestrator"
	"fleetpilot-backend/internal/pairing"
	"fleetpilot-backend/internal/secrets"
	"fleetpilot-backend/internal/services"
	"fleetpilot-backend/internal/storage"
	"fleetpilot-backend/internal/workers"
)

func main() {
	if os.Getenv("JWT_SECRET") == "" {
		log.Fatal("JWT_SECRET is required")
	}

	box, err := secrets.NewBox(os.Getenv("CRED_SECRET_KEY"))
	if err != nil {
		log.Fatalf("Credential key error: %v", err)
	}

	// Database connection (with retries)
	var db *sqlx.DB
	for i := 0; i < 10; i++ {
		db, err = sqlx.Connect("postgres", buildDSN())
		if err == nil {
			break
		}
		log.Printf("DB connection attempt %d failed: %v", i+1, err)
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	log.Println("Connected to database")

	// NATS connection
	natsClient, err := natsbus.Connect()
	if err != nil {
		log.Fatalf("Failed to connect to NATS: %v", err)
	}
	defer natsClient.Close()

	// Redis cache
	redisClient, err := cache.NewRedisClient()
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()

	// Storage
	store := storage.NewStorage(db)

	// Remote executor over NATS
	remoteExec := executor.NewNATSExecutor(natsClient.NC())

	// Orchestrator; fail anything still marked running from a previous run
	orch := orchestrator.New(store, remoteExec)
	orch.SweepInterrupted(context.Background())

	// NATS credential issuer for paired devices (optional)
	var creds *agentauth.Credentialer
	if seed := os.Getenv("NATS_SIGNING_KEY_SEED"); seed != "" {
		issuer, err := agentauth.NewJWTIssuer(seed, os.Getenv("NATS_ACCOUNT_PUBLIC_KEY"))
		if err != nil {
			log.Fatalf("NATS issuer error: %v", err)
		}
		creds = agentauth.NewCredentialer(issuer)
	} else {
		log.Println("WARN NATS_SIGNING_KEY_SEED not set; devices pair without bus credentials")
		creds = agentauth.NewCredentialer(nil)
	}

	// Pairing
	pairingSvc := pairing.NewService(store, creds)

	// Escalation
	hours := escalation.BusinessHours{
		StartHour: getEnvInt("BUSINESS_HOURS_START", 9),
		EndHour:   getEnvInt("BUSINESS_HOURS_END", 17),
	}
	slackClient := services.NewSlackClient(os.Getenv("SLACK_WEBHOOK_URL"))
	esc := escalation.NewEngine(store, slackClient, hours)

	// Start consumers
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	eventsConsumer := ingest.NewEventsConsumer(natsClient.JS(), store)
	if err := eventsConsumer.Start(ctx); err != nil {
		log.Fatalf("Failed to start events consumer: %v", err)
	}

	kvWatcher := ingest.NewKVWatcher(natsClient.KV(), store, redisClient)
	if err := kvWatcher.Start(ctx); err != nil {
		log.Fatalf("Failed to start KV watcher: %v", err)
	}

	keyEventsActive := workers.StartRedisKeyeventWorker(ctx, redisClient, store)
	if !keyEventsActive {
		log.Println("WARN Redis keyspace notifications are not active; fallback reconciler will be used")
		workers.StartHeartbeatReconciler(ctx, redisClient, store)
	}
	workers.StartPairingSweeper(ctx, pairingSvc)

	// HTTP handlers
	h := handlers.New(store, orch, pairingSvc, esc, box, redisClient)

	// Router
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	h.RegisterRoutes(r)

	server := &http.Server{
		Addr:    ":" + getEnv("HTTP_PORT", "8080"),
		Handler: r,
	}

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		log.Println("Shutting down...")
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		_ = eventsConsumer.Stop()
		_ = kvWatcher.Stop()
		_ = server.Shutdown(shutdownCtx)
	}()

	log.Printf("Server starting on %s", server.Addr)
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatalf("Server error: %v", err)
	}
	log.Println("Server stopped")
}

func buildDSN() string {
	return "host=" + getEnv("DB_HOST", "localhost") +
		" user=" + getEnv("DB_USER", "fleet_user") +
		" password=" + getEnv("DB_PASSWORD", "fleet_pass") +
		" dbname=" + getEnv("DB_NAME", "fleetpilot") +
		" sslmode=disable"
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
