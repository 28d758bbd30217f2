package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/ignite/adfatigue-monitor/internal/api"
	"github.com/ignite/adfatigue-monitor/internal/config"
	"github.com/ignite/adfatigue-monitor/internal/repository/postgres"
	"github.com/ignite/adfatigue-monitor/internal/worker"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to configuration file")
	flag.Parse()

	log.Println("Starting Ad Fatigue Monitor...")

	cfg, err := config.LoadFromEnv(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Database.URL == "" {
		log.Fatal("No database configured; set database.url or DATABASE_URL")
	}

	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelPing()
	if err := db.PingContext(pingCtx); err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}
	log.Println("Connected to database")

	store := postgres.NewStore(db)
	store.SetAlertCooldown(cfg.Alerts.Cooldown())

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr: cfg.Redis.Addr,
			DB:   cfg.Redis.DB,
		})
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			log.Printf("Redis unavailable (%v); falling back to PostgreSQL for dedup and locking", err)
			redisClient = nil
		} else {
			store.SetRedisClient(redisClient)
			log.Println("Connected to Redis")
		}
	}

	batch := worker.NewBatchAnalyzer(store)
	batch.SetLookbackDays(cfg.Scan.LookbackDays)
	batch.SetGroupDelay(cfg.Scan.GroupDelay())

	var scanner *worker.AccountScanner
	if cfg.Scan.Enabled {
		scanner = worker.NewAccountScanner(batch, store, db)
		scanner.SetInterval(cfg.Scan.Interval())
		if redisClient != nil {
			scanner.SetRedisClient(redisClient)
		}
		if err := scanner.Start(); err != nil {
			log.Fatalf("Failed to start account scanner: %v", err)
		}
	}

	handlers := api.NewHandlers(store, batch, db)
	server := api.NewServer(cfg.Server, handlers)

	addr := fmt.Sprintf("%s:%d", cfg.Server.GetHost(), cfg.Server.Port)
	go func() {
		log.Printf("API listening on %s", addr)
		if err := server.ListenAndServe(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("API server error: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	log.Println("Shutting down...")
	if scanner != nil {
		scanner.Stop()
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("API shutdown error: %v", err)
	}
	if redisClient != nil {
		redisClient.Close()
	}
	log.Println("Stopped")
}
