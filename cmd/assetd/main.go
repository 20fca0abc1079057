// Command assetd is the composition root for the asset vault service: it
// wires config, Postgres, the content-addressed vault, the upload session
// manager, the orphan reaper and the HTTP API together, grounded on the
// teacher's cmd/api and cmd/worker main.go wiring style.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"assetvault/config"
	"assetvault/internal/api"
	"assetvault/internal/api/assethandler"
	"assetvault/internal/assetcore"
	"assetvault/internal/db"
	"assetvault/internal/queue/orphanreaper"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
)

func init() {
	log.SetOutput(os.Stdout)
	config.LoadEnvironment()
}

func main() {
	dbConfig := config.LoadDBConfig()
	appConfig := config.LoadAppConfig()

	log.Println("starting assetvault...")
	log.Printf("database configuration: %s:%s/%s", dbConfig.Host, dbConfig.Port, dbConfig.DBName)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		dbConfig.User, dbConfig.Password, dbConfig.Host, dbConfig.Port, dbConfig.DBName, dbConfig.SSL)

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		log.Fatalf("unable to create pgx connection pool: %v", err)
	}
	defer pool.Close()

	if err := db.AutoMigrate(ctx, dbConfig); err != nil {
		log.Fatalf("migration failed: %v", err)
	}

	vault, err := assetcore.NewLocalVault(appConfig.VaultConfig.Root)
	if err != nil {
		log.Fatalf("failed to initialize vault at %s: %v", appConfig.VaultConfig.Root, err)
	}
	log.Printf("vault root: %s", appConfig.VaultConfig.Root)

	store := assetcore.NewIndexStore(pool)
	sessions := assetcore.NewUploadSessionManager(appConfig.UploadConfig.SessionTimeout)
	defer sessions.Shutdown()

	notifier := assetcore.LoggingNotifier{}
	service := assetcore.NewService(vault, store, sessions, notifier)
	memoryMonitor := assetcore.NewMemoryMonitor()

	workers := river.NewWorkers()
	river.AddWorker(workers, &orphanreaper.Worker{Service: service})

	riverClient, err := river.NewClient(riverpgxv5.New(pool), &river.Config{
		Queues: map[string]river.QueueConfig{
			river.QueueDefault: {MaxWorkers: 2},
		},
		Workers:      workers,
		PeriodicJobs: orphanreaper.PeriodicJobs(projectAliases(), appConfig.UploadConfig.OrphanSweepPeriod),
	})
	if err != nil {
		log.Fatalf("failed to build river client: %v", err)
	}

	if err := riverClient.Start(ctx); err != nil {
		log.Fatalf("failed to start river client: %v", err)
	}
	defer func() {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer stopCancel()
		if err := riverClient.Stop(stopCtx); err != nil {
			log.Printf("river client stop error: %v", err)
		}
	}()

	handler := assethandler.NewAssetHandler(service, memoryMonitor)
	router := api.NewRouter(handler)

	httpServer := &http.Server{
		Addr:    ":" + appConfig.ServerConfig.Port,
		Handler: router,
	}

	go func() {
		log.Printf("listening on :%s", appConfig.ServerConfig.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http server error: %v", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	log.Println("shutdown signal received")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("http server shutdown error: %v", err)
	}
}

// projectAliases lists the aliases the orphan reaper sweeps periodically.
// In this single-tenant deployment there is exactly one; a multi-tenant
// deployment would source this from the document subsystem's project
// table instead.
func projectAliases() []string {
	if alias := os.Getenv("VAULT_PROJECT_ALIAS"); alias != "" {
		return []string{alias}
	}
	return []string{"@default"}
}
