package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/caremesh/clinic-scheduling/internal/config"
	"github.com/caremesh/clinic-scheduling/internal/db"
	redisclient "github.com/caremesh/clinic-scheduling/internal/redis"
	"github.com/caremesh/clinic-scheduling/internal/scheduling"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("slot-worker starting up")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	log.Printf("running slot worker in env=%s interval=%s horizon_days=%d", cfg.Env, cfg.WorkerInterval, cfg.HorizonDays)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect Postgres
	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		log.Fatalf("postgres connection error: %v", err)
	}
	defer pgPool.Close()
	log.Println("connected to Postgres")

	rdb, err := redisclient.NewRedisClient(cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	if err != nil {
		log.Fatalf("redis connection error: %v", err)
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			log.Printf("error closing redis: %v", err)
		}
	}()
	log.Println("connected to Redis")

	repo := scheduling.NewPgRepository(pgPool)
	locker := redisclient.NewRedisLocker(rdb, cfg.LockTTL)
	ledger := scheduling.NewLedger(repo, locker, cfg.SlotGranularity)
	notifier := scheduling.NewRedisNotifier(rdb)
	svc := scheduling.NewService(repo, repo, ledger, notifier, cfg)

	// Run once at startup
	runOnce(rootCtx, svc)

	ticker := time.NewTicker(cfg.WorkerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			log.Println("shutdown signal received, stopping slot worker")
			return
		case <-ticker.C:
			runOnce(rootCtx, svc)
		}
	}
}

func runOnce(ctx context.Context, svc *scheduling.Service) {
	runCtx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	start := time.Now()
	if err := svc.MaterializeHorizon(runCtx); err != nil {
		log.Printf("materialize run error: %v", err)
	}
	if err := svc.SweepNoShows(runCtx); err != nil {
		log.Printf("no-show sweep error: %v", err)
	}
	if err := svc.SweepReminders(runCtx); err != nil {
		log.Printf("reminder sweep error: %v", err)
	}
	log.Printf("worker run complete in %s", time.Since(start))
}
