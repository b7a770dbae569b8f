package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"lockmint/config"
	"lockmint/core"
	"lockmint/native/loan"
	"lockmint/native/stake"
	"lockmint/observability"
	"lockmint/observability/logging"
	"lockmint/rpc"
	"lockmint/storage"
)

const (
	snapshotBucket   = "engine"
	snapshotKey      = "snapshot"
	snapshotInterval = time.Minute
)

func main() {
	configPath := flag.String("config", "lockmint.toml", "path to the TOML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("load config", "path", *configPath, "err", err)
		os.Exit(1)
	}
	log := logging.Setup(cfg.LogLevel, cfg.LogPath)

	launch, err := cfg.Launch()
	if err != nil {
		log.Error("parse launch time", "err", err)
		os.Exit(1)
	}

	db, err := storage.NewLevelDB(filepath.Join(cfg.DataDir, "state"))
	if err != nil {
		log.Error("open state database", "dir", cfg.DataDir, "err", err)
		os.Exit(1)
	}
	defer db.Close()
	store := storage.NewStore(db)

	engine := core.NewEngine(launch, stake.NewMemLedger())
	if bands := rateSchedule(cfg); bands != nil {
		engine.SetRateSchedule(bands)
	}
	metrics := observability.NewMetrics(nil)
	engine.SetEmitter(metrics)

	var snap core.Snapshot
	found, err := store.Load(snapshotBucket, snapshotKey, &snap)
	if err != nil {
		log.Error("load snapshot", "err", err)
		os.Exit(1)
	}
	if found {
		if err := engine.Restore(&snap); err != nil {
			log.Error("restore snapshot", "err", err)
			os.Exit(1)
		}
		log.Info("state restored", "day", engine.CurrentDay())
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.Handle("/", rpc.NewServer(engine, log))
	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Info("rpc listening", "addr", cfg.ListenAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("rpc server", "err", err)
			stop()
		}
	}()

	ticker := time.NewTicker(snapshotInterval)
	defer ticker.Stop()
	for running := true; running; {
		select {
		case <-ticker.C:
			if err := store.Save(snapshotBucket, snapshotKey, engine.Snapshot()); err != nil {
				log.Error("persist snapshot", "err", err)
			}
		case <-ctx.Done():
			running = false
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown rpc", "err", err)
	}
	if err := store.Save(snapshotBucket, snapshotKey, engine.Snapshot()); err != nil {
		log.Error("persist final snapshot", "err", err)
		os.Exit(1)
	}
	log.Info("state persisted, exiting")
}

func rateSchedule(cfg config.Config) loan.Schedule {
	if len(cfg.RateBands) == 0 {
		return nil
	}
	schedule := make(loan.Schedule, 0, len(cfg.RateBands))
	for _, band := range cfg.RateBands {
		schedule = append(schedule, loan.RateBand{
			MaxDay:      band.MaxDay,
			InterestBps: band.InterestBps,
			FeeBps:      band.FeeBps,
		})
	}
	return schedule
}
