// cmd/paperclipd/main.go
//
// paperclipd hosts the Paperclip task-and-reward ledger. It executes
// signed transactions against a SQLite-backed record store and exposes
// the ledger over a local HTTP API with a WebSocket commit stream.
//
// Usage:
//
//	paperclipd [--config paperclip.toml] [--addr :8420] [--db path]
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/cliplabs/paperclip/internal/config"
	"github.com/cliplabs/paperclip/internal/runtime"
	"github.com/cliplabs/paperclip/internal/server"
	"github.com/cliplabs/paperclip/internal/storage"
)

func main() {
	configPath := flag.String("config", "paperclip.toml", "path to TOML config file")
	addr := flag.String("addr", "", "listen address (overrides config)")
	dbPath := flag.String("db", "", "SQLite database path (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	if *dbPath != "" {
		cfg.Database.Path = *dbPath
	}

	if cfg.Database.Path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0755); err != nil {
			log.Fatalf("create data dir: %v", err)
		}
	}
	store, err := storage.Open(cfg.Database.Path)
	if err != nil {
		log.Fatalf("open store: %v", err)
	}
	defer store.Close()

	rt := runtime.New(store, runtime.SystemClock{})
	srv := server.New(rt, cfg.Limits.TxPerMinute)

	httpSrv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: srv,
	}

	go func() {
		log.Printf("paperclipd listening on %s (db=%s)", cfg.Server.Addr, cfg.Database.Path)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("serve: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	log.Println("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(ctx); err != nil {
		log.Printf("shutdown: %v", err)
	}
}
