// Package main wires the object store's configuration, logging, storage
// engine, and HTTP surface into a runnable server.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	_ "github.com/mattn/go-sqlite3"

	"objectstore/api"
	"objectstore/cache"
	"objectstore/config"
	"objectstore/logger"
	"objectstore/store"
)

var (
	showVersion bool
	showHelp    bool
)

func init() {
	flag.BoolVar(&showVersion, "version", false, "print version and exit")
	flag.BoolVar(&showHelp, "help", false, "print usage and exit")
}

func main() {
	flag.Parse()

	cfg := config.Load()

	if showVersion {
		fmt.Printf("%s v%s\n", cfg.AppName, cfg.AppVersion)
		os.Exit(0)
	}
	if showHelp {
		fmt.Println("Usage: objectstore [options]")
		flag.PrintDefaults()
		fmt.Println("\nAll options can also be set via OBJSTORE_* environment variables.")
		os.Exit(0)
	}

	logger.Configure()
	if err := logger.SetLogLevel(cfg.LogLevel); err != nil {
		logger.Fatal("invalid log level: %v", err)
	}
	logger.InitLogBridge()
	logger.Info("starting %s v%s", cfg.AppName, cfg.AppVersion)

	if err := os.MkdirAll(cfg.DataPath, 0o755); err != nil {
		logger.Fatal("failed to create data directory %s: %v", cfg.DataPath, err)
	}
	if authDir := filepath.Dir(cfg.AuthFile); authDir != "." {
		if err := os.MkdirAll(authDir, 0o755); err != nil {
			logger.Fatal("failed to create auth directory %s: %v", authDir, err)
		}
	}

	db, err := openDatabase(cfg)
	if err != nil {
		logger.Fatal("failed to open database: %v", err)
	}
	defer db.Close()

	auth, err := api.LoadAuthFile(cfg.AuthFile)
	if err != nil {
		logger.Fatal("failed to load auth file %s: %v", cfg.AuthFile, err)
	}

	engine := store.NewEngine(db, cache.NewMappingCache())
	coord := store.NewCoordinator(engine)
	router := api.NewRouter(coord, auth)

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
		ErrorLog:     logger.SetHTTPServerErrorLog(),
	}

	logger.Info("listening on %s", cfg.Addr())
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed: %v", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	logger.Info("received signal %v, shutting down", sig)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("shutdown error: %v", err)
	}
	logger.Info("shutdown complete")
}

// openDatabase opens the SQLite database at cfg.DatabasePath(), setting
// the busy-timeout and connection-pool size the Request Coordinator's
// concurrency model (spec.md §5) relies on: a bounded busy-timeout so lock
// waits under concurrent writers fail instead of hanging forever, and a
// capped pool since SQLite serializes writers at the file level regardless
// of how many connections ask for one.
func openDatabase(cfg *config.Config) (*sql.DB, error) {
	dsn := fmt.Sprintf("file:%s?_busy_timeout=%d&_journal_mode=WAL&_foreign_keys=on",
		cfg.DatabasePath(), cfg.BusyTimeout.Milliseconds())

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}
