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
	"strings"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/microsoft/go-mssqldb"
	_ "github.com/sijms/go-ora/v2"
	_ "modernc.org/sqlite"

	"github.com/user/fieldbridge"
	"github.com/user/fieldbridge/internal/api"
	"github.com/user/fieldbridge/internal/config"
	"github.com/user/fieldbridge/internal/detector"
	"github.com/user/fieldbridge/internal/registry"
	"github.com/user/fieldbridge/pkg/importer"
	"github.com/user/fieldbridge/pkg/sampler"
)

func main() {
	cfgPath := flag.String("config", "", "path to config file (YAML or JSON)")
	port := flag.Int("port", 0, "port for API server (overrides config)")
	dbType := flag.String("db-type", "", "registry database type: sqlite, postgres, mysql")
	dbConn := flag.String("db-conn", "", "registry database connection string")
	flag.Parse()

	cfg := config.Default()
	if *cfgPath != "" {
		loaded, err := config.LoadConfig(*cfgPath)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
		cfg = loaded
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if *dbType != "" {
		cfg.Registry.Type = *dbType
	}
	if *dbConn != "" {
		cfg.Registry.Conn = *dbConn
	}

	logger := fieldbridge.NewDefaultLogger()

	driver := ""
	conn := cfg.Registry.Conn
	switch cfg.Registry.Type {
	case "sqlite":
		driver = "sqlite"
		if !strings.Contains(conn, "?") {
			conn += "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(2000)&_pragma=foreign_keys(ON)"
		}
	case "postgres":
		driver = "pgx"
	case "mysql":
		driver = "mysql"
	default:
		log.Fatalf("Unsupported registry database type: %s", cfg.Registry.Type)
	}

	db, err := sql.Open(driver, conn)
	if err != nil {
		log.Fatalf("Failed to open registry database: %v", err)
	}
	defer db.Close()
	if driver == "sqlite" {
		db.SetMaxOpenConns(4)
		db.SetMaxIdleConns(1)
	}

	store := registry.NewSQLStorage(db, driver)
	initCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := store.Init(initCtx); err != nil {
		cancel()
		log.Fatalf("Failed to initialize mapping registry: %v", err)
	}
	cancel()

	var querier sampler.Querier
	if cfg.Source.Conn != "" {
		srcDB, err := sql.Open(cfg.Source.Driver, cfg.Source.Conn)
		if err != nil {
			log.Fatalf("Failed to open source connection: %v", err)
		}
		defer srcDB.Close()
		querier = sampler.NewSQLQuerier(srcDB)
	}

	smp := sampler.New(querier, cfg.Source.StandardFields, logger)

	rules := detector.DefaultRules()
	for k, v := range cfg.Detector.CustomPrefixes {
		rules.CustomPrefixes[k] = v
	}
	for k, v := range cfg.Detector.Renames {
		rules.Renames[k] = v
	}
	rules.BooleanHints = append(rules.BooleanHints, cfg.Detector.BooleanHints...)
	rules.AmountHints = append(rules.AmountHints, cfg.Detector.AmountHints...)

	det := detector.New(smp, store, rules, cfg.Detector.DetectedBy, logger)

	execCfg := importer.Config{
		Workers:       cfg.Importer.Workers,
		RowsPerSecond: cfg.Importer.RowsPerSecond,
	}
	var exec *importer.Executor
	if cfg.Destination.Conn != "" {
		dest := importer.NewPgxDestination(cfg.Destination.Conn)
		defer dest.Close()
		exec = importer.NewExecutor(dest, dest, execCfg, logger)
	} else {
		exec = importer.NewExecutor(nil, nil, execCfg, logger)
	}

	server := api.NewServer(store, det, exec, logger)
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: server.Routes(),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("API server listening", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("API server failed: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown failed", "error", err)
	}
}
