package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"drillhub.org/internal/directory"
	"drillhub.org/internal/httpapi"
	"drillhub.org/internal/obs"
	"drillhub.org/internal/session"
)

var version = "0.3.0"

func main() {
	obs.Init()
	obs.InitBuildInfo(version, os.Getenv("DRILLHUB_COMMIT"))

	secret := os.Getenv("DRILLHUB_SESSION_SECRET")
	if secret == "" {
		log.Fatal("DRILLHUB_SESSION_SECRET is required")
	}

	// Accounts come either from the gateway's own store or from the remote
	// account service, depending on configuration.
	var (
		db  *sql.DB
		dir directory.Directory
	)
	if dsn := os.Getenv("DRILLHUB_PG_DSN"); dsn != "" {
		var err error
		db, err = sql.Open("pgx", dsn)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(10)
		db.SetConnMaxLifetime(30 * time.Minute)
		dir = directory.NewPGStore(db)
	} else if accountURL := os.Getenv("DRILLHUB_ACCOUNT_URL"); accountURL != "" {
		dir = directory.NewClient(accountURL)
	} else {
		log.Fatal("either DRILLHUB_PG_DSN or DRILLHUB_ACCOUNT_URL is required")
	}

	opts := []session.Option{}
	if d, err := time.ParseDuration(os.Getenv("DRILLHUB_SESSION_TIMEOUT")); err == nil {
		opts = append(opts, session.WithTimeout(d))
	}
	if d, err := time.ParseDuration(os.Getenv("DRILLHUB_SESSION_MAX_AGE")); err == nil {
		opts = append(opts, session.WithMaxAge(d))
	}
	authority, err := session.NewAuthority(dir, secret, opts...)
	if err != nil {
		log.Fatalf("session authority: %v", err)
	}

	var upstream *url.URL
	if raw := os.Getenv("DRILLHUB_UPSTREAM_URL"); raw != "" {
		upstream, err = url.Parse(raw)
		if err != nil {
			log.Fatalf("parse upstream url: %v", err)
		}
	}

	api := httpapi.New(httpapi.ReadyProbe{DB: db}, version, authority, upstream)

	addr := os.Getenv("DRILLHUB_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting drillhub-gateway %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	if db != nil {
		_ = db.Close()
	}
	log.Println("Stopped")
}
