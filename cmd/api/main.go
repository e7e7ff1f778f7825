package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"craftdesk.org/internal/auth"
	"craftdesk.org/internal/httpapi"
	"craftdesk.org/internal/obs"
	"craftdesk.org/internal/pm"
	"craftdesk.org/internal/store/pg"
)

var (
	version = "0.3.1"
	commit  = "dev"
)

func main() {
	obs.Init()
	obs.InitBuildInfo(version, commit)

	var (
		authStore auth.Store
		pmSvc     pm.Service
		probe     httpapi.ReadyProbe
	)
	if dsn := os.Getenv("CRAFTDESK_PG_DSN"); dsn != "" {
		store, err := pg.Open(dsn)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		defer store.Close()
		authStore = store
		pmSvc = store
		probe = httpapi.ReadyProbe{DB: store.DB()}
	} else {
		// In-memory mode for local development; state is lost on restart.
		log.Println("CRAFTDESK_PG_DSN not set, using in-memory stores")
		authStore = auth.NewInMemoryStore()
		pmSvc = pm.NewInMemory()
	}

	authSvc, err := auth.NewService(authStore)
	if err != nil {
		log.Fatalf("auth service: %v", err)
	}
	api := httpapi.New(probe, version, authSvc, pmSvc)

	addr := os.Getenv("CRAFTDESK_HTTP_ADDR")
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

	log.Printf("Starting craftdesk-api %s on %s", version, srv.Addr)

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
	log.Println("Stopped")
}
