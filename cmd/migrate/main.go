package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"craftdesk.org/internal/auth"
	"craftdesk.org/internal/migrate"
	"craftdesk.org/internal/store/pg"
)

func main() {
	log.SetFlags(0)
	var (
		dsn            = flag.String("dsn", os.Getenv("CRAFTDESK_PG_DSN"), "PostgreSQL DSN")
		migrationsPath = flag.String("migrations", "ops/migrations", "Path to SQL migrations")
		seedsPath      = flag.String("seeds", "ops/seeds", "Path to SQL seeds")
	)
	flag.Parse()

	if *dsn == "" {
		log.Fatal("missing DSN: provide via -dsn or CRAFTDESK_PG_DSN")
	}
	if len(flag.Args()) == 0 {
		log.Fatal("usage: migrate [up|down|seed|bootstrap-admin|status]")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	store, err := pg.Open(*dsn)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer store.Close()

	mgr := migrate.NewManager(store.DB(), *migrationsPath, *seedsPath)

	switch flag.Arg(0) {
	case "up":
		err = mgr.Up(ctx)
	case "down":
		err = mgr.Down(ctx)
	case "seed":
		err = mgr.Seed(ctx)
	case "bootstrap-admin":
		err = bootstrapAdmin(ctx, store)
	case "status":
		var history []string
		history, err = mgr.Status(ctx)
		if err == nil {
			for _, item := range history {
				fmt.Println(item)
			}
		}
	default:
		log.Fatalf("unknown command %q", flag.Arg(0))
	}
	if err != nil {
		log.Fatalf("migrate %s: %v", flag.Arg(0), err)
	}
}

// bootstrapAdmin creates the initial admin account. Idempotent: if the
// username already exists nothing changes. The password comes from the
// environment so no credential ever lands in a seed file.
func bootstrapAdmin(ctx context.Context, store *pg.Store) error {
	username := os.Getenv("CRAFTDESK_ADMIN_USER")
	if username == "" {
		username = "admin"
	}
	password := os.Getenv("CRAFTDESK_ADMIN_PASSWORD")
	if password == "" {
		return errors.New("CRAFTDESK_ADMIN_PASSWORD is required")
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	user := &auth.User{
		Username:     username,
		FullName:     "Administrator",
		PasswordHash: hash,
		Role:         auth.RoleAdmin,
		Active:       true,
	}
	err = store.Users().Create(ctx, user)
	if errors.Is(err, auth.ErrAlreadyExists) {
		log.Printf("admin user %q already exists, skipping", username)
		return nil
	}
	if err != nil {
		return err
	}
	log.Printf("created admin user %q (%s)", username, user.ID)
	return nil
}
