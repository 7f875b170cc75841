package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"quickclean/internal/config"
	"quickclean/internal/database"
	"quickclean/internal/modules/auth"
)

// Creates the admin account, or promotes an existing profile and resets its
// password. Self-registration can never produce an admin, so this is the only
// way one comes into existence.
func main() {
	name := flag.String("name", "Administrator", "display name")
	email := flag.String("email", "", "admin login email")
	password := flag.String("password", "", "admin password (min 8 characters)")
	flag.Parse()

	if *email == "" || len(*password) < 8 {
		log.Fatal("Usage: go run ./misc/provision-admin -email <email> -password <password> [-name <name>]")
	}

	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	hashedPassword, err := auth.HashPassword(*password)
	if err != nil {
		log.Fatalf("Failed to hash password: %v", err)
	}

	profile, err := auth.NewRepository(pool).UpsertAdmin(ctx, *name, *email, hashedPassword)
	if err != nil {
		log.Fatalf("Failed to provision admin: %v", err)
	}
	fmt.Printf("admin %s ready (id %s)\n", profile.Email, profile.ID)
}
