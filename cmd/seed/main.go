// Package main creates users in the notes database and prints a bearer token
// for each, for local development and for wiring a session provider.
//
// Usage:
//
//	go run ./cmd/seed --email alice@example.com --name Alice --role owner
//	DATA_PATH=~/notes go run ./cmd/seed --email bob@example.com
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/listenupapp/notes-server/internal/auth"
	"github.com/listenupapp/notes-server/internal/config"
	"github.com/listenupapp/notes-server/internal/domain"
	"github.com/listenupapp/notes-server/internal/id"
	"github.com/listenupapp/notes-server/internal/logger"
	"github.com/listenupapp/notes-server/internal/store"
	"github.com/listenupapp/notes-server/internal/store/sqlite"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "seed: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("seed", flag.ContinueOnError)
	email := fs.String("email", "", "User email (required)")
	name := fs.String("name", "", "Display name")
	role := fs.String("role", string(domain.RoleMember), "Role: member or owner")
	dataPath := fs.String("data-path", "", "Base directory for the database and key")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *email == "" {
		return errors.New("--email is required")
	}
	userRole := domain.Role(*role)
	if !userRole.Valid() {
		return fmt.Errorf("invalid role %q", *role)
	}

	configArgs := []string{"--log-level", "warn"}
	if *dataPath != "" {
		configArgs = append(configArgs, "--data-path", *dataPath)
	}
	cfg, err := config.Load(configArgs)
	if err != nil {
		return err
	}

	log := logger.New(logger.Config{
		Level:       logger.ParseLevel(cfg.Logger.Level),
		Environment: cfg.App.Environment,
		Writer:      os.Stderr,
	})

	st, err := sqlite.Open(cfg.Database.Path, log.Logger)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer st.Close()

	key, err := auth.LoadOrGenerateKey(cfg.Auth.KeyPath)
	if err != nil {
		return err
	}
	tokens, err := auth.NewTokenService(key, cfg.Auth.AccessTokenDuration)
	if err != nil {
		return err
	}

	ctx := context.Background()
	user, err := findOrCreateUser(ctx, st, domain.NormalizeEmail(*email), *name, userRole)
	if err != nil {
		return err
	}

	token, err := tokens.GenerateAccessToken(user)
	if err != nil {
		return err
	}

	fmt.Printf("user:  %s (%s, %s)\n", user.ID, user.Email, user.Role)
	fmt.Printf("token: %s\n", token)
	fmt.Printf("valid: %s\n", tokens.AccessTokenDuration())
	return nil
}

func findOrCreateUser(ctx context.Context, st *sqlite.Store, email, name string, role domain.Role) (*domain.User, error) {
	existing, err := st.GetUserByEmail(ctx, email)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	userID, err := id.Generate(id.PrefixUser)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	user := &domain.User{
		ID:        userID,
		Name:      name,
		Email:     email,
		Role:      role,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := st.CreateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}
