// ABOUTME: Operator CLI for inspecting tenants and the transfer audit trail
// ABOUTME: Opens the gateway's store directly; can mint session tokens for testing

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"

	"github.com/lanternhq/lantern/internal/auth"
	"github.com/lanternhq/lantern/internal/config"
	"github.com/lanternhq/lantern/internal/store"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: lantern-admin <command>")
		fmt.Println()
		fmt.Println("Commands:")
		fmt.Println("  tenants                          List tenants")
		fmt.Println("  transfers [--conversation ID]    List transfer records")
		fmt.Println("  token --user ID                  Mint a session token for a user")
		os.Exit(1)
	}

	ctx := context.Background()

	var err error
	switch os.Args[1] {
	case "tenants":
		err = runTenants(ctx)
	case "transfers":
		err = runTransfers(ctx)
	case "token":
		err = runToken(ctx)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// openStore loads the gateway config and opens its database
func openStore() (*config.Config, *store.SQLiteStore, error) {
	path := os.Getenv("LANTERN_CONFIG")
	if path == "" {
		path = "gateway.yaml"
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}
	db, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("opening store: %w", err)
	}
	return cfg, db, nil
}

func runTenants(ctx context.Context) error {
	_, db, err := openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	tenants, err := db.ListTenants(ctx)
	if err != nil {
		return err
	}

	bold := color.New(color.Bold)
	gray := color.New(color.FgHiBlack)
	bold.Printf("%-20s %-20s %-12s %s\n", "ID", "DOMAIN", "PLAN", "CREATED")
	for _, t := range tenants {
		fmt.Printf("%-20s %-20s %-12s ", t.ID, t.Domain, t.Plan)
		gray.Println(t.CreatedAt.Format("2006-01-02 15:04"))
	}
	if len(tenants) == 0 {
		gray.Println("no tenants")
	}
	return nil
}

func runTransfers(ctx context.Context) error {
	_, db, err := openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	conversationID := flagValue("--conversation")
	records, err := db.ListTransfers(ctx, conversationID, 100)
	if err != nil {
		return err
	}

	bold := color.New(color.Bold)
	gray := color.New(color.FgHiBlack)
	cyan := color.New(color.FgCyan)

	bold.Printf("%-38s %-14s %-20s %s\n", "CONVERSATION", "TARGET", "ACTOR", "WHEN")
	for _, rec := range records {
		fmt.Printf("%-38s ", rec.ConversationID)
		cyan.Printf("%-14s ", rec.ToTarget.Type+":"+rec.ToTarget.ID)
		fmt.Printf("%-20s ", rec.Actor)
		gray.Println(rec.CreatedAt.Format("2006-01-02 15:04:05"))
	}
	if len(records) == 0 {
		gray.Println("no transfers")
	}
	return nil
}

func runToken(ctx context.Context) error {
	userID := flagValue("--user")
	if userID == "" {
		return fmt.Errorf("token requires --user ID")
	}

	cfg, db, err := openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	user, err := db.GetUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("looking up user: %w", err)
	}

	verifier := auth.NewJWTVerifier([]byte(cfg.Auth.JWTSecret))
	token, err := verifier.Generate(&auth.Principal{
		ID:       user.ID,
		Email:    user.Email,
		Role:     user.Role,
		TenantID: user.TenantID,
	}, cfg.Auth.SessionTTL)
	if err != nil {
		return fmt.Errorf("minting token: %w", err)
	}

	color.New(color.FgGreen).Printf("Token for %s (%s):\n", user.Email, user.TenantID)
	fmt.Println(token)
	return nil
}

// flagValue returns the value following the given flag in os.Args
func flagValue(flag string) string {
	for i, arg := range os.Args {
		if arg == flag && i+1 < len(os.Args) {
			return os.Args[i+1]
		}
	}
	return ""
}
