// ABOUTME: Entry point for the lantern-gateway platform server
// ABOUTME: Serves the access gate, auth flow, transfer API and metrics

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/lanternhq/lantern/internal/auth"
	"github.com/lanternhq/lantern/internal/config"
	"github.com/lanternhq/lantern/internal/conversation"
	"github.com/lanternhq/lantern/internal/gate"
	"github.com/lanternhq/lantern/internal/metrics"
	"github.com/lanternhq/lantern/internal/realtime"
	"github.com/lanternhq/lantern/internal/store"
	"github.com/lanternhq/lantern/internal/tenant"
)

// version is set at build time via -ldflags.
var version = "dev"

const banner = `
 _             _
| | __ _ _ __ | |_ ___ _ __ _ __
| |/ _' | '_ \| __/ _ \ '__| '_ \
| | (_| | | | | ||  __/ |  | | | |
|_|\__,_|_| |_|\__\___|_|  |_| |_|
`

// getConfigPath returns the path to the gateway config file.
// Priority: LANTERN_CONFIG env var > XDG_CONFIG_HOME/lantern/gateway.yaml > ~/.config/lantern/gateway.yaml
func getConfigPath() string {
	if envPath := os.Getenv("LANTERN_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "gateway.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "lantern", "gateway.yaml")
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: lantern-gateway <command>")
		fmt.Println()
		fmt.Println("Commands:")
		fmt.Println("  serve                       Start the gateway server")
		fmt.Println("  init                        Write a starter config file")
		fmt.Println("  bootstrap --tenant NAME     Create a tenant with an admin user")
		fmt.Println("  health                      Check gateway health")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx)
	case "init":
		err = runInit()
	case "bootstrap":
		err = runBootstrap(ctx)
	case "health":
		err = runHealth(ctx)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServe(ctx context.Context) error {
	configPath := getConfigPath()

	cyan := color.New(color.FgCyan)
	gray := color.New(color.FgHiBlack)
	green := color.New(color.FgGreen)

	cyan.Print(banner)
	gray.Printf("    version: %s\n\n", version)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := setupLogger(cfg.Logging)
	slog.SetDefault(logger)

	green.Print("    ▶ ")
	fmt.Printf("Config: %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("HTTP:   %s\n", cfg.Server.HTTPAddr)
	green.Print("    ▶ ")
	fmt.Printf("Tenant: *.%s\n", cfg.Tenancy.RootDomain)
	fmt.Println()

	logger.Info("starting lantern-gateway",
		"config", configPath,
		"http_addr", cfg.Server.HTTPAddr,
		"root_domain", cfg.Tenancy.RootDomain,
	)

	db, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer db.Close()

	router, broker := buildRouter(cfg, db, logger)
	defer broker.Close()

	server := &http.Server{
		Addr:    cfg.Server.HTTPAddr,
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// buildRouter wires every component into the HTTP surface
func buildRouter(cfg *config.Config, db *store.SQLiteStore, logger *slog.Logger) (chi.Router, *realtime.Broker) {
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	verifier := auth.NewJWTVerifier([]byte(cfg.Auth.JWTSecret))
	cookies := auth.NewCookies(verifier, cfg.Auth.SessionTTL)
	resolver := tenant.NewResolver(cfg.Tenancy.RootDomain)
	broker := realtime.NewBroker(logger)

	otp := auth.NewOTPService(db, nil, cfg.Auth.OTPTTL, collector, logger)
	authHandler := auth.NewHandler(otp, cookies, logger)

	transferSvc := conversation.New(db, broker, collector, cfg.Auth.AllowAnonymousTransfer, logger)
	transferHandler := conversation.NewHandler(transferSvc, logger)

	accessGate := gate.New(gate.Config{
		ProtectedPrefixes:  cfg.Tenancy.ProtectedPrefixes,
		AllowMissingTenant: cfg.Tenancy.AllowMissingTenant,
	}, cookies, resolver, collector, logger)

	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(accessGate.Middleware)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})
	if cfg.Metrics.Enabled {
		r.Method(http.MethodGet, cfg.Metrics.Path, metrics.Handler(registry))
	}

	authHandler.Routes(r)
	transferHandler.Routes(r)

	return r, broker
}

// starterConfig is written by the init subcommand
const starterConfig = `server:
  http_addr: "localhost:8080"

database:
  path: "lantern.db"

auth:
  jwt_secret: "${LANTERN_JWT_SECRET}"
  session_ttl: "168h"
  otp_ttl: "10m"
  allow_anonymous_transfer: false

tenancy:
  root_domain: "lantern.app"
  # API routes answer with their own 401 JSON; only page routes get the
  # login redirect.
  protected_prefixes:
    - "/dashboard"
  allow_missing_tenant: false

logging:
  level: "info"
  format: "text"

metrics:
  enabled: true
  path: "/metrics"
`

// runInit writes a starter config file at the resolved config path
func runInit() error {
	path := getConfigPath()
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config already exists at %s", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(starterConfig), 0600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	color.New(color.FgGreen).Printf("Wrote starter config to %s\n", path)
	fmt.Println("Set LANTERN_JWT_SECRET before starting the server.")
	return nil
}

// runBootstrap seeds a tenant with an admin user and prints a session token
func runBootstrap(ctx context.Context) error {
	name := flagValue("--tenant")
	if name == "" {
		return fmt.Errorf("bootstrap requires --tenant NAME")
	}
	email := flagValue("--email")
	if email == "" {
		email = "admin@" + name + ".invalid"
	}

	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	db, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer db.Close()

	now := time.Now().UTC()
	t := &store.Tenant{
		ID:        name,
		Name:      name,
		Domain:    name,
		Plan:      store.PlanFree,
		CreatedAt: now,
	}
	if err := db.CreateTenant(ctx, t); err != nil && !errors.Is(err, store.ErrConflict) {
		return fmt.Errorf("creating tenant: %w", err)
	}

	user := &store.User{
		ID:        uuid.New().String(),
		Email:     email,
		Role:      store.RoleAdmin,
		TenantID:  t.ID,
		CreatedAt: now,
	}
	if err := db.CreateUser(ctx, user); err != nil {
		return fmt.Errorf("creating admin user: %w", err)
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

	green := color.New(color.FgGreen)
	green.Printf("Tenant %q created with admin %s\n", t.ID, user.Email)
	fmt.Printf("Session token:\n%s\n", token)
	return nil
}

// runHealth checks the gateway health endpoint
func runHealth(ctx context.Context) error {
	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		"http://"+cfg.Server.HTTPAddr+"/healthz", nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("gateway unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("gateway unhealthy: %s", resp.Status)
	}
	color.New(color.FgGreen).Println("gateway healthy")
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

func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
