// Package controller wires the fleet registry, the work queue, the
// retention tick loop and the HTTP API into one process.
package controller

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"github.com/fleetkeeper/fleetkeeper/internal/config"
	"github.com/fleetkeeper/fleetkeeper/internal/controller/api"
	"github.com/fleetkeeper/fleetkeeper/internal/controller/api/handlers"
	"github.com/fleetkeeper/fleetkeeper/internal/database"
	"github.com/fleetkeeper/fleetkeeper/internal/dispatch"
	"github.com/fleetkeeper/fleetkeeper/internal/driver"
	"github.com/fleetkeeper/fleetkeeper/internal/event"
	"github.com/fleetkeeper/fleetkeeper/internal/fleet"
	"github.com/fleetkeeper/fleetkeeper/internal/policy"
	"github.com/fleetkeeper/fleetkeeper/internal/queue"
)

func Run(ctx context.Context, cfg *config.Config) error {
	level, err := zerolog.ParseLevel(cfg.Logging.Level)
	if err == nil {
		zerolog.SetGlobalLevel(level)
	}
	log.Debug().Str("level", cfg.Logging.Level).Msg("log level configured")

	pool, err := database.Connect(ctx, cfg.Database.URL, cfg.Database.MaxConnections)
	if err != nil {
		return fmt.Errorf("database connect: %w", err)
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}

	jwtSecret := cfg.Auth.JWTSecret
	if jwtSecret == "" {
		jwtSecret = randomHex(32)
		log.Warn().Msg("no jwt secret configured, generated an ephemeral one; tokens will not survive a restart")
	}

	adminPassword := cfg.Auth.AdminPassword
	generatedPassword := adminPassword == ""
	if generatedPassword {
		adminPassword = randomHex(8)
	}
	adminHash, err := bcrypt.GenerateFromPassword([]byte(adminPassword), 12)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}

	jwtExpiry, err := time.ParseDuration(cfg.Auth.JWTExpiry)
	if err != nil {
		jwtExpiry = 24 * time.Hour
	}

	// Build the fleet and the effective policies. Config-file overrides
	// load first; rows edited through the API and persisted in the
	// database win over the config file.
	bus := event.NewBus()
	store := fleet.NewStore()
	policies := policy.NewStore(cfg.Retention.Policy())

	now := time.Now()
	for _, entry := range cfg.Agents {
		if _, err := store.Add(entry.Fleet(), now); err != nil {
			return fmt.Errorf("agent %q: %w", entry.Name, err)
		}
		if entry.Retention != nil {
			policies.Set(entry.Name, entry.Retention.Policy())
		}
	}
	log.Info().Int("agents", len(cfg.Agents)).Msg("fleet configured")

	stored, err := database.ListPolicies(ctx, pool)
	if err != nil {
		return fmt.Errorf("load policies: %w", err)
	}
	for _, row := range stored {
		policies.Set(row.AgentName, config.RetentionConfig{
			InDemandDelayMinutes: int(row.InDemandDelayMinutes),
			IdleDelayMinutes:     int(row.IdleDelayMinutes),
			ConflictsWith:        row.ConflictsWith,
		}.Policy())
	}
	if len(stored) > 0 {
		log.Info().Int("overrides", len(stored)).Msg("loaded stored policy overrides")
	}

	q := queue.New()
	lifecycle := fleet.NewLifecycle(store, bus, cfg.Retention.ConnectDelayDuration())
	assigner := dispatch.NewAssigner(store, q, bus)
	drv := driver.New(store, q, lifecycle, policies, assigner, bus, cfg.Retention.TickIntervalDuration())

	// Persist every verdict the tick loop emits.
	bus.Subscribe(event.EventVerdict, func(ctx context.Context, e event.Event) error {
		v := e.Payload.(event.VerdictEvent)
		return database.InsertVerdict(ctx, pool, database.VerdictRow{
			AgentName:   v.Agent,
			Verdict:     v.Verdict,
			DemandForMs: v.DemandFor.Milliseconds(),
			IdleForMs:   v.IdleFor.Milliseconds(),
			Conflicts:   v.Conflicts,
		})
	})

	handlers.InitErrors()
	e := echo.New()
	e.HideBanner = true

	api.SetupRouter(e, api.RouterConfig{
		DB:            pool,
		JWTSecret:     jwtSecret,
		JWTExpiry:     jwtExpiry,
		AdminUsername: cfg.Auth.AdminUsername,
		AdminHash:     adminHash,
		Fleet:         store,
		Lifecycle:     lifecycle,
		Queue:         q,
		Policies:      policies,
		Bus:           bus,
	})

	driverCtx, stopDriver := context.WithCancel(context.Background())
	go drv.Run(driverCtx)

	if generatedPassword {
		printBanner(cfg, adminPassword)
	}

	go func() {
		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stopDriver()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown error")
	}
	return nil
}

func randomHex(byteLen int) string {
	b := make([]byte, byteLen)
	rand.Read(b)
	return hex.EncodeToString(b)
}

func printBanner(cfg *config.Config, adminPassword string) {
	fmt.Println()
	fmt.Println("═══════════════════════════════════════════════════════")
	fmt.Println("  FleetKeeper controller started")
	fmt.Println()
	fmt.Println("  Admin credentials (save these, shown only once):")
	fmt.Printf("    Username: %s\n", cfg.Auth.AdminUsername)
	fmt.Printf("    Password: %s\n", adminPassword)
	fmt.Println()
	fmt.Printf("  HTTP:  http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println("═══════════════════════════════════════════════════════")
	fmt.Println()
}
