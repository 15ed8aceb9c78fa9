package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/ankitpatel990/neuvox/internal/callback"
	"github.com/ankitpatel990/neuvox/internal/config"
	"github.com/ankitpatel990/neuvox/internal/engagement"
	"github.com/ankitpatel990/neuvox/internal/engine"
	"github.com/ankitpatel990/neuvox/internal/extractor"
	"github.com/ankitpatel990/neuvox/internal/server"
	"github.com/ankitpatel990/neuvox/internal/session"
	"github.com/ankitpatel990/neuvox/internal/tenant"
)

var (
	servePort      int
	serveRateLimit int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the Neuvox engagement server",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 8080, "HTTP server port")
	serveCmd.Flags().IntVar(&serveRateLimit, "rate-limit", 50, "per-tenant requests per second")
	rootCmd.AddCommand(serveCmd)
}

// parseAPIKeys returns a map of key -> tenant_id from NEUVOX_API_KEYS (comma-separated; each entry key or key:tenant_id).
func parseAPIKeys(env string) map[string]string {
	m := make(map[string]string)
	if env == "" {
		return m
	}
	for _, part := range strings.Split(env, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		tenantID := "default"
		if idx := strings.Index(part, ":"); idx > 0 {
			tenantID = strings.TrimSpace(part[idx+1:])
			part = strings.TrimSpace(part[:idx])
		}
		m[part] = tenantID
	}
	return m
}

// tenantsFromKeys derives one rate-limited tenant per distinct tenant_id.
func tenantsFromKeys(apiKeys map[string]string, rateLimit int) []tenant.Tenant {
	seen := make(map[string]bool)
	var tenants []tenant.Tenant
	for _, id := range apiKeys {
		if seen[id] {
			continue
		}
		seen[id] = true
		tenants = append(tenants, tenant.Tenant{ID: id, DisplayName: id, RateLimit: rateLimit})
	}
	return tenants
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.EnsureDataDir(); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	store, err := session.NewStore(cfg.SessionsDBPath())
	if err != nil {
		return fmt.Errorf("initializing session store: %w", err)
	}
	defer store.Close()

	exOpts := []extractor.Option{extractor.WithMaxScanBytes(cfg.MaxScanBytes)}
	if cfg.PatternFile != "" {
		exOpts = append(exOpts, extractor.WithPatternFile(cfg.PatternFile))
	}
	ex, err := extractor.New(exOpts...)
	if err != nil {
		return fmt.Errorf("initializing extractor: %w", err)
	}

	orchOpts := []engine.OrchestratorOption{
		engine.WithThresholds(engagement.Thresholds{
			MaxTurns:            cfg.MaxTurns,
			ConfidenceThreshold: cfg.ConfidenceThreshold,
		}),
	}
	if cfg.CallbackURL != "" {
		orchOpts = append(orchOpts, engine.WithDispatcher(
			callback.NewHTTPDispatcher(cfg.CallbackURL, cfg.CallbackSigningKey)))
	} else {
		log.Warn().Msg("NEUVOX_CALLBACK_URL not set; terminal sessions will not be reported")
	}
	orch := engine.NewOrchestrator(store, ex, orchOpts...)

	var sweeper *session.RetentionSweeper
	if cfg.RetentionDays > 0 {
		sweeper, err = session.NewRetentionSweeper(store, cfg.RetentionSchedule, cfg.RetentionDays)
		if err != nil {
			return fmt.Errorf("retention sweeper: %w", err)
		}
		sweeper.Start()
		defer sweeper.Stop()
	}

	apiKeys := parseAPIKeys(os.Getenv("NEUVOX_API_KEYS"))
	if len(apiKeys) == 0 {
		log.Warn().Msg("NEUVOX_API_KEYS not set; API endpoints are unauthenticated")
	}

	srvOpts := []server.Option{
		server.WithCORSOrigins([]string{"*"}),
	}
	if len(apiKeys) > 0 {
		srvOpts = append(srvOpts, server.WithTenantManager(
			tenant.NewManager(tenantsFromKeys(apiKeys, serveRateLimit))))
	}
	srv := server.NewServer(orch, store, apiKeys, srvOpts...)

	addr := fmt.Sprintf(":%d", servePort)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      srv.Routes(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	log.Info().
		Str("addr", addr).
		Int("max_turns", cfg.MaxTurns).
		Float64("confidence_threshold", cfg.ConfidenceThreshold).
		Bool("callback", cfg.CallbackURL != "").
		Bool("retention", sweeper != nil).
		Msg("neuvox_serve_started")

	errCh := make(chan error, 1)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown_signal_received")
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	log.Info().Msg("server_stopped")
	return nil
}
