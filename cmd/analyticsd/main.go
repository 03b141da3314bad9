package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/lobanalytics/microstructure/internal/analytics"
	"github.com/lobanalytics/microstructure/internal/httpapi"
	"github.com/lobanalytics/microstructure/internal/wsapi"
)

const (
	appName = "analyticsd"
	version = "v0.1.0"

	// defaultTickSize and defaultVPINBucket are not part of the external
	// config surface (spec §6's table omits them); they are per-deployment
	// constants a calling venue integration would size to its instrument.
	defaultTickSize   = 0.01
	defaultVPINBucket = 1000
	defaultRegimeK    = 4
)

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	rootCmd := &cobra.Command{
		Use:     appName,
		Short:   "Real-time limit-order-book microstructure analytics daemon",
		Version: version,
		Long: `analyticsd ingests limit-order-book snapshots per session,
computes microstructure features (OFI, OBI, microprice, V-PIN), runs the
anomaly-detector suite, and serves both a per-session WebSocket stream and
a process-wide aggregate HTTP read surface.`,
		RunE: runServe,
	}

	rootCmd.Flags().String("addr", ":8080", "HTTP listen address for the aggregate read surface")
	rootCmd.Flags().String("ws-addr", ":8081", "WebSocket listen address for per-session streams")
	rootCmd.Flags().String("config", "", "path to YAML config file (overrides built-in defaults; environment variables still take precedence)")
	rootCmd.Flags().String("redis-addr", "localhost:6379", "Redis address for the aggregate cache")
	rootCmd.Flags().String("audit-dsn", "", "Postgres DSN to mirror the alert audit ring to (optional)")

	healthCmd := &cobra.Command{
		Use:   "healthcheck",
		Short: "Probe a running daemon's /health endpoint",
		RunE:  runHealthcheck,
	}
	healthCmd.Flags().String("addr", "http://localhost:8080", "base URL of the running daemon")
	rootCmd.AddCommand(healthCmd)

	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		log.Info().Msg("starting in non-interactive mode")
	}

	addr, _ := cmd.Flags().GetString("addr")
	wsAddr, _ := cmd.Flags().GetString("ws-addr")
	cfgPath, _ := cmd.Flags().GetString("config")
	redisAddr, _ := cmd.Flags().GetString("redis-addr")
	auditDSN, _ := cmd.Flags().GetString("audit-dsn")

	base := analytics.DefaultConfig()
	cfg := base
	if cfgPath != "" {
		loaded, err := analytics.LoadConfigFile(base, cfgPath)
		if err != nil {
			return fmt.Errorf("load config file: %w", err)
		}
		cfg = loaded
	}
	cfg = analytics.LoadConfigEnv(cfg)

	rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
	cache := analytics.NewAggregateCache(rdb, 10*time.Second)

	reg := prometheus.DefaultRegisterer
	collector := analytics.NewCollector(reg)

	router := analytics.NewEngineRouter(cfg.MaxPrimaryFailures, cfg.PrimaryCallTimeout)

	var audit analytics.AuditSink
	if auditDSN != "" {
		db, err := sqlx.Connect("postgres", auditDSN)
		if err != nil {
			return fmt.Errorf("connect audit database: %w", err)
		}
		sink := analytics.NewPostgresAuditSink(db)
		if err := sink.EnsureSchema(context.Background()); err != nil {
			return fmt.Errorf("ensure audit schema: %w", err)
		}
		audit = sink
		log.Info().Msg("alert audit mirrored to postgres")
	}
	sessions := analytics.NewSessionManager(audit, collector, cache)

	httpSrv := httpapi.NewServer(addr, httpapi.Deps{
		Sessions: sessions,
		Router:   router,
		Cache:    cache,
	})

	wsSrv := wsapi.NewServer(sessions, func(client analytics.Client) *analytics.Session {
		secondary := analytics.NewPipeline(cfg, defaultTickSize, defaultVPINBucket, defaultRegimeK)
		processor := analytics.NewSnapshotProcessor(router, secondary)
		return sessions.CreateSession(cfg, processor, client, nil)
	})

	mux := http.NewServeMux()
	mux.Handle("/ws", wsSrv)
	wsHTTPSrv := &http.Server{Addr: wsAddr, Handler: mux}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Info().Str("addr", addr).Msg("aggregate HTTP surface listening")
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("http server exited")
		}
	}()
	go func() {
		log.Info().Str("addr", wsAddr).Msg("websocket surface listening")
		if err := wsHTTPSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("websocket server exited")
		}
	}()
	go idleSweepLoop(ctx, sessions)

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = httpSrv.Shutdown(shutdownCtx)
	_ = wsHTTPSrv.Shutdown(shutdownCtx)
	return nil
}

func idleSweepLoop(ctx context.Context, sessions *analytics.SessionManager) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if swept := sessions.SweepIdle(now); len(swept) > 0 {
				log.Info().Int("count", len(swept)).Msg("swept idle sessions")
			}
		}
	}
}

func runHealthcheck(cmd *cobra.Command, args []string) error {
	addr, _ := cmd.Flags().GetString("addr")
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(addr + "/health")
	if err != nil {
		return fmt.Errorf("healthcheck request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("healthcheck returned status %d", resp.StatusCode)
	}
	fmt.Println("ok")
	return nil
}
