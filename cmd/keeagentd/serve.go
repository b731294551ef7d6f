package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/keeagent/keeagentd/config"
	"github.com/keeagent/keeagentd/connection"
	"github.com/keeagent/keeagentd/internal/keystore"
	"github.com/keeagent/keeagentd/internal/logger"
	"github.com/keeagent/keeagentd/internal/metrics"
	"github.com/keeagent/keeagentd/pkg/health"
	"github.com/keeagent/keeagentd/pkg/storage"
	"github.com/keeagent/keeagentd/pkg/storage/memory"
	"github.com/keeagent/keeagentd/pkg/storage/postgres"
	"github.com/keeagent/keeagentd/pkg/transport/websocket"
	"github.com/keeagent/keeagentd/uihost"
)

var (
	serveConfigDir string
	serveEnv       string
	serveMaxConns  int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the pairing daemon",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveConfigDir, "config-dir", "config", "directory to load <environment>.yaml / default.yaml / config.yaml from")
	serveCmd.Flags().StringVar(&serveEnv, "environment", "", "environment name; defaults to KEEAGENTD_ENV or development")
	serveCmd.Flags().IntVar(&serveMaxConns, "max-connections", 256, "connection-count ceiling the health check degrades/fails against")
}

func runServe(cmd *cobra.Command, args []string) error {
	// Best-effort: a .env file is a convenience for local/dev runs, not a
	// requirement, so a missing file is not an error. Variables it sets
	// (it never overwrites ones already in the environment) are then seen
	// by config.Load's ${VAR} substitution and KEEAGENTD_* overrides.
	_ = godotenv.Load()

	cfg, err := config.Load(config.LoaderOptions{
		ConfigDir:   serveConfigDir,
		Environment: serveEnv,
	})
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log, closeLog, err := buildLogger(cfg)
	if err != nil {
		return fmt.Errorf("building logger: %w", err)
	}
	defer closeLog()

	log.Info("starting keeagentd",
		logger.String("environment", cfg.Environment),
		logger.String("listen_addr", cfg.Transport.ListenAddr))

	auditStore, err := buildAuditStore(cmd.Context(), cfg)
	if err != nil {
		return fmt.Errorf("building audit store: %w", err)
	}
	if auditStore != nil {
		defer auditStore.Close()
	}

	bag, err := buildConfigBag(cfg)
	if err != nil {
		return fmt.Errorf("building config bag: %w", err)
	}
	keys := keystore.New(bag)

	host := uihost.NewLoggingHost(func(format string, args ...any) {
		log.Info(fmt.Sprintf(format, args...))
	})

	connCfg := connection.Config{
		VersionToken:               cfg.Security.VersionToken,
		RequiredFeatures:           cfg.Security.RequiredFeatures,
		SecurityLevelClientMinimum: cfg.Security.SecurityLevelClientMinimum,
		DefaultSecurityLevel:       cfg.Security.DefaultSecurityLevel,
		AuthorisationExpiry:        cfg.Security.AuthorisationExpiry,
	}

	rpcHandler := func(ctx context.Context, username, payload string) (string, error) {
		// The KeePassRPC JSON-RPC method surface belongs to the host
		// password manager, not this daemon; wiring it in is out of
		// scope (see DESIGN.md). Decrypted requests are logged and
		// acknowledged with an empty result so the protocol round-trip
		// still completes.
		log.Debug("rpc payload received",
			logger.String("username", username),
			logger.Int("payload_bytes", len(payload)))
		return "{}", nil
	}

	wsServer := websocket.NewServer(func(remoteAddr string) *connection.Connection {
		conn := connection.New(connCfg, keys, host, rpcHandler, remoteAddr)
		conn.SetAudit(auditStore)
		return conn
	})

	mux := http.NewServeMux()
	mux.Handle("/", wsServer.Handler())
	transportSrv := &http.Server{
		Addr:              cfg.Transport.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Transport.ReadTimeout,
		WriteTimeout:      cfg.Transport.WriteTimeout,
	}

	var metricsSrv *http.Server
	if cfg.Metrics.Enabled {
		mmux := http.NewServeMux()
		mmux.Handle(cfg.Metrics.Path, metrics.Handler())
		metricsSrv = &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Metrics.Port),
			Handler:           mmux,
			ReadHeaderTimeout: 10 * time.Second,
		}
	}

	var healthSrv *health.Server
	if cfg.Health.Enabled {
		checker := health.NewChecker(wsServer.ConnectionCount, serveMaxConns, auditStore, cfg.Audit.Driver)
		healthSrv = health.NewServer(checker, log, cfg.Health.Port)
	}

	// g carries the lifetime of every long-running piece: each goroutine
	// runs until ctx is cancelled (by a signal, or by a sibling's
	// failure) and then shuts its own server down. g.Wait returns the
	// first non-nil error, if any.
	g, ctx := errgroup.WithContext(context.Background())

	g.Go(func() error {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		select {
		case <-ctx.Done():
			return nil
		case sig := <-sigCh:
			log.Info("shutting down", logger.String("signal", sig.String()))
			return errShutdownRequested
		}
	})

	g.Go(func() error {
		return runUntilCancelled(ctx, "transport", log, transportSrv.ListenAndServe, transportSrv.Shutdown)
	})

	if metricsSrv != nil {
		g.Go(func() error {
			return runUntilCancelled(ctx, "metrics", log, metricsSrv.ListenAndServe, metricsSrv.Shutdown)
		})
	}

	if healthSrv != nil {
		g.Go(func() error {
			if err := healthSrv.Start(); err != nil {
				return fmt.Errorf("health server: %w", err)
			}
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return healthSrv.Stop(shutdownCtx)
		})
	}

	err = g.Wait()
	_ = wsServer.Close()
	if err != nil && err != errShutdownRequested {
		log.Error("server error, shutting down", logger.Error(err))
		return err
	}
	return nil
}

// errShutdownRequested signals a clean, user-initiated shutdown: errgroup
// treats any non-nil error as the cause to cancel ctx for every other
// goroutine, but g.Wait returning it is not itself a failure.
var errShutdownRequested = fmt.Errorf("shutdown requested")

// runUntilCancelled runs an http.Server's listener until ctx is cancelled,
// then gracefully shuts it down with a fresh, bounded context.
func runUntilCancelled(ctx context.Context, name string, log logger.Logger, listenAndServe func() error, shutdown func(context.Context) error) error {
	errCh := make(chan error, 1)
	go func() {
		log.Info(name + " listening")
		errCh <- listenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return shutdown(shutdownCtx)
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("%s server: %w", name, err)
		}
		return nil
	}
}

func buildLogger(cfg *config.Config) (logger.Logger, func(), error) {
	level := logger.ParseLevel(cfg.Logging.Level)

	switch cfg.Logging.Output {
	case "", "stdout":
		return logger.NewLogger(os.Stdout, level), func() {}, nil
	case "stderr":
		return logger.NewLogger(os.Stderr, level), func() {}, nil
	default:
		f, err := os.OpenFile(cfg.Logging.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, nil, fmt.Errorf("opening log output %q: %w", cfg.Logging.Output, err)
		}
		return logger.NewLogger(f, level), func() { _ = f.Close() }, nil
	}
}

func buildAuditStore(ctx context.Context, cfg *config.Config) (storage.Store, error) {
	if !cfg.Audit.Enabled {
		return nil, nil
	}

	switch cfg.Audit.Driver {
	case "", "memory":
		return memory.NewStore(), nil
	case "postgres":
		return postgres.NewStore(ctx, cfg.Audit.DSN)
	default:
		return nil, fmt.Errorf("unknown audit driver %q", cfg.Audit.Driver)
	}
}

func buildConfigBag(cfg *config.Config) (keystore.ConfigBag, error) {
	switch cfg.Persistence.Type {
	case "", "file":
		return config.NewFileBag(cfg.Persistence.Path)
	case "memory":
		return config.NewMemoryBag(), nil
	default:
		return nil, fmt.Errorf("unknown persistence type %q", cfg.Persistence.Type)
	}
}
