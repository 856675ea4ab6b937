package cmd

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	bolt "go.etcd.io/bbolt"

	"github.com/jmcleod/learngate/api"
	"github.com/jmcleod/learngate/audit"
	"github.com/jmcleod/learngate/auth"
	"github.com/jmcleod/learngate/catalog"
	"github.com/jmcleod/learngate/config"
	"github.com/jmcleod/learngate/gate"
	"github.com/jmcleod/learngate/notifications"
	bboltstorage "github.com/jmcleod/learngate/storage/bbolt"
	"github.com/jmcleod/learngate/users"
)

// auditDBFile is the audit store inside data_dir.
const auditDBFile = "audit.db"

// sweepInterval is how often expired rate-limit records are dropped.
const sweepInterval = time.Minute

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the BFF server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))

		if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
			return fmt.Errorf("failed to create data directory: %w", err)
		}
		repo, err := bboltstorage.NewRepositoryFromFile(filepath.Join(cfg.DataDir, auditDBFile), &bolt.Options{Timeout: time.Second})
		if err != nil {
			return fmt.Errorf("failed to open audit storage: %w", err)
		}
		defer repo.Close()

		auditOpts := []audit.Option{
			audit.WithStore(audit.NewStore(repo, cfg.Audit.Retention)),
			audit.WithAlerts(func(e audit.AlertEvent) {
				logger.Warn("security alert", "type", e.Type, "count", e.Count, "message", e.Message)
			}),
		}
		if cfg.Audit.WebhookURL != "" {
			auditOpts = append(auditOpts, audit.WithWebhook(audit.NewWebhook(cfg.Audit.WebhookURL, cfg.Audit.WebhookHeader)))
		}
		auditLog := audit.NewLogger(logger, auditOpts...)

		a, err := newAPI(cfg, logger, auditLog)
		if err != nil {
			return err
		}

		r := chi.NewRouter()
		r.Use(middleware.RequestID)
		r.Use(middleware.Logger)
		r.Use(middleware.Recoverer)
		r.Mount("/", a.Router())

		server := &http.Server{
			Addr:              cfg.Listen,
			Handler:           r,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		}
		if cfg.TLSCert != "" {
			cert, err := tls.LoadX509KeyPair(cfg.TLSCert, cfg.TLSKey)
			if err != nil {
				return fmt.Errorf("failed to load TLS key pair: %w", err)
			}
			server.TLSConfig = &tls.Config{
				Certificates: []tls.Certificate{cert},
				MinVersion:   tls.VersionTLS12,
			}
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		go sweep(ctx, a)

		// Graceful shutdown on SIGINT/SIGTERM.
		done := make(chan error, 1)
		go func() {
			var err error
			if server.TLSConfig != nil {
				err = server.ListenAndServeTLS("", "")
			} else {
				err = server.ListenAndServe()
			}
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				done <- fmt.Errorf("server failed: %w", err)
				return
			}
			done <- nil
		}()

		printBanner(cmd.OutOrStdout())
		logger.Info("starting server", "listen", cfg.Listen, "data_dir", cfg.DataDir,
			"tls", server.TLSConfig != nil, "secure_cookies", cfg.Secure())

		select {
		case <-ctx.Done():
			logger.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			err := server.Shutdown(shutdownCtx)
			auditLog.Close(shutdownCtx)
			if err != nil {
				return fmt.Errorf("server shutdown failed: %w", err)
			}
			return nil
		case err := <-done:
			return err
		}
	},
}

// newAPI wires the backend clients and the BFF from cfg.
func newAPI(cfg *config.Config, logger *slog.Logger, auditLog *audit.Logger) (*api.API, error) {
	proxies, err := api.ParseTrustedProxies(cfg.TrustedProxies)
	if err != nil {
		return nil, fmt.Errorf("invalid trusted_proxies: %w", err)
	}
	// Upstream calls carry no client timeout; only revocation is bounded.
	hc := &http.Client{}
	svc := api.Services{
		Auth: auth.NewClient(cfg.AuthURL, hc,
			auth.WithLogger(logger),
			auth.WithRevokeTimeout(cfg.Auth.RevokeTimeout)),
		Users:         users.NewClient(cfg.GatewayURL, hc),
		Notifications: notifications.NewClient(cfg.GatewayURL, hc),
		Catalog:       catalog.NewClient(cfg.CoursesURL, cfg.GroupsURL, hc),
	}
	return api.New(svc,
		api.WithLogger(logger),
		api.WithAudit(auditLog),
		api.WithSecureCookies(cfg.Secure()),
		api.WithTrustedProxies(proxies),
		api.WithProtectedPrefixes(cfg.Gate.Prefix),
		api.WithLoginPath(cfg.Gate.LoginPath),
		api.WithForbiddenPath(cfg.Gate.ForbiddenPath),
		api.WithGateOptions(
			gate.WithRequiredRole(cfg.Gate.RequiredRole),
			gate.WithClearStaleSession(cfg.Gate.ClearStaleSession),
		),
	)
}

func sweep(ctx context.Context, a *api.API) {
	t := time.NewTicker(sweepInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			a.SweepLimiters()
		}
	}
}

func init() {
	rootCmd.AddCommand(serveCmd)
	f := serveCmd.Flags()
	f.String("listen", ":8080", "Address to listen on")
	f.String("env", "development", "Deployment environment; production forces Secure cookies")
	f.String("data-dir", "./data", "Directory for persistent data")
	f.String("tls-cert", "", "Path to TLS certificate file")
	f.String("tls-key", "", "Path to TLS key file")
	f.String("auth-url", "", "Base URL of the auth service")
	f.String("gateway-url", "", "Base URL of the API gateway")
	f.String("courses-url", "", "Base URL of the course service")
	f.String("groups-url", "", "Base URL of the group service")
}
