package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "golang.org/x/crypto/x509roots/fallback" // Embed CA certs for scratch container

	provisioningadapter "github.com/aliuygur/instol-panel/internal/adapter/driven/provisioning"
	sqliteadapter "github.com/aliuygur/instol-panel/internal/adapter/driven/sqlite"
	httphandler "github.com/aliuygur/instol-panel/internal/adapter/driving/http"
	webhandler "github.com/aliuygur/instol-panel/internal/adapter/driving/web"
	"github.com/aliuygur/instol-panel/internal/application"
	"github.com/aliuygur/instol-panel/internal/config"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load configuration.
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	slog.Info("config loaded",
		"api_base_url", cfg.APIBaseURL,
		"listen_addr", cfg.ListenAddr,
		"db_path", cfg.DBPath,
		"poll_interval", cfg.PollInterval,
	)

	// 2. Setup signal-based context (SIGINT, SIGTERM).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Open database (dual reader/writer with WAL mode).
	db, err := sqliteadapter.NewDB(ctx, cfg.DBPath)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()
	slog.Info("database opened", "path", cfg.DBPath)

	// 4. Run migrations on writer connection.
	if err := sqliteadapter.RunMigrations(db.Writer); err != nil {
		return err
	}
	slog.Info("migrations complete")

	// 5. Wire the credential store and session manager, then the API client.
	// The client needs the manager as its token source and the manager needs
	// the client for the best-effort logout call, hence the two-step bind.
	credentialStore := sqliteadapter.NewCredentialRepo(db)
	sessionMgr := application.NewSessionManager(credentialStore, slog.Default())
	apiClient := provisioningadapter.NewClient(cfg.APIBaseURL, sessionMgr)
	sessionMgr.BindAPI(apiClient)

	// 6. Create the instance service.
	instanceSvc := application.NewInstanceService(apiClient, sessionMgr, slog.Default())

	// 7. Create and start the poll service.
	pollSvc := application.NewPollService(instanceSvc, cfg.PollInterval, slog.Default())
	go pollSvc.Start(ctx)

	// 8. Create HTTP handler and register routes plus the embedded shell.
	apiHandler := httphandler.NewHandler(sessionMgr, instanceSvc, pollSvc, cfg.LoginURL, slog.Default())
	handler := httphandler.NewServeMux(apiHandler, webhandler.NewStaticHandler(), slog.Default())

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		slog.Info("http server starting", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server error", "error", err)
		}
	}()

	slog.Info("instol-panel started",
		"listen_addr", cfg.ListenAddr,
		"poll_interval", cfg.PollInterval,
	)

	// 9. Wait for shutdown signal.
	<-ctx.Done()
	slog.Info("shutting down")

	// 10. Graceful shutdown with 10s timeout for HTTP server drain.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http server shutdown error", "error", err)
	}

	slog.Info("shutdown complete")
	return nil
}
