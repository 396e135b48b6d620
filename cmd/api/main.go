package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/harentsoaR/medconsult-api/internal/config"
	"github.com/harentsoaR/medconsult-api/internal/handlers"
	"github.com/harentsoaR/medconsult-api/internal/services"
	"github.com/harentsoaR/medconsult-api/internal/utils"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "medconsult-api",
		Short: "Medical consultation booking API",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			return runServer(cfg)
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create tables, collections and indexes for the configured store",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger, err := newLogger(cfg)
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck

			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			defer cancel()

			st, err := openStore(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer st.Close(context.Background()) //nolint:errcheck

			if err := st.Migrate(ctx); err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			logger.Info("migrations applied", zap.String("driver", cfg.StoreDriver))
			return nil
		},
	}
}

func runServer(cfg *config.Config) error {
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	// --- Storage ---
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	st, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer st.Close(context.Background()) //nolint:errcheck
	if err := st.Migrate(ctx); err != nil {
		return fmt.Errorf("prepare store: %w", err)
	}

	ledger, closeLedger, err := openLedger(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeLedger()

	if err := os.MkdirAll(cfg.UploadDir, 0o755); err != nil {
		return fmt.Errorf("create upload dir: %w", err)
	}

	// --- Initialize Services ---
	tokens, err := utils.NewTokenManager(cfg.JWTSecret)
	if err != nil {
		return err
	}
	notifications := services.NewNotificationService(newMailer(cfg, logger), logger)
	auth := services.NewAuthService(st, utils.NewPasswordHasher(cfg.BcryptCost), tokens, ledger, notifications,
		services.AuthConfig{
			SessionTTL:             cfg.SessionTTL,
			SetupTokenTTL:          cfg.SetupTokenTTL,
			UniqueEmailAcrossRoles: cfg.UniqueEmailAcrossRoles,
		}, logger)
	slots := services.NewSlotRegistry(st)
	consultations := services.NewConsultationService(st, slots, cfg.AllowAnyStatusTransition, logger)

	// --- Initialize Handlers ---
	h := handlers.NewHandler(auth, slots, consultations, cfg.UploadDir, cfg.MaxUploadFiles, logger)
	router := handlers.NewRouter(h, handlers.RouterOptions{
		CORSOrigins:   cfg.CORSOrigins,
		AuthRateLimit: cfg.AuthRateLimit,
	})
	router.Static("/uploads", cfg.UploadDir)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown
	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", zap.String("addr", srv.Addr), zap.String("store", cfg.StoreDriver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}

	logger.Info("shutting down server")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", zap.Error(err))
	}
	if err := notifications.Wait(shutdownCtx); err != nil {
		logger.Warn("pending setup emails abandoned", zap.Error(err))
	}
	logger.Info("server stopped")
	return nil
}
