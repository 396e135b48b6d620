package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/harentsoaR/medconsult-api/internal/config"
	"github.com/harentsoaR/medconsult-api/internal/services"
	"github.com/harentsoaR/medconsult-api/internal/store"
	"github.com/harentsoaR/medconsult-api/internal/store/mongostore"
	"github.com/harentsoaR/medconsult-api/internal/store/redisstore"
	"github.com/harentsoaR/medconsult-api/internal/store/sqlstore"
)

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	zc := zap.NewDevelopmentConfig()
	if cfg.IsProduction() {
		zc = zap.NewProductionConfig()
	}
	if cfg.LogLevel != "" {
		level, err := zapcore.ParseLevel(cfg.LogLevel)
		if err != nil {
			return nil, fmt.Errorf("LOG_LEVEL: %w", err)
		}
		zc.Level = zap.NewAtomicLevelAt(level)
	}
	return zc.Build()
}

// openStore connects the backend named by STORE_DRIVER.
func openStore(ctx context.Context, cfg *config.Config, log *zap.Logger) (store.Store, error) {
	switch cfg.StoreDriver {
	case config.DriverMongo:
		st, err := mongostore.Connect(ctx, cfg.MongoURI, cfg.MongoDatabase, log)
		if err != nil {
			return nil, err
		}
		return st, nil
	case config.DriverPostgres, config.DriverSQLite:
		st, err := sqlstore.Open(cfg.StoreDriver, cfg.DatabaseURL, log)
		if err != nil {
			return nil, err
		}
		return st, nil
	case config.DriverMemory:
		log.Warn("using in-memory store, data is lost on restart")
		return store.NewMemory(), nil
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
}

// openLedger records consumed setup tokens in Redis when configured, in
// process memory otherwise.
func openLedger(ctx context.Context, cfg *config.Config, log *zap.Logger) (store.TokenLedger, func(), error) {
	if cfg.RedisAddr == "" {
		log.Warn("REDIS_ADDR not set, setup token ledger is process-local")
		return store.NewMemoryLedger(), func() {}, nil
	}
	ledger, err := redisstore.Connect(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, log)
	if err != nil {
		return nil, nil, err
	}
	return ledger, func() {
		if err := ledger.Close(); err != nil {
			log.Warn("closing Redis", zap.Error(err))
		}
	}, nil
}

func newMailer(cfg *config.Config, log *zap.Logger) services.Mailer {
	if cfg.SMTPHost == "" {
		log.Warn("SMTP_HOST not set, setup links are logged at debug level instead of mailed")
		return services.NewLogMailer(log, cfg.AppBaseURL)
	}
	return services.NewSMTPMailer(services.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.MailFrom,
		BaseURL:  cfg.AppBaseURL,
	})
}
