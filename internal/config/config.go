// Package config loads runtime settings from the environment (and .env).
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DriverMongo    = "mongo"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMemory   = "memory"
)

type Config struct {
	Env         string
	Port        string
	CORSOrigins []string
	LogLevel    string

	JWTSecret     string
	SessionTTL    time.Duration
	SetupTokenTTL time.Duration
	BcryptCost    int

	StoreDriver   string
	MongoURI      string
	MongoDatabase string
	DatabaseURL   string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	MailFrom     string
	AppBaseURL   string

	UploadDir      string
	MaxUploadFiles int

	AllowAnyStatusTransition bool
	UniqueEmailAcrossRoles   bool
	AuthRateLimit            int
}

// Load reads .env when present and falls back to the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from a lookup function.
func FromEnv(getenv func(string) string) (*Config, error) {
	p := parser{getenv: getenv}
	cfg := &Config{
		Env:         p.str("APP_ENV", "development"),
		Port:        p.str("API_PORT", "8080"),
		CORSOrigins: p.list("CORS_ORIGINS", []string{"http://localhost:3000"}),
		LogLevel:    p.str("LOG_LEVEL", "info"),

		JWTSecret:     getenv("JWT_SECRET"),
		SessionTTL:    p.duration("SESSION_TTL", time.Hour),
		SetupTokenTTL: p.duration("SETUP_TOKEN_TTL", time.Hour),
		BcryptCost:    p.integer("BCRYPT_COST", 12),

		StoreDriver:   strings.ToLower(p.str("STORE_DRIVER", DriverMongo)),
		MongoURI:      p.str("MONGO_URI", "mongodb://localhost:27017"),
		MongoDatabase: p.str("MONGO_DATABASE", "medconsult"),
		DatabaseURL:   getenv("DATABASE_URL"),

		RedisAddr:     getenv("REDIS_ADDR"),
		RedisPassword: getenv("REDIS_PASSWORD"),
		RedisDB:       p.integer("REDIS_DB", 0),

		SMTPHost:     getenv("SMTP_HOST"),
		SMTPPort:     p.integer("SMTP_PORT", 587),
		SMTPUsername: getenv("SMTP_USERNAME"),
		SMTPPassword: getenv("SMTP_PASSWORD"),
		MailFrom:     getenv("MAIL_FROM"),
		AppBaseURL:   p.str("APP_BASE_URL", "http://localhost:3000"),

		UploadDir:      p.str("UPLOAD_DIR", "uploads"),
		MaxUploadFiles: p.integer("MAX_UPLOAD_FILES", 5),

		AllowAnyStatusTransition: p.boolean("ALLOW_ANY_STATUS_TRANSITION", false),
		UniqueEmailAcrossRoles:   p.boolean("UNIQUE_EMAIL_ACROSS_ROLES", false),
		AuthRateLimit:            p.integer("AUTH_RATE_LIMIT", 20),
	}
	if p.err != nil {
		return nil, p.err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is not set"))
	}
	switch c.StoreDriver {
	case DriverMongo, DriverMemory:
	case DriverPostgres, DriverSQLite:
		if c.DatabaseURL == "" {
			errs = append(errs, fmt.Errorf("DATABASE_URL is required for store driver %q", c.StoreDriver))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver))
	}
	if c.SessionTTL <= 0 || c.SetupTokenTTL <= 0 {
		errs = append(errs, errors.New("token TTLs must be positive"))
	}
	if c.MaxUploadFiles < 0 {
		errs = append(errs, errors.New("MAX_UPLOAD_FILES must not be negative"))
	}
	return errors.Join(errs...)
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

type parser struct {
	getenv func(string) string
	err    error
}

func (p *parser) str(key, def string) string {
	if v := strings.TrimSpace(p.getenv(key)); v != "" {
		return v
	}
	return def
}

func (p *parser) list(key string, def []string) []string {
	v := strings.TrimSpace(p.getenv(key))
	if v == "" {
		return def
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func (p *parser) integer(key string, def int) int {
	v := strings.TrimSpace(p.getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.fail(fmt.Errorf("%s: %w", key, err))
		return def
	}
	return n
}

func (p *parser) boolean(key string, def bool) bool {
	v := strings.TrimSpace(p.getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		p.fail(fmt.Errorf("%s: %w", key, err))
		return def
	}
	return b
}

func (p *parser) duration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(p.getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		p.fail(fmt.Errorf("%s: %w", key, err))
		return def
	}
	return d
}

func (p *parser) fail(err error) {
	p.err = errors.Join(p.err, err)
}
