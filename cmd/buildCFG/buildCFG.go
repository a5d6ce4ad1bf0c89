// Package buildCFG turns config.yaml plus environment overrides into the
// typed settings each component expects. Environment variables win over
// the file, so secrets can stay out of it.
package buildCFG

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/wb-go/wbf/dbpg"

	"ticketflow/cmd/middleware"
	"ticketflow/internal/idempotency"
	"ticketflow/internal/mailer"
	"ticketflow/internal/payment"
	"ticketflow/internal/rabbit"
)

// Source is the read side of the wbf config loader.
type Source interface {
	GetString(key string) string
	GetInt(key string) int
	GetBool(key string) bool
	GetDuration(key string) time.Duration
	GetStringSlice(key string) []string
}

const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
)

type ServerConfig struct {
	Port            string
	Mode            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	Storage         string
	Currency        string
	BcryptCost      int
}

type AuthConfig struct {
	JWTSecret string
}

type WebhookConfig struct {
	Secret    string
	Tolerance time.Duration
}

type WorkerConfig struct {
	MaxAttempts int
}

type TicketConfig struct {
	QRSize int
}

func lookup(src Source, key, env string) string {
	if v, ok := os.LookupEnv(env); ok && v != "" {
		return v
	}
	return src.GetString(key)
}

func stringOr(src Source, key, env, def string) string {
	if v := lookup(src, key, env); v != "" {
		return v
	}
	return def
}

func intOr(src Source, key, env string, def int) int {
	if v, ok := os.LookupEnv(env); ok && v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	if n := src.GetInt(key); n != 0 {
		return n
	}
	return def
}

func durationOr(src Source, key, env string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(env); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	if d := src.GetDuration(key); d > 0 {
		return d
	}
	return def
}

func boolOr(src Source, key, env string) bool {
	if v, ok := os.LookupEnv(env); ok && v != "" {
		b, err := strconv.ParseBool(v)
		return err == nil && b
	}
	return src.GetBool(key)
}

func BuildServerConfig(src Source, log *zerolog.Logger) ServerConfig {
	cfg := ServerConfig{
		Port:            stringOr(src, "server.port", "SERVER_PORT", "8080"),
		Mode:            stringOr(src, "server.mode", "GIN_MODE", "release"),
		ReadTimeout:     durationOr(src, "server.read_timeout", "SERVER_READ_TIMEOUT", 10*time.Second),
		WriteTimeout:    durationOr(src, "server.write_timeout", "SERVER_WRITE_TIMEOUT", 15*time.Second),
		ShutdownTimeout: durationOr(src, "server.shutdown_timeout", "SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
		Storage:         strings.ToLower(stringOr(src, "storage.driver", "STORAGE_DRIVER", StoragePostgres)),
		Currency:        strings.ToLower(stringOr(src, "payment.currency", "PAYMENT_CURRENCY", "brl")),
		BcryptCost:      intOr(src, "auth.bcrypt_cost", "BCRYPT_COST", 0),
	}
	if cfg.Storage != StorageMemory && cfg.Storage != StoragePostgres {
		log.Warn().Str("driver", cfg.Storage).Msg("unknown storage driver, using postgres")
		cfg.Storage = StoragePostgres
	}
	return cfg
}

// BuildDBConfig returns the master DSN, replica DSNs and pool options in
// the shape dbpg.New expects.
func BuildDBConfig(src Source, log *zerolog.Logger) (string, []string, *dbpg.Options, error) {
	master := lookup(src, "database.master_dsn", "DATABASE_URL")
	if master == "" {
		host := stringOr(src, "database.host", "DB_HOST", "localhost")
		port := intOr(src, "database.port", "DB_PORT", 5432)
		user := stringOr(src, "database.user", "DB_USER", "postgres")
		password := lookup(src, "database.password", "DB_PASSWORD")
		name := stringOr(src, "database.name", "DB_NAME", "ticketflow")
		sslMode := stringOr(src, "database.sslmode", "DB_SSLMODE", "disable")
		if user == "" || name == "" {
			return "", nil, nil, errors.New("database user and name are required")
		}
		master = fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			host, port, user, password, name, sslMode)
	}

	slaves := src.GetStringSlice("database.slave_dsns")
	if v := os.Getenv("DATABASE_SLAVE_URLS"); v != "" {
		slaves = strings.Split(v, ",")
	}

	opts := &dbpg.Options{
		MaxOpenConns:    intOr(src, "database.max_open_conns", "DB_MAX_OPEN_CONNS", 20),
		MaxIdleConns:    intOr(src, "database.max_idle_conns", "DB_MAX_IDLE_CONNS", 5),
		ConnMaxLifetime: durationOr(src, "database.conn_max_lifetime", "DB_CONN_MAX_LIFETIME", 30*time.Minute),
	}
	log.Debug().Int("replicas", len(slaves)).Int("max_open_conns", opts.MaxOpenConns).Msg("database config built")
	return master, slaves, opts, nil
}

func BuildRabbitConfig(src Source, log *zerolog.Logger) (rabbit.Config, error) {
	cfg := rabbit.Config{
		URL:      lookup(src, "rabbitmq.url", "RABBITMQ_URL"),
		Exchange: stringOr(src, "rabbitmq.exchange", "RABBITMQ_EXCHANGE", "ticketflow.confirmations"),
		Queue:    stringOr(src, "rabbitmq.queue", "RABBITMQ_QUEUE", "confirmation_emails"),
		Delayed:  boolOr(src, "rabbitmq.delayed", "RABBITMQ_DELAYED"),
	}
	if cfg.URL == "" {
		return cfg, errors.New("rabbitmq url is not configured")
	}
	log.Debug().Str("exchange", cfg.Exchange).Str("queue", cfg.Queue).Bool("delayed", cfg.Delayed).Msg("rabbitmq config built")
	return cfg, nil
}

func BuildRedisConfig(src Source) idempotency.Config {
	return idempotency.Config{
		Addr:     stringOr(src, "redis.addr", "REDIS_ADDR", "localhost:6379"),
		Password: lookup(src, "redis.password", "REDIS_PASSWORD"),
		DB:       intOr(src, "redis.db", "REDIS_DB", 0),
	}
}

// BuildDedupConfig returns the key prefix and retention for processed
// webhook event ids.
func BuildDedupConfig(src Source) (string, time.Duration) {
	return stringOr(src, "redis.dedup_prefix", "REDIS_DEDUP_PREFIX", "webhook:event"),
		durationOr(src, "redis.dedup_ttl", "REDIS_DEDUP_TTL", idempotency.DefaultTTL)
}

func BuildPaymentConfig(src Source, log *zerolog.Logger) (payment.Config, error) {
	cfg := payment.Config{
		BaseURL:    stringOr(src, "payment.base_url", "PAYMENT_BASE_URL", "https://api.stripe.com"),
		SecretKey:  lookup(src, "payment.secret_key", "PAYMENT_SECRET_KEY"),
		Currency:   strings.ToLower(stringOr(src, "payment.currency", "PAYMENT_CURRENCY", "brl")),
		SuccessURL: lookup(src, "payment.success_url", "PAYMENT_SUCCESS_URL"),
		CancelURL:  lookup(src, "payment.cancel_url", "PAYMENT_CANCEL_URL"),
		Timeout:    durationOr(src, "payment.timeout", "PAYMENT_TIMEOUT", 15*time.Second),
	}
	if cfg.SecretKey == "" {
		return cfg, errors.New("payment secret key is not configured")
	}
	if cfg.SuccessURL == "" || cfg.CancelURL == "" {
		log.Warn().Msg("payment success or cancel url is empty, provider defaults apply")
	}
	return cfg, nil
}

func BuildWebhookConfig(src Source) (WebhookConfig, error) {
	cfg := WebhookConfig{
		Secret:    lookup(src, "payment.webhook_secret", "PAYMENT_WEBHOOK_SECRET"),
		Tolerance: durationOr(src, "payment.webhook_tolerance", "PAYMENT_WEBHOOK_TOLERANCE", payment.DefaultSignatureTolerance),
	}
	if cfg.Secret == "" {
		return cfg, errors.New("payment webhook secret is not configured")
	}
	return cfg, nil
}

func BuildSMTPConfig(src Source) mailer.Config {
	return mailer.Config{
		Host:     stringOr(src, "smtp.host", "SMTP_HOST", "localhost"),
		Port:     intOr(src, "smtp.port", "SMTP_PORT", 587),
		Username: lookup(src, "smtp.username", "SMTP_USERNAME"),
		Password: lookup(src, "smtp.password", "SMTP_PASSWORD"),
		From:     stringOr(src, "smtp.from", "SMTP_FROM", "no-reply@ticketflow.local"),
	}
}

// BuildAuthConfig returns an empty secret when none is set; the router then
// treats every caller as anonymous.
func BuildAuthConfig(src Source, log *zerolog.Logger) AuthConfig {
	cfg := AuthConfig{JWTSecret: lookup(src, "auth.jwt_secret", "JWT_SECRET")}
	if cfg.JWTSecret == "" {
		log.Warn().Msg("JWT secret is empty, bearer tokens are ignored")
	}
	return cfg
}

func BuildRateLimitConfig(src Source) middleware.RateLimitConfig {
	return middleware.RateLimitConfig{
		Enabled:        boolOr(src, "rate_limit.enabled", "RATE_LIMIT_ENABLED"),
		Capacity:       intOr(src, "rate_limit.capacity", "RATE_LIMIT_CAPACITY", 10),
		RefillTokens:   intOr(src, "rate_limit.refill_tokens", "RATE_LIMIT_REFILL_TOKENS", 1),
		RefillInterval: durationOr(src, "rate_limit.refill_interval", "RATE_LIMIT_REFILL_INTERVAL", 6*time.Second),
		TTL:            durationOr(src, "rate_limit.ttl", "RATE_LIMIT_TTL", 10*time.Minute),
		Prefix:         stringOr(src, "rate_limit.prefix", "RATE_LIMIT_PREFIX", "rl"),
	}.Normalize()
}

func BuildWorkerConfig(src Source) WorkerConfig {
	return WorkerConfig{MaxAttempts: intOr(src, "worker.max_attempts", "WORKER_MAX_ATTEMPTS", 5)}
}

func BuildTicketConfig(src Source) TicketConfig {
	return TicketConfig{QRSize: intOr(src, "ticket.qr_size", "TICKET_QR_SIZE", 256)}
}
