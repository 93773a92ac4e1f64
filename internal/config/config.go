// Package config loads service settings from .env files and the environment.
package config

import (
	"fmt"
	"net/netip"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr    string
	CORSOrigins []string
	AdminToken  string
	LogLevel    string

	// TrustedProxies are the peers whose X-Forwarded-For is believed. Empty
	// means every request is attributed to its TCP peer.
	TrustedProxies []netip.Prefix

	// DatabaseDriver is "pgx" (default) or "postgres" for lib/pq.
	DatabaseDriver string
	DatabaseURL    string

	// Empty RedisAddr falls back to the in-process rate-limit counter.
	RedisAddr     string
	RedisPassword string

	// Empty AMQPURL falls back to the in-process webhook queue.
	AMQPURL string

	StripeAPIKey    string
	StripeURL       string
	PaymentCurrency string
	GatewayTimeout  time.Duration

	MailHost        string
	MailPort        int
	MailUser        string
	MailPassword    string
	SalesAlertEmail string

	RateLimitMax    int
	RateLimitWindow time.Duration
	DedupWindow     time.Duration

	WebhookTimeout  time.Duration
	WebhookWorkers  int
	WebhookQueueCap int

	ListingSweepInterval time.Duration
}

// Load reads .env (when present) and builds the config from the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &Config{
		HTTPAddr:        getEnv("HTTP_ADDR", ":8080"),
		CORSOrigins:     splitList(getEnv("CORS_ORIGINS", "*")),
		AdminToken:      os.Getenv("ADMIN_TOKEN"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		DatabaseDriver:  getEnv("DATABASE_DRIVER", "pgx"),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		RedisAddr:       os.Getenv("REDIS_ADDR"),
		RedisPassword:   os.Getenv("REDIS_PASSWORD"),
		AMQPURL:         os.Getenv("AMQP_URL"),
		StripeAPIKey:    os.Getenv("STRIPE_API_KEY"),
		StripeURL:       getEnv("STRIPE_URL", "https://api.stripe.com"),
		PaymentCurrency: getEnv("PAYMENT_CURRENCY", "usd"),
		MailHost:        os.Getenv("MAIL_HOST"),
		MailUser:        os.Getenv("MAIL_USER"),
		MailPassword:    os.Getenv("MAIL_PASS"),
		SalesAlertEmail: os.Getenv("SALES_ALERT_EMAIL"),
	}

	var err error
	if cfg.MailPort, err = getEnvInt("MAIL_PORT", 587); err != nil {
		return nil, err
	}
	if cfg.TrustedProxies, err = parsePrefixes("TRUSTED_PROXIES", os.Getenv("TRUSTED_PROXIES")); err != nil {
		return nil, err
	}
	if cfg.RateLimitMax, err = getEnvInt("RATE_LIMIT_MAX", 10); err != nil {
		return nil, err
	}
	if cfg.WebhookWorkers, err = getEnvInt("WEBHOOK_WORKERS", 4); err != nil {
		return nil, err
	}
	if cfg.WebhookQueueCap, err = getEnvInt("WEBHOOK_QUEUE_CAPACITY", 256); err != nil {
		return nil, err
	}
	if cfg.RateLimitWindow, err = getEnvDuration("RATE_LIMIT_WINDOW", 15*time.Minute); err != nil {
		return nil, err
	}
	if cfg.DedupWindow, err = getEnvDuration("DEDUP_WINDOW", 24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.WebhookTimeout, err = getEnvDuration("WEBHOOK_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.GatewayTimeout, err = getEnvDuration("GATEWAY_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.ListingSweepInterval, err = getEnvDuration("LISTING_SWEEP_INTERVAL", time.Minute); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the settings the process cannot start without.
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.DatabaseDriver != "pgx" && c.DatabaseDriver != "postgres" {
		return fmt.Errorf("DATABASE_DRIVER must be pgx or postgres")
	}
	if c.RateLimitMax <= 0 {
		return fmt.Errorf("RATE_LIMIT_MAX must be positive")
	}
	if c.RateLimitWindow <= 0 || c.DedupWindow <= 0 {
		return fmt.Errorf("rate limit and dedup windows must be positive")
	}
	if c.WebhookWorkers <= 0 {
		return fmt.Errorf("WEBHOOK_WORKERS must be positive")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return v, nil
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return v, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// parsePrefixes reads a comma-separated list of CIDRs or bare addresses.
func parsePrefixes(key, raw string) ([]netip.Prefix, error) {
	var out []netip.Prefix
	for _, part := range splitList(raw) {
		if p, err := netip.ParsePrefix(part); err == nil {
			out = append(out, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(part)
		if err != nil {
			return nil, fmt.Errorf("%s: %q is not an address or CIDR", key, part)
		}
		addr = addr.Unmap()
		out = append(out, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return out, nil
}
