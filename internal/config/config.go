// Package config loads service settings from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Inventory backends.
const (
	BackendMemory = "memory"
	BackendMySQL  = "mysql"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

type Config struct {
	ServiceName string
	Environment string
	HTTPAddr    string
	LogLevel    string
	LogFile     string

	MerchantWalletAddressURL string
	KeyID                    string
	PrivateKey               string
	AssetCode                string
	AssetScale               int
	FinishURL                string

	ProtocolTimeout    time.Duration
	InventoryTimeout   time.Duration
	PublishTimeout     time.Duration
	WalletRetries      int
	WalletRetryBackoff time.Duration

	InventoryBackend string
	MySQLDSN         string
	SQLitePath       string
	RedisAddr        string

	KafkaBroker    string
	KafkaTopic     string
	OtelEndpoint   string
	OtelAuthHeader string
	OtelInsecure   bool

	ReconcilePollInterval time.Duration
	CORSOrigins           []string
}

// Load reads the process environment.
func Load() (*Config, error) {
	return LoadFrom(os.LookupEnv)
}

// LoadFrom reads settings through lookup and validates them.
func LoadFrom(lookup func(string) (string, bool)) (*Config, error) {
	r := reader{lookup: lookup}
	cfg := &Config{
		ServiceName: r.str("SERVICE_NAME", "openpayments-pos"),
		Environment: r.str("ENV", "dev"),
		HTTPAddr:    r.str("HTTP_ADDR", ":5001"),
		LogLevel:    r.str("LOG_LEVEL", "info"),
		LogFile:     r.str("LOG_FILE", ""),

		MerchantWalletAddressURL: r.str("MERCHANT_WALLET_ADDRESS_URL", ""),
		KeyID:                    r.str("KEY_ID", ""),
		PrivateKey:               strings.ReplaceAll(r.str("PRIVATE_KEY", ""), `\n`, "\n"),
		AssetCode:                r.str("ASSET_CODE", "MXN"),
		AssetScale:               r.integer("ASSET_SCALE", 2),
		FinishURL:                r.str("FINISH_URL", "http://localhost:5174/checkout/complete"),

		ProtocolTimeout:    r.duration("PROTOCOL_TIMEOUT", 10*time.Second),
		InventoryTimeout:   r.duration("INVENTORY_TIMEOUT", 5*time.Second),
		PublishTimeout:     r.duration("PUBLISH_TIMEOUT", 2*time.Second),
		WalletRetries:      r.integer("WALLET_RETRY_ATTEMPTS", 3),
		WalletRetryBackoff: r.duration("WALLET_RETRY_BACKOFF", 500*time.Millisecond),

		InventoryBackend: strings.ToLower(r.str("INVENTORY_BACKEND", BackendMemory)),
		MySQLDSN:         r.str("MYSQL_DSN", ""),
		SQLitePath:       r.str("SQLITE_PATH", "pos.db"),
		RedisAddr:        r.str("REDIS_ADDR", ""),

		KafkaBroker:    r.str("KAFKA_BROKER", ""),
		KafkaTopic:     r.str("KAFKA_TOPIC", "pos-events"),
		OtelEndpoint:   r.str("OTEL_ENDPOINT", ""),
		OtelAuthHeader: r.str("OTEL_AUTH_HEADER", ""),
		OtelInsecure:   r.boolean("OTEL_INSECURE", false),

		ReconcilePollInterval: r.duration("RECONCILE_POLL_INTERVAL", 0),
		CORSOrigins:           r.list("CORS_ORIGINS"),
	}
	if r.err != nil {
		return nil, r.err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.MerchantWalletAddressURL == "" {
		errs = append(errs, errors.New("MERCHANT_WALLET_ADDRESS_URL is required"))
	}
	if c.AssetCode == "" {
		errs = append(errs, errors.New("ASSET_CODE must not be empty"))
	}
	if c.AssetScale < 0 || c.AssetScale > 18 {
		errs = append(errs, fmt.Errorf("ASSET_SCALE %d out of range", c.AssetScale))
	}
	if c.WalletRetries < 1 {
		errs = append(errs, errors.New("WALLET_RETRY_ATTEMPTS must be at least 1"))
	}
	switch c.InventoryBackend {
	case BackendMemory:
	case BackendMySQL:
		if c.MySQLDSN == "" {
			errs = append(errs, errors.New("MYSQL_DSN is required for the mysql backend"))
		}
	case BackendSQLite:
		if c.SQLitePath == "" {
			errs = append(errs, errors.New("SQLITE_PATH is required for the sqlite backend"))
		}
	case BackendRedis:
		if c.RedisAddr == "" {
			errs = append(errs, errors.New("REDIS_ADDR is required for the redis backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("INVENTORY_BACKEND %q is not one of memory, mysql, sqlite, redis", c.InventoryBackend))
	}
	if c.ReconcilePollInterval < 0 {
		errs = append(errs, errors.New("RECONCILE_POLL_INTERVAL must not be negative"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

type reader struct {
	lookup func(string) (string, bool)
	err    error
}

func (r *reader) str(key, def string) string {
	if v, ok := r.lookup(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return def
}

func (r *reader) integer(key string, def int) int {
	v := r.str(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		r.fail(key, err)
		return def
	}
	return n
}

func (r *reader) duration(key string, def time.Duration) time.Duration {
	v := r.str(key, "")
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		// plain integers are milliseconds
		ms, intErr := strconv.Atoi(v)
		if intErr != nil {
			r.fail(key, err)
			return def
		}
		d = time.Duration(ms) * time.Millisecond
	}
	return d
}

func (r *reader) boolean(key string, def bool) bool {
	v := r.str(key, "")
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		r.fail(key, err)
		return def
	}
	return b
}

func (r *reader) list(key string) []string {
	var out []string
	for _, part := range strings.Split(r.str(key, ""), ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (r *reader) fail(key string, err error) {
	r.err = errors.Join(r.err, fmt.Errorf("config: %s: %w", key, err))
}
