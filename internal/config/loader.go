package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the path checked for YAML configuration.
const DefaultConfigFile = "sitecms.yaml"

// minJWTSecretLen is the shortest HMAC secret accepted when auth is enabled.
const minJWTSecretLen = 32

// Load returns a Config using the hierarchy: defaults < YAML < ENV.
// YAML file is optional; missing file is not an error.
func Load() (*Config, error) {
	path := DefaultConfigFile
	if p := os.Getenv("SITECMS_CONFIG"); p != "" {
		path = p
	}
	return LoadFrom(path)
}

// LoadFrom returns a Config loaded from the given YAML path using the
// hierarchy: defaults < YAML < ENV. The YAML file is optional.
func LoadFrom(yamlPath string) (*Config, error) {
	cfg := Defaults()

	if err := loadYAML(&cfg, yamlPath); err != nil {
		return nil, fmt.Errorf("config yaml: %w", err)
	}

	loadEnv(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validate: %w", err)
	}

	return &cfg, nil
}

// loadYAML reads the YAML file and unmarshals it over cfg.
// Returns nil if the file does not exist.
func loadYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // G304: operator-supplied config path
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	return nil
}

// loadEnv overlays environment variables onto cfg.
// Only non-empty env values override the current config.
func loadEnv(cfg *Config) {
	setString(&cfg.Server.Port, "SITECMS_PORT")
	setString(&cfg.Server.CORSOrigin, "SITECMS_CORS_ORIGIN")
	setInt64(&cfg.Server.BodyLimit, "SITECMS_BODY_LIMIT")

	setString(&cfg.Store.Driver, "SITECMS_STORE_DRIVER")
	setString(&cfg.Store.Namespace, "SITECMS_APP_ID")

	setString(&cfg.Postgres.DSN, "DATABASE_URL")
	setInt32(&cfg.Postgres.MaxConns, "SITECMS_PG_MAX_CONNS")
	setInt32(&cfg.Postgres.MinConns, "SITECMS_PG_MIN_CONNS")
	setDuration(&cfg.Postgres.MaxConnLifetime, "SITECMS_PG_MAX_CONN_LIFETIME")
	setDuration(&cfg.Postgres.MaxConnIdleTime, "SITECMS_PG_MAX_CONN_IDLE_TIME")
	setDuration(&cfg.Postgres.HealthCheck, "SITECMS_PG_HEALTH_CHECK")

	setString(&cfg.NATS.URL, "NATS_URL")
	setString(&cfg.NATS.Stream, "SITECMS_NATS_STREAM")
	setString(&cfg.NATS.SubjectPrefix, "SITECMS_NATS_SUBJECT_PREFIX")

	setString(&cfg.Site.DefaultID, "SITECMS_DEFAULT_SITE")

	setBool(&cfg.Auth.Enabled, "SITECMS_AUTH_ENABLED")
	setString(&cfg.Auth.JWTSecret, "SITECMS_JWT_SECRET")
	setDuration(&cfg.Auth.AccessTokenExpiry, "SITECMS_ACCESS_TOKEN_EXPIRY")
	setInt(&cfg.Auth.BcryptCost, "SITECMS_BCRYPT_COST")
	setAdmin(&cfg.Auth.Admins, "SITECMS_ADMIN_TOKEN_HASH", "SITECMS_ADMIN_SITES")

	setString(&cfg.Logging.Level, "SITECMS_LOG_LEVEL")
	setString(&cfg.Logging.Service, "SITECMS_LOG_SERVICE")
	setBool(&cfg.Logging.Async, "SITECMS_LOG_ASYNC")

	setInt(&cfg.Breaker.MaxFailures, "SITECMS_BREAKER_MAX_FAILURES")
	setDuration(&cfg.Breaker.Timeout, "SITECMS_BREAKER_TIMEOUT")

	setFloat64(&cfg.Rate.RequestsPerSecond, "SITECMS_RATE_RPS")
	setInt(&cfg.Rate.Burst, "SITECMS_RATE_BURST")
	setDuration(&cfg.Rate.CleanupInterval, "SITECMS_RATE_CLEANUP_INTERVAL")
	setDuration(&cfg.Rate.MaxIdleTime, "SITECMS_RATE_MAX_IDLE_TIME")

	// Cache
	setInt64(&cfg.Cache.L1MaxSizeMB, "SITECMS_CACHE_L1_SIZE_MB")
	setDuration(&cfg.Cache.L1TTL, "SITECMS_CACHE_L1_TTL")
	setString(&cfg.Cache.L2Bucket, "SITECMS_CACHE_L2_BUCKET")
	setDuration(&cfg.Cache.L2TTL, "SITECMS_CACHE_L2_TTL")

	// Idempotency
	setString(&cfg.Idempotency.Bucket, "SITECMS_IDEMPOTENCY_BUCKET")
	setDuration(&cfg.Idempotency.TTL, "SITECMS_IDEMPOTENCY_TTL")

	setString(&cfg.Telemetry.Endpoint, "OTEL_EXPORTER_OTLP_ENDPOINT")
	setString(&cfg.Telemetry.ServiceName, "OTEL_SERVICE_NAME")
	setBool(&cfg.Telemetry.Insecure, "SITECMS_OTEL_INSECURE")
}

// validate checks that required fields are set.
func validate(cfg *Config) error {
	if cfg.Server.Port == "" {
		return errors.New("server.port is required")
	}
	if cfg.Server.BodyLimit < 1 {
		return errors.New("server.body_limit must be >= 1")
	}
	switch cfg.Store.Driver {
	case "postgres":
		if cfg.Postgres.DSN == "" {
			return errors.New("postgres.dsn is required")
		}
		if cfg.Postgres.MaxConns < 1 {
			return errors.New("postgres.max_conns must be >= 1")
		}
	case "memory":
	default:
		return fmt.Errorf("store.driver %q is not supported (postgres, memory)", cfg.Store.Driver)
	}
	if cfg.Store.Namespace == "" {
		return errors.New("store.namespace is required")
	}
	if strings.ContainsAny(cfg.Store.Namespace, ". *>") {
		return errors.New("store.namespace must not contain dots, spaces or wildcards")
	}
	if cfg.Site.DefaultID == "" {
		return errors.New("site.default_id is required")
	}
	if cfg.Auth.Enabled {
		if len(cfg.Auth.JWTSecret) < minJWTSecretLen {
			return fmt.Errorf("auth.jwt_secret must be at least %d characters", minJWTSecretLen)
		}
		if cfg.Auth.AccessTokenExpiry <= 0 {
			return errors.New("auth.access_token_expiry must be positive")
		}
		for i, a := range cfg.Auth.Admins {
			if a.ID == "" || a.TokenHash == "" {
				return fmt.Errorf("auth.admins[%d]: id and token_hash are required", i)
			}
		}
	}
	if cfg.Breaker.MaxFailures < 1 {
		return errors.New("breaker.max_failures must be >= 1")
	}
	if cfg.Rate.Burst < 1 {
		return errors.New("rate.burst must be >= 1")
	}
	if cfg.Rate.RequestsPerSecond <= 0 {
		return errors.New("rate.requests_per_second must be positive")
	}
	if cfg.Rate.CleanupInterval <= 0 {
		return errors.New("rate.cleanup_interval must be positive")
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt32(dst *int32, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 32); err == nil {
			*dst = int32(n)
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}

// setAdmin appends a single admin credential from env, for deployments that
// do not ship a YAML file. Sites are comma separated and default to "*".
func setAdmin(dst *[]AdminCredential, hashKey, sitesKey string) {
	hash := os.Getenv(hashKey)
	if hash == "" {
		return
	}
	sites := []string{"*"}
	if v := os.Getenv(sitesKey); v != "" {
		sites = sites[:0]
		for _, s := range strings.Split(v, ",") {
			if s = strings.TrimSpace(s); s != "" {
				sites = append(sites, s)
			}
		}
	}
	*dst = append(*dst, AdminCredential{ID: "env-admin", TokenHash: hash, Sites: sites})
}
