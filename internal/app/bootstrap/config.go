package bootstrap

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	ServiceID string

	HTTPPort int
	GRPCPort int

	// DatabaseURL selects the Postgres store; empty runs on the in-memory store.
	DatabaseURL  string
	MaxDBConns   int32
	StoreTimeout time.Duration

	// RedisURL backs the lookup rate limiter; empty disables it.
	RedisURL string

	KafkaBrokers     []string
	KafkaTopicEvents string
	KafkaTopicByType map[string]string

	OutboxPollInterval time.Duration
	OutboxBatchSize    int

	JWTSecret string
	JWTIssuer string

	LookupRateLimit  int
	LookupRateWindow time.Duration
}

type configFile struct {
	Service struct {
		ID       string `yaml:"id"`
		HTTPPort int    `yaml:"http_port"`
		GRPCPort int    `yaml:"grpc_port"`
	} `yaml:"service"`
	Dependencies struct {
		PostgresURL         string            `yaml:"postgres_url"`
		StoreTimeoutSeconds int               `yaml:"store_timeout_seconds"`
		RedisURL            string            `yaml:"redis_url"`
		KafkaBrokers        []string          `yaml:"kafka_brokers"`
		KafkaTopicEvents    string            `yaml:"kafka_topic_events"`
		KafkaTopicByType    map[string]string `yaml:"kafka_topic_by_type"`
	} `yaml:"dependencies"`
	Auth struct {
		Issuer string `yaml:"issuer"`
	} `yaml:"auth"`
	Lookup struct {
		RateLimit         int `yaml:"rate_limit"`
		RateWindowSeconds int `yaml:"rate_window_seconds"`
	} `yaml:"lookup"`
}

func LoadConfig(path string) (Config, error) {
	cfg := Config{
		ServiceID:          "M04-User-Directory-Service",
		HTTPPort:           8080,
		GRPCPort:           9090,
		MaxDBConns:         20,
		StoreTimeout:       3 * time.Second,
		KafkaTopicEvents:   "user-directory.events",
		OutboxPollInterval: 2 * time.Second,
		OutboxBatchSize:    100,
		LookupRateLimit:    60,
		LookupRateWindow:   time.Minute,
	}

	raw, err := os.ReadFile(path)
	if err == nil {
		var f configFile
		if unmarshalErr := yaml.Unmarshal(raw, &f); unmarshalErr != nil {
			return Config{}, fmt.Errorf("parse config file: %w", unmarshalErr)
		}
		if f.Service.ID != "" {
			cfg.ServiceID = f.Service.ID
		}
		if f.Service.HTTPPort > 0 {
			cfg.HTTPPort = f.Service.HTTPPort
		}
		if f.Service.GRPCPort > 0 {
			cfg.GRPCPort = f.Service.GRPCPort
		}
		if f.Dependencies.PostgresURL != "" {
			cfg.DatabaseURL = f.Dependencies.PostgresURL
		}
		if f.Dependencies.StoreTimeoutSeconds > 0 {
			cfg.StoreTimeout = time.Duration(f.Dependencies.StoreTimeoutSeconds) * time.Second
		}
		if f.Dependencies.RedisURL != "" {
			cfg.RedisURL = f.Dependencies.RedisURL
		}
		if len(f.Dependencies.KafkaBrokers) > 0 {
			cfg.KafkaBrokers = trimNonEmpty(f.Dependencies.KafkaBrokers)
		}
		if f.Dependencies.KafkaTopicEvents != "" {
			cfg.KafkaTopicEvents = f.Dependencies.KafkaTopicEvents
		}
		cfg.KafkaTopicByType = f.Dependencies.KafkaTopicByType
		cfg.JWTIssuer = f.Auth.Issuer
		if f.Lookup.RateLimit > 0 {
			cfg.LookupRateLimit = f.Lookup.RateLimit
		}
		if f.Lookup.RateWindowSeconds > 0 {
			cfg.LookupRateWindow = time.Duration(f.Lookup.RateWindowSeconds) * time.Second
		}
	} else if !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	cfg.DatabaseURL = envOrDefault("DB_URL", envOrDefault("POSTGRES_URL", cfg.DatabaseURL))
	cfg.RedisURL = envOrDefault("REDIS_URL", cfg.RedisURL)
	cfg.KafkaBrokers = envCSV("KAFKA_BROKERS", cfg.KafkaBrokers)
	cfg.KafkaTopicEvents = envOrDefault("KAFKA_TOPIC_EVENTS", cfg.KafkaTopicEvents)
	cfg.JWTSecret = envOrDefault("JWT_SECRET", cfg.JWTSecret)
	cfg.JWTIssuer = envOrDefault("JWT_ISSUER", cfg.JWTIssuer)
	cfg.HTTPPort = envInt("HTTP_PORT", cfg.HTTPPort)
	cfg.GRPCPort = envInt("GRPC_PORT", cfg.GRPCPort)
	cfg.MaxDBConns = int32(envInt("DB_MAX_CONNS", int(cfg.MaxDBConns)))
	cfg.StoreTimeout = time.Duration(envInt("STORE_TIMEOUT_SECONDS", int(cfg.StoreTimeout.Seconds()))) * time.Second
	cfg.OutboxPollInterval = time.Duration(envInt("OUTBOX_POLL_SECONDS", int(cfg.OutboxPollInterval.Seconds()))) * time.Second
	cfg.OutboxBatchSize = envInt("OUTBOX_BATCH_SIZE", cfg.OutboxBatchSize)
	cfg.LookupRateLimit = envInt("LOOKUP_RATE_LIMIT", cfg.LookupRateLimit)
	cfg.LookupRateWindow = time.Duration(envInt("LOOKUP_RATE_WINDOW_SECONDS", int(cfg.LookupRateWindow.Seconds()))) * time.Second

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("missing JWT_SECRET")
	}
	if cfg.StoreTimeout <= 0 {
		return Config{}, fmt.Errorf("STORE_TIMEOUT_SECONDS must be positive")
	}
	if cfg.LookupRateLimit < 0 {
		return Config{}, fmt.Errorf("LOOKUP_RATE_LIMIT must not be negative")
	}
	return cfg, nil
}

func envOrDefault(name, fallback string) string {
	if value := os.Getenv(name); value != "" {
		return value
	}
	return fallback
}

func envInt(name string, fallback int) int {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

func envCSV(name string, fallback []string) []string {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	items := strings.Split(raw, ",")
	return trimNonEmpty(items)
}

func trimNonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		trimmed := strings.TrimSpace(v)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
