package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// GenesisModel seeds the registry singleton on first boot. The registry is
// never empty; version numbering starts at 1 with this record.
type GenesisModel struct {
	ArtifactRef    string `yaml:"artifact_ref"`
	ProofRef       string `yaml:"proof_ref"`
	CompressionTag string `yaml:"compression_tag"`
}

// Config is centralized process configuration.
// Keep infra values here and pass typed config into builders.
type Config struct {
	ServiceName  string       `yaml:"service_name"`
	HTTPPort     string       `yaml:"http_port"`
	PostgresDSN  string       `yaml:"postgres_dsn"`
	KafkaBrokers []string     `yaml:"kafka_brokers"`
	AttestorID   string       `yaml:"attestor_id"`
	Genesis      GenesisModel `yaml:"genesis"`

	MarketplaceURL string `yaml:"marketplace_url"`

	IdempotencyTTL     time.Duration `yaml:"idempotency_ttl"`
	WorkerPollInterval time.Duration `yaml:"worker_poll_interval"`

	EnableProofConsumer bool `yaml:"enable_proof_consumer"`
	EnableJobRetry      bool `yaml:"enable_job_retry"`
}

// Load resolves configuration from an optional CONFIG_FILE yaml document,
// then applies environment variable overrides on top.
func Load() (Config, error) {
	cfg := Config{
		ServiceName:         "aegis",
		HTTPPort:            "8080",
		KafkaBrokers:        []string{"localhost:9092"},
		AttestorID:          "proof-service",
		IdempotencyTTL:      7 * 24 * time.Hour,
		WorkerPollInterval:  5 * time.Second,
		EnableProofConsumer: true,
		EnableJobRetry:      true,
	}

	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	if value := os.Getenv("SERVICE_NAME"); value != "" {
		cfg.ServiceName = value
	}
	if value := os.Getenv("HTTP_PORT"); value != "" {
		cfg.HTTPPort = value
	}
	if value := os.Getenv("POSTGRES_DSN"); value != "" {
		cfg.PostgresDSN = value
	}
	if value := os.Getenv("ATTESTOR_ID"); value != "" {
		cfg.AttestorID = value
	}
	if value := os.Getenv("MARKETPLACE_URL"); value != "" {
		cfg.MarketplaceURL = value
	}
	if value := os.Getenv("GENESIS_ARTIFACT_REF"); value != "" {
		cfg.Genesis.ArtifactRef = value
	}
	if value := os.Getenv("GENESIS_PROOF_REF"); value != "" {
		cfg.Genesis.ProofRef = value
	}
	if value := os.Getenv("GENESIS_COMPRESSION_TAG"); value != "" {
		cfg.Genesis.CompressionTag = value
	}

	if brokers := splitList(os.Getenv("KAFKA_BROKERS")); len(brokers) > 0 {
		cfg.KafkaBrokers = brokers
	}

	if ttl, ok, err := envDuration("IDEMPOTENCY_TTL"); err != nil {
		return Config{}, err
	} else if ok {
		cfg.IdempotencyTTL = ttl
	}
	if interval, ok, err := envDuration("WORKER_POLL_INTERVAL"); err != nil {
		return Config{}, err
	} else if ok {
		cfg.WorkerPollInterval = interval
	}

	cfg.EnableProofConsumer = envBool("ENABLE_PROOF_CONSUMER", cfg.EnableProofConsumer)
	cfg.EnableJobRetry = envBool("ENABLE_JOB_RETRY", cfg.EnableJobRetry)

	if cfg.Genesis.ArtifactRef == "" {
		cfg.Genesis.ArtifactRef = "sha256:" + strings.Repeat("0", 64)
	}

	return cfg, nil
}

func splitList(raw string) []string {
	var values []string
	for _, value := range strings.Split(raw, ",") {
		value = strings.TrimSpace(value)
		if value != "" {
			values = append(values, value)
		}
	}
	return values
}

func envDuration(name string) (time.Duration, bool, error) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return 0, false, nil
	}
	if seconds, err := strconv.Atoi(raw); err == nil {
		return time.Duration(seconds) * time.Second, true, nil
	}
	value, err := time.ParseDuration(raw)
	if err != nil {
		return 0, false, fmt.Errorf("parse %s: %w", name, err)
	}
	return value, true, nil
}

func envBool(name string, fallback bool) bool {
	raw := strings.TrimSpace(strings.ToLower(os.Getenv(name)))
	if raw == "" {
		return fallback
	}
	switch raw {
	case "1", "true", "t", "yes", "y", "on":
		return true
	case "0", "false", "f", "no", "n", "off":
		return false
	default:
		return fallback
	}
}
