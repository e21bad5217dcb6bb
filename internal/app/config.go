package app

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/cowboyjack911/pc-install-repairhub/internal/service/outbox"
)

const (
	// StorageDriverMemory хранит данные в памяти процесса.
	StorageDriverMemory = "memory"
	// StorageDriverPostgres использует PostgreSQL через pgx.
	StorageDriverPostgres = "postgres"
	// StorageDriverSQLite использует встроенную SQLite через GORM.
	StorageDriverSQLite = "sqlite"
)

const envPrefix = "REPAIRHUB_"

// Config описывает настройки запуска repairhub.
type Config struct {
	GRPCAddr    string `yaml:"grpc_addr"`
	MetricsAddr string `yaml:"metrics_addr"`
	LogLevel    string `yaml:"log_level"`

	StorageDriver       string `yaml:"storage_driver"`
	PostgresDSN         string `yaml:"postgres_dsn"`
	PostgresAutoMigrate bool   `yaml:"postgres_auto_migrate"`
	SQLitePath          string `yaml:"sqlite_path"`

	// RequireActualCost запрещает завершать заявку без фактической стоимости.
	RequireActualCost bool `yaml:"require_actual_cost"`

	KafkaBrokers  []string `yaml:"kafka_brokers"`
	KafkaClientID string   `yaml:"kafka_client_id"`
	OutboxTopic   string   `yaml:"outbox_topic"`
	OutboxDLQ     string   `yaml:"outbox_dlq_topic"`

	OutboxPollInterval time.Duration `yaml:"outbox_poll_interval"`
	OutboxBatchSize    int           `yaml:"outbox_batch_size"`
	OutboxMaxAttempts  int           `yaml:"outbox_max_attempts"`
	OutboxRetryDelay   time.Duration `yaml:"outbox_retry_delay"`
	OutboxMaxPending   int           `yaml:"outbox_max_pending"`
	OutboxMaxAge       time.Duration `yaml:"outbox_max_age"`
}

// DefaultConfig возвращает настройки для локального запуска на in-memory хранилище.
func DefaultConfig() Config {
	return Config{
		GRPCAddr:            ":50051",
		MetricsAddr:         ":9090",
		LogLevel:            "info",
		StorageDriver:       StorageDriverMemory,
		PostgresAutoMigrate: true,
		SQLitePath:          "repairhub.db",
		RequireActualCost:   true,
		KafkaClientID:       "repairhub",
		OutboxTopic:         "repairhub.ticket.events",
		OutboxDLQ:           "repairhub.ticket.dlq",
		OutboxPollInterval:  time.Second,
		OutboxBatchSize:     100,
		OutboxMaxAttempts:   3,
		OutboxRetryDelay:    100 * time.Millisecond,
		OutboxMaxPending:    1000,
		OutboxMaxAge:        5 * time.Minute,
	}
}

// LoadConfig читает YAML-файл поверх DefaultConfig и применяет переменные окружения REPAIRHUB_*.
// Пустой path означает «только окружение».
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return Config{}, fmt.Errorf("open config %s: %w", path, err)
		}
		defer f.Close()

		if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
			return Config{}, fmt.Errorf("decode config %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// applyEnv переопределяет поля значениями из окружения.
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	get := func(name string) (string, bool) {
		v, ok := lookup(envPrefix + name)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}

	strVars := map[string]*string{
		"GRPC_ADDR":        &c.GRPCAddr,
		"METRICS_ADDR":     &c.MetricsAddr,
		"LOG_LEVEL":        &c.LogLevel,
		"STORAGE_DRIVER":   &c.StorageDriver,
		"POSTGRES_DSN":     &c.PostgresDSN,
		"SQLITE_PATH":      &c.SQLitePath,
		"KAFKA_CLIENT_ID":  &c.KafkaClientID,
		"OUTBOX_TOPIC":     &c.OutboxTopic,
		"OUTBOX_DLQ_TOPIC": &c.OutboxDLQ,
	}
	for name, dst := range strVars {
		if v, ok := get(name); ok {
			*dst = v
		}
	}

	if v, ok := get("KAFKA_BROKERS"); ok {
		c.KafkaBrokers = splitBrokers(v)
	}

	boolVars := map[string]*bool{
		"POSTGRES_AUTO_MIGRATE": &c.PostgresAutoMigrate,
		"REQUIRE_ACTUAL_COST":   &c.RequireActualCost,
	}
	for name, dst := range boolVars {
		v, ok := get(name)
		if !ok {
			continue
		}
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s%s: %w", envPrefix, name, err)
		}
		*dst = parsed
	}

	intVars := map[string]*int{
		"OUTBOX_BATCH_SIZE":   &c.OutboxBatchSize,
		"OUTBOX_MAX_ATTEMPTS": &c.OutboxMaxAttempts,
		"OUTBOX_MAX_PENDING":  &c.OutboxMaxPending,
	}
	for name, dst := range intVars {
		v, ok := get(name)
		if !ok {
			continue
		}
		parsed, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s%s: %w", envPrefix, name, err)
		}
		*dst = parsed
	}

	durationVars := map[string]*time.Duration{
		"OUTBOX_POLL_INTERVAL": &c.OutboxPollInterval,
		"OUTBOX_RETRY_DELAY":   &c.OutboxRetryDelay,
		"OUTBOX_MAX_AGE":       &c.OutboxMaxAge,
	}
	for name, dst := range durationVars {
		v, ok := get(name)
		if !ok {
			continue
		}
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s%s: %w", envPrefix, name, err)
		}
		*dst = parsed
	}
	return nil
}

// Validate проверяет согласованность настроек.
func (c Config) Validate() error {
	var errs []error
	if c.GRPCAddr == "" {
		errs = append(errs, errors.New("grpc_addr is required"))
	}
	if c.MetricsAddr == "" {
		errs = append(errs, errors.New("metrics_addr is required"))
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("log_level: %w", err))
	}

	switch c.StorageDriver {
	case StorageDriverMemory:
	case StorageDriverPostgres:
		if c.PostgresDSN == "" {
			errs = append(errs, errors.New("postgres_dsn is required for postgres storage"))
		}
	case StorageDriverSQLite:
		if c.SQLitePath == "" {
			errs = append(errs, errors.New("sqlite_path is required for sqlite storage"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported storage driver %q", c.StorageDriver))
	}

	if c.OutboxPollInterval <= 0 {
		errs = append(errs, errors.New("outbox_poll_interval must be positive"))
	}
	if c.OutboxBatchSize <= 0 {
		errs = append(errs, errors.New("outbox_batch_size must be positive"))
	}
	if c.OutboxMaxAttempts <= 0 {
		errs = append(errs, errors.New("outbox_max_attempts must be positive"))
	}
	if c.OutboxRetryDelay < 0 {
		errs = append(errs, errors.New("outbox_retry_delay must not be negative"))
	}
	if len(c.KafkaBrokers) > 0 && c.OutboxTopic == "" {
		errs = append(errs, errors.New("outbox_topic is required when kafka brokers are set"))
	}
	return errors.Join(errs...)
}

func (c Config) outboxConfig() outbox.Config {
	return outbox.Config{
		PollInterval: c.OutboxPollInterval,
		BatchSize:    c.OutboxBatchSize,
		MaxAttempts:  c.OutboxMaxAttempts,
		RetryDelay:   c.OutboxRetryDelay,
	}
}

func splitBrokers(raw string) []string {
	parts := strings.Split(raw, ",")
	brokers := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			brokers = append(brokers, part)
		}
	}
	return brokers
}
