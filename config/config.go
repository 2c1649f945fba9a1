package config

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"ticket-queue-backend/internal/queue"
)

// Config represents the overall application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Push       PushConfig       `yaml:"push"`
	WorkerPool WorkerPoolConfig `yaml:"worker_pool"`
	Queue      QueueConfig      `yaml:"queue"`
	Categories []CategoryConfig `yaml:"categories"`
	NATS       NATSConfig       `yaml:"nats"`
	Checkpoint CheckpointConfig `yaml:"checkpoint"`
}

// WorkerPoolConfig holds the configuration for the event worker pool.
type WorkerPoolConfig struct {
	Size            int           `yaml:"size"`
	QueueSize       int           `yaml:"queue_size"`
	MaxAttempts     int           `yaml:"max_attempts"`
	RetryBackoffMS  int           `yaml:"retry_backoff_ms"`
	MaxRetryDelayMS int           `yaml:"max_retry_delay_ms"`
	DrainTimeoutMS  int           `yaml:"drain_timeout_ms"`
	RetryBackoff    time.Duration `yaml:"-"`
	MaxRetryDelay   time.Duration `yaml:"-"`
	DrainTimeout    time.Duration `yaml:"-"`
}

// PushConfig holds the VAPID keys for web push notifications. Push is
// disabled when either key is missing.
type PushConfig struct {
	PublicKey  string `yaml:"vapid_public_key"`
	PrivateKey string `yaml:"vapid_private_key"`
	Subject    string `yaml:"subject"`
	TTL        int    `yaml:"ttl"`
}

// Enabled reports whether both VAPID keys are configured.
func (p PushConfig) Enabled() bool {
	return p.PublicKey != "" && p.PrivateKey != ""
}

// ServerConfig holds the server-related configuration.
type ServerConfig struct {
	Port                   int           `yaml:"port"`
	RequestIPHeader        string        `yaml:"request_ip_header"`
	RateLimitPerSec        float64       `yaml:"rate_limit_per_sec"`
	RateLimitBurst         int           `yaml:"rate_limit_burst"`
	CacheTTLSeconds        int           `yaml:"cache_ttl_seconds"`
	ShutdownTimeoutSeconds int           `yaml:"shutdown_timeout_seconds"`
	CacheTTL               time.Duration `yaml:"-"`
	ShutdownTimeout        time.Duration `yaml:"-"`
}

// DatabaseConfig holds the database connection configuration.
type DatabaseConfig struct {
	Driver                 string `yaml:"driver"`
	DSN                    string `yaml:"dsn"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes"`
	LogSQL                 bool   `yaml:"log_sql"`
}

// QueueConfig holds the scheduler tunables.
type QueueConfig struct {
	NumberWidth         int    `yaml:"number_width"`
	EstimateLowMinutes  int    `yaml:"estimate_low_minutes"`
	EstimateHighMinutes int    `yaml:"estimate_high_minutes"`
	LogoutPolicy        string `yaml:"logout_policy"`
	RecentCalls         int    `yaml:"recent_calls"`
	DebugInvariants     bool   `yaml:"debug_invariants"`
}

// CategoryConfig describes a service category offered at the kiosk.
type CategoryConfig struct {
	ID            string `yaml:"id"`
	Name          string `yaml:"name"`
	PriorityClass string `yaml:"priority_class"`
}

// NATSConfig holds the event bus connection. An empty URL disables it.
type NATSConfig struct {
	URL           string `yaml:"url"`
	SubjectPrefix string `yaml:"subject_prefix"`
}

// CheckpointConfig controls the periodic full-state write to the database.
type CheckpointConfig struct {
	Enabled         bool          `yaml:"enabled"`
	IntervalSeconds int           `yaml:"interval_seconds"`
	Interval        time.Duration `yaml:"-"` // Ignored by YAML parser
}

var defaultCategories = []CategoryConfig{
	{ID: "general", Name: "General", PriorityClass: string(queue.ClassGeneral)},
	{ID: "preferential", Name: "Preferential", PriorityClass: string(queue.ClassPreferential)},
	{ID: "priority", Name: "Priority", PriorityClass: string(queue.ClassPriority)},
}

// Load reads the configuration from the given path.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}

	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	var cfg Config
	if err := cfg.applyDefaults(); err != nil {
		// The zero config only takes defaults, which are valid.
		panic(err)
	}
	return &cfg
}

func (cfg *Config) applyDefaults() error {
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.RateLimitPerSec <= 0 {
		cfg.Server.RateLimitPerSec = 10
	}
	if cfg.Server.RateLimitBurst <= 0 {
		cfg.Server.RateLimitBurst = 5
	}
	if cfg.Server.CacheTTLSeconds <= 0 {
		cfg.Server.CacheTTLSeconds = 2
	}
	cfg.Server.CacheTTL = time.Duration(cfg.Server.CacheTTLSeconds) * time.Second
	if cfg.Server.ShutdownTimeoutSeconds <= 0 {
		cfg.Server.ShutdownTimeoutSeconds = 5
	}
	cfg.Server.ShutdownTimeout = time.Duration(cfg.Server.ShutdownTimeoutSeconds) * time.Second

	switch cfg.Database.Driver {
	case "":
		cfg.Database.Driver = "sqlite"
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("database.driver must be sqlite or postgres, got %q", cfg.Database.Driver)
	}
	if cfg.Database.DSN == "" {
		if cfg.Database.Driver == "postgres" {
			return fmt.Errorf("database.dsn is required for postgres")
		}
		cfg.Database.DSN = "file:queue.db"
	}

	if cfg.Push.TTL <= 0 {
		cfg.Push.TTL = 3600
	}

	if cfg.WorkerPool.Size <= 0 {
		log.Printf("worker_pool.size is not set or invalid; defaulting to 2")
		cfg.WorkerPool.Size = 2
	}
	if cfg.WorkerPool.QueueSize <= 0 {
		cfg.WorkerPool.QueueSize = 256
	}
	if cfg.WorkerPool.MaxAttempts <= 0 {
		cfg.WorkerPool.MaxAttempts = 3
	}
	if cfg.WorkerPool.RetryBackoffMS <= 0 {
		cfg.WorkerPool.RetryBackoffMS = 100
	}
	if cfg.WorkerPool.MaxRetryDelayMS <= 0 {
		cfg.WorkerPool.MaxRetryDelayMS = 30000
	}
	if cfg.WorkerPool.DrainTimeoutMS <= 0 {
		cfg.WorkerPool.DrainTimeoutMS = 3000
	}
	cfg.WorkerPool.RetryBackoff = time.Duration(cfg.WorkerPool.RetryBackoffMS) * time.Millisecond
	cfg.WorkerPool.MaxRetryDelay = time.Duration(cfg.WorkerPool.MaxRetryDelayMS) * time.Millisecond
	cfg.WorkerPool.DrainTimeout = time.Duration(cfg.WorkerPool.DrainTimeoutMS) * time.Millisecond

	if cfg.Queue.NumberWidth <= 0 {
		cfg.Queue.NumberWidth = queue.DefaultNumberWidth
	}
	if cfg.Queue.EstimateLowMinutes <= 0 {
		cfg.Queue.EstimateLowMinutes = queue.DefaultLowPerTicket
	}
	if cfg.Queue.EstimateHighMinutes <= 0 {
		cfg.Queue.EstimateHighMinutes = queue.DefaultHighPerTicket
	}
	if cfg.Queue.EstimateHighMinutes < cfg.Queue.EstimateLowMinutes {
		return fmt.Errorf("queue.estimate_high_minutes (%d) is below estimate_low_minutes (%d)",
			cfg.Queue.EstimateHighMinutes, cfg.Queue.EstimateLowMinutes)
	}
	policy, err := queue.ParseLogoutPolicy(cfg.Queue.LogoutPolicy)
	if err != nil {
		return fmt.Errorf("queue.logout_policy: %w", err)
	}
	cfg.Queue.LogoutPolicy = string(policy)
	if cfg.Queue.RecentCalls <= 0 {
		cfg.Queue.RecentCalls = 5
	}

	if len(cfg.Categories) == 0 {
		log.Printf("no categories configured; using general, preferential and priority")
		cfg.Categories = append([]CategoryConfig(nil), defaultCategories...)
	}
	if _, err := queue.NewCategoryRegistry(cfg.QueueCategories()); err != nil {
		return fmt.Errorf("categories: %w", err)
	}

	if cfg.NATS.SubjectPrefix == "" {
		cfg.NATS.SubjectPrefix = "queue"
	}

	if cfg.Checkpoint.IntervalSeconds <= 0 {
		cfg.Checkpoint.IntervalSeconds = 30
	}
	cfg.Checkpoint.Interval = time.Duration(cfg.Checkpoint.IntervalSeconds) * time.Second
	return nil
}

// QueueCategories converts the configured categories for the scheduler.
func (cfg *Config) QueueCategories() []queue.Category {
	out := make([]queue.Category, len(cfg.Categories))
	for i, c := range cfg.Categories {
		out[i] = queue.Category{ID: c.ID, Name: c.Name, PriorityClass: queue.PriorityClass(c.PriorityClass)}
	}
	return out
}

// SchedulerConfig builds the scheduler tunables. Collaborators (clock, ids,
// sink) are left for the caller.
func (cfg *Config) SchedulerConfig() queue.Config {
	return queue.Config{
		NumberWidth: cfg.Queue.NumberWidth,
		Estimator: queue.Estimator{
			LowPerTicket:  cfg.Queue.EstimateLowMinutes,
			HighPerTicket: cfg.Queue.EstimateHighMinutes,
		},
		LogoutPolicy:    queue.LogoutPolicy(cfg.Queue.LogoutPolicy),
		CheckInvariants: cfg.Queue.DebugInvariants,
	}
}
