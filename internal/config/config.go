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

type Config struct {
	Debug      bool            `yaml:"debug"`
	ListenAddr string          `yaml:"listen_addr"`
	DBDSN      string          `yaml:"db_dsn"`
	APIToken   string          `yaml:"api_token"` // empty disables auth on mutating routes
	Scheduler  SchedulerConfig `yaml:"scheduler"`
	Fetch      FetchConfig     `yaml:"fetch"`
	Notify     NotifyConfig    `yaml:"notify"`
	Jobs       JobsConfig      `yaml:"jobs"`
}

type SchedulerConfig struct {
	CheckInterval   time.Duration `yaml:"check_interval"`
	JitterFraction  float64       `yaml:"jitter_fraction"` // tick = interval * (1 ± fraction)
	RequestDelayMin time.Duration `yaml:"request_delay_min"`
	RequestDelayMax time.Duration `yaml:"request_delay_max"`
	MaxRetries      int           `yaml:"max_retries"`
	BaseBackoff     time.Duration `yaml:"base_backoff"`
	MaxBackoff      time.Duration `yaml:"max_backoff"`
}

type FetchConfig struct {
	Timeout    time.Duration `yaml:"timeout"`
	UserAgents []string      `yaml:"user_agents"`
}

type NotifyConfig struct {
	BaseDelay         time.Duration `yaml:"base_delay"`
	MaxDelay          time.Duration `yaml:"max_delay"`
	MaxAttempts       int           `yaml:"max_attempts"` // 1 initial + retries
	Timeout           time.Duration `yaml:"timeout"`
	Currency          string        `yaml:"currency"`
	PriceAlertDefault bool          `yaml:"price_alert_default"` // price_alert on newly discovered ads
}

type JobsConfig struct {
	Workers   int `yaml:"workers"`
	QueueSize int `yaml:"queue_size"`
}

// defaultUserAgents mirrors the pool the watcher rotates through when the
// config does not provide one.
var defaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36",
}

// Load reads the YAML config at path, applies defaults and ADWATCH_* env
// overrides, and validates the result. A missing file is not an error;
// defaults plus environment variables make a complete config.
func Load(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	case os.IsNotExist(err):
		// fall through to defaults
	default:
		return nil, fmt.Errorf("read config file: %w", err)
	}

	setDefaults(&cfg)
	overrideWithEnvVars(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(cfg *Config) {
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8081"
	}
	if cfg.DBDSN == "" {
		cfg.DBDSN = "adwatch.db"
	}

	if cfg.Scheduler.CheckInterval == 0 {
		cfg.Scheduler.CheckInterval = 5 * time.Minute
	}
	if cfg.Scheduler.JitterFraction == 0 {
		cfg.Scheduler.JitterFraction = 0.2
	}
	if cfg.Scheduler.RequestDelayMin == 0 {
		cfg.Scheduler.RequestDelayMin = time.Second
	}
	if cfg.Scheduler.RequestDelayMax == 0 {
		cfg.Scheduler.RequestDelayMax = 3 * time.Second
	}
	if cfg.Scheduler.MaxRetries == 0 {
		cfg.Scheduler.MaxRetries = 3
	}
	if cfg.Scheduler.BaseBackoff == 0 {
		cfg.Scheduler.BaseBackoff = time.Second
	}
	if cfg.Scheduler.MaxBackoff == 0 {
		cfg.Scheduler.MaxBackoff = time.Minute
	}

	if cfg.Fetch.Timeout == 0 {
		cfg.Fetch.Timeout = 20 * time.Second
	}
	if len(cfg.Fetch.UserAgents) == 0 {
		cfg.Fetch.UserAgents = append([]string(nil), defaultUserAgents...)
	}

	if cfg.Notify.BaseDelay == 0 {
		cfg.Notify.BaseDelay = time.Second
	}
	if cfg.Notify.MaxDelay == 0 {
		cfg.Notify.MaxDelay = time.Minute
	}
	if cfg.Notify.MaxAttempts == 0 {
		cfg.Notify.MaxAttempts = 4
	}
	if cfg.Notify.Timeout == 0 {
		cfg.Notify.Timeout = 30 * time.Second
	}
	if cfg.Notify.Currency == "" {
		cfg.Notify.Currency = "Ft"
	}

	if cfg.Jobs.Workers == 0 {
		cfg.Jobs.Workers = 2
	}
	if cfg.Jobs.QueueSize == 0 {
		cfg.Jobs.QueueSize = 64
	}
}

func overrideWithEnvVars(cfg *Config) {
	if v := os.Getenv("ADWATCH_DEBUG"); v != "" {
		cfg.Debug = parseBool(v)
	}
	if v := os.Getenv("ADWATCH_LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv("ADWATCH_DB_DSN"); v != "" {
		cfg.DBDSN = v
	}
	if v := os.Getenv("ADWATCH_API_TOKEN"); v != "" {
		cfg.APIToken = v
	}
	if v := os.Getenv("ADWATCH_CHECK_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Scheduler.CheckInterval = d
		}
	}
	if v := os.Getenv("ADWATCH_JOB_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Jobs.Workers = n
		}
	}
	if v := os.Getenv("ADWATCH_USER_AGENTS"); v != "" {
		parts := strings.Split(v, "|")
		uas := parts[:0]
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				uas = append(uas, p)
			}
		}
		if len(uas) > 0 {
			cfg.Fetch.UserAgents = uas
		}
	}
}

// Validate checks cross-field constraints after defaults and overrides.
func (c *Config) Validate() error {
	if c.Scheduler.CheckInterval <= 0 {
		return fmt.Errorf("scheduler.check_interval must be positive, got %v", c.Scheduler.CheckInterval)
	}
	if c.Scheduler.JitterFraction < 0 || c.Scheduler.JitterFraction >= 1 {
		return fmt.Errorf("scheduler.jitter_fraction must be in [0, 1), got %v", c.Scheduler.JitterFraction)
	}
	if c.Scheduler.RequestDelayMin > c.Scheduler.RequestDelayMax {
		return errors.New("scheduler.request_delay_min must not exceed request_delay_max")
	}
	if c.Scheduler.BaseBackoff <= 0 || c.Scheduler.MaxBackoff < c.Scheduler.BaseBackoff {
		return errors.New("scheduler backoff bounds are inconsistent")
	}
	if c.Notify.MaxAttempts < 1 {
		return fmt.Errorf("notify.max_attempts must be at least 1, got %d", c.Notify.MaxAttempts)
	}
	if c.Jobs.Workers < 1 {
		return fmt.Errorf("jobs.workers must be at least 1, got %d", c.Jobs.Workers)
	}
	if len(c.Fetch.UserAgents) == 0 {
		return errors.New("fetch.user_agents must not be empty")
	}
	return nil
}

// parseBool accepts "true", "1", "yes" (case-insensitive) as true.
func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "true" || s == "1" || s == "yes"
}
