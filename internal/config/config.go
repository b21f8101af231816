package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/multierr"
)

type Config struct {
	// Targets
	Websites     string `mapstructure:"websites"`      // comma-separated URLs
	APIEndpoints string `mapstructure:"api_endpoints"` // name|url|status|k:v,k2:v2;...
	TargetsFile  string `mapstructure:"targets_file"`  // optional YAML file

	// Timing, seconds unless noted
	CheckInterval       int `mapstructure:"check_interval"`
	Timeout             int `mapstructure:"timeout"`
	MaxRetries          int `mapstructure:"max_retries"`
	AlertCooldown       int `mapstructure:"alert_cooldown"`
	RetryBackoffMS      int `mapstructure:"retry_backoff_ms"`
	RetryBackoffMaxMS   int `mapstructure:"retry_backoff_max_ms"`
	MaxConcurrentChecks int `mapstructure:"max_concurrent_checks"` // 0 = one per target

	AlertThreshold int    `mapstructure:"alert_threshold"`
	NotifyRecovery bool   `mapstructure:"notify_recovery"`
	UserAgent      string `mapstructure:"user_agent"`

	LogLevel string `mapstructure:"log_level"`
	LogDir   string `mapstructure:"log_dir"`

	// Alert history store
	StoreDriver string `mapstructure:"store_driver"` // "" picks postgres with DATABASE_URL, bolt otherwise
	StorePath   string `mapstructure:"store_path"`
	DatabaseURL string `mapstructure:"database_url"`

	// Email
	SMTPServer   string `mapstructure:"smtp_server"`
	SMTPPort     int    `mapstructure:"smtp_port"`
	SMTPUsername string `mapstructure:"smtp_username"`
	SMTPPassword string `mapstructure:"smtp_password"`
	SMTPFrom     string `mapstructure:"smtp_from"`
	AlertEmail   string `mapstructure:"alert_email"`

	SlackWebhookURL string `mapstructure:"slack_webhook_url"`
	KafkaBrokers    string `mapstructure:"kafka_brokers"`
	KafkaTopic      string `mapstructure:"kafka_topic"`

	// Status API; empty address disables it
	APIAddr        string `mapstructure:"api_addr"`
	PublicAPIKeys  string `mapstructure:"public_api_keys"`
	AdminAPIKeys   string `mapstructure:"admin_api_keys"`
	AllowedOrigins string `mapstructure:"allowed_origins"`
	PublicRPM      int    `mapstructure:"public_rpm"`
	PublicBurst    int    `mapstructure:"public_burst"`
	AdminRPM       int    `mapstructure:"admin_rpm"`
	AdminBurst     int    `mapstructure:"admin_burst"`

	OTelEnabled     bool    `mapstructure:"otel_enabled"`
	OTelEndpoint    string  `mapstructure:"otel_endpoint"`
	OTelSampleRatio float64 `mapstructure:"otel_sample_ratio"`
}

var defaults = map[string]any{
	"websites":              "",
	"api_endpoints":         "",
	"targets_file":          "",
	"check_interval":        300,
	"timeout":               30,
	"max_retries":           3,
	"alert_cooldown":        3600,
	"retry_backoff_ms":      2000,
	"retry_backoff_max_ms":  30000,
	"max_concurrent_checks": 0,
	"alert_threshold":       1,
	"notify_recovery":       true,
	"user_agent":            "sitemonitor/1.0",
	"log_level":             "info",
	"log_dir":               "logs",
	"store_driver":          "",
	"store_path":            "data/alert_history.db",
	"database_url":          "",
	"smtp_server":           "smtp.gmail.com",
	"smtp_port":             587,
	"smtp_username":         "",
	"smtp_password":         "",
	"smtp_from":             "",
	"alert_email":           "",
	"slack_webhook_url":     "",
	"kafka_brokers":         "",
	"kafka_topic":           "sitemonitor.alerts",
	"api_addr":              "",
	"public_api_keys":       "",
	"admin_api_keys":        "",
	"allowed_origins":       "",
	"public_rpm":            120,
	"public_burst":          60,
	"admin_rpm":             30,
	"admin_burst":           10,
	"otel_enabled":          false,
	"otel_endpoint":         "localhost:4317",
	"otel_sample_ratio":     1.0,
}

// Load reads envFile (a .env file, missing is fine) and then the process
// environment, which wins on conflicts.
func Load(envFile string) (*Config, error) {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}

	if envFile != "" {
		v.SetConfigFile(envFile)
		v.SetConfigType("env")
		if err := v.ReadInConfig(); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("read %s: %w", envFile, err)
			}
		}
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &cfg, nil
}

// Validate reports every problem at once.
func (c *Config) Validate() error {
	var errs error
	targets, err := c.Targets()
	errs = multierr.Append(errs, err)
	if err == nil && len(targets) == 0 {
		errs = multierr.Append(errs, errors.New("no targets configured: set WEBSITES, API_ENDPOINTS or TARGETS_FILE"))
	}
	for _, t := range targets {
		if err := checkURL(t.URL); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("target %s: %w", t.ID, err))
		}
	}

	if c.CheckInterval <= 0 {
		errs = multierr.Append(errs, errors.New("CHECK_INTERVAL must be positive"))
	}
	if c.Timeout <= 0 {
		errs = multierr.Append(errs, errors.New("TIMEOUT must be positive"))
	}
	if c.MaxRetries < 0 {
		errs = multierr.Append(errs, errors.New("MAX_RETRIES must not be negative"))
	}
	if c.AlertCooldown < 0 {
		errs = multierr.Append(errs, errors.New("ALERT_COOLDOWN must not be negative"))
	}
	if c.RetryBackoffMS < 0 || c.RetryBackoffMaxMS < 0 {
		errs = multierr.Append(errs, errors.New("retry backoff must not be negative"))
	}
	if c.MaxConcurrentChecks < 0 {
		errs = multierr.Append(errs, errors.New("MAX_CONCURRENT_CHECKS must not be negative"))
	}
	if c.AlertEmail != "" && (c.SMTPServer == "" || c.SMTPUsername == "" || c.SMTPPassword == "") {
		errs = multierr.Append(errs, errors.New("ALERT_EMAIL requires SMTP_SERVER, SMTP_USERNAME and SMTP_PASSWORD"))
	}
	if c.SlackWebhookURL != "" {
		if err := checkURL(c.SlackWebhookURL); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("SLACK_WEBHOOK_URL: %w", err))
		}
	}
	return errs
}

func checkURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid URL %q: %w", raw, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid URL %q: want absolute http(s) URL", raw)
	}
	return nil
}

func (c *Config) Interval() time.Duration { return time.Duration(c.CheckInterval) * time.Second }
func (c *Config) RequestTimeout() time.Duration { return time.Duration(c.Timeout) * time.Second }
func (c *Config) Cooldown() time.Duration { return time.Duration(c.AlertCooldown) * time.Second }
func (c *Config) BaseDelay() time.Duration {
	return time.Duration(c.RetryBackoffMS) * time.Millisecond
}
func (c *Config) MaxDelay() time.Duration {
	return time.Duration(c.RetryBackoffMaxMS) * time.Millisecond
}

func (c *Config) PublicKeys() []string { return splitList(c.PublicAPIKeys) }
func (c *Config) AdminKeys() []string { return splitList(c.AdminAPIKeys) }
func (c *Config) Origins() []string { return splitList(c.AllowedOrigins) }
func (c *Config) KafkaBrokerList() []string { return splitList(c.KafkaBrokers) }

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
