package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const defaultConfigPath = "config/config.yaml"

// Engine names accepted by renderer.engine.
const (
	EngineWkhtmltopdf = "wkhtmltopdf"
	EngineChrome      = "chrome"
)

// Audit drivers accepted by audit.driver.
const (
	AuditNone     = "none"
	AuditPostgres = "postgres"
	AuditRedis    = "redis"
)

// Config holds every setting of the service. It is loaded once at startup
// and treated as read-only afterwards.
type Config struct {
	Server struct {
		Host        string `yaml:"host"`
		Port        string `yaml:"port"`
		Prefork     bool   `yaml:"prefork"`
		Concurrency int    `yaml:"concurrency"`
	} `yaml:"server"`

	Limits struct {
		MaxHTMLBytes int `yaml:"max_html_bytes"`
	} `yaml:"limits"`

	Logger struct {
		File       string `yaml:"file"`
		Level      string `yaml:"level"`
		MaxSizeMB  int    `yaml:"max_size_mb"`
		MaxBackups int    `yaml:"max_backups"`
		MaxAgeDays int    `yaml:"max_age_days"`
		Compress   bool   `yaml:"compress"`
	} `yaml:"logger"`

	Renderer RendererConfig `yaml:"renderer"`

	RateLimiter struct {
		UserLimit int           `yaml:"user_limit"`
		Interval  time.Duration `yaml:"interval"`
		RedisHost string        `yaml:"redis_host"`
		RedisDB   int           `yaml:"redis_db"`
	} `yaml:"rate_limiter"`

	Audit AuditConfig `yaml:"audit"`
}

// RendererConfig describes how the external renderer is invoked.
type RendererConfig struct {
	Engine          string   `yaml:"engine"`
	BinaryPath      string   `yaml:"binary_path"`
	XvfbRunPath     string   `yaml:"xvfb_run_path"`
	XvfbScreen      string   `yaml:"xvfb_screen"`
	DisableXvfb     bool     `yaml:"disable_xvfb"`
	ExtraArgs       []string `yaml:"extra_args"`
	TimeoutSecs     int      `yaml:"timeout_secs"`
	ScratchDir      string   `yaml:"scratch_dir"`
	ChromePath      string   `yaml:"chrome_path"`
	ChromeNoSandbox bool     `yaml:"chrome_no_sandbox"`
}

// Timeout returns the per-render time budget.
func (r RendererConfig) Timeout() time.Duration {
	return time.Duration(r.TimeoutSecs) * time.Second
}

// AuditConfig selects where conversion outcomes are recorded.
type AuditConfig struct {
	Driver   string         `yaml:"driver"`
	Postgres PostgresConfig `yaml:"postgres"`
	Redis    struct {
		Host   string `yaml:"host"`
		DB     int    `yaml:"db"`
		Key    string `yaml:"key"`
		MaxLen int64  `yaml:"max_len"`
	} `yaml:"redis"`
}

// PostgresConfig holds connection settings for the audit table.
type PostgresConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode"`
}

const defaultPostgresPort = 5432

// DSN renders the settings as a pgx connection URL. A host that already is
// a postgres:// URL is returned unchanged.
func (p PostgresConfig) DSN() (string, error) {
	if strings.HasPrefix(p.Host, "postgres://") || strings.HasPrefix(p.Host, "postgresql://") {
		return p.Host, nil
	}
	switch {
	case p.Host == "":
		return "", fmt.Errorf("audit.postgres.host is empty")
	case p.Database == "":
		return "", fmt.Errorf("audit.postgres.database is empty")
	case p.User == "":
		return "", fmt.Errorf("audit.postgres.user is empty")
	}

	addr := p.Host
	if _, _, err := net.SplitHostPort(addr); err != nil {
		port := p.Port
		if port == 0 {
			port = defaultPostgresPort
		}
		addr = net.JoinHostPort(strings.Trim(addr, "[]"), strconv.Itoa(port))
	}

	user := url.User(p.User)
	if p.Password != "" {
		user = url.UserPassword(p.User, p.Password)
	}
	dsn := url.URL{Scheme: "postgres", User: user, Host: addr, Path: "/" + p.Database}
	if p.SSLMode != "" {
		dsn.RawQuery = url.Values{"sslmode": {p.SSLMode}}.Encode()
	}
	return dsn.String(), nil
}

// Load reads the config from CONFIG_PATH or the default location.
func Load() Config {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = defaultConfigPath
	}
	return LoadFrom(path)
}

// LoadFrom reads, defaults and validates the config at path. Invalid
// configuration panics: the service cannot start without it.
func LoadFrom(path string) Config {
	data, err := os.ReadFile(path)
	if err != nil {
		panic(fmt.Sprintf("failed to read config %s: %v", path, err))
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		panic(fmt.Sprintf("failed to parse config %s: %v", path, err))
	}

	applyEnv(&cfg)
	applyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		panic(fmt.Sprintf("invalid config %s: %v", path, err))
	}
	return cfg
}

// applyEnv lets container images point at their own renderer binaries.
func applyEnv(cfg *Config) {
	if v := os.Getenv("RENDERER_BIN"); v != "" {
		cfg.Renderer.BinaryPath = v
	}
	if v := os.Getenv("XVFB_RUN_BIN"); v != "" {
		cfg.Renderer.XvfbRunPath = v
	}
	if cfg.Renderer.ChromePath == "" {
		cfg.Renderer.ChromePath = os.Getenv("CHROME_BIN")
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == "" {
		cfg.Server.Port = ":5000"
	}
	if cfg.Limits.MaxHTMLBytes == 0 {
		cfg.Limits.MaxHTMLBytes = 4 * 1024 * 1024
	}
	if cfg.Logger.Level == "" {
		cfg.Logger.Level = "info"
	}
	if cfg.Renderer.Engine == "" {
		cfg.Renderer.Engine = EngineWkhtmltopdf
	}
	if cfg.Renderer.BinaryPath == "" {
		cfg.Renderer.BinaryPath = "wkhtmltopdf"
	}
	if cfg.Renderer.XvfbRunPath == "" {
		cfg.Renderer.XvfbRunPath = "xvfb-run"
	}
	if cfg.Renderer.XvfbScreen == "" {
		cfg.Renderer.XvfbScreen = "0 1024x768x24"
	}
	if cfg.Renderer.TimeoutSecs == 0 {
		cfg.Renderer.TimeoutSecs = 60
	}
	if cfg.RateLimiter.Interval == 0 {
		cfg.RateLimiter.Interval = time.Minute
	}
	if cfg.Audit.Driver == "" {
		cfg.Audit.Driver = AuditNone
	}
	if cfg.Audit.Redis.Key == "" {
		cfg.Audit.Redis.Key = "pdfconvert:conversions"
	}
	if cfg.Audit.Redis.MaxLen == 0 {
		cfg.Audit.Redis.MaxLen = 1000
	}
}

// Validate rejects settings the service cannot run with.
func (c Config) Validate() error {
	if c.Renderer.TimeoutSecs <= 0 {
		return fmt.Errorf("renderer.timeout_secs must be positive")
	}
	switch c.Renderer.Engine {
	case EngineWkhtmltopdf, EngineChrome:
	default:
		return fmt.Errorf("unknown renderer.engine %q", c.Renderer.Engine)
	}
	if c.Limits.MaxHTMLBytes < 0 {
		return fmt.Errorf("limits.max_html_bytes must not be negative")
	}
	if c.RateLimiter.UserLimit < 0 {
		return fmt.Errorf("rate_limiter.user_limit must not be negative")
	}
	if c.RateLimiter.Interval <= 0 {
		return fmt.Errorf("rate_limiter.interval must be positive")
	}
	switch c.Audit.Driver {
	case AuditNone, AuditRedis:
	case AuditPostgres:
		if _, err := c.Audit.Postgres.DSN(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown audit.driver %q", c.Audit.Driver)
	}
	if c.Renderer.ScratchDir != "" {
		st, err := os.Stat(c.Renderer.ScratchDir)
		if err != nil {
			return fmt.Errorf("renderer.scratch_dir: %w", err)
		}
		if !st.IsDir() {
			return fmt.Errorf("renderer.scratch_dir %q is not a directory", c.Renderer.ScratchDir)
		}
	}
	return nil
}
