package config

import (
	"fmt"
	"time"
)

type Config struct {
	Archive       ArchiveConfig       `yaml:"archive"`
	HTTP          HttpConfig          `yaml:"http"`
	Backoff       BackoffConfig       `yaml:"backoff"`
	RateLimit     RateLimitConfig     `yaml:"rate_limit"`
	Robots        RobotsConfig        `yaml:"robots"`
	Rod           RodConfig           `yaml:"rod"`
	Pipeline      PipelineConfig      `yaml:"pipeline"`
	Extract       ExtractConfig       `yaml:"extract"`
	Server        ServerConfig        `yaml:"server"`
	SourcesFile   string              `yaml:"sources_file"`
	Storage       StorageConfig       `yaml:"storage"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ArchiveConfig describes the snapshot-availability service.
// SnapshotPrefixes are the URL prefixes after which the timestep segment starts.
type ArchiveConfig struct {
	AvailabilityURL  string   `yaml:"availability_url"`
	SnapshotPrefixes []string `yaml:"snapshot_prefixes"`
}

type HttpConfig struct {
	UserAgent                 string `yaml:"user_agent"`
	ConnectTimeoutMS          int    `yaml:"connect_timeout_ms"`
	TotalTimeoutMS            int    `yaml:"total_timeout_ms"`
	MaxRetries                int    `yaml:"max_retries"`
	MaxIdleConnections        int    `yaml:"max_idle_connections"`
	MaxIdleConnectionsPerHost int    `yaml:"max_idle_connections_per_host"`
	IdleConnectionTimeoutS    int    `yaml:"idle_connection_timeout_s"`
	AcceptLanguage            string `yaml:"accept_language"`
}

type BackoffConfig struct {
	MinMS     int `yaml:"min_ms"`
	MaxMS     int `yaml:"max_ms"`
	JitterPct int `yaml:"jitter_pct"`
}

type RateLimitConfig struct {
	MaxConcurrentPerHost int `yaml:"max_concurrent_per_host"`
	RPM                  int `yaml:"rpm"`
}

type RobotsConfig struct {
	Enabled       bool `yaml:"enabled"`
	CacheTTLHours int  `yaml:"cache_ttl_hours"`
}

type RodConfig struct {
	Enabled          bool   `yaml:"enabled"`
	ChromePath       string `yaml:"chrome_path"`
	PageTimeoutS     int    `yaml:"page_timeout_s"`
	WaitLoadTimeoutS int    `yaml:"wait_load_timeout_s"`
}

type PipelineConfig struct {
	Workers          int `yaml:"workers"`
	SourceTimeoutMS  int `yaml:"source_timeout_ms"`
	RequestTimeoutMS int `yaml:"request_timeout_ms"`
}

type ExtractConfig struct {
	TrimNBSP       bool `yaml:"trim_nbsp"`
	CollapseSpaces bool `yaml:"collapse_spaces"`
}

type ServerConfig struct {
	ListenAddr        string `yaml:"listen_addr"`
	Mode              string `yaml:"mode"`
	ProxySecretHeader string `yaml:"proxy_secret_header"`
	ShutdownTimeoutS  int    `yaml:"shutdown_timeout_s"`

	// ProxySecret only comes from the environment.
	ProxySecret string `yaml:"-"`
}

type StorageConfig struct {
	Enabled          bool   `yaml:"enabled"`
	Driver           string `yaml:"driver"`
	DSN              string `yaml:"dsn"`
	CommandTimeoutMS int    `yaml:"command_timeout_ms"`
}

type ObservabilityConfig struct {
	LogPath       string `yaml:"log_path"`
	LogLevel      string `yaml:"log_level"`
	LogMaxSizeMB  int    `yaml:"log_max_size_mb"`
	LogMaxBackups int    `yaml:"log_max_backups"`
	LogMaxAgeDays int    `yaml:"log_max_age_days"`
	LogCompress   bool   `yaml:"log_compress"`
	MetricsPath   string `yaml:"metrics_path"`
}

// Default returns a configuration that works without a config file.
func Default() *Config {
	return &Config{
		Archive: ArchiveConfig{
			AvailabilityURL: "https://archive.org/wayback/available",
			SnapshotPrefixes: []string{
				"http://web.archive.org/web/",
				"https://web.archive.org/web/",
			},
		},
		HTTP: HttpConfig{
			UserAgent:                 "wayback-news/1.0 (+https://github.com/wayback-news)",
			ConnectTimeoutMS:          5000,
			TotalTimeoutMS:            30000,
			MaxRetries:                1,
			MaxIdleConnections:        100,
			MaxIdleConnectionsPerHost: 10,
			IdleConnectionTimeoutS:    90,
			AcceptLanguage:            "en-US,en;q=0.9",
		},
		Backoff: BackoffConfig{
			MinMS:     250,
			MaxMS:     2000,
			JitterPct: 20,
		},
		RateLimit: RateLimitConfig{
			MaxConcurrentPerHost: 4,
			RPM:                  60,
		},
		Robots: RobotsConfig{
			CacheTTLHours: 12,
		},
		Rod: RodConfig{
			PageTimeoutS:     45,
			WaitLoadTimeoutS: 30,
		},
		Pipeline: PipelineConfig{
			Workers:          4,
			SourceTimeoutMS:  60000,
			RequestTimeoutMS: 120000,
		},
		Server: ServerConfig{
			ListenAddr:        ":8080",
			Mode:              "release",
			ProxySecretHeader: "X-RapidAPI-Proxy-Secret",
			ShutdownTimeoutS:  15,
		},
		Storage: StorageConfig{
			Driver:           "mssql",
			CommandTimeoutMS: 5000,
		},
		Observability: ObservabilityConfig{
			LogLevel:      "info",
			LogMaxSizeMB:  100,
			LogMaxBackups: 5,
			LogMaxAgeDays: 14,
			MetricsPath:   "/metrics",
		},
	}
}

// Validation
func (c *Config) Validate() error {
	if c.Archive.AvailabilityURL == "" {
		return fmt.Errorf("archive.availability_url is required")
	}
	if len(c.Archive.SnapshotPrefixes) == 0 {
		return fmt.Errorf("archive.snapshot_prefixes must not be empty")
	}
	if c.HTTP.UserAgent == "" {
		return fmt.Errorf("http.user_agent is required")
	}
	if c.HTTP.ConnectTimeoutMS <= 0 {
		return fmt.Errorf("http.connect_timeout_ms must be > 0")
	}
	if c.HTTP.TotalTimeoutMS <= 0 {
		return fmt.Errorf("http.total_timeout_ms must be > 0")
	}
	if c.HTTP.MaxRetries < 0 {
		return fmt.Errorf("http.max_retries must be >= 0")
	}
	if c.RateLimit.MaxConcurrentPerHost <= 0 {
		return fmt.Errorf("rate_limit.max_concurrent_per_host must be > 0")
	}
	if c.RateLimit.RPM <= 0 {
		return fmt.Errorf("rate_limit.rpm must be > 0")
	}
	if c.Backoff.MinMS <= 0 {
		return fmt.Errorf("backoff.min_ms must be > 0")
	}
	if c.Backoff.MaxMS <= 0 {
		return fmt.Errorf("backoff.max_ms must be > 0")
	}
	if c.Backoff.MinMS > c.Backoff.MaxMS {
		return fmt.Errorf("backoff.min_ms must be <= backoff.max_ms")
	}
	if c.Backoff.JitterPct < 0 || c.Backoff.JitterPct > 100 {
		return fmt.Errorf("backoff.jitter_pct must be between 0 and 100")
	}
	if c.Robots.Enabled && c.Robots.CacheTTLHours <= 0 {
		return fmt.Errorf("robots.cache_ttl_hours must be > 0 when robots.enabled is true")
	}
	if c.Pipeline.Workers <= 0 {
		return fmt.Errorf("pipeline.workers must be > 0")
	}
	if c.Pipeline.SourceTimeoutMS <= 0 {
		return fmt.Errorf("pipeline.source_timeout_ms must be > 0")
	}
	if c.Pipeline.RequestTimeoutMS <= 0 {
		return fmt.Errorf("pipeline.request_timeout_ms must be > 0")
	}
	if c.Server.ListenAddr == "" {
		return fmt.Errorf("server.listen_addr is required")
	}
	if c.Server.Mode != "debug" && c.Server.Mode != "release" && c.Server.Mode != "test" {
		return fmt.Errorf("server.mode must be 'debug', 'release' or 'test'")
	}
	if c.Server.ProxySecretHeader == "" {
		return fmt.Errorf("server.proxy_secret_header is required")
	}
	if c.Storage.Enabled {
		if c.Storage.Driver != "mssql" {
			return fmt.Errorf("storage.driver must be 'mssql'")
		}
		if c.Storage.DSN == "" {
			return fmt.Errorf("storage.dsn is required when storage.enabled is true")
		}
		if c.Storage.CommandTimeoutMS <= 0 {
			return fmt.Errorf("storage.command_timeout_ms must be > 0")
		}
	}
	if c.Observability.LogLevel == "" {
		return fmt.Errorf("observability.log_level is required")
	}
	if c.Observability.MetricsPath == "" || c.Observability.MetricsPath[0] != '/' {
		return fmt.Errorf("observability.metrics_path must start with '/'")
	}
	if c.Rod.Enabled {
		if c.Rod.ChromePath == "" {
			return fmt.Errorf("rod.chrome_path is required when rod.enabled is true")
		}
		if c.Rod.PageTimeoutS <= 0 {
			return fmt.Errorf("rod.page_timeout_s must be > 0")
		}
		if c.Rod.WaitLoadTimeoutS <= 0 {
			return fmt.Errorf("rod.wait_load_timeout_s must be > 0")
		}
	}
	return nil
}

// Getters
func (c *Config) GetConnectTimeout() time.Duration {
	return time.Duration(c.HTTP.ConnectTimeoutMS) * time.Millisecond
}

func (c *Config) GetTotalTimeout() time.Duration {
	return time.Duration(c.HTTP.TotalTimeoutMS) * time.Millisecond
}

func (c *Config) GetIdleConnectionTimeout() time.Duration {
	return time.Duration(c.HTTP.IdleConnectionTimeoutS) * time.Second
}

func (c *Config) GetBackoffMin() time.Duration {
	return time.Duration(c.Backoff.MinMS) * time.Millisecond
}

func (c *Config) GetBackoffMax() time.Duration {
	return time.Duration(c.Backoff.MaxMS) * time.Millisecond
}

func (c *Config) GetRobotsCacheTTL() time.Duration {
	return time.Duration(c.Robots.CacheTTLHours) * time.Hour
}

func (c *Config) GetSourceTimeout() time.Duration {
	return time.Duration(c.Pipeline.SourceTimeoutMS) * time.Millisecond
}

func (c *Config) GetRequestTimeout() time.Duration {
	return time.Duration(c.Pipeline.RequestTimeoutMS) * time.Millisecond
}

func (c *Config) GetShutdownTimeout() time.Duration {
	return time.Duration(c.Server.ShutdownTimeoutS) * time.Second
}

func (c *Config) GetCommandTimeout() time.Duration {
	return time.Duration(c.Storage.CommandTimeoutMS) * time.Millisecond
}

func (c *Config) GetRodPageTimeout() time.Duration {
	return time.Duration(c.Rod.PageTimeoutS) * time.Second
}

func (c *Config) GetRodWaitLoadTimeout() time.Duration {
	return time.Duration(c.Rod.WaitLoadTimeoutS) * time.Second
}
