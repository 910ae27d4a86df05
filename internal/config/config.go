package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the scheduler binaries.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Queue      QueueConfig      `yaml:"queue"`
	Scheduler  SchedulerConfig  `yaml:"scheduler"`
	Publishing PublishingConfig `yaml:"publishing"`
	Proxy      ProxyConfig      `yaml:"proxy"`
	Storage    StorageConfig    `yaml:"storage"`
	LogLevel   string           `yaml:"log_level"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port           int      `yaml:"port"`
	Host           string   `yaml:"host"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// GetHost returns the server host, with container detection
func (c ServerConfig) GetHost() string {
	// In a container, listen on all interfaces
	if os.Getenv("ECS_CONTAINER_METADATA_URI") != "" || os.Getenv("KUBERNETES_SERVICE_HOST") != "" {
		return "0.0.0.0"
	}
	if host := os.Getenv("SERVER_HOST"); host != "" {
		return host
	}
	return c.Host
}

// DatabaseConfig holds PostgreSQL connection settings
type DatabaseConfig struct {
	URL             string `yaml:"url"`
	MaxOpenConns    int    `yaml:"max_open_conns"`
	MaxIdleConns    int    `yaml:"max_idle_conns"`
	ConnMaxLifetime int    `yaml:"conn_max_lifetime_seconds"`
}

// ConnLifetime returns the max connection lifetime as a duration
func (c DatabaseConfig) ConnLifetime() time.Duration {
	return time.Duration(c.ConnMaxLifetime) * time.Second
}

// RedisConfig holds Redis settings. An empty Addr disables Redis: locks
// fall back to PostgreSQL advisory locks and the proxy breaker is off.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// Enabled reports whether a Redis address is configured
func (c RedisConfig) Enabled() bool { return c.Addr != "" }

// QueueConfig selects how publish tasks reach the publish worker
type QueueConfig struct {
	Driver      string `yaml:"driver"` // "memory" or "amqp"
	URL         string `yaml:"url"`
	Name        string `yaml:"name"`
	Concurrency int    `yaml:"concurrency"`
	// Backlog is how many in-process tasks may wait for a free slot before
	// Dispatch reports the pool busy.
	Backlog int `yaml:"backlog"`
}

// SchedulerConfig holds the campaign scheduler loop settings
type SchedulerConfig struct {
	Enabled               bool `yaml:"enabled"`
	PollIntervalSeconds   int  `yaml:"poll_interval_seconds"`
	StuckThresholdSeconds int  `yaml:"stuck_threshold_seconds"`
	LockTTLSeconds        int  `yaml:"lock_ttl_seconds"`
	CampaignsPerTick      int  `yaml:"campaigns_per_tick"`
}

// PollInterval returns the scheduler tick as a duration
func (c SchedulerConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSeconds) * time.Second
}

// StuckThreshold returns how long an item may stay scheduled before recovery
func (c SchedulerConfig) StuckThreshold() time.Duration {
	return time.Duration(c.StuckThresholdSeconds) * time.Second
}

// LockTTL returns the per-campaign lock TTL as a duration
func (c SchedulerConfig) LockTTL() time.Duration {
	return time.Duration(c.LockTTLSeconds) * time.Second
}

// PublishingConfig holds platform endpoints and protocol pacing
type PublishingConfig struct {
	GraphBaseURL          string `yaml:"graph_base_url"`
	YouTubeUploadURL      string `yaml:"youtube_upload_url"`
	TikTokBaseURL         string `yaml:"tiktok_base_url"`
	TikTokPrivacyLevel    string `yaml:"tiktok_privacy_level"`
	TimeoutSeconds        int    `yaml:"timeout_seconds"`
	TaskTimeoutSeconds    int    `yaml:"task_timeout_seconds"`
	InstagramPollSeconds  int    `yaml:"instagram_poll_seconds"`
	InstagramPollAttempts int    `yaml:"instagram_poll_attempts"`
	TikTokPollSeconds     int    `yaml:"tiktok_poll_seconds"`
	TikTokPollAttempts    int    `yaml:"tiktok_poll_attempts"`
	DownloadMaxRetries    int    `yaml:"download_max_retries"`
	DirectFallback        *bool  `yaml:"direct_fallback"`
	RedactSecretsInLogs   *bool  `yaml:"redact_secrets_in_logs"`
}

// Timeout returns the per-request HTTP timeout
func (c PublishingConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// TaskTimeout returns the time budget of one publish task
func (c PublishingConfig) TaskTimeout() time.Duration {
	return time.Duration(c.TaskTimeoutSeconds) * time.Second
}

// InstagramPoll returns the container status poll interval
func (c PublishingConfig) InstagramPoll() time.Duration {
	return time.Duration(c.InstagramPollSeconds) * time.Second
}

// TikTokPoll returns the publish status poll interval
func (c PublishingConfig) TikTokPoll() time.Duration {
	return time.Duration(c.TikTokPollSeconds) * time.Second
}

// UseDirectFallback reports whether a failed proxied post is retried directly
func (c PublishingConfig) UseDirectFallback() bool {
	return c.DirectFallback == nil || *c.DirectFallback
}

// ProxyConfig holds the per-user proxy failure breaker settings
type ProxyConfig struct {
	StopThreshold        int `yaml:"stop_threshold"`
	FailureWindowMinutes int `yaml:"failure_window_minutes"`
}

// FailureWindow returns the breaker counting window
func (c ProxyConfig) FailureWindow() time.Duration {
	return time.Duration(c.FailureWindowMinutes) * time.Minute
}

// StorageConfig holds object storage settings for s3:// media
type StorageConfig struct {
	AWSRegion   string `yaml:"aws_region"`
	AWSProfile  string `yaml:"aws_profile"` // Empty string uses default credential chain
	AccessKeyID string `yaml:"access_key_id"`
	SecretKey   string `yaml:"secret_access_key"`
	Endpoint    string `yaml:"endpoint"`
	MaxMediaMB  int    `yaml:"max_media_mb"`
}

// GetAWSProfile returns the AWS profile, with environment variable override
func (c StorageConfig) GetAWSProfile() string {
	if envProfile := os.Getenv("AWS_PROFILE_OVERRIDE"); envProfile != "" {
		if envProfile == "none" || envProfile == "iam" {
			return ""
		}
		return envProfile
	}
	if os.Getenv("ECS_CONTAINER_METADATA_URI") != "" || os.Getenv("AWS_EXECUTION_ENV") != "" {
		return ""
	}
	return c.AWSProfile
}

// MaxMediaBytes returns the object size cap in bytes
func (c StorageConfig) MaxMediaBytes() int64 {
	return int64(c.MaxMediaMB) << 20
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return &cfg, nil
}

// Default returns a configuration with every default applied, for running
// without a config file.
func Default() *Config {
	cfg := &Config{Scheduler: SchedulerConfig{Enabled: true}}
	cfg.applyDefaults()
	return cfg
}

func (cfg *Config) applyDefaults() {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 20
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 300
	}
	if cfg.Queue.Driver == "" {
		cfg.Queue.Driver = "memory"
	}
	if cfg.Queue.Name == "" {
		cfg.Queue.Name = "social_publish_tasks"
	}
	if cfg.Queue.Concurrency == 0 {
		cfg.Queue.Concurrency = 4
	}
	if cfg.Queue.Backlog == 0 {
		cfg.Queue.Backlog = 64
	}
	if cfg.Scheduler.PollIntervalSeconds == 0 {
		cfg.Scheduler.PollIntervalSeconds = 60
	}
	if cfg.Scheduler.StuckThresholdSeconds == 0 {
		cfg.Scheduler.StuckThresholdSeconds = 120
	}
	if cfg.Scheduler.LockTTLSeconds == 0 {
		cfg.Scheduler.LockTTLSeconds = 120
	}
	if cfg.Scheduler.CampaignsPerTick == 0 {
		cfg.Scheduler.CampaignsPerTick = 500
	}
	p := &cfg.Publishing
	if p.GraphBaseURL == "" {
		p.GraphBaseURL = "https://graph.facebook.com/v19.0"
	}
	if p.YouTubeUploadURL == "" {
		p.YouTubeUploadURL = "https://www.googleapis.com/upload/youtube/v3/videos"
	}
	if p.TikTokBaseURL == "" {
		p.TikTokBaseURL = "https://open.tiktokapis.com/v2"
	}
	if p.TikTokPrivacyLevel == "" {
		p.TikTokPrivacyLevel = "PUBLIC_TO_EVERYONE"
	}
	if p.TimeoutSeconds == 0 {
		p.TimeoutSeconds = 60
	}
	if p.TaskTimeoutSeconds == 0 {
		p.TaskTimeoutSeconds = 600
	}
	if p.InstagramPollSeconds == 0 {
		p.InstagramPollSeconds = 5
	}
	if p.InstagramPollAttempts == 0 {
		p.InstagramPollAttempts = 30
	}
	if p.TikTokPollSeconds == 0 {
		p.TikTokPollSeconds = 3
	}
	if p.TikTokPollAttempts == 0 {
		p.TikTokPollAttempts = 30
	}
	if p.DownloadMaxRetries == 0 {
		p.DownloadMaxRetries = 3
	}
	if cfg.Proxy.StopThreshold == 0 {
		cfg.Proxy.StopThreshold = 3
	}
	if cfg.Proxy.FailureWindowMinutes == 0 {
		cfg.Proxy.FailureWindowMinutes = 15
	}
	if cfg.Storage.AWSRegion == "" {
		cfg.Storage.AWSRegion = "us-east-1"
	}
	if cfg.Storage.MaxMediaMB == 0 {
		cfg.Storage.MaxMediaMB = 512
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
}

// LoadFromEnv loads configuration with environment variable overrides.
// It automatically loads a .env file (if present) before reading env vars,
// so secrets can live in .env locally and in real env vars in deployment.
// An empty path starts from Default.
func LoadFromEnv(path string) (*Config, error) {
	// Load .env file if it exists (no error if missing)
	_ = godotenv.Load()

	cfg := Default()
	if path != "" {
		var err error
		if cfg, err = Load(path); err != nil {
			return nil, err
		}
	}

	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("QUEUE_DRIVER"); v != "" {
		cfg.Queue.Driver = v
	}
	if v := os.Getenv("AMQP_URL"); v != "" {
		cfg.Queue.URL = v
	}
	if n, ok := envInt("QUEUE_CONCURRENCY"); ok {
		cfg.Queue.Concurrency = n
	}
	if n, ok := envInt("QUEUE_BACKLOG"); ok {
		cfg.Queue.Backlog = n
	}
	if n, ok := envInt("SCHEDULER_POLL_SECONDS"); ok {
		cfg.Scheduler.PollIntervalSeconds = n
	}
	if v := os.Getenv("SCHEDULER_ENABLED"); v != "" {
		cfg.Scheduler.Enabled = v == "true" || v == "1"
	}
	if v := os.Getenv("GRAPH_BASE_URL"); v != "" {
		cfg.Publishing.GraphBaseURL = v
	}
	if v := os.Getenv("TIKTOK_PRIVACY_LEVEL"); v != "" {
		cfg.Publishing.TikTokPrivacyLevel = v
	}
	if v := os.Getenv("PROXY_DIRECT_FALLBACK"); v != "" {
		b := v == "true" || v == "1"
		cfg.Publishing.DirectFallback = &b
	}
	if v := os.Getenv("AWS_REGION"); v != "" {
		cfg.Storage.AWSRegion = v
	}
	if v := os.Getenv("S3_ENDPOINT"); v != "" {
		cfg.Storage.Endpoint = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if n, ok := envInt("PORT"); ok {
		cfg.Server.Port = n
	}

	return cfg, nil
}

func envInt(key string) (int, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}
