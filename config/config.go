package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds every runtime setting of the backend and the studio client.
type Config struct {
	Server   ServerConfig
	Gemini   GeminiConfig
	Fal      FalConfig
	Redis    RedisConfig
	MinIO    MinIOConfig
	GCS      GCSConfig
	Database DatabaseConfig
	Scraper  ScraperConfig
	Studio   StudioConfig
}

type ServerConfig struct {
	Port             int
	Debug            bool
	AllowedOrigins   []string
	AnalysisCacheTTL time.Duration
	DownloadTimeout  time.Duration
}

type GeminiConfig struct {
	LambdaURL    string
	LambdaSecret string
	Model        string
	APIKey       string
	Timeout      time.Duration
	Retries      int
}

type FalConfig struct {
	Key           string
	Model         string
	BaseURL       string
	PollInterval  time.Duration
	RatePerMinute int
	Duration      int
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	PublicURL string
}

// Enabled reports whether all mandatory MinIO settings are present.
func (c MinIOConfig) Enabled() bool {
	return c.Endpoint != "" && c.AccessKey != "" && c.SecretKey != "" && c.Bucket != ""
}

type GCSConfig struct {
	Bucket string
}

type DatabaseConfig struct {
	DSN       string
	Driver    string
	Retention time.Duration
	SweepSpec string
}

type ScraperConfig struct {
	UserAgent   string
	MaxPageText int
	Timeout     time.Duration
}

// StudioConfig configures the client side. An empty BaseURL means same-origin relative paths.
type StudioConfig struct {
	BaseURL string
}

const (
	DefaultGeminiLambdaURL = "https://trdj86n9c9.execute-api.ap-northeast-1.amazonaws.com/default/callGeminiAPI"
	DefaultUserAgent       = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", 5001)
	v.SetDefault("debug", false)
	v.SetDefault("allowed_origins", "*")
	v.SetDefault("analysis_cache_ttl", "30m")
	v.SetDefault("download_timeout", "60s")

	v.SetDefault("gemini_lambda_url", DefaultGeminiLambdaURL)
	v.SetDefault("gemini_model", "gemini-2.5-flash")
	v.SetDefault("gemini_timeout", "60s")
	v.SetDefault("gemini_retries", 3)

	v.SetDefault("fal_model", "fal-ai/sora-2/image-to-video")
	v.SetDefault("fal_base_url", "https://queue.fal.run")
	v.SetDefault("fal_poll_interval", "5s")
	v.SetDefault("fal_rate_per_minute", 10)
	v.SetDefault("video_duration", 12)

	v.SetDefault("redis_addr", "localhost:6379")
	v.SetDefault("redis_db", 0)

	v.SetDefault("minio_use_ssl", false)

	v.SetDefault("history_retention", "720h")
	v.SetDefault("history_sweep_spec", "@every 1h")

	v.SetDefault("user_agent", DefaultUserAgent)
	v.SetDefault("max_page_text", 30000)
	v.SetDefault("scrape_timeout", "10s")
}

// LoadConfig reads .env, an optional YAML file named by PMAX_CONFIG and the process environment.
// Environment variables always win over file values.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	if path := strings.TrimSpace(os.Getenv("PMAX_CONFIG")); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !os.IsNotExist(err) {
				return nil, fmt.Errorf("config: read %s: %w", path, err)
			}
		}
	}

	cfg := fromViper(v)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func fromViper(v *viper.Viper) *Config {
	return &Config{
		Server: ServerConfig{
			Port:             v.GetInt("port"),
			Debug:            v.GetBool("debug"),
			AllowedOrigins:   splitList(v.GetString("allowed_origins")),
			AnalysisCacheTTL: v.GetDuration("analysis_cache_ttl"),
			DownloadTimeout:  v.GetDuration("download_timeout"),
		},
		Gemini: GeminiConfig{
			LambdaURL:    strings.TrimSpace(v.GetString("gemini_lambda_url")),
			LambdaSecret: strings.TrimSpace(v.GetString("lambda_secret_key")),
			Model:        strings.TrimSpace(v.GetString("gemini_model")),
			APIKey:       strings.TrimSpace(v.GetString("gemini_api_key")),
			Timeout:      v.GetDuration("gemini_timeout"),
			Retries:      v.GetInt("gemini_retries"),
		},
		Fal: FalConfig{
			Key:           strings.TrimSpace(v.GetString("fal_key")),
			Model:         strings.Trim(strings.TrimSpace(v.GetString("fal_model")), "/"),
			BaseURL:       strings.TrimRight(strings.TrimSpace(v.GetString("fal_base_url")), "/"),
			PollInterval:  v.GetDuration("fal_poll_interval"),
			RatePerMinute: v.GetInt("fal_rate_per_minute"),
			Duration:      v.GetInt("video_duration"),
		},
		Redis: RedisConfig{
			Addr:     strings.TrimSpace(v.GetString("redis_addr")),
			Password: v.GetString("redis_password"),
			DB:       v.GetInt("redis_db"),
		},
		MinIO: MinIOConfig{
			Endpoint:  strings.TrimSpace(v.GetString("minio_endpoint")),
			AccessKey: strings.TrimSpace(v.GetString("minio_access_key")),
			SecretKey: strings.TrimSpace(v.GetString("minio_secret_key")),
			Bucket:    strings.TrimSpace(v.GetString("minio_bucket")),
			UseSSL:    v.GetBool("minio_use_ssl"),
			PublicURL: strings.TrimSpace(v.GetString("minio_public_url")),
		},
		GCS: GCSConfig{
			Bucket: strings.TrimSpace(v.GetString("gcs_bucket")),
		},
		Database: DatabaseConfig{
			DSN:       strings.TrimSpace(v.GetString("database_dsn")),
			Driver:    strings.TrimSpace(v.GetString("database_driver")),
			Retention: v.GetDuration("history_retention"),
			SweepSpec: strings.TrimSpace(v.GetString("history_sweep_spec")),
		},
		Scraper: ScraperConfig{
			UserAgent:   v.GetString("user_agent"),
			MaxPageText: v.GetInt("max_page_text"),
			Timeout:     v.GetDuration("scrape_timeout"),
		},
		Studio: StudioConfig{
			BaseURL: strings.TrimRight(strings.TrimSpace(v.GetString("pmax_api_base_url")), "/"),
		},
	}
}

// Validate checks values that would otherwise fail late at request time.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("config: invalid port %d", c.Server.Port)
	}
	if c.Fal.Duration != 4 && c.Fal.Duration != 8 && c.Fal.Duration != 12 {
		return fmt.Errorf("config: video duration must be 4, 8 or 12 seconds, got %d", c.Fal.Duration)
	}
	if c.Gemini.Retries < 1 {
		c.Gemini.Retries = 1
	}
	if c.Scraper.MaxPageText <= 0 {
		return fmt.Errorf("config: max page text must be positive, got %d", c.Scraper.MaxPageText)
	}
	if base := c.Studio.BaseURL; base != "" && !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		return fmt.Errorf("config: invalid api base url %q", base)
	}
	return nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
