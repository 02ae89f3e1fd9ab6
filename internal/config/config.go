package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Evidence storage backends.
const (
	EvidenceBackendDatabase   = "db"
	EvidenceBackendCloudinary = "cloudinary"
	EvidenceBackendS3         = "s3"
)

// Config holds runtime configuration values for the API service.
type Config struct {
	AppName                string
	AppEnv                 string
	AppPort                string
	DatabaseURL            string
	RedisURL               string
	RedisChannel           string
	NATSURL                string
	JWTSecret              string
	SummaryCacheTTL        time.Duration
	EvidenceBackend        string
	CloudinaryCloudName    string
	CloudinaryAPIKey       string
	CloudinaryAPISecret    string
	CloudinaryUploadFolder string
	S3Region               string
	S3Bucket               string
	WriteRateLimit         int
	CORSOrigins            string
	LogLevel               string
	LogFile                string
}

// ConsoleConfig holds the instructor console settings.
type ConsoleConfig struct {
	APIURL        string
	Token         string
	PollInterval  time.Duration
	RetryInterval time.Duration
	ExportDir     string
	LogLevel      string
	LogFile       string
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

func newViper() *viper.Viper {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("GEMA")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("log.level", "info")
	return v
}

// Load reads API configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	v := newViper()

	v.SetDefault("app.name", "GEMA Exam API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("redis.channel", "gema:exams")
	v.SetDefault("summary.cache_ttl", "30s")
	v.SetDefault("evidence.backend", EvidenceBackendDatabase)
	v.SetDefault("cloudinary.folder", "gema/evidence")
	v.SetDefault("write_rate_limit", 30)
	v.SetDefault("cors.origins", "*")

	ttl, err := parseDuration(v.GetString("summary.cache_ttl"), 30*time.Second)
	if err != nil {
		return Config{}, fmt.Errorf("invalid summary cache ttl: %w", err)
	}

	cfg := Config{
		AppName:                v.GetString("app.name"),
		AppEnv:                 v.GetString("app.env"),
		AppPort:                v.GetString("app.port"),
		DatabaseURL:            v.GetString("database.url"),
		RedisURL:               v.GetString("redis.url"),
		RedisChannel:           v.GetString("redis.channel"),
		NATSURL:                v.GetString("nats.url"),
		JWTSecret:              v.GetString("jwt.secret"),
		SummaryCacheTTL:        ttl,
		EvidenceBackend:        strings.ToLower(strings.TrimSpace(v.GetString("evidence.backend"))),
		CloudinaryCloudName:    v.GetString("cloudinary.cloud_name"),
		CloudinaryAPIKey:       v.GetString("cloudinary.api_key"),
		CloudinaryAPISecret:    v.GetString("cloudinary.api_secret"),
		CloudinaryUploadFolder: v.GetString("cloudinary.folder"),
		S3Region:               v.GetString("s3.region"),
		S3Bucket:               v.GetString("s3.bucket"),
		WriteRateLimit:         v.GetInt("write_rate_limit"),
		CORSOrigins:            v.GetString("cors.origins"),
		LogLevel:               v.GetString("log.level"),
		LogFile:                v.GetString("log.file"),
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("jwt secret must be provided")
	}

	switch cfg.EvidenceBackend {
	case EvidenceBackendDatabase, EvidenceBackendCloudinary:
	case EvidenceBackendS3:
		if cfg.S3Bucket == "" || cfg.S3Region == "" {
			return Config{}, fmt.Errorf("s3 evidence backend requires bucket and region")
		}
	default:
		return Config{}, fmt.Errorf("unknown evidence backend %q", cfg.EvidenceBackend)
	}

	if cfg.WriteRateLimit <= 0 {
		cfg.WriteRateLimit = 30
	}

	return cfg, nil
}

// LoadConsole reads the instructor console settings.
func LoadConsole(flags *pflag.FlagSet) (ConsoleConfig, error) {
	v := newViper()
	if err := bindConsoleFlags(v, flags); err != nil {
		return ConsoleConfig{}, err
	}

	v.SetDefault("console.api_url", "http://localhost:8080")
	v.SetDefault("console.poll_interval", "3s")
	v.SetDefault("console.retry_interval", "5s")
	v.SetDefault("console.export_dir", ".")
	v.SetDefault("log.file", "gema-console.log")

	poll, err := parseDuration(v.GetString("console.poll_interval"), 3*time.Second)
	if err != nil {
		return ConsoleConfig{}, fmt.Errorf("invalid poll interval: %w", err)
	}

	retry, err := parseDuration(v.GetString("console.retry_interval"), 5*time.Second)
	if err != nil {
		return ConsoleConfig{}, fmt.Errorf("invalid retry interval: %w", err)
	}

	cfg := ConsoleConfig{
		APIURL:        strings.TrimRight(v.GetString("console.api_url"), "/"),
		Token:         v.GetString("console.token"),
		PollInterval:  poll,
		RetryInterval: retry,
		ExportDir:     v.GetString("console.export_dir"),
		LogLevel:      v.GetString("log.level"),
		LogFile:       v.GetString("log.file"),
	}

	if cfg.APIURL == "" {
		return ConsoleConfig{}, fmt.Errorf("console api url must be provided")
	}

	return cfg, nil
}

// consoleFlagKeys maps console flags to the viper keys they override.
var consoleFlagKeys = map[string]string{
	"api-url":    "console.api_url",
	"token":      "console.token",
	"poll":       "console.poll_interval",
	"export-dir": "console.export_dir",
	"log-level":  "log.level",
	"log-file":   "log.file",
}

// bindConsoleFlags binds the flags present in flags. Viper only prefers a
// bound flag over the environment and defaults when it was set explicitly.
func bindConsoleFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	if flags == nil {
		return nil
	}
	for name, key := range consoleFlagKeys {
		flag := flags.Lookup(name)
		if flag == nil {
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return fmt.Errorf("bind flag %s: %w", name, err)
		}
	}
	return nil
}

func parseDuration(raw string, fallback time.Duration) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback, nil
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return fallback, nil
	}
	return d, nil
}
