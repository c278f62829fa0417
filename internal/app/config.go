package app

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/yungbote/slidedeck-backend/internal/platform/envutil"
)

var defaultMaterialExtensions = []string{".png", ".jpg", ".jpeg", ".gif", ".webp", ".bmp", ".svg"}

type Config struct {
	HTTPAddr       string   `yaml:"http_addr"`
	UploadFolder   string   `yaml:"upload_folder"`
	PublicBaseURL  string   `yaml:"public_base_url"`
	MaxUploadBytes int64    `yaml:"max_upload_bytes"`
	AllowedOrigins []string `yaml:"allowed_origins"`

	AllowedMaterialExtensions []string `yaml:"allowed_material_extensions"`

	DBDriver   string         `yaml:"db_driver"`
	SQLitePath string         `yaml:"sqlite_path"`
	Postgres   PostgresConfig `yaml:"postgres"`

	Redis RedisConfig `yaml:"redis"`

	LogMode string `yaml:"log_mode"`
	LogFile string `yaml:"log_file"`

	Otel OtelConfig `yaml:"otel"`
}

type PostgresConfig struct {
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	SSLMode  string `yaml:"sslmode"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Channel  string `yaml:"channel"`
}

type OtelConfig struct {
	Enabled     bool    `yaml:"enabled"`
	ServiceName string  `yaml:"service_name"`
	Environment string  `yaml:"environment"`
	Endpoint    string  `yaml:"endpoint"`
	Headers     string  `yaml:"headers"`
	Insecure    bool    `yaml:"insecure"`
	SampleRatio float64 `yaml:"sample_ratio"`
}

func defaultConfig() Config {
	return Config{
		HTTPAddr:                  ":8080",
		UploadFolder:              "uploads",
		MaxUploadBytes:            32 << 20,
		AllowedMaterialExtensions: append([]string(nil), defaultMaterialExtensions...),
		DBDriver:                  "postgres",
		SQLitePath:                "data/slidedeck.db",
		Postgres: PostgresConfig{
			Host:    "localhost",
			Port:    "5432",
			User:    "postgres",
			Name:    "slidedeck",
			SSLMode: "disable",
		},
		LogMode: "development",
		Otel: OtelConfig{
			ServiceName: "slidedeck-backend",
			SampleRatio: 1,
		},
	}
}

// LoadConfig builds the config from defaults, then the optional YAML file named
// by CONFIG_FILE, then environment variables.
func LoadConfig() (Config, error) {
	cfg := defaultConfig()
	if path := envutil.String("CONFIG_FILE", ""); path != "" {
		if err := loadConfigFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}
	applyEnv(&cfg)
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadConfigFile(path string, cfg *Config) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	cfg.HTTPAddr = envutil.String("HTTP_ADDR", cfg.HTTPAddr)
	if port := envutil.String("PORT", ""); port != "" {
		cfg.HTTPAddr = ":" + port
	}
	cfg.UploadFolder = envutil.String("UPLOAD_FOLDER", cfg.UploadFolder)
	cfg.PublicBaseURL = envutil.String("PUBLIC_BASE_URL", cfg.PublicBaseURL)
	cfg.MaxUploadBytes = envutil.Int64("MAX_UPLOAD_BYTES", cfg.MaxUploadBytes)
	cfg.AllowedOrigins = envutil.List("ALLOWED_ORIGINS", cfg.AllowedOrigins)
	cfg.AllowedMaterialExtensions = envutil.List("ALLOWED_MATERIAL_EXTENSIONS", cfg.AllowedMaterialExtensions)

	cfg.DBDriver = strings.ToLower(envutil.String("DB_DRIVER", cfg.DBDriver))
	cfg.SQLitePath = envutil.String("SQLITE_PATH", cfg.SQLitePath)
	cfg.Postgres.Host = envutil.String("POSTGRES_HOST", cfg.Postgres.Host)
	cfg.Postgres.Port = envutil.String("POSTGRES_PORT", cfg.Postgres.Port)
	cfg.Postgres.User = envutil.String("POSTGRES_USER", cfg.Postgres.User)
	cfg.Postgres.Password = envutil.String("POSTGRES_PASSWORD", cfg.Postgres.Password)
	cfg.Postgres.Name = envutil.String("POSTGRES_NAME", cfg.Postgres.Name)
	cfg.Postgres.SSLMode = envutil.String("POSTGRES_SSLMODE", cfg.Postgres.SSLMode)

	cfg.Redis.Addr = envutil.String("REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = envutil.String("REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Redis.DB = envutil.Int("REDIS_DB", cfg.Redis.DB)
	cfg.Redis.Channel = envutil.String("ASSET_EVENTS_CHANNEL", cfg.Redis.Channel)

	cfg.LogMode = envutil.String("LOG_MODE", cfg.LogMode)
	cfg.LogFile = envutil.String("LOG_FILE", cfg.LogFile)

	cfg.Otel.Enabled = envutil.Bool("OTEL_ENABLED", cfg.Otel.Enabled)
	cfg.Otel.ServiceName = envutil.String("OTEL_SERVICE_NAME", cfg.Otel.ServiceName)
	cfg.Otel.Environment = envutil.String("OTEL_ENVIRONMENT", cfg.Otel.Environment)
	cfg.Otel.Endpoint = envutil.String("OTEL_EXPORTER_OTLP_ENDPOINT", cfg.Otel.Endpoint)
	cfg.Otel.Headers = envutil.String("OTEL_EXPORTER_OTLP_HEADERS", cfg.Otel.Headers)
	cfg.Otel.Insecure = envutil.Bool("OTEL_EXPORTER_OTLP_INSECURE", cfg.Otel.Insecure)
}

func (c Config) validate() error {
	if strings.TrimSpace(c.UploadFolder) == "" {
		return fmt.Errorf("upload folder is required")
	}
	switch c.DBDriver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported db driver %q", c.DBDriver)
	}
	if c.MaxUploadBytes < 0 {
		return fmt.Errorf("max upload bytes must not be negative")
	}
	return nil
}
