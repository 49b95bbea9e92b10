package config

import (
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	Env        string     `yaml:"env" env:"ENV" env-default:"production"`
	HTTPServer HTTPServer `yaml:"http_server"`
	JWTSecret  string     `yaml:"jwt_secret" env:"JWT_SECRET" env-required:"true"`
	Log        Log        `yaml:"log"`
	Relay      Relay      `yaml:"relay"`
	Hosts      Hosts      `yaml:"hosts"`
	MinIO      MinIO      `yaml:"minio"`
	Redis      Redis      `yaml:"redis"`
	Memo       Memo       `yaml:"memo"`
	Probe      Probe      `yaml:"probe"`
	RateLimit  RateLimit  `yaml:"rate_limit"`
}

type HTTPServer struct {
	Address         string        `yaml:"address" env:"HTTP_ADDRESS" env-default:"localhost:8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout" env-default:"15s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env-default:"5s"`
	// AllowedOrigins are console origins accepted on websocket upgrades,
	// in addition to the server's own host.
	AllowedOrigins []string `yaml:"allowed_origins" env:"HTTP_ALLOWED_ORIGINS" env-separator:","`
}

type Log struct {
	Level  string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
	Format string `yaml:"format" env:"LOG_FORMAT" env-default:"json"`
}

// Relay configures the relay endpoints and the URLs built for them.
type Relay struct {
	// BaseURL is prepended to relay paths; empty means same-origin relative URLs.
	BaseURL         string        `yaml:"base_url" env:"RELAY_BASE_URL"`
	DefaultInstance string        `yaml:"default_instance" env:"RELAY_DEFAULT_INSTANCE"`
	DecryptUpstream string        `yaml:"decrypt_upstream" env:"RELAY_DECRYPT_UPSTREAM"`
	FetchTimeout    time.Duration `yaml:"fetch_timeout" env-default:"30s"`
	// AllowedHosts limits what the generic media relay will fetch.
	AllowedHosts []string `yaml:"allowed_hosts" env:"RELAY_ALLOWED_HOSTS" env-separator:","`
}

// Hosts identifies media origins. Empty lists fall back to built-in defaults.
type Hosts struct {
	PrimaryStore   []string `yaml:"primary_store" env:"HOSTS_PRIMARY_STORE" env-separator:","`
	SecondaryStore []string `yaml:"secondary_store" env:"HOSTS_SECONDARY_STORE" env-separator:","`
	Encrypted      []string `yaml:"encrypted" env:"HOSTS_ENCRYPTED" env-separator:","`
}

type MinIO struct {
	Enabled         bool   `yaml:"enabled" env:"MINIO_ENABLED"`
	Endpoint        string `yaml:"endpoint" env:"MINIO_ENDPOINT" env-default:"localhost:9000"`
	AccessKeyID     string `yaml:"access_key_id" env:"MINIO_ACCESS_KEY_ID"`
	SecretAccessKey string `yaml:"secret_access_key" env:"MINIO_SECRET_ACCESS_KEY"`
	BucketName      string `yaml:"bucket_name" env:"MINIO_BUCKET" env-default:"chat-media"`
	UseSSL          bool   `yaml:"use_ssl" env:"MINIO_USE_SSL" env-default:"false"`
}

type Redis struct {
	Enabled  bool   `yaml:"enabled" env:"REDIS_ENABLED"`
	Address  string `yaml:"address" env:"REDIS_ADDRESS" env-default:"localhost:6379"`
	Password string `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
}

// Memo selects the relay memoization backend: none, memory or redis.
type Memo struct {
	Backend string        `yaml:"backend" env:"MEMO_BACKEND" env-default:"none"`
	TTL     time.Duration `yaml:"ttl" env-default:"6h"`
	Size    int           `yaml:"size" env-default:"10000"`
}

type Probe struct {
	Timeout  time.Duration `yaml:"timeout" env-default:"5s"`
	MinBytes int64         `yaml:"min_bytes" env-default:"32768"`
}

// RateLimit applies to each relay endpoint per client address.
type RateLimit struct {
	Capacity   int64 `yaml:"capacity" env-default:"120"`
	RefillRate int64 `yaml:"refill_rate" env-default:"120"`
}

// Load reads the config file at path, with environment overrides.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file does not exist at path: %s", path)
	}

	var cfg Config
	if err := cleanenv.ReadConfig(path, &cfg); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	switch cfg.Memo.Backend {
	case "none", "memory", "redis":
	default:
		return nil, fmt.Errorf("unknown memo backend %q", cfg.Memo.Backend)
	}
	if cfg.Memo.Backend == "redis" && !cfg.Redis.Enabled {
		return nil, fmt.Errorf("memo backend redis requires redis.enabled")
	}

	return &cfg, nil
}

func MustLoad() *Config {
	configPath := os.Getenv("CONFIG_PATH")

	if configPath == "" {
		flags := flag.String("config", "", "Path to config file")
		flag.Parse()
		configPath = *flags

		if configPath == "" {
			log.Fatal("config path must be provided")
		}
	}

	cfg, err := Load(configPath)
	if err != nil {
		log.Fatal(err)
	}

	return cfg
}

// SetupLogger installs the default slog logger described by cfg.
func SetupLogger(cfg *Config) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Log.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Log.Format == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	logger := slog.New(handler).With(slog.String("env", cfg.Env))
	slog.SetDefault(logger)
	return logger
}
