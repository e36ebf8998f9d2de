package config

import (
	"flag"
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type (
	// Config represents an application configuration.
	Config struct {
		// Runtime environment: "development" or "production".
		// Production responses never expose internal error messages.
		Env string `yaml:"env" env:"APP_ENV" env-default:"development"`
		// The data source name (DSN) for connecting to the database.
		DSN string `yaml:"dsn" env:"DATABASE_URI"`
		// Subconfigs.
		HTTPServer HTTPServer `yaml:"http_server"`
		Logger     Logger     `yaml:"logger"`
		Redis      Redis      `yaml:"redis"`
		Kafka      Kafka      `yaml:"kafka"`
		Peers      Peers      `yaml:"peers"`
	}
	// Config for HTTP server.
	HTTPServer struct {
		// The server startup address.
		Address string `yaml:"run_address" env:"RUN_ADDRESS" env-default:"127.0.0.1:8080"`
		// Read Header Timeout in seconds.
		Timeout time.Duration `yaml:"timeout" env-default:"5s"`
		// Idle timeout in seconds.
		IdleTimeout time.Duration `yaml:"idle_timeout" env-default:"60s"`
		// Shutdown timeout in seconds.
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT" env-default:"30s"`
	}
	// Config for application's logger.
	Logger struct {
		// Path to store log files. Empty path logs to stderr only.
		Path string `yaml:"path" env:"LOG_PATH"`
		// Application logging level.
		Level string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
		// Log files details.
		MaxSizeMB  int `yaml:"max_size_mb" env-default:"100"`
		MaxBackups int `yaml:"max_backups" env-default:"3"`
		MaxAgeDays int `yaml:"max_age_days" env-default:"28"`
	}
	// Config for the order read cache.
	Redis struct {
		// Redis server address. Empty address disables the cache.
		Address string `yaml:"address" env:"REDIS_ADDR"`
		// How long a cached order stays valid.
		TTL time.Duration `yaml:"ttl" env-default:"5m"`
	}
	// Config for the order event stream.
	Kafka struct {
		// Broker addresses. Empty list disables event publishing.
		Brokers []string `yaml:"brokers" env:"KAFKA_BROKERS" env-separator:","`
		// Produced messages buffered before the writer blocks.
		BufferSize int `yaml:"buffer_size" env-default:"1024"`
	}
	// Config for best-effort peer service calls.
	Peers struct {
		// Base URL of the customer directory service.
		CustomerAddr string `yaml:"customer_addr" env:"CUSTOMER_SERVICE_ADDRESS"`
		// Base URL of the auth (login) service.
		AuthAddr string `yaml:"auth_addr" env:"AUTH_SERVICE_ADDRESS"`
		// Per-call timeout. Peer calls never block order persistence
		// longer than this.
		Timeout time.Duration `yaml:"timeout" env-default:"2s"`
		// Minimum interval between outbound peer calls.
		RateInterval time.Duration `yaml:"rate_interval" env-default:"100ms"`
		// Burst allowed by the peer call rate limiter.
		RateBurst int `yaml:"rate_burst" env-default:"5"`
	}
)

// MustLoad returns an application configuration which is populated
// from the given configuration file, environment variables and flags.
func MustLoad() *Config {
	// Configuration yaml file path.
	configPath := flag.String("config", "./config/local.yml", "path to the config file")

	var cfg Config

	// Read given flags.
	flag.StringVar(&cfg.HTTPServer.Address, "a", "127.0.0.1:8080", "server startup address")
	flag.StringVar(&cfg.DSN, "d", "", "server data source name")
	flag.Parse()

	// Load from YAML cfg file if it exists.
	if _, err := os.Stat(*configPath); err == nil {
		file, err := os.Open(*configPath)
		if err != nil {
			log.Fatalf("failed to open config file: %s", *configPath)
		}
		defer file.Close()
		if err = cleanenv.ParseYAML(file, &cfg); err != nil {
			log.Fatalf("failed to parse config file: %s", *configPath)
		}
	}

	// Read environment variables.
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		log.Fatalf("failed to read environment variables: %v", err)
	}

	return &cfg
}
