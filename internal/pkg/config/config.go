package config

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	Port     string `env:"PORT,      default=8080"`
	Env      string `env:"ENV,       default=development"`
	LogLevel string `env:"LOG_LEVEL, default=info"`

	// UpstreamAuthURL is the dashboard backend that owns credentials and
	// token lifetimes; the gateway only orchestrates role sessions on top.
	UpstreamAuthURL string        `env:"UPSTREAM_AUTH_URL, default=http://localhost:9000"`
	UpstreamTimeout time.Duration `env:"UPSTREAM_TIMEOUT,  default=10s"`

	// GatewayKeyHash is a bcrypt hash of the shared key the dashboard must
	// present. Empty disables the check.
	GatewayKeyHash string `env:"GATEWAY_KEY_HASH"`

	// SessionKeyPrefix namespaces the per-role session keys in Redis.
	SessionKeyPrefix string `env:"SESSION_KEY_PREFIX, default=console:"`

	Mongo MongoConfig
	Redis RedisConfig
}

type MongoConfig struct {
	URI      string `env:"MONGO_URI, default=mongodb://localhost:27017"`
	Database string `env:"MONGO_DB,  default=session_gateway"`
}

type RedisConfig struct {
	Addr string `env:"REDIS_ADDR, default=localhost:6379"`
	DB   int    `env:"REDIS_DB,   default=0"`
}

// Load reads configuration from environment variables using go-envconfig.
func Load() *Config {
	var cfg Config
	if err := envconfig.Process(context.Background(), &cfg); err != nil {
		panic(fmt.Sprintf("config: failed to load configuration: %v", err))
	}
	return &cfg
}
