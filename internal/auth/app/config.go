package app

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is the full runtime configuration, loaded from the environment.
type Config struct {
	// TokenKey is the HS256 signing key shared with nothing: this service is
	// the only minter and the only verifier.
	TokenKey string `env:"AUTH_TOKEN_KEY,notEmpty"`

	RedisAddr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	DatabaseFile string `env:"AUTH_DATABASE_FILE" envDefault:"auth.db"`

	// VerifyBaseURL is the public base of the verification links placed in
	// registration mail.
	VerifyBaseURL string `env:"AUTH_VERIFY_BASE_URL" envDefault:"http://localhost:8080"`

	Env                 string        `env:"ENV" envDefault:"dev"`
	LogLevel            string        `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat           string        `env:"LOG_FORMAT" envDefault:"json"`
	Port                int           `env:"PORT" envDefault:"8080"`
	ShutdownGracePeriod time.Duration `env:"SHUTDOWN_GRACE_PERIOD" envDefault:"10s"`
}

// LoadConfig reads the environment and fails fast on anything missing or
// unparseable rather than limping along misconfigured.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}
