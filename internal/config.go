package internal

import (
	"fmt"
	"os"
	"strings"
	"time"

	"nerdsphere/errors"

	"github.com/Netflix/go-env"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

const (
	StoreBadger = "badger"
	StoreSQLite = "sqlite"
	StoreMongo  = "mongo"

	LockLocal = "local"
	LockRedis = "redis"
)

type Config struct {
	Host     string `env:"HOST,default=0.0.0.0" validate:"required"`
	Port     int    `env:"PORT,default=8080" validate:"min=1,max=65535"`
	LogLevel string `env:"LOG_LEVEL,default=INFO" validate:"required"`
	// Comma separated, "*" allows any origin
	AllowedOrigins string `env:"ALLOWED_ORIGINS,default=*"`

	Store          string        `env:"STORE,default=badger" validate:"oneof=badger sqlite mongo"`
	BadgerFilepath string        `env:"BADGER_FILEPATH,default=./data/badger" validate:"required_if=Store badger"`
	SQLiteFilepath string        `env:"SQLITE_FILEPATH,default=./data/nerdsphere.db" validate:"required_if=Store sqlite"`
	MongoURI       string        `env:"MONGODB_URI" validate:"required_if=Store mongo"`
	MongoDatabase  string        `env:"MONGODB_DATABASE,default=nerdsphere" validate:"required_if=Store mongo"`
	StoreTimeout   time.Duration `env:"STORE_TIMEOUT,default=5s" validate:"gt=0"`
	// NativeTTL lets the store expire messages by itself between sweeps (Badger, MongoDB)
	NativeTTL bool `env:"NATIVE_TTL,default=false"`

	// LockTTL must outlive the store calls a lease guards
	Lock          string        `env:"LOCK,default=local" validate:"oneof=local redis"`
	RedisAddr     string        `env:"REDIS_ADDR,default=localhost:6379" validate:"required_if=Lock redis"`
	RedisUsername string        `env:"REDIS_USERNAME"`
	RedisPassword string        `env:"REDIS_PASSWORD"`
	LockTTL       time.Duration `env:"LOCK_TTL,default=10s" validate:"gtfield=StoreTimeout"`

	CooldownWindow time.Duration `env:"COOLDOWN_WINDOW,default=10s" validate:"gt=0"`
	SweepInterval  time.Duration `env:"SWEEP_INTERVAL,default=1h" validate:"gt=0"`
	EnableSweeper  bool          `env:"ENABLE_SWEEPER,default=true"`
	MetricInterval time.Duration `env:"METRIC_INTERVAL,default=1m" validate:"gt=0"`

	// DebugPort > 0 serves the Badger inspector on that port
	DebugPort int `env:"DEBUG_PORT,default=0" validate:"min=0,max=65535"`
}

// LoadConfig reads an optional .env file, then the environment.
// Variables already set in the environment win over the file.
func LoadConfig(dotenv string) (Config, error) {
	if dotenv != "" {
		if err := godotenv.Load(dotenv); err != nil && !os.IsNotExist(err) {
			return Config{}, fmt.Errorf("failed to load %s: %w", dotenv, err)
		}
	}
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return Config{}, fmt.Errorf("%w: %w", errors.ErrInvalidConfig, err)
	}
	if err := config.Validate(); err != nil {
		return Config{}, err
	}
	return config, nil
}

func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("%w: %w", errors.ErrInvalidConfig, err)
	}
	return nil
}

func (c Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Origins splits ALLOWED_ORIGINS, blanks are dropped.
func (c Config) Origins() []string {
	var origins []string
	for _, origin := range strings.Split(c.AllowedOrigins, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, origin)
		}
	}
	return origins
}

// RetentionTTL is the native expiry written with each message, zero when disabled.
func (c Config) RetentionTTL(horizon time.Duration) time.Duration {
	if !c.NativeTTL {
		return 0
	}
	return horizon
}
