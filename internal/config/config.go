package config

import (
	"context"
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	Port     string `env:"PORT, default=3000"`
	AppEnv   string `env:"APP_ENV, default=development"`
	LogLevel string `env:"LOG_LEVEL, default=info"`

	JWTSecret string        `env:"JWT_SECRET, required"`
	JWTTTL    time.Duration `env:"JWT_TTL, default=24h"`

	// Registering with this email yields an ADMIN account.
	AdminBootstrapEmail string `env:"ADMIN_BOOTSTRAP_EMAIL"`

	DB     DBConfig
	Redis  RedisConfig
	Server ServerConfig
	Leave  LeaveConfig
}

type DBConfig struct {
	Host       string `env:"DB_HOST, default=localhost"`
	Port       string `env:"DB_PORT, default=5432"`
	User       string `env:"DB_USER, default=postgres"`
	Password   string `env:"DB_PASSWORD"`
	Name       string `env:"DB_NAME, default=go_leave"`
	SSLMode    string `env:"DB_SSLMODE, default=disable"`
	MaxRetries int    `env:"DB_MAX_RETRIES, default=5"`
}

func (c DBConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		c.Host, c.User, c.Password, c.Name, c.Port, c.SSLMode,
	)
}

type RedisConfig struct {
	Addr       string `env:"REDIS_ADDR, default=localhost:6379"`
	MaxRetries int    `env:"REDIS_MAX_RETRIES, default=5"`
}

type ServerConfig struct {
	ReadTimeout     time.Duration `env:"HTTP_READ_TIMEOUT, default=5s"`
	WriteTimeout    time.Duration `env:"HTTP_WRITE_TIMEOUT, default=10s"`
	IdleTimeout     time.Duration `env:"HTTP_IDLE_TIMEOUT, default=60s"`
	ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT, default=10s"`
}

// LeaveConfig holds the quota granted per leave type when a user registers.
type LeaveConfig struct {
	DefaultAnnual   int `env:"LEAVE_DEFAULT_ANNUAL, default=12"`
	DefaultSick     int `env:"LEAVE_DEFAULT_SICK, default=10"`
	DefaultPersonal int `env:"LEAVE_DEFAULT_PERSONAL, default=5"`
}

func (c Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// Load reads an optional .env file and then the process environment.
func Load(ctx context.Context) (*Config, error) {
	_ = godotenv.Load()
	return LoadFrom(ctx, envconfig.OsLookuper())
}

func LoadFrom(ctx context.Context, lookuper envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: lookuper,
	}); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return &cfg, nil
}
